// Package verification provides the verification jobs bounded context module.
package verification

import (
	"trustlens_backend/internal/adapters/storage"
	apphttp "trustlens_backend/internal/http"
	"trustlens_backend/internal/mediastore"
	"trustlens_backend/internal/verification/handler"
	"trustlens_backend/internal/verification/repository"
	"trustlens_backend/internal/verification/service"
	"trustlens_backend/platform/logger"
	"trustlens_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the verification bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the verification module.
func NewModule(
	pool *pgxpool.Pool,
	store *mediastore.Store,
	files storage.StorageService,
	bucket string,
	enqueuer service.OrchestrateEnqueuer,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, store, files, bucket, enqueuer, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "verification"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the job ledger, which the pipeline worker uses to record
// terminal outcomes.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts verification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	verifyGroup := ctx.Protected.Group("/verify")
	m.handler.RegisterRoutes(verifyGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
