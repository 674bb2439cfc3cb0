package storage

import "testing"

func TestMediaKind(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "image"},
		{"image/png", "image"},
		{"video/mp4", "video"},
		{"audio/mpeg", "audio"},
		{"text/plain; charset=utf-8", "text"},
		{"application/pdf", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MediaKind(tt.contentType); got != tt.want {
			t.Fatalf("MediaKind(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestValidateContentTypeNormalizesParameters(t *testing.T) {
	svc := &MinIOService{maxFileSize: 1024}

	if err := svc.ValidateContentType("text/plain; charset=utf-8"); err != nil {
		t.Fatalf("expected parameterized content type accepted: %v", err)
	}
	if err := svc.ValidateContentType("application/zip"); err == nil {
		t.Fatal("expected unsupported content type rejected")
	}
}

func TestValidateFileSize(t *testing.T) {
	svc := &MinIOService{maxFileSize: 1024}

	if err := svc.ValidateFileSize(0); err == nil {
		t.Fatal("expected zero size rejected")
	}
	if err := svc.ValidateFileSize(2048); err == nil {
		t.Fatal("expected oversize rejected")
	}
	if err := svc.ValidateFileSize(512); err != nil {
		t.Fatalf("expected valid size accepted: %v", err)
	}
}
