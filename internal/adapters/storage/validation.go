package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes defines the media MIME types accepted for verification
// uploads. The pipeline only understands images, video, audio, and plain text.
var AllowedContentTypes = map[string]bool{
	// Images
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,

	// Video
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"video/mpeg":      true,

	// Audio
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/ogg":   true,
	"audio/webm":  true,
	"audio/x-wav": true,

	// Text
	"text/plain": true,
}

// ValidateContentType checks if the content type is allowed.
func (s *MinIOService) ValidateContentType(contentType string) error {
	normalized := normalizeContentType(contentType)
	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > s.maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, s.maxFileSize)
	}
	return nil
}

// MediaKind classifies a content type into the pipeline's artifact kinds:
// "image", "video", "audio", or "text". Unrecognized types return "".
func MediaKind(contentType string) string {
	normalized := normalizeContentType(contentType)
	switch {
	case strings.HasPrefix(normalized, "image/"):
		return "image"
	case strings.HasPrefix(normalized, "video/"):
		return "video"
	case strings.HasPrefix(normalized, "audio/"):
		return "audio"
	case strings.HasPrefix(normalized, "text/"):
		return "text"
	}
	return ""
}

// normalizeContentType strips parameters (e.g. charset) and lowercases.
func normalizeContentType(contentType string) string {
	normalized := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(normalized))
}
