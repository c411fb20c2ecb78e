package errors

import (
	"strings"
	"unicode"
)

const (
	maxNodeIDLength     = 256
	maxSearchTermLength = 120
	maxFrameDimension   = 8192
)

// ValidateNodeID validates a node identifier received from a user or a URL
// path. It rejects ids that could be used for path traversal or injection
// when forwarded to the backend.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters or whitespace
//   - No path separators or traversal sequences
//   - Maximum length of 256 characters
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "node id cannot be empty")
	}
	if len(id) > maxNodeIDLength {
		return New(ErrCodeInvalidInput, "node id too long (max %d characters)", maxNodeIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "node id contains invalid characters")
		}
	}
	for _, pattern := range []string{"..", "/", "\\", "?", "#"} {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidInput, "node id contains invalid characters: %q", pattern)
		}
	}
	return nil
}

// ValidateSearchTerm validates a free-text name query. An empty term is
// valid and means "no search".
func ValidateSearchTerm(term string) error {
	if len(term) > maxSearchTermLength {
		return New(ErrCodeInvalidInput, "search term too long (max %d characters)", maxSearchTermLength)
	}
	for _, r := range term {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "search term contains invalid control characters")
		}
	}
	return nil
}

// ValidateFrameSize validates the pixel dimensions of a rendered frame.
func ValidateFrameSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidInput, "frame size must be positive, got %dx%d", width, height)
	}
	if width > maxFrameDimension || height > maxFrameDimension {
		return New(ErrCodeInvalidInput, "frame size too large (max %d per side)", maxFrameDimension)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
