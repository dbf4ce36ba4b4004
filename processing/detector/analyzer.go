package processing

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"facelens/internal/config"
	"facelens/internal/models"
)

// FaceAnalyzer submits one encoded image and returns the faces found in it.
// An empty result is not an error.
type FaceAnalyzer interface {
	Detect(ctx context.Context, jpegData []byte) ([]models.DetectedFace, error)
	Close() error
}

// NewAnalyzer builds the backend selected in cfg.
func NewAnalyzer(cfg config.AnalyzerConfig) (FaceAnalyzer, error) {
	switch cfg.Backend {
	case config.BackendAzure:
		return NewAzureFaceClient(cfg)
	case config.BackendWebsocket:
		return NewRemoteDetector(cfg.SocketHost), nil
	default:
		return nil, fmt.Errorf("unknown analyzer backend %q", cfg.Backend)
	}
}

// ServiceError is a non-2xx answer from the analysis service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("face service: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("face service: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *ServiceError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// parseServiceError reads the {"error":{"code","message"}} envelope,
// falling back to the raw body.
func parseServiceError(status int, header http.Header, body []byte) *ServiceError {
	e := &ServiceError{StatusCode: status}

	if gjson.ValidBytes(body) {
		e.Code = gjson.GetBytes(body, "error.code").String()
		e.Message = gjson.GetBytes(body, "error.message").String()
	}
	if e.Message == "" {
		e.Message = truncate(string(body), 200)
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}

	return e
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
