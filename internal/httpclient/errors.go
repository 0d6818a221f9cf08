package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError represents an error returned by an upstream AI service.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}

// IsRateLimited reports whether the upstream rejected the request for
// exceeding a rate limit.
func (e *UpstreamError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether the upstream rejected the credentials.
// Auth failures are terminal: retrying with the same key cannot succeed.
func (e *UpstreamError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AsUpstreamError unwraps err into an *UpstreamError if there is one.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
