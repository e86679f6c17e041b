package logging

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader is echoed back on every HTTP response.
const RequestIDHeader = "X-Request-Id"

// RequestID returns the caller-supplied request id or mints a new one.
func RequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}
