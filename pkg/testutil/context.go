package testutil

import (
	"net/http"

	"hmdamart/internal/platform/middleware"
)

// WithRequestID attaches a request ID the way the RequestID middleware does,
// for handlers exercised without the full router.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(middleware.WithRequestID(req.Context(), id))
}
