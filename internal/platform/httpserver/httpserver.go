package httpserver

import (
	"net/http"

	"hmdamart/internal/platform/config"
)

// New builds the HTTP server. Write timeouts are left to the per-request
// context so synchronous runs are not cut off mid-partition.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
