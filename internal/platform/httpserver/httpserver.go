package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Lifecycle and screening requests are short
// store-bound operations, so the write deadlines stay tight; slow-loris
// protection comes from the read header timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
