// Package metadata stamps request-scoped values (correlation ID, request
// time) onto the context before handlers run.
package metadata

import (
	"net/http"

	"github.com/google/uuid"

	"passage/pkg/requestcontext"
)

// Annotate assigns a request ID (honoring an inbound X-Request-ID) and pins
// the request time so every decision within the request observes one clock
// reading.
func Annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
