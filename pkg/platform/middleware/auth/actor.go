// Package auth extracts the acting user from a bearer token.
//
// The lifecycle core takes the actor as an explicit parameter on every
// audit-producing call; this middleware is the single place where that
// identity enters the process, so no service ever reads ambient auth state.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "passage/pkg/domain"
	"passage/pkg/requestcontext"
)

// RequireActor validates the Authorization bearer token and stores the
// subject claim as the actor ID on the request context.
func RequireActor(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, ok := actorFromHeader(r.Header.Get("Authorization"), signingKey)
			if !ok {
				logger.WarnContext(r.Context(), "rejected request without valid actor token",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"valid bearer token required"}`))
				return
			}
			ctx := requestcontext.WithActorID(r.Context(), actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFromHeader(header, signingKey string) (id.ActorID, bool) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return id.ActorID{}, false
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(signingKey), nil
	})
	if err != nil || !token.Valid {
		return id.ActorID{}, false
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return id.ActorID{}, false
	}
	actorID, err := id.ParseActorID(subject)
	if err != nil {
		return id.ActorID{}, false
	}
	return actorID, true
}
