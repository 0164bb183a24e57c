package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// KeyAuthenticator validates a verifier API key and returns the id of the
// verifier it belongs to. Implemented by the verifierauth service.
type KeyAuthenticator interface {
	AuthenticateKey(ctx context.Context, apiKey string) (verifierID string, err error)
}

type contextKeyVerifierID struct{}

// ContextKeyVerifierID is exported for use in handlers.
var ContextKeyVerifierID = contextKeyVerifierID{}

// GetVerifierID retrieves the authenticated verifier id from the context.
func GetVerifierID(ctx context.Context) string {
	verifierID, ok := ctx.Value(ContextKeyVerifierID).(string)
	if !ok {
		return ""
	}
	return verifierID
}

// RequireAPIKey guards verification endpoints with an X-API-Key header. The
// key value itself is never logged.
func RequireAPIKey(authenticator KeyAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				logger.WarnContext(ctx, "unauthorized access - missing API key",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing X-API-Key header")
				return
			}

			verifierID, err := authenticator.AuthenticateKey(ctx, apiKey)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid API key",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid API key")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyVerifierID, verifierID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
