package transport

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rpggio/fieldlog/internal/errs"
)

// AdminSecretHeader carries the shared secret of the admin routes.
const AdminSecretHeader = "X-Fieldlog-Admin-Secret"

type actorKey struct{}

// ActorResolver resolves an actor identity from a bearer token.
type ActorResolver interface {
	ResolveActor(ctx context.Context, token string) (string, error)
}

// WithActor stores the actor identity in ctx.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor identity from context, if present.
func ActorFromContext(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorKey{}).(string)
	return actorID, ok && actorID != ""
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication. With a nil resolver every
// request runs as defaultActor.
func AuthMiddleware(resolver ActorResolver, defaultActor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				if defaultActor == "" {
					writeError(w, errs.Unauthenticated("authentication disabled and no default actor configured"))
					return
				}
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), defaultActor)))
				return
			}

			token := BearerToken(r)
			if token == "" {
				writeError(w, errs.Unauthenticated("missing bearer token"))
				return
			}

			actorID, err := resolver.ResolveActor(r.Context(), token)
			if err != nil || actorID == "" {
				writeError(w, errs.Unauthenticated("invalid bearer token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actorID)))
		})
	}
}

// RequireAdminSecret rejects requests whose AdminSecretHeader does not match secret.
// An empty secret rejects everything.
func RequireAdminSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, errs.Unauthenticated("admin API not configured (FIELDLOG_AUTH_ADMIN_SECRET)"))
				return
			}
			got := r.Header.Get(AdminSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeError(w, errs.Unauthenticated("invalid or missing admin secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
