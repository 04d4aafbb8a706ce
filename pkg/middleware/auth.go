// pkg/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"slashid/pkg/tokens"
)

// TokenValidator is satisfied by *tokens.Verifier.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

const ctxKeySubject ctxKey = "subject"

// TokenAuth accepts requests carrying a SlashID token that the API reports as
// valid and stores the token's person id in the context. Health and metrics
// endpoints are left open.
func TokenAuth(v TokenValidator, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])

			sub, err := tokens.Subject(raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			valid, err := v.Validate(r.Context(), raw)
			if err != nil {
				log.Errorw("token validation failed", "err", err, "reqid", RequestIDFrom(r.Context()))
				http.Error(w, "token validation unavailable", http.StatusBadGateway)
				return
			}
			if !valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeySubject, sub)))
		})
	}
}

// SubjectFrom returns the person id stored by TokenAuth, or "".
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySubject).(string)
	return s
}
