// pkg/middleware/webhook.go
package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"slashid/pkg/keyset"
	"slashid/pkg/webhooks"
)

const (
	ctxKeyClaims ctxKey = "webhook_claims"

	maxCallBody = 1 << 20
)

// CallVerifier is satisfied by *webhooks.CallVerifier.
type CallVerifier interface {
	Verify(ctx context.Context, token string, cache keyset.Cache, opts ...webhooks.VerifyOption) (map[string]any, error)
}

// WebhookCall verifies that the request body is a JWT signed by SlashID and
// puts its claims in the context. Rejected calls never reach next.
func WebhookCall(v CallVerifier, cache keyset.Cache, log *zap.SugaredLogger, opts ...webhooks.VerifyOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxCallBody+1))
			if err != nil {
				http.Error(w, "read body failed", http.StatusBadRequest)
				return
			}
			if len(body) > maxCallBody {
				http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
				return
			}
			token := string(bytes.TrimSpace(body))
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}

			claims, err := v.Verify(r.Context(), token, cache, opts...)
			switch {
			case errors.Is(err, webhooks.ErrInvalidCall), errors.Is(err, webhooks.ErrUnknownKey):
				log.Warnw("webhook call rejected", "err", err, "reqid", RequestIDFrom(r.Context()))
				http.Error(w, "invalid webhook call", http.StatusUnauthorized)
				return
			case err != nil:
				log.Errorw("webhook call verification failed", "err", err, "reqid", RequestIDFrom(r.Context()))
				http.Error(w, "jwks fetch failed", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, claims)))
		})
	}
}

// ClaimsFrom returns the claims stored by WebhookCall, or nil.
func ClaimsFrom(ctx context.Context) map[string]any {
	if v, ok := ctx.Value(ctxKeyClaims).(map[string]any); ok {
		return v
	}
	return nil
}
