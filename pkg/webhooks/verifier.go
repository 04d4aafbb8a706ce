package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"slashid/pkg/keyset"
)

// VerificationKeysPath serves the key set SlashID signs webhook calls with.
const VerificationKeysPath = "organizations/webhooks/verification-jwks"

const DefaultKeyTTL = time.Hour

var (
	// ErrInvalidCall covers malformed tokens, bad signatures and failed claim
	// checks such as expiry.
	ErrInvalidCall = errors.New("invalid webhook call")
	// ErrUnknownKey means the token's key id is not in the published key set,
	// even after a refresh.
	ErrUnknownKey = errors.New("unknown webhook signing key")
)

// KeySource fetches the published key set. *gateway.Client satisfies it.
type KeySource interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	URL(path string) string
}

// CallVerifier checks the signed JWT body of webhook calls. It is safe for
// concurrent use if the cache passed to Verify is.
type CallVerifier struct {
	src     KeySource
	limiter *rate.Limiter
	clock   jwt.Clock
	log     *zap.SugaredLogger
}

type CallVerifierOption func(*CallVerifier)

// WithRefreshLimiter bounds how often an unknown key id may force a key set
// refresh. The default allows 10 refreshes per minute window (one token every
// 6s, burst 10), not per second.
func WithRefreshLimiter(l *rate.Limiter) CallVerifierOption {
	return func(v *CallVerifier) { v.limiter = l }
}

// WithClock sets the time used for exp/iat/nbf checks.
func WithClock(now func() time.Time) CallVerifierOption {
	return func(v *CallVerifier) { v.clock = jwt.ClockFunc(now) }
}

func WithVerifierLogger(log *zap.SugaredLogger) CallVerifierOption {
	return func(v *CallVerifier) {
		if log != nil {
			v.log = log
		}
	}
}

func NewCallVerifier(src KeySource, opts ...CallVerifierOption) *CallVerifier {
	v := &CallVerifier{
		src:     src,
		limiter: rate.NewLimiter(rate.Every(6*time.Second), 10),
		clock:   jwt.ClockFunc(time.Now),
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type verifyConfig struct {
	ttl         time.Duration
	rateLimited bool
}

type VerifyOption func(*verifyConfig)

// WithTTL sets how long a fetched key set stays in the cache.
func WithTTL(d time.Duration) VerifyOption {
	return func(c *verifyConfig) { c.ttl = d }
}

// WithoutRateLimit lets every unknown key id trigger a refresh.
func WithoutRateLimit() VerifyOption {
	return func(c *verifyConfig) { c.rateLimited = false }
}

// Verify checks token against the published key set and returns its claims.
// The key set is read from cache and fetched on a miss. A key id missing from
// a cached set causes at most one refresh.
func (v *CallVerifier) Verify(ctx context.Context, token string, cache keyset.Cache, opts ...VerifyOption) (map[string]any, error) {
	cfg := verifyConfig{ttl: DefaultKeyTTL, rateLimited: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	kid, err := keyID(token)
	if err != nil {
		return nil, err
	}

	cacheKey := v.src.URL(VerificationKeysPath)
	set, fresh, err := v.keySet(ctx, cache, cacheKey, cfg.ttl)
	if err != nil {
		return nil, err
	}
	if _, ok := set.LookupKeyID(kid); !ok {
		if fresh {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
		}
		if cfg.rateLimited && !v.limiter.Allow() {
			v.log.Warnw("webhook key refresh rate limited", "kid", kid)
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
		}
		if set, err = v.refresh(ctx, cache, cacheKey, cfg.ttl); err != nil {
			return nil, err
		}
		if _, ok := set.LookupKeyID(kid); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
		}
	}

	tok, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithClock(v.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	claims, err := tok.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	return claims, nil
}

func keyID(token string) (string, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", fmt.Errorf("%w: no signature", ErrInvalidCall)
	}
	kid := sigs[0].ProtectedHeaders().KeyID()
	if kid == "" {
		return "", fmt.Errorf("%w: no key id", ErrInvalidCall)
	}
	return kid, nil
}

// keySet returns the cached set, or a freshly fetched one with fresh=true.
// Cache failures are treated as misses.
func (v *CallVerifier) keySet(ctx context.Context, cache keyset.Cache, key string, ttl time.Duration) (jwk.Set, bool, error) {
	set, ok, err := cache.Get(ctx, key)
	if err != nil {
		v.log.Warnw("webhook key cache read failed", "err", err)
	}
	if ok && err == nil {
		return set, false, nil
	}
	set, err = v.refresh(ctx, cache, key, ttl)
	return set, true, err
}

func (v *CallVerifier) refresh(ctx context.Context, cache keyset.Cache, key string, ttl time.Duration) (jwk.Set, error) {
	body, err := v.src.Fetch(ctx, VerificationKeysPath)
	if err != nil {
		return nil, fmt.Errorf("fetching webhook keys: %w", err)
	}
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing webhook keys: %w", err)
	}
	if err := cache.Set(ctx, key, set, ttl); err != nil {
		v.log.Warnw("webhook key cache write failed", "err", err)
	}
	v.log.Debugw("webhook keys refreshed", "keys", set.Len())
	return set, nil
}
