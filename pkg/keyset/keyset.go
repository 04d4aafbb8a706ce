// Package keyset caches JSON Web Key Sets between webhook verifications.
// Implementations must be safe for concurrent Get and Set.
package keyset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Cache stores key sets by JWKS URL. Get reports a miss with ok=false and a
// nil error; an error means the backend itself failed.
type Cache interface {
	Get(ctx context.Context, key string) (set jwk.Set, ok bool, err error)
	Set(ctx context.Context, key string, set jwk.Set, ttl time.Duration) error
}

func encode(set jwk.Set) ([]byte, error) {
	b, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encoding key set: %w", err)
	}
	return b, nil
}

func decode(b []byte) (jwk.Set, error) {
	set, err := jwk.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("decoding key set: %w", err)
	}
	return set, nil
}
