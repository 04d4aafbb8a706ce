package keyset

import (
	"context"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Memory is an in-process Cache. The zero value is ready to use.
type Memory struct {
	mu   sync.RWMutex
	sets map[string]cachedSet
	now  func() time.Time
}

type cachedSet struct {
	set     jwk.Set
	expires time.Time
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Memory) Get(_ context.Context, key string) (jwk.Set, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sets[key]
	if !ok || !m.clock().Before(e.expires) {
		return nil, false, nil
	}
	return e.set, true, nil
}

func (m *Memory) Set(_ context.Context, key string, set jwk.Set, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets == nil {
		m.sets = map[string]cachedSet{}
	}
	m.sets[key] = cachedSet{set: set, expires: m.clock().Add(ttl)}
	return nil
}
