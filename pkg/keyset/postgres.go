package keyset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps key sets in the jwks_cache table. Expired rows are ignored on
// read and overwritten on the next Set.
type Postgres struct {
	db DB
}

var _ Cache = (*Postgres)(nil)

func NewPostgres(db DB) *Postgres { return &Postgres{db: db} }

const schema = `CREATE TABLE IF NOT EXISTS jwks_cache (
	url        TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating jwks_cache: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (jwk.Set, bool, error) {
	var body []byte
	err := p.db.QueryRow(ctx,
		`SELECT body FROM jwks_cache WHERE url = $1 AND expires_at > now()`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select jwks_cache: %w", err)
	}
	set, err := decode(body)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, set jwk.Set, ttl time.Duration) error {
	b, err := encode(set)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `INSERT INTO jwks_cache (url, body, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (url) DO UPDATE SET body = EXCLUDED.body, expires_at = EXCLUDED.expires_at`,
		key, b, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("upsert jwks_cache: %w", err)
	}
	return nil
}
