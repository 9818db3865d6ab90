package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sekou/sekou/internal/database"
)

// Postgres 基于 kv_store 表的存储，值必须是合法 JSON
type Postgres struct {
	db *database.DB
}

// NewPostgres 创建 Postgres 存储
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires interface{}
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, string(value), expires,
	)
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	return err
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM kv_store
		 WHERE key LIKE $1 ESCAPE '\' AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Health(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
