package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gofalre.io/hendrix/driver"
)

var _ Store = (*Postgres)(nil)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS storefront_kv (
		namespace  TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, key)
	)
`

// Postgres keeps values in the storefront_kv table, scoped by namespace.
type Postgres struct {
	conn      driver.PostgresPool
	tm        *driver.TransactionManager
	namespace string
}

func NewPostgres(conn driver.PostgresPool, tm *driver.TransactionManager, namespace string) *Postgres {
	return &Postgres{
		conn:      conn,
		tm:        tm,
		namespace: namespace,
	}
}

// Migrate creates the backing table when it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create storefront_kv: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value
		FROM storefront_kv
		WHERE namespace = $1 AND key = $2
	`

	var value string
	err := p.conn.QueryRow(ctx, query, p.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to select %s: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO storefront_kv (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	return p.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, p.namespace, key, value); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", key, err)
		}
		return nil
	})
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM storefront_kv WHERE namespace = $1 AND key = $2`

	if _, err := p.conn.Exec(ctx, query, p.namespace, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
