package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	notifyChannel = "liqa_kv"

	createTableSQL = `CREATE TABLE IF NOT EXISTS liqa_kv (
	area       TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (area, key)
)`
)

type notification struct {
	Area   Area   `json:"area"`
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// Postgres shares both tiers through a single table so that several machines
// see the same selectors, jobs and agents. Changes made elsewhere arrive
// through LISTEN/NOTIFY.
type Postgres struct {
	pool   *pgxpool.Pool
	origin string
	logger *zap.Logger

	sync  *PostgresStore
	local *PostgresStore
}

// PostgresStore is one tier of a Postgres backend.
type PostgresStore struct {
	area    Area
	backend *Postgres

	notifier notifier
}

// OpenPostgres connects to the database and makes sure the table exists.
func OpenPostgres(ctx context.Context, connString string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating liqa_kv table: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		origin: uuid.NewString(),
		logger: logger,
	}
	p.sync = &PostgresStore{area: Sync, backend: p}
	p.local = &PostgresStore{area: Local, backend: p}

	return p, nil
}

// Storage exposes the backend as a two-tier Storage.
func (p *Postgres) Storage() *Storage {
	return &Storage{Sync: p.sync, Local: p.local}
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Listen delivers changes made by other processes until ctx is done.
func (p *Postgres) Listen(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listening on %s: %w", notifyChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("waiting for notification: %w", err)
		}

		var msg notification
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
			p.logger.Warn("skipping malformed storage notification", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}

		if msg.Origin == p.origin {
			continue
		}

		store := p.storeFor(msg.Area)
		if store == nil {
			continue
		}

		values, err := store.Get(ctx, msg.Key)
		if err != nil {
			p.logger.Warn("reading changed key", zap.String("key", msg.Key), zap.Error(err))
			continue
		}

		store.notifier.publish(Change{Area: msg.Area, Key: msg.Key, NewValue: values[msg.Key]})
	}
}

func (p *Postgres) storeFor(area Area) *PostgresStore {
	switch area {
	case Sync:
		return p.sync
	case Local:
		return p.local
	default:
		return nil
	}
}

func (p *Postgres) notify(ctx context.Context, tx pgx.Tx, area Area, key string) error {
	payload, err := json.Marshal(notification{Area: area, Key: key, Origin: p.origin})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, string(payload))
	return err
}

func (s *PostgresStore) Area() Area { return s.area }

func (s *PostgresStore) Get(ctx context.Context, keys ...string) (map[string]any, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(keys) == 0 {
		rows, err = s.backend.pool.Query(ctx, "SELECT key, value::text FROM liqa_kv WHERE area = $1", string(s.area))
	} else {
		rows, err = s.backend.pool.Query(ctx, "SELECT key, value::text FROM liqa_kv WHERE area = $1 AND key = ANY($2)", string(s.area), keys)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s storage: %w", s.area, err)
	}
	defer rows.Close()

	result := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", s.area, key, err)
		}
		result[key] = value
	}

	return result, rows.Err()
}

func (s *PostgresStore) Set(ctx context.Context, key string, value any) error {
	normalized, err := Normalize(value)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return err
	}

	var (
		old       any
		unchanged bool
	)
	err = pgx.BeginFunc(ctx, s.backend.pool, func(tx pgx.Tx) error {
		var raw string
		err := tx.QueryRow(ctx, "SELECT value::text FROM liqa_kv WHERE area = $1 AND key = $2 FOR UPDATE", string(s.area), key).Scan(&raw)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(raw), &old); err != nil {
				return err
			}
			if reflect.DeepEqual(old, normalized) {
				unchanged = true
				return nil
			}
		}

		if _, err := tx.Exec(ctx, `INSERT INTO liqa_kv (area, key, value, updated_at) VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (area, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, string(s.area), key, string(encoded)); err != nil {
			return err
		}

		return s.backend.notify(ctx, tx, s.area, key)
	})
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", s.area, key, err)
	}

	if unchanged {
		return nil
	}

	s.notifier.publish(Change{Area: s.area, Key: key, OldValue: old, NewValue: normalized})
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	var (
		old     any
		removed bool
	)
	err := pgx.BeginFunc(ctx, s.backend.pool, func(tx pgx.Tx) error {
		var raw string
		err := tx.QueryRow(ctx, "DELETE FROM liqa_kv WHERE area = $1 AND key = $2 RETURNING value::text", string(s.area), key).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		if err := json.Unmarshal([]byte(raw), &old); err != nil {
			return err
		}
		return s.backend.notify(ctx, tx, s.area, key)
	})
	if err != nil {
		return fmt.Errorf("removing %s/%s: %w", s.area, key, err)
	}

	if removed {
		s.notifier.publish(Change{Area: s.area, Key: key, OldValue: old})
	}
	return nil
}

func (s *PostgresStore) Subscribe(fn func(Change)) func() {
	return s.notifier.subscribe(fn)
}
