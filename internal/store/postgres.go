package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamhouse/event-aggregator/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer for events and counters.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Admit runs the admission transaction: a conditional insert against the
// (topic, event_id) unique index plus the matching counter update. The
// database constraint is what makes this safe under concurrent and
// cross-process writers, not any application-level lock.
func (p *PostgresStore) Admit(ctx context.Context, ev models.Event) (bool, error) {
	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return false, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, unavailable(err)
	}
	defer tx.Rollback(ctx)

	// RETURNING 1 only when inserted; a conflicting identity returns no rows.
	var one int
	err = tx.QueryRow(ctx, `
		INSERT INTO events(topic, event_id, ts, source, payload, received_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (topic, event_id) DO NOTHING
		RETURNING 1
	`, ev.Topic, ev.EventID, ev.Timestamp, ev.Source, payloadJSON, ev.ReceivedAt).Scan(&one)

	admitted := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, unavailable(err)
	}

	if admitted {
		_, err = tx.Exec(ctx, `
			UPDATE statistics
			SET received_count = received_count + 1,
			    unique_processed = unique_processed + 1,
			    updated_at = now()
			WHERE id = 1
		`)
		if err == nil {
			_, err = tx.Exec(ctx, `
				INSERT INTO stat_topics(topic) VALUES ($1)
				ON CONFLICT (topic) DO NOTHING
			`, ev.Topic)
		}
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE statistics
			SET received_count = received_count + 1,
			    duplicate_dropped = duplicate_dropped + 1,
			    updated_at = now()
			WHERE id = 1
		`)
	}
	if err != nil {
		return false, unavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, unavailable(err)
	}
	return admitted, nil
}

// Events returns accepted events matching q, oldest first. Ties on
// received_at fall back to insertion order via the serial id.
func (p *PostgresStore) Events(ctx context.Context, q Query) ([]models.Event, error) {
	if q.Limit <= 0 || q.Limit > maxQueryLimit {
		q.Limit = maxQueryLimit
	}

	sql := `SELECT topic, event_id, ts, source, payload, received_at FROM events`
	var where []string
	var args []interface{}

	if q.Topic != "" {
		args = append(args, q.Topic)
		where = append(where, fmt.Sprintf("topic = $%d", len(args)))
	}
	if q.Source != "" {
		args = append(args, q.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, q.Limit)
	sql += fmt.Sprintf(" ORDER BY received_at ASC, id ASC LIMIT $%d", len(args))

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var ev models.Event
		var payload []byte
		if err := rows.Scan(&ev.Topic, &ev.EventID, &ev.Timestamp, &ev.Source, &payload, &ev.ReceivedAt); err != nil {
			return nil, unavailable(err)
		}
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// Stats reads the counter row and the topic set in one transaction so the
// snapshot cannot tear against a concurrent admission.
func (p *PostgresStore) Stats(ctx context.Context) (Counters, []string, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Counters{}, nil, unavailable(err)
	}
	defer tx.Rollback(ctx)

	var c Counters
	err = tx.QueryRow(ctx, `
		SELECT received_count, unique_processed, duplicate_dropped
		FROM statistics WHERE id = 1
	`).Scan(&c.Received, &c.Unique, &c.Duplicates)
	if err != nil {
		return Counters{}, nil, unavailable(err)
	}

	rows, err := tx.Query(ctx, `SELECT topic FROM stat_topics ORDER BY topic`)
	if err != nil {
		return Counters{}, nil, unavailable(err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return Counters{}, nil, unavailable(err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return Counters{}, nil, unavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Counters{}, nil, unavailable(err)
	}
	return c, topics, nil
}

// ResetStats zeroes the counters and clears the topic set. Events stay put,
// so previously admitted identities keep resolving as duplicates.
func (p *PostgresStore) ResetStats(ctx context.Context) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE statistics
		SET received_count = 0,
		    unique_processed = 0,
		    duplicate_dropped = 0,
		    updated_at = now()
		WHERE id = 1
	`)
	if err == nil {
		_, err = tx.Exec(ctx, `DELETE FROM stat_topics`)
	}
	if err != nil {
		return unavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}
