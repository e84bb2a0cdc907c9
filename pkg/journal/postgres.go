package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowco/flowsync/pkg/flow"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS flowsync_envelopes (
    event_id   TEXT PRIMARY KEY,
    session    TEXT NOT NULL DEFAULT '',
    ts         BIGINT NOT NULL,
    body       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_flowsync_envelopes_session_ts ON flowsync_envelopes(session, ts);
`

const (
	postgresInsert = `INSERT INTO flowsync_envelopes (event_id, session, ts, body)
VALUES ($1, $2, $3, $4) ON CONFLICT (event_id) DO NOTHING`

	postgresList = `SELECT body FROM flowsync_envelopes
WHERE ($1 = '' OR session = $1) AND ts > $2
ORDER BY ts DESC
LIMIT $3`

	postgresSessions = `SELECT DISTINCT session FROM flowsync_envelopes ORDER BY session`
)

// PostgresJournal stores envelopes as JSONB rows.
type PostgresJournal struct {
	db    *pgxpool.Pool
	owned bool
}

// NewPostgresJournal opens a pool for url, verifies it and creates the
// schema if needed.
func NewPostgresJournal(ctx context.Context, url string) (*PostgresJournal, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres journal: no url configured")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	j := &PostgresJournal{db: pool, owned: true}
	if err := j.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// NewPostgresJournalFromPool uses an existing pool. Close leaves it open.
func NewPostgresJournalFromPool(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// CreateSchema creates the envelope table if it doesn't exist.
func (j *PostgresJournal) CreateSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("journal: create schema: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Append(ctx context.Context, env flow.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("journal: marshal envelope: %w", err)
	}
	if _, err := j.db.Exec(ctx, postgresInsert, env.EventID, env.Session, env.Timestamp, body); err != nil {
		return fmt.Errorf("journal: insert envelope: %w", err)
	}
	return nil
}

func (j *PostgresJournal) List(ctx context.Context, q Query) ([]flow.Envelope, error) {
	rows, err := j.db.Query(ctx, postgresList, listArgs(q)...)
	if err != nil {
		return nil, fmt.Errorf("journal: list envelopes: %w", err)
	}
	defer rows.Close()

	out := []flow.Envelope{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("journal: scan envelope: %w", err)
		}
		var env flow.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("journal: decode envelope: %w", err)
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows envelopes: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

func (j *PostgresJournal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.Query(ctx, postgresSessions)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("journal: scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows sessions: %w", err)
	}
	return out, nil
}

func (j *PostgresJournal) Close() error {
	if j.owned {
		j.db.Close()
	}
	return nil
}

// listArgs binds q to postgresList. A nil limit is LIMIT NULL, i.e. no limit.
func listArgs(q Query) []any {
	var limit *int64
	if q.Limit > 0 {
		n := int64(q.Limit)
		limit = &n
	}
	return []any{q.Session, q.Since, limit}
}

var _ Journal = (*PostgresJournal)(nil)
