package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

const (
	postgresTable            = "processed_messages"
	postgresOperationTimeout = 5 * time.Second
	messageColumns           = "id, wa_id, name, body, type, status, from_me, created_at, metadata"
)

var postgresColumns = map[string]string{
	fieldWaID:      "wa_id",
	fieldName:      "name",
	fieldBody:      "body",
	fieldType:      "type",
	fieldStatus:    "status",
	fieldFromMe:    "from_me",
	fieldCreatedAt: "created_at",
	fieldMetadata:  "metadata",
}

type PostgresMessageRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresMessageRepo connects, pings and makes sure the table exists.
func NewPostgresMessageRepo(ctx context.Context, dsn string) (*PostgresMessageRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	r := &PostgresMessageRepo{pool: pool, now: time.Now}
	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := r.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresMessageRepo) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+postgresTable+` (
			id         TEXT PRIMARY KEY,
			wa_id      TEXT NOT NULL,
			name       TEXT,
			body       TEXT NOT NULL DEFAULT '',
			type       TEXT NOT NULL DEFAULT 'text',
			status     TEXT NOT NULL DEFAULT 'sent',
			from_me    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			metadata   JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_`+postgresTable+`_wa_id_created_at
			ON `+postgresTable+` (wa_id, created_at);
	`)
	return err
}

func (r *PostgresMessageRepo) Upsert(ctx context.Context, u Upsert) (model.Message, error) {
	if u.ID == "" {
		return model.Message{}, fmt.Errorf("upsert id must not be empty")
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query, args := buildPostgresUpsert(u, r.now())
	return scanMessage(r.pool.QueryRow(ctx, query, args...))
}

// buildPostgresUpsert renders one INSERT ... ON CONFLICT statement. The VALUES
// row is what a fresh insert would hold; the DO UPDATE clause copies back only
// the always-set columns, so insert-only defaults never touch an existing row.
func buildPostgresUpsert(u Upsert, now time.Time) (string, []any) {
	row := u.inserted(now)
	args := []any{
		row.ID,
		row.WaID,
		nullIfEmpty(row.Name),
		row.Body,
		row.Type,
		string(row.Status),
		row.FromMe,
		row.CreatedAt,
		row.Metadata,
	}

	set := u.Set.values()
	assigns := make([]string, 0, len(set))
	for _, f := range fieldOrder {
		if _, ok := set[f]; !ok {
			continue
		}
		col := postgresColumns[f]
		assigns = append(assigns, col+" = EXCLUDED."+col)
	}
	if len(assigns) == 0 {
		// DO NOTHING would suppress RETURNING for an existing row.
		assigns = append(assigns, "id = EXCLUDED.id")
	}

	query := `
		INSERT INTO ` + postgresTable + ` (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET ` + strings.Join(assigns, ", ") + `
		RETURNING ` + messageColumns
	return query, args
}

func (r *PostgresMessageRepo) FindByWaID(ctx context.Context, waID string) ([]model.Message, error) {
	return r.query(ctx, `
		SELECT `+messageColumns+`
		FROM `+postgresTable+`
		WHERE wa_id = $1
		ORDER BY created_at ASC, id ASC
	`, waID)
}

func (r *PostgresMessageRepo) FindAll(ctx context.Context) ([]model.Message, error) {
	return r.query(ctx, `
		SELECT `+messageColumns+`
		FROM `+postgresTable+`
		ORDER BY created_at ASC, id ASC
	`)
}

func (r *PostgresMessageRepo) query(ctx context.Context, sql string, args ...any) ([]model.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresMessageRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	return r.pool.Ping(ctx)
}

func (r *PostgresMessageRepo) Close() error {
	r.pool.Close()
	return nil
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var m model.Message
	var name *string
	var status string

	if err := row.Scan(
		&m.ID,
		&m.WaID,
		&name,
		&m.Body,
		&m.Type,
		&status,
		&m.FromMe,
		&m.CreatedAt,
		&m.Metadata,
	); err != nil {
		return model.Message{}, err
	}

	m.Status = model.Status(status)
	m.CreatedAt = m.CreatedAt.UTC()
	if name != nil {
		m.Name = *name
	}
	return m, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
