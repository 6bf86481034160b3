package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps every collection in a single JSONB table.
type Postgres struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(ctx context.Context, log *slog.Logger, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{log: log, pool: pool}, nil
}

func (s *Postgres) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection  TEXT NOT NULL,
			id          TEXT NOT NULL,
			body        JSONB NOT NULL,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_body ON documents USING GIN (body jsonb_path_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_inserted_at ON documents (collection, inserted_at DESC)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, collection, id string) ([]byte, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return body, err
}

func (s *Postgres) FindMany(ctx context.Context, collection string, f Filter, skip, limit int) ([][]byte, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return nil, err
	}
	q := &query{args: []any{collection}}
	where, err := q.filter(f)
	if err != nil {
		return nil, err
	}
	sql := `SELECT body FROM documents WHERE collection=$1` + where + orderBy(f.Order)
	sql += fmt.Sprintf(" OFFSET %s", q.arg(max(skip, 0)))
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %s", q.arg(limit))
	}

	rows, err := s.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

func (s *Postgres) Insert(ctx context.Context, collection, id string, doc []byte) (string, error) {
	if id == "" {
		id = NewID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb || jsonb_build_object('id', $2::text))`,
		collection, id, doc)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return "", ErrDuplicate
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Postgres) UpdateOne(ctx context.Context, collection string, f Filter, m Mutation) (bool, error) {
	if err := validate(f, nil, m); err != nil {
		return false, err
	}
	if m.empty() {
		n, err := s.Count(ctx, collection, f)
		return n > 0, err
	}
	q := &query{args: []any{collection}}
	where, err := q.filter(f)
	if err != nil {
		return false, err
	}
	set, err := q.mutation(m)
	if err != nil {
		return false, err
	}
	sql := `UPDATE documents SET body = ` + set + `
		WHERE collection=$1 AND id = (
			SELECT id FROM documents WHERE collection=$1` + where + orderBy(f.Order) + ` LIMIT 1 FOR UPDATE
		)`
	ct, err := s.pool.Exec(ctx, sql, q.args...)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Postgres) DeleteOne(ctx context.Context, collection, id string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Postgres) DeleteMany(ctx context.Context, collection string, f Filter) (int64, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return 0, err
	}
	q := &query{args: []any{collection}}
	where, err := q.filter(f)
	if err != nil {
		return 0, err
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1`+where, q.args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *Postgres) Count(ctx context.Context, collection string, f Filter) (int64, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return 0, err
	}
	q := &query{args: []any{collection}}
	where, err := q.filter(f)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE collection=$1`+where, q.args...).Scan(&n)
	return n, err
}

// ConditionalUpdate is one UPDATE statement: the row lock taken by the update
// serialises concurrent callers and the WHERE clause is re-evaluated against
// the latest row version before the new body is written.
func (s *Postgres) ConditionalUpdate(ctx context.Context, collection, id string, conds []Condition, m Mutation) ([]byte, error) {
	if err := validate(Filter{}, conds, m); err != nil {
		return nil, err
	}
	q := &query{args: []any{collection, id}}
	set, err := q.mutation(m)
	if err != nil {
		return nil, err
	}
	var where strings.Builder
	for _, c := range conds {
		switch c.Op {
		case OpEq:
			raw, err := json.Marshal(c.Value)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&where, " AND body->%s::text = %s::jsonb", q.arg(c.Field), q.arg(string(raw)))
		case OpGte:
			fmt.Fprintf(&where, " AND (body->>%s::text)::numeric >= %s::numeric", q.arg(c.Field), q.arg(c.Value))
		}
	}

	var body []byte
	err = s.pool.QueryRow(ctx,
		`UPDATE documents SET body = `+set+` WHERE collection=$1 AND id=$2`+where.String()+` RETURNING body`,
		q.args...).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return body, err
}

func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Postgres) Close(context.Context) error {
	s.pool.Close()
	return nil
}

type query struct {
	args []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *query) filter(f Filter) (string, error) {
	var b strings.Builder
	if len(f.Equals) > 0 {
		raw, err := json.Marshal(f.Equals)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " AND body @> %s::jsonb", q.arg(string(raw)))
	}
	if f.Match != nil && f.Match.Term != "" && len(f.Match.Fields) > 0 {
		term := q.arg(f.Match.Term)
		parts := make([]string, 0, len(f.Match.Fields))
		for _, field := range f.Match.Fields {
			parts = append(parts, fmt.Sprintf("strpos(lower(body->>%s::text), lower(%s::text)) > 0", q.arg(field), term))
		}
		b.WriteString(" AND (" + strings.Join(parts, " OR ") + ")")
	}
	return b.String(), nil
}

func (q *query) mutation(m Mutation) (string, error) {
	expr := "body"
	if len(m.Set) > 0 {
		raw, err := json.Marshal(m.Set)
		if err != nil {
			return "", err
		}
		expr = fmt.Sprintf("(%s || %s::jsonb)", expr, q.arg(string(raw)))
	}
	for _, field := range sortedKeys(m.Inc) {
		f := q.arg(field)
		expr = fmt.Sprintf("jsonb_set(%s, ARRAY[%s::text], to_jsonb(COALESCE((body->>%s::text)::bigint, 0) + %s::bigint))",
			expr, f, f, q.arg(m.Inc[field]))
	}
	return expr, nil
}

func orderBy(o Order) string {
	if o == Newest {
		return " ORDER BY inserted_at DESC, id"
	}
	return " ORDER BY id"
}
