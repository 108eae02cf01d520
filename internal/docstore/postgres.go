package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/classroom-client/internal/apperr"
)

// PostgresStore keeps every collection in the documents table, one JSONB row
// per document, keyed by (collection, id).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks that the documents table is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT 1 FROM documents LIMIT 1`).Scan(&n); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("probe documents table: %w", err)
	}
	return nil
}

const selectColumns = `id, fields, created_at, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var raw []byte
	if err := row.Scan(&r.ID, &raw, &r.CreateTime, &r.UpdateTime); err != nil {
		return Record{}, err
	}
	r.Fields = make(map[string]any)
	if err := json.Unmarshal(raw, &r.Fields); err != nil {
		return Record{}, fmt.Errorf("decode fields: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, path, id string) (*Record, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM documents WHERE collection = $1 AND id = $2`, path, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageUnavailable, "docstore.get", err)
	}
	return &r, nil
}

// orderExpr returns the SQL ordering expression and, for field orders, appends
// the field name to args.
func orderExpr(order OrderBy, args []interface{}) (string, []interface{}) {
	if order.Field == CreateTimeField {
		return "created_at", args
	}
	args = append(args, order.Field)
	return "fields -> $" + strconv.Itoa(len(args)) + "::text", args
}

func direction(order OrderBy) (dir, cmp string) {
	if order.Desc {
		return "DESC", "<"
	}
	return "ASC", ">"
}

func (s *PostgresStore) QueryPage(ctx context.Context, path string, order OrderBy, after *Cursor, pageSize int) (Page, error) {
	const op = "docstore.query_page"
	if pageSize <= 0 {
		return Page{}, apperr.Validation(op, map[string]string{"page_size": "page_size must be positive"})
	}

	args := []interface{}{path}
	expr, args := orderExpr(order, args)
	dir, cmp := direction(order)

	query := `SELECT ` + selectColumns + ` FROM documents WHERE collection = $1`
	if after != nil {
		var err error
		var cond string
		cond, args, err = keysetCondition(expr, cmp, order, after, args)
		if err != nil {
			return Page{}, apperr.New(apperr.CodeBadCursor, op, err)
		}
		query += ` AND ` + cond
	}
	// One extra row tells whether another page exists.
	args = append(args, pageSize+1)
	query += ` ORDER BY ` + expr + ` ` + dir + `, id ` + dir + ` LIMIT $` + strconv.Itoa(len(args))

	records, err := s.collect(ctx, query, args)
	if err != nil {
		return Page{}, apperr.New(apperr.CodeStorageUnavailable, op, err)
	}

	var page Page
	if len(records) > pageSize {
		page.Records = records[:pageSize]
		page.Next = cursorFor(page.Records[pageSize-1], order)
	} else {
		page.Records = records
	}
	return page, nil
}

func keysetCondition(expr, cmp string, order OrderBy, after *Cursor, args []interface{}) (string, []interface{}, error) {
	if order.Field == CreateTimeField {
		s, _ := after.Value.(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return "", nil, fmt.Errorf("parse cursor time: %w", err)
		}
		args = append(args, t, after.ID)
		n := len(args)
		return `(created_at, id) ` + cmp + ` ($` + strconv.Itoa(n-1) + `::timestamptz, $` + strconv.Itoa(n) + `)`, args, nil
	}
	b, err := json.Marshal(after.Value)
	if err != nil {
		return "", nil, fmt.Errorf("encode cursor value: %w", err)
	}
	args = append(args, string(b), after.ID)
	n := len(args)
	return `(` + expr + `, id) ` + cmp + ` ($` + strconv.Itoa(n-1) + `::jsonb, $` + strconv.Itoa(n) + `)`, args, nil
}

func (s *PostgresStore) QueryWhere(ctx context.Context, path string, filter Filter, order OrderBy) ([]Record, error) {
	const op = "docstore.query_where"

	want := filter.Value
	cmpOp := "="
	if filter.Op == OpArrayContains {
		want = []any{filter.Value}
		cmpOp = "@>"
	}
	b, err := json.Marshal(want)
	if err != nil {
		return nil, apperr.New(apperr.CodeValidation, op, err)
	}

	args := []interface{}{path, filter.Field, string(b)}
	expr, args := orderExpr(order, args)
	dir, _ := direction(order)

	query := `SELECT ` + selectColumns + ` FROM documents
		 WHERE collection = $1 AND fields -> $2::text ` + cmpOp + ` $3::jsonb
		 ORDER BY ` + expr + ` ` + dir + `, id ` + dir
	records, err := s.collect(ctx, query, args)
	if err != nil {
		return nil, apperr.New(apperr.CodeStorageUnavailable, op, err)
	}
	return records, nil
}

func (s *PostgresStore) collect(ctx context.Context, query string, args []interface{}) ([]Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) CreateDocument(ctx context.Context, path string, fields map[string]any) (string, error) {
	const op = "docstore.create"
	b, err := json.Marshal(fieldsOrEmpty(fields))
	if err != nil {
		return "", apperr.New(apperr.CodeValidation, op, err)
	}
	id := uuid.New().String()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`,
		path, id, string(b)); err != nil {
		return "", apperr.New(apperr.CodeStorageUnavailable, op, err)
	}
	return id, nil
}

func (s *PostgresStore) SetDocument(ctx context.Context, path, id string, fields map[string]any) error {
	const op = "docstore.set"
	b, err := json.Marshal(fieldsOrEmpty(fields))
	if err != nil {
		return apperr.New(apperr.CodeValidation, op, err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()`,
		path, id, string(b)); err != nil {
		return apperr.New(apperr.CodeStorageUnavailable, op, err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, path, id string, fields map[string]any) error {
	const op = "docstore.update"
	b, err := json.Marshal(fieldsOrEmpty(fields))
	if err != nil {
		return apperr.New(apperr.CodeValidation, op, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET fields = fields || $3::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		path, id, string(b))
	if err != nil {
		return apperr.New(apperr.CodeStorageUnavailable, op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, op, nil)
	}
	return nil
}

func fieldsOrEmpty(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return fields
}
