// Package relational executes collection CRUD against PostgreSQL tables
// named after the collection.
package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/doj-records/records/internal/platform/db"
	"github.com/doj-records/records/internal/storage/record"
)

const defaultPingTimeout = 2 * time.Second

var (
	// ErrNotFound indicates no row carries the requested id.
	ErrNotFound = errors.New("relational: not found")
	// ErrUnavailable indicates the adapter has no usable connection.
	ErrUnavailable = errors.New("relational: unavailable")
)

// Adapter runs parameterized statements over a database/sql handle.
type Adapter struct {
	conn        *sql.DB
	logger      *slog.Logger
	pingTimeout time.Duration
}

// New constructs an Adapter. A nil conn yields an adapter that always
// reports itself unavailable.
func New(conn *sql.DB, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{conn: conn, logger: logger, pingTimeout: defaultPingTimeout}
}

// Available pings the database.
func (a *Adapter) Available(ctx context.Context) bool {
	if a == nil || a.conn == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, a.pingTimeout)
	defer cancel()
	if err := a.conn.PingContext(ctx); err != nil {
		a.logger.WarnContext(ctx, "relational ping", slog.Any("error", err))
		return false
	}
	return true
}

// TableExists probes the catalog for public.<table>.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	if a == nil || a.conn == nil {
		return false, ErrUnavailable
	}
	var regclass sql.NullString
	if err := a.conn.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, "public."+table).Scan(&regclass); err != nil {
		return false, fmt.Errorf("relational: probe %s: %w", table, err)
	}
	return regclass.Valid && regclass.String != "", nil
}

// FindByID returns the row with the given id.
func (a *Adapter) FindByID(ctx context.Context, table, id string) (record.Record, bool, error) {
	if a == nil || a.conn == nil {
		return nil, false, ErrUnavailable
	}
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1`, ident(table), ident(record.FieldID))
	rows, err := a.conn.QueryContext(ctx, query, id)
	if err != nil {
		return nil, false, fmt.Errorf("relational: find %s: %w", table, err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, false, fmt.Errorf("relational: find %s: %w", table, err)
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return recs[0], true, nil
}

// Insert writes rec as a new row.
func (a *Adapter) Insert(ctx context.Context, table string, rec record.Record) error {
	if a == nil || a.conn == nil {
		return ErrUnavailable
	}
	cols := sortedFields(rec)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		names[i] = ident(col)
		marks[i] = fmt.Sprintf("$%d", i+1)
		v, err := bindValue(rec[col])
		if err != nil {
			return fmt.Errorf("relational: insert %s.%s: %w", table, col, err)
		}
		args[i] = v
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, ident(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := a.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("relational: insert %s: %w", table, err)
	}
	return nil
}

// Update replaces the row's columns with rec, keeping the stored
// date_created. The read and the write share one transaction.
func (a *Adapter) Update(ctx context.Context, table, id string, rec record.Record) error {
	if a == nil || a.conn == nil {
		return ErrUnavailable
	}
	rec = rec.Clone()
	rec[record.FieldID] = id
	return db.WithTx(ctx, a.conn, func(tx *sql.Tx) error {
		var created sql.NullString
		probe := fmt.Sprintf(`SELECT %s::text FROM %s WHERE %s = $1`, ident(record.FieldDateCreated), ident(table), ident(record.FieldID))
		err := tx.QueryRowContext(ctx, probe, id).Scan(&created)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrNotFound
		case err != nil:
			return fmt.Errorf("relational: update %s: read: %w", table, err)
		}
		if created.Valid {
			rec[record.FieldDateCreated] = created.String
		}

		cols := sortedFields(rec)
		sets := make([]string, 0, len(cols))
		args := make([]any, 0, len(cols)+1)
		for _, col := range cols {
			v, err := bindValue(rec[col])
			if err != nil {
				return fmt.Errorf("relational: update %s.%s: %w", table, col, err)
			}
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", ident(col), len(args)))
		}
		args = append(args, id)
		stmt := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $%d`, ident(table), strings.Join(sets, ", "), ident(record.FieldID), len(args))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("relational: update %s: %w", table, err)
		}
		return nil
	})
}

// Delete removes the row with the given id.
func (a *Adapter) Delete(ctx context.Context, table, id string) error {
	if a == nil || a.conn == nil {
		return ErrUnavailable
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, ident(table), ident(record.FieldID))
	res, err := a.conn.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("relational: delete %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Query returns rows whose columns equal every criterion.
func (a *Adapter) Query(ctx context.Context, table string, criteria map[string]any) ([]record.Record, error) {
	if a == nil || a.conn == nil {
		return nil, ErrUnavailable
	}
	query := fmt.Sprintf(`SELECT * FROM %s`, ident(table))
	var args []any
	if len(criteria) > 0 {
		fields := make([]string, 0, len(criteria))
		for f := range criteria {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		where := make([]string, len(fields))
		for i, f := range fields {
			v, err := bindValue(criteria[f])
			if err != nil {
				return nil, fmt.Errorf("relational: query %s.%s: %w", table, f, err)
			}
			args = append(args, v)
			where[i] = fmt.Sprintf("%s = $%d", ident(f), i+1)
		}
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("relational: query %s: %w", table, err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("relational: query %s: %w", table, err)
	}
	return recs, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedFields(rec record.Record) []string {
	cols := make([]string, 0, len(rec))
	for k := range rec {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// bindValue flattens nested values into JSON text so they fit a text or
// jsonb column.
func bindValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, []string, map[string][]string, record.Record:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	default:
		return v, nil
	}
}

func scanRecords(rows *sql.Rows) ([]record.Record, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(record.Record, len(cols))
		for i, col := range cols {
			rec[col] = columnValue(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func columnValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return decodeText(string(x))
	case string:
		return decodeText(x)
	case time.Time:
		return x.Format(record.TimeLayout)
	default:
		return v
	}
}

// decodeText restores JSON objects and arrays written by bindValue.
func decodeText(s string) any {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || (trimmed[0] != '{' && trimmed[0] != '[') || !json.Valid([]byte(trimmed)) {
		return s
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return s
	}
	return decoded
}
