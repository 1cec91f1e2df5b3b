package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"paytrack/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

const transactionColumns = `id, date, amount, type, description, category, payee,
	recurring_template_id, is_template, recurrence_pattern, created_at`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction implements services.TransactionStore. CreatedAt is
// stamped here when the caller left it unset, mirroring the schema's
// CURRENT_TIMESTAMP default.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			date, amount, type, description, category, payee,
			recurring_template_id, is_template, recurrence_pattern, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(),
		t.Amount,
		string(t.Type),
		t.Description,
		t.Category,
		t.Payee,
		nullableID(t.RecurringTemplateID),
		boolToInt(t.IsTemplate),
		nullablePattern(t.RecurrencePattern),
		t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"date", t.Date.String(),
		"type", t.Type,
		"amount", t.Amount,
		"is_template", t.IsTemplate)

	return t, nil
}

// GetTransaction returns core.ErrNotFound for unknown ids.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == 0 {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", core.ErrNotFound)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			date = ?, amount = ?, type = ?, description = ?,
			category = ?, payee = ?, recurring_template_id = ?,
			is_template = ?, recurrence_pattern = ?
		WHERE id = ?`,
		t.Date.String(),
		t.Amount,
		string(t.Type),
		t.Description,
		t.Category,
		t.Payee,
		nullableID(t.RecurringTemplateID),
		boolToInt(t.IsTemplate),
		nullablePattern(t.RecurrencePattern),
		t.ID,
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

// DeleteTransaction reports whether a row was removed. Instances of a
// deleted template are left in place; cleanup is the caller's policy.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// TransactionsByDateRange returns rows with date inside the inclusive
// range, ordered by (date, id) ascending. A zero start date leaves the
// lower bound open; balance queries rely on that.
func (r *SQLiteRepository) TransactionsByDateRange(ctx context.Context, start, end core.Date, typeFilter core.TransactionType, includeTemplates bool) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE date <= ?`
	args := []any{end.String()}

	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.String())
	}
	if !includeTemplates {
		query += ` AND is_template = 0`
	}
	if typeFilter != "" {
		query += ` AND type = ?`
		args = append(args, string(typeFilter))
	}
	query += ` ORDER BY date ASC, id ASC`

	return r.queryTransactions(ctx, query, args...)
}

// Templates returns every recurrence template ordered by anchor date.
func (r *SQLiteRepository) Templates(ctx context.Context) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE is_template = 1 ORDER BY date ASC, id ASC`)
}

// InstancesOfTemplate returns the persisted instances generated from a
// template, ordered by (date, id).
func (r *SQLiteRepository) InstancesOfTemplate(ctx context.Context, templateID int64) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE recurring_template_id = ? ORDER BY date ASC, id ASC`, templateID)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		dateStr    string
		typeStr    string
		templateID sql.NullInt64
		isTemplate int64
		pattern    sql.NullString
		createdAt  string
	)

	err := s.Scan(&t.ID, &dateStr, &t.Amount, &typeStr, &t.Description,
		&t.Category, &t.Payee, &templateID, &isTemplate, &pattern, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}

	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	t.Date = core.Date{Time: date}
	t.Type = core.TransactionType(typeStr)
	if templateID.Valid {
		t.RecurringTemplateID = templateID.Int64
	}
	t.IsTemplate = isTemplate == 1
	if pattern.Valid {
		t.RecurrencePattern = core.RecurrencePattern(pattern.String)
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}

	return t, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullablePattern(p core.RecurrencePattern) sql.NullString {
	return sql.NullString{String: string(p), Valid: p != ""}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
