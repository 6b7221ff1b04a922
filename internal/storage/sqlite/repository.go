// Package sqlite stores budget documents as JSON rows in an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"babybudget/internal/core"
	"babybudget/internal/storage"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository opens (creating if needed) the database at dbPath and runs
// migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the version check still guards read-modify-write.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) FindBudget(ctx context.Context, userID string) (*core.Budget, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM budgets WHERE user_id = ?`, userID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrBudgetNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("select budget %s: %w", userID, err)
	}

	var rec core.BudgetRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("decode budget %s: %w", userID, err)
	}
	return core.RestoreBudget(rec)
}

func (r *Repository) SaveBudget(ctx context.Context, b *core.Budget) error {
	rec := storage.NextRecord(b, r.now())
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode budget %s: %w", b.UserID(), err)
	}

	var res sql.Result
	if b.IsNew() {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO budgets (user_id, document, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO NOTHING`,
			rec.UserID, string(doc), rec.Version,
			rec.CreatedAt.Format(timeLayout), rec.UpdatedAt.Format(timeLayout),
		)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE budgets SET document = ?, version = ?, updated_at = ?
			 WHERE user_id = ? AND version = ?`,
			string(doc), rec.Version, rec.UpdatedAt.Format(timeLayout),
			rec.UserID, b.Version(),
		)
	}
	if err != nil {
		return fmt.Errorf("write budget %s: %w", b.UserID(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write budget %s: %w", b.UserID(), err)
	}
	if n == 0 {
		return fmt.Errorf("%w: budget %s changed since version %d", core.ErrConflict, b.UserID(), b.Version())
	}

	b.MarkPersisted(rec.Version, rec.UpdatedAt)
	return nil
}

func (r *Repository) DeleteBudget(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrBudgetNotFound, userID)
	}
	return nil
}
