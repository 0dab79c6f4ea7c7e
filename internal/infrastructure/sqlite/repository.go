// Package sqlite keeps the gateway's transaction journal in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"dspacegw/internal/application"
	"dspacegw/internal/domain"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			tx_hash TEXT PRIMARY KEY,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			value TEXT NOT NULL,
			data_size INTEGER NOT NULL,
			submitted_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS submissions_from_idx ON submissions (from_addr, submitted_at)`,
		`CREATE INDEX IF NOT EXISTS submissions_to_idx ON submissions (to_addr, submitted_at)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			name TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			crypto TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO submissions (tx_hash, from_addr, to_addr, value, data_size, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO NOTHING`,
		strings.ToLower(submission.TxHash),
		strings.ToLower(submission.From),
		strings.ToLower(submission.To),
		submission.Value,
		submission.DataSize,
		submission.SubmittedAt.UnixMilli(),
	)
	return err
}

func (r *Repository) RecordAccountCreation(ctx context.Context, creation domain.AccountCreation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (name, address, crypto, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET address = excluded.address, crypto = excluded.crypto, created_at = excluded.created_at`,
		creation.Name,
		strings.ToLower(creation.Address),
		creation.Crypto,
		creation.CreatedAt.UnixMilli(),
	)
	return err
}

func (r *Repository) QuerySubmissions(ctx context.Context, filter application.SubmissionQueryFilter) ([]domain.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clauses := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if filter.From != "" {
		clauses = append(clauses, "from_addr = ?")
		args = append(args, strings.ToLower(filter.From))
	}
	if filter.To != "" {
		clauses = append(clauses, "to_addr = ?")
		args = append(args, strings.ToLower(filter.To))
	}
	if filter.TxHash != "" {
		clauses = append(clauses, "tx_hash = ?")
		args = append(args, strings.ToLower(filter.TxHash))
	}
	if filter.Since != nil {
		clauses = append(clauses, "submitted_at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if filter.Until != nil {
		clauses = append(clauses, "submitted_at <= ?")
		args = append(args, filter.Until.UnixMilli())
	}

	query := `SELECT tx_hash, from_addr, to_addr, value, data_size, submitted_at FROM submissions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY submitted_at DESC, tx_hash ASC LIMIT ?"
	args = append(args, application.NormalizeLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]domain.Submission, 0)
	for rows.Next() {
		var s domain.Submission
		var submittedAt int64
		if err := rows.Scan(&s.TxHash, &s.From, &s.To, &s.Value, &s.DataSize, &submittedAt); err != nil {
			return nil, err
		}
		s.SubmittedAt = time.UnixMilli(submittedAt).UTC()
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
