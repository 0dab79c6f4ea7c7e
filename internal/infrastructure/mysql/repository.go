// Package mysql keeps the gateway's transaction journal in a shared MySQL database.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"dspacegw/internal/application"
	"dspacegw/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", withParseTime(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// withParseTime makes the driver scan DATETIME columns into time.Time.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			tx_hash VARCHAR(66) NOT NULL,
			from_addr VARCHAR(42) NOT NULL,
			to_addr VARCHAR(42) NOT NULL,
			value DECIMAL(78,0) NOT NULL,
			data_size BIGINT UNSIGNED NOT NULL,
			submitted_at DATETIME(3) NOT NULL,
			PRIMARY KEY (tx_hash),
			KEY submissions_from_idx (from_addr, submitted_at),
			KEY submissions_to_idx (to_addr, submitted_at)
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			name VARCHAR(64) NOT NULL,
			address VARCHAR(42) NOT NULL,
			crypto VARCHAR(16) NOT NULL,
			created_at DATETIME(3) NOT NULL,
			PRIMARY KEY (name)
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
	ctx, span := startDBSpan(ctx, "mysql.RecordSubmission", attribute.String("tx.hash", submission.TxHash))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT IGNORE INTO submissions (tx_hash, from_addr, to_addr, value, data_size, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		strings.ToLower(submission.TxHash),
		strings.ToLower(submission.From),
		strings.ToLower(submission.To),
		submission.Value,
		submission.DataSize,
		submission.SubmittedAt.UTC(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) RecordAccountCreation(ctx context.Context, creation domain.AccountCreation) error {
	ctx, span := startDBSpan(ctx, "mysql.RecordAccountCreation", attribute.String("account.name", creation.Name))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (name, address, crypto, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE address = VALUES(address), crypto = VALUES(crypto), created_at = VALUES(created_at)`,
		creation.Name,
		strings.ToLower(creation.Address),
		creation.Crypto,
		creation.CreatedAt.UTC(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) QuerySubmissions(ctx context.Context, filter application.SubmissionQueryFilter) ([]domain.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args := submissionQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]domain.Submission, 0)
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.TxHash, &s.From, &s.To, &s.Value, &s.DataSize, &s.SubmittedAt); err != nil {
			return nil, err
		}
		s.SubmittedAt = s.SubmittedAt.UTC()
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

func submissionQuery(filter application.SubmissionQueryFilter) (string, []any) {
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
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		clauses = append(clauses, "submitted_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	query := `SELECT tx_hash, from_addr, to_addr, CAST(value AS CHAR), data_size, submitted_at FROM submissions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY submitted_at DESC, tx_hash ASC LIMIT ?"
	args = append(args, application.NormalizeLimit(filter.Limit))
	return query, args
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("dspacegw/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
