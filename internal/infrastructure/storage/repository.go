// Package storage selects the journal backend from a JOURNAL_DSN value.
package storage

import (
	"context"
	"fmt"
	"strings"

	"dspacegw/internal/application"
	"dspacegw/internal/infrastructure/mysql"
	"dspacegw/internal/infrastructure/sqlite"
)

// Journal records gateway activity and answers journal queries.
type Journal interface {
	application.Recorder
	application.JournalReader
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Journal = (*sqlite.Repository)(nil)
	_ Journal = (*mysql.Repository)(nil)
)

// OpenJournal accepts "sqlite:<path>" or "mysql:<dsn>". An empty dsn yields a
// nil journal.
func OpenJournal(dsn string) (Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	driver, target, ok := strings.Cut(dsn, ":")
	if !ok || target == "" {
		return nil, fmt.Errorf("journal dsn %q must look like <driver>:<target>", dsn)
	}
	switch driver {
	case "sqlite":
		repo, err := sqlite.NewRepository(target)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return repo, nil
	case "mysql":
		repo, err := mysql.NewRepository(target)
		if err != nil {
			return nil, fmt.Errorf("open mysql journal: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}
}
