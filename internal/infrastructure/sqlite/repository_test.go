package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dspacegw/internal/application"
	"dspacegw/internal/domain"
)

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRecordAndQuerySubmissions(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	submissions := []domain.Submission{
		{TxHash: "0xAA", From: "0x01", To: "0x02", Value: "0", DataSize: 4, SubmittedAt: base},
		{TxHash: "0xbb", From: "0x01", To: "0x03", Value: "42", DataSize: 0, SubmittedAt: base.Add(time.Minute)},
		{TxHash: "0xcc", From: "0x09", To: "0x02", Value: "1", DataSize: 2, SubmittedAt: base.Add(2 * time.Minute)},
	}
	for _, s := range submissions {
		if err := repo.RecordSubmission(ctx, s); err != nil {
			t.Fatalf("record %s: %v", s.TxHash, err)
		}
	}
	if err := repo.RecordSubmission(ctx, submissions[0]); err != nil {
		t.Fatalf("duplicate record should be ignored: %v", err)
	}

	all, err := repo.QuerySubmissions(ctx, application.SubmissionQueryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 || all[0].TxHash != "0xcc" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	fromOne, err := repo.QuerySubmissions(ctx, application.SubmissionQueryFilter{From: "0x01"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(fromOne) != 2 {
		t.Errorf("expected 2 submissions from 0x01, got %d", len(fromOne))
	}

	since := base.Add(30 * time.Second)
	recent, err := repo.QuerySubmissions(ctx, application.SubmissionQueryFilter{To: "0x02", Since: &since})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recent) != 1 || recent[0].TxHash != "0xcc" || !recent[0].SubmittedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("unexpected filtered result %+v", recent)
	}

	byHash, err := repo.QuerySubmissions(ctx, application.SubmissionQueryFilter{TxHash: "0xAA", Limit: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byHash) != 1 || byHash[0].Value != "0" || byHash[0].DataSize != 4 {
		t.Errorf("unexpected hash lookup %+v", byHash)
	}
}

func TestRecordAccountCreation(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()
	creation := domain.AccountCreation{Name: "alice", Address: "0xABC", Crypto: "crypto_eth", CreatedAt: time.Now()}
	if err := repo.RecordAccountCreation(ctx, creation); err != nil {
		t.Fatalf("record: %v", err)
	}
	var address string
	if err := repo.db.QueryRowContext(ctx, `SELECT address FROM accounts WHERE name = ?`, "alice").Scan(&address); err != nil {
		t.Fatalf("select: %v", err)
	}
	if address != "0xabc" {
		t.Errorf("unexpected address %s", address)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}
