package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestStore creates a new SQLite database in a temp dir and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 12, 0, 0, 0, time.UTC)
}

// setupTestStoreWithPages is a convenience helper that also creates a small
// set of tagged pages on the default site.
//
//	go-intro    2024-01-01  go tutorial
//	go-advanced 2024-01-03  go advanced
//	rust-intro  2024-01-02  rust tutorial
//	about       unpublished "about us"
func setupTestStoreWithPages(t *testing.T) (context.Context, *Store) {
	t.Helper()
	_, s := setupTestStore(t)
	ctx := context.Background()

	pages := []Page{
		{Slug: "go-intro", Title: "Introducing Go", PublicationDate: day(1), Tags: "go tutorial"},
		{Slug: "go-advanced", Title: "Advanced Go", PublicationDate: day(3), Tags: "go advanced"},
		{Slug: "rust-intro", Title: "Introducing Rust", PublicationDate: day(2), Tags: "rust tutorial"},
		{Slug: "about", Title: "About", Tags: `"about us"`},
	}
	for _, p := range pages {
		p.SiteID = DefaultSiteID
		if _, err := s.CreatePage(ctx, p); err != nil {
			t.Fatalf("setup: CreatePage(%s) failed: %v", p.Slug, err)
		}
	}
	return ctx, s
}

func slugs(pages []Page) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Slug)
	}
	return out
}
