package pagetags

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/store"

	_ "github.com/mattn/go-sqlite3"
)

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 12, 0, 0, 0, time.UTC)
}

// setupTestLibrary creates a store with a handful of tagged pages and a
// library with the page tag directives registered against it.
//
//	go-intro    2024-01-01  go tutorial
//	go-advanced 2024-01-03  go advanced
//	rust-intro  2024-01-02  rust tutorial
//	zig-intro   2024-01-04  zig tutorial
//	about       unpublished "about us"
func setupTestLibrary(t *testing.T, opts ...Option) (*directive.Library, *store.Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = store.SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	s, err := store.New(db)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(s.Close)

	pages := []store.Page{
		{Slug: "go-intro", Title: "Introducing Go", PublicationDate: day(1), Tags: "go tutorial"},
		{Slug: "go-advanced", Title: "Advanced Go", PublicationDate: day(3), Tags: "go advanced"},
		{Slug: "rust-intro", Title: "Introducing Rust", PublicationDate: day(2), Tags: "rust tutorial"},
		{Slug: "zig-intro", Title: "Zig for Beginners", PublicationDate: day(4), Tags: "zig tutorial"},
		{Slug: "about", Title: "About", Tags: `"about us"`},
	}
	for _, p := range pages {
		p.SiteID = store.DefaultSiteID
		if _, err := s.CreatePage(context.Background(), p); err != nil {
			t.Fatalf("setup: CreatePage(%s) failed: %v", p.Slug, err)
		}
	}

	lib := directive.NewLibrary()
	if err := Register(lib, s, opts...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return lib, s
}

func compile(t *testing.T, lib *directive.Library, contents string) directive.Node {
	t.Helper()
	node, err := lib.Compile(directive.Token{Contents: contents, Line: 1})
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", contents, err)
	}
	return node
}

func render(t *testing.T, node directive.Node, rc directive.Context) {
	t.Helper()
	out, err := node.Render(context.Background(), rc)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "" {
		t.Errorf("Render() output = %q, want empty", out)
	}
}

func slugs(t *testing.T, v any) []string {
	t.Helper()
	pages, ok := v.([]store.Page)
	if !ok {
		t.Fatalf("result is %T, want []store.Page", v)
	}
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Slug)
	}
	return out
}
