package templating

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/store"

	_ "github.com/mattn/go-sqlite3"
)

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 12, 0, 0, 0, time.UTC)
}

// setupTestStore creates a SQLite store holding a few tagged pages.
func setupTestStore(tb testing.TB) *store.Store {
	tb.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(tb.TempDir(), "test.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	if err = store.SetupSchema(db); err != nil {
		tb.Fatalf("failed to setup schema: %v", err)
	}
	s, err := store.New(db)
	if err != nil {
		tb.Fatalf("failed to create store: %v", err)
	}
	tb.Cleanup(s.Close)

	pages := []store.Page{
		{Slug: "go-intro", Title: "Introducing Go", PublicationDate: day(1), Tags: "go tutorial"},
		{Slug: "go-advanced", Title: "Advanced Go", PublicationDate: day(3), Tags: "go advanced"},
		{Slug: "rust-intro", Title: "Introducing Rust", PublicationDate: day(2), Tags: "rust tutorial"},
		{Slug: "zig-intro", Title: "Zig for Beginners", PublicationDate: day(4), Tags: "zig tutorial"},
	}
	for _, p := range pages {
		p.SiteID = store.DefaultSiteID
		if _, err := s.CreatePage(context.Background(), p); err != nil {
			tb.Fatalf("failed to create page %s: %v", p.Slug, err)
		}
	}
	return s
}

func writeTemplate(tb testing.TB, dir, name, content string) {
	tb.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		tb.Fatalf("failed to write template %s: %v", name, err)
	}
}

// setupTestManager creates a TemplateManager for a single test's scope, with
// a page template, a template using dynamic directives, and a partial.
func setupTestManager(tb testing.TB) (*TemplateManager, *store.Store) {
	tb.Helper()
	s := setupTestStore(tb)
	dir := tb.TempDir()

	writeTemplate(tb, dir, "list.tmpl.html",
		"{% pages_with_tags \"go\" as posts %}\n<ul>{{range .posts}}<li>{{.Slug}}</li>{{end}}</ul>")
	writeTemplate(tb, dir, "related.tmpl.html",
		"{% pages_similar_with page.Slug limit 2 as similar %}\n"+
			"{% tags_of_pages_with_tags page.Tags as cloud %}\n"+
			`{{range .similar}}{{template "item.part.html" .}}{{end}}|{{range sortedTags .cloud}}{{.}} {{end}}`)
	writeTemplate(tb, dir, "item.part.html", `<li>{{.Title}}</li>`)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, s, DefaultConfig(), dir)
	if err != nil {
		tb.Fatalf("NewTemplateManager failed: %v", err)
	}
	return tm, s
}

func TestNewTemplateManager(t *testing.T) {
	tm, _ := setupTestManager(t)

	if got, want := tm.GetTemplateNames(false), []string{"list.tmpl.html", "related.tmpl.html"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetTemplateNames(false) = %v, want %v", got, want)
	}
	if got, want := tm.GetTemplateNames(true), []string{"item.part.html", "list.tmpl.html", "related.tmpl.html"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetTemplateNames(true) = %v, want %v", got, want)
	}
	if got, want := tm.Directives(), []string{"pages_similar_with", "pages_with_tags", "tags_of_pages_with_tags"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Directives() = %v, want %v", got, want)
	}
	if n := len(tm.directives["related.tmpl.html"]); n != 2 {
		t.Errorf("related.tmpl.html compiled %d directives, want 2", n)
	}
	if !tm.HasTemplate("list.tmpl.html") || tm.HasTemplate("item.part.html") {
		t.Error("HasTemplate should report page templates only")
	}
}

func TestManager_Execute(t *testing.T) {
	tm, s := setupTestManager(t)
	ctx := context.Background()

	var buf bytes.Buffer
	if err := tm.Execute(ctx, &buf, "list.tmpl.html", nil); err != nil {
		t.Fatalf("Execute failed for valid template: %v", err)
	}
	if want := "<ul><li>go-advanced</li><li>go-intro</li></ul>"; buf.String() != want {
		t.Errorf("expected output %q, got %q", want, buf.String())
	}

	page, err := s.GetPage(ctx, store.DefaultSiteID, "go-intro")
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err = tm.Execute(ctx, &buf, "related.tmpl.html", map[string]any{"page": page}); err != nil {
		t.Fatalf("Execute failed for related template: %v", err)
	}
	want := "<li>Zig for Beginners</li><li>Advanced Go</li>|advanced go rust tutorial zig "
	if buf.String() != want {
		t.Errorf("expected output %q, got %q", want, buf.String())
	}

	err = tm.Execute(ctx, &buf, "nonexistent.tmpl.html", nil)
	if err == nil {
		t.Fatal("expected an error for non-existent template, but got nil")
	}
	// html/template returns a specific error message format
	expectedErrString := `html/template: "nonexistent.tmpl.html" is undefined`
	if !strings.Contains(err.Error(), expectedErrString) {
		t.Errorf("error message mismatch: got '%v', expected to contain '%s'", err, expectedErrString)
	}
}

func TestManager_ExecuteMissingSlugVariable(t *testing.T) {
	tm, _ := setupTestManager(t)
	err := tm.Execute(context.Background(), io.Discard, "related.tmpl.html", nil)
	if !errors.Is(err, directive.ErrVariableNotFound) {
		t.Errorf("Execute() error = %v, want ErrVariableNotFound", err)
	}
}

func TestManager_ExecuteTemplateString(t *testing.T) {
	tm, _ := setupTestManager(t)
	var buf bytes.Buffer
	content := "{% pages_with_tags wanted order alphabetical limit 2 as r %}\n" +
		`{{range .r}}{{template "item.part.html" .}}{{end}}`
	err := tm.ExecuteTemplateString(context.Background(), &buf, content, map[string]any{"wanted": "tutorial"})
	if err != nil {
		t.Fatalf("ExecuteTemplateString failed: %v", err)
	}
	if want := "<li>Introducing Go</li><li>Introducing Rust</li>"; buf.String() != want {
		t.Errorf("expected output %q, got %q", want, buf.String())
	}

	// Executing named templates must not break later string executions.
	if err = tm.Execute(context.Background(), io.Discard, "list.tmpl.html", nil); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err = tm.ExecuteTemplateString(context.Background(), &buf, `{{add 1 2}}`, nil); err != nil {
		t.Fatalf("second ExecuteTemplateString failed: %v", err)
	}
	if buf.String() != "3" {
		t.Errorf("expected output '3', got %q", buf.String())
	}

	err = tm.ExecuteTemplateString(context.Background(), io.Discard, "line one\n{% pages_with_tag \"go\" as r %}", nil)
	var syntaxErr *directive.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected a syntax error for an unknown directive, got %v", err)
	}
	if syntaxErr.Line != 2 || !strings.Contains(syntaxErr.Msg, `did you mean "pages_with_tags"?`) {
		t.Errorf("unexpected syntax error: %v", syntaxErr)
	}
}

func TestManager_Refresh(t *testing.T) {
	tm, _ := setupTestManager(t)
	initialCount := len(tm.GetTemplateNames(false))

	writeTemplate(t, tm.GetTemplateDir(), "new.tmpl.html", `New Content`)
	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if n := len(tm.GetTemplateNames(false)); n != initialCount+1 {
		t.Errorf("expected %d templates after refresh, got %d", initialCount+1, n)
	}

	t.Run("syntax error keeps previous set", func(t *testing.T) {
		writeTemplate(t, tm.GetTemplateDir(), "broken.tmpl.html", "ok\n\n{% pages_with_tags as r %}")
		t.Cleanup(func() { _ = os.Remove(filepath.Join(tm.GetTemplateDir(), "broken.tmpl.html")) })

		err := tm.Refresh()
		var syntaxErr *directive.SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("Refresh() error = %v, want *SyntaxError", err)
		}
		if syntaxErr.Line != 3 {
			t.Errorf("syntax error line = %d, want 3", syntaxErr.Line)
		}
		if !strings.HasPrefix(err.Error(), "broken.tmpl.html: line 3:") {
			t.Errorf("error %q should name the template and line", err)
		}
		if n := len(tm.GetTemplateNames(false)); n != initialCount+1 {
			t.Errorf("failed refresh changed the template set: got %d templates", n)
		}
		if err = tm.Execute(context.Background(), io.Discard, "list.tmpl.html", nil); err != nil {
			t.Errorf("previous set should still execute: %v", err)
		}
	})

	t.Run("directives in partials are rejected", func(t *testing.T) {
		writeTemplate(t, tm.GetTemplateDir(), "bad.part.html", `{% pages_with_tags "go" as r %}`)
		t.Cleanup(func() { _ = os.Remove(filepath.Join(tm.GetTemplateDir(), "bad.part.html")) })

		err := tm.Refresh()
		if err == nil || !strings.Contains(err.Error(), "not allowed in partials") {
			t.Errorf("Refresh() error = %v, want partial rejection", err)
		}
	})
}

func TestManager_SetConfig(t *testing.T) {
	tm, _ := setupTestManager(t)
	newConfig := DefaultConfig()
	newConfig.MaxResults = 1
	newConfig.MarkdownEnabled = false
	if err := tm.SetConfig(newConfig); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	if got := tm.GetConfig(); got != newConfig {
		t.Errorf("GetConfig() = %+v, want %+v", got, newConfig)
	}

	var buf bytes.Buffer
	if err := tm.Execute(context.Background(), &buf, "list.tmpl.html", nil); err != nil {
		t.Fatal(err)
	}
	if want := "<ul><li>go-advanced</li></ul>"; buf.String() != want {
		t.Errorf("MaxResults not applied: got %q, want %q", buf.String(), want)
	}
}

func TestManager_ConcurrentExecute(t *testing.T) {
	tm, _ := setupTestManager(t)
	want := "<ul><li>go-advanced</li><li>go-intro</li></ul>"

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			if err := tm.Execute(context.Background(), &buf, "list.tmpl.html", nil); err != nil {
				t.Errorf("Execute failed: %v", err)
				return
			}
			if buf.String() != want {
				t.Errorf("got %q, want %q", buf.String(), want)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tm.Refresh(); err != nil {
			t.Errorf("Refresh failed: %v", err)
		}
	}()
	wg.Wait()
}

// BenchmarkExecute_Directives measures a render running all three directives.
func BenchmarkExecute_Directives(b *testing.B) {
	tm, s := setupTestManager(b)
	page, err := s.GetPage(context.Background(), store.DefaultSiteID, "go-intro")
	if err != nil {
		b.Fatal(err)
	}
	vars := map[string]any{"page": page}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tm.Execute(context.Background(), io.Discard, "related.tmpl.html", vars)
		_ = tm.Execute(context.Background(), io.Discard, "list.tmpl.html", vars)
	}
}
