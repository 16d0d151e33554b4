package templating

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/CTAG07/pagetags/pkg/pagetags"
	"github.com/CTAG07/pagetags/pkg/store"
)

// TestTemplateFunctions validates the behavior of each category of template functions.
func TestTemplateFunctions(t *testing.T) {
	tm, _ := setupTestManager(t)

	t.Run("TagFuncs", func(t *testing.T) {
		page := store.Page{Tags: `"new york" go`}
		tags, err := tagList(page)
		if err != nil {
			t.Fatalf("tagList failed: %v", err)
		}
		if want := []string{"new york", "go"}; !reflect.DeepEqual(tags, want) {
			t.Errorf("tagList = %v, want %v", tags, want)
		}
		if _, err = tagList(42); err == nil {
			t.Error("tagList should reject unsupported types")
		}

		sorted, err := sortedTags(pagetags.TagSet{"zig": {}, "go": {}})
		if err != nil || !reflect.DeepEqual(sorted, []string{"go", "zig"}) {
			t.Errorf("sortedTags(TagSet) = %v, %v", sorted, err)
		}
		if got := joinTags(", ", tags); got != "new york, go" {
			t.Errorf("joinTags = %q", got)
		}
	})

	t.Run("ContentFuncs", func(t *testing.T) {
		html := string(tm.markdown("# Hello\n\nSome *text*."))
		if !strings.Contains(html, "<h1>Hello</h1>") || !strings.Contains(html, "<em>text</em>") {
			t.Errorf("markdown rendered unexpected HTML: %q", html)
		}

		if got := naturalTime(time.Time{}); got != "" {
			t.Errorf("naturalTime(zero) = %q, want empty", got)
		}
		if got := naturalTime(time.Now().Add(-72 * time.Hour)); got != "3 days ago" {
			t.Errorf("naturalTime = %q, want '3 days ago'", got)
		}
		if got := date("2006-01-02", day(3)); got != "2024-01-03" {
			t.Errorf("date = %q", got)
		}
		if got := date("2006-01-02", time.Time{}); got != "" {
			t.Errorf("date(zero) = %q, want empty", got)
		}
		if got := plural(1, "page"); got != "1 page" {
			t.Errorf("plural(1) = %q", got)
		}
		if got := plural(3, "page"); got != "3 pages" {
			t.Errorf("plural(3) = %q", got)
		}
	})

	t.Run("MarkdownDisabled", func(t *testing.T) {
		config := DefaultConfig()
		config.MarkdownEnabled = false
		if err := tm.SetConfig(config); err != nil {
			t.Fatal(err)
		}
		if got := string(tm.markdown("<b>hi</b>")); got != "&lt;b&gt;hi&lt;/b&gt;" {
			t.Errorf("markdown with rendering disabled = %q", got)
		}
	})

	t.Run("SimpleFuncs", func(t *testing.T) {
		if add(2, 3) != 5 || sub(2, 3) != -1 || inc(1) != 2 || dec(1) != 0 {
			t.Error("arithmetic functions returned unexpected results")
		}
		if len(list(1, "a", nil)) != 3 {
			t.Error("list should return all its arguments")
		}
		for _, v := range []any{nil, 0, "", []store.Page{}, pagetags.TagSet{}} {
			if isSet(v) {
				t.Errorf("isSet(%#v) = true, want false", v)
			}
		}
		for _, v := range []any{1, "x", []store.Page{{}}, pagetags.TagSet{"go": {}}} {
			if !isSet(v) {
				t.Errorf("isSet(%#v) = false, want true", v)
			}
		}
	})
}
