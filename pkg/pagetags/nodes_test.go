package pagetags

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/store"
)

func TestTagsOfPagesWithTags(t *testing.T) {
	lib, _ := setupTestLibrary(t)

	t.Run("order insensitive and deduplicated", func(t *testing.T) {
		var results []TagSet
		for _, contents := range []string{
			`tags_of_pages_with_tags "go rust" as all`,
			`tags_of_pages_with_tags "rust go go" as all`,
		} {
			rc := directive.NewContext(nil)
			render(t, compile(t, lib, contents), rc)
			set, ok := rc["all"].(TagSet)
			if !ok {
				t.Fatalf("%s: result is %T, want TagSet", contents, rc["all"])
			}
			results = append(results, set)
		}
		want := []string{"advanced", "go", "rust", "tutorial"}
		for _, set := range results {
			if got := set.Sorted(); !reflect.DeepEqual(got, want) {
				t.Errorf("Sorted() = %v, want %v", got, want)
			}
			if set.Len() != len(want) {
				t.Errorf("Len() = %d, want %d", set.Len(), len(want))
			}
		}
	})

	t.Run("tags with spaces survive", func(t *testing.T) {
		rc := directive.NewContext(nil)
		render(t, compile(t, lib, `tags_of_pages_with_tags "'about us'" as all`), rc)
		set := rc["all"].(TagSet)
		if !set.Has("about us") || set.Len() != 1 {
			t.Errorf("got %v, want {about us}", set.Sorted())
		}
	})

	t.Run("missing variable yields empty set", func(t *testing.T) {
		rc := directive.NewContext(nil)
		render(t, compile(t, lib, `tags_of_pages_with_tags wanted as all`), rc)
		set, ok := rc["all"].(TagSet)
		if !ok || set.Len() != 0 {
			t.Errorf("got %#v, want empty TagSet", rc["all"])
		}
	})
}

func TestPagesWithTags(t *testing.T) {
	lib, _ := setupTestLibrary(t)

	tests := []struct {
		contents string
		want     []string
	}{
		{`pages_with_tags "tutorial" as r`, []string{"zig-intro", "rust-intro", "go-intro"}},
		{`pages_with_tags "tutorial" order chronological as r`, []string{"zig-intro", "rust-intro", "go-intro"}},
		{`pages_with_tags "tutorial" order alphabetical as r`, []string{"go-intro", "rust-intro", "zig-intro"}},
		{`pages_with_tags "tutorial" limit 2 as r`, []string{"zig-intro", "rust-intro"}},
		{`pages_with_tags "tutorial" order alphabetical limit 1 as r`, []string{"go-intro"}},
		{`pages_with_tags "go 'about us'" as r`, []string{"go-advanced", "go-intro", "about"}},
		{`pages_with_tags "tutorial" limit 0 as r`, []string{}},
		{`pages_with_tags "nothing" as r`, []string{}},
		{`pages_with_tags "" as r`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.contents, func(t *testing.T) {
			rc := directive.NewContext(nil)
			render(t, compile(t, lib, tt.contents), rc)
			if got := slugs(t, rc["r"]); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPagesWithTags_DynamicRebindsPerRender(t *testing.T) {
	lib, _ := setupTestLibrary(t)
	node := compile(t, lib, `pages_with_tags wanted as r`)

	rc := directive.NewContext(map[string]any{"wanted": "go"})
	render(t, node, rc)
	if got, want := slugs(t, rc["r"]), []string{"go-advanced", "go-intro"}; !reflect.DeepEqual(got, want) {
		t.Errorf("first render = %v, want %v", got, want)
	}

	rc = directive.NewContext(map[string]any{"wanted": []string{"rust"}})
	render(t, node, rc)
	if got, want := slugs(t, rc["r"]), []string{"rust-intro"}; !reflect.DeepEqual(got, want) {
		t.Errorf("second render = %v, want %v", got, want)
	}
}

func TestPagesWithTags_FromAggregatedTags(t *testing.T) {
	lib, _ := setupTestLibrary(t)
	rc := directive.NewContext(nil)
	render(t, compile(t, lib, `tags_of_pages_with_tags "rust" as cloud`), rc)
	render(t, compile(t, lib, `pages_with_tags cloud as r`), rc)

	if got, want := slugs(t, rc["r"]), []string{"zig-intro", "rust-intro", "go-intro"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPagesWithTags_ConcurrentRenders(t *testing.T) {
	lib, _ := setupTestLibrary(t)
	node := compile(t, lib, `pages_with_tags wanted as r`)

	inputs := map[string][]string{
		"go":     {"go-advanced", "go-intro"},
		"rust":   {"rust-intro"},
		"zig":    {"zig-intro"},
		"nobody": {},
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for tag, want := range inputs {
			tag, want := tag, want
			wg.Add(1)
			go func() {
				defer wg.Done()
				rc := directive.NewContext(map[string]any{"wanted": tag})
				if _, err := node.Render(context.Background(), rc); err != nil {
					t.Errorf("Render(%s) error = %v", tag, err)
					return
				}
				pages := rc["r"].([]store.Page)
				got := make([]string, 0, len(pages))
				for _, p := range pages {
					got = append(got, p.Slug)
				}
				if !reflect.DeepEqual(got, want) {
					t.Errorf("Render(%s) = %v, want %v", tag, got, want)
				}
			}()
		}
	}
	wg.Wait()
}

func TestPagesSimilarWith(t *testing.T) {
	lib, s := setupTestLibrary(t)

	t.Run("ranked by shared tags", func(t *testing.T) {
		if _, err := s.CreatePage(context.Background(), store.Page{
			SiteID: store.DefaultSiteID, Slug: "go-tutorial", Title: "Go Tutorial",
			PublicationDate: day(5), Tags: "go tutorial",
		}); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = s.DeletePage(context.Background(), store.DefaultSiteID, "go-tutorial") })

		rc := directive.NewContext(nil)
		render(t, compile(t, lib, `pages_similar_with "go-intro" as similar`), rc)
		want := []string{"go-tutorial", "zig-intro", "go-advanced", "rust-intro"}
		if got := slugs(t, rc["similar"]); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("limit and dynamic slug", func(t *testing.T) {
		page, err := s.GetPage(context.Background(), store.DefaultSiteID, "rust-intro")
		if err != nil {
			t.Fatal(err)
		}
		rc := directive.NewContext(map[string]any{"page": page})
		render(t, compile(t, lib, `pages_similar_with page.Slug limit 1 as similar`), rc)
		if got, want := slugs(t, rc["similar"]), []string{"zig-intro"}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("unknown slug is a no-op", func(t *testing.T) {
		rc := directive.NewContext(nil)
		render(t, compile(t, lib, `pages_similar_with "missing-slug" as r`), rc)
		if _, ok := rc["r"]; ok {
			t.Errorf("r was set to %v, want unset", rc["r"])
		}
	})

	t.Run("missing slug variable is an error", func(t *testing.T) {
		node := compile(t, lib, `pages_similar_with slug as r`)
		_, err := node.Render(context.Background(), directive.NewContext(nil))
		if !errors.Is(err, directive.ErrVariableNotFound) {
			t.Errorf("Render() error = %v, want ErrVariableNotFound", err)
		}
	})
}

func TestSiteScoping(t *testing.T) {
	lib, s := setupTestLibrary(t)
	ctx := context.Background()

	other, err := s.CreateSite(ctx, store.Site{Domain: "other.example"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePage(ctx, store.Page{SiteID: other.ID, Slug: "go-intro", Title: "Other Go", PublicationDate: day(9), Tags: "go"}); err != nil {
		t.Fatal(err)
	}

	rc := directive.NewContext(nil)
	render(t, compile(t, lib, `pages_with_tags "go" as r`), rc)
	if got, want := slugs(t, rc["r"]), []string{"go-advanced", "go-intro"}; !reflect.DeepEqual(got, want) {
		t.Errorf("default site got %v, want %v", got, want)
	}

	otherLib := directive.NewLibrary()
	if err := Register(otherLib, s, WithSiteID(other.ID)); err != nil {
		t.Fatal(err)
	}
	rc = directive.NewContext(nil)
	render(t, compile(t, otherLib, `pages_with_tags "go" as r`), rc)
	pages := rc["r"].([]store.Page)
	if len(pages) != 1 || pages[0].Title != "Other Go" {
		t.Errorf("other site got %v, want only Other Go", slugs(t, pages))
	}
}

// fakeSource records the limits it is called with and can be told to fail.
type fakeSource struct {
	err    error
	limits []int
}

func (f *fakeSource) PagesWithAnyTag(_ context.Context, _ int64, _ []string, _ store.Ordering, limit int) ([]store.Page, error) {
	f.limits = append(f.limits, limit)
	return []store.Page{}, f.err
}

func (f *fakeSource) RelatedPages(_ context.Context, _, _ int64, limit int) ([]store.Page, error) {
	f.limits = append(f.limits, limit)
	return []store.Page{}, f.err
}

func (f *fakeSource) GetPage(_ context.Context, _ int64, slug string) (store.Page, error) {
	if f.err != nil {
		return store.Page{}, f.err
	}
	return store.Page{ID: 1, Slug: slug}, nil
}

func TestWithMaxResults(t *testing.T) {
	src := &fakeSource{}
	lib := directive.NewLibrary()
	if err := Register(lib, src, WithMaxResults(5)); err != nil {
		t.Fatal(err)
	}
	for _, contents := range []string{
		`pages_with_tags "go" as r`,
		`pages_with_tags "go" limit 3 as r`,
		`pages_with_tags "go" limit 30 as r`,
		`pages_similar_with "x" as r`,
		`tags_of_pages_with_tags "go" as r`,
	} {
		render(t, compile(t, lib, contents), directive.NewContext(nil))
	}
	want := []int{5, 3, 5, 5, store.NoLimit}
	if !reflect.DeepEqual(src.limits, want) {
		t.Errorf("limits = %v, want %v", src.limits, want)
	}
}

func TestSourceErrorsPropagate(t *testing.T) {
	boom := errors.New("database is locked")
	lib := directive.NewLibrary()
	if err := Register(lib, &fakeSource{err: boom}); err != nil {
		t.Fatal(err)
	}
	for _, contents := range []string{
		`tags_of_pages_with_tags "go" as r`,
		`pages_with_tags "go" as r`,
		`pages_similar_with "go-intro" as r`,
	} {
		rc := directive.NewContext(nil)
		_, err := compile(t, lib, contents).Render(context.Background(), rc)
		if !errors.Is(err, boom) {
			t.Errorf("%s: Render() error = %v, want %v", contents, err, boom)
		}
		if _, ok := rc["r"]; ok {
			t.Errorf("%s: r was set after a failed render", contents)
		}
	}
}

func TestRegisterTwice(t *testing.T) {
	lib := directive.NewLibrary()
	if err := Register(lib, nil); err != nil {
		t.Fatal(err)
	}
	if err := Register(lib, nil); err == nil {
		t.Error("second Register() succeeded, want duplicate name error")
	}
}
