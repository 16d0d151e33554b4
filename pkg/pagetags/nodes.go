package pagetags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/store"
	"github.com/CTAG07/pagetags/pkg/tagging"
)

// TagSet is an unordered set of tags. html/template ranges over it in sorted
// key order.
type TagSet map[string]struct{}

// Has reports whether tag is in the set.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Len returns the number of tags.
func (s TagSet) Len() int {
	return len(s)
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// TagsOfPagesNode collects every tag of every page carrying any of its tags.
type TagsOfPagesNode struct {
	env     *env
	Tags    TagsBinder
	VarName string
}

func (n *TagsOfPagesNode) Render(ctx context.Context, rc directive.Context) (string, error) {
	tags, err := n.Tags.Resolve(rc)
	if err != nil {
		return "", err
	}
	pages, err := n.env.source.PagesWithAnyTag(ctx, n.env.siteID, tags, store.Chronological, store.NoLimit)
	if err != nil {
		return "", err
	}

	set := make(TagSet)
	for _, p := range pages {
		pageTags, err := tagging.Split(p.Tags)
		if err != nil {
			return "", fmt.Errorf("page '%s': %w", p.Slug, err)
		}
		for _, tag := range pageTags {
			set[tag] = struct{}{}
		}
	}

	rc.Set(n.VarName, set)
	n.env.logger.DebugContext(ctx, "Rendered directive",
		slog.String("directive", TagsOfPagesWithTags),
		slog.String("var", n.VarName),
		slog.Any("tags", tags),
		slog.Int("pages", len(pages)),
		slog.Int("result", len(set)),
	)
	return "", nil
}

// PagesWithTagsNode lists the pages carrying any of its tags.
type PagesWithTagsNode struct {
	env      *env
	Tags     TagsBinder
	Ordering store.Ordering
	Limit    int
	VarName  string
}

func (n *PagesWithTagsNode) Render(ctx context.Context, rc directive.Context) (string, error) {
	tags, err := n.Tags.Resolve(rc)
	if err != nil {
		return "", err
	}
	pages, err := n.env.source.PagesWithAnyTag(ctx, n.env.siteID, tags, n.Ordering, n.env.cap(n.Limit))
	if err != nil {
		return "", err
	}

	rc.Set(n.VarName, pages)
	n.env.logger.DebugContext(ctx, "Rendered directive",
		slog.String("directive", PagesWithTags),
		slog.String("var", n.VarName),
		slog.Any("tags", tags),
		slog.String("order", n.Ordering.String()),
		slog.Int("result", len(pages)),
	)
	return "", nil
}

// SimilarPagesNode lists the pages sharing tags with the page named by its
// slug. When no such page exists it does nothing.
type SimilarPagesNode struct {
	env     *env
	Slug    SlugBinder
	Limit   int
	VarName string
}

func (n *SimilarPagesNode) Render(ctx context.Context, rc directive.Context) (string, error) {
	slug, err := n.Slug.Resolve(rc)
	if err != nil {
		return "", err
	}
	page, err := n.env.source.GetPage(ctx, n.env.siteID, slug)
	if errors.Is(err, store.ErrPageNotFound) {
		n.env.logger.DebugContext(ctx, "Similar pages skipped, no page with slug",
			slog.String("directive", PagesSimilarWith),
			slog.String("slug", slug),
		)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	pages, err := n.env.source.RelatedPages(ctx, n.env.siteID, page.ID, n.env.cap(n.Limit))
	if err != nil {
		return "", err
	}

	rc.Set(n.VarName, pages)
	n.env.logger.DebugContext(ctx, "Rendered directive",
		slog.String("directive", PagesSimilarWith),
		slog.String("var", n.VarName),
		slog.String("slug", slug),
		slog.Int("result", len(pages)),
	)
	return "", nil
}
