package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// NoLimit disables result truncation.
const NoLimit = -1

// Ordering selects how PagesWithAnyTag sorts its result.
type Ordering int

const (
	// Chronological sorts by publication date, newest first. Unpublished
	// pages come last.
	Chronological Ordering = iota
	// Alphabetical sorts by title.
	Alphabetical
)

// ParseOrdering maps the directive keywords to an Ordering. The empty string
// selects Chronological.
func ParseOrdering(s string) (Ordering, error) {
	switch s {
	case "", "chronological":
		return Chronological, nil
	case "alphabetical":
		return Alphabetical, nil
	}
	return 0, fmt.Errorf("unknown ordering %q", s)
}

func (o Ordering) String() string {
	if o == Alphabetical {
		return "alphabetical"
	}
	return "chronological"
}

func (o Ordering) orderBy() string {
	if o == Alphabetical {
		return "p.title, p.page_id"
	}
	return "p.publication_date DESC, p.page_id DESC"
}

func sqlLimit(limit int) int {
	if limit < 0 {
		return -1 // SQLite treats a negative LIMIT as unbounded
	}
	return limit
}

// PagesWithAnyTag returns the pages on a site carrying at least one of tags,
// sorted by order and truncated to limit (NoLimit for all of them). An empty
// tag list matches nothing.
func (s *Store) PagesWithAnyTag(ctx context.Context, siteID int64, tags []string, order Ordering, limit int) ([]Page, error) {
	if len(tags) == 0 || limit == 0 {
		return []Page{}, nil
	}

	args := make([]any, 0, len(tags)+2)
	placeholders := make([]string, 0, len(tags))
	args = append(args, siteID)
	for _, tag := range tags {
		args = append(args, tag)
		placeholders = append(placeholders, "?")
	}
	args = append(args, sqlLimit(limit))

	query := fmt.Sprintf(`
SELECT %s
FROM pages p
WHERE p.site_id = ?
  AND EXISTS (
    SELECT 1 FROM tagged_items ti
    JOIN tags t ON t.tag_id = ti.tag_id
    WHERE ti.page_id = p.page_id AND t.name IN (%s)
  )
ORDER BY %s
LIMIT ?`, pageColumns, strings.Join(placeholders, ","), order.orderBy())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query pages tagged %q: %w", tags, err)
	}
	pages, err := collectPages(rows)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Pages with any tag",
		slog.Int64("site_id", siteID),
		slog.Any("tags", tags),
		slog.String("order", order.String()),
		slog.Int("limit", limit),
		slog.Int("matched", len(pages)),
	)
	return pages, nil
}

// RelatedPages returns the pages on a site sharing at least one tag with the
// given page, excluding the page itself. Pages sharing more tags come first,
// ties are broken by publication date, newest first.
func (s *Store) RelatedPages(ctx context.Context, siteID, pageID int64, limit int) ([]Page, error) {
	if limit == 0 {
		return []Page{}, nil
	}
	rows, err := s.stmtRelated.QueryContext(ctx, siteID, pageID, pageID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("could not query pages related to %d: %w", pageID, err)
	}
	pages, err := collectPages(rows)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Related pages",
		slog.Int64("site_id", siteID),
		slog.Int64("page_id", pageID),
		slog.Int("limit", limit),
		slog.Int("matched", len(pages)),
	)
	return pages, nil
}
