package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/CTAG07/pagetags/pkg/tagging"
)

// ExportedSite is the serializable form of a site's pages, used for
// import and export.
type ExportedSite struct {
	Domain string         `json:"domain" yaml:"domain"`
	Pages  []ExportedPage `json:"pages" yaml:"pages"`
}

// ExportedPage is the serializable form of a single page.
type ExportedPage struct {
	Slug  string `json:"slug" yaml:"slug"`
	Title string `json:"title" yaml:"title"`
	// Published is an RFC 3339 timestamp or a YYYY-MM-DD date. Empty means
	// unpublished.
	Published string   `json:"published,omitempty" yaml:"published,omitempty"`
	Tags      []string `json:"tags" yaml:"tags"`
	Content   string   `json:"content,omitempty" yaml:"content,omitempty"`
}

// ExportPages writes every page of a site to w as indented JSON.
func (s *Store) ExportPages(ctx context.Context, siteID int64, w io.Writer) error {
	site, err := s.GetSite(ctx, siteID)
	if err != nil {
		return err
	}
	pages, err := s.ListPages(ctx, siteID)
	if err != nil {
		return fmt.Errorf("could not list pages for export: %w", err)
	}

	exported := ExportedSite{Domain: site.Domain, Pages: make([]ExportedPage, 0, len(pages))}
	for _, p := range pages {
		ep := ExportedPage{
			Slug:    p.Slug,
			Title:   p.Title,
			Tags:    p.TagList(),
			Content: p.Content,
		}
		if p.Published() {
			ep.Published = p.PublicationDate.Format(time.RFC3339)
		}
		exported.Pages = append(exported.Pages, ep)
	}

	s.logger.InfoContext(ctx, "Pages exported",
		slog.Int64("site_id", siteID),
		slog.Int("pages_exported", len(exported.Pages)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportPages reads a YAML or JSON document shaped like ExportedSite from r
// and merges its pages into a site. Pages are matched by slug: existing pages
// are overwritten, new ones are created. The whole import is one transaction.
// It returns the number of pages written.
func (s *Store) ImportPages(ctx context.Context, siteID int64, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read import data: %w", err)
	}
	var imported ExportedSite
	if err = yaml.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("failed to decode pages: %w", err)
	}
	if _, err = s.GetSite(ctx, siteID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for i, ep := range imported.Pages {
		if ep.Slug == "" {
			return 0, fmt.Errorf("page %d has no slug", i)
		}
		published, err := parsePublished(ep.Published)
		if err != nil {
			return 0, fmt.Errorf("page '%s': %w", ep.Slug, err)
		}

		var pageID int64
		err = tx.QueryRowContext(ctx, `SELECT page_id FROM pages WHERE site_id = ? AND slug = ?`, siteID, ep.Slug).Scan(&pageID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = tx.QueryRowContext(ctx,
				`INSERT INTO pages (site_id, slug, title, publication_date, content) VALUES (?, ?, ?, ?, ?) RETURNING page_id`,
				siteID, ep.Slug, ep.Title, publicationValue(published), ep.Content,
			).Scan(&pageID)
			if err != nil {
				return 0, fmt.Errorf("failed to insert page '%s': %w", ep.Slug, err)
			}
		case err != nil:
			return 0, fmt.Errorf("failed to query for page '%s': %w", ep.Slug, err)
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE pages SET title = ?, publication_date = ?, content = ? WHERE page_id = ?`,
				ep.Title, publicationValue(published), ep.Content, pageID,
			)
			if err != nil {
				return 0, fmt.Errorf("failed to update page '%s': %w", ep.Slug, err)
			}
		}

		if _, err = s.replaceTags(ctx, tx, pageID, tagging.Normalize(ep.Tags)); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Pages imported",
		slog.Int64("site_id", siteID),
		slog.String("source_domain", imported.Domain),
		slog.Int("pages_merged", len(imported.Pages)),
	)
	return len(imported.Pages), nil
}

func parsePublished(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid publication date %q", s)
	}
	return t, nil
}
