package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CTAG07/pagetags/pkg/tagging"
)

// GetPage looks up the page with the given slug on a site. It returns
// ErrPageNotFound if there is none.
func (s *Store) GetPage(ctx context.Context, siteID int64, slug string) (Page, error) {
	p, err := scanPage(s.stmtGetPage.QueryRowContext(ctx, siteID, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrPageNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("could not get page '%s': %w", slug, err)
	}
	return p, nil
}

// ListPages returns every page on a site ordered by title.
func (s *Store) ListPages(ctx context.Context, siteID int64) ([]Page, error) {
	rows, err := s.stmtListPages.QueryContext(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return collectPages(rows)
}

// CreatePage inserts a page and its tags in one transaction. Page.Tags is
// treated as user input and normalised with tagging.Parse.
func (s *Store) CreatePage(ctx context.Context, p Page) (Page, error) {
	if p.Slug == "" {
		return Page{}, errors.New("page slug must not be empty")
	}
	tags, err := tagging.Parse(p.Tags)
	if err != nil {
		return Page{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Page{}, err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err = checkSlugFree(ctx, tx, p.SiteID, p.Slug, 0); err != nil {
		return Page{}, err
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO pages (site_id, slug, title, publication_date, content) VALUES (?, ?, ?, ?, ?) RETURNING page_id`,
		p.SiteID, p.Slug, p.Title, publicationValue(p.PublicationDate), p.Content,
	).Scan(&p.ID)
	if err != nil {
		return Page{}, fmt.Errorf("failed to insert page '%s': %w", p.Slug, err)
	}

	if p.Tags, err = s.replaceTags(ctx, tx, p.ID, tags); err != nil {
		return Page{}, err
	}
	if err = tx.Commit(); err != nil {
		return Page{}, err
	}

	s.logger.InfoContext(ctx, "Page created",
		slog.Int64("page_id", p.ID),
		slog.Int64("site_id", p.SiteID),
		slog.String("slug", p.Slug),
		slog.Int("tags", len(tags)),
	)
	return p, nil
}

// UpdatePage rewrites a page identified by its id, including its tags.
func (s *Store) UpdatePage(ctx context.Context, p Page) (Page, error) {
	tags, err := tagging.Parse(p.Tags)
	if err != nil {
		return Page{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Page{}, err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err = checkSlugFree(ctx, tx, p.SiteID, p.Slug, p.ID); err != nil {
		return Page{}, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE pages SET slug = ?, title = ?, publication_date = ?, content = ? WHERE page_id = ?`,
		p.Slug, p.Title, publicationValue(p.PublicationDate), p.Content, p.ID,
	)
	if err != nil {
		return Page{}, fmt.Errorf("failed to update page %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Page{}, ErrPageNotFound
	}

	if p.Tags, err = s.replaceTags(ctx, tx, p.ID, tags); err != nil {
		return Page{}, err
	}
	if err = tx.Commit(); err != nil {
		return Page{}, err
	}
	return s.pageByID(ctx, p.ID)
}

// SetPageTags replaces the tags of a page with the parsed input and returns
// the updated page.
func (s *Store) SetPageTags(ctx context.Context, pageID int64, input string) (Page, error) {
	tags, err := tagging.Parse(input)
	if err != nil {
		return Page{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Page{}, err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE page_id = ?`, pageID).Scan(&exists); err != nil {
		return Page{}, err
	}
	if exists == 0 {
		return Page{}, ErrPageNotFound
	}

	if _, err = s.replaceTags(ctx, tx, pageID, tags); err != nil {
		return Page{}, err
	}
	if err = tx.Commit(); err != nil {
		return Page{}, err
	}

	s.logger.InfoContext(ctx, "Page tags updated",
		slog.Int64("page_id", pageID),
		slog.Any("tags", tags),
	)
	return s.pageByID(ctx, pageID)
}

// DeletePage removes a page and its tag associations.
func (s *Store) DeletePage(ctx context.Context, siteID int64, slug string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var pageID int64
	err = tx.QueryRowContext(ctx, `SELECT page_id FROM pages WHERE site_id = ? AND slug = ?`, siteID, slug).Scan(&pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPageNotFound
	}
	if err != nil {
		return err
	}

	if _, err = s.replaceTags(ctx, tx, pageID, nil); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("failed to remove page %d: %w", pageID, err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Page removed",
		slog.Int64("page_id", pageID),
		slog.String("slug", slug),
	)
	return nil
}

// TagCounts returns every tag used on a site with the number of pages
// carrying it, ordered by tag name.
func (s *Store) TagCounts(ctx context.Context, siteID int64) ([]TagCount, error) {
	rows, err := s.stmtTagCounts.QueryContext(ctx, siteID)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	counts := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err = rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

func (s *Store) pageByID(ctx context.Context, id int64) (Page, error) {
	p, err := scanPage(s.stmtGetPageByID.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrPageNotFound
	}
	return p, err
}

// replaceTags swaps the association rows of a page for tags, rewrites the
// denormalised tag string and drops tags no page uses any more. It returns the
// stored tag string.
func (s *Store) replaceTags(ctx context.Context, tx *sql.Tx, pageID int64, tags []string) (string, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tagged_items WHERE page_id = ?`, pageID); err != nil {
		return "", fmt.Errorf("failed to clear tags of page %d: %w", pageID, err)
	}

	stmtInsertTag := tx.StmtContext(ctx, s.stmtInsertTag)
	for _, tag := range tags {
		var tagID int64
		if err := stmtInsertTag.QueryRowContext(ctx, tag).Scan(&tagID); err != nil {
			return "", fmt.Errorf("failed to get/insert tag '%s': %w", tag, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tagged_items (tag_id, page_id) VALUES (?, ?)`, tagID, pageID); err != nil {
			return "", fmt.Errorf("failed to tag page %d with '%s': %w", pageID, tag, err)
		}
	}

	stored := tagging.Join(tags)
	if _, err := tx.ExecContext(ctx, `UPDATE pages SET page_tags = ? WHERE page_id = ?`, stored, pageID); err != nil {
		return "", fmt.Errorf("failed to store tag string of page %d: %w", pageID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE tag_id NOT IN (SELECT tag_id FROM tagged_items)`); err != nil {
		return "", fmt.Errorf("failed to prune unused tags: %w", err)
	}
	return stored, nil
}

// checkSlugFree returns ErrSlugTaken when a page other than exceptID uses
// slug on the site. An existing exceptID page decides the site.
func checkSlugFree(ctx context.Context, tx *sql.Tx, siteID int64, slug string, exceptID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `
        SELECT page_id FROM pages
        WHERE slug = ? AND page_id != ?
          AND site_id = COALESCE((SELECT site_id FROM pages WHERE page_id = ?), ?)
    `, slug, exceptID, exceptID, siteID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}
	return fmt.Errorf("%w: '%s'", ErrSlugTaken, slug)
}
