package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CTAG07/pagetags/pkg/tagging"
)

// DefaultSiteID is the site created by SetupSchema.
const DefaultSiteID int64 = 1

// ErrPageNotFound is returned when no page matches a site and slug.
var ErrPageNotFound = errors.New("page not found")

// ErrSlugTaken is returned when another page on the same site already uses a
// slug.
var ErrSlugTaken = errors.New("slug already in use")

// ErrDomainTaken is returned when a site with the same domain exists.
var ErrDomainTaken = errors.New("domain already in use")

// ErrSiteNotFound is returned when a site id does not exist.
var ErrSiteNotFound = errors.New("site not found")

// Site is one deployment sharing the database. Every query is scoped to a site.
type Site struct {
	ID     int64  `json:"id"`
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// Page is a piece of content addressed by its slug within a site.
type Page struct {
	ID     int64  `json:"id"`
	SiteID int64  `json:"site_id"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	// PublicationDate is the zero time for unpublished pages.
	PublicationDate time.Time `json:"publication_date"`
	// Tags is the denormalised, shell-quoted tag string.
	Tags    string `json:"tags"`
	Content string `json:"content"`
}

// TagList returns the page's tags in stored order. A malformed tag string
// yields nil.
func (p Page) TagList() []string {
	tags, err := tagging.Split(p.Tags)
	if err != nil {
		return nil
	}
	return tags
}

// Published reports whether the page has a publication date.
func (p Page) Published() bool {
	return !p.PublicationDate.IsZero()
}

// TagCount is a tag and the number of pages on a site carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SetupSchema initializes the tables and the default site in the provided
// database. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaSites = `
CREATE TABLE IF NOT EXISTS sites (
    site_id INTEGER PRIMARY KEY,
    domain  TEXT NOT NULL UNIQUE,
    name    TEXT NOT NULL
);
`
		schemaPages = `
CREATE TABLE IF NOT EXISTS pages (
    page_id          INTEGER PRIMARY KEY,
    site_id          INTEGER NOT NULL REFERENCES sites(site_id),
    slug             TEXT NOT NULL,
    title            TEXT NOT NULL,
    publication_date INTEGER,
    page_tags        TEXT NOT NULL DEFAULT '',
    content          TEXT NOT NULL DEFAULT '',
    UNIQUE (site_id, slug)
);
`
		schemaTags = `
CREATE TABLE IF NOT EXISTS tags (
    tag_id INTEGER PRIMARY KEY,
    name   TEXT NOT NULL UNIQUE
);
`
		schemaTaggedItems = `
CREATE TABLE IF NOT EXISTS tagged_items (
    tag_id  INTEGER NOT NULL,
    page_id INTEGER NOT NULL,
    PRIMARY KEY (tag_id, page_id)
);
`
		indexTaggedItems = `CREATE INDEX IF NOT EXISTS idx_tagged_items_page ON tagged_items (page_id);`
	)

	defaultSite := fmt.Sprintf("INSERT OR IGNORE INTO sites (site_id, domain, name) VALUES (%d, 'example.com', 'example.com');", DefaultSiteID)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range []string{schemaSites, schemaPages, schemaTags, schemaTaggedItems, indexTaggedItems} {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if _, err = tx.Exec(defaultSite); err != nil {
		return fmt.Errorf("could not insert default site: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// pageColumns is the column list scanPage expects, qualified with alias p.
const pageColumns = `p.page_id, p.site_id, p.slug, p.title, p.publication_date, p.page_tags, p.content`

// Store holds the database connection and prepared statements.
// All methods are concurrent-safe.
type Store struct {
	db              *sql.DB
	stmtGetSite     *sql.Stmt
	stmtListSites   *sql.Stmt
	stmtInsertSite  *sql.Stmt
	stmtGetPage     *sql.Stmt
	stmtGetPageByID *sql.Stmt
	stmtListPages   *sql.Stmt
	stmtRelated     *sql.Stmt
	stmtTagCounts   *sql.Stmt
	stmtInsertTag   *sql.Stmt
	logger          *slog.Logger
}

// New creates a Store for a database prepared with SetupSchema. It pre-compiles
// the fixed SQL statements, returning an error if any preparation fails.
func New(db *sql.DB) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtGetSite, `SELECT site_id, domain, name FROM sites WHERE site_id = ?;`},
		{&s.stmtListSites, `SELECT site_id, domain, name FROM sites ORDER BY site_id;`},
		{&s.stmtInsertSite, `INSERT INTO sites (domain, name) VALUES (?, ?) RETURNING site_id;`},
		{&s.stmtGetPage, `SELECT ` + pageColumns + ` FROM pages p WHERE p.site_id = ? AND p.slug = ?;`},
		{&s.stmtGetPageByID, `SELECT ` + pageColumns + ` FROM pages p WHERE p.page_id = ?;`},
		{&s.stmtListPages, `SELECT ` + pageColumns + ` FROM pages p WHERE p.site_id = ? ORDER BY p.title, p.page_id;`},
		{&s.stmtRelated, `
SELECT ` + pageColumns + `
FROM pages p
JOIN tagged_items ti ON ti.page_id = p.page_id
WHERE p.site_id = ?
  AND p.page_id <> ?
  AND ti.tag_id IN (SELECT tag_id FROM tagged_items WHERE page_id = ?)
GROUP BY p.page_id
ORDER BY COUNT(*) DESC, p.publication_date DESC, p.page_id
LIMIT ?;`},
		{&s.stmtTagCounts, `
SELECT t.name, COUNT(*)
FROM tags t
JOIN tagged_items ti ON ti.tag_id = t.tag_id
JOIN pages p ON p.page_id = ti.page_id
WHERE p.site_id = ?
GROUP BY t.tag_id
ORDER BY t.name;`},
		{&s.stmtInsertTag, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO UPDATE SET name=excluded.name RETURNING tag_id;`},
	}

	for _, st := range stmts {
		prepared, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*st.dst = prepared
	}
	return s, nil
}

// Close releases all prepared statements held by the Store. The database
// itself is left open.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtGetSite, s.stmtListSites, s.stmtInsertSite,
		s.stmtGetPage, s.stmtGetPageByID, s.stmtListPages,
		s.stmtRelated, s.stmtTagCounts, s.stmtInsertTag,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (Page, error) {
	var p Page
	var published sql.NullInt64
	if err := row.Scan(&p.ID, &p.SiteID, &p.Slug, &p.Title, &published, &p.Tags, &p.Content); err != nil {
		return Page{}, err
	}
	if published.Valid {
		p.PublicationDate = time.Unix(published.Int64, 0).UTC()
	}
	return p, nil
}

func collectPages(rows *sql.Rows) ([]Page, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	pages := []Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

func publicationValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
