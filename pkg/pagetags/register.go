package pagetags

import (
	"context"
	"io"
	"log/slog"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/store"
)

// Directive names.
const (
	TagsOfPagesWithTags = "tags_of_pages_with_tags"
	PagesWithTags       = "pages_with_tags"
	PagesSimilarWith    = "pages_similar_with"
)

// Source is the query capability the directives need. *store.Store
// implements it.
type Source interface {
	PagesWithAnyTag(ctx context.Context, siteID int64, tags []string, order store.Ordering, limit int) ([]store.Page, error)
	RelatedPages(ctx context.Context, siteID, pageID int64, limit int) ([]store.Page, error)
	GetPage(ctx context.Context, siteID int64, slug string) (store.Page, error)
}

// env is shared by every node compiled from one Register call.
type env struct {
	source     Source
	siteID     int64
	maxResults int
	logger     *slog.Logger
}

// cap applies the MaxResults ceiling to a directive's limit.
func (e *env) cap(limit int) int {
	if e.maxResults > 0 && (limit < 0 || limit > e.maxResults) {
		return e.maxResults
	}
	return limit
}

// Option configures Register.
type Option func(*env)

// WithSiteID scopes every query to a site. The default is store.DefaultSiteID.
func WithSiteID(id int64) Option {
	return func(e *env) {
		e.siteID = id
	}
}

// WithMaxResults caps the number of pages pages_with_tags and
// pages_similar_with return, whatever their limit clause says. Zero, the
// default, means no cap.
func WithMaxResults(n int) Option {
	return func(e *env) {
		e.maxResults = n
	}
}

// WithLogger sets the logger nodes report renders to. By default, all logs
// are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(e *env) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Register adds the three page tag directives to lib.
func Register(lib *directive.Library, source Source, opts ...Option) error {
	e := &env{
		source: source,
		siteID: store.DefaultSiteID,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := lib.Register(TagsOfPagesWithTags, e.compileTagsOfPages); err != nil {
		return err
	}
	if err := lib.Register(PagesWithTags, e.compilePagesWithTags); err != nil {
		return err
	}
	return lib.Register(PagesSimilarWith, e.compileSimilarPages)
}

func (e *env) compileTagsOfPages(tok directive.Token) (directive.Node, error) {
	c, err := parseTagsOfPagesClause(tok)
	if err != nil {
		return nil, err
	}
	return &TagsOfPagesNode{env: e, Tags: c.tags, VarName: c.varName}, nil
}

func (e *env) compilePagesWithTags(tok directive.Token) (directive.Node, error) {
	c, err := parsePagesWithTagsClause(tok)
	if err != nil {
		return nil, err
	}
	return &PagesWithTagsNode{env: e, Tags: c.tags, Ordering: c.ordering, Limit: c.limit, VarName: c.varName}, nil
}

func (e *env) compileSimilarPages(tok directive.Token) (directive.Node, error) {
	c, err := parseSimilarPagesClause(tok)
	if err != nil {
		return nil, err
	}
	return &SimilarPagesNode{env: e, Slug: c.slug, Limit: c.limit, VarName: c.varName}, nil
}
