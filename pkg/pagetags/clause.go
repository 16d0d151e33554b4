package pagetags

import (
	"regexp"
	"strconv"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/store"
)

var (
	// <tags> as <var>
	tagsOfPagesPattern = regexp.MustCompile(`(?s)^(.+?)\s+as\s+(\w+)\s*$`)

	// <tags> [order (alphabetical|chronological)] [limit <N>] as <var>
	pagesWithTagsPattern = regexp.MustCompile(`(?s)^(.+?)(?:\s+order\s+(alphabetical|chronological))?(?:\s+limit\s+(\d+))?\s+as\s+(\w+)\s*$`)

	// <slug> [limit <N>] as <var>
	similarPagesPattern = regexp.MustCompile(`(?s)^(.+?)(?:\s+limit\s+(\d+))?\s+as\s+(\w+)\s*$`)
)

type tagsOfPagesClause struct {
	tags    TagsBinder
	varName string
}

type pagesWithTagsClause struct {
	tags     TagsBinder
	ordering store.Ordering
	limit    int
	varName  string
}

type similarPagesClause struct {
	slug    SlugBinder
	limit   int
	varName string
}

func parseTagsOfPagesClause(tok directive.Token) (tagsOfPagesClause, error) {
	name, arg, err := directive.SplitContents(tok.Contents)
	if err != nil {
		return tagsOfPagesClause{}, err
	}
	m := tagsOfPagesPattern.FindStringSubmatch(arg)
	if m == nil {
		return tagsOfPagesClause{}, invalidArguments(name)
	}
	tags, err := parseTags(name, m[1])
	if err != nil {
		return tagsOfPagesClause{}, err
	}
	return tagsOfPagesClause{tags: tags, varName: m[2]}, nil
}

func parsePagesWithTagsClause(tok directive.Token) (pagesWithTagsClause, error) {
	name, arg, err := directive.SplitContents(tok.Contents)
	if err != nil {
		return pagesWithTagsClause{}, err
	}
	m := pagesWithTagsPattern.FindStringSubmatch(arg)
	if m == nil {
		return pagesWithTagsClause{}, invalidArguments(name)
	}
	tags, err := parseTags(name, m[1])
	if err != nil {
		return pagesWithTagsClause{}, err
	}
	ordering, err := store.ParseOrdering(m[2])
	if err != nil {
		return pagesWithTagsClause{}, invalidArguments(name)
	}
	limit, err := parseLimit(name, m[3])
	if err != nil {
		return pagesWithTagsClause{}, err
	}
	return pagesWithTagsClause{tags: tags, ordering: ordering, limit: limit, varName: m[4]}, nil
}

func parseSimilarPagesClause(tok directive.Token) (similarPagesClause, error) {
	name, arg, err := directive.SplitContents(tok.Contents)
	if err != nil {
		return similarPagesClause{}, err
	}
	m := similarPagesPattern.FindStringSubmatch(arg)
	if m == nil {
		return similarPagesClause{}, invalidArguments(name)
	}
	slug, err := parseSlug(name, m[1])
	if err != nil {
		return similarPagesClause{}, err
	}
	limit, err := parseLimit(name, m[2])
	if err != nil {
		return similarPagesClause{}, err
	}
	return similarPagesClause{slug: slug, limit: limit, varName: m[3]}, nil
}

// parseLimit turns the optional limit capture into a limit, store.NoLimit
// when the clause was absent.
func parseLimit(name, s string) (int, error) {
	if s == "" {
		return store.NoLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, directive.Syntaxf(name, "%q directive limit %s is out of range", name, s)
	}
	return n, nil
}

func invalidArguments(name string) *directive.SyntaxError {
	return directive.Syntaxf(name, "%q directive had invalid arguments", name)
}
