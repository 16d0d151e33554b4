package pagetags

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/CTAG07/pagetags/pkg/directive"
	"github.com/CTAG07/pagetags/pkg/tagging"
)

// TagsBinder yields the tag list a directive queries with.
type TagsBinder interface {
	Resolve(rc directive.Context) ([]string, error)
}

// SlugBinder yields the page slug a directive queries with.
type SlugBinder interface {
	Resolve(rc directive.Context) (string, error)
}

// StaticTags is a tag list written literally in the template.
type StaticTags []string

// NewStaticTags splits a literal tag string shell-style.
func NewStaticTags(literal string) (StaticTags, error) {
	tags, err := splitTags(literal)
	if err != nil {
		return nil, err
	}
	return StaticTags(tags), nil
}

func (t StaticTags) Resolve(directive.Context) ([]string, error) {
	return slices.Clone([]string(t)), nil
}

// DynamicTags reads its tags from a context variable. A missing variable
// yields no tags. Strings are split shell-style; slices and a TagSet are
// taken one element per tag.
type DynamicTags struct {
	Name string
}

func (t DynamicTags) Resolve(rc directive.Context) ([]string, error) {
	v, ok := rc.Lookup(t.Name)
	if !ok || v == nil {
		return []string{}, nil
	}
	switch val := v.(type) {
	case []string:
		return tagging.Normalize(val), nil
	case TagSet:
		return val.Sorted(), nil
	case []any:
		words := make([]string, 0, len(val))
		for _, e := range val {
			if e != nil {
				words = append(words, fmt.Sprint(e))
			}
		}
		return tagging.Normalize(words), nil
	case string:
		return splitTags(val)
	case fmt.Stringer:
		return splitTags(val.String())
	default:
		return splitTags(fmt.Sprint(val))
	}
}

func splitTags(s string) ([]string, error) {
	words, err := tagging.Split(s)
	if err != nil {
		return nil, err
	}
	return tagging.Normalize(words), nil
}

// StaticSlug is a slug written literally in the template.
type StaticSlug string

func (s StaticSlug) Resolve(directive.Context) (string, error) {
	return string(s), nil
}

// DynamicSlug reads its slug from a context variable. Unlike DynamicTags a
// missing variable is an error.
type DynamicSlug struct {
	Name string
}

func (s DynamicSlug) Resolve(rc directive.Context) (string, error) {
	v, ok := rc.Lookup(s.Name)
	if !ok {
		return "", fmt.Errorf("%w: %q", directive.ErrVariableNotFound, s.Name)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return fmt.Sprint(val), nil
	}
}

var variablePattern = regexp.MustCompile(`^[A-Za-z_]\w*(\.\w+)*$`)

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'')
}

// parseTags picks a StaticTags binder for a quoted literal and a DynamicTags
// binder for anything else.
func parseTags(name, quotedOrVar string) (TagsBinder, error) {
	if isQuoted(quotedOrVar) {
		tags, err := NewStaticTags(quotedOrVar[1 : len(quotedOrVar)-1])
		if err != nil {
			return nil, directive.Syntaxf(name, "%q directive has malformed tags: %v", name, err)
		}
		return tags, nil
	}
	if !variablePattern.MatchString(quotedOrVar) {
		return nil, directive.Syntaxf(name, "%q directive expects quoted tags or a variable name, got %s", name, quotedOrVar)
	}
	return DynamicTags{Name: quotedOrVar}, nil
}

// parseSlug picks a StaticSlug binder for a quoted literal and a DynamicSlug
// binder for anything else.
func parseSlug(name, quotedOrVar string) (SlugBinder, error) {
	if isQuoted(quotedOrVar) {
		return StaticSlug(quotedOrVar[1 : len(quotedOrVar)-1]), nil
	}
	if !variablePattern.MatchString(quotedOrVar) {
		return nil, directive.Syntaxf(name, "%q directive expects a quoted slug or a variable name, got %s", name, quotedOrVar)
	}
	return DynamicSlug{Name: quotedOrVar}, nil
}
