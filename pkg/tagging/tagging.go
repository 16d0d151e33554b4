package tagging

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/shlex"
)

// ErrInvalidInput is wrapped by Parse errors for malformed tag input.
var ErrInvalidInput = errors.New("invalid tag input")

// Parse turns user supplied tag input into a sorted list of unique tags.
//
// Input without double quotes is split on commas when it contains any, and on
// whitespace otherwise. Input with double quotes is split shell-style so that
// `"new york" travel` yields the two tags "new york" and "travel".
func Parse(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return []string{}, nil
	}

	var words []string
	switch {
	case strings.Contains(input, `"`):
		var err error
		words, err = shlex.Split(input)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidInput, input, err)
		}
	case strings.Contains(input, ","):
		words = strings.Split(input, ",")
	default:
		words = strings.Fields(input)
	}

	return Normalize(words), nil
}

// Split splits a stored tag string shell-style. Order and duplicates are kept.
func Split(stored string) ([]string, error) {
	if strings.TrimSpace(stored) == "" {
		return []string{}, nil
	}
	words, err := shlex.Split(stored)
	if err != nil {
		return nil, fmt.Errorf("malformed tag string %q: %w", stored, err)
	}
	return words, nil
}

// Join builds the stored form of a tag list. Tags containing whitespace or
// quote characters are double-quoted so that Split returns them intact.
func Join(tags []string) string {
	quoted := make([]string, 0, len(tags))
	for _, tag := range tags {
		quoted = append(quoted, quote(tag))
	}
	return strings.Join(quoted, " ")
}

func quote(tag string) string {
	if !strings.ContainsAny(tag, " \t\r\n\"'\\#") {
		return tag
	}
	var sb strings.Builder
	sb.Grow(len(tag) + 2)
	sb.WriteByte('"')
	for _, r := range tag {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

// Normalize trims every tag, drops empty ones and returns the rest sorted and
// de-duplicated.
func Normalize(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	tags := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tags = append(tags, w)
	}
	sort.Strings(tags)
	return tags
}
