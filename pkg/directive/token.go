package directive

import (
	"regexp"
	"strings"
	"unicode"
)

// Token is the raw text of one directive block, as written between the
// `{%` and `%}` delimiters.
type Token struct {
	Contents string
	// Line is the 1-based line of the opening delimiter in its source.
	Line int
}

// Name returns the first word of the token, or "" for an empty block.
func (t Token) Name() string {
	fields := strings.Fields(t.Contents)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SplitContents splits directive contents on the first run of whitespace into
// the directive name and its argument string. Directives handled here all take
// arguments, so a missing remainder is a syntax error.
func SplitContents(contents string) (name, arg string, err error) {
	s := strings.TrimLeftFunc(contents, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i >= 0 {
		name = s[:i]
		arg = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	} else {
		name = s
	}
	if arg == "" {
		return name, "", Syntaxf(name, "%q directive requires additional arguments", name)
	}
	return name, arg, nil
}

var blockPattern = regexp.MustCompile(`(?s)\{%\s*(.*?)\s*%\}`)

// Scan removes every directive block from src, returning the remaining text
// and the blocks in source order. A line that holds nothing but a block is
// removed entirely so that directives do not leave blank lines behind.
func Scan(src string) (string, []Token) {
	matches := blockPattern.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src, nil
	}

	var sb strings.Builder
	sb.Grow(len(src))
	tokens := make([]Token, 0, len(matches))
	last := 0

	for _, loc := range matches {
		start, end := loc[0], loc[1]
		tokens = append(tokens, Token{
			Contents: src[loc[2]:loc[3]],
			Line:     1 + strings.Count(src[:start], "\n"),
		})

		lineStart := strings.LastIndexByte(src[:start], '\n') + 1
		rest := src[end:]
		lineEnd := strings.IndexByte(rest, '\n')
		tail := rest
		if lineEnd >= 0 {
			tail = rest[:lineEnd]
		}

		if lineStart >= last && isBlank(src[lineStart:start]) && isBlank(tail) {
			sb.WriteString(src[last:lineStart])
			if lineEnd >= 0 {
				last = end + lineEnd + 1
			} else {
				last = len(src)
			}
			continue
		}

		sb.WriteString(src[last:start])
		last = end
	}
	sb.WriteString(src[last:])

	return sb.String(), tokens
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
