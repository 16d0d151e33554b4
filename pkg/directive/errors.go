package directive

import (
	"errors"
	"fmt"
)

// ErrVariableNotFound is returned (wrapped) when a directive requires a
// context variable that is absent from the render context.
var ErrVariableNotFound = errors.New("variable not found in render context")

// SyntaxError reports a malformed directive. It is raised while templates are
// compiled and is never recovered from at render time.
type SyntaxError struct {
	Directive string
	Line      int
	Msg       string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Syntaxf builds a SyntaxError for the named directive.
func Syntaxf(directive, format string, args ...any) *SyntaxError {
	return &SyntaxError{Directive: directive, Msg: fmt.Sprintf(format, args...)}
}
