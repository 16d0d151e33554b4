package directive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"
)

// Node is the compiled form of one directive block. Render runs once per
// render pass; its textual output replaces the block. Nodes are built once
// and may be rendered from several goroutines at a time, each with its own
// Context.
type Node interface {
	Render(ctx context.Context, rc Context) (string, error)
}

// ParseFunc compiles a token into a Node. It returns a *SyntaxError when the
// arguments are malformed.
type ParseFunc func(tok Token) (Node, error)

// Library maps directive names to their parse functions.
// All methods are concurrent-safe.
type Library struct {
	mu      sync.RWMutex
	parsers map[string]ParseFunc
}

// NewLibrary returns an empty Library.
func NewLibrary() *Library {
	return &Library{parsers: make(map[string]ParseFunc)}
}

// Register adds a directive. Registering the same name twice is an error.
func (l *Library) Register(name string, fn ParseFunc) error {
	if name == "" || fn == nil {
		return errors.New("directive: register requires a name and a parse function")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.parsers[name]; exists {
		return fmt.Errorf("directive: %q is already registered", name)
	}
	l.parsers[name] = fn
	return nil
}

// Names returns the registered directive names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.parsers))
	for name := range l.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile looks up the directive named by tok and parses it. Syntax errors are
// annotated with the token's line.
func (l *Library) Compile(tok Token) (Node, error) {
	name := tok.Name()
	if name == "" {
		return nil, &SyntaxError{Line: tok.Line, Msg: "empty directive"}
	}

	l.mu.RLock()
	fn, ok := l.parsers[name]
	l.mu.RUnlock()
	if !ok {
		return nil, l.unknown(name, tok.Line)
	}

	node, err := fn(tok)
	if err != nil {
		var syntaxErr *SyntaxError
		if errors.As(err, &syntaxErr) && syntaxErr.Line == 0 {
			syntaxErr.Line = tok.Line
		}
		return nil, err
	}
	return node, nil
}

// CompileAll compiles tokens in order, stopping at the first error.
func (l *Library) CompileAll(tokens []Token) ([]Node, error) {
	nodes := make([]Node, 0, len(tokens))
	for _, tok := range tokens {
		node, err := l.Compile(tok)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (l *Library) unknown(name string, line int) *SyntaxError {
	err := &SyntaxError{Directive: name, Line: line, Msg: fmt.Sprintf("unknown directive %q", name)}
	if matches := fuzzy.Find(name, l.Names()); len(matches) > 0 {
		err.Msg += fmt.Sprintf(", did you mean %q?", matches[0].Str)
	}
	return err
}
