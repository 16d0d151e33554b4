package directive

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type echoNode struct{ arg string }

func (n echoNode) Render(_ context.Context, rc Context) (string, error) {
	rc.Set("echo", n.arg)
	return "", nil
}

func parseEcho(tok Token) (Node, error) {
	_, arg, err := SplitContents(tok.Contents)
	if err != nil {
		return nil, err
	}
	return echoNode{arg: arg}, nil
}

func TestLibrary_RegisterAndCompile(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Register("echo", parseEcho); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := lib.Register("echo", parseEcho); err == nil {
		t.Error("expected an error when registering a duplicate name, got nil")
	}

	node, err := lib.Compile(Token{Contents: "echo hello", Line: 1})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	rc := NewContext(nil)
	out, err := node.Render(context.Background(), rc)
	if err != nil || out != "" {
		t.Fatalf("Render = %q, %v", out, err)
	}
	if rc["echo"] != "hello" {
		t.Errorf("expected rc[echo] = 'hello', got %v", rc["echo"])
	}
}

func TestLibrary_CompileErrors(t *testing.T) {
	lib := NewLibrary()
	_ = lib.Register("pages_with_tags", parseEcho)

	_, err := lib.Compile(Token{Contents: "pages_with_tag x as y", Line: 7})
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected *SyntaxError for unknown directive, got %v", err)
	}
	if syntaxErr.Line != 7 {
		t.Errorf("expected line 7, got %d", syntaxErr.Line)
	}
	if !strings.Contains(err.Error(), `did you mean "pages_with_tags"`) {
		t.Errorf("expected a suggestion in %q", err.Error())
	}

	_, err = lib.Compile(Token{Contents: "pages_with_tags", Line: 3})
	if !errors.As(err, &syntaxErr) || syntaxErr.Line != 3 {
		t.Errorf("expected a line-annotated syntax error, got %v", err)
	}

	if _, err = lib.CompileAll([]Token{{Contents: "pages_with_tags a"}, {Contents: ""}}); err == nil {
		t.Error("CompileAll: expected an error for an empty directive")
	}
}

func TestContext_Lookup(t *testing.T) {
	type page struct {
		Slug  string
		Extra map[string]any
	}
	rc := NewContext(map[string]any{
		"slug": "home",
		"page": &page{Slug: "about", Extra: map[string]any{"tag": "go"}},
	})

	if v, ok := rc.Lookup("slug"); !ok || v != "home" {
		t.Errorf("Lookup(slug) = %v, %v", v, ok)
	}
	if v, ok := rc.Lookup("page.Slug"); !ok || v != "about" {
		t.Errorf("Lookup(page.Slug) = %v, %v", v, ok)
	}
	if v, ok := rc.Lookup("page.Extra.tag"); !ok || v != "go" {
		t.Errorf("Lookup(page.Extra.tag) = %v, %v", v, ok)
	}
	if _, ok := rc.Lookup("page.Missing"); ok {
		t.Error("Lookup(page.Missing) should fail")
	}
	if _, ok := rc.Lookup("missing"); ok {
		t.Error("Lookup(missing) should fail")
	}
}
