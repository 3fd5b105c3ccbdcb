// Package parse is the tree-sitter front-end. It turns Python source bytes
// into a parsed syntax tree and provides the small text helpers the builder
// needs to render node content.
package parse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// IsPythonFile reports whether path has a Python extension.
func IsPythonFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".py"
}

// Parse parses Python source into a tree-sitter tree. The returned tree
// holds references into src, so callers must keep src alive alongside it.
func Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	return tree, nil
}

// NodeText returns the source text covered by node.
func NodeText(node *sitter.Node, src []byte) string {
	return node.Content(src)
}

// CollapseWhitespace replaces runs of whitespace (including newlines) with a
// single space and trims the result. Used when rendering multi-line
// expressions as one-line names.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
