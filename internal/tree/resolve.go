package tree

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mvail/arbor/internal/parse"
)

// resolveName renders an expression node as a dotted-name string:
//
//	identifier        → its text
//	attribute a.b.c   → object rendered recursively, ".attr" appended
//	call f(...)       → the callee's rendered name
//	string/number     → the literal's text (quotes stripped for strings)
//	anything else     → the expression's source text, whitespace collapsed
//
// The fallback is deliberately the source text so it is stable across runs
// and never empty for a non-empty expression.
func resolveName(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier":
		return parse.NodeText(node, src)
	case "attribute":
		obj := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return parse.CollapseWhitespace(parse.NodeText(node, src))
		}
		return resolveName(obj, src) + "." + parse.NodeText(attr, src)
	case "call":
		return resolveName(node.ChildByFieldName("function"), src)
	case "string":
		return stripStringLiteral(parse.NodeText(node, src))
	case "integer", "float", "true", "false", "none":
		return parse.NodeText(node, src)
	default:
		return parse.CollapseWhitespace(parse.NodeText(node, src))
	}
}

// stringPrefixes are the literal prefixes Python allows before the opening
// quote, longest first so "rb" is tried before "r".
var stringPrefixes = []string{"rb", "br", "rf", "fr", "b", "r", "f", "u"}

// stripStringLiteral removes any prefix and the surrounding quotes from a
// Python string literal's source text. A prefix only counts when a quote
// follows it, so non-literal text starting with the same letters is left
// alone.
func stripStringLiteral(s string) string {
	lower := strings.ToLower(s)
	for _, p := range stringPrefixes {
		if strings.HasPrefix(lower, p) && len(s) > len(p) &&
			(s[len(p)] == '"' || s[len(p)] == '\'') {
			s = s[len(p):]
			break
		}
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// cleanDocstring trims a docstring the way tools conventionally display it:
// surrounding blank space removed and the common leading indentation of
// continuation lines stripped.
func cleanDocstring(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		return strings.TrimSpace(s)
	}
	margin := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	out := []string{strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		if margin > 0 && len(line) >= margin {
			line = line[margin:]
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}
