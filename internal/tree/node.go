// Package tree builds a scope-nested declaration forest from a parsed
// Python syntax tree. Each class and function definition becomes a Node;
// calls and assignments are attributed to the innermost open scope at the
// point they occur.
package tree

// Kind classifies a declaration Node.
type Kind string

const (
	// KindModule completes the declaration kind set for consumers that
	// classify whole files; the builder itself emits only class and
	// function roots, with the file-level grouping carried alongside.
	KindModule        Kind = "module"
	KindClass         Kind = "class"
	KindFunction      Kind = "function"
	KindAsyncFunction Kind = "async_function"
)

// Node is one declaration (class or function) with its position, metadata,
// and ordered children. Children appear in source order. Nodes own their
// children exclusively; there is no parent pointer on the final tree — the
// builder tracks parents on its scope stack only.
type Node struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Lines are 1-based, columns 0-based (tree-sitter convention).
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`

	Docstring  string   `json:"docstring,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Bases      []string `json:"bases,omitempty"`      // classes only
	Arguments  []string `json:"arguments,omitempty"`  // functions only
	ReturnType string   `json:"return_type,omitempty"`

	// Calls and Assignments accumulate while this node is the innermost
	// open scope, in lexical order of occurrence.
	Calls       []string `json:"calls,omitempty"`
	Assignments []string `json:"assignments,omitempty"`

	FilePath string  `json:"file_path,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Walk visits n and its descendants in pre-order.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Flatten returns n and all descendants in pre-order.
func Flatten(roots []*Node) []*Node {
	var out []*Node
	for _, r := range roots {
		r.Walk(func(n *Node) { out = append(out, n) })
	}
	return out
}
