package tree

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mvail/arbor/internal/parse"
)

// Build walks a parsed Python syntax tree depth-first and returns the root
// declaration nodes for the file, in source order. Nested declarations hang
// off their enclosing scope's Children.
//
// The traversal keeps an explicit scope stack (innermost last). Pushes and
// pops are strictly balanced: Build returns an error if the stack is not
// empty when traversal finishes.
func Build(filePath string, tsTree *sitter.Tree, src []byte) ([]*Node, error) {
	if tsTree == nil {
		return nil, fmt.Errorf("build %s: nil syntax tree", filePath)
	}
	b := &builder{path: filePath, src: src}
	root := tsTree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		b.walk(root.Child(i))
	}
	if len(b.stack) != 0 {
		return nil, fmt.Errorf("build %s: unbalanced scope stack (%d open)", filePath, len(b.stack))
	}
	return b.roots, nil
}

type builder struct {
	path  string
	src   []byte
	stack []*Node
	roots []*Node
}

// walk dispatches on node kind. Unrecognized kinds are traversed
// transparently: their children are visited and no Node is created.
func (b *builder) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class_definition":
		b.classDef(n, nil)
	case "function_definition":
		b.funcDef(n, nil)
	case "decorated_definition":
		b.decoratedDef(n)
	case "call":
		b.recordCall(n)
		b.walkChildren(n)
	case "assignment":
		b.recordAssignment(n)
		b.walkChildren(n)
	default:
		b.walkChildren(n)
	}
}

func (b *builder) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		b.walk(n.Child(i))
	}
}

// current returns the innermost open scope, or nil at module level.
func (b *builder) current() *Node {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// attach makes node a child of the current scope, or a root when the scope
// stack is empty.
func (b *builder) attach(node *Node) {
	if parent := b.current(); parent != nil {
		parent.Children = append(parent.Children, node)
	} else {
		b.roots = append(b.roots, node)
	}
}

// enterScope pushes node and walks the statements of its body block. The pop
// is deferred so the stack stays balanced even if a walk panics partway.
//
// Only the body is walked: decorator, base, and default-value expressions do
// not contribute calls or assignments to any scope.
func (b *builder) enterScope(node *Node, body *sitter.Node) {
	b.stack = append(b.stack, node)
	defer func() { b.stack = b.stack[:len(b.stack)-1] }()
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		b.walk(body.Child(i))
	}
}

// recordCall appends the resolved callee name to the innermost open scope.
// Calls at module level (empty stack) are not recorded. Sub-expressions are
// walked by the caller, so calls nested in arguments land in whichever scope
// is open at their own position.
func (b *builder) recordCall(n *sitter.Node) {
	scope := b.current()
	if scope == nil {
		return
	}
	if fn := n.ChildByFieldName("function"); fn != nil {
		scope.Calls = append(scope.Calls, resolveName(fn, b.src))
	}
}

// recordAssignment appends the resolved left-hand target to the innermost
// open scope. Chained assignments (a = b = c) nest in the syntax tree, so
// walking the right-hand side records the inner targets as well.
func (b *builder) recordAssignment(n *sitter.Node) {
	scope := b.current()
	if scope == nil {
		return
	}
	if left := n.ChildByFieldName("left"); left != nil {
		scope.Assignments = append(scope.Assignments, resolveName(left, b.src))
	}
}

// decoratedDef resolves the decorator list and forwards to the wrapped
// class or function definition.
func (b *builder) decoratedDef(n *sitter.Node) {
	var decorators []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}
		if expr := child.NamedChild(0); expr != nil {
			decorators = append(decorators, resolveName(expr, b.src))
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		b.walkChildren(n)
		return
	}
	switch def.Type() {
	case "class_definition":
		b.classDef(def, decorators)
	case "function_definition":
		b.funcDef(def, decorators)
	default:
		b.walk(def)
	}
}

func (b *builder) classDef(n *sitter.Node, decorators []string) {
	node := b.newNode(n, KindClass)
	node.Decorators = decorators

	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			arg := supers.NamedChild(i)
			// Keyword arguments (metaclass=...) are not bases.
			if arg.Type() == "keyword_argument" {
				continue
			}
			node.Bases = append(node.Bases, resolveName(arg, b.src))
		}
	}

	body := n.ChildByFieldName("body")
	node.Docstring = b.docstring(body)
	b.attach(node)
	b.enterScope(node, body)
}

func (b *builder) funcDef(n *sitter.Node, decorators []string) {
	kind := KindFunction
	if first := n.Child(0); first != nil && first.Type() == "async" {
		kind = KindAsyncFunction
	}
	node := b.newNode(n, kind)
	node.Decorators = decorators
	node.Arguments = b.parameters(n.ChildByFieldName("parameters"))

	if ret := n.ChildByFieldName("return_type"); ret != nil {
		node.ReturnType = resolveAnnotation(ret, b.src)
	}

	body := n.ChildByFieldName("body")
	node.Docstring = b.docstring(body)
	b.attach(node)
	b.enterScope(node, body)
}

// newNode creates a Node with kind, name, and position filled from the
// syntax node. A missing name field degrades to an empty name rather than
// aborting the file.
func (b *builder) newNode(n *sitter.Node, kind Kind) *Node {
	node := &Node{
		Kind:      kind,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column),
		EndCol:    int(n.EndPoint().Column),
		FilePath:  b.path,
	}
	if name := n.ChildByFieldName("name"); name != nil {
		node.Name = parse.NodeText(name, b.src)
	}
	return node
}

// parameters renders a function's parameter list in declaration order:
// positional parameters as "name" or "name: type", a variadic-positional as
// "*name", keyword-only parameters, then a variadic-keyword as "**name".
// Tree-sitter stores parameters lexically, which is exactly that order.
func (b *builder) parameters(params *sitter.Node) []string {
	if params == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			out = append(out, parse.NodeText(p, b.src))
		case "typed_parameter":
			name := ""
			if inner := p.NamedChild(0); inner != nil {
				name = b.splatName(inner)
			}
			if t := p.ChildByFieldName("type"); t != nil {
				out = append(out, name+": "+resolveAnnotation(t, b.src))
			} else {
				out = append(out, name)
			}
		case "default_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				out = append(out, parse.NodeText(name, b.src))
			}
		case "typed_default_parameter":
			name := ""
			if nm := p.ChildByFieldName("name"); nm != nil {
				name = parse.NodeText(nm, b.src)
			}
			if t := p.ChildByFieldName("type"); t != nil {
				out = append(out, name+": "+resolveAnnotation(t, b.src))
			} else {
				out = append(out, name)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, b.splatName(p))
		case "positional_separator", "keyword_separator":
			// Bare / and * markers carry no name.
		default:
			out = append(out, parse.CollapseWhitespace(parse.NodeText(p, b.src)))
		}
	}
	return out
}

// splatName renders *args / **kwargs patterns with their star prefix, and
// plain identifiers as themselves.
func (b *builder) splatName(p *sitter.Node) string {
	switch p.Type() {
	case "list_splat_pattern":
		if inner := p.NamedChild(0); inner != nil {
			return "*" + parse.NodeText(inner, b.src)
		}
		return "*"
	case "dictionary_splat_pattern":
		if inner := p.NamedChild(0); inner != nil {
			return "**" + parse.NodeText(inner, b.src)
		}
		return "**"
	default:
		return parse.NodeText(p, b.src)
	}
}

// docstring returns the cleaned docstring when the first statement of body
// is a bare string literal, else "".
func (b *builder) docstring(body *sitter.Node) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return cleanDocstring(stripStringLiteral(parse.NodeText(str, b.src)))
}

// resolveAnnotation renders a type annotation. The grammar wraps annotations
// in a "type" node; a single wrapped expression resolves like any other name,
// and anything more complex keeps its source text.
func resolveAnnotation(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Type() == "type" && n.NamedChildCount() == 1 {
		return resolveName(n.NamedChild(0), src)
	}
	return parse.CollapseWhitespace(parse.NodeText(n, src))
}
