package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvail/arbor/internal/parse"
)

// buildSource parses Python source and builds its declaration forest.
func buildSource(t *testing.T, src string) []*Node {
	t.Helper()
	tsTree, err := parse.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	defer tsTree.Close()
	roots, err := Build("test.py", tsTree, []byte(src))
	require.NoError(t, err)
	return roots
}

func TestBuild_ClassWithMethod(t *testing.T) {
	roots := buildSource(t, `class Foo(Base):
    def bar(self, x: int) -> bool:
        return self.baz(x)
`)
	require.Len(t, roots, 1)

	foo := roots[0]
	assert.Equal(t, "Foo", foo.Name)
	assert.Equal(t, KindClass, foo.Kind)
	assert.Equal(t, []string{"Base"}, foo.Bases)
	assert.Equal(t, 1, foo.StartLine)
	assert.Equal(t, "test.py", foo.FilePath)

	require.Len(t, foo.Children, 1)
	bar := foo.Children[0]
	assert.Equal(t, "bar", bar.Name)
	assert.Equal(t, KindFunction, bar.Kind)
	assert.Equal(t, []string{"self", "x: int"}, bar.Arguments)
	assert.Equal(t, "bool", bar.ReturnType)
	assert.Equal(t, []string{"self.baz"}, bar.Calls)
	assert.Empty(t, foo.Calls, "method body calls must not leak to the class scope")
}

func TestBuild_NestedFunctionCallAttribution(t *testing.T) {
	roots := buildSource(t, `def f():
    helper()
    def g():
        inner()
    trailing()
`)
	require.Len(t, roots, 1)
	f := roots[0]
	require.Len(t, f.Children, 1)
	g := f.Children[0]

	assert.Equal(t, []string{"helper", "trailing"}, f.Calls,
		"calls inside g belong to g, never to f")
	assert.Equal(t, []string{"inner"}, g.Calls)
}

func TestBuild_ChildrenInSourceOrder(t *testing.T) {
	roots := buildSource(t, `class C:
    def a(self):
        pass

    def b(self):
        pass

    class Inner:
        def c(self):
            pass
`)
	require.Len(t, roots, 1)
	c := roots[0]
	require.Len(t, c.Children, 3)
	assert.Equal(t, "a", c.Children[0].Name)
	assert.Equal(t, "b", c.Children[1].Name)
	assert.Equal(t, "Inner", c.Children[2].Name)

	prev := 0
	for _, child := range c.Children {
		assert.Greater(t, child.StartLine, prev, "children must be in increasing start-line order")
		assert.GreaterOrEqual(t, child.EndLine, child.StartLine)
		prev = child.StartLine
	}
}

func TestBuild_AsyncFunction(t *testing.T) {
	roots := buildSource(t, `async def fetch(url):
    await session.get(url)
`)
	require.Len(t, roots, 1)
	assert.Equal(t, KindAsyncFunction, roots[0].Kind)
	assert.Equal(t, "fetch", roots[0].Name)
	assert.Equal(t, []string{"session.get"}, roots[0].Calls)
}

func TestBuild_Arguments(t *testing.T) {
	roots := buildSource(t, `def f(a, b: str, c=1, d: int = 2, *args, e, f: bool = True, **kwargs):
    pass
`)
	require.Len(t, roots, 1)
	assert.Equal(t,
		[]string{"a", "b: str", "c", "d: int", "*args", "e", "f: bool", "**kwargs"},
		roots[0].Arguments)
}

func TestBuild_ReturnAnnotationShapes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"def f() -> bool:\n    pass\n", "bool"},
		{"def f() -> typing.Optional:\n    pass\n", "typing.Optional"},
		{"def f() -> List[int]:\n    pass\n", "List[int]"},
	}
	for _, tt := range tests {
		roots := buildSource(t, tt.src)
		require.Len(t, roots, 1)
		assert.Equal(t, tt.want, roots[0].ReturnType, "src: %s", tt.src)
	}
}

func TestBuild_Decorators(t *testing.T) {
	roots := buildSource(t, `@app.route("/x")
@staticmethod
def handler():
    pass
`)
	require.Len(t, roots, 1)
	assert.Equal(t, []string{"app.route", "staticmethod"}, roots[0].Decorators)
	assert.Equal(t, KindFunction, roots[0].Kind)
	assert.Empty(t, roots[0].Calls, "decorator expressions do not contribute calls")
}

func TestBuild_DecoratedClass(t *testing.T) {
	roots := buildSource(t, `@dataclass
class Point:
    x = 0
`)
	require.Len(t, roots, 1)
	assert.Equal(t, KindClass, roots[0].Kind)
	assert.Equal(t, []string{"dataclass"}, roots[0].Decorators)
	assert.Equal(t, []string{"x"}, roots[0].Assignments)
}

func TestBuild_BaseShapes(t *testing.T) {
	roots := buildSource(t, `class C(pkg.mod.Base, Generic[T], make_base(), metaclass=Meta):
    pass
`)
	require.Len(t, roots, 1)
	assert.Equal(t, []string{"pkg.mod.Base", "Generic[T]", "make_base"}, roots[0].Bases,
		"dotted bases resolve, fallback keeps source text, keyword args are excluded")
}

func TestBuild_Docstring(t *testing.T) {
	roots := buildSource(t, `def documented():
    """Summary line.

    More detail here.
    """
    pass

def bare():
    pass
`)
	require.Len(t, roots, 2)
	assert.Equal(t, "Summary line.\n\nMore detail here.", roots[0].Docstring)
	assert.Empty(t, roots[1].Docstring)
}

func TestBuild_Assignments(t *testing.T) {
	roots := buildSource(t, `def setup():
    host = "localhost"
    self.port = 8080
    a = b = init()
    x, y = pair()
`)
	require.Len(t, roots, 1)
	n := roots[0]
	assert.Equal(t, []string{"host", "self.port", "a", "b", "x, y"}, n.Assignments)
	assert.Equal(t, []string{"init", "pair"}, n.Calls)
}

func TestBuild_ModuleLevelStatementsNotRecorded(t *testing.T) {
	roots := buildSource(t, `VERSION = "1.0"
configure()

def f():
    pass
`)
	// Module-level calls and assignments have no open scope to land in;
	// only the declarations themselves are kept.
	require.Len(t, roots, 1)
	assert.Equal(t, "f", roots[0].Name)
}

func TestBuild_LambdaInheritsEnclosingScope(t *testing.T) {
	// Inline function literals do not open an attribution scope: calls in a
	// lambda body land in the enclosing declaration.
	roots := buildSource(t, `def f():
    cb = lambda v: transform(v)
`)
	require.Len(t, roots, 1)
	assert.Equal(t, []string{"cb"}, roots[0].Assignments)
	assert.Equal(t, []string{"transform"}, roots[0].Calls)
}

func TestBuild_CallsInNestedExpressions(t *testing.T) {
	roots := buildSource(t, `def f():
    outer(inner(), other.method())
`)
	require.Len(t, roots, 1)
	assert.Equal(t, []string{"outer", "inner", "other.method"}, roots[0].Calls)
}

func TestBuild_DeeplyNestedScopesBalanceStack(t *testing.T) {
	src := `class A:
    class B:
        def c(self):
            def d():
                def e():
                    leaf()
`
	tsTree, err := parse.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	defer tsTree.Close()

	b := &builder{path: "test.py", src: []byte(src)}
	root := tsTree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		b.walk(root.Child(i))
	}
	assert.Empty(t, b.stack, "scope stack must return to empty after traversal")

	require.Len(t, b.roots, 1)
	e := b.roots[0].Children[0].Children[0].Children[0].Children[0]
	assert.Equal(t, "e", e.Name)
	assert.Equal(t, []string{"leaf"}, e.Calls)
}

func TestBuild_EmptyAndMalformedSource(t *testing.T) {
	assert.Empty(t, buildSource(t, ""))

	// A syntax error in part of the file degrades, it does not abort: the
	// well-formed declaration is still extracted.
	roots := buildSource(t, `def ok():
    pass

def broken(:
`)
	require.NotEmpty(t, roots)
	assert.Equal(t, "ok", roots[0].Name)
}

func TestFlatten_PreOrder(t *testing.T) {
	roots := buildSource(t, `class A:
    def b(self):
        pass

def c():
    pass
`)
	flat := Flatten(roots)
	names := make([]string, len(flat))
	for i, n := range flat {
		names[i] = n.Name
	}
	assert.Equal(t, []string{"A", "b", "c"}, names)
}
