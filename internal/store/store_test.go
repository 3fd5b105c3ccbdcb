package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvail/arbor/internal/tree"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())
	return s
}

func sampleForest(path string) []*tree.Node {
	return []*tree.Node{
		{
			Name: "Foo", Kind: tree.KindClass, FilePath: path,
			StartLine: 1, EndLine: 10, EndCol: 8,
			Docstring:  "A sample class.",
			Bases:      []string{"Base", "mixins.Extra"},
			Decorators: []string{"register"},
			Children: []*tree.Node{
				{
					Name: "bar", Kind: tree.KindFunction, FilePath: path,
					StartLine: 3, StartCol: 4, EndLine: 6, EndCol: 12,
					Arguments:   []string{"self", "x: int"},
					ReturnType:  "bool",
					Calls:       []string{"self.baz", "helper"},
					Assignments: []string{"result"},
				},
				{
					Name: "qux", Kind: tree.KindAsyncFunction, FilePath: path,
					StartLine: 8, StartCol: 4, EndLine: 10, EndCol: 8,
					Arguments: []string{"self"},
				},
			},
		},
		{
			Name: "standalone", Kind: tree.KindFunction, FilePath: path,
			StartLine: 12, EndLine: 14, EndCol: 4,
		},
	}
}

func TestSaveLoadFileTree_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	path := "/src/app.py"
	forest := sampleForest(path)

	f := &File{Path: path, Hash: "abc123", LineCount: 14, LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f, forest))
	require.NotZero(t, f.ID)

	loaded, err := s.LoadFileTree(f.ID, path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	foo := loaded[0]
	assert.Equal(t, "Foo", foo.Name)
	assert.Equal(t, tree.KindClass, foo.Kind)
	assert.Equal(t, "A sample class.", foo.Docstring)
	assert.Equal(t, []string{"Base", "mixins.Extra"}, foo.Bases)
	assert.Equal(t, []string{"register"}, foo.Decorators)
	assert.Equal(t, 1, foo.StartLine)
	assert.Equal(t, 10, foo.EndLine)
	assert.Equal(t, path, foo.FilePath)

	require.Len(t, foo.Children, 2)
	bar := foo.Children[0]
	assert.Equal(t, "bar", bar.Name)
	assert.Equal(t, []string{"self", "x: int"}, bar.Arguments)
	assert.Equal(t, "bool", bar.ReturnType)
	assert.Equal(t, []string{"self.baz", "helper"}, bar.Calls)
	assert.Equal(t, []string{"result"}, bar.Assignments)
	assert.Equal(t, "qux", foo.Children[1].Name)
	assert.Equal(t, tree.KindAsyncFunction, foo.Children[1].Kind)

	assert.Equal(t, "standalone", loaded[1].Name)
}

func TestSaveFileTree_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	path := "/src/app.py"

	f1 := &File{Path: path, Hash: "old", LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f1, sampleForest(path)))

	f2 := &File{Path: path, Hash: "new", LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f2, []*tree.Node{
		{Name: "only", Kind: tree.KindFunction, FilePath: path, StartLine: 1, EndLine: 2},
	}))

	stored, err := s.FileByPath(path)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "new", stored.Hash)

	loaded, err := s.LoadFileTree(stored.ID, path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "only", loaded[0].Name)

	// The old file's declarations must be gone, not orphaned.
	old, err := s.LoadFileTree(f1.ID, path)
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestSaveFileTree_StaleFileIDReadsNothing(t *testing.T) {
	s := newTestStore(t)
	path := "/src/app.py"

	f1 := &File{Path: path, Hash: "v1", LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f1, sampleForest(path)))

	f2 := &File{Path: path, Hash: "v2", LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f2, []*tree.Node{
		{Name: "replacement", Kind: tree.KindFunction, FilePath: path, StartLine: 1, EndLine: 2},
	}))

	// The replacement gets a fresh ID; the deleted row's ID is never
	// reissued, so loading through it yields nothing rather than another
	// file's declarations.
	assert.NotEqual(t, f1.ID, f2.ID)
	stale, err := s.LoadFileTree(f1.ID, path)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestSaveFileTree_EmptyForest(t *testing.T) {
	s := newTestStore(t)
	f := &File{Path: "/src/empty.py", Hash: "e", LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f, nil))

	loaded, err := s.LoadFileTree(f.ID, f.Path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileByPath_Missing(t *testing.T) {
	s := newTestStore(t)
	f, err := s.FileByPath("/nope.py")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestFiles_SortedByPath(t *testing.T) {
	s := newTestStore(t)
	for _, p := range []string{"/b.py", "/a.py", "/c.py"} {
		_, err := s.InsertFile(&File{Path: p, LastIndexed: time.Now()})
		require.NoError(t, err)
	}
	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "/a.py", files[0].Path)
	assert.Equal(t, "/b.py", files[1].Path)
	assert.Equal(t, "/c.py", files[2].Path)
}

func TestDeleteFileData(t *testing.T) {
	s := newTestStore(t)
	path := "/src/app.py"
	f := &File{Path: path, Hash: "h", LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f, sampleForest(path)))

	require.NoError(t, s.DeleteFileData(f.ID))

	gone, err := s.FileByPath(path)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var attrs int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM declaration_attrs").Scan(&attrs))
	assert.Zero(t, attrs)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	f := &File{Path: "/src/app.py", Hash: "h", LastIndexed: time.Now()}
	require.NoError(t, s.SaveFileTree(f, sampleForest(f.Path)))

	require.NoError(t, s.Reset())

	files, err := s.Files()
	require.NoError(t, err)
	assert.Empty(t, files)

	// Schema is back: writes work immediately.
	_, err = s.InsertFile(&File{Path: "/new.py", LastIndexed: time.Now()})
	require.NoError(t, err)
}
