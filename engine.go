package arbor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvail/arbor/internal/embed"
	"github.com/mvail/arbor/internal/index"
	"github.com/mvail/arbor/internal/parse"
	"github.com/mvail/arbor/internal/store"
	"github.com/mvail/arbor/internal/tree"
)

// Engine orchestrates the arbor pipeline: file discovery, change detection,
// declaration tree building, the SQLite analysis cache, and the semantic
// index.
type Engine struct {
	store *store.Store
	index *index.Index

	// useParallel enables the parallel analysis pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel analysis. When true (default), AnalyzeFiles
// parses and builds trees in a worker pool, with commits to SQLite and the
// result forest assembled serially in input order. Set to false for serial
// mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// New creates an Engine backed by a SQLite analysis cache at dbPath and an
// embedding snapshot at cachePath. provider may be nil for analyze-only use;
// embedding and search calls then fail with the provider-unavailable error.
func New(dbPath, cachePath string, provider embed.Provider, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("arbor: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("arbor: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		index:       index.New(cachePath, provider),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying analysis cache for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Index returns the semantic index for direct access.
func (e *Engine) Index() *index.Index {
	return e.index
}

// FileTree pairs one source file with its root declaration nodes.
type FileTree struct {
	Path  string
	Roots []*tree.Node
}

// AnalyzeFiles builds declaration trees for the given paths. Files whose
// content hash matches the analysis cache are reloaded from SQLite instead
// of re-parsed. Errors on individual files are collected and reported in
// the returned error; analysis of the remaining files continues.
func (e *Engine) AnalyzeFiles(ctx context.Context, paths []string) ([]FileTree, error) {
	if e.useParallel {
		return e.analyzeFilesParallel(ctx, paths)
	}
	var (
		trees []FileTree
		errs  []error
	)
	for _, path := range paths {
		ft, err := e.analyzeFile(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("analyze %s: %w", path, err))
			continue
		}
		trees = append(trees, ft)
	}
	if len(errs) > 0 {
		return trees, fmt.Errorf("analysis had %d error(s): %w", len(errs), errs[0])
	}
	return trees, nil
}

func (e *Engine) analyzeFile(ctx context.Context, path string) (FileTree, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileTree{}, fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return FileTree{}, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		roots, err := e.store.LoadFileTree(existing.ID, path)
		if err != nil {
			return FileTree{}, fmt.Errorf("load cached tree: %w", err)
		}
		return FileTree{Path: path, Roots: roots}, nil
	}

	roots, err := buildTree(ctx, path, content)
	if err != nil {
		return FileTree{}, err
	}
	if err := e.saveTree(path, content, hash, roots); err != nil {
		return FileTree{}, err
	}
	return FileTree{Path: path, Roots: roots}, nil
}

// buildTree parses source and builds its declaration forest.
func buildTree(ctx context.Context, path string, content []byte) ([]*tree.Node, error) {
	tsTree, err := parse.Parse(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tsTree.Close()
	roots, err := tree.Build(path, tsTree, content)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	return roots, nil
}

func (e *Engine) saveTree(path string, content []byte, hash string, roots []*tree.Node) error {
	lineCount := bytes.Count(content, []byte{'\n'}) + 1
	err := e.store.SaveFileTree(&store.File{
		Path:        path,
		Hash:        hash,
		LineCount:   lineCount,
		LastIndexed: time.Now(),
	}, roots)
	if err != nil {
		return fmt.Errorf("cache tree: %w", err)
	}
	return nil
}

// AnalyzeSource builds a declaration forest from an in-memory source string.
// Nothing is cached; the file path on the nodes is "<string>".
func (e *Engine) AnalyzeSource(ctx context.Context, src string) ([]*tree.Node, error) {
	return buildTree(ctx, "<string>", []byte(src))
}

// AnalyzeDirectory discovers Python files under root and analyzes them.
// If root is inside a git repository, uses git ls-files to respect
// .gitignore; otherwise falls back to a filesystem walk.
func (e *Engine) AnalyzeDirectory(ctx context.Context, root string) ([]FileTree, error) {
	paths, err := e.gitListFiles(root)
	if err != nil {
		paths, err = e.walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	return e.AnalyzeFiles(ctx, paths)
}

// IngestTrees flattens every tree into the semantic index. Embedding is
// deferred to EmbedPending.
func (e *Engine) IngestTrees(trees []FileTree) {
	for _, ft := range trees {
		e.index.Ingest(ft.Roots)
	}
}

// EmbedPending embeds all un-embedded index items in one provider batch and
// persists the index snapshot.
func (e *Engine) EmbedPending(ctx context.Context) error {
	return e.index.EmbedPending(ctx)
}

// Search returns up to limit indexed items scoring at least threshold
// against query, best first. A negative limit returns every match.
func (e *Engine) Search(ctx context.Context, query string, limit int, threshold float64) ([]Match, error) {
	return e.index.FindSimilar(ctx, query, limit, threshold)
}

// SimilarityText scores two ad-hoc strings against each other.
func (e *Engine) SimilarityText(ctx context.Context, query, content string) (float64, error) {
	return e.index.SimilarityText(ctx, query, content)
}

// skipDirs are directories excluded from discovery.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
	"env":          true,
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to Python sources.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if parse.IsPythonFile(absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a
// fallback when git is not available. Skips hidden directories and the
// usual dependency/cache directories.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if parse.IsPythonFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
