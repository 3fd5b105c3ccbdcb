package arbor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/mvail/arbor/internal/tree"
)

// workItem holds everything a parallel analysis worker needs.
type workItem struct {
	pos     int // position in the input slice, for stable output ordering
	path    string
	content []byte
	hash    string

	// cached is set in Phase A when the analysis cache already holds this
	// content hash; such items skip the worker pool entirely.
	cached []*tree.Node
}

// analyzeFilesParallel analyzes files using a three-phase pipeline:
//
//	Phase A (serial):  Read, hash, check the analysis cache.
//	Phase B (parallel): Parse and build trees in a worker pool.
//	Phase C (serial):  Commit trees to SQLite in input order.
//
// Each file's scope stack lives entirely inside its worker, so workers
// share nothing; the final forest is assembled in input order, which keeps
// output stable for a given file enumeration.
func (e *Engine) analyzeFilesParallel(ctx context.Context, paths []string) ([]FileTree, error) {
	// ---- Phase A: serial preparation ----
	var (
		items []workItem
		errs  []error
	)
	for pos, path := range paths {
		item, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("analyze %s: %w", path, err))
			continue
		}
		item.pos = pos
		items = append(items, item)
	}

	// ---- Phase B: parallel parse + build ----
	type result struct {
		item  workItem
		roots []*tree.Node
		err   error
	}
	results := make([]result, len(items))

	numWorkers := min(runtime.NumCPU(), len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}
	workCh := make(chan int, len(items))
	for i := range items {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				item := items[i]
				if item.cached != nil {
					results[i] = result{item: item, roots: item.cached}
					continue
				}
				roots, err := buildTree(ctx, item.path, item.content)
				results[i] = result{item: item, roots: roots, err: err}
			}
		}()
	}
	wg.Wait()

	// ---- Phase C: serial commit, input order ----
	var trees []FileTree
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("analyze %s: %w", res.item.path, res.err))
			continue
		}
		if res.item.cached == nil {
			if err := e.saveTree(res.item.path, res.item.content, res.item.hash, res.roots); err != nil {
				errs = append(errs, fmt.Errorf("commit %s: %w", res.item.path, err))
				continue
			}
		}
		trees = append(trees, FileTree{Path: res.item.path, Roots: res.roots})
	}

	if len(errs) > 0 {
		return trees, fmt.Errorf("analysis had %d error(s): %w", len(errs), errs[0])
	}
	return trees, nil
}

// prepareFile does Phase A work for a single file: read, hash, and cache
// lookup. When the cache already holds this hash the tree is loaded here
// and the worker pool is skipped for the file.
func (e *Engine) prepareFile(path string) (workItem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		roots, err := e.store.LoadFileTree(existing.ID, path)
		if err != nil {
			return workItem{}, fmt.Errorf("load cached tree: %w", err)
		}
		// A cached empty forest must stay distinguishable from "not cached".
		if roots == nil {
			roots = []*tree.Node{}
		}
		return workItem{path: path, content: content, hash: hash, cached: roots}, nil
	}
	return workItem{path: path, content: content, hash: hash}, nil
}
