// Package arbor turns Python source trees into a structural inventory of
// declarations and makes that inventory searchable by meaning.
//
// The pipeline has two halves. The source tree builder parses each file
// with tree-sitter and reconstructs a scope-nested declaration forest:
// every class and function becomes a node carrying its position, docstring,
// decorators, bases, arguments, return type, and the calls and assignments
// that occur directly inside its scope. The semantic index derives a
// deterministic text digest per declaration, obtains a vector embedding for
// it from an OpenAI-compatible provider, and answers nearest-neighbor
// similarity queries against a persisted snapshot.
//
// Analysis results are cached in SQLite keyed by content hash, so repeated
// runs only re-parse files that changed. Embeddings are cached in a single
// snapshot file written after every successful embedding batch.
//
// Typical usage:
//
//	engine, err := arbor.New(dbPath, snapshotPath, provider)
//	if err != nil { ... }
//	defer engine.Close()
//
//	trees, err := engine.AnalyzeDirectory(ctx, repoRoot)
//	engine.IngestTrees(trees)
//	if err := engine.EmbedPending(ctx); err != nil { ... }
//
//	matches, err := engine.Search(ctx, "parse configuration file", 5, 0.7)
package arbor
