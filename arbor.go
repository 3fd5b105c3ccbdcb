package arbor

import (
	"github.com/mvail/arbor/internal/embed"
	"github.com/mvail/arbor/internal/index"
	"github.com/mvail/arbor/internal/store"
	"github.com/mvail/arbor/internal/tree"
)

// Public type aliases for internal types used in the Engine API. These are
// Go type aliases (=) — identical to the internal types at compile time.

type Node = tree.Node
type Kind = tree.Kind
type CodeItem = index.Item
type Match = index.Match
type Provider = embed.Provider
type Store = store.Store

const (
	KindModule        = tree.KindModule
	KindClass         = tree.KindClass
	KindFunction      = tree.KindFunction
	KindAsyncFunction = tree.KindAsyncFunction
)
