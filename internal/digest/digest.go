// Package digest renders a declaration node as the deterministic text
// summary handed to the embedding provider.
package digest

import (
	"strings"

	"github.com/mvail/arbor/internal/tree"
)

// Digest concatenates the node's present fields in a fixed order, each as
// "<Label>: <value>", joined with " | ". Absent fields are skipped; a node
// with no fields digests to "". Calling Digest twice on an unmodified node
// yields identical strings.
func Digest(n *tree.Node) string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Description", n.Docstring)
	add("Parameters", strings.Join(n.Arguments, ", "))
	add("Returns", n.ReturnType)
	add("Inherits from", strings.Join(n.Bases, ", "))
	add("Calls", strings.Join(n.Calls, ", "))
	add("Assigns", strings.Join(n.Assignments, ", "))
	return strings.Join(parts, " | ")
}

// EmbedInput is the exact string sent to the embedding provider for an item.
func EmbedInput(name, digest string) string {
	return name + ": " + digest
}
