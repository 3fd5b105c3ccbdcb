package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mvail/arbor"
)

// outputTreesText renders the declaration forest as an indented tree, one
// block per file.
func outputTreesText(w io.Writer, trees []arbor.FileTree) {
	total := 0
	for _, ft := range trees {
		total += len(ft.Roots)
	}
	fmt.Fprintf(w, "Analysis Results\n")
	fmt.Fprintf(w, "Files analyzed: %d\n", len(trees))
	fmt.Fprintf(w, "Top-level declarations: %d\n\n", total)

	for _, ft := range trees {
		if len(ft.Roots) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\n", ft.Path)
		for _, root := range ft.Roots {
			printNode(w, root, 1)
		}
		fmt.Fprintln(w)
	}
}

func printNode(w io.Writer, n *arbor.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s (%s)  line %d-%d\n", indent, n.Name, n.Kind, n.StartLine, n.EndLine)
	if len(n.Bases) > 0 {
		fmt.Fprintf(w, "%s  bases: %s\n", indent, strings.Join(n.Bases, ", "))
	}
	if n.Docstring != "" {
		fmt.Fprintf(w, "%s  doc: %s\n", indent, firstLine(n.Docstring))
	}
	if len(n.Decorators) > 0 {
		fmt.Fprintf(w, "%s  decorators: %s\n", indent, strings.Join(n.Decorators, ", "))
	}
	if len(n.Arguments) > 0 {
		fmt.Fprintf(w, "%s  args: %s\n", indent, strings.Join(n.Arguments, ", "))
	}
	if n.ReturnType != "" {
		fmt.Fprintf(w, "%s  returns: %s\n", indent, n.ReturnType)
	}
	if len(n.Assignments) > 0 {
		fmt.Fprintf(w, "%s  assigns: %s\n", indent, strings.Join(n.Assignments, ", "))
	}
	if len(n.Calls) > 0 {
		fmt.Fprintf(w, "%s  calls: %s\n", indent, strings.Join(n.Calls, ", "))
	}
	for _, child := range n.Children {
		printNode(w, child, depth+1)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func outputTreesJSON(w io.Writer, trees []arbor.FileTree) error {
	type fileJSON struct {
		Path  string        `json:"path"`
		Nodes []*arbor.Node `json:"nodes"`
	}
	out := make([]fileJSON, 0, len(trees))
	for _, ft := range trees {
		out = append(out, fileJSON{Path: ft.Path, Nodes: ft.Roots})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// outputMatchesText renders search results ranked best-first.
func outputMatchesText(w io.Writer, matches []arbor.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matching declarations found.")
		return
	}
	fmt.Fprintln(w, "Matching declarations:")
	for i, m := range matches {
		fmt.Fprintf(w, "\n%d. %s (%.2f similarity)\n", i+1, m.Item.Name, m.Score)
		fmt.Fprintf(w, "   Kind: %s\n", m.Item.Kind)
		fmt.Fprintf(w, "   File: %s\n", m.Item.FilePath)
		if m.Item.Digest != "" {
			fmt.Fprintf(w, "   Digest: %s\n", m.Item.Digest)
		}
	}
}

func outputMatchesJSON(w io.Writer, matches []arbor.Match) error {
	type matchJSON struct {
		Name     string  `json:"name"`
		Kind     string  `json:"kind"`
		FilePath string  `json:"file_path"`
		Digest   string  `json:"digest"`
		Score    float64 `json:"score"`
	}
	out := make([]matchJSON, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchJSON{
			Name:     m.Item.Name,
			Kind:     string(m.Item.Kind),
			FilePath: m.Item.FilePath,
			Digest:   m.Item.Digest,
			Score:    m.Score,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
