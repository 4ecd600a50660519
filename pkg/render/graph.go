// Package render draws the requirement include graph.
//
// Each ``.in`` file is a node; a ``-r``/``-c`` line is an edge from the
// including file to the included one. Shared files feeding multiple
// venvs get a dashed outline, files referenced but absent on disk a red
// one. Output is Graphviz DOT, optionally rendered to SVG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
	"github.com/msftcangoblowm/drain-swamp/pkg/reqfile"
	"github.com/msftcangoblowm/drain-swamp/pkg/venvs"
)

// IncludeGraph is the include structure of one venv's (or the whole
// project's) requirement files.
type IncludeGraph struct {
	// edges maps each file relpath to its referenced relpaths.
	edges map[string][]string
	// missing marks relpaths referenced but absent on disk.
	missing map[string]bool
}

// BuildIncludeGraph walks the ``.in`` files of the named venv, or of
// every venv when venvKey is empty.
func BuildIncludeGraph(m *venvs.Map, venvKey string) (*IncludeGraph, error) {
	var vreqs []venvs.VenvReq
	var err error
	if venvKey != "" {
		vreqs, err = m.Reqs(venvKey)
		if err != nil {
			return nil, err
		}
	} else {
		vreqs = m.All()
	}

	var inFiles []string
	for _, vr := range vreqs {
		inFiles = append(inFiles, req.ReplaceSuffixLast(vr.ReqAbspath(), req.SuffixIn))
	}
	edges, err := reqfile.IncludeEdges(m.Loader().ProjectBase, inFiles)
	if err != nil {
		return nil, err
	}

	g := &IncludeGraph{edges: edges, missing: map[string]bool{}}
	for rel := range edges {
		abspath := filepath.Join(m.Loader().ProjectBase, filepath.FromSlash(rel))
		if _, err := os.Stat(abspath); err != nil {
			g.missing[rel] = true
		}
	}
	return g, nil
}

// Nodes returns every file relpath in the graph, sorted.
func (g *IncludeGraph) Nodes() []string {
	nodes := make([]string, 0, len(g.edges))
	for rel := range g.edges {
		nodes = append(nodes, rel)
	}
	sort.Strings(nodes)
	return nodes
}

// Refs returns the reference targets of one node.
func (g *IncludeGraph) Refs(rel string) []string { return g.edges[rel] }

// ToDOT converts the graph to Graphviz DOT.
func (g *IncludeGraph) ToDOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph requirements {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, rel := range g.Nodes() {
		attrs := []string{fmt.Sprintf("label=%q", rel)}
		switch {
		case g.missing[rel]:
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "color=red", "fontcolor=red")
		case req.IsShared(filepath.Base(rel)):
			attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", rel, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, rel := range g.Nodes() {
		for _, ref := range g.edges[rel] {
			fmt.Fprintf(&buf, "  %q -> %q;\n", rel, ref)
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders DOT to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render SVG")
	}
	return buf.Bytes(), nil
}
