// Package reqfile models requirement source files and the include graph
// formed by their ``-r`` and ``-c`` lines.
//
// A ``.in`` file may pull in other files; those may pull in more. The
// graph is flattened by a fixed-point loop: files with no unresolved
// references move to the resolved set, then their requirement lines are
// folded into every file that references them. When a pass makes no
// progress the remaining references are either missing on disk or
// circular, and resolution stops with an error naming the files.
package reqfile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
)

// File is one requirement source file within the include graph.
//
// Requirement lines are kept verbatim (inline comments stripped) while
// references resolve; Lines folds duplicate declarations of one package
// together when the flattened list is read out.
type File struct {
	// Relpath locates the file relative to the project base.
	Relpath string
	// Stem is the file name without its ending.
	Stem string

	refs  map[string]struct{}
	lines map[string]struct{}
}

// Depth is the number of still unresolved file references.
func (f *File) Depth() int { return len(f.refs) }

// Refs returns the unresolved reference relpaths, sorted.
func (f *File) Refs() []string {
	out := make([]string, 0, len(f.refs))
	for ref := range f.refs {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// Lines returns the accumulated requirement lines, sorted, with
// duplicate declarations of one package under the same environment
// qualifier folded into a single line. An exact pin the group's other
// clauses admit carries the line; otherwise the clauses are conjoined,
// since stacked includes mean all of them apply. Lines that are not
// plain requirements dedupe by exact text only.
func (f *File) Lines() []string {
	raw := make([]string, 0, len(f.lines))
	for line := range f.lines {
		raw = append(raw, line)
	}
	sort.Strings(raw)

	type group struct {
		lines   []string
		entries []req.Entry
	}
	groups := map[string]*group{}
	var keys []string
	var out []string
	for _, line := range raw {
		entry, err := req.ParseLine(f.Relpath, line)
		if err != nil {
			out = append(out, line)
			continue
		}
		key := entry.Name + "\x00" + entry.QualifierKey()
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			keys = append(keys, key)
		}
		g.lines = append(g.lines, line)
		g.entries = append(g.entries, entry)
	}
	for _, key := range keys {
		g := groups[key]
		if len(g.lines) == 1 {
			out = append(out, g.lines[0])
			continue
		}
		out = append(out, mergeLines(g.lines, g.entries))
	}
	sort.Strings(out)
	return out
}

// mergeLines folds one package's duplicate lines into a single line.
func mergeLines(lines []string, entries []req.Entry) string {
	for i, entry := range entries {
		pin, ok := entry.PinVersion()
		if !ok {
			continue
		}
		admitted := true
		for j, other := range entries {
			if j != i && !other.Specifiers.Check(pin) {
				admitted = false
				break
			}
		}
		if admitted {
			return lines[i]
		}
	}

	var clauses []string
	seen := map[string]struct{}{}
	for _, entry := range entries {
		for _, spec := range entry.Specifiers {
			clause := spec.String()
			if _, dup := seen[clause]; dup {
				continue
			}
			seen[clause] = struct{}{}
			clauses = append(clauses, clause)
		}
	}
	merged := namePrefix(lines[0]) + strings.Join(clauses, ",")
	if key := entries[0].QualifierKey(); key != "" {
		merged += " ; " + key
	}
	return merged
}

// namePrefix returns the package name, extras bracket included, at the
// start of a requirement line.
func namePrefix(line string) string {
	if i := strings.IndexAny(line, "<>=!~; "); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// resolve folds a resolved reference's lines into this file.
func (f *File) resolve(ref string, lines map[string]struct{}) {
	delete(f.refs, ref)
	for line := range lines {
		f.lines[line] = struct{}{}
	}
}

// loadFile reads and parses one requirement file. Referenced paths are
// taken relative to the file's own folder and normalized to be relative
// to the project base.
func loadFile(projectBase, abspath string) (*File, error) {
	rel, err := filepath.Rel(projectBase, abspath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, errors.New(errors.ErrCodeInvalidPath,
			"requirement file %s not under project base %s", abspath, projectBase)
	}

	data, err := os.ReadFile(abspath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMissingRequirements, err,
			"reading requirement file %s", abspath)
	}

	f := &File{
		Relpath: filepath.ToSlash(rel),
		Stem:    req.StripEnding(filepath.Base(abspath)),
		refs:    map[string]struct{}{},
		lines:   map[string]struct{}{},
	}
	dir := filepath.Dir(abspath)
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(req.StripComment(raw))
		if line == "" {
			continue
		}
		if req.IsFileReference(line) {
			refPath, _ := req.FileReference(line)
			refAbs := refPath
			if !filepath.IsAbs(refAbs) {
				refAbs = filepath.Join(dir, filepath.FromSlash(refPath))
			}
			refRel, err := filepath.Rel(projectBase, refAbs)
			if err != nil || strings.HasPrefix(refRel, "..") {
				return nil, errors.New(errors.ErrCodeInvalidPath,
					"%s references %s outside project base %s", f.Relpath, refPath, projectBase)
			}
			f.refs[filepath.ToSlash(refRel)] = struct{}{}
			continue
		}
		f.lines[line] = struct{}{}
	}
	return f, nil
}

// Graph resolves a set of requirement files and everything they include.
type Graph struct {
	projectBase string
	// pending holds files with at least one unresolved reference.
	pending map[string]*File
	// resolved holds files whose lines are final.
	resolved map[string]*File
}

// NewGraph loads the given requirement files (absolute paths) without
// resolving anything yet. Files given twice are loaded once.
func NewGraph(projectBase string, inFiles []string) (*Graph, error) {
	g := &Graph{
		projectBase: projectBase,
		pending:     map[string]*File{},
		resolved:    map[string]*File{},
	}
	for _, abspath := range inFiles {
		if err := g.add(abspath); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) add(abspath string) error {
	f, err := loadFile(g.projectBase, abspath)
	if err != nil {
		return err
	}
	if _, ok := g.pending[f.Relpath]; ok {
		return nil
	}
	if _, ok := g.resolved[f.Relpath]; ok {
		return nil
	}
	g.pending[f.Relpath] = f
	return nil
}

// moveResolved promotes pending files whose reference count hit zero.
func (g *Graph) moveResolved() {
	for rel, f := range g.pending {
		if f.Depth() == 0 {
			g.resolved[rel] = f
			delete(g.pending, rel)
		}
	}
}

// resolveOnce runs one pass: promote zero-depth files, load newly
// discovered references, then fold resolved lines into their referrers.
func (g *Graph) resolveOnce() error {
	g.moveResolved()

	var discovered []string
	for _, f := range g.pending {
		for ref := range f.refs {
			if _, ok := g.pending[ref]; ok {
				continue
			}
			if _, ok := g.resolved[ref]; ok {
				continue
			}
			discovered = append(discovered, filepath.Join(g.projectBase, filepath.FromSlash(ref)))
		}
	}
	sort.Strings(discovered)
	for _, abspath := range discovered {
		if _, err := os.Stat(abspath); err != nil {
			// Leave the reference dangling; the loop reports it once
			// no further progress is possible.
			continue
		}
		if err := g.add(abspath); err != nil {
			return err
		}
	}
	g.moveResolved()

	for _, f := range g.pending {
		for _, ref := range f.Refs() {
			if other, ok := g.resolved[ref]; ok {
				f.resolve(ref, other.lines)
			}
		}
	}
	g.moveResolved()
	return nil
}

// Resolve runs passes until every file is resolved. Two consecutive
// passes with the same pending count mean the remaining references are
// missing on disk or form a cycle.
func (g *Graph) Resolve() error {
	previous := len(g.pending)
	for len(g.pending) != 0 {
		if err := g.resolveOnce(); err != nil {
			return err
		}
		current := len(g.pending)
		if current != 0 && current == previous {
			return g.stalled()
		}
		previous = current
	}
	return nil
}

// stalled builds the resolution failure. Dangling references to files
// absent on disk are a missing-requirements problem; references between
// files that are all present form a cycle.
func (g *Graph) stalled() error {
	var files, missing []string
	for rel, f := range g.pending {
		files = append(files, rel)
		for ref := range f.refs {
			abspath := filepath.Join(g.projectBase, filepath.FromSlash(ref))
			if _, err := os.Stat(abspath); err != nil {
				missing = append(missing, ref)
			}
		}
	}
	sort.Strings(files)
	sort.Strings(missing)

	if len(missing) != 0 {
		return errors.New(errors.ErrCodeMissingRequirements,
			"unresolvable references in %s; missing files: %s",
			strings.Join(files, ", "), strings.Join(missing, ", "))
	}
	return errors.New(errors.ErrCodeRequirementsCycle,
		"circular references between requirement files: %s", strings.Join(files, ", "))
}

// Resolved returns every resolved file, sorted by relpath.
func (g *Graph) Resolved() []*File {
	out := make([]*File, 0, len(g.resolved))
	for _, f := range g.resolved {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relpath < out[j].Relpath })
	return out
}

// Get returns a resolved file by project-relative path.
func (g *Graph) Get(relpath string) (*File, bool) {
	f, ok := g.resolved[filepath.ToSlash(relpath)]
	return f, ok
}

// IncludeEdges walks the include graph without flattening it. The
// result maps each discovered file's relpath to its reference relpaths,
// sorted. References to files absent on disk still appear as targets,
// keyed with an empty reference list.
func IncludeEdges(projectBase string, inFiles []string) (map[string][]string, error) {
	edges := map[string][]string{}
	queue := append([]string{}, inFiles...)
	for len(queue) != 0 {
		abspath := queue[0]
		queue = queue[1:]

		if _, err := os.Stat(abspath); err != nil {
			if rel, relErr := filepath.Rel(projectBase, abspath); relErr == nil {
				rel = filepath.ToSlash(rel)
				if _, seen := edges[rel]; !seen {
					edges[rel] = []string{}
				}
			}
			continue
		}
		f, err := loadFile(projectBase, abspath)
		if err != nil {
			return nil, err
		}
		if _, seen := edges[f.Relpath]; seen {
			continue
		}
		refs := f.Refs()
		edges[f.Relpath] = refs
		for _, ref := range refs {
			queue = append(queue, filepath.Join(projectBase, filepath.FromSlash(ref)))
		}
	}
	return edges, nil
}

// WriteUnlock writes one ``.unlock`` file per resolved ``.in`` file,
// flattening the include graph into a plain list of requirement lines.
// Shared pin files are support files for other venvs and are skipped.
// Returns the written absolute paths.
func (g *Graph) WriteUnlock() ([]string, error) {
	var written []string
	for _, f := range g.Resolved() {
		base := filepath.Base(f.Relpath)
		if req.IsShared(base) {
			continue
		}
		abspath := filepath.Join(g.projectBase, filepath.FromSlash(f.Relpath))
		target := req.ReplaceSuffixLast(abspath, req.SuffixUnlocked)
		contents := strings.Join(f.Lines(), "\n") + "\n"
		if err := os.WriteFile(target, []byte(contents), 0o644); err != nil {
			return written, errors.Wrap(errors.ErrCodeWriteFailed, err, "writing %s", target)
		}
		written = append(written, target)
	}
	return written, nil
}
