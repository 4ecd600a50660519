// Package req parses individual requirement lines and handles the
// ``.in`` / ``.unlock`` / ``.lock`` suffix conventions.
//
// A requirements file is line oriented. Ordinary lines declare one
// dependency: a package name, optional extras, optional version
// specifiers, an optional environment-marker qualifier after ";" and an
// optional trailing "#" comment. Lines starting with "-r " or "-c "
// reference another requirements or constraints file and produce no
// Entry; they are handled by the file-graph layer.
package req

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/msftcangoblowm/drain-swamp/pkg/pep440"
)

// nameRE captures the leading package name, with optional extras
// bracket, at the start of a requirement line.
var nameRE = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(\[[A-Za-z0-9._,\s-]+\])?`)

// Entry is one dependency occurrence in one requirements file.
//
// Entries are immutable after construction: ParseLine does all parsing
// up front, so equality and hashing never depend on file re-reads.
type Entry struct {
	// File is the absolute path of the owning requirements file.
	File string
	// Name is the canonical package name: lowercased, "_" and "."
	// folded to "-", so the same logical package is recognized across
	// files that spell it differently.
	Name string
	// Line is the raw line with the trailing comment stripped.
	Line string
	// Specifiers are the version clauses, e.g. ["==2.31.0"] or
	// [">=24.2", "<25"].
	Specifiers pep440.SpecifierSet
	// Qualifiers are environment markers, stored without the leading
	// ";" separator, e.g. [`python_version < "3.11"`].
	Qualifiers []string
}

// NormalizeName converts a package name to its canonical comparable form.
// Lowercase, with underscores and dots folded to hyphens, following the
// normalization rules used by PyPI.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	return s
}

// StripComment removes an inline "#" comment and trailing whitespace.
func StripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimRight(line, " \t")
}

// IsBlankOrComment reports whether the line carries no requirement data.
func IsBlankOrComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// IsFileReference reports whether the line includes another file via
// "-r " (requirements) or "-c " (constraints).
func IsFileReference(line string) bool {
	return strings.HasPrefix(line, "-r ") || strings.HasPrefix(line, "-c ")
}

// FileReference extracts the referenced relative path from a "-r"/"-c"
// line, with any trailing comment stripped. The second result is the
// reference kind: "r" or "c".
func FileReference(line string) (path string, kind string) {
	kind = string(line[1])
	path = strings.TrimSpace(StripComment(line[3:]))
	return path, kind
}

// ParseLine parses one ordinary requirement line from the file at
// fileAbspath. It returns an error for blank lines, comments, file
// references, and anything else that does not start with a package name
// (URLs, pip options); callers filter those out first.
func ParseLine(fileAbspath, rawLine string) (Entry, error) {
	line := StripComment(strings.TrimSpace(rawLine))
	if line == "" {
		return Entry{}, fmt.Errorf("req: blank line")
	}
	if strings.HasPrefix(line, "-") {
		return Entry{}, fmt.Errorf("req: option line %q is not a requirement", line)
	}
	if strings.Contains(line, "://") || strings.HasPrefix(line, "git+") {
		return Entry{}, fmt.Errorf("req: URL requirement %q is unsupported", line)
	}

	// Split off the qualifier portion first; the specifiers never
	// contain a semicolon.
	spec := line
	var qualifiers []string
	if i := strings.IndexByte(line, ';'); i >= 0 {
		spec = strings.TrimRight(line[:i], " \t")
		qualifiers = parseQualifiers(line[i:])
	}

	m := nameRE.FindStringSubmatch(spec)
	if m == nil {
		return Entry{}, fmt.Errorf("req: no package name in %q", rawLine)
	}
	rest := strings.TrimSpace(spec[len(m[0]):])

	var set pep440.SpecifierSet
	if rest != "" {
		parsed, err := pep440.ParseSpecifierSet(strings.Trim(rest, "()"))
		if err != nil {
			return Entry{}, fmt.Errorf("req: line %q: %w", rawLine, err)
		}
		set = parsed
	}

	return Entry{
		File:       fileAbspath,
		Name:       NormalizeName(m[1]),
		Line:       line,
		Specifiers: set,
		Qualifiers: qualifiers,
	}, nil
}

// parseQualifiers splits the marker portion of a line (starting at the
// first ";") into cleaned qualifier strings. The spelling
// `os_name == "nt"` is normalized to `platform_system == "Windows"` so
// equivalent Windows markers compare equal across files.
func parseQualifiers(markers string) []string {
	var out []string
	for _, q := range strings.Split(markers, ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if strings.HasPrefix(q, "os_name") && strings.Contains(q, "nt") {
			q = `platform_system == "Windows"`
		}
		out = append(out, q)
	}
	return out
}

// IsPin reports whether the entry pins an exact version.
func (e Entry) IsPin() bool {
	for _, spec := range e.Specifiers {
		if spec.IsExactPin() {
			return true
		}
	}
	return false
}

// PinVersion returns the exactly pinned version. The boolean is false
// when the entry is a range or unconstrained declaration, or the pinned
// version cannot be parsed.
func (e Entry) PinVersion() (pep440.Version, bool) {
	for _, spec := range e.Specifiers {
		if !spec.IsExactPin() {
			continue
		}
		v, err := pep440.ParseVersion(spec.Version)
		if err != nil {
			return pep440.Version{}, false
		}
		return v, true
	}
	return pep440.Version{}, false
}

// QualifierKey joins the qualifiers into a canonical comparison string.
// Two entries with equal QualifierKey apply to the same environments.
func (e Entry) QualifierKey() string {
	return strings.Join(e.Qualifiers, "; ")
}

// Key identifies an entry inside aggregation sets: same file, same
// package, same qualifier environment. The specifiers are a view of the
// line and deliberately excluded, mirroring how entries are deduplicated
// when files are re-read.
func (e Entry) Key() string {
	return e.File + "\x00" + e.Name + "\x00" + e.QualifierKey()
}
