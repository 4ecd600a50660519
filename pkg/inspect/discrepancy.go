package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
	"github.com/msftcangoblowm/drain-swamp/pkg/pep440"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
)

// PkgIssue records a version discrepancy for one package within one
// environment qualifier across the venv's ``.lock`` files: the highest
// pinned version, which every other pin will be nudged to, and the
// competing versions.
type PkgIssue struct {
	// QualifierKey is the canonical environment-marker key shared by
	// the conflicting pins, "" for unconditional lines.
	QualifierKey string
	Highest      pep440.Version
	Others       []pep440.Version
}

// HasDiscrepancies scans exact pins grouped by package and environment
// qualifier and returns the groups pinned to more than one version.
// Pins of one package under differing qualifier keys apply to disjoint
// environments and never conflict with each other. Comparison is by
// version equality only; two spellings of the same version are not an
// issue.
func HasDiscrepancies(byPkg map[string][]req.Entry) map[string][]PkgIssue {
	out := map[string][]PkgIssue{}
	for pkgName, entries := range byPkg {
		groups := map[string][]req.Entry{}
		var keys []string
		for _, entry := range entries {
			key := entry.QualifierKey()
			if _, seen := groups[key]; !seen {
				keys = append(keys, key)
			}
			groups[key] = append(groups[key], entry)
		}
		sort.Strings(keys)

		for _, key := range keys {
			var highest pep440.Version
			var others []pep440.Version
			first := true
			conflict := false
			for _, entry := range groups[key] {
				ver, ok := entry.PinVersion()
				if !ok {
					continue
				}
				switch {
				case first:
					highest = ver
					first = false
				case ver.Compare(highest) > 0:
					others = appendVersion(others, highest)
					highest = ver
					conflict = true
				case !ver.Equal(highest):
					others = appendVersion(others, ver)
					conflict = true
				}
			}
			if conflict {
				sort.Slice(others, func(i, j int) bool { return others[i].Compare(others[j]) < 0 })
				out[pkgName] = append(out[pkgName], PkgIssue{
					QualifierKey: key,
					Highest:      highest,
					Others:       others,
				})
			}
		}
	}
	return out
}

func appendVersion(versions []pep440.Version, v pep440.Version) []pep440.Version {
	for _, have := range versions {
		if have.Equal(v) {
			return versions
		}
	}
	return append(versions, v)
}

// Resolvable is a version conflict every declared constraint admits the
// highest pinned version for. Applying the nudge pins settles it.
type Resolvable struct {
	VenvPath string
	PkgName  string
	// QualifierKey is the conflicting pins' shared environment key; the
	// nudge only touches lines under that key, "" for unconditional.
	QualifierKey string
	// Qualifiers is the environment-marker suffix appended to the nudge
	// line, empty or of the form "; python_version < \"3.11\"".
	Qualifiers string
	// NudgeUnlock replaces the package's line in ``.unlock`` files.
	NudgeUnlock string
	// NudgeLock replaces the package's line in ``.lock`` files.
	NudgeLock string
}

// UnResolvable is a version conflict at least one declared constraint
// rejects the highest pinned version for. Human intervention required;
// everything needed to understand the conflict is carried along.
type UnResolvable struct {
	VenvPath   string
	PkgName    string
	Qualifiers string
	// SpecifierSets are the constraints declared in ``.unlock`` files.
	SpecifierSets []string
	Highest       pep440.Version
	Others        []pep440.Version
	// Entries are the package's current ``.unlock`` pins.
	Entries []req.Entry
}

func (u UnResolvable) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (venv %s): constraints %s reject highest pin %s",
		u.PkgName, u.VenvPath, strings.Join(u.SpecifierSets, " and "), u.Highest)
	if len(u.Others) != 0 {
		versions := make([]string, len(u.Others))
		for i, v := range u.Others {
			versions[i] = v.String()
		}
		fmt.Fprintf(&b, "; competing pins %s", strings.Join(versions, ", "))
	}
	return b.String()
}

// ResolvedMsg reports one applied (or dry-run) nudge.
type ResolvedMsg struct {
	VenvPath string
	// File is the rewritten requirement file's absolute path.
	File string
	// NudgePinLine is the line now pinning the package, without newline.
	NudgePinLine string
}

// SharedNotice flags a conflict touching a ``.shared`` requirements
// file. Shared files feed multiple venvs, so a nudge computed for one
// venv is never applied automatically.
type SharedNotice struct {
	VenvPath   string
	Suffix     string
	Resolvable Resolvable
	// Entry is the shared file's current pin of the package.
	Entry req.Entry
}

// packageNameRE matches a requirement line's leading package name when
// followed by a version operator, a direct reference, or a qualifier.
var packageNameRE = regexp.MustCompile(`^(\S+?)\s*(==|<=|>=|~=|!=|===|<|>|@|;)`)

// ExtractPackageName pulls the package name off a requirement line and
// reports whether it is exactly the desired package. A prefix match is
// not enough; a line for tox-gh-actions must not match tox.
func ExtractPackageName(line, desired string) (string, bool) {
	m := packageNameRE.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	name := m[1]
	return name, req.NormalizeName(name) == req.NormalizeName(desired)
}

// WriteNudgePin rewrites the one line of path pinning pkgName under
// qualifierKey to nudgeLine (no trailing newline), appending it when no
// line matches. Lines for the same package under a different
// environment key are left alone, as is every other byte of the file.
// The rewrite goes through a temp file in the same folder followed by a
// rename.
func WriteNudgePin(path, pkgName, qualifierKey, nudgeLine string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMissingRequirements, err, "reading %s", path)
	}

	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := ExtractPackageName(line, pkgName); !ok {
			continue
		}
		if lineQualifierKey(path, line) != qualifierKey {
			continue
		}
		lines[i] = nudgeLine
		found = true
	}
	if !found {
		// keep a single trailing newline
		for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, nudgeLine, "")
	}

	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "replacing %s", path)
	}
	return nil
}

// lineQualifierKey extracts a requirement line's canonical environment
// key. Lines ParseLine rejects (direct references) count as
// unconditional.
func lineQualifierKey(path, line string) string {
	entry, err := req.ParseLine(path, line)
	if err != nil {
		return ""
	}
	return entry.QualifierKey()
}
