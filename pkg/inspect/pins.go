// Package inspect finds and fixes version discrepancies across a venv's
// requirement files.
//
// After lock files are compiled per requirement stem, the same package
// can end up pinned to different versions in different ``.lock`` files
// of one venv. This package detects those conflicts, classifies each as
// resolvable or not against the constraints declared in the ``.unlock``
// files, and rewrites the affected lines in place.
package inspect

import (
	"os"
	"sort"
	"strings"

	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
	"github.com/msftcangoblowm/drain-swamp/pkg/venvs"
)

// LoadPins reads every requirement file with the given ending belonging
// to one venv and parses the package lines. Unparseable lines (options,
// URLs, editable installs) are skipped. With exactOnly set, entries
// without an exact ``==`` pin are dropped.
func LoadPins(m *venvs.Map, venvKey, suffix string, exactOnly bool) ([]req.Entry, error) {
	vreqs, err := m.Reqs(venvKey)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var entries []req.Entry
	for _, vr := range vreqs {
		files, err := vr.ReqsAll(suffix)
		if err != nil {
			return nil, err
		}
		for _, abspath := range files {
			if _, dup := seen[abspath]; dup {
				continue
			}
			seen[abspath] = struct{}{}

			data, err := os.ReadFile(abspath)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeMissingRequirements, err,
					"reading %s", abspath)
			}
			for _, raw := range strings.Split(string(data), "\n") {
				entry, err := req.ParseLine(abspath, raw)
				if err != nil {
					continue
				}
				if exactOnly && !entry.IsPin() {
					continue
				}
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

// ByPkg groups entries by normalized package name.
func ByPkg(entries []req.Entry) map[string][]req.Entry {
	out := map[string][]req.Entry{}
	for _, entry := range entries {
		out[entry.Name] = append(out[entry.Name], entry)
	}
	return out
}

// FilterByPkg returns the entries of one package.
func FilterByPkg(entries []req.Entry, pkgName string) []req.Entry {
	name := req.NormalizeName(pkgName)
	var out []req.Entry
	for _, entry := range entries {
		if entry.Name == name {
			out = append(out, entry)
		}
	}
	return out
}

// FilterByPkgQualifier returns the entries of one package under one
// environment qualifier key. The empty key selects unconditional lines.
func FilterByPkgQualifier(entries []req.Entry, pkgName, qualifierKey string) []req.Entry {
	var out []req.Entry
	for _, entry := range FilterByPkg(entries, pkgName) {
		if entry.QualifierKey() == qualifierKey {
			out = append(out, entry)
		}
	}
	return out
}

// SortedPkgNames returns map keys in stable order for reporting.
func SortedPkgNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
