package inspect

import (
	"path/filepath"

	"github.com/msftcangoblowm/drain-swamp/pkg/pep440"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
	"github.com/msftcangoblowm/drain-swamp/pkg/venvs"
)

// Fixing drives conflict detection and repair for one venv. Call
// GetIssues, then FixResolvables; the accessors expose the outcome.
type Fixing struct {
	venvMap *venvs.Map
	venvKey string

	resolvables   []Resolvable
	unresolvables []UnResolvable
	shared        []SharedNotice
	fixed         []ResolvedMsg
	writeErrors   []error
}

// NewFixing prepares conflict fixing for the venv named by venvKey.
// Fails when the key is not a declared venv or requirement files are
// missing on disk.
func NewFixing(m *venvs.Map, venvKey string) (*Fixing, error) {
	if _, err := m.Reqs(venvKey); err != nil {
		return nil, err
	}
	if err := m.EnsureComplete(); err != nil {
		return nil, err
	}
	return &Fixing{venvMap: m, venvKey: m.Loader().EnsureRelpath(venvKey)}, nil
}

// GetIssues scans the venv's ``.lock`` files for packages pinned to
// more than one version and splits them into resolvable and
// unresolvable conflicts. Pins are compared within one environment
// qualifier only; the same package pinned differently under disjoint
// markers is not a conflict.
//
// A conflict is resolvable when every constraint declared for the
// package under the same qualifier in the ``.unlock`` files admits the
// highest pinned version. One rejecting constraint makes it
// unresolvable; no guessing at a mutually acceptable lower version.
func (f *Fixing) GetIssues() error {
	lockPins, err := LoadPins(f.venvMap, f.venvKey, req.SuffixLocked, true)
	if err != nil {
		return err
	}
	issues := HasDiscrepancies(ByPkg(lockPins))

	unlockPins, err := LoadPins(f.venvMap, f.venvKey, req.SuffixUnlocked, false)
	if err != nil {
		return err
	}

	f.resolvables = f.resolvables[:0]
	f.unresolvables = f.unresolvables[:0]
	for _, pkgName := range SortedPkgNames(issues) {
		for _, issue := range issues[pkgName] {
			qualifiers := ""
			if issue.QualifierKey != "" {
				qualifiers = "; " + issue.QualifierKey
			}
			pkgUnlock := FilterByPkgQualifier(unlockPins, pkgName, issue.QualifierKey)

			if admitted(pkgUnlock, issue.Highest) {
				nudge := pkgName + "==" + issue.Highest.String()
				f.resolvables = append(f.resolvables, Resolvable{
					VenvPath:     f.venvKey,
					PkgName:      pkgName,
					QualifierKey: issue.QualifierKey,
					Qualifiers:   qualifiers,
					NudgeUnlock:  nudge,
					NudgeLock:    nudge,
				})
				continue
			}

			sets := make([]string, 0, len(pkgUnlock))
			for _, entry := range pkgUnlock {
				if len(entry.Specifiers) != 0 {
					sets = append(sets, entry.Specifiers.String())
				}
			}
			f.unresolvables = append(f.unresolvables, UnResolvable{
				VenvPath:      f.venvKey,
				PkgName:       pkgName,
				Qualifiers:    qualifiers,
				SpecifierSets: sets,
				Highest:       issue.Highest,
				Others:        issue.Others,
				Entries:       pkgUnlock,
			})
		}
	}
	return nil
}

// admitted reports whether every non-empty specifier set among the
// entries accepts the candidate version.
func admitted(entries []req.Entry, candidate pep440.Version) bool {
	for _, entry := range entries {
		if len(entry.Specifiers) == 0 {
			continue
		}
		if !entry.Specifiers.Check(candidate) {
			return false
		}
	}
	return true
}

// FixResolvables applies the nudges found by GetIssues to every
// affected ``.lock`` file and its sibling ``.unlock``. Conflicts
// touching ``.shared`` files are reported, never rewritten. With dryRun
// set, files are left alone and the would-be fixes reported.
//
// Write failures on individual files do not stop the pass; they are
// collected and reported via WriteErrors.
func (f *Fixing) FixResolvables(dryRun bool) error {
	// unfiltered: .lock always carries a line for every installed package
	lockPins, err := LoadPins(f.venvMap, f.venvKey, req.SuffixLocked, false)
	if err != nil {
		return err
	}

	f.fixed = f.fixed[:0]
	f.shared = f.shared[:0]
	f.writeErrors = f.writeErrors[:0]
	for _, resolvable := range f.resolvables {
		for _, pin := range FilterByPkgQualifier(lockPins, resolvable.PkgName, resolvable.QualifierKey) {
			if req.IsShared(filepath.Base(pin.File)) {
				f.shared = append(f.shared, SharedNotice{
					VenvPath:   f.venvKey,
					Suffix:     req.SuffixLocked,
					Resolvable: resolvable,
					Entry:      pin,
				})
				continue
			}

			for _, suffix := range []string{req.SuffixLocked, req.SuffixUnlocked} {
				path := pin.File
				nudge := resolvable.NudgeLock
				if suffix == req.SuffixUnlocked {
					path = req.ReplaceSuffixLast(pin.File, req.SuffixUnlocked)
					nudge = resolvable.NudgeUnlock
				}
				line := nudge + resolvable.Qualifiers

				if !dryRun {
					if err := WriteNudgePin(path, resolvable.PkgName, resolvable.QualifierKey, line); err != nil {
						f.writeErrors = append(f.writeErrors, err)
						continue
					}
				}
				f.fixed = append(f.fixed, ResolvedMsg{
					VenvPath:     f.venvKey,
					File:         path,
					NudgePinLine: line,
				})
			}
		}
	}
	return nil
}

// Resolvables returns the conflicts that can be fixed automatically.
func (f *Fixing) Resolvables() []Resolvable { return f.resolvables }

// UnResolvables returns the conflicts needing human intervention.
func (f *Fixing) UnResolvables() []UnResolvable { return f.unresolvables }

// SharedNotices returns conflicts touching ``.shared`` files.
func (f *Fixing) SharedNotices() []SharedNotice { return f.shared }

// Fixed returns the applied (or dry-run) nudges.
func (f *Fixing) Fixed() []ResolvedMsg { return f.fixed }

// WriteErrors returns per-file failures from the last FixResolvables.
func (f *Fixing) WriteErrors() []error { return f.writeErrors }

// VenvResult bundles one venv's fixing outcome for reporting.
type VenvResult struct {
	VenvPath      string
	Resolvables   []Resolvable
	UnResolvables []UnResolvable
	Shared        []SharedNotice
	Fixed         []ResolvedMsg
	WriteErrors   []error
}

// FixRequirements runs conflict fixing across venvs. With venvKey empty
// every declared venv is processed, otherwise just the named one.
func FixRequirements(m *venvs.Map, venvKey string, dryRun bool) ([]VenvResult, error) {
	keys := []string{venvKey}
	if venvKey == "" {
		keys = keys[:0]
		seen := map[string]struct{}{}
		for _, vr := range m.All() {
			if _, dup := seen[vr.VenvRelpath]; dup {
				continue
			}
			seen[vr.VenvRelpath] = struct{}{}
			keys = append(keys, vr.VenvRelpath)
		}
	}

	var results []VenvResult
	for _, key := range keys {
		fixing, err := NewFixing(m, key)
		if err != nil {
			return results, err
		}
		if err := fixing.GetIssues(); err != nil {
			return results, err
		}
		if err := fixing.FixResolvables(dryRun); err != nil {
			return results, err
		}
		results = append(results, VenvResult{
			VenvPath:      fixing.venvKey,
			Resolvables:   fixing.Resolvables(),
			UnResolvables: fixing.UnResolvables(),
			Shared:        fixing.SharedNotices(),
			Fixed:         fixing.Fixed(),
			WriteErrors:   fixing.WriteErrors(),
		})
	}
	return results, nil
}
