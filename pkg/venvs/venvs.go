// Package venvs loads the project's virtual-environment map from the
// ``[[tool.venvs]]`` array of tables in pyproject.toml.
//
// Each table declares one venv: its base folder (relative to the project
// root, doubling as the venv's identifier) and the requirement file stems
// it owns. A stem is a relative path without the ``.in`` / ``.unlock`` /
// ``.lock`` ending:
//
//	[[tool.venvs]]
//	venv_base_path = '.venv'
//	reqs = ['requirements/prod', 'requirements/pip']
//
// The map is loaded once per command invocation and is read-only for the
// duration of the command.
package venvs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
)

// PyprojectName is the configuration file searched for, walking up from
// the start directory toward the filesystem root.
const PyprojectName = "pyproject.toml"

// venvTable mirrors one [[tool.venvs]] entry.
type venvTable struct {
	VenvBasePath string   `toml:"venv_base_path"`
	Reqs         []string `toml:"reqs"`
}

// pyproject covers only the slice of pyproject.toml this tool reads.
type pyproject struct {
	Tool struct {
		Venvs []venvTable `toml:"venvs"`
	} `toml:"tool"`
}

// Loader holds the located pyproject.toml and its decoded venv tables.
type Loader struct {
	// ProjectBase is the folder containing pyproject.toml. All relative
	// paths in the configuration resolve against it.
	ProjectBase string
	// PyprojectToml is the absolute path of the configuration file.
	PyprojectToml string

	tables []venvTable
}

// FindPyproject walks up from start (a file or directory path) until it
// finds a pyproject.toml, returning its absolute path.
func FindPyproject(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolving start path %q", start)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, PyprojectName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return "", errors.New(errors.ErrCodeConfigNotFound,
		"no %s found searching upward from %s", PyprojectName, abs)
}

// NewLoader locates and decodes pyproject.toml starting the reverse
// search at start. It fails when the file cannot be found or read, when
// the TOML is malformed, or when no [[tool.venvs]] tables are declared.
func NewLoader(start string) (*Loader, error) {
	path, err := FindPyproject(start)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigNotFound, err, "reading %s", path)
	}

	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigParse, err, "parsing %s", path)
	}
	if len(doc.Tool.Venvs) == 0 {
		return nil, errors.New(errors.ErrCodeConfigParse,
			"%s has no [[tool.venvs]] tables", path)
	}
	for _, table := range doc.Tool.Venvs {
		if strings.TrimSpace(table.VenvBasePath) == "" {
			return nil, errors.New(errors.ErrCodeConfigParse,
				"[[tool.venvs]] entry missing venv_base_path in %s", path)
		}
		if len(table.Reqs) == 0 {
			return nil, errors.New(errors.ErrCodeConfigParse,
				"[[tool.venvs]] entry %q declares no reqs", table.VenvBasePath)
		}
	}

	return &Loader{
		ProjectBase:   filepath.Dir(path),
		PyprojectToml: path,
		tables:        doc.Tool.Venvs,
	}, nil
}

// VenvRelpaths returns the declared venv identifiers in declaration order.
func (l *Loader) VenvRelpaths() []string {
	out := make([]string, 0, len(l.tables))
	for _, table := range l.tables {
		out = append(out, table.VenvBasePath)
	}
	return out
}

// EnsureAbspath resolves key, a venv path either relative to the project
// base or already absolute, to an absolute path.
func (l *Loader) EnsureAbspath(key string) string {
	if filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(l.ProjectBase, key)
}

// EnsureRelpath is the inverse of EnsureAbspath: it folds an absolute
// venv path back to the project-relative identifier used as a map key.
func (l *Loader) EnsureRelpath(key string) string {
	if !filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	if rel, err := filepath.Rel(l.ProjectBase, key); err == nil {
		return rel
	}
	return key
}

// VenvReq associates one requirement file stem with its venv.
type VenvReq struct {
	// ProjectBase is the package base folder absolute path.
	ProjectBase string
	// VenvRelpath is the venv identifier (relative path of its folder).
	VenvRelpath string
	// ReqRelpath is the declared requirement stem, without ending.
	ReqRelpath string
	// ReqFolders are the distinct folders (relative paths) holding this
	// venv's requirement files; constraint files are searched here.
	ReqFolders []string
}

// VenvAbspath returns the venv folder absolute path.
func (vr VenvReq) VenvAbspath() string {
	return filepath.Join(vr.ProjectBase, vr.VenvRelpath)
}

// ReqAbspath returns the requirement stem as an absolute path, still
// without an ending; combine with req.ReplaceSuffixLast.
func (vr VenvReq) ReqAbspath() string {
	return filepath.Join(vr.ProjectBase, filepath.FromSlash(vr.ReqRelpath))
}

// IsReqShared reports whether the stem names a ``.shared`` requirements
// file used by multiple venvs.
func (vr VenvReq) IsReqShared() bool {
	return req.IsShared(filepath.Base(vr.ReqRelpath) + req.SuffixIn)
}

// ReqsAll globs every file with the given ending inside this venv's
// requirement folders. Support files not declared in reqs (shared pins
// pulled in via constraints) are found this way.
func (vr VenvReq) ReqsAll(suffix string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, folder := range vr.ReqFolders {
		pattern := filepath.ToSlash(filepath.Join(vr.ProjectBase, folder)) + "/*" + suffix
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "globbing %q", pattern)
		}
		for _, m := range matches {
			if _, dup := seen[m]; !dup {
				seen[m] = struct{}{}
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Map is the parsed venv-to-requirements mapping.
type Map struct {
	loader *Loader
	reqs   []VenvReq
	// missing describes requirement files absent on disk, one message
	// per stem with at least one absent suffix sibling.
	missing []string
}

// NewMap parses the loader's venv tables. checkSuffixes lists the
// endings whose presence on disk is verified for every declared stem;
// when empty it defaults to all three. A venv base folder that is not a
// directory is a hard error; absent requirement files are collected and
// reported via Missing.
func NewMap(loader *Loader, checkSuffixes ...string) (*Map, error) {
	if len(checkSuffixes) == 0 {
		checkSuffixes = []string{req.SuffixIn, req.SuffixUnlocked, req.SuffixLocked}
	}

	var reqs []VenvReq
	var missing []string
	for _, table := range loader.tables {
		if info, err := os.Stat(loader.EnsureAbspath(table.VenvBasePath)); err != nil || !info.IsDir() {
			return nil, errors.New(errors.ErrCodeMissingRequirements,
				"venv base folder %q does not exist; create it", table.VenvBasePath)
		}

		folders := map[string]struct{}{}
		for _, stem := range table.Reqs {
			folders[filepath.ToSlash(filepath.Dir(stem))] = struct{}{}
		}
		folderList := make([]string, 0, len(folders))
		for folder := range folders {
			folderList = append(folderList, folder)
		}
		sort.Strings(folderList)

		for _, stem := range table.Reqs {
			vr := VenvReq{
				ProjectBase: loader.ProjectBase,
				VenvRelpath: table.VenvBasePath,
				ReqRelpath:  stem,
				ReqFolders:  folderList,
			}
			var absent []string
			for _, suffix := range checkSuffixes {
				path := req.ReplaceSuffixLast(vr.ReqAbspath(), suffix)
				if info, err := os.Stat(path); err != nil || info.IsDir() {
					absent = append(absent, path)
				}
			}
			if len(absent) != 0 {
				missing = append(missing,
					"venv "+table.VenvBasePath+": missing "+strings.Join(absent, ", "))
			}
			reqs = append(reqs, vr)
		}
	}

	return &Map{loader: loader, reqs: reqs, missing: missing}, nil
}

// Loader returns the loader the map was built from.
func (m *Map) Loader() *Loader { return m.loader }

// Missing lists requirement files that are declared but absent on disk.
func (m *Map) Missing() []string { return m.missing }

// EnsureComplete returns an error when any declared requirement file is
// absent for a checked suffix.
func (m *Map) EnsureComplete() error {
	if len(m.missing) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeMissingRequirements,
		"missing requirement files: %s", strings.Join(m.missing, "; "))
}

// Len returns the total number of declared requirement stems.
func (m *Map) Len() int { return len(m.reqs) }

// All returns every VenvReq across all venvs.
func (m *Map) All() []VenvReq { return m.reqs }

// Has reports whether the key names a declared venv. The key may be
// relative to the project base or absolute.
func (m *Map) Has(key string) bool {
	rel := m.loader.EnsureRelpath(key)
	for _, vr := range m.reqs {
		if vr.VenvRelpath == rel {
			return true
		}
	}
	return false
}

// Reqs returns the requirement stems declared for one venv.
func (m *Map) Reqs(key string) ([]VenvReq, error) {
	rel := m.loader.EnsureRelpath(key)
	var out []VenvReq
	for _, vr := range m.reqs {
		if vr.VenvRelpath == rel {
			out = append(out, vr)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidVenv, "no such venv %q", key)
	}
	return out, nil
}
