package venvs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
)

const samplePyproject = `[project]
name = "sample"

[[tool.venvs]]
venv_base_path = '.venv'
reqs = [
    'requirements/prod',
    'requirements/pip',
]

[[tool.venvs]]
venv_base_path = '.doc/.venv'
reqs = ['docs/requirements']
`

// scaffold writes a project tree with pyproject.toml, venv folders and
// requirement files for every suffix, returning the project root.
func scaffold(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("pyproject.toml", samplePyproject)
	for _, dir := range []string{".venv", ".doc/.venv"} {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, stem := range []string{"requirements/prod", "requirements/pip", "docs/requirements"} {
		for _, suffix := range []string{req.SuffixIn, req.SuffixUnlocked, req.SuffixLocked} {
			write(stem+suffix, "")
		}
	}
	return root
}

func TestFindPyprojectWalksUp(t *testing.T) {
	root := scaffold(t)
	nested := filepath.Join(root, "requirements")

	got, err := FindPyproject(nested)
	if err != nil {
		t.Fatalf("FindPyproject(%q) error: %v", nested, err)
	}
	want := filepath.Join(root, PyprojectName)
	if got != want {
		t.Errorf("FindPyproject = %q, want %q", got, want)
	}

	orphan := t.TempDir()
	if _, err := FindPyproject(orphan); errors.GetCode(err) != errors.ErrCodeConfigNotFound {
		t.Errorf("orphan dir: code = %v, want ErrCodeConfigNotFound", errors.GetCode(err))
	}
}

func TestNewLoader(t *testing.T) {
	root := scaffold(t)

	loader, err := NewLoader(root)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	if loader.ProjectBase != root {
		t.Errorf("ProjectBase = %q, want %q", loader.ProjectBase, root)
	}
	wantVenvs := []string{".venv", ".doc/.venv"}
	got := loader.VenvRelpaths()
	if len(got) != len(wantVenvs) {
		t.Fatalf("VenvRelpaths = %v, want %v", got, wantVenvs)
	}
	for i := range wantVenvs {
		if got[i] != wantVenvs[i] {
			t.Errorf("VenvRelpaths[%d] = %q, want %q", i, got[i], wantVenvs[i])
		}
	}
}

func TestNewLoaderErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     errors.Code
	}{
		{"malformed toml", "[[tool.venvs]\n", errors.ErrCodeConfigParse},
		{"no venv tables", "[project]\nname = 'x'\n", errors.ErrCodeConfigParse},
		{"missing base path", "[[tool.venvs]]\nreqs = ['a']\n", errors.ErrCodeConfigParse},
		{"empty reqs", "[[tool.venvs]]\nvenv_base_path = '.venv'\nreqs = []\n", errors.ErrCodeConfigParse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, PyprojectName)
			if err := os.WriteFile(path, []byte(tc.contents), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewLoader(root)
			if errors.GetCode(err) != tc.want {
				t.Errorf("code = %v (%v), want %v", errors.GetCode(err), err, tc.want)
			}
		})
	}
}

func TestNewMap(t *testing.T) {
	root := scaffold(t)
	loader, err := NewLoader(root)
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewMap(loader)
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}
	if err := m.EnsureComplete(); err != nil {
		t.Errorf("EnsureComplete error: %v", err)
	}

	reqs, err := m.Reqs(".venv")
	if err != nil {
		t.Fatalf("Reqs(.venv) error: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("Reqs(.venv) returned %d stems, want 2", len(reqs))
	}
	if reqs[0].ReqRelpath != "requirements/prod" {
		t.Errorf("first stem = %q, want requirements/prod", reqs[0].ReqRelpath)
	}
	wantAbs := filepath.Join(root, "requirements", "prod")
	if reqs[0].ReqAbspath() != wantAbs {
		t.Errorf("ReqAbspath = %q, want %q", reqs[0].ReqAbspath(), wantAbs)
	}

	// absolute key folds back to the relative identifier
	if !m.Has(filepath.Join(root, ".venv")) {
		t.Error("Has(abs .venv) = false, want true")
	}
	if _, err := m.Reqs("no/such/venv"); errors.GetCode(err) != errors.ErrCodeInvalidVenv {
		t.Errorf("unknown venv: code = %v, want ErrCodeInvalidVenv", errors.GetCode(err))
	}
}

func TestNewMapMissingVenvFolder(t *testing.T) {
	root := scaffold(t)
	if err := os.RemoveAll(filepath.Join(root, ".venv")); err != nil {
		t.Fatal(err)
	}
	loader, err := NewLoader(root)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewMap(loader)
	if errors.GetCode(err) != errors.ErrCodeMissingRequirements {
		t.Errorf("code = %v, want ErrCodeMissingRequirements", errors.GetCode(err))
	}
}

func TestNewMapReportsMissingFiles(t *testing.T) {
	root := scaffold(t)
	removed := filepath.Join(root, "requirements", "pip"+req.SuffixLocked)
	if err := os.Remove(removed); err != nil {
		t.Fatal(err)
	}
	loader, err := NewLoader(root)
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewMap(loader)
	if err != nil {
		t.Fatalf("NewMap error: %v", err)
	}
	if len(m.Missing()) != 1 {
		t.Fatalf("Missing = %v, want one entry", m.Missing())
	}
	if !strings.Contains(m.Missing()[0], removed) {
		t.Errorf("Missing[0] = %q, want mention of %q", m.Missing()[0], removed)
	}
	if errors.GetCode(m.EnsureComplete()) != errors.ErrCodeMissingRequirements {
		t.Error("EnsureComplete should report ErrCodeMissingRequirements")
	}

	// checking only the .in suffix ignores the removed .lock
	m, err = NewMap(loader, req.SuffixIn)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Missing()) != 0 {
		t.Errorf("Missing with .in check = %v, want none", m.Missing())
	}
}

func TestReqsAll(t *testing.T) {
	root := scaffold(t)
	shared := filepath.Join(root, "requirements", "pins.shared"+req.SuffixIn)
	if err := os.WriteFile(shared, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	loader, err := NewLoader(root)
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMap(loader, req.SuffixIn)
	if err != nil {
		t.Fatal(err)
	}
	reqs, err := m.Reqs(".venv")
	if err != nil {
		t.Fatal(err)
	}

	files, err := reqs[0].ReqsAll(req.SuffixIn)
	if err != nil {
		t.Fatalf("ReqsAll error: %v", err)
	}
	// prod.in, pip.in plus the undeclared shared pins file
	if len(files) != 3 {
		t.Fatalf("ReqsAll = %v, want 3 files", files)
	}
	found := false
	for _, f := range files {
		if f == shared {
			found = true
		}
	}
	if !found {
		t.Errorf("ReqsAll should pick up %q, got %v", shared, files)
	}
}

func TestIsReqShared(t *testing.T) {
	vr := VenvReq{ReqRelpath: "requirements/pins.shared"}
	if !vr.IsReqShared() {
		t.Error("pins.shared stem should report shared")
	}
	vr.ReqRelpath = "requirements/prod"
	if vr.IsReqShared() {
		t.Error("prod stem should not report shared")
	}
}
