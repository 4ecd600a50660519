package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msftcangoblowm/drain-swamp/pkg/venvs"
)

func project(t *testing.T) *venvs.Map {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"pyproject.toml": "[[tool.venvs]]\n" +
			"venv_base_path = '.venv'\n" +
			"reqs = ['requirements/prod', 'requirements/dev']\n",
		"requirements/prod.in":            "-c pins.shared.in\nclick>=8.0\n",
		"requirements/dev.in":             "-r prod.in\n-c absent.in\npytest\n",
		"requirements/pins.shared.in":     "typing-extensions<4.13\n",
		"requirements/prod.unlock":        "",
		"requirements/prod.lock":          "",
		"requirements/dev.unlock":         "",
		"requirements/dev.lock":           "",
		"requirements/pins.shared.unlock": "",
		"requirements/pins.shared.lock":   "",
	}
	for rel, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, ".venv"), 0o755); err != nil {
		t.Fatal(err)
	}
	loader, err := venvs.NewLoader(root)
	if err != nil {
		t.Fatal(err)
	}
	m, err := venvs.NewMap(loader, ".in")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestBuildIncludeGraph(t *testing.T) {
	m := project(t)
	g, err := BuildIncludeGraph(m, ".venv")
	if err != nil {
		t.Fatalf("BuildIncludeGraph error: %v", err)
	}

	want := []string{
		"requirements/absent.in",
		"requirements/dev.in",
		"requirements/pins.shared.in",
		"requirements/prod.in",
	}
	got := g.Nodes()
	if len(got) != len(want) {
		t.Fatalf("Nodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Nodes[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	refs := g.Refs("requirements/dev.in")
	if len(refs) != 2 || refs[0] != "requirements/absent.in" || refs[1] != "requirements/prod.in" {
		t.Errorf("Refs(dev.in) = %v", refs)
	}
}

func TestToDOT(t *testing.T) {
	m := project(t)
	g, err := BuildIncludeGraph(m, "")
	if err != nil {
		t.Fatal(err)
	}
	dot := g.ToDOT()

	for _, fragment := range []string{
		"digraph requirements {",
		`"requirements/dev.in" -> "requirements/prod.in";`,
		`"requirements/prod.in" -> "requirements/pins.shared.in";`,
	} {
		if !strings.Contains(dot, fragment) {
			t.Errorf("DOT missing %q:\n%s", fragment, dot)
		}
	}
	// shared file dashed, missing file red
	if !strings.Contains(dot, "fillcolor=lightgrey") {
		t.Error("shared node should be grey")
	}
	if !strings.Contains(dot, "color=red") {
		t.Error("missing node should be red")
	}
}
