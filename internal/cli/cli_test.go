package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	c := New(os.Stderr, log.InfoLevel)
	root := c.RootCommand()

	want := []string{"lock", "unlock", "fix", "venvs", "graph", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing %q", name)
		}
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	dir, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg-cache", appName) {
		t.Errorf("cacheDir = %q", dir)
	}
}

func TestCountMsg(t *testing.T) {
	if got := countMsg("Compiled %d lock file", 1); got != "Compiled 1 lock file" {
		t.Errorf("countMsg(1) = %q", got)
	}
	if got := countMsg("Compiled %d lock file", 3); got != "Compiled 3 lock files" {
		t.Errorf("countMsg(3) = %q", got)
	}
}

// scaffolds a project and runs `graph --path <root>`; the whole command
// path from flag parsing down to DOT output is exercised.
func TestGraphCommandEmitsDOT(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"pyproject.toml": "[[tool.venvs]]\n" +
			"venv_base_path = '.venv'\n" +
			"reqs = ['requirements/prod']\n",
		"requirements/prod.in": "click>=8.0\n",
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

	c := New(os.Stderr, log.InfoLevel)
	cmd := c.RootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"graph", "--path", root})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("graph command error: %v", err)
	}
	if !strings.Contains(out.String(), "digraph requirements") {
		t.Errorf("graph output = %q, want DOT", out.String())
	}
}

func TestVenvsCommandUnknownPath(t *testing.T) {
	c := New(os.Stderr, log.InfoLevel)
	cmd := c.RootCommand()
	cmd.SetArgs([]string{"venvs", "--path", t.TempDir()})
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err == nil {
		t.Error("venvs without a pyproject.toml should fail")
	}
}
