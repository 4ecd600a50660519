package reqfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
)

// writeTree writes files (relpath to contents) under a temp dir and
// returns the dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestLoadFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		"requirements/prod.in": "# header comment\n" +
			"-c pins.shared.in\n" +
			"-r ../docs/base.in  # include\n" +
			"\n" +
			"click==8.1.7\n" +
			"requests  # http client\n" +
			"click==8.1.7\n",
		"requirements/pins.shared.in": "",
		"docs/base.in":                "",
	})

	f, err := loadFile(root, filepath.Join(root, "requirements", "prod.in"))
	if err != nil {
		t.Fatalf("loadFile error: %v", err)
	}
	if f.Relpath != "requirements/prod.in" {
		t.Errorf("Relpath = %q", f.Relpath)
	}
	if f.Stem != "prod" {
		t.Errorf("Stem = %q, want prod", f.Stem)
	}
	wantRefs := []string{"docs/base.in", "requirements/pins.shared.in"}
	if got := f.Refs(); len(got) != 2 || got[0] != wantRefs[0] || got[1] != wantRefs[1] {
		t.Errorf("Refs = %v, want %v", got, wantRefs)
	}
	wantLines := []string{"click==8.1.7", "requests"}
	if got := f.Lines(); len(got) != 2 || got[0] != wantLines[0] || got[1] != wantLines[1] {
		t.Errorf("Lines = %v, want %v", got, wantLines)
	}
}

func TestResolveFlattensIncludes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"requirements/prod.in": "-c pins.in\nclick==8.1.7\n",
		"requirements/dev.in":  "-r prod.in\npytest\n",
		"requirements/pins.in": "typing-extensions<4.13\n",
	})

	g, err := NewGraph(root, []string{
		filepath.Join(root, "requirements", "dev.in"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Resolve(); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	// dev.in plus the two transitively discovered files
	if got := len(g.Resolved()); got != 3 {
		t.Fatalf("resolved %d files, want 3", got)
	}
	dev, ok := g.Get("requirements/dev.in")
	if !ok {
		t.Fatal("dev.in not resolved")
	}
	want := []string{"click==8.1.7", "pytest", "typing-extensions<4.13"}
	got := dev.Lines()
	if len(got) != len(want) {
		t.Fatalf("dev lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dev line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveFoldsDuplicatePackages(t *testing.T) {
	root := writeTree(t, map[string]string{
		"requirements/prod.in": "requests>=2.0\nclick>=8.0\n",
		"requirements/dev.in":  "-r prod.in\nrequests==2.31.0\nclick<9\n",
	})
	g, err := NewGraph(root, []string{filepath.Join(root, "requirements", "dev.in")})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Resolve(); err != nil {
		t.Fatal(err)
	}

	dev, ok := g.Get("requirements/dev.in")
	if !ok {
		t.Fatal("dev.in not resolved")
	}
	// the exact requests pin satisfies the prod range and carries the
	// line; the click ranges conjoin
	want := []string{"click<9,>=8.0", "requests==2.31.0"}
	got := dev.Lines()
	if len(got) != len(want) {
		t.Fatalf("dev lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dev line %d = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := g.WriteUnlock(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "requirements", "dev.unlock"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "requests") != 1 {
		t.Errorf("dev.unlock should carry one requests line: %q", data)
	}
}

func TestResolveKeepsDisjointQualifiersApart(t *testing.T) {
	root := writeTree(t, map[string]string{
		"requirements/prod.in": "colorama>=0.4 ; platform_system == \"Windows\"\n",
		"requirements/dev.in":  "-r prod.in\ncolorama==0.4.6\n",
	})
	g, err := NewGraph(root, []string{filepath.Join(root, "requirements", "dev.in")})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Resolve(); err != nil {
		t.Fatal(err)
	}

	dev, ok := g.Get("requirements/dev.in")
	if !ok {
		t.Fatal("dev.in not resolved")
	}
	// the unconditional pin and the Windows-only range govern different
	// environments; neither folds into the other
	want := []string{"colorama==0.4.6", "colorama>=0.4 ; platform_system == \"Windows\""}
	got := dev.Lines()
	if len(got) != len(want) {
		t.Fatalf("dev lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dev line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveMissingReference(t *testing.T) {
	root := writeTree(t, map[string]string{
		"requirements/prod.in": "-c nonexistent.in\nclick\n",
	})
	g, err := NewGraph(root, []string{filepath.Join(root, "requirements", "prod.in")})
	if err != nil {
		t.Fatal(err)
	}

	err = g.Resolve()
	if errors.GetCode(err) != errors.ErrCodeMissingRequirements {
		t.Fatalf("code = %v (%v), want ErrCodeMissingRequirements", errors.GetCode(err), err)
	}
	if !strings.Contains(err.Error(), "nonexistent.in") {
		t.Errorf("error should name the missing file: %v", err)
	}
}

func TestResolveCycle(t *testing.T) {
	root := writeTree(t, map[string]string{
		"requirements/a.in": "-r b.in\nclick\n",
		"requirements/b.in": "-r a.in\nrequests\n",
	})
	g, err := NewGraph(root, []string{filepath.Join(root, "requirements", "a.in")})
	if err != nil {
		t.Fatal(err)
	}

	err = g.Resolve()
	if errors.GetCode(err) != errors.ErrCodeRequirementsCycle {
		t.Fatalf("code = %v (%v), want ErrCodeRequirementsCycle", errors.GetCode(err), err)
	}
	for _, name := range []string{"a.in", "b.in"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should name %s: %v", name, err)
		}
	}
}

func TestWriteUnlock(t *testing.T) {
	root := writeTree(t, map[string]string{
		"requirements/prod.in":        "-c pins.shared.in\nclick==8.1.7\n",
		"requirements/pins.shared.in": "typing-extensions<4.13\n",
	})
	g, err := NewGraph(root, []string{filepath.Join(root, "requirements", "prod.in")})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Resolve(); err != nil {
		t.Fatal(err)
	}

	written, err := g.WriteUnlock()
	if err != nil {
		t.Fatalf("WriteUnlock error: %v", err)
	}
	// shared pins file resolved but never written
	if len(written) != 1 {
		t.Fatalf("written = %v, want one file", written)
	}
	want := filepath.Join(root, "requirements", "prod.unlock")
	if written[0] != want {
		t.Errorf("written[0] = %q, want %q", written[0], want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if got != "click==8.1.7\ntyping-extensions<4.13\n" {
		t.Errorf("unlock contents = %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "requirements", "pins.shared.unlock")); err == nil {
		t.Error("shared pins file should not produce an unlock file")
	}
}
