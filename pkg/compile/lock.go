package compile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/msftcangoblowm/drain-swamp/pkg/cache"
	"github.com/msftcangoblowm/drain-swamp/pkg/errors"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
	"github.com/msftcangoblowm/drain-swamp/pkg/reqfile"
	"github.com/msftcangoblowm/drain-swamp/pkg/venvs"
)

const (
	// DefaultResolver is the external command compiling .in to .lock.
	DefaultResolver = "pip-compile"
	// DefaultTimeout bounds one resolver invocation.
	DefaultTimeout = 15 * time.Second
)

// Failure records one requirement stem the resolver could not compile.
type Failure struct {
	InFile string
	// Reason is the resolver's stderr tail or a timeout note.
	Reason string
}

// Locker compiles ``.lock`` files for the venvs of one project.
type Locker struct {
	venvMap  *venvs.Map
	resolver string
	timeout  time.Duration
	cache    cache.Cache
}

// Option adjusts a Locker.
type Option func(*Locker)

// WithResolver overrides the resolver command name.
func WithResolver(name string) Option {
	return func(l *Locker) { l.resolver = name }
}

// WithTimeout overrides the per-file resolver deadline.
func WithTimeout(d time.Duration) Option {
	return func(l *Locker) { l.timeout = d }
}

// WithCache memoizes compiled lock contents. Without it every stem is
// compiled fresh.
func WithCache(c cache.Cache) Option {
	return func(l *Locker) { l.cache = c }
}

// NewLocker verifies the resolver is installed and returns a Locker.
func NewLocker(m *venvs.Map, opts ...Option) (*Locker, error) {
	l := &Locker{
		venvMap:  m,
		resolver: DefaultResolver,
		timeout:  DefaultTimeout,
		cache:    cache.NewNullCache(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if _, err := exec.LookPath(l.resolver); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompilerNotFound, err,
			"%s not found on PATH; install it first", l.resolver)
	}
	return l, nil
}

// LockCompile compiles every requirement stem of the named venv, or of
// all venvs when venvKey is empty. Individual failures do not stop the
// run; they come back alongside the written lock paths.
func (l *Locker) LockCompile(ctx context.Context, venvKey string) ([]string, []Failure, error) {
	vreqs, err := l.selectReqs(venvKey)
	if err != nil {
		return nil, nil, err
	}

	var compiled []string
	var failures []Failure
	for _, vr := range vreqs {
		inPath := req.ReplaceSuffixLast(vr.ReqAbspath(), req.SuffixIn)
		lockPath := req.ReplaceSuffixLast(vr.ReqAbspath(), req.SuffixLocked)

		key := l.compileKey(vr.ProjectBase, inPath)
		if data, hit := l.cacheGet(ctx, key); hit {
			if err := os.WriteFile(lockPath, data, 0o644); err != nil {
				return compiled, failures, errors.Wrap(errors.ErrCodeWriteFailed, err,
					"writing %s", lockPath)
			}
			compiled = append(compiled, lockPath)
			continue
		}

		if fail, err := l.compileOne(ctx, vr.ProjectBase, inPath, lockPath); err != nil {
			return compiled, failures, err
		} else if fail != nil {
			failures = append(failures, *fail)
			continue
		}

		if data, err := os.ReadFile(lockPath); err == nil {
			_ = l.cache.Set(ctx, key, data, 0)
		}
		compiled = append(compiled, lockPath)
	}
	return compiled, failures, nil
}

func (l *Locker) selectReqs(venvKey string) ([]venvs.VenvReq, error) {
	if venvKey != "" {
		return l.venvMap.Reqs(venvKey)
	}
	return l.venvMap.All(), nil
}

// compileKey digests the .in file's include closure. When the closure
// cannot be resolved the key degrades to the single file.
func (l *Locker) compileKey(projectBase, inPath string) string {
	inputs := []string{inPath}
	if g, err := reqfile.NewGraph(projectBase, []string{inPath}); err == nil {
		if err := g.Resolve(); err == nil {
			inputs = inputs[:0]
			for _, f := range g.Resolved() {
				inputs = append(inputs, filepath.Join(projectBase, filepath.FromSlash(f.Relpath)))
			}
		}
	}
	return cache.CompileKey(l.resolver, inputs)
}

func (l *Locker) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, hit, err := l.cache.Get(ctx, key)
	if err != nil || !hit {
		return nil, false
	}
	return data, true
}

// compileOne runs the resolver for one stem. A nil, nil return means
// the lock file was written and postprocessed.
func (l *Locker) compileOne(ctx context.Context, projectBase, inPath, lockPath string) (*Failure, error) {
	res, err := Run(ctx, l.timeout, l.resolver,
		"--allow-unsafe",
		"--no-header",
		"--resolver", "backtracking",
		"-o", lockPath,
		inPath,
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompilerFailed, err,
			"running %s for %s", l.resolver, inPath)
	}
	if res.TimedOut {
		return &Failure{InFile: inPath, Reason: fmt.Sprintf("timeout (%s)", l.timeout)}, nil
	}
	if res.ExitCode != 0 {
		return &Failure{InFile: inPath, Reason: stderrTail(res.Stderr, res.ExitCode)}, nil
	}
	if info, err := os.Stat(lockPath); err != nil || info.IsDir() {
		return &Failure{
			InFile: inPath,
			Reason: fmt.Sprintf("%s reported success but wrote no %s", l.resolver, lockPath),
		}, nil
	}

	if err := postprocessRelpaths(lockPath, projectBase); err != nil {
		return nil, err
	}
	return nil, nil
}

func stderrTail(stderr string, exitCode int) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return fmt.Sprintf("exit code %d: %s", exitCode, strings.Join(lines, " "))
}

// postprocessRelpaths rewrites the resolver's provenance comments
// ("    # via -r /abs/path/dev.in") to project-relative paths so lock
// files are reproducible across checkouts.
func postprocessRelpaths(lockPath, projectBase string) error {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "reading %s", lockPath)
	}
	prefix := projectBase + string(os.PathSeparator)
	lines := strings.Split(string(data), "\n")
	changed := false
	for i, line := range lines {
		if strings.HasPrefix(line, "    # ") && strings.Contains(line, prefix) {
			lines[i] = strings.ReplaceAll(line, prefix, "")
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := os.WriteFile(lockPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "writing %s", lockPath)
	}
	return nil
}
