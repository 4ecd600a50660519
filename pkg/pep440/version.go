// Package pep440 provides version and specifier handling for Python
// package requirement lines.
//
// Version ordering follows the public-version-identifier rules: epoch,
// release segments, then pre/post/dev segments. The release core is
// compared through github.com/Masterminds/semver/v3; the spellings semver
// cannot express (epoch, four or more release segments, .postN, .devN)
// are parsed out first and compared around it. Local version labels
// (+abc) are ignored for ordering.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// versionRE matches a normalized public version identifier.
// Groups: release, pre phase, pre number, post number, dev number.
var versionRE = regexp.MustCompile(
	`^(\d+(?:\.\d+)*)(?:(a|b|rc)(\d+))?(?:\.post(\d+))?(?:\.dev(\d+))?$`)

// Version is a parsed Python package version.
//
// The zero value is not usable; construct with ParseVersion.
type Version struct {
	raw     string
	epoch   int
	release []int
	core    *mm.Version // first three release segments + pre/dev as prerelease
	post    int         // -1 when absent
}

// ParseVersion parses a version string such as "1.26.4", "2!1.0",
// "4.12.0.post1" or "1.0rc2".
func ParseVersion(raw string) (Version, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "v")

	// Local version label does not participate in ordering.
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}

	epoch := 0
	if i := strings.IndexByte(s, '!'); i >= 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return Version{}, fmt.Errorf("pep440: parse epoch %q: %w", raw, err)
		}
		epoch = n
		s = s[i+1:]
	}

	// Normalize separator spellings: 1.0.a1 / 1.0-a1 -> 1.0a1,
	// 1.0-post1 / 1.0.r1 -> 1.0.post1, 1.0-dev1 -> 1.0.dev1.
	s = normalizeSeparators(s)

	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("pep440: unparseable version %q", raw)
	}

	var release []int
	for _, seg := range strings.Split(m[1], ".") {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return Version{}, fmt.Errorf("pep440: parse release %q: %w", raw, err)
		}
		release = append(release, n)
	}

	// The semver core covers the first three release segments. Pre and dev
	// segments map onto a semver prerelease tag ordered the PEP way:
	// dev < a < b < rc < final. Numeric identifiers sort before
	// alphanumeric ones, so dev is encoded as "0.dev".
	var pre []string
	if m[2] != "" {
		pre = append(pre, m[2], m[3])
	}
	if m[5] != "" {
		if m[2] == "" {
			pre = append(pre, "0", "dev", m[5])
		} else {
			pre = append(pre, "dev", m[5])
		}
	}

	core, err := mm.NewVersion(coreString(release, pre))
	if err != nil {
		return Version{}, fmt.Errorf("pep440: parse version %q: %w", raw, err)
	}

	post := -1
	if m[4] != "" {
		post, _ = strconv.Atoi(m[4])
	}

	return Version{
		raw:     strings.TrimSpace(raw),
		epoch:   epoch,
		release: release,
		core:    core,
		post:    post,
	}, nil
}

// MustParseVersion parses raw and panics on error. For tests and constants.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func normalizeSeparators(s string) string {
	for _, phase := range []string{"a", "b", "rc", "c", "alpha", "beta", "preview", "pre"} {
		s = strings.ReplaceAll(s, "."+phase, phase)
		s = strings.ReplaceAll(s, "-"+phase, phase)
		s = strings.ReplaceAll(s, "_"+phase, phase)
	}
	s = strings.ReplaceAll(s, "alpha", "a")
	s = strings.ReplaceAll(s, "beta", "b")
	s = strings.ReplaceAll(s, "preview", "rc")
	s = strings.ReplaceAll(s, "pre", "rc")
	// "c" as a phase is an alias for "rc"; only when preceded by a digit,
	// so an existing "rc" tag is left alone.
	s = regexp.MustCompile(`(\d)c(\d+)`).ReplaceAllString(s, "${1}rc$2")
	s = strings.ReplaceAll(s, "-post", ".post")
	s = strings.ReplaceAll(s, "_post", ".post")
	s = strings.ReplaceAll(s, ".r", ".post")
	s = strings.ReplaceAll(s, "-dev", ".dev")
	s = strings.ReplaceAll(s, "_dev", ".dev")
	return s
}

func coreString(release []int, pre []string) string {
	segs := make([]string, 3)
	for i := 0; i < 3; i++ {
		if i < len(release) {
			segs[i] = strconv.Itoa(release[i])
		} else {
			segs[i] = "0"
		}
	}
	s := strings.Join(segs, ".")
	if len(pre) != 0 {
		s += "-" + strings.Join(pre, ".")
	}
	return s
}

// String returns the version as originally written.
func (v Version) String() string { return v.raw }

// Normalized returns the canonical comparison form, useful in diagnostics.
func (v Version) Normalized() string {
	var b strings.Builder
	if v.epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.epoch)
	}
	for i, seg := range v.release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(seg))
	}
	if p := v.core.Prerelease(); p != "" {
		b.WriteByte('-')
		b.WriteString(p)
	}
	if v.post >= 0 {
		fmt.Fprintf(&b, ".post%d", v.post)
	}
	return b.String()
}

// Compare returns -1, 0, or 1 ordering a against b.
func Compare(a, b Version) int {
	if a.epoch != b.epoch {
		return cmpInt(a.epoch, b.epoch)
	}
	// All release segments, zero-padded to the longer of the two.
	n := len(a.release)
	if len(b.release) > n {
		n = len(b.release)
	}
	for i := 0; i < n; i++ {
		if c := cmpInt(segment(a.release, i), segment(b.release, i)); c != 0 {
			return c
		}
	}
	// Releases are equal, so the semver cores share a release part and
	// Compare reduces to prerelease (dev/a/b/rc/final) ordering.
	if c := a.core.Compare(b.core); c != 0 {
		return c
	}
	return cmpInt(a.post, b.post)
}

// Equal reports whether a and b denote the same version.
func Equal(a, b Version) bool { return Compare(a, b) == 0 }

// Compare orders v against o; method form of Compare.
func (v Version) Compare(o Version) int { return Compare(v, o) }

// Equal reports whether v and o denote the same version.
func (v Version) Equal(o Version) bool { return Equal(v, o) }

func segment(release []int, i int) int {
	if i < len(release) {
		return release[i]
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Max returns the highest of the given versions.
// The boolean is false when versions is empty.
func Max(versions []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range versions {
		if !found || Compare(v, best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}
