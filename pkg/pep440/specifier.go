package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Operators recognized in requirement-line specifiers, longest first so
// that "==" is not read as two "=" and "===" is not read as "==".
var specifierRE = regexp.MustCompile(`^\s*(===|==|!=|<=|>=|~=|<|>)\s*(\S+)\s*$`)

// Specifier is a single version clause such as ">=1.0" or "==2.31.0".
type Specifier struct {
	Op      string
	Version string
}

// ParseSpecifier parses one clause. The clause must not contain commas.
func ParseSpecifier(s string) (Specifier, error) {
	m := specifierRE.FindStringSubmatch(s)
	if m == nil {
		return Specifier{}, fmt.Errorf("pep440: unparseable specifier %q", s)
	}
	return Specifier{Op: m[1], Version: m[2]}, nil
}

// String returns the clause in canonical "opversion" form.
func (s Specifier) String() string { return s.Op + s.Version }

// IsExactPin reports whether the clause pins a single version ("==" with
// no wildcard, or "===").
func (s Specifier) IsExactPin() bool {
	if s.Op == "===" {
		return true
	}
	return s.Op == "==" && !strings.HasSuffix(s.Version, ".*")
}

// check reports whether candidate satisfies this single clause.
func (s Specifier) check(candidate Version) (bool, error) {
	switch s.Op {
	case "===":
		return strings.TrimSpace(s.Version) == candidate.String(), nil
	case "==":
		if prefix, ok := strings.CutSuffix(s.Version, ".*"); ok {
			return matchesPrefix(candidate, prefix)
		}
		v, err := ParseVersion(s.Version)
		if err != nil {
			return false, err
		}
		return Compare(candidate, v) == 0, nil
	case "!=":
		if prefix, ok := strings.CutSuffix(s.Version, ".*"); ok {
			m, err := matchesPrefix(candidate, prefix)
			return !m, err
		}
		v, err := ParseVersion(s.Version)
		if err != nil {
			return false, err
		}
		return Compare(candidate, v) != 0, nil
	case "<", "<=", ">", ">=":
		v, err := ParseVersion(s.Version)
		if err != nil {
			return false, err
		}
		c := Compare(candidate, v)
		switch s.Op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case "~=":
		// Compatible release: ~=X.Y means >=X.Y, ==X.*;
		// ~=X.Y.Z means >=X.Y.Z, ==X.Y.*.
		v, err := ParseVersion(s.Version)
		if err != nil {
			return false, err
		}
		if len(v.release) < 2 {
			return false, fmt.Errorf("pep440: ~= requires at least two release segments, got %q", s.Version)
		}
		if Compare(candidate, v) < 0 {
			return false, nil
		}
		prefix := make([]string, len(v.release)-1)
		for i := range prefix {
			prefix[i] = strconv.Itoa(v.release[i])
		}
		return matchesPrefix(candidate, strings.Join(prefix, "."))
	default:
		return false, fmt.Errorf("pep440: unsupported operator %q", s.Op)
	}
}

// matchesPrefix reports whether the candidate's release starts with the
// given dotted numeric prefix, e.g. 1.4.2 matches prefix "1.4".
func matchesPrefix(candidate Version, prefix string) (bool, error) {
	var want []int
	for _, seg := range strings.Split(prefix, ".") {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return false, fmt.Errorf("pep440: bad wildcard prefix %q: %w", prefix, err)
		}
		want = append(want, n)
	}
	for i, n := range want {
		if segment(candidate.release, i) != n {
			return false, nil
		}
	}
	return true, nil
}

// SpecifierSet is a comma-joined conjunction of clauses, e.g. ">=1.0,<2.0".
// The empty set admits every version.
type SpecifierSet []Specifier

// ParseSpecifierSet parses a comma-separated clause list. Empty input
// yields the empty (always satisfied) set.
func ParseSpecifierSet(raw string) (SpecifierSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var set SpecifierSet
	for _, clause := range strings.Split(raw, ",") {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		spec, err := ParseSpecifier(clause)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// SpecifierSetFrom builds a set from already-split clause strings.
func SpecifierSetFrom(clauses []string) (SpecifierSet, error) {
	var set SpecifierSet
	for _, clause := range clauses {
		spec, err := ParseSpecifier(clause)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// Check reports whether candidate satisfies every clause in the set.
// An unparseable clause fails closed (the candidate is not admitted).
func (set SpecifierSet) Check(candidate Version) bool {
	for _, spec := range set {
		ok, err := spec.check(candidate)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// String joins the clauses back into canonical comma-separated form.
func (set SpecifierSet) String() string {
	parts := make([]string, len(set))
	for i, spec := range set {
		parts[i] = spec.String()
	}
	return strings.Join(parts, ",")
}
