package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"golang.org/x/mod/semver"
)

// Range is a parsed version range: a union of comparator sets, each of
// which must match entirely.
type Range struct {
	raw  string
	sets [][]comparator
}

type comparator struct {
	op      string
	version string
}

// ParseRange parses npm style ranges: exact versions, partials such as
// 1 or 1.2.x, caret and tilde ranges, comparison operators, hyphen
// ranges and || unions. The empty range, * and latest match any release.
func ParseRange(spec string) (Range, error) {
	r := Range{raw: spec}
	for _, part := range strings.Split(spec, "||") {
		set, err := parseSet(strings.TrimSpace(part))
		if err != nil {
			return Range{}, errors.Wrapf(err, errors.ErrInvalidInput, "invalid version range %q", spec).
				WithDetail("range", spec)
		}
		r.sets = append(r.sets, set)
	}
	return r, nil
}

// String returns the range as written.
func (r Range) String() string {
	return r.raw
}

// Match reports whether version is inside the range. Prereleases only
// match a set that names a prerelease of the same release.
func (r Range) Match(version string) bool {
	v, ok := canonical(version)
	if !ok {
		return false
	}
	for _, set := range r.sets {
		if matchSet(set, v) {
			return true
		}
	}
	return false
}

// Satisfies reports whether version matches the range spec. Malformed
// input never matches.
func Satisfies(version, spec string) bool {
	r, err := ParseRange(spec)
	if err != nil {
		return false
	}
	return r.Match(version)
}

// MaxSatisfying returns the highest version matching spec.
func MaxSatisfying(versions []string, spec string) (string, bool) {
	r, err := ParseRange(spec)
	if err != nil {
		return "", false
	}
	sorted := SortVersions(versions)
	for i := len(sorted) - 1; i >= 0; i-- {
		if r.Match(sorted[i]) {
			return sorted[i], true
		}
	}
	return "", false
}

// SortVersions returns the valid versions in ascending order.
func SortVersions(versions []string) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		if _, ok := canonical(v); ok {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := canonical(out[i])
		b, _ := canonical(out[j])
		return semver.Compare(a, b) < 0
	})
	return out
}

// ValidVersion reports whether v is a full semantic version.
func ValidVersion(v string) bool {
	if _, ok := canonical(v); !ok {
		return false
	}
	p, err := parsePartial(strings.TrimPrefix(v, "="))
	return err == nil && p.parts == 3
}

func matchSet(set []comparator, v string) bool {
	if semver.Prerelease(v) != "" && !allowsPrerelease(set, v) {
		return false
	}
	for _, c := range set {
		cmp := semver.Compare(v, c.version)
		var ok bool
		switch c.op {
		case "=":
			ok = cmp == 0
		case ">":
			ok = cmp > 0
		case ">=":
			ok = cmp >= 0
		case "<":
			ok = cmp < 0
		case "<=":
			ok = cmp <= 0
		}
		if !ok {
			return false
		}
	}
	return true
}

func allowsPrerelease(set []comparator, v string) bool {
	core := releaseOf(v)
	for _, c := range set {
		if semver.Prerelease(c.version) != "" && releaseOf(c.version) == core {
			return true
		}
	}
	return false
}

func releaseOf(v string) string {
	return strings.TrimSuffix(semver.Canonical(v), semver.Prerelease(v))
}

func parseSet(s string) ([]comparator, error) {
	if s == "" || s == "*" || s == "latest" || s == "x" || s == "X" {
		return nil, nil
	}
	fields := joinOperators(strings.Fields(s))
	var set []comparator
	for i := 0; i < len(fields); i++ {
		if i+2 < len(fields) && fields[i+1] == "-" {
			lo, err := parsePartial(fields[i])
			if err != nil {
				return nil, err
			}
			hi, err := parsePartial(fields[i+2])
			if err != nil {
				return nil, err
			}
			set = append(set, comparator{">=", lo.floor()})
			set = append(set, hi.upperInclusive()...)
			i += 2
			continue
		}
		cs, err := parseComparator(fields[i])
		if err != nil {
			return nil, err
		}
		set = append(set, cs...)
	}
	return set, nil
}

// joinOperators glues a bare operator to the version after it, so
// ">= 1.2.0" reads like ">=1.2.0".
func joinOperators(fields []string) []string {
	out := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case ">=", "<=", ">", "<", "=", "^", "~":
			if i+1 < len(fields) {
				out = append(out, fields[i]+fields[i+1])
				i++
				continue
			}
		}
		out = append(out, fields[i])
	}
	return out
}

func parseComparator(tok string) ([]comparator, error) {
	op := ""
	for _, candidate := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		if strings.HasPrefix(tok, candidate) {
			op = candidate
			tok = strings.TrimSpace(tok[len(candidate):])
			break
		}
	}
	p, err := parsePartial(tok)
	if err != nil {
		return nil, err
	}
	if p.parts == 0 {
		if op == "<" || op == ">" {
			return nil, fmt.Errorf("%s* matches nothing", op)
		}
		return nil, nil
	}

	switch op {
	case "", "=":
		if p.parts == 3 {
			return []comparator{{"=", p.floor()}}, nil
		}
		return []comparator{{">=", p.floor()}, {"<", p.bump(p.parts - 1)}}, nil
	case "^":
		return []comparator{{">=", p.floor()}, {"<", p.caretCeiling()}}, nil
	case "~":
		idx := 1
		if p.parts == 1 {
			idx = 0
		}
		return []comparator{{">=", p.floor()}, {"<", p.bump(idx)}}, nil
	case ">=":
		return []comparator{{">=", p.floor()}}, nil
	case "<":
		return []comparator{{"<", p.floor()}}, nil
	case ">":
		if p.parts < 3 {
			return []comparator{{">=", p.bump(p.parts - 1)}}, nil
		}
		return []comparator{{">", p.floor()}}, nil
	case "<=":
		return p.upperInclusive(), nil
	}
	return nil, fmt.Errorf("unsupported operator in %q", tok)
}

// partial is a version with up to three numeric parts given.
type partial struct {
	nums  [3]int
	parts int
	pre   string
}

func parsePartial(s string) (partial, error) {
	var p partial
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		p.pre = s[i+1:]
		s = s[:i]
	}
	if s == "" {
		return p, fmt.Errorf("empty version")
	}
	for i, field := range strings.Split(s, ".") {
		if i > 2 {
			return p, fmt.Errorf("too many version parts in %q", s)
		}
		if field == "x" || field == "X" || field == "*" {
			break
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid version part %q", field)
		}
		p.nums[i] = n
		p.parts = i + 1
	}
	if p.pre != "" && p.parts < 3 {
		return p, fmt.Errorf("prerelease on a partial version %q", s)
	}
	return p, nil
}

func (p partial) floor() string {
	v := fmt.Sprintf("v%d.%d.%d", p.nums[0], p.nums[1], p.nums[2])
	if p.pre != "" {
		v += "-" + p.pre
	}
	return v
}

// bump increments the part at idx and zeroes the rest.
func (p partial) bump(idx int) string {
	n := p.nums
	n[idx]++
	for i := idx + 1; i < 3; i++ {
		n[i] = 0
	}
	return fmt.Sprintf("v%d.%d.%d", n[0], n[1], n[2])
}

// caretCeiling allows changes that keep the leftmost non-zero part.
func (p partial) caretCeiling() string {
	switch {
	case p.nums[0] > 0 || p.parts == 1:
		return p.bump(0)
	case p.nums[1] > 0 || p.parts == 2:
		return p.bump(1)
	default:
		return p.bump(2)
	}
}

func (p partial) upperInclusive() []comparator {
	if p.parts == 0 {
		return nil
	}
	if p.parts < 3 {
		return []comparator{{"<", p.bump(p.parts - 1)}}
	}
	return []comparator{{"<=", p.floor()}}
}

func canonical(version string) (string, bool) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "=")
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}
