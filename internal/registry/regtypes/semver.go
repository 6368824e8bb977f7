package regtypes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a semantic version triple with an optional pre-release tag.
// Generalizes the teacher's major.minor.patch-only SemanticVersion with a
// pre-release tag: a release outranks any pre-release of the same core
// version, and pre-release tags compare lexically as whole strings, not
// identifier by identifier (so "rc.10" sorts before "rc.2").
type SemVer struct {
	Major uint64
	Minor uint64
	Patch uint64
	Pre   string // "" means no pre-release (ranks above any pre-release per semver precedence)
}

// ParseSemVer parses "major.minor.patch[-pre]".
func ParseSemVer(input string) (SemVer, error) {
	core := input
	var pre string
	if idx := strings.IndexByte(input, '-'); idx >= 0 {
		core = input[:idx]
		pre = input[idx+1:]
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return SemVer{}, &InvalidVersionError{Value: input}
	}

	nums := make([]uint64, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return SemVer{}, &InvalidVersionError{Value: input}
		}
		nums[i] = n
	}

	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2], Pre: pre}, nil
}

// String renders the version in major.minor.patch[-pre] notation.
func (v SemVer) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// MarshalJSON renders the version as its string form.
func (v SemVer) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

// UnmarshalJSON parses a version from its string form.
func (v *SemVer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSemVer(s)
	*v = parsed
	return err
}

// Compare returns -1, 0, or 1. A version with no pre-release outranks one
// with a pre-release at the same major.minor.patch (standard semver
// precedence); pre-release tags otherwise compare lexically.
func (v SemVer) Compare(other SemVer) int {
	if c := compareUint64(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareUint64(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareUint64(v.Patch, other.Patch); c != 0 {
		return c
	}
	switch {
	case v.Pre == "" && other.Pre == "":
		return 0
	case v.Pre == "":
		return 1
	case other.Pre == "":
		return -1
	default:
		return strings.Compare(v.Pre, other.Pre)
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// VersionRequirement is a semver range: "*", "=X.Y.Z", "^X.Y" (compatible
// within the same major, or same major.minor if major is 0), "~X.Y"
// (compatible within the same minor).
type VersionRequirement struct {
	kind  reqKind
	exact SemVer
	bound SemVer // caret/tilde base
}

type reqKind int

const (
	reqAny reqKind = iota
	reqExact
	reqCaret
	reqTilde
)

// AnyVersionRequirement matches every version; the default when a
// version_req is omitted on the wire (spec §4.7: "defaults to any").
func AnyVersionRequirement() VersionRequirement {
	return VersionRequirement{kind: reqAny}
}

// ParseVersionRequirement parses a requirement string.
func ParseVersionRequirement(input string) (VersionRequirement, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "*" {
		return AnyVersionRequirement(), nil
	}

	switch input[0] {
	case '=':
		v, err := ParseSemVer(input[1:])
		if err != nil {
			return VersionRequirement{}, err
		}
		return VersionRequirement{kind: reqExact, exact: v}, nil
	case '^':
		v, err := parsePartialSemVer(input[1:])
		if err != nil {
			return VersionRequirement{}, err
		}
		return VersionRequirement{kind: reqCaret, bound: v}, nil
	case '~':
		v, err := parsePartialSemVer(input[1:])
		if err != nil {
			return VersionRequirement{}, err
		}
		return VersionRequirement{kind: reqTilde, bound: v}, nil
	default:
		// bare "X.Y.Z" behaves like "=X.Y.Z"
		v, err := ParseSemVer(input)
		if err != nil {
			return VersionRequirement{}, &InvalidVersionError{Value: input}
		}
		return VersionRequirement{kind: reqExact, exact: v}, nil
	}
}

// parsePartialSemVer accepts "X", "X.Y", or "X.Y.Z", filling missing
// components with zero (so "^2.1" means "^2.1.0").
func parsePartialSemVer(input string) (SemVer, error) {
	parts := strings.Split(input, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return SemVer{}, &InvalidVersionError{Value: input}
	}

	nums := make([]uint64, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return SemVer{}, &InvalidVersionError{Value: input}
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Matches reports whether v satisfies the requirement.
func (r VersionRequirement) Matches(v SemVer) bool {
	switch r.kind {
	case reqAny:
		return true
	case reqExact:
		return v.Compare(r.exact) == 0
	case reqCaret:
		if r.bound.Major != 0 {
			return v.Major == r.bound.Major && v.Compare(r.bound) >= 0
		}
		return v.Major == 0 && v.Minor == r.bound.Minor && v.Compare(r.bound) >= 0
	case reqTilde:
		return v.Major == r.bound.Major && v.Minor == r.bound.Minor && v.Compare(r.bound) >= 0
	default:
		return false
	}
}

// String renders the requirement back to its wire form.
func (r VersionRequirement) String() string {
	switch r.kind {
	case reqAny:
		return "*"
	case reqExact:
		return "=" + r.exact.String()
	case reqCaret:
		return "^" + r.bound.String()
	case reqTilde:
		return "~" + r.bound.String()
	default:
		return "*"
	}
}
