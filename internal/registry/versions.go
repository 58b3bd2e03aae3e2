package registry

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a version string leniently: surrounding whitespace and
// a leading "v" are accepted.
func ParseVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(s), "v"))
}

// IsNewer reports whether candidate is strictly newer than baseline by semver
// precedence. When either side does not parse, bare inequality decides, so
// non-semver tags still register as a change exactly once.
func IsNewer(candidate, baseline string) bool {
	if baseline == "" {
		return candidate != ""
	}
	cv, cerr := ParseVersion(candidate)
	bv, berr := ParseVersion(baseline)
	if cerr != nil || berr != nil {
		return candidate != baseline
	}
	return cv.GreaterThan(bv)
}

// sortReleasesAscending orders releases oldest-first by version precedence.
// Releases with unparseable versions sort lexically after the valid ones.
func sortReleasesAscending(releases []Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		vi, erri := ParseVersion(releases[i].Version)
		vj, errj := ParseVersion(releases[j].Version)
		switch {
		case erri == nil && errj == nil:
			return vi.LessThan(vj)
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return releases[i].Version < releases[j].Version
		}
	})
}
