// Package version provides semantic version arithmetic and commit-driven
// bump classification for the release pipeline.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
)

// BumpType represents the semantic-version increment class for a release.
type BumpType string

const (
	// BumpMajor indicates a major version bump (breaking changes).
	BumpMajor BumpType = "major"
	// BumpMinor indicates a minor version bump (new features).
	BumpMinor BumpType = "minor"
	// BumpPatch indicates a patch version bump (bug fixes).
	BumpPatch BumpType = "patch"
	// BumpAuto defers the choice to the commit classifier.
	BumpAuto BumpType = "auto"
)

// IsValid returns true if the bump type is valid.
func (b BumpType) IsValid() bool {
	switch b {
	case BumpMajor, BumpMinor, BumpPatch, BumpAuto:
		return true
	default:
		return false
	}
}

// String returns the string representation of the bump type.
func (b BumpType) String() string {
	return string(b)
}

// ParseBumpType parses a string into a BumpType.
func ParseBumpType(s string) (BumpType, error) {
	bt := BumpType(strings.ToLower(strings.TrimSpace(s)))
	if !bt.IsValid() {
		return "", sherrors.Newf(sherrors.KindValidation,
			"invalid bump type: %q (must be major, minor, patch, or auto)", s)
	}
	return bt, nil
}

// TagPrefix is prepended to versions when deriving tag names.
const TagPrefix = "v"

// Next computes the next version from the current release tag and a bump
// type. An empty current tag (repository never tagged) starts from 0.0.0.
func Next(currentTag string, bump BumpType) (string, error) {
	const op = "version.Next"

	current := "0.0.0"
	if currentTag != "" {
		current = strings.TrimPrefix(currentTag, TagPrefix)
	}

	v, err := semver.NewVersion(current)
	if err != nil {
		return "", sherrors.Wrapf(err, sherrors.KindValidation, op, "cannot parse current version %q", current)
	}

	var next semver.Version
	switch bump {
	case BumpMajor:
		next = v.IncMajor()
	case BumpMinor:
		next = v.IncMinor()
	case BumpPatch:
		next = v.IncPatch()
	default:
		return "", sherrors.Newf(sherrors.KindValidation, "cannot bump with unresolved type %q", bump)
	}

	return next.String(), nil
}

// TagFor derives the release tag for a version string.
func TagFor(version string) string {
	return TagPrefix + version
}

// Compare reports whether a published version string equals the expected
// one, tolerating a tag prefix on either side.
func Compare(a, b string) (bool, error) {
	va, err := semver.NewVersion(strings.TrimPrefix(a, TagPrefix))
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", a, err)
	}
	vb, err := semver.NewVersion(strings.TrimPrefix(b, TagPrefix))
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", b, err)
	}
	return va.Equal(vb), nil
}
