// SPDX-License-Identifier: MPL-2.0

package updates

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrVersionParse indicates a version string is not valid semver.
var ErrVersionParse = errors.New("unparseable version")

// VersionParseError reports which version string failed to parse. It wraps
// ErrVersionParse for errors.Is() compatibility.
type VersionParseError struct {
	Value string
}

// Error names the offending version string.
func (e *VersionParseError) Error() string {
	return fmt.Sprintf("%v: %q is not a semantic version", ErrVersionParse, e.Value)
}

// Unwrap returns ErrVersionParse so callers can use errors.Is.
func (e *VersionParseError) Unwrap() error { return ErrVersionParse }

// IsDowngrade reports whether the online version sorts lower than the
// current one under semantic-version precedence. If either input fails to
// parse it returns false along with a VersionParseError: the caller logs it
// and fails open toward allowing the update. Pure, safe for concurrent use.
func IsDowngrade(online, current string) (bool, error) {
	onlineNorm, err := normalizeTag(online)
	if err != nil {
		return false, err
	}

	currentNorm, err := normalizeTag(current)
	if err != nil {
		return false, err
	}

	return semver.Compare(onlineNorm, currentNorm) < 0, nil
}

// sameVersion reports whether two version strings name the same release once
// the feed's tag prefix convention is stripped. Unparseable inputs only
// compare equal as exact strings.
func sameVersion(a, b string) bool {
	an, errA := normalizeTag(a)
	bn, errB := normalizeTag(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return semver.Compare(an, bn) == 0 && semver.Build(an) == semver.Build(bn)
}

// normalizeTag strips the feed's leading tag prefix ("v." or "v") and
// returns the version in the "vMAJOR.MINOR.PATCH" form the semver package
// requires. Returns a VersionParseError when the result is not well formed.
func normalizeTag(tag string) (string, error) {
	trimmed := strings.TrimSpace(tag)
	switch {
	case strings.HasPrefix(trimmed, "v."):
		trimmed = strings.TrimPrefix(trimmed, "v.")
	case strings.HasPrefix(trimmed, "v"):
		trimmed = strings.TrimPrefix(trimmed, "v")
	}

	norm := "v" + trimmed
	if !semver.IsValid(norm) {
		return "", &VersionParseError{Value: tag}
	}
	return norm, nil
}
