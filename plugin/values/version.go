// Package values contains the validated value objects of the plugin
// runtime: versions, plugin identifiers, and hotkeys.
package values

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrMalformedVersion is returned when a version string cannot be parsed.
var ErrMalformedVersion = errors.New("malformed version")

// MalformedVersionError carries the offending input alongside the parse
// failure so callers can report which registry entry was rejected.
type MalformedVersionError struct {
	Input string
	Cause error
}

func (e *MalformedVersionError) Error() string {
	return fmt.Sprintf("malformed version %q: %v", e.Input, e.Cause)
}

// Is implements error matching for errors.Is() checks.
func (e *MalformedVersionError) Is(target error) bool {
	return target == ErrMalformedVersion
}

func (e *MalformedVersionError) Unwrap() error { return e.Cause }

// Version is a parsed semantic version. The zero value is "absent" and is
// used by resolutions that found no runnable release.
//
// Ordering follows SemVer 2.0 precedence, so a prerelease sorts strictly
// before its release counterpart (2.0.0-beta < 2.0.0).
type Version struct {
	v *semver.Version
}

// ParseVersion parses a dotted version string. Registry data is untrusted,
// so failures are reported as MalformedVersionError rather than panicking.
func ParseVersion(s string) (Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		// Registry manifests occasionally carry loose forms like "1.2";
		// accept them the way the lenient parser does before giving up.
		v, err = semver.NewVersion(s)
		if err != nil {
			return Version{}, &MalformedVersionError{Input: s, Cause: err}
		}
	}
	return Version{v: v}, nil
}

// MustVersion parses a version string or panics. For tests and constants.
func MustVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsAbsent reports whether this is the zero value.
func (v Version) IsAbsent() bool { return v.v == nil }

// Compare returns -1, 0, or 1 when v is less than, equal to, or greater
// than other. Absent versions sort before everything.
func (v Version) Compare(other Version) int {
	switch {
	case v.v == nil && other.v == nil:
		return 0
	case v.v == nil:
		return -1
	case other.v == nil:
		return 1
	}
	return v.v.Compare(other.v)
}

// LessThan reports whether v < other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// AtMost reports whether v <= other. This is the compatibility test used
// by the resolver: a release runs when its minimum required host version
// is at most the host's emulated API version.
func (v Version) AtMost(other Version) bool { return v.Compare(other) <= 0 }

// Equals reports whether both versions have identical precedence and
// metadata.
func (v Version) Equals(other Version) bool {
	if v.v == nil || other.v == nil {
		return v.v == other.v
	}
	return v.v.Original() == other.v.Original()
}

// String returns the version as originally written, or "" when absent.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// MarshalJSON implements json.Marshaler.
func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", v.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Version) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return &MalformedVersionError{Input: string(data), Cause: errors.New("not a JSON string")}
	}
	parsed, err := ParseVersion(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
