package values_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/igne-dev/pluginhost/plugin/values"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain triple", input: "1.2.3"},
		{name: "prerelease", input: "2.0.0-beta"},
		{name: "build metadata", input: "1.0.0+build.7"},
		{name: "loose two-part", input: "1.2"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "not-a-version", wantErr: true},
		{name: "trailing junk", input: "1.2.3.4.5.whatever", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := values.ParseVersion(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, values.ErrMalformedVersion))
				var malformed *values.MalformedVersionError
				require.ErrorAs(t, err, &malformed)
				assert.Equal(t, tc.input, malformed.Input)
				return
			}
			require.NoError(t, err)
			assert.False(t, v.IsAbsent())
			assert.Equal(t, tc.input, v.String())
		})
	}
}

func TestVersionCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.11.4", "1.11.5", -1},
		{"2.0.0", "1.99.99", 1},
		{"0.15.0", "1.0.0", -1},
		// Prereleases sort strictly before their release counterpart.
		{"2.0.0-beta", "2.0.0", -1},
		{"2.0.0-alpha", "2.0.0-beta", -1},
	}

	for _, tc := range tests {
		a := values.MustVersion(tc.a)
		b := values.MustVersion(tc.b)
		assert.Equal(t, tc.want, a.Compare(b), "%s vs %s", tc.a, tc.b)
		assert.Equal(t, -tc.want, b.Compare(a), "%s vs %s reversed", tc.b, tc.a)
	}
}

func TestVersionCompare_AbsentSortsFirst(t *testing.T) {
	t.Parallel()

	var absent values.Version
	v := values.MustVersion("0.0.1")
	assert.True(t, absent.IsAbsent())
	assert.Equal(t, -1, absent.Compare(v))
	assert.Equal(t, 1, v.Compare(absent))
	assert.Equal(t, 0, absent.Compare(values.Version{}))
	assert.Equal(t, "", absent.String())
}

// Comparison must be a total order; transitivity is the piece a hand-rolled
// comparator usually gets wrong, so it gets a property test.
func TestVersionCompare_Transitive(t *testing.T) {
	t.Parallel()

	gen := rapid.Custom(func(t *rapid.T) values.Version {
		major := rapid.IntRange(0, 20).Draw(t, "major")
		minor := rapid.IntRange(0, 20).Draw(t, "minor")
		patch := rapid.IntRange(0, 20).Draw(t, "patch")
		pre := rapid.SampledFrom([]string{"", "-alpha", "-beta", "-rc.1"}).Draw(t, "pre")
		return values.MustVersion(fmt.Sprintf("%d.%d.%d%s", major, minor, patch, pre))
	})

	rapid.Check(t, func(t *rapid.T) {
		a := gen.Draw(t, "a")
		b := gen.Draw(t, "b")
		c := gen.Draw(t, "c")

		if a.Compare(b) < 0 && b.Compare(c) < 0 && a.Compare(c) >= 0 {
			t.Fatalf("transitivity violated: %s < %s < %s but compare(%s, %s) = %d",
				a, b, c, a, c, a.Compare(c))
		}
		// Antisymmetry comes along for free.
		if a.Compare(b) != -b.Compare(a) {
			t.Fatalf("antisymmetry violated for %s, %s", a, b)
		}
	})
}
