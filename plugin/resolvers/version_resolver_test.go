package resolvers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/resolvers"
	"github.com/igne-dev/pluginhost/plugin/values"
)

func release(version, minApp string) entities.PluginRelease {
	return entities.PluginRelease{
		ID:            values.MustPluginID("calendar"),
		Version:       values.MustVersion(version),
		MinAppVersion: values.MustVersion(minApp),
	}
}

func TestVersionResolver_Resolve(t *testing.T) {
	t.Parallel()

	ledger := entities.VersionsLedger{
		"1.0.0": "0.15.0",
		"1.5.0": "1.0.0",
		"2.0.0": "1.2.0",
	}

	tests := []struct {
		name        string
		hostAPI     string
		latest      entities.PluginRelease
		ledger      entities.VersionsLedger
		wantVersion string
		runnable    bool
	}{
		{
			name:        "latest is compatible",
			hostAPI:     "1.4.0",
			latest:      release("2.0.0", "1.2.0"),
			ledger:      ledger,
			wantVersion: "2.0.0",
			runnable:    true,
		},
		{
			name:        "falls back to newest runnable historical release",
			hostAPI:     "1.1.0",
			latest:      release("2.0.0", "1.2.0"),
			ledger:      ledger,
			wantVersion: "1.5.0",
			runnable:    true,
		},
		{
			name:     "nothing runnable",
			hostAPI:  "0.10.0",
			latest:   release("2.0.0", "1.2.0"),
			ledger:   ledger,
			runnable: false,
		},
		{
			name:     "incompatible latest with empty ledger",
			hostAPI:  "1.0.0",
			latest:   release("3.0.0", "2.0.0"),
			ledger:   entities.VersionsLedger{},
			runnable: false,
		},
		{
			name:    "malformed ledger rows are skipped",
			hostAPI: "1.1.0",
			latest:  release("2.0.0", "1.2.0"),
			ledger: entities.VersionsLedger{
				"not-a-version": "1.0.0",
				"1.4.0":         "garbage",
				"1.3.0":         "1.0.0",
			},
			wantVersion: "1.3.0",
			runnable:    true,
		},
		{
			name:    "ledger row matching latest is never re-selected",
			hostAPI: "1.1.0",
			latest:  release("2.0.0", "1.2.0"),
			ledger: entities.VersionsLedger{
				// The catalog lists the latest release in its own history
				// with a stale, more permissive requirement.
				"2.0.0": "1.0.0",
				"1.5.0": "1.0.0",
			},
			wantVersion: "1.5.0",
			runnable:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := resolvers.NewVersionResolver(values.MustVersion(tc.hostAPI))
			res := r.Resolve(tc.latest, tc.ledger)

			assert.Equal(t, tc.runnable, res.Runnable())
			require.NotEmpty(t, res.Reason)
			if tc.runnable {
				assert.Equal(t, tc.wantVersion, res.Version.String())
			} else {
				assert.True(t, res.Version.IsAbsent())
				assert.Contains(t, res.Reason, "No compatible version")
				assert.Equal(t, "No compatible version found", res.Reason)
				// The requirement of the rejected latest release is kept so
				// callers can tell the user what the plugin needs.
				assert.Equal(t, tc.latest.MinAppVersion, res.MinAppVersion)
			}
		})
	}
}

func TestVersionResolver_ReasonStrings(t *testing.T) {
	t.Parallel()

	ledger := entities.VersionsLedger{"1.5.0": "1.0.0"}

	r := resolvers.NewVersionResolver(values.MustVersion("1.11.4"))
	res := r.Resolve(release("2.0.0", "1.11.4"), ledger)
	assert.Equal(t, "Latest version 2.0.0 is compatible with host API 1.11.4", res.Reason)

	res = r.Resolve(release("2.0.0", "1.12.0"), ledger)
	assert.Equal(t, "Installing compatible version 1.5.0 instead (latest requires host API >= 1.12.0)", res.Reason)

	res = r.Resolve(release("2.0.0", "1.12.0"), entities.VersionsLedger{})
	assert.Equal(t, "No compatible version found", res.Reason)
}

func TestVersionResolver_CatalogScenarios(t *testing.T) {
	t.Parallel()

	t.Run("latest exactly matches host requirement", func(t *testing.T) {
		r := resolvers.NewVersionResolver(values.MustVersion("1.11.4"))
		res := r.Resolve(release("2.0.0", "1.11.4"), entities.VersionsLedger{
			"1.0.0": "0.15.0",
			"1.5.0": "1.0.0",
			"2.0.0": "1.11.4",
		})
		require.True(t, res.Runnable())
		assert.Equal(t, "2.0.0", res.Version.String())
	})

	t.Run("host just below latest requirement falls back", func(t *testing.T) {
		r := resolvers.NewVersionResolver(values.MustVersion("1.11.4"))
		res := r.Resolve(release("2.0.0", "1.11.5"), entities.VersionsLedger{
			"1.0.0": "0.15.0",
			"1.5.0": "1.0.0",
			"2.0.0": "1.11.5",
		})
		require.True(t, res.Runnable())
		assert.Equal(t, "1.5.0", res.Version.String())
	})

	t.Run("every release requires a newer host", func(t *testing.T) {
		r := resolvers.NewVersionResolver(values.MustVersion("1.11.4"))
		res := r.Resolve(release("2.0.0", "1.12.0"), entities.VersionsLedger{
			"2.0.0": "1.12.0",
			"1.9.0": "1.11.5",
		})
		assert.False(t, res.Runnable())
		assert.True(t, res.Version.IsAbsent())
		assert.Contains(t, res.Reason, "No compatible version")
	})
}

func TestVersionResolver_Deterministic(t *testing.T) {
	t.Parallel()

	// Map iteration order varies between runs; the resolver must not.
	ledger := entities.VersionsLedger{
		"1.1.0": "1.0.0",
		"1.2.0": "1.0.0",
		"1.3.0": "1.0.0",
		"1.4.0": "1.0.0",
	}
	r := resolvers.NewVersionResolver(values.MustVersion("1.0.0"))
	latest := release("2.0.0", "2.0.0")

	first := r.Resolve(latest, ledger)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, r.Resolve(latest, ledger))
	}
	assert.Equal(t, "1.4.0", first.Version.String())
}
