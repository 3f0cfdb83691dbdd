// Package ports defines the interfaces the plugin runtime consumes.
// Implementations live in the infrastructure packages (registry, vault).
package ports

import (
	"context"

	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// ReleaseSource supplies, per plugin id, the latest published release and
// the full historical versions ledger. Responses are untrusted input:
// malformed entries must be rejected cleanly, never crash resolution.
type ReleaseSource interface {
	// LatestRelease returns the newest release the catalog knows about.
	LatestRelease(ctx context.Context, id values.PluginID) (entities.PluginRelease, error)

	// Versions returns the append-only history of every release the plugin
	// has ever published with its minimum host requirement.
	Versions(ctx context.Context, id values.PluginID) (entities.VersionsLedger, error)

	// Download fetches the code artifact for a resolved release.
	Download(ctx context.Context, release entities.PluginRelease) ([]byte, error)
}

// InvalidatingSource is a ReleaseSource with an explicitly clearable cache.
// The host owns the cache and clears it for test isolation or forced
// refresh; nothing else about resolution is time-dependent.
type InvalidatingSource interface {
	ReleaseSource

	// ClearCache drops all cached catalog responses.
	ClearCache()
}
