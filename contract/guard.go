package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// ErrContractDrift is returned when the live API surface no longer matches
// the pinned snapshot. This is a hard configuration fault: plugins must
// never run against an API whose shape is unverified.
var ErrContractDrift = errors.New("contract drift")

// ContractDriftError reports which field diverged and how to fix it.
type ContractDriftError struct {
	File     string
	Field    string // "sha256" or "bytes"
	Expected string
	Actual   string
}

func (e *ContractDriftError) Error() string {
	return fmt.Sprintf(
		"contract drift in %s: %s mismatch (pinned %s, live %s); if the change is intentional, regenerate the pinned contract",
		e.File, e.Field, e.Expected, e.Actual,
	)
}

// Is implements error matching for errors.Is() checks.
func (e *ContractDriftError) Is(target error) bool {
	return target == ErrContractDrift
}

// Guard compares the host's live API surface against a pinned snapshot.
// It runs once during host startup, not per plugin load.
type Guard struct {
	snapshot *Snapshot
}

// NewGuard creates a guard over a loaded snapshot.
func NewGuard(snapshot *Snapshot) *Guard {
	return &Guard{snapshot: snapshot}
}

// Verify serializes the live surface for the given API version and checks
// it against the pin. Byte length is compared before the hash so the error
// names the cheaper, more legible divergence when both differ.
func (g *Guard) Verify(apiVersion values.Version) error {
	live, err := DescribeSurface(apiVersion)
	if err != nil {
		return fmt.Errorf("describing live api surface: %w", err)
	}
	return g.VerifyBytes(SurfaceFileName, live)
}

// VerifyBytes checks serialized surface bytes against the pinned entry for
// the given filename key.
func (g *Guard) VerifyBytes(name string, live []byte) error {
	pinned, ok := g.snapshot.Entry(name)
	if !ok {
		return &ContractDriftError{
			File:     name,
			Field:    "sha256",
			Expected: "(no pin recorded)",
			Actual:   hashHex(live),
		}
	}

	if pinned.Bytes != len(live) {
		return &ContractDriftError{
			File:     name,
			Field:    "bytes",
			Expected: fmt.Sprintf("%d", pinned.Bytes),
			Actual:   fmt.Sprintf("%d", len(live)),
		}
	}

	if actual := hashHex(live); actual != pinned.SHA256 {
		return &ContractDriftError{
			File:     name,
			Field:    "sha256",
			Expected: pinned.SHA256,
			Actual:   actual,
		}
	}

	return nil
}

// Pin builds a fresh snapshot of the live surface for the given API
// version. Used by the contract tooling when a surface change is approved.
func Pin(apiVersion values.Version) (*Snapshot, error) {
	live, err := DescribeSurface(apiVersion)
	if err != nil {
		return nil, fmt.Errorf("describing live api surface: %w", err)
	}
	return &Snapshot{
		Package: PackageInfo{Version: apiVersion.String()},
		Files: map[string]FileSnapshot{
			SurfaceFileName: SnapshotOf(live),
		},
	}, nil
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
