// Package constants provides domain strings shared by the engine, the
// server and the front ends.
package constants

// =============================================================================
// Engine State
// =============================================================================

const (
	// EngineStateRunning indicates the ingestion and render loops are active
	EngineStateRunning = "running"

	// EngineStatePaused indicates the engine was stopped and keeps its buffer
	EngineStatePaused = "paused"
)

// EngineState returns the state name for a running flag.
func EngineState(running bool) string {
	if running {
		return EngineStateRunning
	}
	return EngineStatePaused
}

// =============================================================================
// Health Status
// =============================================================================

// HealthStatusOK is reported by the liveness endpoint whenever it answers.
const HealthStatusOK = "ok"

// =============================================================================
// Export Kinds
// =============================================================================

const (
	// ExportKindSamples exports buffered samples
	ExportKindSamples = "samples"

	// ExportKindBuckets exports aggregated buckets
	ExportKindBuckets = "buckets"
)

// ValidExportKinds contains all valid export kinds
var ValidExportKinds = []string{ExportKindSamples, ExportKindBuckets}

// IsValidExportKind checks if a kind is valid
func IsValidExportKind(kind string) bool {
	for _, k := range ValidExportKinds {
		if k == kind {
			return true
		}
	}
	return false
}
