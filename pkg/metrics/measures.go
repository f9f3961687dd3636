package metrics

import (
	"go.opencensus.io/stats"
)

var (
	// CycleDuration measures the latency of sync cycles.
	CycleDuration = stats.Float64(
		"cycle_duration_seconds",
		"The duration of sync cycles",
		stats.UnitSeconds)

	// APICallDuration measures the latency of API server calls.
	APICallDuration = stats.Float64(
		"api_duration_seconds",
		"The duration of API server calls in seconds",
		stats.UnitSeconds)

	// ApplyOperations counts the operations applied to the cluster.
	ApplyOperations = stats.Int64(
		"apply_operations",
		"The number of operations that have been performed to sync resources to source of truth",
		stats.UnitDimensionless)

	// ApplyRetries counts the retried attempts of operations.
	ApplyRetries = stats.Int64(
		"apply_retries",
		"The number of retried attempts of operations",
		stats.UnitDimensionless)

	// DeclaredResources measures the number of declared resources parsed from
	// the source.
	DeclaredResources = stats.Int64(
		"declared_resources",
		"The number of declared resources parsed from the source",
		stats.UnitDimensionless)

	// DriftDetections counts the drift checks which found the cluster out of
	// sync.
	DriftDetections = stats.Int64(
		"drift_detections",
		"The number of drift checks which found resources out of sync",
		stats.UnitDimensionless)

	// SyncErrors measures the number of errors in the last sync cycle.
	SyncErrors = stats.Int64(
		"sync_errors",
		"The number of errors in the last sync cycle",
		stats.UnitDimensionless)

	// LastSync measures the timestamp of the latest completed sync cycle.
	LastSync = stats.Int64(
		"last_sync_timestamp",
		"Timestamp of the most recent completed sync cycle",
		stats.UnitDimensionless)
)
