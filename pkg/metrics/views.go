package metrics

import (
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var distributionBounds = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

var (
	// CycleDurationView aggregates the CycleDuration metric measurements.
	CycleDurationView = &view.View{
		Name:        CycleDuration.Name(),
		Measure:     CycleDuration,
		Description: "The latency distribution of sync cycles",
		TagKeys:     []tag.Key{KeyApplication, KeyTrigger, KeyHealth},
		Aggregation: view.Distribution(distributionBounds...),
	}

	// APICallDurationView aggregates the APICallDuration metric measurements.
	APICallDurationView = &view.View{
		Name:        APICallDuration.Name(),
		Measure:     APICallDuration,
		Description: "The latency distribution of API server calls",
		TagKeys:     []tag.Key{KeyApplication, KeyOperation, KeyType, KeyStatus},
		Aggregation: view.Distribution(distributionBounds...),
	}

	// ApplyOperationsView aggregates the ApplyOperations metric measurements.
	ApplyOperationsView = &view.View{
		Name:        ApplyOperations.Name() + "_total",
		Measure:     ApplyOperations,
		Description: "The total number of operations that have been performed to sync resources to source of truth",
		TagKeys:     []tag.Key{KeyApplication, KeyOperation, KeyType, KeyStatus},
		Aggregation: view.Count(),
	}

	// ApplyRetriesView aggregates the ApplyRetries metric measurements.
	ApplyRetriesView = &view.View{
		Name:        ApplyRetries.Name() + "_total",
		Measure:     ApplyRetries,
		Description: "The total number of retried attempts of operations",
		TagKeys:     []tag.Key{KeyApplication, KeyOperation},
		Aggregation: view.Sum(),
	}

	// DeclaredResourcesView aggregates the DeclaredResources metric measurements.
	DeclaredResourcesView = &view.View{
		Name:        DeclaredResources.Name(),
		Measure:     DeclaredResources,
		Description: "The current number of declared resources",
		TagKeys:     []tag.Key{KeyApplication},
		Aggregation: view.LastValue(),
	}

	// DriftDetectionsView aggregates the DriftDetections metric measurements.
	DriftDetectionsView = &view.View{
		Name:        DriftDetections.Name() + "_total",
		Measure:     DriftDetections,
		Description: "The total number of drift checks which found resources out of sync",
		TagKeys:     []tag.Key{KeyApplication},
		Aggregation: view.Count(),
	}

	// SyncErrorsView aggregates the SyncErrors metric measurements.
	SyncErrorsView = &view.View{
		Name:        SyncErrors.Name(),
		Measure:     SyncErrors,
		Description: "The number of errors in the last sync cycle",
		TagKeys:     []tag.Key{KeyApplication, KeyErrorCode},
		Aggregation: view.LastValue(),
	}

	// LastSyncTimestampView aggregates the LastSync metric measurements.
	LastSyncTimestampView = &view.View{
		Name:        LastSync.Name(),
		Measure:     LastSync,
		Description: "The timestamp of the most recent completed sync cycle",
		TagKeys:     []tag.Key{KeyApplication, KeyCommit, KeyHealth},
		Aggregation: view.LastValue(),
	}
)
