package metrics

import (
	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats/view"
)

var (
	// The namespace for the OpenCensus Prometheus metrics.
	namespace = "appsync"
)

// RegisterPrometheusExporter creates the OpenCensus Prometheus metrics exporter.
func RegisterPrometheusExporter() (*prometheus.Exporter, error) {
	return prometheus.NewExporter(prometheus.Options{
		Namespace: namespace,
	})
}

// RegisterViews registers the views so that recorded metrics can be exported.
func RegisterViews() error {
	return view.Register(
		CycleDurationView,
		APICallDurationView,
		ApplyOperationsView,
		ApplyRetriesView,
		DeclaredResourcesView,
		DriftDetectionsView,
		SyncErrorsView,
		LastSyncTimestampView)
}

// UnregisterViews unregisters the views registered by RegisterViews.
func UnregisterViews() {
	view.Unregister(
		CycleDurationView,
		APICallDurationView,
		ApplyOperationsView,
		ApplyRetriesView,
		DeclaredResourcesView,
		DriftDetectionsView,
		SyncErrorsView,
		LastSyncTimestampView)
}
