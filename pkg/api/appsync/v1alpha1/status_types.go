package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Phase is the lifecycle phase of an application's sync loop.
type Phase string

const (
	// PhaseIdle means no sync cycle is running.
	PhaseIdle = Phase("Idle")
	// PhaseSyncing means a sync cycle is running.
	PhaseSyncing = Phase("Syncing")
)

// Health is the outcome of the last completed sync cycle.
type Health string

const (
	// HealthUnknown means no cycle has completed yet.
	HealthUnknown = Health("Unknown")
	// HealthHealthy means every resource was synced and is current.
	HealthHealthy = Health("Healthy")
	// HealthDegraded means the cycle completed but some resources failed, were
	// skipped or are still progressing.
	HealthDegraded = Health("Degraded")
	// HealthError means the cycle failed as a whole.
	HealthError = Health("Error")
)

// OperationType is the change computed for one resource.
type OperationType string

const (
	// OperationCreate creates a resource which is declared but absent.
	OperationCreate = OperationType("Create")
	// OperationUpdate patches a resource which drifted from its declaration.
	OperationUpdate = OperationType("Update")
	// OperationDelete prunes a resource which is no longer declared.
	OperationDelete = OperationType("Delete")
	// OperationNoOp leaves a resource untouched.
	OperationNoOp = OperationType("NoOp")
)

// ResultStatus is the outcome of one operation.
type ResultStatus string

const (
	// ResultSucceeded means the operation was applied and the resource is
	// current.
	ResultSucceeded = ResultStatus("Succeeded")
	// ResultFailed means the operation could not be applied.
	ResultFailed = ResultStatus("Failed")
	// ResultSkipped means the operation was not attempted.
	ResultSkipped = ResultStatus("Skipped")
	// ResultProgressing means the operation was applied but the resource has
	// not converged yet.
	ResultProgressing = ResultStatus("Progressing")
)

// ResourceRef contains the identification bits of a single managed resource.
type ResourceRef struct {
	Group     string `json:"group,omitempty"`
	Version   string `json:"version"`
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`

	// SourcePath is the repo-relative slash path to where the resource is
	// declared, if it is.
	// +optional
	SourcePath string `json:"sourcePath,omitempty"`
}

// SyncResult is the outcome of the operation computed for one resource.
type SyncResult struct {
	Resource  ResourceRef   `json:"resource"`
	Operation OperationType `json:"operation"`
	Status    ResultStatus  `json:"status"`

	// Reason explains why the operation Failed, was Skipped, or is
	// Progressing.
	// +optional
	Reason string `json:"reason,omitempty"`

	Timestamp metav1.Time `json:"timestamp"`
}

// AppSyncError represents an error that occurs while parsing, reading or
// applying resources.
type AppSyncError struct {
	// Code is the error code of this particular error, like "1001".
	Code string `json:"code"`

	// ErrorMessage describes the error that occurred.
	ErrorMessage string `json:"errorMessage"`

	// Resources describes the resources associated with this error, if any.
	// +optional
	Resources []ResourceRef `json:"errorResources,omitempty"`
}

// CycleSummary records one completed sync cycle.
type CycleSummary struct {
	ID        string      `json:"id"`
	Trigger   string      `json:"trigger"`
	Revision  string      `json:"revision,omitempty"`
	Health    Health      `json:"health"`
	StartTime metav1.Time `json:"startTime"`
	EndTime   metav1.Time `json:"endTime"`

	// Operations counts the computed operations by type.
	// +optional
	Operations map[OperationType]int `json:"operations,omitempty"`

	// Results counts the operation outcomes by status.
	// +optional
	Results map[ResultStatus]int `json:"results,omitempty"`

	// +optional
	Errors []AppSyncError `json:"errors,omitempty"`
}

// ApplicationSyncStatus is the state of an application kept across sync
// cycles.
type ApplicationSyncStatus struct {
	Application string `json:"application"`
	Phase       Phase  `json:"phase"`
	Health      Health `json:"health"`
	AutoSync    bool   `json:"autoSync"`

	// SourceRevision is the most recent revision seen in the source.
	// +optional
	SourceRevision string `json:"sourceRevision,omitempty"`

	// SyncedRevision is the revision the last completed cycle synced.
	// +optional
	SyncedRevision string `json:"syncedRevision,omitempty"`

	// LastSyncTime is when the last completed cycle ended.
	// +nullable
	// +optional
	LastSyncTime metav1.Time `json:"lastSyncTime,omitempty"`

	// Results are the per-resource outcomes of the last completed cycle.
	// +optional
	Results []SyncResult `json:"results,omitempty"`

	// Errors are the errors of the last cycle, completed or not.
	// +optional
	Errors []AppSyncError `json:"errors,omitempty"`

	// History holds summaries of recent cycles, oldest first.
	// +optional
	History []CycleSummary `json:"history,omitempty"`

	// Inventory lists the resources the application may have created and must
	// consider for pruning.
	// +optional
	Inventory []ResourceRef `json:"inventory,omitempty"`

	// ConsecutiveFailures counts cycles in a row which ended in Error or
	// Degraded.
	// +optional
	ConsecutiveFailures int `json:"consecutiveFailures,omitempty"`

	// NextRetryTime is when the next automatic retry is allowed after a
	// failed cycle.
	// +nullable
	// +optional
	NextRetryTime *metav1.Time `json:"nextRetryTime,omitempty"`
}
