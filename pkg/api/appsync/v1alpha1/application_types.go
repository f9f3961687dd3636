package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Application declares one manifest source path synced into one namespace.
type Application struct {
	// Name identifies the application. Must be a DNS-1123 label, since it is
	// written into the ownership label of every resource the application
	// creates.
	Name string `json:"name"`

	// SourceDir is the directory, usually a git-sync symlink, holding the
	// checked out manifest repository.
	SourceDir string `json:"sourceDir"`

	// Path is the slash path within SourceDir that holds the application's
	// manifests.
	// Default: the root directory of the repository
	// +optional
	Path string `json:"path,omitempty"`

	// Namespace is the target namespace. Manifests without a namespace are
	// placed here, and manifests declaring any other namespace are rejected.
	Namespace string `json:"namespace"`

	// PromoteFrom names the application which must be Healthy at the same
	// revision before this application may be synced manually.
	// +optional
	PromoteFrom string `json:"promoteFrom,omitempty"`

	SyncPolicy `json:",inline"`
}

// SyncPolicy holds the tunables of a sync loop. Unset fields take the value
// from the configured defaults.
type SyncPolicy struct {
	// PollInterval is how often the source revision is checked, in addition to
	// file system notifications.
	// +optional
	PollInterval *metav1.Duration `json:"pollInterval,omitempty"`

	// ResyncInterval forces a full sync cycle even without any detected change.
	// +optional
	ResyncInterval *metav1.Duration `json:"resyncInterval,omitempty"`

	// DriftCheckInterval is how often the cluster is compared against the last
	// synced desired state.
	// +optional
	DriftCheckInterval *metav1.Duration `json:"driftCheckInterval,omitempty"`

	// CycleTimeout bounds a whole sync cycle.
	// +optional
	CycleTimeout *metav1.Duration `json:"cycleTimeout,omitempty"`

	// CallTimeout bounds each request to the API server.
	// +optional
	CallTimeout *metav1.Duration `json:"callTimeout,omitempty"`

	// ConvergenceTimeout bounds the wait for an applied resource to become
	// healthy.
	// +optional
	ConvergenceTimeout *metav1.Duration `json:"convergenceTimeout,omitempty"`

	// RetryLimit is the number of attempts made for each operation.
	// +optional
	RetryLimit *int `json:"retryLimit,omitempty"`

	// RetryBaseDelay is the delay before the first retry of an operation.
	// +optional
	RetryBaseDelay *metav1.Duration `json:"retryBaseDelay,omitempty"`

	// AutoSync applies changes without a manual trigger.
	// +optional
	AutoSync *bool `json:"autoSync,omitempty"`

	// ReadConcurrency bounds the number of parallel reads of live resources.
	// +optional
	ReadConcurrency *int `json:"readConcurrency,omitempty"`

	// HistoryLimit is the number of cycle summaries kept in the status.
	// +optional
	HistoryLimit *int `json:"historyLimit,omitempty"`
}
