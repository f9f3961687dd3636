package reconciler

import (
	"time"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/parse"
	"kpt.dev/appsync/pkg/syncstatus"
)

// Defaults for Options left unset.
const (
	DefaultPollInterval       = 15 * time.Second
	DefaultResyncInterval     = time.Hour
	DefaultDriftCheckInterval = time.Minute
	DefaultCycleTimeout       = 5 * time.Minute
	DefaultBackoffInitial     = time.Second
	DefaultBackoffMax         = 5 * time.Minute
)

// Options contains the settings for the sync loop of one application.
type Options struct {
	// Application is the name of the application. It is written into the
	// ownership label of every resource the application creates.
	Application string
	// Namespace is the target namespace of the application.
	Namespace string
	// SourceDir is the path to the checked out manifest repository. Usually
	// contains a symlink that must be resolved every time before parsing.
	SourceDir string
	// Path is the slash path of the manifests within SourceDir.
	Path string
	// AutoSync applies changes without a manual trigger. When false, cycles
	// only report what would change.
	AutoSync bool

	// PollInterval is how often the source revision is checked, in addition
	// to file system notifications.
	PollInterval time.Duration
	// ResyncInterval is the period of time between forced sync cycles, even
	// without any detected change.
	ResyncInterval time.Duration
	// DriftCheckInterval is how often the cluster is compared against the
	// last synced desired state.
	DriftCheckInterval time.Duration
	// CycleTimeout bounds a whole sync cycle.
	CycleTimeout time.Duration
	// CallTimeout bounds each request to the API server.
	CallTimeout time.Duration
	// ConvergenceTimeout bounds the wait for a written resource to become
	// healthy.
	ConvergenceTimeout time.Duration
	// ConvergencePoll is the interval between health checks of a written
	// resource.
	ConvergencePoll time.Duration
	// RetryLimit is the number of attempts for each write.
	RetryLimit int
	// RetryBaseDelay is the delay before the first retry of a write.
	RetryBaseDelay time.Duration
	// ReadConcurrency bounds the number of parallel reads.
	ReadConcurrency int
	// HistoryLimit is the number of cycle summaries kept in the status.
	HistoryLimit int
	// BackoffInitial and BackoffMax bound the wait before an automatic retry
	// of a failed cycle.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Client talks to the API server.
	Client client.Client
	// Scoper, if set, is used to reject cluster-scoped kinds.
	Scoper parse.Scoper
	// Store receives the status of the application.
	Store *syncstatus.Store
	// Persister, if set, saves the status after every cycle and restores it
	// when Run starts.
	Persister syncstatus.Persister
	// Clock stamps statuses and drives retry decisions. Defaults to the real
	// clock.
	Clock clock.PassiveClock
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ResyncInterval <= 0 {
		o.ResyncInterval = DefaultResyncInterval
	}
	if o.DriftCheckInterval <= 0 {
		o.DriftCheckInterval = DefaultDriftCheckInterval
	}
	if o.CycleTimeout <= 0 {
		o.CycleTimeout = DefaultCycleTimeout
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = DefaultBackoffInitial
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = syncstatus.DefaultHistoryLimit
	}
	if o.Store == nil {
		o.Store = syncstatus.NewStore()
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
}
