// Package reconciler runs the sync loop of one application: it detects when
// the cluster must be brought to the desired state, and runs sync cycles one
// at a time.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/live"
	"kpt.dev/appsync/pkg/parse"
)

// Trigger is what started a sync cycle.
type Trigger string

// Triggers of sync cycles.
const (
	// TriggerStartup is the first cycle after Run starts.
	TriggerStartup = Trigger("startup")
	// TriggerRevision means the source moved to a new revision.
	TriggerRevision = Trigger("revision")
	// TriggerDrift means the cluster no longer matches the last synced
	// desired state.
	TriggerDrift = Trigger("drift")
	// TriggerResync forces a cycle even without any detected change.
	TriggerResync = Trigger("resync")
	// TriggerRetry retries a failed cycle after its cooldown.
	TriggerRetry = Trigger("retry")
	// TriggerManual is requested by a user. It is the only trigger which
	// applies changes when auto-sync is off, and it bypasses the retry
	// cooldown.
	TriggerManual = Trigger("manual")
)

// ErrSyncInProgress is returned when a cycle is requested while another is
// running.
var ErrSyncInProgress = errors.New("a sync cycle is already in progress")

// Reconciler runs the sync loop of one application.
type Reconciler struct {
	opts   Options
	source *parse.Source
	parser *parse.Parser
	reader *live.Reader
	// applier is an interface so tests can intercept cycles.
	applier   applier.Interface
	lifecycle *lifecycle

	// pending is the single slot for a requested cycle. wake is signalled
	// whenever pending is filled.
	pendingMu sync.Mutex
	pending   *Trigger
	wake      chan struct{}

	// mu guards the fields below, which carry over from one cycle to the
	// next.
	mu           sync.Mutex
	lastGood     *declared.State
	lastRevision string
	retry        *retryPolicy
	retryDue     bool
	// reportedDrift describes the changes the last cycle reported without
	// applying them. With auto-sync off, drift matching it is not re-reported.
	reportedDrift string
}

// New returns a Reconciler for the application described by opts.
func New(opts Options) *Reconciler {
	opts.setDefaults()
	source := &parse.Source{Dir: opts.SourceDir, Path: opts.Path}
	r := &Reconciler{
		opts:   opts,
		source: source,
		parser: &parse.Parser{
			Application: opts.Application,
			Namespace:   opts.Namespace,
			Source:      source,
			Scoper:      opts.Scoper,
		},
		reader: &live.Reader{
			Application: opts.Application,
			Client:      opts.Client,
			CallTimeout: opts.CallTimeout,
			Concurrency: opts.ReadConcurrency,
		},
		applier: applier.New(opts.Client, applier.Options{
			Application:        opts.Application,
			RetryLimit:         opts.RetryLimit,
			RetryBaseDelay:     opts.RetryBaseDelay,
			CallTimeout:        opts.CallTimeout,
			ConvergenceTimeout: opts.ConvergenceTimeout,
			ConvergencePoll:    opts.ConvergencePoll,
			Clock:              opts.Clock,
		}),
		wake:  make(chan struct{}, 1),
		retry: newRetryPolicy(opts.BackoffInitial, opts.BackoffMax, opts.Clock),
	}
	r.lifecycle = newLifecycle(opts.Application, r.setPhase)
	opts.Store.Update(opts.Application, func(st *v1alpha1.ApplicationSyncStatus) {
		st.AutoSync = opts.AutoSync
	})
	return r
}

// Name returns the name of the application.
func (r *Reconciler) Name() string {
	return r.opts.Application
}

// Namespace returns the target namespace of the application.
func (r *Reconciler) Namespace() string {
	return r.opts.Namespace
}

// Status returns a copy of the current status of the application.
func (r *Reconciler) Status() *v1alpha1.ApplicationSyncStatus {
	st, _ := r.opts.Store.Get(r.opts.Application)
	return st
}

// Trigger requests a cycle from Run. Requests made while one is already
// pending are merged into it, and the merged request counts as manual if any
// of them was. Returns false if the request was merged.
func (r *Reconciler) Trigger(t Trigger) bool {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if r.pending != nil {
		if t == TriggerManual {
			*r.pending = TriggerManual
		}
		klog.V(4).Infof("Application %s: %s trigger merged into pending %s trigger", r.opts.Application, t, *r.pending)
		return false
	}
	r.pending = &t
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

func (r *Reconciler) takePending() (Trigger, bool) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if r.pending == nil {
		return "", false
	}
	t := *r.pending
	r.pending = nil
	return t, true
}

// Run keeps checking whether a sync cycle is necessary and runs one when it
// is, until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.restore(ctx)

	var changed <-chan struct{}
	if w, err := newSourceWatcher(r.opts.SourceDir, r.opts.Path); err != nil {
		klog.Warningf("Application %s: falling back to polling the source: %v", r.opts.Application, err)
	} else {
		defer func() {
			if err := w.Close(); err != nil {
				klog.Warningf("Application %s: closing source watcher: %v", r.opts.Application, err)
			}
		}()
		changed = w.Changed()
	}

	tickerPoll := time.NewTicker(r.opts.PollInterval)
	defer tickerPoll.Stop()
	tickerResync := time.NewTicker(r.opts.ResyncInterval)
	defer tickerResync.Stop()
	tickerDrift := time.NewTicker(r.opts.DriftCheckInterval)
	defer tickerDrift.Stop()
	tickerRetry := time.NewTicker(time.Second)
	defer tickerRetry.Stop()

	klog.Infof("Starting sync loop of application %s", r.opts.Application)
	r.Trigger(TriggerStartup)
	for {
		select {
		case <-ctx.Done():
			klog.Infof("Stopping sync loop of application %s", r.opts.Application)
			return nil

		case <-r.wake:
			if t, ok := r.takePending(); ok {
				r.handle(ctx, t)
			}

		// the source may have moved to a new revision
		case <-changed:
			r.checkRevision()
		case <-tickerPoll.C:
			r.checkRevision()

		// it is time to sync even if no changes have been detected
		case <-tickerResync.C:
			klog.Infof("Application %s: it is time for a force-resync", r.opts.Application)
			r.Trigger(TriggerResync)

		case <-tickerDrift.C:
			r.checkDrift(ctx)

		// it is time to check whether the last cycle failed and its cooldown
		// is over
		case <-tickerRetry.C:
			if r.retryReady() {
				r.Trigger(TriggerRetry)
			}
		}
	}
}

// handle runs a cycle for t, unless t is suppressed by the retry cooldown.
func (r *Reconciler) handle(ctx context.Context, t Trigger) {
	if r.suppressed(t) {
		klog.V(2).Infof("Application %s: %s trigger suppressed until the retry cooldown ends", r.opts.Application, t)
		return
	}
	if _, err := r.SyncOnce(ctx, t); err != nil {
		klog.Warningf("Application %s: %v", r.opts.Application, err)
	}
}

// suppressed returns true if a cycle for t must wait for the cooldown after
// a failed cycle. Manual triggers and new revisions are never suppressed.
func (r *Reconciler) suppressed(t Trigger) bool {
	if t == TriggerManual || t == TriggerRevision {
		return false
	}
	st := r.Status()
	if st == nil || st.NextRetryTime == nil {
		return false
	}
	return r.opts.Clock.Now().Before(st.NextRetryTime.Time)
}

// retryReady returns true if the last cycle asked for a retry and its
// cooldown is over.
func (r *Reconciler) retryReady() bool {
	r.mu.Lock()
	due := r.retryDue
	r.mu.Unlock()
	if !due {
		return false
	}
	st := r.Status()
	return st != nil && st.NextRetryTime != nil && !r.opts.Clock.Now().Before(st.NextRetryTime.Time)
}

// checkRevision triggers a cycle if the source moved to a new revision.
func (r *Reconciler) checkRevision() {
	revision, err := r.source.Revision()
	if err != nil {
		klog.V(2).Infof("Application %s: unable to read the source revision: %v", r.opts.Application, err)
		return
	}

	r.mu.Lock()
	changed := revision != r.lastRevision
	r.lastRevision = revision
	r.mu.Unlock()
	if !changed {
		return
	}
	klog.Infof("Application %s: source moved to revision %s", r.opts.Application, revision)
	r.opts.Store.Update(r.opts.Application, func(st *v1alpha1.ApplicationSyncStatus) {
		st.SourceRevision = revision
	})
	r.Trigger(TriggerRevision)
}

func (r *Reconciler) setPhase(phase v1alpha1.Phase) {
	r.opts.Store.Update(r.opts.Application, func(st *v1alpha1.ApplicationSyncStatus) {
		st.Phase = phase
	})
}

// restore loads the status saved before a restart, if any.
func (r *Reconciler) restore(ctx context.Context) {
	if r.opts.Persister == nil {
		return
	}
	st, err := r.opts.Persister.Load(ctx, r.opts.Application, r.opts.Namespace)
	if err != nil {
		klog.Warningf("Application %s: unable to restore saved status: %v", r.opts.Application, err)
		return
	}
	if st == nil {
		return
	}
	st.Phase = v1alpha1.PhaseIdle
	st.AutoSync = r.opts.AutoSync
	r.opts.Store.Set(st)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRevision = st.SourceRevision
	if st.ConsecutiveFailures > 0 {
		r.retry.restore(st.ConsecutiveFailures)
		r.retryDue = st.NextRetryTime != nil
	}
	klog.Infof("Application %s: restored status at revision %q with %d inventory entries",
		r.opts.Application, st.SyncedRevision, len(st.Inventory))
}

// SourceRevision returns the revision the source is at right now, which may
// not have been synced yet.
func (r *Reconciler) SourceRevision() (string, error) {
	return r.source.Revision()
}
