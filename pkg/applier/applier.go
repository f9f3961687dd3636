// Package applier applies the operations computed by the diff engine to the
// cluster.
package applier

import (
	"context"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	kstatus "sigs.k8s.io/cli-utils/pkg/kstatus/status"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/diff"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/util/apierror"
)

// Defaults for Options left unset.
const (
	DefaultRetryLimit         = 5
	DefaultRetryBaseDelay     = 500 * time.Millisecond
	DefaultCallTimeout        = 10 * time.Second
	DefaultConvergenceTimeout = 2 * time.Minute
	DefaultConvergencePoll    = 2 * time.Second
)

// Reasons reported on Skipped results.
const (
	ReasonAutoSyncDisabled = "auto-sync disabled"
	ReasonPruneSuspended   = "pruning suspended: manifests failed to parse"
	ReasonCancelled        = "sync cycle cancelled before the operation started"
	ReasonNoLongerOwned    = "replaced by a resource this application does not own"
)

// Options configures an Applier.
type Options struct {
	// Application names the application whose resources are applied.
	Application string
	// RetryLimit is the number of attempts for each write.
	RetryLimit int
	// RetryBaseDelay is the wait before the first retry. Later retries wait
	// exponentially longer.
	RetryBaseDelay time.Duration
	// CallTimeout bounds each API call.
	CallTimeout time.Duration
	// ConvergenceTimeout bounds how long a written resource may take to become
	// healthy before it is reported Progressing.
	ConvergenceTimeout time.Duration
	// ConvergencePoll is the interval between health checks.
	ConvergencePoll time.Duration
	// Clock stamps results. Defaults to the real clock.
	Clock clock.PassiveClock
}

// Mode controls which writes an Apply call performs.
type Mode struct {
	// Apply is false when changes must only be reported, e.g. because
	// auto-sync is off and the cycle was not triggered manually.
	Apply bool
	// Prune is false when Deletes must be held back for this cycle.
	Prune bool
}

// Interface is a fake-able subset of the interface Applier implements.
//
// Placed here to make discovering the production implementation (below) easier.
type Interface interface {
	// Apply performs ops in order and returns one result per operation.
	Apply(ctx context.Context, ops []diff.Operation, mode Mode) ([]v1alpha1.SyncResult, status.MultiError)
}

// Applier performs the Create, Update and Delete operations of one
// application, one resource at a time.
type Applier struct {
	client client.Client
	opts   Options
}

var _ Interface = &Applier{}

// New returns an Applier writing through c.
func New(c client.Client, opts Options) *Applier {
	if opts.RetryLimit < 1 {
		opts.RetryLimit = DefaultRetryLimit
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.ConvergencePoll <= 0 {
		opts.ConvergencePoll = DefaultConvergencePoll
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Applier{client: c, opts: opts}
}

// Apply performs ops sequentially. Every Create, Update and NoOp is handled
// before the first Delete, keeping the relative order of each group.
//
// Failures of one resource never stop the others. Cancellation of ctx is
// only checked between resources: an operation which has started runs its
// retries to completion, and operations which have not started are reported
// Skipped.
func (a *Applier) Apply(ctx context.Context, ops []diff.Operation, mode Mode) ([]v1alpha1.SyncResult, status.MultiError) {
	var errs status.MultiError
	stats := newApplyStats()
	results := make([]v1alpha1.SyncResult, 0, len(ops))

	for _, op := range ordered(ops) {
		var result v1alpha1.SyncResult
		var err status.Error
		if ctx.Err() != nil {
			result = a.result(op, v1alpha1.ResultSkipped, ReasonCancelled)
		} else {
			result, err = a.sync(ctx, op, mode, stats)
		}
		if err != nil {
			errs = status.Append(errs, err)
		}
		stats.add(result, err != nil)
		metrics.RecordApplyOperation(ctx, a.opts.Application, string(op.Type), string(result.Status), declared.GVKOfRef(op.Ref))
		results = append(results, result)
	}

	if stats.empty() {
		klog.V(4).Infof("Applier made no changes for %s", a.opts.Application)
	} else {
		klog.Infof("Applier stats for %s: %s", a.opts.Application, stats.string())
	}
	return results, errs
}

// ordered returns ops with every Delete moved after every other operation.
func ordered(ops []diff.Operation) []diff.Operation {
	result := make([]diff.Operation, 0, len(ops))
	var deletes []diff.Operation
	for _, op := range ops {
		if op.Type == v1alpha1.OperationDelete {
			deletes = append(deletes, op)
		} else {
			result = append(result, op)
		}
	}
	return append(result, deletes...)
}

// sync performs one operation and waits for the resource to converge.
func (a *Applier) sync(ctx context.Context, op diff.Operation, mode Mode, stats *applyStats) (v1alpha1.SyncResult, status.Error) {
	if op.Type != v1alpha1.OperationNoOp && !mode.Apply {
		klog.V(2).Infof("Skipping %s of %s: %s", op.Type, op.ID, ReasonAutoSyncDisabled)
		return a.result(op, v1alpha1.ResultSkipped, ReasonAutoSyncDisabled), nil
	}

	switch op.Type {
	case v1alpha1.OperationCreate:
		if err := a.write(ctx, op, stats, a.create(op)); err != nil {
			return a.result(op, v1alpha1.ResultFailed, err.Error()), err
		}
		klog.V(2).Infof("Created %s", op.ID)
		return a.converge(ctx, op), nil

	case v1alpha1.OperationUpdate:
		if err := a.write(ctx, op, stats, a.update(op)); err != nil {
			return a.result(op, v1alpha1.ResultFailed, err.Error()), err
		}
		klog.V(2).Infof("Updated %s fields %s", op.ID, diff.FormatPaths(op.Fields))
		return a.converge(ctx, op), nil

	case v1alpha1.OperationDelete:
		if !mode.Prune {
			klog.V(2).Infof("Skipping delete of %s: %s", op.ID, ReasonPruneSuspended)
			return a.result(op, v1alpha1.ResultSkipped, ReasonPruneSuspended), nil
		}
		notOwned := false
		if err := a.write(ctx, op, stats, a.delete(op, &notOwned)); err != nil {
			return a.result(op, v1alpha1.ResultFailed, err.Error()), err
		}
		if notOwned {
			klog.Warningf("Not deleting %s: %s", op.ID, ReasonNoLongerOwned)
			return a.result(op, v1alpha1.ResultSkipped, ReasonNoLongerOwned), nil
		}
		klog.V(2).Infof("Deleted %s", op.ID)
		return a.awaitDeletion(ctx, op), nil

	case v1alpha1.OperationNoOp:
		return a.noOp(op), nil

	default:
		err := status.InternalErrorf("unknown operation type %q for %s", op.Type, op.ID)
		return a.result(op, v1alpha1.ResultFailed, err.Error()), err
	}
}

// noOp reports an unchanged resource by its current health.
func (a *Applier) noOp(op diff.Operation) v1alpha1.SyncResult {
	switch {
	case op.ConflictsWith != "":
		reason := fmt.Sprintf("managed by application %q", op.ConflictsWith)
		klog.Warningf("Not syncing %s: %s", op.ID, reason)
		return a.result(op, v1alpha1.ResultFailed, reason)
	case op.Declared == nil || op.Reason == diff.ReasonManagementDisabled:
		return a.result(op, v1alpha1.ResultSucceeded, op.Reason)
	case op.Actual == nil:
		return a.result(op, v1alpha1.ResultSucceeded, "")
	}
	res, err := kstatus.Compute(op.Actual)
	if err != nil {
		return a.result(op, v1alpha1.ResultProgressing, err.Error())
	}
	return a.result(op, resultStatus(res.Status), healthMessage(res))
}

// callFunc performs one attempt of a write.
type callFunc func(ctx context.Context) error

// write runs call until it succeeds, fails permanently or runs out of
// attempts. Every attempt gets its own CallTimeout, detached from the
// cancellation of ctx.
func (a *Applier) write(ctx context.Context, op diff.Operation, stats *applyStats, call callFunc) status.Error {
	detached := context.WithoutCancel(ctx)
	backoff := wait.Backoff{
		Steps:    a.opts.RetryLimit,
		Duration: a.opts.RetryBaseDelay,
		Factor:   2.0,
		Jitter:   0.1,
	}
	gvk := declared.GVKOfRef(op.Ref)

	attempts := 0
	err := retry.OnError(backoff, apierror.IsTransient, func() error {
		attempts++
		if attempts > 1 {
			klog.V(2).Infof("Retrying %s of %s (attempt %d of %d)", op.Type, op.ID, attempts, a.opts.RetryLimit)
		}
		callCtx, cancel := context.WithTimeout(detached, a.opts.CallTimeout)
		defer cancel()
		start := time.Now()
		err := call(callCtx)
		metrics.RecordAPICallDuration(ctx, a.opts.Application, string(op.Type), metrics.StatusTagKey(err), gvk, start)
		return err
	})
	stats.retries += uint64(attempts - 1)
	metrics.RecordApplyRetries(ctx, a.opts.Application, string(op.Type), attempts-1)

	if err == nil {
		return nil
	}
	klog.Errorf("Failed to %s %s after %d attempt(s): %v", op.Type, op.ID, attempts, err)
	if apierror.IsTransient(err) {
		return status.ApplyTransientError(op.ID, string(op.Type), attempts, err)
	}
	return status.ApplyRejected(op.ID, string(op.Type), err)
}

// create creates the declared object. A retry after the first attempt
// upserts, since the object may have been created by an attempt which timed
// out.
func (a *Applier) create(op diff.Operation) callFunc {
	first := true
	return func(ctx context.Context) error {
		if !first {
			return a.upsert(ctx, op.Declared)
		}
		first = false
		return a.client.Create(ctx, op.Declared.DeepCopy())
	}
}

func (a *Applier) update(op diff.Operation) callFunc {
	return func(ctx context.Context) error {
		return a.upsert(ctx, op.Declared)
	}
}

// upsert reads the latest version of obj and writes the fields which
// differ from it, guarded by the resourceVersion which was read. Creates the
// object if it does not exist.
func (a *Applier) upsert(ctx context.Context, obj *unstructured.Unstructured) error {
	latest := &unstructured.Unstructured{}
	latest.SetGroupVersionKind(obj.GroupVersionKind())
	err := a.client.Get(ctx, client.ObjectKeyFromObject(obj), latest)
	switch {
	case apierrors.IsNotFound(err):
		return a.client.Create(ctx, obj.DeepCopy())
	case err != nil:
		return err
	}

	patch, _ := diff.FieldPatch(obj.Object, latest.Object)
	if patch == nil {
		return nil
	}
	diff.MergePatch(latest.Object, patch)
	return a.client.Update(ctx, latest)
}

// delete re-reads the resource and deletes it, guarded by the UID and
// resourceVersion which were read, if this application still owns it.
// Otherwise sets notOwned and deletes nothing.
func (a *Applier) delete(op diff.Operation, notOwned *bool) callFunc {
	return func(ctx context.Context) error {
		latest := &unstructured.Unstructured{}
		latest.SetGroupVersionKind(op.Actual.GroupVersionKind())
		err := a.client.Get(ctx, op.ID.ObjectKey, latest)
		switch {
		case apierrors.IsNotFound(err):
			return nil
		case err != nil:
			return err
		}
		if !metadata.IsOwnedBy(latest, a.opts.Application) || metadata.ManagementDisabled(latest) {
			*notOwned = true
			return nil
		}

		uid, rv := latest.GetUID(), latest.GetResourceVersion()
		err = a.client.Delete(ctx, latest,
			client.Preconditions{UID: &uid, ResourceVersion: &rv},
			client.PropagationPolicy(metav1.DeletePropagationForeground))
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	}
}

// converge polls the written resource until kstatus reports it Current or
// Failed, or ConvergenceTimeout elapses.
func (a *Applier) converge(ctx context.Context, op diff.Operation) v1alpha1.SyncResult {
	var last *kstatus.Result
	a.poll(ctx, func(ctx context.Context) bool {
		u := &unstructured.Unstructured{}
		u.SetGroupVersionKind(op.Declared.GroupVersionKind())
		if err := a.client.Get(ctx, client.ObjectKeyFromObject(op.Declared), u); err != nil {
			klog.V(4).Infof("Failed to read %s while waiting for it to converge: %v", op.ID, err)
			return false
		}
		res, err := kstatus.Compute(u)
		if err != nil {
			klog.V(4).Infof("Failed to compute the status of %s: %v", op.ID, err)
			return false
		}
		last = res
		return res.Status == kstatus.CurrentStatus || res.Status == kstatus.FailedStatus
	})

	switch {
	case last == nil:
		return a.progressing(op, "Unknown")
	case last.Status == kstatus.CurrentStatus:
		return a.result(op, v1alpha1.ResultSucceeded, "")
	case last.Status == kstatus.FailedStatus:
		klog.Warningf("%s failed to become healthy: %s", op.ID, last.Message)
		return a.result(op, v1alpha1.ResultFailed, healthMessage(last))
	default:
		return a.progressing(op, string(last.Status))
	}
}

// awaitDeletion polls the deleted resource until it is gone, or
// ConvergenceTimeout elapses.
func (a *Applier) awaitDeletion(ctx context.Context, op diff.Operation) v1alpha1.SyncResult {
	gone := a.poll(ctx, func(ctx context.Context) bool {
		u := &unstructured.Unstructured{}
		u.SetGroupVersionKind(op.Actual.GroupVersionKind())
		err := a.client.Get(ctx, client.ObjectKey{Namespace: op.ID.Namespace, Name: op.ID.Name}, u)
		return apierrors.IsNotFound(err)
	})
	if gone {
		return a.result(op, v1alpha1.ResultSucceeded, "")
	}
	return a.progressing(op, string(kstatus.TerminatingStatus))
}

// poll calls done immediately, then every ConvergencePoll, until it returns
// true or ConvergenceTimeout elapses. Cancelling ctx stops polling but never
// interrupts a check. Returns the last value done returned.
func (a *Applier) poll(ctx context.Context, done func(ctx context.Context) bool) bool {
	pollCtx := ctx
	if a.opts.ConvergenceTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, a.opts.ConvergenceTimeout)
		defer cancel()
	}

	result := false
	detached := context.WithoutCancel(ctx)
	check := func() (bool, error) {
		callCtx, cancel := context.WithTimeout(detached, a.opts.CallTimeout)
		defer cancel()
		result = done(callCtx)
		// A zero timeout means a single check.
		return result || a.opts.ConvergenceTimeout <= 0, nil
	}
	// Stops with wait.ErrWaitTimeout when pollCtx is done, which the result
	// already reflects.
	_ = wait.PollImmediateUntil(a.opts.ConvergencePoll, check, pollCtx.Done())
	return result
}

func (a *Applier) progressing(op diff.Operation, lastStatus string) v1alpha1.SyncResult {
	err := status.ConvergenceTimeout(op.ID, a.opts.ConvergenceTimeout, lastStatus)
	klog.Infof("%s is still converging: %v", op.ID, err)
	return a.result(op, v1alpha1.ResultProgressing, err.Error())
}

func (a *Applier) result(op diff.Operation, rs v1alpha1.ResultStatus, reason string) v1alpha1.SyncResult {
	return v1alpha1.SyncResult{
		Resource:  op.Ref,
		Operation: op.Type,
		Status:    rs,
		Reason:    reason,
		Timestamp: metav1.NewTime(a.opts.Clock.Now()),
	}
}

func resultStatus(s kstatus.Status) v1alpha1.ResultStatus {
	switch s {
	case kstatus.CurrentStatus:
		return v1alpha1.ResultSucceeded
	case kstatus.FailedStatus:
		return v1alpha1.ResultFailed
	default:
		return v1alpha1.ResultProgressing
	}
}

func healthMessage(res *kstatus.Result) string {
	if res.Status == kstatus.CurrentStatus {
		return ""
	}
	if res.Message == "" {
		return string(res.Status)
	}
	return fmt.Sprintf("%s: %s", res.Status, res.Message)
}
