package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/diff"
	"kpt.dev/appsync/pkg/live"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/syncstatus"
)

// cycleResult is everything a cycle produced. It is only published by the
// caller of the cycle, so a cycle abandoned after its timeout changes
// nothing.
type cycleResult struct {
	revision  string
	desired   *declared.State
	ops       []diff.Operation
	results   []v1alpha1.SyncResult
	inventory []v1alpha1.ResourceRef
	errs      status.MultiError
	// aborted is true if the cycle failed as a whole and its results must not
	// replace those of the last completed cycle.
	aborted bool
}

// SyncOnce runs one sync cycle and publishes its outcome. Returns
// ErrSyncInProgress, without doing anything, if a cycle is already running.
//
// The cycle runs under CycleTimeout. If it takes longer, it is recorded as
// an Error and SyncOnce returns while the abandoned cycle winds down in the
// background.
func (r *Reconciler) SyncOnce(ctx context.Context, t Trigger) (*v1alpha1.CycleSummary, error) {
	if err := r.lifecycle.start(ctx); err != nil {
		return nil, err
	}

	start := r.opts.Clock.Now()
	summary := &v1alpha1.CycleSummary{
		ID:        uuid.NewString(),
		Trigger:   string(t),
		StartTime: metav1.NewTime(start),
	}
	klog.Infof("Application %s: starting %s sync cycle %s", r.opts.Application, t, summary.ID)

	cycleCtx, cancel := context.WithTimeout(ctx, r.opts.CycleTimeout)
	defer cancel()
	done := make(chan *cycleResult, 1)
	go func() {
		done <- r.cycle(cycleCtx, t)
	}()

	var res *cycleResult
	select {
	case res = <-done:
	case <-cycleCtx.Done():
		res = &cycleResult{aborted: true}
		if ctx.Err() != nil {
			res.errs = status.Append(nil, status.InternalWrap(ctx.Err()))
		} else {
			klog.Errorf("Application %s: sync cycle %s exceeded %v", r.opts.Application, summary.ID, r.opts.CycleTimeout)
			res.errs = status.Append(nil, status.CycleTimeout(r.opts.CycleTimeout))
		}
	}

	health := outcome(res)
	summary.Revision = res.revision
	summary.Health = health
	summary.EndTime = metav1.NewTime(r.opts.Clock.Now())
	summary.Operations = diff.Count(res.ops)
	summary.Results = countResults(res.results)
	summary.Errors = status.ToASE(res.errs)

	r.publish(res, summary)
	r.lifecycle.finish(ctx, health)

	metrics.RecordCycleDuration(ctx, r.opts.Application, string(t), string(health), start)
	metrics.RecordSyncErrors(ctx, r.opts.Application, res.errs)
	if !res.aborted {
		metrics.RecordLastSync(ctx, r.opts.Application, res.revision, string(health), summary.EndTime.Time)
	}
	if res.errs != nil {
		klog.Warningf("Application %s: sync cycle %s finished %s with errors: %s",
			r.opts.Application, summary.ID, health, status.FormatSingleLine(res.errs))
	} else {
		klog.Infof("Application %s: sync cycle %s finished %s at revision %s",
			r.opts.Application, summary.ID, health, res.revision)
	}

	r.persist(ctx, r.Status())
	return summary, nil
}

// cycle parses the source, reads the cluster, and applies the difference.
func (r *Reconciler) cycle(ctx context.Context, t Trigger) *cycleResult {
	res := &cycleResult{}
	st := r.Status()

	desired, errs := r.parser.Parse(ctx)
	res.errs = errs
	if desired == nil {
		res.aborted = true
		return res
	}
	res.revision = desired.Revision
	res.desired = desired
	metrics.RecordDeclaredResources(ctx, r.opts.Application, desired.Len())

	var inventory []v1alpha1.ResourceRef
	if st != nil {
		inventory = st.Inventory
	}
	actual, readErrs := r.reader.Read(ctx, declared.Union(desired, inventory))
	res.errs = status.Append(res.errs, readErrs)
	if actual == nil {
		res.aborted = true
		return res
	}

	res.ops = diff.Plan(r.opts.Application, desired, actual, true)
	mode := applier.Mode{
		Apply: r.opts.AutoSync || t == TriggerManual,
		// A manifest which failed to parse is missing from the desired state by
		// accident, so nothing is pruned until every manifest parses.
		Prune: !status.HasCode(errs, status.MalformedManifestErrorCode),
	}
	if !mode.Prune {
		klog.Warningf("Application %s: pruning suspended for this cycle since some manifests failed to parse", r.opts.Application)
	}
	results, applyErrs := r.applier.Apply(ctx, res.ops, mode)
	res.results = results
	res.errs = status.Append(res.errs, applyErrs)
	res.inventory = nextInventory(desired, actual, res.ops, results)
	return res
}

// publish records the outcome of a cycle in the store and in the
// bookkeeping carried to the next cycle.
func (r *Reconciler) publish(res *cycleResult, summary *v1alpha1.CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	health := summary.Health
	needsRetry := health == v1alpha1.HealthError || hasUnfinished(res.results) ||
		status.HasCode(res.errs, status.ResourceReadErrorCode)
	var nextRetry *metav1.Time
	if needsRetry {
		t := metav1.NewTime(r.opts.Clock.Now().Add(r.retry.next()))
		nextRetry = &t
	} else {
		r.retry.reset()
	}
	r.retryDue = needsRetry
	if !res.aborted {
		r.lastGood = res.desired
		r.lastRevision = res.revision
		r.reportedDrift = skippedChanges(res.ops, res.results)
	}

	r.opts.Store.Update(r.opts.Application, func(st *v1alpha1.ApplicationSyncStatus) {
		st.Health = health
		st.Errors = summary.Errors
		syncstatus.AppendHistory(st, *summary.DeepCopy(), r.opts.HistoryLimit)
		if health == v1alpha1.HealthHealthy {
			st.ConsecutiveFailures = 0
		} else {
			st.ConsecutiveFailures++
		}
		st.NextRetryTime = nextRetry
		if res.aborted {
			return
		}
		st.SourceRevision = res.revision
		st.SyncedRevision = res.revision
		st.LastSyncTime = summary.EndTime
		st.Results = res.results
		st.Inventory = res.inventory
	})
}

func (r *Reconciler) persist(ctx context.Context, st *v1alpha1.ApplicationSyncStatus) {
	if r.opts.Persister == nil {
		return
	}
	// The cycle is over, the status must be saved even while shutting down.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.persistTimeout())
	defer cancel()
	if err := r.opts.Persister.Save(saveCtx, r.opts.Namespace, st); err != nil {
		klog.Warningf("Application %s: unable to save status: %v", r.opts.Application, err)
	}
}

// checkDrift compares the cluster against the last synced desired state,
// and triggers a cycle if they differ.
func (r *Reconciler) checkDrift(ctx context.Context) {
	r.mu.Lock()
	desired := r.lastGood
	r.mu.Unlock()
	if desired == nil || r.lifecycle.syncing() {
		return
	}

	actual, errs := r.reader.Read(ctx, desired.Refs())
	if actual == nil {
		klog.V(2).Infof("Application %s: drift check failed: %v", r.opts.Application, errs)
		return
	}
	ops := diff.Plan(r.opts.Application, desired, actual, false)
	if diff.InSync(ops) {
		klog.V(4).Infof("Application %s: no drift detected", r.opts.Application)
		r.mu.Lock()
		r.reportedDrift = ""
		r.mu.Unlock()
		return
	}
	key := changeKey(ops)
	r.mu.Lock()
	reported := !r.opts.AutoSync && key == r.reportedDrift
	r.reportedDrift = key
	r.mu.Unlock()
	if reported {
		klog.V(4).Infof("Application %s: drift already reported, waiting for a manual sync", r.opts.Application)
		return
	}
	for _, op := range ops {
		if op.Type != v1alpha1.OperationNoOp {
			klog.Infof("Application %s: drift detected: %s needs %s %s",
				r.opts.Application, op.ID, op.Type, diff.FormatPaths(op.Fields))
		}
	}
	metrics.RecordDriftDetection(ctx, r.opts.Application)
	r.Trigger(TriggerDrift)
}

// outcome returns the health of the application after a cycle:
// Error if the cycle failed as a whole, Healthy if every operation
// Succeeded without errors, Degraded otherwise.
func outcome(res *cycleResult) v1alpha1.Health {
	if res.aborted {
		return v1alpha1.HealthError
	}
	if res.errs != nil {
		return v1alpha1.HealthDegraded
	}
	for _, result := range res.results {
		if result.Status != v1alpha1.ResultSucceeded {
			return v1alpha1.HealthDegraded
		}
	}
	return v1alpha1.HealthHealthy
}

// hasUnfinished returns true if some results are Failed or Progressing.
// Skipped operations wait for a new trigger.
func hasUnfinished(results []v1alpha1.SyncResult) bool {
	for _, result := range results {
		if result.Status == v1alpha1.ResultFailed || result.Status == v1alpha1.ResultProgressing {
			return true
		}
	}
	return false
}

// changeKey describes the Creates and Updates in ops, so two plans making
// the same changes have the same key.
func changeKey(ops []diff.Operation) string {
	var b strings.Builder
	for _, op := range ops {
		if op.Type != v1alpha1.OperationCreate && op.Type != v1alpha1.OperationUpdate {
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n", op.Type, op.ID, diff.FormatPaths(op.Fields))
	}
	return b.String()
}

// skippedChanges returns the changeKey of the operations which were only
// reported because auto-sync is off.
func skippedChanges(ops []diff.Operation, results []v1alpha1.SyncResult) string {
	skipped := make(map[v1alpha1.ResourceRef]bool)
	for _, result := range results {
		if result.Status == v1alpha1.ResultSkipped && result.Reason == applier.ReasonAutoSyncDisabled {
			skipped[result.Resource] = true
		}
	}
	var kept []diff.Operation
	for _, op := range ops {
		if skipped[op.Ref] {
			kept = append(kept, op)
		}
	}
	return changeKey(kept)
}

func countResults(results []v1alpha1.SyncResult) map[v1alpha1.ResultStatus]int {
	if len(results) == 0 {
		return nil
	}
	counts := make(map[v1alpha1.ResultStatus]int)
	for _, result := range results {
		counts[result.Status]++
	}
	return counts
}

// nextInventory returns the resources the next cycle must consider for
// pruning: every declared resource, and every undeclared resource this
// application created which is still in the cluster.
func nextInventory(desired *declared.State, actual *live.State, ops []diff.Operation, results []v1alpha1.SyncResult) []v1alpha1.ResourceRef {
	inventory := desired.Refs()

	deleted := make(map[v1alpha1.ResourceRef]bool)
	notOwned := make(map[v1alpha1.ResourceRef]bool)
	for _, op := range ops {
		if op.Type == v1alpha1.OperationNoOp && op.Reason == diff.ReasonNotOwned {
			notOwned[op.Ref] = true
		}
	}
	for _, result := range results {
		if result.Operation == v1alpha1.OperationDelete && result.Status == v1alpha1.ResultSucceeded {
			deleted[result.Resource] = true
		}
	}

	for _, id := range actual.IDs() {
		if desired.Has(id) {
			continue
		}
		entry, _ := actual.Get(id)
		if entry.Absent || notOwned[entry.Ref] || deleted[entry.Ref] {
			continue
		}
		inventory = append(inventory, entry.Ref)
	}
	return inventory
}

func (o *Options) persistTimeout() time.Duration {
	if o.CallTimeout > 0 {
		return 2 * o.CallTimeout
	}
	return 30 * time.Second
}
