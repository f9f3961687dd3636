package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	clocktesting "k8s.io/utils/clock/testing"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/diff"
	"kpt.dev/appsync/pkg/kinds"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/syncstatus"
	"kpt.dev/appsync/pkg/testing/fake"
)

const app = "web-dev"

func configMapYAML(name, color string) string {
	return `apiVersion: v1
kind: ConfigMap
metadata:
  name: ` + name + `
data:
  color: ` + color + `
`
}

const deploymentYAML = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: frontend
spec:
  replicas: 2
  template:
    spec:
      containers:
      - name: web
        image: web:1.0.0
`

// A ConfigMap without a name.
const malformedYAML = `apiVersion: v1
kind: ConfigMap
metadata:
  labels:
    color: blue
`

func cmID(name string) core.ID {
	return core.ID{
		GroupKind: kinds.ConfigMap().GroupKind(),
		ObjectKey: client.ObjectKey{Namespace: fake.DefaultNamespace, Name: name},
	}
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func removeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		t.Fatal(err)
	}
}

func testOptions(c *fake.Client, dir string) Options {
	return Options{
		Application:        app,
		Namespace:          fake.DefaultNamespace,
		SourceDir:          dir,
		AutoSync:           true,
		CycleTimeout:       10 * time.Second,
		CallTimeout:        time.Second,
		ConvergenceTimeout: time.Second,
		ConvergencePoll:    10 * time.Millisecond,
		RetryLimit:         2,
		Client:             c,
	}
}

func resultStatuses(st *v1alpha1.ApplicationSyncStatus) map[string]v1alpha1.ResultStatus {
	out := make(map[string]v1alpha1.ResultStatus)
	for _, r := range st.Results {
		out[string(r.Operation)+" "+r.Resource.Name] = r.Status
	}
	return out
}

// blockingApplier holds every Apply call until release is closed, ignoring
// cancellation.
type blockingApplier struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingApplier() *blockingApplier {
	return &blockingApplier{started: make(chan struct{}), release: make(chan struct{})}
}

func (a *blockingApplier) Apply(context.Context, []diff.Operation, applier.Mode) ([]v1alpha1.SyncResult, status.MultiError) {
	a.once.Do(func() { close(a.started) })
	<-a.release
	return nil, nil
}

func TestSyncOnceHealthy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "blue"))
	writeFile(t, dir, "frontend.yaml", deploymentYAML)
	c := fake.NewClient(t)
	r := New(testOptions(c, dir))

	summary, err := r.SyncOnce(context.Background(), TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthHealthy {
		t.Fatalf("got health %s with errors %v, want Healthy", summary.Health, summary.Errors)
	}
	if want := map[v1alpha1.OperationType]int{v1alpha1.OperationCreate: 2}; !cmp.Equal(want, summary.Operations) {
		t.Errorf("got operations %v, want %v", summary.Operations, want)
	}
	if c.Len() != 2 {
		t.Errorf("got %d objects in the cluster, want 2", c.Len())
	}

	st := r.Status()
	if !strings.HasPrefix(st.SyncedRevision, "xxh-") || st.SyncedRevision != st.SourceRevision {
		t.Errorf("got synced revision %q and source revision %q", st.SyncedRevision, st.SourceRevision)
	}
	want := map[string]v1alpha1.ResultStatus{
		"Create settings": v1alpha1.ResultSucceeded,
		"Create frontend": v1alpha1.ResultSucceeded,
	}
	if diff := cmp.Diff(want, resultStatuses(st)); diff != "" {
		t.Errorf("results diff (-want +got):\n%s", diff)
	}
	if st.Phase != v1alpha1.PhaseIdle || len(st.Inventory) != 2 || len(st.History) != 1 || st.NextRetryTime != nil {
		t.Errorf("got status %+v", st)
	}
}

func TestSyncOnceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "blue"))
	c := fake.NewClient(t)
	r := New(testOptions(c, dir))

	if _, err := r.SyncOnce(context.Background(), TriggerStartup); err != nil {
		t.Fatal(err)
	}
	c.ResetCalls()
	summary, err := r.SyncOnce(context.Background(), TriggerResync)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthHealthy {
		t.Errorf("got health %s, want Healthy", summary.Health)
	}
	if want := map[v1alpha1.OperationType]int{v1alpha1.OperationNoOp: 1}; !cmp.Equal(want, summary.Operations) {
		t.Errorf("got operations %v, want %v", summary.Operations, want)
	}
	if writes := c.Writes(); len(writes) != 0 {
		t.Errorf("got writes %v, want none", writes)
	}
	if got := len(r.Status().History); got != 2 {
		t.Errorf("got %d history entries, want 2", got)
	}
}

func TestSyncOnceAutoSyncDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "blue"))
	c := fake.NewClient(t)
	opts := testOptions(c, dir)
	opts.AutoSync = false
	r := New(opts)

	summary, err := r.SyncOnce(context.Background(), TriggerRevision)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthDegraded {
		t.Errorf("got health %s, want Degraded", summary.Health)
	}
	if c.Len() != 0 {
		t.Errorf("got %d objects, want none written", c.Len())
	}
	if got := resultStatuses(r.Status())["Create settings"]; got != v1alpha1.ResultSkipped {
		t.Errorf("got result %s, want Skipped", got)
	}

	summary, err = r.SyncOnce(context.Background(), TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthHealthy {
		t.Errorf("manual sync got health %s, want Healthy", summary.Health)
	}
	if _, found := c.Object(cmID("settings")); !found {
		t.Error("manual sync did not create the ConfigMap")
	}
}

func TestSyncOncePartialFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.yaml", configMapYAML("first", "blue"))
	writeFile(t, dir, "bad.yaml", configMapYAML("bad", "blue"))
	writeFile(t, dir, "last.yaml", configMapYAML("last", "blue"))
	c := fake.NewClient(t)
	c.Fail(fake.VerbCreate, cmID("bad"), apierrors.NewBadRequest("data.color: Invalid value"), -1)
	r := New(testOptions(c, dir))

	summary, err := r.SyncOnce(context.Background(), TriggerStartup)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthDegraded {
		t.Fatalf("got health %s, want Degraded", summary.Health)
	}
	want := map[v1alpha1.ResultStatus]int{v1alpha1.ResultSucceeded: 2, v1alpha1.ResultFailed: 1}
	if diff := cmp.Diff(want, summary.Results); diff != "" {
		t.Errorf("results diff (-want +got):\n%s", diff)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Code != status.ApplyRejectedErrorCode {
		t.Errorf("got errors %+v, want one ApplyRejected error", summary.Errors)
	}
	for _, name := range []string{"first", "last"} {
		if _, found := c.Object(cmID(name)); !found {
			t.Errorf("ConfigMap %s was not created", name)
		}
	}

	st := r.Status()
	if st.Phase != v1alpha1.PhaseIdle || st.NextRetryTime == nil || st.ConsecutiveFailures != 1 {
		t.Errorf("got status %+v, want Idle with a retry scheduled", st)
	}
	if st.SyncedRevision == "" {
		t.Error("partial failure must still record the synced revision")
	}
}

func TestSyncOncePrunes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.yaml", configMapYAML("first", "blue"))
	writeFile(t, dir, "second.yaml", configMapYAML("second", "red"))
	c := fake.NewClient(t, fake.ConfigMapObject(nil, core.Name("unmanaged")))
	r := New(testOptions(c, dir))

	if _, err := r.SyncOnce(context.Background(), TriggerStartup); err != nil {
		t.Fatal(err)
	}
	removeFile(t, dir, "second.yaml")
	summary, err := r.SyncOnce(context.Background(), TriggerRevision)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthHealthy {
		t.Fatalf("got health %s with errors %v, want Healthy", summary.Health, summary.Errors)
	}
	if _, found := c.Object(cmID("second")); found {
		t.Error("undeclared ConfigMap was not pruned")
	}
	if _, found := c.Object(cmID("unmanaged")); !found {
		t.Error("ConfigMap not created by the application was pruned")
	}
	if got := r.Status().Inventory; len(got) != 1 || got[0].Name != "first" {
		t.Errorf("got inventory %v, want only first", got)
	}
}

func TestSyncOnceMalformedManifestSuspendsPruning(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.yaml", configMapYAML("first", "blue"))
	writeFile(t, dir, "second.yaml", configMapYAML("second", "red"))
	c := fake.NewClient(t)
	r := New(testOptions(c, dir))

	if _, err := r.SyncOnce(context.Background(), TriggerStartup); err != nil {
		t.Fatal(err)
	}

	removeFile(t, dir, "second.yaml")
	writeFile(t, dir, "first.yaml", configMapYAML("first", "green"))
	writeFile(t, dir, "broken.yaml", malformedYAML)
	summary, err := r.SyncOnce(context.Background(), TriggerRevision)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthDegraded {
		t.Errorf("got health %s, want Degraded", summary.Health)
	}
	if !hasCode(summary, status.MalformedManifestErrorCode) {
		t.Errorf("got errors %v, want MalformedManifest", summary.Errors)
	}
	want := map[string]v1alpha1.ResultStatus{
		"Update first":  v1alpha1.ResultSucceeded,
		"Delete second": v1alpha1.ResultSkipped,
	}
	if diff := cmp.Diff(want, resultStatuses(r.Status())); diff != "" {
		t.Errorf("results diff (-want +got):\n%s", diff)
	}
	if _, found := c.Object(cmID("second")); !found {
		t.Error("ConfigMap was pruned while a manifest failed to parse")
	}

	removeFile(t, dir, "broken.yaml")
	summary, err = r.SyncOnce(context.Background(), TriggerRevision)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthHealthy {
		t.Errorf("got health %s with errors %v, want Healthy", summary.Health, summary.Errors)
	}
	if _, found := c.Object(cmID("second")); found {
		t.Error("ConfigMap was not pruned once every manifest parsed")
	}
}

func TestSyncOnceDuplicateResource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.yaml", configMapYAML("settings", "blue"))
	writeFile(t, dir, "second.yaml", configMapYAML("settings", "red"))
	c := fake.NewClient(t)
	r := New(testOptions(c, dir))

	summary, err := r.SyncOnce(context.Background(), TriggerStartup)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthError {
		t.Errorf("got health %s, want Error", summary.Health)
	}
	if !hasCode(summary, status.DuplicateResourceErrorCode) {
		t.Errorf("got errors %v, want DuplicateResource", summary.Errors)
	}
	if len(c.Calls()) != 0 {
		t.Errorf("got calls %v, want no requests", c.Calls())
	}
}

func TestSyncOnceClusterUnreachable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "blue"))
	c := fake.NewClient(t)
	clock := clocktesting.NewFakePassiveClock(time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC))
	opts := testOptions(c, dir)
	opts.Clock = clock
	r := New(opts)

	if _, err := r.SyncOnce(context.Background(), TriggerStartup); err != nil {
		t.Fatal(err)
	}
	synced := r.Status()

	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "red"))
	c.Fail(fake.VerbGet, core.ID{}, fake.Unreachable(), -1)
	summary, err := r.SyncOnce(context.Background(), TriggerRevision)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthError {
		t.Errorf("got health %s, want Error", summary.Health)
	}

	st := r.Status()
	if !hasCode(summary, status.ClusterUnreachableErrorCode) {
		t.Errorf("got errors %v, want ClusterUnreachable", st.Errors)
	}
	if st.SyncedRevision != synced.SyncedRevision {
		t.Errorf("got synced revision %q, want %q kept from the last completed cycle", st.SyncedRevision, synced.SyncedRevision)
	}
	if diff := cmp.Diff(synced.Results, st.Results); diff != "" {
		t.Errorf("results of the last completed cycle changed (-want +got):\n%s", diff)
	}
	if st.ConsecutiveFailures != 1 || st.NextRetryTime == nil || !st.NextRetryTime.After(clock.Now()) {
		t.Fatalf("got %d failures and next retry %v", st.ConsecutiveFailures, st.NextRetryTime)
	}

	if !r.suppressed(TriggerResync) || !r.suppressed(TriggerDrift) {
		t.Error("automatic triggers were not suppressed during the retry cooldown")
	}
	if r.suppressed(TriggerManual) || r.suppressed(TriggerRevision) {
		t.Error("manual and revision triggers must bypass the retry cooldown")
	}
	if r.retryReady() {
		t.Error("retry is ready before the cooldown ended")
	}
	clock.SetTime(clock.Now().Add(time.Hour))
	if !r.retryReady() {
		t.Error("retry is not ready after the cooldown ended")
	}
}

func TestSyncOnceInProgress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "blue"))
	r := New(testOptions(fake.NewClient(t), dir))
	blocking := newBlockingApplier()
	r.applier = blocking

	done := make(chan error, 1)
	go func() {
		_, err := r.SyncOnce(context.Background(), TriggerStartup)
		done <- err
	}()
	<-blocking.started

	if _, err := r.SyncOnce(context.Background(), TriggerManual); err != ErrSyncInProgress {
		t.Errorf("got error %v, want ErrSyncInProgress", err)
	}
	if phase := r.Status().Phase; phase != v1alpha1.PhaseSyncing {
		t.Errorf("got phase %s, want Syncing", phase)
	}

	close(blocking.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if phase := r.Status().Phase; phase != v1alpha1.PhaseIdle {
		t.Errorf("got phase %s, want Idle", phase)
	}
}

func TestSyncOnceCycleTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "blue"))
	opts := testOptions(fake.NewClient(t), dir)
	opts.CycleTimeout = 50 * time.Millisecond
	r := New(opts)
	blocking := newBlockingApplier()
	r.applier = blocking
	defer close(blocking.release)

	summary, err := r.SyncOnce(context.Background(), TriggerStartup)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Health != v1alpha1.HealthError {
		t.Errorf("got health %s, want Error", summary.Health)
	}
	if !hasCode(summary, status.CycleTimeoutErrorCode) {
		t.Errorf("got errors %v, want CycleTimeout", summary.Errors)
	}
	if phase := r.Status().Phase; phase != v1alpha1.PhaseIdle {
		t.Errorf("got phase %s, want Idle once the cycle is abandoned", phase)
	}
	if r.lifecycle.syncing() {
		t.Error("the cycle lock was not released")
	}
}

func TestTriggerCoalesces(t *testing.T) {
	r := New(testOptions(fake.NewClient(t), t.TempDir()))

	if !r.Trigger(TriggerResync) {
		t.Error("first trigger was merged, want it pending")
	}
	if r.Trigger(TriggerManual) {
		t.Error("second trigger was not merged")
	}
	if r.Trigger(TriggerDrift) {
		t.Error("third trigger was not merged")
	}
	got, ok := r.takePending()
	if !ok || got != TriggerManual {
		t.Errorf("got pending trigger %q, want manual", got)
	}
	if _, ok := r.takePending(); ok {
		t.Error("got a second pending trigger, want one")
	}
}

func TestCheckDrift(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.yaml", configMapYAML("settings", "blue"))
	c := fake.NewClient(t)
	r := New(testOptions(c, dir))

	r.checkDrift(context.Background())
	if _, ok := r.takePending(); ok {
		t.Fatal("drift detected before the first cycle")
	}
	if _, err := r.SyncOnce(context.Background(), TriggerStartup); err != nil {
		t.Fatal(err)
	}
	r.checkDrift(context.Background())
	if _, ok := r.takePending(); ok {
		t.Fatal("drift detected right after a cycle")
	}

	obj, _ := c.Object(cmID("settings"))
	obj.Object["data"] = map[string]interface{}{"color": "red"}
	c.Set(obj)
	r.checkDrift(context.Background())
	if got, ok := r.takePending(); !ok || got != TriggerDrift {
		t.Errorf("got pending trigger %q, want drift", got)
	}
}

func TestCheckDriftAutoSyncOff(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.yaml", configMapYAML("first", "blue"))
	writeFile(t, dir, "second.yaml", configMapYAML("second", "blue"))
	c := fake.NewClient(t)
	opts := testOptions(c, dir)
	opts.AutoSync = false
	r := New(opts)
	ctx := context.Background()

	// The changes the cycle reported are not drift.
	if _, err := r.SyncOnce(ctx, TriggerStartup); err != nil {
		t.Fatal(err)
	}
	r.checkDrift(ctx)
	if got, ok := r.takePending(); ok {
		t.Fatalf("got pending trigger %q after a reporting cycle, want none", got)
	}

	if _, err := r.SyncOnce(ctx, TriggerManual); err != nil {
		t.Fatal(err)
	}
	recolor := func(name string) {
		obj, _ := c.Object(cmID(name))
		obj.Object["data"] = map[string]interface{}{"color": "red"}
		c.Set(obj)
	}

	recolor("first")
	r.checkDrift(ctx)
	if got, ok := r.takePending(); !ok || got != TriggerDrift {
		t.Fatalf("got pending trigger %q, want drift", got)
	}
	if _, err := r.SyncOnce(ctx, TriggerDrift); err != nil {
		t.Fatal(err)
	}
	failures := r.Status().ConsecutiveFailures

	for i := 0; i < 3; i++ {
		r.checkDrift(ctx)
		if got, ok := r.takePending(); ok {
			t.Fatalf("check %d: got pending trigger %q for drift already reported", i, got)
		}
	}
	if got := r.Status().ConsecutiveFailures; got != failures {
		t.Errorf("got %d consecutive failures, want %d", got, failures)
	}

	recolor("second")
	r.checkDrift(ctx)
	if got, ok := r.takePending(); !ok || got != TriggerDrift {
		t.Errorf("got pending trigger %q for new drift, want drift", got)
	}
}

func TestRestorePrunesAfterRestart(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.yaml", configMapYAML("first", "blue"))
	writeFile(t, dir, "second.yaml", configMapYAML("second", "red"))
	c := fake.NewClient(t)
	opts := testOptions(c, dir)
	opts.Persister = &syncstatus.ConfigMapPersister{Client: c}

	if _, err := New(opts).SyncOnce(context.Background(), TriggerStartup); err != nil {
		t.Fatal(err)
	}
	saved, err := opts.Persister.Load(context.Background(), app, fake.DefaultNamespace)
	if err != nil || saved == nil || saved.Phase != v1alpha1.PhaseIdle {
		t.Fatalf("got saved status %+v with error %v, want phase Idle", saved, err)
	}

	// A new process with an empty store.
	opts.Store = nil
	r := New(opts)
	r.restore(context.Background())
	st := r.Status()
	if st == nil || len(st.Inventory) != 2 || st.Health != v1alpha1.HealthHealthy {
		t.Fatalf("got restored status %+v", st)
	}

	removeFile(t, dir, "second.yaml")
	if _, err := r.SyncOnce(context.Background(), TriggerRevision); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Object(cmID("second")); found {
		t.Error("ConfigMap synced before the restart was not pruned")
	}
}

func TestRunSyncsNewRevisions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.yaml", configMapYAML("first", "blue"))
	c := fake.NewClient(t)
	opts := testOptions(c, dir)
	opts.PollInterval = 20 * time.Millisecond
	r := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Error(err)
		}
	}()

	created := func(name string) wait.ConditionFunc {
		return func() (bool, error) {
			_, found := c.Object(cmID(name))
			st := r.Status()
			return found && st.Phase == v1alpha1.PhaseIdle && st.Health == v1alpha1.HealthHealthy, nil
		}
	}
	if err := wait.PollImmediate(10*time.Millisecond, 5*time.Second, created("first")); err != nil {
		t.Fatalf("startup cycle did not sync: %v", err)
	}
	first := r.Status().SyncedRevision

	writeFile(t, dir, "second.yaml", configMapYAML("second", "red"))
	if err := wait.PollImmediate(10*time.Millisecond, 5*time.Second, created("second")); err != nil {
		t.Fatalf("new revision was not synced: %v", err)
	}
	if err := wait.PollImmediate(10*time.Millisecond, 5*time.Second, func() (bool, error) {
		return r.Status().SyncedRevision != first, nil
	}); err != nil {
		t.Errorf("synced revision stayed at %q", first)
	}
}

func hasCode(summary *v1alpha1.CycleSummary, code string) bool {
	for _, e := range summary.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}
