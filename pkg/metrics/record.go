package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"kpt.dev/appsync/pkg/status"
)

// RecordCycleDuration produces a measurement for the CycleDuration view.
func RecordCycleDuration(ctx context.Context, app, trigger, health string, startTime time.Time) {
	tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app), tag.Upsert(KeyTrigger, trigger), tag.Upsert(KeyHealth, health))
	measurement := CycleDuration.M(time.Since(startTime).Seconds())
	stats.Record(tagCtx, measurement)
}

// RecordAPICallDuration produces a measurement for the APICallDuration view.
func RecordAPICallDuration(ctx context.Context, app, operation, status string, gvk schema.GroupVersionKind, startTime time.Time) {
	tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app), tag.Upsert(KeyOperation, operation), tag.Upsert(KeyType, gvk.Kind), tag.Upsert(KeyStatus, status))
	measurement := APICallDuration.M(time.Since(startTime).Seconds())
	stats.Record(tagCtx, measurement)
}

// RecordApplyOperation produces a measurement for the ApplyOperations view.
func RecordApplyOperation(ctx context.Context, app, operation, status string, gvk schema.GroupVersionKind) {
	tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app), tag.Upsert(KeyOperation, operation), tag.Upsert(KeyType, gvk.Kind), tag.Upsert(KeyStatus, status))
	measurement := ApplyOperations.M(1)
	stats.Record(tagCtx, measurement)
}

// RecordApplyRetries produces a measurement for the ApplyRetries view.
func RecordApplyRetries(ctx context.Context, app, operation string, retries int) {
	if retries <= 0 {
		return
	}
	tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app), tag.Upsert(KeyOperation, operation))
	measurement := ApplyRetries.M(int64(retries))
	stats.Record(tagCtx, measurement)
}

// RecordDeclaredResources produces a measurement for the DeclaredResources view.
func RecordDeclaredResources(ctx context.Context, app string, numResources int) {
	tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app))
	measurement := DeclaredResources.M(int64(numResources))
	stats.Record(tagCtx, measurement)
}

// RecordDriftDetection produces a measurement for the DriftDetections view.
func RecordDriftDetection(ctx context.Context, app string) {
	tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app))
	measurement := DriftDetections.M(1)
	stats.Record(tagCtx, measurement)
}

// RecordSyncErrors produces measurements for the SyncErrors view, one per
// error code present in errs.
func RecordSyncErrors(ctx context.Context, app string, errs status.MultiError) {
	counts := make(map[string]int64)
	if errs != nil {
		for _, err := range errs.Errors() {
			counts[err.Code()]++
		}
	}
	for code, n := range counts {
		tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app), tag.Upsert(KeyErrorCode, code))
		stats.Record(tagCtx, SyncErrors.M(n))
	}
}

// RecordLastSync produces a measurement for the LastSync view.
func RecordLastSync(ctx context.Context, app, commit, health string, timestamp time.Time) {
	tagCtx, _ := tag.New(ctx, tag.Upsert(KeyApplication, app), tag.Upsert(KeyCommit, commit), tag.Upsert(KeyHealth, health))
	measurement := LastSync.M(timestamp.Unix())
	stats.Record(tagCtx, measurement)
}
