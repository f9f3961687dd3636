package live

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/util/apierror"
)

// DefaultConcurrency is the default number of parallel reads.
const DefaultConcurrency = 8

// Reader reads resources from the cluster. It never caches: every Read
// issues fresh requests.
type Reader struct {
	// Application names the application metrics are recorded for.
	Application string
	// Client reads from the API server.
	Client client.Reader
	// CallTimeout bounds each request. Zero means no bound beyond ctx.
	CallTimeout time.Duration
	// Concurrency bounds the number of parallel requests.
	Concurrency int
}

type readResult struct {
	obj    *unstructured.Unstructured
	absent bool
	err    error
}

// Read fetches every resource in refs, in parallel, and waits for all of
// them.
//
// Resources which do not exist are recorded as Absent. Resources which fail
// to be read for any other reason are recorded as Unknown, with a
// ResourceReadError. If the cluster cannot be reached at all, Read returns a
// nil State and a ClusterUnreachable error.
func (r *Reader) Read(ctx context.Context, refs []v1alpha1.ResourceRef) (*State, status.MultiError) {
	results := make([]readResult, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	for i := range refs {
		i := i
		g.Go(func() error {
			obj, err := r.get(gctx, refs[i])
			switch {
			case err == nil:
				results[i] = readResult{obj: obj}
			case apierrors.IsNotFound(err):
				results[i] = readResult{absent: true}
			case apierror.IsUnreachable(err):
				// Stop the remaining reads, the cycle cannot continue.
				return status.ClusterUnreachable(err)
			default:
				results[i] = readResult{err: err}
			}
			return nil
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		// The caller gave up; whatever failed, failed because of that.
		return nil, status.Append(nil, ctx.Err())
	}
	if err != nil {
		return nil, status.Append(nil, err)
	}

	state := NewState()
	var errs status.MultiError
	for i, ref := range refs {
		id := declared.IDOfRef(ref)
		res := results[i]
		switch {
		case res.err != nil:
			klog.Warningf("Failed to read %s: %v", id, res.err)
			errs = status.Append(errs, status.ResourceReadError(id, res.err))
			state.SetUnknown(id, ref)
		case res.absent:
			state.SetAbsent(id, ref)
		default:
			state.SetObject(id, ref, res.obj)
		}
	}
	return state, errs
}

func (r *Reader) get(ctx context.Context, ref v1alpha1.ResourceRef) (*unstructured.Unstructured, error) {
	if r.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.CallTimeout)
		defer cancel()
	}

	gvk := declared.GVKOfRef(ref)
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(gvk)

	start := time.Now()
	err := r.Client.Get(ctx, client.ObjectKey{Namespace: ref.Namespace, Name: ref.Name}, u)
	metrics.RecordAPICallDuration(ctx, r.Application, "get", metrics.StatusTagKey(ignoreNotFound(err)), gvk, start)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func ignoreNotFound(err error) error {
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}
