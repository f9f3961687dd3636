package status

import (
	"time"

	"kpt.dev/appsync/pkg/core"
)

const (
	// ClusterUnreachableErrorCode is the error code for failures to reach the
	// API server at all.
	ClusterUnreachableErrorCode = "2001"
	// ResourceReadErrorCode is the error code for a resource which could not be
	// read from the cluster.
	ResourceReadErrorCode = "2002"
	// ApplyRejectedErrorCode is the error code for changes the API server
	// refused permanently.
	ApplyRejectedErrorCode = "2003"
	// ApplyTransientErrorCode is the error code for changes which kept failing
	// with transient errors until retries were exhausted.
	ApplyTransientErrorCode = "2004"
	// ConvergenceTimeoutErrorCode is the error code for resources which did not
	// become healthy in time.
	ConvergenceTimeoutErrorCode = "2005"
	// CycleTimeoutErrorCode is the error code for sync cycles which did not
	// finish in time.
	CycleTimeoutErrorCode = "2006"
)

var (
	clusterUnreachableError = NewErrorBuilder(ClusterUnreachableErrorCode).Sprint("unable to reach the cluster")
	resourceReadError       = NewErrorBuilder(ResourceReadErrorCode)
	applyRejectedError      = NewErrorBuilder(ApplyRejectedErrorCode)
	applyTransientError     = NewErrorBuilder(ApplyTransientErrorCode)
	convergenceTimeoutError = NewErrorBuilder(ConvergenceTimeoutErrorCode)
	cycleTimeoutError       = NewErrorBuilder(CycleTimeoutErrorCode)
)

// ClusterUnreachable wraps a connection failure.
func ClusterUnreachable(err error) Error {
	return clusterUnreachableError.Wrap(err).Build()
}

// ResourceReadError reports a failure reading one resource.
func ResourceReadError(id core.ID, err error) Error {
	return resourceReadError.Sprint("failed to read resource").Wrap(err).BuildWithResources(id)
}

// ApplyRejected reports an operation the API server refused.
func ApplyRejected(id core.ID, op string, err error) Error {
	return applyRejectedError.Sprintf("%s rejected", op).Wrap(err).BuildWithResources(id)
}

// ApplyTransientError reports an operation which failed on every attempt.
func ApplyTransientError(id core.ID, op string, attempts int, err error) Error {
	return applyTransientError.Sprintf("%s failed after %d attempt(s)", op, attempts).Wrap(err).BuildWithResources(id)
}

// ConvergenceTimeout reports a resource which did not become healthy within
// the wait.
func ConvergenceTimeout(id core.ID, wait time.Duration, lastStatus string) Error {
	return convergenceTimeoutError.Sprintf("not converged after %v, last status %q", wait, lastStatus).
		BuildWithResources(id)
}

// CycleTimeout reports a sync cycle which exceeded its deadline.
func CycleTimeout(timeout time.Duration) Error {
	return cycleTimeoutError.Sprintf("sync cycle did not finish within %v", timeout).Build()
}
