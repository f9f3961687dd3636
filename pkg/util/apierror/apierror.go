// Package apierror classifies errors returned by the API server.
package apierror

import (
	"context"
	"net"
	"net/url"
	"syscall"

	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// IsUnreachable returns true if err means the API server could not be
// reached at all, as opposed to the API server answering with an error.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var apiStatus apierrors.APIStatus
	if errors.As(err, &apiStatus) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsTransient returns true if the operation which returned err may succeed
// when retried unchanged.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case apierrors.IsConflict(err),
		apierrors.IsTimeout(err),
		apierrors.IsServerTimeout(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsInternalError(err),
		apierrors.IsServiceUnavailable(err),
		apierrors.IsAlreadyExists(err),
		apierrors.IsUnexpectedServerError(err):
		return true
	default:
		return IsUnreachable(err)
	}
}

// IsRejected returns true if the API server refused the request in a way
// retrying cannot fix.
func IsRejected(err error) bool {
	return apierrors.IsInvalid(err) ||
		apierrors.IsBadRequest(err) ||
		apierrors.IsForbidden(err) ||
		apierrors.IsUnauthorized(err) ||
		apierrors.IsMethodNotSupported(err) ||
		apierrors.IsUnsupportedMediaType(err) ||
		apierrors.IsNotAcceptable(err) ||
		apierrors.IsRequestEntityTooLargeError(err)
}
