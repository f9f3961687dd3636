package apierror

import (
	"context"
	"net/url"
	"syscall"
	"testing"

	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var configMaps = schema.GroupResource{Resource: "configmaps"}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name            string
		err             error
		wantUnreachable bool
		wantTransient   bool
		wantRejected    bool
	}{
		{
			name: "nil",
		},
		{
			name:            "connection refused",
			err:             &url.Error{Op: "Get", URL: "https://10.0.0.1", Err: syscall.ECONNREFUSED},
			wantUnreachable: true,
			wantTransient:   true,
		},
		{
			name:            "deadline exceeded",
			err:             errors.Wrap(context.DeadlineExceeded, "getting ConfigMap"),
			wantUnreachable: true,
			wantTransient:   true,
		},
		{
			name: "canceled",
			err:  context.Canceled,
		},
		{
			name:          "conflict",
			err:           apierrors.NewConflict(configMaps, "cm", errors.New("modified")),
			wantTransient: true,
		},
		{
			name:          "server timeout",
			err:           apierrors.NewServerTimeout(configMaps, "get", 1),
			wantTransient: true,
		},
		{
			name:          "too many requests",
			err:           apierrors.NewTooManyRequests("slow down", 1),
			wantTransient: true,
		},
		{
			name:          "service unavailable",
			err:           apierrors.NewServiceUnavailable("down"),
			wantTransient: true,
		},
		{
			name:         "invalid",
			err:          apierrors.NewInvalid(schema.GroupKind{Kind: "ConfigMap"}, "cm", nil),
			wantRejected: true,
		},
		{
			name:         "forbidden",
			err:          apierrors.NewForbidden(configMaps, "cm", errors.New("rbac")),
			wantRejected: true,
		},
		{
			name:         "bad request",
			err:          apierrors.NewBadRequest("nope"),
			wantRejected: true,
		},
		{
			name: "not found",
			err:  apierrors.NewNotFound(configMaps, "cm"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUnreachable(tc.err); got != tc.wantUnreachable {
				t.Errorf("IsUnreachable() = %v, want %v", got, tc.wantUnreachable)
			}
			if got := IsTransient(tc.err); got != tc.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}
			if got := IsRejected(tc.err); got != tc.wantRejected {
				t.Errorf("IsRejected() = %v, want %v", got, tc.wantRejected)
			}
		})
	}
}
