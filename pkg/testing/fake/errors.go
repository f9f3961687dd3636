package fake

import (
	"net"
	"net/url"
	"syscall"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"kpt.dev/appsync/pkg/core"
)

// Unreachable returns the error a client returns when the API server refuses
// connections.
func Unreachable() error {
	return &url.Error{
		Op:  "Get",
		URL: "https://10.0.0.1:443/api",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
	}
}

func toGR(gk schema.GroupKind) schema.GroupResource {
	return schema.GroupResource{
		Group:    gk.Group,
		Resource: gk.Kind,
	}
}

func newNotFound(id core.ID) error {
	return apierrors.NewNotFound(toGR(id.GroupKind), id.ObjectKey.String())
}

func newAlreadyExists(id core.ID) error {
	return apierrors.NewAlreadyExists(toGR(id.GroupKind), id.ObjectKey.String())
}

func newConflict(id core.ID, msg string) error {
	return apierrors.NewConflict(toGR(id.GroupKind), id.ObjectKey.String(), errString(msg))
}

type errString string

func (e errString) Error() string {
	return string(e)
}
