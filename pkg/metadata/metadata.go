package metadata

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/core"
)

// SetOwnership writes the ownership marker for the application onto obj.
func SetOwnership(obj client.Object, application string) {
	core.SetLabel(obj, ApplicationLabel, application)
	core.SetLabel(obj, ManagedByKey, ManagedByValue)
	core.SetAnnotation(obj, ResourceManagementKey, ResourceManagementEnabled)
}

// WithOwnership returns a copy of obj carrying the ownership marker for the
// application.
func WithOwnership(obj *unstructured.Unstructured, application string) *unstructured.Unstructured {
	u := obj.DeepCopy()
	SetOwnership(u, application)
	return u
}

// IsOwnedBy returns true if obj carries the ownership marker written when the
// application created it.
func IsOwnedBy(obj client.Object, application string) bool {
	return core.GetLabel(obj, ApplicationLabel) == application &&
		core.GetAnnotation(obj, ResourceManagementKey) == ResourceManagementEnabled
}

// OwningApplication returns the application named in the ownership label, if
// any.
func OwningApplication(obj client.Object) string {
	return core.GetLabel(obj, ApplicationLabel)
}

// ManagementDisabled returns true if the declared object opts out of
// management.
func ManagementDisabled(obj client.Object) bool {
	return core.GetAnnotation(obj, ResourceManagementKey) == ResourceManagementDisabled
}
