package declared

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
)

// Resource is one resource declared in the manifest source.
type Resource struct {
	// ID identifies the resource in the cluster.
	ID core.ID
	// Object is the normalized declaration.
	Object *unstructured.Unstructured
	// Path is the slash path of the file declaring the resource, relative to
	// the application's source path.
	Path string
}

// GroupVersionKind returns the GVK the resource is declared with.
func (r *Resource) GroupVersionKind() schema.GroupVersionKind {
	return r.Object.GroupVersionKind()
}

// Ref returns the ResourceRef of the declared resource.
func (r *Resource) Ref() v1alpha1.ResourceRef {
	ref := RefOf(r.Object)
	ref.SourcePath = r.Path
	return ref
}

// RefOf returns the ResourceRef of obj.
func RefOf(obj client.Object) v1alpha1.ResourceRef {
	gvk := obj.GetObjectKind().GroupVersionKind()
	return v1alpha1.ResourceRef{
		Group:     gvk.Group,
		Version:   gvk.Version,
		Kind:      gvk.Kind,
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
	}
}

// IDOfRef returns the ID of the resource ref points to.
func IDOfRef(ref v1alpha1.ResourceRef) core.ID {
	return core.ID{
		GroupKind: schema.GroupKind{Group: ref.Group, Kind: ref.Kind},
		ObjectKey: client.ObjectKey{Namespace: ref.Namespace, Name: ref.Name},
	}
}

// GVKOfRef returns the GroupVersionKind of the resource ref points to.
func GVKOfRef(ref v1alpha1.ResourceRef) schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: ref.Group, Version: ref.Version, Kind: ref.Kind}
}

// RefOfID returns a ResourceRef for id at the passed version.
func RefOfID(id core.ID, version string) v1alpha1.ResourceRef {
	return v1alpha1.ResourceRef{
		Group:     id.Group,
		Version:   version,
		Kind:      id.Kind,
		Namespace: id.Namespace,
		Name:      id.Name,
	}
}
