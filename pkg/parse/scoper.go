package parse

import (
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Scoper reports whether a kind is namespace-scoped.
type Scoper interface {
	// IsNamespaced returns whether objects of kind gvk live in a namespace.
	// Returns an error if the kind is not known.
	IsNamespaced(gvk schema.GroupVersionKind) (bool, error)
}

// RESTMapperScoper is a Scoper backed by the API server's discovery
// information.
type RESTMapperScoper struct {
	Mapper meta.RESTMapper
}

var _ Scoper = RESTMapperScoper{}

// IsNamespaced implements Scoper.
func (s RESTMapperScoper) IsNamespaced(gvk schema.GroupVersionKind) (bool, error) {
	mapping, err := s.Mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return false, err
	}
	return mapping.Scope.Name() == meta.RESTScopeNameNamespace, nil
}
