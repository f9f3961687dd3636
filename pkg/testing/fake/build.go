// Package fake provides objects and a Kubernetes client for tests.
package fake

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/kinds"
)

// DefaultNamespace is the namespace fake objects are created in unless a
// mutator sets another.
const DefaultNamespace = "web"

// defaultMutations are the standard Meta set on all fake objects. All can be
// overwritten with mutators.
var defaultMutations = []core.MetaMutator{
	core.Name("default-name"),
	core.Namespace(DefaultNamespace),
}

// UnstructuredObject initializes an unstructured.Unstructured.
func UnstructuredObject(gvk schema.GroupVersionKind, opts ...core.MetaMutator) *unstructured.Unstructured {
	o := &unstructured.Unstructured{}
	o.GetObjectKind().SetGroupVersionKind(gvk)

	for _, m := range defaultMutations {
		m(o)
	}
	for _, m := range opts {
		m(o)
	}
	return o
}

// ConfigMapObject initializes a ConfigMap with the passed data.
func ConfigMapObject(data map[string]string, opts ...core.MetaMutator) *unstructured.Unstructured {
	u := UnstructuredObject(kinds.ConfigMap(), opts...)
	if data != nil {
		d := make(map[string]interface{}, len(data))
		for k, v := range data {
			d[k] = v
		}
		u.Object["data"] = d
	}
	return u
}

// DeploymentObject initializes a Deployment with the passed replicas and a
// single container running image.
func DeploymentObject(replicas int64, image string, opts ...core.MetaMutator) *unstructured.Unstructured {
	u := UnstructuredObject(kinds.Deployment(), opts...)
	u.Object["spec"] = map[string]interface{}{
		"replicas": replicas,
		"selector": map[string]interface{}{
			"matchLabels": map[string]interface{}{"app": u.GetName()},
		},
		"template": map[string]interface{}{
			"metadata": map[string]interface{}{
				"labels": map[string]interface{}{"app": u.GetName()},
			},
			"spec": map[string]interface{}{
				"containers": []interface{}{
					map[string]interface{}{"name": "main", "image": image},
				},
			},
		},
	}
	return u
}

// ServiceObject initializes a Service exposing port.
func ServiceObject(port int64, opts ...core.MetaMutator) *unstructured.Unstructured {
	u := UnstructuredObject(kinds.Service(), opts...)
	u.Object["spec"] = map[string]interface{}{
		"selector": map[string]interface{}{"app": u.GetName()},
		"ports": []interface{}{
			map[string]interface{}{"port": port},
		},
	}
	return u
}
