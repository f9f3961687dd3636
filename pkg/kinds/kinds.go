// Package kinds holds the GroupVersionKinds the controller and its tests
// refer to by name.
package kinds

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Anvil returns the GroupVersionKind for Anvil Custom Resource used in tests.
func Anvil() schema.GroupVersionKind {
	return schema.GroupVersionKind{
		Group:   "acme.com",
		Version: "v1",
		Kind:    "Anvil",
	}
}

// ConfigMap returns the canonical ConfigMap GroupVersionKind
func ConfigMap() schema.GroupVersionKind {
	return corev1.SchemeGroupVersion.WithKind("ConfigMap")
}

// Service returns the canonical Service GroupVersionKind
func Service() schema.GroupVersionKind {
	return corev1.SchemeGroupVersion.WithKind("Service")
}

// Secret returns the canonical Secret GroupVersionKind
func Secret() schema.GroupVersionKind {
	return corev1.SchemeGroupVersion.WithKind("Secret")
}

// Deployment returns the canonical Deployment GroupVersionKind
func Deployment() schema.GroupVersionKind {
	return appsv1.SchemeGroupVersion.WithKind("Deployment")
}

// Role returns the canonical Role GroupVersionKind
func Role() schema.GroupVersionKind {
	return rbacv1.SchemeGroupVersion.WithKind("Role")
}

// ClusterRole returns the canonical ClusterRole GroupVersionKind
func ClusterRole() schema.GroupVersionKind {
	return rbacv1.SchemeGroupVersion.WithKind("ClusterRole")
}
