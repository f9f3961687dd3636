package core

import (
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// MetaMutator is a Mutator that modifies the metadata of an Object.
type MetaMutator func(o client.Object)

// Namespace replaces the metadata.namespace of the Object under test.
func Namespace(namespace string) MetaMutator {
	return func(o client.Object) {
		o.SetNamespace(namespace)
	}
}

// Name replaces the metadata.name of the Object under test.
func Name(name string) MetaMutator {
	return func(o client.Object) {
		o.SetName(name)
	}
}

// Label adds label=value to the metadata.labels of the Object under test.
func Label(label, value string) MetaMutator {
	return func(o client.Object) {
		SetLabel(o, label, value)
	}
}

// Annotation adds annotation=value to the metadata.annotations of the Object under test.
func Annotation(annotation, value string) MetaMutator {
	return func(o client.Object) {
		SetAnnotation(o, annotation, value)
	}
}

// Generation replaces the metadata.generation of the Object under test.
func Generation(gen int64) MetaMutator {
	return func(o client.Object) {
		o.SetGeneration(gen)
	}
}

// SetLabel sets label=value on the object, creating the map if necessary.
func SetLabel(o client.Object, label, value string) {
	labels := o.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[label] = value
	o.SetLabels(labels)
}

// SetAnnotation sets annotation=value on the object, creating the map if
// necessary.
func SetAnnotation(o client.Object, annotation, value string) {
	annotations := o.GetAnnotations()
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[annotation] = value
	o.SetAnnotations(annotations)
}

// GetLabel returns the value of the label, or the empty string.
func GetLabel(o client.Object, label string) string {
	return o.GetLabels()[label]
}

// GetAnnotation returns the value of the annotation, or the empty string.
func GetAnnotation(o client.Object, annotation string) string {
	return o.GetAnnotations()[annotation]
}
