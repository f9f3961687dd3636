// Package diff computes the operations which bring the cluster to the
// desired state of an application.
package diff

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/live"
	"kpt.dev/appsync/pkg/metadata"
)

// Operation is the change computed for one resource.
type Operation struct {
	// ID identifies the resource.
	ID core.ID
	// Ref identifies the resource, with the version to use for API calls.
	Ref v1alpha1.ResourceRef
	// Type is what to do with the resource.
	Type v1alpha1.OperationType

	// Declared is the desired object, including the ownership marker. Nil for
	// resources which are not declared.
	Declared *unstructured.Unstructured
	// Actual is the object in the cluster. Nil if it does not exist.
	Actual *unstructured.Unstructured

	// Patch holds the fields of Declared which differ from Actual. Only set for
	// Updates.
	Patch map[string]interface{}
	// Fields are the dotted paths of the fields in Patch.
	Fields []string

	// Reason explains a NoOp which may be surprising, e.g. a resource which is
	// declared but has management disabled.
	Reason string
	// ConflictsWith names another application which owns the resource. A
	// resource in conflict is never modified.
	ConflictsWith string
}

// Reasons for NoOps.
const (
	ReasonManagementDisabled = "management disabled"
	ReasonNotOwned           = "not created by this application"
	ReasonPruneDisabled      = "pruning disabled"
)

// Plan computes the operations for the application named app.
//
// Every declared resource gets one operation, in declaration order: Create
// if it is absent, Update if it drifted, NoOp otherwise. Every remaining
// resource read from the cluster follows, in reverse order: Delete if app
// created it and prune is true, NoOp otherwise. Resources whose live state is
// unknown, and undeclared resources which are absent, get no operation.
func Plan(app string, desired *declared.State, actual *live.State, prune bool) []Operation {
	var result []Operation
	for _, r := range desired.Resources() {
		entry, found := actual.Get(r.ID)
		if !found || entry.Unknown {
			continue
		}
		result = append(result, planDeclared(app, r, entry))
	}

	var deletes []Operation
	for _, id := range actual.IDs() {
		if desired.Has(id) {
			continue
		}
		entry, _ := actual.Get(id)
		if entry.Unknown || entry.Absent {
			continue
		}
		deletes = append(deletes, planUndeclared(app, id, entry, prune))
	}
	for i := len(deletes) - 1; i >= 0; i-- {
		result = append(result, deletes[i])
	}
	return result
}

func planDeclared(app string, r *declared.Resource, entry *live.Entry) Operation {
	op := Operation{
		ID:       r.ID,
		Ref:      r.Ref(),
		Declared: r.Object,
		Actual:   entry.Object,
	}

	if metadata.ManagementDisabled(r.Object) {
		op.Type = v1alpha1.OperationNoOp
		op.Reason = ReasonManagementDisabled
		return op
	}
	op.Declared = metadata.WithOwnership(r.Object, app)

	if entry.Absent {
		op.Type = v1alpha1.OperationCreate
		return op
	}

	if owner := metadata.OwningApplication(entry.Object); owner != "" && owner != app &&
		core.GetAnnotation(entry.Object, metadata.ResourceManagementKey) == metadata.ResourceManagementEnabled {
		op.Type = v1alpha1.OperationNoOp
		op.ConflictsWith = owner
		return op
	}

	op.Patch, op.Fields = FieldPatch(op.Declared.Object, entry.Object.Object)
	if op.Patch == nil {
		op.Type = v1alpha1.OperationNoOp
	} else {
		op.Type = v1alpha1.OperationUpdate
	}
	return op
}

func planUndeclared(app string, id core.ID, entry *live.Entry, prune bool) Operation {
	op := Operation{
		ID:     id,
		Ref:    entry.Ref,
		Actual: entry.Object,
		Type:   v1alpha1.OperationNoOp,
	}
	switch {
	case !metadata.IsOwnedBy(entry.Object, app):
		op.Reason = ReasonNotOwned
	case !prune:
		op.Reason = ReasonPruneDisabled
	default:
		op.Type = v1alpha1.OperationDelete
	}
	return op
}

// Count returns the number of operations of each type.
func Count(ops []Operation) map[v1alpha1.OperationType]int {
	result := make(map[v1alpha1.OperationType]int)
	for _, op := range ops {
		result[op.Type]++
	}
	return result
}

// InSync returns true if ops contains only NoOps.
func InSync(ops []Operation) bool {
	for _, op := range ops {
		if op.Type != v1alpha1.OperationNoOp {
			return false
		}
	}
	return true
}
