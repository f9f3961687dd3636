// Package live reads the current state of an application's resources from
// the cluster.
package live

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
)

// Entry is what a cycle knows about one resource in the cluster.
type Entry struct {
	// Ref is the resource that was read.
	Ref v1alpha1.ResourceRef
	// Object is the resource as returned by the API server. Nil if the
	// resource is Absent or Unknown.
	Object *unstructured.Unstructured
	// Absent is true if the API server reported the resource does not exist.
	Absent bool
	// Unknown is true if the resource could not be read.
	Unknown bool
}

// State is the live state of a set of resources, read in one cycle.
type State struct {
	order   []core.ID
	entries map[core.ID]*Entry
}

// NewState returns an empty State.
func NewState() *State {
	return &State{entries: make(map[core.ID]*Entry)}
}

func (s *State) add(id core.ID, e *Entry) {
	if _, found := s.entries[id]; !found {
		s.order = append(s.order, id)
	}
	s.entries[id] = e
}

// SetObject records obj as the live state of id.
func (s *State) SetObject(id core.ID, ref v1alpha1.ResourceRef, obj *unstructured.Unstructured) {
	s.add(id, &Entry{Ref: ref, Object: obj})
}

// SetAbsent records that id does not exist in the cluster.
func (s *State) SetAbsent(id core.ID, ref v1alpha1.ResourceRef) {
	s.add(id, &Entry{Ref: ref, Absent: true})
}

// SetUnknown records that id could not be read.
func (s *State) SetUnknown(id core.ID, ref v1alpha1.ResourceRef) {
	s.add(id, &Entry{Ref: ref, Unknown: true})
}

// Get returns the entry for id.
func (s *State) Get(id core.ID) (*Entry, bool) {
	if s == nil {
		return nil, false
	}
	e, found := s.entries[id]
	return e, found
}

// IDs returns the IDs of all entries, in the order they were requested.
func (s *State) IDs() []core.ID {
	if s == nil {
		return nil
	}
	result := make([]core.ID, len(s.order))
	copy(result, s.order)
	return result
}

// Len returns the number of entries.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}
