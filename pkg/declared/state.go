package declared

import (
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
)

// State is the desired state of an application: every declared resource, in
// declaration order, read from the source at Revision.
//
// State is built once per cycle and not modified afterwards. Readers get
// copies of the declared objects.
type State struct {
	// Revision is the source revision the resources were read at.
	Revision string

	order     []core.ID
	resources map[core.ID]*Resource
}

// NewState returns an empty State read at revision.
func NewState(revision string) *State {
	return &State{
		Revision:  revision,
		resources: make(map[core.ID]*Resource),
	}
}

// Add records r. If a resource with the same ID was already added, Add
// returns it and false, and leaves the State unchanged.
func (s *State) Add(r Resource) (*Resource, bool) {
	if existing, found := s.resources[r.ID]; found {
		return existing, false
	}
	s.order = append(s.order, r.ID)
	s.resources[r.ID] = &r
	return nil, true
}

// Len returns the number of declared resources.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Has returns true if id is declared.
func (s *State) Has(id core.ID) bool {
	if s == nil {
		return false
	}
	_, found := s.resources[id]
	return found
}

// Get returns a copy of the declared resource with the passed ID.
func (s *State) Get(id core.ID) (*Resource, bool) {
	if s == nil {
		return nil, false
	}
	r, found := s.resources[id]
	if !found {
		return nil, false
	}
	return &Resource{ID: r.ID, Object: r.Object.DeepCopy(), Path: r.Path}, true
}

// IDs returns the declared IDs in declaration order.
func (s *State) IDs() []core.ID {
	if s == nil {
		return nil
	}
	result := make([]core.ID, len(s.order))
	copy(result, s.order)
	return result
}

// Resources returns copies of the declared resources in declaration order.
func (s *State) Resources() []*Resource {
	if s == nil {
		return nil
	}
	result := make([]*Resource, 0, len(s.order))
	for _, id := range s.order {
		r, _ := s.Get(id)
		result = append(result, r)
	}
	return result
}

// Refs returns the ResourceRefs of the declared resources in declaration
// order.
func (s *State) Refs() []v1alpha1.ResourceRef {
	if s == nil {
		return nil
	}
	result := make([]v1alpha1.ResourceRef, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.resources[id].Ref())
	}
	return result
}

// Union returns the refs of the desired resources followed by the refs in
// inventory which are not declared, without duplicates. This is the set of
// resources a sync cycle must read from the cluster.
func Union(desired *State, inventory []v1alpha1.ResourceRef) []v1alpha1.ResourceRef {
	result := desired.Refs()
	seen := make(map[core.ID]bool, len(result)+len(inventory))
	for _, ref := range result {
		seen[IDOfRef(ref)] = true
	}
	for _, ref := range inventory {
		id := IDOfRef(ref)
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, ref)
	}
	return result
}
