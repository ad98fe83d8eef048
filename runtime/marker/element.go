package marker

import (
	"sync"

	"github.com/conduit-lang/marker/runtime/schema"
)

// elementCache holds one ElementView per distinct underlying element.
// Stability of the cached node identity matters: the breadth-first walker's
// visited set is keyed by element pointer, so every occurrence of the same
// element in any hierarchy must resolve to the identical node.
var elementCache sync.Map // *schema.Element -> *ElementView

// ElementView wraps a declared element with marker-carrying behavior: it
// knows the element's parents (per its kind) and the merged views of its
// directly-declared markers, both resolved lazily on first access.
type ElementView struct {
	element    *schema.Element
	discoverer ParentDiscoverer

	parentsOnce sync.Once
	parents     []*ElementView

	mergedOnce sync.Once
	merged     []*MergedView
	mergedErr  error
}

// From returns the cached view of an element, creating it on first use.
func From(el *schema.Element) *ElementView {
	if cached, ok := elementCache.Load(el); ok {
		return cached.(*ElementView)
	}
	view := &ElementView{element: el, discoverer: DiscovererFor(el)}
	actual, _ := elementCache.LoadOrStore(el, view)
	return actual.(*ElementView)
}

// FromName resolves an element by registered name and returns its view.
func FromName(name string) (*ElementView, bool) {
	el, ok := schema.ElementOf(name)
	if !ok {
		return nil, false
	}
	return From(el), true
}

// Element returns the underlying declared element.
func (v *ElementView) Element() *schema.Element {
	return v.element
}

// Parents returns the views of the element's immediate parents, resolved
// once per view.
func (v *ElementView) Parents() []*ElementView {
	v.parentsOnce.Do(func() {
		for _, parent := range v.discoverer.Parents(v.element) {
			v.parents = append(v.parents, From(parent))
		}
	})
	return v.parents
}

// Hierarchy returns a fresh breadth-first iterator over the element and its
// ancestors.
func (v *ElementView) Hierarchy() *HierarchyIterator {
	return newHierarchyIterator(v)
}

// HierarchyElements collects the hierarchy into a slice, the element first.
func (v *ElementView) HierarchyElements() []*schema.Element {
	var out []*schema.Element
	for it := v.Hierarchy(); ; {
		node := it.Next()
		if node == nil {
			return out
		}
		out = append(out, node.element)
	}
}

// declaredViews builds the merged views of the element's directly-declared
// markers, once. A declaration defect in any marker's chain fails the whole
// element and is returned to every caller.
func (v *ElementView) declaredViews() ([]*MergedView, error) {
	v.mergedOnce.Do(func() {
		for _, inst := range v.element.Markers {
			if !Internal.Matches(inst.Type()) {
				continue
			}
			mv, err := FromInstance(inst)
			if err != nil {
				v.merged = nil
				v.mergedErr = err
				return
			}
			v.merged = append(v.merged, mv)
		}
	})
	return v.merged, v.mergedErr
}

// DeclaredMarker returns the first marker of the given type present on this
// element directly or as a meta-marker of a directly-declared marker.
// Absence is a miss, not an error.
func (v *ElementView) DeclaredMarker(markerType string) (schema.Instance, error) {
	views, err := v.declaredViews()
	if err != nil {
		return nil, err
	}
	for _, mv := range views {
		if inst, ok := mv.Synthesize(markerType); ok {
			return inst, nil
		}
	}
	return nil, nil
}

// FirstMarker returns the hierarchy-order first marker of the given type,
// searching every ancestor's declared markers and their meta-markers.
func (v *ElementView) FirstMarker(markerType string) (schema.Instance, error) {
	for it := v.Hierarchy(); ; {
		node := it.Next()
		if node == nil {
			return nil, nil
		}
		inst, err := node.DeclaredMarker(markerType)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			return inst, nil
		}
	}
}

// IsDeclaredPresent reports whether the marker type is present on the
// element itself, meta-markers included.
func (v *ElementView) IsDeclaredPresent(markerType string) (bool, error) {
	inst, err := v.DeclaredMarker(markerType)
	return inst != nil, err
}

// IsPresent reports whether the marker type is present anywhere in the
// element's hierarchy, meta-markers included.
func (v *ElementView) IsPresent(markerType string) (bool, error) {
	inst, err := v.FirstMarker(markerType)
	return inst != nil, err
}

// AllDeclaredMarkers returns every marker on the element itself: each
// directly-declared marker and the full meta-marker chain behind it.
func (v *ElementView) AllDeclaredMarkers() ([]schema.Instance, error) {
	views, err := v.declaredViews()
	if err != nil {
		return nil, err
	}
	var out []schema.Instance
	for _, mv := range views {
		out = append(out, mv.SynthesizeAll()...)
	}
	return out, nil
}

// AllMarkers returns every marker across the whole hierarchy.
func (v *ElementView) AllMarkers() ([]schema.Instance, error) {
	var out []schema.Instance
	for it := v.Hierarchy(); ; {
		node := it.Next()
		if node == nil {
			return out, nil
		}
		declared, err := node.AllDeclaredMarkers()
		if err != nil {
			return nil, err
		}
		out = append(out, declared...)
	}
}

// DeclaredMarkersOfType returns the element-local markers of a repeatable
// type: direct (and meta) occurrences first, then the contents of any
// declared repeatable container, in declaration order.
func (v *ElementView) DeclaredMarkersOfType(markerType string) ([]schema.Instance, error) {
	mt, ok := schema.MarkerTypeOf(markerType)
	if !ok {
		return nil, nil
	}
	views, err := v.declaredViews()
	if err != nil {
		return nil, err
	}
	var out []schema.Instance
	for _, mv := range views {
		if inst, ok := mv.Synthesize(markerType); ok {
			out = append(out, inst)
		}
	}
	if container, ok := schema.RepeatableContainerOf(mt); ok {
		for _, mv := range views {
			c, ok := mv.Synthesize(container.Name)
			if !ok {
				continue
			}
			contained, err := ContainedMarkers(c, mt)
			if err != nil {
				return nil, err
			}
			out = append(out, contained...)
		}
	}
	return out, nil
}

// MarkersOfType returns all markers of a repeatable type across the
// hierarchy, container contents included.
func (v *ElementView) MarkersOfType(markerType string) ([]schema.Instance, error) {
	var out []schema.Instance
	for it := v.Hierarchy(); ; {
		node := it.Next()
		if node == nil {
			return out, nil
		}
		declared, err := node.DeclaredMarkersOfType(markerType)
		if err != nil {
			return nil, err
		}
		out = append(out, declared...)
	}
}
