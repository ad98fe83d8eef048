package marker

import (
	"github.com/conduit-lang/marker/runtime/schema"
)

// containerValueAttribute is the attribute of a repeatable container type
// that holds the contained marker array.
const containerValueAttribute = "value"

// FindMarker searches the element's whole hierarchy for the first marker of
// the given type, meta-markers included. Absence returns nil with no error;
// declaration defects in any visited chain surface as *Error.
func FindMarker(el *schema.Element, markerType string) (schema.Instance, error) {
	return From(el).FirstMarker(markerType)
}

// FindAllMarkers collects all markers of a repeatable type across the
// element's hierarchy, including the contents of repeatable containers.
func FindAllMarkers(el *schema.Element, markerType string) ([]schema.Instance, error) {
	return From(el).MarkersOfType(markerType)
}

// GetMarker is the declared-only counterpart of FindMarker: it looks at the
// element itself (its direct markers and their meta-markers) and never walks
// the hierarchy.
func GetMarker(el *schema.Element, markerType string) (schema.Instance, error) {
	return From(el).DeclaredMarker(markerType)
}

// GetAllMarkers is the declared-only counterpart of FindAllMarkers:
// element-local markers of the type plus any declared container contents.
func GetAllMarkers(el *schema.Element, markerType string) ([]schema.Instance, error) {
	return From(el).DeclaredMarkersOfType(markerType)
}

// DeclaredRepeatable returns the element's local occurrences of a repeatable
// marker type, direct ones first, then container-held ones in declaration
// order.
func DeclaredRepeatable(el *schema.Element, markerType string) ([]schema.Instance, error) {
	return From(el).DeclaredMarkersOfType(markerType)
}

// HasMetaMarker reports whether metaType occurs in markerType's meta-marker
// chain above the root. Chain defects surface as *Error.
func HasMetaMarker(markerType *schema.MarkerType, metaType string) (bool, error) {
	if markerType.Name == metaType {
		return false, nil
	}
	c, err := chainFor(markerType, Internal)
	if err != nil {
		return false, err
	}
	_, ok := c.mappings[metaType]
	return ok, nil
}

// ToMarker builds a marker instance of the given type from a value table.
func ToMarker(typ *schema.MarkerType, values map[string]any) (schema.Instance, error) {
	return Map(typ, values)
}

// ToMarkerValue builds a marker instance of a single-attribute type, placing
// the value in the conventional "value" attribute.
func ToMarkerValue(typ *schema.MarkerType, value any) (schema.Instance, error) {
	return Map(typ, map[string]any{containerValueAttribute: value})
}

// AttributeValues returns the resolved value of every declared attribute of
// an instance, in a fresh map.
func AttributeValues(inst schema.Instance) map[string]any {
	out := make(map[string]any, len(inst.Type().Attributes))
	for _, attr := range inst.Type().Attributes {
		out[attr.Name] = inst.Value(attr.Name)
	}
	return out
}

// ContainedMarkers extracts the markers held by a repeatable container
// instance. The container's payload lives in its "value" attribute; for
// map-backed containers the backing table is read directly, since it may
// carry a subset of the declared attributes. Every payload entry must be an
// instance of the repeatable type.
func ContainedMarkers(container schema.Instance, repeatable *schema.MarkerType) ([]schema.Instance, error) {
	var raw any
	if m, ok := container.(*mapInstance); ok {
		raw = m.rawValues()[containerValueAttribute]
	} else {
		if container.Type().Attribute(containerValueAttribute) == nil {
			return nil, newError(ErrMalformedContainer,
				"container type %s has no %q attribute", container.Type().Name, containerValueAttribute)
		}
		raw = container.Value(containerValueAttribute)
	}
	if raw == nil {
		return nil, nil
	}

	var entries []any
	switch v := raw.(type) {
	case []schema.Instance:
		entries = make([]any, len(v))
		for i, inst := range v {
			entries[i] = inst
		}
	case []any:
		entries = v
	default:
		return nil, newError(ErrMalformedContainer,
			"container %s holds %T, expected an array of %s markers",
			container.Type().Name, raw, repeatable.Name)
	}

	out := make([]schema.Instance, 0, len(entries))
	for _, entry := range entries {
		inst, ok := entry.(schema.Instance)
		if !ok {
			return nil, newError(ErrMalformedContainer,
				"container %s holds %T, expected %s markers", container.Type().Name, entry, repeatable.Name)
		}
		if inst.Type() != repeatable {
			return nil, newError(ErrMalformedContainer,
				"container %s holds a %s marker, expected %s",
				container.Type().Name, inst.Type().Name, repeatable.Name)
		}
		out = append(out, inst)
	}
	return out, nil
}

// ClearCaches drops the process-wide element and chain caches. Callers
// holding views keep the structures they already resolved; subsequent queries
// rebuild from the registry.
func ClearCaches() {
	elementCache.Range(func(key, _ any) bool {
		elementCache.Delete(key)
		return true
	})
	clearChainCache()
}
