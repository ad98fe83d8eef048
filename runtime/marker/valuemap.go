package marker

import (
	"sync"

	"github.com/conduit-lang/marker/runtime/schema"
)

// mapInstance is a marker instance backed solely by a name-to-value table,
// with no declared occurrence behind it. Used to construct markers
// programmatically, e.g. one element of a repeatable container's payload.
type mapInstance struct {
	typ    *schema.MarkerType
	values map[string]any

	strOnce sync.Once
	str     string
}

// Map builds a marker instance of the given type from a value table.
// Attributes absent from the table read their declared defaults.
func Map(typ *schema.MarkerType, values map[string]any) (schema.Instance, error) {
	if typ == nil {
		return nil, newError(ErrMissingArgument, "marker type is required")
	}
	if len(values) == 0 {
		return nil, newError(ErrMissingArgument, "values must not be empty for %s", typ.Name)
	}
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &mapInstance{typ: typ, values: copied}, nil
}

// IsSynthesizedFromMap reports whether an instance was built from a value
// table via Map. Container extraction special-cases these, since their array
// payload is held directly in the table.
func IsSynthesizedFromMap(inst schema.Instance) bool {
	_, ok := inst.(*mapInstance)
	return ok
}

func (m *mapInstance) Type() *schema.MarkerType { return m.typ }

func (m *mapInstance) Value(name string) any {
	if v, ok := m.values[name]; ok {
		return v
	}
	if attr := m.typ.Attribute(name); attr != nil {
		return attr.Default
	}
	return nil
}

func (m *mapInstance) String() string {
	m.strOnce.Do(func() {
		m.str = formatValues(m.typ.Name, m.values)
	})
	return m.str
}

// rawValues exposes the backing table for container payload extraction.
func (m *mapInstance) rawValues() map[string]any { return m.values }
