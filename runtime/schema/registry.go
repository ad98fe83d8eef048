package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry holds the declared schema for marker resolution queries.
// It is populated at application startup via RegisterSchema and answers
// facade queries with pre-computed indexes.
type Registry struct {
	mu sync.RWMutex

	markerTypes   map[string]*MarkerType
	elements      map[string]*Element
	methodsByType map[string][]*Element // type name -> declared methods

	initialized atomic.Bool
}

// Global registry instance
var globalRegistry = newRegistry()

func newRegistry() *Registry {
	return &Registry{
		markerTypes:   make(map[string]*MarkerType),
		elements:      make(map[string]*Element),
		methodsByType: make(map[string][]*Element),
	}
}

// Schema document shapes for RegisterSchema.
type schemaDoc struct {
	Version  string       `json:"version"`
	Markers  []markerDef  `json:"markers"`
	Elements []elementDef `json:"elements"`
}

type markerDef struct {
	Name       string         `json:"name"`
	Attributes []attributeDef `json:"attributes"`
	Markers    []instanceDef  `json:"markers"`
	Repeatable string         `json:"repeatable,omitempty"`
}

type attributeDef struct {
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Default any       `json:"default,omitempty"`
	Alias   *aliasDef `json:"alias,omitempty"`
}

type aliasDef struct {
	Attribute string `json:"attribute,omitempty"`
	Value     string `json:"value,omitempty"`
	Marker    string `json:"marker,omitempty"`
}

type instanceDef struct {
	Type   string         `json:"type"`
	Values map[string]any `json:"values,omitempty"`
}

type elementDef struct {
	Name       string        `json:"name"`
	Kind       string        `json:"kind,omitempty"`
	Super      string        `json:"super,omitempty"`
	Interfaces []string      `json:"interfaces,omitempty"`
	Methods    []methodDef   `json:"methods,omitempty"`
	Markers    []instanceDef `json:"markers,omitempty"`
}

type methodDef struct {
	Name    string        `json:"name"`
	Params  []string      `json:"params,omitempty"`
	Returns string        `json:"returns,omitempty"`
	Markers []instanceDef `json:"markers,omitempty"`
}

// RegisterSchema registers a JSON schema document in the global registry.
// This is called once at application startup; repeated calls merge into the
// existing registry. All cross-references (marker types named by instances,
// supertypes named by elements) are resolved and validated here so that the
// resolution engine can assume a closed, consistent world.
func RegisterSchema(data []byte) error {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if err := globalRegistry.register(&doc); err != nil {
		return err
	}
	globalRegistry.initialized.Store(true)
	return nil
}

func (r *Registry) register(doc *schemaDoc) error {
	// First pass: create marker types and their element views so instances
	// and meta-markers can reference them in any order.
	for i := range doc.Markers {
		def := &doc.Markers[i]
		if _, exists := r.markerTypes[def.Name]; exists {
			return fmt.Errorf("duplicate marker type: %s", def.Name)
		}
		mt := &MarkerType{Name: def.Name, Repeatable: def.Repeatable}
		for j := range def.Attributes {
			ad := &def.Attributes[j]
			attr := &Attribute{Name: ad.Name, Type: ad.Type, Default: ad.Default}
			if ad.Alias != nil {
				attr.Alias = &Alias{
					Attribute: ad.Alias.Attribute,
					Value:     ad.Alias.Value,
					Marker:    ad.Alias.Marker,
				}
			}
			mt.Attributes = append(mt.Attributes, attr)
		}
		r.markerTypes[def.Name] = mt
		r.elements[def.Name] = &Element{Kind: KindMarker, Name: def.Name, Marker: mt}
	}

	// Second pass: meta-markers on marker types.
	for i := range doc.Markers {
		def := &doc.Markers[i]
		mt := r.markerTypes[def.Name]
		for _, inst := range def.Markers {
			bound, err := r.buildInstance(inst)
			if err != nil {
				return fmt.Errorf("marker type %s: %w", def.Name, err)
			}
			mt.Markers = append(mt.Markers, bound)
		}
		r.elements[def.Name].Markers = mt.Markers
	}

	// Third pass: elements. Types referenced as supertypes or interfaces but
	// never declared are materialized as bare elements.
	for i := range doc.Elements {
		def := &doc.Elements[i]
		el := r.ensureType(def.Name, def.Kind)
		if def.Super != "" {
			el.Super = r.ensureType(def.Super, "")
		}
		for _, name := range def.Interfaces {
			el.Interfaces = append(el.Interfaces, r.ensureType(name, ""))
		}
		for _, inst := range def.Markers {
			bound, err := r.buildInstance(inst)
			if err != nil {
				return fmt.Errorf("element %s: %w", def.Name, err)
			}
			el.Markers = append(el.Markers, bound)
		}
		for j := range def.Methods {
			md := &def.Methods[j]
			method := &Element{
				Kind:       KindMethod,
				Name:       def.Name + "#" + md.Name,
				Owner:      el,
				MethodName: md.Name,
				Params:     md.Params,
				Returns:    md.Returns,
			}
			for _, inst := range md.Markers {
				bound, err := r.buildInstance(inst)
				if err != nil {
					return fmt.Errorf("method %s: %w", method.Name, err)
				}
				method.Markers = append(method.Markers, bound)
			}
			if _, exists := r.elements[method.Name]; exists {
				return fmt.Errorf("duplicate method: %s", method.Name)
			}
			r.elements[method.Name] = method
			r.methodsByType[def.Name] = append(r.methodsByType[def.Name], method)
		}
	}
	return nil
}

func (r *Registry) ensureType(name, kind string) *Element {
	if el, ok := r.elements[name]; ok {
		return el
	}
	k := KindType
	if kind == string(KindOther) {
		k = KindOther
	}
	el := &Element{Kind: k, Name: name}
	r.elements[name] = el
	return el
}

// buildInstance materializes an instanceDef, converting values that
// themselves describe marker instances (single or array payloads, as used by
// repeatable containers) into bound Instances.
func (r *Registry) buildInstance(def instanceDef) (Instance, error) {
	mt, ok := r.markerTypes[def.Type]
	if !ok {
		return nil, fmt.Errorf("unknown marker type: %s", def.Type)
	}
	values := make(map[string]any, len(def.Values))
	for name, raw := range def.Values {
		if mt.Attribute(name) == nil {
			return nil, fmt.Errorf("marker type %s has no attribute %q", def.Type, name)
		}
		v, err := r.normalizeValue(raw)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return NewInstance(mt, values), nil
}

// normalizeValue converts nested {"type": ..., "values": ...} maps, and
// arrays of them, into bound Instances. Everything else passes through.
func (r *Registry) normalizeValue(raw any) (any, error) {
	switch v := raw.(type) {
	case map[string]any:
		typeName, ok := v["type"].(string)
		if !ok {
			return raw, nil
		}
		if _, known := r.markerTypes[typeName]; !known {
			return raw, nil
		}
		def := instanceDef{Type: typeName}
		if vals, ok := v["values"].(map[string]any); ok {
			def.Values = vals
		}
		return r.buildInstance(def)
	case []any:
		instances := make([]Instance, 0, len(v))
		for _, item := range v {
			norm, err := r.normalizeValue(item)
			if err != nil {
				return nil, err
			}
			inst, ok := norm.(Instance)
			if !ok {
				// Mixed or plain array, leave untouched.
				return raw, nil
			}
			instances = append(instances, inst)
		}
		if len(instances) == 0 {
			return raw, nil
		}
		return instances, nil
	default:
		return raw, nil
	}
}

// Reset clears the registry (used for testing).
func Reset() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.markerTypes = make(map[string]*MarkerType)
	globalRegistry.elements = make(map[string]*Element)
	globalRegistry.methodsByType = make(map[string][]*Element)
	globalRegistry.initialized.Store(false)
}

// Initialized reports whether a schema has been registered.
func Initialized() bool {
	return globalRegistry.initialized.Load()
}

// ElementOf returns the canonical element with the given name. Method
// elements use the "Owner#name" form. Marker types resolve to their
// KindMarker element.
func ElementOf(name string) (*Element, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	el, ok := globalRegistry.elements[name]
	return el, ok
}

// MarkerTypeOf returns the registered marker type with the given name.
func MarkerTypeOf(name string) (*MarkerType, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	mt, ok := globalRegistry.markerTypes[name]
	return mt, ok
}

// MarkerTypeNames returns all registered marker type names, sorted.
func MarkerTypeNames() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	names := make([]string, 0, len(globalRegistry.markerTypes))
	for name := range globalRegistry.markerTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SuperAndInterfaces returns the immediate supertype and declared interfaces
// of a type element, in declaration order with the supertype first.
func SuperAndInterfaces(el *Element) []*Element {
	var parents []*Element
	if el.Super != nil {
		parents = append(parents, el.Super)
	}
	parents = append(parents, el.Interfaces...)
	return parents
}

// DeclaredMethods returns the methods declared directly on the named type.
func DeclaredMethods(typeName string) []*Element {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	methods := globalRegistry.methodsByType[typeName]
	out := make([]*Element, len(methods))
	copy(out, methods)
	return out
}

// IsAssignable reports whether a value of type from can be assigned to a
// slot of type to: the names are equal, or to appears in from's supertype
// closure.
func IsAssignable(from, to string) bool {
	if from == to {
		return true
	}
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	el, ok := globalRegistry.elements[from]
	if !ok {
		return false
	}
	visited := map[*Element]bool{el: true}
	queue := SuperAndInterfaces(el)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		if next.Name == to {
			return true
		}
		queue = append(queue, SuperAndInterfaces(next)...)
	}
	return false
}

// IsOverridableFrom reports whether method child is capable of overriding
// method parent: same name, covariant return type, same parameter count, and
// each parent parameter assignable to the child's.
func IsOverridableFrom(child, parent *Element) bool {
	if child.Kind != KindMethod || parent.Kind != KindMethod {
		return false
	}
	if child.MethodName != parent.MethodName {
		return false
	}
	if !IsAssignable(child.Returns, parent.Returns) {
		return false
	}
	if len(child.Params) != len(parent.Params) {
		return false
	}
	for i := range child.Params {
		if !IsAssignable(parent.Params[i], child.Params[i]) {
			return false
		}
	}
	return true
}

// RepeatableContainerOf returns the container marker type for a repeatable
// marker type, if it declares one.
func RepeatableContainerOf(t *MarkerType) (*MarkerType, bool) {
	if t.Repeatable == "" {
		return nil, false
	}
	return MarkerTypeOf(t.Repeatable)
}
