// Package marker resolves the effective metadata of declared program
// elements. Markers attached to an element, the meta-markers on their types,
// and markers inherited through the element hierarchy are merged into a
// single conflict-resolved view: attribute aliases collapse to one
// authoritative value, attributes overridden closer to the declaration shadow
// meta-marker values, and repeatable markers surface through their container
// types.
//
// The entry points are the package-level lookups (FindMarker, GetMarker and
// friends) and MergedView for direct work with one marker's chain. Resolved
// chain structures and element views are cached process-wide; ClearCaches
// resets both, typically after re-registering a schema.
package marker
