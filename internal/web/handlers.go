package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/marker/runtime/marker"
	"github.com/conduit-lang/marker/runtime/schema"
)

// markerJSON is the wire form of one resolved marker instance.
type markerJSON struct {
	Type   string         `json:"type"`
	Values map[string]any `json:"values"`
}

func toMarkerJSON(inst schema.Instance) markerJSON {
	values := marker.AttributeValues(inst)
	for name, v := range values {
		values[name] = normalizeValue(v)
	}
	return markerJSON{
		Type:   inst.Type().Name,
		Values: values,
	}
}

// normalizeValue rewrites marker-typed attribute values (container payloads)
// into their wire form.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case schema.Instance:
		return toMarkerJSON(x)
	case []schema.Instance:
		out := make([]markerJSON, 0, len(x))
		for _, inst := range x {
			out = append(out, toMarkerJSON(inst))
		}
		return out
	default:
		return v
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]any{"error": err.Error()}
	if code, ok := marker.CodeOf(err); ok {
		body["code"] = string(code)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"initialized": schema.Initialized(),
	})
}

func (s *Server) handleMarkerTypes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"markers": schema.MarkerTypeNames(),
	})
}

// handleElementMarkers returns every marker resolved for an element.
// ?declared=true restricts the answer to the element itself, skipping the
// hierarchy.
func (s *Server) handleElementMarkers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	el, ok := schema.ElementOf(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown element: " + name})
		return
	}

	view := marker.From(el)
	var (
		markers []schema.Instance
		err     error
	)
	if r.URL.Query().Get("declared") == "true" {
		markers, err = view.AllDeclaredMarkers()
	} else {
		markers, err = view.AllMarkers()
	}
	if err != nil {
		// Declaration defects in the registered schema are the server
		// operator's problem, not the caller's.
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]markerJSON, 0, len(markers))
	for _, inst := range markers {
		out = append(out, toMarkerJSON(inst))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"element": name,
		"markers": out,
	})
}

// handleElementMarker returns the hierarchy-first marker of one type, with
// repeatable types answered as the full occurrence list.
func (s *Server) handleElementMarker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	markerType := chi.URLParam(r, "type")

	el, ok := schema.ElementOf(name)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown element: " + name})
		return
	}

	if mt, ok := schema.MarkerTypeOf(markerType); ok && mt.Repeatable != "" {
		all, err := marker.FindAllMarkers(el, markerType)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		out := make([]markerJSON, 0, len(all))
		for _, inst := range all {
			out = append(out, toMarkerJSON(inst))
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"element": name,
			"markers": out,
		})
		return
	}

	inst, err := marker.FindMarker(el, markerType)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if inst == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "element " + name + " has no marker " + markerType,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"element": name,
		"marker":  toMarkerJSON(inst),
	})
}
