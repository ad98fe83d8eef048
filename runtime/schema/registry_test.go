package schema

import (
	"testing"
)

func TestRegisterSchema_Success(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"version": "1.0.0",
		"markers": [
			{"name": "Route", "attributes": [
				{"name": "path", "type": "string", "default": ""},
				{"name": "method", "type": "string", "default": "GET"}
			]}
		],
		"elements": [
			{"name": "UserHandler", "markers": [
				{"type": "Route", "values": {"path": "/users"}}
			]}
		]
	}`)

	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	if !Initialized() {
		t.Error("Initialized should report true after registration")
	}

	mt, ok := MarkerTypeOf("Route")
	if !ok {
		t.Fatal("marker type Route not registered")
	}
	if len(mt.Attributes) != 2 {
		t.Errorf("attribute count: got %d, want 2", len(mt.Attributes))
	}

	el, ok := ElementOf("UserHandler")
	if !ok {
		t.Fatal("element UserHandler not registered")
	}
	if len(el.Markers) != 1 {
		t.Fatalf("marker count: got %d, want 1", len(el.Markers))
	}
	if got := el.Markers[0].Value("path"); got != "/users" {
		t.Errorf("path: got %v, want /users", got)
	}
	if got := el.Markers[0].Value("method"); got != "GET" {
		t.Errorf("method default: got %v, want GET", got)
	}
}

func TestRegisterSchema_InvalidJSON(t *testing.T) {
	defer Reset()

	if err := RegisterSchema([]byte(`{"markers": not json}`)); err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
}

func TestRegisterSchema_UnknownMarkerType(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"elements": [
			{"name": "Thing", "markers": [{"type": "Missing"}]}
		]
	}`)

	if err := RegisterSchema(data); err == nil {
		t.Error("Expected error for instance of unknown marker type")
	}
}

func TestRegisterSchema_UnknownAttribute(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"markers": [{"name": "Tag", "attributes": [{"name": "value", "type": "string"}]}],
		"elements": [
			{"name": "Thing", "markers": [{"type": "Tag", "values": {"nope": 1}}]}
		]
	}`)

	if err := RegisterSchema(data); err == nil {
		t.Error("Expected error for value on undeclared attribute")
	}
}

func TestRegisterSchema_DuplicateMarkerType(t *testing.T) {
	defer Reset()

	data := []byte(`{"markers": [{"name": "Tag"}, {"name": "Tag"}]}`)
	if err := RegisterSchema(data); err == nil {
		t.Error("Expected error for duplicate marker type")
	}
}

func TestElementOf_CanonicalPointers(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"elements": [
			{"name": "Child", "super": "Parent"},
			{"name": "Parent"}
		]
	}`)
	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	child, _ := ElementOf("Child")
	parent, _ := ElementOf("Parent")
	if child.Super != parent {
		t.Error("supertype reference is not the canonical Parent element")
	}

	again, _ := ElementOf("Child")
	if again != child {
		t.Error("repeated lookups must return the same pointer")
	}
}

func TestSuperAndInterfaces_Order(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"elements": [
			{"name": "Impl", "super": "Base", "interfaces": ["Readable", "Writable"]}
		]
	}`)
	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	impl, _ := ElementOf("Impl")
	parents := SuperAndInterfaces(impl)
	want := []string{"Base", "Readable", "Writable"}
	if len(parents) != len(want) {
		t.Fatalf("parent count: got %d, want %d", len(parents), len(want))
	}
	for i, name := range want {
		if parents[i].Name != name {
			t.Errorf("parent %d: got %s, want %s", i, parents[i].Name, name)
		}
	}
}

func TestIsAssignable(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"elements": [
			{"name": "Dog", "super": "Animal", "interfaces": ["Pet"]},
			{"name": "Animal", "super": "Object"}
		]
	}`)
	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	cases := []struct {
		from, to string
		want     bool
	}{
		{"Dog", "Dog", true},
		{"Dog", "Animal", true},
		{"Dog", "Object", true},
		{"Dog", "Pet", true},
		{"Animal", "Dog", false},
		{"Dog", "Plant", false},
		{"string", "string", true},
	}
	for _, tc := range cases {
		if got := IsAssignable(tc.from, tc.to); got != tc.want {
			t.Errorf("IsAssignable(%s, %s): got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDeclaredMethodsAndOverridable(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"elements": [
			{"name": "Animal", "methods": [
				{"name": "speak", "returns": "Sound"},
				{"name": "speak", "params": ["Volume"], "returns": "Sound"}
			]}
		]
	}`)
	// Duplicate method names on one type collide on the Owner#name key.
	if err := RegisterSchema(data); err == nil {
		t.Fatal("Expected error for duplicate method name")
	}

	Reset()
	data = []byte(`{
		"elements": [
			{"name": "LoudSound", "super": "Sound"},
			{"name": "Dog", "super": "Animal", "methods": [
				{"name": "speak", "returns": "LoudSound"}
			]},
			{"name": "Animal", "methods": [
				{"name": "speak", "returns": "Sound"},
				{"name": "eat", "params": ["Food"], "returns": "void"}
			]}
		]
	}`)
	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	methods := DeclaredMethods("Animal")
	if len(methods) != 2 {
		t.Fatalf("method count: got %d, want 2", len(methods))
	}

	childSpeak, ok := ElementOf("Dog#speak")
	if !ok {
		t.Fatal("Dog#speak not registered")
	}
	parentSpeak, _ := ElementOf("Animal#speak")
	parentEat, _ := ElementOf("Animal#eat")

	if !IsOverridableFrom(childSpeak, parentSpeak) {
		t.Error("covariant return should be overridable")
	}
	if IsOverridableFrom(childSpeak, parentEat) {
		t.Error("different method name should not be overridable")
	}
	if IsOverridableFrom(parentSpeak, childSpeak) {
		t.Error("contravariant return should not be overridable")
	}
}

func TestNormalizeValue_NestedInstances(t *testing.T) {
	defer Reset()

	data := []byte(`{
		"markers": [
			{"name": "Tag", "attributes": [{"name": "value", "type": "string"}]},
			{"name": "Tags", "attributes": [{"name": "value", "type": "Tag[]"}]}
		],
		"elements": [
			{"name": "Thing", "markers": [
				{"type": "Tags", "values": {"value": [
					{"type": "Tag", "values": {"value": "a"}},
					{"type": "Tag", "values": {"value": "b"}}
				]}}
			]}
		]
	}`)
	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	el, _ := ElementOf("Thing")
	payload, ok := el.Markers[0].Value("value").([]Instance)
	if !ok {
		t.Fatalf("container payload: got %T, want []Instance", el.Markers[0].Value("value"))
	}
	if len(payload) != 2 {
		t.Fatalf("payload length: got %d, want 2", len(payload))
	}
	if got := payload[1].Value("value"); got != "b" {
		t.Errorf("second contained marker: got %v, want b", got)
	}
}

func TestReset(t *testing.T) {
	data := []byte(`{"markers": [{"name": "Tag"}]}`)
	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	Reset()

	if Initialized() {
		t.Error("Initialized should report false after Reset")
	}
	if _, ok := MarkerTypeOf("Tag"); ok {
		t.Error("marker type should be gone after Reset")
	}
}

func TestMarkerTypeNames_Sorted(t *testing.T) {
	defer Reset()

	data := []byte(`{"markers": [{"name": "Zeta"}, {"name": "Alpha"}, {"name": "Mid"}]}`)
	if err := RegisterSchema(data); err != nil {
		t.Fatalf("RegisterSchema failed: %v", err)
	}

	names := MarkerTypeNames()
	want := []string{"Alpha", "Mid", "Zeta"}
	if len(names) != len(want) {
		t.Fatalf("name count: got %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d: got %s, want %s", i, names[i], want[i])
		}
	}
}
