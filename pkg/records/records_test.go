package records

import "testing"

// TestString covers the trimmed-string accessor's accepted forms.
func TestString(t *testing.T) {
	t.Parallel()

	r := Record{
		"name":  "  alice  ",
		"raw":   []byte(" bob "),
		"blank": "   ",
		"num":   42.0,
		"nil":   nil,
	}

	if got, ok := r.String("name"); !ok || got != "alice" {
		t.Errorf("name=(%q,%v), want alice", got, ok)
	}
	if got, ok := r.String("raw"); !ok || got != "bob" {
		t.Errorf("raw=(%q,%v), want bob", got, ok)
	}
	if _, ok := r.String("blank"); ok {
		t.Error("blank string must not be ok")
	}
	if _, ok := r.String("num"); ok {
		t.Error("non-string value must not be ok")
	}
	if _, ok := r.String("nil"); ok {
		t.Error("nil value must not be ok")
	}
	if _, ok := r.String("missing"); ok {
		t.Error("missing key must not be ok")
	}
}

// TestClone verifies the copy is independent at the map level.
func TestClone(t *testing.T) {
	t.Parallel()

	orig := Record{"a": 1, "b": "x"}
	cp := orig.Clone()
	cp["a"] = 2
	if orig["a"] != 1 {
		t.Fatal("Clone shares the underlying map")
	}
}

// TestColumns verifies the sorted union across records.
func TestColumns(t *testing.T) {
	t.Parallel()

	got := Columns([]Record{
		{"b": 1, "a": 2},
		{"c": 3, "a": 4},
	})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Columns=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Columns=%v, want %v", got, want)
		}
	}
}
