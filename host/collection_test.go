package host

import (
	"strings"
	"testing"
)

func noteItems(s *Space, names ...string) []Value {
	items := make([]Value, len(names))
	for i, name := range names {
		obj := s.NewObject("archive", "note")
		obj.SetProperty("name", StringValue(name))
		obj.SetProperty("pos", IntValue(int64(i)))
		items[i] = ObjectValue(obj)
	}
	return items
}

// ---------------------------------------------------------------------------
// Container primitives
// ---------------------------------------------------------------------------

func TestContainer_At(t *testing.T) {
	c := FixedContainer("note", []Value{IntValue(10), IntValue(20)})

	v, err := c.At(1)
	if err != nil || v.Int() != 20 {
		t.Errorf("At(1) = %s, %v", v, err)
	}

	for _, idx := range []int{-1, 2} {
		if _, err := c.At(idx); err == nil || !strings.Contains(err.Error(), "out of range") {
			t.Errorf("At(%d) error = %v, want out of range", idx, err)
		}
	}
}

func TestContainer_Whose(t *testing.T) {
	s := NewSpace()
	items := noteItems(s, "alpha", "beta", "gamma")
	items[1].Object().SetProperty("kind", StringValue("log"))
	items[0].Object().SetProperty("kind", StringValue("note"))
	items[2].Object().SetProperty("kind", StringValue("note"))
	c := FixedContainer("note", items)

	got := c.Whose(map[string]Value{"kind": StringValue("note")})
	if len(got) != 2 {
		t.Fatalf("matched %d items, want 2", len(got))
	}
	if got[0].Object().Property("name").Str() != "alpha" {
		t.Error("filter did not preserve order")
	}

	// Every filter field must match.
	got = c.Whose(map[string]Value{"kind": StringValue("note"), "pos": IntValue(2)})
	if len(got) != 1 || got[0].Object().Property("name").Str() != "gamma" {
		t.Errorf("conjunction matched %v", got)
	}

	// An empty filter matches every object item.
	if got := c.Whose(nil); len(got) != 3 {
		t.Errorf("empty filter matched %d items", len(got))
	}
}

func TestContainer_WhoseSkipsPlainItems(t *testing.T) {
	c := FixedContainer("note", []Value{IntValue(1), StringValue("x")})
	if got := c.Whose(nil); len(got) != 0 {
		t.Errorf("plain items matched: %v", got)
	}
}

func TestContainer_LiveProvider(t *testing.T) {
	var backing []Value
	c := NewContainer("note", func() []Value { return backing })

	if c.Length() != 0 {
		t.Fatalf("length = %d, want 0", c.Length())
	}
	backing = append(backing, IntValue(1), IntValue(2))
	if c.Length() != 2 {
		t.Errorf("length after append = %d, want 2", c.Length())
	}
	if v, err := c.At(1); err != nil || v.Int() != 2 {
		t.Errorf("At(1) = %s, %v", v, err)
	}
}

func TestContainer_ItemsReturnsCopy(t *testing.T) {
	c := FixedContainer("note", []Value{IntValue(1)})
	items := c.Items()
	items[0] = IntValue(99)
	if v, _ := c.At(0); v.Int() != 1 {
		t.Error("mutating Items() leaked into the container")
	}
}

// ---------------------------------------------------------------------------
// Built-in selectors
// ---------------------------------------------------------------------------

func TestWhoseSelector_FilterForms(t *testing.T) {
	s := NewSpace()
	items := noteItems(s, "alpha", "beta")
	coll := s.NewCollection("archive", "note", items...)
	whose, _ := coll.Method("whose")

	// Single record argument.
	out, err := whose.Call([]Value{RecordValue(map[string]Value{"name": StringValue("beta")})}, nil)
	if err != nil {
		t.Fatalf("whose: %v", err)
	}
	derived := out.Object()
	if derived.Container() == nil || derived.Container().Length() != 1 {
		t.Fatalf("derived collection = %s", out)
	}
	if derived.Container().ElementClass() != "note" {
		t.Errorf("derived element class = %q", derived.Container().ElementClass())
	}

	// Keyword arguments merge over the record argument.
	out, err = whose.Call(
		[]Value{RecordValue(map[string]Value{"name": StringValue("beta")})},
		map[string]Value{"name": StringValue("alpha")},
	)
	if err != nil {
		t.Fatalf("whose with kwargs: %v", err)
	}
	matched := out.Object().Container().Items()
	if len(matched) != 1 || matched[0].Object().Property("name").Str() != "alpha" {
		t.Errorf("kwargs did not win the merge: %v", matched)
	}
}

func TestWhoseSelector_ArgValidation(t *testing.T) {
	s := NewSpace()
	coll := s.NewCollection("archive", "note")
	whose, _ := coll.Method("whose")

	if _, err := whose.Call([]Value{Nil, Nil}, nil); err == nil {
		t.Error("two arguments accepted")
	}
	if _, err := whose.Call([]Value{IntValue(1)}, nil); err == nil {
		t.Error("non-record filter accepted")
	}
}

func TestAtSelector_IndexForms(t *testing.T) {
	s := NewSpace()
	items := noteItems(s, "alpha", "beta")
	coll := s.NewCollection("archive", "note", items...)
	at, _ := coll.Method("at")

	out, err := at.Call([]Value{IntValue(1)}, nil)
	if err != nil || out.Object().Property("name").Str() != "beta" {
		t.Errorf("at(1) = %s, %v", out, err)
	}

	// An integral float names the same index.
	out, err = at.Call([]Value{FloatValue(1.0)}, nil)
	if err != nil || out.Object().Property("name").Str() != "beta" {
		t.Errorf("at(1.0) = %s, %v", out, err)
	}

	if _, err := at.Call([]Value{FloatValue(1.5)}, nil); err == nil {
		t.Error("fractional index accepted")
	}
	if _, err := at.Call([]Value{StringValue("1")}, nil); err == nil {
		t.Error("string index accepted")
	}
	if _, err := at.Call([]Value{IntValue(0), IntValue(1)}, nil); err == nil {
		t.Error("two indexes accepted")
	}
	if _, err := at.Call([]Value{IntValue(0)}, map[string]Value{"x": Nil}); err == nil {
		t.Error("keyword arguments accepted")
	}
}
