package host

import "fmt"

// Container is the collection behavior an Object can expose: filter-style
// access (whose), index-style access (at), and a length. Items are served
// by a provider so live views and fixed snapshots share one shape.
type Container struct {
	elemClass string
	items     func() []Value
}

// NewContainer creates a container over a live item provider.
func NewContainer(elemClass string, items func() []Value) *Container {
	if items == nil {
		items = func() []Value { return nil }
	}
	return &Container{elemClass: elemClass, items: items}
}

// FixedContainer creates a container over a fixed item slice.
func FixedContainer(elemClass string, items []Value) *Container {
	return NewContainer(elemClass, func() []Value { return items })
}

// ElementClass returns the nominal class of the container's elements.
func (c *Container) ElementClass() string { return c.elemClass }

// Length returns the current item count.
func (c *Container) Length() int { return len(c.items()) }

// Items returns a copy of the current items.
func (c *Container) Items() []Value {
	src := c.items()
	out := make([]Value, len(src))
	copy(out, src)
	return out
}

// At returns the item at a zero-based index.
func (c *Container) At(i int) (Value, error) {
	items := c.items()
	if i < 0 || i >= len(items) {
		return Nil, fmt.Errorf("index %d out of range (length %d)", i, len(items))
	}
	return items[i], nil
}

// Whose returns the items whose object properties equal every field of the
// filter. Non-object items never match.
func (c *Container) Whose(filter map[string]Value) []Value {
	var out []Value
	for _, item := range c.items() {
		if item.Kind() != KindObject {
			continue
		}
		obj := item.Object()
		matched := true
		for field, want := range filter {
			if !obj.Property(field).Equal(want) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, item)
		}
	}
	return out
}

// newCollectionObject wraps a container in an object. The object's nominal
// class is the element class, so class queries against the collection
// answer what it holds.
func newCollectionObject(app, elemClass string, c *Container) *Object {
	obj := newObject(GenerateID(elemClass), app, elemClass)
	obj.setContainer(c)
	return obj
}

// containerWhose implements the built-in "whose" selector: filter fields
// come from a single record argument merged with keyword arguments, and
// the result is a new collection over the matching subset.
func containerWhose(self *Object, args []Value, kwargs map[string]Value) (Value, error) {
	c := self.Container()
	if c == nil {
		return Nil, fmt.Errorf("%s is not a collection", self.describe())
	}
	filter := make(map[string]Value)
	if len(args) > 1 {
		return Nil, fmt.Errorf("whose takes a single filter record, got %d arguments", len(args))
	}
	if len(args) == 1 {
		if args[0].Kind() != KindRecord {
			return Nil, fmt.Errorf("whose filter must be a record, got %s", args[0].Kind())
		}
		for field, want := range args[0].Record() {
			filter[field] = want
		}
	}
	for field, want := range kwargs {
		filter[field] = want
	}
	subset := c.Whose(filter)
	derived := FixedContainer(c.elemClass, subset)
	return ObjectValue(newCollectionObject(self.App(), c.elemClass, derived)), nil
}

// containerAt implements the built-in "at" selector: a single zero-based
// integer index.
func containerAt(self *Object, args []Value, kwargs map[string]Value) (Value, error) {
	c := self.Container()
	if c == nil {
		return Nil, fmt.Errorf("%s is not a collection", self.describe())
	}
	if len(kwargs) != 0 {
		return Nil, fmt.Errorf("at takes no keyword arguments")
	}
	if len(args) != 1 {
		return Nil, fmt.Errorf("at takes a single index, got %d arguments", len(args))
	}
	idx, ok := args[0].Number()
	if !ok || idx != float64(int64(idx)) {
		return Nil, fmt.Errorf("at index must be an integer, got %s", args[0].Kind())
	}
	return c.At(int(idx))
}
