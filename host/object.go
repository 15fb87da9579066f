package host

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotIntrospectable is the host's "not this kind of object" condition:
// the object exists and is referable, but it will not answer a nominal
// class query. Callers treat this as a first-class outcome and fall back
// to the class hint carried on the proxy metadata.
var ErrNotIntrospectable = errors.New("object does not answer class queries")

// MethodFunc is the signature for host method implementations. self is nil
// when the function is unbound.
type MethodFunc func(self *Object, args []Value, kwargs map[string]Value) (Value, error)

// Func is a callable host value. Bound methods carry their receiver;
// free functions have a nil receiver.
type Func struct {
	Name string
	self *Object
	impl MethodFunc
}

// NewFunc creates an unbound callable.
func NewFunc(name string, impl MethodFunc) *Func {
	return &Func{Name: name, impl: impl}
}

// Bind returns a copy of f bound to the given receiver.
func (f *Func) Bind(self *Object) *Func {
	return &Func{Name: f.Name, self: self, impl: f.impl}
}

// Self returns the bound receiver, or nil for a free function.
func (f *Func) Self() *Object { return f.self }

// Call invokes the function with positional and keyword arguments.
func (f *Func) Call(args []Value, kwargs map[string]Value) (Value, error) {
	if f.impl == nil {
		return Nil, fmt.Errorf("function %q has no implementation", f.Name)
	}
	return f.impl(f.self, args, kwargs)
}

// Object is an opaque, identity-bearing entity in the host graph. It is
// never copied across the bridge; callers hold it through a handle. An
// Object may additionally be an application root, answer (or refuse) class
// queries, and expose container behavior.
type Object struct {
	id        string
	app       string
	class     string // nominal class; "" means the class query is refused
	classHint string // container-level class known from proxy metadata
	isApp     bool

	mu        sync.RWMutex
	props     map[string]Value
	methods   map[string]*Func
	container *Container
}

func newObject(id, app, class string) *Object {
	return &Object{
		id:      id,
		app:     app,
		class:   class,
		props:   make(map[string]Value),
		methods: make(map[string]*Func),
	}
}

// ID returns the object's host-side identifier.
func (o *Object) ID() string { return o.id }

// App returns the owning-application name, or "" when unknown.
func (o *Object) App() string { return o.app }

// IsApplication reports whether o is a top-level automation root.
func (o *Object) IsApplication() bool { return o.isApp }

// Class answers the nominal class query. Objects constructed without a
// class refuse the query with ErrNotIntrospectable; they may still carry
// a ClassHint from the collection they came out of.
func (o *Object) Class() (string, error) {
	if o.class == "" {
		return "", ErrNotIntrospectable
	}
	return o.class, nil
}

// ClassHint returns the container-level class name recorded on the proxy
// metadata, or "" when none is known.
func (o *Object) ClassHint() string { return o.classHint }

// SetClassHint records the container-level class name for objects that
// refuse the nominal class query.
func (o *Object) SetClassHint(hint string) { o.classHint = hint }

// String renders identity for display and error messages.
func (o *Object) String() string { return o.describe() }

// describe renders identity for display strings.
func (o *Object) describe() string {
	class, err := o.Class()
	if err != nil {
		if o.classHint != "" {
			class = o.classHint
		} else {
			class = "unknown"
		}
	}
	if o.isApp {
		return "application " + o.app
	}
	return class + " " + o.id
}

// Property returns the named property value, or nil when absent. Container
// objects answer "length" through this path.
func (o *Object) Property(name string) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if v, ok := o.props[name]; ok {
		return v
	}
	if o.container != nil && name == "length" {
		return IntValue(int64(o.container.Length()))
	}
	return Nil
}

// HasProperty reports whether the named property is set (distinct from a
// property holding nil).
func (o *Object) HasProperty(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if _, ok := o.props[name]; ok {
		return true
	}
	return o.container != nil && name == "length"
}

// SetProperty sets a property value.
func (o *Object) SetProperty(name string, v Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.props[name] = v
}

// PropertyNames returns the set property names in sorted order.
func (o *Object) PropertyNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.props))
	for name := range o.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddMethod attaches a method under the given selector. The stored
// function is bound to o at call time.
func (o *Object) AddMethod(selector string, impl MethodFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.methods[selector] = &Func{Name: selector, self: o, impl: impl}
}

// Method returns the bound callable for a selector. Container objects
// answer the built-in selectors "whose" and "at" when no user method
// shadows them.
func (o *Object) Method(selector string) (*Func, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if fn, ok := o.methods[selector]; ok {
		return fn, true
	}
	if o.container != nil {
		switch selector {
		case "whose":
			return &Func{Name: "whose", self: o, impl: containerWhose}, true
		case "at":
			return &Func{Name: "at", self: o, impl: containerAt}, true
		}
	}
	return nil, false
}

// SupportsFiltering reports whether o exposes filter-style access (a
// callable "whose" selector). One half of the container-shape probe.
func (o *Object) SupportsFiltering() bool {
	_, ok := o.Method("whose")
	return ok
}

// SupportsIndexing reports whether o exposes index-style access (a
// callable "at" selector). The other half of the container-shape probe.
func (o *Object) SupportsIndexing() bool {
	_, ok := o.Method("at")
	return ok
}

// Container returns the container behavior, or nil for scalar objects.
func (o *Object) Container() *Container {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.container
}

func (o *Object) setContainer(c *Container) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.container = c
}
