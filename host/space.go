package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// GenerateID creates a unique object ID with a class prefix.
func GenerateID(className string) string {
	prefix := strings.ToLower(strings.ReplaceAll(className, "::", "_"))
	return prefix + "_" + uuid.New().String()
}

// Space owns the live object graph: application roots and every object
// registered under them. Application roots are cached by name, so asking
// for the same application twice yields the same object identity.
type Space struct {
	mu      sync.RWMutex
	apps    map[string]*Object
	objects map[string]*Object
}

// NewSpace creates an empty object space.
func NewSpace() *Space {
	return &Space{
		apps:    make(map[string]*Object),
		objects: make(map[string]*Object),
	}
}

// DefineApplication returns the application root for name, creating and
// caching it on first use. The root answers the nominal class
// "application" and carries its own name as a property.
func (s *Space) DefineApplication(name string) *Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app, ok := s.apps[name]; ok {
		return app
	}
	app := newObject(GenerateID("application"), name, "application")
	app.isApp = true
	app.SetProperty("name", StringValue(name))
	s.apps[name] = app
	s.objects[app.id] = app
	return app
}

// Application returns the cached root for a previously defined
// application name.
func (s *Space) Application(name string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[name]
	if !ok {
		return nil, fmt.Errorf("unknown application %q", name)
	}
	return app, nil
}

// Applications returns the defined application roots sorted by name.
func (s *Space) Applications() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.apps))
	for name := range s.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Object, 0, len(names))
	for _, name := range names {
		out = append(out, s.apps[name])
	}
	return out
}

// NewObject creates and registers an object owned by an application. An
// empty class makes the object refuse nominal class queries; a hint can
// still be attached with SetClassHint.
func (s *Space) NewObject(app, class string) *Object {
	idClass := class
	if idClass == "" {
		idClass = "object"
	}
	obj := newObject(GenerateID(idClass), app, class)
	s.register(obj)
	return obj
}

// NewCollection creates and registers a collection object over a fixed
// item set. Object items that cannot answer their own class pick up the
// element class as their hint.
func (s *Space) NewCollection(app, elemClass string, items ...Value) *Object {
	hintItems(elemClass, items)
	obj := newCollectionObject(app, elemClass, FixedContainer(elemClass, items))
	s.register(obj)
	return obj
}

// NewLiveCollection creates and registers a collection object over a live
// item provider. The provider is responsible for hinting its own items.
func (s *Space) NewLiveCollection(app, elemClass string, items func() []Value) *Object {
	obj := newCollectionObject(app, elemClass, NewContainer(elemClass, items))
	s.register(obj)
	return obj
}

// RestoreObject registers an object under an existing ID, for rebuilding
// a graph from persisted or snapshotted state.
func (s *Space) RestoreObject(id, app, class string) *Object {
	obj := newObject(id, app, class)
	s.register(obj)
	return obj
}

// RecordsOf returns the record objects owned by an application, sorted by
// ID. Application roots and collections are excluded, so the result is
// suitable as a live collection provider.
func (s *Space) RecordsOf(appName string) []Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.objects))
	for id, obj := range s.objects {
		if obj.App() != appName || obj.IsApplication() || obj.Container() != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Value, 0, len(ids))
	for _, id := range ids {
		out = append(out, ObjectValue(s.objects[id]))
	}
	return out
}

// Lookup finds a registered object by ID.
func (s *Space) Lookup(id string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	return obj, ok
}

// Objects returns every registered object sorted by ID.
func (s *Space) Objects() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.objects))
	for id := range s.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.objects[id])
	}
	return out
}

func (s *Space) register(obj *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.id] = obj
}

func hintItems(elemClass string, items []Value) {
	for _, item := range items {
		if item.Kind() != KindObject {
			continue
		}
		obj := item.Object()
		if _, err := obj.Class(); err != nil && obj.ClassHint() == "" {
			obj.SetClassHint(elemClass)
		}
	}
}
