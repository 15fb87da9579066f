package bridge

import (
	"errors"
	"testing"

	"github.com/chazu/tether/host"
)

// ---------------------------------------------------------------------------
// Handle pool — identity and lifecycle
// ---------------------------------------------------------------------------

func TestPool_StableIDForSameObject(t *testing.T) {
	pool := NewPool()
	space := host.NewSpace()
	obj := host.ObjectValue(space.NewObject("archive", "note"))

	first, err := pool.IDFor(obj)
	if err != nil {
		t.Fatalf("IDFor returned error: %v", err)
	}
	second, err := pool.IDFor(obj)
	if err != nil {
		t.Fatalf("IDFor returned error: %v", err)
	}
	if first != second {
		t.Errorf("IDFor = %d then %d, want stable id", first, second)
	}
	if first != 1 {
		t.Errorf("first id = %d, want 1", first)
	}
}

func TestPool_DistinctObjectsGetDistinctIDs(t *testing.T) {
	pool := NewPool()
	space := host.NewSpace()
	a := host.ObjectValue(space.NewObject("archive", "note"))
	b := host.ObjectValue(space.NewObject("archive", "note"))

	idA, _ := pool.IDFor(a)
	idB, _ := pool.IDFor(b)
	if idA == idB {
		t.Errorf("distinct objects share id %d", idA)
	}
	if idA != 1 || idB != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", idA, idB)
	}
}

func TestPool_ObjectForResolvesLiveHandle(t *testing.T) {
	pool := NewPool()
	space := host.NewSpace()
	obj := space.NewObject("archive", "note")

	id, _ := pool.IDFor(host.ObjectValue(obj))
	got, err := pool.ObjectFor(id)
	if err != nil {
		t.Fatalf("ObjectFor returned error: %v", err)
	}
	if got.Object() != obj {
		t.Error("ObjectFor did not resolve to the same object")
	}
}

func TestPool_ReleaseMakesHandleStale(t *testing.T) {
	pool := NewPool()
	space := host.NewSpace()
	id, _ := pool.IDFor(host.ObjectValue(space.NewObject("archive", "note")))

	pool.Release(id)

	_, err := pool.ObjectFor(id)
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("ObjectFor error = %v, want *Failure", err)
	}
	if f.Kind != FailStaleHandle {
		t.Errorf("Kind = %s, want %s", f.Kind, FailStaleHandle)
	}
	if f.ObjID != id {
		t.Errorf("ObjID = %d, want %d", f.ObjID, id)
	}
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	pool := NewPool()
	space := host.NewSpace()
	id, _ := pool.IDFor(host.ObjectValue(space.NewObject("archive", "note")))

	pool.Release(id)
	pool.Release(id)
	pool.Release(999)

	if pool.Len() != 0 {
		t.Errorf("Len = %d, want 0", pool.Len())
	}
}

func TestPool_NoIDReuseAfterRelease(t *testing.T) {
	pool := NewPool()
	space := host.NewSpace()
	obj := host.ObjectValue(space.NewObject("archive", "note"))

	first, _ := pool.IDFor(obj)
	pool.Release(first)

	// The object is a stranger again; it gets a fresh id, never the old one.
	second, err := pool.IDFor(obj)
	if err != nil {
		t.Fatalf("IDFor returned error: %v", err)
	}
	if second == first {
		t.Errorf("released id %d was reused", first)
	}
	if second != 2 {
		t.Errorf("second id = %d, want 2", second)
	}
}

func TestPool_FuncsCarryIdentityToo(t *testing.T) {
	pool := NewPool()
	fn := host.NewFunc("probe", func(self *host.Object, args []host.Value, kwargs map[string]host.Value) (host.Value, error) {
		return host.Nil, nil
	})

	first, err := pool.IDFor(host.FuncValue(fn))
	if err != nil {
		t.Fatalf("IDFor returned error: %v", err)
	}
	second, _ := pool.IDFor(host.FuncValue(fn))
	if first != second {
		t.Errorf("IDFor = %d then %d, want stable id", first, second)
	}
}

func TestPool_PlainValuesDoNotTakeHandles(t *testing.T) {
	pool := NewPool()

	for _, v := range []host.Value{
		host.Nil,
		host.IntValue(42),
		host.StringValue("x"),
		host.ListValue(host.IntValue(1)),
	} {
		_, err := pool.IDFor(v)
		var f *Failure
		if !errors.As(err, &f) {
			t.Fatalf("IDFor(%s) error = %v, want *Failure", v.Kind(), err)
		}
		if f.Kind != FailClassification {
			t.Errorf("IDFor(%s) kind = %s, want %s", v.Kind(), f.Kind, FailClassification)
		}
	}
}
