package bridge

import (
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/tether/host"
)

var log = commonlog.GetLogger("tether.bridge")

// HandleID is an opaque integer naming a live host object across the
// wire. IDs are allocated from 1 and never reused.
type HandleID int64

// Pool owns the two mutually inverse maps between identity-bearing host
// values and their handles. The same object always yields the same handle
// until it is released; after a release the object is a stranger again
// and a later encounter allocates a fresh handle.
type Pool struct {
	mu    sync.RWMutex
	next  HandleID
	byRef map[any]HandleID
	byID  map[HandleID]host.Value
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		byRef: make(map[any]HandleID),
		byID:  make(map[HandleID]host.Value),
	}
}

// IDFor returns the handle for a value, allocating one on first sight.
// Only objects and functions carry identity; anything else is a
// classification failure.
func (p *Pool) IDFor(v host.Value) (HandleID, error) {
	ref := v.Ref()
	if ref == nil {
		return 0, classificationf("%s values do not take handles", v.Kind())
	}
	p.mu.RLock()
	id, ok := p.byRef[ref]
	p.mu.RUnlock()
	if ok {
		return id, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.byRef[ref]; ok {
		return id, nil
	}
	p.next++
	id = p.next
	p.byRef[ref] = id
	p.byID[id] = v
	log.Debugf("allocated handle %d (%d live)", id, len(p.byID))
	return id, nil
}

// ObjectFor resolves a handle to its live value. Unknown and released
// handles are stale.
func (p *Pool) ObjectFor(id HandleID) (host.Value, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.byID[id]
	if !ok {
		return host.Nil, staleHandle(id)
	}
	return v, nil
}

// Release drops both mappings for a handle. Releasing an unknown or
// already-released handle is a no-op.
func (p *Pool) Release(id HandleID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.byID[id]
	if !ok {
		log.Debugf("release of unknown handle %d", id)
		return
	}
	delete(p.byID, id)
	delete(p.byRef, v.Ref())
	log.Debugf("released handle %d (%d live)", id, len(p.byID))
}

// Len reports how many handles are live.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}
