package site

import (
	"sync"
)

// opener runs at most one open per site name at a time. A caller asking for
// a name which is already being opened waits for that open and shares its
// result, so a database file is never opened twice.
type opener struct {
	open func(name string) (*Store, error)

	mu      sync.Mutex
	pending map[string]*pendingOpen
}

// pendingOpen is one open in progress. done is closed once store and err
// are set.
type pendingOpen struct {
	done  chan struct{}
	store *Store
	err   error
}

func (o *opener) Open(name string) (*Store, error) {
	o.mu.Lock()
	if p, ok := o.pending[name]; ok {
		o.mu.Unlock()
		<-p.done
		return p.store, p.err
	}
	if o.pending == nil {
		o.pending = make(map[string]*pendingOpen)
	}
	p := &pendingOpen{done: make(chan struct{})}
	o.pending[name] = p
	o.mu.Unlock()

	p.store, p.err = o.open(name)

	o.mu.Lock()
	delete(o.pending, name)
	o.mu.Unlock()
	close(p.done)
	return p.store, p.err
}
