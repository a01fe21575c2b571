package ledger

import "sync"

// Emitter fans permission errors out to process-wide listeners.
type Emitter struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(*PermissionError)
}

func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[int]func(*PermissionError))}
}

// Subscribe registers fn and returns a function that removes it.
func (e *Emitter) Subscribe(fn func(*PermissionError)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Emitter) Emit(err *PermissionError) {
	e.mu.RLock()
	fns := make([]func(*PermissionError), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(err)
	}
}
