package resource

import (
	"sync"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/errors"
)

// Table maps guest indexes to remote resource handles for one instance.
// It implements canon.HandleTable so flat lifting and lowering can move
// handles across the guest boundary.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a table backed by a LocalBackend.
func NewTable() *Table {
	return &Table{backend: NewLocalBackend()}
}

// Insert hands a remote handle to the guest and returns its index.
func (t *Table) Insert(remote canon.Handle) (Handle, error) {
	handle, err := t.backend.Create(remote)
	if err != nil {
		return 0, err
	}
	t.notify(Event{Type: EventCreated, Handle: handle, Remote: remote})
	return handle, nil
}

// Get retrieves the remote handle behind an index.
func (t *Table) Get(handle Handle) (canon.Handle, bool) {
	return t.backend.Get(handle)
}

// Remove releases an index after the guest dropped it.
func (t *Table) Remove(handle Handle) (canon.Handle, error) {
	return t.release(handle, EventDropped)
}

func (t *Table) release(handle Handle, typ EventType) (canon.Handle, error) {
	remote, err := t.backend.Drop(handle)
	if err != nil {
		return canon.Handle{}, err
	}
	t.notify(Event{Type: typ, Handle: handle, Remote: remote})
	return remote, nil
}

// Borrow marks an index as lent for the duration of a call.
func (t *Table) Borrow(handle Handle) bool {
	if !t.backend.Borrow(handle) {
		return false
	}
	remote, _ := t.backend.Get(handle)
	t.notify(Event{Type: EventBorrowed, Handle: handle, Remote: remote})
	return true
}

// ReturnBorrow ends a borrow started with Borrow.
func (t *Table) ReturnBorrow(handle Handle) bool {
	if !t.backend.ReturnBorrow(handle) {
		return false
	}
	remote, _ := t.backend.Get(handle)
	t.notify(Event{Type: EventBorrowReturned, Handle: handle, Remote: remote})
	return true
}

// Export implements canon.HandleTable. Owned and borrowed handles both get
// a fresh index; a borrowed one is released by the caller once the call
// returns.
func (t *Table) Export(kind canon.Kind, h canon.Handle) (uint32, error) {
	if kind != canon.KindOwn && kind != canon.KindBorrow {
		errors.Invariant(errors.PhaseBind, "export of %s as a handle", kind)
	}
	handle, err := t.Insert(h)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, "export handle")
	}
	return uint32(handle), nil
}

// Import implements canon.HandleTable. An owned handle leaves the table:
// ownership moves to the callee. A borrowed handle stays.
func (t *Table) Import(kind canon.Kind, idx uint32) (canon.Handle, error) {
	handle := Handle(idx)
	switch kind {
	case canon.KindOwn:
		remote, err := t.release(handle, EventTransferred)
		if err != nil {
			return canon.Handle{}, errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, "import owned handle")
		}
		return remote, nil
	case canon.KindBorrow:
		remote, ok := t.backend.Get(handle)
		if !ok {
			return canon.Handle{}, errors.Wrap(errors.PhaseBind, errors.KindInvalidData, invalid(handle), "import borrowed handle")
		}
		return remote, nil
	default:
		errors.Invariant(errors.PhaseBind, "import of %s as a handle", kind)
		return canon.Handle{}, nil
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live indexes.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Live returns the remote handles the guest still holds.
func (t *Table) Live() []canon.Handle {
	return t.backend.Live()
}

// Close releases all indexes and stops accepting new ones.
func (t *Table) Close() error {
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
