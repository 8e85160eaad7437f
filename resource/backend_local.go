package resource

import (
	stderrors "errors"
	"strconv"
	"sync"

	"github.com/golemcloud/golem-cloud-cli/canon"
)

var (
	ErrClosed            = stderrors.New("resource table closed")
	ErrInvalidHandle     = stderrors.New("invalid resource handle")
	ErrOutstandingBorrow = stderrors.New("cannot drop resource with outstanding borrows")
)

// LocalBackend is an in-memory index allocator with borrow tracking.
// Freed indexes are reused most-recent first.
type LocalBackend struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	remote      canon.Handle
	borrowCount uint32
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores a remote handle and returns a fresh index.
func (b *LocalBackend) Create(remote canon.Handle) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{remote: remote, valid: true}
	if len(b.freeList) > 0 {
		handle := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[handle-1] = e
		return handle, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// Get retrieves the remote handle behind an index.
func (b *LocalBackend) Get(handle Handle) (canon.Handle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return canon.Handle{}, false
	}
	return e.remote, true
}

func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 || int(handle) > len(b.entries) {
		return nil
	}
	e := &b.entries[handle-1]
	if !e.valid {
		return nil
	}
	return e
}

// Drop releases an index and returns the remote handle it held.
func (b *LocalBackend) Drop(handle Handle) (canon.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return canon.Handle{}, ErrClosed
	}
	e := b.lookup(handle)
	if e == nil {
		return canon.Handle{}, invalid(handle)
	}
	if e.borrowCount > 0 {
		return canon.Handle{}, ErrOutstandingBorrow
	}

	remote := e.remote
	*e = entry{}
	b.freeList = append(b.freeList, handle)
	return remote, nil
}

// Borrow increments the borrow count for an index.
func (b *LocalBackend) Borrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return false
	}
	e.borrowCount++
	return true
}

// ReturnBorrow decrements the borrow count for an index.
func (b *LocalBackend) ReturnBorrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return false
	}
	e.borrowCount--
	return true
}

// Live returns the remote handles still held, in index order.
func (b *LocalBackend) Live() []canon.Handle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []canon.Handle
	for i := range b.entries {
		if b.entries[i].valid {
			out = append(out, b.entries[i].remote)
		}
	}
	return out
}

// Len returns the number of live entries.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries) - len(b.freeList)
}

// Close releases all entries. Later calls fail with ErrClosed.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.entries = nil
	b.freeList = nil
	return nil
}

func invalid(handle Handle) error {
	return &handleError{handle: handle}
}

type handleError struct {
	handle Handle
}

func (e *handleError) Error() string {
	return ErrInvalidHandle.Error() + " " + strconv.FormatUint(uint64(e.handle), 10)
}

func (e *handleError) Unwrap() error { return ErrInvalidHandle }
