package resource

import "github.com/golemcloud/golem-cloud-cli/canon"

// Handle is the i32 index a guest holds for a remote resource.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType classifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
	// EventTransferred is sent when the guest passes an owned handle back to
	// the remote side and its local entry is released.
	EventTransferred
)

var eventNames = [...]string{
	EventCreated:        "created",
	EventDropped:        "dropped",
	EventBorrowed:       "borrowed",
	EventBorrowReturned: "borrow returned",
	EventTransferred:    "transferred",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event represents a resource lifecycle event.
type Event struct {
	Remote canon.Handle
	Handle Handle
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend stores remote handles behind guest indexes.
type Backend interface {
	// Create stores a remote handle and returns its index.
	Create(remote canon.Handle) (Handle, error)

	// Get retrieves the remote handle behind an index.
	Get(handle Handle) (canon.Handle, bool)

	// Drop releases an index. It fails while borrows are outstanding.
	Drop(handle Handle) (canon.Handle, error)

	// Close releases all entries.
	Close() error
}

// Compile-time checks.
var (
	_ Backend           = (*LocalBackend)(nil)
	_ canon.HandleTable = (*Table)(nil)
)
