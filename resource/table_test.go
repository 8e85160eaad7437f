package resource

import (
	"slices"
	"testing"

	"github.com/golemcloud/golem-cloud-cli/canon"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func (o *testObserver) types() []EventType {
	out := make([]EventType, len(o.events))
	for i, e := range o.events {
		out[i] = e.Type
	}
	return out
}

func TestTable_HandleTable(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	idx, err := table.Export(canon.KindOwn, remote(7))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if idx == 0 {
		t.Fatal("Export returned the reserved index")
	}

	got, err := table.Import(canon.KindBorrow, idx)
	if err != nil {
		t.Fatalf("Import borrow failed: %v", err)
	}
	if got != remote(7) {
		t.Errorf("Import borrow = %v, want %v", got, remote(7))
	}
	if table.Len() != 1 {
		t.Fatalf("Len after borrow = %d, want 1", table.Len())
	}

	got, err = table.Import(canon.KindOwn, idx)
	if err != nil {
		t.Fatalf("Import own failed: %v", err)
	}
	if got != remote(7) {
		t.Errorf("Import own = %v, want %v", got, remote(7))
	}
	if table.Len() != 0 {
		t.Errorf("Len after ownership transfer = %d, want 0", table.Len())
	}

	if _, err := table.Import(canon.KindOwn, idx); err == nil {
		t.Error("Import of a transferred handle should fail")
	}

	want := []EventType{EventCreated, EventTransferred}
	if got := obs.types(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h, _ := table.Insert(remote(1))
	table.Borrow(h)
	if _, err := table.Remove(h); err == nil {
		t.Fatal("Remove with outstanding borrow should fail")
	}
	table.ReturnBorrow(h)
	if _, err := table.Remove(h); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	want := []EventType{EventCreated, EventBorrowed, EventBorrowReturned, EventDropped}
	if got := obs.types(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	for _, e := range obs.events {
		if e.Handle != h || e.Remote != remote(1) {
			t.Errorf("event %s = (%d, %v), want (%d, %v)", e.Type, e.Handle, e.Remote, h, remote(1))
		}
	}

	table.Unsubscribe(obs)
	table.Insert(remote(2))
	if len(obs.events) != len(want) {
		t.Error("Should not receive events after Unsubscribe")
	}
}

func TestTable_LiveAndClose(t *testing.T) {
	table := NewTable()
	a, _ := table.Insert(remote(1))
	table.Insert(remote(2))
	table.Remove(a)

	if got := table.Live(); !slices.Equal(got, []canon.Handle{remote(2)}) {
		t.Errorf("Live = %v, want [%v]", got, remote(2))
	}

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := table.Export(canon.KindOwn, remote(3)); err == nil {
		t.Error("Export after Close should fail")
	}
}

func TestEventTypeString(t *testing.T) {
	if got := EventTransferred.String(); got != "transferred" {
		t.Errorf("String = %q, want %q", got, "transferred")
	}
	if got := EventType(99).String(); got != "unknown" {
		t.Errorf("String = %q, want %q", got, "unknown")
	}
}
