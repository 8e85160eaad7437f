// Package resource tracks the remote resources a guest holds through
// generated stub modules.
//
// A guest never sees a remote handle directly. Each handle returned by a
// remote call is stored in a Table and the guest receives a small i32
// index instead:
//
//	table := resource.NewTable()
//	idx, _ := table.Insert(canon.Handle{URI: "urn:worker:cart-1", ID: 7})
//	remote, ok := table.Get(idx)
//
// Passing an owned handle back to the remote side releases its index;
// passing a borrowed one keeps it. Index 0 is never allocated.
//
// Observers receive Created, Dropped, Transferred and borrow events, which
// the bridge uses to log handle lifecycles.
package resource
