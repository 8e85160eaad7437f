// Package canon maps resolved WIT types onto a closed canonical shape algebra
// and defines the canonical values exchanged with remote workers.
//
// A Mapper assigns every resolve.TypeID a *Shape. Shapes are cached by
// identity, so recursive declarations become shared pointers rather than
// infinite trees.
//
// Values move between three representations:
//
//	Go (any)      Lower / Lift        dynamic Go values used by generated stubs
//	Value         Marshal / Unmarshal self-describing protowire bytes
//	core stack    LowerFlat / LiftFlat flat i32/i64/f32/f64 slots for wasm
//
// Flatten and FlattenFunc compute the canonical ABI core signature of a shape
// or function, using the wazero value types.
package canon
