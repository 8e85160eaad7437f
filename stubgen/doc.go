// Package stubgen turns the imports of a resolved world into remote-call
// stubs.
//
// Every imported interface becomes a Module holding one Func per function,
// resource constructor, method and static, plus a synthesized [drop] per
// resource. World-level imported functions are gathered in RootModule and
// exported items are reported as pass-through. A Func can be called
// dynamically (Func.Call, Func.Invoke) or emitted as Go source: a Client
// type with one method per function and a proxy type per resource.
//
// Both paths apply the same failure mapping. A function whose result is
// result<T, E> reports invocation failures in its error case; any other
// function traps with *rpc.Trap.
//
// Generation is deterministic: the same graph always yields byte-identical
// source.
package stubgen
