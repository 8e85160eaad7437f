// Package golemcli generates RPC stubs for WIT worlds.
//
// A world's imports are normally satisfied by whatever component it is
// linked with. The stub generator replaces every imported function with a
// stub that forwards the call to a remote worker, so a component can call
// another component's interface across process boundaries without changes
// to its own code.
//
// # Architecture Overview
//
// The pipeline runs in five stages, each in its own package:
//
//	golemcli/
//	├── parser/      WIT source to syntax trees (ast/)
//	├── resolve/     Name resolution, package graph and world flattening
//	├── canon/       Canonical type shapes, values and the flat core ABI
//	├── stubgen/     Stub functions and generated Go client packages
//	├── packager/    Stub core modules composed into the original component
//	├── component/   Component binary decoding and core module synthesis
//	├── rpc/         Invoker contract, failure taxonomy and wire format
//	├── bridge/      Local host module that runs stubs on wazero
//	├── resource/    Guest handle table for remote resources
//	├── pipeline/    End-to-end driver over an afero filesystem
//	├── config/      Layered configuration (file, environment, flags)
//	├── errors/      Structured errors tagged by pipeline phase
//	└── cmd/stubgen  Command line interface
//
// # Quick Start
//
// Generate stubs for a world and compose them into its component:
//
//	res, err := pipeline.Run(ctx, pipeline.Options{
//		Inputs:    []string{"wit/"},
//		World:     "golem:shop/app",
//		Component: "shop.wasm",
//		Compose:   true,
//		GoOut:     "gen",
//	})
//
// Or drive the stages directly:
//
//	docs, err := parser.ParseFiles(ctx, sources)
//	g, err := resolve.Resolve(docs)
//	out, err := stubgen.New(g, canon.NewMapper(g), stubgen.Options{}).Generate("app")
//
// Every generated function forwards through an rpc.Invoker. Failures below
// the callee's own error taxonomy land in the function's error channel when
// its result is a result<_, E>, and trap otherwise.
package golemcli
