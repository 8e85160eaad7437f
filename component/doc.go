// Package component reads and writes the section-level surface of
// WebAssembly Component Model binaries.
//
// Decode keeps every section verbatim and additionally parses the import,
// export and custom sections, which is all the packager needs to check
// coverage and reassemble a binary byte for byte. Builder assembles
// component binaries from sections, and CoreModuleBuilder synthesizes the
// forwarding core modules that carry generated stubs.
package component
