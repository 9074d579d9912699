// Package registry holds the fixed catalog of node types.
//
// A NodeType declares three families of named buses: inputs, fed only by
// edges; sources, fed only by direct user edits; and outputs, each computed by
// a pure function of the merged inputs and sources. Every bus carries a
// value.Schema that validates incoming values and supplies a default.
//
// Node types are contributed by modules (see the modules/ tree) through the
// Module interface while the registry is being built. Once New returns, the
// registry is sealed and read-only, so it can be shared freely between
// goroutines. Validate performs a parity check between the registered types
// and the closed catalog in KnownTypes, catching a module that forgot to
// register a type, or one that registered something unexpected.
package registry
