// Package store is the graph store: the sole owner of node and edge identity.
//
// The store is an arena of nodes and edges addressed by id. Entities never
// reference each other directly; producer/consumer relationships are resolved
// by id lookup through the edge indexes kept here. Every mutation validates
// against the node type registry before touching any state, so a rejected
// call leaves the store exactly as it was, and no reader can observe an edge
// pointing at a missing node or bus.
//
// The evaluation engine never mutates identity or structure. It reads a
// Snapshot, which is a deep copy tagged with the store revision it was taken
// at, and writes results back through CommitOutputs.
//
// All methods are safe for concurrent use.
package store
