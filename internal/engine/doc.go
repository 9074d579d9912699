// Package engine evaluates the graph.
//
// A run takes a snapshot of the store, orders the visited nodes with the
// resolver and then, one node at a time in that order, gathers the node's
// inputs from its producers, validates them together with the node's own
// source values and invokes every output's compute function. Results are
// written back with a single commit at the end of the run, followed by one
// aggregated ValuesUpdated event.
//
// A node that fails keeps its previous outputs. Its consumers keep reading
// those stale values, so one broken node never cascades a hard failure through
// the graph. A cycle aborts the whole run before anything is written.
//
// Runs on the same engine are serialized: a call that arrives while another is
// in flight waits for it to finish.
package engine
