// Package events carries change notifications from the graph store and the
// evaluation engine to whoever renders or persists the graph.
//
// The store and engine only know the Emitter interface. Bus is the in-process
// implementation: it fans every event out to local subscribers (the rendering
// layer builds its own bindings on top of these channels) and forwards it to
// any number of Publishers that bridge to external transports.
package events

import (
	"context"
	"time"
)

// Kind names what changed.
type Kind string

const (
	NodeAdded     Kind = "node_added"
	NodeRemoved   Kind = "node_removed"
	NodeMoved     Kind = "node_moved"
	EdgeAdded     Kind = "edge_added"
	EdgeRemoved   Kind = "edge_removed"
	ValuesUpdated Kind = "values_updated"
)

// Event is a single change notification.
type Event struct {
	Kind     Kind      `json:"kind"`
	NodeIDs  []string  `json:"node_ids,omitempty"`
	EdgeIDs  []string  `json:"edge_ids,omitempty"`
	Revision uint64    `json:"revision"`
	Time     time.Time `json:"time"`
}

// Emitter accepts events from the store and engine. Emit must not block on
// slow consumers.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Publisher bridges events to an external transport.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// NoopPublisher is a Publisher that does nothing (used when no transport is configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, ev Event) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
