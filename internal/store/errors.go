package store

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/node"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	ErrNodeNotFound          = errors.New("node not found")
	ErrUnknownBus            = errors.New("unknown bus")
	ErrInputAlreadyConnected = errors.New("input already connected")
	ErrInvalidSourceValue    = errors.New("invalid source value")
)

// NodeNotFoundError reports an id that does not exist in the store.
type NodeNotFoundError struct {
	ID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrNodeNotFound, e.ID)
}

func (e *NodeNotFoundError) Unwrap() error { return ErrNodeNotFound }

// UnknownBusError reports a bus name that the node's type does not declare
// in the required family.
type UnknownBusError struct {
	NodeID string
	Type   string
	Bus    string
	Want   string
}

func (e *UnknownBusError) Error() string {
	return fmt.Sprintf("%s: node %q of type %q has no %s named %q", ErrUnknownBus, e.NodeID, e.Type, e.Want, e.Bus)
}

func (e *UnknownBusError) Unwrap() error { return ErrUnknownBus }

// InputConnectedError reports an attempt to give an input a second producer.
type InputConnectedError struct {
	To       node.Endpoint
	Existing string
}

func (e *InputConnectedError) Error() string {
	return fmt.Sprintf("%s: %s is already fed by edge %s", ErrInputAlreadyConnected, e.To, e.Existing)
}

func (e *InputConnectedError) Unwrap() error { return ErrInputAlreadyConnected }

// InvalidSourceError reports a source value rejected by its slot's schema.
// It matches both ErrInvalidSourceValue and the underlying cause.
type InvalidSourceError struct {
	NodeID string
	Slot   string
	Err    error
}

func (e *InvalidSourceError) Error() string {
	id := e.NodeID
	if id == "" {
		id = "(new node)"
	}
	return fmt.Sprintf("%s: node %s, source %q: %v", ErrInvalidSourceValue, id, e.Slot, e.Err)
}

func (e *InvalidSourceError) Unwrap() []error { return []error{ErrInvalidSourceValue, e.Err} }
