// Package idgen provides short, URL-safe unique node ids backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is prepended to every generated node id.
const DefaultPrefix = "n-"

// Alphabet excludes '.', which separates node ids from bus names in endpoints.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// Generator produces node ids.
type Generator func() (string, error)

// NodeID returns a new unique node id.
func NodeID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return DefaultPrefix + id, nil
}

// Sequential returns a deterministic generator ("n-1", "n-2", ...) for tests
// and reproducible replays.
func Sequential() Generator {
	var n int
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s%d", DefaultPrefix, n), nil
	}
}
