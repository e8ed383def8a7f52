package alloc

import "errors"

var (
	// ErrNoChunk indicates the chunk provider could not satisfy the base
	// allocation requested by New.
	ErrNoChunk = errors.New("alloc: chunk provider failed to acquire base chunk")

	// ErrBadSize indicates a negative base size was passed to New.
	ErrBadSize = errors.New("alloc: base size must not be negative")
)
