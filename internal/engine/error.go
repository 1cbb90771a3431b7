package engine

import "errors"

// Error classes for generation failures. Callers branch on these to decide
// what to log; the reply sent back to the agent is the same either way.
var (
	// ErrOutOfMemory marks device memory exhaustion during generation.
	ErrOutOfMemory = errors.New("engine: device out of memory")

	// ErrGeneration marks every other generation failure.
	ErrGeneration = errors.New("engine: generation failed")
)
