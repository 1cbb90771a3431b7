// Package engine defines the text generation engine the bridge drives and
// the subprocess executor engines run on.
package engine

import (
	"context"
	"time"
)

// Engine runs one text generation to completion.
type Engine interface {
	// Generate produces a completion for the request. It blocks until the
	// underlying engine finishes; there is no streaming and no partial
	// output.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Close releases engine resources. Safe to call more than once.
	Close() error
}

// Request carries one prompt and the decoding parameters for it.
type Request struct {
	// Prompt is the fully formatted prompt, system instruction included.
	Prompt string

	// Parameters contains engine-specific decoding settings. Keys the
	// llama.cpp engine reads: context_size, max_new_tokens, threads and
	// pad_token_id.
	Parameters map[string]any
}

// Result is a finished generation.
type Result struct {
	// Text is the decoded output with engine diagnostics stripped. It still
	// contains the prompt echo; reply extraction happens above the engine.
	Text string

	Metadata *Metadata
}

// Metadata describes how a result was produced.
type Metadata struct {
	Engine    string        `json:"engine"`
	Model     string        `json:"model"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	OutputLen int           `json:"output_len"`
}
