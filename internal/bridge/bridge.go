// Package bridge owns the stdin/stdout contract: one JSON request in, one
// JSON object out, and an exit code that tells the caller which kind of
// object it got.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/krishnadesk/bridge/internal/responder"
)

// Exit codes. Every {"error": ...} object exits non-zero; a response
// object, the escalate apology included, exits zero.
const (
	ExitOK    = 0
	ExitError = 1
)

// Responder is the bridge's view of reply generation.
type Responder interface {
	Respond(ctx context.Context, message string) responder.Reply
}

// Request is the single accepted input shape. Message is a pointer so a
// missing key can be told apart from an empty message: empty is a valid
// request, absent is not.
type Request struct {
	Message *string `json:"message"`
}

type errorObject struct {
	Error string `json:"error"`
}

// Bridge runs one request/response exchange.
type Bridge struct {
	responder Responder
	out       io.Writer

	cleanup     func()
	cleanupOnce sync.Once
}

// New creates a bridge writing to out. cleanup runs exactly once, on every
// exit path, and must tolerate being called after a failure at any stage.
func New(r Responder, out io.Writer, cleanup func()) *Bridge {
	return &Bridge{
		responder: r,
		out:       out,
		cleanup:   cleanup,
	}
}

// Run reads the request from in, produces exactly one JSON object on the
// output and returns the process exit code.
func (b *Bridge) Run(ctx context.Context, in io.Reader) (code int) {
	defer b.Cleanup()
	defer func() {
		if v := recover(); v != nil {
			slog.Error("Unhandled panic", "panic", v)
			b.writeError(fmt.Sprintf("Error processing request: %v", v))
			code = ExitError
		}
	}()

	data, err := io.ReadAll(in)
	if err != nil {
		b.writeError(fmt.Sprintf("Error processing request: %v", err))
		return ExitError
	}

	input := strings.TrimSpace(string(data))
	if input == "" {
		b.writeError("No input data received.")
		return ExitError
	}

	var req Request
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		b.writeError(fmt.Sprintf("Error parsing input JSON: %v", err))
		return ExitError
	}
	if req.Message == nil {
		b.writeError("Input JSON does not contain 'message' key.")
		return ExitError
	}

	slog.Info("Request received", "message_len", len(*req.Message))

	reply := b.responder.Respond(ctx, *req.Message)
	if err := writeJSON(b.out, reply); err != nil {
		slog.Error("Failed to write response", "error", err)
		return ExitError
	}

	return ExitOK
}

// Cleanup triggers the registered cleanup exactly once. It must not panic;
// failures this late have nowhere to go.
func (b *Bridge) Cleanup() {
	b.cleanupOnce.Do(func() {
		if b.cleanup != nil {
			b.cleanup()
		}
	})
}

// WriteError emits an {"error": ...} object. It also serves startup
// failures that happen before a Bridge exists.
func WriteError(w io.Writer, msg string) {
	if err := writeJSON(w, errorObject{Error: msg}); err != nil {
		slog.Error("Failed to write error object", "error", err)
	}
}

func (b *Bridge) writeError(msg string) {
	WriteError(b.out, msg)
}

// writeJSON emits v as a single line. HTML escaping is off so replies keep
// characters like & and < readable.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
