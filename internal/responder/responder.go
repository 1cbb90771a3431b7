// Package responder turns one support-agent message into one Krishna reply.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krishnadesk/bridge/internal/config"
	"github.com/krishnadesk/bridge/internal/engine"
	"github.com/krishnadesk/bridge/internal/model"
)

// systemPrompt matches the production prompt byte for byte, leading and
// trailing newlines included. Reply extraction anchors on the "Assistant:"
// label that buildPrompt appends after it.
const systemPrompt = "\nYou are Krishna, an AI model designed to assist agents in an Indian banking call center process. Provide a helpful and generic response to every question asked by the agent.\n"

const assistantLabel = "\nAssistant:"

// Fixed reply texts. Both are part of the output contract with callers and
// must not be reworded.
const (
	// emptyReplyFallback is sent when the model produces nothing usable.
	emptyReplyFallback = "I'm sorry, Krishna is here to help. Please provide more details so I can assist you better."

	// errorReply is sent when generation fails; Escalate is set alongside
	// it so a human picks the conversation up.
	errorReply = "I'm sorry, Krishna encountered an error. Please try again."
)

// Reply is the payload handed back to the agent.
type Reply struct {
	Response string `json:"response"`
	Escalate bool   `json:"escalate"`
}

// Responder generates replies through an engine bound to a loaded model.
type Responder struct {
	engine   engine.Engine
	info     *model.Info
	gen      config.GenerationConfig
	threads  int
	maxWords int
	maxChars int
}

// New creates a responder. The engine must already be bound to the model
// described by info.
func New(eng engine.Engine, info *model.Info, cfg *config.Config) *Responder {
	return &Responder{
		engine:   eng,
		info:     info,
		gen:      cfg.Generation,
		threads:  cfg.Engine.Threads,
		maxWords: cfg.Reply.MaxWords,
		maxChars: cfg.Reply.MaxChars,
	}
}

// Respond produces the reply for one agent message. Generation failures of
// any kind are absorbed: the returned reply then carries the standard
// apology and Escalate set, and the caller still reports success.
func (r *Responder) Respond(ctx context.Context, message string) (reply Reply) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("Panic during response generation", "panic", v)
			reply = Reply{Response: errorReply, Escalate: true}
		}
	}()

	result, err := r.engine.Generate(ctx, &engine.Request{
		Prompt: buildPrompt(message),
		Parameters: map[string]any{
			"context_size":   r.gen.ContextSize,
			"max_new_tokens": r.gen.MaxNewTokens,
			"threads":        r.threads,
			"pad_token_id":   int(r.info.PadTokenID),
		},
	})
	if err != nil {
		if errors.Is(err, engine.ErrOutOfMemory) {
			slog.Error("Device out of memory during generation", "error", err)
		} else {
			slog.Error("Generation failed", "error", err)
		}
		return Reply{Response: errorReply, Escalate: true}
	}

	slog.Debug("Generation finished",
		"engine", result.Metadata.Engine,
		"duration", result.Metadata.Duration,
		"output_len", result.Metadata.OutputLen,
	)

	return Reply{Response: r.polish(extractReply(result.Text)), Escalate: false}
}

// buildPrompt lays out the fixed system instruction, the agent's turn and
// the open assistant turn the model is asked to continue.
func buildPrompt(message string) string {
	return fmt.Sprintf("%s\nAgent: %s\nAssistant:", systemPrompt, message)
}

// extractReply pulls the assistant's answer out of the decoded output.
// Everything up to the last "Assistant:" label is prompt echo or the
// model's replay of the conversation, and only the first line after it is
// trusted; greedy small models tend to continue with an invented next turn.
func extractReply(raw string) string {
	parts := strings.Split(raw, assistantLabel)
	tail := strings.TrimSpace(parts[len(parts)-1])
	line, _, _ := strings.Cut(tail, "\n")
	return strings.TrimSpace(line)
}

// polish applies the reply policy: substitute the fallback for an empty
// candidate, shorten run-away candidates, and close with a period.
func (r *Responder) polish(candidate string) string {
	text := candidate
	switch {
	case text == "":
		text = emptyReplyFallback
	case len(strings.Fields(text)) > r.maxWords:
		// The trigger counts words but the cut is by runes. Long-standing
		// behavior; callers display the ellipsis as a "shortened" marker.
		runes := []rune(text)
		if len(runes) > r.maxChars {
			runes = runes[:r.maxChars]
		}
		text = string(runes) + "..."
	}

	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text
}
