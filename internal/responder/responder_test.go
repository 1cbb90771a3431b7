package responder

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/krishnadesk/bridge/internal/config"
	"github.com/krishnadesk/bridge/internal/engine"
	"github.com/krishnadesk/bridge/internal/model"
)

// --- Mock types ---

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Generate(ctx context.Context, req *engine.Request) (*engine.Result, error) {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).(*engine.Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) Close() error {
	args := m.Called()
	return args.Error(0)
}

// panicEngine stands in for an engine hitting an unexpected bug.
type panicEngine struct{}

func (panicEngine) Generate(context.Context, *engine.Request) (*engine.Result, error) {
	panic("tokenizer exploded")
}

func (panicEngine) Close() error { return nil }

// --- Helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Engine:     config.EngineConfig{Binary: "llama-cli", Threads: 4},
		Generation: config.GenerationConfig{ContextSize: 512, MaxNewTokens: 150},
		Reply:      config.ReplyConfig{MaxWords: 50, MaxChars: 200},
	}
}

func testInfo() *model.Info {
	return &model.Info{
		Path:       "/models/krishna.gguf",
		Name:       "Krishna Chat 7B",
		EOSTokenID: 2,
		PadTokenID: 2,
	}
}

func engineResult(text string) *engine.Result {
	return &engine.Result{
		Text: text,
		Metadata: &engine.Metadata{
			Engine:    "llama.cpp",
			Model:     "/models/krishna.gguf",
			OutputLen: len(text),
		},
	}
}

// --- Tests ---

func TestResponder_Respond(t *testing.T) {
	eng := new(MockEngine)

	var captured *engine.Request
	eng.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*engine.Request)
		}).
		Return(engineResult(
			systemPrompt+"\nAgent: How do I block a lost debit card?\nAssistant: You can block it from the cards section of the banking portal",
		), nil).
		Once()

	r := New(eng, testInfo(), testConfig())
	reply := r.Respond(context.Background(), "How do I block a lost debit card?")

	assert.Equal(t, "You can block it from the cards section of the banking portal.", reply.Response)
	assert.False(t, reply.Escalate)

	require.NotNil(t, captured)
	assert.Equal(t, systemPrompt+"\nAgent: How do I block a lost debit card?\nAssistant:", captured.Prompt)
	assert.Equal(t, 512, captured.Parameters["context_size"])
	assert.Equal(t, 150, captured.Parameters["max_new_tokens"])
	assert.Equal(t, 4, captured.Parameters["threads"])
	assert.Equal(t, 2, captured.Parameters["pad_token_id"])

	eng.AssertExpectations(t)
}

func TestResponder_RespondUsesLastAssistantTurn(t *testing.T) {
	eng := new(MockEngine)
	eng.On("Generate", mock.Anything, mock.Anything).
		Return(engineResult(
			"Assistant label in instructions\nAssistant: first echo\nAgent: hello\nAssistant: The real answer",
		), nil).
		Once()

	r := New(eng, testInfo(), testConfig())
	reply := r.Respond(context.Background(), "hello")

	assert.Equal(t, "The real answer.", reply.Response)
	eng.AssertExpectations(t)
}

func TestResponder_RespondKeepsFirstLineOnly(t *testing.T) {
	eng := new(MockEngine)
	eng.On("Generate", mock.Anything, mock.Anything).
		Return(engineResult(
			"\nAssistant: Please verify the customer's identity first.\nAgent: and then?\nMore invented turns",
		), nil).
		Once()

	r := New(eng, testInfo(), testConfig())
	reply := r.Respond(context.Background(), "hello")

	assert.Equal(t, "Please verify the customer's identity first.", reply.Response)
	eng.AssertExpectations(t)
}

func TestResponder_RespondEmptyOutputFallsBack(t *testing.T) {
	for _, text := range []string{"", "   \n  ", "\nAssistant:", "\nAssistant:   \n\n"} {
		eng := new(MockEngine)
		eng.On("Generate", mock.Anything, mock.Anything).
			Return(engineResult(text), nil).
			Once()

		r := New(eng, testInfo(), testConfig())
		reply := r.Respond(context.Background(), "hello")

		assert.Equal(t,
			"I'm sorry, Krishna is here to help. Please provide more details so I can assist you better.",
			reply.Response, "engine text %q", text)
		assert.False(t, reply.Escalate)
		eng.AssertExpectations(t)
	}
}

func TestResponder_RespondShortensLongReplies(t *testing.T) {
	t.Run("over the word limit and the char limit", func(t *testing.T) {
		candidate := strings.TrimSpace(strings.Repeat("responses ", 60))

		eng := new(MockEngine)
		eng.On("Generate", mock.Anything, mock.Anything).
			Return(engineResult("\nAssistant: "+candidate), nil).
			Once()

		r := New(eng, testInfo(), testConfig())
		reply := r.Respond(context.Background(), "hello")

		assert.Equal(t, strings.Repeat("responses ", 20)+"...", reply.Response)
		eng.AssertExpectations(t)
	})

	t.Run("over the word limit but under the char limit", func(t *testing.T) {
		candidate := strings.TrimSpace(strings.Repeat("hi ", 51))

		eng := new(MockEngine)
		eng.On("Generate", mock.Anything, mock.Anything).
			Return(engineResult("\nAssistant: "+candidate), nil).
			Once()

		r := New(eng, testInfo(), testConfig())
		reply := r.Respond(context.Background(), "hello")

		assert.Equal(t, candidate+"...", reply.Response)
		eng.AssertExpectations(t)
	})

	t.Run("multibyte text is cut on rune boundaries", func(t *testing.T) {
		candidate := strings.TrimSpace(strings.Repeat("नमस्ते ", 60))

		eng := new(MockEngine)
		eng.On("Generate", mock.Anything, mock.Anything).
			Return(engineResult("\nAssistant: "+candidate), nil).
			Once()

		r := New(eng, testInfo(), testConfig())
		reply := r.Respond(context.Background(), "hello")

		assert.True(t, utf8.ValidString(reply.Response))
		assert.Equal(t, 203, utf8.RuneCountInString(reply.Response), "200 runes plus the ellipsis")
		eng.AssertExpectations(t)
	})
}

func TestResponder_RespondAppendsPeriod(t *testing.T) {
	tests := []struct {
		candidate string
		want      string
	}{
		{candidate: "Check the account status", want: "Check the account status."},
		{candidate: "Already terminated.", want: "Already terminated."},
		{candidate: "Is that correct?", want: "Is that correct?."},
	}

	for _, tt := range tests {
		eng := new(MockEngine)
		eng.On("Generate", mock.Anything, mock.Anything).
			Return(engineResult("\nAssistant: "+tt.candidate), nil).
			Once()

		r := New(eng, testInfo(), testConfig())
		reply := r.Respond(context.Background(), "hello")

		assert.Equal(t, tt.want, reply.Response)
		eng.AssertExpectations(t)
	}
}

func TestResponder_RespondEngineFailure(t *testing.T) {
	for _, engineErr := range []error{
		fmt.Errorf("%w: CUDA error: out of memory", engine.ErrOutOfMemory),
		fmt.Errorf("%w: exit status 1", engine.ErrGeneration),
	} {
		eng := new(MockEngine)
		eng.On("Generate", mock.Anything, mock.Anything).
			Return(nil, engineErr).
			Once()

		r := New(eng, testInfo(), testConfig())
		reply := r.Respond(context.Background(), "hello")

		assert.Equal(t, "I'm sorry, Krishna encountered an error. Please try again.", reply.Response)
		assert.True(t, reply.Escalate)
		eng.AssertExpectations(t)
	}
}

func TestResponder_RespondAbsorbsPanics(t *testing.T) {
	r := New(panicEngine{}, testInfo(), testConfig())

	reply := r.Respond(context.Background(), "hello")

	assert.Equal(t, "I'm sorry, Krishna encountered an error. Please try again.", reply.Response)
	assert.True(t, reply.Escalate)
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("Customer asks about FD rates")

	assert.Equal(t, systemPrompt+"\nAgent: Customer asks about FD rates\nAssistant:", prompt)
	assert.True(t, strings.HasPrefix(prompt, "\nYou are Krishna"))
	assert.Contains(t, prompt, "Indian banking call center")
	assert.True(t, strings.HasSuffix(prompt, "\nAssistant:"))
}

func TestExtractReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "echo then reply",
			raw:  "instructions\nAgent: hi\nAssistant: Hello agent",
			want: "Hello agent",
		},
		{
			name: "label absent keeps first line of whole output",
			raw:  "Hello agent\nsecond line",
			want: "Hello agent",
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "\nAssistant:   \n  Hello agent  \nnext",
			want: "Hello agent",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractReply(tt.raw))
		})
	}
}
