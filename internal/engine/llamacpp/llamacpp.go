// Package llamacpp drives the llama.cpp llama-cli binary as a text
// generation engine.
package llamacpp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/krishnadesk/bridge/internal/device"
	"github.com/krishnadesk/bridge/internal/engine"
	"github.com/krishnadesk/bridge/mapsafe"
)

// EngineName identifies this engine in logs and result metadata.
const EngineName = "llama.cpp"

// Engine implements engine.Engine over a llama-cli subprocess. The
// subprocess owns all model memory, so closing the engine only has to reap
// an in-flight run.
type Engine struct {
	executor  *engine.Executor
	target    device.Target
	modelPath string

	mu        sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates an engine for the model at modelPath. Generations run without
// a deadline; the caller decides how long to wait.
func New(binary, modelPath string, target device.Target) (*Engine, error) {
	executor, err := engine.NewExecutor(binary, 0)
	if err != nil {
		return nil, err
	}

	return &Engine{
		executor:  executor,
		target:    target,
		modelPath: modelPath,
	}, nil
}

// NewWithExecutor wires a prepared executor. Tests use it.
func NewWithExecutor(executor *engine.Executor, modelPath string, target device.Target) *Engine {
	return &Engine{
		executor:  executor,
		target:    target,
		modelPath: modelPath,
	}
}

// Generate runs one greedy completion to the end and returns the scrubbed
// output.
func (e *Engine) Generate(ctx context.Context, req *engine.Request) (*engine.Result, error) {
	args := e.buildArgs(req)

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
	}()

	start := time.Now()
	stdout, stderr, err := e.executor.Execute(ctx, args, nil)
	if err != nil {
		return nil, classify(err, stderr)
	}

	text := scrub(string(stdout))

	return &engine.Result{
		Text: text,
		Metadata: &engine.Metadata{
			Engine:    EngineName,
			Model:     e.modelPath,
			Timestamp: start,
			Duration:  time.Since(start),
			OutputLen: len(text),
		},
	}, nil
}

// buildArgs assembles the llama-cli invocation. Decoding is pinned to
// greedy: a zero temperature and a top-k of one leave the sampler no choice
// to make, so the same message always yields the same reply.
func (e *Engine) buildArgs(req *engine.Request) []string {
	p := req.Parameters

	args := []string{
		"--model", e.modelPath,
		"--ctx-size", strconv.Itoa(mapsafe.Get(p, "context_size", 512)),
		"--n-predict", strconv.Itoa(mapsafe.Get(p, "max_new_tokens", 150)),
		"--temp", "0",
		"--top-k", "1",
		"--n-gpu-layers", strconv.Itoa(e.target.GPULayers),
		"--cache-type-k", e.target.KVCacheType,
		"--cache-type-v", e.target.KVCacheType,
	}

	if threads := mapsafe.Get(p, "threads", 0); threads > 0 {
		args = append(args, "--threads", strconv.Itoa(threads))
	}

	// pad_token_id is carried for engines that batch; llama-cli generates a
	// single sequence and never pads, so there is no flag to map it to.

	// One prompt in, the full text out, interactive conveniences off. The
	// prompt echo is kept on purpose: reply extraction anchors on it.
	args = append(args, "--simple-io", "--no-warmup", "--no-conversation")
	args = append(args, "--prompt", req.Prompt)

	return args
}

// Close cancels any in-flight generation. Cleanup failures have nowhere
// useful to go this late, so they are logged and swallowed.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if e.cancel != nil {
			e.cancel()
		}
		e.mu.Unlock()

		slog.Debug("Engine closed", "engine", EngineName, "model", e.modelPath)
	})
	return nil
}

// noisePrefixes mark the progress and system lines llama-cli prints around
// the generated text.
var noisePrefixes = []string{
	"build:",
	"common_",
	"ggml_",
	"gguf_",
	"generate:",
	"llama_",
	"load:",
	"load_tensors:",
	"main:",
	"print_info:",
	"sampler",
	"system_info:",
	"warming up",
}

// scrub drops engine diagnostics from stdout, keeping prompt echo and
// generated text.
func scrub(output string) string {
	lines := strings.Split(output, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isNoise(line string) bool {
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// oomMarkers are the stderr fragments llama.cpp and its CUDA allocator emit
// when device or host memory runs out.
var oomMarkers = []string{
	"out of memory",
	"failed to allocate",
	"unable to allocate",
	"cuda error",
}

// classify turns an execution failure into an engine error class based on
// what the subprocess wrote to stderr.
func classify(err error, stderr []byte) error {
	detail := strings.ToLower(string(stderr))
	for _, marker := range oomMarkers {
		if strings.Contains(detail, marker) {
			return fmt.Errorf("%w: %s", engine.ErrOutOfMemory, lastLine(stderr))
		}
	}

	if len(stderr) > 0 {
		return fmt.Errorf("%w: %v: %s", engine.ErrGeneration, err, lastLine(stderr))
	}
	return fmt.Errorf("%w: %v", engine.ErrGeneration, err)
}

// lastLine returns the final non-empty stderr line, usually the actual
// error message after pages of loader output.
func lastLine(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
