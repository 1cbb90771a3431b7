// Package device picks the execution target for the inference engine.
package device

import (
	"io/fs"
	"os"
	"os/exec"
)

// Kind labels the class of compute the model runs on.
type Kind string

const (
	KindCUDA Kind = "cuda"
	KindCPU  Kind = "cpu"
)

// Target describes how the engine should place the model.
type Target struct {
	Kind Kind

	// GPULayers is the number of transformer layers offloaded to the
	// device. 999 is the llama.cpp convention for "all of them".
	GPULayers int

	// KVCacheType is the float type of the llama.cpp KV cache: f16 on
	// accelerated targets, f32 on CPU.
	KVCacheType string
}

// swappable in tests
var (
	lookPath = exec.LookPath
	statFile = func(name string) (fs.FileInfo, error) { return os.Stat(name) }
)

// Detect picks the execution target. A "cuda" or "cpu" override wins
// unconditionally; anything else (including "auto" and empty) probes the
// host for an NVIDIA runtime.
func Detect(override string) Target {
	switch override {
	case "cuda":
		return cudaTarget()
	case "cpu":
		return cpuTarget()
	}

	if hasCUDA() {
		return cudaTarget()
	}
	return cpuTarget()
}

func cudaTarget() Target {
	return Target{Kind: KindCUDA, GPULayers: 999, KVCacheType: "f16"}
}

func cpuTarget() Target {
	return Target{Kind: KindCPU, GPULayers: 0, KVCacheType: "f32"}
}

// hasCUDA reports whether an NVIDIA runtime is reachable: the management
// tool on PATH, or the first device node present.
func hasCUDA() bool {
	if _, err := lookPath("nvidia-smi"); err == nil {
		return true
	}
	if _, err := statFile("/dev/nvidia0"); err == nil {
		return true
	}
	return false
}
