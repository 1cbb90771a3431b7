package envvar

const (
	// ModelPath is the environment variable pointing at the GGUF model file
	// or at a directory containing one. Required.
	ModelPath = "MODEL_PATH"

	// KrishnaEnv is the environment variable used to determine the environment
	KrishnaEnv = "KRISHNA_ENV"

	// KrishnaLogLevel sets the minimum log level (debug, info, warn, error)
	KrishnaLogLevel = "KRISHNA_LOG_LEVEL"

	// KrishnaLogFile, when set, mirrors logs into a rotating file at that path
	KrishnaLogFile = "KRISHNA_LOG_FILE"

	// KrishnaLlamaBin overrides the llama.cpp binary name or path
	KrishnaLlamaBin = "KRISHNA_LLAMA_BIN"

	// KrishnaDevice forces the execution target: auto, cuda or cpu
	KrishnaDevice = "KRISHNA_DEVICE"

	// KrishnaConfig points at an optional YAML tuning file
	KrishnaConfig = "KRISHNA_CONFIG"
)
