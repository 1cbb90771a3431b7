package config

// Production defaults: a 512-token window, at most 150 new tokens, replies
// trimmed past 50 words.
const (
	DefaultEngineBinary  = "llama-cli"
	DefaultContextSize   = 512
	DefaultMaxNewTokens  = 150
	DefaultReplyMaxWords = 50
	DefaultReplyMaxChars = 200
)

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Device:   "auto",
		Engine: EngineConfig{
			Binary: DefaultEngineBinary,
		},
		Generation: GenerationConfig{
			ContextSize:  DefaultContextSize,
			MaxNewTokens: DefaultMaxNewTokens,
		},
		Reply: ReplyConfig{
			MaxWords: DefaultReplyMaxWords,
			MaxChars: DefaultReplyMaxChars,
		},
	}
}
