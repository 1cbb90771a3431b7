package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

//go:embed tuning.v1.schema.json
var tuningSchema string

// tuningFile is the on-disk shape of the optional YAML tuning file. Every
// section is optional; absent sections keep their defaults.
type tuningFile struct {
	Version    string            `json:"version"              yaml:"version"`
	Engine     *EngineConfig     `json:"engine,omitempty"     yaml:"engine,omitempty"`
	Generation *GenerationConfig `json:"generation,omitempty" yaml:"generation,omitempty"`
	Reply      *ReplyConfig      `json:"reply,omitempty"      yaml:"reply,omitempty"`
}

// applyTuningFile overlays the YAML tuning file at path onto c. The file is
// validated against the embedded schema before any value is applied, so a
// bad file never half-configures the bridge.
func (c *Config) applyTuningFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	schema, err := jsonschema.CompileString("tuning.v1.schema.json", tuningSchema)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}

	var file tuningFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}

	if file.Engine != nil {
		if file.Engine.Binary != "" {
			c.Engine.Binary = file.Engine.Binary
		}
		if file.Engine.Threads > 0 {
			c.Engine.Threads = file.Engine.Threads
		}
	}
	if file.Generation != nil {
		if file.Generation.ContextSize > 0 {
			c.Generation.ContextSize = file.Generation.ContextSize
		}
		if file.Generation.MaxNewTokens > 0 {
			c.Generation.MaxNewTokens = file.Generation.MaxNewTokens
		}
	}
	if file.Reply != nil {
		if file.Reply.MaxWords > 0 {
			c.Reply.MaxWords = file.Reply.MaxWords
		}
		if file.Reply.MaxChars > 0 {
			c.Reply.MaxChars = file.Reply.MaxChars
		}
	}

	return nil
}
