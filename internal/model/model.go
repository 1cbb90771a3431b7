// Package model resolves the configured model location into a loadable GGUF
// file and reads the metadata the bridge needs from it.
package model

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/krishnadesk/bridge/internal/gguf"
)

// Info describes the loaded model.
type Info struct {
	// Path is the resolved GGUF file.
	Path string

	// Architecture and Name come from the GGUF metadata and may be empty
	// for files converted by older tools.
	Architecture string
	Name         string

	// ContextLength is the model's trained context window, zero when the
	// file does not declare one.
	ContextLength uint32

	// Token IDs from the tokenizer metadata. PadTokenID falls back to
	// EOSTokenID when the file defines no padding token, which is the norm
	// for chat models.
	BOSTokenID uint32
	EOSTokenID uint32
	PadTokenID uint32
}

// Load resolves path, a GGUF file or a directory containing one, and reads
// the model metadata. It runs once per invocation, before any input is read.
func Load(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, &NotFoundError{Path: path}
	}

	resolved := path
	if st.IsDir() {
		resolved, err = resolveInDir(path)
		if err != nil {
			return nil, err
		}
	}

	meta, err := gguf.ReadModelInfo(resolved)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}

	info := &Info{
		Path:          resolved,
		Architecture:  meta.Architecture,
		Name:          meta.Name,
		ContextLength: meta.ContextLength,
		BOSTokenID:    meta.BOSTokenID,
		EOSTokenID:    meta.EOSTokenID,
		PadTokenID:    meta.PadTokenID,
	}
	if !meta.HasPadToken {
		info.PadTokenID = meta.EOSTokenID
	}

	return info, nil
}

// resolveInDir picks the GGUF file to load from a model directory. With
// several candidates the lexicographically first wins, so the choice is
// stable across invocations.
func resolveInDir(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.gguf"))
	if err != nil {
		return "", fmt.Errorf("scan model directory: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no .gguf model file in %s", dir)
	}

	sort.Strings(matches)
	if len(matches) > 1 {
		slog.Warn("Multiple GGUF files in model directory, using first",
			"dir", dir,
			"chosen", filepath.Base(matches[0]),
			"candidates", len(matches),
		)
	}

	return matches[0], nil
}
