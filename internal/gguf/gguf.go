// Package gguf reads the metadata header of GGUF model files.
//
// Only the header and the key/value metadata section are parsed, enough to
// identify the model and its tokenizer settings without touching tensor
// data. Everything in the format is little-endian: the "GGUF" magic, a
// format version, the tensor count, the metadata pair count, then
// length-prefixed keys with typed values.
package gguf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Metadata value types from the GGUF format.
const (
	typeUint8   uint32 = 0
	typeInt8    uint32 = 1
	typeUint16  uint32 = 2
	typeInt16   uint32 = 3
	typeUint32  uint32 = 4
	typeInt32   uint32 = 5
	typeFloat32 uint32 = 6
	typeBool    uint32 = 7
	typeString  uint32 = 8
	typeArray   uint32 = 9
	typeUint64  uint32 = 10
	typeInt64   uint32 = 11
	typeFloat64 uint32 = 12
)

// magic is "GGUF" read as a little-endian uint32.
const magic uint32 = 0x46554747

// Sanity limits. A corrupt or truncated header must fail fast instead of
// driving gigabyte allocations.
const (
	maxKVCount   = 1 << 20
	maxStringLen = 1 << 20
	maxArrayLen  = 1 << 26
)

var (
	// ErrBadMagic means the file does not start with the GGUF magic.
	ErrBadMagic = errors.New("gguf: not a GGUF file")

	// ErrVersion means the format version is not supported.
	ErrVersion = errors.New("gguf: unsupported version")
)

// ModelInfo is the subset of GGUF metadata the bridge needs.
type ModelInfo struct {
	Version      uint32
	Architecture string
	Name         string

	// ContextLength is the trained context window, zero when the file does
	// not declare one for its architecture.
	ContextLength uint32

	BOSTokenID uint32
	EOSTokenID uint32

	// PadTokenID is only meaningful when HasPadToken is true; most chat
	// models do not define one.
	PadTokenID  uint32
	HasPadToken bool
}

// ReadModelInfo parses the metadata header of the GGUF file at path.
func ReadModelInfo(path string) (*ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readModelInfo(bufio.NewReader(f))
}

func readModelInfo(r io.Reader) (*ModelInfo, error) {
	var header struct {
		Magic   uint32
		Version uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("gguf: read header: %w", err)
	}
	if header.Magic != magic {
		return nil, ErrBadMagic
	}
	if header.Version < 2 || header.Version > 3 {
		return nil, fmt.Errorf("%w: %d", ErrVersion, header.Version)
	}

	var counts struct {
		Tensors uint64
		KVPairs uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &counts); err != nil {
		return nil, fmt.Errorf("gguf: read counts: %w", err)
	}
	if counts.KVPairs > maxKVCount {
		return nil, fmt.Errorf("gguf: implausible metadata count %d", counts.KVPairs)
	}

	meta := make(map[string]any, counts.KVPairs)
	for i := uint64(0); i < counts.KVPairs; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("gguf: metadata key %d: %w", i, err)
		}
		val, err := readValue(r)
		if err != nil {
			return nil, fmt.Errorf("gguf: metadata %q: %w", key, err)
		}
		// Arrays (token tables, merges) are consumed but come back nil.
		if val != nil {
			meta[key] = val
		}
	}

	info := &ModelInfo{Version: header.Version}
	info.Architecture, _ = meta["general.architecture"].(string)
	info.Name, _ = meta["general.name"].(string)
	if info.Architecture != "" {
		info.ContextLength = uintValue(meta, info.Architecture+".context_length")
	}
	info.BOSTokenID = uintValue(meta, "tokenizer.ggml.bos_token_id")
	info.EOSTokenID = uintValue(meta, "tokenizer.ggml.eos_token_id")
	if pad, ok := meta["tokenizer.ggml.padding_token_id"]; ok {
		info.PadTokenID = toUint32(pad)
		info.HasPadToken = true
	}

	return info, nil
}

func readString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readValue(r io.Reader) (any, error) {
	var t uint32
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return nil, err
	}
	return readTyped(r, t)
}

func readTyped(r io.Reader, t uint32) (any, error) {
	switch t {
	case typeUint8:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt8:
		var v int8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint16:
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt16:
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint32:
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt32:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat32:
		var v float32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeBool:
		var v uint8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return v != 0, nil
	case typeString:
		return readString(r)
	case typeArray:
		return nil, skipArray(r)
	case typeUint64:
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt64:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat64:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown value type %d", t)
	}
}

// skipArray consumes an array value without keeping it. Token and merge
// tables run to hundreds of thousands of entries and none of them matter
// here.
func skipArray(r io.Reader) error {
	var elem uint32
	if err := binary.Read(r, binary.LittleEndian, &elem); err != nil {
		return err
	}
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	if n > maxArrayLen {
		return fmt.Errorf("array length %d exceeds limit", n)
	}

	if size, fixed := scalarSize(elem); fixed {
		_, err := io.CopyN(io.Discard, r, int64(size)*int64(n))
		return err
	}

	switch elem {
	case typeString:
		for i := uint64(0); i < n; i++ {
			if _, err := readString(r); err != nil {
				return err
			}
		}
		return nil
	case typeArray:
		for i := uint64(0); i < n; i++ {
			if err := skipArray(r); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown array element type %d", elem)
	}
}

func scalarSize(t uint32) (int, bool) {
	switch t {
	case typeUint8, typeInt8, typeBool:
		return 1, true
	case typeUint16, typeInt16:
		return 2, true
	case typeUint32, typeInt32, typeFloat32:
		return 4, true
	case typeUint64, typeInt64, typeFloat64:
		return 8, true
	}
	return 0, false
}

func uintValue(meta map[string]any, key string) uint32 {
	v, ok := meta[key]
	if !ok {
		return 0
	}
	return toUint32(v)
}

// toUint32 widens or narrows the integer types metadata writers actually
// use for IDs and lengths.
func toUint32(v any) uint32 {
	switch n := v.(type) {
	case uint8:
		return uint32(n)
	case int8:
		if n >= 0 {
			return uint32(n)
		}
	case uint16:
		return uint32(n)
	case int16:
		if n >= 0 {
			return uint32(n)
		}
	case uint32:
		return n
	case int32:
		if n >= 0 {
			return uint32(n)
		}
	case uint64:
		return uint32(n)
	case int64:
		if n >= 0 {
			return uint32(n)
		}
	}
	return 0
}
