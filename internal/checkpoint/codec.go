package checkpoint

import "github.com/interdex-project/interdex/pkg/persist"

// Codec is an alias for [persist.Codec].
type Codec = persist.Codec

// JSONCodec is an alias for [persist.JSONCodec].
type JSONCodec = persist.JSONCodec

// GobCodec is an alias for [persist.GobCodec].
type GobCodec = persist.GobCodec

// LZ4JSONCodec is an alias for [persist.LZ4JSONCodec].
type LZ4JSONCodec = persist.LZ4JSONCodec

// NewJSONCodec creates a JSON codec with pretty-printing.
func NewJSONCodec() *JSONCodec {
	return persist.NewJSONCodec()
}

// NewGobCodec creates a gob codec.
func NewGobCodec() *GobCodec {
	return persist.NewGobCodec()
}

// NewLZ4JSONCodec creates an LZ4-compressed JSON codec, used for the
// container-sequence component of a run-cache entry.
func NewLZ4JSONCodec() *LZ4JSONCodec {
	return persist.NewLZ4JSONCodec()
}
