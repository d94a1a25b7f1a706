package persist

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// lz4Extension is the file extension for LZ4-compressed JSON state.
const lz4Extension = ".json.lz4"

// lz4HeaderSize is the size in bytes of the uncompressed-length prefix
// written before the compressed block, since lz4.UncompressBlock requires
// a preallocated destination slice.
const lz4HeaderSize = 8

// LZ4JSONCodec implements Codec by JSON-marshalling the state and
// compressing the result with a single LZ4 block. It is the codec of
// choice for large, mostly-repetitive run-cache payloads (a
// ContainerSequence's class lists compress well: neighboring containers
// share long common reference-name prefixes).
type LZ4JSONCodec struct{}

// NewLZ4JSONCodec creates an LZ4-compressed JSON codec.
func NewLZ4JSONCodec() *LZ4JSONCodec {
	return &LZ4JSONCodec{}
}

// Encode implements Codec.Encode by JSON-marshalling state and LZ4-compressing it.
func (c *LZ4JSONCodec) Encode(w io.Writer, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("lz4 json marshal: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	var compressor lz4.Compressor

	written, err := compressor.CompressBlock(raw, compressed)
	if err != nil {
		return fmt.Errorf("lz4 compress: %w", err)
	}

	// written == 0 means the block was incompressible; lz4 leaves the
	// destination unusable in that case, so fall back to storing raw.
	header := make([]byte, lz4HeaderSize)
	binary.LittleEndian.PutUint64(header, uint64(len(raw))) //nolint:gosec // len(raw) is always non-negative

	_, err = w.Write(header)
	if err != nil {
		return fmt.Errorf("lz4 write header: %w", err)
	}

	payload := compressed[:written]
	if written == 0 {
		payload = raw
	}

	_, err = w.Write(payload)
	if err != nil {
		return fmt.Errorf("lz4 write payload: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode by LZ4-decompressing and JSON-unmarshalling.
func (c *LZ4JSONCodec) Decode(r io.Reader, state any) error {
	all, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("lz4 read: %w", err)
	}

	if len(all) < lz4HeaderSize {
		return fmt.Errorf("lz4 decode: truncated header (%d bytes)", len(all))
	}

	rawLen := binary.LittleEndian.Uint64(all[:lz4HeaderSize])
	body := all[lz4HeaderSize:]

	raw := make([]byte, rawLen)

	n, err := lz4.UncompressBlock(body, raw)
	if err != nil {
		// Incompressible payloads were stored verbatim by Encode.
		if uint64(len(body)) == rawLen {
			raw = body
		} else {
			return fmt.Errorf("lz4 uncompress: %w", err)
		}
	} else {
		raw = raw[:n]
	}

	err = json.Unmarshal(raw, state)
	if err != nil {
		return fmt.Errorf("lz4 json unmarshal: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for LZ4-compressed JSON files.
func (c *LZ4JSONCodec) Extension() string {
	return lz4Extension
}
