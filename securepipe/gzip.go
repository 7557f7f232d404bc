package securepipe

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/pawtrack/walkstream/errors"
)

// GzipCompressor compresses payloads with gzip. Location batches are highly
// repetitive JSON, so even the default level shrinks them substantially.
type GzipCompressor struct {
	Level int
}

// NewGzipCompressor creates a compressor at the default compression level.
func NewGzipCompressor() GzipCompressor {
	return GzipCompressor{Level: gzip.DefaultCompression}
}

// Compress gzips the payload.
func (g GzipCompressor) Compress(data []byte) ([]byte, error) {
	level := g.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, errors.WrapInvalid(err, "GzipCompressor", "Compress", "set compression level")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.WrapTransient(err, "GzipCompressor", "Compress", "write payload")
	}
	if err := w.Close(); err != nil {
		return nil, errors.WrapTransient(err, "GzipCompressor", "Compress", "flush payload")
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Corrupt input returns an invalid-classed error.
func (g GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "GzipCompressor", "Decompress", "read gzip header")
	}
	defer r.Close()

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "GzipCompressor", "Decompress", "inflate payload")
	}
	return payload, nil
}
