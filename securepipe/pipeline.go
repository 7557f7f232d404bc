// Package securepipe implements the frame encode/decode pipeline for the
// streaming channel: serialized payloads are compressed then encrypted on the
// way out, and decrypted then decompressed on the way in.
//
// Cipher and Compressor are capability interfaces so the algorithms can be
// swapped without touching batching or session logic. The shipped defaults are
// ChaCha20-Poly1305 with a session-scoped shared key and gzip compression.
package securepipe

import (
	"github.com/pawtrack/walkstream/errors"
)

// Cipher provides symmetric authenticated encryption for wire frames.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Compressor shrinks payloads before encryption.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Pipeline combines a Compressor and a Cipher into the wire codec.
// Encode and Decode are exact inverses for any well-formed payload.
type Pipeline struct {
	cipher     Cipher
	compressor Compressor
}

// New creates a pipeline from the given cipher and compressor.
// Nil arguments select the passthrough implementations.
func New(cipher Cipher, compressor Compressor) *Pipeline {
	if cipher == nil {
		cipher = Passthrough{}
	}
	if compressor == nil {
		compressor = Passthrough{}
	}
	return &Pipeline{cipher: cipher, compressor: compressor}
}

// Encode transforms a serialized payload into a wire frame:
// compress, then encrypt.
func (p *Pipeline) Encode(payload []byte) ([]byte, error) {
	compressed, err := p.compressor.Compress(payload)
	if err != nil {
		return nil, errors.WrapTransient(err, "Pipeline", "Encode", "compress payload")
	}

	frame, err := p.cipher.Encrypt(compressed)
	if err != nil {
		return nil, errors.WrapTransient(err, "Pipeline", "Encode", "encrypt payload")
	}

	return frame, nil
}

// Decode transforms a wire frame back into the serialized payload:
// decrypt, then decompress. Malformed or tampered frames return an
// invalid-classed error so callers can drop the frame without ending
// the session.
func (p *Pipeline) Decode(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Pipeline", "Decode", "empty frame")
	}

	compressed, err := p.cipher.Decrypt(frame)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Pipeline", "Decode", "decrypt frame")
	}

	payload, err := p.compressor.Decompress(compressed)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Pipeline", "Decode", "decompress frame")
	}

	return payload, nil
}

// Passthrough is a no-op Cipher and Compressor used for tests and for
// channels where transport-level TLS is considered sufficient.
type Passthrough struct{}

// Encrypt returns the plaintext unchanged.
func (Passthrough) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }

// Decrypt returns the ciphertext unchanged.
func (Passthrough) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// Compress returns the data unchanged.
func (Passthrough) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns the data unchanged.
func (Passthrough) Decompress(data []byte) ([]byte, error) { return data, nil }
