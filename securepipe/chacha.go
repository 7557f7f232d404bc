package securepipe

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pawtrack/walkstream/errors"
)

// ChaChaCipher is an XChaCha20-Poly1305 cipher with a session-scoped shared
// key. Each frame carries its own random nonce, prepended to the ciphertext.
type ChaChaCipher struct {
	key []byte
}

// NewChaChaCipher creates a cipher from a 32-byte shared key.
func NewChaChaCipher(key []byte) (*ChaChaCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key)),
			"ChaChaCipher", "NewChaChaCipher", "validate key")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &ChaChaCipher{key: k}, nil
}

// Encrypt seals the plaintext under a fresh random nonce.
// Output layout: nonce || ciphertext+tag.
func (c *ChaChaCipher) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, errors.WrapTransient(err, "ChaChaCipher", "Encrypt", "construct aead")
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.WrapTransient(err, "ChaChaCipher", "Encrypt", "generate nonce")
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a frame produced by Encrypt. Tampered or truncated frames
// fail authentication and return an invalid-classed error.
func (c *ChaChaCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, errors.WrapTransient(err, "ChaChaCipher", "Decrypt", "construct aead")
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "ChaChaCipher", "Decrypt", "frame too short")
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrFrameTampered, "ChaChaCipher", "Decrypt", "authenticate frame")
	}

	return plaintext, nil
}
