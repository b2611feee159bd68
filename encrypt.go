package polycrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the only accepted key length, in bytes.
const KeySize = 32

// Encryptor handles encryption/decryption operations.
//
// Ciphertext produced by an Encryptor is laid out as nonce || payload || tag,
// so its length is always len(plaintext) + Overhead().
type Encryptor interface {
	// Encrypt encrypts plaintext under a fresh random nonce.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt authenticates and decrypts ciphertext.
	Decrypt(ciphertext []byte) ([]byte, error)

	// Overhead returns the fixed number of bytes Encrypt adds to a plaintext.
	Overhead() int
}

// aeadEncryptor implements Encryptor over any AEAD with random nonces.
// The AEAD is immutable after construction, so a single encryptor may be
// shared across goroutines.
type aeadEncryptor struct {
	aead   cipher.AEAD
	random io.Reader
}

// AES returns an AES-256-GCM encryptor.
// Key must be exactly KeySize bytes.
func AES(key []byte) (Encryptor, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailure, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailure, err)
	}

	return &aeadEncryptor{aead: gcm, random: rand.Reader}, nil
}

// XChaCha returns an XChaCha20-Poly1305 encryptor.
// Key must be exactly KeySize bytes.
func XChaCha(key []byte) (Encryptor, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailure, err)
	}

	return &aeadEncryptor{aead: aead, random: rand.Reader}, nil
}

// NewEncryptor returns the encryptor for algo keyed with key.
// The key length is checked before any cipher state is built.
func NewEncryptor(algo EncryptAlgo, key []byte) (Encryptor, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	switch algo {
	case EncryptAES:
		return AES(key)
	case EncryptXChaCha:
		return XChaCha(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
}

// Encrypt encrypts plaintext under key with DefaultAlgo.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	enc, err := NewEncryptor(DefaultAlgo, key)
	if err != nil {
		return nil, err
	}
	return enc.Encrypt(plaintext)
}

// Decrypt decrypts ciphertext produced by Encrypt under the same key.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	enc, err := NewEncryptor(DefaultAlgo, key)
	if err != nil {
		return nil, err
	}
	return enc.Decrypt(ciphertext)
}

// Overhead returns the ciphertext expansion of algo in bytes, or 0 for an
// unknown algorithm.
func Overhead(algo EncryptAlgo) int {
	switch algo {
	case EncryptAES:
		return 12 + 16
	case EncryptXChaCha:
		return chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	default:
		return 0
	}
}

// ValidateKey returns ErrInvalidKeyLength unless key is exactly KeySize bytes.
func ValidateKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKeyLength, KeySize, len(key))
	}
	return nil
}

func (e *aeadEncryptor) Overhead() int {
	return e.aead.NonceSize() + e.aead.Overhead()
}

func (e *aeadEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(e.random, out); err != nil {
		return nil, fmt.Errorf("%w: nonce: %w", ErrEncryptionFailure, err)
	}

	// Prepend nonce to ciphertext
	return e.aead.Seal(out, out[:nonceSize], plaintext, nil), nil
}

func (e *aeadEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize+e.aead.Overhead() {
		return nil, malformed("ciphertext too short: %d bytes", len(ciphertext))
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailure, err)
	}

	return plaintext, nil
}
