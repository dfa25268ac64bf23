// Package crypto seals cloud credentials at rest and generates secrets.
// This is part of the Functional Core - apart from reading randomness,
// every function is pure with no I/O.
//
// Sealed records use AES-256-GCM under a key derived per record with
// Argon2id from the installation's master key and a random salt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/argon2"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the master key is too short.
	ErrKeyTooShort = errors.New("master key must be at least 32 bytes")

	// ErrInvalidCiphertext is returned when a sealed record is truncated.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrUnknownVersion is returned for records sealed by a newer format.
	ErrUnknownVersion = errors.New("unknown sealed record version")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// Key Derivation
// =============================================================================

const (
	// KeySize is the size of master and derived keys in bytes.
	KeySize = 32

	saltSize      = 16
	recordVersion = 1

	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 1
)

// GenerateMasterKey returns a new random master key.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	return key, nil
}

// DeriveKey derives a 32-byte AES-256 key from the master key and a salt
// using Argon2id. The same inputs always produce the same key.
func DeriveKey(master, salt []byte) []byte {
	return argon2.IDKey(master, salt, argonTime, argonMemory, argonThreads, KeySize)
}

// =============================================================================
// Sealing
// =============================================================================

// Seal encrypts plaintext under the master key.
//
// The record format is: version (1 byte) || salt (16 bytes) || nonce (12 bytes) || ciphertext || tag
func Seal(plaintext, master []byte) ([]byte, error) {
	if len(master) < KeySize {
		return nil, ErrKeyTooShort
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := newGCM(DeriveKey(master, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, recordVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a record produced by Seal.
func Open(sealed, master []byte) ([]byte, error) {
	if len(master) < KeySize {
		return nil, ErrKeyTooShort
	}
	if len(sealed) < 1+saltSize {
		return nil, ErrInvalidCiphertext
	}
	if sealed[0] != recordVersion {
		return nil, ErrUnknownVersion
	}

	salt := sealed[1 : 1+saltSize]
	gcm, err := newGCM(DeriveKey(master, salt))
	if err != nil {
		return nil, err
	}

	rest := sealed[1+saltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrInvalidCiphertext
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// =============================================================================
// Base64 Encoding Variants
// =============================================================================

// SealToBase64 seals plaintext and returns base64-encoded ciphertext.
// Useful for storing sealed data in text columns.
func SealToBase64(plaintext, master []byte) (string, error) {
	sealed, err := Seal(plaintext, master)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenFromBase64 decrypts base64-encoded ciphertext.
func OpenFromBase64(encoded string, master []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return Open(sealed, master)
}

// =============================================================================
// Secrets
// =============================================================================

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePassword returns a random alphanumeric password. Alphanumerics
// are accepted by every managed database engine.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = 24
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
