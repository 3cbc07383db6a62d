// Package cryptox implements field-level encryption for records that carry
// sensitive health data.
//
// Key material is derived once from a configured secret (Argon2id) and held
// only in memory by a FieldEncryptor. Every Encrypt call draws a fresh random
// 12-byte nonce, so sealing the same value twice yields different
// ciphertexts. Sealed fields are stored inside records as tagged envelopes
// ({"$enc":"v1","ct":...,"iv":...,"at":...}) which DecryptRecord recognises;
// untagged fields pass through untouched.
//
// Decryption never falls back to the envelope: a corrupt ciphertext or a key
// mismatch is reported as *DecryptionError, which matches ErrDecryptFailed.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length produced by DeriveKey.
	KeySize = 32
	// SaltSize is the recommended length of the KDF salt.
	SaltSize = 16

	nonceSize = 12
)

var (
	ErrDecryptFailed = errors.New("decrypt failed")
	ErrKeyMismatch   = errors.New("encryption key does not match stored verifier")
	ErrInvalidKey    = errors.New("invalid key length")
	ErrClosed        = errors.New("encryptor is closed")
)

// DeriveKey stretches secret with Argon2id into a KeySize key.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a hash of key that can be stored next to the data to
// detect a wrong secret at startup without keeping the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// FieldEncryptor seals and opens individual values with AES-256-GCM.
// It is safe for concurrent use.
type FieldEncryptor struct {
	mu   sync.RWMutex
	key  []byte
	aead cipher.AEAD
	now  func() time.Time
}

// NewFieldEncryptor copies key and prepares the AEAD. The caller may wipe its
// own copy afterwards.
func NewFieldEncryptor(key []byte) (*FieldEncryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)

	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldEncryptor{key: k, aead: aead, now: time.Now}, nil
}

// Encrypt serializes value to JSON and seals it under a fresh random nonce.
func (e *FieldEncryptor) Encrypt(value any) (EncryptedField, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return EncryptedField{}, fmt.Errorf("serialize value: %w", err)
	}
	defer common.WipeByteArray(plaintext)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.aead == nil {
		return EncryptedField{}, ErrClosed
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedField{}, fmt.Errorf("generate nonce: %w", err)
	}

	return EncryptedField{
		Ciphertext:  e.aead.Seal(nil, nonce, plaintext, nil),
		IV:          nonce,
		EncryptedAt: e.now().UTC(),
	}, nil
}

// Decrypt opens field and unmarshals the plaintext into v.
// Any failure is returned as *DecryptionError; after Close the cause is
// ErrClosed.
func (e *FieldEncryptor) Decrypt(field EncryptedField, v any) error {
	if len(field.IV) != nonceSize {
		return &DecryptionError{Cause: fmt.Errorf("invalid nonce size %d", len(field.IV))}
	}
	plaintext, err := e.open(field)
	if err != nil {
		return &DecryptionError{Cause: err}
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		return &DecryptionError{Cause: fmt.Errorf("decode plaintext: %w", err)}
	}
	return nil
}

func (e *FieldEncryptor) open(field EncryptedField) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.aead == nil {
		return nil, ErrClosed
	}
	return e.aead.Open(nil, field.IV, field.Ciphertext, nil)
}

// Close wipes the copied key and drops the cipher, whose expanded key
// schedule is left to the garbage collector. Later Encrypt and Decrypt calls
// fail with ErrClosed. Close is idempotent.
func (e *FieldEncryptor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	common.WipeByteArray(e.key)
	e.key = nil
	e.aead = nil
}

// String keeps key material out of fmt output.
func (e *FieldEncryptor) String() string { return "cryptox.FieldEncryptor{key:[redacted]}" }

// LogValue keeps key material out of slog output.
func (e *FieldEncryptor) LogValue() slog.Value { return slog.StringValue("[redacted]") }

// DecryptionError reports a sealed value that could not be opened, either
// because the ciphertext is malformed or the key does not match.
type DecryptionError struct {
	Field string // record field name, empty for a bare Decrypt
	Cause error
}

func (e *DecryptionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decrypt failed: %v", e.Cause)
	}
	return fmt.Sprintf("decrypt failed for field %q: %v", e.Field, e.Cause)
}

func (e *DecryptionError) Unwrap() error { return e.Cause }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryptFailed }
