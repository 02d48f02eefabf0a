package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length. The wire format predates the Go port
	// and uses 16-byte IVs rather than GCM's default 12.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

var (
	ErrInvalidKeySize   = errors.New("cipher: encryption key must be exactly 32 bytes")
	ErrDecryptionFailed = errors.New("cipher: message authentication failed")
)

var (
	randMu        sync.RWMutex
	randomnessSrc io.Reader = randReader{}
)

// randReader wraps crypto/rand.Reader but keeps the type unexported so tests can
// substitute deterministic sources.
type randReader struct{}

func (randReader) Read(p []byte) (int, error) {
	return rand.Read(p)
}

// UseDeterministicRandom swaps the randomness source for deterministic testing
// and returns a restore function that must be called when the test completes.
func UseDeterministicRandom(r io.Reader) func() {
	randMu.Lock()
	prev := randomnessSrc
	randomnessSrc = r
	randMu.Unlock()
	return func() {
		randMu.Lock()
		randomnessSrc = prev
		randMu.Unlock()
	}
}

func readRandom(b []byte) error {
	randMu.RLock()
	src := randomnessSrc
	randMu.RUnlock()
	_, err := io.ReadFull(src, b)
	return err
}

// Sealed is one encrypted message body: ciphertext plus the per-message IV and
// the detached authentication tag.
type Sealed struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// Engine encrypts and decrypts message bodies with AES-256-GCM. The key is
// loaded once at construction and never leaves the package.
type Engine struct {
	aead gocipher.AEAD
}

// New builds an Engine from raw key material. It fails unless the key is
// exactly 32 bytes so a misconfigured deployment dies at startup, not on the
// first message.
func New(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := gocipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, err
	}
	return &Engine{aead: aead}, nil
}

// KeyFromHex decodes a hex-encoded key as stored in configuration.
func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("cipher: decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return key, nil
}

// Encrypt seals plaintext under a fresh random IV. The IV is never reused; a
// new one is drawn from the randomness source on every call.
func (e *Engine) Encrypt(plaintext string) (Sealed, error) {
	iv := make([]byte, IVSize)
	if err := readRandom(iv); err != nil {
		return Sealed{}, err
	}
	sealed := e.aead.Seal(nil, iv, []byte(plaintext), nil)
	n := len(sealed) - TagSize
	return Sealed{
		IV:         iv,
		Ciphertext: sealed[:n:n],
		Tag:        sealed[n:],
	}, nil
}

// Decrypt opens a sealed message. Tampered ciphertext, a wrong key, or a wrong
// IV all surface as ErrDecryptionFailed so callers can substitute a placeholder
// for the one bad row instead of aborting the batch.
func (e *Engine) Decrypt(s Sealed) (string, error) {
	if len(s.IV) != IVSize || len(s.Tag) != TagSize {
		return "", ErrDecryptionFailed
	}
	sealed := make([]byte, 0, len(s.Ciphertext)+TagSize)
	sealed = append(sealed, s.Ciphertext...)
	sealed = append(sealed, s.Tag...)
	plaintext, err := e.aead.Open(nil, s.IV, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
