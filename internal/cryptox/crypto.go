// Package cryptox seals secrets such as stored access tokens with AES-GCM
// under a key derived from a passphrase.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// SealedPrefix marks values produced by Sealer.Seal.
const SealedPrefix = "sealed:v1:"

const (
	saltSize = 16
	keySize  = 32
)

var ErrMalformed = errors.New("malformed sealed value")

func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

// Sealer encrypts short strings. Every value gets its own salt and nonce;
// derived keys are cached per salt.
type Sealer struct {
	passphrase []byte

	mu   sync.Mutex
	keys map[string][]byte
}

func NewSealer(passphrase string) *Sealer {
	return &Sealer{passphrase: []byte(passphrase), keys: make(map[string][]byte)}
}

func (s *Sealer) key(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[string(salt)]; ok {
		return k
	}
	k := DeriveKey(s.passphrase, salt)
	s.keys[string(salt)] = k
	return k
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal returns SealedPrefix followed by base64(salt | nonce | ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	aesgcm, err := newGCM(s.key(salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := append(salt, nonce...)
	out = aesgcm.Seal(out, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without SealedPrefix are returned unchanged
// so tokens stored before sealing was enabled keep working.
func (s *Sealer) Open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, SealedPrefix)
	if !ok {
		return value, nil
	}

	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < saltSize {
		return "", ErrMalformed
	}
	salt, rest := raw[:saltSize], raw[saltSize:]

	aesgcm, err := newGCM(s.key(salt))
	if err != nil {
		return "", err
	}
	if len(rest) < aesgcm.NonceSize() {
		return "", ErrMalformed
	}
	nonce, ciphertext := rest[:aesgcm.NonceSize()], rest[aesgcm.NonceSize():]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}

// Wipe zeroes the passphrase and every cached key.
func (s *Sealer) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	WipeByteArray(s.passphrase)
	for salt, k := range s.keys {
		WipeByteArray(k)
		delete(s.keys, salt)
	}
}

// WipeByteArray overwrites b with zeros. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
