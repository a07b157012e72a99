package sealedbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of an X25519 public key.
const KeySize = 32

// Overhead is the number of bytes a sealed box adds to the plaintext:
// the 32-byte ephemeral public key plus the 16-byte Poly1305 tag.
const Overhead = box.AnonymousOverhead

// ErrInvalidPublicKey is returned for keys that are not 32 raw bytes.
var ErrInvalidPublicKey = errors.New("invalid public key")

// ParsePublicKey decodes a standard base64 public key as published by the
// GitHub API and checks its length.
func ParsePublicKey(encoded string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64: %v", ErrInvalidPublicKey, err)
	}
	return PublicKeyFromBytes(raw)
}

// PublicKeyFromBytes copies raw into a fixed-size key after checking its length.
func PublicKeyFromBytes(raw []byte) (*[KeySize]byte, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, KeySize, len(raw))
	}
	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// Seal encrypts plaintext for recipient using crypto/rand for the
// ephemeral key pair. The result is len(plaintext)+Overhead bytes.
func Seal(plaintext []byte, recipient *[KeySize]byte) ([]byte, error) {
	return SealWithRand(rand.Reader, plaintext, recipient)
}

// SealWithRand is Seal with an explicit entropy source. Passing anything
// other than a CSPRNG outside of tests defeats the scheme.
func SealWithRand(r io.Reader, plaintext []byte, recipient *[KeySize]byte) ([]byte, error) {
	if recipient == nil {
		return nil, fmt.Errorf("%w: nil recipient", ErrInvalidPublicKey)
	}
	out := make([]byte, 0, len(plaintext)+Overhead)
	sealed, err := box.SealAnonymous(out, plaintext, recipient, r)
	if err != nil {
		return nil, fmt.Errorf("failed to seal message: %w", err)
	}
	return sealed, nil
}

// EncryptString seals plaintext and returns the standard base64 encoding
// expected in the encrypted_value field of the secrets API.
func EncryptString(plaintext []byte, recipient *[KeySize]byte) (string, error) {
	sealed, err := Seal(plaintext, recipient)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
