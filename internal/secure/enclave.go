package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrEmptyValue is returned when a secret value has no bytes to protect.
var ErrEmptyValue = errors.New("secret value is empty")

// ErrDestroyed is returned when a destroyed SecretValue is used.
var ErrDestroyed = errors.New("secret value has been destroyed")

// SecretValue keeps a plaintext secret encrypted in memory until the moment
// it is needed. It wraps memguard.Enclave: the plaintext only exists inside
// a locked buffer for the duration of a Use call.
type SecretValue struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
	size    int
}

// NewSecretValue moves data into a protected enclave. memguard wipes the
// source slice after copying, so the caller's buffer is zeroed on return.
func NewSecretValue(data []byte) (*SecretValue, error) {
	if len(data) == 0 {
		return nil, ErrEmptyValue
	}
	size := len(data)
	return &SecretValue{
		enclave: memguard.NewEnclave(data),
		size:    size,
	}, nil
}

// Len returns the plaintext length in bytes.
func (s *SecretValue) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Use decrypts the value into a locked buffer, passes the plaintext to fn
// and wipes the buffer when fn returns. fn must not retain the slice.
func (s *SecretValue) Use(fn func(plaintext []byte) error) error {
	s.mu.RLock()
	enclave := s.enclave
	s.mu.RUnlock()

	if enclave == nil {
		return ErrDestroyed
	}

	locked, err := enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is idempotent; Use fails afterwards.
func (s *SecretValue) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.size = 0
}

// Destroyed reports whether Destroy has been called.
func (s *SecretValue) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enclave == nil
}

// Purge wipes every memguard buffer in the process. Call it on exit.
func Purge() {
	memguard.Purge()
}

// Wipe zeroes b in place. Use it for plaintext that never reaches an enclave.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
