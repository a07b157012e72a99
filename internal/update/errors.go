package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/systmms/ghsecrets/internal/github"
	"github.com/systmms/ghsecrets/internal/ratelimit"
	"github.com/systmms/ghsecrets/internal/validation"
	"github.com/systmms/ghsecrets/pkg/sealedbox"
)

// ErrorKind classifies an operation failure
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindAuth
	KindNotFound
	KindValidation
	KindRateLimited
	KindEncryption
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "ValidationError"
	case KindRateLimited:
		return "RateLimited"
	case KindNetwork:
		return "NetworkError"
	case KindEncryption:
		return "EncryptionError"
	case KindCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind name in reports
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

var (
	// ErrBatchClosed is returned by Run and Retry after Close
	ErrBatchClosed = errors.New("batch is closed")

	// ErrCancelled marks operations that never started because the batch
	// was aborted or its context ended
	ErrCancelled = errors.New("operation cancelled")

	errEncryption = errors.New("encryption failed")
)

// OperationError is the failure recorded on an OperationResult
type OperationError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func newOperationError(err error) *OperationError {
	return &OperationError{Kind: Classify(err), Message: err.Error(), Err: err}
}

// AuthAbortError is returned once when an authentication failure stops
// the batch. Results gathered before the abort are returned with it.
type AuthAbortError struct {
	Repository Repository
	SecretKey  string
	Err        error
}

func (e *AuthAbortError) Error() string {
	target := e.Repository.Path()
	if e.SecretKey != "" {
		target += " " + e.SecretKey
	}
	return fmt.Sprintf("authentication failed on %s, batch aborted: %v", target, e.Err)
}

func (e *AuthAbortError) Unwrap() error {
	return e.Err
}

// Classify maps an error from the client, limiter or encryptor onto an
// ErrorKind. Unknown errors are treated as transient network failures.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNetwork
	case errors.Is(err, github.ErrUnauthorized):
		return KindAuth
	case errors.Is(err, github.ErrRateLimited), errors.Is(err, ratelimit.ErrBudgetExhausted):
		return KindRateLimited
	case errors.Is(err, github.ErrNotFound), errors.Is(err, github.ErrForbidden):
		return KindNotFound
	case errors.Is(err, github.ErrValidation), errors.Is(err, validation.ErrInvalid):
		return KindValidation
	case errors.Is(err, errEncryption), errors.Is(err, sealedbox.ErrInvalidPublicKey):
		return KindEncryption
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindNetwork
}
