package update

import (
	"fmt"
	"time"
)

// Repository identifies a target repository. Identity is (Owner, Name),
// compared case-sensitively; Alias is display only.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// Path returns "owner/name"
func (r Repository) Path() string {
	return r.Owner + "/" + r.Name
}

// DisplayName returns "alias (owner/name)" when an alias is set
func (r Repository) DisplayName() string {
	if r.Alias != "" {
		return fmt.Sprintf("%s (%s)", r.Alias, r.Path())
	}
	return r.Path()
}

func (r Repository) identity() Repository {
	return Repository{Owner: r.Owner, Name: r.Name}
}

// SecretPair is one secret to write. Value is consumed by NewBatch.
type SecretPair struct {
	Key   string
	Value []byte
}

// PublicKeyInfo is a decoded repository sealing key
type PublicKeyInfo struct {
	KeyID string
	Key   [32]byte
}

// EncryptedSecret is a sealed value ready for submission
type EncryptedSecret struct {
	KeyID          string
	EncryptedValue string // base64
}

// Outcome is the terminal result of an operation
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText renders the outcome name in reports
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// OperationResult records how one (repository, secret) operation ended
type OperationResult struct {
	Repository        Repository      `json:"repository"`
	SecretKey         string          `json:"secret_key"`
	Outcome           Outcome         `json:"outcome"`
	Err               *OperationError `json:"error,omitempty"`
	PreviouslyExisted bool            `json:"previously_existed"`
	PreviousUpdate    *time.Time      `json:"previous_update,omitempty"`
	Attempt           int             `json:"attempt"`
	Duration          time.Duration   `json:"duration_ns"`
}

func (r OperationResult) pair() pairKey {
	return pairKey{repo: r.Repository.identity(), key: r.SecretKey}
}

// State is a step of the per-operation state machine
type State int

const (
	StatePending State = iota
	StateProbing
	StateAwaitingConfirmation
	StateEncrypting
	StateSubmitting
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProbing:
		return "probing"
	case StateAwaitingConfirmation:
		return "awaiting-confirmation"
	case StateEncrypting:
		return "encrypting"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type pairKey struct {
	repo Repository
	key  string
}
