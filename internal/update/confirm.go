package update

import (
	"context"
	"fmt"
	"time"
)

// Decision is the answer to an overwrite confirmation
type Decision int

const (
	// Approve overwrites the existing secret
	Approve Decision = iota
	// Decline skips this operation
	Decline
	// Abort skips this and every remaining operation of the round
	Abort
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Decline:
		return "decline"
	case Abort:
		return "abort"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// ConfirmationRequest describes an overwrite awaiting a decision
type ConfirmationRequest struct {
	Repository     Repository
	SecretKey      string
	PreviousUpdate *time.Time
}

// ConfirmationSource decides whether existing secrets are overwritten.
// Confirm is never called concurrently.
type ConfirmationSource interface {
	Confirm(ctx context.Context, req ConfirmationRequest) (Decision, error)
}

// ConfirmFunc adapts a function to ConfirmationSource
type ConfirmFunc func(ctx context.Context, req ConfirmationRequest) (Decision, error)

// Confirm calls f
func (f ConfirmFunc) Confirm(ctx context.Context, req ConfirmationRequest) (Decision, error) {
	return f(ctx, req)
}

type fixedDecision Decision

func (d fixedDecision) Confirm(context.Context, ConfirmationRequest) (Decision, error) {
	return Decision(d), nil
}

var (
	// AlwaysApprove overwrites every existing secret
	AlwaysApprove ConfirmationSource = fixedDecision(Approve)
	// AlwaysDecline leaves every existing secret untouched
	AlwaysDecline ConfirmationSource = fixedDecision(Decline)
)
