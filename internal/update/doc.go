// Package update drives a batch of GitHub Actions secret updates.
//
// A Batch expands the selected repositories and secrets into one operation
// per (repository, secret) pair and runs each through a fixed sequence of
// states:
//
//	Pending -> Probing -> [AwaitingConfirmation] -> Encrypting -> Submitting -> Done
//
// Operations run sequentially in repository-major order so confirmation
// prompts arrive in a predictable order. A failure is recorded in that
// operation's result and never affects its siblings, with one exception:
// an authentication failure aborts the batch, since every later call would
// fail the same way.
//
// Failed operations can be replayed with Batch.Retry, which re-enters the
// same state machine using the values the batch retained. Values are held
// in memguard enclaves and dropped as soon as their operations resolve, or
// when the batch is closed.
package update
