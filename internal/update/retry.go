package update

import "context"

// Retry replays the Failed operations of previous through the same state
// machine, with Attempt incremented. Operations that were skipped or
// succeeded are never resubmitted; with no failures it returns an empty
// slice. Results from a different batch are ignored.
func (b *Batch) Retry(ctx context.Context, previous []OperationResult) ([]OperationResult, error) {
	if b.isClosed() {
		return nil, ErrBatchClosed
	}

	var ops []operation
	seen := make(map[pairKey]bool)
	for _, r := range previous {
		if r.Outcome != OutcomeFailed {
			continue
		}
		pk := r.pair()
		if seen[pk] {
			continue
		}
		seen[pk] = true

		b.mu.Lock()
		pending := b.unresolved[pk]
		b.mu.Unlock()
		if !pending {
			continue
		}

		ops = append(ops, operation{repo: b.repoByID[pk.repo], key: r.SecretKey, attempt: r.Attempt + 1})
	}

	if len(ops) == 0 {
		return []OperationResult{}, nil
	}

	b.logger.Info("Retrying %d failed operation(s)", len(ops))
	return b.execute(ctx, ops, true)
}

// Merge overlays retried results onto previous, keeping the original order.
// The result holds the latest outcome for every pair.
func Merge(previous, retried []OperationResult) []OperationResult {
	latest := make(map[pairKey]OperationResult, len(retried))
	for _, r := range retried {
		latest[r.pair()] = r
	}

	merged := make([]OperationResult, 0, len(previous))
	seen := make(map[pairKey]bool, len(previous))
	for _, r := range previous {
		pk := r.pair()
		seen[pk] = true
		if newer, ok := latest[pk]; ok {
			merged = append(merged, newer)
			continue
		}
		merged = append(merged, r)
	}
	for _, r := range retried {
		if !seen[r.pair()] {
			seen[r.pair()] = true
			merged = append(merged, r)
		}
	}
	return merged
}

// Failures returns the Failed results in order
func Failures(results []OperationResult) []OperationResult {
	var failed []OperationResult
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			failed = append(failed, r)
		}
	}
	return failed
}
