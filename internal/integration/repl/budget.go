package repl

import "sync/atomic"

// SuppressionBudget counts the output deliveries still to be discarded at
// the start of a session. Each delivery call consumes one unit no matter
// how many lines it carries.
type SuppressionBudget struct {
	remaining atomic.Int64
}

// NewSuppressionBudget returns a budget of n deliveries. Negative n is
// treated as zero.
func NewSuppressionBudget(n int) *SuppressionBudget {
	b := &SuppressionBudget{}
	if n > 0 {
		b.remaining.Store(int64(n))
	}
	return b
}

// Consume takes one unit if any remain and reports whether it did, in
// which case the caller must discard the delivery.
func (b *SuppressionBudget) Consume() bool {
	if b == nil {
		return false
	}
	for {
		n := b.remaining.Load()
		if n <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(n, n-1) {
			return true
		}
	}
}
