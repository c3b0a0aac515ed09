package liquid

import "sync/atomic"

// iterationBudget counts loop iterations across all loops of one render. A
// zero limit is unlimited.
type iterationBudget struct {
	limit int64
	used  atomic.Int64
}

func newIterationBudget(limit int) *iterationBudget {
	return &iterationBudget{limit: int64(limit)}
}

// consume records amount iterations. It fails before the limit would be
// exceeded, so a loop never runs more than limit iterations in total.
func (b *iterationBudget) consume(amount int64) error {
	if amount == 0 {
		return nil
	}
	if b.used.Add(amount) > b.limit && b.limit > 0 {
		b.used.Add(-amount)
		return Errorf(ErrMaxIterations, "Render exceeded the maximum of %d loop iterations", b.limit)
	}
	return nil
}

func (b *iterationBudget) consumed() int64 {
	return b.used.Load()
}
