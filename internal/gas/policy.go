// Package gas turns node gas estimates into submission gas limits.
package gas

import (
	"math"
	"math/big"
)

// DefaultMarginBps reserves 20% headroom above the node's estimate
const DefaultMarginBps = 12000

const bpsDenominator = 10000

// Policy applies a multiplicative safety margin expressed in basis points.
// The zero value behaves like DefaultMarginBps.
type Policy struct {
	MarginBps uint64
}

// NewPolicy returns a policy with the given margin. Margins below 100% are raised to 100%.
func NewPolicy(marginBps uint64) Policy {
	if marginBps < bpsDenominator {
		marginBps = bpsDenominator
	}
	return Policy{MarginBps: marginBps}
}

// ApplyMargin returns estimated * margin, rounded up and saturated at MaxUint64.
// The result is never below the estimate.
func (p Policy) ApplyMargin(estimated uint64) uint64 {
	bps := p.MarginBps
	if bps == 0 {
		bps = DefaultMarginBps
	}
	if bps <= bpsDenominator {
		return estimated
	}

	out := new(big.Int).SetUint64(estimated)
	out.Mul(out, new(big.Int).SetUint64(bps))
	out.Add(out, big.NewInt(bpsDenominator-1))
	out.Div(out, big.NewInt(bpsDenominator))

	if !out.IsUint64() {
		return math.MaxUint64
	}
	return out.Uint64()
}

// ApplyMargin applies the default policy
func ApplyMargin(estimated uint64) uint64 {
	return Policy{}.ApplyMargin(estimated)
}
