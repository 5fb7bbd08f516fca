// Package aggregate reduces per-chain results (fee quotes, earned amounts)
// into what the UI displays.
package aggregate

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/price"
)

// FilterQuotes drops the nil slots of an estimate batch, keeping order.
// A nil quote means "could not be quoted" and is never shown as free.
func FilterQuotes(quotes []*model.FeeQuote) []model.FeeQuote {
	out := make([]model.FeeQuote, 0, len(quotes))
	for _, q := range quotes {
		if q != nil && q.NativeFeeWei != nil {
			out = append(out, *q)
		}
	}
	return out
}

// SortByFee orders quotes by native fee, cheapest first. Equal fees keep their input order.
func SortByFee(quotes []model.FeeQuote) []model.FeeQuote {
	sorted := make([]model.FeeQuote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NativeFeeWei.Cmp(sorted[j].NativeFeeWei) < 0
	})
	return sorted
}

// Cheapest returns the lowest-fee quote of an estimate batch
func Cheapest(quotes []*model.FeeQuote) (model.FeeQuote, bool) {
	valid := FilterQuotes(quotes)
	if len(valid) == 0 {
		return model.FeeQuote{}, false
	}
	return SortByFee(valid)[0], true
}

// MedianFee returns the median native fee across the quoted destinations,
// or nil when nothing was quoted
func MedianFee(quotes []*model.FeeQuote) *big.Int {
	valid := SortByFee(FilterQuotes(quotes))
	n := len(valid)
	if n == 0 {
		return nil
	}

	if n%2 == 0 {
		sum := new(big.Int).Add(valid[n/2-1].NativeFeeWei, valid[n/2].NativeFeeWei)
		return sum.Quo(sum, big.NewInt(2))
	}
	return new(big.Int).Set(valid[n/2].NativeFeeWei)
}

// EarnedUSD sums (layerzero + hyperlane) * price over the chains that have a price
func EarnedUSD(amounts []model.EarnedAmount) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		if a.PriceUSD == nil {
			continue
		}
		total = total.Add(a.Total().Mul(*a.PriceUSD))
	}
	return total
}

// TotalEarnedUSD formats EarnedUSD as en-US currency, or "0" when nothing was earned
func TotalEarnedUSD(amounts []model.EarnedAmount) string {
	total := EarnedUSD(amounts)
	if total.IsZero() {
		return "0"
	}
	return price.FormatUSD(total)
}

// ClaimableChains returns the chains with a positive unclaimed amount for the protocol selector
func ClaimableChains(amounts []model.EarnedAmount, selector func(model.ProtocolAmounts) decimal.Decimal) []model.EarnedAmount {
	out := make([]model.EarnedAmount, 0, len(amounts))
	for _, a := range amounts {
		if selector(a.ProtocolAmounts).IsPositive() {
			out = append(out, a)
		}
	}
	return out
}

// LayerZero and Hyperlane are selectors for ClaimableChains
func LayerZero(p model.ProtocolAmounts) decimal.Decimal { return p.LayerZero }
func Hyperlane(p model.ProtocolAmounts) decimal.Decimal { return p.Hyperlane }
