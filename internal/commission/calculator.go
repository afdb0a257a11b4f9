// Package commission computes the proportional commission split of a
// completed payment. The catalog fixes per-day splits; a lump-sum payment
// scales them by amount/dailyPremium so the payout is identical whether a
// member pays day by day or a year at once.
package commission

import "errors"

// Breakdown is the scaled commission allocation for one payment. The
// organization portion is the residual, so the four components always sum
// to exactly the payment amount.
type Breakdown struct {
	Delegate    int64 `json:"delegate"`
	Coordinator int64 `json:"coordinator"`
	SHA         int64 `json:"sha"`
	Org         int64 `json:"org"`
}

// Splits are the fixed per-day components from the scheme catalog.
type Splits struct {
	DailyPremium int64
	Delegate     int64
	Coordinator  int64
	SHA          int64
}

var (
	ErrInvalidAmount = errors.New("invalid_commission_amount")
	ErrInvalidSplits = errors.New("invalid_commission_splits")
)

// Compute scales each named split by amount/dailyPremium using integer
// minor-unit arithmetic and assigns the remainder to the organization.
func Compute(amount int64, splits Splits) (Breakdown, error) {
	if amount <= 0 {
		return Breakdown{}, ErrInvalidAmount
	}
	if splits.DailyPremium <= 0 {
		return Breakdown{}, ErrInvalidSplits
	}
	if splits.Delegate < 0 || splits.Coordinator < 0 || splits.SHA < 0 {
		return Breakdown{}, ErrInvalidSplits
	}
	if splits.Delegate+splits.Coordinator+splits.SHA > splits.DailyPremium {
		return Breakdown{}, ErrInvalidSplits
	}

	out := Breakdown{
		Delegate:    splits.Delegate * amount / splits.DailyPremium,
		Coordinator: splits.Coordinator * amount / splits.DailyPremium,
		SHA:         splits.SHA * amount / splits.DailyPremium,
	}
	out.Org = amount - out.Delegate - out.Coordinator - out.SHA
	return out, nil
}

// Total is the sum of all components; by construction it equals the
// payment amount.
func (b Breakdown) Total() int64 {
	return b.Delegate + b.Coordinator + b.SHA + b.Org
}
