package domain

import "time"

// MaxCoverageDays caps how far ahead a single payment may extend cover.
const MaxCoverageDays = 365

// NormalizeDate truncates t to start-of-day UTC so ledger dates compare
// as plain calendar days.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ComputeWindow turns a lump-sum amount into a contiguous coverage
// window. The day count is floor(amount/dailyPremium), optionally capped
// by requestedDays (0 means uncapped) and bounded by maxDays (0 means
// MaxCoverageDays). The window starts at the ledger frontier when one is
// given, so a late payment back-fills the oldest arrears before
// extending the horizon; otherwise it starts today.
func ComputeWindow(amount, dailyPremium int64, frontier *time.Time, today time.Time, requestedDays, maxDays int) (Window, error) {
	if maxDays <= 0 {
		maxDays = MaxCoverageDays
	}
	if dailyPremium <= 0 {
		return Window{}, ErrInvalidWindow
	}
	if amount < dailyPremium {
		return Window{}, ErrAmountTooLow
	}

	days := int(amount / dailyPremium)
	if requestedDays > 0 && requestedDays < days {
		days = requestedDays
	}
	if days > maxDays {
		return Window{}, ErrDaysLimitExceeded
	}
	if days < 1 {
		days = 1
	}

	start := NormalizeDate(today)
	if frontier != nil {
		start = NormalizeDate(*frontier)
	}
	end := start.AddDate(0, 0, days-1)

	return Window{StartDate: start, EndDate: end, Days: days}, nil
}
