// Package policy holds the payment admission-control and settlement-bucket
// rules. The nightly settlement batch needs a quiescent ledger, so new
// payments are refused during a fixed daily cutoff window, and submissions
// after the bucket boundary hour are grouped into the next day's batch.
package policy

import (
	"errors"
	"time"
)

// Policy is the active rule set, evaluated in its own timezone.
type Policy struct {
	Timezone         string `mapstructure:"timezone"`
	LockStartHour    int    `mapstructure:"lockStartHour"`
	LockDurationMins int    `mapstructure:"lockDurationMins"`
	BucketCutoffHour int    `mapstructure:"bucketCutoffHour"`
	MaxCoverageDays  int    `mapstructure:"maxCoverageDays"`

	loc *time.Location
}

func Default() Policy {
	return Policy{
		Timezone:         "Africa/Nairobi",
		LockStartHour:    21,
		LockDurationMins: 60,
		BucketCutoffHour: 18,
		MaxCoverageDays:  365,
	}
}

func validate(p *Policy) error {
	if p.LockStartHour < 0 || p.LockStartHour > 23 {
		return errors.New("policy.lockStartHour out of range")
	}
	if p.LockDurationMins < 0 || p.LockDurationMins > 24*60 {
		return errors.New("policy.lockDurationMins out of range")
	}
	if p.BucketCutoffHour < 0 || p.BucketCutoffHour > 23 {
		return errors.New("policy.bucketCutoffHour out of range")
	}
	if p.MaxCoverageDays <= 0 {
		return errors.New("policy.maxCoverageDays must be positive")
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return errors.New("policy.timezone is not a valid IANA zone")
	}
	p.loc = loc
	return nil
}

func (p Policy) location() *time.Location {
	if p.loc != nil {
		return p.loc
	}
	return time.UTC
}

// IsLocked reports whether now falls inside the daily cutoff window during
// which initiate() is refused so the settlement job runs against a
// quiescent ledger.
func (p Policy) IsLocked(now time.Time) bool {
	local := now.In(p.location())
	start := time.Date(local.Year(), local.Month(), local.Day(), p.LockStartHour, 0, 0, 0, p.location())
	end := start.Add(time.Duration(p.LockDurationMins) * time.Minute)
	if !local.Before(start) && local.Before(end) {
		return true
	}
	// A window of more than an hour can spill over midnight; check the
	// previous day's window too.
	prev := start.AddDate(0, 0, -1)
	return !local.Before(prev) && local.Before(prev.Add(time.Duration(p.LockDurationMins)*time.Minute))
}

// SettlementDate assigns the calendar day a payment submitted at now is
// settled under. Submissions at or after the bucket boundary hour roll
// into the next day's batch. Independent of the lock window: the lock
// empties the tail of the day, the boundary buckets whatever still lands
// after it.
func (p Policy) SettlementDate(now time.Time) time.Time {
	local := now.In(p.location())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	if local.Hour() >= p.BucketCutoffHour {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// Today is the current calendar date in the policy timezone, normalized
// to a UTC-midnight value so it compares cleanly with ledger dates.
func (p Policy) Today(now time.Time) time.Time {
	local := now.In(p.location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
