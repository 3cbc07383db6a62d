package syncer

import "time"

// Policy is the retry backoff for a single queue entry.
type Policy struct {
	Base         time.Duration
	Multiplier   float64
	MaxDoublings int
	Cap          time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Base: time.Second, Multiplier: 2, MaxDoublings: 6, Cap: time.Minute}
}

// Delay is how long an entry that has failed attempts times must wait
// before its next attempt: Base grown min(attempts, MaxDoublings) times by
// Multiplier, capped at Cap.
func (p Policy) Delay(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := float64(p.Base)
	for i := 0; i < min(attempts, p.MaxDoublings); i++ {
		d *= p.Multiplier
		if p.Cap > 0 && d >= float64(p.Cap) {
			return p.Cap
		}
	}
	if p.Cap > 0 && time.Duration(d) > p.Cap {
		return p.Cap
	}
	return time.Duration(d)
}

// Ready reports whether an entry last attempted at last with the given
// number of failures may be retried at now.
func (p Policy) Ready(attempts int, last, now time.Time) bool {
	if attempts <= 0 || last.IsZero() {
		return true
	}
	return !now.Before(last.Add(p.Delay(attempts)))
}
