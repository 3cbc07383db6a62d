package netmon

import "time"

const (
	// stableUptime is the continuous uptime after which a link earns its
	// full reliability score.
	stableUptime          = 5 * time.Minute
	maxReliabilityDeficit = 10
)

// QualityScore rates a link in [0, 100]. An unreachable link scores 0.
// Otherwise the score starts at 100 and loses a latency penalty plus up to
// 10 points while the link has been up for less than five minutes. For a
// fixed uptime the score never increases with latency.
func QualityScore(latency time.Duration, reachable bool, uptime time.Duration) int {
	if !reachable {
		return 0
	}

	score := 100 - latencyPenalty(latency)

	if uptime < 0 {
		uptime = 0
	}
	if uptime < stableUptime {
		score -= int(int64(maxReliabilityDeficit) * int64(stableUptime-uptime) / int64(stableUptime))
	}

	return min(max(score, 0), 100)
}

func latencyPenalty(latency time.Duration) int {
	switch {
	case latency <= 200*time.Millisecond:
		return 0
	case latency <= 500*time.Millisecond:
		return 5
	case latency <= time.Second:
		return 15
	default:
		return 30
	}
}
