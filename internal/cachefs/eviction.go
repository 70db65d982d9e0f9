package cachefs

import "time"

// Cap is the hard per-slot capacity: once a (product, platform) slot holds
// more than Cap entries, the lowest-usage one is evicted regardless of how
// recently it was touched.
const Cap = 15

// minUsageMetricLow and minUsageMetricHigh bound the adaptive floor: a
// nearly-empty slot tolerates weakly-used entries (0.2); a nearly-full slot
// is more aggressive (0.4) so low-value entries are expelled before the
// hard cap is hit.
const (
	minUsageMetricLow  = 0.2
	minUsageMetricHigh = 0.4
)

// floor computes the adaptive eviction threshold for a slot currently
// holding n entries: the fuller the slot, the higher the bar an entry's
// usage metric must clear to survive, so low-value entries are expelled
// well before the hard cap forces the issue.
func floor(n int) float64 {
	fillingFactor := float64(n-1) / float64(Cap-1)
	return minUsageMetricLow + fillingFactor*(minUsageMetricHigh-minUsageMetricLow)
}

// victim is a candidate for eviction: its canonical path and usage metric
// at the instant the eviction pass was run.
type victim struct {
	path   string
	metric float64
}

// selectVictim returns the entry with the minimum usage metric at now,
// breaking ties deterministically by path so eviction order is
// reproducible across runs.
func selectVictim(s *slot, now time.Time) (victim, bool) {
	var best victim
	found := false
	for path, e := range s.entries {
		m := e.usageMetric(now)
		if !found || m < best.metric || (m == best.metric && path < best.path) {
			best = victim{path: path, metric: m}
			found = true
		}
	}
	return best, found
}

// evictionDecision explains why (if at all) the current minimum-usage entry
// should be evicted, for logging and testing.
type evictionDecision struct {
	victim victim
	rule   string // "hard_cap", "adaptive_floor", or "" if no eviction
}

// nextEviction runs one step of the eviction loop: while |entries| >
// minKeep, evict the global minimum if either rule fires. now is sampled
// once by the caller (the write's timestamp, or the maintenance pass's
// start) and never re-sampled inside the loop, so a long eviction run
// judges every candidate against the same instant.
func nextEviction(s *slot, now time.Time, minKeep int) (evictionDecision, bool) {
	n := len(s.entries)
	if n <= minKeep {
		return evictionDecision{}, false
	}

	v, ok := selectVictim(s, now)
	if !ok {
		return evictionDecision{}, false
	}

	if n > Cap {
		return evictionDecision{victim: v, rule: "hard_cap"}, true
	}
	if v.metric < floor(n) {
		return evictionDecision{victim: v, rule: "adaptive_floor"}, true
	}
	return evictionDecision{}, false
}
