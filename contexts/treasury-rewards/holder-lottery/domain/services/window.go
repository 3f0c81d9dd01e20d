package services

import (
	"time"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
)

const DefaultWindowDuration = 4 * time.Minute

// WindowID buckets an instant into its distribution window. Independent
// callers agree on the id for the same instant without sharing state.
func WindowID(now time.Time, duration time.Duration) int64 {
	durationMillis := normalizeDuration(duration).Milliseconds()
	return floorDiv(now.UnixMilli(), durationMillis)
}

func CurrentWindow(now time.Time, duration time.Duration) entities.WindowTiming {
	duration = normalizeDuration(duration)
	durationMillis := duration.Milliseconds()
	id := floorDiv(now.UnixMilli(), durationMillis)
	start := time.UnixMilli(id * durationMillis).UTC()
	end := start.Add(duration)

	remainingMillis := end.UnixMilli() - now.UnixMilli()
	seconds := (remainingMillis + 999) / 1000
	if seconds < 0 {
		seconds = 0
	}
	return entities.WindowTiming{
		WindowID:         id,
		Start:            start,
		End:              end,
		ServerTime:       now.UTC(),
		SecondsRemaining: seconds,
	}
}

func normalizeDuration(duration time.Duration) time.Duration {
	if duration < time.Millisecond {
		return DefaultWindowDuration
	}
	return duration
}

// floorDiv keeps pre-epoch instants in the correct bucket; Go's integer
// division truncates toward zero.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
