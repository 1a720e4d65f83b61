package services

import (
	"time"
	"github.com/coursepulse/coursepulse-backend/internal/types"
)

type StreakResult struct {
	CurrentStreakDays int
	LongestStreakDays int
	LastStreakDate    time.Time
}

// ComputeStreak derives the updated streak counters from the previous
// progress row and the activity instant. Calendar-day granularity: time of
// day is discarded before comparing. Same-day re-entry returns the existing
// counters unchanged; a one-day gap extends the streak; a longer gap resets
// the current streak to 1 but keeps the longest. A negative day difference
// (clock skew, out-of-order delivery) is treated like same-day so a stale
// event cannot corrupt the counters.
func ComputeStreak(existing *types.CourseProgress, now time.Time) StreakResult {
	if existing == nil || existing.LastStreakDate == nil {
		return StreakResult{
			CurrentStreakDays: 1,
			LongestStreakDays: 1,
			LastStreakDate:    now,
		}
	}

	diff := daysBetween(*existing.LastStreakDate, now)
	switch {
	case diff <= 0:
		return StreakResult{
			CurrentStreakDays: existing.CurrentStreakDays,
			LongestStreakDays: existing.LongestStreakDays,
			LastStreakDate:    *existing.LastStreakDate,
		}
	case diff == 1:
		current := existing.CurrentStreakDays + 1
		longest := existing.LongestStreakDays
		if current > longest {
			longest = current
		}
		return StreakResult{
			CurrentStreakDays: current,
			LongestStreakDays: longest,
			LastStreakDate:    now,
		}
	default:
		return StreakResult{
			CurrentStreakDays: 1,
			LongestStreakDays: existing.LongestStreakDays,
			LastStreakDate:    now,
		}
	}
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}
