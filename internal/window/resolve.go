package window

import (
	"fmt"
	"time"
)

// Resolve computes the window for a task from its policy, its last success and
// the run's reference time. A last success later than now yields an empty
// window instead of a negative one.
func Resolve(policy Policy, lastSuccess *time.Time, now time.Time) (Window, error) {
	if policy == nil {
		return Window{}, ErrMissingPolicy
	}
	now = now.UTC()

	if lastSuccess != nil && lastSuccess.After(now) {
		return Empty(fmt.Sprintf("last success %s is in the future", lastSuccess.UTC().Format(time.RFC3339))), nil
	}

	switch p := policy.(type) {
	case Lookback:
		return resolveLookback(p, lastSuccess, now), nil
	case *Lookback:
		return resolveLookback(*p, lastSuccess, now), nil
	case CalendarDay:
		return resolveCalendarDay(p, now)
	case *CalendarDay:
		return resolveCalendarDay(*p, now)
	case Unbounded, *Unbounded:
		return Window{Kind: KindCursor, End: now}, nil
	default:
		return Window{}, fmt.Errorf("%w: unsupported policy %T", ErrInvalidPolicy, policy)
	}
}

func resolveLookback(p Lookback, lastSuccess *time.Time, now time.Time) Window {
	start := now.Add(-p.defaultLookback())
	if lastSuccess != nil {
		start = lastSuccess.UTC()
	}
	if !start.Before(now) {
		return Empty("no time elapsed since last success")
	}
	return Window{Kind: KindRange, Start: start, End: now}
}

func resolveCalendarDay(p CalendarDay, now time.Time) (Window, error) {
	if p.Offset < 0 {
		return Window{}, fmt.Errorf("%w: calendar day offset must not be negative, got %d", ErrInvalidPolicy, p.Offset)
	}
	loc := p.location()

	var day time.Time
	if !p.Date.IsZero() {
		y, m, d := p.Date.Date()
		day = time.Date(y, m, d, 0, 0, 0, 0, loc)
	} else {
		y, m, d := now.In(loc).Date()
		day = time.Date(y, m, d, 0, 0, 0, 0, loc)
		if p.SkipWeekends && p.Offset == 0 {
			day = rollBackToWeekday(day)
		}
		for i := 0; i < p.Offset; {
			day = day.AddDate(0, 0, -1)
			if p.SkipWeekends && isWeekend(day) {
				continue
			}
			i++
		}
	}

	if day.After(now) {
		return Empty(fmt.Sprintf("target day %s has not started", day.Format(time.DateOnly))), nil
	}
	return Window{Kind: KindDay, Start: day, End: day.AddDate(0, 0, 1)}, nil
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func rollBackToWeekday(t time.Time) time.Time {
	for isWeekend(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
