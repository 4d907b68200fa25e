package window

import (
	"fmt"
	"time"
)

// Policy selects how a task's window is derived. The set of policies is closed:
// Lookback, CalendarDay and Unbounded.
type Policy interface {
	fmt.Stringer
	isPolicy()
}

// Lookback fetches everything since the last success, or the Default duration
// before now when the task has never succeeded.
type Lookback struct {
	Default time.Duration
}

// CalendarDay targets one business day regardless of the last success. A zero
// Date means Offset days before today in Location.
type CalendarDay struct {
	Date         time.Time
	Offset       int
	Location     *time.Location
	SkipWeekends bool
}

// Unbounded tasks manage their own cursor; the resolver only signals "go".
type Unbounded struct{}

func (Lookback) isPolicy()    {}
func (CalendarDay) isPolicy() {}
func (Unbounded) isPolicy()   {}

func (p Lookback) String() string {
	return fmt.Sprintf("lookback(%s)", p.defaultLookback())
}

func (p CalendarDay) String() string {
	loc := p.location().String()
	if !p.Date.IsZero() {
		return fmt.Sprintf("calendarDay(%s, %s)", p.Date.Format(time.DateOnly), loc)
	}
	if p.SkipWeekends {
		return fmt.Sprintf("calendarDay(-%d business days, %s)", p.Offset, loc)
	}
	return fmt.Sprintf("calendarDay(-%d days, %s)", p.Offset, loc)
}

func (Unbounded) String() string {
	return "unbounded"
}

// PreviousBusinessDay is the CalendarDay policy for daily backfills of the last
// completed weekday.
func PreviousBusinessDay(loc *time.Location) CalendarDay {
	return CalendarDay{Offset: 1, Location: loc, SkipWeekends: true}
}

func (p Lookback) defaultLookback() time.Duration {
	if p.Default <= 0 {
		return DefaultLookback
	}
	return p.Default
}

func (p CalendarDay) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
