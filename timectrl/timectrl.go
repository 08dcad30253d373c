package timectrl

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Day is the fixed amount both window bounds advance at a day boundary.
const Day = 86400 * time.Second

// State is the controller's position in the day cycle.
type State int

const (
	Idle State = iota
	DayActive
	DayBoundary
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DayActive:
		return "day-active"
	case DayBoundary:
		return "day-boundary"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrWindow is returned for unusable day windows.
var ErrWindow = errors.New("invalid day window")

// Window is one simulated day: ticks run from Start while sim time is
// before Stop.
type Window struct {
	Start time.Time
	Stop  time.Time
}

// ParseWindow builds the first day's window from a date ("2006-01-02") and
// start/stop times of day ("15:04" or "15:04:05"), interpreted in loc. A nil
// loc means UTC.
func ParseWindow(date, start, stop string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start date: %v", ErrWindow, err)
	}
	startOff, err := parseTimeOfDay(start)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start time: %v", ErrWindow, err)
	}
	stopOff, err := parseTimeOfDay(stop)
	if err != nil {
		return Window{}, fmt.Errorf("%w: stop time: %v", ErrWindow, err)
	}
	if stopOff <= startOff {
		return Window{}, fmt.Errorf("%w: stop %s is not after start %s", ErrWindow, stop, start)
	}
	return Window{
		Start: wallClock(d, startOff, loc),
		Stop:  wallClock(d, stopOff, loc),
	}, nil
}

func parseTimeOfDay(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("%q is not HH:MM or HH:MM:SS", s)
}

func wallClock(day time.Time, off time.Duration, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc).Add(off)
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// TimeController drives simulation time through a sequence of day windows
// and notifies registered listeners on every tick.
type TimeController struct {
	mu     sync.RWMutex
	Period time.Duration

	window Window
	days   int
	day    int
	state  State

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller for days windows starting at
// first. days == 0 runs as many days as the start month has.
func NewTimeController(first Window, period time.Duration, days int) (*TimeController, error) {
	if period <= 0 {
		return nil, fmt.Errorf("update period must be positive, got %s", period)
	}
	if !first.Stop.After(first.Start) {
		return nil, fmt.Errorf("%w: stop %s is not after start %s", ErrWindow, first.Stop, first.Start)
	}
	if days < 0 {
		return nil, fmt.Errorf("day count must be non-negative, got %d", days)
	}
	if days == 0 {
		days = DaysInMonth(first.Start)
	}
	return &TimeController{
		Period:      period,
		window:      first,
		days:        days,
		currentTime: first.Start,
	}, nil
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Window returns the current day's window.
func (tc *TimeController) Window() Window {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.window
}

// State returns the controller state.
func (tc *TimeController) State() State {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.state
}

// Day returns the zero-based index of the current day.
func (tc *TimeController) Day() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.day
}

// Days returns the total number of days the controller will run.
func (tc *TimeController) Days() int { return tc.days }

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// BeginDay moves Idle or DayBoundary to DayActive and resets simulation time
// to the window start, which it returns.
func (tc *TimeController) BeginDay() (time.Time, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.state != Idle && tc.state != DayBoundary {
		return time.Time{}, fmt.Errorf("cannot begin a day from state %s", tc.state)
	}
	tc.state = DayActive
	tc.currentTime = tc.window.Start
	return tc.currentTime, nil
}

// Advance steps simulation time by one period while it is before the stop
// time. It returns false, without advancing, once the day is over.
func (tc *TimeController) Advance() (time.Time, bool) {
	tc.mu.Lock()
	if tc.state != DayActive || !tc.currentTime.Before(tc.window.Stop) {
		tc.mu.Unlock()
		return time.Time{}, false
	}
	tc.currentTime = tc.currentTime.Add(tc.Period)
	simTime := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(simTime)
	}
	return simTime, true
}

// EndDay closes the active day, shifts both window bounds by 24h and moves
// to DayBoundary, or to Done after the last day. It reports whether another
// day follows.
func (tc *TimeController) EndDay() (bool, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.state != DayActive {
		return false, fmt.Errorf("cannot end a day from state %s", tc.state)
	}
	tc.window.Start = tc.window.Start.Add(Day)
	tc.window.Stop = tc.window.Stop.Add(Day)
	tc.day++
	if tc.day >= tc.days {
		tc.state = Done
		return false, nil
	}
	tc.state = DayBoundary
	return true, nil
}
