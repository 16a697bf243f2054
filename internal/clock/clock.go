// Package clock provides the time source used by date-sensitive services.
//
// Services never call time.Now directly. Binaries inject a Real clock pinned
// to the configured location; tests inject a Fixed clock.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real returns the system time converted to a location.
type Real struct {
	Location *time.Location
}

// Now returns the current system time in the clock's location.
func (c Real) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

// Now returns the fixed time.
func (c Fixed) Now() time.Time {
	return c.T
}

// Func wraps a function as a Clock.
type Func func() time.Time

// Now calls the wrapped function.
func (f Func) Now() time.Time {
	return f()
}

// NewReal returns a Clock backed by the system time in loc.
func NewReal(loc *time.Location) Clock {
	return Real{Location: loc}
}

// NewFixed returns a Clock that always reports t.
func NewFixed(t time.Time) Clock {
	return Fixed{T: t}
}

var (
	_ Clock = Real{}
	_ Clock = Fixed{}
	_ Clock = Func(nil)
)
