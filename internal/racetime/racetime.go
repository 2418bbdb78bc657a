package racetime

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimeFormat = errors.New("time is not in the format HH:MM:SS")

// Parse reads "HH:MM:SS" or "MM:SS". Fields may be one or two digits,
// so "1:2:3" is the same as "01:02:03".
func Parse(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 2:
		parts = append([]string{"0"}, parts...)
	case 3:
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	var fields [3]int
	for i, p := range parts {
		v, ok := field(p)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
		fields[i] = v
	}
	h, m, sec := fields[0], fields[1], fields[2]
	if h > 99 || m > 59 || sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

func field(p string) (int, bool) {
	if len(p) == 0 || len(p) > 2 {
		return 0, false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(p)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Format renders d as H:MM:SS. Sub-second precision is truncated.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Canonical is Format(Parse(s)).
func Canonical(s string) (string, error) {
	d, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(d), nil
}

// ---------- Monotonic instants ----------

// Instant is a reading of a monotonic clock in nanoseconds. Only differences
// between instants of the same clock are meaningful.
type Instant int64

// Forfeit sorts after every real instant.
const Forfeit Instant = math.MaxInt64

type Clock interface {
	Now() Instant
}

// MonotonicClock measures against its creation time using the monotonic
// reading carried by time.Time, so wall clock adjustments do not leak in.
type MonotonicClock struct {
	base time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{base: time.Now()}
}

func (c *MonotonicClock) Now() Instant {
	return Instant(time.Since(c.base))
}

// Elapsed is end minus start rounded to the nearest whole second.
func Elapsed(start, end Instant) time.Duration {
	return time.Duration(end - start).Round(time.Second)
}
