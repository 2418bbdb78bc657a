package racetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{"1:2:3", time.Hour + 2*time.Minute + 3*time.Second},
		{"12:34", 12*time.Minute + 34*time.Second},
		{"00:00:00", 0},
		{"99:59:59", 99*time.Hour + 59*time.Minute + 59*time.Second},
		{" 0:45:10 ", 45*time.Minute + 10*time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "1", "1:2:3:4", "1:60:00", "1:00:60", "100:00:00", "-1:00:00", "1::00", "1:0a:00", "001:00:00"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrInvalidTimeFormat)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0:00:00", Format(0))
	assert.Equal(t, "0:10:30", Format(10*time.Minute+30*time.Second))
	assert.Equal(t, "1:02:03", Format(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "123:00:00", Format(123*time.Hour))
	assert.Equal(t, "0:00:01", Format(1900*time.Millisecond))
	assert.Equal(t, "0:00:00", Format(-time.Second))
}

func TestRoundTrip(t *testing.T) {
	// format(parse(s)) is canonical and survives another pass
	for _, in := range []string{"1:2:3", "05:07", "00:00:09", "23:59:59", "99:00:00"} {
		canon, err := Canonical(in)
		require.NoError(t, err)

		again, err := Canonical(canon)
		require.NoError(t, err)
		assert.Equal(t, canon, again)

		d1, _ := Parse(in)
		d2, _ := Parse(canon)
		assert.Equal(t, d1, d2)
	}
}

func TestElapsedRounds(t *testing.T) {
	start := Instant(0)
	assert.Equal(t, 10*time.Second, Elapsed(start, Instant(10*time.Second+499*time.Millisecond)))
	assert.Equal(t, 11*time.Second, Elapsed(start, Instant(10*time.Second+500*time.Millisecond)))
}

func TestMonotonicClockAdvances(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	time.Sleep(time.Millisecond)
	b := c.Now()
	assert.Greater(t, b, a)
	assert.Less(t, b, Forfeit)
}
