package view

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calview/internal/clock"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "day", want: KindDay},
		{in: "Week", want: KindWeek},
		{in: " month ", want: KindMonth},
		{in: "", want: KindWeek},
		{in: "year", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("NEXT")
	require.NoError(t, err)
	assert.Equal(t, ActionNext, a)

	_, err = ParseAction("sideways")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestRangeFor(t *testing.T) {
	// 2025-03-05 is a Wednesday.
	wed := time.Date(2025, 3, 5, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		kind      Kind
		wantStart time.Time
		wantEnd   time.Time
	}{
		{name: "day", kind: KindDay, wantStart: date(2025, 3, 5), wantEnd: date(2025, 3, 6)},
		{name: "week starts on sunday", kind: KindWeek, wantStart: date(2025, 3, 2), wantEnd: date(2025, 3, 9)},
		{name: "month", kind: KindMonth, wantStart: date(2025, 3, 1), wantEnd: date(2025, 4, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RangeFor(tt.kind, wed, time.UTC)
			assert.True(t, tt.wantStart.Equal(r.Start), "start = %s", r.Start)
			assert.True(t, tt.wantEnd.Equal(r.End), "end = %s", r.End)
			assert.True(t, r.Contains(wed))
			assert.False(t, r.Contains(r.End))
		})
	}
}

func TestRangeFor_WeekOnSunday(t *testing.T) {
	sun := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	r := RangeFor(KindWeek, sun, time.UTC)
	assert.True(t, date(2025, 3, 9).Equal(r.Start))
	assert.Len(t, Days(r), 7)
}

func TestRangeFor_Location(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 20:00 UTC on March 5 is already March 6 in Tokyo.
	r := RangeFor(KindDay, time.Date(2025, 3, 5, 20, 0, 0, 0, time.UTC), tokyo)
	assert.Equal(t, 6, r.Start.Day())
	assert.Equal(t, tokyo, r.Start.Location())
}

func TestStep(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		from time.Time
		dir  int
		want time.Time
	}{
		{name: "next day", kind: KindDay, from: date(2025, 2, 28), dir: 1, want: date(2025, 3, 1)},
		{name: "prev day", kind: KindDay, from: date(2025, 3, 1), dir: -1, want: date(2025, 2, 28)},
		{name: "next week", kind: KindWeek, from: date(2025, 3, 5), dir: 1, want: date(2025, 3, 12)},
		{name: "prev week", kind: KindWeek, from: date(2025, 3, 5), dir: -1, want: date(2025, 2, 26)},
		{name: "next month", kind: KindMonth, from: date(2025, 3, 15), dir: 1, want: date(2025, 4, 15)},
		{name: "next month clamps", kind: KindMonth, from: date(2025, 1, 31), dir: 1, want: date(2025, 2, 28)},
		{name: "prev month over year", kind: KindMonth, from: date(2025, 1, 10), dir: -1, want: date(2024, 12, 10)},
		{name: "leap february", kind: KindMonth, from: date(2024, 3, 31), dir: -1, want: date(2024, 2, 29)},
		{name: "zero direction", kind: KindWeek, from: date(2025, 3, 5), dir: 0, want: date(2025, 3, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Step(tt.kind, tt.from, tt.dir)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestIsToday(t *testing.T) {
	clk := clock.Fixed(time.Date(2025, 3, 5, 23, 30, 0, 0, time.UTC))

	assert.True(t, IsToday(clk, date(2025, 3, 5), time.UTC))
	assert.True(t, IsToday(clk, time.Date(2025, 3, 5, 0, 0, 1, 0, time.UTC), time.UTC))
	assert.False(t, IsToday(clk, date(2025, 3, 6), time.UTC))

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 UTC is 00:30 on March 6 in Berlin.
	assert.True(t, IsToday(clk, time.Date(2025, 3, 6, 12, 0, 0, 0, berlin), berlin))
}
