package domain

import (
	"slices"
	"time"
)

const DateLayout = "2006-01-02"

// ForecastSample is one normalized provider reading.
type ForecastSample struct {
	Timestamp time.Time
	ValueWh   float64
}

// DailyForecast is the total expected generation for a date as reported by
// a single provider.
type DailyForecast struct {
	Date     time.Time
	Wh       float64
	Provider string
}

// HourlyForecast maps hour-aligned timestamps to watts. Missing hours are
// unknown, not zero.
type HourlyForecast map[time.Time]float64

// Hours returns the keys in chronological order.
func (h HourlyForecast) Hours() []time.Time {
	keys := make([]time.Time, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return keys
}

// Samples returns the forecast as a chronological sample list.
func (h HourlyForecast) Samples() []ForecastSample {
	hours := h.Hours()
	samples := make([]ForecastSample, 0, len(hours))
	for _, t := range hours {
		samples = append(samples, ForecastSample{Timestamp: t, ValueWh: h[t]})
	}
	return samples
}

// ProviderForecast is one entry of a side-by-side provider comparison.
// Err is set when the provider failed; Wh is meaningless in that case.
type ProviderForecast struct {
	Provider string
	Wh       float64
	Err      error
}

func (p ProviderForecast) OK() bool {
	return p.Err == nil
}

// SameDate reports whether a and b fall on the same calendar date in a's
// location.
func SameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DateOf truncates t to midnight in its location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
