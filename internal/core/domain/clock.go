package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockTimeRegexp = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if !clockTimeRegexp.MatchString(s) {
		return ClockTime{}, fmt.Errorf("time must be in HH:MM format, got %q", s)
	}
	hh, mm, _ := strings.Cut(s, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TariffWindow is a same-day off-peak window. Start must be before End.
type TariffWindow struct {
	Start ClockTime
	End   ClockTime
}

func ParseTariffWindow(start, end string) (TariffWindow, error) {
	s, err := ParseClockTime(start)
	if err != nil {
		return TariffWindow{}, fmt.Errorf("off_peak_start: %w", err)
	}
	e, err := ParseClockTime(end)
	if err != nil {
		return TariffWindow{}, fmt.Errorf("off_peak_end: %w", err)
	}
	if s.Minutes() >= e.Minutes() {
		return TariffWindow{}, fmt.Errorf("off_peak_start (%s) must be before off_peak_end (%s)", s, e)
	}
	return TariffWindow{Start: s, End: e}, nil
}

func (w TariffWindow) Hours() float64 {
	return float64(w.End.Minutes()-w.Start.Minutes()) / 60
}

func (w TariffWindow) Duration() time.Duration {
	return time.Duration(w.End.Minutes()-w.Start.Minutes()) * time.Minute
}

func (w TariffWindow) String() string {
	return fmt.Sprintf("%s-%s", w.Start, w.End)
}
