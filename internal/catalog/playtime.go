/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinutesPerWeek is the length of the recurring schedule space.
const MinutesPerWeek = 7 * 24 * 60

// ClockTime is a point in the weekly schedule: a weekday plus a
// minute-of-day. All window comparisons happen in this canonical
// (weekday, minutesSinceMidnight) space.
type ClockTime struct {
	Weekday time.Weekday
	Minute  int
}

// weekMinute flattens the clock time into [0, MinutesPerWeek).
func (c ClockTime) weekMinute() int {
	return int(c.Weekday)*24*60 + c.Minute
}

// clockTimeOf converts an absolute instant into schedule space.
func clockTimeOf(t time.Time) ClockTime {
	return ClockTime{Weekday: t.Weekday(), Minute: t.Hour()*60 + t.Minute()}
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%s %02d:%02d", c.Weekday, c.Minute/60, c.Minute%60)
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

type rawClockTime struct {
	Day  string `yaml:"day"`
	Time string `yaml:"time"`
}

// UnmarshalYAML decodes `{day: friday, time: "22:00"}`.
func (c *ClockTime) UnmarshalYAML(node *yaml.Node) error {
	var raw rawClockTime
	if err := node.Decode(&raw); err != nil {
		return err
	}

	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(raw.Day))]
	if !ok {
		return fmt.Errorf("unknown weekday %q", raw.Day)
	}

	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw.Time), "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("parse time %q: %w", raw.Time, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("time %q out of range", raw.Time)
	}

	c.Weekday = day
	c.Minute = hour*60 + minute
	return nil
}

// PlayTime is a recurring weekly window. Start > End (in schedule space)
// means the window wraps past the week boundary.
type PlayTime struct {
	Start ClockTime `yaml:"start"`
	End   ClockTime `yaml:"end"`
}

// ActiveAt reports whether t falls inside the window. A degenerate window
// with Start == End is active only at that single instant.
func (p PlayTime) ActiveAt(t time.Time) bool {
	at := clockTimeOf(t).weekMinute()
	start := p.Start.weekMinute()
	end := p.End.weekMinute()

	switch {
	case start == end:
		return at == start
	case start < end:
		return at >= start && at < end
	default: // wraps past the week boundary
		return at >= start || at < end
	}
}

// MinutesUntilStart returns how many minutes remain until the window next
// begins. Zero means the window is starting right now.
func (p PlayTime) MinutesUntilStart(t time.Time) int {
	at := clockTimeOf(t).weekMinute()
	start := p.Start.weekMinute()

	d := (start - at) % MinutesPerWeek
	if d < 0 {
		d += MinutesPerWeek
	}
	return d
}
