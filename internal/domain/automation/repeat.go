package automation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type IntervalUnit string

const (
	UnitMinute IntervalUnit = "minute"
	UnitHour   IntervalUnit = "hour"
	UnitDay    IntervalUnit = "day"
	UnitWeek   IntervalUnit = "week"
	UnitMonth  IntervalUnit = "month"
)

// RepeatConfig spaces a repeat chain. It also accepts the shorthand {"interval":"1d"}.
type RepeatConfig struct {
	IntervalUnit   IntervalUnit `json:"interval_unit"`
	IntervalCount  int          `json:"interval_count"`
	MaxOccurrences int          `json:"max_occurrences"`
}

func (c RepeatConfig) Validate() error {
	switch c.IntervalUnit {
	case UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth:
	default:
		return fmt.Errorf("unknown repeat interval unit %q", c.IntervalUnit)
	}
	if c.IntervalCount < 1 {
		return fmt.Errorf("repeat interval_count must be >= 1")
	}
	if c.MaxOccurrences < 1 {
		return fmt.Errorf("repeat max_occurrences must be >= 1")
	}
	return nil
}

// Next returns the time one interval after from. Calendar units use AddDate.
func (c RepeatConfig) Next(from time.Time) time.Time {
	n := c.IntervalCount
	switch c.IntervalUnit {
	case UnitMinute:
		return from.Add(time.Duration(n) * time.Minute)
	case UnitHour:
		return from.Add(time.Duration(n) * time.Hour)
	case UnitDay:
		return from.AddDate(0, 0, n)
	case UnitWeek:
		return from.AddDate(0, 0, 7*n)
	case UnitMonth:
		return from.AddDate(0, n, 0)
	}
	return from
}

// HasNext reports whether another occurrence follows the given index.
func (c RepeatConfig) HasNext(occurrence int) bool {
	return occurrence+1 < c.MaxOccurrences
}

// ParseInterval parses shorthand like "30m", "6h", "1d", "2w" or "1M".
func ParseInterval(s string) (IntervalUnit, int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return "", 0, fmt.Errorf("invalid interval %q", s)
	}
	count, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || count < 1 {
		return "", 0, fmt.Errorf("invalid interval %q", s)
	}
	switch s[len(s)-1] {
	case 'm':
		return UnitMinute, count, nil
	case 'h':
		return UnitHour, count, nil
	case 'd':
		return UnitDay, count, nil
	case 'w':
		return UnitWeek, count, nil
	case 'M':
		return UnitMonth, count, nil
	}
	return "", 0, fmt.Errorf("invalid interval unit in %q", s)
}

func (c *RepeatConfig) UnmarshalJSON(data []byte) error {
	var wire struct {
		Interval       string       `json:"interval"`
		IntervalUnit   IntervalUnit `json:"interval_unit"`
		IntervalCount  int          `json:"interval_count"`
		MaxOccurrences int          `json:"max_occurrences"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.IntervalUnit = wire.IntervalUnit
	c.IntervalCount = wire.IntervalCount
	c.MaxOccurrences = wire.MaxOccurrences
	if wire.Interval != "" {
		unit, count, err := ParseInterval(wire.Interval)
		if err != nil {
			return err
		}
		c.IntervalUnit = unit
		c.IntervalCount = count
	}
	return nil
}
