package cron

import (
	"fmt"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/huffmsa/nuts"
)

// cronParser accepts 5-field expressions, 6-field expressions with a
// leading seconds field, and descriptors such as "@hourly" or "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.SecondOptional | cronlib.Minute | cronlib.Hour |
		cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Schedule computes fire times of a parsed expression.
type Schedule = cronlib.Schedule

// ParseSchedule parses a cron expression. A 7-field expression whose
// trailing year field is "*" is accepted and treated as its first six
// fields; any other year is rejected since schedules cannot be bounded by
// year.
func ParseSchedule(expr string) (Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) == 7 {
		if fields[6] != "*" {
			return nil, fmt.Errorf("%w: %q: year field must be \"*\"", nuts.ErrInvalidSchedule, expr)
		}
		expr = strings.Join(fields[:6], " ")
	}
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", nuts.ErrInvalidSchedule, expr, err)
	}
	return s, nil
}

// ValidateSchedule reports whether expr parses. The empty expression is
// valid and means "not recurring".
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := ParseSchedule(expr)
	return err
}

// NextRun returns the first fire time of expr strictly after t.
func NextRun(expr string, t time.Time) (time.Time, error) {
	s, err := ParseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(t), nil
}
