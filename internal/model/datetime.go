package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrBadClock = errors.New("invalid time of day")

// ParseDate parses a platform calendar date (YYYY-MM-DD) at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}

// ParseClock parses a time of day. The platform sends "9:00:00",
// "09:00" and "09:00:00.000000" interchangeably.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadClock
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if len(parts) == 3 {
		sec, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || sec < 0 || sec >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
		}
		d += time.Duration(sec * float64(time.Second))
	}
	return d, nil
}

// CombineDateTime joins a calendar date and a time of day in loc.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	off, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	// walk wall-clock fields so DST days keep the written time
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).Add(off), nil
}

var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseInstant accepts the date and date-time forms used in calendar
// payloads. allDay is true for bare dates.
func ParseInstant(s string, loc *time.Location) (t time.Time, allDay bool, err error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range instantLayouts {
		if t, err = time.ParseInLocation(layout, s, loc); err == nil {
			return t, layout == DateLayout, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid date-time %q", s)
}

func ValidAppointmentStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ValidLeaveStatus(s string) bool {
	switch s {
	case LeavePending, LeaveApproved, LeaveRejected, LeaveCompleted:
		return true
	}
	return false
}
