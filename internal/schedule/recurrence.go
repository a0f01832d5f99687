package schedule

import (
	"time"

	"github.com/teambition/rrule-go"

	"clinic-portal/internal/model"
)

// cap on occurrences of one series inside a single window
const maxOccurrences = 500

// ExpandAppointments returns calendar events for appointments inside
// [from, to). Recurring appointments repeat every RecurrenceInterval days
// from their first date; the rest appear once if they fall in range. An
// occurrence the platform already stored as its own record (same doctor,
// date and start time) is not repeated.
func ExpandAppointments(appts []model.Appointment, from, to time.Time, loc *time.Location) []model.CalendarEvent {
	if loc == nil {
		loc = time.Local
	}
	stored := make(map[string]bool, len(appts))
	for _, a := range appts {
		if !recurs(a) {
			stored[slotKey(a)] = true
		}
	}

	out := make([]model.CalendarEvent, 0, len(appts))
	for _, a := range appts {
		if !recurs(a) {
			if inRange(a, from, to, loc) {
				out = append(out, AppointmentEvent(a, loc))
			}
			continue
		}
		for _, occ := range occurrences(a, from, to, loc) {
			if stored[slotKey(occ)] {
				continue
			}
			out = append(out, AppointmentEvent(occ, loc))
		}
	}
	return out
}

func recurs(a model.Appointment) bool { return a.IsRecurring && a.RecurrenceInterval > 0 }

func slotKey(a model.Appointment) string {
	return a.Doctor + "|" + a.AppointmentDate + "|" + normalClock(a.StartTime)
}

func normalClock(s string) string {
	d, err := model.ParseClock(s)
	if err != nil {
		return s
	}
	return time.Time{}.Add(d).Format("15:04:05")
}

func inRange(a model.Appointment, from, to time.Time, loc *time.Location) bool {
	day, err := model.ParseDate(a.AppointmentDate, loc)
	if err != nil {
		return false
	}
	// compare whole days so a same-day appointment is never cut off
	return !day.Before(truncateDay(from, loc)) && day.Before(to)
}

func occurrences(a model.Appointment, from, to time.Time, loc *time.Location) []model.Appointment {
	first, err := model.ParseDate(a.AppointmentDate, loc)
	if err != nil {
		return nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: a.RecurrenceInterval,
		Dtstart:  first,
	})
	if err != nil {
		return nil
	}

	days := r.Between(truncateDay(from, loc), to.Add(-time.Nanosecond), true)
	if len(days) > maxOccurrences {
		days = days[:maxOccurrences]
	}
	out := make([]model.Appointment, 0, len(days))
	for _, d := range days {
		occ := a
		occ.AppointmentDate = d.In(loc).Format(model.DateLayout)
		out = append(out, occ)
	}
	return out
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
