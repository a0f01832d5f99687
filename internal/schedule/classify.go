// Package schedule turns platform records into what the portal shows:
// the upcoming/past split of a patient's appointments and the calendar
// events for appointments, availability and leave.
package schedule

import (
	"sort"
	"time"

	"clinic-portal/internal/model"
)

// Classify splits appointments into upcoming and past relative to now.
//
// Records are ordered by appointment date first; records on the same date
// keep their input order. An appointment is past when it is Completed or
// Cancelled or when its start is strictly before now. Date and time are read
// in now's location. A record whose date or time does not parse sorts as the
// earliest date and lands in past, since it can't be shown as bookable.
//
// The input slice is not modified and both results are non-nil.
func Classify(appts []model.Appointment, now time.Time) (upcoming, past []model.Appointment) {
	loc := now.Location()

	type keyed struct {
		a   model.Appointment
		day time.Time
	}
	sorted := make([]keyed, len(appts))
	for i, a := range appts {
		day, err := model.ParseDate(a.AppointmentDate, loc)
		if err != nil {
			day = time.Time{}
		}
		sorted[i] = keyed{a: a, day: day}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].day.Before(sorted[j].day)
	})

	upcoming = make([]model.Appointment, 0, len(appts))
	past = make([]model.Appointment, 0, len(appts))
	for _, k := range sorted {
		if isPast(k.a, now) {
			past = append(past, k.a)
		} else {
			upcoming = append(upcoming, k.a)
		}
	}
	return upcoming, past
}

func isPast(a model.Appointment, now time.Time) bool {
	if a.Closed() {
		return true
	}
	start, err := a.Start(now.Location())
	if err != nil {
		return true
	}
	return start.Before(now)
}
