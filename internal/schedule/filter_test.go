package schedule_test

import (
	"strings"
	"testing"
	"time"

	"clinic-portal/internal/model"
	"clinic-portal/internal/schedule"
)

func doctorSchedule() []model.CalendarEvent {
	return []model.CalendarEvent{
		{Title: "Appointment: PAT-0001", Start: "2025-05-01T09:00:00", URL: "/app/appointment/A1"},
		{Title: "Available", Start: "2025-05-01T13:00:00"},
		{Title: "Leave (Holiday)", Start: "2025-05-03", End: "2025-05-04"},
		{Title: "Staff meeting", Start: "2025-05-02T08:00:00"},
	}
}

func TestKindOf(t *testing.T) {
	want := []schedule.EventKind{schedule.KindAppointment, schedule.KindAvailability, schedule.KindLeave, schedule.KindOther}
	for i, e := range doctorSchedule() {
		if got := schedule.KindOf(e.Title); got != want[i] {
			t.Errorf("%q: got %s, want %s", e.Title, got, want[i])
		}
	}
}

func TestScheduleEventsFilter(t *testing.T) {
	tests := []struct {
		name string
		vis  schedule.Visibility
		want int
	}{
		{"all shown", schedule.ShowAll(), 4},
		{"no appointments", schedule.Visibility{Availability: true, Leave: true}, 3},
		{"leave only", schedule.Visibility{Leave: true}, 2},
		{"nothing", schedule.Visibility{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := schedule.ScheduleEvents(doctorSchedule(), tt.vis)
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestScheduleEventsColorsAndRoutes(t *testing.T) {
	got := schedule.ScheduleEvents(doctorSchedule(), schedule.ShowAll())
	if got[0].Color != "#4B9CD3" || got[0].Route != "appointment/A1" {
		t.Errorf("appointment: color=%s route=%s", got[0].Color, got[0].Route)
	}
	if got[2].Color != "#E57373" {
		t.Errorf("leave color: %s", got[2].Color)
	}
}

func TestVisibilityToggle(t *testing.T) {
	v := schedule.ShowAll()
	if on := v.Toggle(schedule.KindLeave); on {
		t.Error("expected leave hidden after first toggle")
	}
	if v.Leave || !v.Appointments || !v.Availability {
		t.Errorf("unexpected state %+v", v)
	}
	if on := v.Toggle(schedule.KindLeave); !on {
		t.Error("expected leave shown after second toggle")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]schedule.EventKind{
		"appointments": schedule.KindAppointment,
		"Availability": schedule.KindAvailability,
		" leave ":      schedule.KindLeave,
	} {
		got, err := schedule.ParseKind(in)
		if err != nil || got != want {
			t.Errorf("%q: got %s, %v", in, got, err)
		}
	}
	if _, err := schedule.ParseKind("holiday"); err == nil {
		t.Error("expected error")
	}
}

func TestVisibilityFor(t *testing.T) {
	v := schedule.VisibilityFor([]schedule.EventKind{schedule.KindAppointment})
	if !v.Appointments || v.Availability || v.Leave {
		t.Errorf("got %+v", v)
	}
}

func TestExpandAppointments(t *testing.T) {
	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 31, 23, 59, 0, 0, time.UTC)
	appts := []model.Appointment{
		{ID: "once", AppointmentDate: "2025-05-10", StartTime: "09:00", Status: model.StatusPending},
		{ID: "outside", AppointmentDate: "2025-06-10", StartTime: "09:00", Status: model.StatusPending},
		{ID: "weekly", AppointmentDate: "2025-04-24", StartTime: "10:00", Status: model.StatusConfirmed, IsRecurring: true, RecurrenceInterval: 7},
	}
	events := schedule.ExpandAppointments(appts, from, to, time.UTC)

	var once, weekly int
	for _, e := range events {
		switch e.ID {
		case "once":
			once++
		case "weekly":
			weekly++
		case "outside":
			t.Error("out-of-range appointment included")
		}
	}
	if once != 1 {
		t.Errorf("once: got %d", once)
	}
	// 05-01, 05-08, 05-15, 05-22, 05-29
	if weekly != 5 {
		t.Errorf("weekly: got %d occurrences", weekly)
	}
	if events[1].Start != "2025-05-01T10:00:00" {
		t.Errorf("first weekly occurrence: %s", events[1].Start)
	}
}

func TestExpandLongRunningSeries(t *testing.T) {
	daily := []model.Appointment{
		{ID: "daily", Doctor: "DOC-1", AppointmentDate: "2023-01-01", StartTime: "08:00", Status: model.StatusPending, IsRecurring: true, RecurrenceInterval: 1},
	}
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	events := schedule.ExpandAppointments(daily, from, to, time.UTC)
	if len(events) != 30 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Start != "2025-06-01T08:00:00" || events[29].Start != "2025-06-30T08:00:00" {
		t.Errorf("range: %s .. %s", events[0].Start, events[29].Start)
	}
}

func TestExpandEndIsExclusive(t *testing.T) {
	appts := []model.Appointment{
		{ID: "last", AppointmentDate: "2025-06-30", StartTime: "09:00", Status: model.StatusPending},
		{ID: "next", AppointmentDate: "2025-07-01", StartTime: "09:00", Status: model.StatusPending},
		{ID: "weekly", AppointmentDate: "2025-06-24", StartTime: "10:00", Status: model.StatusPending, IsRecurring: true, RecurrenceInterval: 7},
	}
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	var got []string
	for _, e := range schedule.ExpandAppointments(appts, from, to, time.UTC) {
		got = append(got, e.ID+"@"+e.Start[:10])
	}
	want := []string{"last@2025-06-30", "weekly@2025-06-24"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v", got)
	}
}

func TestExpandSkipsStoredOccurrences(t *testing.T) {
	appts := []model.Appointment{
		{ID: "parent", Doctor: "DOC-1", AppointmentDate: "2025-06-02", StartTime: "10:00", Status: model.StatusPending, IsRecurring: true, RecurrenceInterval: 7},
		// the platform created the second occurrence as its own record
		{ID: "child", Doctor: "DOC-1", AppointmentDate: "2025-06-09", StartTime: "10:00:00", Status: model.StatusPending},
		// another doctor at the same slot is unrelated
		{ID: "other", Doctor: "DOC-2", AppointmentDate: "2025-06-16", StartTime: "10:00", Status: model.StatusPending},
	}
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC)
	count := map[string]int{}
	for _, e := range schedule.ExpandAppointments(appts, from, to, time.UTC) {
		count[e.Start[:10]]++
	}
	for day, want := range map[string]int{"2025-06-02": 1, "2025-06-09": 1, "2025-06-16": 2} {
		if count[day] != want {
			t.Errorf("%s: got %d events, want %d", day, count[day], want)
		}
	}
}

func TestKindColor(t *testing.T) {
	if schedule.KindColor(schedule.KindLeave) != "#E57373" ||
		schedule.KindColor(schedule.KindAppointment) != "#4B9CD3" ||
		schedule.KindColor(schedule.KindOther) != "gray" {
		t.Error("unexpected legend colors")
	}
}
