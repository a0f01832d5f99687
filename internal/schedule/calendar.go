package schedule

import (
	"strings"
	"time"

	"clinic-portal/internal/model"
)

// LeaveColor is the fixed color of approved leave on every calendar.
const LeaveColor = "#81C784"

var statusColors = map[string]string{
	model.StatusPending:   "orange",
	model.StatusCompleted: "green",
	model.StatusCancelled: "red",
}

// StatusColor maps an appointment status to its calendar color.
func StatusColor(status string) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return "gray"
}

// LeaveEvents projects approved leaves onto the calendar. Pending,
// rejected and completed leaves produce no event.
func LeaveEvents(leaves []model.DoctorLeave) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(leaves))
	for _, l := range leaves {
		if !l.Approved() {
			continue
		}
		reason := l.Reason
		if reason == "" {
			reason = "No reason"
		}
		out = append(out, model.CalendarEvent{
			ID:     l.ID,
			Title:  "Leave (" + reason + ")",
			Start:  l.FromDate,
			End:    l.ToDate,
			Color:  LeaveColor,
			AllDay: true,
			Status: l.Status,
		})
	}
	return out
}

// AppointmentEvent renders one appointment occurrence. Appointments with a
// start time become timed events; the rest are all-day on their date.
func AppointmentEvent(a model.Appointment, loc *time.Location) model.CalendarEvent {
	if loc == nil {
		loc = time.Local
	}
	ev := model.CalendarEvent{
		ID:     a.ID,
		Title:  appointmentTitle(a),
		Start:  a.AppointmentDate,
		Color:  StatusColor(a.Status),
		Status: a.Status,
		AllDay: true,
	}
	if a.ID != "" {
		ev.URL = "/app/appointment/" + a.ID
		ev.Route = Route(ev.URL)
	}
	if start, err := a.Start(loc); err == nil {
		ev.AllDay = false
		ev.Start = start.Format("2006-01-02T15:04:05")
		if end, err := a.End(loc); err == nil {
			ev.End = end.Format("2006-01-02T15:04:05")
		}
	}
	return ev
}

func appointmentTitle(a model.Appointment) string {
	who := a.DoctorName
	if who == "" {
		who = a.Doctor
	}
	title := "Appointment"
	if a.Service != "" {
		title += ": " + a.Service
	}
	if who != "" {
		title += " with " + who
	}
	return title
}

// FeedEvents colors the entries returned by get_calendar_events by status.
func FeedEvents(entries []model.CalendarEvent) []model.CalendarEvent {
	out := make([]model.CalendarEvent, len(entries))
	for i, e := range entries {
		e.Color = StatusColor(e.Status)
		if e.URL != "" {
			e.Route = Route(e.URL)
		}
		out[i] = e
	}
	return out
}

// Route turns a platform desk URL into the route the click handler
// navigates to, e.g. "/app/appointment/APT-1" -> "appointment/APT-1".
func Route(url string) string {
	url = strings.TrimPrefix(url, "/app/")
	return strings.TrimPrefix(url, "/")
}
