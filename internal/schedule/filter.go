package schedule

import (
	"fmt"
	"strings"

	"clinic-portal/internal/model"
)

// EventKind is the category a doctor schedule entry belongs to.
type EventKind string

const (
	KindAppointment  EventKind = "appointment"
	KindAvailability EventKind = "availability"
	KindLeave        EventKind = "leave"
	KindOther        EventKind = "other"
)

var kindColors = map[EventKind]string{
	KindAppointment:  "#4B9CD3",
	KindAvailability: "#81C784",
	KindLeave:        "#E57373",
}

// KindColor is the legend color of a schedule entry kind.
func KindColor(k EventKind) string {
	if c, ok := kindColors[k]; ok {
		return c
	}
	return "gray"
}

// ParseKind accepts the toggle names used by the dashboard buttons.
func ParseKind(s string) (EventKind, error) {
	switch k := EventKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAppointment, KindAvailability, KindLeave:
		return k, nil
	case "appointments":
		return KindAppointment, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// KindOf infers the kind from the entry title, which is the only tag the
// schedule procedure provides.
func KindOf(title string) EventKind {
	switch {
	case strings.Contains(title, "Appointment"):
		return KindAppointment
	case strings.Contains(title, "Available"):
		return KindAvailability
	case strings.Contains(title, "Leave"):
		return KindLeave
	}
	return KindOther
}

// Visibility holds the dashboard's show/hide toggles.
type Visibility struct {
	Appointments bool `json:"appointments"`
	Availability bool `json:"availability"`
	Leave        bool `json:"leave"`
}

// ShowAll is the state a dashboard opens with.
func ShowAll() Visibility {
	return Visibility{Appointments: true, Availability: true, Leave: true}
}

// VisibilityFor enables only the listed kinds.
func VisibilityFor(kinds []EventKind) Visibility {
	var v Visibility
	for _, k := range kinds {
		v.set(k, true)
	}
	return v
}

func (v Visibility) Shows(k EventKind) bool {
	switch k {
	case KindAppointment:
		return v.Appointments
	case KindAvailability:
		return v.Availability
	case KindLeave:
		return v.Leave
	}
	return true
}

// Toggle flips one kind and returns the new state of that kind.
func (v *Visibility) Toggle(k EventKind) bool {
	on := !v.Shows(k)
	v.set(k, on)
	return on
}

func (v *Visibility) set(k EventKind, on bool) {
	switch k {
	case KindAppointment:
		v.Appointments = on
	case KindAvailability:
		v.Availability = on
	case KindLeave:
		v.Leave = on
	}
}

// ScheduleEvents filters doctor schedule entries by visibility and fills in
// the kind color and click route where the platform left them out.
func ScheduleEvents(entries []model.CalendarEvent, v Visibility) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(entries))
	for _, e := range entries {
		k := KindOf(e.Title)
		if !v.Shows(k) {
			continue
		}
		if e.Color == "" {
			e.Color = kindColors[k]
		}
		if e.URL != "" {
			e.Route = Route(e.URL)
		}
		out = append(out, e)
	}
	return out
}
