package platform

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"clinic-portal/internal/model"
)

// The platform names the same fields differently depending on which
// procedure produced them. The wire types accept every spelling and
// normalize to the model.

type wireAppointment struct {
	Name               string `json:"name"`
	Patient            string `json:"patient"`
	Doctor             string `json:"doctor"`
	DoctorName         string `json:"doctor_name"`
	Service            string `json:"service"`
	AppointmentDate    string `json:"appointment_date"`
	StartTime          string `json:"start_time"`
	AppointmentTime    string `json:"appointment_time"`
	EndTime            string `json:"end_time"`
	Status             string `json:"status"`
	ServiceStatus      string `json:"service_status"`
	Notes              string `json:"notes"`
	IsRecurring        any    `json:"is_recurring"`
	RecurrenceInterval any    `json:"recurrence_interval"`
}

func (w wireAppointment) normalize() (model.Appointment, string) {
	a := model.Appointment{
		ID:              w.Name,
		Patient:         w.Patient,
		Doctor:          w.Doctor,
		DoctorName:      w.DoctorName,
		Service:         w.Service,
		AppointmentDate: w.AppointmentDate,
		StartTime:       firstOf(w.StartTime, w.AppointmentTime),
		EndTime:         w.EndTime,
		Status:          appointmentStatus(firstOf(w.Status, w.ServiceStatus)),
		Notes:           w.Notes,
		IsRecurring:     truthy(w.IsRecurring),
	}
	if n, ok := number(w.RecurrenceInterval); ok {
		a.RecurrenceInterval = n
	}

	if _, err := model.ParseDate(a.AppointmentDate, time.UTC); err != nil {
		return a, "appointment " + a.ID + ": bad appointment_date " + strconv.Quote(a.AppointmentDate)
	}
	if _, err := model.ParseClock(a.StartTime); err != nil {
		return a, "appointment " + a.ID + ": bad start time " + strconv.Quote(a.StartTime)
	}
	if a.EndTime != "" {
		if _, err := model.ParseClock(a.EndTime); err != nil {
			return a, "appointment " + a.ID + ": bad end_time " + strconv.Quote(a.EndTime)
		}
	}
	if !model.ValidAppointmentStatus(a.Status) {
		return a, "appointment " + a.ID + ": unknown status " + strconv.Quote(a.Status)
	}
	return a, ""
}

// statusAliases maps statuses the platform writes outside the portal's
// four onto them. Recurring occurrences are stored as "Scheduled".
var statusAliases = map[string]string{
	"Scheduled": model.StatusPending,
}

func appointmentStatus(s string) string {
	if a, ok := statusAliases[s]; ok {
		return a
	}
	return s
}

type wireLeave struct {
	Name        string `json:"name"`
	Doctor      string `json:"doctor"`
	FromDate    string `json:"from_date"`
	LeaveStart  string `json:"leave_start"`
	ToDate      string `json:"to_date"`
	LeaveEnd    string `json:"leave_end"`
	Reason      string `json:"reason"`
	LeaveReason string `json:"leave_reason"`
	Status      string `json:"status"`
}

func (w wireLeave) normalize() (model.DoctorLeave, string) {
	l := model.DoctorLeave{
		ID:       w.Name,
		Doctor:   w.Doctor,
		FromDate: firstOf(w.FromDate, w.LeaveStart),
		ToDate:   firstOf(w.ToDate, w.LeaveEnd),
		Reason:   firstOf(w.Reason, w.LeaveReason),
		Status:   w.Status,
	}
	if _, err := model.ParseDate(l.FromDate, time.UTC); err != nil {
		return l, "leave " + l.ID + ": bad from_date " + strconv.Quote(l.FromDate)
	}
	if _, err := model.ParseDate(l.ToDate, time.UTC); err != nil {
		return l, "leave " + l.ID + ": bad to_date " + strconv.Quote(l.ToDate)
	}
	if !model.ValidLeaveStatus(l.Status) {
		return l, "leave " + l.ID + ": unknown status " + strconv.Quote(l.Status)
	}
	return l, ""
}

type wireDoctor struct {
	Name           string `json:"name"`
	FullName       string `json:"full_name"`
	DoctorName     string `json:"doctor_name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Specialization string `json:"specialization"`
}

func (w wireDoctor) normalize() (model.Doctor, string) {
	d := model.Doctor{
		ID:             w.Name,
		FullName:       firstOf(w.FullName, w.DoctorName, strings.TrimSpace(w.FirstName+" "+w.LastName)),
		Specialization: w.Specialization,
	}
	if d.ID == "" {
		return d, "doctor without name"
	}
	return d, ""
}

func (w wireEvent) normalize() (model.CalendarEvent, string) {
	e := model.CalendarEvent{
		ID:     w.ID,
		Title:  w.Title,
		Start:  w.Start,
		End:    w.End,
		Color:  w.Color,
		URL:    w.URL,
		AllDay: truthy(w.AllDay),
		Status: w.Status,
	}
	if e.Title == "" {
		return e, "event without title"
	}
	_, allDay, err := model.ParseInstant(e.Start, time.UTC)
	if err != nil {
		return e, "event " + strconv.Quote(e.Title) + ": bad start " + strconv.Quote(e.Start)
	}
	if allDay {
		e.AllDay = true
	}
	if e.End != "" {
		if _, _, err := model.ParseInstant(e.End, time.UTC); err != nil {
			return e, "event " + strconv.Quote(e.Title) + ": bad end " + strconv.Quote(e.End)
		}
	}
	return e, ""
}

type wireEvent struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Color  string `json:"color"`
	URL    string `json:"url"`
	AllDay any    `json:"allDay"`
	Status string `json:"status"`
}

type wireCreated struct {
	Name          string `json:"name"`
	AppointmentID string `json:"appointment_id"`
	LeaveID       string `json:"leave_id"`
	Message       string `json:"message"`
}

// decodeList decodes a JSON array, or an object holding the array under
// key when key is set. Each element is normalized and the first shape
// problem aborts the decode.
func decodeList[W any, T any](proc, key string, raw json.RawMessage, norm func(W) (T, string)) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if key != "" && len(raw) > 0 && raw[0] == '{' {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, shapef(proc, "%v", err)
		}
		inner, ok := wrapped[key]
		if !ok {
			return nil, shapef(proc, "missing %q", key)
		}
		raw = bytes.TrimSpace(inner)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	var wire []W
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, shapef(proc, "expected a list: %v", err)
	}
	out := make([]T, 0, len(wire))
	for _, w := range wire {
		v, problem := norm(w)
		if problem != "" {
			return nil, shapef(proc, "%s", problem)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeCreated(proc string, raw json.RawMessage) (model.Created, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return model.Created{}, nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.Created{}, shapef(proc, "%v", err)
		}
		return model.Created{ID: s}, nil
	case raw[0] == '{':
		var w wireCreated
		if err := json.Unmarshal(raw, &w); err != nil {
			return model.Created{}, shapef(proc, "%v", err)
		}
		return model.Created{ID: firstOf(w.Name, w.AppointmentID, w.LeaveID), Message: w.Message}, nil
	}
	return model.Created{}, shapef(proc, "unexpected %s", raw)
}

func firstOf(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}

func number(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(x)
		return n, err == nil
	}
	return 0, false
}
