// Package platform is the typed client for the clinic platform's remote
// procedures. Every response is decoded and checked here, so code above
// this package only sees well-formed model values.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"clinic-portal/internal/model"
	"clinic-portal/internal/rpc"
)

const DefaultPrefix = "myhealth.myhealth.api"

// procedure name -> platform module
var modules = map[string]string{
	"get_calendar_events":      "appointment_api",
	"get_appointment_summary":  "appointment_api",
	"create_appointment":       "appointment_api",
	"get_patient_appointments": "appointment_api",
	"get_patient_id_for_user":  "appointment_api",
	"get_doctor_schedule":      "doctor_api",
	"get_doctor_stats":         "doctor_api",
	"get_doctors":              "doctor_api",
	"get_doctor_leaves":        "doctor_leave_api",
	"apply_leave":              "doctor_leave_api",
	"book_appointment":         "patient_api",
}

type Client struct {
	f      rpc.Fetcher
	prefix string
	token  string
}

// New returns a client calling procedures as <prefix>.<module>.<name>.
// An empty prefix sends bare procedure names.
func New(f rpc.Fetcher, prefix string) *Client {
	return &Client{f: f, prefix: prefix}
}

// WithToken returns a copy of c that authenticates as tok.
func (c *Client) WithToken(tok string) *Client {
	cp := *c
	cp.token = tok
	return &cp
}

// Procedure returns the full remote name for proc.
func (c *Client) Procedure(proc string) string {
	if c.prefix == "" {
		return proc
	}
	return c.prefix + "." + modules[proc] + "." + proc
}

func (c *Client) call(ctx context.Context, proc string, args rpc.Args) (json.RawMessage, error) {
	if c.token != "" {
		ctx = rpc.WithToken(ctx, c.token)
	}
	if args == nil {
		args = rpc.Args{}
	}
	raw, err := c.f.Invoke(ctx, c.Procedure(proc), args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", proc, err)
	}
	return raw, nil
}

// CalendarEvents lists the calling user's appointments as calendar events.
func (c *Client) CalendarEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	raw, err := c.call(ctx, "get_calendar_events", nil)
	if err != nil {
		return nil, err
	}
	return decodeList("get_calendar_events", "", raw, wireEvent.normalize)
}

// DoctorSchedule lists appointments, availability slots and leave for doctor.
func (c *Client) DoctorSchedule(ctx context.Context, doctor string) ([]model.CalendarEvent, error) {
	raw, err := c.call(ctx, "get_doctor_schedule", rpc.Args{"doctor": doctor})
	if err != nil {
		return nil, err
	}
	return decodeList("get_doctor_schedule", "", raw, wireEvent.normalize)
}

func (c *Client) DoctorStats(ctx context.Context, doctor string) (model.DoctorStats, error) {
	raw, err := c.call(ctx, "get_doctor_stats", rpc.Args{"doctor": doctor})
	if err != nil {
		return model.DoctorStats{}, err
	}
	var w struct {
		TotalAppointments *int `json:"total_appointments"`
		Upcoming          *int `json:"upcoming"`
		ActiveLeaves      *int `json:"active_leaves"`
		PatientsSeen      *int `json:"patients_seen"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.DoctorStats{}, shapef("get_doctor_stats", "%v", err)
	}
	if w.TotalAppointments == nil || w.Upcoming == nil || w.ActiveLeaves == nil || w.PatientsSeen == nil {
		return model.DoctorStats{}, shapef("get_doctor_stats", "missing counters in %s", raw)
	}
	return model.DoctorStats{
		TotalAppointments: *w.TotalAppointments,
		Upcoming:          *w.Upcoming,
		ActiveLeaves:      *w.ActiveLeaves,
		PatientsSeen:      *w.PatientsSeen,
	}, nil
}

// PatientID returns the Patient record id of the calling user, or
// ErrNoPatient when the platform has none.
func (c *Client) PatientID(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "get_patient_id_for_user", nil)
	if err != nil {
		return "", err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrNoPatient
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		var obj struct {
			Error   string `json:"error"`
			Patient string `json:"patient"`
		}
		if json.Unmarshal(raw, &obj) != nil {
			return "", shapef("get_patient_id_for_user", "expected a string, got %s", raw)
		}
		if obj.Error != "" || obj.Patient == "" {
			return "", ErrNoPatient
		}
		id = obj.Patient
	}
	if id == "" {
		return "", ErrNoPatient
	}
	return id, nil
}

func (c *Client) AppointmentSummary(ctx context.Context) (model.AppointmentSummary, error) {
	raw, err := c.call(ctx, "get_appointment_summary", nil)
	if err != nil {
		return model.AppointmentSummary{}, err
	}
	var w struct {
		Summary *model.AppointmentSummary `json:"summary"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.AppointmentSummary{}, shapef("get_appointment_summary", "%v", err)
	}
	if w.Summary == nil {
		return model.AppointmentSummary{}, shapef("get_appointment_summary", "missing summary")
	}
	return *w.Summary, nil
}

// Doctors accepts both a bare list and {"doctors": [...]}.
func (c *Client) Doctors(ctx context.Context) ([]model.Doctor, error) {
	raw, err := c.call(ctx, "get_doctors", nil)
	if err != nil {
		return nil, err
	}
	return decodeList("get_doctors", "doctors", raw, wireDoctor.normalize)
}

func (c *Client) CreateAppointment(ctx context.Context, r NewAppointment) (model.Created, error) {
	if err := r.Validate(); err != nil {
		return model.Created{}, err
	}
	raw, err := c.call(ctx, "create_appointment", r.args())
	if err != nil {
		return model.Created{}, err
	}
	return decodeCreated("create_appointment", raw)
}

func (c *Client) PatientAppointments(ctx context.Context, patient string) ([]model.Appointment, error) {
	if patient == "" {
		return nil, ErrNoPatient
	}
	raw, err := c.call(ctx, "get_patient_appointments", rpc.Args{"patient": patient})
	if err != nil {
		return nil, err
	}
	return decodeList("get_patient_appointments", "", raw, wireAppointment.normalize)
}

func (c *Client) BookAppointment(ctx context.Context, r Booking) (model.Created, error) {
	if err := r.Validate(); err != nil {
		return model.Created{}, err
	}
	raw, err := c.call(ctx, "book_appointment", r.args())
	if err != nil {
		return model.Created{}, err
	}
	return decodeCreated("book_appointment", raw)
}

func (c *Client) DoctorLeaves(ctx context.Context, doctor string) ([]model.DoctorLeave, error) {
	raw, err := c.call(ctx, "get_doctor_leaves", rpc.Args{"doctor": doctor})
	if err != nil {
		return nil, err
	}
	return decodeList("get_doctor_leaves", "", raw, wireLeave.normalize)
}

func (c *Client) ApplyLeave(ctx context.Context, r LeaveRequest) (model.Created, error) {
	if err := r.Validate(); err != nil {
		return model.Created{}, err
	}
	raw, err := c.call(ctx, "apply_leave", r.args())
	if err != nil {
		return model.Created{}, err
	}
	return decodeCreated("apply_leave", raw)
}
