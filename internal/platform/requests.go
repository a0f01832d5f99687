package platform

import (
	"strings"
	"time"

	"clinic-portal/internal/model"
	"clinic-portal/internal/rpc"
)

// Services offered on the booking forms.
var Services = []string{"Follow-up", "Treatment", "Emergency", "Consultation"}

// NewAppointment is the detailed booking form: a doctor, a date and a
// start/end window.
type NewAppointment struct {
	Patient   string
	Doctor    string
	Service   string
	Date      string
	StartTime string
	EndTime   string
	Notes     string
}

func (r NewAppointment) Validate() error {
	if r.Patient == "" {
		return ErrNoPatient
	}
	if err := required(map[string]string{
		"doctor": r.Doctor, "appointment_date": r.Date,
		"start_time": r.StartTime, "end_time": r.EndTime,
	}, "Please fill in all required fields."); err != nil {
		return err
	}
	if err := checkDate(r.Date); err != nil {
		return err
	}
	return checkClock(r.StartTime, r.EndTime)
}

func (r NewAppointment) args() rpc.Args {
	service := r.Service
	if service == "" {
		service = Services[0]
	}
	return rpc.Args{
		"patient":          r.Patient,
		"doctor":           r.Doctor,
		"service":          service,
		"appointment_date": r.Date,
		"start_time":       r.StartTime,
		"end_time":         r.EndTime,
		"notes":            r.Notes,
	}
}

// Booking is the quick booking form: a single time slot.
type Booking struct {
	Patient string
	Doctor  string
	Date    string
	Time    string
	Service string
}

func (r Booking) Validate() error {
	if r.Patient == "" {
		return ErrNoPatient
	}
	if err := required(map[string]string{
		"doctor": r.Doctor, "appointment_date": r.Date,
		"appointment_time": r.Time, "service": r.Service,
	}, "Please fill all fields before booking."); err != nil {
		return err
	}
	if err := checkDate(r.Date); err != nil {
		return err
	}
	return checkClock(r.Time)
}

func (r Booking) args() rpc.Args {
	return rpc.Args{
		"patient":          r.Patient,
		"doctor":           r.Doctor,
		"appointment_date": r.Date,
		"appointment_time": r.Time,
		"service":          r.Service,
	}
}

type LeaveRequest struct {
	Doctor   string
	FromDate string
	ToDate   string
	Reason   string
}

// Validate checks presence and format only. Whether to_date may precede
// from_date is left to the platform.
func (r LeaveRequest) Validate() error {
	if err := required(map[string]string{
		"doctor": r.Doctor, "from_date": r.FromDate,
		"to_date": r.ToDate, "reason": r.Reason,
	}, "Please fill all fields before applying for leave."); err != nil {
		return err
	}
	if err := checkDate(r.FromDate); err != nil {
		return err
	}
	return checkDate(r.ToDate)
}

func (r LeaveRequest) args() rpc.Args {
	return rpc.Args{
		"doctor":    r.Doctor,
		"from_date": r.FromDate,
		"to_date":   r.ToDate,
		"reason":    r.Reason,
	}
}

var fieldOrder = []string{
	"doctor", "service", "appointment_date", "appointment_time",
	"start_time", "end_time", "from_date", "to_date", "reason",
}

func required(fields map[string]string, msg string) error {
	var missing []string
	for _, name := range fieldOrder {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Message: msg}
	}
	return nil
}

func checkDate(v string) error {
	if _, err := model.ParseDate(v, time.UTC); err != nil {
		return &ValidationError{Fields: []string{"date"}, Message: "Please enter a valid date."}
	}
	return nil
}

func checkClock(vs ...string) error {
	for _, v := range vs {
		if _, err := model.ParseClock(v); err != nil {
			return &ValidationError{Fields: []string{"time"}, Message: "Please enter a valid time."}
		}
	}
	return nil
}
