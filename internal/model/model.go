package model

import "time"

// appointment statuses
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

// leave statuses
const (
	LeavePending   = "Pending"
	LeaveApproved  = "Approved"
	LeaveRejected  = "Rejected"
	LeaveCompleted = "Completed"
)

type Appointment struct {
	ID                 string `json:"name"`
	Patient            string `json:"patient"`
	Doctor             string `json:"doctor"`
	DoctorName         string `json:"doctor_name,omitempty"`
	Service            string `json:"service"`
	AppointmentDate    string `json:"appointment_date"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time,omitempty"`
	Status             string `json:"status"`
	Notes              string `json:"notes,omitempty"`
	IsRecurring        bool   `json:"is_recurring,omitempty"`
	RecurrenceInterval int    `json:"recurrence_interval,omitempty"`
}

// Start combines the appointment date and start time in loc.
func (a Appointment) Start(loc *time.Location) (time.Time, error) {
	return CombineDateTime(a.AppointmentDate, a.StartTime, loc)
}

// End falls back to Start when no end time was recorded.
func (a Appointment) End(loc *time.Location) (time.Time, error) {
	if a.EndTime == "" {
		return a.Start(loc)
	}
	return CombineDateTime(a.AppointmentDate, a.EndTime, loc)
}

// Closed reports whether the status alone places the appointment in the past.
func (a Appointment) Closed() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}

type DoctorLeave struct {
	ID       string `json:"name,omitempty"`
	Doctor   string `json:"doctor"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Reason   string `json:"reason,omitempty"`
	Status   string `json:"status"`
}

func (l DoctorLeave) Approved() bool { return l.Status == LeaveApproved }

type Doctor struct {
	ID             string `json:"name"`
	FullName       string `json:"full_name"`
	Specialization string `json:"specialization,omitempty"`
}

// Label is what booking forms show in the doctor dropdown.
func (d Doctor) Label() string {
	name := d.FullName
	if name == "" {
		name = d.ID
	}
	if d.Specialization == "" {
		return name
	}
	return name + " (" + d.Specialization + ")"
}

type CalendarEvent struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
	Color  string `json:"color,omitempty"`
	URL    string `json:"url,omitempty"`
	Route  string `json:"route,omitempty"`
	AllDay bool   `json:"allDay,omitempty"`
	Status string `json:"status,omitempty"`
}

type AppointmentSummary struct {
	TotalAppointments int `json:"total_appointments"`
	Pending           int `json:"pending"`
	Completed         int `json:"completed"`
	Cancelled         int `json:"cancelled"`
}

type DoctorStats struct {
	TotalAppointments int `json:"total_appointments"`
	Upcoming          int `json:"upcoming"`
	ActiveLeaves      int `json:"active_leaves"`
	PatientsSeen      int `json:"patients_seen"`
}

// Created is the platform's acknowledgement of a new record.
type Created struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}
