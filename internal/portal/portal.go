// Package portal publishes the portal's classified and projected views as
// gRPC procedures, for clients that want the data without the pages.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-portal/internal/middleware"
	"clinic-portal/internal/model"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/refresh"
	"clinic-portal/internal/rpc"
	"clinic-portal/internal/schedule"
	"clinic-portal/internal/session"
)

const ServiceName = "clinic.portal.v1.Portal"

// procedures that write to the platform
var Mutating = []string{"book_appointment", "apply_leave"}

type Service struct {
	store *session.Store
	snap  *refresh.Refresher
	loc   *time.Location
	now   func() time.Time
}

// New builds the procedure set. snap may be nil, in which case the summary
// is always fetched live.
func New(store *session.Store, snap *refresh.Refresher, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, snap: snap, loc: loc, now: time.Now}
}

func (s *Service) Register(srv *rpc.Server) {
	srv.Handle("classified_appointments", s.classifiedAppointments)
	srv.Handle("leave_calendar", s.leaveCalendar)
	srv.Handle("doctor_schedule", s.doctorSchedule)
	srv.Handle("appointment_summary", s.appointmentSummary)
	srv.Handle("book_appointment", s.bookAppointment)
	srv.Handle("apply_leave", s.applyLeave)
}

// MethodPaths returns full gRPC paths for names.
func MethodPaths(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = rpc.MethodPath(ServiceName, n)
	}
	return out
}

func (s *Service) session(ctx context.Context) (*session.Session, error) {
	c, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no session")
	}
	return s.store.Get(c), nil
}

func (s *Service) doctor(ctx context.Context) (*session.Session, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.IsDoctor() {
		return nil, status.Error(codes.PermissionDenied, "doctors only")
	}
	return sess, nil
}

type Classified struct {
	Upcoming []model.Appointment `json:"upcoming"`
	Past     []model.Appointment `json:"past"`
}

func (s *Service) classifiedAppointments(ctx context.Context, _ rpc.Args) (any, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	pid, err := sess.PatientID(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	appts, err := sess.Client().PatientAppointments(ctx, pid)
	if err != nil {
		return nil, toStatus(err)
	}
	up, past := schedule.Classify(appts, s.now().In(s.loc))
	return Classified{Upcoming: up, Past: past}, nil
}

func (s *Service) leaveCalendar(ctx context.Context, _ rpc.Args) (any, error) {
	sess, err := s.doctor(ctx)
	if err != nil {
		return nil, err
	}
	leaves, err := sess.Client().DoctorLeaves(ctx, sess.Doctor)
	if err != nil {
		return nil, toStatus(err)
	}
	return schedule.LeaveEvents(leaves), nil
}

// doctorSchedule takes an optional "kinds" list; without it the session's
// dashboard toggles apply.
func (s *Service) doctorSchedule(ctx context.Context, args rpc.Args) (any, error) {
	sess, err := s.doctor(ctx)
	if err != nil {
		return nil, err
	}
	vis := sess.Visibility()
	if raw, ok := args["kinds"].([]any); ok {
		kinds := make([]schedule.EventKind, 0, len(raw))
		for _, v := range raw {
			str, _ := v.(string)
			k, err := schedule.ParseKind(str)
			if err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			kinds = append(kinds, k)
		}
		vis = schedule.VisibilityFor(kinds)
	}
	entries, err := sess.Client().DoctorSchedule(ctx, sess.Doctor)
	if err != nil {
		return nil, toStatus(err)
	}
	return schedule.ScheduleEvents(entries, vis), nil
}

func (s *Service) appointmentSummary(ctx context.Context, _ rpc.Args) (any, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if s.snap != nil {
		if snap, ok := s.snap.Fresh(); ok {
			return snap.Summary, nil
		}
	}
	sum, err := sess.Client().AppointmentSummary(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return sum, nil
}

func (s *Service) bookAppointment(ctx context.Context, args rpc.Args) (any, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	pid, err := sess.PatientID(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	created, err := sess.Client().BookAppointment(ctx, platform.Booking{
		Patient: pid,
		Doctor:  str(args, "doctor"),
		Date:    str(args, "appointment_date"),
		Time:    str(args, "appointment_time"),
		Service: str(args, "service"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return created, nil
}

func (s *Service) applyLeave(ctx context.Context, args rpc.Args) (any, error) {
	sess, err := s.doctor(ctx)
	if err != nil {
		return nil, err
	}
	created, err := sess.Client().ApplyLeave(ctx, platform.LeaveRequest{
		Doctor:   sess.Doctor,
		FromDate: str(args, "from_date"),
		ToDate:   str(args, "to_date"),
		Reason:   str(args, "reason"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return created, nil
}

func str(args rpc.Args, key string) string {
	if v, ok := args[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

func toStatus(err error) error {
	var ve *platform.ValidationError
	var se *platform.ShapeError
	var re *rpc.RemoteError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Message)
	case errors.Is(err, platform.ErrNoPatient):
		return status.Error(codes.FailedPrecondition, platform.UserMessage(err, ""))
	case errors.As(err, &se):
		return status.Error(codes.Internal, se.Error())
	case errors.As(err, &re):
		return status.Error(codes.Unavailable, platform.UserMessage(err, "clinic platform unavailable"))
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Unknown, err.Error())
}
