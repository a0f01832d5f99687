package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"clinic-portal/internal/config"
	"clinic-portal/internal/middleware"
	"clinic-portal/internal/model"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/refresh"
	"clinic-portal/internal/rpc"
	"clinic-portal/internal/session"
	"clinic-portal/internal/view"
)

type Options struct {
	Dashboards *config.Dashboards
	// Snapshot may be nil; pages then always call the platform.
	Snapshot *refresh.Refresher
	Location *time.Location
	DeskURL  string
	Secret   string
	Secure   bool
}

type Handler struct {
	dash    *config.Dashboards
	snap    *refresh.Refresher
	loc     *time.Location
	deskURL string
	secret  string
	secure  bool
	now     func() time.Time
}

func New(o Options) *Handler {
	loc := o.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		dash:    o.Dashboards,
		snap:    o.Snapshot,
		loc:     loc,
		deskURL: o.DeskURL,
		secret:  o.Secret,
		secure:  o.Secure,
		now:     time.Now,
	}
}

// SetClock replaces the handler's notion of now.
func (h *Handler) SetClock(now func() time.Time) { h.now = now }

// Register mounts every route. sess authenticates, limit throttles writes.
func (h *Handler) Register(e *echo.Echo, sess, limit echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health)
	e.POST("/session", h.Login, limit)
	e.POST("/logout", h.Logout)

	p := e.Group("/portal", sess)
	p.GET("", h.Welcome)
	p.GET("/book", h.BookForm)
	p.POST("/book", h.Book, limit)
	p.POST("/quick-book", h.QuickBook, limit)
	p.GET("/appointments", h.Appointments)

	d := e.Group("/doctor", sess, middleware.RequireDoctor)
	d.GET("", h.DoctorDashboard)
	d.POST("/toggle/:kind", h.Toggle)
	d.GET("/leave", h.LeaveForm)
	d.POST("/leave", h.ApplyLeave, limit)
	d.GET("/leave.ics", h.LeaveICS)
	d.GET("/schedule.ics", h.ScheduleICS)

	api := e.Group("/api", sess)
	api.GET("/calendar/events", h.CalendarEvents)
	api.GET("/calendar/mine", h.MyCalendar)
	ad := api.Group("/doctor", middleware.RequireDoctor)
	ad.GET("/schedule", h.DoctorSchedule)
	ad.GET("/stats", h.DoctorStats)
	ad.GET("/leaves", h.DoctorLeaves)
}

func (h *Handler) Health(c echo.Context) error {
	out := map[string]any{"status": "ok"}
	if h.snap != nil {
		if s, ok := h.snap.Snapshot(0); ok {
			out["snapshot_at"] = s.UpdatedAt
		}
	}
	return c.JSON(http.StatusOK, out)
}

func current(c echo.Context) *session.Session {
	s, _ := session.FromContext(c.Request().Context())
	return s
}

func (h *Handler) today() string {
	return h.now().In(h.loc).Format(model.DateLayout)
}

// profile picks the dashboard profile for s, honoring ?profile= when it
// names a profile for the session's role.
func (h *Handler) profile(c echo.Context, s *session.Session) config.Profile {
	role := s.Role
	if q := c.QueryParam("profile"); q != "" {
		if p, ok := h.dash.Get(q); ok && p.Role == role {
			s.SetProfile(q)
		}
	}
	p, ok := h.dash.ForRole(s.Profile(), role)
	if !ok {
		return config.Profile{Name: role, Title: "Dashboard", Role: role}
	}
	return p
}

func (h *Handler) page(s *session.Session, p config.Profile) view.Page {
	return view.Page{
		Title:   p.Title,
		User:    s.DisplayName(),
		Profile: p,
		Today:   h.today(),
		DeskURL: h.deskURL,
	}
}

var flashes = map[string]string{
	"booked": "Appointment booked successfully!",
	"leave":  "Leave applied successfully.",
}

func flash(c echo.Context) string { return flashes[c.QueryParam("ok")] }

func (h *Handler) summary(ctx context.Context, s *session.Session) (model.AppointmentSummary, error) {
	if h.snap != nil {
		if snap, ok := h.snap.Fresh(); ok {
			return snap.Summary, nil
		}
	}
	return s.Client().AppointmentSummary(ctx)
}

func (h *Handler) doctors(ctx context.Context, s *session.Session) ([]model.Doctor, error) {
	if h.snap != nil {
		if snap, ok := h.snap.Fresh(); ok {
			return snap.Doctors, nil
		}
	}
	return s.Client().Doctors(ctx)
}

// statusOf maps portal errors to HTTP status codes.
func statusOf(err error) int {
	var ve *platform.ValidationError
	var se *platform.ShapeError
	var re *rpc.RemoteError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, platform.ErrNoPatient):
		return http.StatusForbidden
	case errors.As(err, &se), errors.As(err, &re):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &he):
		return he.Code
	}
	return http.StatusBadGateway
}

func logFailure(c echo.Context, err error) {
	zerolog.Ctx(c.Request().Context()).Warn().Err(err).Str("path", c.Path()).Msg("platform call failed")
}

// apiError is the JSON error for API routes.
func apiError(c echo.Context, err error, fallback string) error {
	logFailure(c, err)
	return echo.NewHTTPError(statusOf(err), platform.UserMessage(err, fallback))
}

// fail renders the blocking error page. A missing patient record always
// ends up here.
func (h *Handler) fail(c echo.Context, err error, fallback, back string) error {
	logFailure(c, err)
	heading := "Something went wrong"
	if errors.Is(err, platform.ErrNoPatient) {
		heading = "Patient record not found"
	}
	return c.Render(statusOf(err), view.Error, view.Page{
		Title:   "Error",
		Heading: heading,
		Message: platform.UserMessage(err, fallback),
		Back:    back,
	})
}
