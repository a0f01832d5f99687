package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-portal/internal/config"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/schedule"
	"clinic-portal/internal/session"
	"clinic-portal/internal/view"
)

// Welcome renders the patient dashboard for the session's profile.
func (h *Handler) Welcome(c echo.Context) error {
	s := current(c)
	if s.IsDoctor() {
		return c.Redirect(http.StatusSeeOther, "/doctor")
	}
	page := h.page(s, h.profile(c, s))
	page.Flash = flash(c)
	if err := h.fillPatient(c, s, &page); err != nil {
		return h.fail(c, err, "Could not load your dashboard.", "")
	}
	return c.Render(http.StatusOK, view.Dashboard, page)
}

// fillPatient loads the data the profile's sections need. Only a missing
// patient record is fatal; other failures land in page.Error.
func (h *Handler) fillPatient(c echo.Context, s *session.Session, p *view.Page) error {
	ctx := c.Request().Context()
	pid, err := s.PatientID(ctx)
	if err != nil {
		if errors.Is(err, platform.ErrNoPatient) {
			return err
		}
		h.note(c, p, err, "Could not load your patient record.")
		return nil
	}

	if p.Has(config.SectionSummary) {
		sum, err := h.summary(ctx, s)
		if err == nil {
			p.Summary = &sum
		}
		h.note(c, p, err, "Could not load your appointment summary.")
	}
	if p.Has(config.SectionBook) || p.Has(config.SectionQuickBook) {
		p.Doctors, err = h.doctors(ctx, s)
		h.note(c, p, err, "Could not load the list of doctors.")
	}
	if p.Has(config.SectionAppointments) || p.Has(config.SectionHistory) {
		appts, err := s.Client().PatientAppointments(ctx, pid)
		if err == nil {
			p.Upcoming, p.Past = schedule.Classify(appts, h.now().In(h.loc))
		}
		h.note(c, p, err, "Could not load your appointments.")
	}
	if p.Has(config.SectionCalendar) {
		p.CalendarFeed = "/api/calendar/mine"
	}
	return nil
}

// note records the first non-fatal failure on the page.
func (h *Handler) note(c echo.Context, p *view.Page, err error, fallback string) {
	if err == nil {
		return
	}
	logFailure(c, err)
	if p.Error == "" {
		p.Error = platform.UserMessage(err, fallback)
	}
}

func (h *Handler) bookPage(c echo.Context, s *session.Session) view.Page {
	prof := h.profile(c, s)
	if !prof.Has(config.SectionBook) {
		if p, ok := h.dash.Get("patient"); ok {
			prof = p
		}
	}
	page := h.page(s, prof)
	var err error
	page.Doctors, err = h.doctors(c.Request().Context(), s)
	h.note(c, &page, err, "Could not load the list of doctors.")
	return page
}

func (h *Handler) BookForm(c echo.Context) error {
	s := current(c)
	if _, err := s.PatientID(c.Request().Context()); err != nil {
		return h.fail(c, err, "Could not load your patient record.", "")
	}
	return c.Render(http.StatusOK, view.Book, h.bookPage(c, s))
}

// Book creates an appointment from the full booking form.
func (h *Handler) Book(c echo.Context) error {
	s := current(c)
	ctx := c.Request().Context()
	pid, err := s.PatientID(ctx)
	if err != nil {
		return h.fail(c, err, "Could not load your patient record.", "")
	}
	_, err = s.Client().CreateAppointment(ctx, platform.NewAppointment{
		Patient:   pid,
		Doctor:    c.FormValue("doctor"),
		Service:   c.FormValue("service"),
		Date:      c.FormValue("appointment_date"),
		StartTime: c.FormValue("start_time"),
		EndTime:   c.FormValue("end_time"),
		Notes:     c.FormValue("notes"),
	})
	if err != nil {
		return h.formError(c, s, err, "Failed to book appointment.")
	}
	return c.Redirect(http.StatusSeeOther, "/portal?ok=booked")
}

// QuickBook books through the single-slot form.
func (h *Handler) QuickBook(c echo.Context) error {
	s := current(c)
	ctx := c.Request().Context()
	pid, err := s.PatientID(ctx)
	if err != nil {
		return h.fail(c, err, "Could not load your patient record.", "")
	}
	_, err = s.Client().BookAppointment(ctx, platform.Booking{
		Patient: pid,
		Doctor:  c.FormValue("doctor"),
		Date:    c.FormValue("appointment_date"),
		Time:    c.FormValue("appointment_time"),
		Service: c.FormValue("service"),
	})
	if err != nil {
		return h.formError(c, s, err, "Booking failed.")
	}
	return c.Redirect(http.StatusSeeOther, "/portal?ok=booked")
}

// formError re-renders the booking form with a blocking message.
func (h *Handler) formError(c echo.Context, s *session.Session, err error, fallback string) error {
	if errors.Is(err, platform.ErrNoPatient) {
		return h.fail(c, err, fallback, "")
	}
	logFailure(c, err)
	page := h.bookPage(c, s)
	page.Error = platform.UserMessage(err, fallback)
	return c.Render(statusOf(err), view.Book, page)
}

// Appointments lists upcoming and past appointments.
func (h *Handler) Appointments(c echo.Context) error {
	s := current(c)
	ctx := c.Request().Context()
	pid, err := s.PatientID(ctx)
	if err != nil {
		return h.fail(c, err, "Could not load your patient record.", "")
	}
	page := h.page(s, h.profile(c, s))
	page.Title = "My Appointments"
	appts, err := s.Client().PatientAppointments(ctx, pid)
	if err != nil {
		h.note(c, &page, err, "Could not load your appointments.")
	} else {
		page.Upcoming, page.Past = schedule.Classify(appts, h.now().In(h.loc))
	}
	return c.Render(http.StatusOK, view.Appointments, page)
}
