package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"clinic-portal/internal/config"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/schedule"
	"clinic-portal/internal/session"
	"clinic-portal/internal/view"
)

// DoctorDashboard renders the doctor profile: stats, leave and the filtered
// schedule calendar, whichever the profile enables.
func (h *Handler) DoctorDashboard(c echo.Context) error {
	s := current(c)
	page := h.page(s, h.profile(c, s))
	page.Flash = flash(c)
	h.fillDoctor(c, s, &page, "/api/doctor/schedule")
	return c.Render(http.StatusOK, view.Dashboard, page)
}

func (h *Handler) fillDoctor(c echo.Context, s *session.Session, p *view.Page, feed string) {
	ctx := c.Request().Context()
	if p.Has(config.SectionStats) {
		st, err := s.Client().DoctorStats(ctx, s.Doctor)
		if err == nil {
			p.Stats = &st
		}
		h.note(c, p, err, "Could not load your statistics.")
	}
	if p.Has(config.SectionLeave) {
		var err error
		p.Leaves, err = s.Client().DoctorLeaves(ctx, s.Doctor)
		h.note(c, p, err, "Could not load your leave.")
	}
	if p.Has(config.SectionCalendar) {
		p.CalendarFeed = feed
		p.Toggles = view.Toggles(p.Profile.Filters, s.Visibility())
	}
}

// Toggle flips one schedule filter for the session.
func (h *Handler) Toggle(c echo.Context) error {
	k, err := schedule.ParseKind(c.Param("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	on := current(c).Toggle(k)
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return c.JSON(http.StatusOK, map[string]any{"kind": k, "on": on})
	}
	return c.Redirect(http.StatusSeeOther, "/doctor")
}

func (h *Handler) leavePage(c echo.Context, s *session.Session) view.Page {
	prof, ok := h.dash.Get("leave")
	if !ok || prof.Role != s.Role {
		prof = config.Profile{Name: "leave", Title: "Doctor Leave", Role: s.Role,
			Sections: []string{config.SectionLeave, config.SectionCalendar}}
	}
	// the leave feed ignores schedule toggles
	prof.Filters = nil
	page := h.page(s, prof)
	h.fillDoctor(c, s, &page, "/api/doctor/leaves")
	return page
}

func (h *Handler) LeaveForm(c echo.Context) error {
	s := current(c)
	page := h.leavePage(c, s)
	page.Flash = flash(c)
	return c.Render(http.StatusOK, view.Leave, page)
}

// ApplyLeave submits a leave request for the signed-in doctor.
func (h *Handler) ApplyLeave(c echo.Context) error {
	s := current(c)
	_, err := s.Client().ApplyLeave(c.Request().Context(), platform.LeaveRequest{
		Doctor:   s.Doctor,
		FromDate: c.FormValue("from_date"),
		ToDate:   c.FormValue("to_date"),
		Reason:   c.FormValue("reason"),
	})
	if err != nil {
		logFailure(c, err)
		page := h.leavePage(c, s)
		page.Error = platform.UserMessage(err, "Failed to apply for leave.")
		return c.Render(statusOf(err), view.Leave, page)
	}
	return c.Redirect(http.StatusSeeOther, "/doctor/leave?ok=leave")
}
