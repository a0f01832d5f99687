package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"clinic-portal/internal/ical"
	"clinic-portal/internal/model"
	"clinic-portal/internal/schedule"
)

// CalendarEvents serves the clinic-wide event feed.
func (h *Handler) CalendarEvents(c echo.Context) error {
	evs, err := current(c).Client().CalendarEvents(c.Request().Context())
	if err != nil {
		return apiError(c, err, "Could not load calendar events.")
	}
	return c.JSON(http.StatusOK, schedule.FeedEvents(evs))
}

// MyCalendar serves the patient's appointments from ?start up to ?end,
// with recurring appointments expanded.
func (h *Handler) MyCalendar(c echo.Context) error {
	from, to, err := h.window(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s := current(c)
	ctx := c.Request().Context()
	pid, err := s.PatientID(ctx)
	if err != nil {
		return apiError(c, err, "")
	}
	appts, err := s.Client().PatientAppointments(ctx, pid)
	if err != nil {
		return apiError(c, err, "Could not load your appointments.")
	}
	return c.JSON(http.StatusOK, schedule.ExpandAppointments(appts, from, to, h.loc))
}

// window reads the calendar's visible range; end is exclusive. Without one
// it covers the previous month through three months ahead.
func (h *Handler) window(c echo.Context) (from, to time.Time, err error) {
	now := h.now().In(h.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	from, to = first.AddDate(0, -1, 0), first.AddDate(0, 3, 0)
	if v := c.QueryParam("start"); v != "" {
		if from, _, err = model.ParseInstant(v, h.loc); err != nil {
			return from, to, fmt.Errorf("start: %w", err)
		}
	}
	if v := c.QueryParam("end"); v != "" {
		if to, _, err = model.ParseInstant(v, h.loc); err != nil {
			return from, to, fmt.Errorf("end: %w", err)
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("end before start")
	}
	return from, to, nil
}

// visibility is the session's toggles unless ?kinds= overrides them.
func visibility(c echo.Context) (schedule.Visibility, error) {
	q := c.QueryParam("kinds")
	if q == "" {
		return current(c).Visibility(), nil
	}
	var kinds []schedule.EventKind
	for _, part := range strings.Split(q, ",") {
		k, err := schedule.ParseKind(strings.TrimSpace(part))
		if err != nil {
			return schedule.Visibility{}, err
		}
		kinds = append(kinds, k)
	}
	return schedule.VisibilityFor(kinds), nil
}

func (h *Handler) doctorSchedule(c echo.Context) ([]model.CalendarEvent, error) {
	vis, err := visibility(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s := current(c)
	entries, err := s.Client().DoctorSchedule(c.Request().Context(), s.Doctor)
	if err != nil {
		return nil, apiError(c, err, "Could not load your schedule.")
	}
	return schedule.ScheduleEvents(entries, vis), nil
}

func (h *Handler) DoctorSchedule(c echo.Context) error {
	evs, err := h.doctorSchedule(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, evs)
}

func (h *Handler) DoctorStats(c echo.Context) error {
	s := current(c)
	st, err := s.Client().DoctorStats(c.Request().Context(), s.Doctor)
	if err != nil {
		return apiError(c, err, "Could not load your statistics.")
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) leaveEvents(c echo.Context) ([]model.CalendarEvent, error) {
	s := current(c)
	leaves, err := s.Client().DoctorLeaves(c.Request().Context(), s.Doctor)
	if err != nil {
		return nil, apiError(c, err, "Could not load your leave.")
	}
	return schedule.LeaveEvents(leaves), nil
}

// DoctorLeaves serves approved leave as calendar events.
func (h *Handler) DoctorLeaves(c echo.Context) error {
	evs, err := h.leaveEvents(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, evs)
}

func (h *Handler) LeaveICS(c echo.Context) error {
	evs, err := h.leaveEvents(c)
	if err != nil {
		return err
	}
	return h.ics(c, "Leave", "leave.ics", evs)
}

func (h *Handler) ScheduleICS(c echo.Context) error {
	evs, err := h.doctorSchedule(c)
	if err != nil {
		return err
	}
	return h.ics(c, "Schedule", "schedule.ics", evs)
}

func (h *Handler) ics(c echo.Context, name, file string, evs []model.CalendarEvent) error {
	feed := ical.Feed{Name: current(c).DisplayName() + " - " + name, DeskURL: h.deskURL, Loc: h.loc}
	body, err := feed.Encode(evs, h.now())
	if err != nil {
		return apiError(c, err, "Could not export the calendar.")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file))
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
