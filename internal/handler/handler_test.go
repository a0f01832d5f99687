package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"clinic-portal/internal/auth"
	"clinic-portal/internal/config"
	"clinic-portal/internal/handler"
	"clinic-portal/internal/middleware"
	"clinic-portal/internal/model"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/rpc"
	"clinic-portal/internal/session"
	"clinic-portal/internal/view"
)

const secret = "handler-secret"

// clinic fakes the platform. replies are raw JSON by bare procedure name;
// fails take precedence.
type clinic struct {
	mu      sync.Mutex
	replies map[string]string
	fails   map[string]error
	calls   map[string]rpc.Args
}

func newClinic() *clinic {
	return &clinic{
		replies: map[string]string{
			"get_patient_id_for_user": `"PAT-1"`,
			"get_appointment_summary": `{"summary": {"total_appointments": 7, "pending": 3, "completed": 2, "cancelled": 2}}`,
			"get_doctors":             `[{"name": "DOC-1", "full_name": "Grace Hopper", "specialization": "Cardiology"}]`,
			"get_patient_appointments": `[
				{"name": "A1", "doctor": "DOC-1", "appointment_date": "2025-06-10", "start_time": "09:00", "status": "Pending", "service": "Treatment"},
				{"name": "A2", "doctor": "DOC-1", "appointment_date": "2025-05-01", "start_time": "09:00", "status": "Completed", "service": "Follow-up"},
				{"name": "A3", "doctor": "DOC-1", "appointment_date": "2025-06-02", "start_time": "10:00", "status": "Pending", "is_recurring": 1, "recurrence_interval": 7}
			]`,
			"get_calendar_events": `[
				{"title": "Consultation", "start": "2025-06-10T09:00:00", "status": "Pending", "url": "/app/appointment/A1"}
			]`,
			"get_doctor_schedule": `[
				{"title": "Appointment with PAT-1", "start": "2025-06-10T09:00:00", "url": "/app/appointment/A1"},
				{"title": "Available", "start": "2025-06-11T08:00:00"},
				{"title": "Leave (Conference)", "start": "2025-06-12"}
			]`,
			"get_doctor_stats": `{"total_appointments": 12, "upcoming": 4, "active_leaves": 1, "patients_seen": 8}`,
			"get_doctor_leaves": `[
				{"name": "L1", "from_date": "2025-06-12", "to_date": "2025-06-13", "reason": "Conference", "status": "Approved"},
				{"name": "L2", "from_date": "2025-07-01", "to_date": "2025-07-02", "reason": "Travel", "status": "Pending"}
			]`,
			"create_appointment": `{"name": "APT-9"}`,
			"book_appointment":   `{"appointment_id": "APT-10"}`,
			"apply_leave":        `{"leave_id": "LV-1"}`,
		},
		fails: map[string]error{},
		calls: map[string]rpc.Args{},
	}
}

func (f *clinic) Invoke(ctx context.Context, proc string, args rpc.Args) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[proc] = args
	if err, ok := f.fails[proc]; ok {
		return nil, err
	}
	raw, ok := f.replies[proc]
	if !ok {
		return nil, errors.New("unexpected " + proc)
	}
	return json.RawMessage(raw), nil
}

func (f *clinic) called(proc string) (rpc.Args, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.calls[proc]
	return a, ok
}

func setup(t *testing.T, f *clinic) *echo.Echo {
	t.Helper()
	r, err := view.New()
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	dash, err := config.LoadDashboards("")
	if err != nil {
		t.Fatalf("dashboards: %v", err)
	}

	e := echo.New()
	e.Renderer = r
	store := session.NewStore(platform.New(f, ""), time.Hour, "patient")
	h := handler.New(handler.Options{
		Dashboards: dash,
		Location:   time.UTC,
		DeskURL:    "https://clinic.example",
		Secret:     secret,
	})
	h.SetClock(func() time.Time { return time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC) })
	noLimit := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	h.Register(e, middleware.Session(secret, store), noLimit)
	return e
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.MakeToken(auth.Claims{UserID: role + "@clinic", FullName: "Ada Lovelace", Role: role}, secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func do(e *echo.Echo, method, target, tok string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body)
	}
}

func TestAuthRequired(t *testing.T) {
	e := setup(t, newClinic())
	for _, path := range []string{"/portal", "/doctor", "/api/calendar/events", "/api/doctor/schedule"} {
		if rec := do(e, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: got %d", path, rec.Code)
		}
	}
	if rec := do(e, http.MethodGet, "/portal", "not-a-token", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: got %d", rec.Code)
	}
}

func TestRoleRouting(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/portal", token(t, auth.RoleDoctor), nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/doctor" {
		t.Errorf("doctor at /portal: %d %s", rec.Code, rec.Header().Get("Location"))
	}
	patient := token(t, auth.RolePatient)
	for _, path := range []string{"/doctor", "/doctor/leave", "/api/doctor/stats"} {
		if rec := do(e, http.MethodGet, path, patient, nil); rec.Code != http.StatusForbidden {
			t.Errorf("patient at %s: %d", path, rec.Code)
		}
	}
}

func TestPatientDashboard(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/portal", token(t, auth.RolePatient), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Welcome, Ada Lovelace",
		"Patient Dashboard",
		"Grace Hopper",
		`data-feed="/api/calendar/mine"`,
		"Tue, 10 Jun 2025",
		"Thu, 01 May 2025",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(body, "alert-danger") {
		t.Error("unexpected error banner")
	}
}

func TestDashboardProfileSwitch(t *testing.T) {
	e := setup(t, newClinic())
	tok := token(t, auth.RolePatient)
	rec := do(e, http.MethodGet, "/portal?profile=patient-quick", tok, nil)
	if !strings.Contains(rec.Body.String(), `action="/portal/quick-book"`) {
		t.Error("quick book form missing")
	}
	// the choice sticks to the session
	rec = do(e, http.MethodGet, "/portal", tok, nil)
	if strings.Contains(rec.Body.String(), `action="/portal/book"`) {
		t.Error("full booking form should be hidden")
	}
	// a doctor profile is ignored
	rec = do(e, http.MethodGet, "/portal?profile=doctor", tok, nil)
	if !strings.Contains(rec.Body.String(), `action="/portal/quick-book"`) {
		t.Error("profile changed to another role's")
	}
}

func TestPartialFailureShowsError(t *testing.T) {
	f := newClinic()
	f.fails["get_appointment_summary"] = &rpc.RemoteError{Procedure: "get_appointment_summary", Code: 500}
	e := setup(t, f)
	rec := do(e, http.MethodGet, "/portal", token(t, auth.RolePatient), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Could not load your appointment summary.") {
		t.Error("missing error text")
	}
	if !strings.Contains(body, "Tue, 10 Jun 2025") {
		t.Error("other sections should still render")
	}
}

func TestNoPatientRecord(t *testing.T) {
	f := newClinic()
	f.replies["get_patient_id_for_user"] = `null`
	e := setup(t, f)
	tok := token(t, auth.RolePatient)

	for _, path := range []string{"/portal", "/portal/book", "/portal/appointments"} {
		rec := do(e, http.MethodGet, path, tok, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Could not find Patient record") {
			t.Errorf("%s: missing message", path)
		}
	}
	if _, ok := f.called("get_patient_appointments"); ok {
		t.Error("appointments fetched without a patient")
	}
	if rec := do(e, http.MethodGet, "/api/calendar/mine", tok, nil); rec.Code != http.StatusForbidden {
		t.Errorf("api: got %d", rec.Code)
	}
}

func TestBook(t *testing.T) {
	f := newClinic()
	e := setup(t, f)
	tok := token(t, auth.RolePatient)

	rec := do(e, http.MethodPost, "/portal/book", tok, url.Values{"doctor": {"DOC-1"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Please fill in all required fields.") {
		t.Error("missing validation message")
	}
	if _, ok := f.called("create_appointment"); ok {
		t.Fatal("invalid booking reached the platform")
	}

	rec = do(e, http.MethodPost, "/portal/book", tok, url.Values{
		"doctor":           {"DOC-1"},
		"appointment_date": {"2025-06-20"},
		"start_time":       {"09:00"},
		"end_time":         {"09:30"},
		"notes":            {"knee"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/portal?ok=booked" {
		t.Fatalf("got %d %s", rec.Code, rec.Body)
	}
	args, _ := f.called("create_appointment")
	if args["patient"] != "PAT-1" || args["service"] != "Follow-up" || args["notes"] != "knee" {
		t.Errorf("args: %v", args)
	}

	rec = do(e, http.MethodGet, "/portal?ok=booked", tok, nil)
	if !strings.Contains(rec.Body.String(), "Appointment booked successfully!") {
		t.Error("missing flash")
	}
}

func TestQuickBookRemoteMessage(t *testing.T) {
	f := newClinic()
	f.fails["book_appointment"] = &rpc.RemoteError{Procedure: "book_appointment", Code: 417, Message: "Slot already taken"}
	e := setup(t, f)
	rec := do(e, http.MethodPost, "/portal/quick-book", token(t, auth.RolePatient), url.Values{
		"doctor":           {"DOC-1"},
		"appointment_date": {"2025-06-20"},
		"appointment_time": {"09:00"},
		"service":          {"Consultation"},
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Slot already taken") {
		t.Error("remote message not shown")
	}
}

func TestAppointmentsPage(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/portal/appointments", token(t, auth.RolePatient), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	body := rec.Body.String()
	up := strings.Index(body, "Tue, 10 Jun 2025")
	past := strings.Index(body, "Thu, 01 May 2025")
	if up < 0 || past < 0 || up > past {
		t.Errorf("upcoming should render before history (%d, %d)", up, past)
	}
}

func TestCalendarEvents(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/api/calendar/events", token(t, auth.RolePatient), nil)
	var evs []model.CalendarEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &evs); err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Color != "orange" || evs[0].Route != "appointment/A1" {
		t.Errorf("got %+v", evs)
	}
}

func TestMyCalendar(t *testing.T) {
	e := setup(t, newClinic())
	tok := token(t, auth.RolePatient)

	for _, tc := range []struct {
		query string
		want  int
	}{
		// A1 once, A3 weekly on 2, 9, 16, 23 and 30 June
		{"start=2025-06-01&end=2025-07-01", 6},
		// end is exclusive: 30 June drops out
		{"start=2025-06-01&end=2025-06-30", 5},
	} {
		t.Run(tc.query, func(t *testing.T) {
			rec := do(e, http.MethodGet, "/api/calendar/mine?"+tc.query, tok, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("got %d %s", rec.Code, rec.Body)
			}
			var evs []model.CalendarEvent
			json.Unmarshal(rec.Body.Bytes(), &evs)
			if len(evs) != tc.want {
				t.Errorf("got %d events: %+v", len(evs), evs)
			}
		})
	}

	for _, q := range []string{"start=soon", "start=2025-06-30&end=2025-06-01"} {
		if rec := do(e, http.MethodGet, "/api/calendar/mine?"+q, tok, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d", q, rec.Code)
		}
	}
}

func TestDoctorScheduleToggles(t *testing.T) {
	e := setup(t, newClinic())
	tok := token(t, auth.RoleDoctor)

	schedule := func(q string) []model.CalendarEvent {
		rec := do(e, http.MethodGet, "/api/doctor/schedule"+q, tok, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d %s", rec.Code, rec.Body)
		}
		var evs []model.CalendarEvent
		json.Unmarshal(rec.Body.Bytes(), &evs)
		return evs
	}
	if evs := schedule(""); len(evs) != 3 {
		t.Fatalf("all: %+v", evs)
	}

	req := httptest.NewRequest(http.MethodPost, "/doctor/toggle/leave", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"on":false`) {
		t.Fatalf("toggle: %d %s", rec.Code, rec.Body)
	}
	if evs := schedule(""); len(evs) != 2 {
		t.Errorf("leave hidden: %+v", evs)
	}
	if evs := schedule("?kinds=availability"); len(evs) != 1 || evs[0].Title != "Available" {
		t.Errorf("override: %+v", evs)
	}
	if rec := do(e, http.MethodGet, "/api/doctor/schedule?kinds=holiday", tok, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind: %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/doctor/toggle/holiday", tok, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad toggle: %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/doctor/toggle/appointment", tok, nil); rec.Code != http.StatusSeeOther {
		t.Errorf("form toggle: %d", rec.Code)
	}
}

func TestDoctorDashboard(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/doctor", token(t, auth.RoleDoctor), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Doctor Dashboard", "Patients Seen", `data-feed="/api/doctor/schedule"`, "/doctor/toggle/leave"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestDoctorStatsShape(t *testing.T) {
	f := newClinic()
	f.replies["get_doctor_stats"] = `{"total_appointments": 1}`
	e := setup(t, f)
	if rec := do(e, http.MethodGet, "/api/doctor/stats", token(t, auth.RoleDoctor), nil); rec.Code != http.StatusBadGateway {
		t.Errorf("got %d", rec.Code)
	}
}

func TestDoctorLeaves(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/api/doctor/leaves", token(t, auth.RoleDoctor), nil)
	var evs []model.CalendarEvent
	json.Unmarshal(rec.Body.Bytes(), &evs)
	if len(evs) != 1 || evs[0].Title != "Leave (Conference)" || !evs[0].AllDay {
		t.Errorf("got %+v", evs)
	}
}

func TestLeavePageHasNoToggles(t *testing.T) {
	e := setup(t, newClinic())
	tok := token(t, auth.RoleDoctor)
	rec := do(e, http.MethodGet, "/doctor/leave", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-feed="/api/doctor/leaves"`) {
		t.Error("leave feed missing")
	}
	if strings.Contains(body, "/doctor/toggle/") {
		t.Error("leave page renders schedule toggles")
	}

	// hiding leave on the schedule leaves the leave feed alone
	if rec := do(e, http.MethodPost, "/doctor/toggle/leave", tok, nil); rec.Header().Get("Location") != "/doctor" {
		t.Errorf("redirect: %q", rec.Header().Get("Location"))
	}
	rec = do(e, http.MethodGet, "/api/doctor/leaves", tok, nil)
	var evs []model.CalendarEvent
	json.Unmarshal(rec.Body.Bytes(), &evs)
	if len(evs) != 1 {
		t.Errorf("leave feed: %+v", evs)
	}
}

func TestApplyLeave(t *testing.T) {
	f := newClinic()
	e := setup(t, f)
	tok := token(t, auth.RoleDoctor)

	rec := do(e, http.MethodPost, "/doctor/leave", tok, url.Values{"from_date": {"2025-07-01"}})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Please fill all fields before applying for leave.") {
		t.Errorf("validation: %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/doctor/leave", tok, url.Values{
		"from_date": {"2025-07-01"}, "to_date": {"2025-07-03"}, "reason": {"Family"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/doctor/leave?ok=leave" {
		t.Fatalf("got %d", rec.Code)
	}
	args, _ := f.called("apply_leave")
	if args["doctor"] != "doctor@clinic" || args["reason"] != "Family" {
		t.Errorf("args: %v", args)
	}

	f.fails["apply_leave"] = &rpc.RemoteError{Procedure: "apply_leave", Code: 417, Message: "Overlapping leave"}
	rec = do(e, http.MethodPost, "/doctor/leave", tok, url.Values{
		"from_date": {"2025-07-01"}, "to_date": {"2025-07-03"}, "reason": {"Family"},
	})
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "Overlapping leave") {
		t.Errorf("remote: %d", rec.Code)
	}
}

func TestLeaveICS(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/doctor/leave.ics", token(t, auth.RoleDoctor), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || strings.Count(body, "BEGIN:VEVENT") != 1 {
		t.Errorf("body: %s", body)
	}
}

func TestScheduleICS(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodGet, "/doctor/schedule.ics?kinds=appointment", token(t, auth.RoleDoctor), nil)
	if rec.Code != http.StatusOK || strings.Count(rec.Body.String(), "BEGIN:VEVENT") != 1 {
		t.Errorf("got %d %s", rec.Code, rec.Body)
	}
}

func TestLogin(t *testing.T) {
	e := setup(t, newClinic())
	rec := do(e, http.MethodPost, "/session", "", url.Values{"token": {token(t, auth.RoleDoctor)}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/doctor" {
		t.Fatalf("got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.CookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies: %+v", cookies)
	}

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/doctor/stats", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("cookie auth: %d", rec.Code)
	}

	if rec := do(e, http.MethodPost, "/session", "", url.Values{"token": {"junk"}}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/session", "", url.Values{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty: %d", rec.Code)
	}
}
