// Package view renders the portal's HTML pages. Each named view fills the
// "content" block of a shared layout.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/labstack/echo/v4"

	"clinic-portal/internal/config"
	"clinic-portal/internal/model"
	"clinic-portal/internal/schedule"
)

//go:embed templates/*.html
var files embed.FS

// view names
const (
	Dashboard    = "dashboard"
	Book         = "book"
	Appointments = "appointments"
	Leave        = "leave"
	Error        = "error"
)

var names = []string{Dashboard, Book, Appointments, Leave, Error}

// Toggle is one calendar filter button.
type Toggle struct {
	Kind  schedule.EventKind
	Label string
	Color string
	On    bool
}

// Page is the data every view renders from. Sections read only the fields
// they need.
type Page struct {
	Title   string
	User    string
	Profile config.Profile
	Flash   string
	Error   string
	Today   string

	Summary  *model.AppointmentSummary
	Stats    *model.DoctorStats
	Doctors  []model.Doctor
	Upcoming []model.Appointment
	Past     []model.Appointment
	Leaves   []model.DoctorLeave

	CalendarFeed string
	DeskURL      string
	Toggles      []Toggle

	// error view
	Heading string
	Message string
	Back    string
}

func (p Page) Has(section string) bool { return p.Profile.Has(section) }

var toggleLabels = map[schedule.EventKind]string{
	schedule.KindAppointment:  "Appointments",
	schedule.KindAvailability: "Availability",
	schedule.KindLeave:        "Leave",
}

// Toggles builds the filter buttons for the kinds a profile enables.
func Toggles(filters []string, v schedule.Visibility) []Toggle {
	out := make([]Toggle, 0, len(filters))
	for _, f := range filters {
		k, err := schedule.ParseKind(f)
		if err != nil {
			continue
		}
		out = append(out, Toggle{Kind: k, Label: toggleLabels[k], Color: schedule.KindColor(k), On: v.Shows(k)})
	}
	return out
}

var funcs = template.FuncMap{
	"statusColor": schedule.StatusColor,
	"date":        formatDate,
	"clock":       formatClock,
	"seconds":     func(d time.Duration) int { return int(d / time.Second) },
}

func formatDate(s string) string {
	d, err := model.ParseDate(s, time.UTC)
	if err != nil {
		return s
	}
	return d.Format("Mon, 02 Jan 2006")
}

func formatClock(s string) string {
	d, err := model.ParseClock(s)
	if err != nil {
		return s
	}
	return time.Time{}.Add(d).Format("15:04")
}

type Renderer struct {
	views map[string]*template.Template
}

func New() (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/sections.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	r := &Renderer{views: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(files, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.views[name] = t
	}
	return r, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.views[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}
