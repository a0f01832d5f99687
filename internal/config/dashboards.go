package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed dashboards.yaml
var defaultDashboards []byte

// dashboard sections
const (
	SectionSummary      = "summary"
	SectionBook         = "book"
	SectionQuickBook    = "quick_book"
	SectionAppointments = "appointments"
	SectionHistory      = "history"
	SectionStats        = "stats"
	SectionCalendar     = "calendar"
	SectionLeave        = "leave"
)

var knownSections = map[string]bool{
	SectionSummary: true, SectionBook: true, SectionQuickBook: true,
	SectionAppointments: true, SectionHistory: true, SectionStats: true,
	SectionCalendar: true, SectionLeave: true,
}

var knownFilters = map[string]bool{"appointment": true, "availability": true, "leave": true}

var defaultServices = []string{"Follow-up", "Treatment", "Emergency", "Consultation"}

// Profile is one dashboard layout.
type Profile struct {
	Name     string        `yaml:"name"`
	Title    string        `yaml:"title"`
	Role     string        `yaml:"role"`
	Sections []string      `yaml:"sections"`
	Filters  []string      `yaml:"filters"`
	Services []string      `yaml:"services"`
	Refresh  time.Duration `yaml:"refresh"`
}

func (p Profile) Has(section string) bool {
	for _, s := range p.Sections {
		if s == section {
			return true
		}
	}
	return false
}

func (p *Profile) normalize() {
	if p.Title == "" {
		p.Title = "Dashboard"
	}
	if p.Role == "" {
		p.Role = "patient"
	}
	if len(p.Services) == 0 {
		p.Services = append([]string(nil), defaultServices...)
	}
	if p.Refresh < 0 {
		p.Refresh = 0
	}
}

func (p Profile) validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile without name")
	}
	if p.Role != "patient" && p.Role != "doctor" {
		return fmt.Errorf("profile %s: unknown role %q", p.Name, p.Role)
	}
	for _, s := range p.Sections {
		if !knownSections[s] {
			return fmt.Errorf("profile %s: unknown section %q", p.Name, s)
		}
	}
	for _, f := range p.Filters {
		if !knownFilters[f] {
			return fmt.Errorf("profile %s: unknown filter %q", p.Name, f)
		}
	}
	return nil
}

type Dashboards struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadDashboards parses the built-in profiles and, when path is set,
// merges the profiles from that file over them by name.
func LoadDashboards(path string) (*Dashboards, error) {
	d, err := parseDashboards(defaultDashboards)
	if err != nil {
		return nil, fmt.Errorf("built-in dashboards: %w", err)
	}
	if path == "" {
		return d, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dashboards: %w", err)
	}
	extra, err := parseDashboards(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, p := range extra.Profiles {
		d.put(p)
	}
	return d, nil
}

func parseDashboards(b []byte) (*Dashboards, error) {
	var d Dashboards
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	for i := range d.Profiles {
		d.Profiles[i].normalize()
		if err := d.Profiles[i].validate(); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func (d *Dashboards) put(p Profile) {
	for i := range d.Profiles {
		if d.Profiles[i].Name == p.Name {
			d.Profiles[i] = p
			return
		}
	}
	d.Profiles = append(d.Profiles, p)
}

func (d *Dashboards) Get(name string) (Profile, bool) {
	for _, p := range d.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// ForRole returns name if it suits role, else the first profile for role.
func (d *Dashboards) ForRole(name, role string) (Profile, bool) {
	if p, ok := d.Get(name); ok && p.Role == role {
		return p, true
	}
	for _, p := range d.Profiles {
		if p.Role == role {
			return p, true
		}
	}
	return Profile{}, false
}

func (d *Dashboards) Names() []string {
	out := make([]string, 0, len(d.Profiles))
	for _, p := range d.Profiles {
		out = append(out, p.Name)
	}
	return out
}
