// Package ical exports calendar events as an iCalendar feed so doctors can
// subscribe to their schedule and leave from any calendar client.
package ical

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"clinic-portal/internal/model"
)

const productID = "-//clinic-portal//schedule//EN"

// Feed describes one exported calendar.
type Feed struct {
	Name string
	// DeskURL prefixes event URLs, which are platform-relative.
	DeskURL string
	Loc     *time.Location
}

// Encode serializes events. All-day ends are inclusive in the portal but
// exclusive in iCalendar, so they are pushed one day out.
func (f Feed) Encode(events []model.CalendarEvent, now time.Time) (string, error) {
	loc := f.Loc
	if loc == nil {
		loc = time.Local
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if f.Name != "" {
		cal.SetXWRCalName(f.Name)
	}

	for _, e := range events {
		start, allDay, err := model.ParseInstant(e.Start, loc)
		if err != nil {
			return "", fmt.Errorf("event %q: %w", e.Title, err)
		}
		end := start
		if e.End != "" {
			if end, _, err = model.ParseInstant(e.End, loc); err != nil {
				return "", fmt.Errorf("event %q: %w", e.Title, err)
			}
		}
		allDay = allDay || e.AllDay

		ev := cal.AddEvent(uid(e, start))
		ev.SetDtStampTime(now)
		ev.SetSummary(e.Title)
		if allDay {
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(end.AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(start)
			ev.SetEndAt(end)
		}
		if e.URL != "" {
			ev.SetURL(strings.TrimRight(f.DeskURL, "/") + e.URL)
		}
		if e.Color != "" {
			ev.SetProperty(ics.ComponentProperty("COLOR"), e.Color)
		}
		if st, ok := statuses[e.Status]; ok {
			ev.SetStatus(st)
		}
	}
	return cal.Serialize(), nil
}

var statuses = map[string]ics.ObjectStatus{
	model.StatusPending:   ics.ObjectStatusTentative,
	model.StatusConfirmed: ics.ObjectStatusConfirmed,
	model.StatusCancelled: ics.ObjectStatusCancelled,
	model.LeaveApproved:   ics.ObjectStatusConfirmed,
}

// uid is stable across exports so clients update events in place.
// Occurrences of a recurring appointment share an ID and differ by day.
func uid(e model.CalendarEvent, start time.Time) string {
	if e.ID != "" {
		return e.ID + "-" + start.Format("20060102") + "@clinic-portal"
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(e.Title+"|"+e.Start)).String() + "@clinic-portal"
}
