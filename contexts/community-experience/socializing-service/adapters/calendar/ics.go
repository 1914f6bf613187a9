package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gathering/contexts/community-experience/socializing-service/application/queries"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/domain/services"

	ical "github.com/arran4/golang-ical"
)

const (
	DefaultTimezone = "Asia/Seoul"
	DefaultDuration = 2 * time.Hour
	productID       = "-//gathering//socializing-service//KO"
)

// Exporter renders a confirmed gathering as a single-VEVENT calendar.
type Exporter struct {
	Location *time.Location
	Duration time.Duration
}

// NewExporter falls back to Asia/Seoul when timezone is blank and to UTC when
// the zone database does not know it.
func NewExporter(timezone string) Exporter {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = DefaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		location = time.UTC
	}
	return Exporter{Location: location, Duration: DefaultDuration}
}

func (e Exporter) Render(view queries.ConfirmedView) (string, error) {
	if view.Result.ConfirmedAt == nil {
		return "", domainerrors.ErrResultNotConfirmed
	}
	location := e.Location
	if location == nil {
		location = time.UTC
	}
	duration := e.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	start, err := time.ParseInLocation(
		services.CatalogDateLayout+" "+services.CatalogTimeLayout,
		view.Result.Date+" "+view.Result.Time,
		location,
	)
	if err != nil {
		return "", fmt.Errorf("parse confirmed slot: %w", err)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	event := cal.AddEvent(fmt.Sprintf("%s-%s@socializing", view.Event.CohortID, view.Result.OptionID))
	event.SetDtStampTime(view.Result.ConfirmedAt.UTC())
	event.SetStartAt(start)
	event.SetEndAt(start.Add(duration))
	event.SetSummary("Cohort gathering")
	event.SetLocation(view.Result.Location)
	event.SetDescription(e.describe(view))
	if view.Event.OpenChatURL != "" {
		event.SetURL(view.Event.OpenChatURL)
	}
	return cal.Serialize(), nil
}

func (e Exporter) describe(view queries.ConfirmedView) string {
	names := make([]string, 0, len(view.Result.Attendees))
	for _, id := range view.Result.Attendees {
		name := id
		if participant, ok := view.Participants[id]; ok && strings.TrimSpace(participant.Name) != "" {
			name = participant.Name
		}
		names = append(names, name)
	}
	sort.Strings(names)
	lines := []string{fmt.Sprintf("Attending (%d): %s", len(names), strings.Join(names, ", "))}
	if view.Event.OpenChatURL != "" {
		lines = append(lines, "Chat: "+view.Event.OpenChatURL)
	}
	return strings.Join(lines, "\n")
}
