package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-skycal/internal/config"
)

// FeedConfig contains all parameters required to build the iCalendar feed.
type FeedConfig struct {
	HorizonDays     int           // Virtual days covered, starting with today
	Display         DisplayConfig // Hidden events are left out of the feed
	ReminderTrigger string        // ISO8601 duration string (e.g., "-PT5M")
}

// Generator turns catalog occurrences into an iCalendar feed.
type Generator struct {
	Clock   Clock
	Catalog *Catalog

	// FormatSummary allows the UI to inject localized strings into the logic layer.
	FormatSummary func(name string, date DisplayDate) string
}

// Build evaluates the horizon and encodes one VEVENT per event occurrence.
// It returns the ICS data, the evaluated days, the number of visible events
// today, and any error.
func (g *Generator) Build(ctx context.Context, epoch Epoch, cfg FeedConfig) ([]byte, []DayOccurrence, int, error) {
	start := time.Now()
	log := slog.With(config.LogKeyComponent, config.CompEngine)

	if g.Catalog == nil {
		return nil, nil, 0, fmt.Errorf("%s: %s", config.ErrFeedBuild, config.ErrCatalogMissing)
	}
	if epoch.Ratio <= 0 {
		return nil, nil, 0, fmt.Errorf("%s: %w", config.ErrFeedBuild, ErrEpochUnavailable)
	}

	horizon := cfg.HorizonDays
	if horizon <= 0 {
		horizon = config.DefaultHorizonDays
	}
	horizon = min(horizon, config.MaxHorizonDays)

	clock := g.Clock
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()
	cal := epoch.Calendar()
	moment := cal.ToVirtual(now)
	eval := NewEvaluator(g.Catalog, cal)
	days := eval.Upcoming(moment, horizon, cfg.Display)

	ics, total, err := g.encode(ctx, epoch, cal, now, days, cfg.ReminderTrigger)
	if err != nil {
		return nil, nil, 0, err
	}

	today := 0
	if len(days) > 0 && days[0].IsToday {
		today = len(days[0].Events)
	}

	log.Info(config.MsgFeedBuilt,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyHorizon, horizon),
			slog.Int(config.LogKeyEvents, total),
			slog.Int(config.LogKeyCount, today),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return ics, days, today, nil
}

// encode renders the VCALENDAR. It returns the number of VEVENTs written.
func (g *Generator) encode(ctx context.Context, epoch Epoch, cal Calendar, now time.Time, days []DayOccurrence, trigger string) ([]byte, int, error) {
	vcal := ical.NewCalendar()
	vcal.Props.SetText(config.PropVersion, config.ICalVersion)
	vcal.Props.SetText(config.PropProdid, config.ICalProdid)
	vcal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	vcal.Props.SetText(config.PropCalScale, config.ICalScale)
	vcal.Props.SetText(config.PropMethod, config.ICalMethod)

	// RFC 7986: one refresh per virtual day.
	refreshProp := ical.NewProp(config.PropRefresh)
	refresh := cal.RealDayLength()
	if refresh < time.Minute {
		refresh = config.DefaultICalRefresh
	}
	refreshProp.SetDuration(refresh)
	vcal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		dayStart := cal.DayStart(day.Date)
		dayEnd := dayStart.Add(cal.RealDayLength())
		ordinal := cal.Ordinal(day.Date)

		for _, def := range day.Events {
			event := g.createEvent(def, day.Date, ordinal, epoch, dayStart, dayEnd, trigger)
			event.Props.Set(dtStampProp)
			vcal.Children = append(vcal.Children, event.Component)
		}
	}

	// A valid empty VCALENDAR keeps clients from flagging the feed as broken.
	if len(vcal.Children) == 0 {
		var buf bytes.Buffer
		buf.WriteString(config.StubVCalendar)
		return buf.Bytes(), 0, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(vcal); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), len(vcal.Children), nil
}

func (g *Generator) createEvent(def EventDefinition, date Date, ordinal int64, epoch Epoch, start, end time.Time, trigger string) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(config.PropUID, EventUID(def.ID, epoch.Start, ordinal))

	display := date.Display()
	summary := fmt.Sprintf(config.FallbackSummary, def.Name, display.String())
	if g.FormatSummary != nil {
		summary = g.FormatSummary(def.Name, display)
	}
	event.Props.SetText(config.PropSummary, summary)
	event.Props.SetText(config.PropDescription, display.String())
	event.Props.SetText(config.PropCategories, def.ID)

	dtStartProp := ical.NewProp(config.PropDTStart)
	dtStartProp.SetDateTime(start.UTC())
	event.Props.Set(dtStartProp)

	dtEndProp := ical.NewProp(config.PropDTEnd)
	dtEndProp.SetDateTime(end.UTC())
	event.Props.Set(dtEndProp)

	if trigger != "" {
		addAlarm(event, trigger, summary)
	}
	return event
}

// EventUID is stable for a given event, epoch and virtual day, so calendar
// clients update occurrences in place across rebuilds.
func EventUID(id string, epochStart time.Time, ordinal int64) string {
	input := fmt.Sprintf(config.FormatHashInput, id, epochStart.UnixMilli(), config.UIDSalt)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf(config.FormatUID, fmt.Sprintf("%x", hash[:config.UIDHashLength]), ordinal, config.ICalDomain)
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually to avoid "VALUE=TEXT" param
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}
