package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-skycal/internal/config"
	"github.com/tartampluch/go-skycal/internal/engine"
	"github.com/tartampluch/go-skycal/internal/server"
	"github.com/zalando/go-keyring"
)

//go:embed Icon.png
var appIconData []byte

// SourceFactory builds the epoch source from the user's settings.
type SourceFactory func(url, apiKey string) engine.EpochSource

// SkyCalApp encapsulates the UI state, preferences, and background logic.
type SkyCalApp struct {
	App         fyne.App
	Window      fyne.Window
	Preferences fyne.Preferences
	I18nBundle  *i18n.Bundle
	Localizer   *i18n.Localizer
	Ctx         context.Context

	Server    *server.CalendarServer
	Metrics   *server.Metrics
	Catalog   *engine.Catalog
	NewSource SourceFactory
	Clock     engine.Clock // Injected clock for testability (e.g. mocking time travel)

	Tray desktop.App
	Menu *fyne.Menu

	TrayClockItem    *fyne.MenuItem
	TrayEventsItem   *fyne.MenuItem
	TrayMayorItem    *fyne.MenuItem
	TrayUpcomingItem *fyne.MenuItem
	TrayVisibleItem  *fyne.MenuItem
	TrayRetryItem    *fyne.MenuItem
	TraySettingsItem *fyne.MenuItem

	SupportedLanguages []string
	configChan         chan string
	retryChan          chan struct{}

	// Epoch State
	stateMut sync.RWMutex
	epoch    engine.Epoch
	ready    bool

	// Windows (UI thread only)
	upcomingWindow fyne.Window
	upcomingDays   []engine.DayOccurrence
	upcomingSync   func()
	eventsWindow   fyne.Window
}

// NewSkyCalApp constructs the application and wires dependencies.
func NewSkyCalApp(a fyne.App, ctx context.Context, srv *server.CalendarServer, metrics *server.Metrics, catalog *engine.Catalog, newSource SourceFactory) *SkyCalApp {
	a.SetIcon(fyne.NewStaticResource(config.IconFile, appIconData))

	if catalog == nil {
		catalog = engine.DefaultCatalog()
	}

	return &SkyCalApp{
		App:                a,
		Preferences:        a.Preferences(),
		Ctx:                ctx,
		Server:             srv,
		Metrics:            metrics,
		Catalog:            catalog,
		NewSource:          newSource,
		Clock:              engine.RealClock{}, // Default to real clock in production
		SupportedLanguages: config.SupportedLanguages,
		configChan:         make(chan string, config.ChannelBufferSize),
		retryChan:          make(chan struct{}, config.ChannelBufferSize),
	}
}

// Run launches the application services and the main UI loop.
func (app *SkyCalApp) Run() {
	app.SetupI18n()
	app.watchPreferences()

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyPort, app.Server.Port,
			config.LogKeyComponent, config.CompUI)

		if err := app.Server.Start(app.Ctx); err != nil {
			slog.Error(config.ErrServerStartup,
				config.LogKeyError, err,
				config.LogKeyComponent, config.CompUI)

			app.App.SendNotification(fyne.NewNotification(
				config.TitleStartupError,
				fmt.Sprintf(config.MsgPortBusy, app.Server.Port)))
		}
	}()

	if desk, ok := app.App.(desktop.App); ok {
		app.Tray = desk
		app.Tray.SetSystemTrayIcon(app.App.Icon())
		app.setupTrayMenu()
	} else {
		slog.Warn(config.ErrTrayNotSupported,
			config.LogKeyComponent, config.CompUI)
	}

	go app.backgroundWorker()
	app.App.Run()
}

// watchPreferences wakes the worker whenever a setting or visibility toggle changes.
func (app *SkyCalApp) watchPreferences() {
	app.Preferences.AddChangeListener(func() {
		select {
		case app.configChan <- config.PrefEventPrefix:
		default:
		}
	})
}

// RequestRetry asks the worker to discard the current resolver and fetch again.
func (app *SkyCalApp) RequestRetry() {
	slog.Info(config.MsgRetryReq, config.LogKeyComponent, config.CompUI)
	select {
	case app.retryChan <- struct{}{}:
	default:
	}
}

// setupTrayMenu constructs the system tray menu.
func (app *SkyCalApp) setupTrayMenu() {
	app.TrayClockItem = fyne.NewMenuItem(app.GetMsg(config.TKeyTrayLoading), nil)
	app.TrayClockItem.Disabled = true

	// Today's events open the Upcoming window.
	app.TrayEventsItem = fyne.NewMenuItem(config.FallbackTrayLabel, func() {
		app.ShowUpcomingWindow()
	})

	app.TrayMayorItem = fyne.NewMenuItem(fmt.Sprintf(config.FallbackTrayMayor, config.NoEventsMarker), nil)
	app.TrayMayorItem.Disabled = true

	app.TrayUpcomingItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuUpcoming), func() {
		app.ShowUpcomingWindow()
	})

	app.TrayVisibleItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuEvents), func() {
		app.ShowEventsWindow()
	})

	app.TrayRetryItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuRetry), func() {
		app.RequestRetry()
	})

	app.TraySettingsItem = fyne.NewMenuItem(app.GetMsg(config.TKeyMenuSettings), func() {
		app.ShowSettingsWindow()
	})

	app.Menu = fyne.NewMenu(config.AppName,
		app.TrayClockItem,
		app.TrayEventsItem,
		app.TrayMayorItem,
		fyne.NewMenuItemSeparator(),
		app.TrayUpcomingItem,
		app.TrayVisibleItem,
		fyne.NewMenuItemSeparator(),
		app.TrayRetryItem,
		app.TraySettingsItem,
	)

	if app.Tray != nil {
		app.Tray.SetSystemTrayMenu(app.Menu)
	}
}

// RefreshTrayMenu updates localized labels in the tray menu.
func (app *SkyCalApp) RefreshTrayMenu() {
	if app.Menu == nil {
		return
	}
	app.TrayUpcomingItem.Label = app.GetMsg(config.TKeyMenuUpcoming)
	app.TrayVisibleItem.Label = app.GetMsg(config.TKeyMenuEvents)
	app.TrayRetryItem.Label = app.GetMsg(config.TKeyMenuRetry)
	app.TraySettingsItem.Label = app.GetMsg(config.TKeyMenuSettings)
	app.Menu.Refresh()
}

// updateTrayLoading shows the pending state while the epoch is fetched.
func (app *SkyCalApp) updateTrayLoading() {
	if app.Menu == nil || app.TrayClockItem == nil {
		return
	}
	app.TrayClockItem.Label = app.localizeOr(config.TKeyTrayLoading, nil, config.FallbackTrayLoading)
	app.TrayEventsItem.Label = config.FallbackTrayLabel
	app.Menu.Refresh()
}

// updateTrayFailed shows the single failure state of the resolver.
func (app *SkyCalApp) updateTrayFailed() {
	if app.Menu == nil || app.TrayClockItem == nil {
		return
	}
	app.TrayClockItem.Label = app.localizeOr(config.TKeyTrayFailed, nil, config.FallbackTrayFailed)
	app.TrayEventsItem.Label = config.FallbackTrayLabel
	app.TrayMayorItem.Label = fmt.Sprintf(config.FallbackTrayMayor, config.NoEventsMarker)
	app.Menu.Refresh()
}

// updateTrayClock refreshes the virtual time line.
func (app *SkyCalApp) updateTrayClock(now engine.VirtualMoment) {
	if app.Menu == nil || app.TrayClockItem == nil {
		return
	}
	app.TrayClockItem.Label = app.clockLabel(now)
	app.Menu.Refresh()
}

// updateTrayDay refreshes the lines that only change with the virtual day.
func (app *SkyCalApp) updateTrayDay(today []engine.EventDefinition, mayor *engine.Mayor) {
	if app.Menu == nil || app.TrayEventsItem == nil {
		return
	}
	app.TrayEventsItem.Label = app.eventsLabel(today)
	app.TrayMayorItem.Label = app.mayorLabel(mayor)
	app.Menu.Refresh()
}

// clockLabel renders "Time: 06:00, 1st Early Spring, Year 1".
func (app *SkyCalApp) clockLabel(now engine.VirtualMoment) string {
	date := app.formatDate(now.Date().Display())
	return app.localizeOr(config.TKeyTrayClock,
		map[string]interface{}{"Time": now.Clock(), "Date": date},
		fmt.Sprintf(config.FallbackTrayClock, now.Clock(), date))
}

// eventsLabel summarizes today's visible events.
func (app *SkyCalApp) eventsLabel(today []engine.EventDefinition) string {
	if len(today) == 0 {
		// Explicit key for 0 so languages can phrase it freely.
		return app.localizeOr(config.TKeyTrayEventsZero, nil, config.FallbackTrayNone)
	}

	names := make([]string, len(today))
	for i, def := range today {
		names[i] = def.Name
	}
	joined := strings.Join(names, config.EventSeparator)

	if app.Localizer != nil {
		msg, err := app.Localizer.Localize(&i18n.LocalizeConfig{
			MessageID:    config.TKeyTrayEvents,
			TemplateData: map[string]interface{}{"Count": len(today), "Names": joined},
			PluralCount:  len(today),
		})
		if err == nil {
			return msg
		}
	}
	return fmt.Sprintf(config.FallbackTrayEvents, len(today), joined)
}

// mayorLabel names the current mayor, if the source provided one.
func (app *SkyCalApp) mayorLabel(mayor *engine.Mayor) string {
	name := config.NoEventsMarker
	if mayor != nil && mayor.Name != "" {
		name = mayor.Name
	}
	return app.localizeOr(config.TKeyTrayMayor,
		map[string]interface{}{"Name": name},
		fmt.Sprintf(config.FallbackTrayMayor, name))
}

// formatDate localizes a 1-indexed in-world date.
func (app *SkyCalApp) formatDate(d engine.DisplayDate) string {
	return app.localizeOr(config.TKeyDateFormat,
		map[string]interface{}{"Day": d.Day, "Suffix": d.Suffix, "Month": d.MonthName, "Year": d.Year},
		d.String())
}

// stateLabel renders the countdown or progress of a day.
func (app *SkyCalApp) stateLabel(s engine.DayState) string {
	switch s.Phase {
	case engine.PhaseFuture:
		d := engine.FormatDuration(s.TimeUntilStart)
		return app.localizeOr(config.TKeyStateFuture,
			map[string]interface{}{"Duration": d},
			fmt.Sprintf(config.FallbackFuture, d))
	case engine.PhaseActive:
		pct := int(s.FractionElapsed * 100)
		return app.localizeOr(config.TKeyStateActive,
			map[string]interface{}{"Percent": pct},
			fmt.Sprintf(config.FallbackActive, pct))
	default:
		d := engine.FormatDuration(s.TimeSinceEnd)
		return app.localizeOr(config.TKeyStatePast,
			map[string]interface{}{"Duration": d},
			fmt.Sprintf(config.FallbackPast, d))
	}
}

// loadFeedConfig assembles the generator configuration from UI preferences.
func (app *SkyCalApp) loadFeedConfig() engine.FeedConfig {
	cfg := engine.FeedConfig{
		HorizonDays: app.Preferences.IntWithFallback(config.PrefHorizonDays, config.DefaultHorizonDays),
		Display:     app.loadDisplayConfig(),
	}

	if app.Preferences.Bool(config.PrefReminderEnabled) {
		val := app.Preferences.IntWithFallback(config.PrefReminderValue, config.DefaultReminderValue)
		unit := app.Preferences.StringWithFallback(config.PrefReminderUnit, config.UnitMinutes)
		dir := app.Preferences.StringWithFallback(config.PrefReminderDir, config.DirBefore)
		cfg.ReminderTrigger = reminderTrigger(val, unit, dir)
	}

	return cfg
}

// reminderTrigger builds an ISO8601 duration ("-P1D", "PT2H", "-PT30M").
func reminderTrigger(val int, unit, dir string) string {
	sign := config.ISOPeriodPrefix
	if dir == config.DirBefore {
		sign = config.ISONegativePrefix
	}

	switch unit {
	case config.UnitHours:
		return fmt.Sprintf("%s%s%d%s", sign, config.ISOTime, val, config.ISOHour)
	case config.UnitMinutes:
		return fmt.Sprintf("%s%s%d%s", sign, config.ISOTime, val, config.ISOMinute)
	default:
		return fmt.Sprintf("%s%d%s", sign, val, config.ISODay)
	}
}

// loadDisplayConfig reads the per-event visibility toggles.
func (app *SkyCalApp) loadDisplayConfig() engine.DisplayConfig {
	display := engine.DisplayConfig{}
	for _, def := range app.Catalog.List() {
		display[def.ID] = app.Preferences.BoolWithFallback(config.PrefEventPrefix+def.ID, true)
	}
	return display
}

// loadAPIKey returns the optional epoch source key from the OS keyring.
func (app *SkyCalApp) loadAPIKey() string {
	key, err := keyring.Get(config.KeyringService, config.KeyringAPIKeyUser)
	if err != nil {
		slog.Debug(config.MsgKeyFail,
			config.LogKeyError, err,
			config.LogKeyComponent, config.CompUI)
		return ""
	}
	return key
}

// buildSummaryFormatter returns a closure that localizes the event summary.
func (app *SkyCalApp) buildSummaryFormatter() func(name string, date engine.DisplayDate) string {
	return func(name string, date engine.DisplayDate) string {
		formatted := app.formatDate(date)
		return app.localizeOr(config.TKeyEvtSummary,
			map[string]interface{}{"Name": name, "Date": formatted},
			fmt.Sprintf(config.FallbackSummary, name, formatted))
	}
}

// localizeOr translates key with data, returning fallback when the key is unavailable.
func (app *SkyCalApp) localizeOr(key string, data map[string]interface{}, fallback string) string {
	if app.Localizer == nil {
		return fallback
	}
	msg, err := app.Localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil || msg == "" {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return fallback
	}
	return msg
}
