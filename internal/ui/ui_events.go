package ui

import (
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-skycal/internal/config"
)

// ShowEventsWindow lists the catalog with one visibility toggle per event.
// Toggles are written to Preferences immediately; the preference listener
// then rebuilds the feed.
func (app *SkyCalApp) ShowEventsWindow() {
	if app.eventsWindow != nil {
		app.eventsWindow.RequestFocus()
		return
	}

	w := app.App.NewWindow(app.GetMsg(config.TKeyWinEvents))
	w.Resize(fyne.NewSize(config.EventsWindowWidth, config.EventsWindowHeight))
	app.eventsWindow = w

	slog.Info(config.LogMsgOpenEvents,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyCount, app.Catalog.Len())

	display := app.loadDisplayConfig()
	box := container.NewVBox()
	for _, def := range app.Catalog.List() {
		id := def.ID
		check := widget.NewCheck(def.Name, func(visible bool) {
			app.SetEventVisible(id, visible)
		})
		check.Checked = display.Visible(id)
		box.Add(check)
	}

	w.SetContent(container.NewVScroll(container.NewPadded(box)))
	w.SetOnClosed(func() { app.eventsWindow = nil })
	w.Show()
}

// SetEventVisible persists one visibility toggle.
func (app *SkyCalApp) SetEventVisible(id string, visible bool) {
	if _, err := app.Catalog.Lookup(id); err != nil {
		slog.Warn(config.MsgUnknownEvent,
			config.LogKeyComponent, config.CompUI,
			config.LogKeyEventID, id)
		return
	}

	app.Preferences.SetBool(config.PrefEventPrefix+id, visible)
	slog.Info(config.MsgVisibilitySet,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyEventID, id,
		config.LogKeyVisible, visible)
}
