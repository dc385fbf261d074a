package ui

import (
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-skycal/internal/config"
	"github.com/tartampluch/go-skycal/internal/engine"
)

// ShowUpcomingWindow displays the next virtual days with their events and state.
// It implements a singleton pattern: if the window is already open, it requests focus.
// While open, the table is refreshed on every scheduler tick.
func (app *SkyCalApp) ShowUpcomingWindow() {
	if app.upcomingWindow != nil {
		app.upcomingWindow.RequestFocus()
		return
	}

	w := app.App.NewWindow(app.GetMsg(config.TKeyWinUpcoming))
	w.Resize(fyne.NewSize(config.UpcomingWinWidth, config.UpcomingWinHeight))
	app.upcomingWindow = w
	app.upcomingDays = app.upcomingRows()

	slog.Info(config.LogMsgOpenWin,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyCount, len(app.upcomingDays))

	table := widget.NewTable(
		func() (int, int) {
			return len(app.upcomingDays), config.ColCount
		},
		func() fyne.CanvasObject {
			return widget.NewLabel(config.TablePlaceholder)
		},
		func(id widget.TableCellID, o fyne.CanvasObject) {
			label := o.(*widget.Label)
			if id.Row >= len(app.upcomingDays) {
				return
			}
			label.SetText(app.upcomingCell(app.upcomingDays[id.Row], id.Col))
		},
	)

	table.ShowHeaderRow = true
	table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewLabel(config.TablePlaceholder)
	}
	table.UpdateHeader = func(id widget.TableCellID, o fyne.CanvasObject) {
		label := o.(*widget.Label)
		label.TextStyle = fyne.TextStyle{Bold: true}

		switch id.Col {
		case config.ColIDDate:
			label.SetText(app.GetMsg(config.TKeyColDate))
		case config.ColIDEvents:
			label.SetText(app.GetMsg(config.TKeyColEvents))
		case config.ColIDState:
			label.SetText(app.GetMsg(config.TKeyColState))
		}
	}

	table.SetColumnWidth(config.ColIDDate, config.ColWidthDate)
	table.SetColumnWidth(config.ColIDEvents, config.ColWidthEvents)
	table.SetColumnWidth(config.ColIDState, config.ColWidthState)

	app.upcomingSync = func() {
		app.upcomingDays = app.upcomingRows()
		table.Refresh()
	}

	w.SetContent(container.NewBorder(nil, nil, nil, nil, table))
	w.SetOnClosed(func() {
		app.upcomingWindow = nil
		app.upcomingSync = nil
	})
	w.Show()
}

// refreshUpcoming re-evaluates the open Upcoming window, if any.
func (app *SkyCalApp) refreshUpcoming() {
	if app.upcomingSync != nil {
		app.upcomingSync()
	}
}

// upcomingRows evaluates the listed days against the current epoch.
// It returns nil until the epoch is resolved.
func (app *SkyCalApp) upcomingRows() []engine.DayOccurrence {
	epoch, ok := app.currentEpoch()
	if !ok {
		return nil
	}
	cal := epoch.Calendar()
	now := cal.ToVirtual(app.Clock.Now())
	return engine.NewEvaluator(app.Catalog, cal).Upcoming(now, config.UpcomingDays, app.loadDisplayConfig())
}

// upcomingCell renders one column of a day row.
func (app *SkyCalApp) upcomingCell(day engine.DayOccurrence, col int) string {
	switch col {
	case config.ColIDDate:
		return app.formatDate(day.Date.Display())
	case config.ColIDEvents:
		if len(day.Events) == 0 {
			return config.NoEventsMarker
		}
		names := make([]string, len(day.Events))
		for i, def := range day.Events {
			names[i] = def.Name
		}
		return strings.Join(names, config.EventSeparator)
	case config.ColIDState:
		return app.stateLabel(day.State)
	}
	return ""
}
