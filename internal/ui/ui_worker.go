package ui

import (
	"log/slog"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-skycal/internal/config"
	"github.com/tartampluch/go-skycal/internal/engine"
)

// backgroundWorker owns the resolver and scheduler for the lifetime of the app.
// A retry request replaces both; a settings change only rebuilds the feed.
func (app *SkyCalApp) backgroundWorker() {
	log := slog.With(config.LogKeyComponent, config.CompWorker)
	log.Info(config.MsgWorkerStart)

	for {
		sched := app.startEpoch()

		if !app.waitForRetry(sched) {
			log.Info(config.MsgWorkerStop)
			return
		}
	}
}

// waitForRetry blocks until a retry is requested (true) or the app stops (false).
// The scheduler, if any, is stopped before returning.
func (app *SkyCalApp) waitForRetry(sched *engine.Scheduler) bool {
	defer func() {
		if sched != nil {
			sched.Stop()
		}
	}()

	for {
		select {
		case <-app.Ctx.Done():
			return false

		case <-app.retryChan:
			return true

		case <-app.configChan:
			if epoch, ok := app.currentEpoch(); ok {
				slog.Debug(config.MsgFeedReq, config.LogKeyComponent, config.CompWorker)
				app.rebuildFeed(epoch)
			}
		}
	}
}

// startEpoch resolves a fresh epoch and starts a scheduler on it.
// It returns nil when the epoch is unavailable.
func (app *SkyCalApp) startEpoch() *engine.Scheduler {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	url := app.Preferences.StringWithFallback(config.PrefSourceURL, config.DefaultSourceURL)
	resolver := engine.NewResolver(app.NewSource(url, app.loadAPIKey()), app.Clock)

	app.stateMut.Lock()
	app.ready = false
	app.stateMut.Unlock()

	app.Metrics.SetEpochState(engine.StatePending)
	fyne.Do(app.updateTrayLoading)

	epoch, err := resolver.Resolve(app.Ctx)
	app.Metrics.SetEpochState(resolver.State())
	if err != nil {
		if app.Ctx.Err() != nil {
			return nil
		}
		fyne.Do(app.updateTrayFailed)
		app.App.SendNotification(fyne.NewNotification(config.TitleEpochError, app.GetMsg(config.TKeyNotifError)))
		return nil
	}

	app.stateMut.Lock()
	app.epoch = epoch
	app.ready = true
	app.stateMut.Unlock()

	app.rebuildFeed(epoch)

	sched := app.newScheduler(epoch)
	if err := sched.Start(app.Ctx); err != nil {
		log.Error(config.ErrAppFailed, config.LogKeyError, err)
		return nil
	}
	if now, ok := sched.Current(); ok {
		fyne.Do(func() { app.updateTrayClock(now) })
	}
	return sched
}

// newScheduler wires tray, metrics and feed updates to a scheduler.
func (app *SkyCalApp) newScheduler(epoch engine.Epoch) *engine.Scheduler {
	cal := epoch.Calendar()
	sched := engine.NewScheduler(app.Clock, cal)

	sched.OnTick(func(now engine.VirtualMoment) {
		app.Metrics.Tick(cal.Ordinal(now.Date()))
		fyne.Do(func() {
			app.updateTrayClock(now)
			app.refreshUpcoming()
		})
	})

	sched.OnDayChange(func(now engine.VirtualMoment) {
		app.Metrics.DayChanged()
		app.rebuildFeed(epoch)
		app.notifyNewDay(now)
	})

	return sched
}

// rebuildFeed regenerates the iCalendar feed and the tray's daily lines.
func (app *SkyCalApp) rebuildFeed(epoch engine.Epoch) {
	gen := &engine.Generator{
		Clock:         app.Clock,
		Catalog:       app.Catalog,
		FormatSummary: app.buildSummaryFormatter(),
	}

	ics, days, _, err := gen.Build(app.Ctx, epoch, app.loadFeedConfig())
	if err != nil {
		slog.Error(config.ErrFeedBuild, config.LogKeyError, err, config.LogKeyComponent, config.CompWorker)
		return
	}

	total := 0
	for _, day := range days {
		total += len(day.Events)
	}
	app.Server.Update(ics)
	app.Metrics.FeedBuilt(total)

	var today []engine.EventDefinition
	if len(days) > 0 && days[0].IsToday {
		today = days[0].Events
	}
	fyne.Do(func() { app.updateTrayDay(today, epoch.Mayor) })
}

// notifyNewDay announces the start of a virtual day.
func (app *SkyCalApp) notifyNewDay(now engine.VirtualMoment) {
	date := app.formatDate(now.Date().Display())
	msg := app.localizeOr(config.TKeyNotifDay, map[string]interface{}{"Date": date}, date)
	app.App.SendNotification(fyne.NewNotification(config.AppName, msg))
}

// currentEpoch returns the resolved epoch, if any.
func (app *SkyCalApp) currentEpoch() (engine.Epoch, bool) {
	app.stateMut.RLock()
	defer app.stateMut.RUnlock()
	return app.epoch, app.ready
}
