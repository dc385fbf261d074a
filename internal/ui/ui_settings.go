package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-skycal/internal/config"
	"github.com/zalando/go-keyring"
)

// choice pairs a translated label with the value stored in Preferences.
type choice struct {
	key   string
	value string
}

var (
	reminderUnits = []choice{
		{config.TKeyUnitDays, config.UnitDays},
		{config.TKeyUnitHours, config.UnitHours},
		{config.TKeyUnitMinutes, config.UnitMinutes},
	}
	reminderDirs = []choice{
		{config.TKeyDirBefore, config.DirBefore},
		{config.TKeyDirAfter, config.DirAfter},
	}
)

// settingsWidgets holds the form state between build and save.
type settingsWidgets struct {
	langSelect    *widget.Select
	urlEntry      *widget.Entry
	keyEntry      *widget.Entry
	entryPort     *NumericalEntry
	entryHorizon  *NumericalEntry
	checkReminder *widget.Check
	entryRemValue *NumericalEntry
	selectRemUnit *widget.Select
	selectRemDir  *widget.Select

	// Loaded values, used to detect a source change on save.
	initialURL string
	initialKey string
}

// ShowSettingsWindow opens the settings form, or focuses it if already open.
func (app *SkyCalApp) ShowSettingsWindow() {
	if app.Window != nil {
		app.Window.RequestFocus()
		return
	}

	slog.Info(config.LogMsgOpenSet, config.LogKeyComponent, config.CompUISet)
	w := app.App.NewWindow(app.GetMsg(config.TKeyWinTitle))
	app.Window = w

	sw := app.newSettingsWidgets()

	var resize func()
	notifCard := app.buildNotifCard(sw, func() {
		if resize != nil {
			resize()
		}
	})

	save := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnSave), theme.DocumentSaveIcon(), func() {
		if err := sw.validate(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		app.saveSettings(sw)
		w.Close()
	})
	save.Importance = widget.HighImportance
	cancel := widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnCancel), theme.CancelIcon(), w.Close)

	footer := widget.NewLabelWithStyle(
		fmt.Sprintf(app.GetMsg(config.TKeyLblFooter), config.Version),
		fyne.TextAlignCenter,
		fyne.TextStyle{Italic: true},
	)

	content := container.NewPadded(container.NewVBox(
		app.buildSourceCard(sw),
		app.buildGeneralCard(sw),
		notifCard,
		container.NewGridWithColumns(config.LayoutColumnsDouble, cancel, save),
		footer,
	))

	resize = func() {
		content.Refresh()
		w.Resize(fyne.NewSize(config.SettingsWindowWidth, content.MinSize().Height))
	}

	w.SetContent(content)
	w.SetFixedSize(true)
	w.SetOnClosed(func() { app.Window = nil })

	resize()
	w.Show()
}

// newSettingsWidgets creates the form widgets pre-filled from preferences.
func (app *SkyCalApp) newSettingsWidgets() *settingsWidgets {
	prefs := app.Preferences
	sw := &settingsWidgets{
		initialURL: prefs.StringWithFallback(config.PrefSourceURL, config.DefaultSourceURL),
		initialKey: app.loadAPIKey(),
	}

	sw.langSelect = widget.NewSelect(app.SupportedLanguages, nil)
	sw.langSelect.SetSelected(prefs.StringWithFallback(config.PrefLanguage, config.DefaultLanguage))

	sw.urlEntry = widget.NewEntry()
	sw.urlEntry.PlaceHolder = config.PlaceholderURL
	sw.urlEntry.SetText(sw.initialURL)
	sw.urlEntry.Validator = app.validateURL

	sw.keyEntry = widget.NewPasswordEntry()
	sw.keyEntry.SetText(sw.initialKey)

	sw.entryPort = NewNumericalEntry()
	sw.entryPort.SetText(prefs.StringWithFallback(config.PrefServerPort, config.DefaultPort))
	sw.entryPort.Validator = app.validatePort

	sw.entryHorizon = NewNumericalEntry()
	sw.entryHorizon.SetText(strconv.Itoa(prefs.IntWithFallback(config.PrefHorizonDays, config.DefaultHorizonDays)))
	sw.entryHorizon.Validator = app.validateHorizon

	sw.checkReminder = widget.NewCheck(app.GetMsg(config.TKeyLblEnableRem), nil)
	sw.checkReminder.Checked = prefs.Bool(config.PrefReminderEnabled)

	sw.entryRemValue = NewNumericalEntry()
	sw.entryRemValue.SetText(strconv.Itoa(prefs.IntWithFallback(config.PrefReminderValue, config.DefaultReminderValue)))

	sw.selectRemUnit = app.newChoiceSelect(reminderUnits, prefs.String(config.PrefReminderUnit), config.UnitMinutes)
	sw.selectRemDir = app.newChoiceSelect(reminderDirs, prefs.String(config.PrefReminderDir), config.DirBefore)

	return sw
}

// validate runs the validators that block saving.
func (sw *settingsWidgets) validate() error {
	if err := sw.urlEntry.Validate(); err != nil {
		return err
	}
	if err := sw.entryPort.Validate(); err != nil {
		return err
	}
	return sw.entryHorizon.Validate()
}

// newChoiceSelect builds a Select over translated labels. The option whose
// value is current is selected, fallback's when none matches.
func (app *SkyCalApp) newChoiceSelect(choices []choice, current, fallback string) *widget.Select {
	labels := make([]string, len(choices))
	for i, c := range choices {
		labels[i] = app.GetMsg(c.key)
	}
	s := widget.NewSelect(labels, nil)
	s.SetSelected(app.choiceLabel(choices, current, app.choiceLabel(choices, fallback, "")))
	return s
}

func (app *SkyCalApp) choiceLabel(choices []choice, value, fallback string) string {
	for _, c := range choices {
		if c.value == value {
			return app.GetMsg(c.key)
		}
	}
	return fallback
}

// choiceValue maps a selected label back to its stored value.
func (app *SkyCalApp) choiceValue(choices []choice, label, fallback string) string {
	for _, c := range choices {
		if app.GetMsg(c.key) == label {
			return c.value
		}
	}
	return fallback
}

// validateURL accepts absolute http and https URLs.
func (app *SkyCalApp) validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS) {
		return errors.New(app.GetMsg(config.TKeyErrURL))
	}
	return nil
}

// validatePort accepts a TCP port in [MinPort, MaxPort].
func (app *SkyCalApp) validatePort(s string) error {
	if s == "" {
		return errors.New(app.GetMsg(config.TKeyErrPortReq))
	}
	port, err := strconv.Atoi(s)
	switch {
	case err != nil:
		return errors.New(app.GetMsg(config.TKeyErrPortNum))
	case port < config.MinPort || port > config.MaxPort:
		return errors.New(app.GetMsg(config.TKeyErrPortRange))
	}
	return nil
}

// validateHorizon accepts 1..MaxHorizonDays virtual days.
func (app *SkyCalApp) validateHorizon(s string) error {
	days, err := strconv.Atoi(s)
	if err != nil || days < 1 || days > config.MaxHorizonDays {
		return errors.New(app.GetMsg(config.TKeyHelpHorizon))
	}
	return nil
}

func (app *SkyCalApp) formItem(labelKey, hintKey string, w fyne.CanvasObject) *widget.FormItem {
	item := widget.NewFormItem(app.GetMsg(labelKey), w)
	if hintKey != "" {
		item.HintText = app.GetMsg(hintKey)
	}
	return item
}

func (app *SkyCalApp) buildSourceCard(sw *settingsWidgets) *widget.Card {
	return widget.NewCard(app.GetMsg(config.TKeyLblSource), "", widget.NewForm(
		app.formItem(config.TKeyLblURL, config.TKeyHelpURL, sw.urlEntry),
		app.formItem(config.TKeyLblAPIKey, "", sw.keyEntry),
	))
}

func (app *SkyCalApp) buildGeneralCard(sw *settingsWidgets) *widget.Card {
	horizon := container.NewBorder(nil, nil, nil, widget.NewLabel(app.GetMsg(config.TKeyLblDays)), sw.entryHorizon)
	return widget.NewCard(app.GetMsg(config.TKeyLblGeneral), "", widget.NewForm(
		app.formItem(config.TKeyLblLanguage, config.TKeyHelpLanguage, sw.langSelect),
		app.formItem(config.TKeyLblPort, config.TKeyHelpPort, sw.entryPort),
		app.formItem(config.TKeyLblHorizon, config.TKeyHelpHorizon, horizon),
	))
}

// buildNotifCard lays out: [x] enable, then value | unit | direction | "start of day".
// The row is hidden while reminders are off.
func (app *SkyCalApp) buildNotifCard(sw *settingsWidgets, onLayoutChange func()) *widget.Card {
	controls := container.NewHBox(sw.selectRemUnit, sw.selectRemDir, widget.NewLabel(app.GetMsg(config.TKeyLblStartDay)))
	row := container.NewBorder(nil, nil, nil, controls, sw.entryRemValue)

	setVisible := func(on bool) {
		if on {
			row.Show()
		} else {
			row.Hide()
		}
	}
	setVisible(sw.checkReminder.Checked)

	sw.checkReminder.OnChanged = func(on bool) {
		setVisible(on)
		onLayoutChange()
	}

	return widget.NewCard(app.GetMsg(config.TKeyLblNotif), "", container.NewVBox(sw.checkReminder, row))
}

// saveSettings persists the form and applies it.
// A changed source triggers a new epoch resolution; the rest only rebuilds the feed.
func (app *SkyCalApp) saveSettings(sw *settingsWidgets) {
	log := slog.With(config.LogKeyComponent, config.CompUISet)
	log.Info(config.LogMsgSaveSet)
	prefs := app.Preferences

	prefs.SetString(config.PrefLanguage, sw.langSelect.Selected)
	prefs.SetString(config.PrefSourceURL, sw.urlEntry.Text)

	if sw.keyEntry.Text != sw.initialKey {
		var err error
		if sw.keyEntry.Text == "" {
			err = keyring.Delete(config.KeyringService, config.KeyringAPIKeyUser)
		} else {
			err = keyring.Set(config.KeyringService, config.KeyringAPIKeyUser, sw.keyEntry.Text)
		}
		if err != nil {
			log.Error(config.LogMsgKeySave, config.LogKeyError, err)
		}
	}

	if sw.entryPort.Text != "" {
		prefs.SetString(config.PrefServerPort, sw.entryPort.Text)
	}
	if days, ok := sw.entryHorizon.Int(); ok {
		prefs.SetInt(config.PrefHorizonDays, days)
	}

	// An empty reminder value disables reminders, even if the box is checked.
	if v, ok := sw.entryRemValue.Int(); ok {
		prefs.SetBool(config.PrefReminderEnabled, sw.checkReminder.Checked)
		prefs.SetInt(config.PrefReminderValue, v)
	} else {
		prefs.SetBool(config.PrefReminderEnabled, false)
		log.Info(config.LogMsgRemOff)
	}

	prefs.SetString(config.PrefReminderUnit, app.choiceValue(reminderUnits, sw.selectRemUnit.Selected, config.UnitMinutes))
	prefs.SetString(config.PrefReminderDir, app.choiceValue(reminderDirs, sw.selectRemDir.Selected, config.DirBefore))

	app.UpdateLocalizer()
	app.RefreshTrayMenu()

	if sw.urlEntry.Text != sw.initialURL || sw.keyEntry.Text != sw.initialKey {
		app.RequestRetry()
	}
}
