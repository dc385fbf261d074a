package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-SkyCal/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go SkyCal"
	AppID             = "com.github.tartampluch.go-skycal"
	KeyringService    = "com.github.tartampluch.go-skycal"
	KeyringAPIKeyUser = "epoch-source-api-key"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	DBFileName        = "display.db"
	IconFile          = "Icon.png"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagHeadless     = "headless"
	FlagPort         = "port"
	FlagSource       = "source"
	FlagCatalog      = "catalog"
	FlagDB           = "db"
	FlagShow         = "show"
	FlagHide         = "hide"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescHeadless = "Run without a UI: resolve the epoch, serve the feed and log day changes"
	FlagDescPort     = "Feed server port (headless mode)"
	FlagDescSource   = "Epoch source URL (headless mode)"
	FlagDescCatalog  = "Path to a JSON event catalog replacing the built-in one"
	FlagDescDB       = "Path to the display preferences database (headless mode)"
	FlagDescShow     = "Comma separated event IDs to mark visible (headless mode)"
	FlagDescHide     = "Comma separated event IDs to mark hidden (headless mode)"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
	FlagListSep      = ","
)

// -----------------------------------------------------------------------------
// Virtual Calendar Shape
// -----------------------------------------------------------------------------

const (
	// DefaultEpochMillis is the real instant (Unix ms) of virtual year 0, day 0, 00:00:00.
	DefaultEpochMillis int64 = 1560275700000

	// DefaultRatio is the number of virtual seconds per real second.
	// 72 makes one virtual day last 20 real minutes.
	DefaultRatio int64 = 72

	DaysPerMonth   = 31
	MonthsPerYear  = 12
	HoursPerDay    = 24
	MinutesPerHour = 60
	SecsPerMinute  = 60
	MinutesPerDay  = HoursPerDay * MinutesPerHour
	SecondsPerDay  = MinutesPerDay * SecsPerMinute
	MillisPerSec   = 1000

	// TickInterval drives the scheduler.
	TickInterval = 1 * time.Second
)

// MonthNames lists the in-world months, 0-indexed like the engine.
var MonthNames = []string{
	"Early Spring", "Spring", "Late Spring",
	"Early Summer", "Summer", "Late Summer",
	"Early Autumn", "Autumn", "Late Autumn",
	"Early Winter", "Winter", "Late Winter",
}

// -----------------------------------------------------------------------------
// UI Constants & Preferences
// -----------------------------------------------------------------------------

const (
	SettingsWindowWidth = 600
	EventsWindowWidth   = 360
	EventsWindowHeight  = 480

	// Preference Keys
	PrefSourceURL       = "source_url"
	PrefLanguage        = "language"
	PrefServerPort      = "server_port"
	PrefHorizonDays     = "feed_horizon_days"
	PrefReminderEnabled = "reminder_enabled"
	PrefReminderValue   = "reminder_value"
	PrefReminderUnit    = "reminder_unit"
	PrefReminderDir     = "reminder_direction"
	PrefLastRun         = "last_run_version"

	// PrefEventPrefix prefixes per-event visibility booleans ("event.dark_auction").
	PrefEventPrefix = "event."
)

// SupportedLanguages defines the list of available UI languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// UI Upcoming Window Constants
// -----------------------------------------------------------------------------

const (
	UpcomingWinWidth  = 640
	UpcomingWinHeight = 420

	// Table Column IDs
	ColIDDate   = 0
	ColIDEvents = 1
	ColIDState  = 2
	ColCount    = 3

	ColWidthDate   = 170
	ColWidthEvents = 280
	ColWidthState  = 170

	// UpcomingDays is the number of virtual days listed in the window.
	UpcomingDays = 31

	TablePlaceholder = "Cell Content"
	EventSeparator   = ", "
	NoEventsMarker   = "-"
	LogMsgOpenWin    = "Opening upcoming days window"
	LogMsgOpenEvents = "Opening events window"
	LogMsgOpenSet    = "Opening settings window"
	LogMsgSaveSet    = "Saving preferences"
	LogMsgRemOff     = "Reminders disabled, value is empty"
	LogMsgKeySave    = "Failed to save API key to keyring"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyWinTitle       = "win_title"
	TKeyWinUpcoming    = "win_upcoming_title"
	TKeyWinEvents      = "win_events_title"
	TKeyMenuRetry      = "menu_retry"
	TKeyMenuSettings   = "menu_settings"
	TKeyMenuUpcoming   = "menu_upcoming"
	TKeyMenuEvents     = "menu_events"
	TKeyTrayLoading    = "tray_loading"
	TKeyTrayFailed     = "tray_failed"
	TKeyTrayClock      = "tray_clock"       // Requires Time, Date
	TKeyTrayEvents     = "tray_events"      // Requires Count > 0, Names
	TKeyTrayEventsZero = "tray_events_zero" // Explicit key for 0
	TKeyTrayMayor      = "tray_mayor"       // Requires Name
	TKeyNotifDay       = "notif_new_day"    // Requires Date
	TKeyNotifError     = "notif_err_epoch"
	TKeyStateFuture    = "state_future" // Requires Duration
	TKeyStateActive    = "state_active" // Requires Percent
	TKeyStatePast      = "state_past"   // Requires Duration
	TKeyDateFormat     = "date_format"  // Requires Day, Month, Year
	TKeyLblLanguage    = "lbl_language"
	TKeyHelpLanguage   = "help_language"
	TKeyLblSource      = "lbl_source"
	TKeyLblURL         = "lbl_url"
	TKeyHelpURL        = "help_source_url"
	TKeyLblAPIKey      = "lbl_api_key"
	TKeyLblPort        = "lbl_server_port"
	TKeyHelpPort       = "help_port"
	TKeyLblHorizon     = "lbl_horizon"
	TKeyHelpHorizon    = "help_horizon"
	TKeyLblDays        = "lbl_days_suffix"
	TKeyLblGeneral     = "lbl_general"
	TKeyLblEnableRem   = "lbl_enable_reminders"
	TKeyUnitDays       = "unit_days"
	TKeyUnitHours      = "unit_hours"
	TKeyUnitMinutes    = "unit_minutes"
	TKeyDirBefore      = "dir_before"
	TKeyDirAfter       = "dir_after"
	TKeyLblNotif       = "lbl_notifications"
	TKeyLblStartDay    = "lbl_start_of_day"
	TKeyBtnSave        = "btn_save"
	TKeyBtnCancel      = "btn_cancel"
	TKeyLblFooter      = "lbl_footer"
	TKeyEvtSummary     = "event_summary" // Requires Name, Date

	// Column Headers
	TKeyColDate   = "col_date"
	TKeyColEvents = "col_events"
	TKeyColState  = "col_state"

	// Validation Errors (UI)
	TKeyErrPortReq   = "err_port_required"
	TKeyErrPortNum   = "err_port_number"
	TKeyErrPortRange = "err_port_range"
	TKeyErrURL       = "err_source_url"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultSourceURL     = "https://api.hypixel.net/v2/resources/skyblock/election"
	DefaultPort          = "18080"
	DefaultLanguage      = "en"
	DefaultReminderValue = 1
	UIDSalt              = "go-skycal-v1-" // Salt for deterministic UID generation

	// DefaultHorizonDays covers 24 real hours at the default ratio.
	DefaultHorizonDays = 72
	MaxHorizonDays     = 372 * 2
)

// ISO8601 Duration Components for Reminders
const (
	ISOPeriodPrefix   = "P"
	ISONegativePrefix = "-P"
	ISOTime           = "T"
	ISODay            = "D"
	ISOHour           = "H"
	ISOMinute         = "M"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar
// -----------------------------------------------------------------------------

const (
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go SkyCal//Engine//EN"
	ICalCalName   = "SkyBlock Events"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "goskycal"

	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTEnd       = "DTEND"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropCategories  = "CATEGORIES"
	PropURL         = "URL"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	// DefaultICalRefresh matches one virtual day at the default ratio.
	DefaultICalRefresh = 20 * time.Minute
)

// -----------------------------------------------------------------------------
// Data Formats & Limits
// -----------------------------------------------------------------------------

const (
	ClockFormat = "%02d:%02d"

	// Limits
	MinPort = 1
	MaxPort = 65535

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%d|%s"
	FormatUID       = "%s-%d@%s"

	ExtJSON = ".json"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 4 * 1024 * 1024 // 4MB, the epoch document is tiny
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RouteRoot           = "/"
	RouteMetrics        = "/metrics"
	RouteHealth         = "/healthz"
	AddrSeparator       = ":"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderContentLength   = "Content-Length"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderAccept          = "Accept"
	HeaderAPIKey          = "API-Key"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// SQLite Store
// -----------------------------------------------------------------------------

const (
	DBDriver      = "sqlite"
	DBPragmas     = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	DBMaxOpen     = 2
	DBMaxIdle     = 1
	DBConnMaxLife = 30 * time.Minute

	RetryMaxAttempts = 3
	RetryBaseDelay   = 50 * time.Millisecond
	RetryMaxDelay    = 500 * time.Millisecond
)

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

const (
	MetricsNamespace   = "skycal"
	MetricTicks        = "ticks_total"
	MetricDayChanges   = "day_changes_total"
	MetricFeedBuilds   = "feed_builds_total"
	MetricFeedEvents   = "feed_events"
	MetricRequests     = "feed_requests_total"
	MetricEpochState   = "epoch_state"
	MetricVirtualDay   = "virtual_day_ordinal"
	MetricLabelStatus  = "status"
	MetricHelpTicks    = "Scheduler ticks processed."
	MetricHelpDays     = "Virtual day transitions observed."
	MetricHelpBuilds   = "iCalendar feed rebuilds."
	MetricHelpEvents   = "Event occurrences in the current feed."
	MetricHelpRequests = "Feed HTTP requests by status code."
	MetricHelpEpoch    = "Epoch resolver state (0 pending, 1 ready, 2 failed)."
	MetricHelpDay      = "Current virtual day ordinal since year 0."
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrSourceMissing    = "internal error: epoch source is not initialized"
	ErrCatalogMissing   = "internal error: event catalog is not initialized"
	ErrEpochUnavailable = "epoch unavailable"
	ErrEpochFetch       = "failed to fetch epoch"
	ErrEpochDecode      = "failed to decode epoch document"
	ErrEpochRejected    = "epoch source reported failure"
	ErrRatioInvalid     = "epoch ratio must be positive"
	ErrInvalidMoment    = "invalid virtual moment"
	ErrEventNotFound    = "event not found"
	ErrInvalidRule      = "invalid recurrence rule"
	ErrDuplicateEvent   = "duplicate event id"
	ErrEmptyEventID     = "event id is empty"
	ErrCatalogDecode    = "failed to decode event catalog"
	ErrCatalogOpen      = "failed to open event catalog"
	ErrSchedulerStarted = "scheduler already started"
	ErrSchedulerStopped = "scheduler stopped"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrPortRequired     = "server port is required"
	ErrPortNumber       = "server port must be a number"
	ErrPortRange        = "server port must be between 1 and 65535"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app cache dir"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrTrayNotSupported = "system tray not supported on this platform/driver"
	ErrLocNotInit       = "localizer not initialized"
	ErrDBOpen           = "failed to open display database"
	ErrDBMigrate        = "failed to migrate display database"
	ErrDBQuery          = "display database query failed"
	ErrDBWrite          = "display database write failed"
	ErrFeedBuild        = "failed to build feed"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgReady        = "ok"
)

// -----------------------------------------------------------------------------
// Fallbacks & Defaults
// -----------------------------------------------------------------------------

const (
	FallbackSummary     = "%s (%s)"
	FallbackTrayLoading = "Loading..."
	FallbackTrayFailed  = "Failed to fetch API data"
	FallbackTrayClock   = "Time: %s, %s"
	FallbackTrayEvents  = "%d event(s): %s"
	FallbackTrayNone    = "No events today"
	FallbackTrayMayor   = "Mayor: %s"
	FallbackTrayLabel   = "Go SkyCal"
	FallbackDate        = "%d%s %s, Year %d"
	FallbackFuture      = "Day starts in: %s"
	FallbackActive      = "Day ACTIVE (%d%%)"
	FallbackPast        = "Day ended %s ago"

	// StubVCalendar is the minimal valid iCalendar object used when no events are found.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"

	TitleStartupError = "Startup Error"
	TitleEpochError   = "Calendar Error"

	MsgPortBusy        = "Port %s is busy or unavailable."
	MsgResolveStarted  = "Resolving epoch..."
	MsgResolveFailed   = "Epoch resolution failed"
	MsgResolveCached   = "Epoch already resolved, using cached value"
	MsgEpochResolved   = "Epoch resolved"
	MsgRetryReq        = "Epoch retry requested"
	MsgWorkerStart     = "Background worker started"
	MsgWorkerStop      = "Worker stopping due to context cancellation"
	MsgSchedulerStart  = "Scheduler started"
	MsgSchedulerStop   = "Scheduler stopped"
	MsgDayChanged      = "Virtual day changed"
	MsgClockBackwards  = "Virtual day moved backwards, ignoring"
	MsgNegativeElapsed = "Real time precedes epoch, clamping to zero"
	MsgAppStop         = "Application stopped gracefully"
	MsgCtxCancel       = "Context cancelled, shutting down UI"
	MsgFeedBuilt       = "Feed generation successful"
	MsgFeedReq         = "Feed rebuild requested"
	MsgAppStarting     = "Starting application"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgCacheUpdated    = "Calendar cache updated"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleBadName   = "Skipping malformed locale filename"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgTransMissing    = "Missing translation key"
	MsgKeyFail         = "API key retrieval failed (might be empty)"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
	MsgCatalogLoaded   = "Event catalog loaded"
	MsgVisibilitySet   = "Event visibility updated"
	MsgUnknownEvent    = "Ignoring unknown event id"
	MsgDBRetry         = "Transient database error, retrying"
	MsgHeadlessReady   = "Headless mode ready"

	PlaceholderURL = "https://..."
)

// -----------------------------------------------------------------------------
// Reminder Units & Directions
// -----------------------------------------------------------------------------

const (
	UnitDays    = "d"
	UnitHours   = "h"
	UnitMinutes = "m"
	DirBefore   = "before"
	DirAfter    = "after"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyInterval  = "interval"
	LogKeyManual    = "manual"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyCount     = "count"
	LogKeyName      = "name"
	LogKeyEventID   = "event_id"
	LogKeyVisible   = "visible"
	LogKeyEpoch     = "epoch"
	LogKeyRatio     = "ratio"
	LogKeyMayor     = "mayor"
	LogKeyYear      = "year"
	LogKeyMonth     = "month"
	LogKeyDay       = "day"
	LogKeyOrdinal   = "ordinal"
	LogKeyEvents    = "events"
	LogKeyHorizon   = "horizon_days"
	LogKeyAttempt   = "attempt"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyPath      = "path"
	LogKeyDuration  = "duration_ms"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompUI        = "ui"
	CompUISet     = "ui_settings"
	CompEngine    = "engine"
	CompResolver  = "resolver"
	CompScheduler = "scheduler"
	CompServer    = "server"
	CompFetcher   = "fetcher"
	CompWorker    = "worker"
	CompStore     = "store"
	CompMain      = "main"
	CompI18n      = "i18n"
)

// -----------------------------------------------------------------------------
// UI Layout Constants
// -----------------------------------------------------------------------------

const (
	LayoutColumnsDouble = 2
)
