package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"fyne.io/fyne/v2/app"
	"github.com/tartampluch/go-skycal/internal/config"
	"github.com/tartampluch/go-skycal/internal/engine"
	"github.com/tartampluch/go-skycal/internal/server"
	"github.com/tartampluch/go-skycal/internal/store"
	"github.com/tartampluch/go-skycal/internal/ui"
	"github.com/zalando/go-keyring"
)

// options holds the parsed command line.
type options struct {
	debug    bool
	headless bool
	port     string
	source   string
	catalog  string
	db       string
	show     []string
	hide     []string
}

// main is the application entry point.
// It delegates execution to runMain to ensure that deferred function calls
// (like closing log files) are executed before the process terminates.
func main() {
	os.Exit(runMain(os.Args[1:]))
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
func runMain(args []string) int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	opts, showVersion, err := parseFlags(args)
	if err != nil {
		return config.ExitCodeError
	}

	if showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// -------------------------------------------------------------------------
	// 2. Logging Initialization
	// -------------------------------------------------------------------------
	logCloser := setupLogging(opts.debug)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close() // Best effort close
		}()
	}

	// -------------------------------------------------------------------------
	// 3. Context & Signal Handling
	// -------------------------------------------------------------------------
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	// -------------------------------------------------------------------------
	// 4. Application Logic
	// -------------------------------------------------------------------------
	catalog, err := loadCatalog(opts.catalog)
	if err == nil {
		if opts.headless {
			err = runHeadless(ctx, opts, catalog)
		} else {
			err = run(ctx, opts, catalog)
		}
	}
	if err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// parseFlags reads the command line into options.
func parseFlags(args []string) (options, bool, error) {
	var opts options
	var show, hide string

	fs := flag.NewFlagSet(config.AppID, flag.ContinueOnError)
	showVersion := fs.Bool(config.FlagVersion, false, config.FlagDescVersion)
	fs.BoolVar(&opts.debug, config.FlagDebug, false, config.FlagDescDebug)
	fs.BoolVar(&opts.headless, config.FlagHeadless, false, config.FlagDescHeadless)
	fs.StringVar(&opts.port, config.FlagPort, config.DefaultPort, config.FlagDescPort)
	fs.StringVar(&opts.source, config.FlagSource, config.DefaultSourceURL, config.FlagDescSource)
	fs.StringVar(&opts.catalog, config.FlagCatalog, "", config.FlagDescCatalog)
	fs.StringVar(&opts.db, config.FlagDB, "", config.FlagDescDB)
	fs.StringVar(&show, config.FlagShow, "", config.FlagDescShow)
	fs.StringVar(&hide, config.FlagHide, "", config.FlagDescHide)

	if err := fs.Parse(args); err != nil {
		return opts, false, err
	}

	opts.show = splitList(show)
	opts.hide = splitList(hide)
	return opts, *showVersion, nil
}

// splitList parses "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, config.FlagListSep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadCatalog returns the built-in catalog unless a file is given.
func loadCatalog(path string) (*engine.Catalog, error) {
	if path == "" {
		return engine.DefaultCatalog(), nil
	}
	catalog, err := engine.LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info(config.MsgCatalogLoaded,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyFile, path,
		config.LogKeyCount, catalog.Len(),
	)
	return catalog, nil
}

// run initializes the Fyne application, wires dependencies, and starts the UI loop.
func run(ctx context.Context, _ options, catalog *engine.Catalog) error {
	a := app.NewWithID(config.AppID)

	// Record the version for potential migration logic in future updates.
	a.Preferences().SetString(config.PrefLastRun, config.Version)

	port := a.Preferences().StringWithFallback(config.PrefServerPort, config.DefaultPort)
	metrics := server.NewMetrics()
	srv := server.NewCalendarServer(port, metrics)

	gui := ui.NewSkyCalApp(a, ctx, srv, metrics, catalog, func(url, apiKey string) engine.EpochSource {
		return engine.NewHTTPEpochSource(url, apiKey)
	})

	// Watch for context cancellation to quit the UI gracefully.
	go func() {
		<-ctx.Done()
		slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
		a.Quit()
	}()

	// Blocks until the application quits.
	gui.Run()

	return nil
}

// runHeadless resolves the epoch once, then serves the feed and tracks day
// changes until ctx is cancelled. Display preferences come from SQLite.
func runHeadless(ctx context.Context, opts options, catalog *engine.Catalog) error {
	log := slog.With(config.LogKeyComponent, config.CompMain)

	dbPath := opts.db
	if dbPath == "" {
		dir, err := appCacheDir()
		if err != nil {
			return err
		}
		dbPath = filepath.Join(dir, config.DBFileName)
	}

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Apply(ctx, catalog, opts.show, opts.hide); err != nil {
		return err
	}

	metrics := server.NewMetrics()
	srv := server.NewCalendarServer(opts.port, metrics)

	apiKey, err := keyring.Get(config.KeyringService, config.KeyringAPIKeyUser)
	if err != nil {
		log.Debug(config.MsgKeyFail, config.LogKeyError, err)
	}

	resolver := engine.NewResolver(engine.NewHTTPEpochSource(opts.source, apiKey), nil)
	metrics.SetEpochState(engine.StatePending)
	epoch, err := resolver.Resolve(ctx)
	metrics.SetEpochState(resolver.State())
	if err != nil {
		return err
	}

	gen := &engine.Generator{Catalog: catalog}
	rebuild := func() {
		display, err := st.Load(ctx)
		if err != nil {
			log.Error(config.ErrFeedBuild, config.LogKeyError, err)
			return
		}
		ics, days, _, err := gen.Build(ctx, epoch, engine.FeedConfig{Display: display})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error(config.ErrFeedBuild, config.LogKeyError, err)
			}
			return
		}
		total := 0
		for _, day := range days {
			total += len(day.Events)
		}
		srv.Update(ics)
		metrics.FeedBuilt(total)
	}
	rebuild()

	cal := epoch.Calendar()
	sched := engine.NewScheduler(nil, cal)
	sched.OnTick(func(now engine.VirtualMoment) {
		metrics.Tick(cal.Ordinal(now.Date()))
	})
	sched.OnDayChange(func(engine.VirtualMoment) {
		metrics.DayChanged()
		rebuild()
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	now, _ := sched.Current()
	log.Info(config.MsgHeadlessReady,
		config.LogKeyPort, opts.port,
		config.LogKeyURL, opts.source,
		config.LogKeyDay, now.Date().Display().String(),
	)

	// Blocks until ctx is cancelled.
	return srv.Start(ctx)
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger.
func setupLogging(debugMode bool) io.Closer {
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	if dir, err := appCacheDir(); err == nil {
		logPath := filepath.Join(dir, config.LogFileName)
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts)))

	if logFile == nil {
		return nil
	}
	return logFile
}

// appCacheDir returns the per-user application directory, creating it (700) if needed.
func appCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}
	return appDir, nil
}
