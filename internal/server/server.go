package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
)

// feed is one published calendar build.
type feed struct {
	data    []byte
	etag    string
	modTime time.Time // truncated to seconds, the resolution of HTTP dates
}

// CalendarServer serves the event feed and the metrics endpoint via HTTP.
type CalendarServer struct {
	// current is read on every request and replaced once per virtual day.
	current atomic.Pointer[feed]
	Port    string
	Metrics *Metrics // Optional
}

// NewCalendarServer creates a server with no feed published yet.
func NewCalendarServer(port string, metrics *Metrics) *CalendarServer {
	return &CalendarServer{
		Port:    port,
		Metrics: metrics,
	}
}

// Handler returns the routes: the feed at "/", a readiness probe and, when
// metrics are enabled, the Prometheus endpoint.
func (s *CalendarServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(config.RouteRoot, s.Metrics.WrapHandler(http.HandlerFunc(s.handleCalendarRequest)))
	mux.HandleFunc(config.RouteHealth, s.handleHealth)
	if s.Metrics != nil {
		mux.Handle(config.RouteMetrics, s.Metrics.Handler())
	}
	return mux
}

// Ready reports whether a feed has been published.
func (s *CalendarServer) Ready() bool {
	return s.current.Load() != nil
}

// Start listens on localhost and blocks until ctx is cancelled.
// A graceful shutdown returns nil.
func (s *CalendarServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	listenErr := make(chan error, config.ChannelBufferSize)
	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	case <-ctx.Done():
	}

	slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
	}
	return nil
}

// Update publishes a new feed build. Readers see either the old or the new one.
func (s *CalendarServer) Update(data []byte) {
	sum := sha256.Sum256(data)
	f := &feed{
		data:    data,
		etag:    fmt.Sprintf(config.FormatETag, hex.EncodeToString(sum[:])),
		modTime: time.Now().UTC().Truncate(time.Second),
	}
	s.current.Store(f)

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, f.etag,
	)
}

func (s *CalendarServer) handleCalendarRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	f := s.current.Load()
	if f == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	h := w.Header()
	h.Set(config.HeaderContentType, config.MimeTextCalendar)
	h.Set(config.HeaderXContentType, config.MimeNoSniff)
	h.Set(config.HeaderCacheControl, config.CacheControlPrivate)
	h.Set(config.HeaderETag, f.etag)
	h.Set(config.HeaderLastModified, f.modTime.Format(http.TimeFormat))

	if notModified(r, f) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set(config.HeaderContentLength, strconv.Itoa(len(f.data)))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(f.data); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// notModified evaluates If-None-Match first; If-Modified-Since is only
// consulted when no entity tag was sent.
func notModified(r *http.Request, f *feed) bool {
	if match := r.Header.Get(config.HeaderIfNoneMatch); match != "" {
		return match == f.etag
	}
	since, err := http.ParseTime(r.Header.Get(config.HeaderIfModifiedSince))
	if err != nil {
		return false
	}
	return !f.modTime.After(since)
}

// handleHealth answers 200 once a feed is published, 503 before.
func (s *CalendarServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.Ready() {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte(config.HTTPMsgReady))
}
