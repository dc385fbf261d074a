package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-skycal/internal/config"
)

func serve(srv *CalendarServer, method string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, config.RouteRoot, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.handleCalendarRequest(w, req)
	return w
}

// TestHandler_ServingContent checks headers and body once a feed is published.
func TestHandler_ServingContent(t *testing.T) {
	srv := NewCalendarServer("0", nil)
	ics := []byte(config.StubVCalendar)
	srv.Update(ics)

	w := serve(srv, http.MethodGet, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.MimeTextCalendar, w.Header().Get(config.HeaderContentType))
	assert.Equal(t, config.MimeNoSniff, w.Header().Get(config.HeaderXContentType))
	assert.Contains(t, w.Header().Get(config.HeaderCacheControl), "no-cache")
	assert.Equal(t, strconv.Itoa(len(ics)), w.Header().Get(config.HeaderContentLength))
	assert.NotEmpty(t, w.Header().Get(config.HeaderETag))
	assert.NotEmpty(t, w.Header().Get(config.HeaderLastModified))
	assert.Equal(t, ics, w.Body.Bytes())
}

func TestHandler_ETagChangesWithContent(t *testing.T) {
	srv := NewCalendarServer("0", nil)

	srv.Update([]byte("DAY 1"))
	first := serve(srv, http.MethodGet, nil).Header().Get(config.HeaderETag)
	srv.Update([]byte("DAY 1"))
	same := serve(srv, http.MethodGet, nil).Header().Get(config.HeaderETag)
	srv.Update([]byte("DAY 2"))
	next := serve(srv, http.MethodGet, nil).Header().Get(config.HeaderETag)

	assert.Equal(t, first, same)
	assert.NotEqual(t, first, next)
}

// TestHandler_Conditional covers If-None-Match and If-Modified-Since.
func TestHandler_Conditional(t *testing.T) {
	srv := NewCalendarServer("0", nil)
	srv.Update([]byte(config.StubVCalendar))
	etag := serve(srv, http.MethodGet, nil).Header().Get(config.HeaderETag)
	require.NotEmpty(t, etag)

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"MatchingETag", map[string]string{config.HeaderIfNoneMatch: etag}, http.StatusNotModified},
		{"StaleETag", map[string]string{config.HeaderIfNoneMatch: `"old"`}, http.StatusOK},
		{"StaleETagWinsOverDate", map[string]string{
			config.HeaderIfNoneMatch:     `"old"`,
			config.HeaderIfModifiedSince: future,
		}, http.StatusOK},
		{"ClientCurrent", map[string]string{config.HeaderIfModifiedSince: future}, http.StatusNotModified},
		{"ClientOutdated", map[string]string{config.HeaderIfModifiedSince: past}, http.StatusOK},
		{"BadDate", map[string]string{config.HeaderIfModifiedSince: "yesterday"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(srv, http.MethodGet, tt.headers)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusNotModified {
				assert.Empty(t, w.Body.Bytes())
			}
		})
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := NewCalendarServer("0", nil)

	w := serve(srv, http.MethodPost, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, config.AllowedMethods, w.Header().Get(config.HeaderAllow))
}

func TestHandler_Head(t *testing.T) {
	srv := NewCalendarServer("0", nil)
	srv.Update([]byte(config.StubVCalendar))

	w := serve(srv, http.MethodHead, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(config.HeaderETag))
	assert.Empty(t, w.Body.Bytes())
}

// TestHandler_Initializing asks clients to come back before the first build.
func TestHandler_Initializing(t *testing.T) {
	srv := NewCalendarServer("0", nil)

	w := serve(srv, http.MethodGet, nil)

	assert.False(t, srv.Ready())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, config.RetryAfterSeconds, w.Header().Get(config.HeaderRetryAfter))
}

func TestHandler_Health(t *testing.T) {
	srv := NewCalendarServer("0", nil)
	h := srv.Handler()

	probe := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, config.RouteHealth, nil))
		return w
	}

	assert.Equal(t, http.StatusServiceUnavailable, probe().Code)

	srv.Update([]byte(config.StubVCalendar))
	w := probe()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.HTTPMsgReady, w.Body.String())
}

// TestServer_RaceCondition publishes and serves concurrently. Run with -race.
func TestServer_RaceCondition(t *testing.T) {
	srv := NewCalendarServer("0", nil)
	end := time.Now().Add(300 * time.Millisecond)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; time.Now().Before(end); i++ {
				srv.Update([]byte(fmt.Sprintf("BUILD:%d-%d", id, i)))
				time.Sleep(time.Microsecond)
			}
		}(w)
	}

	for r := 0; r < 16; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				w := serve(srv, http.MethodGet, nil)
				if w.Code != http.StatusOK && w.Code != http.StatusServiceUnavailable {
					t.Errorf("unexpected status %d", w.Code)
				}
			}
		}()
	}

	wg.Wait()
}

// TestServer_Lifecycle binds a real listener, serves, then shuts down.
func TestServer_Lifecycle(t *testing.T) {
	// The server builds its address from a string port, so a fixed high port is used.
	const port = "18099"
	base := "http://127.0.0.1:" + port

	srv := NewCalendarServer(port, NewMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	get := func(path string) (int, string) {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + config.RouteHealth)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 50*time.Millisecond, "server failed to listen in time")

	code, _ := get(config.RouteRoot)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	srv.Update([]byte(config.StubVCalendar))

	code, body := get(config.RouteRoot)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "BEGIN:VCALENDAR")

	code, body = get(config.RouteMetrics)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `skycal_feed_requests_total{status="200"} 1`)
	assert.Contains(t, body, `skycal_feed_requests_total{status="503"} 1`)

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server shutdown timed out")
	}
}

func TestServer_StartWithoutPort(t *testing.T) {
	err := NewCalendarServer("", nil).Start(context.Background())
	assert.EqualError(t, err, config.ErrPortRequired)
}
