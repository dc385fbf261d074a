package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/tartampluch/go-skycal/internal/config"
)

// HTTPEpochSource implements EpochSource over a JSON HTTP endpoint.
//
// The document shape is {"success": true, "epoch": <unix ms>, "ratio": 72,
// "mayor": {...}}. Missing epoch or ratio fall back to the well-known values,
// so the public election resource (which only carries the mayor) works as is.
type HTTPEpochSource struct {
	Client *http.Client
	URL    string
	APIKey string // Optional, sent as the API-Key header
}

// NewHTTPEpochSource creates a source with the configured timeouts.
func NewHTTPEpochSource(targetURL, apiKey string) *HTTPEpochSource {
	return &HTTPEpochSource{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		URL:    targetURL,
		APIKey: apiKey,
	}
}

type perkDocument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type mayorDocument struct {
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Perks    []perkDocument `json:"perks"`
	Election *struct {
		Year int `json:"year"`
	} `json:"election"`
}

type epochDocument struct {
	Success *bool          `json:"success"`
	Cause   string         `json:"cause"`
	Epoch   *int64         `json:"epoch"`
	Ratio   *int64         `json:"ratio"`
	Mayor   *mayorDocument `json:"mayor"`
}

// Fetch downloads and decodes the epoch document.
func (s *HTTPEpochSource) Fetch(ctx context.Context) (Epoch, error) {
	rc, err := s.open(ctx)
	if err != nil {
		return Epoch{}, fmt.Errorf("%s: %w", config.ErrEpochFetch, err)
	}
	defer func() { _ = rc.Close() }()

	return DecodeEpoch(rc)
}

// DecodeEpoch parses an epoch document and applies the defaults.
func DecodeEpoch(r io.Reader) (Epoch, error) {
	var doc epochDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Epoch{}, fmt.Errorf("%s: %w", config.ErrEpochDecode, err)
	}

	if doc.Success != nil && !*doc.Success {
		if doc.Cause != "" {
			return Epoch{}, fmt.Errorf("%s: %s", config.ErrEpochRejected, doc.Cause)
		}
		return Epoch{}, errors.New(config.ErrEpochRejected)
	}

	epoch := Epoch{
		Start: time.UnixMilli(config.DefaultEpochMillis).UTC(),
		Ratio: config.DefaultRatio,
	}
	if doc.Epoch != nil {
		epoch.Start = time.UnixMilli(*doc.Epoch).UTC()
	}
	if doc.Ratio != nil {
		epoch.Ratio = *doc.Ratio
	}
	if epoch.Ratio <= 0 || epoch.Ratio > MaxRatio {
		return Epoch{}, fmt.Errorf("%s: %d", config.ErrRatioInvalid, epoch.Ratio)
	}

	if m := doc.Mayor; m != nil && m.Name != "" {
		mayor := &Mayor{Key: m.Key, Name: StripFormatting(m.Name)}
		if m.Election != nil {
			mayor.Year = m.Election.Year
		}
		for _, p := range m.Perks {
			mayor.Perks = append(mayor.Perks, Perk{
				Name:        StripFormatting(p.Name),
				Description: StripFormatting(p.Description),
			})
		}
		epoch.Mayor = mayor
	}
	return epoch, nil
}

var formattingCode = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)

// StripFormatting removes in-game colour and style codes ("§a", "§l").
func StripFormatting(s string) string {
	return formattingCode.ReplaceAllString(s, "")
}

// open performs the GET request and returns a size-limited body.
// The URL is sanitized for logging to avoid leaking tokens.
func (s *HTTPEpochSource) open(ctx context.Context) (io.ReadCloser, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}

	// Only HTTP or HTTPS.
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	safeURL := u.Scheme + "://" + u.Host + u.Path
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, safeURL),
	)
	log.Debug("Requesting epoch document")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.MimeJSON)
	if s.APIKey != "" {
		req.Header.Set(config.HeaderAPIKey, s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error during fetch: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		log.Warn("Server returned error status",
			slog.Int(config.LogKeyStatus, resp.StatusCode),
		)
		return nil, fmt.Errorf("server returned unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	return &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, config.MaxHTTPResponseSize),
		Closer: resp.Body,
	}, nil
}

// limitedReadCloser bounds the read size while keeping the original Closer,
// so the connection is still released.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	return l.Reader.Read(p)
}

func (l *limitedReadCloser) Close() error {
	return l.Closer.Close()
}
