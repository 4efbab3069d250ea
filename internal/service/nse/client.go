package nse

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/service/ratelimit"
	xhttp "EmaScreen/pkg/http"
	xlogger "EmaScreen/pkg/logger"
	"EmaScreen/pkg/util"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds client settings for the exchange's historical-data API.
type Config struct {
	BaseURL        string
	HistoricalURL  string
	MaxRetries     int
	SessionRefresh int // calls between session rebuilds
	RequestTimeout time.Duration
	Location       *time.Location // exchange timezone, bounds the query range
}

// Client fetches daily bars from the exchange's historical-data endpoint.
// The endpoint sits behind session cookies issued by the main site, which
// expire server-side; the client re-establishes the session every
// SessionRefresh calls, transparently to callers.
type Client struct {
	cfg    Config
	hc     *xhttp.Client
	pacer  *ratelimit.Pacer
	logger *xlogger.Logger
	now    func() time.Time

	mu        sync.Mutex
	calls     int
	hasCookie bool
}

// New creates a Client. pacer is shared across all instruments of a run.
func New(cfg Config, pacer *ratelimit.Pacer, logger *xlogger.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.SessionRefresh <= 0 {
		cfg.SessionRefresh = 15
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	hc := xhttp.NewClient(
		xhttp.WithTimeout(cfg.RequestTimeout),
		xhttp.WithCookieJar(),
		xhttp.WithHeader("User-Agent", userAgent),
		xhttp.WithHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"),
	)

	return &Client{cfg: cfg, hc: hc, pacer: pacer, logger: logger, now: time.Now}
}

// FetchMissing returns all bars for symbol strictly after since, up to the
// most recent completed session, oldest first. An empty slice means the
// series is already current. Transient failures are retried with doubling
// backoff up to MaxRetries; exhaustion yields models.ErrFetchExhausted.
func (c *Client) FetchMissing(ctx context.Context, symbol string, since time.Time) ([]models.PriceBar, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	from := util.DateOnly(since).AddDate(0, 0, 1)
	// the range is bounded by the exchange's calendar day, not the host's
	to := util.DateOnly(c.now().In(c.cfg.Location))
	if from.After(to) {
		return nil, nil
	}

	query := map[string]string{
		"symbol": symbol,
		"series": `["EQ"]`,
		"from":   from.Format("02-01-2006"),
		"to":     to.Format("02-01-2006"),
		"csv":    "true",
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.pacer.Interval() * time.Duration(2<<uint(attempt-1))
			c.logger.Warn("fetch retry",
				xlogger.String("symbol", symbol),
				xlogger.Int("attempt", attempt+1),
				xlogger.Duration("backoff", backoff),
				xlogger.Error(lastErr))
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}

		// the bootstrap goes through the same flaky network as the data
		// call, so it shares the attempt budget
		if err := c.refreshSessionIfNeeded(ctx); err != nil {
			lastErr = err
			continue
		}

		bars, err := c.fetchOnce(ctx, symbol, since, query)
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch %s: %w: %w", symbol, models.ErrFetchExhausted, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, symbol string, since time.Time, query map[string]string) ([]models.PriceBar, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	status, body, err := c.hc.Get(reqCtx, c.cfg.HistoricalURL, query)
	c.countCall()
	if err != nil {
		return nil, fmt.Errorf("historical request: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("historical request: http %d", status)
	}

	bars, err := parseBarsCSV(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", symbol, err)
	}

	// keep only bars strictly after the caller's anchor
	cut := util.DateOnly(since)
	out := bars[:0]
	for _, b := range bars {
		if b.Date.After(cut) {
			out = append(out, b)
		}
	}
	return out, nil
}

// refreshSessionIfNeeded bootstraps cookies from the main site on first use
// and whenever the per-session call budget is spent.
func (c *Client) refreshSessionIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	needs := !c.hasCookie || c.calls >= c.cfg.SessionRefresh
	c.mu.Unlock()
	if !needs {
		return nil
	}

	c.hc.ResetCookies()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	status, _, err := c.hc.Get(reqCtx, c.cfg.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("session bootstrap: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("session bootstrap: http %d", status)
	}

	c.mu.Lock()
	c.hasCookie = true
	c.calls = 0
	c.mu.Unlock()
	c.logger.Debug("source session refreshed")
	return nil
}

func (c *Client) countCall() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
