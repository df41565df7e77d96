package broker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"StopSentinel/internal/model"
)

// GatewayFetcher implements Fetcher against the local broker gateway bridge
// (the process that owns the actual broker session and re-exposes it as
// plain JSON over HTTP).
type GatewayFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client

	// MaxRetryElapsed bounds the backoff around each request. Transient
	// gateway hiccups are common right after broker reconnects.
	MaxRetryElapsed time.Duration
}

// NewGatewayFetcher creates a fetcher with optional proxy support.
func NewGatewayFetcher(baseURL, apiKey, proxyURL string) *GatewayFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &GatewayFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		MaxRetryElapsed: 15 * time.Second,
	}
}

func (f *GatewayFetcher) Name() string { return "gateway" }

// FetchPositions returns the current open positions, enriched by the gateway
// with contract details, last price, and market session status.
func (f *GatewayFetcher) FetchPositions() ([]model.PositionSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/v1/positions", f.BaseURL)

	var positions []model.PositionSnapshot
	err := f.getJSON(endpoint, &positions)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	for i := range positions {
		if positions[i].MarketStatus == "" {
			positions[i].MarketStatus = model.MarketUnknown
		}
	}
	return positions, nil
}

// gatewayBar is the JSON bar shape returned by the bridge.
type gatewayBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// FetchBars returns the recent bar window for one symbol, sorted ascending.
func (f *GatewayFetcher) FetchBars(symbol string, tf model.Timeframe) ([]model.Bar, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars?symbol=%s&barSize=%s",
		f.BaseURL, url.QueryEscape(symbol), url.QueryEscape(string(tf)))

	var gwBars []gatewayBar
	if err := f.getJSON(endpoint, &gwBars); err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}

	bars := make([]model.Bar, len(gwBars))
	for i, gb := range gwBars {
		bars[i] = model.Bar{
			Time:   time.Unix(gb.Timestamp, 0).UTC(),
			Open:   gb.Open,
			High:   gb.High,
			Low:    gb.Low,
			Close:  gb.Close,
			Volume: gb.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// getJSON performs one GET with exponential backoff and decodes the body.
func (f *GatewayFetcher) getJSON(endpoint string, out any) error {
	op := func() error {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if f.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+f.APIKey)
		}
		resp, err := f.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = f.MaxRetryElapsed
	return backoff.Retry(op, policy)
}
