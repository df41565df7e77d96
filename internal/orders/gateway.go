package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GatewaySubmitter forwards stop orders to the broker gateway bridge, which
// owns order placement and modify-vs-duplicate handling.
type GatewaySubmitter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewGatewaySubmitter creates a submitter against the gateway bridge.
func NewGatewaySubmitter(baseURL, apiKey string) *GatewaySubmitter {
	return &GatewaySubmitter{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *GatewaySubmitter) Name() string { return "gateway" }

func (s *GatewaySubmitter) SubmitStops(stops []StopOrder) ([]Result, error) {
	if len(stops) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(stops)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, s.BaseURL+"/api/v1/stops", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit stops: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("submit stops: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode submit results: %w", err)
	}
	return results, nil
}

func (s *GatewaySubmitter) ActiveStopSymbols() (map[string]bool, error) {
	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/api/v1/stops/active", nil)
	if err != nil {
		return nil, err
	}
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch active stops: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch active stops: status %d", resp.StatusCode)
	}

	var symbols []string
	if err := json.NewDecoder(resp.Body).Decode(&symbols); err != nil {
		return nil, fmt.Errorf("decode active stops: %w", err)
	}
	active := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		active[sym] = true
	}
	return active, nil
}
