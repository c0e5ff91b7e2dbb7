package anchor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// drand quicknet chain parameters. Round n was published at
// genesis + (n-1)*period, so a round number is itself a timestamp.
const (
	drandGenesis   = 1692802167
	drandPeriod    = 3
	drandChainHash = "52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971"
)

// DefaultDrandEndpoints are the public quicknet mirrors, tried in order.
var DefaultDrandEndpoints = []string{
	"https://api.drand.sh/" + drandChainHash,
	"https://api2.drand.sh/" + drandChainHash,
	"https://drand.cloudflare.com/" + drandChainHash,
}

const nistBeaconURL = "https://beacon.nist.gov/beacon/2.0/pulse/last"

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// getJSON fetches url and decodes the JSON body into v.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrSourceUnreachable, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrSourceUnreachable, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", url, err)
	}
	return nil
}

// DrandSource witnesses time through the drand quicknet randomness beacon.
type DrandSource struct {
	endpoints []string
	http      *http.Client
}

// NewDrandSource creates a DrandSource. Empty endpoints selects the public
// quicknet mirrors.
func NewDrandSource(endpoints []string, timeout time.Duration) *DrandSource {
	if len(endpoints) == 0 {
		endpoints = DefaultDrandEndpoints
	}
	return &DrandSource{endpoints: endpoints, http: newHTTPClient(timeout)}
}

func (s *DrandSource) Type() string { return TypeDrand }

// Fetch retrieves the latest beacon, trying each mirror in order.
func (s *DrandSource) Fetch(ctx context.Context) (*Witness, error) {
	var lastErr error
	for _, ep := range s.endpoints {
		var beacon struct {
			Round      int64  `json:"round"`
			Randomness string `json:"randomness"`
			Signature  string `json:"signature"`
		}
		if err := getJSON(ctx, s.http, ep+"/public/latest", &beacon); err != nil {
			lastErr = err
			continue
		}
		payload, _ := json.Marshal(beacon)
		return &Witness{
			Type:      TypeDrand,
			Timestamp: drandGenesis + (beacon.Round-1)*drandPeriod,
			Reference: fmt.Sprintf("round/%d", beacon.Round),
			Payload:   payload,
		}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no drand endpoints configured", ErrSourceUnreachable)
	}
	return nil, lastErr
}

// NISTSource witnesses time through the NIST randomness beacon v2.
type NISTSource struct {
	url  string
	http *http.Client
}

// NewNISTSource creates a NISTSource. An empty url selects the public beacon.
func NewNISTSource(url string, timeout time.Duration) *NISTSource {
	if url == "" {
		url = nistBeaconURL
	}
	return &NISTSource{url: url, http: newHTTPClient(timeout)}
}

func (s *NISTSource) Type() string { return TypeNIST }

func (s *NISTSource) Fetch(ctx context.Context) (*Witness, error) {
	var resp struct {
		Pulse struct {
			ChainIndex  int64  `json:"chainIndex"`
			PulseIndex  int64  `json:"pulseIndex"`
			TimeStamp   string `json:"timeStamp"`
			OutputValue string `json:"outputValue"`
		} `json:"pulse"`
	}
	if err := getJSON(ctx, s.http, s.url, &resp); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339, resp.Pulse.TimeStamp)
	if err != nil {
		return nil, fmt.Errorf("parse beacon timestamp %q: %w", resp.Pulse.TimeStamp, err)
	}
	payload, _ := json.Marshal(resp.Pulse)
	return &Witness{
		Type:      TypeNIST,
		Timestamp: ts.Unix(),
		Reference: fmt.Sprintf("chain/%d/pulse/%d", resp.Pulse.ChainIndex, resp.Pulse.PulseIndex),
		Payload:   payload,
	}, nil
}

// BitcoinSource witnesses time through the Bitcoin chain tip.
type BitcoinSource struct {
	baseURL string
	http    *http.Client
}

// NewBitcoinSource creates a BitcoinSource against a blockstream-compatible
// API. An empty baseURL selects blockstream.info.
func NewBitcoinSource(baseURL string, timeout time.Duration) *BitcoinSource {
	if baseURL == "" {
		baseURL = "https://blockstream.info/api"
	}
	return &BitcoinSource{baseURL: strings.TrimRight(baseURL, "/"), http: newHTTPClient(timeout)}
}

func (s *BitcoinSource) Type() string { return TypeBitcoin }

// Fetch resolves the tip hash, then the block header for its timestamp.
func (s *BitcoinSource) Fetch(ctx context.Context) (*Witness, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/blocks/tip/hash", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tip hash returned status %d", ErrSourceUnreachable, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return nil, fmt.Errorf("%w: read tip hash: %v", ErrSourceUnreachable, err)
	}
	tip := strings.TrimSpace(string(raw))

	var block struct {
		ID        string `json:"id"`
		Height    int64  `json:"height"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := getJSON(ctx, s.http, s.baseURL+"/block/"+tip, &block); err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(block)
	return &Witness{
		Type:      TypeBitcoin,
		Timestamp: block.Timestamp,
		Reference: fmt.Sprintf("block/%d/%s", block.Height, block.ID),
		Payload:   payload,
	}, nil
}
