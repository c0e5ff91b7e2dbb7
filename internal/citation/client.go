// Package citation validates cross-Zone references.
//
// A citation is trustworthy only when the cited attestation provably sits in
// the cited Zone's tree AND both enclosing roots are externally anchored with
// the cited anchor strictly older than the citing one. Raw timestamps inside
// attestations are self-reported and forgeable, so ordering is always judged
// on anchor timestamps, never on the records' own clocks.
package citation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
	"github.com/glogos/zone/internal/merkle"
)

var (
	// ErrRemoteNotFound means the cited Zone answered but does not hold the
	// attestation. Distinct from a verification failure.
	ErrRemoteNotFound = errors.New("attestation not found on remote zone")

	// ErrZoneUnreachable means the cited Zone could not be reached or did not
	// answer in time. Retryable; never corrupts local state.
	ErrZoneUnreachable = errors.New("remote zone unreachable")
)

// RemoteAttestation is the tuple a Zone serves for one of its attestations.
type RemoteAttestation struct {
	Attestation attestation.Attestation `json:"attestation"`
	Proof       merkle.Proof            `json:"proof"`
	Anchor      *anchor.Anchor          `json:"anchor,omitempty"`
}

// RemoteZoneInfo is the subset of a Zone's info document needed to verify
// its signatures.
type RemoteZoneInfo struct {
	ZoneID        string `json:"zone_id"`
	PublicKey     string `json:"public_key"`
	PublicKeyType string `json:"public_key_type"`
}

// ZoneClient fetches attestation tuples and zone metadata from remote Zones.
type ZoneClient interface {
	FetchAttestation(ctx context.Context, endpoint, id string) (*RemoteAttestation, error)
	FetchZoneInfo(ctx context.Context, endpoint string) (*RemoteZoneInfo, error)
}

// HTTPZoneClient is a lightweight HTTP client for querying remote Zone APIs.
type HTTPZoneClient struct {
	http *http.Client
}

// NewHTTPZoneClient creates an HTTPZoneClient with the given per-request
// timeout (default 10s).
func NewHTTPZoneClient(timeout time.Duration) *HTTPZoneClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPZoneClient{http: &http.Client{Timeout: timeout}}
}

func (c *HTTPZoneClient) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrZoneUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return ErrRemoteNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: remote zone returned status %d", ErrZoneUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrZoneUnreachable, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode remote response: %w", err)
	}
	return nil
}

// FetchAttestation implements ZoneClient against GET {endpoint}/attestation/{id}.
func (c *HTTPZoneClient) FetchAttestation(ctx context.Context, endpoint, id string) (*RemoteAttestation, error) {
	url := strings.TrimRight(endpoint, "/") + "/attestation/" + strings.ToLower(id)
	var remote RemoteAttestation
	if err := c.getJSON(ctx, url, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

// FetchZoneInfo implements ZoneClient against GET {endpoint}/zone/info.
func (c *HTTPZoneClient) FetchZoneInfo(ctx context.Context, endpoint string) (*RemoteZoneInfo, error) {
	url := strings.TrimRight(endpoint, "/") + "/zone/info"
	var info RemoteZoneInfo
	if err := c.getJSON(ctx, url, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
