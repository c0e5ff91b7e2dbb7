package citation

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
	"github.com/glogos/zone/internal/identity"
	"github.com/glogos/zone/internal/merkle"
)

// Status is a terminal citation verdict.
type Status string

const (
	StatusValid   Status = "VALID"
	StatusInvalid Status = "INVALID"
)

// Result is the outcome of one citation check. Reason explains INVALID
// verdicts; verification failures surface here as explicit verdicts, never
// as errors or silent defaults.
type Result struct {
	CitedID string `json:"cited_id"`
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Reference names one citation to check: the cited attestation and the Zone
// endpoint expected to hold it.
type Reference struct {
	CitedID  string
	Endpoint string
}

// Verifier runs the cross-Zone citation state machine. Checks are I/O-bound
// and independent: each gets its own timeout, and an unreachable remote Zone
// fails only that check.
type Verifier struct {
	client  ZoneClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewVerifier creates a Verifier. timeout bounds a single check (default 15s).
func NewVerifier(client ZoneClient, timeout time.Duration, logger *zap.Logger) *Verifier {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Verifier{client: client, timeout: timeout, logger: logger}
}

func invalid(citedID, reason string) Result {
	return Result{CitedID: citedID, Status: StatusInvalid, Reason: reason}
}

// Verify runs one citation check. citingAnchor is the anchor of the citing
// attestation's enclosing root (nil when that root was never anchored).
//
// The verdict is VALID only when every step holds: the remote tuple is
// fetchable, the Merkle proof verifies, the remote signature verifies, both
// sides carry anchors, and the cited anchor timestamp is strictly older than
// the citing one. Equal timestamps are insufficient ordering evidence.
func (v *Verifier) Verify(ctx context.Context, citingAnchor *anchor.Anchor, citedID, endpoint string) Result {
	citedID = strings.ToLower(citedID)

	checkCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	remote, err := v.client.FetchAttestation(checkCtx, endpoint, citedID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRemoteNotFound):
			return invalid(citedID, "cited attestation not found on remote zone")
		default:
			v.logger.Warn("citation fetch failed",
				zap.String("cited_id", citedID),
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			return invalid(citedID, "remote zone unreachable")
		}
	}

	if !strings.EqualFold(remote.Attestation.AttestationID, citedID) ||
		!strings.EqualFold(remote.Proof.LeafHash, citedID) {
		return invalid(citedID, "remote tuple does not match cited attestation id")
	}
	if !merkle.Verify(&remote.Proof) {
		return invalid(citedID, "merkle proof does not verify")
	}

	info, err := v.client.FetchZoneInfo(checkCtx, endpoint)
	if err != nil {
		return invalid(citedID, "remote zone info unavailable")
	}
	pub, err := hex.DecodeString(info.PublicKey)
	if err != nil {
		return invalid(citedID, "remote zone public key malformed")
	}
	alg := identity.Algorithm(info.PublicKeyType)
	if alg == "" {
		alg = identity.AlgorithmEd25519
	}
	if !attestation.Verify(&remote.Attestation, alg, pub) {
		return invalid(citedID, "cited attestation signature does not verify")
	}

	if remote.Anchor == nil {
		return invalid(citedID, "cited root has no anchor")
	}
	if !strings.EqualFold(remote.Anchor.MerkleRoot, remote.Proof.Root) {
		return invalid(citedID, "cited anchor does not bind the proof root")
	}
	if citingAnchor == nil {
		return invalid(citedID, "citing root has no anchor")
	}
	if remote.Anchor.Timestamp >= citingAnchor.Timestamp {
		return invalid(citedID, "cited anchor is not strictly older than citing anchor")
	}

	return Result{CitedID: citedID, Status: StatusValid}
}

// VerifyMany runs the checks concurrently, one goroutine per reference, and
// returns results in input order. A failed or slow remote affects only its
// own entry.
func (v *Verifier) VerifyMany(ctx context.Context, citingAnchor *anchor.Anchor, refs []Reference) []Result {
	results := make([]Result, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref Reference) {
			defer wg.Done()
			results[i] = v.Verify(ctx, citingAnchor, ref.CitedID, ref.Endpoint)
		}(i, ref)
	}
	wg.Wait()
	return results
}
