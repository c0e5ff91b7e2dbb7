package attestation

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/glogos/zone/internal/identity"
)

// Builder constructs signed attestations for one Zone identity. Build is a
// pure computation: it never touches the ledger — appending is the caller's
// responsibility.
type Builder struct {
	id *identity.Identity
}

// NewBuilder creates a Builder signing as id.
func NewBuilder(id *identity.Identity) *Builder {
	return &Builder{id: id}
}

// Build validates the inputs, canonicalises the citation set, derives the
// attestation ID, and signs the record. ts is Unix seconds and must be
// non-negative.
func (b *Builder) Build(canonID, claimHash, evidenceHash, evidenceLocation string, citations []string, ts int64) (*Attestation, error) {
	canonical, err := CanonicalCitations(citations)
	if err != nil {
		return nil, err
	}

	zoneID := b.id.ZoneID()
	attestationID, err := ComputeID(zoneID, canonID, claimHash, ts)
	if err != nil {
		return nil, err
	}

	preimage, err := SignPreimage(attestationID, claimHash, evidenceHash, ts, canonical)
	if err != nil {
		return nil, err
	}
	sig, err := b.id.Sign(preimage)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}

	return &Attestation{
		AttestationID:    attestationID,
		ZoneID:           zoneID,
		CanonID:          strings.ToLower(canonID),
		ClaimHash:        strings.ToLower(claimHash),
		EvidenceHash:     strings.ToLower(evidenceHash),
		EvidenceLocation: evidenceLocation,
		Citations:        canonical,
		Timestamp:        ts,
		Signature:        base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Verify reports whether att is internally consistent and validly signed by
// the holder of pub under alg: the zone ID must derive from pub, the
// attestation ID must re-derive from the record's fields, and the signature
// must cover the sign preimage. Any malformation returns false — verification
// is expected to fail for malicious or stale inputs and must never panic.
func Verify(att *Attestation, alg identity.Algorithm, pub []byte) bool {
	if att == nil {
		return false
	}
	if !identity.VerifyZoneID(att.ZoneID, pub) {
		return false
	}

	wantID, err := ComputeID(att.ZoneID, att.CanonID, att.ClaimHash, att.Timestamp)
	if err != nil || wantID != strings.ToLower(att.AttestationID) {
		return false
	}

	canonical, err := CanonicalCitations(att.Citations)
	if err != nil {
		return false
	}
	preimage, err := SignPreimage(att.AttestationID, att.ClaimHash, att.EvidenceHash, att.Timestamp, canonical)
	if err != nil {
		return false
	}
	sig, err := att.DecodeSignature()
	if err != nil {
		return false
	}
	return identity.Verify(alg, pub, preimage, sig)
}
