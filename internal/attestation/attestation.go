// Package attestation defines the signed attestation record and the
// deterministic derivations that give it its identity and signature coverage.
//
// Byte-exact contracts:
//
//	attestation_id = SHA256(zone_id || canon_id || claim_hash || ts_be8)
//	sign_preimage  = attestation_id || claim_hash || evidence_hash || ts_be8 || citations_hash
//	citations_hash = SHA256(concat(dedup(sorted(citations_hex)))) as UTF-8 text,
//	                 or SHA256("") when the citation set is empty
//
// where hash-valued fields are the raw 32 decoded bytes and ts_be8 is the
// Unix-seconds timestamp as 8 bytes big-endian. Citations are canonicalised
// to the deduplicated sorted set before hashing; the input order and any
// repeated entries never influence the signature.
package attestation

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidInput is wrapped by all validation failures: malformed hash
// lengths, bad hex, negative timestamps. Inputs are rejected before any
// hashing or signing takes place.
var ErrInvalidInput = errors.New("invalid input")

// Attestation is an immutable signed record. Once created it is only ever
// appended to a ledger or referenced by later attestations; corrections are
// new attestations, never updates.
type Attestation struct {
	AttestationID    string   `json:"attestation_id"`
	ZoneID           string   `json:"zone_id"`
	CanonID          string   `json:"canon_id"`
	ClaimHash        string   `json:"claim_hash"`
	EvidenceHash     string   `json:"evidence_hash"`
	EvidenceLocation string   `json:"evidence_location,omitempty"`
	Citations        []string `json:"citations"`
	Timestamp        int64    `json:"timestamp"`
	Signature        string   `json:"signature"`
}

// HashHex returns the lowercase hex SHA-256 of data. It is the boundary
// hashing function for raw claim and evidence content.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// parseHash validates a 64-char hex field and returns its raw 32 bytes.
func parseHash(field, value string) ([]byte, error) {
	v := strings.ToLower(value)
	if len(v) != 64 {
		return nil, fmt.Errorf("%w: %s must be 64 hex characters, got %d", ErrInvalidInput, field, len(v))
	}
	raw, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid hex", ErrInvalidInput, field)
	}
	return raw, nil
}

// timestampBytes encodes a Unix-seconds timestamp as exactly 8 bytes
// big-endian, the serialization every hash in the protocol uses.
func timestampBytes(ts int64) ([]byte, error) {
	if ts < 0 {
		return nil, fmt.Errorf("%w: timestamp must be non-negative, got %d", ErrInvalidInput, ts)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts))
	return buf[:], nil
}

// ComputeID derives the attestation ID. Identical inputs always yield the
// identical ID; changing any single input byte changes the output.
func ComputeID(zoneID, canonID, claimHash string, ts int64) (string, error) {
	zone, err := parseHash("zone_id", zoneID)
	if err != nil {
		return "", err
	}
	canon, err := parseHash("canon_id", canonID)
	if err != nil {
		return "", err
	}
	claim, err := parseHash("claim_hash", claimHash)
	if err != nil {
		return "", err
	}
	tsb, err := timestampBytes(ts)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(zone)
	h.Write(canon)
	h.Write(claim)
	h.Write(tsb)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalCitations validates, lowercases, deduplicates, and sorts a
// citation list. This is the single canonical policy for citation sets: the
// citations hash — and therefore the signature — covers exactly this form.
func CanonicalCitations(citations []string) ([]string, error) {
	seen := make(map[string]struct{}, len(citations))
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		if _, err := parseHash("citation", c); err != nil {
			return nil, err
		}
		lc := strings.ToLower(c)
		if _, ok := seen[lc]; ok {
			continue
		}
		seen[lc] = struct{}{}
		out = append(out, lc)
	}
	sort.Strings(out)
	return out, nil
}

// CitationsHash hashes an already-canonical citation set: the sorted hex
// strings are concatenated as UTF-8 text and SHA-256'd. The empty set hashes
// the empty string.
func CitationsHash(canonical []string) [32]byte {
	return sha256.Sum256([]byte(strings.Join(canonical, "")))
}

// SignPreimage assembles the exact byte string the attestation signature
// covers. citations must already be canonical (see CanonicalCitations).
func SignPreimage(attestationID, claimHash, evidenceHash string, ts int64, citations []string) ([]byte, error) {
	id, err := parseHash("attestation_id", attestationID)
	if err != nil {
		return nil, err
	}
	claim, err := parseHash("claim_hash", claimHash)
	if err != nil {
		return nil, err
	}
	evidence, err := parseHash("evidence_hash", evidenceHash)
	if err != nil {
		return nil, err
	}
	tsb, err := timestampBytes(ts)
	if err != nil {
		return nil, err
	}
	ch := CitationsHash(citations)

	preimage := make([]byte, 0, len(id)+len(claim)+len(evidence)+len(tsb)+len(ch))
	preimage = append(preimage, id...)
	preimage = append(preimage, claim...)
	preimage = append(preimage, evidence...)
	preimage = append(preimage, tsb...)
	preimage = append(preimage, ch[:]...)
	return preimage, nil
}

// DecodeSignature decodes the record's base64 signature field.
func (a *Attestation) DecodeSignature() ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(a.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64", ErrInvalidInput)
	}
	return sig, nil
}
