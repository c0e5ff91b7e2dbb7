// Package zone wires identity, ledger, canon lookup, and citation
// verification into the operations a Zone exposes to its transport layer.
package zone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
	"github.com/glogos/zone/internal/citation"
	"github.com/glogos/zone/internal/identity"
	"github.com/glogos/zone/internal/ledger"
	"github.com/glogos/zone/internal/merkle"
	"github.com/glogos/zone/pkg/canon"
)

// ErrNotFound is returned for lookups of unknown attestation IDs.
var ErrNotFound = ledger.ErrNotFound

// Service implements the Zone's core operations over its collaborators.
type Service struct {
	id       *identity.Identity
	builder  *attestation.Builder
	ledger   *ledger.Ledger
	canons   canon.Directory
	verifier *citation.Verifier
	name     string
	desc     string
	logger   *zap.Logger

	now func() int64 // test hook
}

// New creates a Service. verifier may be nil when cross-zone verification is
// not wired (e.g. offline tooling).
func New(id *identity.Identity, l *ledger.Ledger, canons canon.Directory, verifier *citation.Verifier, name, desc string, logger *zap.Logger) *Service {
	return &Service{
		id:       id,
		builder:  attestation.NewBuilder(id),
		ledger:   l,
		canons:   canons,
		verifier: verifier,
		name:     name,
		desc:     desc,
		logger:   logger,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// SubmitRequest carries a submission. Callers either provide raw claim and
// evidence content (hashed here) or the precomputed 64-char hex hashes.
type SubmitRequest struct {
	Claim            string   `json:"claim,omitempty"`
	Evidence         string   `json:"evidence,omitempty"`
	ClaimHash        string   `json:"claim_hash,omitempty"`
	EvidenceHash     string   `json:"evidence_hash,omitempty"`
	EvidenceLocation string   `json:"evidence_location,omitempty"`
	CanonID          string   `json:"canon_id,omitempty"`
	Citations        []string `json:"citations,omitempty"`
}

// Receipt is the result of a successful submission: the signed attestation
// and its inclusion proof against the post-append root.
type Receipt struct {
	SubmissionID string                   `json:"submission_id"`
	Attestation  *attestation.Attestation `json:"attestation"`
	Proof        *merkle.Proof            `json:"proof"`
}

// RootInfo describes the currently-valid Merkle root.
type RootInfo struct {
	Root       string         `json:"merkle_root"`
	LeafCount  int            `json:"attestation_count"`
	UpdatedAt  int64          `json:"last_updated"`
	LastAnchor *anchor.Anchor `json:"anchor,omitempty"`
}

// Info is the Zone's public metadata document.
type Info struct {
	ZoneID          string            `json:"zone_id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	PublicKey       string            `json:"public_key"`
	PublicKeyType   string            `json:"public_key_type"`
	SupportedCanons []canon.Canon     `json:"supported_canons"`
	GenesisRoot     string            `json:"glsr_reference"`
	Endpoints       map[string]string `json:"endpoints"`
	LatestAnchor    *anchor.Anchor    `json:"latest_anchor,omitempty"`
}

// Submit builds, signs, and appends an attestation, returning the receipt.
// The canon defaults to the directory's default when the request names none;
// unknown but well-formed canon IDs are accepted — no canon is assumed known
// in advance.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	claimHash := strings.ToLower(req.ClaimHash)
	if claimHash == "" {
		if req.Claim == "" {
			return nil, fmt.Errorf("%w: claim or claim_hash is required", attestation.ErrInvalidInput)
		}
		claimHash = attestation.HashHex([]byte(req.Claim))
	}
	evidenceHash := strings.ToLower(req.EvidenceHash)
	if evidenceHash == "" {
		if req.Evidence == "" {
			return nil, fmt.Errorf("%w: evidence or evidence_hash is required", attestation.ErrInvalidInput)
		}
		evidenceHash = attestation.HashHex([]byte(req.Evidence))
	}

	canonID := strings.ToLower(req.CanonID)
	if canonID == "" {
		if d, ok := s.canons.(*canon.StaticDirectory); ok {
			canonID = d.DefaultID()
		}
		if canonID == "" {
			return nil, fmt.Errorf("%w: canon_id is required", attestation.ErrInvalidInput)
		}
	}

	att, err := s.builder.Build(canonID, claimHash, evidenceHash, req.EvidenceLocation, req.Citations, s.now())
	if err != nil {
		return nil, err
	}

	if _, _, err := s.ledger.Append(ctx, att); err != nil {
		return nil, err
	}
	proof, err := s.ledger.ProofFor(att.AttestationID)
	if err != nil {
		return nil, fmt.Errorf("prove freshly appended attestation: %w", err)
	}

	s.logger.Info("attestation submitted",
		zap.String("attestation_id", att.AttestationID),
		zap.String("canon_id", att.CanonID),
		zap.Int("citations", len(att.Citations)),
		zap.String("root", proof.Root),
	)

	return &Receipt{
		SubmissionID: uuid.NewString(),
		Attestation:  att,
		Proof:        proof,
	}, nil
}

// GetAttestation returns the attestation, its proof against the current
// root, and the anchor for that root when one exists.
func (s *Service) GetAttestation(ctx context.Context, id string) (*attestation.Attestation, *merkle.Proof, *anchor.Anchor, error) {
	att, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	proof, err := s.ledger.ProofFor(id)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := s.ledger.AnchorForRoot(ctx, proof.Root)
	if err != nil {
		return nil, nil, nil, err
	}
	return att, proof, a, nil
}

// CurrentRoot returns the currently-valid root, the leaf count, and the most
// recent anchor.
func (s *Service) CurrentRoot(ctx context.Context) (*RootInfo, error) {
	last, err := s.ledger.LatestAnchor(ctx)
	if err != nil {
		return nil, err
	}
	return &RootInfo{
		Root:       s.ledger.Root(),
		LeafCount:  s.ledger.LeafCount(),
		UpdatedAt:  s.now(),
		LastAnchor: last,
	}, nil
}

// VerifyCitation checks that the local attestation citingID may trust its
// reference to citedID held by the Zone at endpoint. The citing side's
// anchor is resolved from this ledger; all remote legwork and the ordering
// judgment happen in the citation verifier.
func (s *Service) VerifyCitation(ctx context.Context, citingID, citedID, endpoint string) (*citation.Result, error) {
	if s.verifier == nil {
		return nil, errors.New("citation verification is not configured")
	}

	citing, err := s.ledger.Get(ctx, citingID)
	if err != nil {
		return nil, fmt.Errorf("citing attestation: %w", err)
	}
	found := false
	for _, c := range citing.Citations {
		if strings.EqualFold(c, citedID) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: attestation does not cite %s",
			attestation.ErrInvalidInput, strings.ToLower(citedID))
	}

	proof, err := s.ledger.ProofFor(citingID)
	if err != nil {
		return nil, err
	}
	citingAnchor, err := s.ledger.AnchorForRoot(ctx, proof.Root)
	if err != nil {
		return nil, err
	}

	res := s.verifier.Verify(ctx, citingAnchor, citedID, endpoint)
	return &res, nil
}

// Info returns the Zone's public metadata.
func (s *Service) Info(ctx context.Context) (*Info, error) {
	last, err := s.ledger.LatestAnchor(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{
		ZoneID:          s.id.ZoneID(),
		Name:            s.name,
		Description:     s.desc,
		PublicKey:       s.id.PublicKeyHex(),
		PublicKeyType:   string(s.id.Algorithm()),
		SupportedCanons: s.canons.List(),
		GenesisRoot:     merkle.EmptyRoot,
		Endpoints: map[string]string{
			"info":            "/zone/info",
			"attestation":     "/attestation/{id}",
			"merkle_root":     "/merkle/root",
			"verify":          "/verify",
			"citation_verify": "/citation/verify",
		},
		LatestAnchor: last,
	}, nil
}

// ZoneID returns this Zone's identifier.
func (s *Service) ZoneID() string { return s.id.ZoneID() }

// SetClock overrides the timestamp source. Intended for tests.
func (s *Service) SetClock(now func() int64) { s.now = now }
