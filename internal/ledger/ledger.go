package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
	"github.com/glogos/zone/internal/merkle"
)

// snapshot is an immutable view of the leaf set. It is replaced wholesale on
// append and must never be mutated in place.
type snapshot struct {
	leaves []string // sorted lowercase hex
	root   string
}

// Ledger is the append-only attestation sequence of one Zone plus the Merkle
// root derived from all attestation IDs appended so far. Appends are
// serialised; reads run concurrently against the latest snapshot.
type Ledger struct {
	mu     sync.Mutex // serialises appends
	store  Store
	logger *zap.Logger
	snap   atomic.Pointer[snapshot]
}

// Open creates a Ledger over store, rebuilding the leaf snapshot from the
// persisted attestation IDs. The root is always recomputable purely from the
// leaf set, so no root state is loaded from the store.
func Open(ctx context.Context, store Store, logger *zap.Logger) (*Ledger, error) {
	ids, err := store.AttestationIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load attestation ids: %w", err)
	}

	leaves := make([]string, len(ids))
	for i, id := range ids {
		leaves[i] = strings.ToLower(id)
	}
	sort.Strings(leaves)

	root, err := merkle.BuildRoot(leaves)
	if err != nil {
		return nil, fmt.Errorf("rebuild merkle root: %w", err)
	}

	l := &Ledger{store: store, logger: logger}
	l.snap.Store(&snapshot{leaves: leaves, root: root})
	logger.Info("ledger opened",
		zap.Int("leaf_count", len(leaves)),
		zap.String("root", root),
	)
	return l, nil
}

// Append adds an attestation to the ledger, persists it, and swaps in the new
// leaf snapshot. It returns the new root and the leaf's index in the current
// sorted order. That index may shift as later leaves are appended; proofs
// remain valid against the root in effect at issuance, not newer roots.
// Re-submitting an existing ID fails with ErrDuplicateAttestation and leaves
// the leaf set, and hence the root, unchanged.
func (l *Ledger) Append(ctx context.Context, att *attestation.Attestation) (string, int, error) {
	if att == nil {
		return "", 0, fmt.Errorf("%w: nil attestation", attestation.ErrInvalidInput)
	}
	id := strings.ToLower(att.AttestationID)

	l.mu.Lock()
	defer l.mu.Unlock()

	// The store is authoritative for existence; the snapshot check is just
	// the fast path.
	cur := l.snap.Load()
	pos := sort.SearchStrings(cur.leaves, id)
	if pos < len(cur.leaves) && cur.leaves[pos] == id {
		return "", 0, ErrDuplicateAttestation
	}
	exists, err := l.store.HasAttestation(ctx, id)
	if err != nil {
		return "", 0, fmt.Errorf("check attestation existence: %w", err)
	}
	if exists {
		return "", 0, ErrDuplicateAttestation
	}

	if err := l.store.PutAttestation(ctx, att); err != nil {
		return "", 0, fmt.Errorf("persist attestation: %w", err)
	}

	leaves := make([]string, 0, len(cur.leaves)+1)
	leaves = append(leaves, cur.leaves[:pos]...)
	leaves = append(leaves, id)
	leaves = append(leaves, cur.leaves[pos:]...)

	root, err := merkle.BuildRoot(leaves)
	if err != nil {
		return "", 0, fmt.Errorf("recompute merkle root: %w", err)
	}
	l.snap.Store(&snapshot{leaves: leaves, root: root})

	l.logger.Debug("attestation appended",
		zap.String("attestation_id", id),
		zap.Int("leaf_index", pos),
		zap.String("root", root),
	)
	return root, pos, nil
}

// Root returns the currently-valid Merkle root.
func (l *Ledger) Root() string {
	return l.snap.Load().root
}

// LeafCount returns the number of attestations appended so far.
func (l *Ledger) LeafCount() int {
	return len(l.snap.Load().leaves)
}

// ProofFor generates an inclusion proof for id against the current root.
func (l *Ledger) ProofFor(id string) (*merkle.Proof, error) {
	snap := l.snap.Load()
	proof, err := merkle.BuildProof(snap.leaves, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return proof, nil
}

// Get returns the stored attestation for id, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, id string) (*attestation.Attestation, error) {
	return l.store.GetAttestation(ctx, strings.ToLower(id))
}

// RecordAnchor persists an external anchor for a root this ledger produced.
func (l *Ledger) RecordAnchor(ctx context.Context, a *anchor.Anchor) error {
	if a == nil || a.MerkleRoot == "" {
		return fmt.Errorf("%w: anchor must carry a merkle root", attestation.ErrInvalidInput)
	}
	return l.store.PutAnchor(ctx, a)
}

// LatestAnchor returns the most recently recorded anchor, or nil when the
// ledger has never been anchored.
func (l *Ledger) LatestAnchor(ctx context.Context) (*anchor.Anchor, error) {
	return l.store.LatestAnchor(ctx)
}

// AnchorForRoot returns the anchor recorded for root, or nil when that root
// was never anchored.
func (l *Ledger) AnchorForRoot(ctx context.Context, root string) (*anchor.Anchor, error) {
	return l.store.AnchorForRoot(ctx, strings.ToLower(root))
}
