// Package ledger implements the append-only attestation ledger of a Zone.
//
// The ledger owns the current Merkle root. Appends are serialised; readers
// observe an immutable leaf snapshot swapped atomically on append, so a
// concurrent proof request never sees a torn tree. Durable persistence is
// delegated to a Store, which is authoritative for "does this ID exist".
//
// Three Store implementations are provided:
//   - MemoryStore:   in-process, for testing and development.
//   - LevelStore:    embedded LevelDB, for single-node deployments.
//   - PostgresStore: shared PostgreSQL, for production use.
package ledger

import (
	"context"
	"errors"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
)

var (
	// ErrDuplicateAttestation signals an append-time conflict: the ID is
	// already in the ledger. Non-fatal; callers treat it as already-recorded.
	ErrDuplicateAttestation = errors.New("attestation already recorded")

	// ErrNotFound signals a point lookup miss.
	ErrNotFound = errors.New("not found")
)

// Store is the durable persistence collaborator. Implementations must treat
// attestation IDs as lowercase hex keys and never mutate stored records.
type Store interface {
	PutAttestation(ctx context.Context, att *attestation.Attestation) error
	GetAttestation(ctx context.Context, id string) (*attestation.Attestation, error)
	HasAttestation(ctx context.Context, id string) (bool, error)
	AttestationIDs(ctx context.Context) ([]string, error)

	PutAnchor(ctx context.Context, a *anchor.Anchor) error
	LatestAnchor(ctx context.Context) (*anchor.Anchor, error)
	AnchorForRoot(ctx context.Context, root string) (*anchor.Anchor, error)

	Close() error
}
