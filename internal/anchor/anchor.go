// Package anchor binds Merkle roots to external, independently-verifiable
// points in time.
//
// The core only consumes an anchor's timestamp and its root linkage; how the
// timestamp was witnessed (a randomness beacon, a blockchain tip, a human
// ceremony) is opaque. Sources fetch external witnesses; the Scheduler
// periodically records the current root against a fresh witness. Source
// failures are isolated: they are logged and retried, never fatal to the
// append path.
package anchor

import (
	"context"
	"encoding/json"
	"errors"
)

// Well-known anchor types.
const (
	TypeDrand   = "drand"
	TypeNIST    = "nist-beacon"
	TypeBitcoin = "bitcoin"
	TypeWitness = "human-witness"
)

// ErrSourceUnreachable is wrapped by fetch failures against an external
// witness source. Callers may retry; local state is never corrupted.
var ErrSourceUnreachable = errors.New("anchor source unreachable")

// Anchor binds a Merkle root to an externally-witnessed timestamp.
// Timestamp is Unix seconds as reported by the external mechanism, not by
// the Zone's own clock.
type Anchor struct {
	MerkleRoot string          `json:"merkle_root"`
	Type       string          `json:"type"`
	Timestamp  int64           `json:"timestamp"`
	Reference  string          `json:"reference,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Witness is an external timestamp observation not yet bound to a root.
type Witness struct {
	Type      string
	Timestamp int64
	Reference string
	Payload   json.RawMessage
}

// Source supplies external timestamp witnesses. Implementations must honour
// the context deadline and return errors wrapping ErrSourceUnreachable on
// network failure.
type Source interface {
	Type() string
	Fetch(ctx context.Context) (*Witness, error)
}
