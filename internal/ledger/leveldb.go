package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
)

// Key prefixes partition the keyspace by record type.
var (
	attPrefix  = []byte("att:")
	ancPrefix  = []byte("anc:")
	metaPrefix = []byte("meta:")
)

var latestAnchorKey = append(metaPrefix, []byte("latest_anchor")...) //nolint:gocritic

// LevelStore persists attestations and anchors to an embedded LevelDB
// database. It implements the Store interface.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (or creates) the LevelDB database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

func attKey(id string) []byte {
	return append(attPrefix, []byte(strings.ToLower(id))...) //nolint:gocritic
}

func ancKey(root string) []byte {
	return append(ancPrefix, []byte(strings.ToLower(root))...) //nolint:gocritic
}

// PutAttestation implements Store.
func (s *LevelStore) PutAttestation(_ context.Context, att *attestation.Attestation) error {
	raw, err := json.Marshal(att)
	if err != nil {
		return fmt.Errorf("marshal attestation: %w", err)
	}
	return s.db.Put(attKey(att.AttestationID), raw, nil)
}

// GetAttestation implements Store.
func (s *LevelStore) GetAttestation(_ context.Context, id string) (*attestation.Attestation, error) {
	raw, err := s.db.Get(attKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attestation: %w", err)
	}
	var att attestation.Attestation
	if err := json.Unmarshal(raw, &att); err != nil {
		return nil, fmt.Errorf("decode attestation: %w", err)
	}
	return &att, nil
}

// HasAttestation implements Store.
func (s *LevelStore) HasAttestation(_ context.Context, id string) (bool, error) {
	return s.db.Has(attKey(id), nil)
}

// AttestationIDs implements Store.
func (s *LevelStore) AttestationIDs(_ context.Context) ([]string, error) {
	var ids []string
	iter := s.db.NewIterator(util.BytesPrefix(attPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		ids = append(ids, string(iter.Key()[len(attPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate attestation ids: %w", err)
	}
	return ids, nil
}

// PutAnchor implements Store.
func (s *LevelStore) PutAnchor(_ context.Context, a *anchor.Anchor) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal anchor: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(ancKey(a.MerkleRoot), raw)
	batch.Put(latestAnchorKey, []byte(strings.ToLower(a.MerkleRoot)))
	return s.db.Write(batch, nil)
}

// LatestAnchor implements Store.
func (s *LevelStore) LatestAnchor(ctx context.Context) (*anchor.Anchor, error) {
	root, err := s.db.Get(latestAnchorKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest anchor root: %w", err)
	}
	return s.AnchorForRoot(ctx, string(root))
}

// AnchorForRoot implements Store.
func (s *LevelStore) AnchorForRoot(_ context.Context, root string) (*anchor.Anchor, error) {
	raw, err := s.db.Get(ancKey(root), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get anchor: %w", err)
	}
	var a anchor.Anchor
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode anchor: %w", err)
	}
	return &a, nil
}

// Close implements Store.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
