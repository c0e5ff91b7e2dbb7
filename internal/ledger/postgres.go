package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
)

// PostgresStore persists attestations and anchors to PostgreSQL. It
// implements the Store interface. Concurrency control lives in the Ledger,
// which serialises appends; the store only guards against duplicate-key
// races via the primary key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS attestations (
			attestation_id TEXT PRIMARY KEY,
			record         JSONB NOT NULL,
			appended_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS anchors (
			id          BIGSERIAL PRIMARY KEY,
			merkle_root TEXT NOT NULL,
			anchor      JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS anchors_merkle_root_idx ON anchors (merkle_root);
	`)
	if err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// PutAttestation implements Store.
func (s *PostgresStore) PutAttestation(ctx context.Context, att *attestation.Attestation) error {
	raw, err := json.Marshal(att)
	if err != nil {
		return fmt.Errorf("marshal attestation: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attestations (attestation_id, record, appended_at) VALUES ($1, $2, $3)
		 ON CONFLICT (attestation_id) DO NOTHING`,
		strings.ToLower(att.AttestationID), raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert attestation: %w", err)
	}
	return nil
}

// GetAttestation implements Store.
func (s *PostgresStore) GetAttestation(ctx context.Context, id string) (*attestation.Attestation, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM attestations WHERE attestation_id = $1`,
		strings.ToLower(id),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) HasAttestation(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attestations WHERE attestation_id = $1)`,
		strings.ToLower(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attestation existence: %w", err)
	}
	return exists, nil
}

// AttestationIDs implements Store.
func (s *PostgresStore) AttestationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT attestation_id FROM attestations ORDER BY attestation_id`)
	if err != nil {
		return nil, fmt.Errorf("query attestation ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan attestation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PutAnchor implements Store.
func (s *PostgresStore) PutAnchor(ctx context.Context, a *anchor.Anchor) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal anchor: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO anchors (merkle_root, anchor, created_at) VALUES ($1, $2, $3)`,
		strings.ToLower(a.MerkleRoot), raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert anchor: %w", err)
	}
	return nil
}

// LatestAnchor implements Store.
func (s *PostgresStore) LatestAnchor(ctx context.Context) (*anchor.Anchor, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT anchor FROM anchors ORDER BY id DESC LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest anchor: %w", err)
	}
	var a anchor.Anchor
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode anchor: %w", err)
	}
	return &a, nil
}

// AnchorForRoot implements Store.
func (s *PostgresStore) AnchorForRoot(ctx context.Context, root string) (*anchor.Anchor, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT anchor FROM anchors WHERE merkle_root = $1 ORDER BY id DESC LIMIT 1`,
		strings.ToLower(root),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get anchor for root: %w", err)
	}
	var a anchor.Anchor
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode anchor: %w", err)
	}
	return &a, nil
}

// Close implements Store. The pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
