// Package merkle builds the deterministic binary hash tree over a Zone's
// attestation IDs and generates/verifies inclusion proofs.
//
// Leaves are 64-character lowercase hex SHA-256 values. The tree is a pure
// function of the leaf set: leaves are sorted lexicographically before
// hashing, so two independent verifiers always derive the same root. A lone
// trailing node at an odd-sized level is paired with itself. The empty tree's
// root is SHA-256 of the empty input — the protocol's genesis constant.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// EmptyRoot is the root of the empty tree: SHA-256(""). It doubles as the
// protocol-wide genesis reference (GLSR).
const EmptyRoot = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// DuplicateMarker is the reserved proof entry standing for "the sibling is a
// duplicate of the running hash". It is emitted only for the bottom-layer
// duplicate and can never collide with a real 64-char hex hash.
const DuplicateMarker = "*"

// ProofVersion is the wire version of the proof format.
const ProofVersion = "1.0"

// Proof is an inclusion proof for a single leaf: the ordered sibling hashes
// from the leaf's level up to the root, plus the root it was issued against.
// LeafIndex is the leaf's position in the sorted leaf set and alone determines
// left/right at every level during verification.
type Proof struct {
	Version   string   `json:"version"`
	LeafHash  string   `json:"leaf_hash"`
	LeafIndex int      `json:"leaf_index"`
	Siblings  []string `json:"proof"`
	Root      string   `json:"root"`
}

// normalizeLeaf validates and lowercases a 64-char hex leaf.
func normalizeLeaf(leaf string) (string, error) {
	leaf = strings.ToLower(leaf)
	if len(leaf) != 64 {
		return "", fmt.Errorf("leaf must be 64 hex characters, got %d", len(leaf))
	}
	if _, err := hex.DecodeString(leaf); err != nil {
		return "", fmt.Errorf("leaf is not valid hex: %w", err)
	}
	return leaf, nil
}

// sortedLeaves returns a validated, lowercased, lexicographically sorted copy
// of leaves. Input order never influences the result.
func sortedLeaves(leaves []string) ([]string, error) {
	out := make([]string, len(leaves))
	for i, l := range leaves {
		n, err := normalizeLeaf(l)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	sort.Strings(out)
	return out, nil
}

// hashPair returns SHA-256(left || right).
func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// BuildRoot computes the Merkle root of the given leaf set. The result is a
// pure function of the set: duplicates of ordering are irrelevant because
// leaves are sorted first. An empty set yields EmptyRoot.
func BuildRoot(leaves []string) (string, error) {
	sorted, err := sortedLeaves(leaves)
	if err != nil {
		return "", err
	}
	return rootOfSorted(sorted), nil
}

// rootOfSorted computes the root over already-sorted, validated hex leaves.
func rootOfSorted(sorted []string) string {
	if len(sorted) == 0 {
		return EmptyRoot
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	level := make([][]byte, len(sorted))
	for i, l := range sorted {
		level[i], _ = hex.DecodeString(l)
	}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left // lone trailing node pairs with itself
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		level = next
	}
	return hex.EncodeToString(level[0])
}

// BuildProof generates the inclusion proof for target within leaves.
// The returned proof verifies against the root of this exact leaf set; after
// further appends callers must request a fresh proof.
func BuildProof(leaves []string, target string) (*Proof, error) {
	sorted, err := sortedLeaves(leaves)
	if err != nil {
		return nil, err
	}
	norm, err := normalizeLeaf(target)
	if err != nil {
		return nil, err
	}

	leafIndex := sort.SearchStrings(sorted, norm)
	if leafIndex >= len(sorted) || sorted[leafIndex] != norm {
		return nil, fmt.Errorf("leaf %s… not in tree", norm[:16])
	}

	level := make([][]byte, len(sorted))
	for i, l := range sorted {
		level[i], _ = hex.DecodeString(l)
	}

	var siblings []string
	index := leafIndex
	bottom := true

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			duplicated := i+1 >= len(level)
			if !duplicated {
				right = level[i+1]
			}

			if i == index || i+1 == index {
				var sibling string
				switch {
				case i == index && duplicated && bottom:
					sibling = DuplicateMarker
				case i == index:
					// Internal-level duplicates are recorded literally; the
					// "*" shorthand is reserved for the bottom layer.
					sibling = hex.EncodeToString(right)
				default:
					sibling = hex.EncodeToString(left)
				}
				siblings = append(siblings, sibling)
			}

			next = append(next, hashPair(left, right))
		}
		index /= 2
		level = next
		bottom = false
	}

	return &Proof{
		Version:   ProofVersion,
		LeafHash:  norm,
		LeafIndex: leafIndex,
		Siblings:  siblings,
		Root:      hex.EncodeToString(level[0]),
	}, nil
}

// VerifyProof replays the positional algorithm: at each step an even index
// makes the running hash the left operand, an odd index the right one, and
// the index is floor-halved. A DuplicateMarker entry means "pair the running
// hash with itself". The computed root must match expectedRoot byte for byte.
// Malformed input returns false; this function never panics.
func VerifyProof(leafHash string, leafIndex int, siblings []string, expectedRoot string) bool {
	if leafIndex < 0 {
		return false
	}
	current, err := hex.DecodeString(strings.ToLower(leafHash))
	if err != nil || len(current) != sha256.Size {
		return false
	}
	want, err := hex.DecodeString(strings.ToLower(expectedRoot))
	if err != nil || len(want) != sha256.Size {
		return false
	}

	index := leafIndex
	for _, entry := range siblings {
		var sibling []byte
		if entry == DuplicateMarker {
			sibling = current
		} else {
			sibling, err = hex.DecodeString(strings.ToLower(entry))
			if err != nil || len(sibling) != sha256.Size {
				return false
			}
		}

		if index%2 == 0 {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
		index /= 2
	}

	return bytes.Equal(current, want)
}

// Verify checks a complete proof object against its embedded root.
func Verify(p *Proof) bool {
	if p == nil {
		return false
	}
	return VerifyProof(p.LeafHash, p.LeafIndex, p.Siblings, p.Root)
}
