package merkle_test

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/glogos/zone/internal/merkle"
)

// leaf returns a deterministic 64-char hex leaf for test input i.
func leaf(i int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("leaf-%d", i)))
	return hex.EncodeToString(sum[:])
}

func leaves(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = leaf(i)
	}
	return out
}

func TestBuildRoot_emptyTree(t *testing.T) {
	root, err := merkle.BuildRoot(nil)
	if err != nil {
		t.Fatal(err)
	}
	if root != merkle.EmptyRoot {
		t.Errorf("empty tree root: got %s, want EmptyRoot", root)
	}

	// EmptyRoot is SHA-256 of zero bytes.
	sum := sha256.Sum256(nil)
	if merkle.EmptyRoot != hex.EncodeToString(sum[:]) {
		t.Error("EmptyRoot constant does not equal SHA-256 of empty input")
	}
}

func TestBuildRoot_singleLeafIsItsOwnRoot(t *testing.T) {
	l := leaf(0)
	root, err := merkle.BuildRoot([]string{l})
	if err != nil {
		t.Fatal(err)
	}
	if root != l {
		t.Errorf("single-leaf root: got %s, want the leaf %s", root, l)
	}
}

func TestBuildRoot_orderIndependent(t *testing.T) {
	a, err := merkle.BuildRoot([]string{leaf(0), leaf(1), leaf(2), leaf(3), leaf(4)})
	if err != nil {
		t.Fatal(err)
	}
	b, err := merkle.BuildRoot([]string{leaf(4), leaf(2), leaf(0), leaf(3), leaf(1)})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("root depends on insertion order: %s vs %s", a, b)
	}
}

func TestBuildRoot_caseInsensitiveLeaves(t *testing.T) {
	lower := leaf(0)
	upper := ""
	for _, r := range lower {
		if r >= 'a' && r <= 'f' {
			upper += string(r - 32)
		} else {
			upper += string(r)
		}
	}
	a, err := merkle.BuildRoot([]string{lower, leaf(1)})
	if err != nil {
		t.Fatal(err)
	}
	b, err := merkle.BuildRoot([]string{upper, leaf(1)})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("uppercase leaf changed root: %s vs %s", a, b)
	}
}

func TestBuildRoot_rejectsMalformedLeaf(t *testing.T) {
	for _, bad := range []string{"", "abc", leaf(0) + "00", "zz" + leaf(0)[2:]} {
		if _, err := merkle.BuildRoot([]string{bad}); err == nil {
			t.Errorf("BuildRoot accepted malformed leaf %q", bad)
		}
	}
}

func TestBuildRoot_threeLeafWorkedExample(t *testing.T) {
	// Three sorted leaves a < b < c: root = H(H(a||b) || H(c||c)).
	ls := []string{leaf(0), leaf(1), leaf(2)}
	sorted := make([]string, len(ls))
	copy(sorted, ls)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	raw := func(s string) []byte {
		b, err := hex.DecodeString(s)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	pair := func(l, r []byte) []byte {
		h := sha256.New()
		h.Write(l)
		h.Write(r)
		return h.Sum(nil)
	}

	ab := pair(raw(sorted[0]), raw(sorted[1]))
	cc := pair(raw(sorted[2]), raw(sorted[2]))
	want := hex.EncodeToString(pair(ab, cc))

	got, err := merkle.BuildRoot(ls)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("3-leaf root: got %s, want %s", got, want)
	}
}

func TestBuildProof_roundTripAllSizes(t *testing.T) {
	for n := 1; n <= 64; n++ {
		ls := leaves(n)
		for _, target := range ls {
			p, err := merkle.BuildProof(ls, target)
			if err != nil {
				t.Fatalf("n=%d: BuildProof(%s): %v", n, target[:8], err)
			}
			if !merkle.Verify(p) {
				t.Fatalf("n=%d: proof for %s does not verify", n, target[:8])
			}
		}
	}
}

func TestBuildProof_rootMatchesBuildRoot(t *testing.T) {
	ls := leaves(13)
	root, err := merkle.BuildRoot(ls)
	if err != nil {
		t.Fatal(err)
	}
	p, err := merkle.BuildProof(ls, ls[7])
	if err != nil {
		t.Fatal(err)
	}
	if p.Root != root {
		t.Errorf("proof root %s != tree root %s", p.Root, root)
	}
	if p.Version != merkle.ProofVersion {
		t.Errorf("proof version: got %q, want %q", p.Version, merkle.ProofVersion)
	}
}

func TestBuildProof_duplicateMarkerBottomOnly(t *testing.T) {
	// Across a range of sizes, no proof carries more than one "*" and any
	// "*" appears as the first (bottom-layer) entry.
	for n := 1; n <= 33; n++ {
		ls := leaves(n)
		for _, target := range ls {
			p, err := merkle.BuildProof(ls, target)
			if err != nil {
				t.Fatal(err)
			}
			stars := 0
			for i, s := range p.Siblings {
				if s == merkle.DuplicateMarker {
					stars++
					if i != 0 {
						t.Fatalf("n=%d: duplicate marker at position %d, want bottom layer only", n, i)
					}
				}
			}
			if stars > 1 {
				t.Fatalf("n=%d: %d duplicate markers in one proof", n, stars)
			}
		}
	}
}

func TestBuildProof_unknownLeaf(t *testing.T) {
	if _, err := merkle.BuildProof(leaves(4), leaf(99)); err == nil {
		t.Error("BuildProof succeeded for a leaf not in the tree")
	}
}

func TestVerifyProof_rejectsTamperedLeaf(t *testing.T) {
	ls := leaves(8)
	p, err := merkle.BuildProof(ls, ls[3])
	if err != nil {
		t.Fatal(err)
	}
	if merkle.VerifyProof(leaf(99), p.LeafIndex, p.Siblings, p.Root) {
		t.Error("proof verified for a substituted leaf")
	}
}

func TestVerifyProof_rejectsWrongIndex(t *testing.T) {
	ls := leaves(8)
	p, err := merkle.BuildProof(ls, ls[3])
	if err != nil {
		t.Fatal(err)
	}
	if merkle.VerifyProof(p.LeafHash, p.LeafIndex+1, p.Siblings, p.Root) {
		t.Error("proof verified with a shifted leaf index")
	}
	if merkle.VerifyProof(p.LeafHash, -1, p.Siblings, p.Root) {
		t.Error("proof verified with a negative index")
	}
}

func TestVerifyProof_rejectsStaleRoot(t *testing.T) {
	ls := leaves(8)
	p, err := merkle.BuildProof(ls, ls[3])
	if err != nil {
		t.Fatal(err)
	}

	// Root moves after an append; the old proof must not verify against it.
	grown := append(leaves(8), leaf(100))
	newRoot, err := merkle.BuildRoot(grown)
	if err != nil {
		t.Fatal(err)
	}
	if merkle.VerifyProof(p.LeafHash, p.LeafIndex, p.Siblings, newRoot) {
		t.Error("stale proof verified against the post-append root")
	}
}

func TestVerifyProof_malformedInputFailsClosed(t *testing.T) {
	ls := leaves(4)
	p, err := merkle.BuildProof(ls, ls[0])
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		leafHash string
		index    int
		siblings []string
		root     string
	}{
		{"non-hex leaf", "nothex", p.LeafIndex, p.Siblings, p.Root},
		{"non-hex sibling", p.LeafHash, p.LeafIndex, []string{"nothex"}, p.Root},
		{"short sibling", p.LeafHash, p.LeafIndex, []string{"abcd"}, p.Root},
		{"non-hex root", p.LeafHash, p.LeafIndex, p.Siblings, "nothex"},
	}
	for _, tc := range cases {
		if merkle.VerifyProof(tc.leafHash, tc.index, tc.siblings, tc.root) {
			t.Errorf("%s: verification succeeded on malformed input", tc.name)
		}
	}

	if merkle.Verify(nil) {
		t.Error("nil proof verified")
	}
}
