package attestation_test

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/glogos/zone/internal/attestation"
	"github.com/glogos/zone/internal/identity"
)

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

var (
	testZoneID   = hashOf("zone")
	testCanonID  = hashOf("canon")
	testClaim    = hashOf("claim")
	testEvidence = hashOf("evidence")
)

func TestComputeID_deterministic(t *testing.T) {
	a, err := attestation.ComputeID(testZoneID, testCanonID, testClaim, 1700000000)
	if err != nil {
		t.Fatal(err)
	}
	b, err := attestation.ComputeID(testZoneID, testCanonID, testClaim, 1700000000)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
}

func TestComputeID_knownVector(t *testing.T) {
	// The ID is SHA-256 over the raw 32-byte fields plus the timestamp as
	// 8 bytes big-endian.
	ts := int64(1700000000)
	h := sha256.New()
	for _, field := range []string{testZoneID, testCanonID, testClaim} {
		raw, err := hex.DecodeString(field)
		if err != nil {
			t.Fatal(err)
		}
		h.Write(raw)
	}
	var tsb [8]byte
	binary.BigEndian.PutUint64(tsb[:], uint64(ts))
	h.Write(tsb[:])
	want := hex.EncodeToString(h.Sum(nil))

	got, err := attestation.ComputeID(testZoneID, testCanonID, testClaim, ts)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("ComputeID: got %s, want %s", got, want)
	}
}

func TestComputeID_sensitiveToEveryInput(t *testing.T) {
	base, err := attestation.ComputeID(testZoneID, testCanonID, testClaim, 1700000000)
	if err != nil {
		t.Fatal(err)
	}

	variants := []struct {
		name string
		id   func() (string, error)
	}{
		{"zone", func() (string, error) {
			return attestation.ComputeID(hashOf("other zone"), testCanonID, testClaim, 1700000000)
		}},
		{"canon", func() (string, error) {
			return attestation.ComputeID(testZoneID, hashOf("other canon"), testClaim, 1700000000)
		}},
		{"claim", func() (string, error) {
			return attestation.ComputeID(testZoneID, testCanonID, hashOf("other claim"), 1700000000)
		}},
		{"timestamp", func() (string, error) {
			return attestation.ComputeID(testZoneID, testCanonID, testClaim, 1700000001)
		}},
	}
	for _, v := range variants {
		got, err := v.id()
		if err != nil {
			t.Fatal(err)
		}
		if got == base {
			t.Errorf("changing %s did not change the attestation ID", v.name)
		}
	}
}

func TestComputeID_rejectsBadInput(t *testing.T) {
	cases := []struct {
		name               string
		zone, canon, claim string
		ts                 int64
	}{
		{"short zone id", "abcd", testCanonID, testClaim, 0},
		{"non-hex canon", testZoneID, strings.Repeat("z", 64), testClaim, 0},
		{"negative timestamp", testZoneID, testCanonID, testClaim, -1},
	}
	for _, tc := range cases {
		_, err := attestation.ComputeID(tc.zone, tc.canon, tc.claim, tc.ts)
		if err == nil {
			t.Errorf("%s: ComputeID accepted invalid input", tc.name)
			continue
		}
		if !errors.Is(err, attestation.ErrInvalidInput) {
			t.Errorf("%s: error %v does not wrap ErrInvalidInput", tc.name, err)
		}
	}
}

func TestCitationsHash_emptySetIsHashOfEmptyString(t *testing.T) {
	got := attestation.CitationsHash(nil)
	want := sha256.Sum256([]byte(""))
	if got != want {
		t.Errorf("empty citations hash: got %x, want %x", got, want)
	}
}

func TestCanonicalCitations_dedupAndSort(t *testing.T) {
	c1, c2 := hashOf("cite-1"), hashOf("cite-2")
	in := []string{c2, c1, strings.ToUpper(c2), c1}

	got, err := attestation.CanonicalCitations(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 canonical citations, got %d: %v", len(got), got)
	}
	if got[0] > got[1] {
		t.Errorf("canonical citations are not sorted: %v", got)
	}
}

func TestCanonicalCitations_orderAndDuplicatesDoNotAffectHash(t *testing.T) {
	c1, c2, c3 := hashOf("a"), hashOf("b"), hashOf("c")

	ca, err := attestation.CanonicalCitations([]string{c1, c2, c3})
	if err != nil {
		t.Fatal(err)
	}
	cb, err := attestation.CanonicalCitations([]string{c3, c1, c2, c1, c3})
	if err != nil {
		t.Fatal(err)
	}
	if attestation.CitationsHash(ca) != attestation.CitationsHash(cb) {
		t.Error("citation order or duplicates changed the citations hash")
	}
}

func TestCanonicalCitations_rejectsMalformed(t *testing.T) {
	_, err := attestation.CanonicalCitations([]string{"not-a-hash"})
	if !errors.Is(err, attestation.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSignPreimage_layout(t *testing.T) {
	ts := int64(1700000000)
	id, err := attestation.ComputeID(testZoneID, testCanonID, testClaim, ts)
	if err != nil {
		t.Fatal(err)
	}
	cites, err := attestation.CanonicalCitations([]string{hashOf("cited")})
	if err != nil {
		t.Fatal(err)
	}

	got, err := attestation.SignPreimage(id, testClaim, testEvidence, ts, cites)
	if err != nil {
		t.Fatal(err)
	}

	// id(32) || claim(32) || evidence(32) || ts(8) || citations hash(32)
	if len(got) != 32+32+32+8+32 {
		t.Fatalf("preimage length: got %d, want 136", len(got))
	}

	rawID, _ := hex.DecodeString(id)
	if !strings.HasPrefix(hex.EncodeToString(got), hex.EncodeToString(rawID)) {
		t.Error("preimage does not start with the raw attestation ID")
	}

	ch := attestation.CitationsHash(cites)
	if hex.EncodeToString(got[104:]) != hex.EncodeToString(ch[:]) {
		t.Error("preimage does not end with the citations hash")
	}

	var tsb [8]byte
	binary.BigEndian.PutUint64(tsb[:], uint64(ts))
	if hex.EncodeToString(got[96:104]) != hex.EncodeToString(tsb[:]) {
		t.Error("timestamp bytes are not 8-byte big-endian at offset 96")
	}
}

func TestBuilder_buildAndVerify(t *testing.T) {
	for _, alg := range []identity.Algorithm{identity.AlgorithmEd25519, identity.AlgorithmSecp256k1} {
		t.Run(string(alg), func(t *testing.T) {
			id, err := identity.Generate(alg)
			if err != nil {
				t.Fatal(err)
			}
			b := attestation.NewBuilder(id)

			att, err := b.Build(testCanonID, testClaim, testEvidence, "s3://bucket/evidence", []string{hashOf("cited")}, 1700000000)
			if err != nil {
				t.Fatal(err)
			}

			if att.ZoneID != id.ZoneID() {
				t.Errorf("zone id: got %s, want %s", att.ZoneID, id.ZoneID())
			}
			if !attestation.Verify(att, alg, id.PublicKey()) {
				t.Error("freshly built attestation does not verify")
			}
		})
	}
}

func TestBuilder_rejectsInvalidInput(t *testing.T) {
	id, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}
	b := attestation.NewBuilder(id)

	cases := []struct {
		name      string
		canon     string
		claim     string
		evidence  string
		citations []string
		ts        int64
	}{
		{"short claim hash", testCanonID, "abcd", testEvidence, nil, 0},
		{"non-hex evidence", testCanonID, testClaim, strings.Repeat("x", 64), nil, 0},
		{"negative timestamp", testCanonID, testClaim, testEvidence, nil, -5},
		{"malformed citation", testCanonID, testClaim, testEvidence, []string{"bad"}, 0},
	}
	for _, tc := range cases {
		_, err := b.Build(tc.canon, tc.claim, tc.evidence, "", tc.citations, tc.ts)
		if !errors.Is(err, attestation.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestVerify_rejectsTampering(t *testing.T) {
	id, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}
	att, err := attestation.NewBuilder(id).Build(testCanonID, testClaim, testEvidence, "", nil, 1700000000)
	if err != nil {
		t.Fatal(err)
	}
	pub := id.PublicKey()

	tampered := *att
	tampered.ClaimHash = hashOf("forged claim")
	if attestation.Verify(&tampered, identity.AlgorithmEd25519, pub) {
		t.Error("verification passed with a tampered claim hash")
	}

	tampered = *att
	tampered.Timestamp++
	if attestation.Verify(&tampered, identity.AlgorithmEd25519, pub) {
		t.Error("verification passed with a tampered timestamp")
	}

	tampered = *att
	tampered.EvidenceHash = hashOf("forged evidence")
	if attestation.Verify(&tampered, identity.AlgorithmEd25519, pub) {
		t.Error("verification passed with a tampered evidence hash")
	}

	tampered = *att
	tampered.Citations = []string{hashOf("injected citation")}
	if attestation.Verify(&tampered, identity.AlgorithmEd25519, pub) {
		t.Error("verification passed with injected citations")
	}

	tampered = *att
	tampered.Signature = "!!!not base64!!!"
	if attestation.Verify(&tampered, identity.AlgorithmEd25519, pub) {
		t.Error("verification passed with a malformed signature")
	}
}

func TestVerify_rejectsWrongKeyAndSpoofedZoneID(t *testing.T) {
	id, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}
	other, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}

	att, err := attestation.NewBuilder(id).Build(testCanonID, testClaim, testEvidence, "", nil, 1700000000)
	if err != nil {
		t.Fatal(err)
	}

	// Different key: the zone ID binding fails before the signature check.
	if attestation.Verify(att, identity.AlgorithmEd25519, other.PublicKey()) {
		t.Error("verification passed against a different public key")
	}

	// Spoofed zone ID pointing at the attacker's key fails the ID re-derivation.
	spoofed := *att
	spoofed.ZoneID = other.ZoneID()
	if attestation.Verify(&spoofed, identity.AlgorithmEd25519, other.PublicKey()) {
		t.Error("verification passed with a spoofed zone id")
	}

	if attestation.Verify(nil, identity.AlgorithmEd25519, id.PublicKey()) {
		t.Error("nil attestation verified")
	}
}
