package identity_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glogos/zone/internal/identity"
)

var algorithms = []identity.Algorithm{identity.AlgorithmEd25519, identity.AlgorithmSecp256k1}

func TestGenerate_signAndVerify(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(string(alg), func(t *testing.T) {
			id, err := identity.Generate(alg)
			if err != nil {
				t.Fatal(err)
			}

			msg := []byte("attest this")
			sig, err := id.Sign(msg)
			if err != nil {
				t.Fatal(err)
			}
			if !identity.Verify(alg, id.PublicKey(), msg, sig) {
				t.Error("valid signature did not verify")
			}
			if identity.Verify(alg, id.PublicKey(), []byte("different message"), sig) {
				t.Error("signature verified for a different message")
			}
		})
	}
}

func TestGenerate_unsupportedAlgorithm(t *testing.T) {
	if _, err := identity.Generate("rsa"); err == nil {
		t.Error("Generate accepted an unsupported algorithm")
	}
}

func TestZoneID_isHashOfPublicKey(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(string(alg), func(t *testing.T) {
			id, err := identity.Generate(alg)
			if err != nil {
				t.Fatal(err)
			}
			sum := sha256.Sum256(id.PublicKey())
			want := hex.EncodeToString(sum[:])
			if id.ZoneID() != want {
				t.Errorf("zone id: got %s, want %s", id.ZoneID(), want)
			}
			if !identity.VerifyZoneID(id.ZoneID(), id.PublicKey()) {
				t.Error("VerifyZoneID rejected the identity's own key")
			}
		})
	}
}

func TestVerifyZoneID_rejectsMismatch(t *testing.T) {
	a, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}
	b, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}
	if identity.VerifyZoneID(a.ZoneID(), b.PublicKey()) {
		t.Error("zone id for key A verified against key B")
	}
}

func TestFromSeedHex_deterministic(t *testing.T) {
	seed := strings.Repeat("ab", 32)
	for _, alg := range algorithms {
		t.Run(string(alg), func(t *testing.T) {
			a, err := identity.FromSeedHex(alg, seed)
			if err != nil {
				t.Fatal(err)
			}
			b, err := identity.FromSeedHex(alg, seed)
			if err != nil {
				t.Fatal(err)
			}
			if a.ZoneID() != b.ZoneID() {
				t.Error("same seed produced different zone IDs")
			}
			if a.SeedHex() != seed {
				t.Errorf("seed round-trip: got %s, want %s", a.SeedHex(), seed)
			}
		})
	}
}

func TestFromSeedHex_rejectsBadSeed(t *testing.T) {
	for _, bad := range []string{"", "abcd", "not hex at all", strings.Repeat("ab", 31)} {
		if _, err := identity.FromSeedHex(identity.AlgorithmEd25519, bad); err == nil {
			t.Errorf("FromSeedHex accepted %q", bad)
		}
	}
}

func TestVerify_failsClosed(t *testing.T) {
	id, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("msg")
	sig, err := id.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}

	if identity.Verify(identity.AlgorithmEd25519, []byte("short"), msg, sig) {
		t.Error("verified with a malformed public key")
	}
	if identity.Verify(identity.AlgorithmEd25519, id.PublicKey(), msg, []byte("bad sig")) {
		t.Error("verified with a malformed signature")
	}
	if identity.Verify("unknown", id.PublicKey(), msg, sig) {
		t.Error("verified under an unknown algorithm")
	}
	if identity.Verify(identity.AlgorithmSecp256k1, id.PublicKey(), msg, sig) {
		t.Error("ed25519 key verified under secp256k1")
	}
}

func TestRotate_oldSignaturesStayValid(t *testing.T) {
	old, err := identity.Generate(identity.AlgorithmEd25519)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("signed before rotation")
	sig, err := old.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}

	fresh, err := old.Rotate()
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ZoneID() == old.ZoneID() {
		t.Error("rotation produced the same zone ID")
	}
	if fresh.Algorithm() != old.Algorithm() {
		t.Error("rotation changed the algorithm")
	}

	// The old record still verifies with the old key material.
	if !identity.Verify(old.Algorithm(), old.PublicKey(), msg, sig) {
		t.Error("pre-rotation signature no longer verifies with the old key")
	}
	if identity.Verify(fresh.Algorithm(), fresh.PublicKey(), msg, sig) {
		t.Error("pre-rotation signature verifies with the new key")
	}
}

func TestSaveLoad_roundTrip(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(string(alg), func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "zone.key")

			id, err := identity.Generate(alg)
			if err != nil {
				t.Fatal(err)
			}
			if err := id.Save(path); err != nil {
				t.Fatal(err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Errorf("key file permissions: got %v, want 0600", info.Mode().Perm())
			}

			loaded, err := identity.Load(alg, path)
			if err != nil {
				t.Fatal(err)
			}
			if loaded.ZoneID() != id.ZoneID() {
				t.Error("loaded identity has a different zone ID")
			}
		})
	}
}

func TestLoadOrGenerate_precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zone.key")

	// No env, no file: generates and persists.
	id, err := identity.LoadOrGenerate(identity.AlgorithmEd25519, "", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("generated key was not persisted: %v", err)
	}

	// File now exists: same identity on the next start.
	again, err := identity.LoadOrGenerate(identity.AlgorithmEd25519, "", path)
	if err != nil {
		t.Fatal(err)
	}
	if again.ZoneID() != id.ZoneID() {
		t.Error("restart produced a different zone ID")
	}

	// Env wins over the file.
	seed := strings.Repeat("cd", 32)
	t.Setenv("TEST_ZONE_KEY", seed)
	fromEnv, err := identity.LoadOrGenerate(identity.AlgorithmEd25519, "TEST_ZONE_KEY", path)
	if err != nil {
		t.Fatal(err)
	}
	want, err := identity.FromSeedHex(identity.AlgorithmEd25519, seed)
	if err != nil {
		t.Fatal(err)
	}
	if fromEnv.ZoneID() != want.ZoneID() {
		t.Error("environment key did not take precedence over the key file")
	}
}
