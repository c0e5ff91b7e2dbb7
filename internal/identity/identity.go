// Package identity implements Zone signing identities.
//
// An identity is a tagged keypair — Ed25519 primary, secp256k1 alternative —
// plus the derived zone ID. The zone ID is always SHA-256 of the raw public
// key bytes: it is recomputable by anyone holding the key and is never
// independently assigned, which is what prevents identity spoofing. A record
// whose claimed zone ID does not match its attached public key must be
// rejected before any further processing.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Algorithm tags the signature scheme of an identity.
type Algorithm string

const (
	AlgorithmEd25519   Algorithm = "ed25519"
	AlgorithmSecp256k1 Algorithm = "secp256k1"
)

// ErrIdentity is wrapped by all key-management failures in this package.
var ErrIdentity = errors.New("identity error")

// Identity holds a signing keypair and its derived zone ID.
type Identity struct {
	alg      Algorithm
	pub      []byte
	edPriv   ed25519.PrivateKey
	secpPriv *secp256k1.PrivateKey
}

// Generate creates a fresh identity for the given algorithm.
func Generate(alg Algorithm) (*Identity, error) {
	switch alg {
	case AlgorithmEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("%w: generate ed25519 key: %v", ErrIdentity, err)
		}
		return &Identity{alg: alg, pub: pub, edPriv: priv}, nil

	case AlgorithmSecp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("%w: generate secp256k1 key: %v", ErrIdentity, err)
		}
		return &Identity{alg: alg, pub: priv.PubKey().SerializeCompressed(), secpPriv: priv}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrIdentity, alg)
	}
}

// FromSeedHex reconstructs an identity from a hex-encoded private key:
// the 32-byte Ed25519 seed, or the 32-byte secp256k1 scalar.
func FromSeedHex(alg Algorithm, seedHex string) (*Identity, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not valid hex: %v", ErrIdentity, err)
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes, got %d", ErrIdentity, len(seed))
	}

	switch alg {
	case AlgorithmEd25519:
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		return &Identity{alg: alg, pub: pub, edPriv: priv}, nil

	case AlgorithmSecp256k1:
		priv := secp256k1.PrivKeyFromBytes(seed)
		return &Identity{alg: alg, pub: priv.PubKey().SerializeCompressed(), secpPriv: priv}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrIdentity, alg)
	}
}

// Algorithm returns the identity's signature scheme tag.
func (id *Identity) Algorithm() Algorithm { return id.alg }

// PublicKey returns the raw public key bytes.
func (id *Identity) PublicKey() []byte {
	out := make([]byte, len(id.pub))
	copy(out, id.pub)
	return out
}

// PublicKeyHex returns the public key as lowercase hex for boundary use.
func (id *Identity) PublicKeyHex() string { return hex.EncodeToString(id.pub) }

// SeedHex returns the hex-encoded private key material, suitable for
// persisting to a key file or the key environment variable.
func (id *Identity) SeedHex() string {
	switch id.alg {
	case AlgorithmEd25519:
		return hex.EncodeToString(id.edPriv.Seed())
	case AlgorithmSecp256k1:
		return hex.EncodeToString(id.secpPriv.Serialize())
	}
	return ""
}

// ZoneID returns SHA-256(public key bytes) as lowercase hex.
func (id *Identity) ZoneID() string { return DeriveZoneID(id.pub) }

// Sign signs msg with the identity's private key. For secp256k1 the message
// is SHA-256 prehashed and the signature is DER encoded; for Ed25519 the
// message is signed directly.
func (id *Identity) Sign(msg []byte) ([]byte, error) {
	switch id.alg {
	case AlgorithmEd25519:
		if len(id.edPriv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: missing or malformed ed25519 private key", ErrIdentity)
		}
		return ed25519.Sign(id.edPriv, msg), nil

	case AlgorithmSecp256k1:
		if id.secpPriv == nil {
			return nil, fmt.Errorf("%w: missing secp256k1 private key", ErrIdentity)
		}
		digest := sha256.Sum256(msg)
		return secpecdsa.Sign(id.secpPriv, digest[:]).Serialize(), nil

	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrIdentity, id.alg)
	}
}

// Rotate returns a fresh identity with the same algorithm. The old identity
// remains valid for records it already signed; new attestations must use the
// returned identity.
func (id *Identity) Rotate() (*Identity, error) {
	return Generate(id.alg)
}

// Verify reports whether sig is a valid signature over msg by the holder of
// pub under alg. It fails closed: malformed keys, unknown algorithms, and
// malformed signatures all return false, never an error or panic.
func Verify(alg Algorithm, pub, msg, sig []byte) bool {
	switch alg {
	case AlgorithmEd25519:
		if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)

	case AlgorithmSecp256k1:
		pubKey, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return false
		}
		parsed, err := secpecdsa.ParseDERSignature(sig)
		if err != nil {
			return false
		}
		digest := sha256.Sum256(msg)
		return parsed.Verify(digest[:], pubKey)

	default:
		return false
	}
}

// DeriveZoneID computes the zone ID for a raw public key.
func DeriveZoneID(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// VerifyZoneID reports whether a claimed zone ID matches the attached public
// key. Records failing this check are rejected before any other processing.
func VerifyZoneID(zoneID string, pub []byte) bool {
	return zoneID == DeriveZoneID(pub)
}
