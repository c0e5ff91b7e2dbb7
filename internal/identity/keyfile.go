package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Save writes the identity's hex-encoded private key to path with 0600
// permissions, creating parent directories as needed.
func (id *Identity) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create key directory: %v", ErrIdentity, err)
	}
	if err := os.WriteFile(path, []byte(id.SeedHex()+"\n"), 0o600); err != nil {
		return fmt.Errorf("%w: write key file: %v", ErrIdentity, err)
	}
	return nil
}

// Load reads a hex-encoded private key from path.
func Load(alg Algorithm, path string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read key file: %v", ErrIdentity, err)
	}
	return FromSeedHex(alg, strings.TrimSpace(string(raw)))
}

// LoadOrGenerate resolves the Zone identity: the environment variable (hex
// key) wins, then the key file, then a freshly generated key which is
// persisted to the file so the zone ID survives restarts.
func LoadOrGenerate(alg Algorithm, envVar, path string) (*Identity, error) {
	if envVar != "" {
		if seed := os.Getenv(envVar); seed != "" {
			return FromSeedHex(alg, strings.TrimSpace(seed))
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(alg, path)
		}
	}

	id, err := Generate(alg)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := id.Save(path); err != nil {
			return nil, err
		}
	}
	return id, nil
}
