package app

import (
	"crypto/ed25519"

	"golang.org/x/crypto/blake2b"
)

const (
	// SeedSize is the length of the device secret.
	SeedSize = 32
	// DigestSize is the length of the BLAKE2b digests shown for review.
	DigestSize = blake2b.Size256
)

// keyring derives one ed25519 key per path from the device seed.
type keyring struct {
	seed [SeedSize]byte
}

func newKeyring(seed [SeedSize]byte) *keyring {
	return &keyring{seed: seed}
}

// derive returns the key for p: the ed25519 seed is BLAKE2b-256 of the path
// keyed with the device secret.
func (k *keyring) derive(p Path) ed25519.PrivateKey {
	h, err := blake2b.New256(k.seed[:])
	if err != nil {
		// only fails for keys over 64 bytes
		panic(err)
	}
	h.Write(p.Bytes())
	return ed25519.NewKeyFromSeed(h.Sum(nil))
}

func digest(data []byte) [DigestSize]byte {
	return blake2b.Sum256(data)
}
