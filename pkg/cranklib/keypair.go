package cranklib

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Keypair is the executor's ed25519 signing identity. Its public key is the
// worker's signatory address on the ledger.
type Keypair struct {
	priv ed25519.PrivateKey
}

// NewKeypair generates a fresh random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSeed rebuilds a keypair from its 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keypair seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed the keypair can be rebuilt from.
func (k *Keypair) Seed() []byte {
	return k.priv.Seed()
}

// Address returns the public key as a ledger address.
func (k *Keypair) Address() Address {
	var a Address
	copy(a[:], k.priv.Public().(ed25519.PublicKey))
	return a
}

// SignMessage signs msg and returns the detached signature.
func (k *Keypair) SignMessage(msg []byte) Signature {
	var s Signature
	copy(s[:], ed25519.Sign(k.priv, msg))
	return s
}

// Verify reports whether sig is a valid signature of msg by addr.
func Verify(addr Address, msg []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(addr[:]), msg, sig[:])
}
