package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"facility-form-backend/config"
)

// ErrNoKey is returned when no signing key is configured.
var ErrNoKey = errors.New("no signing key configured")

// Signer signs transaction and batch headers for the current user. Its
// public key is the user's identity on the ledger.
type Signer struct {
	priv ed25519.PrivateKey
	pub  string
}

// NewSigner builds a signer from a hex-encoded 32-byte ed25519 seed.
func NewSigner(seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(seedHex))
	if err != nil {
		return nil, fmt.Errorf("hex-decoding signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key has wrong length: got %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return newSigner(ed25519.NewKeyFromSeed(seed)), nil
}

// LoadSigner reads the key named by cfg. KeyHex wins over KeyFile.
func LoadSigner(cfg config.SignerConfig) (*Signer, error) {
	if cfg.KeyHex != "" {
		return NewSigner(cfg.KeyHex)
	}
	if cfg.KeyFile == "" {
		return nil, ErrNoKey
	}
	data, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading signing key file %s: %w", cfg.KeyFile, err)
	}
	return NewSigner(string(data))
}

// GenerateSigner creates a signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newSigner(priv), nil
}

func newSigner(priv ed25519.PrivateKey) *Signer {
	return &Signer{
		priv: priv,
		pub:  hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
	}
}

// PublicKey returns the hex public key.
func (s *Signer) PublicKey() string {
	return s.pub
}

// Sign returns the hex signature of msg.
func (s *Signer) Sign(msg []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.priv, msg))
}

// Verify checks a hex signature against a hex public key.
func Verify(publicKeyHex string, msg []byte, signatureHex string) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
