package identity

import (
	"crypto"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/letsencrypt/pkcs11key/v4"
)

// Signer produces a detached signature over message on behalf of the local
// host's holder identity. put_host_record needs this to countersign records
// the node holds for itself.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PeerId() string
}

// SoftwareSigner is the default Signer, backed by an in-memory private key.
type SoftwareSigner struct {
	peerId string

	edKey     ed25519.PrivateKey
	secpKey   *secp256k1.PrivateKey
	isSecp    bool
}

// NewSoftwareEd25519Signer builds a Signer from a raw Ed25519 private key and
// the peer id it corresponds to.
func NewSoftwareEd25519Signer(peerId string, priv ed25519.PrivateKey) *SoftwareSigner {
	return &SoftwareSigner{peerId: peerId, edKey: priv}
}

// NewSoftwareSecp256k1Signer builds a Signer from a raw secp256k1 private key.
func NewSoftwareSecp256k1Signer(peerId string, priv *secp256k1.PrivateKey) *SoftwareSigner {
	return &SoftwareSigner{peerId: peerId, secpKey: priv, isSecp: true}
}

func (s *SoftwareSigner) PeerId() string { return s.peerId }

func (s *SoftwareSigner) Sign(message []byte) ([]byte, error) {
	if s.isSecp {
		digest := sha256.Sum256(message)
		sig := ecdsa.Sign(s.secpKey, digest[:])
		return sig.Serialize(), nil
	}
	return ed25519.Sign(s.edKey, message), nil
}

// PKCS11Signer backs the local holder identity with a key resident in an
// HSM, mirroring the teacher's certificate-authority's PKCS#11-backed CA key
// (ca/certificate-authority.go) rather than a software key on disk.
type PKCS11Signer struct {
	peerId string
	key    *pkcs11key.Key
}

// NewPKCS11Signer loads a holder signing key from the given PKCS#11 module.
func NewPKCS11Signer(peerId, modulePath, tokenLabel, pin string, slotID uint, privateKeyLabel string) (*PKCS11Signer, error) {
	key, err := pkcs11key.New(modulePath, tokenLabel, pin, privateKeyLabel)
	if err != nil {
		return nil, fmt.Errorf("opening pkcs11 module %s: %w", modulePath, err)
	}
	return &PKCS11Signer{peerId: peerId, key: key}, nil
}

func (s *PKCS11Signer) PeerId() string { return s.peerId }

func (s *PKCS11Signer) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return s.key.Sign(nil, digest[:], crypto.SHA256)
}
