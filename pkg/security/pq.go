package security

import (
	"fmt"

	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// PQKeyPair is a post-quantum KEM keypair (spec.md §4.4: "PQ key
// generation produces a KEM keypair"). The KEM and signature schemes
// are treated as an external collaborator per spec.md §1 — this package
// wires CIRCL's Kyber768/Dilithium behind a narrow interface rather than
// implementing NIST PQC primitives from scratch.
type PQKeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// GeneratePQKeyPair generates a fresh Kyber768 KEM keypair.
func GeneratePQKeyPair() (*PQKeyPair, error) {
	pub, priv, err := kyber768.GenerateKeyPair(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PQ keypair: %w", err)
	}

	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PQ public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PQ private key: %w", err)
	}

	return &PQKeyPair{PublicKey: pubBytes, PrivateKey: privBytes}, nil
}

// PQSignKeyPair is a post-quantum signature keypair.
type PQSignKeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// GeneratePQSignKeyPair generates a fresh Dilithium (mode3) signing keypair.
func GeneratePQSignKeyPair() (*PQSignKeyPair, error) {
	pub, priv, err := mode3.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PQ signing keypair: %w", err)
	}

	return &PQSignKeyPair{
		PublicKey:  pub.Bytes(),
		PrivateKey: priv.Bytes(),
	}, nil
}

// SignPQ signs message with a Dilithium private key, producing a detached
// signature (spec.md §4.4: "PQ signing produces a detached signature over
// the KEM public key").
func SignPQ(privateKey []byte, message []byte) ([]byte, error) {
	var priv mode3.PrivateKey
	if err := priv.UnmarshalBinary(privateKey); err != nil {
		return nil, fmt.Errorf("failed to unmarshal PQ private key: %w", err)
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(&priv, message, sig)
	return sig, nil
}

// VerifyPQ verifies a detached Dilithium signature.
func VerifyPQ(publicKey []byte, message []byte, signature []byte) (bool, error) {
	var pub mode3.PublicKey
	if err := pub.UnmarshalBinary(publicKey); err != nil {
		return false, fmt.Errorf("failed to unmarshal PQ public key: %w", err)
	}
	return mode3.Verify(&pub, message, signature), nil
}
