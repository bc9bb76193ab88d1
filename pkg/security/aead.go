package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	gcmsiv "github.com/secure-io/siv-go"
)

// Sealer wraps AES-256-GCM-SIV (RFC 8452), the AEAD primitive spec.md §4.4
// assumes as an external collaborator. GCM-SIV is misuse-resistant: unlike
// plain GCM, nonce reuse degrades to an authenticity loss rather than a
// full plaintext recovery, but nonce reuse with the same key is still
// forbidden by contract — each Seal draws a fresh nonce from a CSPRNG.
type Sealer struct {
	key []byte // 32 bytes for AES-256
}

// NewSealer creates a Sealer with the given 256-bit key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d", len(key))
	}
	return &Sealer{key: key}, nil
}

// NewSealerFromPassword derives a 256-bit key from a password via SHA-256.
func NewSealerFromPassword(password string) (*Sealer, error) {
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	hash := sha256.Sum256([]byte(password))
	return NewSealer(hash[:])
}

func (s *Sealer) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := gcmsiv.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM-SIV: %w", err)
	}
	return aead, nil
}

// Seal encrypts plaintext under a freshly drawn nonce and returns
// nonce||ciphertext||tag.
func (s *Sealer) Seal(plaintext, associatedData []byte) ([]byte, error) {
	aead, err := s.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Open expects nonce||ciphertext||tag as produced by Seal.
func (s *Sealer) Open(sealed, associatedData []byte) ([]byte, error) {
	aead, err := s.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
