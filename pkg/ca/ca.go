// Package ca implements the certificate issuance pipeline (C9): on
// request it mints a post-quantum KEM keypair, seals the private half
// under the CA's AES-256-GCM-SIV key, signs the public half with a PQ
// signature keypair, and persists both to disk (spec.md §4.5).
package ca

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/cuemby/docstore/pkg/log"
	"github.com/cuemby/docstore/pkg/metrics"
	"github.com/cuemby/docstore/pkg/security"
)

// certificateValidity is fixed at one year (spec.md §4.5).
const certificateValidity = 365 * 24 * time.Hour

const (
	certificateFileName = "certificate.crt"
	sealedKeyFileName   = "encrypted.kyber"
)

// Certificate is the TOML-persisted identity record (spec.md §4.5).
type Certificate struct {
	PublicKey    []byte    `toml:"public_key"`
	IdentityInfo string    `toml:"identity_info"`
	IssuerInfo   string    `toml:"issuer_info"`
	Signature    []byte    `toml:"signature"`
	ValidFrom    time.Time `toml:"valid_from"`
	ValidTo      time.Time `toml:"valid_to"`
	SerialNumber string    `toml:"serial_number"`
	CipherSuites []string  `toml:"cipher_suites"`
}

// Authority issues and persists certificates under a single directory.
// A fresh PQ signing keypair is generated per Authority instance; the
// issuer's identity is therefore tied to the running process, matching
// the reference service's single-CA-per-deployment model.
type Authority struct {
	sealer      *security.Sealer
	signKeyPair *security.PQSignKeyPair
	issuerInfo  string
	path        string

	mu sync.Mutex
}

// New builds an Authority that seals private key material under aesKey
// and persists issued certificates under path.
func New(aesKey []byte, path string) (*Authority, error) {
	sealer, err := security.NewSealer(aesKey)
	if err != nil {
		return nil, fmt.Errorf("ca: failed to initialize sealer: %w", err)
	}

	signKeyPair, err := security.GeneratePQSignKeyPair()
	if err != nil {
		return nil, fmt.Errorf("ca: failed to generate signing keypair: %w", err)
	}

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("ca: failed to create certificates path %s: %w", path, err)
	}

	return &Authority{
		sealer:      sealer,
		signKeyPair: signKeyPair,
		issuerInfo:  "docstore-ca",
		path:        path,
	}, nil
}

// IssueCertificate generates a PQ KEM keypair, seals its private half,
// signs its public half, assembles a Certificate record, and persists
// both to disk (spec.md §4.5, steps 1-6).
func (a *Authority) IssueCertificate(identityInfo string) (*Certificate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kem, err := security.GeneratePQKeyPair()
	if err != nil {
		return nil, fmt.Errorf("ca: failed to generate KEM keypair: %w", err)
	}

	sealedPrivateKey, err := a.sealer.Seal(kem.PrivateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("ca: failed to seal KEM private key: %w", err)
	}

	signature, err := security.SignPQ(a.signKeyPair.PrivateKey, kem.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("ca: failed to sign KEM public key: %w", err)
	}

	now := time.Now().UTC()
	cert := &Certificate{
		PublicKey:    kem.PublicKey,
		IdentityInfo: identityInfo,
		IssuerInfo:   a.issuerInfo,
		Signature:    signature,
		ValidFrom:    now,
		ValidTo:      now.Add(certificateValidity),
		SerialNumber: uuid.New().String(),
		CipherSuites: []string{"kyber768", "falcon"},
	}

	if err := a.persist(cert, sealedPrivateKey); err != nil {
		return nil, err
	}

	metrics.CertificatesIssuedTotal.Inc()
	log.WithComponent("ca").Info().Str("serial_number", cert.SerialNumber).Str("identity", identityInfo).Msg("certificate issued")
	return cert, nil
}

// VerifyCertificate checks cert's signature against this Authority's
// signing public key and confirms it has not expired. It is a stub in
// the reference design (spec.md §9 Open Question 6): chain validation
// and cipher-suite negotiation are left unspecified, so this only
// checks the two properties the spec text actually describes.
func (a *Authority) VerifyCertificate(cert *Certificate) (bool, error) {
	if time.Now().UTC().After(cert.ValidTo) {
		return false, nil
	}
	ok, err := security.VerifyPQ(a.signKeyPair.PublicKey, cert.PublicKey, cert.Signature)
	if err != nil {
		return false, fmt.Errorf("ca: signature verification failed: %w", err)
	}
	return ok, nil
}

func (a *Authority) persist(cert *Certificate, sealedPrivateKey []byte) error {
	certBytes, err := toml.Marshal(cert)
	if err != nil {
		return fmt.Errorf("ca: failed to marshal certificate: %w", err)
	}

	certPath := filepath.Join(a.path, certificateFileName)
	if err := os.WriteFile(certPath, certBytes, 0o600); err != nil {
		return fmt.Errorf("ca: failed to write %s: %w", certPath, err)
	}

	keyPath := filepath.Join(a.path, sealedKeyFileName)
	if err := os.WriteFile(keyPath, sealedPrivateKey, 0o600); err != nil {
		return fmt.Errorf("ca: failed to write %s: %w", keyPath, err)
	}

	return nil
}

// LoadCertificate reads a previously persisted certificate back from disk.
func LoadCertificate(path string) (*Certificate, error) {
	raw, err := os.ReadFile(filepath.Join(path, certificateFileName))
	if err != nil {
		return nil, fmt.Errorf("ca: failed to read certificate: %w", err)
	}
	var cert Certificate
	if err := toml.Unmarshal(raw, &cert); err != nil {
		return nil, fmt.Errorf("ca: failed to unmarshal certificate: %w", err)
	}
	return &cert, nil
}

// LoadSealedPrivateKey reads the sealed KEM private key back from disk,
// still in sealer.Seal's nonce||ciphertext||tag form.
func LoadSealedPrivateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(path, sealedKeyFileName))
	if err != nil {
		return nil, fmt.Errorf("ca: failed to read sealed private key: %w", err)
	}
	return raw, nil
}
