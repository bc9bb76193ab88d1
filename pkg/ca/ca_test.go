package ca

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func newTestAuthority(t *testing.T) *Authority {
	t.Helper()
	dir := t.TempDir()
	a, err := New(bytes.Repeat([]byte{0x42}, 32), dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestIssueCertificatePersistsFiles(t *testing.T) {
	dir := t.TempDir()
	a, err := New(bytes.Repeat([]byte{0x11}, 32), dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cert, err := a.IssueCertificate("node-1")
	if err != nil {
		t.Fatalf("IssueCertificate() error = %v", err)
	}
	if cert.SerialNumber == "" {
		t.Fatal("IssueCertificate() returned empty serial number")
	}
	if !cert.ValidTo.After(cert.ValidFrom) {
		t.Fatalf("ValidTo %v not after ValidFrom %v", cert.ValidTo, cert.ValidFrom)
	}

	if _, err := os.Stat(dir + "/certificate.crt"); err != nil {
		t.Fatalf("certificate.crt not written: %v", err)
	}
	if _, err := os.Stat(dir + "/encrypted.kyber"); err != nil {
		t.Fatalf("encrypted.kyber not written: %v", err)
	}

	loadedCert, err := LoadCertificate(dir)
	if err != nil {
		t.Fatalf("LoadCertificate() error = %v", err)
	}
	if loadedCert.SerialNumber != cert.SerialNumber {
		t.Fatalf("LoadCertificate() serial = %q, want %q", loadedCert.SerialNumber, cert.SerialNumber)
	}
}

// TestSealedPrivateKeyRoundtrips is the spec.md §9 Open Question 1
// bugfix check: the nonce used to seal the KEM private key must be
// recoverable from the persisted file alone.
func TestSealedPrivateKeyRoundtrips(t *testing.T) {
	dir := t.TempDir()
	key := bytes.Repeat([]byte{0x22}, 32)
	a, err := New(key, dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := a.IssueCertificate("node-2"); err != nil {
		t.Fatalf("IssueCertificate() error = %v", err)
	}

	sealed, err := LoadSealedPrivateKey(dir)
	if err != nil {
		t.Fatalf("LoadSealedPrivateKey() error = %v", err)
	}
	if _, err := a.sealer.Open(sealed, nil); err != nil {
		t.Fatalf("Open() on persisted sealed key error = %v", err)
	}
}

func TestVerifyCertificateAcceptsOwnIssuance(t *testing.T) {
	a := newTestAuthority(t)
	cert, err := a.IssueCertificate("node-3")
	if err != nil {
		t.Fatalf("IssueCertificate() error = %v", err)
	}

	ok, err := a.VerifyCertificate(cert)
	if err != nil {
		t.Fatalf("VerifyCertificate() error = %v", err)
	}
	if !ok {
		t.Fatal("VerifyCertificate() = false, want true for freshly issued certificate")
	}
}

func TestVerifyCertificateRejectsExpired(t *testing.T) {
	a := newTestAuthority(t)
	cert, err := a.IssueCertificate("node-4")
	if err != nil {
		t.Fatalf("IssueCertificate() error = %v", err)
	}
	cert.ValidTo = time.Now().UTC().Add(-time.Hour)

	ok, err := a.VerifyCertificate(cert)
	if err != nil {
		t.Fatalf("VerifyCertificate() error = %v", err)
	}
	if ok {
		t.Fatal("VerifyCertificate() = true, want false for expired certificate")
	}
}

func TestHTTPCreateAndVerifyCertificate(t *testing.T) {
	a := newTestAuthority(t)
	svc := NewService(a)
	server := httptest.NewServer(svc.Handler())
	defer server.Close()

	createBody, _ := json.Marshal(map[string]string{"identity_info": "node-5"})
	resp, err := http.Post(server.URL+"/certificate/create_certificate", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatalf("POST create_certificate error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create_certificate status = %d, want 200", resp.StatusCode)
	}

	var cert Certificate
	if err := json.NewDecoder(resp.Body).Decode(&cert); err != nil {
		t.Fatalf("decode create_certificate response error = %v", err)
	}

	verifyBody, _ := json.Marshal(map[string]*Certificate{"certificate": &cert})
	resp2, err := http.Post(server.URL+"/certificate/verify_certificate", "application/json", bytes.NewReader(verifyBody))
	if err != nil {
		t.Fatalf("POST verify_certificate error = %v", err)
	}
	defer resp2.Body.Close()

	var result verifyCertificateResponse
	if err := json.NewDecoder(resp2.Body).Decode(&result); err != nil {
		t.Fatalf("decode verify_certificate response error = %v", err)
	}
	if !result.Valid {
		t.Fatal("verify_certificate returned valid=false for a freshly issued certificate")
	}
}
