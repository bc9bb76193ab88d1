package security

import (
	"bytes"
	"testing"
)

func TestNewSealer(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{name: "valid 32-byte key", key: make([]byte, 32), wantErr: false},
		{name: "invalid short key", key: make([]byte, 16), wantErr: true},
		{name: "invalid long key", key: make([]byte, 64), wantErr: true},
		{name: "empty key", key: []byte{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSealer(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSealer() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && s == nil {
				t.Error("NewSealer() returned nil without error")
			}
		})
	}
}

func TestSealOpenRoundtrip(t *testing.T) {
	s, err := NewSealerFromPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewSealerFromPassword() error = %v", err)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	sealed, err := s.Seal(plaintext, nil)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Equal(sealed, plaintext) {
		t.Fatal("Seal() returned plaintext unchanged")
	}

	opened, err := s.Open(sealed, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := NewSealerFromPassword("another password")
	sealed, err := s.Seal([]byte("secret payload"), nil)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := s.Open(tampered, nil); err == nil {
		t.Fatal("Open() on tampered ciphertext succeeded, want error")
	}
}

func TestPQKeypairAndSignature(t *testing.T) {
	kem, err := GeneratePQKeyPair()
	if err != nil {
		t.Fatalf("GeneratePQKeyPair() error = %v", err)
	}
	if len(kem.PublicKey) == 0 || len(kem.PrivateKey) == 0 {
		t.Fatal("GeneratePQKeyPair() returned empty key material")
	}

	signKP, err := GeneratePQSignKeyPair()
	if err != nil {
		t.Fatalf("GeneratePQSignKeyPair() error = %v", err)
	}

	sig, err := SignPQ(signKP.PrivateKey, kem.PublicKey)
	if err != nil {
		t.Fatalf("SignPQ() error = %v", err)
	}

	ok, err := VerifyPQ(signKP.PublicKey, kem.PublicKey, sig)
	if err != nil {
		t.Fatalf("VerifyPQ() error = %v", err)
	}
	if !ok {
		t.Fatal("VerifyPQ() = false, want true")
	}

	tamperedMessage := append([]byte(nil), kem.PublicKey...)
	tamperedMessage[0] ^= 0xFF
	ok, err = VerifyPQ(signKP.PublicKey, tamperedMessage, sig)
	if err != nil {
		t.Fatalf("VerifyPQ() error = %v", err)
	}
	if ok {
		t.Fatal("VerifyPQ() on tampered message = true, want false")
	}
}
