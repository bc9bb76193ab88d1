package ope

import "testing"

// TestOPEMonotonicity is scenario 4 / property P2 of spec.md §8.
func TestOPEMonotonicity(t *testing.T) {
	a, b, c := EncryptOPE(10), EncryptOPE(20), EncryptOPE(30)
	if a.Cmp(b) >= 0 {
		t.Fatalf("EncryptOPE(10) = %v, want < EncryptOPE(20) = %v", a, b)
	}
	if b.Cmp(c) >= 0 {
		t.Fatalf("EncryptOPE(20) = %v, want < EncryptOPE(30) = %v", b, c)
	}
}

func TestOPEMonotonicityNegative(t *testing.T) {
	a, b, c := EncryptOPE(-30), EncryptOPE(-20), EncryptOPE(-10)
	if a.Cmp(b) >= 0 {
		t.Fatalf("EncryptOPE(-30) = %v, want < EncryptOPE(-20) = %v", a, b)
	}
	if b.Cmp(c) >= 0 {
		t.Fatalf("EncryptOPE(-20) = %v, want < EncryptOPE(-10) = %v", b, c)
	}
}

// TestOPEDeterminism is property P3 of spec.md §8.
func TestOPEDeterminism(t *testing.T) {
	a1 := EncryptOPE(42)
	a2 := EncryptOPE(42)
	if a1.Cmp(a2) != 0 {
		t.Fatalf("EncryptOPE(42) = %v, then %v, want equal", a1, a2)
	}
}

func TestOPEAcrossZero(t *testing.T) {
	neg, zero, pos := EncryptOPE(-5), EncryptOPE(0), EncryptOPE(5)
	if neg.Cmp(zero) >= 0 || zero.Cmp(pos) >= 0 {
		t.Fatalf("EncryptOPE not monotone across zero: %v, %v, %v", neg, zero, pos)
	}
}
