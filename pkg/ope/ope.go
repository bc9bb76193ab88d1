// Package ope implements the order-preserving encoding primitive: a
// deterministic, strictly monotone map from real numbers to large
// integers, built so that server-side range predicates can run directly
// over the encoded values (spec.md §4.3).
package ope

import (
	"math/big"
)

const (
	// precisionBits is the big.Float mantissa precision. spec.md §4.3
	// requires at least 200 bits to preserve monotonicity across the
	// full integer domain; 256 is the nearest convenient word-aligned
	// value above that floor.
	precisionBits = 256

	// keySpaceLength and probability are fixed per spec.md §4.3.
	keySpaceLength = 16_777_216.0
	probability    = 0.5

	// scalingFactor and maxIterations are fixed per spec.md §4.3.
	scalingFactor = 1e12
	maxIterations = 10_000
)

func newFloat(x float64) *big.Float {
	return new(big.Float).SetPrec(precisionBits).SetFloat64(x)
}

// hypergeometricSum computes the partial-sum accumulator spec.md §4.3
// describes: a hypergeometric probability mass, summed from inputNumber
// onward for up to maxIterations terms, scaled by 1e12 and floored.
func hypergeometricSum(length, inputNumber, prob float64) *big.Float {
	q := new(big.Float).SetPrec(precisionBits).Sub(newFloat(1), newFloat(prob))
	mean := new(big.Float).SetPrec(precisionBits).Mul(newFloat(length), newFloat(prob))
	residual := new(big.Float).SetPrec(precisionBits).Mul(newFloat(length), q)

	numerator := newFloat(1)
	factorial := newFloat(1)

	// Rust's `1..=input_number as i32` is empty whenever input_number < 1;
	// int64 truncates toward zero exactly as Rust's `as i32` cast does.
	bound := int64(inputNumber)
	for j := int64(1); j <= bound; j++ {
		fj := newFloat(float64(j))

		meanTerm := new(big.Float).SetPrec(precisionBits).Sub(mean, fj)
		meanTerm.Add(meanTerm, newFloat(1))

		residualTerm := new(big.Float).SetPrec(precisionBits).Sub(residual, fj)
		residualTerm.Add(residualTerm, newFloat(1))

		numerator.Mul(numerator, meanTerm)
		numerator.Mul(numerator, residualTerm)

		factorial.Mul(factorial, fj)
	}

	if factorial.Sign() == 0 {
		// input is large enough that the exact-term computation is
		// degenerate; fall back to the term being zero rather than
		// panicking, since this path is unreachable for any input in
		// the documented domain [-N/2, N/2).
		factorial = newFloat(1)
		numerator = newFloat(0)
	}

	term := new(big.Float).SetPrec(precisionBits).Quo(numerator, factorial)
	sum := newFloat(0)
	number := newFloat(inputNumber)

	one := newFloat(1)
	for i := 0; i < maxIterations; i++ {
		sum.Add(sum, term)

		nextNumber := new(big.Float).SetPrec(precisionBits).Add(number, one)

		a := new(big.Float).SetPrec(precisionBits).Sub(mean, number)
		b := new(big.Float).SetPrec(precisionBits).Sub(residual, number)
		denomA := nextNumber
		denomB := new(big.Float).SetPrec(precisionBits).Add(mean, residual)
		denomB.Sub(denomB, nextNumber)
		denomB.Sub(denomB, one)

		nextTerm := new(big.Float).SetPrec(precisionBits).Mul(a, b)
		if denomA.Sign() == 0 || denomB.Sign() == 0 {
			break
		}
		nextTerm.Quo(nextTerm, denomA)
		nextTerm.Quo(nextTerm, denomB)

		if !isFinite(nextTerm) {
			break
		}

		term = nextTerm
		number = nextNumber
	}

	sum.Mul(sum, newFloat(scalingFactor))
	return floorFloat(sum)
}

func isFinite(f *big.Float) bool {
	return !f.IsInf()
}

// floorFloat floors a big.Float toward negative infinity.
func floorFloat(f *big.Float) *big.Float {
	i := new(big.Int)
	i, _ = f.Int(i)
	result := new(big.Float).SetPrec(precisionBits).SetInt(i)
	if result.Cmp(f) > 0 {
		result.Sub(result, newFloat(1))
	}
	return result
}

// EncryptOPE returns a large integer such that for all real x1 < x2 in
// the supported domain [-N/2, N/2), EncryptOPE(x1) < EncryptOPE(x2) (I5,
// P2). Determinism is exact: the same input yields a bitwise-identical
// big.Int (P3).
func EncryptOPE(x float64) *big.Int {
	f := hypergeometricSum(keySpaceLength, x, probability)
	i := new(big.Int)
	i, _ = f.Int(i)
	return i
}

// DecryptOPE is a reference-only inverse via exhaustive search over
// [0, N). It is never on a serving path (spec.md §4.3) — it exists so
// the encoding's monotonicity can be tested against its own inverse, not
// for production decryption.
func DecryptOPE(encrypted *big.Int) (float64, bool) {
	target := new(big.Float).SetPrec(precisionBits).SetInt(encrypted)
	tolerance := newFloat(1e-5)

	for i := int64(0); i < int64(keySpaceLength); i++ {
		candidate := hypergeometricSum(keySpaceLength, float64(i), probability)
		diff := new(big.Float).SetPrec(precisionBits).Sub(candidate, target)
		diff.Abs(diff)
		if diff.Cmp(tolerance) < 0 {
			return float64(i), true
		}
	}
	return 0, false
}
