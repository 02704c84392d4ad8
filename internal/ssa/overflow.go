package ssa

import "math"

// Checked 64-bit arithmetic. The constant folder consults these to fold
// default-mode operations only when no runtime abort would fire, and the
// interpreter tests use them as the oracle the lowered check sequences
// are compared against.

// AddUint64Checked returns (a+b, ok). ok is false on unsigned overflow.
func AddUint64Checked(a, b uint64) (uint64, bool) {
	s := a + b
	return s, s >= a
}

// SubUint64Checked returns (a-b, ok). ok is false on underflow.
func SubUint64Checked(a, b uint64) (uint64, bool) {
	if a < b {
		return 0, false
	}
	return a - b, true
}

// MulUint64Checked returns (a*b, ok). ok is false on unsigned overflow.
func MulUint64Checked(a, b uint64) (uint64, bool) {
	if a == 0 {
		return 0, true
	}
	p := a * b
	return p, p/a == b
}

// AddInt64Checked returns (a+b, ok). ok is false on signed overflow.
func AddInt64Checked(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// SubInt64Checked returns (a-b, ok). ok is false on signed overflow.
func SubInt64Checked(a, b int64) (int64, bool) {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		return 0, false
	}
	return a - b, true
}

// MulInt64Checked returns (a*b, ok). ok is false on signed overflow.
func MulInt64Checked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, false
	}
	res := a * b
	if res/b != a {
		return 0, false
	}
	return res, true
}

// DivInt64Checked returns (a/b, ok). ok is false for division by zero and
// for MinInt64 / -1.
func DivInt64Checked(a, b int64) (int64, bool) {
	if b == 0 || (a == math.MinInt64 && b == -1) {
		return 0, false
	}
	return a / b, true
}
