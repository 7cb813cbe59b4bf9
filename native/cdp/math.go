package cdp

import (
	"math/bits"

	protoerr "bollar/core/errors"
)

const (
	basisPoints    = 10_000
	satoshisPerBTC = 100_000_000
)

// mulDiv computes floor(a*b/den) with a 128-bit intermediate so the product
// never silently wraps. Returns ErrMathOverflow when the quotient exceeds 64
// bits.
func mulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, protoerr.ErrMathOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, protoerr.ErrMathOverflow
	}
	quo, _ := bits.Div64(hi, lo, den)
	return quo, nil
}

// checkedAdd returns a+b or ErrMathOverflow when the sum wraps.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, protoerr.ErrMathOverflow
	}
	return sum, nil
}

// saturatingSub returns a-b clamped at zero.
func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// collateralValueCents converts satoshis to stable cents at the given price
// (cents per BTC) using truncating integer arithmetic.
func collateralValueCents(satoshis, priceCents uint64) (uint64, error) {
	return mulDiv(satoshis, priceCents, satoshisPerBTC)
}

// bpsShare computes floor(amount * bps / 10_000).
func bpsShare(amount, bps uint64) (uint64, error) {
	return mulDiv(amount, bps, basisPoints)
}
