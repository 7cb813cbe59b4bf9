package cdp

import (
	"errors"
	"math"
	"testing"

	protoerr "bollar/core/errors"
)

func TestMulDiv(t *testing.T) {
	got, err := mulDiv(1_000_000, 65_000_000, satoshisPerBTC)
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got != 650_000 {
		t.Fatalf("expected 650000, got %d", got)
	}

	// Truncation, never rounding.
	got, err = mulDiv(7, 3, 2)
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got != 10 {
		t.Fatalf("expected truncation to 10, got %d", got)
	}

	// The 128-bit intermediate keeps large products exact.
	got, err = mulDiv(math.MaxUint64, 2, 4)
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got != math.MaxUint64/2 {
		t.Fatalf("unexpected result: %d", got)
	}

	if _, err := mulDiv(math.MaxUint64, 3, 2); !errors.Is(err, protoerr.ErrMathOverflow) {
		t.Fatalf("expected MathOverflow, got %v", err)
	}
	if _, err := mulDiv(1, 1, 0); !errors.Is(err, protoerr.ErrMathOverflow) {
		t.Fatalf("expected MathOverflow on zero divisor, got %v", err)
	}
}

func TestCheckedAdd(t *testing.T) {
	got, err := checkedAdd(1, 2)
	if err != nil || got != 3 {
		t.Fatalf("unexpected: %d, %v", got, err)
	}
	if _, err := checkedAdd(math.MaxUint64, 1); !errors.Is(err, protoerr.ErrMathOverflow) {
		t.Fatalf("expected MathOverflow, got %v", err)
	}
}

func TestSaturatingSub(t *testing.T) {
	if got := saturatingSub(5, 3); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := saturatingSub(3, 5); got != 0 {
		t.Fatalf("expected saturation to 0, got %d", got)
	}
}

func TestCollateralValueTruncates(t *testing.T) {
	// 1 sat at 65,000,000 cents/BTC is worth 0.65 cents: truncated to 0.
	got, err := collateralValueCents(1, 65_000_000)
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
