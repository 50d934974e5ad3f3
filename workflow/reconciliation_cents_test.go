package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the deduction
// arithmetic semantics: every term is rounded to integer cents independently
// before subtraction, so binary-float drift can never leak into the final
// payable amount. Full DB integration tests need MySQL and belong in an
// environment that can run docker.

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeFinalCents_NoFloatDrift(t *testing.T) {
	// 22401.25 - 11837.30 drifts to 10563.949999999999 in float64 arithmetic.
	final, ok := computeFinalCents(toCents(dec("22401.25")), toCents(dec("11837.30")), 0, 0)
	if !ok {
		t.Fatalf("expected deductions within bill")
	}
	if got := fromCents(final).StringFixed(2); got != "10563.95" {
		t.Fatalf("expected 10563.95, got %s", got)
	}
}

func TestComputeFinalCents_AllThreeTerms(t *testing.T) {
	final, ok := computeFinalCents(
		toCents(dec("1000.00")),
		toCents(dec("100.10")),
		toCents(dec("200.20")),
		toCents(dec("300.30")))
	if !ok {
		t.Fatalf("expected deductions within bill")
	}
	if got := fromCents(final).StringFixed(2); got != "399.40" {
		t.Fatalf("expected 399.40, got %s", got)
	}
}

func TestComputeFinalCents_ExactZero(t *testing.T) {
	final, ok := computeFinalCents(toCents(dec("50.00")), toCents(dec("50.00")), 0, 0)
	if !ok {
		t.Fatalf("deductions equal to the bill must be allowed")
	}
	if final != 0 {
		t.Fatalf("expected 0 cents, got %d", final)
	}
}

func TestComputeFinalCents_OverDeduction(t *testing.T) {
	_, ok := computeFinalCents(toCents(dec("100.00")), toCents(dec("60.00")), toCents(dec("40.01")), 0)
	if ok {
		t.Fatalf("expected over-deduction to be rejected")
	}
}

func TestResolveDeduction_NilKeepsStored(t *testing.T) {
	stored := dec("12.34")

	if got := resolveDeduction(nil, &stored); !got.Equal(stored) {
		t.Fatalf("nil input must keep stored value, got %s", got)
	}

	zero := decimal.Zero
	if got := resolveDeduction(&zero, &stored); !got.IsZero() {
		t.Fatalf("explicit zero must clear stored value, got %s", got)
	}

	if got := resolveDeduction(nil, nil); !got.IsZero() {
		t.Fatalf("nil/nil must normalize to zero, got %s", got)
	}
}

func TestToCents_RoundsPerTerm(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0.00", 0},
		{"0.01", 1},
		{"10563.95", 1056395},
		{"22401.25", 2240125},
		{"99.999", 10000},
	}
	for _, tc := range cases {
		if got := toCents(dec(tc.in)); got != tc.want {
			t.Fatalf("toCents(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
