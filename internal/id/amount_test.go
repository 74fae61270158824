package id

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseUnitsDecimal(t *testing.T) {
	got, err := ParseUnits("1.25", 6)
	if err != nil {
		t.Fatalf("ParseUnits failed: %v", err)
	}
	if got.String() != "1250000" {
		t.Fatalf("unexpected base units: %s", got)
	}
}

func TestParseUnitsTruncatesExtraPrecision(t *testing.T) {
	got, err := ParseUnits("1.1234569", 6)
	if err != nil {
		t.Fatalf("ParseUnits failed: %v", err)
	}
	if got.String() != "1123456" {
		t.Fatalf("expected truncation toward zero, got %s", got)
	}
	got, err = ParseUnits("0.0000009", 6)
	if err != nil {
		t.Fatalf("ParseUnits failed: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestParseUnitsValidation(t *testing.T) {
	for _, input := range []string{"", "-1", "1e6", "abc", "1.2.3", "1,5"} {
		if _, err := ParseUnits(input, 6); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
	for _, input := range []string{"100", " 100 ", ".5", "5.", "007"} {
		if _, err := ParseUnits(input, 6); err != nil {
			t.Fatalf("expected %q to parse: %v", input, err)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		want     string
	}{
		{"1000000000000", 8, "10000"},
		{"1333000000000000000", 18, "1.333"},
		{"8000", 2, "80"},
		{"500000000", 6, "500"},
		{"1", 6, "0.000001"},
		{"0", 6, "0"},
	}
	for _, tc := range cases {
		v, _ := new(big.Int).SetString(tc.value, 10)
		if got := FormatUnits(v, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%s, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
	if got := FormatUnits(nil, 6); got != "0" {
		t.Fatalf("unexpected nil format: %s", got)
	}
}

func TestNormalizeDecimal(t *testing.T) {
	if got := NormalizeDecimal("0010.500"); got != "10.5" {
		t.Fatalf("unexpected normalized decimal: %s", got)
	}
	if got := NormalizeDecimal("000"); got != "0" {
		t.Fatalf("unexpected normalized zero: %s", got)
	}
}

func TestParseUnitsMatchesTruncatedScaling(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("base units equal floor(decimal * 10^6)", prop.ForAll(
		func(whole uint32, frac uint64, fracLen int) bool {
			input := fmt.Sprintf("%d", whole)
			if fracLen > 0 {
				digits := fmt.Sprintf("%012d", frac)
				input += "." + digits[len(digits)-fracLen:]
			}
			got, err := ParseUnits(input, 6)
			if err != nil {
				return false
			}
			rat, ok := new(big.Rat).SetString(input)
			if !ok {
				return false
			}
			scaled := new(big.Int).Mul(rat.Num(), big.NewInt(1_000_000))
			want := new(big.Int).Quo(scaled, rat.Denom())
			return got.Cmp(want) == 0
		},
		gen.UInt32(),
		gen.UInt64Range(0, 999_999_999_999),
		gen.IntRange(0, 12),
	))

	properties.Property("formatting round-trips six-decimal amounts", prop.ForAll(
		func(units uint64) bool {
			v := new(big.Int).SetUint64(units)
			back, err := ParseUnits(FormatUnits(v, 6), 6)
			return err == nil && back.Cmp(v) == 0 && !strings.HasSuffix(FormatUnits(v, 6), ".")
		},
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
