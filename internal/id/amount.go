package id

import (
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// ParseUnits converts a decimal string into base units at the given precision.
// Fractional digits beyond the precision are truncated toward zero.
func ParseUnits(decimal string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return nil, clierr.New(clierr.CodeUsage, "amount is required")
	}
	if !decimalPattern.MatchString(clean) {
		return nil, clierr.New(clierr.CodeUsage, "amount must be a non-negative decimal like 1.23")
	}
	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return new(big.Int), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return out, nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	return formatDecimal(value.String(), decimals)
}

func formatDecimal(baseUnits string, decimals int) string {
	n := new(big.Int)
	n.SetString(baseUnits, 10)
	negative := n.Sign() < 0
	s := new(big.Int).Abs(n).String()
	if decimals == 0 {
		if negative {
			return "-" + s
		}
		return s
	}

	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := s[len(s)-decimals:]
	fracPart = strings.TrimRight(fracPart, "0")
	out := intPart
	if fracPart != "" {
		out = intPart + "." + fracPart
	}
	if negative {
		return "-" + out
	}
	return out
}

// NormalizeDecimal strips redundant zeros from a decimal string.
func NormalizeDecimal(v string) string {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, ".") {
		out := strings.TrimLeft(v, "0")
		if out == "" {
			return "0"
		}
		return out
	}
	parts := strings.SplitN(v, ".", 2)
	intPart := strings.TrimLeft(parts[0], "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart := strings.TrimRight(parts[1], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
