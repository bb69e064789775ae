package model

import (
	"fmt"
	"math/big"
	"strings"
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Ether returns n whole ether in wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerEther)
}

// ParseEther converts a decimal ether amount such as "1.5" to wei.
// At most 18 fractional digits are allowed.
func ParseEther(s string) (*big.Int, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || w.Sign() < 0 {
		return nil, fmt.Errorf("invalid ether amount %q", s)
	}
	out := new(big.Int).Mul(w, weiPerEther)
	if frac != "" {
		if len(frac) > 18 {
			return nil, fmt.Errorf("invalid ether amount %q: more than 18 decimals", s)
		}
		f, ok := new(big.Int).SetString(frac+strings.Repeat("0", 18-len(frac)), 10)
		if !ok {
			return nil, fmt.Errorf("invalid ether amount %q", s)
		}
		out.Add(out, f)
	}
	return out, nil
}

// ParseWei converts a decimal wei string to a big.Int, rejecting
// negative and malformed values.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}
