package model

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Address is a 20-byte account identifier rendered as 0x-prefixed
// lowercase hex. It names wallets, collections and the exchange itself.
type Address string

const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

func (a Address) IsZero() bool { return a == "" || a == ZeroAddress }

// Bytes returns the 20 raw bytes of the address, or an error if the
// string is not well-formed.
func (a Address) Bytes() ([]byte, error) {
	s := strings.TrimPrefix(strings.ToLower(string(a)), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", a, err)
	}
	if len(b) != 20 {
		return nil, fmt.Errorf("invalid address %q: want 20 bytes, got %d", a, len(b))
	}
	return b, nil
}

// Valid reports whether the address parses as 20 bytes of hex.
func (a Address) Valid() bool {
	_, err := a.Bytes()
	return err == nil
}

func AddressFromBytes(b []byte) Address {
	return Address("0x" + hex.EncodeToString(b))
}

// DeriveAddress hashes an arbitrary seed down to an address. Used to
// assign addresses to newly created collections.
func DeriveAddress(seed []byte) Address {
	h := Keccak256(seed)
	return AddressFromBytes(h[12:])
}

// AssetKey identifies one token of one collection: the keccak-256 hash
// of the collection address followed by the token id, as 0x-hex.
type AssetKey string

// AssetKeyFor computes the key for (nft, tokenID). The hash preimage is
// the 20 address bytes followed by the token id as a 32-byte big-endian
// integer.
func AssetKeyFor(nft Address, tokenID uint64) (AssetKey, error) {
	ab, err := nft.Bytes()
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, 52)
	buf = append(buf, ab...)
	buf = append(buf, U256Bytes(new(big.Int).SetUint64(tokenID))...)
	return AssetKey("0x" + hex.EncodeToString(Keccak256(buf))), nil
}

// Keccak256 is the legacy (pre-NIST) keccak hash.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// U256Bytes left-pads v to 32 bytes big-endian. v must be non-negative
// and fit in 256 bits.
func U256Bytes(v *big.Int) []byte {
	b := make([]byte, 32)
	v.FillBytes(b)
	return b
}
