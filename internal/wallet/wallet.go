// Package wallet holds secp256k1 keypairs for exchange accounts and
// produces the 65-byte [R || S || V] signatures the permit flow
// verifies.
package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"nft-exchange/internal/model"
)

type Wallet struct {
	priv *secp256k1.PrivateKey
}

func New() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Wallet{priv: priv}, nil
}

// FromHex restores a wallet from a serialized private key.
func FromHex(s string) (*Wallet, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("decode key: want 32 bytes, got %d", len(b))
	}
	return &Wallet{priv: secp256k1.PrivKeyFromBytes(b)}, nil
}

func (w *Wallet) Hex() string {
	return hex.EncodeToString(w.priv.Serialize())
}

func (w *Wallet) Address() model.Address {
	return PubKeyToAddress(w.priv.PubKey())
}

// SignDigest signs a 32-byte digest and returns the signature in
// [R || S || V] layout with V in {27, 28}.
func (w *Wallet) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("sign: digest must be 32 bytes, got %d", len(digest))
	}
	// SignCompact emits [V || R || S]; rotate V to the tail.
	compact := ecdsa.SignCompact(w.priv, digest, false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest, sig []byte) (model.Address, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("recover: signature must be 65 bytes, got %d", len(sig))
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], sig[:64])
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return "", fmt.Errorf("recover: %w", err)
	}
	return PubKeyToAddress(pub), nil
}

// PubKeyToAddress derives the account address: the last 20 bytes of the
// keccak hash of the uncompressed public key without its 0x04 prefix.
func PubKeyToAddress(pub *secp256k1.PublicKey) model.Address {
	raw := pub.SerializeUncompressed()
	h := model.Keccak256(raw[1:])
	return model.AddressFromBytes(h[12:])
}
