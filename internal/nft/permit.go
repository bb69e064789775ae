package nft

import (
	"errors"
	"math/big"

	"nft-exchange/internal/model"
	"nft-exchange/internal/wallet"
)

var (
	ErrPermitExpired    = errors.New("ERC721WithPermit: PERMIT_DEADLINE_EXPIRED!")
	ErrInvalidSignature = errors.New("ERC721WithPermit: INVALID_PERMIT_SIGNATURE!")
)

var (
	domainTypeHash = model.Keccak256([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	permitTypeHash = model.Keccak256([]byte(
		"Permit(address spender,uint256 tokenId,uint256 nonce,uint256 deadline)"))
	versionHash = model.Keccak256([]byte("1"))
)

// domainSeparator binds permits to this collection: its name, schema
// version, chain id and address all go into the hash.
func (c *Collection) domainSeparator() ([]byte, error) {
	ab, err := c.addr.Bytes()
	if err != nil {
		return nil, err
	}
	addr32 := make([]byte, 32)
	copy(addr32[12:], ab)
	return model.Keccak256(
		domainTypeHash,
		model.Keccak256([]byte(c.name)),
		versionHash,
		model.U256Bytes(new(big.Int).SetUint64(c.chainID)),
		addr32,
	), nil
}

// PermitDigest is the 32-byte message the token owner signs to approve
// spender for tokenID until deadline. The token's current nonce is
// baked in, so the digest is single-use: any transfer invalidates it.
func (c *Collection) PermitDigest(spender model.Address, tokenID uint64, deadline int64) ([]byte, error) {
	if _, ok := c.owners[tokenID]; !ok {
		return nil, ErrInvalidTokenID
	}
	sep, err := c.domainSeparator()
	if err != nil {
		return nil, err
	}
	sb, err := spender.Bytes()
	if err != nil {
		return nil, err
	}
	spender32 := make([]byte, 32)
	copy(spender32[12:], sb)
	structHash := model.Keccak256(
		permitTypeHash,
		spender32,
		model.U256Bytes(new(big.Int).SetUint64(tokenID)),
		model.U256Bytes(new(big.Int).SetUint64(c.nonces[tokenID])),
		model.U256Bytes(big.NewInt(deadline)),
	)
	return model.Keccak256([]byte{0x19, 0x01}, sep, structHash), nil
}

// Permit approves spender for tokenID if sig is a valid signature over
// the permit digest by the token owner, its approved address or one of
// the owner's operators, and the deadline has not passed.
func (c *Collection) Permit(spender model.Address, tokenID uint64, deadline int64, sig []byte) error {
	if c.clock.Now().Unix() > deadline {
		return ErrPermitExpired
	}
	owner, ok := c.owners[tokenID]
	if !ok {
		return ErrInvalidTokenID
	}
	digest, err := c.PermitDigest(spender, tokenID, deadline)
	if err != nil {
		return err
	}
	signer, err := wallet.RecoverSigner(digest, sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if signer.IsZero() {
		return ErrInvalidSignature
	}
	if signer != owner && signer != c.approved[tokenID] && !c.IsApprovedForAll(owner, signer) {
		return ErrInvalidSignature
	}
	c.approved[tokenID] = spender
	return nil
}

// SafeTransferFromWithPermit consumes a permit naming `operator` as
// spender and then performs the transfer in one step.
func (c *Collection) SafeTransferFromWithPermit(operator, from, to model.Address, tokenID uint64, deadline int64, sig []byte) error {
	if err := c.Permit(operator, tokenID, deadline, sig); err != nil {
		return err
	}
	return c.TransferFrom(operator, from, to, tokenID)
}
