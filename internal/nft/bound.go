package nft

import "nft-exchange/internal/model"

// Bound is a Collection viewed through one fixed operator, typically
// the exchange address. It is the shape the trading core consumes:
// every transfer it issues is authorized as that operator.
type Bound struct {
	c        *Collection
	operator model.Address
}

func (c *Collection) Bind(operator model.Address) *Bound {
	return &Bound{c: c, operator: operator}
}

func (b *Bound) Address() model.Address { return b.c.addr }

func (b *Bound) OwnerOf(tokenID uint64) (model.Address, error) {
	return b.c.OwnerOf(tokenID)
}

func (b *Bound) GetApproved(tokenID uint64) (model.Address, error) {
	return b.c.GetApproved(tokenID)
}

func (b *Bound) IsApprovedForAll(owner, operator model.Address) bool {
	return b.c.IsApprovedForAll(owner, operator)
}

func (b *Bound) TransferFrom(from, to model.Address, tokenID uint64) error {
	return b.c.TransferFrom(b.operator, from, to, tokenID)
}

func (b *Bound) TransferFromWithPermit(from, to model.Address, tokenID uint64, deadline int64, sig []byte) error {
	return b.c.SafeTransferFromWithPermit(b.operator, from, to, tokenID, deadline, sig)
}

func (b *Bound) Snapshot() func() { return b.c.Snapshot() }
