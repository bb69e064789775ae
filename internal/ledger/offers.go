package ledger

import (
	"math/big"

	"nft-exchange/internal/model"
)

// CreateOffer escrows value as an unsolicited offer on a token. A new
// offer from the same buyer replaces the old one; the previously
// escrowed value moves to the buyer's internal balance.
func (l *Ledger) CreateOffer(caller, nft model.Address, tokenID uint64, value *big.Int) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(nil, func() error {
		if value == nil || value.Sign() <= 0 {
			return ErrZeroPrice
		}
		// A token up for fixed-price sale takes no offers. The check also
		// covers the listing's own seller: while the token sits in escrow
		// OwnerOf names the exchange, so the owner guard below would let
		// the seller through.
		if lst, ok := l.listings[key]; ok &&
			!lst.Sold && !lst.Cancelled && l.now() <= lst.EndTimestamp {
			return ErrAlreadyListed
		}
		owner, err := reg.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if caller == owner {
			return ErrOwnerCannotCall
		}

		if old, ok := l.offers[key][caller]; ok {
			l.addFunds(caller, old)
		}
		if l.offers[key] == nil {
			l.offers[key] = make(map[model.Address]*big.Int)
		}
		l.offers[key][caller] = new(big.Int).Set(value)

		l.emit(model.NewNFTOffer{
			AssetKey:  key,
			NFT:       nft,
			TokenID:   tokenID,
			Owner:     owner,
			Buyer:     caller,
			Price:     new(big.Int).Set(value),
			Timestamp: l.now(),
		})
		return nil
	})
}

// CancelOffer withdraws the caller's offer on a token. The escrowed
// value is credited to the caller's internal balance.
func (l *Ledger) CancelOffer(caller, nft model.Address, tokenID uint64) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(nil, func() error {
		price, ok := l.offers[key][caller]
		if !ok {
			return ErrOfferNotFound
		}
		owner, err := reg.OwnerOf(tokenID)
		if err != nil {
			return err
		}

		delete(l.offers[key], caller)
		l.addFunds(caller, price)

		l.emit(model.NFTOfferCancelled{
			AssetKey:  key,
			NFT:       nft,
			TokenID:   tokenID,
			Owner:     owner,
			Buyer:     caller,
			Timestamp: l.now(),
		})
		return nil
	})
}

// AcceptOffer sells the caller's token to buyer at the offered price.
// The caller must currently own the token and the exchange must be
// approved to move it.
func (l *Ledger) AcceptOffer(caller, nft model.Address, tokenID uint64, buyer model.Address) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		price, ok := l.offers[key][buyer]
		if !ok {
			return ErrOfferNotFound
		}
		owner, err := reg.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if caller != owner {
			return ErrNotNFTOwner
		}
		if !l.exchangeApproved(reg, owner, tokenID) {
			return ErrNotApproved
		}

		delete(l.offers[key], buyer)
		fee := model.CalcFee(price, l.cfg.FeeBps)
		l.addFunds(l.cfg.FeeAccount, fee)

		if err := reg.TransferFrom(owner, buyer, tokenID); err != nil {
			return err
		}
		if err := l.settler.Pay(owner, new(big.Int).Sub(price, fee)); err != nil {
			return err
		}

		l.emit(model.NFTOfferAccepted{
			AssetKey:     key,
			NFT:          nft,
			TokenID:      tokenID,
			Seller:       owner,
			Buyer:        buyer,
			OfferedPrice: new(big.Int).Set(price),
			Timestamp:    l.now(),
		})
		return nil
	})
}

// AcceptOfferWithPermit is AcceptOffer for sellers who never issued an
// on-ledger approval: the signed permit authorizes the exchange for
// this one transfer.
func (l *Ledger) AcceptOfferWithPermit(caller, nft model.Address, tokenID uint64, buyer model.Address, deadline int64, sig []byte) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		if buyer.IsZero() {
			return ErrZeroReceiver
		}
		price, ok := l.offers[key][buyer]
		if !ok {
			return ErrOfferNotFound
		}
		owner, err := reg.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if caller != owner {
			return ErrNotNFTOwner
		}

		delete(l.offers[key], buyer)
		fee := model.CalcFee(price, l.cfg.FeeBps)
		l.addFunds(l.cfg.FeeAccount, fee)

		if err := reg.TransferFromWithPermit(owner, buyer, tokenID, deadline, sig); err != nil {
			return err
		}
		if err := l.settler.Pay(owner, new(big.Int).Sub(price, fee)); err != nil {
			return err
		}

		l.emit(model.NFTOfferAccepted{
			AssetKey:     key,
			NFT:          nft,
			TokenID:      tokenID,
			Seller:       owner,
			Buyer:        buyer,
			OfferedPrice: new(big.Int).Set(price),
			Timestamp:    l.now(),
		})
		return nil
	})
}
