package ledger

import (
	"math/big"

	"nft-exchange/internal/model"
)

// CreateListing puts a token up for fixed-price sale between start and
// end. The caller must own the token and have approved the exchange,
// which takes custody of the token for the life of the listing.
func (l *Ledger) CreateListing(caller, nft model.Address, tokenID uint64, price *big.Int, start, end int64) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		if price == nil || price.Sign() <= 0 {
			return ErrZeroPrice
		}
		now := l.now()
		if start == 0 || end <= start || end <= now {
			return ErrInvalidTimestamps
		}
		if l.assetOnMarket(key, now) {
			return ErrAlreadyListed
		}
		owner, err := reg.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		// An expired unsold listing leaves the token in custody; its
		// seller may relist it in place without a fresh approval.
		held := false
		if prev, ok := l.listings[key]; ok &&
			!prev.Sold && !prev.Cancelled && prev.Seller == caller && owner == l.cfg.Exchange {
			held = true
		}
		if !held {
			if owner != caller {
				return ErrNotTokenOwner
			}
			if !l.exchangeApproved(reg, owner, tokenID) {
				return ErrNotApproved
			}
		}

		l.listings[key] = &model.Listing{
			NFT:            nft,
			TokenID:        tokenID,
			Seller:         caller,
			Price:          new(big.Int).Set(price),
			StartTimestamp: start,
			EndTimestamp:   end,
		}
		l.listingsCount++

		if !held {
			if err := reg.TransferFrom(owner, l.cfg.Exchange, tokenID); err != nil {
				return err
			}
		}

		l.emit(model.ListingCreated{
			AssetKey:       key,
			NFT:            nft,
			TokenID:        tokenID,
			Seller:         caller,
			Price:          new(big.Int).Set(price),
			StartTimestamp: start,
			EndTimestamp:   end,
		})
		return nil
	})
}

// Purchase buys a listed token at its asking price. Overpayment is
// credited back to the buyer's internal balance rather than returned
// inline. The seller is paid price minus fee; the fee is credited to
// the fee account's internal balance.
func (l *Ledger) Purchase(caller, nft model.Address, tokenID uint64, value *big.Int) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		lst, ok := l.listings[key]
		if !ok {
			return ErrListingNotFound
		}
		if lst.Cancelled {
			return ErrListingCancelled
		}
		if lst.Sold {
			return ErrListingSold
		}
		now := l.now()
		if now < lst.StartTimestamp {
			return ErrListingNotStarted
		}
		if now > lst.EndTimestamp {
			return ErrListingEnded
		}
		if caller == lst.Seller {
			return ErrSellerCannotCall
		}
		if value == nil || value.Cmp(lst.Price) < 0 {
			return ErrInsufficientValue
		}

		lst.Sold = true
		lst.Buyer = caller
		fee := model.CalcFee(lst.Price, l.cfg.FeeBps)
		l.addFunds(l.cfg.FeeAccount, fee)
		if excess := new(big.Int).Sub(value, lst.Price); excess.Sign() > 0 {
			l.addFunds(caller, excess)
		}

		if err := reg.TransferFrom(l.cfg.Exchange, caller, tokenID); err != nil {
			return err
		}
		if err := l.settler.Pay(lst.Seller, new(big.Int).Sub(lst.Price, fee)); err != nil {
			return err
		}

		l.emit(model.Purchase{
			AssetKey:  key,
			NFT:       nft,
			TokenID:   tokenID,
			Seller:    lst.Seller,
			Buyer:     caller,
			Price:     new(big.Int).Set(lst.Price),
			Timestamp: now,
		})
		return nil
	})
}

// CancelListing takes a listing off the market before its end time and
// returns the token to the seller. An expired listing can no longer be
// cancelled; its seller reclaims custody by relisting in place and
// cancelling the new listing while it is live.
func (l *Ledger) CancelListing(caller, nft model.Address, tokenID uint64) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		lst, ok := l.listings[key]
		if !ok {
			return ErrListingNotFound
		}
		if caller != lst.Seller {
			return ErrNotListingSeller
		}
		if lst.Cancelled {
			return ErrListingCancelled
		}
		if lst.Sold {
			return ErrListingSold
		}
		if l.now() > lst.EndTimestamp {
			return ErrListingEnded
		}

		lst.Cancelled = true

		if err := reg.TransferFrom(l.cfg.Exchange, lst.Seller, tokenID); err != nil {
			return err
		}

		l.emit(model.ListingCancelled{
			AssetKey:  key,
			NFT:       nft,
			TokenID:   tokenID,
			Seller:    lst.Seller,
			Timestamp: l.now(),
		})
		return nil
	})
}

// UpdateListingPrice changes the asking price of an open listing.
func (l *Ledger) UpdateListingPrice(caller, nft model.Address, tokenID uint64, price *big.Int) error {
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(nil, func() error {
		lst, ok := l.listings[key]
		if !ok {
			return ErrListingNotFound
		}
		if caller != lst.Seller {
			return ErrNotListingSeller
		}
		if lst.Cancelled {
			return ErrListingCancelled
		}
		if lst.Sold {
			return ErrListingSold
		}
		if l.now() > lst.EndTimestamp {
			return ErrListingEnded
		}
		if price == nil || price.Sign() <= 0 {
			return ErrZeroPrice
		}
		if price.Cmp(lst.Price) == 0 {
			return ErrSamePrice
		}

		old := lst.Price
		lst.Price = new(big.Int).Set(price)

		l.emit(model.ListingPriceUpdated{
			AssetKey:  key,
			NFT:       nft,
			TokenID:   tokenID,
			OldPrice:  old,
			NewPrice:  new(big.Int).Set(price),
			Timestamp: l.now(),
		})
		return nil
	})
}

// assetOnMarket reports whether the key has a live listing or auction.
func (l *Ledger) assetOnMarket(key model.AssetKey, now int64) bool {
	if lst, ok := l.listings[key]; ok {
		if !lst.Sold && !lst.Cancelled && now <= lst.EndTimestamp {
			return true
		}
	}
	if a, ok := l.auctions[key]; ok {
		if !a.Ended && !a.Cancelled {
			return true
		}
	}
	return false
}

func (l *Ledger) exchangeApproved(reg Registry, owner model.Address, tokenID uint64) bool {
	approved, err := reg.GetApproved(tokenID)
	if err != nil {
		return false
	}
	return approved == l.cfg.Exchange || reg.IsApprovedForAll(owner, l.cfg.Exchange)
}
