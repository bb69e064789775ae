package ledger

import (
	"math/big"

	"nft-exchange/internal/model"
)

// CreateAuction opens an ascending-bid sale for a token the caller
// owns. The exchange takes custody of the token until the auction is
// ended or cancelled.
func (l *Ledger) CreateAuction(caller, nft model.Address, tokenID uint64, floorPrice *big.Int, start, end int64) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		if floorPrice == nil || floorPrice.Sign() <= 0 {
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
		if owner != caller {
			return ErrNotTokenOwner
		}
		if !l.exchangeApproved(reg, owner, tokenID) {
			return ErrNotApproved
		}

		l.auctions[key] = &model.Auction{
			NFT:            nft,
			TokenID:        tokenID,
			Seller:         caller,
			FloorPrice:     new(big.Int).Set(floorPrice),
			HighestBid:     new(big.Int),
			StartTimestamp: start,
			EndTimestamp:   end,
		}
		l.auctionsCount++

		if err := reg.TransferFrom(owner, l.cfg.Exchange, tokenID); err != nil {
			return err
		}

		l.emit(model.AuctionCreated{
			AssetKey:       key,
			NFT:            nft,
			TokenID:        tokenID,
			Seller:         caller,
			FloorPrice:     new(big.Int).Set(floorPrice),
			StartTimestamp: start,
			EndTimestamp:   end,
		})
		return nil
	})
}

// Bid escrows value against an auction. Repeat bids from the same
// account accumulate: the bidder's standing is the sum of everything
// they have sent. A bid that does not beat the current highest is
// still escrowed but emits no event.
func (l *Ledger) Bid(caller, nft model.Address, tokenID uint64, value *big.Int) error {
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(nil, func() error {
		a, ok := l.auctions[key]
		if !ok {
			return ErrAuctionNotFound
		}
		if caller == a.Seller {
			return ErrSellerCannotCall
		}
		if value == nil || value.Sign() <= 0 {
			return ErrNoBidValue
		}
		if a.Cancelled {
			return ErrAuctionCancelled
		}
		now := l.now()
		if now < a.StartTimestamp {
			return ErrAuctionNotStarted
		}
		if a.Ended || now > a.EndTimestamp {
			return ErrAuctionEnded
		}

		total := new(big.Int).Set(value)
		if prev, ok := l.bids[key][caller]; ok {
			total.Add(total, prev)
		}
		if total.Cmp(a.FloorPrice) <= 0 {
			return ErrBidBelowFloor
		}
		if l.bids[key] == nil {
			l.bids[key] = make(map[model.Address]*big.Int)
		}
		l.bids[key][caller] = total

		if total.Cmp(a.HighestBid) > 0 {
			prevHighest := a.HighestBid
			a.HighestBidder = caller
			a.HighestBid = new(big.Int).Set(total)
			l.emit(model.NewHighestBid{
				AssetKey:           key,
				NFT:                nft,
				TokenID:            tokenID,
				Bidder:             caller,
				Bid:                new(big.Int).Set(total),
				PreviousHighestBid: prevHighest,
				Timestamp:          now,
			})
		}
		return nil
	})
}

// CancelAuction aborts an auction before its end time and returns the
// token to the seller. Past the end time the auction is binding and
// must be settled through EndAuction. The highest bidder is cleared,
// so every bidder can reclaim escrow through WithdrawBid afterwards.
func (l *Ledger) CancelAuction(caller, nft model.Address, tokenID uint64) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		a, ok := l.auctions[key]
		if !ok {
			return ErrAuctionNotFound
		}
		if caller != a.Seller {
			return ErrNotAuctionSeller
		}
		if a.Cancelled {
			return ErrAuctionCancelled
		}
		if a.Ended {
			return ErrAuctionAlreadyEnded
		}
		if l.now() > a.EndTimestamp {
			return ErrAuctionEnded
		}

		a.Cancelled = true
		a.HighestBidder = model.ZeroAddress
		a.HighestBid = new(big.Int)

		if err := reg.TransferFrom(l.cfg.Exchange, a.Seller, tokenID); err != nil {
			return err
		}

		l.emit(model.AuctionCancelled{
			AssetKey:  key,
			NFT:       nft,
			TokenID:   tokenID,
			Seller:    a.Seller,
			Timestamp: l.now(),
		})
		return nil
	})
}

// EndAuction settles an auction whose end time has passed. Only the
// seller may call it. With a winner the token goes to the highest
// bidder, the seller is paid the winning bid minus fee, and the
// winner's escrow is consumed. Without bids the token simply returns
// to the seller.
func (l *Ledger) EndAuction(caller, nft model.Address, tokenID uint64) error {
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return ErrUnknownCollection
	}
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(reg, func() error {
		a, ok := l.auctions[key]
		if !ok {
			return ErrAuctionNotFound
		}
		if caller != a.Seller {
			return ErrNotAuctionSeller
		}
		if a.Cancelled {
			return ErrAuctionCancelled
		}
		if a.Ended {
			return ErrAuctionAlreadyEnded
		}
		now := l.now()
		if now <= a.EndTimestamp {
			return ErrBeforeEndTime
		}

		a.Ended = true

		if a.HighestBidder.IsZero() {
			if err := reg.TransferFrom(l.cfg.Exchange, a.Seller, tokenID); err != nil {
				return err
			}
			l.emit(model.AuctionFinished{
				AssetKey:  key,
				NFT:       nft,
				TokenID:   tokenID,
				Amount:    new(big.Int),
				Seller:    a.Seller,
				Winner:    model.ZeroAddress,
				Timestamp: now,
			})
			return nil
		}

		winner := a.HighestBidder
		amount := new(big.Int).Set(a.HighestBid)
		delete(l.bids[key], winner)
		fee := model.CalcFee(amount, l.cfg.FeeBps)
		l.addFunds(l.cfg.FeeAccount, fee)

		if err := reg.TransferFrom(l.cfg.Exchange, winner, tokenID); err != nil {
			return err
		}
		if err := l.settler.Pay(a.Seller, new(big.Int).Sub(amount, fee)); err != nil {
			return err
		}

		l.emit(model.AuctionFinished{
			AssetKey:  key,
			NFT:       nft,
			TokenID:   tokenID,
			Amount:    amount,
			Seller:    a.Seller,
			Winner:    winner,
			Timestamp: now,
		})
		return nil
	})
}

// WithdrawBid returns a bidder's escrow once the auction is over. The
// standing highest bidder of a live or settled auction cannot pull
// their bid; after a cancellation everyone can.
func (l *Ledger) WithdrawBid(caller, nft model.Address, tokenID uint64) error {
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return err
	}
	return l.run(nil, func() error {
		a, ok := l.auctions[key]
		if !ok {
			return ErrAuctionNotFound
		}
		now := l.now()
		if !a.Cancelled && !a.Ended && now <= a.EndTimestamp {
			return ErrAuctionStillActive
		}
		if caller == a.HighestBidder {
			return ErrHighestBidder
		}
		amount, ok := l.bids[key][caller]
		if !ok || amount.Sign() == 0 {
			return ErrNoFunds
		}

		delete(l.bids[key], caller)

		if err := l.settler.Pay(caller, amount); err != nil {
			return err
		}

		l.emit(model.BidWithdrawn{
			AssetKey:  key,
			Bidder:    caller,
			NFT:       nft,
			TokenID:   tokenID,
			Amount:    new(big.Int).Set(amount),
			Timestamp: now,
		})
		return nil
	})
}
