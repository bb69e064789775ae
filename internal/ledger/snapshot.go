package ledger

import (
	"math/big"

	"nft-exchange/internal/model"
)

// snapshot deep-copies the whole ledger state and returns a closure
// that restores it. Restoring swaps the maps wholesale: pointers taken
// from the old maps keep whatever the failed call wrote to them, so
// nothing outside the ledger may hold one. Every accessor hands out
// copies.
func (l *Ledger) snapshot() func() {
	listings := make(map[model.AssetKey]*model.Listing, len(l.listings))
	for k, v := range l.listings {
		cp := copyListing(v)
		listings[k] = &cp
	}
	auctions := make(map[model.AssetKey]*model.Auction, len(l.auctions))
	for k, v := range l.auctions {
		cp := copyAuction(v)
		auctions[k] = &cp
	}
	bids := make(map[model.AssetKey]map[model.Address]*big.Int, len(l.bids))
	for k, byBidder := range l.bids {
		cp := make(map[model.Address]*big.Int, len(byBidder))
		for addr, v := range byBidder {
			cp[addr] = new(big.Int).Set(v)
		}
		bids[k] = cp
	}
	offers := make(map[model.AssetKey]map[model.Address]*big.Int, len(l.offers))
	for k, byBuyer := range l.offers {
		cp := make(map[model.Address]*big.Int, len(byBuyer))
		for addr, v := range byBuyer {
			cp[addr] = new(big.Int).Set(v)
		}
		offers[k] = cp
	}
	funds := make(map[model.Address]*big.Int, len(l.userFunds))
	for addr, v := range l.userFunds {
		funds[addr] = new(big.Int).Set(v)
	}
	listingsCount, auctionsCount := l.listingsCount, l.auctionsCount

	return func() {
		l.listings = listings
		l.auctions = auctions
		l.bids = bids
		l.offers = offers
		l.userFunds = funds
		l.listingsCount = listingsCount
		l.auctionsCount = auctionsCount
	}
}
