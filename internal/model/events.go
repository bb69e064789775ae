package model

import "math/big"

// Event is the wire contract of the exchange: one record per completed
// state transition, published to the event log and to websocket
// subscribers. Field order and names are part of the contract and must
// not change between releases.
type Event interface {
	Type() string
	Key() AssetKey
}

type ListingCreated struct {
	AssetKey       AssetKey `json:"asset_key"`
	NFT            Address  `json:"nft"`
	TokenID        uint64   `json:"token_id"`
	Seller         Address  `json:"seller"`
	Price          *big.Int `json:"price_wei"`
	StartTimestamp int64    `json:"start_timestamp"`
	EndTimestamp   int64    `json:"end_timestamp"`
}

type ListingCancelled struct {
	AssetKey  AssetKey `json:"asset_key"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	Seller    Address  `json:"seller"`
	Timestamp int64    `json:"timestamp"`
}

type ListingPriceUpdated struct {
	AssetKey  AssetKey `json:"asset_key"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	OldPrice  *big.Int `json:"old_price_wei"`
	NewPrice  *big.Int `json:"new_price_wei"`
	Timestamp int64    `json:"timestamp"`
}

type Purchase struct {
	AssetKey  AssetKey `json:"asset_key"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	Seller    Address  `json:"seller"`
	Buyer     Address  `json:"buyer"`
	Price     *big.Int `json:"price_wei"`
	Timestamp int64    `json:"timestamp"`
}

type AuctionCreated struct {
	AssetKey       AssetKey `json:"asset_key"`
	NFT            Address  `json:"nft"`
	TokenID        uint64   `json:"token_id"`
	Seller         Address  `json:"seller"`
	FloorPrice     *big.Int `json:"floor_price_wei"`
	StartTimestamp int64    `json:"start_timestamp"`
	EndTimestamp   int64    `json:"end_timestamp"`
}

type NewHighestBid struct {
	AssetKey           AssetKey `json:"asset_key"`
	NFT                Address  `json:"nft"`
	TokenID            uint64   `json:"token_id"`
	Bidder             Address  `json:"bidder"`
	Bid                *big.Int `json:"bid_wei"`
	PreviousHighestBid *big.Int `json:"previous_highest_bid_wei"`
	Timestamp          int64    `json:"timestamp"`
}

type AuctionCancelled struct {
	AssetKey  AssetKey `json:"asset_key"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	Seller    Address  `json:"seller"`
	Timestamp int64    `json:"timestamp"`
}

type AuctionFinished struct {
	AssetKey  AssetKey `json:"asset_key"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	Amount    *big.Int `json:"amount_wei"`
	Seller    Address  `json:"seller"`
	Winner    Address  `json:"winner"`
	Timestamp int64    `json:"timestamp"`
}

type BidWithdrawn struct {
	AssetKey  AssetKey `json:"asset_key"`
	Bidder    Address  `json:"bidder"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	Amount    *big.Int `json:"amount_wei"`
	Timestamp int64    `json:"timestamp"`
}

type NewNFTOffer struct {
	AssetKey  AssetKey `json:"asset_key"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	Owner     Address  `json:"owner"`
	Buyer     Address  `json:"buyer"`
	Price     *big.Int `json:"price_wei"`
	Timestamp int64    `json:"timestamp"`
}

type NFTOfferCancelled struct {
	AssetKey  AssetKey `json:"asset_key"`
	NFT       Address  `json:"nft"`
	TokenID   uint64   `json:"token_id"`
	Owner     Address  `json:"owner"`
	Buyer     Address  `json:"buyer"`
	Timestamp int64    `json:"timestamp"`
}

type NFTOfferAccepted struct {
	AssetKey     AssetKey `json:"asset_key"`
	NFT          Address  `json:"nft"`
	TokenID      uint64   `json:"token_id"`
	Seller       Address  `json:"seller"`
	Buyer        Address  `json:"buyer"`
	OfferedPrice *big.Int `json:"offered_price_wei"`
	Timestamp    int64    `json:"timestamp"`
}

type FundsWithdrawn struct {
	Account   Address  `json:"account"`
	Amount    *big.Int `json:"amount_wei"`
	Timestamp int64    `json:"timestamp"`
}

func (e ListingCreated) Type() string      { return "listing_created" }
func (e ListingCancelled) Type() string    { return "listing_cancelled" }
func (e ListingPriceUpdated) Type() string { return "listing_price_updated" }
func (e Purchase) Type() string            { return "purchase" }
func (e AuctionCreated) Type() string      { return "auction_created" }
func (e NewHighestBid) Type() string       { return "new_highest_bid" }
func (e AuctionCancelled) Type() string    { return "auction_cancelled" }
func (e AuctionFinished) Type() string     { return "auction_finished" }
func (e BidWithdrawn) Type() string        { return "bid_withdrawn" }
func (e NewNFTOffer) Type() string         { return "new_nft_offer" }
func (e NFTOfferCancelled) Type() string   { return "nft_offer_cancelled" }
func (e NFTOfferAccepted) Type() string    { return "nft_offer_accepted" }
func (e FundsWithdrawn) Type() string      { return "funds_withdrawn" }

func (e ListingCreated) Key() AssetKey      { return e.AssetKey }
func (e ListingCancelled) Key() AssetKey    { return e.AssetKey }
func (e ListingPriceUpdated) Key() AssetKey { return e.AssetKey }
func (e Purchase) Key() AssetKey            { return e.AssetKey }
func (e AuctionCreated) Key() AssetKey      { return e.AssetKey }
func (e NewHighestBid) Key() AssetKey       { return e.AssetKey }
func (e AuctionCancelled) Key() AssetKey    { return e.AssetKey }
func (e AuctionFinished) Key() AssetKey     { return e.AssetKey }
func (e BidWithdrawn) Key() AssetKey        { return e.AssetKey }
func (e NewNFTOffer) Key() AssetKey         { return e.AssetKey }
func (e NFTOfferCancelled) Key() AssetKey   { return e.AssetKey }
func (e NFTOfferAccepted) Key() AssetKey    { return e.AssetKey }
func (e FundsWithdrawn) Key() AssetKey      { return "" }
