package model

import (
	"math/big"
	"time"
)

// ── Enums ────────────────────────────────────────────

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ── Domain Objects ───────────────────────────────────

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Address      Address   `json:"address"`
	SigningKey   string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Wallet struct {
	Address Address  `json:"address"`
	Balance *big.Int `json:"balance_wei"`
}

// Listing is a fixed-price sale of one token. Flags record the lifecycle:
// a listing that is neither sold nor cancelled and is inside its time
// window can be purchased.
type Listing struct {
	NFT            Address  `json:"nft"`
	TokenID        uint64   `json:"token_id"`
	Seller         Address  `json:"seller"`
	Price          *big.Int `json:"price_wei"`
	Sold           bool     `json:"sold"`
	Buyer          Address  `json:"buyer,omitempty"`
	Cancelled      bool     `json:"cancelled"`
	StartTimestamp int64    `json:"start_timestamp"`
	EndTimestamp   int64    `json:"end_timestamp"`
}

// Auction is an ascending-bid sale. HighestBid is the cumulative escrow
// of HighestBidder: topping up an earlier bid adds to it rather than
// replacing it.
type Auction struct {
	NFT            Address  `json:"nft"`
	TokenID        uint64   `json:"token_id"`
	Seller         Address  `json:"seller"`
	FloorPrice     *big.Int `json:"floor_price_wei"`
	HighestBidder  Address  `json:"highest_bidder,omitempty"`
	HighestBid     *big.Int `json:"highest_bid_wei"`
	Cancelled      bool     `json:"cancelled"`
	Ended          bool     `json:"ended"`
	StartTimestamp int64    `json:"start_timestamp"`
	EndTimestamp   int64    `json:"end_timestamp"`
}

// Offer is an unsolicited bid on a token that is not listed for sale.
// The offered value is escrowed until the owner accepts or the buyer
// cancels.
type Offer struct {
	NFT     Address  `json:"nft"`
	TokenID uint64   `json:"token_id"`
	Owner   Address  `json:"owner"`
	Buyer   Address  `json:"buyer"`
	Price   *big.Int `json:"price_wei"`
}

type EventLog struct {
	ID        int64     `json:"id"`
	AssetKey  *string   `json:"asset_key,omitempty"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// ── API Types ────────────────────────────────────────

type CreateListingReq struct {
	NFT            Address `json:"nft"`
	TokenID        uint64  `json:"token_id"`
	PriceWei       string  `json:"price_wei"`
	StartTimestamp int64   `json:"start_timestamp"`
	EndTimestamp   int64   `json:"end_timestamp"`
}

type CreateAuctionReq struct {
	NFT            Address `json:"nft"`
	TokenID        uint64  `json:"token_id"`
	FloorPriceWei  string  `json:"floor_price_wei"`
	StartTimestamp int64   `json:"start_timestamp"`
	EndTimestamp   int64   `json:"end_timestamp"`
}

type ValueReq struct {
	ValueWei string `json:"value_wei"`
}

type UpdatePriceReq struct {
	PriceWei string `json:"price_wei"`
}

type CreateOfferReq struct {
	NFT      Address `json:"nft"`
	TokenID  uint64  `json:"token_id"`
	ValueWei string  `json:"value_wei"`
}

type AcceptOfferReq struct {
	NFT     Address `json:"nft"`
	TokenID uint64  `json:"token_id"`
	Buyer   Address `json:"buyer"`
}

type AcceptOfferWithPermitReq struct {
	NFT       Address `json:"nft"`
	TokenID   uint64  `json:"token_id"`
	Buyer     Address `json:"buyer"`
	Deadline  int64   `json:"deadline"`
	Signature string  `json:"signature"`
}

type PermitReq struct {
	NFT      Address `json:"nft"`
	TokenID  uint64  `json:"token_id"`
	Spender  Address `json:"spender"`
	Deadline int64   `json:"deadline"`
}

type MintReq struct {
	To  Address `json:"to"`
	URI string  `json:"uri"`
}

type ApproveReq struct {
	TokenID  uint64  `json:"token_id"`
	Approved Address `json:"approved"`
}

type OperatorReq struct {
	Operator Address `json:"operator"`
	Approved bool    `json:"approved"`
}

// ── Fees ─────────────────────────────────────────────

// CalcFee returns price * feeBps / 10000, rounded down.
func CalcFee(price *big.Int, feeBps int64) *big.Int {
	fee := new(big.Int).Mul(price, big.NewInt(feeBps))
	return fee.Div(fee, big.NewInt(10000))
}
