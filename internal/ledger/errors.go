package ledger

import "errors"

// Rejection reasons are part of the wire contract: clients and tests
// match on the exact text.
var (
	ErrReentrantCall = errors.New("ReentrancyGuard: reentrant call")

	ErrUnknownCollection = errors.New("Unknown NFT collection")
	ErrZeroPrice         = errors.New("Price must be greater than zero")
	ErrInvalidTimestamps = errors.New("Invalid timestamps")
	ErrNotTokenOwner     = errors.New("Must be the owner of the NFT to list in the marketplace")
	ErrNotApproved       = errors.New("Marketplace must be approved to transfer the NFT")
	ErrAlreadyListed     = errors.New("NFT is already listed")

	ErrListingNotFound   = errors.New("Listing does not exist")
	ErrNotListingSeller  = errors.New("Not the listing seller")
	ErrListingCancelled  = errors.New("Listing is already cancelled")
	ErrListingSold       = errors.New("NFT is already sold")
	ErrSamePrice         = errors.New("New price must be different from current price")
	ErrListingEnded      = errors.New("Listing has ended")
	ErrListingNotStarted = errors.New("Listing hasn't started yet")
	ErrInsufficientValue = errors.New("Insufficient funds to purchase NFT")
	ErrSellerCannotCall  = errors.New("Seller can't call this function")

	ErrAuctionNotFound     = errors.New("Auction does not exist")
	ErrNoBidValue          = errors.New("Send ether to place a bid")
	ErrBidBelowFloor       = errors.New("Bid value should be higher than the floor price")
	ErrAuctionNotStarted   = errors.New("Auction hasn't started yet")
	ErrAuctionEnded        = errors.New("Auction has ended")
	ErrAuctionCancelled    = errors.New("Auction is already cancelled")
	ErrAuctionAlreadyEnded = errors.New("Auction already ended")
	ErrNotAuctionSeller    = errors.New("Not the auction seller")
	ErrBeforeEndTime       = errors.New("Haven't reached end time")
	ErrAuctionStillActive  = errors.New("Auction is still active")
	ErrHighestBidder       = errors.New("Highest bidder can't withdraw the bid")

	ErrNoFunds         = errors.New("No funds to withdraw")
	ErrOwnerCannotCall = errors.New("NFT owner can't call this function")
	ErrOfferNotFound   = errors.New("Offer does not exist")
	ErrNotNFTOwner     = errors.New("Not the NFT owner")
	ErrZeroReceiver    = errors.New("Receiver can't be Zero address")
)
