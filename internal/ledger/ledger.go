// Package ledger is the trading core of the exchange: listings,
// auctions, offers and the internal funds book, with the transactional
// discipline of the settlement layer it models. Every entry point is
// atomic (all state reverts on error), refuses reentry while another
// entry point is on the stack, and orders its work checks first,
// state changes second, external transfers last.
package ledger

import (
	"math/big"

	"github.com/raulk/clock"

	"nft-exchange/internal/model"
)

// Registry is the ledger's view of one token collection, already bound
// to the exchange as operator.
type Registry interface {
	Address() model.Address
	OwnerOf(tokenID uint64) (model.Address, error)
	GetApproved(tokenID uint64) (model.Address, error)
	IsApprovedForAll(owner, operator model.Address) bool
	TransferFrom(from, to model.Address, tokenID uint64) error
	TransferFromWithPermit(from, to model.Address, tokenID uint64, deadline int64, sig []byte) error
	Snapshot() func()
}

// Resolver maps a collection address to its Registry.
type Resolver interface {
	Registry(addr model.Address) (Registry, error)
}

// Settler pushes value out of the ledger to an account. Payouts to
// sellers and withdrawals go through it; like any external transfer it
// may run arbitrary code on the receiving side.
type Settler interface {
	Pay(to model.Address, amount *big.Int) error
}

// EventSink receives one event per completed entry point. Nothing is
// appended for a failed call.
type EventSink interface {
	Append(ev model.Event)
}

type Config struct {
	// Exchange is the ledger's own address: the escrow custodian for
	// listed and auctioned tokens, and the spender named in permits.
	Exchange   model.Address
	FeeAccount model.Address
	FeeBps     int64
}

type Ledger struct {
	cfg      Config
	registry Resolver
	settler  Settler
	sink     EventSink
	clock    clock.Clock

	listings  map[model.AssetKey]*model.Listing
	auctions  map[model.AssetKey]*model.Auction
	bids      map[model.AssetKey]map[model.Address]*big.Int
	offers    map[model.AssetKey]map[model.Address]*big.Int
	userFunds map[model.Address]*big.Int

	listingsCount uint64
	auctionsCount uint64

	entered bool
}

func New(cfg Config, registry Resolver, settler Settler, sink EventSink, clk clock.Clock) *Ledger {
	return &Ledger{
		cfg:       cfg,
		registry:  registry,
		settler:   settler,
		sink:      sink,
		clock:     clk,
		listings:  make(map[model.AssetKey]*model.Listing),
		auctions:  make(map[model.AssetKey]*model.Auction),
		bids:      make(map[model.AssetKey]map[model.Address]*big.Int),
		offers:    make(map[model.AssetKey]map[model.Address]*big.Int),
		userFunds: make(map[model.Address]*big.Int),
	}
}

func (l *Ledger) Exchange() model.Address   { return l.cfg.Exchange }
func (l *Ledger) FeeAccount() model.Address { return l.cfg.FeeAccount }
func (l *Ledger) FeeBps() int64             { return l.cfg.FeeBps }

// run wraps one entry point: reject reentry, snapshot the ledger and
// the touched registry, execute, and restore both snapshots if the
// body fails. The reentry flag itself is not part of the snapshot.
func (l *Ledger) run(reg Registry, fn func() error) error {
	if l.entered {
		return ErrReentrantCall
	}
	l.entered = true
	defer func() { l.entered = false }()

	restore := l.snapshot()
	var restoreReg func()
	if reg != nil {
		restoreReg = reg.Snapshot()
	}
	if err := fn(); err != nil {
		restore()
		if restoreReg != nil {
			restoreReg()
		}
		return err
	}
	return nil
}

func (l *Ledger) now() int64 { return l.clock.Now().Unix() }

func (l *Ledger) emit(ev model.Event) {
	if l.sink != nil {
		l.sink.Append(ev)
	}
}

// ── Accessors ────────────────────────────────────────

// GetListing returns a copy of the listing for (nft, tokenID).
func (l *Ledger) GetListing(nft model.Address, tokenID uint64) (model.Listing, bool) {
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return model.Listing{}, false
	}
	lst, ok := l.listings[key]
	if !ok {
		return model.Listing{}, false
	}
	return copyListing(lst), true
}

func (l *Ledger) GetAuction(nft model.Address, tokenID uint64) (model.Auction, bool) {
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return model.Auction{}, false
	}
	a, ok := l.auctions[key]
	if !ok {
		return model.Auction{}, false
	}
	return copyAuction(a), true
}

func (l *Ledger) Listings() []model.Listing {
	out := make([]model.Listing, 0, len(l.listings))
	for _, lst := range l.listings {
		out = append(out, copyListing(lst))
	}
	return out
}

func (l *Ledger) Auctions() []model.Auction {
	out := make([]model.Auction, 0, len(l.auctions))
	for _, a := range l.auctions {
		out = append(out, copyAuction(a))
	}
	return out
}

// OffersFor lists the open offers on one token.
func (l *Ledger) OffersFor(nft model.Address, tokenID uint64) []model.Offer {
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return nil
	}
	reg, err := l.registry.Registry(nft)
	if err != nil {
		return nil
	}
	owner, err := reg.OwnerOf(tokenID)
	if err != nil {
		return nil
	}
	out := make([]model.Offer, 0, len(l.offers[key]))
	for buyer, price := range l.offers[key] {
		out = append(out, model.Offer{
			NFT:     nft,
			TokenID: tokenID,
			Owner:   owner,
			Buyer:   buyer,
			Price:   new(big.Int).Set(price),
		})
	}
	return out
}

// Funds returns the withdrawable internal balance of an account.
func (l *Ledger) Funds(addr model.Address) *big.Int {
	if v, ok := l.userFunds[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// BidOf returns the escrowed bid of one bidder on one auction.
func (l *Ledger) BidOf(nft model.Address, tokenID uint64, bidder model.Address) *big.Int {
	key, err := model.AssetKeyFor(nft, tokenID)
	if err != nil {
		return new(big.Int)
	}
	if v, ok := l.bids[key][bidder]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) ListingsCount() uint64 { return l.listingsCount }
func (l *Ledger) AuctionsCount() uint64 { return l.auctionsCount }

func copyListing(l *model.Listing) model.Listing {
	cp := *l
	cp.Price = new(big.Int).Set(l.Price)
	return cp
}

func copyAuction(a *model.Auction) model.Auction {
	cp := *a
	cp.FloorPrice = new(big.Int).Set(a.FloorPrice)
	cp.HighestBid = new(big.Int).Set(a.HighestBid)
	return cp
}

func (l *Ledger) addFunds(addr model.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	cur, ok := l.userFunds[addr]
	if !ok {
		cur = new(big.Int)
		l.userFunds[addr] = cur
	}
	cur.Add(cur, amount)
}
