package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/big"

	"github.com/google/uuid"
	"github.com/raulk/clock"

	"nft-exchange/internal/db"
	"nft-exchange/internal/ledger"
	"nft-exchange/internal/model"
	"nft-exchange/internal/nft"
)

// PublishFunc broadcasts a WS message for an asset key.
type PublishFunc func(assetKey, msgType string, data any)

var (
	ErrNoWallet            = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrUnknownCollection   = errors.New("unknown collection")
)

type Config struct {
	FeeAccount model.Address
	FeeBps     int64
	ChainID    uint64
}

// Engine owns every piece of trading state: the ledger and all token
// collections live behind one goroutine, so entry points execute one
// at a time in arrival order. Public methods send a command to that
// goroutine and wait for its reply.
type Engine struct {
	cmdCh   chan command
	store   *db.Store
	publish PublishFunc
	clock   clock.Clock
	cfg     Config

	exchange    model.Address
	ledger      *ledger.Ledger
	collections map[model.Address]*nft.Collection
	sink        *eventBuffer
	settler     *txSettler
}

func New(store *db.Store, pub PublishFunc, cfg Config, clk clock.Clock) *Engine {
	e := &Engine{
		cmdCh:       make(chan command, 64),
		store:       store,
		publish:     pub,
		clock:       clk,
		cfg:         cfg,
		exchange:    model.DeriveAddress([]byte(fmt.Sprintf("exchange/%d", cfg.ChainID))),
		collections: make(map[model.Address]*nft.Collection),
		sink:        &eventBuffer{},
		settler:     &txSettler{},
	}
	e.ledger = ledger.New(ledger.Config{
		Exchange:   e.exchange,
		FeeAccount: cfg.FeeAccount,
		FeeBps:     cfg.FeeBps,
	}, e, e.settler, e.sink, clk)
	return e
}

// Boot re-registers known collections so their addresses resolve
// again. Token and market state is process-lifetime; history lives in
// the event log.
func (e *Engine) Boot(ctx context.Context) error {
	rows, err := e.store.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, c := range rows {
		e.collections[c.Address] = nft.NewCollection(c.Name, c.Symbol, c.Address, e.cfg.ChainID, e.clock)
	}
	log.Printf("[engine] booted: %d collections, exchange=%s fee_account=%s fee_bps=%d",
		len(rows), e.exchange, e.cfg.FeeAccount, e.cfg.FeeBps)
	return nil
}

func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmdCh:
			cmd.exec(e)
		}
	}
}

func (e *Engine) Exchange() model.Address { return e.exchange }

// Registry resolves a collection address for the ledger, bound to the
// exchange as operator. Runs on the engine goroutine.
func (e *Engine) Registry(addr model.Address) (ledger.Registry, error) {
	c, ok := e.collections[addr]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return c.Bind(e.exchange), nil
}

// ── Commands ─────────────────────────────────────────

type command interface{ exec(e *Engine) }

type callCmd struct {
	fn func(e *Engine) error
	ch chan<- error
}

type viewCmd struct {
	fn func(e *Engine) any
	ch chan<- any
}

func (c callCmd) exec(e *Engine) { c.ch <- c.fn(e) }
func (c viewCmd) exec(e *Engine) { c.ch <- c.fn(e) }

// do sends a mutating command to the engine goroutine and waits.
func (e *Engine) do(fn func(e *Engine) error) error {
	ch := make(chan error, 1)
	e.cmdCh <- callCmd{fn: fn, ch: ch}
	return <-ch
}

func (e *Engine) view(fn func(e *Engine) any) any {
	ch := make(chan any, 1)
	e.cmdCh <- viewCmd{fn: fn, ch: ch}
	return <-ch
}

// ── Settlement ───────────────────────────────────────

// txSettler credits payouts to wallet rows inside the transaction of
// the entry point that produced them.
type txSettler struct{ tx *sql.Tx }

func (s *txSettler) Pay(to model.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if s.tx == nil {
		return errors.New("no settlement transaction")
	}
	return db.WalletAdd(s.tx, to, amount)
}

type eventBuffer struct{ evs []model.Event }

func (b *eventBuffer) Append(ev model.Event) { b.evs = append(b.evs, ev) }

func (b *eventBuffer) drain() []model.Event {
	out := b.evs
	b.evs = nil
	return out
}

// withTx runs one ledger entry point inside a wallet transaction:
// debit the attached value, run the operation (payouts credit wallets
// through the settler), persist the emitted events, commit, then
// publish. Any failure rolls the wallet side back; the ledger rolls
// itself back.
func (e *Engine) withTx(spender model.Address, value *big.Int, fn func() error) error {
	ctx := context.Background()
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	defer func() { e.sink.drain() }()

	if value != nil && value.Sign() > 0 {
		w, err := db.GetWalletForUpdate(tx, spender)
		if err != nil {
			return ErrNoWallet
		}
		if w.Balance.Cmp(value) < 0 {
			return ErrInsufficientBalance
		}
		if err := db.WalletAdd(tx, spender, new(big.Int).Neg(value)); err != nil {
			return err
		}
	}

	e.settler.tx = tx
	defer func() { e.settler.tx = nil }()

	if err := fn(); err != nil {
		return err
	}

	events := e.sink.drain()
	for _, ev := range events {
		var kp *string
		if key := string(ev.Key()); key != "" {
			kp = &key
		}
		if err := db.AppendEvent(tx, kp, ev.Type(), ev); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if e.publish != nil {
		for _, ev := range events {
			e.publish(string(ev.Key()), ev.Type(), ev)
		}
	}
	return nil
}

// ── Listings ─────────────────────────────────────────

func (e *Engine) CreateListing(caller, nftAddr model.Address, tokenID uint64, price *big.Int, start, end int64) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.CreateListing(caller, nftAddr, tokenID, price, start, end)
		})
	})
}

func (e *Engine) Purchase(caller, nftAddr model.Address, tokenID uint64, value *big.Int) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, value, func() error {
			return e.ledger.Purchase(caller, nftAddr, tokenID, value)
		})
	})
}

func (e *Engine) CancelListing(caller, nftAddr model.Address, tokenID uint64) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.CancelListing(caller, nftAddr, tokenID)
		})
	})
}

func (e *Engine) UpdateListingPrice(caller, nftAddr model.Address, tokenID uint64, price *big.Int) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.UpdateListingPrice(caller, nftAddr, tokenID, price)
		})
	})
}

// ── Auctions ─────────────────────────────────────────

func (e *Engine) CreateAuction(caller, nftAddr model.Address, tokenID uint64, floorPrice *big.Int, start, end int64) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.CreateAuction(caller, nftAddr, tokenID, floorPrice, start, end)
		})
	})
}

func (e *Engine) Bid(caller, nftAddr model.Address, tokenID uint64, value *big.Int) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, value, func() error {
			return e.ledger.Bid(caller, nftAddr, tokenID, value)
		})
	})
}

func (e *Engine) CancelAuction(caller, nftAddr model.Address, tokenID uint64) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.CancelAuction(caller, nftAddr, tokenID)
		})
	})
}

func (e *Engine) EndAuction(caller, nftAddr model.Address, tokenID uint64) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.EndAuction(caller, nftAddr, tokenID)
		})
	})
}

func (e *Engine) WithdrawBid(caller, nftAddr model.Address, tokenID uint64) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.WithdrawBid(caller, nftAddr, tokenID)
		})
	})
}

// ── Offers ───────────────────────────────────────────

func (e *Engine) CreateOffer(caller, nftAddr model.Address, tokenID uint64, value *big.Int) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, value, func() error {
			return e.ledger.CreateOffer(caller, nftAddr, tokenID, value)
		})
	})
}

func (e *Engine) CancelOffer(caller, nftAddr model.Address, tokenID uint64) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.CancelOffer(caller, nftAddr, tokenID)
		})
	})
}

func (e *Engine) AcceptOffer(caller, nftAddr model.Address, tokenID uint64, buyer model.Address) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.AcceptOffer(caller, nftAddr, tokenID, buyer)
		})
	})
}

func (e *Engine) AcceptOfferWithPermit(caller, nftAddr model.Address, tokenID uint64, buyer model.Address, deadline int64, sig []byte) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.AcceptOfferWithPermit(caller, nftAddr, tokenID, buyer, deadline, sig)
		})
	})
}

// ── Funds ────────────────────────────────────────────

func (e *Engine) WithdrawFunds(caller model.Address) error {
	return e.do(func(e *Engine) error {
		return e.withTx(caller, nil, func() error {
			return e.ledger.WithdrawFunds(caller)
		})
	})
}

// ── Collections ──────────────────────────────────────

func (e *Engine) CreateCollection(name, symbol string) (model.Address, error) {
	var addr model.Address
	err := e.do(func(e *Engine) error {
		seed := uuid.New()
		addr = model.DeriveAddress(seed[:])
		if err := e.store.InsertCollection(context.Background(), addr, name, symbol); err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}
		e.collections[addr] = nft.NewCollection(name, symbol, addr, e.cfg.ChainID, e.clock)
		log.Printf("[engine] collection %q deployed at %s", name, addr)
		return nil
	})
	return addr, err
}

func (e *Engine) Mint(collection, to model.Address, uri string) (uint64, error) {
	var tokenID uint64
	err := e.do(func(e *Engine) error {
		c, ok := e.collections[collection]
		if !ok {
			return ErrUnknownCollection
		}
		id, err := c.Mint(to, uri)
		if err != nil {
			return err
		}
		tokenID = id
		return nil
	})
	return tokenID, err
}

func (e *Engine) Approve(caller, collection model.Address, tokenID uint64, approved model.Address) error {
	return e.do(func(e *Engine) error {
		c, ok := e.collections[collection]
		if !ok {
			return ErrUnknownCollection
		}
		return c.Approve(caller, approved, tokenID)
	})
}

func (e *Engine) SetApprovalForAll(caller, collection, operator model.Address, approved bool) error {
	return e.do(func(e *Engine) error {
		c, ok := e.collections[collection]
		if !ok {
			return ErrUnknownCollection
		}
		return c.SetApprovalForAll(caller, operator, approved)
	})
}

type TokenInfo struct {
	Collection model.Address `json:"collection"`
	TokenID    uint64        `json:"token_id"`
	Owner      model.Address `json:"owner"`
	Approved   model.Address `json:"approved,omitempty"`
	Nonce      uint64        `json:"nonce"`
	URI        string        `json:"uri,omitempty"`
}

func (e *Engine) TokenInfo(collection model.Address, tokenID uint64) (TokenInfo, error) {
	var info TokenInfo
	err := e.do(func(e *Engine) error {
		c, ok := e.collections[collection]
		if !ok {
			return ErrUnknownCollection
		}
		owner, err := c.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		approved, _ := c.GetApproved(tokenID)
		nonce, _ := c.Nonce(tokenID)
		uri, _ := c.TokenURI(tokenID)
		info = TokenInfo{
			Collection: collection, TokenID: tokenID,
			Owner: owner, Approved: approved, Nonce: nonce, URI: uri,
		}
		return nil
	})
	return info, err
}

// PermitDigest returns the message a token owner signs to authorize
// spender. The API layer signs it with the user's stored key.
func (e *Engine) PermitDigest(collection, spender model.Address, tokenID uint64, deadline int64) ([]byte, error) {
	var digest []byte
	err := e.do(func(e *Engine) error {
		c, ok := e.collections[collection]
		if !ok {
			return ErrUnknownCollection
		}
		d, err := c.PermitDigest(spender, tokenID, deadline)
		if err != nil {
			return err
		}
		digest = d
		return nil
	})
	return digest, err
}

// ── Views ────────────────────────────────────────────

func (e *Engine) Listings() []model.Listing {
	return e.view(func(e *Engine) any { return e.ledger.Listings() }).([]model.Listing)
}

func (e *Engine) GetListing(nftAddr model.Address, tokenID uint64) (model.Listing, bool) {
	type res struct {
		lst model.Listing
		ok  bool
	}
	r := e.view(func(e *Engine) any {
		lst, ok := e.ledger.GetListing(nftAddr, tokenID)
		return res{lst, ok}
	}).(res)
	return r.lst, r.ok
}

func (e *Engine) Auctions() []model.Auction {
	return e.view(func(e *Engine) any { return e.ledger.Auctions() }).([]model.Auction)
}

func (e *Engine) GetAuction(nftAddr model.Address, tokenID uint64) (model.Auction, bool) {
	type res struct {
		a  model.Auction
		ok bool
	}
	r := e.view(func(e *Engine) any {
		a, ok := e.ledger.GetAuction(nftAddr, tokenID)
		return res{a, ok}
	}).(res)
	return r.a, r.ok
}

func (e *Engine) OffersFor(nftAddr model.Address, tokenID uint64) []model.Offer {
	return e.view(func(e *Engine) any { return e.ledger.OffersFor(nftAddr, tokenID) }).([]model.Offer)
}

func (e *Engine) Funds(addr model.Address) *big.Int {
	return e.view(func(e *Engine) any { return e.ledger.Funds(addr) }).(*big.Int)
}

func (e *Engine) BidOf(nftAddr model.Address, tokenID uint64, bidder model.Address) *big.Int {
	return e.view(func(e *Engine) any { return e.ledger.BidOf(nftAddr, tokenID, bidder) }).(*big.Int)
}

type Stats struct {
	ListingsTotal uint64 `json:"listings_total"`
	AuctionsTotal uint64 `json:"auctions_total"`
	FeeFundsWei   string `json:"fee_funds_wei"`
}

func (e *Engine) Stats() Stats {
	return e.view(func(e *Engine) any {
		return Stats{
			ListingsTotal: e.ledger.ListingsCount(),
			AuctionsTotal: e.ledger.AuctionsCount(),
			FeeFundsWei:   e.ledger.Funds(e.cfg.FeeAccount).String(),
		}
	}).(Stats)
}
