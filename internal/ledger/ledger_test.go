package ledger_test

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/raulk/clock"

	"nft-exchange/internal/ledger"
	"nft-exchange/internal/model"
	"nft-exchange/internal/nft"
)

// memSettler records outbound payouts. onPay, when set, runs before the
// payout is recorded and may fail or reenter the ledger.
type memSettler struct {
	payouts map[model.Address]*big.Int
	onPay   func(to model.Address, amount *big.Int) error
}

func newMemSettler() *memSettler {
	return &memSettler{payouts: make(map[model.Address]*big.Int)}
}

func (s *memSettler) Pay(to model.Address, amount *big.Int) error {
	if s.onPay != nil {
		if err := s.onPay(to, amount); err != nil {
			return err
		}
	}
	cur, ok := s.payouts[to]
	if !ok {
		cur = new(big.Int)
		s.payouts[to] = cur
	}
	cur.Add(cur, amount)
	return nil
}

func (s *memSettler) paid(to model.Address) *big.Int {
	if v, ok := s.payouts[to]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

type memSink struct {
	events []model.Event
}

func (s *memSink) Append(ev model.Event) { s.events = append(s.events, ev) }

func (s *memSink) last() model.Event {
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

type mapResolver map[model.Address]ledger.Registry

func (r mapResolver) Registry(addr model.Address) (ledger.Registry, error) {
	reg, ok := r[addr]
	if !ok {
		return nil, fmt.Errorf("no registry for %s", addr)
	}
	return reg, nil
}

// fixture is one exchange with a single collection and one token minted
// to seller and approved for the exchange.
type fixture struct {
	t   *testing.T
	clk *clock.Mock
	led *ledger.Ledger
	col *nft.Collection

	settler *memSettler
	sink    *memSink

	cars       model.Address
	exchange   model.Address
	feeAccount model.Address
	seller     model.Address
	buyer      model.Address
	bidder     model.Address
	key        model.AssetKey
}

const feeBps = 100

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))

	f := &fixture{
		t:          t,
		clk:        clk,
		settler:    newMemSettler(),
		sink:       &memSink{},
		cars:       model.DeriveAddress([]byte("cars-nft")),
		exchange:   model.DeriveAddress([]byte("exchange")),
		feeAccount: model.DeriveAddress([]byte("fee-account")),
		seller:     model.DeriveAddress([]byte("seller")),
		buyer:      model.DeriveAddress([]byte("buyer")),
		bidder:     model.DeriveAddress([]byte("bidder")),
	}
	f.col = nft.NewCollection("CarsNFT", "CARS", f.cars, 1337, clk)
	f.led = ledger.New(ledger.Config{
		Exchange:   f.exchange,
		FeeAccount: f.feeAccount,
		FeeBps:     feeBps,
	}, mapResolver{f.cars: f.col.Bind(f.exchange)}, f.settler, f.sink, clk)

	if _, err := f.col.Mint(f.seller, "ipfs://car/1"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := f.col.Approve(f.seller, f.exchange, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	key, err := model.AssetKeyFor(f.cars, 1)
	if err != nil {
		t.Fatalf("AssetKeyFor: %v", err)
	}
	f.key = key
	return f
}

func (f *fixture) now() int64 { return f.clk.Now().Unix() }

func (f *fixture) mustOwner(tokenID uint64, want model.Address) {
	f.t.Helper()
	got, err := f.col.OwnerOf(tokenID)
	if err != nil {
		f.t.Fatalf("OwnerOf(%d): %v", tokenID, err)
	}
	if got != want {
		f.t.Fatalf("owner of %d = %s, want %s", tokenID, got, want)
	}
}

func (f *fixture) mustListing(price *big.Int) {
	f.t.Helper()
	if err := f.led.CreateListing(f.seller, f.cars, 1, price, f.now(), f.now()+1000); err != nil {
		f.t.Fatalf("CreateListing: %v", err)
	}
}

func (f *fixture) mustAuction(floor *big.Int) {
	f.t.Helper()
	if err := f.led.CreateAuction(f.seller, f.cars, 1, floor, f.now(), f.now()+1000); err != nil {
		f.t.Fatalf("CreateAuction: %v", err)
	}
}

func ether(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := model.ParseEther(s)
	if err != nil {
		t.Fatalf("ParseEther(%q): %v", s, err)
	}
	return v
}

func wantErr(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("err = %v, want %v", got, want)
	}
}

func eq(t *testing.T, got, want *big.Int, what string) {
	t.Helper()
	if got.Cmp(want) != 0 {
		t.Fatalf("%s = %s, want %s", what, got, want)
	}
}
