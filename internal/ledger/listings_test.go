package ledger_test

import (
	"math/big"
	"testing"
	"time"

	"nft-exchange/internal/ledger"
	"nft-exchange/internal/model"
)

func TestCreateListing(t *testing.T) {
	f := newFixture(t)
	price := ether(t, "1")
	start, end := f.now(), f.now()+1000

	if err := f.led.CreateListing(f.seller, f.cars, 1, price, start, end); err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	lst, ok := f.led.GetListing(f.cars, 1)
	if !ok {
		t.Fatalf("listing not recorded")
	}
	if lst.Seller != f.seller || lst.Sold || lst.Cancelled {
		t.Fatalf("unexpected listing state: %+v", lst)
	}
	eq(t, lst.Price, price, "listing price")
	if f.led.ListingsCount() != 1 {
		t.Fatalf("listings count = %d, want 1", f.led.ListingsCount())
	}

	// The token moved into escrow.
	f.mustOwner(1, f.exchange)

	ev, ok := f.sink.last().(model.ListingCreated)
	if !ok {
		t.Fatalf("last event = %T, want ListingCreated", f.sink.last())
	}
	if ev.AssetKey != f.key || ev.Seller != f.seller || ev.StartTimestamp != start || ev.EndTimestamp != end {
		t.Fatalf("unexpected event: %+v", ev)
	}
	eq(t, ev.Price, price, "event price")
}

func TestCreateListingChecks(t *testing.T) {
	f := newFixture(t)
	price := ether(t, "1")

	wantErr(t, f.led.CreateListing(f.seller, f.cars, 1, big.NewInt(0), f.now(), f.now()+1000), ledger.ErrZeroPrice)
	wantErr(t, f.led.CreateListing(f.seller, f.cars, 1, nil, f.now(), f.now()+1000), ledger.ErrZeroPrice)
	wantErr(t, f.led.CreateListing(f.seller, f.cars, 1, price, 0, f.now()+1000), ledger.ErrInvalidTimestamps)
	wantErr(t, f.led.CreateListing(f.seller, f.cars, 1, price, f.now(), f.now()), ledger.ErrInvalidTimestamps)
	wantErr(t, f.led.CreateListing(f.seller, f.cars, 1, price, f.now()-100, f.now()), ledger.ErrInvalidTimestamps)
	wantErr(t, f.led.CreateListing(f.seller, model.DeriveAddress([]byte("nowhere")), 1, price, f.now(), f.now()+1000), ledger.ErrUnknownCollection)
	wantErr(t, f.led.CreateListing(f.buyer, f.cars, 1, price, f.now(), f.now()+1000), ledger.ErrNotTokenOwner)

	// A second token without an approval cannot be listed.
	if _, err := f.col.Mint(f.seller, "ipfs://car/2"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	wantErr(t, f.led.CreateListing(f.seller, f.cars, 2, price, f.now(), f.now()+1000), ledger.ErrNotApproved)

	// Failed attempts leave no listing behind.
	if _, ok := f.led.GetListing(f.cars, 1); ok {
		t.Fatalf("failed create left a listing")
	}
	if f.led.ListingsCount() != 0 {
		t.Fatalf("listings count = %d, want 0", f.led.ListingsCount())
	}

	f.mustListing(price)
	wantErr(t, f.led.CreateListing(f.seller, f.cars, 1, price, f.now(), f.now()+1000), ledger.ErrAlreadyListed)
}

func TestOperatorApprovalSuffices(t *testing.T) {
	f := newFixture(t)
	if _, err := f.col.Mint(f.seller, "ipfs://car/2"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := f.col.SetApprovalForAll(f.seller, f.exchange, true); err != nil {
		t.Fatalf("SetApprovalForAll: %v", err)
	}
	if err := f.led.CreateListing(f.seller, f.cars, 2, ether(t, "1"), f.now(), f.now()+1000); err != nil {
		t.Fatalf("CreateListing via operator approval: %v", err)
	}
}

func TestPurchase(t *testing.T) {
	f := newFixture(t)
	price := ether(t, "1")
	f.mustListing(price)

	if err := f.led.Purchase(f.buyer, f.cars, 1, price); err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	lst, _ := f.led.GetListing(f.cars, 1)
	if !lst.Sold || lst.Buyer != f.buyer {
		t.Fatalf("listing not settled: %+v", lst)
	}
	f.mustOwner(1, f.buyer)

	fee := model.CalcFee(price, feeBps)
	eq(t, f.settler.paid(f.seller), new(big.Int).Sub(price, fee), "seller payout")
	eq(t, f.led.Funds(f.feeAccount), fee, "fee account funds")
	eq(t, f.led.Funds(f.buyer), new(big.Int), "buyer funds")

	ev, ok := f.sink.last().(model.Purchase)
	if !ok {
		t.Fatalf("last event = %T, want Purchase", f.sink.last())
	}
	if ev.Seller != f.seller || ev.Buyer != f.buyer {
		t.Fatalf("unexpected event: %+v", ev)
	}
	eq(t, ev.Price, price, "event price")
}

func TestPurchaseOverpaymentCredited(t *testing.T) {
	f := newFixture(t)
	price := ether(t, "1")
	f.mustListing(price)

	if err := f.led.Purchase(f.buyer, f.cars, 1, ether(t, "1.3")); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	eq(t, f.led.Funds(f.buyer), ether(t, "0.3"), "buyer refund credit")

	// The seller still gets exactly price minus fee.
	fee := model.CalcFee(price, feeBps)
	eq(t, f.settler.paid(f.seller), new(big.Int).Sub(price, fee), "seller payout")
}

func TestPurchaseChecks(t *testing.T) {
	f := newFixture(t)
	price := ether(t, "1")

	wantErr(t, f.led.Purchase(f.buyer, f.cars, 1, price), ledger.ErrListingNotFound)

	// Not started yet.
	if err := f.led.CreateListing(f.seller, f.cars, 1, price, f.now()+100, f.now()+1000); err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	wantErr(t, f.led.Purchase(f.buyer, f.cars, 1, price), ledger.ErrListingNotStarted)

	f.clk.Add(100 * time.Second)
	wantErr(t, f.led.Purchase(f.seller, f.cars, 1, price), ledger.ErrSellerCannotCall)
	wantErr(t, f.led.Purchase(f.buyer, f.cars, 1, ether(t, "0.5")), ledger.ErrInsufficientValue)
	wantErr(t, f.led.Purchase(f.buyer, f.cars, 1, nil), ledger.ErrInsufficientValue)

	// Expired.
	f.clk.Add(1000 * time.Second)
	wantErr(t, f.led.Purchase(f.buyer, f.cars, 1, price), ledger.ErrListingEnded)

	// Cancelled: the seller relists the escrowed token and backs out
	// while the new listing is live.
	if err := f.led.CreateListing(f.seller, f.cars, 1, price, f.now(), f.now()+1000); err != nil {
		t.Fatalf("relist: %v", err)
	}
	if err := f.led.CancelListing(f.seller, f.cars, 1); err != nil {
		t.Fatalf("CancelListing: %v", err)
	}
	wantErr(t, f.led.Purchase(f.buyer, f.cars, 1, price), ledger.ErrListingCancelled)
}

func TestPurchaseTwice(t *testing.T) {
	f := newFixture(t)
	price := ether(t, "1")
	f.mustListing(price)

	if err := f.led.Purchase(f.buyer, f.cars, 1, price); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	wantErr(t, f.led.Purchase(f.bidder, f.cars, 1, price), ledger.ErrListingSold)
}

func TestCancelListing(t *testing.T) {
	f := newFixture(t)
	f.mustListing(ether(t, "1"))

	wantErr(t, f.led.CancelListing(f.buyer, f.cars, 1), ledger.ErrNotListingSeller)

	if err := f.led.CancelListing(f.seller, f.cars, 1); err != nil {
		t.Fatalf("CancelListing: %v", err)
	}
	lst, _ := f.led.GetListing(f.cars, 1)
	if !lst.Cancelled {
		t.Fatalf("listing not cancelled")
	}
	f.mustOwner(1, f.seller)

	if _, ok := f.sink.last().(model.ListingCancelled); !ok {
		t.Fatalf("last event = %T, want ListingCancelled", f.sink.last())
	}

	wantErr(t, f.led.CancelListing(f.seller, f.cars, 1), ledger.ErrListingCancelled)
	wantErr(t, f.led.CancelListing(f.seller, f.cars, 2), ledger.ErrListingNotFound)
}

func TestCancelThenRelist(t *testing.T) {
	f := newFixture(t)
	f.mustListing(ether(t, "1"))
	if err := f.led.CancelListing(f.seller, f.cars, 1); err != nil {
		t.Fatalf("CancelListing: %v", err)
	}

	// Escrow transfers cleared the approval; the seller re-approves and
	// lists again.
	if err := f.col.Approve(f.seller, f.exchange, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := f.led.CreateListing(f.seller, f.cars, 1, ether(t, "2"), f.now(), f.now()+500); err != nil {
		t.Fatalf("relist: %v", err)
	}
	if f.led.ListingsCount() != 2 {
		t.Fatalf("listings count = %d, want 2", f.led.ListingsCount())
	}
}

func TestUpdateListingPrice(t *testing.T) {
	f := newFixture(t)
	oldPrice := ether(t, "1")
	newPrice := ether(t, "2")
	f.mustListing(oldPrice)

	wantErr(t, f.led.UpdateListingPrice(f.buyer, f.cars, 1, newPrice), ledger.ErrNotListingSeller)
	wantErr(t, f.led.UpdateListingPrice(f.seller, f.cars, 1, big.NewInt(0)), ledger.ErrZeroPrice)
	wantErr(t, f.led.UpdateListingPrice(f.seller, f.cars, 2, newPrice), ledger.ErrListingNotFound)
	wantErr(t, f.led.UpdateListingPrice(f.seller, f.cars, 1, oldPrice), ledger.ErrSamePrice)

	if err := f.led.UpdateListingPrice(f.seller, f.cars, 1, newPrice); err != nil {
		t.Fatalf("UpdateListingPrice: %v", err)
	}
	lst, _ := f.led.GetListing(f.cars, 1)
	eq(t, lst.Price, newPrice, "updated price")

	ev, ok := f.sink.last().(model.ListingPriceUpdated)
	if !ok {
		t.Fatalf("last event = %T, want ListingPriceUpdated", f.sink.last())
	}
	eq(t, ev.OldPrice, oldPrice, "event old price")
	eq(t, ev.NewPrice, newPrice, "event new price")

	if err := f.led.Purchase(f.buyer, f.cars, 1, newPrice); err != nil {
		t.Fatalf("Purchase at new price: %v", err)
	}
	wantErr(t, f.led.UpdateListingPrice(f.seller, f.cars, 1, oldPrice), ledger.ErrListingSold)
}

func TestExpiredListingImmutable(t *testing.T) {
	f := newFixture(t)
	f.mustListing(ether(t, "1"))
	f.clk.Add(1001 * time.Second)

	wantErr(t, f.led.CancelListing(f.seller, f.cars, 1), ledger.ErrListingEnded)
	wantErr(t, f.led.UpdateListingPrice(f.seller, f.cars, 1, ether(t, "2")), ledger.ErrListingEnded)

	// The token stays in custody until the seller relists it.
	f.mustOwner(1, f.exchange)
}

func TestRelistExpiredInPlace(t *testing.T) {
	f := newFixture(t)
	f.mustListing(ether(t, "1"))
	f.clk.Add(1001 * time.Second)

	// Only the stranded seller may relist the escrowed token.
	wantErr(t, f.led.CreateListing(f.buyer, f.cars, 1, ether(t, "2"), f.now(), f.now()+1000), ledger.ErrNotTokenOwner)

	// The seller needs no fresh approval: the exchange already holds
	// the token, so no transfer happens either.
	if err := f.led.CreateListing(f.seller, f.cars, 1, ether(t, "2"), f.now(), f.now()+1000); err != nil {
		t.Fatalf("relist: %v", err)
	}
	f.mustOwner(1, f.exchange)
	lst, _ := f.led.GetListing(f.cars, 1)
	eq(t, lst.Price, ether(t, "2"), "relisted price")

	// Cancelling while live returns the token to the seller.
	if err := f.led.CancelListing(f.seller, f.cars, 1); err != nil {
		t.Fatalf("CancelListing: %v", err)
	}
	f.mustOwner(1, f.seller)
}
