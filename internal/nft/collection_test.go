package nft

import (
	"errors"
	"testing"
	"time"

	"github.com/raulk/clock"

	"nft-exchange/internal/model"
)

var (
	alice = model.DeriveAddress([]byte("alice"))
	bob   = model.DeriveAddress([]byte("bob"))
	carol = model.DeriveAddress([]byte("carol"))
)

func newTestCollection() (*Collection, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	addr := model.DeriveAddress([]byte("cars-nft"))
	return NewCollection("CarsNFT", "CARS", addr, 1337, clk), clk
}

func TestMintAndOwnership(t *testing.T) {
	c, _ := newTestCollection()

	id, err := c.Mint(alice, "ipfs://car/1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if id != 1 {
		t.Fatalf("first token id = %d, want 1", id)
	}
	id2, _ := c.Mint(bob, "ipfs://car/2")
	if id2 != 2 {
		t.Fatalf("second token id = %d, want 2", id2)
	}

	owner, err := c.OwnerOf(1)
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	if owner != alice {
		t.Fatalf("owner = %s, want %s", owner, alice)
	}
	uri, _ := c.TokenURI(1)
	if uri != "ipfs://car/1" {
		t.Fatalf("uri = %q", uri)
	}

	if _, err := c.OwnerOf(99); !errors.Is(err, ErrInvalidTokenID) {
		t.Fatalf("OwnerOf(99) err = %v, want %v", err, ErrInvalidTokenID)
	}
	if _, err := c.Mint(model.ZeroAddress, ""); !errors.Is(err, ErrMintToZero) {
		t.Fatalf("mint to zero err = %v", err)
	}
}

func TestApprovals(t *testing.T) {
	c, _ := newTestCollection()
	c.Mint(alice, "")

	if err := c.Approve(bob, carol, 1); !errors.Is(err, ErrApproveUnauthzed) {
		t.Fatalf("stranger approve err = %v", err)
	}
	if err := c.Approve(alice, alice, 1); !errors.Is(err, ErrApproveToOwner) {
		t.Fatalf("approve to owner err = %v", err)
	}
	if err := c.Approve(alice, bob, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	got, _ := c.GetApproved(1)
	if got != bob {
		t.Fatalf("approved = %s, want %s", got, bob)
	}

	// An operator may also approve.
	if err := c.SetApprovalForAll(alice, carol, true); err != nil {
		t.Fatalf("SetApprovalForAll: %v", err)
	}
	if !c.IsApprovedForAll(alice, carol) {
		t.Fatalf("carol should be an operator for alice")
	}
	if err := c.Approve(carol, carol, 1); err != nil {
		t.Fatalf("operator approve: %v", err)
	}
	if err := c.SetApprovalForAll(alice, alice, true); !errors.Is(err, ErrOperatorIsCaller) {
		t.Fatalf("self operator err = %v", err)
	}
}

func TestTransferFrom(t *testing.T) {
	c, _ := newTestCollection()
	c.Mint(alice, "")

	if err := c.TransferFrom(bob, alice, bob, 1); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("unauthorized transfer err = %v", err)
	}
	if err := c.TransferFrom(alice, bob, carol, 1); !errors.Is(err, ErrNotOwnerFrom) {
		t.Fatalf("wrong from err = %v", err)
	}
	if err := c.TransferFrom(alice, alice, model.ZeroAddress, 1); !errors.Is(err, ErrZeroReceiver) {
		t.Fatalf("zero receiver err = %v", err)
	}

	c.Approve(alice, bob, 1)
	if err := c.TransferFrom(bob, alice, carol, 1); err != nil {
		t.Fatalf("approved transfer: %v", err)
	}
	owner, _ := c.OwnerOf(1)
	if owner != carol {
		t.Fatalf("owner = %s, want %s", owner, carol)
	}

	// Approval cleared, nonce advanced.
	if got, _ := c.GetApproved(1); got != "" {
		t.Fatalf("approval not cleared: %s", got)
	}
	if n, _ := c.Nonce(1); n != 1 {
		t.Fatalf("nonce = %d, want 1", n)
	}

	// bob's old approval is gone now.
	if err := c.TransferFrom(bob, carol, alice, 1); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stale approval err = %v", err)
	}
}

func TestTransferHookAborts(t *testing.T) {
	c, _ := newTestCollection()
	c.Mint(alice, "")

	hookErr := errors.New("receiver says no")
	c.SetTransferHook(bob, func(operator, from, to model.Address, tokenID uint64) error {
		return hookErr
	})

	err := c.TransferFrom(alice, alice, bob, 1)
	if err == nil || !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	c, _ := newTestCollection()
	c.Mint(alice, "one")
	c.Approve(alice, bob, 1)

	restore := c.Snapshot()

	c.TransferFrom(alice, alice, carol, 1)
	c.Mint(bob, "two")
	c.SetApprovalForAll(carol, bob, true)

	restore()

	owner, _ := c.OwnerOf(1)
	if owner != alice {
		t.Fatalf("owner after restore = %s, want %s", owner, alice)
	}
	if got, _ := c.GetApproved(1); got != bob {
		t.Fatalf("approval after restore = %s, want %s", got, bob)
	}
	if n, _ := c.Nonce(1); n != 0 {
		t.Fatalf("nonce after restore = %d, want 0", n)
	}
	if _, err := c.OwnerOf(2); !errors.Is(err, ErrInvalidTokenID) {
		t.Fatalf("token 2 should not exist after restore")
	}
	if c.IsApprovedForAll(carol, bob) {
		t.Fatalf("operator approval should be rolled back")
	}

	// Minting again reuses the rolled-back id.
	id, _ := c.Mint(bob, "two-again")
	if id != 2 {
		t.Fatalf("id after restore = %d, want 2", id)
	}
}
