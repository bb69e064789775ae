package nft

import (
	"errors"
	"testing"
	"time"

	"github.com/raulk/clock"

	"nft-exchange/internal/model"
	"nft-exchange/internal/wallet"
)

func newPermitFixture(t *testing.T) (*Collection, *clock.Mock, *wallet.Wallet) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	addr := model.DeriveAddress([]byte("cars-nft"))
	c := NewCollection("CarsNFT", "CARS", addr, 1337, clk)
	owner, err := wallet.New()
	if err != nil {
		t.Fatalf("wallet.New: %v", err)
	}
	if _, err := c.Mint(owner.Address(), "ipfs://car/1"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return c, clk, owner
}

func signPermit(t *testing.T, c *Collection, w *wallet.Wallet, spender model.Address, tokenID uint64, deadline int64) []byte {
	t.Helper()
	digest, err := c.PermitDigest(spender, tokenID, deadline)
	if err != nil {
		t.Fatalf("PermitDigest: %v", err)
	}
	sig, err := w.SignDigest(digest)
	if err != nil {
		t.Fatalf("SignDigest: %v", err)
	}
	return sig
}

func TestPermitApproves(t *testing.T) {
	c, clk, owner := newPermitFixture(t)
	deadline := clk.Now().Unix() + 3600

	sig := signPermit(t, c, owner, bob, 1, deadline)
	if err := c.Permit(bob, 1, deadline, sig); err != nil {
		t.Fatalf("Permit: %v", err)
	}
	got, _ := c.GetApproved(1)
	if got != bob {
		t.Fatalf("approved = %s, want %s", got, bob)
	}
	// Permit alone does not consume the nonce.
	if n, _ := c.Nonce(1); n != 0 {
		t.Fatalf("nonce = %d, want 0", n)
	}
}

func TestPermitExpired(t *testing.T) {
	c, clk, owner := newPermitFixture(t)
	deadline := clk.Now().Unix() + 10

	sig := signPermit(t, c, owner, bob, 1, deadline)
	clk.Add(11 * time.Second)
	if err := c.Permit(bob, 1, deadline, sig); !errors.Is(err, ErrPermitExpired) {
		t.Fatalf("err = %v, want %v", err, ErrPermitExpired)
	}
}

func TestPermitWrongSigner(t *testing.T) {
	c, clk, _ := newPermitFixture(t)
	deadline := clk.Now().Unix() + 3600

	stranger, err := wallet.New()
	if err != nil {
		t.Fatalf("wallet.New: %v", err)
	}
	sig := signPermit(t, c, stranger, bob, 1, deadline)
	if err := c.Permit(bob, 1, deadline, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidSignature)
	}
}

func TestPermitInvalidatedByTransfer(t *testing.T) {
	c, clk, owner := newPermitFixture(t)
	deadline := clk.Now().Unix() + 3600

	sig := signPermit(t, c, owner, bob, 1, deadline)

	// Owner moves the token before the permit is used; the nonce baked
	// into the digest is now stale.
	if err := c.TransferFrom(owner.Address(), owner.Address(), carol, 1); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if err := c.Permit(bob, 1, deadline, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("stale permit err = %v, want %v", err, ErrInvalidSignature)
	}
}

func TestSafeTransferFromWithPermit(t *testing.T) {
	c, clk, owner := newPermitFixture(t)
	deadline := clk.Now().Unix() + 3600

	sig := signPermit(t, c, owner, bob, 1, deadline)
	if err := c.SafeTransferFromWithPermit(bob, owner.Address(), carol, 1, deadline, sig); err != nil {
		t.Fatalf("SafeTransferFromWithPermit: %v", err)
	}
	got, _ := c.OwnerOf(1)
	if got != carol {
		t.Fatalf("owner = %s, want %s", got, carol)
	}
	if n, _ := c.Nonce(1); n != 1 {
		t.Fatalf("nonce = %d, want 1", n)
	}

	// The same signature cannot be replayed.
	if err := c.SafeTransferFromWithPermit(bob, carol, alice, 1, deadline, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("replay err = %v, want %v", err, ErrInvalidSignature)
	}
}
