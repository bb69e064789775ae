// Package nft implements in-process token collections: minting,
// ownership, approvals and permit-based approvals. A Collection is the
// exchange-side model of one deployed token contract.
package nft

import (
	"errors"
	"fmt"

	"github.com/raulk/clock"

	"nft-exchange/internal/model"
)

var (
	ErrInvalidTokenID    = errors.New("ERC721: invalid token ID")
	ErrZeroReceiver      = errors.New("Receiver can't be Zero address")
	ErrNotOwnerFrom      = errors.New("ERC721: transfer from incorrect owner")
	ErrNotAuthorized     = errors.New("ERC721: caller is not token owner or approved")
	ErrApproveUnauthzed  = errors.New("ERC721: approve caller is not token owner or approved for all")
	ErrApproveToOwner    = errors.New("ERC721: approval to current owner")
	ErrOperatorIsCaller  = errors.New("ERC721: approve to caller")
	ErrMintToZero        = errors.New("ERC721: mint to the zero address")
)

// TransferHook runs after a token lands on the registered receiver. A
// non-nil error aborts the transfer; callers are expected to roll back.
// This mirrors on-chain receiver callbacks and is the reentry surface
// the exchange guards against.
type TransferHook func(operator, from, to model.Address, tokenID uint64) error

type Collection struct {
	name    string
	symbol  string
	addr    model.Address
	chainID uint64
	clock   clock.Clock

	nextID    uint64
	owners    map[uint64]model.Address
	uris      map[uint64]string
	approved  map[uint64]model.Address
	operators map[model.Address]map[model.Address]bool
	nonces    map[uint64]uint64
	hooks     map[model.Address]TransferHook
}

func NewCollection(name, symbol string, addr model.Address, chainID uint64, clk clock.Clock) *Collection {
	return &Collection{
		name:      name,
		symbol:    symbol,
		addr:      addr,
		chainID:   chainID,
		clock:     clk,
		owners:    make(map[uint64]model.Address),
		uris:      make(map[uint64]string),
		approved:  make(map[uint64]model.Address),
		operators: make(map[model.Address]map[model.Address]bool),
		nonces:    make(map[uint64]uint64),
		hooks:     make(map[model.Address]TransferHook),
	}
}

func (c *Collection) Name() string           { return c.name }
func (c *Collection) Symbol() string         { return c.symbol }
func (c *Collection) Address() model.Address { return c.addr }

// SetTransferHook registers a callback invoked whenever a token is
// transferred to addr.
func (c *Collection) SetTransferHook(addr model.Address, hook TransferHook) {
	c.hooks[addr] = hook
}

// Mint creates the next token for `to` and returns its id. Token ids
// start at 1.
func (c *Collection) Mint(to model.Address, uri string) (uint64, error) {
	if to.IsZero() {
		return 0, ErrMintToZero
	}
	c.nextID++
	id := c.nextID
	c.owners[id] = to
	c.uris[id] = uri
	return id, nil
}

func (c *Collection) OwnerOf(tokenID uint64) (model.Address, error) {
	owner, ok := c.owners[tokenID]
	if !ok {
		return "", ErrInvalidTokenID
	}
	return owner, nil
}

func (c *Collection) TokenURI(tokenID uint64) (string, error) {
	if _, ok := c.owners[tokenID]; !ok {
		return "", ErrInvalidTokenID
	}
	return c.uris[tokenID], nil
}

func (c *Collection) GetApproved(tokenID uint64) (model.Address, error) {
	if _, ok := c.owners[tokenID]; !ok {
		return "", ErrInvalidTokenID
	}
	return c.approved[tokenID], nil
}

func (c *Collection) IsApprovedForAll(owner, operator model.Address) bool {
	return c.operators[owner][operator]
}

// Nonce returns the per-token counter mixed into permit digests. It
// advances on every transfer, which is what invalidates old permits.
func (c *Collection) Nonce(tokenID uint64) (uint64, error) {
	if _, ok := c.owners[tokenID]; !ok {
		return 0, ErrInvalidTokenID
	}
	return c.nonces[tokenID], nil
}

func (c *Collection) Approve(caller, to model.Address, tokenID uint64) error {
	owner, ok := c.owners[tokenID]
	if !ok {
		return ErrInvalidTokenID
	}
	if to == owner {
		return ErrApproveToOwner
	}
	if caller != owner && !c.IsApprovedForAll(owner, caller) {
		return ErrApproveUnauthzed
	}
	c.approved[tokenID] = to
	return nil
}

func (c *Collection) SetApprovalForAll(caller, operator model.Address, approved bool) error {
	if operator == caller {
		return ErrOperatorIsCaller
	}
	if c.operators[caller] == nil {
		c.operators[caller] = make(map[model.Address]bool)
	}
	c.operators[caller][operator] = approved
	return nil
}

// TransferFrom moves tokenID from `from` to `to` on behalf of
// `operator`, which must be the owner, the approved address or an
// operator. The token's approval is cleared and its nonce advanced.
// The receiver's transfer hook, if any, runs last.
func (c *Collection) TransferFrom(operator, from, to model.Address, tokenID uint64) error {
	owner, ok := c.owners[tokenID]
	if !ok {
		return ErrInvalidTokenID
	}
	if from != owner {
		return ErrNotOwnerFrom
	}
	if to.IsZero() {
		return ErrZeroReceiver
	}
	if operator != owner && operator != c.approved[tokenID] && !c.IsApprovedForAll(owner, operator) {
		return ErrNotAuthorized
	}
	c.owners[tokenID] = to
	delete(c.approved, tokenID)
	c.nonces[tokenID]++
	if hook := c.hooks[to]; hook != nil {
		if err := hook(operator, from, to, tokenID); err != nil {
			return fmt.Errorf("receiver rejected transfer: %w", err)
		}
	}
	return nil
}

// Snapshot captures the full collection state and returns a closure
// that restores it. Callers drop the closure on success and invoke it
// to undo a failed multi-step operation.
func (c *Collection) Snapshot() func() {
	owners := make(map[uint64]model.Address, len(c.owners))
	for k, v := range c.owners {
		owners[k] = v
	}
	uris := make(map[uint64]string, len(c.uris))
	for k, v := range c.uris {
		uris[k] = v
	}
	approved := make(map[uint64]model.Address, len(c.approved))
	for k, v := range c.approved {
		approved[k] = v
	}
	operators := make(map[model.Address]map[model.Address]bool, len(c.operators))
	for owner, ops := range c.operators {
		cp := make(map[model.Address]bool, len(ops))
		for op, v := range ops {
			cp[op] = v
		}
		operators[owner] = cp
	}
	nonces := make(map[uint64]uint64, len(c.nonces))
	for k, v := range c.nonces {
		nonces[k] = v
	}
	nextID := c.nextID
	return func() {
		c.owners = owners
		c.uris = uris
		c.approved = approved
		c.operators = operators
		c.nonces = nonces
		c.nextID = nextID
	}
}
