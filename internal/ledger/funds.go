package ledger

import (
	"math/big"

	"nft-exchange/internal/model"
)

// WithdrawFunds pays out the caller's entire internal balance. The
// balance is zeroed before the settler is invoked, so a reentrant
// withdrawal attempt finds nothing to take even if the guard were
// somehow bypassed.
func (l *Ledger) WithdrawFunds(caller model.Address) error {
	return l.run(nil, func() error {
		amount, ok := l.userFunds[caller]
		if !ok || amount.Sign() == 0 {
			return ErrNoFunds
		}

		payout := new(big.Int).Set(amount)
		delete(l.userFunds, caller)

		if err := l.settler.Pay(caller, payout); err != nil {
			return err
		}

		l.emit(model.FundsWithdrawn{
			Account:   caller,
			Amount:    payout,
			Timestamp: l.now(),
		})
		return nil
	})
}
