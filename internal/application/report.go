package application

import (
	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/shopspring/decimal"
)

type AccountBalance struct {
	ID      domain.AccountID
	Balance decimal.Decimal
}

// SnapshotBalances reads every account under its own lock. Accounts are
// read one at a time, so the total is only exact once the service is idle.
func SnapshotBalances(accounts ports.AccountDirectory) []AccountBalance {
	all := accounts.Accounts()
	balances := make([]AccountBalance, 0, len(all))
	for _, account := range all {
		account.Lock()
		balance := account.Balance()
		account.Unlock()

		balances = append(balances, AccountBalance{ID: account.ID(), Balance: balance})
	}

	return balances
}

func TotalBalance(balances []AccountBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total
}
