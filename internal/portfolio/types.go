// Package portfolio implements the position engine, price lookup, net-worth
// engine, and XIRR solver: the trading-activity half of the ledger.
package portfolio

import (
	"strings"
	"time"

	"github.com/adrianvollmer/solvency/internal/money"
)

// ActivityKind is one of the thirteen operations a trading activity can
// represent.
type ActivityKind string

const (
	Buy           ActivityKind = "Buy"
	Sell          ActivityKind = "Sell"
	Dividend      ActivityKind = "Dividend"
	Interest      ActivityKind = "Interest"
	Deposit       ActivityKind = "Deposit"
	Withdrawal    ActivityKind = "Withdrawal"
	AddHolding    ActivityKind = "AddHolding"
	RemoveHolding ActivityKind = "RemoveHolding"
	TransferIn    ActivityKind = "TransferIn"
	TransferOut   ActivityKind = "TransferOut"
	Fee           ActivityKind = "Fee"
	Tax           ActivityKind = "Tax"
	Split         ActivityKind = "Split"
)

// Activity is a single trading-ledger entry.
type Activity struct {
	ID            int64
	Date          money.Date
	Symbol        string
	Quantity      float64 // for Split, this is the ratio R
	Kind          ActivityKind
	UnitPriceCents *money.Cents
	Currency      string
	FeeCents      money.Cents
	AccountID     *int64
	Notes         string
	Created       time.Time
	Updated       time.Time
}

// cashSymbolPrefix marks a symbol as a cash pseudo-symbol per spec.md §3.
const cashSymbolPrefix = "$CASH-"

// IsCashSymbol reports whether symbol is a cash pseudo-symbol of the form
// $CASH-<CCY>.
func IsCashSymbol(symbol string) bool {
	return strings.HasPrefix(symbol, cashSymbolPrefix)
}

// CashSymbol returns the cash pseudo-symbol for a currency code.
func CashSymbol(currency string) string {
	return cashSymbolPrefix + strings.ToUpper(currency)
}
