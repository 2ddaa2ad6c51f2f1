// Package statement parses OFX bank statements, derives merchant labels,
// filters and groups the parsed transactions, keeps per-session selection
// state and imports the selected transactions as paid entries.
package statement

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Kind is the normalized money flow of a statement transaction.
type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// Direction maps the kind onto an entry direction.
func (k Kind) Direction() domain.Direction {
	if k == KindCredit {
		return domain.DirectionIncome
	}
	return domain.DirectionExpense
}

// Transaction is one record extracted from a statement.
type Transaction struct {
	// Seq is the position in the parsed set after sorting. Selection refers
	// to transactions by Seq.
	Seq int `json:"seq"`

	ExternalID   string          `json:"external_id"`
	Kind         Kind            `json:"kind"`
	RawType      string          `json:"raw_type"`
	Date         civil.Date      `json:"date"`
	SignedAmount decimal.Decimal `json:"signed_amount"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Merchant     string          `json:"merchant"`
	Selected     bool            `json:"selected"`
}

// Signed returns +Amount for credits and -Amount for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == KindCredit {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Result is the outcome of parsing one statement.
type Result struct {
	Transactions []Transaction `json:"transactions"`
	// Blocks counts every transaction block found, Skipped those dropped for
	// a missing date, a zero amount or an unreadable field.
	Blocks  int `json:"blocks"`
	Skipped int `json:"skipped"`
}

// Empty reports whether no transaction could be extracted.
func (r Result) Empty() bool {
	return len(r.Transactions) == 0
}
