package statement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Filter selects parsed transactions. Zero fields match everything; Min and
// Max bound the absolute amount inclusively.
type Filter struct {
	Kind  Kind                `json:"kind,omitempty"`
	Min   decimal.NullDecimal `json:"min"`
	Max   decimal.NullDecimal `json:"max"`
	Query string              `json:"query,omitempty"`
}

// Match reports whether t passes the filter.
func (f Filter) Match(t Transaction) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Min.Valid && t.Amount.LessThan(f.Min.Decimal) {
		return false
	}
	if f.Max.Valid && t.Amount.GreaterThan(f.Max.Decimal) {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" &&
		!strings.Contains(strings.ToLower(t.Description), strings.ToLower(q)) {
		return false
	}
	return true
}

// Apply returns the transactions passing the filter, in input order.
func (f Filter) Apply(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Group is the set of transactions sharing a merchant label.
type Group struct {
	Merchant     string          `json:"merchant"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
	Transactions []Transaction   `json:"transactions"`
}

// GroupByMerchant partitions txs by merchant label. Totals are signed,
// credits adding and debits subtracting. Groups appear in the order their
// merchant is first seen.
func GroupByMerchant(txs []Transaction) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, t := range txs {
		i, ok := index[t.Merchant]
		if !ok {
			i = len(groups)
			index[t.Merchant] = i
			groups = append(groups, Group{Merchant: t.Merchant, Total: decimal.Zero})
		}
		g := &groups[i]
		g.Total = g.Total.Add(t.Signed())
		g.Count++
		g.Transactions = append(g.Transactions, t)
	}

	return groups
}
