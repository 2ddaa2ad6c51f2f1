package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// SettlementKind distinguishes paying off a whole series from a subset.
type SettlementKind string

const (
	SettlementFull    SettlementKind = "full"
	SettlementPartial SettlementKind = "partial"
)

// SettledItem describes one installment absorbed by a settlement.
type SettledItem struct {
	OriginalID string `json:"original_id"`
	Position   string `json:"position"`
	// Amount is recorded for partial settlements only.
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// Settlement is attached to the synthetic paid entry that replaces settled
// installments. AmountPaid always equals OriginalTotal minus Discount.
type Settlement struct {
	Kind          SettlementKind  `json:"kind"`
	Count         int             `json:"count"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	Discount      decimal.Decimal `json:"discount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Date          civil.Date      `json:"date"`
	Items         []SettledItem   `json:"items"`
}
