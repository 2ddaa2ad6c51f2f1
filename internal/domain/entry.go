package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Direction is the money flow of an entry or category.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// Status is the settlement state of an entry.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPaid || s == StatusPending
}

// Toggle returns the opposite status.
func (s Status) Toggle() Status {
	if s == StatusPaid {
		return StatusPending
	}
	return StatusPaid
}

// Position locates an entry inside an installment series.
type Position struct {
	Index int `json:"index"`
	Total int `json:"total"`
}

// Label renders the position as "index/total".
func (p Position) Label() string {
	return fmt.Sprintf("%d/%d", p.Index, p.Total)
}

// Entry is one income or expense record.
type Entry struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	CategoryID  string          `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Status      Status          `json:"status"`

	// Position and SeriesID are set for installment entries only.
	Position *Position `json:"position,omitempty"`
	SeriesID string    `json:"series_id,omitempty"`

	RecurringBillID string      `json:"recurring_bill_id,omitempty"`
	Settlement      *Settlement `json:"settlement,omitempty"`
	Notes           string      `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsInstallment reports whether the entry belongs to an installment series.
func (e Entry) IsInstallment() bool {
	return e.Position != nil
}

// Signed returns the amount with the sign of its direction.
func (e Entry) Signed() decimal.Decimal {
	if e.Direction == DirectionExpense {
		return e.Amount.Neg()
	}
	return e.Amount
}
