package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurringBill is a template that spawns one pending entry per month.
type RecurringBill struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Description string          `json:"description"`
	CategoryID  string          `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	DueDay      int             `json:"due_day"`
	Active      bool            `json:"active"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
