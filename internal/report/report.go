// Package report aggregates already-fetched entries into month summaries,
// period reports and due-date alerts.
package report

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Totals is a sum and a count.
type Totals struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

func (t *Totals) add(amount decimal.Decimal) {
	t.Amount = t.Amount.Add(amount)
	t.Count++
}

// MonthSummary splits a month's entries by direction and status.
type MonthSummary struct {
	PaidIncome     Totals `json:"paid_income"`
	PendingIncome  Totals `json:"pending_income"`
	PaidExpense    Totals `json:"paid_expense"`
	PendingExpense Totals `json:"pending_expense"`

	// Realized counts paid entries only; Projected adds pending ones.
	Realized  decimal.Decimal `json:"realized"`
	Projected decimal.Decimal `json:"projected"`
}

// Summarize builds the summary of entries, which the caller has already
// restricted to one month.
func Summarize(entries []domain.Entry) MonthSummary {
	var s MonthSummary
	for _, e := range entries {
		switch {
		case e.Direction == domain.DirectionIncome && e.Status == domain.StatusPaid:
			s.PaidIncome.add(e.Amount)
		case e.Direction == domain.DirectionIncome:
			s.PendingIncome.add(e.Amount)
		case e.Status == domain.StatusPaid:
			s.PaidExpense.add(e.Amount)
		default:
			s.PendingExpense.add(e.Amount)
		}
	}

	s.Realized = s.PaidIncome.Amount.Sub(s.PaidExpense.Amount)
	income := s.PaidIncome.Amount.Add(s.PendingIncome.Amount)
	expense := s.PaidExpense.Amount.Add(s.PendingExpense.Amount)
	s.Projected = income.Sub(expense)
	return s
}

// CategoryLine is one category of a period report.
type CategoryLine struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	Count      int             `json:"count"`
}

// PeriodReport covers paid entries between two dates.
type PeriodReport struct {
	From       civil.Date      `json:"from"`
	To         civil.Date      `json:"to"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Balance    decimal.Decimal `json:"balance"`
	Count      int             `json:"count"`
	Categories []CategoryLine  `json:"categories"`
}

// BuildPeriod reports the paid entries among entries dated within
// [from, to]. Category lines are ordered by expense descending, then name.
func BuildPeriod(from, to civil.Date, entries []domain.Entry, categories []domain.Category) PeriodReport {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	r := PeriodReport{From: from, To: to}
	index := make(map[string]int)

	for _, e := range entries {
		if e.Status != domain.StatusPaid || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		i, ok := index[e.CategoryID]
		if !ok {
			i = len(r.Categories)
			index[e.CategoryID] = i
			name := names[e.CategoryID]
			if name == "" {
				name = "Uncategorized"
			}
			r.Categories = append(r.Categories, CategoryLine{CategoryID: e.CategoryID, Name: name})
		}
		line := &r.Categories[i]
		if e.Direction == domain.DirectionIncome {
			line.Income = line.Income.Add(e.Amount)
			r.Income = r.Income.Add(e.Amount)
		} else {
			line.Expense = line.Expense.Add(e.Amount)
			r.Expense = r.Expense.Add(e.Amount)
		}
		line.Net = line.Income.Sub(line.Expense)
		line.Count++
		r.Count++
	}

	r.Balance = r.Income.Sub(r.Expense)
	sort.SliceStable(r.Categories, func(a, b int) bool {
		ca, cb := r.Categories[a], r.Categories[b]
		if c := ca.Expense.Cmp(cb.Expense); c != 0 {
			return c > 0
		}
		return strings.ToLower(ca.Name) < strings.ToLower(cb.Name)
	})
	return r
}

// DueAlerts buckets pending entries by how soon they are due.
type DueAlerts struct {
	Overdue     []domain.Entry `json:"overdue"`
	DueToday    []domain.Entry `json:"due_today"`
	Within3Days []domain.Entry `json:"within_3_days"`
	Within7Days []domain.Entry `json:"within_7_days"`
}

// Empty reports whether nothing needs attention.
func (a DueAlerts) Empty() bool {
	return len(a.Overdue)+len(a.DueToday)+len(a.Within3Days)+len(a.Within7Days) == 0
}

// BuildDueAlerts classifies the pending entries relative to today. Entries
// due more than a week ahead are left out.
func BuildDueAlerts(today civil.Date, entries []domain.Entry) DueAlerts {
	var a DueAlerts
	in3, in7 := today.AddDays(3), today.AddDays(7)

	for _, e := range entries {
		if e.Status != domain.StatusPending {
			continue
		}
		switch {
		case e.Date.Before(today):
			a.Overdue = append(a.Overdue, e)
		case e.Date == today:
			a.DueToday = append(a.DueToday, e)
		case !e.Date.After(in3):
			a.Within3Days = append(a.Within3Days, e)
		case !e.Date.After(in7):
			a.Within7Days = append(a.Within7Days, e)
		}
	}
	return a
}
