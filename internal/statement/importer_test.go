package statement

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/infra/memory"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan15 = civil.Date{Year: 2024, Month: time.January, Day: 15}

func testSession() domain.Session {
	return domain.Session{
		UserID: "user-1",
		Clock:  func() time.Time { return time.Date(2024, time.February, 1, 9, 0, 0, 0, time.UTC) },
	}
}

func testContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

func parsedTx(kind Kind, amount, description string) Transaction {
	amt := decimal.RequireFromString(amount)
	return Transaction{
		ExternalID:  description + "-" + amount,
		Kind:        kind,
		Date:        jan15,
		Amount:      amt,
		Description: description,
		Merchant:    MerchantLabel(description),
	}
}

func TestIsDuplicate(t *testing.T) {
	existing := []domain.Entry{{
		Date:        jan15,
		Amount:      decimal.RequireFromString("45.90"),
		Description: "Padaria Sao Jose Compra",
	}}

	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"diff of exactly one cent", parsedTx(KindDebit, "45.91", "PADARIA SAO JOSE"), false},
		{"diff below one cent", parsedTx(KindDebit, "45.899", "PADARIA SAO JOSE"), true},
		{"same amount", parsedTx(KindDebit, "45.90", "PADARIA SAO JOSE"), true},
		{"other description", parsedTx(KindDebit, "45.90", "MERCADO CENTRAL"), false},
		{"only first twenty chars compared", parsedTx(KindDebit, "45.90", "Padaria Sao Jose Compra 12/34 extra"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicate(tt.tx, existing))
		})
	}

	otherDay := parsedTx(KindDebit, "45.90", "PADARIA SAO JOSE")
	otherDay.Date = jan15.AddDays(1)
	assert.False(t, IsDuplicate(otherDay, existing))
}

func seedCategories(t *testing.T, store *memory.Store, directions ...domain.Direction) {
	t.Helper()
	var cats []domain.Category
	for _, d := range directions {
		cats = append(cats, domain.Category{ID: "cat-" + string(d), UserID: "user-1", Name: string(d), Direction: d})
	}
	require.NoError(t, store.InsertCategories(context.Background(), cats))
}

func TestImportSelected(t *testing.T) {
	store := memory.NewStore()
	seedCategories(t, store, domain.DirectionIncome, domain.DirectionExpense)
	existing := []domain.Entry{{
		ID:          "old",
		UserID:      "user-1",
		Date:        jan15,
		Amount:      decimal.RequireFromString("45.90"),
		Description: "Padaria Sao Jose Compra",
	}}
	im := NewImporter(store, store, nil)

	counts := im.ImportSelected(testContext(), testSession(), []Transaction{
		parsedTx(KindDebit, "45.899", "PADARIA SAO JOSE"),
		parsedTx(KindDebit, "45.91", "PADARIA SAO JOSE"),
		parsedTx(KindCredit, "1500", "SALARIO EMPRESA"),
	}, existing)

	assert.Equal(t, domain.ImportCounts{Imported: 2, Duplicates: 1}, counts)

	entries, err := store.QueryEntries(context.Background(), domain.EntryFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, domain.StatusPaid, e.Status)
		assert.Equal(t, jan15, e.Date)
		if e.Direction == domain.DirectionIncome {
			assert.Equal(t, "cat-income", e.CategoryID)
			assert.Equal(t, "SALARIO EMPRESA", e.Description)
		} else {
			assert.Equal(t, "cat-expense", e.CategoryID)
			assert.Equal(t, "45.91", e.Amount.String())
		}
	}
}

func TestImportSelectedCountsMissingCategoryAsError(t *testing.T) {
	store := memory.NewStore()
	seedCategories(t, store, domain.DirectionExpense)
	im := NewImporter(store, store, nil)

	counts := im.ImportSelected(testContext(), testSession(), []Transaction{
		parsedTx(KindCredit, "10", "REFUND"),
		parsedTx(KindDebit, "20", "SHOP"),
	}, nil)

	assert.Equal(t, domain.ImportCounts{Imported: 1, Errors: 1}, counts)
	cats, err := store.ListCategories(context.Background(), "user-1", domain.DirectionIncome)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestImportSelectedContinuesAfterInsertFailure(t *testing.T) {
	store := memory.NewStore()
	seedCategories(t, store, domain.DirectionExpense)
	calls := 0
	store.FailOn = func(op string) error {
		if op != "insert_entries" {
			return nil
		}
		calls++
		if calls == 1 {
			return errors.New("quota exceeded")
		}
		return nil
	}
	im := NewImporter(store, store, nil)

	counts := im.ImportSelected(testContext(), testSession(), []Transaction{
		parsedTx(KindDebit, "1", "FIRST"),
		parsedTx(KindDebit, "2", "SECOND"),
		parsedTx(KindDebit, "3", "THIRD"),
	}, nil)

	assert.Equal(t, domain.ImportCounts{Imported: 2, Errors: 1}, counts)
}

type stubPicker struct {
	pick func(tx Transaction, candidates []domain.Category) (domain.Category, error)
}

func (s stubPicker) PickCategory(_ context.Context, tx Transaction, candidates []domain.Category) (domain.Category, error) {
	return s.pick(tx, candidates)
}

func TestImportSelectedUsesPicker(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.InsertCategories(context.Background(), []domain.Category{
		{ID: "food", UserID: "user-1", Name: "Food", Direction: domain.DirectionExpense},
		{ID: "transport", UserID: "user-1", Name: "Transport", Direction: domain.DirectionExpense},
	}))
	picker := stubPicker{pick: func(tx Transaction, candidates []domain.Category) (domain.Category, error) {
		if tx.Description == "BROKEN" {
			return domain.Category{}, errors.New("model unavailable")
		}
		return candidates[len(candidates)-1], nil
	}}
	im := NewImporter(store, store, picker)

	counts := im.ImportSelected(testContext(), testSession(), []Transaction{
		parsedTx(KindDebit, "30", "UBER TRIP"),
		parsedTx(KindDebit, "40", "BROKEN"),
	}, nil)
	require.Equal(t, 2, counts.Imported)

	entries, err := store.QueryEntries(context.Background(), domain.EntryFilter{UserID: "user-1"})
	require.NoError(t, err)
	byDesc := map[string]string{}
	for _, e := range entries {
		byDesc[e.Description] = e.CategoryID
	}
	assert.Equal(t, "transport", byDesc["UBER TRIP"])
	assert.Equal(t, "food", byDesc["BROKEN"])
}

func TestImportLoadsExistingInDateSpan(t *testing.T) {
	store := memory.NewStore()
	seedCategories(t, store, domain.DirectionExpense)
	require.NoError(t, store.InsertEntries(context.Background(), []domain.Entry{{
		ID:          "e1",
		UserID:      "user-1",
		Date:        jan15,
		Amount:      decimal.RequireFromString("9.99"),
		Description: "streaming service monthly",
		Direction:   domain.DirectionExpense,
		Status:      domain.StatusPaid,
	}}))
	im := NewImporter(store, store, nil)

	counts, err := im.Import(testContext(), testSession(), []Transaction{
		parsedTx(KindDebit, "9.99", "STREAMING SERVICE"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ImportCounts{Duplicates: 1}, counts)
}
