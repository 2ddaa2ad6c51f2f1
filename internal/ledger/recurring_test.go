package ledger

import (
	"testing"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBill(t *testing.T, e *Engine, dueDay int) domain.RecurringBill {
	t.Helper()
	bill, err := e.CreateRecurringBill(testContext(), testSession(), NewRecurringBill{
		Description: "Internet",
		CategoryID:  "cat-housing",
		Amount:      dec("99.90"),
		Direction:   domain.DirectionExpense,
		DueDay:      dueDay,
	})
	require.NoError(t, err)
	return bill
}

func TestGenerateRecurring(t *testing.T) {
	e, store := newTestEngine()
	bill := createBill(t, e, 31)

	result, err := e.GenerateRecurring(testContext(), testSession(), 2024, time.February)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 0, result.AlreadyPresent)
	require.Len(t, result.Entries, 1)
	entry := result.Entries[0]
	assert.Equal(t, date(2024, time.February, 29), entry.Date)
	assert.Equal(t, domain.StatusPending, entry.Status)
	assert.Equal(t, bill.ID, entry.RecurringBillID)
	assert.Len(t, allEntries(t, store), 1)
}

func TestGenerateRecurringIsIdempotentPerMonth(t *testing.T) {
	e, store := newTestEngine()
	createBill(t, e, 10)

	_, err := e.GenerateRecurring(testContext(), testSession(), 2024, time.March)
	require.NoError(t, err)
	again, err := e.GenerateRecurring(testContext(), testSession(), 2024, time.March)
	require.NoError(t, err)

	assert.Equal(t, 0, again.Generated)
	assert.Equal(t, 1, again.AlreadyPresent)
	assert.Len(t, allEntries(t, store), 1)
}

func TestGenerateRecurringSkipsMonthsBeforeRegistration(t *testing.T) {
	e, store := newTestEngine()
	createBill(t, e, 5)

	result, err := e.GenerateRecurring(testContext(), testSession(), 2023, time.December)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Generated)
	assert.Empty(t, allEntries(t, store))
}

func TestGenerateRecurringIgnoresInactiveBills(t *testing.T) {
	e, _ := newTestEngine()
	bill := createBill(t, e, 5)
	require.NoError(t, e.SetRecurringBillActive(testContext(), testSession(), bill.ID, false))

	result, err := e.GenerateRecurring(testContext(), testSession(), 2024, time.January)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated+result.AlreadyPresent+result.Skipped)
}

func TestCreateRecurringBillValidation(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.CreateRecurringBill(testContext(), testSession(), NewRecurringBill{
		Description: "Water",
		CategoryID:  "cat-1",
		Amount:      dec("30"),
		Direction:   domain.DirectionExpense,
		DueDay:      32,
	})
	assert.ErrorIs(t, err, ErrInvalidDueDay)

	_, err = e.GenerateRecurring(testContext(), testSession(), 2024, 13)
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestToggleStatusAndReschedule(t *testing.T) {
	e, _ := newTestEngine()
	entries := generateSeries(t, e, "Lamp", "15.00", 1)

	toggled, err := e.ToggleStatus(testContext(), testSession(), entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, toggled.Status)

	_, err = e.Reschedule(testContext(), testSession(), entries[0].ID, date(2024, time.February, 1))
	assert.ErrorIs(t, err, ErrNotPending)

	toggled, err = e.ToggleStatus(testContext(), testSession(), entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, toggled.Status)

	_, err = e.Reschedule(testContext(), testSession(), entries[0].ID, date(2024, time.January, 1))
	assert.ErrorIs(t, err, domain.ErrValidation)

	moved, err := e.Reschedule(testContext(), testSession(), entries[0].ID, date(2024, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 1), moved.Date)

	_, err = e.ToggleStatus(testContext(), testSession(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSeedDefaultCategories(t *testing.T) {
	e, _ := newTestEngine()

	created, err := e.SeedDefaultCategories(testContext(), testSession())
	require.NoError(t, err)
	assert.Equal(t, len(domain.DefaultCategories), created)

	created, err = e.SeedDefaultCategories(testContext(), testSession())
	require.NoError(t, err)
	assert.Zero(t, created)

	income, err := e.Categories(testContext(), testSession(), domain.DirectionIncome)
	require.NoError(t, err)
	assert.Len(t, income, 4)
}
