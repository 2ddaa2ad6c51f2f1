package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addEntry(t *testing.T, e *Engine, entry domain.Entry) domain.Entry {
	t.Helper()
	if entry.CategoryID == "" {
		entry.CategoryID = "cat-1"
	}
	created, err := e.CreateEntry(testContext(), testSession(), entry)
	require.NoError(t, err)
	return created
}

func TestPreviousMonth(t *testing.T) {
	year, month := PreviousMonth(2024, time.March)
	assert.Equal(t, 2024, year)
	assert.Equal(t, time.February, month)

	year, month = PreviousMonth(2024, time.January)
	assert.Equal(t, 2023, year)
	assert.Equal(t, time.December, month)
}

func TestCarryPending(t *testing.T) {
	e, store := newTestEngine()
	bill := createBill(t, e, 15)
	_, err := e.GenerateRecurring(testContext(), testSession(), 2024, time.February)
	require.NoError(t, err)

	power := addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 20), Description: "Power", Amount: dec("120"),
		Direction: domain.DirectionExpense, Notes: "meter 4411",
	})
	addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 5), Description: "Rent", Amount: dec("900"),
		Direction: domain.DirectionExpense, Status: domain.StatusPaid,
	})
	addEntry(t, e, domain.Entry{
		Date: date(2024, time.March, 2), Description: "Later", Amount: dec("10"),
		Direction: domain.DirectionExpense,
	})

	result, err := e.CarryPending(testContext(), testSession(), 2024, time.March)
	require.NoError(t, err)
	require.Equal(t, 2, result.Moved)

	for _, moved := range result.Entries {
		assert.Equal(t, date(2024, time.March, 1), moved.Date)
		assert.Empty(t, moved.RecurringBillID)
		assert.Equal(t, domain.StatusPending, moved.Status)
	}

	var carriedPower *domain.Entry
	for i := range result.Entries {
		if result.Entries[i].Description == "Power (pending 02/2024)" {
			carriedPower = &result.Entries[i]
		}
	}
	require.NotNil(t, carriedPower)
	assert.NotEqual(t, power.ID, carriedPower.ID)
	assert.Equal(t, "meter 4411 | Moved from 02/2024", carriedPower.Notes)

	_, err = store.GetEntry(testContext(), "user-1", power.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, allEntries(t, store), 4)

	// The bill's own March entry is still generated.
	generated, err := e.GenerateRecurring(testContext(), testSession(), 2024, time.March)
	require.NoError(t, err)
	require.Equal(t, 1, generated.Generated)
	assert.Equal(t, bill.ID, generated.Entries[0].RecurringBillID)
}

func TestCarryPendingWrapsToPreviousYear(t *testing.T) {
	e, _ := newTestEngine()
	addEntry(t, e, domain.Entry{
		Date: date(2023, time.December, 28), Description: "Gift", Amount: dec("50"),
		Direction: domain.DirectionExpense,
	})

	result, err := e.CarryPending(testContext(), testSession(), 2024, time.January)
	require.NoError(t, err)
	require.Equal(t, 1, result.Moved)
	assert.Equal(t, date(2024, time.January, 1), result.Entries[0].Date)
	assert.Equal(t, "Gift (pending 12/2023)", result.Entries[0].Description)
	assert.Equal(t, "Moved from 12/2023", result.Entries[0].Notes)
}

func TestCarryPendingKeepsInstallmentDescription(t *testing.T) {
	e, _ := newTestEngine()
	series := generateSeries(t, e, "Laptop", "300.00", 3)

	result, err := e.CarryPending(testContext(), testSession(), 2024, time.February)
	require.NoError(t, err)
	require.Equal(t, 1, result.Moved)

	moved := result.Entries[0]
	assert.Equal(t, series[0].Description, moved.Description)
	assert.Equal(t, series[0].SeriesID, moved.SeriesID)
	require.NotNil(t, moved.Position)
	assert.Equal(t, *series[0].Position, *moved.Position)

	grouped, err := e.PendingSeries(testContext(), testSession())
	require.NoError(t, err)
	require.Len(t, grouped, 1)
	assert.Len(t, grouped[0].Entries, 3)
}

func TestCarryPendingRollsBackOnBackendFailure(t *testing.T) {
	e, store := newTestEngine()
	original := addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 20), Description: "Power", Amount: dec("120"),
		Direction: domain.DirectionExpense,
	})

	backendErr := errors.New("script aborted")
	store.FailOn = func(op string) error {
		if op == "apply" {
			return backendErr
		}
		return nil
	}

	_, err := e.CarryPending(testContext(), testSession(), 2024, time.March)
	require.ErrorIs(t, err, backendErr)

	stored := allEntries(t, store)
	require.Len(t, stored, 1)
	assert.Equal(t, original.ID, stored[0].ID)
	assert.Equal(t, date(2024, time.February, 20), stored[0].Date)
}

func TestCarryPendingNothingToMove(t *testing.T) {
	e, _ := newTestEngine()

	result, err := e.CarryPending(testContext(), testSession(), 2024, time.March)
	require.NoError(t, err)
	assert.Zero(t, result.Moved)
	assert.Empty(t, result.Entries)

	_, err = e.CarryPending(testContext(), testSession(), 2024, time.Month(13))
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestCarryBalance(t *testing.T) {
	e, store := newTestEngine()
	addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 1), Description: "Salary", Amount: dec("1000"),
		Direction: domain.DirectionIncome, Status: domain.StatusPaid,
	})
	addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 10), Description: "Rent", Amount: dec("700"),
		Direction: domain.DirectionExpense, Status: domain.StatusPaid,
	})
	addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 20), Description: "Power", Amount: dec("149.50"),
		Direction: domain.DirectionExpense,
	})

	entry, err := e.CarryBalance(testContext(), testSession(), 2024, time.March)
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, "Balance from 02/2024", entry.Description)
	assert.Equal(t, domain.DirectionIncome, entry.Direction)
	assert.Equal(t, domain.StatusPaid, entry.Status)
	assert.Equal(t, date(2024, time.March, 1), entry.Date)
	assert.Equal(t, "150.50", entry.Amount.StringFixed(2))
	assert.Equal(t, "Carried forward automatically: 150.50", entry.Notes)

	categories, err := e.Categories(testContext(), testSession(), domain.DirectionIncome)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, BalanceCategoryName, categories[0].Name)
	assert.Equal(t, categories[0].ID, entry.CategoryID)

	_, err = e.CarryBalance(testContext(), testSession(), 2024, time.March)
	assert.ErrorIs(t, err, ErrAlreadyCarried)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, allEntries(t, store), 4)
}

func TestCarryBalanceDeficit(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.CreateCategory(testContext(), testSession(), "previous BALANCE", domain.DirectionExpense)
	require.NoError(t, err)
	addEntry(t, e, domain.Entry{
		Date: date(2023, time.December, 3), Description: "Trip", Amount: dec("80"),
		Direction: domain.DirectionExpense, Status: domain.StatusPaid,
	})

	entry, err := e.CarryBalance(testContext(), testSession(), 2024, time.January)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Deficit from 12/2023", entry.Description)
	assert.Equal(t, domain.DirectionExpense, entry.Direction)
	assert.Equal(t, "80.00", entry.Amount.StringFixed(2))
	assert.Equal(t, "Carried forward automatically: -80.00", entry.Notes)

	categories, err := e.Categories(testContext(), testSession(), domain.DirectionExpense)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestCarryBalanceZeroRecordsNothing(t *testing.T) {
	e, store := newTestEngine()
	addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 1), Description: "Refund", Amount: dec("40"),
		Direction: domain.DirectionIncome, Status: domain.StatusPaid,
	})
	addEntry(t, e, domain.Entry{
		Date: date(2024, time.February, 2), Description: "Dinner", Amount: dec("40"),
		Direction: domain.DirectionExpense, Status: domain.StatusPaid,
	})

	entry, err := e.CarryBalance(testContext(), testSession(), 2024, time.March)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Len(t, allEntries(t, store), 2)
}
