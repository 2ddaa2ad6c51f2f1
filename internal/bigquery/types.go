package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision used when converting NUMERIC
// values back into decimals.
const numericScale = 9

// EntryRow represents an entry record in BigQuery.
type EntryRow struct {
	EntryID string `bigquery:"entry_id"`
	UserID  string `bigquery:"user_id"`

	EntryDate   civil.Date `bigquery:"entry_date"`
	Description string     `bigquery:"description"`
	CategoryID  string     `bigquery:"category_id"`

	Amount    *big.Rat `bigquery:"amount"`
	Direction string   `bigquery:"direction"`
	Status    string   `bigquery:"status"`

	PositionIndex bigquery.NullInt64  `bigquery:"position_index"`
	PositionTotal bigquery.NullInt64  `bigquery:"position_total"`
	SeriesID      bigquery.NullString `bigquery:"series_id"`

	RecurringBillID bigquery.NullString `bigquery:"recurring_bill_id"`

	// Settlement holds the settlement document serialized as JSON text.
	Settlement bigquery.NullString `bigquery:"settlement"`

	Notes bigquery.NullString `bigquery:"notes"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// CategoryRow represents a category record in BigQuery.
type CategoryRow struct {
	CategoryID string    `bigquery:"category_id"`
	UserID     string    `bigquery:"user_id"`
	Name       string    `bigquery:"name"`
	Direction  string    `bigquery:"direction"`
	CreatedTS  time.Time `bigquery:"created_ts"`
}

// RecurringBillRow represents a recurring bill record in BigQuery.
type RecurringBillRow struct {
	BillID      string `bigquery:"bill_id"`
	UserID      string `bigquery:"user_id"`
	Description string `bigquery:"description"`
	CategoryID  string `bigquery:"category_id"`

	Amount    *big.Rat `bigquery:"amount"`
	Direction string   `bigquery:"direction"`
	DueDay    int64    `bigquery:"due_day"`
	Active    bool     `bigquery:"active"`

	Notes     bigquery.NullString `bigquery:"notes"`
	CreatedTS time.Time           `bigquery:"created_ts"`
}

// StatementRow represents an archived statement record in BigQuery.
type StatementRow struct {
	StatementID string `bigquery:"statement_id"`
	UserID      string `bigquery:"user_id"`
	GCSURI      string `bigquery:"gcs_uri"`

	OriginalFilename string `bigquery:"original_filename"`
	ChecksumSHA256   string `bigquery:"checksum_sha256"`

	Status string `bigquery:"status"`

	ParsedCount    int64 `bigquery:"parsed_count"`
	ImportedCount  int64 `bigquery:"imported_count"`
	DuplicateCount int64 `bigquery:"duplicate_count"`
	ErrorCount     int64 `bigquery:"error_count"`

	ErrorMessage bigquery.NullString `bigquery:"error_message"`

	UploadTS    time.Time              `bigquery:"upload_ts"`
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"`
}

// DecimalToRat converts a decimal into the *big.Rat BigQuery uses for NUMERIC.
func DecimalToRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

// RatToDecimal converts a NUMERIC value back into a decimal. A nil value is zero.
func RatToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, numericScale)
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// NewEntryRow maps a domain entry onto its BigQuery row.
func NewEntryRow(e domain.Entry) (*EntryRow, error) {
	row := &EntryRow{
		EntryID:         e.ID,
		UserID:          e.UserID,
		EntryDate:       e.Date,
		Description:     e.Description,
		CategoryID:      e.CategoryID,
		Amount:          DecimalToRat(e.Amount),
		Direction:       string(e.Direction),
		Status:          string(e.Status),
		SeriesID:        nullString(e.SeriesID),
		RecurringBillID: nullString(e.RecurringBillID),
		Notes:           nullString(e.Notes),
		CreatedTS:       e.CreatedAt,
	}
	if e.Position != nil {
		row.PositionIndex = bigquery.NullInt64{Int64: int64(e.Position.Index), Valid: true}
		row.PositionTotal = bigquery.NullInt64{Int64: int64(e.Position.Total), Valid: true}
	}
	if e.Settlement != nil {
		raw, err := json.Marshal(e.Settlement)
		if err != nil {
			return nil, fmt.Errorf("NewEntryRow: encoding settlement: %w", err)
		}
		row.Settlement = bigquery.NullString{StringVal: string(raw), Valid: true}
	}
	return row, nil
}

// ToDomain maps the row back onto a domain entry.
func (r *EntryRow) ToDomain() (domain.Entry, error) {
	e := domain.Entry{
		ID:              r.EntryID,
		UserID:          r.UserID,
		Date:            r.EntryDate,
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		Amount:          RatToDecimal(r.Amount),
		Direction:       domain.Direction(r.Direction),
		Status:          domain.Status(r.Status),
		SeriesID:        r.SeriesID.StringVal,
		RecurringBillID: r.RecurringBillID.StringVal,
		Notes:           r.Notes.StringVal,
		CreatedAt:       r.CreatedTS,
	}
	if r.PositionIndex.Valid && r.PositionTotal.Valid {
		e.Position = &domain.Position{
			Index: int(r.PositionIndex.Int64),
			Total: int(r.PositionTotal.Int64),
		}
	}
	if r.Settlement.Valid && r.Settlement.StringVal != "" {
		var s domain.Settlement
		if err := json.Unmarshal([]byte(r.Settlement.StringVal), &s); err != nil {
			return domain.Entry{}, fmt.Errorf("EntryRow.ToDomain: decoding settlement of %s: %w", r.EntryID, err)
		}
		e.Settlement = &s
	}
	return e, nil
}

// NewCategoryRow maps a domain category onto its BigQuery row.
func NewCategoryRow(c domain.Category) *CategoryRow {
	return &CategoryRow{
		CategoryID: c.ID,
		UserID:     c.UserID,
		Name:       c.Name,
		Direction:  string(c.Direction),
		CreatedTS:  c.CreatedAt,
	}
}

// ToDomain maps the row back onto a domain category.
func (r *CategoryRow) ToDomain() domain.Category {
	return domain.Category{
		ID:        r.CategoryID,
		UserID:    r.UserID,
		Name:      r.Name,
		Direction: domain.Direction(r.Direction),
		CreatedAt: r.CreatedTS,
	}
}

// NewRecurringBillRow maps a domain recurring bill onto its BigQuery row.
func NewRecurringBillRow(b domain.RecurringBill) *RecurringBillRow {
	return &RecurringBillRow{
		BillID:      b.ID,
		UserID:      b.UserID,
		Description: b.Description,
		CategoryID:  b.CategoryID,
		Amount:      DecimalToRat(b.Amount),
		Direction:   string(b.Direction),
		DueDay:      int64(b.DueDay),
		Active:      b.Active,
		Notes:       nullString(b.Notes),
		CreatedTS:   b.CreatedAt,
	}
}

// ToDomain maps the row back onto a domain recurring bill.
func (r *RecurringBillRow) ToDomain() domain.RecurringBill {
	return domain.RecurringBill{
		ID:          r.BillID,
		UserID:      r.UserID,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		Amount:      RatToDecimal(r.Amount),
		Direction:   domain.Direction(r.Direction),
		DueDay:      int(r.DueDay),
		Active:      r.Active,
		Notes:       r.Notes.StringVal,
		CreatedAt:   r.CreatedTS,
	}
}

// NewStatementRow maps statement metadata onto its BigQuery row.
func NewStatementRow(s domain.StatementRecord) *StatementRow {
	row := &StatementRow{
		StatementID:      s.ID,
		UserID:           s.UserID,
		GCSURI:           s.URI,
		OriginalFilename: s.Filename,
		ChecksumSHA256:   s.Checksum,
		Status:           s.Status,
		ParsedCount:      int64(s.Parsed),
		ImportedCount:    int64(s.Counts.Imported),
		DuplicateCount:   int64(s.Counts.Duplicates),
		ErrorCount:       int64(s.Counts.Errors),
		ErrorMessage:     nullString(s.Error),
		UploadTS:         s.UploadedAt,
	}
	if s.ProcessedAt != nil {
		row.ProcessedTS = bigquery.NullTimestamp{Timestamp: *s.ProcessedAt, Valid: true}
	}
	return row
}

// ToDomain maps the row back onto statement metadata.
func (r *StatementRow) ToDomain() domain.StatementRecord {
	s := domain.StatementRecord{
		ID:       r.StatementID,
		UserID:   r.UserID,
		URI:      r.GCSURI,
		Filename: r.OriginalFilename,
		Checksum: r.ChecksumSHA256,
		Status:   r.Status,
		Parsed:   int(r.ParsedCount),
		Counts: domain.ImportCounts{
			Imported:   int(r.ImportedCount),
			Duplicates: int(r.DuplicateCount),
			Errors:     int(r.ErrorCount),
		},
		Error:      r.ErrorMessage.StringVal,
		UploadedAt: r.UploadTS,
	}
	if r.ProcessedTS.Valid {
		t := r.ProcessedTS.Timestamp
		s.ProcessedAt = &t
	}
	return s
}
