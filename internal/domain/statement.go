package domain

import "time"

// Statement processing states.
const (
	StatementPending   = "PENDING"
	StatementProcessed = "PROCESSED"
	StatementFailed    = "FAILED"
)

// ImportCounts aggregates the outcome of a statement import.
type ImportCounts struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// StatementRecord is the metadata of an archived statement file.
type StatementRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	URI      string `json:"uri"`
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	Status   string `json:"status"`

	Parsed int          `json:"parsed"`
	Counts ImportCounts `json:"counts"`
	Error  string       `json:"error,omitempty"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
