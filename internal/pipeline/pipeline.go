// Package pipeline ingests archived OFX statements: it registers uploads in
// the statement archive and imports them into the ledger.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/gcsuploader"
	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/google/uuid"
)

// ErrNoBucket is returned by Register when no archive bucket is configured.
var ErrNoBucket = errors.New("statement archive bucket not configured")

// Ingestor wires the archive, the parser and the importer together.
type Ingestor struct {
	Statements domain.StatementRepository
	Storage    StorageService
	Parser     StatementParser
	Importer   TransactionImporter
	Bucket     string

	newID func() string
}

// NewIngestor creates an Ingestor archiving into bucket.
func NewIngestor(statements domain.StatementRepository, storage StorageService, parser StatementParser, importer TransactionImporter, bucket string) *Ingestor {
	return &Ingestor{
		Statements: statements,
		Storage:    storage,
		Parser:     parser,
		Importer:   importer,
		Bucket:     bucket,
		newID:      uuid.NewString,
	}
}

// Checksum returns the hex SHA-256 of a statement payload.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Register archives a statement and records it as PENDING. When the same
// user already uploaded identical content, the existing record is returned
// with duplicate set and nothing is written.
func (in *Ingestor) Register(ctx context.Context, s domain.Session, filename string, data []byte) (rec *domain.StatementRecord, duplicate bool, err error) {
	if len(data) == 0 {
		return nil, false, fmt.Errorf("%w: statement is empty", domain.ErrValidation)
	}
	if in.Bucket == "" {
		return nil, false, ErrNoBucket
	}

	checksum := Checksum(data)
	existing, err := in.Statements.FindStatementByChecksum(ctx, s.UserID, checksum)
	if err != nil {
		return nil, false, fmt.Errorf("Register: finding statement by checksum: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	if strings.TrimSpace(filename) == "" {
		filename = DefaultFilename
	}
	id := in.newID()
	objectName := gcsuploader.ObjectName(s.UserID, id, filename)

	uri, err := in.Storage.UploadBytes(ctx, in.Bucket, objectName, data)
	if err != nil {
		return nil, false, fmt.Errorf("Register: uploading statement: %w", err)
	}

	record := domain.StatementRecord{
		ID:         id,
		UserID:     s.UserID,
		URI:        uri,
		Filename:   in.Storage.ExtractFilenameFromGCSURI(uri),
		Checksum:   checksum,
		Status:     domain.StatementPending,
		UploadedAt: s.Now(),
	}
	if err := in.Statements.InsertStatement(ctx, record); err != nil {
		return nil, false, fmt.Errorf("Register: inserting statement: %w", err)
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("statement_id", id).
		Str("gcs_uri", uri).
		Msg("Statement archived")

	return &record, false, nil
}

// NewStatementIngestionPipeline creates the standard pipeline for importing
// one archived statement.
func (in *Ingestor) NewStatementIngestionPipeline() *Pipeline {
	return NewPipeline(
		&FetchStatementStep{Storage: in.Storage},
		&ParseStatementStep{Parser: in.Parser},
		&LoadExistingStep{Importer: in.Importer},
		&ImportTransactionsStep{Importer: in.Importer},
		&MarkProcessedStep{Statements: in.Statements},
	)
}

// Ingest imports an archived statement. A failure marks the statement FAILED
// and is returned.
func (in *Ingestor) Ingest(ctx context.Context, s domain.Session, statementID string) (domain.ImportCounts, error) {
	rec, err := in.Statements.GetStatement(ctx, s.UserID, statementID)
	if err != nil {
		return domain.ImportCounts{}, fmt.Errorf("Ingest: loading statement: %w", err)
	}

	state := &PipelineState{
		Session:     s,
		StatementID: rec.ID,
		GCSURI:      rec.URI,
		Filename:    rec.Filename,
	}
	if err := in.NewStatementIngestionPipeline().Execute(ctx, state); err != nil {
		in.markFailed(ctx, rec.ID, err)
		return state.Counts, fmt.Errorf("Ingest: %w", err)
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("statement_id", rec.ID).
		Int("imported", state.Counts.Imported).
		Int("duplicates", state.Counts.Duplicates).
		Int("errors", state.Counts.Errors).
		Msg("Statement imported")

	return state.Counts, nil
}

func (in *Ingestor) markFailed(ctx context.Context, statementID string, cause error) {
	msg := cause.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	if err := in.Statements.MarkStatementFailed(ctx, statementID, errors.New(msg)); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("statement_id", statementID).
			Msg("Failed to mark statement as failed")
	}
}

// HandleJob is the jobs.JobHandler for statement import jobs.
func (in *Ingestor) HandleJob(ctx context.Context, job jobs.Job) error {
	importJob, ok := job.(*jobs.ImportStatementJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}

	log := logger.WithUser(logger.FromContext(ctx), importJob.UserID).With().
		Str("job_id", importJob.JobID).
		Str("statement_id", importJob.StatementID).
		Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("gcs_uri", importJob.GCSURI).Msg("Processing import job")

	counts, err := in.Ingest(ctx, domain.NewSession(importJob.UserID), importJob.StatementID)
	importJob.Counts = &counts
	if err != nil {
		log.Error().Err(err).Msg("Pipeline execution failed")
		return err
	}

	log.Info().Msg("Pipeline execution completed successfully")
	return nil
}
