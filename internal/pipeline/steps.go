package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/statement"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Session     domain.Session
	StatementID string
	GCSURI      string
	Filename    string

	Raw      []byte
	Result   statement.Result
	Existing []domain.Entry
	Counts   domain.ImportCounts
}

// Step 1: FetchStatementStep fetches the statement bytes from the archive.
type FetchStatementStep struct {
	Storage StorageService
}

func (s *FetchStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("fetching statement: %w", err)
	}
	state.Raw = raw
	if state.Filename == "" {
		state.Filename = s.Storage.ExtractFilenameFromGCSURI(state.GCSURI)
	}
	return nil
}

// Step 2: ParseStatementStep extracts the transactions. An empty statement is
// not an error; later steps have nothing to do.
type ParseStatementStep struct {
	Parser StatementParser
}

func (s *ParseStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	result, err := s.Parser.ParseBytes(state.Raw)
	if err != nil {
		return fmt.Errorf("parsing statement: %w", err)
	}
	state.Result = result

	log := logger.FromContext(ctx)
	if result.Empty() {
		log.Warn().
			Str("statement_id", state.StatementID).
			Int("blocks", result.Blocks).
			Msg("Statement contains no importable transactions")
		return nil
	}
	log.Info().
		Str("statement_id", state.StatementID).
		Int("transactions", len(result.Transactions)).
		Int("skipped", result.Skipped).
		Msg("Statement parsed")
	return nil
}

// Step 3: LoadExistingStep loads the entries the statement could duplicate.
type LoadExistingStep struct {
	Importer TransactionImporter
}

func (s *LoadExistingStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result.Empty() {
		return nil
	}
	existing, err := s.Importer.LoadExisting(ctx, state.Session, state.Result.Transactions)
	if err != nil {
		return fmt.Errorf("loading existing entries: %w", err)
	}
	state.Existing = existing
	return nil
}

// Step 4: ImportTransactionsStep imports every parsed transaction.
type ImportTransactionsStep struct {
	Importer TransactionImporter
}

func (s *ImportTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result.Empty() {
		return nil
	}
	state.Counts = s.Importer.ImportSelected(ctx, state.Session, state.Result.Transactions, state.Existing)
	return nil
}

// Step 5: MarkProcessedStep records the outcome on the statement.
type MarkProcessedStep struct {
	Statements domain.StatementRepository
}

func (s *MarkProcessedStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Statements.MarkStatementProcessed(ctx, state.StatementID, len(state.Result.Transactions), state.Counts); err != nil {
		return fmt.Errorf("marking statement processed: %w", err)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
