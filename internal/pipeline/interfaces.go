package pipeline

import (
	"context"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/gcs"
	"github.com/dvloznov/budget-ledger/internal/statement"
)

// StorageService is the archive the pipeline reads statements from.
type StorageService = gcs.StorageService

// StatementParser turns raw statement bytes into transactions.
type StatementParser interface {
	ParseBytes(data []byte) (statement.Result, error)
}

// TransactionImporter loads the entries a statement could duplicate and
// imports transactions against them.
type TransactionImporter interface {
	LoadExisting(ctx context.Context, s domain.Session, txs []statement.Transaction) ([]domain.Entry, error)
	ImportSelected(ctx context.Context, s domain.Session, selected []statement.Transaction, existing []domain.Entry) domain.ImportCounts
}

var (
	_ StatementParser     = (*statement.Parser)(nil)
	_ TransactionImporter = (*statement.Importer)(nil)
)
