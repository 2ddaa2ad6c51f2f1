package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/infra/memory"
	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
	"github.com/dvloznov/budget-ledger/internal/statement"
	"github.com/rs/zerolog"
)

const twoTransactions = `OFXHEADER:100
<OFX><BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115
<TRNAMT>-45.90
<FITID>A1
<MEMO>PADARIA SAO JOSE
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240110
<TRNAMT>3000.00
<FITID>A2
<MEMO>SALARIO ACME
</STMTTRN>
</BANKTRANLIST></OFX>
`

func testContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

func testSession() domain.Session {
	return domain.Session{
		UserID: "user-1",
		Clock:  func() time.Time { return time.Date(2024, time.February, 1, 9, 0, 0, 0, time.UTC) },
	}
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	err := store.InsertCategories(context.Background(), []domain.Category{
		{ID: "c-food", UserID: "user-1", Name: "Food", Direction: domain.DirectionExpense},
		{ID: "c-salary", UserID: "user-1", Name: "Salary", Direction: domain.DirectionIncome},
	})
	if err != nil {
		t.Fatalf("seeding categories: %v", err)
	}
	return store
}

func newIngestor(store *memory.Store, storage pipeline.StorageService) *pipeline.Ingestor {
	importer := statement.NewImporter(store, store, nil)
	return pipeline.NewIngestor(store, storage, statement.NewParser(), importer, "test-bucket")
}

func TestRegisterAndIngest(t *testing.T) {
	ctx := testContext()
	s := testSession()
	store := seededStore(t)
	archive := memory.NewArchive()
	in := newIngestor(store, archive)

	rec, dup, err := in.Register(ctx, s, "jan.ofx", []byte(twoTransactions))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if dup {
		t.Fatal("first upload reported as duplicate")
	}
	if rec.Status != domain.StatementPending || !strings.HasPrefix(rec.URI, "gs://test-bucket/statements/user-1/") {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Filename != "jan.ofx" {
		t.Errorf("filename = %q", rec.Filename)
	}

	counts, err := in.Ingest(ctx, s, rec.ID)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if counts.Imported != 2 || counts.Duplicates != 0 || counts.Errors != 0 {
		t.Errorf("counts = %+v", counts)
	}

	got, err := store.GetStatement(ctx, s.UserID, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatementProcessed || got.Parsed != 2 || got.Counts != counts {
		t.Errorf("statement not marked processed: %+v", got)
	}

	// A second run finds everything already imported.
	counts, err = in.Ingest(ctx, s, rec.ID)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if counts.Imported != 0 || counts.Duplicates != 2 {
		t.Errorf("second run counts = %+v", counts)
	}
}

func TestRegisterDetectsSameContent(t *testing.T) {
	ctx := testContext()
	s := testSession()
	store := seededStore(t)
	in := newIngestor(store, memory.NewArchive())

	first, _, err := in.Register(ctx, s, "jan.ofx", []byte(twoTransactions))
	if err != nil {
		t.Fatal(err)
	}
	second, dup, err := in.Register(ctx, s, "copy.ofx", []byte(twoTransactions))
	if err != nil {
		t.Fatal(err)
	}
	if !dup || second.ID != first.ID {
		t.Errorf("expected the first record back as a duplicate, got %+v (dup=%v)", second, dup)
	}

	all, _ := store.ListStatements(ctx, s.UserID)
	if len(all) != 1 {
		t.Errorf("expected one stored statement, got %d", len(all))
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := testContext()
	store := seededStore(t)

	in := newIngestor(store, memory.NewArchive())
	if _, _, err := in.Register(ctx, testSession(), "x.ofx", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty payload: got %v", err)
	}

	in.Bucket = ""
	if _, _, err := in.Register(ctx, testSession(), "x.ofx", []byte("data")); !errors.Is(err, pipeline.ErrNoBucket) {
		t.Errorf("no bucket: got %v", err)
	}
}

func TestIngestFetchFailureMarksFailed(t *testing.T) {
	ctx := testContext()
	s := testSession()
	store := seededStore(t)
	storage := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return nil, errors.New("bucket unavailable")
		},
	}
	in := newIngestor(store, storage)

	rec, _, err := in.Register(ctx, s, "jan.ofx", []byte(twoTransactions))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := in.Ingest(ctx, s, rec.ID); err == nil {
		t.Fatal("expected ingest to fail")
	}

	got, _ := store.GetStatement(ctx, s.UserID, rec.ID)
	if got.Status != domain.StatementFailed || !strings.Contains(got.Error, "bucket unavailable") {
		t.Errorf("statement not marked failed: %+v", got)
	}
}

func TestIngestEmptyStatement(t *testing.T) {
	ctx := testContext()
	s := testSession()
	store := seededStore(t)
	in := newIngestor(store, memory.NewArchive())

	rec, _, err := in.Register(ctx, s, "empty.ofx", []byte("OFXHEADER:100\n<OFX></OFX>"))
	if err != nil {
		t.Fatal(err)
	}
	counts, err := in.Ingest(ctx, s, rec.ID)
	if err != nil {
		t.Fatalf("empty statement should not fail: %v", err)
	}
	if counts != (domain.ImportCounts{}) {
		t.Errorf("counts = %+v", counts)
	}
	got, _ := store.GetStatement(ctx, s.UserID, rec.ID)
	if got.Status != domain.StatementProcessed {
		t.Errorf("status = %s", got.Status)
	}
}

func TestIngestUnknownStatement(t *testing.T) {
	in := newIngestor(seededStore(t), memory.NewArchive())
	_, err := in.Ingest(testContext(), testSession(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type otherJob struct{}

func (otherJob) GetID() string             { return "x" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestHandleJob(t *testing.T) {
	ctx := testContext()
	store := seededStore(t)
	in := newIngestor(store, memory.NewArchive())

	rec, _, err := in.Register(ctx, domain.NewSession("user-1"), "jan.ofx", []byte(twoTransactions))
	if err != nil {
		t.Fatal(err)
	}

	job := &jobs.ImportStatementJob{JobID: "j1", UserID: "user-1", StatementID: rec.ID, GCSURI: rec.URI}
	if err := in.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}
	if job.Counts == nil || job.Counts.Imported != 2 {
		t.Errorf("job counts = %+v", job.Counts)
	}

	if err := in.HandleJob(ctx, otherJob{}); err == nil {
		t.Error("expected an error for an unknown job type")
	}
}
