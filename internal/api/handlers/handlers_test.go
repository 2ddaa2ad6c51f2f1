package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/infra/memory"
	"github.com/dvloznov/budget-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/budget-ledger/internal/ledger"
	"github.com/dvloznov/budget-ledger/internal/pipeline"
	"github.com/dvloznov/budget-ledger/internal/statement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOFX = `OFXHEADER:100
<OFX><BANKMSGSRSV1><STMTTRNRS><STMTRS><BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000
<TRNAMT>-45.90
<FITID>X1
<MEMO>PADARIA SAO JOSE 12/34
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240110
<TRNAMT>1500.00
<FITID>X2
<MEMO>SALARIO EMPRESA
</STMTTRN>
</BANKTRANLIST></STMTRS></STMTTRNRS></BANKMSGSRSV1></OFX>`

type testAPI struct {
	handler http.Handler
	store   *memory.Store
	jobs    *inmemory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.NewStore()
	engine := ledger.NewEngine(store)
	parser := statement.NewParser()
	importer := statement.NewImporter(store, store, nil)
	ingestor := pipeline.NewIngestor(store, memory.NewArchive(), parser, importer, "statements")
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, 1, jobStore)
	t.Cleanup(func() { _ = queue.Close() })

	mux := http.NewServeMux()
	NewEntriesHandler(engine).Register(mux)
	NewInstallmentsHandler(engine).Register(mux)
	NewCategoriesHandler(engine).Register(mux)
	NewRecurringBillsHandler(engine).Register(mux)
	NewStatementsHandler(parser, importer, statement.NewSessions(), ingestor, store, queue, 0).Register(mux)
	NewJobsHandler(jobStore).Register(mux)
	NewReportsHandler(engine).Register(mux)

	return &testAPI{
		handler: middleware.Auth("/health")(mux),
		store:   store,
		jobs:    jobStore,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(middleware.UserHeader, "user-1")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func decimalField(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	raw, ok := m[key].(string)
	require.True(t, ok, "field %s = %#v", key, m[key])
	return decimal.RequireFromString(raw)
}

func TestMissingUserIsRejected(t *testing.T) {
	api := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEntriesLifecycle(t *testing.T) {
	api := newTestAPI(t)

	rec, created := api.do(t, http.MethodPost, "/api/entries", `{
		"date": "2024-03-05",
		"description": "Coffee",
		"category_id": "c1",
		"amount": "10.00",
		"direction": "expense",
		"status": "paid"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := created["id"].(string)

	rec, list := api.do(t, http.MethodGet, "/api/entries?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, list["count"])

	rec, list = api.do(t, http.MethodGet, "/api/entries?month=2024-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, list["count"])

	rec, summary := api.do(t, http.MethodGet, "/api/summary?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03", summary["month"])
	paid := summary["summary"].(map[string]interface{})["paid_expense"].(map[string]interface{})
	assert.EqualValues(t, 1, paid["count"])

	rec, toggled := api.do(t, http.MethodPost, "/api/entries/"+id+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", toggled["status"])

	rec, _ = api.do(t, http.MethodDelete, "/api/entries/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/entries/"+id+"/toggle", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEntryValidation(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPost, "/api/entries", `{"date":"2024-03-05","description":"x","category_id":"c1","amount":"-1","direction":"expense"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "amount")

	rec, _ = api.do(t, http.MethodPost, "/api/entries", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/api/entries?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstallmentsGenerateAndSettle(t *testing.T) {
	api := newTestAPI(t)

	rec, generated := api.do(t, http.MethodPost, "/api/installments", `{
		"start_date": "2024-01-31",
		"description": "Laptop",
		"category_id": "c1",
		"direction": "expense",
		"count": 3,
		"total": "300.00"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, generated["count"])
	entries := generated["entries"].([]interface{})
	second := entries[1].(map[string]interface{})
	assert.Equal(t, "2024-02-29", second["date"])
	assert.True(t, decimalField(t, second, "amount").Equal(decimal.NewFromInt(100)))

	rec, listed := api.do(t, http.MethodGet, "/api/installments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, listed["count"])
	key := listed["series"].([]interface{})[0].(map[string]interface{})["key"].(string)

	rec, settled := api.do(t, http.MethodPost, "/api/installments/settle", `{"series_key":"`+key+`","discount":"50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := settled["entry"].(map[string]interface{})
	assert.Equal(t, "paid", entry["status"])
	assert.True(t, decimalField(t, entry, "amount").Equal(decimal.NewFromInt(250)))

	rec, listed = api.do(t, http.MethodGet, "/api/installments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, listed["count"])
}

func TestInstallmentsValidation(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/installments", `{"start_date":"2024-01-31","description":"x","category_id":"c1","direction":"expense","count":0,"amount":"10"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/installments/settle", `{"series_key":"a","entry_ids":["b"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/installments/settle", `{"entry_ids":["missing"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecurringBills(t *testing.T) {
	api := newTestAPI(t)

	rec, bill := api.do(t, http.MethodPost, "/api/recurring-bills", `{"description":"Rent","category_id":"c1","amount":"1200","direction":"expense","due_day":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, bill["active"])

	rec, generated := api.do(t, http.MethodPost, "/api/recurring-bills/generate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := generated["result"].(map[string]interface{})
	assert.EqualValues(t, 1, result["generated"])

	rec, generated = api.do(t, http.MethodPost, "/api/recurring-bills/generate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result = generated["result"].(map[string]interface{})
	assert.EqualValues(t, 0, result["generated"])
	assert.EqualValues(t, 1, result["already_present"])

	rec, _ = api.do(t, http.MethodPost, "/api/recurring-bills/"+bill["id"].(string)+"/active", `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, listed := api.do(t, http.MethodGet, "/api/recurring-bills?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, listed["count"])

	rec, _ = api.do(t, http.MethodPost, "/api/recurring-bills/generate?month=2024-13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatementPreviewSelectAndImport(t *testing.T) {
	api := newTestAPI(t)

	rec, seeded := api.do(t, http.MethodPost, "/api/categories/seed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Greater(t, seeded["created"], float64(0))

	rec, preview := api.do(t, http.MethodPost, "/api/statements/preview", sampleOFX)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, preview["total"])
	assert.EqualValues(t, 0, preview["selected"])
	first := preview["transactions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "2024-01-15", first["date"])
	assert.Equal(t, "PADARIA SAO JOSE", first["merchant"])

	rec, view := api.do(t, http.MethodGet, "/api/statements/preview?kind=credit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, view["transactions"], 1)

	rec, sel := api.do(t, http.MethodPost, "/api/statements/selection", `{"selected":true,"seqs":[0]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, sel["selected"])

	rec, _ = api.do(t, http.MethodPost, "/api/statements/selection", `{"selected":true,"seqs":[7]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, counts := api.do(t, http.MethodPost, "/api/statements/import", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, counts["imported"])
	assert.EqualValues(t, 0, counts["duplicates"])

	rec, _ = api.do(t, http.MethodGet, "/api/statements/preview", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Importing the same transaction again is caught as a duplicate.
	api.do(t, http.MethodPost, "/api/statements/preview", sampleOFX)
	api.do(t, http.MethodPost, "/api/statements/selection", `{"selected":true,"matching":true,"filter":{"kind":"debit"}}`)
	rec, counts = api.do(t, http.MethodPost, "/api/statements/import", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, counts["imported"])
	assert.EqualValues(t, 1, counts["duplicates"])
}

func TestStatementPreviewEmpty(t *testing.T) {
	api := newTestAPI(t)

	rec, preview := api.do(t, http.MethodPost, "/api/statements/preview", "<OFX></OFX>")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, preview["warning"])

	rec, _ = api.do(t, http.MethodPost, "/api/statements/import", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatementUploadEnqueuesJob(t *testing.T) {
	api := newTestAPI(t)

	rec, uploaded := api.do(t, http.MethodPost, "/api/statements/upload?filename=jan.ofx", sampleOFX)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := uploaded["job_id"].(string)
	require.NotEmpty(t, jobID)

	rec, again := api.do(t, http.MethodPost, "/api/statements/upload?filename=jan.ofx", sampleOFX)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, again["duplicate"])

	rec, listed := api.do(t, http.MethodGet, "/api/statements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, listed["count"])

	rec, jobList := api.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, jobList["count"])

	rec, job := api.do(t, http.MethodGet, "/api/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", job["user_id"])

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil)
	req.Header.Set(middleware.UserHeader, "someone-else")
	other := httptest.NewRecorder()
	api.handler.ServeHTTP(other, req)
	assert.Equal(t, http.StatusNotFound, other.Code)
}

func TestPeriodReport(t *testing.T) {
	api := newTestAPI(t)

	api.do(t, http.MethodPost, "/api/entries", `{"date":"2024-03-05","description":"Pay","category_id":"c1","amount":"100","direction":"income","status":"paid"}`)
	api.do(t, http.MethodPost, "/api/entries", `{"date":"2024-03-06","description":"Food","category_id":"c2","amount":"30","direction":"expense","status":"paid"}`)
	api.do(t, http.MethodPost, "/api/entries", `{"date":"2024-03-07","description":"Later","category_id":"c2","amount":"99","direction":"expense"}`)

	rec, body := api.do(t, http.MethodGet, "/api/reports?from=2024-03-01&to=2024-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decimalField(t, body, "balance").Equal(decimal.NewFromInt(70)))
	assert.EqualValues(t, 2, body["count"])

	rec, _ = api.do(t, http.MethodGet, "/api/reports?from=2024-03-31&to=2024-03-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategoriesCreateUpdateDelete(t *testing.T) {
	api := newTestAPI(t)

	rec, created := api.do(t, http.MethodPost, "/api/categories", `{"name":" Pets ","direction":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Pets", created["name"])
	id := created["id"].(string)

	rec, _ = api.do(t, http.MethodPost, "/api/categories", `{"name":"pets","direction":"expense"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, updated := api.do(t, http.MethodPut, "/api/categories/"+id, `{"name":"Animals","direction":"expense"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Animals", updated["name"])

	rec, _ = api.do(t, http.MethodPost, "/api/entries", `{"date":"2024-03-05","description":"Vet","category_id":"`+id+`","amount":"80","direction":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := api.do(t, http.MethodDelete, "/api/categories/"+id, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "in use")

	rec, _ = api.do(t, http.MethodDelete, "/api/categories/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateEntry(t *testing.T) {
	api := newTestAPI(t)

	rec, created := api.do(t, http.MethodPost, "/api/entries", `{"date":"2024-03-05","description":"Coffee","category_id":"c1","amount":"10","direction":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := created["id"].(string)

	rec, updated := api.do(t, http.MethodPut, "/api/entries/"+id, `{
		"date": "2024-03-07",
		"description": "Coffee beans",
		"category_id": "c2",
		"amount": "24.90",
		"direction": "expense",
		"status": "paid",
		"notes": "1kg"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-03-07", updated["date"])
	assert.Equal(t, "paid", updated["status"])
	assert.True(t, decimalField(t, updated, "amount").Equal(decimal.RequireFromString("24.90")))

	rec, _ = api.do(t, http.MethodPut, "/api/entries/"+id, `{"date":"2024-03-07","description":"x","category_id":"c2","amount":"1","direction":"expense","status":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPut, "/api/entries/missing", `{"date":"2024-03-07","description":"x","category_id":"c2","amount":"1","direction":"expense","status":"paid"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecurringBillUpdateAndDelete(t *testing.T) {
	api := newTestAPI(t)

	rec, bill := api.do(t, http.MethodPost, "/api/recurring-bills", `{"description":"Gym","category_id":"c1","amount":"90","direction":"expense","due_day":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := bill["id"].(string)

	rec, updated := api.do(t, http.MethodPut, "/api/recurring-bills/"+id, `{"description":"Gym plus","category_id":"c1","amount":"120","direction":"expense","due_day":31,"active":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 31, updated["due_day"])
	assert.Equal(t, "Gym plus", updated["description"])

	rec, _ = api.do(t, http.MethodPut, "/api/recurring-bills/"+id, `{"description":"Gym","category_id":"c1","amount":"120","direction":"expense","due_day":32,"active":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodDelete, "/api/recurring-bills/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, listed := api.do(t, http.MethodGet, "/api/recurring-bills", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, listed["count"])

	rec, _ = api.do(t, http.MethodDelete, "/api/recurring-bills/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSeries(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/installments", `{"start_date":"2024-01-10","description":"Sofa","category_id":"c1","direction":"expense","count":4,"amount":"250"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, listed := api.do(t, http.MethodGet, "/api/installments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	key := listed["series"].([]interface{})[0].(map[string]interface{})["key"].(string)

	rec, body := api.do(t, http.MethodDelete, "/api/installments/series?key="+url.QueryEscape(key), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 4, body["deleted"])

	rec, listed = api.do(t, http.MethodGet, "/api/installments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, listed["count"])

	rec, _ = api.do(t, http.MethodDelete, "/api/installments/series?key="+url.QueryEscape(key), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(t, http.MethodDelete, "/api/installments/series", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCarryPendingAndBalance(t *testing.T) {
	api := newTestAPI(t)

	for _, body := range []string{
		`{"date":"2024-02-01","description":"Salary","category_id":"c-in","amount":"1000","direction":"income","status":"paid"}`,
		`{"date":"2024-02-10","description":"Rent","category_id":"c1","amount":"700","direction":"expense","status":"paid"}`,
		`{"date":"2024-02-20","description":"Power","category_id":"c1","amount":"100","direction":"expense"}`,
	} {
		rec, _ := api.do(t, http.MethodPost, "/api/entries", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, balance := api.do(t, http.MethodPost, "/api/entries/carry-balance?month=2024-03", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := balance["entry"].(map[string]interface{})
	assert.Equal(t, "income", entry["direction"])
	assert.Equal(t, "2024-03-01", entry["date"])
	assert.True(t, decimalField(t, entry, "amount").Equal(decimal.NewFromInt(200)))

	rec, _ = api.do(t, http.MethodPost, "/api/entries/carry-balance?month=2024-03", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, moved := api.do(t, http.MethodPost, "/api/entries/carry-pending?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, moved["moved"])

	rec, list := api.do(t, http.MethodGet, "/api/entries?month=2024-02&status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, list["count"])

	rec, list = api.do(t, http.MethodGet, "/api/entries?month=2024-03&status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, list["count"])

	rec, _ = api.do(t, http.MethodPost, "/api/entries/carry-pending?month=bad", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
