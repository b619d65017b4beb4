package handler_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	budgetapp "github.com/casehub/backend/internal/application/budget"
	caseapp "github.com/casehub/backend/internal/application/casework"
	ledgerapp "github.com/casehub/backend/internal/application/ledger"
	programapp "github.com/casehub/backend/internal/application/program"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/infrastructure/cache"
	"github.com/casehub/backend/internal/infrastructure/config"
	"github.com/casehub/backend/internal/infrastructure/event"
	"github.com/casehub/backend/internal/infrastructure/export"
	"github.com/casehub/backend/internal/infrastructure/locking"
	"github.com/casehub/backend/internal/infrastructure/persistence"
	"github.com/casehub/backend/internal/infrastructure/storage"
	"github.com/casehub/backend/internal/interfaces/http/dto"
	"github.com/casehub/backend/internal/interfaces/http/handler"
	"github.com/casehub/backend/internal/interfaces/http/middleware"
	"github.com/casehub/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testAPI struct {
	engine  *gin.Engine
	actor   uuid.UUID
	storage *storage.MemoryObjectStorage
}

// newTestAPI wires the real services over a private in-memory sqlite
// database, the in-memory bus and both projections
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	log := zap.NewNop()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	idem := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idem.Close() })

	locks := locking.NewKeyedMutex()
	bus := event.NewInMemoryEventBus(log)
	numbers := persistence.NewGormNumberGenerator(db.DB)
	programRepo := persistence.NewGormProgramRepository(db.DB)

	budgetProjection := programapp.NewProgramBudgetProjection(programRepo, locks, log)
	for _, et := range budgetProjection.EventTypes() {
		bus.Subscribe(string(et), budgetProjection)
	}
	caseCount := event.NewIdempotentHandler("program-case-count",
		programapp.NewProgramCaseCountProjection(programRepo, locks, log), idem, log)
	bus.Subscribe(string(shared.EventTypeCaseCreated), caseCount)
	bus.Subscribe(string(shared.EventTypeCaseUpdated), caseCount)
	bus.Subscribe(string(shared.EventTypeCaseStatusChanged), caseCount)

	invoices := ledgerapp.NewInvoiceService(persistence.NewGormInvoiceRepository(db.DB), numbers, log,
		ledgerapp.WithLocks(locks))
	objects := storage.NewMemoryObjectStorage()
	exports := ledgerapp.NewExportService(invoices, export.NewCSVWriter(), log,
		ledgerapp.WithStorage(objects, time.Minute))

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.HeaderActorMiddleware())
	r := router.NewRouter(engine)
	r.Register(router.LedgerRoutes(
		handler.NewInvoiceHandler(invoices, exports),
		handler.NewBudgetHandler(budgetapp.NewBudgetService(persistence.NewGormBudgetRepository(db.DB), bus, log,
			budgetapp.WithLocks(locks))),
	))
	r.Register(router.CaseRoutes(handler.NewCaseHandler(caseapp.NewCaseService(
		persistence.NewGormCaseRepository(db.DB), numbers, bus, log, caseapp.WithLocks(locks)))))
	r.Register(router.ProgramRoutes(handler.NewProgramHandler(programapp.NewProgramService(
		programRepo, bus, log, programapp.WithLocks(locks)))))
	r.Setup()

	return &testAPI{engine: engine, actor: uuid.New(), storage: objects}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, a.actor.String())
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// data decodes the response data into out
func data(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (a *testAPI) createInvoice(t *testing.T) ledgerapp.InvoiceResponse {
	t.Helper()
	w, resp := a.do(t, http.MethodPost, "/ledger/invoices", map[string]any{
		"client_id":  uuid.New(),
		"currency":   "USD",
		"issue_date": "2026-03-01T00:00:00Z",
		"due_date":   "2099-03-31T00:00:00Z",
		"items": []map[string]any{
			{"description": "Consulting", "quantity": "2", "unit_price": "100", "tax_rate": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv ledgerapp.InvoiceResponse
	data(t, resp, &inv)
	return inv
}

func TestInvoiceAPI_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	inv := api.createInvoice(t)
	assert.Equal(t, "DRAFT", inv.Status)
	assert.Equal(t, "220", inv.TotalAmount.String())

	w, _ := api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp := api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/payments", map[string]any{
		"amount":       "120",
		"method":       "BANK_TRANSFER",
		"payment_date": "2026-03-05T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var paid ledgerapp.RecordPaymentResponse
	data(t, resp, &paid)
	assert.Equal(t, "PARTIALLY_PAID", paid.Invoice.Status)
	assert.NotEmpty(t, paid.Payment.ReceiptNumber)

	w, resp = api.do(t, http.MethodGet, "/ledger/invoices/"+inv.ID.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance ledgerapp.BalanceResponse
	data(t, resp, &balance)
	assert.Equal(t, "100", balance.BalanceDue.String())

	w, resp = api.do(t, http.MethodGet, "/ledger/invoices/number/"+inv.InvoiceNumber, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byNumber ledgerapp.InvoiceResponse
	data(t, resp, &byNumber)
	assert.Equal(t, inv.ID, byNumber.ID)

	w, resp = api.do(t, http.MethodGet, "/ledger/invoices/"+inv.ID.String()+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments []ledgerapp.PaymentResponse
	data(t, resp, &payments)
	require.Len(t, payments, 1)
	assert.Equal(t, api.actor, payments[0].CreatedBy)

	w, resp = api.do(t, http.MethodGet, "/ledger/invoices?status=PARTIALLY_PAID", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.EqualValues(t, 1, resp.Meta.Total)
}

func TestInvoiceAPI_ErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	inv := api.createInvoice(t)

	t.Run("invalid id", func(t *testing.T) {
		w, resp := api.do(t, http.MethodGet, "/ledger/invoices/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		w, resp := api.do(t, http.MethodGet, "/ledger/invoices/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("payment on draft is an invalid transition", func(t *testing.T) {
		w, resp := api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/payments", map[string]any{
			"amount": "10", "method": "CASH", "payment_date": "2026-03-05T00:00:00Z",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		w, _ := api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/approve", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, resp := api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/payments", map[string]any{
			"amount": "10", "currency": "EUR", "method": "CASH", "payment_date": "2026-03-05T00:00:00Z",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeCurrencyMismatch, resp.Error.Code)
	})

	t.Run("binding failure", func(t *testing.T) {
		w, resp := api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/payments", map[string]any{
			"amount": "-5", "method": "BARTER", "payment_date": "2026-03-05T00:00:00Z",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Len(t, resp.Error.Details, 2)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		w, _ := api.do(t, http.MethodPost, "/ledger/invoices/"+inv.ID.String()+"/reject", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInvoiceAPI_Export(t *testing.T) {
	api := newTestAPI(t)
	inv := api.createInvoice(t)

	w, _ := api.do(t, http.MethodGet, "/ledger/invoices/"+inv.ID.String()+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), inv.InvoiceNumber+".csv")
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, export.CSVHeader, rows[0])

	w, resp := api.do(t, http.MethodGet, "/ledger/invoices/"+inv.ID.String()+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	w, resp = api.do(t, http.MethodPost, "/ledger/invoices/export?status=DRAFT", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var link ledgerapp.ExportLinkResponse
	data(t, resp, &link)
	assert.Equal(t, 1, link.Invoices)
	_, ok := api.storage.Object(link.Key)
	assert.True(t, ok)
}

func TestBudgetAPI_UpdatePropagatesToPrograms(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(t, http.MethodPost, "/programs", map[string]any{
		"code": "P-1", "name": "Food aid", "currency": "USD", "budget_amount": "1000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var prog programapp.ProgramResponse
	data(t, resp, &prog)

	w, resp = api.do(t, http.MethodPost, "/ledger/budgets", map[string]any{
		"code": "B-1", "name": "2026", "currency": "USD", "total_amount": "1000",
		"program_ids": []uuid.UUID{prog.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bud budgetapp.BudgetResponse
	data(t, resp, &bud)

	w, _ = api.do(t, http.MethodPut, "/ledger/budgets/"+bud.ID.String(), map[string]any{
		"total_amount": "2500", "reason": "top-up",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = api.do(t, http.MethodGet, "/programs/"+prog.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data(t, resp, &prog)
	assert.Equal(t, "2500", prog.BudgetAmount.String())

	w, _ = api.do(t, http.MethodDelete, "/ledger/budgets/"+bud.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = api.do(t, http.MethodGet, "/ledger/budgets/"+bud.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCaseAPI_CountsOpenCasesPerProgram(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(t, http.MethodPost, "/programs", map[string]any{"code": "P-2", "name": "Shelter"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var prog programapp.ProgramResponse
	data(t, resp, &prog)

	w, resp = api.do(t, http.MethodPost, "/cases", map[string]any{
		"title": "Family A", "beneficiary_id": uuid.New(), "program_id": prog.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cs caseapp.CaseResponse
	data(t, resp, &cs)

	_, resp = api.do(t, http.MethodGet, "/programs/"+prog.ID.String(), nil)
	data(t, resp, &prog)
	assert.Equal(t, 1, prog.OpenCaseCount)

	w, _ = api.do(t, http.MethodPut, "/cases/"+cs.ID.String(), map[string]any{"status": "CLOSED", "status_reason": "resolved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, resp = api.do(t, http.MethodGet, "/programs/"+prog.ID.String(), nil)
	data(t, resp, &prog)
	assert.Equal(t, 0, prog.OpenCaseCount)

	w, resp = api.do(t, http.MethodGet, "/cases?program_id="+prog.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, resp.Meta.Total)
}

func TestCaseAPI_MovingACaseMovesItsCount(t *testing.T) {
	api := newTestAPI(t)

	programs := make([]programapp.ProgramResponse, 2)
	for i, code := range []string{"P-A", "P-B"} {
		w, resp := api.do(t, http.MethodPost, "/programs", map[string]any{"code": code, "name": "Shelter " + code})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		data(t, resp, &programs[i])
	}
	openCases := func(id uuid.UUID) int {
		var prog programapp.ProgramResponse
		_, resp := api.do(t, http.MethodGet, "/programs/"+id.String(), nil)
		data(t, resp, &prog)
		return prog.OpenCaseCount
	}

	w, resp := api.do(t, http.MethodPost, "/cases", map[string]any{
		"title": "Family B", "beneficiary_id": uuid.New(), "program_id": programs[0].ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cs caseapp.CaseResponse
	data(t, resp, &cs)

	w, _ = api.do(t, http.MethodPut, "/cases/"+cs.ID.String(), map[string]any{"program_id": programs[1].ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, openCases(programs[0].ID))
	assert.Equal(t, 1, openCases(programs[1].ID))

	w, _ = api.do(t, http.MethodPut, "/cases/"+cs.ID.String(), map[string]any{"clear_program": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, openCases(programs[1].ID))
}
