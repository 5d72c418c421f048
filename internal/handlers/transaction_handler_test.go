package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hisabkitab/backend/internal/models"
	"github.com/hisabkitab/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type transactionFixture struct {
	ledger      *MockLedger
	entities    *MockEntityStore
	connections *MockConnectionStore
	modes       *MockPaymentModeStore
}

func newTransactionFixture() *transactionFixture {
	return &transactionFixture{
		ledger:      new(MockLedger),
		entities:    new(MockEntityStore),
		connections: new(MockConnectionStore),
		modes:       new(MockPaymentModeStore),
	}
}

func (f *transactionFixture) router(userID uuid.UUID) *chi.Mux {
	h := NewTransactionHandler(f.ledger, f.entities, f.connections, f.modes, zap.NewNop())
	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.Get("/transactions", h.ListTransactions)
	r.Post("/transactions", h.CreateTransaction)
	r.Get("/transactions/{txId}", h.GetTransaction)
	r.Patch("/transactions/{txId}/status", h.UpdateTransactionStatus)
	r.Delete("/transactions/{txId}", h.DeleteTransaction)
	return r
}

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	bank := uuid.New()
	shop := uuid.New()
	body := `{"payer":"` + bank.String() + `","payee":"` + shop.String() + `","amount":"100.00","status":"COMPLETED"}`

	t.Run("between the caller's own entities", func(t *testing.T) {
		f := newTransactionFixture()
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.entities.On("Get", mock.Anything, shop).Return(&models.Entity{ID: shop, OwnerID: aliceID}, nil)
		f.ledger.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(in services.CreateTransactionInput) bool {
			return in.PayerID == bank && in.PayeeID == shop &&
				in.Amount.Equal(decimal.NewFromInt(100)) && in.Status == models.TransactionCompleted
		})).Return(&models.Transaction{ID: uuid.New(), PayerID: bank, PayeeID: shop, Status: models.TransactionCompleted}, nil)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body)))

		assert.Equal(t, http.StatusCreated, rr.Code)
		f.ledger.AssertExpectations(t)
		f.connections.AssertNotCalled(t, "AreConnected", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("to a connected user's entity", func(t *testing.T) {
		f := newTransactionFixture()
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.entities.On("Get", mock.Anything, shop).Return(&models.Entity{ID: shop, OwnerID: bobID}, nil)
		f.connections.On("AreConnected", mock.Anything, aliceID, bobID).Return(true, nil)
		f.ledger.On("CreateTransaction", mock.Anything, mock.Anything).Return(&models.Transaction{ID: uuid.New()}, nil)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body)))

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("to a stranger's entity", func(t *testing.T) {
		f := newTransactionFixture()
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.entities.On("Get", mock.Anything, shop).Return(&models.Entity{ID: shop, OwnerID: bobID}, nil)
		f.connections.On("AreConnected", mock.Anything, aliceID, bobID).Return(false, nil)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body)))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "NOT_CONNECTED", decodeError(t, rr).Code)
		f.ledger.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
	})

	t.Run("payer owned by someone else", func(t *testing.T) {
		f := newTransactionFixture()
		f.entities.On("GetOwned", mock.Anything, bank, bobID).Return(nil, services.ErrEntityNotFound)

		rr := httptest.NewRecorder()
		f.router(bobID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body)))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("ledger validation errors pass through", func(t *testing.T) {
		f := newTransactionFixture()
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.entities.On("Get", mock.Anything, shop).Return(&models.Entity{ID: shop, OwnerID: aliceID}, nil)
		f.ledger.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil, services.ErrInvalidAmount)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions",
			strings.NewReader(`{"payer":"`+bank.String()+`","payee":"`+shop.String()+`","amount":"-1"}`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "INVALID_AMOUNT", decodeError(t, rr).Code)
	})

	t.Run("category of another user", func(t *testing.T) {
		f := newTransactionFixture()
		category := uuid.New()
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.entities.On("Get", mock.Anything, shop).Return(&models.Entity{ID: shop, OwnerID: aliceID}, nil)
		f.entities.On("GetOwned", mock.Anything, category, aliceID).Return(nil, services.ErrEntityNotFound)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions",
			strings.NewReader(`{"payer":"`+bank.String()+`","payee":"`+shop.String()+`","amount":"5","category":"`+category.String()+`"}`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "INVALID_CATEGORY", decodeError(t, rr).Code)
	})

	t.Run("payment mode of another user", func(t *testing.T) {
		f := newTransactionFixture()
		mode := uuid.New()
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.entities.On("Get", mock.Anything, shop).Return(&models.Entity{ID: shop, OwnerID: aliceID}, nil)
		f.modes.On("Get", mock.Anything, mode, aliceID).Return(nil, services.ErrPaymentModeNotFound)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions",
			strings.NewReader(`{"payer":"`+bank.String()+`","payee":"`+shop.String()+`","amount":"5","mode":"`+mode.String()+`"}`)))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "PAYMENT_MODE_NOT_FOUND", decodeError(t, rr).Code)
		f.ledger.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
	})

	t.Run("own payment mode", func(t *testing.T) {
		f := newTransactionFixture()
		mode := uuid.New()
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.entities.On("Get", mock.Anything, shop).Return(&models.Entity{ID: shop, OwnerID: aliceID}, nil)
		f.modes.On("Get", mock.Anything, mode, aliceID).Return(&models.PaymentMode{ID: mode, OwnerID: aliceID}, nil)
		f.ledger.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(in services.CreateTransactionInput) bool {
			return in.ModeID != nil && *in.ModeID == mode
		})).Return(&models.Transaction{ID: uuid.New(), ModeID: &mode}, nil)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions",
			strings.NewReader(`{"payer":"`+bank.String()+`","payee":"`+shop.String()+`","amount":"5","mode":"`+mode.String()+`"}`)))

		assert.Equal(t, http.StatusCreated, rr.Code)
		f.modes.AssertExpectations(t)
	})
}

func TestTransactionHandler_UpdateTransactionStatus(t *testing.T) {
	txID := uuid.New()
	bank := uuid.New()
	path := "/transactions/" + txID.String() + "/status"

	t.Run("payer owner completes once", func(t *testing.T) {
		f := newTransactionFixture()
		f.ledger.On("GetForUser", mock.Anything, txID, aliceID).Return(&models.Transaction{ID: txID, PayerID: bank}, nil)
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.ledger.On("UpdateStatus", mock.Anything, txID, models.TransactionCompleted).
			Return(&models.Transaction{ID: txID, Status: models.TransactionCompleted}, nil).Once()
		f.ledger.On("UpdateStatus", mock.Anything, txID, models.TransactionCompleted).
			Return(nil, services.ErrInvalidTransition).Once()

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"status":"COMPLETED"}`)))
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"status":"COMPLETED"}`)))
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "INVALID_TRANSITION", decodeError(t, rr).Code)

		rr = httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"status":"DONE"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		f.ledger.AssertExpectations(t)
	})

	t.Run("payee owner cannot complete", func(t *testing.T) {
		f := newTransactionFixture()
		f.ledger.On("GetForUser", mock.Anything, txID, bobID).
			Return(&models.Transaction{ID: txID, PayerID: bank, Status: models.TransactionPending}, nil)
		f.entities.On("GetOwned", mock.Anything, bank, bobID).Return(nil, services.ErrEntityNotFound)

		rr := httptest.NewRecorder()
		f.router(bobID).ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"status":"COMPLETED"}`)))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "NOT_TRANSACTION_OWNER", decodeError(t, rr).Code)
		f.ledger.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stranger sees not found", func(t *testing.T) {
		f := newTransactionFixture()
		f.ledger.On("GetForUser", mock.Anything, txID, bobID).Return(nil, services.ErrTransactionNotFound)

		rr := httptest.NewRecorder()
		f.router(bobID).ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"status":"REJECTED"}`)))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		f.entities.AssertNotCalled(t, "GetOwned", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTransactionHandler_DeleteTransaction(t *testing.T) {
	txID := uuid.New()
	bank := uuid.New()

	t.Run("payer owner deletes", func(t *testing.T) {
		f := newTransactionFixture()
		f.ledger.On("GetForUser", mock.Anything, txID, aliceID).Return(&models.Transaction{ID: txID, PayerID: bank}, nil)
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(&models.Entity{ID: bank, OwnerID: aliceID}, nil)
		f.ledger.On("DeleteTransaction", mock.Anything, txID).Return(nil)

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/transactions/"+txID.String(), nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		f.ledger.AssertExpectations(t)
	})

	t.Run("payee owner cannot delete a completed transaction", func(t *testing.T) {
		f := newTransactionFixture()
		f.ledger.On("GetForUser", mock.Anything, txID, bobID).
			Return(&models.Transaction{ID: txID, PayerID: bank, Status: models.TransactionCompleted}, nil)
		f.entities.On("GetOwned", mock.Anything, bank, bobID).Return(nil, services.ErrEntityNotFound)

		rr := httptest.NewRecorder()
		f.router(bobID).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/transactions/"+txID.String(), nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		f.ledger.AssertNotCalled(t, "DeleteTransaction", mock.Anything, mock.Anything)
	})

	t.Run("someone else's transaction", func(t *testing.T) {
		f := newTransactionFixture()
		f.ledger.On("GetForUser", mock.Anything, txID, bobID).Return(nil, services.ErrTransactionNotFound)

		rr := httptest.NewRecorder()
		f.router(bobID).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/transactions/"+txID.String(), nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		f.ledger.AssertNotCalled(t, "DeleteTransaction", mock.Anything, mock.Anything)
	})

	t.Run("ownership lookup failure is internal", func(t *testing.T) {
		f := newTransactionFixture()
		f.ledger.On("GetForUser", mock.Anything, txID, aliceID).Return(&models.Transaction{ID: txID, PayerID: bank}, nil)
		f.entities.On("GetOwned", mock.Anything, bank, aliceID).Return(nil, errors.New("pq: connection reset"))

		rr := httptest.NewRecorder()
		f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/transactions/"+txID.String(), nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		f.ledger.AssertNotCalled(t, "DeleteTransaction", mock.Anything, mock.Anything)
	})
}

func TestTransactionHandler_ListTransactions(t *testing.T) {
	f := newTransactionFixture()
	f.ledger.On("ListForUser", mock.Anything, aliceID).Return(nil, errors.New("pq: connection refused")).Once()
	f.ledger.On("ListForUser", mock.Anything, aliceID).Return([]models.Transaction{{ID: uuid.New()}}, nil).Once()

	rr := httptest.NewRecorder()
	f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "An Internal Error Occurred", decodeError(t, rr).Error)

	rr = httptest.NewRecorder()
	f.router(aliceID).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
