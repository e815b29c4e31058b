package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	ledgermemory "github.com/commercekit/settlement/internal/domains/ledger/adapters/memory"
	ledgerdomain "github.com/commercekit/settlement/internal/domains/ledger/domain"
	ordersmemory "github.com/commercekit/settlement/internal/domains/orders/adapters/memory"
	ordersworkflows "github.com/commercekit/settlement/internal/domains/orders/adapters/workflows"
	"github.com/commercekit/settlement/internal/domains/orders/application"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
	paymentports "github.com/commercekit/settlement/internal/domains/payment/ports"
)

type scriptedGateway struct {
	mu       sync.Mutex
	submitFn func(paymentports.SubmitRequest) paymentdomain.AttemptResult
	queryFn  func(ownerRef string, orderID int64) ([]paymentdomain.TransactionRecord, error)
}

func (g *scriptedGateway) Submit(_ context.Context, req paymentports.SubmitRequest) paymentdomain.AttemptResult {
	g.mu.Lock()
	fn := g.submitFn
	g.mu.Unlock()
	if fn == nil {
		return paymentdomain.Success{TransactionKey: "tx-stub"}
	}
	return fn(req)
}

func (g *scriptedGateway) TransactionsByOrder(_ context.Context, ownerRef string, orderID int64) ([]paymentdomain.TransactionRecord, error) {
	g.mu.Lock()
	fn := g.queryFn
	g.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ownerRef, orderID)
}

func newTestRouter(t *testing.T) (*gin.Engine, *scriptedGateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := ledgermemory.NewStore()
	ledger.SeedProduct(ledgerdomain.Product{ID: 1, Name: "keyboard", Price: 50_000, Stock: 10})
	ledger.SeedWallet(ledgerdomain.Wallet{OwnerRef: "user-1", Balance: 100_000})
	repo := ordersmemory.NewRepository()
	gateway := &scriptedGateway{}

	service := application.NewService(repo, ledger, gateway, ordersmemory.NewTxManager(ledger, repo),
		application.WithDelayer(ports.NopDelayer{}))
	router := gin.New()
	NewHandler(service, ordersworkflows.NewInlineRecovery(service)).Register(router)
	return router, gateway
}

func performJSON(t *testing.T, router *gin.Engine, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func createBody() map[string]any {
	return map[string]any{
		"items":    []map[string]any{{"productId": 1, "quantity": 2}},
		"cardType": "SAMSUNG",
		"cardNo":   "1234-5678-9012-3456",
	}
}

func TestCreateOrder_Created(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())
	require.Equal(t, http.StatusCreated, recorder.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "000001", resp.OrderRef)
	require.Equal(t, "PENDING", resp.Status)
	require.Equal(t, int64(100_000), resp.ChargeAmount)
	require.Equal(t, "tx-stub", resp.PaymentKey)
}

func TestCreateOrder_MissingOwnerHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders", "", createBody())
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreateOrder_DeclineMapsToPaymentRequired(t *testing.T) {
	router, gateway := newTestRouter(t)
	gateway.submitFn = func(paymentports.SubmitRequest) paymentdomain.AttemptResult {
		return paymentdomain.BusinessFailure{Code: "LIMIT_EXCEEDED", Message: "daily limit exceeded"}
	}

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())
	require.Equal(t, http.StatusPaymentRequired, recorder.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &problem))
	require.Contains(t, problem["detail"], "LIMIT_EXCEEDED")
}

func TestCreateOrder_OutOfStockMapsToUnprocessable(t *testing.T) {
	router, _ := newTestRouter(t)

	body := createBody()
	body["items"] = []map[string]any{{"productId": 1, "quantity": 999}}
	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", body)
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestGetOrder_NotFoundForStranger(t *testing.T) {
	router, _ := newTestRouter(t)
	performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())

	recorder := performJSON(t, router, http.MethodGet, "/api/v1/orders/1", "user-2", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = performJSON(t, router, http.MethodGet, "/api/v1/orders/1", "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestGetOrder_RejectsBadID(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := performJSON(t, router, http.MethodGet, "/api/v1/orders/abc", "user-1", nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListOrders_ReturnsOwnersOrders(t *testing.T) {
	router, _ := newTestRouter(t)
	performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())
	performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())

	recorder := performJSON(t, router, http.MethodGet, "/api/v1/orders", "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp []orderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
}

func TestCancelOrder_ReturnsCanceledView(t *testing.T) {
	router, _ := newTestRouter(t)
	performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())

	recorder := performJSON(t, router, http.MethodDelete, "/api/v1/orders/1", "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "CANCELED", resp.Status)
}

func TestPaymentCallback_CompletesOrder(t *testing.T) {
	router, gateway := newTestRouter(t)
	performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())
	gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return []paymentdomain.TransactionRecord{{TransactionKey: "tx-stub", Status: paymentdomain.TxSuccess}}, nil
	}

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders/payments/callback", "", map[string]any{
		"transactionKey": "tx-stub",
		"orderId":        "000001",
		"status":         "SUCCESS",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	get := performJSON(t, router, http.MethodGet, "/api/v1/orders/1", "user-1", nil)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &resp))
	require.Equal(t, "COMPLETED", resp.Status)
}

func TestPaymentCallback_RejectsMalformedOrderID(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders/payments/callback", "", map[string]any{
		"transactionKey": "tx-stub",
		"orderId":        "not-a-number",
		"status":         "SUCCESS",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRecoverOrder_Accepted(t *testing.T) {
	router, gateway := newTestRouter(t)
	performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())
	gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return []paymentdomain.TransactionRecord{{TransactionKey: "tx-stub", Status: paymentdomain.TxSuccess}}, nil
	}

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders/1/recover", "", nil)
	require.Equal(t, http.StatusAccepted, recorder.Code)

	get := performJSON(t, router, http.MethodGet, "/api/v1/orders/1", "user-1", nil)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &resp))
	require.Equal(t, "COMPLETED", resp.Status)
}

func TestReconcileOrders_ReturnsReport(t *testing.T) {
	router, gateway := newTestRouter(t)
	performJSON(t, router, http.MethodPost, "/api/v1/orders", "user-1", createBody())
	gateway.queryFn = func(string, int64) ([]paymentdomain.TransactionRecord, error) {
		return []paymentdomain.TransactionRecord{{TransactionKey: "tx-stub", Status: paymentdomain.TxSuccess}}, nil
	}

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/orders/reconcile", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp reconcileResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Examined)
	require.Equal(t, 1, resp.Completed)
}
