package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tamoykinden/Final-project-auto-purch/internal/checkout"
	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
)

// --- Mocks ---

type OrdersMock struct {
	order  *domain.Order
	orders []*domain.Order
	err    error
}

func (m OrdersMock) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.order == nil || m.order.ID != orderID {
		return nil, domain.ErrNotFound
	}
	return m.order, nil
}

func (m OrdersMock) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

type TrackerMock struct {
	sub   *domain.SubOrder
	order *domain.Order
	err   error

	lastStatus domain.Status
}

func (m *TrackerMock) TransitionBySupplier(ctx context.Context, supplierID string, subOrderID uuid.UUID, next domain.Status) (*domain.SubOrder, error) {
	m.lastStatus = next
	if m.err != nil {
		return nil, m.err
	}
	sub := *m.sub
	sub.Status = next
	return &sub, nil
}

func (m *TrackerMock) Cancel(ctx context.Context, buyerID string, subOrderID uuid.UUID) (*domain.SubOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	sub := *m.sub
	sub.Status = domain.StatusCancelled
	return &sub, nil
}

func (m *TrackerMock) CancelOrder(ctx context.Context, buyerID string, orderID uuid.UUID) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

type CheckoutMock struct {
	orderID uuid.UUID
	err     error
	last    checkout.Request
}

func (m *CheckoutMock) Checkout(ctx context.Context, req checkout.Request) (uuid.UUID, error) {
	m.last = req
	if m.err != nil {
		return uuid.Nil, m.err
	}
	return m.orderID, nil
}

// --- fixtures ---

func testOrder(buyerID string) *domain.Order {
	orderID := uuid.New()
	now := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:        orderID,
		BuyerID:   buyerID,
		CreatedAt: now,
		SubOrders: []domain.SubOrder{
			{
				ID: uuid.New(), OrderID: orderID, SupplierID: "x", BuyerID: buyerID, Status: domain.StatusShipped,
				Items: []domain.LineItem{{ProductID: 1, ProductName: "Drill", Quantity: 2, UnitPrice: decimal.NewFromInt(100), Subtotal: decimal.NewFromInt(200)}},
				CreatedAt: now, UpdatedAt: now,
			},
			{
				ID: uuid.New(), OrderID: orderID, SupplierID: "y", BuyerID: buyerID, Status: domain.StatusConfirmed,
				Items: []domain.LineItem{{ProductID: 2, ProductName: "Saw", Quantity: 1, UnitPrice: decimal.NewFromInt(250), Subtotal: decimal.NewFromInt(250)}},
				CreatedAt: now, UpdatedAt: now,
			},
		},
	}
}

// --- ListOrders ---

func TestListOrders_Success(t *testing.T) {
	handler := NewOrdersHandler(OrdersMock{orders: []*domain.Order{testOrder("buyer-1")}}, &TrackerMock{})

	recorder := httptest.NewRecorder()
	handler.ListOrders(recorder, withBuyer(httptest.NewRequest("GET", "/api/v1/orders", nil)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}

	var resp []OrderResponseDTO
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 order, got %d", len(resp))
	}
	if resp[0].Status != domain.StatusConfirmed {
		t.Errorf("expected aggregate status CONFIRMED, got %s", resp[0].Status)
	}
	if !resp[0].Total.Equal(decimal.NewFromInt(450)) {
		t.Errorf("expected total 450, got %s", resp[0].Total)
	}
	if len(resp[0].SubOrders) != 2 || !resp[0].SubOrders[1].Total.Equal(decimal.NewFromInt(250)) {
		t.Errorf("unexpected sub-orders: %+v", resp[0].SubOrders)
	}
	if resp[0].CreatedAt != "2026-02-12T10:00:00Z" {
		t.Errorf("expected RFC3339 timestamp, got %s", resp[0].CreatedAt)
	}
}

func TestListOrders_Empty(t *testing.T) {
	handler := NewOrdersHandler(OrdersMock{}, &TrackerMock{})

	recorder := httptest.NewRecorder()
	handler.ListOrders(recorder, withBuyer(httptest.NewRequest("GET", "/api/v1/orders", nil)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if body := recorder.Body.String(); body != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

// --- GetOrder ---

func TestGetOrder_Success(t *testing.T) {
	o := testOrder("buyer-1")
	handler := NewOrdersHandler(OrdersMock{order: o}, &TrackerMock{})

	recorder := httptest.NewRecorder()
	request := withBuyer(withURLParam(httptest.NewRequest("GET", "/", nil), "order_id", o.ID.String()))
	handler.GetOrder(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	var resp OrderResponseDTO
	json.NewDecoder(recorder.Body).Decode(&resp)
	if resp.ID != o.ID.String() {
		t.Errorf("expected id %s, got %s", o.ID, resp.ID)
	}
}

func TestGetOrder_OtherBuyer(t *testing.T) {
	o := testOrder("someone-else")
	handler := NewOrdersHandler(OrdersMock{order: o}, &TrackerMock{})

	recorder := httptest.NewRecorder()
	request := withBuyer(withURLParam(httptest.NewRequest("GET", "/", nil), "order_id", o.ID.String()))
	handler.GetOrder(recorder, request)

	if recorder.Code != http.StatusForbidden {
		t.Errorf("expected %d, got %d", http.StatusForbidden, recorder.Code)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	handler := NewOrdersHandler(OrdersMock{}, &TrackerMock{})

	recorder := httptest.NewRecorder()
	request := withBuyer(withURLParam(httptest.NewRequest("GET", "/", nil), "order_id", uuid.NewString()))
	handler.GetOrder(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected %d, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestGetOrder_InvalidID(t *testing.T) {
	handler := NewOrdersHandler(OrdersMock{}, &TrackerMock{})

	recorder := httptest.NewRecorder()
	request := withBuyer(withURLParam(httptest.NewRequest("GET", "/", nil), "order_id", "not-a-uuid"))
	handler.GetOrder(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Code != "invalid_order_id" {
		t.Errorf("expected invalid_order_id, got %s", resp.Code)
	}
}

// --- cancellation ---

func TestCancelSubOrder_Shipped(t *testing.T) {
	o := testOrder("buyer-1")
	handler := NewOrdersHandler(OrdersMock{order: o}, &TrackerMock{err: domain.ErrInvalidTransition})

	recorder := httptest.NewRecorder()
	request := withBuyer(withURLParam(httptest.NewRequest("POST", "/", nil), "sub_order_id", o.SubOrders[0].ID.String()))
	handler.CancelSubOrder(recorder, request)

	if recorder.Code != http.StatusConflict {
		t.Errorf("expected %d, got %d", http.StatusConflict, recorder.Code)
	}
	if resp := decodeError(t, recorder); resp.Code != "invalid_transition" {
		t.Errorf("expected invalid_transition, got %s", resp.Code)
	}
}

func TestCancelSubOrder_Success(t *testing.T) {
	o := testOrder("buyer-1")
	handler := NewOrdersHandler(OrdersMock{order: o}, &TrackerMock{sub: &o.SubOrders[1]})

	recorder := httptest.NewRecorder()
	request := withBuyer(withURLParam(httptest.NewRequest("POST", "/", nil), "sub_order_id", o.SubOrders[1].ID.String()))
	handler.CancelSubOrder(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	var resp SubOrderResponseDTO
	json.NewDecoder(recorder.Body).Decode(&resp)
	if resp.Status != domain.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", resp.Status)
	}
}

func TestCancelOrder_Success(t *testing.T) {
	o := testOrder("buyer-1")
	o.SubOrders[1].Status = domain.StatusCancelled
	handler := NewOrdersHandler(OrdersMock{order: o}, &TrackerMock{order: o})

	recorder := httptest.NewRecorder()
	request := withBuyer(withURLParam(httptest.NewRequest("POST", "/", nil), "order_id", o.ID.String()))
	handler.CancelOrder(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	var resp OrderResponseDTO
	json.NewDecoder(recorder.Body).Decode(&resp)
	if resp.Status != domain.StatusShipped {
		t.Errorf("expected aggregate SHIPPED after partial cancel, got %s", resp.Status)
	}
}

// --- Checkout ---

func TestCheckout_Success(t *testing.T) {
	o := testOrder("buyer-1")
	svc := &CheckoutMock{orderID: o.ID}
	handler := NewCheckoutHandler(svc, OrdersMock{order: o})

	body := `{"contact":{"city":"Moscow","street":"Tverskaya","house":"1","phone":"+79990001122"}}`
	request := withBuyer(httptest.NewRequest("POST", "/api/v1/checkout", bytes.NewBufferString(body)))
	request.Header.Set(HeaderIdempotencyKey, "key-1")
	recorder := httptest.NewRecorder()
	handler.Checkout(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected %d, got %d: %s", http.StatusCreated, recorder.Code, recorder.Body.String())
	}
	if svc.last.BuyerID != "buyer-1" || svc.last.IdempotencyKey != "key-1" {
		t.Errorf("unexpected checkout request: %+v", svc.last)
	}
	if svc.last.Contact == nil || svc.last.Contact.City != "Moscow" {
		t.Errorf("expected contact to be passed, got %+v", svc.last.Contact)
	}

	var resp OrderResponseDTO
	json.NewDecoder(recorder.Body).Decode(&resp)
	if len(resp.SubOrders) != 2 {
		t.Errorf("expected 2 sub-orders, got %d", len(resp.SubOrders))
	}
}

func TestCheckout_EmptyBody(t *testing.T) {
	o := testOrder("buyer-1")
	svc := &CheckoutMock{orderID: o.ID}
	handler := NewCheckoutHandler(svc, OrdersMock{order: o})

	recorder := httptest.NewRecorder()
	handler.Checkout(recorder, withBuyer(httptest.NewRequest("POST", "/api/v1/checkout", nil)))

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected %d, got %d", http.StatusCreated, recorder.Code)
	}
	if svc.last.Contact != nil {
		t.Errorf("expected no contact, got %+v", svc.last.Contact)
	}
}

func TestCheckout_InvalidContact(t *testing.T) {
	handler := NewCheckoutHandler(&CheckoutMock{}, OrdersMock{})

	body := `{"contact":{"city":"Moscow"}}`
	recorder := httptest.NewRecorder()
	handler.Checkout(recorder, withBuyer(httptest.NewRequest("POST", "/api/v1/checkout", bytes.NewBufferString(body))))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	resp := decodeError(t, recorder)
	if resp.Code != "validation_error" {
		t.Errorf("expected validation_error, got %s", resp.Code)
	}
}

func TestCheckout_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty cart", domain.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
		{"out of stock", domain.OutOfStockErrors{{ProductID: 3, Requested: 3, Available: 2}}, http.StatusConflict, "out_of_stock"},
		{"supplier unavailable", domain.ErrSupplierUnavailable, http.StatusConflict, "supplier_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(&CheckoutMock{err: tt.err}, OrdersMock{})

			recorder := httptest.NewRecorder()
			handler.Checkout(recorder, withBuyer(httptest.NewRequest("POST", "/api/v1/checkout", nil)))

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, recorder.Code)
			}
			if resp := decodeError(t, recorder); resp.Code != tt.wantCode {
				t.Errorf("expected %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}
