package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocer-backend/api/middleware"
	internalorders "github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocer-backend/pkg/errors"
	"github.com/angelmondragon/grocer-backend/pkg/pagination"
)

type stubOrdersService struct {
	list  *internalorders.OrderList
	order *models.Order
	err   error

	gotParams pagination.Params
	gotOrder  uuid.UUID
}

func (s *stubOrdersService) List(_ context.Context, _ uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	s.gotParams = params
	return s.list, s.err
}

func (s *stubOrdersService) Get(_ context.Context, _, orderID uuid.UUID) (*models.Order, error) {
	s.gotOrder = orderID
	return s.order, s.err
}

func (s *stubOrdersService) Sales(context.Context, time.Time, time.Time) (*internalorders.SalesSummary, error) {
	return nil, nil
}

func sampleOrder() models.Order {
	id := uuid.New()
	return models.Order{
		ID:              id,
		UserID:          uuid.New(),
		Status:          enums.OrderStatusCompleted,
		TotalPrice:      decimal.RequireFromString("25"),
		TaxApplied:      decimal.RequireFromString("2.5"),
		DiscountApplied: decimal.Zero,
		Items: []models.OrderItem{
			{ID: uuid.New(), OrderID: id, ProductID: uuid.New(), Quantity: 2, UnitPriceAtSale: decimal.RequireFromString("10")},
			{ID: uuid.New(), OrderID: id, ProductID: uuid.New(), Quantity: 1, UnitPriceAtSale: decimal.RequireFromString("5")},
		},
	}
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func TestListPassesPagingParams(t *testing.T) {
	svc := &stubOrdersService{list: &internalorders.OrderList{Orders: []models.Order{sampleOrder()}, NextCursor: "abc"}}

	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5&cursor=xyz", nil)))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, pagination.Params{Limit: 5, Cursor: "xyz"}, svc.gotParams)

	var body struct {
		Data struct {
			Orders []struct {
				FinalTotal string `json:"final_total"`
				Items      []struct {
					ItemTotal string `json:"item_total"`
				} `json:"items"`
			} `json:"orders"`
			NextCursor string `json:"next_cursor"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Data.Orders, 1)
	assert.Equal(t, "27.50", body.Data.Orders[0].FinalTotal)
	assert.Equal(t, "20.00", body.Data.Orders[0].Items[0].ItemTotal)
	assert.Equal(t, "abc", body.Data.NextCursor)
}

func TestListRejectsBadLimit(t *testing.T) {
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=1000", nil)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func detailRequest(orderID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID, nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID)
	return authed(req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc)))
}

func TestDetail(t *testing.T) {
	order := sampleOrder()
	svc := &stubOrdersService{order: &order}

	resp := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, detailRequest(order.ID.String()))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, order.ID, svc.gotOrder)
	assert.Contains(t, resp.Body.String(), `"unit_price_at_sale":"10.00"`)
}

func TestDetailErrors(t *testing.T) {
	resp := httptest.NewRecorder()
	Detail(&stubOrdersService{}, nil).ServeHTTP(resp, detailRequest("not-a-uuid"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	Detail(svc, nil).ServeHTTP(resp, detailRequest(uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
