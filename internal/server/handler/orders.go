package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/order/domain"
	"github.com/kennarddh/asset-management-sub000/internal/order/repository"
	orderservice "github.com/kennarddh/asset-management-sub000/internal/order/service"
	"github.com/kennarddh/asset-management-sub000/internal/platform/rbac"
	"github.com/kennarddh/asset-management-sub000/internal/server/respond"
)

// OrderService is the order state machine the handlers call.
type OrderService interface {
	Create(ctx context.Context, in orderservice.CreateInput) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f repository.Filter) ([]*domain.Order, error)
	Approve(ctx context.Context, id, reason string) (*domain.Order, error)
	Reject(ctx context.Context, id, reason string) (*domain.Order, error)
	Cancel(ctx context.Context, id string) (*domain.Order, error)
	Return(ctx context.Context, id string) (*domain.Order, error)
}

// OrderHandler serves /api/v1/orders. Each handler loads the order, authorizes the caller
// against it, then runs the transition.
type OrderHandler struct {
	orders OrderService
	authz  rbac.Authorizer
	logger *zap.Logger
}

// NewOrderHandler returns an OrderHandler.
func NewOrderHandler(orders OrderService, authz rbac.Authorizer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, authz: authz, logger: logging.OrNop(logger)}
}

type createOrderRequest struct {
	AssetID     string    `json:"assetId"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	StartAt     time.Time `json:"startAt"`
	FinishAt    time.Time `json:"finishAt"`
}

type decisionRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Reason      *string    `json:"reason,omitempty"`
	Status      string     `json:"status"`
	Quantity    int        `json:"quantity"`
	UserID      string     `json:"userId"`
	AssetID     string     `json:"assetId"`
	RequestedAt time.Time  `json:"requestedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartAt     time.Time  `json:"startAt"`
	FinishAt    time.Time  `json:"finishAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	ReturnedAt  *time.Time `json:"returnedAt,omitempty"`
	CanceledAt  *time.Time `json:"canceledAt,omitempty"`
}

// Create handles POST /orders on behalf of the caller.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.authorize(w, r, rbac.ActionOrderCreate, rbac.Resource{Kind: "order"})
	if !ok {
		return
	}
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	o, err := h.orders.Create(r.Context(), orderservice.CreateInput{
		UserID:      sub.UserID,
		AssetID:     req.AssetID,
		Description: req.Description,
		Quantity:    req.Quantity,
		StartAt:     req.StartAt,
		FinishAt:    req.FinishAt,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toOrderResponse(o))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r, rbac.ActionOrderRead)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, toOrderResponse(o))
}

// List handles GET /orders. Admins see every order, members their own. Query parameters:
// status, limit, offset.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	sub, err := rbac.SubjectFromContext(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	f := repository.Filter{Status: domain.Status(q.Get("status"))}
	if h.authz.Authorize(r.Context(), rbac.ActionOrderListAll, sub, rbac.Resource{Kind: "order"}) != nil {
		f.UserID = sub.UserID
	}
	if f.Limit, err = parseInt32(q.Get("limit")); err != nil {
		respond.BadRequest(w, "invalid limit")
		return
	}
	if f.Offset, err = parseInt32(q.Get("offset")); err != nil {
		respond.BadRequest(w, "invalid offset")
		return
	}
	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	respond.JSON(w, http.StatusOK, out)
}

// Approve handles POST /orders/{id}/approve.
func (h *OrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, rbac.ActionOrderApprove, h.orders.Approve)
}

// Reject handles POST /orders/{id}/reject.
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, rbac.ActionOrderReject, h.orders.Reject)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, rbac.ActionOrderCancel, h.orders.Cancel)
}

// Return handles POST /orders/{id}/return.
func (h *OrderHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, rbac.ActionOrderReturn, h.orders.Return)
}

func (h *OrderHandler) decide(w http.ResponseWriter, r *http.Request, action rbac.Action, fn func(context.Context, string, string) (*domain.Order, error)) {
	var req decisionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.BadRequest(w, "invalid request body")
			return
		}
	}
	h.transition(w, r, action, func(ctx context.Context, id string) (*domain.Order, error) {
		return fn(ctx, id, req.Reason)
	})
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, action rbac.Action, fn func(context.Context, string) (*domain.Order, error)) {
	o, ok := h.load(w, r, action)
	if !ok {
		return
	}
	updated, err := fn(r.Context(), o.ID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, toOrderResponse(updated))
}

// load fetches the order named in the path and authorizes action on it.
func (h *OrderHandler) load(w http.ResponseWriter, r *http.Request, action rbac.Action) (*domain.Order, bool) {
	sub, err := rbac.SubjectFromContext(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return nil, false
	}
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return nil, false
	}
	res := rbac.Resource{Kind: "order", ID: o.ID, OwnerID: o.UserID}
	if err := h.authz.Authorize(r.Context(), action, sub, res); err != nil {
		respond.Error(w, h.logger, err)
		return nil, false
	}
	return o, true
}

func (h *OrderHandler) authorize(w http.ResponseWriter, r *http.Request, action rbac.Action, res rbac.Resource) (rbac.Subject, bool) {
	sub, err := rbac.SubjectFromContext(r.Context())
	if err == nil {
		err = h.authz.Authorize(r.Context(), action, sub, res)
	}
	if err != nil {
		respond.Error(w, h.logger, err)
		return rbac.Subject{}, false
	}
	return sub, true
}

func parseInt32(s string) (int32, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n < 0 {
		return 0, apperr.Validation("invalid number")
	}
	return int32(n), nil
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		Description: o.Description,
		Reason:      o.Reason,
		Status:      string(o.Status),
		Quantity:    o.Quantity,
		UserID:      o.UserID,
		AssetID:     o.AssetID,
		RequestedAt: o.RequestedAt,
		UpdatedAt:   o.UpdatedAt,
		StartAt:     o.StartAt,
		FinishAt:    o.FinishAt,
		ApprovedAt:  o.ApprovedAt,
		RejectedAt:  o.RejectedAt,
		ReturnedAt:  o.ReturnedAt,
		CanceledAt:  o.CanceledAt,
	}
}
