package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/middleware"
	"github.com/lounge-pos/api/internal/money"
	"github.com/lounge-pos/api/internal/service"
)

// BarServicer defines the bar request operations used by bar staff.
// Satisfied by *service.BarService; narrow interface for testability.
type BarServicer interface {
	ListRequests(ctx context.Context, status string) ([]database.BarRequest, error)
	Approve(ctx context.Context, in service.ApproveRequest) (*service.ApproveResult, error)
	Reject(ctx context.Context, requestID, barUserID uuid.UUID) (database.BarRequest, error)
	ModifyFulfillment(ctx context.Context, id uuid.UUID, qty int32, barUserID uuid.UUID) (database.BarFulfillment, error)
}

// ModificationReviewer is the bar side of the modification workflow.
// Satisfied by *service.ModificationService.
type ModificationReviewer interface {
	List(ctx context.Context, status, table string) ([]database.ModificationRequest, error)
	Approve(ctx context.Context, id, barUserID uuid.UUID) (database.ModificationRequest, error)
	Reject(ctx context.Context, id, barUserID uuid.UUID) (database.ModificationRequest, error)
}

// TableApprover approves a rep's lines at a table the bar serves directly.
// Satisfied by *session.Manager.
type TableApprover interface {
	ApproveTable(ctx context.Context, repID uuid.UUID, table string, productIDs []uuid.UUID) error
}

// BarHandler serves the bar queue.
type BarHandler struct {
	bar    BarServicer
	mods   ModificationReviewer
	tables TableApprover
}

// NewBarHandler creates a new BarHandler.
func NewBarHandler(bar BarServicer, mods ModificationReviewer, tables TableApprover) *BarHandler {
	return &BarHandler{bar: bar, mods: mods, tables: tables}
}

// RegisterRoutes registers bar endpoints. Expected to be mounted at /bar.
func (h *BarHandler) RegisterRoutes(r chi.Router) {
	r.Get("/requests", h.ListRequests)
	r.Post("/requests/{id}/approve", h.ApproveRequest)
	r.Post("/requests/{id}/reject", h.RejectRequest)
	r.Post("/tables/{tid}/approve", h.ApproveTable)
	r.Patch("/fulfillments/{id}", h.ModifyFulfillment)
	r.Get("/modifications", h.ListModifications)
	r.Post("/modifications/{id}/approve", h.ApproveModification)
	r.Post("/modifications/{id}/reject", h.RejectModification)
}

// --- Request / Response types ---

type approveRequestBody struct {
	Items []approveItemBody `json:"items"`
}

type approveItemBody struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
}

type approveTableBody struct {
	SalesRepID string   `json:"sales_rep_id"`
	ProductIDs []string `json:"product_ids"`
}

type modifyFulfillmentBody struct {
	ApprovedQuantity *int32 `json:"approved_quantity"`
}

type approveResponse struct {
	Request      barRequestResponse    `json:"request"`
	Fulfillments []fulfillmentResponse `json:"fulfillments"`
}

type fulfillmentResponse struct {
	ID               uuid.UUID  `json:"id"`
	BarRequestID     uuid.UUID  `json:"bar_request_id"`
	TableID          string     `json:"table_id"`
	ProductID        uuid.UUID  `json:"product_id"`
	ProductName      string     `json:"product_name"`
	UnitPrice        string     `json:"unit_price"`
	ApprovedQuantity int32      `json:"approved_quantity"`
	Status           string     `json:"status"`
	ModifiedBy       *uuid.UUID `json:"modified_by"`
	ModifiedAt       *time.Time `json:"modified_at"`
}

type modificationResponse struct {
	ID                  uuid.UUID  `json:"id"`
	TableID             string     `json:"table_id"`
	SalesRepID          uuid.UUID  `json:"sales_rep_id"`
	Type                string     `json:"type"`
	OriginalItemID      *uuid.UUID `json:"original_item_id"`
	OriginalProductID   uuid.UUID  `json:"original_product_id"`
	OriginalProductName string     `json:"original_product_name"`
	OriginalQuantity    int32      `json:"original_quantity"`
	NewProductID        *uuid.UUID `json:"new_product_id"`
	NewProductName      *string    `json:"new_product_name"`
	NewUnitPrice        *string    `json:"new_unit_price"`
	NewQuantity         *int32     `json:"new_quantity"`
	Reason              string     `json:"reason"`
	Status              string     `json:"status"`
	ResolvedBy          *uuid.UUID `json:"resolved_by"`
	CreatedAt           time.Time  `json:"created_at"`
}

func optionalUUID(id pgtype.UUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	u := uuid.UUID(id.Bytes)
	return &u
}

func toFulfillmentResponse(f database.BarFulfillment) fulfillmentResponse {
	resp := fulfillmentResponse{
		ID:               f.ID,
		BarRequestID:     f.BarRequestID,
		TableID:          f.TableID,
		ProductID:        f.ProductID,
		ProductName:      f.ProductName,
		UnitPrice:        money.String(f.UnitPrice),
		ApprovedQuantity: f.ApprovedQuantity,
		Status:           f.Status,
		ModifiedBy:       optionalUUID(f.ModifiedBy),
	}
	if f.ModifiedAt.Valid {
		resp.ModifiedAt = &f.ModifiedAt.Time
	}
	return resp
}

func toModificationResponse(m database.ModificationRequest) modificationResponse {
	resp := modificationResponse{
		ID:                  m.ID,
		TableID:             m.TableID,
		SalesRepID:          m.SalesRepID,
		Type:                m.Type,
		OriginalItemID:      optionalUUID(m.OriginalItemID),
		OriginalProductID:   m.OriginalProductID,
		OriginalProductName: m.OriginalProductName,
		OriginalQuantity:    m.OriginalQuantity,
		NewProductID:        optionalUUID(m.NewProductID),
		Reason:              m.Reason,
		Status:              m.Status,
		ResolvedBy:          optionalUUID(m.ResolvedBy),
		CreatedAt:           m.CreatedAt,
	}
	if m.NewProductName.Valid {
		resp.NewProductName = &m.NewProductName.String
	}
	if m.NewUnitPrice.Valid {
		s := money.String(m.NewUnitPrice)
		resp.NewUnitPrice = &s
	}
	if m.NewQuantity.Valid {
		resp.NewQuantity = &m.NewQuantity.Int32
	}
	return resp
}

func barUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, false
	}
	return claims.UserID, true
}

// --- Bar request handlers ---

// ListRequests returns bar requests, optionally filtered by ?status=.
func (h *BarHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.bar.ListRequests(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]barRequestResponse, len(reqs))
	for i, req := range reqs {
		resp[i] = toBarRequestResponse(req)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApproveRequest approves a pending request. Without items every requested
// line is approved at full quantity.
func (h *BarHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := barUser(w, r)
	if !ok {
		return
	}
	requestID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var body approveRequestBody
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	in := service.ApproveRequest{RequestID: requestID, BarUserID: userID}
	for _, it := range body.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
			return
		}
		price, ok := parseMoney(it.UnitPrice, false)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
			return
		}
		in.Items = append(in.Items, service.ApproveItem{ProductID: pid, UnitPrice: price, Quantity: it.Quantity})
	}

	result, err := h.bar.Approve(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := approveResponse{
		Request:      toBarRequestResponse(result.Request),
		Fulfillments: make([]fulfillmentResponse, len(result.Fulfillments)),
	}
	for i, f := range result.Fulfillments {
		resp.Fulfillments[i] = toFulfillmentResponse(f)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BarHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := barUser(w, r)
	if !ok {
		return
	}
	requestID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	req, err := h.bar.Reject(r.Context(), requestID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBarRequestResponse(req))
}

// ApproveTable approves a rep's pending lines on a table without a bar
// request. With product_ids only those products are approved.
func (h *BarHandler) ApproveTable(w http.ResponseWriter, r *http.Request) {
	if _, ok := barUser(w, r); !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	var body approveTableBody
	if !decodeJSON(w, r, &body) {
		return
	}
	repID, err := uuid.Parse(body.SalesRepID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sales_rep_id"})
		return
	}
	ids := make([]uuid.UUID, 0, len(body.ProductIDs))
	for _, s := range body.ProductIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_ids"})
			return
		}
		ids = append(ids, id)
	}

	if err := h.tables.ApproveTable(r.Context(), repID, table, ids); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"table_id": table, "status": "approved"})
}

// ModifyFulfillment changes an approved quantity after the fact. Zero
// marks the fulfillment rejected.
func (h *BarHandler) ModifyFulfillment(w http.ResponseWriter, r *http.Request) {
	userID, ok := barUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var body modifyFulfillmentBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ApprovedQuantity == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "approved_quantity is required"})
		return
	}

	f, err := h.bar.ModifyFulfillment(r.Context(), id, *body.ApprovedQuantity, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFulfillmentResponse(f))
}

// --- Modification handlers ---

// ListModifications accepts optional ?status= and ?table= filters.
func (h *BarHandler) ListModifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mods, err := h.mods.List(r.Context(), q.Get("status"), q.Get("table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]modificationResponse, len(mods))
	for i, m := range mods {
		resp[i] = toModificationResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BarHandler) ApproveModification(w http.ResponseWriter, r *http.Request) {
	h.resolveModification(w, r, h.mods.Approve)
}

func (h *BarHandler) RejectModification(w http.ResponseWriter, r *http.Request) {
	h.resolveModification(w, r, h.mods.Reject)
}

func (h *BarHandler) resolveModification(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, barUserID uuid.UUID) (database.ModificationRequest, error)) {
	userID, ok := barUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	m, err := fn(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toModificationResponse(m))
}
