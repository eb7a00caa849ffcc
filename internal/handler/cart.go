package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/cart"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/service"
	"github.com/lounge-pos/api/internal/session"
	"github.com/shopspring/decimal"
)

// SessionProvider returns the session of an authenticated rep.
// Satisfied by *session.Manager.
type SessionProvider interface {
	Get(ctx context.Context, rep cart.Rep) *session.Session
}

// ModificationSubmitter is the rep side of the modification workflow.
// Satisfied by *service.ModificationService.
type ModificationSubmitter interface {
	Submit(ctx context.Context, req service.SubmitModificationRequest) (database.ModificationRequest, error)
}

// CartHandler serves a sales rep's table carts.
type CartHandler struct {
	sessions SessionProvider
	mods     ModificationSubmitter
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(sessions SessionProvider, mods ModificationSubmitter) *CartHandler {
	return &CartHandler{sessions: sessions, mods: mods}
}

// RegisterRoutes registers cart endpoints. Expected to be mounted at /cart
// behind Authenticate.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tables", h.ListTables)
	r.Get("/selected-table", h.GetSelectedTable)
	r.Put("/selected-table", h.SetSelectedTable)

	r.Route("/tables/{tid}", func(r chi.Router) {
		r.Get("/", h.GetTable)
		r.Delete("/", h.ClearTable)
		r.Post("/sync", h.SyncTable)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{pid}", h.UpdateItem)
		r.Delete("/items/{pid}", h.RemoveItem)
		r.Post("/checkout", h.Checkout)
		r.Post("/bar-requests", h.SubmitBarRequest)
		r.Delete("/bar-requests/{rid}", h.CancelBarRequest)
		r.Delete("/requests/{rid}", h.RemoveRequestLines)
		r.Post("/modifications", h.SubmitModification)
	})
}

// --- Request / Response types ---

type selectTableRequest struct {
	TableID string `json:"table_id"`
}

type addItemRequest struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int32  `json:"quantity"`
	UnitPrice      string `json:"unit_price"`
	UnitCost       string `json:"unit_cost"`
	ApprovalStatus string `json:"approval_status"`
}

type updateItemRequest struct {
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
}

type submitModificationRequest struct {
	Type           string `json:"type"`
	OriginalItemID string `json:"original_item_id"`
	NewProductID   string `json:"new_product_id"`
	NewProductName string `json:"new_product_name"`
	NewUnitPrice   string `json:"new_unit_price"`
	NewUnitCost    string `json:"new_unit_cost"`
	NewQuantity    int32  `json:"new_quantity"`
	Reason         string `json:"reason"`
}

type cartResponse struct {
	TableID          string      `json:"table_id"`
	Lines            []cart.Line `json:"lines"`
	Total            string      `json:"total"`
	ApprovedTotal    string      `json:"approved_total"`
	PendingTotal     string      `json:"pending_total"`
	BarRequestStatus string      `json:"bar_request_status"`
	CreatedAt        *time.Time  `json:"created_at,omitempty"`
	UpdatedAt        *time.Time  `json:"updated_at,omitempty"`
}

type tableSummary struct {
	TableID          string `json:"table_id"`
	Lines            int    `json:"lines"`
	Total            string `json:"total"`
	BarRequestStatus string `json:"bar_request_status"`
}

type barRequestResponse struct {
	ID          uuid.UUID  `json:"id"`
	TableID     string     `json:"table_id"`
	SalesRepID  uuid.UUID  `json:"sales_rep_id"`
	Status      string     `json:"status"`
	ProcessedBy *uuid.UUID `json:"processed_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toCartResponse(store *cart.Store, table string) cartResponse {
	resp := cartResponse{
		TableID:          table,
		Lines:            []cart.Line{},
		Total:            store.Total(table).StringFixed(2),
		ApprovedTotal:    store.ApprovedTotal(table).StringFixed(2),
		PendingTotal:     store.PendingTotal(table).StringFixed(2),
		BarRequestStatus: store.BarRequestStatus(table),
	}
	if tc, ok := store.Cart(table); ok {
		if tc.Lines != nil {
			resp.Lines = tc.Lines
		}
		resp.CreatedAt = &tc.CreatedAt
		resp.UpdatedAt = &tc.UpdatedAt
	}
	return resp
}

func toBarRequestResponse(r database.BarRequest) barRequestResponse {
	return barRequestResponse{
		ID:          r.ID,
		TableID:     r.TableID,
		SalesRepID:  r.SalesRepID,
		Status:      r.Status,
		ProcessedBy: optionalUUID(r.ProcessedBy),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// --- Helpers ---

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	rep, ok := repFromRequest(r)
	if !ok {
		writeError(w, r, cart.ErrAuthRequired)
		return nil, false
	}
	return h.sessions.Get(r.Context(), rep), true
}

func tableParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	table := strings.TrimSpace(chi.URLParam(r, "tid"))
	if table == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table id is required"})
		return "", false
	}
	return table, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// parseMoney parses a decimal string. Empty is zero when optional.
func parseMoney(s string, optional bool) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, optional
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// --- Handlers ---

// ListTables returns every table the rep holds lines on.
func (h *CartHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	store := sess.Cart()
	tables := store.ActiveTables()
	resp := make([]tableSummary, len(tables))
	for i, t := range tables {
		resp[i] = tableSummary{
			TableID:          t,
			Lines:            len(store.Lines(t)),
			Total:            store.Total(t).StringFixed(2),
			BarRequestStatus: store.BarRequestStatus(t),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) GetSelectedTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, selectTableRequest{TableID: sess.SelectedTable()})
}

// SetSelectedTable persists the table the rep is working on. An empty
// table_id clears the selection.
func (h *CartHandler) SetSelectedTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectTableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	table := strings.TrimSpace(req.TableID)
	if err := sess.SelectTable(r.Context(), table); err != nil {
		writeError(w, r, err)
		return
	}
	if table == "" {
		writeJSON(w, http.StatusOK, selectTableRequest{})
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Cart(), table))
}

// GetTable returns the cached cart, reading it from the store on a miss.
func (h *CartHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	if _, cached := sess.Cart().Cart(table); !cached {
		if err := sess.Cart().Sync(r.Context(), table); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Cart(), table))
}

func (h *CartHandler) SyncTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	if err := sess.Cart().Sync(r.Context(), table); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Cart(), table))
}

// AddItem adds a pending line. Only the bar approves lines, so a request
// carrying approval_status is refused.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ApprovalStatus != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "approval_status is set by the bar"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}
	unitPrice, ok := parseMoney(req.UnitPrice, false)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
		return
	}
	unitCost, ok := parseMoney(req.UnitCost, true)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_cost"})
		return
	}

	err = sess.Cart().AddLine(r.Context(), table, cart.NewLine{
		ProductID:   productID,
		ProductName: strings.TrimSpace(req.ProductName),
		Quantity:    req.Quantity,
		UnitPrice:   unitPrice,
		UnitCost:    unitCost,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(sess.Cart(), table))
}

// UpdateItem sets the quantity of the rep's pending line on (product, unit
// price). A zero quantity removes the lines.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "pid")
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unitPrice, ok := parseMoney(req.UnitPrice, false)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
		return
	}
	if req.Quantity < 0 {
		writeError(w, r, cart.ErrInvalidQuantity)
		return
	}

	if err := sess.Cart().UpdateQuantity(r.Context(), table, productID, unitPrice, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Cart(), table))
}

// RemoveItem deletes a line; the unit price comes from ?unit_price=.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "pid")
	if !ok {
		return
	}
	unitPrice, ok := parseMoney(r.URL.Query().Get("unit_price"), false)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit_price query parameter is required"})
		return
	}

	if err := sess.Cart().RemoveLine(r.Context(), table, productID, unitPrice); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Cart(), table))
}

func (h *CartHandler) ClearTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	if err := sess.Cart().Clear(r.Context(), table); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	sale, err := sess.Checkout(r.Context(), table)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *CartHandler) SubmitBarRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	req, err := sess.SubmitBarRequest(r.Context(), table)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBarRequestResponse(req))
}

func (h *CartHandler) CancelBarRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	requestID, ok := uuidParam(w, r, "rid")
	if !ok {
		return
	}
	req, err := sess.CancelBarRequest(r.Context(), table, requestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBarRequestResponse(req))
}

// RemoveRequestLines dismisses the lines of a rejected bar request.
func (h *CartHandler) RemoveRequestLines(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	requestID, ok := uuidParam(w, r, "rid")
	if !ok {
		return
	}
	if err := sess.DismissRequestLines(r.Context(), table, requestID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Cart(), table))
}

// SubmitModification asks the bar to change an approved line.
func (h *CartHandler) SubmitModification(w http.ResponseWriter, r *http.Request) {
	rep, ok := repFromRequest(r)
	if !ok {
		writeError(w, r, cart.ErrAuthRequired)
		return
	}
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	var req submitModificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.SubmitModificationRequest{
		TableID:        table,
		SalesRepID:     rep.ID,
		Type:           req.Type,
		NewProductName: strings.TrimSpace(req.NewProductName),
		NewQuantity:    req.NewQuantity,
		Reason:         req.Reason,
	}
	if req.OriginalItemID != "" {
		id, err := uuid.Parse(req.OriginalItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid original_item_id"})
			return
		}
		in.OriginalItemID = id
	}
	if req.NewProductID != "" {
		id, err := uuid.Parse(req.NewProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid new_product_id"})
			return
		}
		in.NewProductID = id
	}
	if in.NewUnitPrice, ok = parseMoney(req.NewUnitPrice, true); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid new_unit_price"})
		return
	}
	if in.NewUnitCost, ok = parseMoney(req.NewUnitCost, true); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid new_unit_cost"})
		return
	}

	mod, err := h.mods.Submit(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toModificationResponse(mod))
}
