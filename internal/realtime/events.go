// Package realtime turns Order Store change notifications into typed events
// and reconciles a rep's cart cache against them.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Channel is the NOTIFY channel the database triggers publish on.
const Channel = "bar_events"

// Notification sources, named after the tables whose triggers emit them.
const (
	SourceBarRequests   = "bar_requests"
	SourceFulfillments  = "bar_fulfillments"
	SourceModifications = "modification_requests"
)

var ErrUnknownSource = errors.New("unknown notification source")

// Event is a decoded change notification scoped to one table.
type Event interface {
	Table() string
	Rep() uuid.UUID
}

// RequestApproved fires when a bar request moves to approved.
type RequestApproved struct {
	TableID    string
	SalesRepID uuid.UUID
	RequestID  uuid.UUID
}

// RequestStatusChanged fires on every other bar request status change.
type RequestStatusChanged struct {
	TableID    string
	SalesRepID uuid.UUID
	RequestID  uuid.UUID
	Status     string
}

// FulfillmentModified fires when the bar edits an approved fulfillment.
type FulfillmentModified struct {
	TableID          string          `json:"table_id"`
	SalesRepID       uuid.UUID       `json:"sales_rep_id"`
	FulfillmentID    uuid.UUID       `json:"fulfillment_id"`
	RequestID        uuid.UUID       `json:"request_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	ProductName      string          `json:"product_name"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	ApprovedQuantity int32           `json:"approved_quantity"`
	Status           string          `json:"status"`
}

// ModificationResolved fires when a modification request leaves pending.
type ModificationResolved struct {
	TableID        string
	SalesRepID     uuid.UUID
	ModificationID uuid.UUID
	Status         string
}

func (e RequestApproved) Table() string      { return e.TableID }
func (e RequestStatusChanged) Table() string { return e.TableID }
func (e FulfillmentModified) Table() string  { return e.TableID }
func (e ModificationResolved) Table() string { return e.TableID }

func (e RequestApproved) Rep() uuid.UUID      { return e.SalesRepID }
func (e RequestStatusChanged) Rep() uuid.UUID { return e.SalesRepID }
func (e FulfillmentModified) Rep() uuid.UUID  { return e.SalesRepID }
func (e ModificationResolved) Rep() uuid.UUID { return e.SalesRepID }

// notification is the JSON body built by notify_bar_event().
type notification struct {
	Source    string          `json:"source"`
	TableID   string          `json:"table_id"`
	OldStatus string          `json:"old_status"`
	Record    json.RawMessage `json:"record"`
}

type requestRecord struct {
	ID         uuid.UUID `json:"id"`
	SalesRepID uuid.UUID `json:"sales_rep_id"`
	Status     string    `json:"status"`
}

type fulfillmentRecord struct {
	ID               uuid.UUID       `json:"id"`
	BarRequestID     uuid.UUID       `json:"bar_request_id"`
	SalesRepID       uuid.UUID       `json:"sales_rep_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	ProductName      string          `json:"product_name"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	ApprovedQuantity int32           `json:"approved_quantity"`
	Status           string          `json:"status"`
	ModifiedBy       *uuid.UUID      `json:"modified_by"`
}

// Decode parses a notification payload. It returns a nil Event for changes
// nobody reacts to: a status that did not move, a fulfillment update
// without the modified marker, a modification still pending.
func Decode(payload []byte) (Event, error) {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}

	switch n.Source {
	case SourceBarRequests:
		var r requestRecord
		if err := json.Unmarshal(n.Record, &r); err != nil {
			return nil, fmt.Errorf("decode bar request: %w", err)
		}
		if r.Status == n.OldStatus {
			return nil, nil
		}
		if r.Status == enum.BarRequestStatusApproved {
			return RequestApproved{TableID: n.TableID, SalesRepID: r.SalesRepID, RequestID: r.ID}, nil
		}
		return RequestStatusChanged{TableID: n.TableID, SalesRepID: r.SalesRepID, RequestID: r.ID, Status: r.Status}, nil

	case SourceFulfillments:
		var f fulfillmentRecord
		if err := json.Unmarshal(n.Record, &f); err != nil {
			return nil, fmt.Errorf("decode fulfillment: %w", err)
		}
		if f.ModifiedBy == nil {
			return nil, nil
		}
		return FulfillmentModified{
			TableID:          n.TableID,
			SalesRepID:       f.SalesRepID,
			FulfillmentID:    f.ID,
			RequestID:        f.BarRequestID,
			ProductID:        f.ProductID,
			ProductName:      f.ProductName,
			UnitPrice:        f.UnitPrice,
			ApprovedQuantity: f.ApprovedQuantity,
			Status:           f.Status,
		}, nil

	case SourceModifications:
		var r requestRecord
		if err := json.Unmarshal(n.Record, &r); err != nil {
			return nil, fmt.Errorf("decode modification: %w", err)
		}
		if r.Status == n.OldStatus || r.Status == enum.ModificationStatusPending {
			return nil, nil
		}
		return ModificationResolved{TableID: n.TableID, SalesRepID: r.SalesRepID, ModificationID: r.ID, Status: r.Status}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, n.Source)
}
