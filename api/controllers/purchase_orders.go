package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakline/cabinetry-backend/api/responses"
	"github.com/oakline/cabinetry-backend/api/validators"
	"github.com/oakline/cabinetry-backend/internal/audit"
	posvc "github.com/oakline/cabinetry-backend/internal/purchaseorders"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/logger"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

type createPORequest struct {
	Reference          string                `json:"reference" validate:"required"`
	SupplierID         string                `json:"supplier_id" validate:"required"`
	MaterialsToOrderID *string               `json:"materials_to_order_id,omitempty"`
	Lines              []createPOLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createPOLineRequest struct {
	ItemID    string `json:"item_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

type receivePORequest struct {
	Receipts []receiptLineRequest `json:"receipts" validate:"required,min=1,dive"`
}

type receiptLineRequest struct {
	LineID   string `json:"line_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CreatePurchaseOrder places an order, optionally linked to a materials-to-order.
func CreatePurchaseOrder(svc posvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPORequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		supplierID, err := uuid.Parse(strings.TrimSpace(payload.SupplierID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "supplier_id must be a uuid"))
			return
		}

		input := posvc.CreateInput{
			Reference:  payload.Reference,
			SupplierID: supplierID,
		}
		if payload.MaterialsToOrderID != nil {
			mtoID, err := uuid.Parse(strings.TrimSpace(*payload.MaterialsToOrderID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "materials_to_order_id must be a uuid"))
				return
			}
			input.MaterialsToOrderID = &mtoID
		}

		for _, line := range payload.Lines {
			itemID, err := uuid.Parse(strings.TrimSpace(line.ItemID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item_id must be a uuid"))
				return
			}
			unitPrice, err := decimal.NewFromString(strings.TrimSpace(line.UnitPrice))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must be a decimal string"))
				return
			}
			input.Lines = append(input.Lines, posvc.CreateLineInput{
				ItemID:    itemID,
				Quantity:  line.Quantity,
				UnitPrice: unitPrice,
			})
		}

		order, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// GetPurchaseOrder returns one order with its lines.
func GetPurchaseOrder(svc posvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListPurchaseOrders returns a cursor page filtered by supplier or status.
func ListPurchaseOrders(svc posvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := posvc.ListInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		}

		supplierID, err := validators.ParseQueryUUID(r, "supplier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if supplierID != uuid.Nil {
			input.SupplierID = &supplierID
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePOStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ReceivePurchaseOrder records delivered quantities, adds them to stock, and
// recomputes derived statuses.
func ReceivePurchaseOrder(svc posvc.Service, auditor *audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload receivePORequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipts := make([]posvc.ReceiptLine, 0, len(payload.Receipts))
		for _, receipt := range payload.Receipts {
			lineID, err := uuid.Parse(strings.TrimSpace(receipt.LineID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line_id must be a uuid"))
				return
			}
			receipts = append(receipts, posvc.ReceiptLine{LineID: lineID, Quantity: receipt.Quantity})
		}

		order, err := svc.Receive(r.Context(), actor, id, receipts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warning := auditor.Record(r.Context(), audit.Entry{
			ActorUserID: actor.UserID,
			Action:      "po.receive",
			EntityType:  "purchase_order",
			EntityID:    id,
			Detail:      map[string]any{"lines": len(receipts)},
		})
		if warning != "" {
			responses.WriteSuccessWarning(w, http.StatusOK, order, warning)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CancelPurchaseOrder cancels an order and returns unreceived quantities to
// the linked materials-to-order coverage.
func CancelPurchaseOrder(svc posvc.Service, auditor *audit.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warning := auditor.Record(r.Context(), audit.Entry{
			ActorUserID: actor.UserID,
			Action:      "po.cancel",
			EntityType:  "purchase_order",
			EntityID:    id,
		})
		if warning != "" {
			responses.WriteSuccessWarning(w, http.StatusOK, order, warning)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
