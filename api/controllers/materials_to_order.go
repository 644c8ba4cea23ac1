package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oakline/cabinetry-backend/api/responses"
	"github.com/oakline/cabinetry-backend/api/validators"
	"github.com/oakline/cabinetry-backend/internal/audit"
	mtosvc "github.com/oakline/cabinetry-backend/internal/mto"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
	"github.com/oakline/cabinetry-backend/pkg/logger"
	"github.com/oakline/cabinetry-backend/pkg/pagination"
)

type createMTORequest struct {
	LotID string                 `json:"lot_id" validate:"required"`
	Note  *string                `json:"note,omitempty"`
	Lines []createMTOLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createMTOLineRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type useMaterialsRequest struct {
	Usages []lineUsageRequest `json:"usages" validate:"required,min=1,dive"`
}

type lineUsageRequest struct {
	LineID   string `json:"line_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CreateMaterialsToOrder creates a draft header with its required lines.
func CreateMaterialsToOrder(svc mtosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createMTORequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lotID, err := uuid.Parse(strings.TrimSpace(payload.LotID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lot_id must be a uuid"))
			return
		}

		input := mtosvc.CreateInput{LotID: lotID, Note: payload.Note}
		for _, line := range payload.Lines {
			itemID, err := uuid.Parse(strings.TrimSpace(line.ItemID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item_id must be a uuid"))
				return
			}
			input.Lines = append(input.Lines, mtosvc.CreateLineInput{
				ItemID:   itemID,
				Quantity: line.Quantity,
			})
		}

		header, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, header)
	}
}

// GetMaterialsToOrder returns one header with its lines.
func GetMaterialsToOrder(svc mtosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		header, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, header)
	}
}

// ListMaterialsToOrder returns a cursor page filtered by lot or status.
func ListMaterialsToOrder(svc mtosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := mtosvc.ListInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		}

		lotID, err := validators.ParseQueryUUID(r, "lot_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if lotID != uuid.Nil {
			input.LotID = &lotID
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseMTOStatus(raw)
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

// DeleteMaterialsToOrder removes a draft header.
func DeleteMaterialsToOrder(svc mtosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// UseMaterials consumes stock against header lines.
func UseMaterials(svc mtosvc.Service, auditor *audit.Recorder, logg *logger.Logger) http.HandlerFunc {
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

		var payload useMaterialsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		usages := make([]mtosvc.LineUsage, 0, len(payload.Usages))
		for _, usage := range payload.Usages {
			lineID, err := uuid.Parse(strings.TrimSpace(usage.LineID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line_id must be a uuid"))
				return
			}
			usages = append(usages, mtosvc.LineUsage{LineID: lineID, Quantity: usage.Quantity})
		}

		header, err := svc.UseMaterials(r.Context(), actor, id, usages)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warning := auditor.Record(r.Context(), audit.Entry{
			ActorUserID: actor.UserID,
			Action:      "mto.use_materials",
			EntityType:  "materials_to_order",
			EntityID:    id,
			Detail:      map[string]any{"lines": len(usages)},
		})
		if warning != "" {
			responses.WriteSuccessWarning(w, http.StatusOK, header, warning)
			return
		}
		responses.WriteSuccess(w, header)
	}
}

// CompleteUsedMaterial consumes every remaining line quantity and flips the
// one-way used_material_completed flag.
func CompleteUsedMaterial(svc mtosvc.Service, auditor *audit.Recorder, logg *logger.Logger) http.HandlerFunc {
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

		header, err := svc.CompleteUsedMaterial(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warning := auditor.Record(r.Context(), audit.Entry{
			ActorUserID: actor.UserID,
			Action:      "mto.complete_used_material",
			EntityType:  "materials_to_order",
			EntityID:    id,
		})
		if warning != "" {
			responses.WriteSuccessWarning(w, http.StatusOK, header, warning)
			return
		}
		responses.WriteSuccess(w, header)
	}
}

// CloseMaterialsToOrder transitions a completed header to closed.
func CloseMaterialsToOrder(svc mtosvc.Service, auditor *audit.Recorder, logg *logger.Logger) http.HandlerFunc {
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

		header, err := svc.Close(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warning := auditor.Record(r.Context(), audit.Entry{
			ActorUserID: actor.UserID,
			Action:      "mto.close",
			EntityType:  "materials_to_order",
			EntityID:    id,
		})
		if warning != "" {
			responses.WriteSuccessWarning(w, http.StatusOK, header, warning)
			return
		}
		responses.WriteSuccess(w, header)
	}
}
