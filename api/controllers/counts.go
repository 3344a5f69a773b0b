package controllers

import (
	"net/http"
	"strings"

	"github.com/paperhouse/warehouse-backend/api/middleware"
	"github.com/paperhouse/warehouse-backend/api/responses"
	"github.com/paperhouse/warehouse-backend/api/validators"
	"github.com/paperhouse/warehouse-backend/internal/counts"
	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
)

// CountRecord snapshots a physical count against the system quantity.
func CountRecord(svc counts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload counts.RecordInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.Record(r.Context(), middleware.UserIDFromContext(r.Context()), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, count)
	}
}

func CountList(svc counts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := counts.ListParams{
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		warehouseID, err := validators.ParseQueryUUID(r, "warehouse_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.WarehouseID = warehouseID

		materialID, err := validators.ParseQueryUUID(r, "material_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.MaterialID = materialID

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseCountStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CountApprove applies the counted quantity through the ledger.
func CountApprove(svc counts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "countId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.Approve(r.Context(), middleware.UserIDFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, count)
	}
}
