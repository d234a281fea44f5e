package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type literSize struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	SortOrder int32  `json:"sortOrder"`
}

type literSizePayload struct {
	Label     string `json:"label"`
	SortOrder *int32 `json:"sortOrder"`
}

func (h *Handler) AdminLiterSizesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx, `select id, label, sort_order from liter_sizes order by sort_order asc, id asc`)
	if err != nil {
		h.Logger.Error("liter sizes list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve liter sizes")
		return
	}
	defer rows.Close()

	items := make([]literSize, 0)
	for rows.Next() {
		var ls literSize
		if err := rows.Scan(&ls.ID, &ls.Label, &ls.SortOrder); err != nil {
			h.Logger.Error("liter size scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve liter sizes")
			return
		}
		items = append(items, ls)
	}

	response.Success(w, items)
}

func (h *Handler) AdminLiterSizesCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload literSizePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	label := strings.TrimSpace(payload.Label)
	if label == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Label is required")
		return
	}

	sortOrder := int32(0)
	if payload.SortOrder != nil {
		sortOrder = *payload.SortOrder
	} else {
		var maxSort pgtype.Int4
		if err := h.DB.QueryRow(ctx, `select max(sort_order) from liter_sizes`).Scan(&maxSort); err == nil && maxSort.Valid {
			sortOrder = maxSort.Int32 + 1
		}
	}

	var ls literSize
	err := h.DB.QueryRow(ctx, `
		insert into liter_sizes (label, sort_order)
		values ($1, $2)
		returning id, label, sort_order
	`, label, sortOrder).Scan(&ls.ID, &ls.Label, &ls.SortOrder)
	if err != nil {
		response.Error(w, http.StatusConflict, "LITER_SIZE_EXISTS", "A liter size with this label already exists")
		return
	}

	response.Created(w, ls)
}

func (h *Handler) AdminLiterSizesUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	literSizeID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Liter size ID is required")
		return
	}

	var payload literSizePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update liter_sizes set
			label = coalesce(nullif($1, ''), label),
			sort_order = coalesce($2, sort_order)
		where id = $3
	`, strings.TrimSpace(payload.Label), payload.SortOrder, literSizeID)
	if err != nil {
		h.Logger.Error("liter size update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update liter size")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Liter size not found")
		return
	}

	response.Success(w, map[string]any{"id": literSizeID})
}

func (h *Handler) AdminLiterSizesDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	literSizeID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Liter size ID is required")
		return
	}

	var inUse bool
	if err := h.DB.QueryRow(ctx, `select exists(select 1 from order_items where liter_size_id = $1)`, literSizeID).Scan(&inUse); err != nil {
		h.Logger.Error("liter size delete precheck failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete liter size")
		return
	}
	if inUse {
		response.Error(w, http.StatusConflict, "LITER_SIZE_IN_USE", "Liter size is referenced by existing orders")
		return
	}

	tag, err := h.DB.Exec(ctx, `delete from liter_sizes where id = $1`, literSizeID)
	if err != nil {
		h.Logger.Error("liter size delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete liter size")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Liter size not found")
		return
	}

	response.Success(w, map[string]any{"id": literSizeID})
}
