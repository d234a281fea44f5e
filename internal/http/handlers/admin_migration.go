package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"kitchen-order-service/pkg/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type migrateCategoryPayload struct {
	CategoryID int64             `json:"categoryId"`
	Items      []foodItemPayload `json:"items"`
}

// AdminMigrateCategory bulk-replaces one category's catalog rows: every food
// item of the category (and its nested option rows) is deleted and the
// submitted list is inserted in its place, all inside one transaction.
// Items referenced by existing orders block the replace.
func (h *Handler) AdminMigrateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload migrateCategoryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var categoryExists bool
	if err := h.DB.QueryRow(ctx, `select exists(select 1 from categories where id = $1)`, payload.CategoryID).Scan(&categoryExists); err != nil || !categoryExists {
		response.Error(w, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
		return
	}

	for _, item := range payload.Items {
		if strings.TrimSpace(item.Name) == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Every item needs a name")
			return
		}
		if !validMeasurementType(item.MeasurementType) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "measurementType must be liters, size or none")
			return
		}
	}

	var referenced bool
	err := h.DB.QueryRow(ctx, `
		select exists(
			select 1 from order_items oi
			join food_items fi on fi.id = oi.food_item_id
			where fi.category_id = $1
		)
	`, payload.CategoryID).Scan(&referenced)
	if err != nil {
		h.Logger.Error("migration precheck failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to migrate category")
		return
	}
	if referenced {
		response.Error(w, http.StatusConflict, "CATEGORY_IN_USE", "Category items are referenced by existing orders")
		return
	}

	batchID := uuid.New()

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("migration tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to migrate category")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `delete from food_items where category_id = $1`, payload.CategoryID); err != nil {
		h.Logger.Error("migration delete failed", zapError(err), zap.String("batchId", batchID.String()))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to migrate category")
		return
	}

	inserted := 0
	for idx, item := range payload.Items {
		sortOrder := int32(idx)
		if item.SortOrder != nil {
			sortOrder = *item.SortOrder
		}
		isActive := true
		if item.IsActive != nil {
			isActive = *item.IsActive
		}

		var foodItemID int64
		err := tx.QueryRow(ctx, `
			insert into food_items (category_id, name, measurement_type, is_active, sort_order, portion_multiplier, portion_unit, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, now(), now())
			returning id
		`, payload.CategoryID, strings.TrimSpace(item.Name), item.MeasurementType, isActive, sortOrder,
			item.PortionMultiplier, nullIfEmptyPtr(item.PortionUnit)).Scan(&foodItemID)
		if err != nil {
			h.Logger.Error("migration insert failed", zapError(err), zap.String("batchId", batchID.String()))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to migrate category")
			return
		}

		if err := replaceFoodItemOptions(ctx, tx, foodItemID, item); err != nil {
			h.Logger.Error("migration options insert failed", zapError(err), zap.String("batchId", batchID.String()))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to migrate category")
			return
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("migration commit failed", zapError(err), zap.String("batchId", batchID.String()))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to migrate category")
		return
	}

	h.Logger.Info("category catalog replaced",
		zap.String("batchId", batchID.String()),
		zap.Int64("categoryId", payload.CategoryID),
		zap.Int("items", inserted),
	)

	response.Success(w, map[string]any{
		"batchId":    batchID.String(),
		"categoryId": payload.CategoryID,
		"inserted":   inserted,
	})
}
