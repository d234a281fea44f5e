package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	measurementLiters = "liters"
	measurementSize   = "size"
	measurementNone   = "none"
)

type foodItemOption struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int32  `json:"sortOrder"`
}

type foodItem struct {
	ID                int64            `json:"id"`
	CategoryID        int64            `json:"categoryId"`
	Name              string           `json:"name"`
	MeasurementType   string           `json:"measurementType"`
	IsActive          bool             `json:"isActive"`
	SortOrder         int32            `json:"sortOrder"`
	PortionMultiplier *int32           `json:"portionMultiplier"`
	PortionUnit       *string          `json:"portionUnit"`
	ImageURL          *string          `json:"imageUrl"`
	Preparations      []foodItemOption `json:"preparations"`
	Variations        []foodItemOption `json:"variations"`
	AddOns            []foodItemOption `json:"addOns"`
	CustomLiterSizes  []foodItemOption `json:"customLiterSizes"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

type foodItemOptionPayload struct {
	Name      string `json:"name"`
	SortOrder *int32 `json:"sortOrder"`
}

type foodItemPayload struct {
	CategoryID        int64                   `json:"categoryId"`
	Name              string                  `json:"name"`
	MeasurementType   string                  `json:"measurementType"`
	IsActive          *bool                   `json:"isActive"`
	SortOrder         *int32                  `json:"sortOrder"`
	PortionMultiplier *int32                  `json:"portionMultiplier"`
	PortionUnit       *string                 `json:"portionUnit"`
	Preparations      []foodItemOptionPayload `json:"preparations"`
	Variations        []foodItemOptionPayload `json:"variations"`
	AddOns            []foodItemOptionPayload `json:"addOns"`
	CustomLiterSizes  []foodItemOptionPayload `json:"customLiterSizes"`
}

func validMeasurementType(value string) bool {
	switch value {
	case measurementLiters, measurementSize, measurementNone:
		return true
	default:
		return false
	}
}

func (h *Handler) AdminFoodItemsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := `
		select id, category_id, name, measurement_type, is_active, sort_order,
		       portion_multiplier, portion_unit, image_url, created_at, updated_at
		from food_items
	`
	args := []any{}
	if categoryParam := strings.TrimSpace(r.URL.Query().Get("categoryId")); categoryParam != "" {
		categoryID, err := strconv.ParseInt(categoryParam, 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid categoryId")
			return
		}
		query += ` where category_id = $1`
		args = append(args, categoryID)
	}
	query += ` order by sort_order asc, id asc`

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("food items list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve food items")
		return
	}

	items, err := scanFoodItems(rows)
	if err != nil {
		h.Logger.Error("food items scan failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve food items")
		return
	}

	if err := h.attachFoodItemOptions(ctx, items); err != nil {
		h.Logger.Error("food item options fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve food items")
		return
	}

	response.Success(w, items)
}

func scanFoodItems(rows pgx.Rows) ([]*foodItem, error) {
	defer rows.Close()

	items := make([]*foodItem, 0)
	for rows.Next() {
		var (
			fi                foodItem
			portionMultiplier pgtype.Int4
			portionUnit       pgtype.Text
			imageURL          pgtype.Text
		)
		if err := rows.Scan(&fi.ID, &fi.CategoryID, &fi.Name, &fi.MeasurementType, &fi.IsActive, &fi.SortOrder,
			&portionMultiplier, &portionUnit, &imageURL, &fi.CreatedAt, &fi.UpdatedAt); err != nil {
			return nil, err
		}
		fi.PortionMultiplier = int4Ptr(portionMultiplier)
		fi.PortionUnit = textPtr(portionUnit)
		fi.ImageURL = textPtr(imageURL)
		fi.Preparations = make([]foodItemOption, 0)
		fi.Variations = make([]foodItemOption, 0)
		fi.AddOns = make([]foodItemOption, 0)
		fi.CustomLiterSizes = make([]foodItemOption, 0)
		items = append(items, &fi)
	}
	return items, rows.Err()
}

func (h *Handler) attachFoodItemOptions(ctx context.Context, items []*foodItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(items))
	byID := make(map[int64]*foodItem, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		byID[item.ID] = item
	}

	type optionTable struct {
		table  string
		attach func(item *foodItem, opt foodItemOption)
	}
	tables := []optionTable{
		{"food_item_preparations", func(fi *foodItem, opt foodItemOption) { fi.Preparations = append(fi.Preparations, opt) }},
		{"food_item_variations", func(fi *foodItem, opt foodItemOption) { fi.Variations = append(fi.Variations, opt) }},
		{"food_item_add_ons", func(fi *foodItem, opt foodItemOption) { fi.AddOns = append(fi.AddOns, opt) }},
		{"food_item_liter_sizes", func(fi *foodItem, opt foodItemOption) { fi.CustomLiterSizes = append(fi.CustomLiterSizes, opt) }},
	}

	for _, tbl := range tables {
		rows, err := h.DB.Query(ctx, `
			select id, food_item_id, name, sort_order
			from `+tbl.table+`
			where food_item_id = any($1)
			order by sort_order asc, id asc
		`, ids)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				opt        foodItemOption
				foodItemID int64
			)
			if err := rows.Scan(&opt.ID, &foodItemID, &opt.Name, &opt.SortOrder); err != nil {
				rows.Close()
				return err
			}
			if item, ok := byID[foodItemID]; ok {
				tbl.attach(item, opt)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) AdminFoodItemsCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload foodItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Food item name is required")
		return
	}
	if !validMeasurementType(payload.MeasurementType) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "measurementType must be liters, size or none")
		return
	}

	var categoryExists bool
	if err := h.DB.QueryRow(ctx, `select exists(select 1 from categories where id = $1)`, payload.CategoryID).Scan(&categoryExists); err != nil || !categoryExists {
		response.Error(w, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found")
		return
	}

	sortOrder := int32(0)
	if payload.SortOrder != nil {
		sortOrder = *payload.SortOrder
	} else {
		var maxSort pgtype.Int4
		if err := h.DB.QueryRow(ctx, `select max(sort_order) from food_items where category_id = $1`, payload.CategoryID).Scan(&maxSort); err == nil && maxSort.Valid {
			sortOrder = maxSort.Int32 + 1
		}
	}

	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("food item create tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create food item")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var foodItemID int64
	err = tx.QueryRow(ctx, `
		insert into food_items (category_id, name, measurement_type, is_active, sort_order, portion_multiplier, portion_unit, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, now(), now())
		returning id
	`, payload.CategoryID, name, payload.MeasurementType, isActive, sortOrder, payload.PortionMultiplier, nullIfEmptyPtr(payload.PortionUnit)).Scan(&foodItemID)
	if err != nil {
		h.Logger.Error("food item insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create food item")
		return
	}

	if err := replaceFoodItemOptions(ctx, tx, foodItemID, payload); err != nil {
		h.Logger.Error("food item options insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create food item")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("food item create commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create food item")
		return
	}

	response.Created(w, map[string]any{"id": foodItemID})
}

func (h *Handler) AdminFoodItemsUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	foodItemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Food item ID is required")
		return
	}

	var payload foodItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if payload.MeasurementType != "" && !validMeasurementType(payload.MeasurementType) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "measurementType must be liters, size or none")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("food item update tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update food item")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		update food_items set
			category_id = coalesce(nullif($1, 0), category_id),
			name = coalesce(nullif($2, ''), name),
			measurement_type = coalesce(nullif($3, ''), measurement_type),
			is_active = coalesce($4, is_active),
			sort_order = coalesce($5, sort_order),
			portion_multiplier = $6,
			portion_unit = $7,
			updated_at = now()
		where id = $8
	`, payload.CategoryID, strings.TrimSpace(payload.Name), payload.MeasurementType,
		payload.IsActive, payload.SortOrder, payload.PortionMultiplier, nullIfEmptyPtr(payload.PortionUnit), foodItemID)
	if err != nil {
		h.Logger.Error("food item update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update food item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Food item not found")
		return
	}

	// The admin form always submits the full nested lists, so they are
	// replaced wholesale.
	if err := replaceFoodItemOptions(ctx, tx, foodItemID, payload); err != nil {
		h.Logger.Error("food item options replace failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update food item")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("food item update commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update food item")
		return
	}

	response.Success(w, map[string]any{"id": foodItemID})
}

func replaceFoodItemOptions(ctx context.Context, tx pgx.Tx, foodItemID int64, payload foodItemPayload) error {
	type optionSet struct {
		table   string
		options []foodItemOptionPayload
	}
	sets := []optionSet{
		{"food_item_preparations", payload.Preparations},
		{"food_item_variations", payload.Variations},
		{"food_item_add_ons", payload.AddOns},
		{"food_item_liter_sizes", payload.CustomLiterSizes},
	}

	for _, set := range sets {
		if _, err := tx.Exec(ctx, `delete from `+set.table+` where food_item_id = $1`, foodItemID); err != nil {
			return err
		}
		for idx, opt := range set.options {
			name := strings.TrimSpace(opt.Name)
			if name == "" {
				continue
			}
			sortOrder := int32(idx)
			if opt.SortOrder != nil {
				sortOrder = *opt.SortOrder
			}
			if _, err := tx.Exec(ctx, `
				insert into `+set.table+` (food_item_id, name, sort_order)
				values ($1, $2, $3)
			`, foodItemID, name, sortOrder); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) AdminFoodItemsDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	foodItemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Food item ID is required")
		return
	}

	var inUse bool
	if err := h.DB.QueryRow(ctx, `select exists(select 1 from order_items where food_item_id = $1)`, foodItemID).Scan(&inUse); err != nil {
		h.Logger.Error("food item delete precheck failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete food item")
		return
	}
	if inUse {
		// Keep history readable; referenced items are deactivated instead.
		if _, err := h.DB.Exec(ctx, `update food_items set is_active = false, updated_at = now() where id = $1`, foodItemID); err != nil {
			h.Logger.Error("food item deactivate failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete food item")
			return
		}
		response.Success(w, map[string]any{"id": foodItemID, "deactivated": true})
		return
	}

	tag, err := h.DB.Exec(ctx, `delete from food_items where id = $1`, foodItemID)
	if err != nil {
		h.Logger.Error("food item delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete food item")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Food item not found")
		return
	}

	response.Success(w, map[string]any{"id": foodItemID, "deactivated": false})
}

func (h *Handler) AdminFoodItemsToggleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	foodItemID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Food item ID is required")
		return
	}

	var isActive bool
	err = h.DB.QueryRow(ctx, `
		update food_items set is_active = not is_active, updated_at = now()
		where id = $1
		returning is_active
	`, foodItemID).Scan(&isActive)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Food item not found")
		return
	}

	response.Success(w, map[string]any{"id": foodItemID, "isActive": isActive})
}
