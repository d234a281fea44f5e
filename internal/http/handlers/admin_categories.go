package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type category struct {
	ID           int64     `json:"id"`
	NameHe       string    `json:"nameHe"`
	NameEn       *string   `json:"nameEn"`
	MaxSelection *int32    `json:"maxSelection"`
	SortOrder    int32     `json:"sortOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ItemCount    int64     `json:"itemCount"`
}

type categoryPayload struct {
	NameHe       string  `json:"nameHe"`
	NameEn       *string `json:"nameEn"`
	MaxSelection *int32  `json:"maxSelection"`
	SortOrder    *int32  `json:"sortOrder"`
	IsActive     *bool   `json:"isActive"`
}

type reorderCategoriesPayload struct {
	Categories []struct {
		ID        int64 `json:"id"`
		SortOrder int32 `json:"sortOrder"`
	} `json:"categories"`
}

func (h *Handler) AdminCategoriesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := `
		select
			c.id, c.name_he, c.name_en, c.max_selection, c.sort_order, c.is_active,
			c.created_at, c.updated_at,
			coalesce((select count(*) from food_items fi where fi.category_id = c.id), 0) as item_count
		from categories c
		order by c.sort_order asc, c.id asc
	`
	rows, err := h.DB.Query(ctx, query)
	if err != nil {
		h.Logger.Error("categories list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve categories")
		return
	}
	defer rows.Close()

	items := make([]category, 0)
	for rows.Next() {
		var (
			c            category
			nameEn       pgtype.Text
			maxSelection pgtype.Int4
		)
		if err := rows.Scan(&c.ID, &c.NameHe, &nameEn, &maxSelection, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &c.ItemCount); err != nil {
			h.Logger.Error("category scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve categories")
			return
		}
		c.NameEn = textPtr(nameEn)
		c.MaxSelection = int4Ptr(maxSelection)
		items = append(items, c)
	}

	response.Success(w, items)
}

func (h *Handler) AdminCategoriesCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	nameHe := strings.TrimSpace(payload.NameHe)
	if nameHe == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Category name is required")
		return
	}
	if payload.MaxSelection != nil && *payload.MaxSelection <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "maxSelection must be positive when set")
		return
	}

	sortOrder := int32(0)
	if payload.SortOrder != nil {
		sortOrder = *payload.SortOrder
	} else {
		var maxSort pgtype.Int4
		if err := h.DB.QueryRow(ctx, `select max(sort_order) from categories`).Scan(&maxSort); err == nil && maxSort.Valid {
			sortOrder = maxSort.Int32 + 1
		}
	}

	var c category
	var nameEn pgtype.Text
	var maxSelection pgtype.Int4
	err := h.DB.QueryRow(ctx, `
		insert into categories (name_he, name_en, max_selection, sort_order, is_active, created_at, updated_at)
		values ($1, $2, $3, $4, true, now(), now())
		returning id, name_he, name_en, max_selection, sort_order, is_active, created_at, updated_at
	`, nameHe, nullIfEmptyPtr(payload.NameEn), payload.MaxSelection, sortOrder).
		Scan(&c.ID, &c.NameHe, &nameEn, &maxSelection, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		h.Logger.Error("category create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create category")
		return
	}
	c.NameEn = textPtr(nameEn)
	c.MaxSelection = int4Ptr(maxSelection)

	response.Created(w, c)
}

func (h *Handler) AdminCategoriesUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categoryID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Category ID is required")
		return
	}

	var payload categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if payload.MaxSelection != nil && *payload.MaxSelection <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "maxSelection must be positive when set")
		return
	}

	// max_selection is cleared when the payload carries an explicit null, so
	// the update always writes the field rather than coalescing.
	tag, err := h.DB.Exec(ctx, `
		update categories set
			name_he = coalesce(nullif($1, ''), name_he),
			name_en = $2,
			max_selection = $3,
			sort_order = coalesce($4, sort_order),
			is_active = coalesce($5, is_active),
			updated_at = now()
		where id = $6
	`, strings.TrimSpace(payload.NameHe), nullIfEmptyPtr(payload.NameEn), payload.MaxSelection, payload.SortOrder, payload.IsActive, categoryID)
	if err != nil {
		h.Logger.Error("category update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update category")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
		return
	}

	response.Success(w, map[string]any{"id": categoryID})
}

func (h *Handler) AdminCategoriesDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categoryID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Category ID is required")
		return
	}

	var itemCount int64
	if err := h.DB.QueryRow(ctx, `select count(*) from food_items where category_id = $1`, categoryID).Scan(&itemCount); err != nil {
		h.Logger.Error("category delete precheck failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete category")
		return
	}
	if itemCount > 0 {
		response.Error(w, http.StatusConflict, "CATEGORY_NOT_EMPTY", "Category still has food items")
		return
	}

	tag, err := h.DB.Exec(ctx, `delete from categories where id = $1`, categoryID)
	if err != nil {
		h.Logger.Error("category delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete category")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
		return
	}

	response.Success(w, map[string]any{"id": categoryID})
}

func (h *Handler) AdminCategoriesReorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload reorderCategoriesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Categories) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("category reorder tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reorder categories")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, entry := range payload.Categories {
		if _, err := tx.Exec(ctx, `update categories set sort_order = $1, updated_at = now() where id = $2`, entry.SortOrder, entry.ID); err != nil {
			h.Logger.Error("category reorder failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reorder categories")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("category reorder commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reorder categories")
		return
	}

	response.Success(w, map[string]any{"updated": len(payload.Categories)})
}
