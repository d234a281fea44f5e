package handlers

import (
	"net/http"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type menuCategory struct {
	ID           int64       `json:"id"`
	NameHe       string      `json:"nameHe"`
	NameEn       *string     `json:"nameEn"`
	MaxSelection *int32      `json:"maxSelection"`
	SortOrder    int32       `json:"sortOrder"`
	Items        []*foodItem `json:"items"`
}

// Menu returns the full active catalog the order form renders: categories in
// sort order, each with its active items and their nested options, plus the
// global liter sizes.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categoryRows, err := h.DB.Query(ctx, `
		select id, name_he, name_en, max_selection, sort_order
		from categories
		where is_active = true
		order by sort_order asc, id asc
	`)
	if err != nil {
		h.Logger.Error("menu categories fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
		return
	}

	categories := make([]*menuCategory, 0)
	byID := make(map[int64]*menuCategory)
	for categoryRows.Next() {
		var (
			c            menuCategory
			nameEn       pgtype.Text
			maxSelection pgtype.Int4
		)
		if err := categoryRows.Scan(&c.ID, &c.NameHe, &nameEn, &maxSelection, &c.SortOrder); err != nil {
			categoryRows.Close()
			h.Logger.Error("menu categories scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
			return
		}
		c.NameEn = textPtr(nameEn)
		c.MaxSelection = int4Ptr(maxSelection)
		c.Items = make([]*foodItem, 0)
		categories = append(categories, &c)
		byID[c.ID] = &c
	}
	categoryRows.Close()
	if err := categoryRows.Err(); err != nil {
		h.Logger.Error("menu categories scan failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
		return
	}

	itemRows, err := h.DB.Query(ctx, `
		select id, category_id, name, measurement_type, is_active, sort_order,
		       portion_multiplier, portion_unit, image_url, created_at, updated_at
		from food_items
		where is_active = true
		order by sort_order asc, id asc
	`)
	if err != nil {
		h.Logger.Error("menu items fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
		return
	}

	items, err := scanFoodItems(itemRows)
	if err != nil {
		h.Logger.Error("menu items scan failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
		return
	}
	if err := h.attachFoodItemOptions(ctx, items); err != nil {
		h.Logger.Error("menu item options fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
		return
	}
	for _, item := range items {
		if c, ok := byID[item.CategoryID]; ok {
			c.Items = append(c.Items, item)
		}
	}

	literRows, err := h.DB.Query(ctx, `select id, label, sort_order from liter_sizes order by sort_order asc, id asc`)
	if err != nil {
		h.Logger.Error("menu liter sizes fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
		return
	}
	defer literRows.Close()

	literSizes := make([]literSize, 0)
	for literRows.Next() {
		var ls literSize
		if err := literRows.Scan(&ls.ID, &ls.Label, &ls.SortOrder); err != nil {
			h.Logger.Error("menu liter size scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve menu")
			return
		}
		literSizes = append(literSizes, ls)
	}

	response.Success(w, map[string]any{
		"categories": categories,
		"literSizes": literSizes,
	})
}
