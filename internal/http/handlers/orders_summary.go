package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// summaryOrderItemRow is one order_items row with every label the
// aggregation needs already resolved.
type summaryOrderItemRow struct {
	CategoryID        int64
	CategoryName      string
	CategorySortOrder int32
	FoodItemID        int64
	FoodItemName      string
	LiterSizeID       *int64
	CustomLiterSizeID *int64
	LiterSizeLabel    string
	SizeType          *string
	Quantity          int32
	PreparationID     *int64
	PreparationName   string
	VariationID       *int64
	VariationName     string
	AddOnID           *int64
	AddOnName         string
}

type summaryLiterQuantity struct {
	LiterSizeID       int64  `json:"literSizeId,omitempty"`
	CustomLiterSizeID int64  `json:"customLiterSizeId,omitempty"`
	Label             string `json:"label"`
	Quantity          int64  `json:"quantity"`
}

type summarySizeQuantity struct {
	SizeType string `json:"sizeType"`
	Quantity int64  `json:"quantity"`
}

type summaryItem struct {
	FoodItemID      int64                  `json:"foodItemId"`
	DisplayName     string                 `json:"displayName"`
	LiterQuantities []summaryLiterQuantity `json:"literQuantities"`
	SizeQuantities  []summarySizeQuantity  `json:"sizeQuantities"`
	TotalQuantity   int64                  `json:"totalQuantity"`
}

type categorySummary struct {
	CategoryID   int64         `json:"categoryId"`
	CategoryName string        `json:"categoryName"`
	Items        []summaryItem `json:"items"`
}

// Group kinds. Precedence when a row carries more than one option ref is
// add-on, then variation, then preparation.
const (
	groupBase = iota
	groupPreparation
	groupVariation
	groupAddOn
)

type summaryGroupKey struct {
	CategoryID int64
	FoodItemID int64
	Kind       int
	OptionID   int64
}

func classifyRow(row summaryOrderItemRow) summaryGroupKey {
	key := summaryGroupKey{CategoryID: row.CategoryID, FoodItemID: row.FoodItemID, Kind: groupBase}
	switch {
	case row.AddOnID != nil:
		key.Kind = groupAddOn
		key.OptionID = *row.AddOnID
	case row.VariationID != nil:
		key.Kind = groupVariation
		key.OptionID = *row.VariationID
	case row.PreparationID != nil:
		key.Kind = groupPreparation
		key.OptionID = *row.PreparationID
	}
	return key
}

func addOnDisplay(addOnName, itemName string) string {
	return fmt.Sprintf("%s (תוספת ל%s)", addOnName, itemName)
}

func variationDisplay(itemName, variationName string) string {
	return fmt.Sprintf("%s - %s", itemName, variationName)
}

func preparationDisplay(itemName, preparationName string) string {
	return fmt.Sprintf("%s (%s)", itemName, preparationName)
}

func displayName(row summaryOrderItemRow, kind int) string {
	switch kind {
	case groupAddOn:
		return addOnDisplay(row.AddOnName, row.FoodItemName)
	case groupVariation:
		return variationDisplay(row.FoodItemName, row.VariationName)
	case groupPreparation:
		return preparationDisplay(row.FoodItemName, row.PreparationName)
	default:
		return row.FoodItemName
	}
}

// sortTier orders rows within a category: base items (preparation rows
// included) first, then variations, then add-ons.
func sortTier(kind int) int {
	switch kind {
	case groupVariation:
		return 1
	case groupAddOn:
		return 2
	default:
		return 0
	}
}

// literBucketKey keeps a global liter size and a custom one with the same id
// in separate buckets.
type literBucketKey struct {
	custom bool
	id     int64
}

type summaryGroup struct {
	key         summaryGroupKey
	displayName string
	liters      map[literBucketKey]*summaryLiterQuantity
	sizes       map[string]int64
	total       int64
}

// aggregateSummary turns resolved order-item rows into per-category summary
// rows. A group accumulates into whichever quantity bucket each of its rows
// indicates. Categories with no groups are omitted.
func aggregateSummary(rows []summaryOrderItemRow) []categorySummary {
	groups := make(map[summaryGroupKey]*summaryGroup)
	groupOrder := make([]summaryGroupKey, 0)

	type categoryInfo struct {
		name      string
		sortOrder int32
	}
	categories := make(map[int64]categoryInfo)

	for _, row := range rows {
		if row.Quantity <= 0 {
			continue
		}
		key := classifyRow(row)

		if _, ok := categories[key.CategoryID]; !ok {
			categories[key.CategoryID] = categoryInfo{name: row.CategoryName, sortOrder: row.CategorySortOrder}
		}

		group, ok := groups[key]
		if !ok {
			group = &summaryGroup{
				key:         key,
				displayName: displayName(row, key.Kind),
				liters:      make(map[literBucketKey]*summaryLiterQuantity),
				sizes:       make(map[string]int64),
			}
			groups[key] = group
			groupOrder = append(groupOrder, key)
		}

		switch {
		case row.LiterSizeID != nil || row.CustomLiterSizeID != nil:
			bucket := literBucketKey{}
			if row.LiterSizeID != nil {
				bucket.id = *row.LiterSizeID
			} else {
				bucket = literBucketKey{custom: true, id: *row.CustomLiterSizeID}
			}
			entry, ok := group.liters[bucket]
			if !ok {
				entry = &summaryLiterQuantity{Label: row.LiterSizeLabel}
				if bucket.custom {
					entry.CustomLiterSizeID = bucket.id
				} else {
					entry.LiterSizeID = bucket.id
				}
				group.liters[bucket] = entry
			}
			entry.Quantity += int64(row.Quantity)
		case row.SizeType != nil:
			group.sizes[*row.SizeType] += int64(row.Quantity)
		default:
			group.total += int64(row.Quantity)
		}
	}

	byCategory := make(map[int64][]*summaryGroup)
	for _, key := range groupOrder {
		byCategory[key.CategoryID] = append(byCategory[key.CategoryID], groups[key])
	}

	collator := collate.New(language.Hebrew)

	categoryIDs := make([]int64, 0, len(byCategory))
	for id := range byCategory {
		categoryIDs = append(categoryIDs, id)
	}
	sort.Slice(categoryIDs, func(i, j int) bool {
		a, b := categories[categoryIDs[i]], categories[categoryIDs[j]]
		if a.sortOrder != b.sortOrder {
			return a.sortOrder < b.sortOrder
		}
		return categoryIDs[i] < categoryIDs[j]
	})

	result := make([]categorySummary, 0, len(categoryIDs))
	for _, categoryID := range categoryIDs {
		categoryGroups := byCategory[categoryID]
		sort.SliceStable(categoryGroups, func(i, j int) bool {
			ti, tj := sortTier(categoryGroups[i].key.Kind), sortTier(categoryGroups[j].key.Kind)
			if ti != tj {
				return ti < tj
			}
			return collator.CompareString(categoryGroups[i].displayName, categoryGroups[j].displayName) < 0
		})

		items := make([]summaryItem, 0, len(categoryGroups))
		for _, group := range categoryGroups {
			item := summaryItem{
				FoodItemID:      group.key.FoodItemID,
				DisplayName:     group.displayName,
				LiterQuantities: make([]summaryLiterQuantity, 0, len(group.liters)),
				SizeQuantities:  make([]summarySizeQuantity, 0, len(group.sizes)),
				TotalQuantity:   group.total,
			}
			for _, entry := range group.liters {
				item.LiterQuantities = append(item.LiterQuantities, *entry)
			}
			// Global liter sizes first by id, then the item's custom ones.
			sort.Slice(item.LiterQuantities, func(i, j int) bool {
				a, b := item.LiterQuantities[i], item.LiterQuantities[j]
				if (a.CustomLiterSizeID > 0) != (b.CustomLiterSizeID > 0) {
					return a.CustomLiterSizeID == 0
				}
				return a.LiterSizeID+a.CustomLiterSizeID < b.LiterSizeID+b.CustomLiterSizeID
			})
			// big before small, matching the order form.
			for _, sizeType := range []string{sizeTypeBig, sizeTypeSmall} {
				if qty, ok := group.sizes[sizeType]; ok && qty > 0 {
					item.SizeQuantities = append(item.SizeQuantities, summarySizeQuantity{SizeType: sizeType, Quantity: qty})
				}
			}
			if len(item.LiterQuantities) == 0 && len(item.SizeQuantities) == 0 && item.TotalQuantity == 0 {
				continue
			}
			items = append(items, item)
		}
		if len(items) == 0 {
			continue
		}
		result = append(result, categorySummary{
			CategoryID:   categoryID,
			CategoryName: categories[categoryID].name,
			Items:        items,
		})
	}
	return result
}

type summaryOrderHeader struct {
	ID            int64
	CustomerName  string
	CustomerPhone string
	AltPhone      *string
}

// filterSummaryOrders applies the customer-name and phone filters. The name
// match is a case-insensitive substring; the phone match is a digit substring
// against either phone field.
func filterSummaryOrders(orders []summaryOrderHeader, customerName, phone string) []int64 {
	nameNeedle := strings.ToLower(strings.TrimSpace(customerName))
	phoneNeedle := digitsOnly(phone)

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		if nameNeedle != "" && !strings.Contains(strings.ToLower(o.CustomerName), nameNeedle) {
			continue
		}
		if phoneNeedle != "" {
			matches := strings.Contains(digitsOnly(o.CustomerPhone), phoneNeedle)
			if !matches && o.AltPhone != nil {
				matches = strings.Contains(digitsOnly(*o.AltPhone), phoneNeedle)
			}
			if !matches {
				continue
			}
		}
		ids = append(ids, o.ID)
	}
	return ids
}

// OrdersSummary aggregates what the kitchen must prepare across all orders
// in an inclusive date range, grouped per category. Errors surface as 500s
// rather than an empty report.
func (h *Handler) OrdersSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := parseDateParam(r.URL.Query().Get("from"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid from date")
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("to"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid to date")
		return
	}

	orderRows, err := h.DB.Query(ctx, `
		select o.id, c.name, c.phone, c.alt_phone
		from orders o
		join customers c on c.id = o.customer_id
		where o.status <> 'cancelled'
		  and ($1::date is null or o.event_date >= $1)
		  and ($2::date is null or o.event_date <= $2)
	`, nullDate(from), nullDate(to))
	if err != nil {
		h.Logger.Error("summary orders fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load summary")
		return
	}
	defer orderRows.Close()

	headers := make([]summaryOrderHeader, 0)
	for orderRows.Next() {
		var (
			header   summaryOrderHeader
			altPhone pgtype.Text
		)
		if err := orderRows.Scan(&header.ID, &header.CustomerName, &header.CustomerPhone, &altPhone); err != nil {
			h.Logger.Error("summary orders scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load summary")
			return
		}
		header.AltPhone = textPtr(altPhone)
		headers = append(headers, header)
	}
	if err := orderRows.Err(); err != nil {
		h.Logger.Error("summary orders rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load summary")
		return
	}

	orderIDs := filterSummaryOrders(headers, r.URL.Query().Get("customerName"), r.URL.Query().Get("phone"))
	if len(orderIDs) == 0 {
		response.Success(w, []categorySummary{})
		return
	}

	rows, err := h.loadSummaryItemRows(ctx, orderIDs)
	if err != nil {
		h.Logger.Error("summary items fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load summary")
		return
	}

	response.Success(w, aggregateSummary(rows))
}

func (h *Handler) loadSummaryItemRows(ctx context.Context, orderIDs []int64) ([]summaryOrderItemRow, error) {
	dbRows, err := h.DB.Query(ctx, `
		select c.id, c.name_he, c.sort_order,
			fi.id, fi.name,
			oi.liter_size_id, oi.custom_liter_size_id, coalesce(ls.label, fls.name, ''), oi.size_type, oi.quantity,
			oi.preparation_id, coalesce(p.name, ''),
			oi.variation_id, coalesce(v.name, ''),
			oi.add_on_id, coalesce(a.name, '')
		from order_items oi
		join food_items fi on fi.id = oi.food_item_id
		join categories c on c.id = fi.category_id
		left join liter_sizes ls on ls.id = oi.liter_size_id
		left join food_item_liter_sizes fls on fls.id = oi.custom_liter_size_id
		left join food_item_preparations p on p.id = oi.preparation_id
		left join food_item_variations v on v.id = oi.variation_id
		left join food_item_add_ons a on a.id = oi.add_on_id
		where oi.order_id = any($1)
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()

	rows := make([]summaryOrderItemRow, 0)
	for dbRows.Next() {
		var (
			row         summaryOrderItemRow
			literSize   pgtype.Int8
			customLiter pgtype.Int8
			sizeType    pgtype.Text
			prepID      pgtype.Int8
			varID       pgtype.Int8
			addOnID     pgtype.Int8
		)
		if err := dbRows.Scan(&row.CategoryID, &row.CategoryName, &row.CategorySortOrder,
			&row.FoodItemID, &row.FoodItemName,
			&literSize, &customLiter, &row.LiterSizeLabel, &sizeType, &row.Quantity,
			&prepID, &row.PreparationName,
			&varID, &row.VariationName,
			&addOnID, &row.AddOnName); err != nil {
			return nil, err
		}
		row.LiterSizeID = int8Ptr(literSize)
		row.CustomLiterSizeID = int8Ptr(customLiter)
		row.SizeType = textPtr(sizeType)
		row.PreparationID = int8Ptr(prepID)
		row.VariationID = int8Ptr(varID)
		row.AddOnID = int8Ptr(addOnID)
		rows = append(rows, row)
	}
	return rows, dbRows.Err()
}
