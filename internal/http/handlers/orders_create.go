package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kitchen-order-service/internal/queue"
	"kitchen-order-service/pkg/response"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	sizeTypeBig   = "big"
	sizeTypeSmall = "small"

	statusDraft     = "draft"
	statusActive    = "active"
	statusCompleted = "completed"
	statusCancelled = "cancelled"
)

func validOrderStatus(value string) bool {
	switch value {
	case statusDraft, statusActive, statusCompleted, statusCancelled:
		return true
	default:
		return false
	}
}

type orderCustomerPayload struct {
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Address  *string `json:"address"`
	AltPhone *string `json:"altPhone"`
}

// literQuantityPayload references either a global liter size or one of the
// item's own custom liter sizes, never both.
type literQuantityPayload struct {
	LiterSizeID       int64 `json:"literSizeId"`
	CustomLiterSizeID int64 `json:"customLiterSizeId"`
	Quantity          int32 `json:"quantity"`
}

type sizeQuantityPayload struct {
	SizeType string `json:"sizeType"`
	Quantity int32  `json:"quantity"`
}

// orderSelectionPayload is one logical pick on the order form. A selection
// with several liter sizes (or both portion sizes) fans out into one
// order_items row per populated quantity.
type orderSelectionPayload struct {
	FoodItemID      int64                  `json:"foodItemId"`
	PreparationID   *int64                 `json:"preparationId"`
	VariationID     *int64                 `json:"variationId"`
	AddOnID         *int64                 `json:"addOnId"`
	Note            *string                `json:"note"`
	LiterQuantities []literQuantityPayload `json:"literQuantities"`
	SizeQuantities  []sizeQuantityPayload  `json:"sizeQuantities"`
	Quantity        int32                  `json:"quantity"`
}

type extraItemVariationPayload struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

type extraItemPayload struct {
	Name       string                      `json:"name"`
	Price      string                      `json:"price"`
	Quantity   int32                       `json:"quantity"`
	Variations []extraItemVariationPayload `json:"variations"`
}

type createOrderPayload struct {
	Customer        orderCustomerPayload    `json:"customer"`
	EventDate       string                  `json:"eventDate"`
	EventTime       *string                 `json:"eventTime"`
	Notes           *string                 `json:"notes"`
	Portions        *int32                  `json:"portions"`
	PricePerPortion *string                 `json:"pricePerPortion"`
	DeliveryFee     *string                 `json:"deliveryFee"`
	Status          string                  `json:"status"`
	Selections      []orderSelectionPayload `json:"selections"`
	ExtraItems      []extraItemPayload      `json:"extraItems"`
}

// orderItemRow is a persisted order_items row: exactly one quantity
// dimension is populated.
type orderItemRow struct {
	FoodItemID        int64
	LiterSizeID       *int64
	CustomLiterSizeID *int64
	SizeType          *string
	Quantity          int32
	PreparationID     *int64
	VariationID       *int64
	AddOnID           *int64
	Note              *string
}

// expandSelection turns one form selection into its order_items rows.
// Zero-quantity entries are dropped; a selection whose quantities are all
// zero expands to no rows at all. Mixing liter and size quantities on one
// selection is rejected.
func expandSelection(sel orderSelectionPayload) ([]orderItemRow, error) {
	hasLiters := false
	for _, lq := range sel.LiterQuantities {
		if lq.Quantity > 0 {
			hasLiters = true
			break
		}
	}
	hasSizes := false
	for _, sq := range sel.SizeQuantities {
		if sq.Quantity > 0 {
			hasSizes = true
			break
		}
	}
	if hasLiters && hasSizes {
		return nil, errInvalid("a selection cannot mix liter and size quantities")
	}
	if (hasLiters || hasSizes) && sel.Quantity > 0 {
		return nil, errInvalid("a selection cannot mix a plain quantity with liter or size quantities")
	}

	base := orderItemRow{
		FoodItemID:    sel.FoodItemID,
		PreparationID: sel.PreparationID,
		VariationID:   sel.VariationID,
		AddOnID:       sel.AddOnID,
		Note:          nullIfEmptyPtr(sel.Note),
	}

	rows := make([]orderItemRow, 0)
	switch {
	case hasLiters:
		for _, lq := range sel.LiterQuantities {
			if lq.Quantity <= 0 {
				continue
			}
			if (lq.LiterSizeID > 0) == (lq.CustomLiterSizeID > 0) {
				return nil, errInvalid("a liter quantity references exactly one of literSizeId and customLiterSizeId")
			}
			row := base
			if lq.LiterSizeID > 0 {
				literSizeID := lq.LiterSizeID
				row.LiterSizeID = &literSizeID
			} else {
				customID := lq.CustomLiterSizeID
				row.CustomLiterSizeID = &customID
			}
			row.Quantity = lq.Quantity
			rows = append(rows, row)
		}
	case hasSizes:
		for _, sq := range sel.SizeQuantities {
			if sq.Quantity <= 0 {
				continue
			}
			sizeType := strings.ToLower(strings.TrimSpace(sq.SizeType))
			if sizeType != sizeTypeBig && sizeType != sizeTypeSmall {
				return nil, errInvalid("sizeType must be big or small")
			}
			row := base
			row.SizeType = &sizeType
			row.Quantity = sq.Quantity
			rows = append(rows, row)
		}
	case sel.Quantity > 0:
		row := base
		row.Quantity = sel.Quantity
		rows = append(rows, row)
	}

	return rows, nil
}

// expandSelections expands every selection and reports, per selection, how
// many rows it produced (zero means the selection was dropped).
func expandSelections(selections []orderSelectionPayload) ([]orderItemRow, []int, error) {
	rows := make([]orderItemRow, 0)
	counts := make([]int, len(selections))
	for i, sel := range selections {
		expanded, err := expandSelection(sel)
		if err != nil {
			return nil, nil, err
		}
		counts[i] = len(expanded)
		rows = append(rows, expanded...)
	}
	return rows, counts, nil
}

// checkCategoryLimits enforces each category's max_selection against the
// number of surviving (non-empty) selections pointing into it.
func checkCategoryLimits(selections []orderSelectionPayload, counts []int, categoryOf map[int64]int64, limits map[int64]int32, categoryNames map[int64]string) error {
	perCategory := make(map[int64]int)
	for i, sel := range selections {
		if counts[i] == 0 {
			continue
		}
		categoryID, ok := categoryOf[sel.FoodItemID]
		if !ok {
			return errInvalid(fmt.Sprintf("unknown food item %d", sel.FoodItemID))
		}
		perCategory[categoryID]++
	}
	for categoryID, count := range perCategory {
		limit, ok := limits[categoryID]
		if !ok {
			continue
		}
		if int32(count) > limit {
			name := categoryNames[categoryID]
			return errInvalid(fmt.Sprintf("ניתן לבחור עד %d פריטים בקטגוריה %s", limit, name))
		}
	}
	return nil
}

// computeOrderTotal prices the order: portions x price-per-portion, plus the
// delivery fee, plus the priced extra items.
func computeOrderTotal(portions int32, pricePerPortion, deliveryFee decimal.Decimal, extras []extraItemPayload) (decimal.Decimal, error) {
	total := pricePerPortion.Mul(decimal.NewFromInt32(portions)).Add(deliveryFee)
	for _, extra := range extras {
		if extra.Quantity <= 0 {
			continue
		}
		price, err := parseMoney(extra.Price)
		if err != nil {
			return decimal.Zero, errInvalid(fmt.Sprintf("invalid price for extra item %q", extra.Name))
		}
		total = total.Add(price.Mul(decimal.NewFromInt32(extra.Quantity)))
	}
	return total, nil
}

func parseMoney(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount")
	}
	return d, nil
}

func parseMoneyPtr(value *string) (decimal.Decimal, error) {
	if value == nil {
		return decimal.Zero, nil
	}
	return parseMoney(*value)
}

func (h *Handler) OrderCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload createOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	phone := strings.TrimSpace(payload.Customer.Phone)
	name := strings.TrimSpace(payload.Customer.Name)
	if phone == "" || name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "נא למלא שם וטלפון")
		return
	}

	eventDate, err := parseDateParam(payload.EventDate)
	if err != nil || eventDate.IsZero() {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "נא לבחור תאריך אירוע")
		return
	}

	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if status == "" {
		status = statusActive
	}
	if !validOrderStatus(status) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order status")
		return
	}

	rows, counts, err := expandSelections(payload.Selections)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	hasExtras := false
	for _, extra := range payload.ExtraItems {
		if strings.TrimSpace(extra.Name) != "" && extra.Quantity > 0 {
			hasExtras = true
			break
		}
	}
	if len(rows) == 0 && !hasExtras {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "ההזמנה ריקה")
		return
	}

	if len(rows) > 0 {
		categoryOf, limits, categoryNames, err := h.loadCategoryLimits(ctx, rows)
		if err != nil {
			h.Logger.Error("order create catalog fetch failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
			return
		}
		if err := checkCategoryLimits(payload.Selections, counts, categoryOf, limits, categoryNames); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	}

	pricePerPortion, err := parseMoneyPtr(payload.PricePerPortion)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid price per portion")
		return
	}
	deliveryFee, err := parseMoneyPtr(payload.DeliveryFee)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid delivery fee")
		return
	}
	portions := int32(0)
	if payload.Portions != nil && *payload.Portions > 0 {
		portions = *payload.Portions
	}
	total, err := computeOrderTotal(portions, pricePerPortion, deliveryFee, payload.ExtraItems)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	reference := uuid.New()

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("order create tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	customerID, err := upsertCustomer(ctx, tx, phone, name, nullIfEmptyPtr(payload.Customer.Address), nullIfEmptyPtr(payload.Customer.AltPhone))
	if err != nil {
		h.Logger.Error("customer upsert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	var orderID int64
	err = tx.QueryRow(ctx, `
		insert into orders (
			reference, customer_id, event_date, event_time, notes,
			portions, price_per_portion, delivery_fee, total_amount, status,
			created_at, updated_at
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		returning id
	`, reference, customerID, eventDate, nullIfEmptyPtr(payload.EventTime), nullIfEmptyPtr(payload.Notes),
		portions, pricePerPortion, deliveryFee, total, status).Scan(&orderID)
	if err != nil {
		h.Logger.Error("order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	if err := insertOrderItems(ctx, tx, orderID, rows); err != nil {
		h.Logger.Error("order items insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	if err := insertExtraItems(ctx, tx, orderID, payload.ExtraItems); err != nil {
		h.Logger.Error("extra items insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("order create commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	h.publishOrderEvent(ctx, "order.created", orderID, status, payload.EventDate)

	response.Created(w, map[string]any{
		"id":          orderID,
		"reference":   reference.String(),
		"customerId":  customerID,
		"status":      status,
		"totalAmount": total.StringFixed(2),
		"itemCount":   len(rows),
	})
}

func (h *Handler) loadCategoryLimits(ctx context.Context, rows []orderItemRow) (map[int64]int64, map[int64]int32, map[int64]string, error) {
	ids := make([]int64, 0, len(rows))
	seen := make(map[int64]bool)
	for _, row := range rows {
		if !seen[row.FoodItemID] {
			seen[row.FoodItemID] = true
			ids = append(ids, row.FoodItemID)
		}
	}

	categoryOf := make(map[int64]int64)
	limits := make(map[int64]int32)
	categoryNames := make(map[int64]string)

	dbRows, err := h.DB.Query(ctx, `
		select fi.id, c.id, c.name_he, c.max_selection
		from food_items fi
		join categories c on c.id = fi.category_id
		where fi.id = any($1)
	`, ids)
	if err != nil {
		return nil, nil, nil, err
	}
	defer dbRows.Close()

	for dbRows.Next() {
		var (
			foodItemID   int64
			categoryID   int64
			categoryName string
			maxSelection *int32
		)
		if err := dbRows.Scan(&foodItemID, &categoryID, &categoryName, &maxSelection); err != nil {
			return nil, nil, nil, err
		}
		categoryOf[foodItemID] = categoryID
		categoryNames[categoryID] = categoryName
		if maxSelection != nil {
			limits[categoryID] = *maxSelection
		}
	}
	return categoryOf, limits, categoryNames, dbRows.Err()
}

func insertOrderItems(ctx context.Context, tx querier, orderID int64, rows []orderItemRow) error {
	for _, row := range rows {
		if _, err := tx.Exec(ctx, `
			insert into order_items (order_id, food_item_id, liter_size_id, custom_liter_size_id, size_type, quantity, preparation_id, variation_id, add_on_id, note)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, orderID, row.FoodItemID, row.LiterSizeID, row.CustomLiterSizeID, row.SizeType, row.Quantity, row.PreparationID, row.VariationID, row.AddOnID, row.Note); err != nil {
			return err
		}
	}
	return nil
}

func insertExtraItems(ctx context.Context, tx querier, orderID int64, extras []extraItemPayload) error {
	for _, extra := range extras {
		name := strings.TrimSpace(extra.Name)
		if name == "" || extra.Quantity <= 0 {
			continue
		}
		price, err := parseMoney(extra.Price)
		if err != nil {
			return err
		}

		var extraID int64
		if err := tx.QueryRow(ctx, `
			insert into extra_order_items (order_id, name, price, quantity)
			values ($1, $2, $3, $4)
			returning id
		`, orderID, name, price, extra.Quantity).Scan(&extraID); err != nil {
			return err
		}

		for _, variation := range extra.Variations {
			varName := strings.TrimSpace(variation.Name)
			if varName == "" || variation.Quantity <= 0 {
				continue
			}
			if _, err := tx.Exec(ctx, `
				insert into extra_order_item_variations (extra_order_item_id, name, quantity)
				values ($1, $2, $3)
			`, extraID, varName, variation.Quantity); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) publishOrderEvent(ctx context.Context, eventType string, orderID int64, status string, eventDate string) {
	if h.Queue == nil {
		return
	}
	now := time.Now().UTC()
	event := map[string]any{
		"type":      eventType,
		"orderId":   orderID,
		"status":    status,
		"eventDate": eventDate,
		"updatedAt": now.Format(time.RFC3339),
	}
	if err := h.Queue.PublishJSON(ctx, queue.EventsExchange, eventType, event); err != nil {
		h.Logger.Warn("order event publish failed", zapError(err), zap.Int64("orderId", orderID))
	}
}
