package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type orderItemDetail struct {
	ID                int64   `json:"id"`
	FoodItemID        int64   `json:"foodItemId"`
	FoodItemName      string  `json:"foodItemName"`
	CategoryID        int64   `json:"categoryId"`
	CategoryName      string  `json:"categoryName"`
	LiterSizeID       *int64  `json:"literSizeId"`
	CustomLiterSizeID *int64  `json:"customLiterSizeId"`
	LiterSizeLabel    *string `json:"literSizeLabel"`
	SizeType          *string `json:"sizeType"`
	Quantity          int32   `json:"quantity"`
	PreparationID     *int64  `json:"preparationId"`
	PreparationName   *string `json:"preparationName"`
	VariationID       *int64  `json:"variationId"`
	VariationName     *string `json:"variationName"`
	AddOnID           *int64  `json:"addOnId"`
	AddOnName         *string `json:"addOnName"`
	Note              *string `json:"note"`
}

type extraItemDetail struct {
	ID         int64                     `json:"id"`
	Name       string                    `json:"name"`
	Price      string                    `json:"price"`
	Quantity   int32                     `json:"quantity"`
	Variations []extraItemVariationDetail `json:"variations"`
}

type extraItemVariationDetail struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

type orderDetail struct {
	ID              int64             `json:"id"`
	Reference       string            `json:"reference"`
	Customer        customer          `json:"customer"`
	EventDate       string            `json:"eventDate"`
	EventTime       *string           `json:"eventTime"`
	Notes           *string           `json:"notes"`
	Portions        int32             `json:"portions"`
	PricePerPortion string            `json:"pricePerPortion"`
	DeliveryFee     string            `json:"deliveryFee"`
	TotalAmount     string            `json:"totalAmount"`
	Status          string            `json:"status"`
	Items           []orderItemDetail `json:"items"`
	ExtraItems      []extraItemDetail `json:"extraItems"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
}

func (h *Handler) loadOrderDetail(ctx context.Context, orderID int64) (*orderDetail, error) {
	var (
		detail          orderDetail
		eventTime       pgtype.Text
		notes           pgtype.Text
		pricePerPortion pgtype.Numeric
		deliveryFee     pgtype.Numeric
		totalAmount     pgtype.Numeric
		custAddress     pgtype.Text
		custAltPhone    pgtype.Text
	)
	err := h.DB.QueryRow(ctx, `
		select o.id, o.reference, to_char(o.event_date, 'YYYY-MM-DD'), o.event_time,
			o.notes, o.portions, o.price_per_portion, o.delivery_fee, o.total_amount, o.status,
			to_char(o.created_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
			to_char(o.updated_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
			c.id, c.name, c.phone, c.address, c.alt_phone
		from orders o
		join customers c on c.id = o.customer_id
		where o.id = $1
	`, orderID).Scan(&detail.ID, &detail.Reference, &detail.EventDate, &eventTime,
		&notes, &detail.Portions, &pricePerPortion, &deliveryFee, &totalAmount, &detail.Status,
		&detail.CreatedAt, &detail.UpdatedAt,
		&detail.Customer.ID, &detail.Customer.Name, &detail.Customer.Phone, &custAddress, &custAltPhone)
	if err != nil {
		return nil, err
	}
	detail.EventTime = textPtr(eventTime)
	detail.Notes = textPtr(notes)
	detail.PricePerPortion = numericString(pricePerPortion)
	detail.DeliveryFee = numericString(deliveryFee)
	detail.TotalAmount = numericString(totalAmount)
	detail.Customer.Address = textPtr(custAddress)
	detail.Customer.AltPhone = textPtr(custAltPhone)

	detail.Items, err = h.loadOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	detail.ExtraItems, err = h.loadExtraItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (h *Handler) loadOrderItems(ctx context.Context, orderID int64) ([]orderItemDetail, error) {
	rows, err := h.DB.Query(ctx, `
		select oi.id, oi.food_item_id, fi.name, c.id, c.name_he,
			oi.liter_size_id, oi.custom_liter_size_id, coalesce(ls.label, fls.name), oi.size_type, oi.quantity,
			oi.preparation_id, p.name, oi.variation_id, v.name, oi.add_on_id, a.name,
			oi.note
		from order_items oi
		join food_items fi on fi.id = oi.food_item_id
		join categories c on c.id = fi.category_id
		left join liter_sizes ls on ls.id = oi.liter_size_id
		left join food_item_liter_sizes fls on fls.id = oi.custom_liter_size_id
		left join food_item_preparations p on p.id = oi.preparation_id
		left join food_item_variations v on v.id = oi.variation_id
		left join food_item_add_ons a on a.id = oi.add_on_id
		where oi.order_id = $1
		order by c.sort_order, fi.sort_order, oi.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]orderItemDetail, 0)
	for rows.Next() {
		var (
			item        orderItemDetail
			literSize   pgtype.Int8
			customLiter pgtype.Int8
			literLabel  pgtype.Text
			sizeType    pgtype.Text
			prepID      pgtype.Int8
			prepName    pgtype.Text
			varID       pgtype.Int8
			varName     pgtype.Text
			addOnID     pgtype.Int8
			addOnName   pgtype.Text
			note        pgtype.Text
		)
		if err := rows.Scan(&item.ID, &item.FoodItemID, &item.FoodItemName, &item.CategoryID, &item.CategoryName,
			&literSize, &customLiter, &literLabel, &sizeType, &item.Quantity,
			&prepID, &prepName, &varID, &varName, &addOnID, &addOnName, &note); err != nil {
			return nil, err
		}
		item.LiterSizeID = int8Ptr(literSize)
		item.CustomLiterSizeID = int8Ptr(customLiter)
		item.LiterSizeLabel = textPtr(literLabel)
		item.SizeType = textPtr(sizeType)
		item.PreparationID = int8Ptr(prepID)
		item.PreparationName = textPtr(prepName)
		item.VariationID = int8Ptr(varID)
		item.VariationName = textPtr(varName)
		item.AddOnID = int8Ptr(addOnID)
		item.AddOnName = textPtr(addOnName)
		item.Note = textPtr(note)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (h *Handler) loadExtraItems(ctx context.Context, orderID int64) ([]extraItemDetail, error) {
	rows, err := h.DB.Query(ctx, `
		select e.id, e.name, e.price, e.quantity,
			coalesce(
				(select json_agg(json_build_object('id', ev.id, 'name', ev.name, 'quantity', ev.quantity) order by ev.id)
				 from extra_order_item_variations ev where ev.extra_order_item_id = e.id),
				'[]'::json
			)
		from extra_order_items e
		where e.order_id = $1
		order by e.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	extras := make([]extraItemDetail, 0)
	for rows.Next() {
		var (
			extra         extraItemDetail
			price         pgtype.Numeric
			variationsRaw []byte
		)
		if err := rows.Scan(&extra.ID, &extra.Name, &price, &extra.Quantity, &variationsRaw); err != nil {
			return nil, err
		}
		extra.Price = numericString(price)
		extra.Variations = make([]extraItemVariationDetail, 0)
		if err := json.Unmarshal(variationsRaw, &extra.Variations); err != nil {
			return nil, err
		}
		extras = append(extras, extra)
	}
	return extras, rows.Err()
}

func (h *Handler) OrderGet(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	detail, err := h.loadOrderDetail(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("order get failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, detail)
}

// OrderUpdate replaces the whole order: customer fields, header fields, and a
// wholesale swap of items and extras, inside one transaction.
func (h *Handler) OrderUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

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
	if len(rows) > 0 {
		categoryOf, limits, categoryNames, err := h.loadCategoryLimits(ctx, rows)
		if err != nil {
			h.Logger.Error("order update catalog fetch failed", zapError(err))
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

	var prevStatus string
	if err := h.DB.QueryRow(ctx, `select status from orders where id = $1`, orderID).Scan(&prevStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("order update lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("order update tx failed", zapError(err))
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

	if _, err := tx.Exec(ctx, `
		update orders set customer_id = $2, event_date = $3, event_time = $4, notes = $5,
			portions = $6, price_per_portion = $7, delivery_fee = $8, total_amount = $9,
			status = $10, updated_at = now()
		where id = $1
	`, orderID, customerID, eventDate, nullIfEmptyPtr(payload.EventTime), nullIfEmptyPtr(payload.Notes),
		portions, pricePerPortion, deliveryFee, total, status); err != nil {
		h.Logger.Error("order update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	if _, err := tx.Exec(ctx, `delete from order_items where order_id = $1`, orderID); err != nil {
		h.Logger.Error("order items delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}
	if _, err := tx.Exec(ctx, `delete from extra_order_items where order_id = $1`, orderID); err != nil {
		h.Logger.Error("extra items delete failed", zapError(err))
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
		h.Logger.Error("order update commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save order")
		return
	}

	if prevStatus != status {
		h.publishOrderEvent(ctx, "order.status.updated", orderID, status, payload.EventDate)
	}

	detail, err := h.loadOrderDetail(ctx, orderID)
	if err != nil {
		h.Logger.Error("order reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, detail)
}

// OrderUpdateStatus changes only the order status.
func (h *Handler) OrderUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if !validOrderStatus(status) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order status")
		return
	}

	var eventDate string
	err = h.DB.QueryRow(ctx, `
		update orders set status = $2, updated_at = now()
		where id = $1
		returning to_char(event_date, 'YYYY-MM-DD')
	`, orderID, status).Scan(&eventDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("order status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	h.publishOrderEvent(ctx, "order.status.updated", orderID, status, eventDate)

	response.Success(w, map[string]any{"id": orderID, "status": status})
}

func (h *Handler) OrderDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	tag, err := h.DB.Exec(ctx, `delete from orders where id = $1`, orderID)
	if err != nil {
		h.Logger.Error("order delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete order")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
