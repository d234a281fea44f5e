package handlers

import (
	"net/http"
	"strings"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type orderListItem struct {
	ID            int64   `json:"id"`
	Reference     string  `json:"reference"`
	CustomerName  string  `json:"customerName"`
	CustomerPhone string  `json:"customerPhone"`
	AltPhone      *string `json:"altPhone"`
	EventDate     string  `json:"eventDate"`
	EventTime     *string `json:"eventTime"`
	Status        string  `json:"status"`
	Portions      int32   `json:"portions"`
	TotalAmount   string  `json:"totalAmount"`
	ItemCount     int64   `json:"itemCount"`
	CreatedAt     string  `json:"createdAt"`
}

// OrdersList returns orders inside an inclusive event-date range, newest
// event first. Optional q filters by customer name or by either phone field.
func (h *Handler) OrdersList(w http.ResponseWriter, r *http.Request) {
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

	query := `
		select o.id, o.reference, c.name, c.phone, c.alt_phone,
			to_char(o.event_date, 'YYYY-MM-DD'), o.event_time, o.status,
			o.portions, o.total_amount,
			(select count(*) from order_items oi where oi.order_id = o.id),
			to_char(o.created_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		from orders o
		join customers c on c.id = o.customer_id
		where ($1::date is null or o.event_date >= $1)
		  and ($2::date is null or o.event_date <= $2)
	`
	args := []any{nullDate(from), nullDate(to)}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" {
		if !validOrderStatus(status) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order status")
			return
		}
		query += " and o.status = $3"
		args = append(args, status)
	}
	query += " order by o.event_date desc, o.id desc"

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("orders list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load orders")
		return
	}
	defer rows.Close()

	orders := make([]orderListItem, 0)
	for rows.Next() {
		var (
			o           orderListItem
			altPhone    pgtype.Text
			eventTime   pgtype.Text
			totalAmount pgtype.Numeric
		)
		if err := rows.Scan(&o.ID, &o.Reference, &o.CustomerName, &o.CustomerPhone, &altPhone,
			&o.EventDate, &eventTime, &o.Status, &o.Portions, &totalAmount, &o.ItemCount, &o.CreatedAt); err != nil {
			h.Logger.Error("orders list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load orders")
			return
		}
		o.AltPhone = textPtr(altPhone)
		o.EventTime = textPtr(eventTime)
		o.TotalAmount = numericString(totalAmount)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("orders list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load orders")
		return
	}

	// Name and phone filtering happens here so a partial phone matches either
	// the main or the alternate number.
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		orders = filterOrdersByQuery(orders, q)
	}

	response.Success(w, orders)
}

// filterOrdersByQuery keeps orders whose customer name contains the query
// (case-insensitive, same as the summary's name filter), or whose phone or
// alternate phone contains its digits.
func filterOrdersByQuery(orders []orderListItem, q string) []orderListItem {
	needle := strings.ToLower(strings.TrimSpace(q))
	digits := digitsOnly(q)
	filtered := make([]orderListItem, 0, len(orders))
	for _, o := range orders {
		if strings.Contains(strings.ToLower(o.CustomerName), needle) {
			filtered = append(filtered, o)
			continue
		}
		if digits == "" {
			continue
		}
		if strings.Contains(digitsOnly(o.CustomerPhone), digits) {
			filtered = append(filtered, o)
			continue
		}
		if o.AltPhone != nil && strings.Contains(digitsOnly(*o.AltPhone), digits) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
