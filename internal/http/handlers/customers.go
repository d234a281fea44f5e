package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type customer struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Address   *string   `json:"address"`
	AltPhone  *string   `json:"altPhone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CustomerSearch serves the order form's phone/name lookup so a returning
// customer's details pre-fill.
func (h *Handler) CustomerSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if phone == "" && name == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "phone or name query is required")
		return
	}

	query := `
		select id, phone, name, address, alt_phone, created_at, updated_at
		from customers
		where ($1 = '' or phone like '%' || $1 || '%' or coalesce(alt_phone, '') like '%' || $1 || '%')
		  and ($2 = '' or name ilike '%' || $2 || '%')
		order by updated_at desc
		limit 20
	`
	rows, err := h.DB.Query(ctx, query, phone, name)
	if err != nil {
		h.Logger.Error("customer search failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search customers")
		return
	}
	defer rows.Close()

	items := make([]customer, 0)
	for rows.Next() {
		var (
			c        customer
			address  pgtype.Text
			altPhone pgtype.Text
		)
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &address, &altPhone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			h.Logger.Error("customer scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search customers")
			return
		}
		c.Address = textPtr(address)
		c.AltPhone = textPtr(altPhone)
		items = append(items, c)
	}

	response.Success(w, items)
}

// upsertCustomer finds-or-creates the customer row for a phone number and
// overwrites name/address/alt-phone with the submitted values (last write
// wins, per the order form's behavior).
func upsertCustomer(ctx context.Context, q querier, phone, name string, address, altPhone *string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		insert into customers (phone, name, address, alt_phone, created_at, updated_at)
		values ($1, $2, $3, $4, now(), now())
		on conflict (phone) do update set
			name = excluded.name,
			address = excluded.address,
			alt_phone = excluded.alt_phone,
			updated_at = now()
		returning id
	`, phone, name, address, altPhone).Scan(&id)
	return id, err
}
