package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	EventsExchange = "kitchen.events"
	EventsQueue    = "kitchen.print"
)

type orderEvent struct {
	Type      string     `json:"type"`
	OrderID   int64      `json:"orderId"`
	Status    string     `json:"status"`
	EventDate string     `json:"eventDate"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func EnsurePrintTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(EventsQueue); err != nil {
		return err
	}
	// '#' so multi-segment keys like order.status.updated match too.
	return qc.BindQueue(EventsQueue, EventsExchange, "order.#")
}

// ProcessEventToPrintJobs turns an order that just became active into a
// queued kitchen-ticket print job. Duplicate events collapse on the
// (order_id, status='queued') unique index.
func ProcessEventToPrintJobs(ctx context.Context, db *pgxpool.Pool, body []byte) error {
	if db == nil {
		return nil
	}

	var evt orderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}
	if strings.TrimSpace(evt.Type) == "" {
		// unknown envelope
		return nil
	}

	wantsTicket := false
	switch evt.Type {
	case "order.created":
		wantsTicket = strings.EqualFold(evt.Status, "active")
	case "order.status.updated":
		wantsTicket = strings.EqualFold(evt.Status, "active")
	default:
		return nil
	}
	if !wantsTicket {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx, `select exists(select 1 from orders where id = $1)`, evt.OrderID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return nil
	}

	_, err := db.Exec(ctx, `
		insert into print_jobs (order_id, status, created_at)
		values ($1, 'queued', now())
		on conflict (order_id) where status = 'queued' do nothing
	`, evt.OrderID)
	return err
}
