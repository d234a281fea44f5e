package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type printJob struct {
	ID           int64   `json:"id"`
	OrderID      int64   `json:"orderId"`
	Status       string  `json:"status"`
	CustomerName string  `json:"customerName"`
	EventDate    string  `json:"eventDate"`
	Error        *string `json:"error"`
	CreatedAt    string  `json:"createdAt"`
	PrintedAt    *string `json:"printedAt"`
}

func validPrintJobStatus(value string) bool {
	switch value {
	case "queued", "printing", "done", "failed":
		return true
	default:
		return false
	}
}

// PrintJobsList serves the printer agent's poll. Defaults to queued jobs,
// oldest first.
func (h *Handler) PrintJobsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = "queued"
	}
	if !validPrintJobStatus(status) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid print job status")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select pj.id, pj.order_id, pj.status, c.name,
			to_char(o.event_date, 'YYYY-MM-DD'), pj.error,
			to_char(pj.created_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
			to_char(pj.printed_at at time zone 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		from print_jobs pj
		join orders o on o.id = pj.order_id
		join customers c on c.id = o.customer_id
		where pj.status = $1
		order by pj.created_at asc
		limit 100
	`, status)
	if err != nil {
		h.Logger.Error("print jobs list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load print jobs")
		return
	}
	defer rows.Close()

	jobs := make([]printJob, 0)
	for rows.Next() {
		var (
			job      printJob
			jobErr   pgtype.Text
			printed  pgtype.Text
		)
		if err := rows.Scan(&job.ID, &job.OrderID, &job.Status, &job.CustomerName,
			&job.EventDate, &jobErr, &job.CreatedAt, &printed); err != nil {
			h.Logger.Error("print jobs scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load print jobs")
			return
		}
		job.Error = textPtr(jobErr)
		job.PrintedAt = textPtr(printed)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("print jobs rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load print jobs")
		return
	}

	response.Success(w, jobs)
}

// PrintJobUpdate lets the printer agent report progress on a job.
func (h *Handler) PrintJobUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var payload struct {
		Status string  `json:"status"`
		Error  *string `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if !validPrintJobStatus(status) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid print job status")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update print_jobs set
			status = $2,
			error = $3,
			printed_at = case when $2 = 'done' then now() else printed_at end
		where id = $1
	`, jobID, status, nullIfEmptyPtr(payload.Error))
	if err != nil {
		h.Logger.Error("print job update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update print job")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Print job not found")
		return
	}

	response.Success(w, map[string]any{"id": jobID, "status": status})
}
