package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"kitchen-order-service/internal/utils"
	"kitchen-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phpdave11/gofpdf"
)

type ticketTemplateData struct {
	CustomerName  string
	CustomerPhone string
	EventDate     string
	EventTime     string
	Portions      int32
	Notes         string
	PrintedAt     string
	ExtraItems    []ticketExtraLine
	Layout        ticketLayout
}

type ticketExtraLine struct {
	Name     string
	Quantity int32
}

const ticketHTMLTemplate = `<!DOCTYPE html>
<html lang="he" dir="rtl">
<head>
  <meta charset="UTF-8" />
  <title>הזמנה למטבח</title>
  <style>
    * { box-sizing: border-box; }
    body { font-family: 'Arial', sans-serif; font-size: 13px; padding: 10px; color: #000; direction: rtl; }
    .header { text-align: center; border-bottom: 2px solid #000; padding-bottom: 6px; margin-bottom: 8px; }
    .customer { font-size: 18px; font-weight: bold; }
    .meta { font-size: 13px; margin-top: 2px; }
    .columns { display: flex; flex-direction: row; gap: 10px; align-items: flex-start; }
    .column { flex: 1; border-right: 1px dashed #999; padding-right: 8px; }
    .column:first-child { border-right: none; padding-right: 0; }
    .line { margin: 2px 0; }
    .line.category { font-weight: bold; font-size: 14px; border-bottom: 1px solid #000; margin-top: 6px; }
    .line.signature { font-weight: 600; text-decoration: underline; }
    .extras { border-top: 1px dashed #000; margin-top: 8px; padding-top: 6px; }
    .notes { margin-top: 6px; font-style: italic; }
    @media print { body { padding: 0; } }
  </style>
</head>
<body>
  <div class="header">
    <div class="customer">{{.CustomerName}} · {{.CustomerPhone}}</div>
    <div class="meta">{{.EventDate}}{{if .EventTime}} · {{.EventTime}}{{end}}{{if .Portions}} · {{.Portions}} מנות{{end}}</div>
  </div>
  <div class="columns">
    {{range .Layout.Columns}}
    <div class="column">
      {{range .Lines}}<div class="line {{.Kind}}">{{.Text}}</div>
      {{end}}
    </div>
    {{end}}
  </div>
  {{if .ExtraItems}}
  <div class="extras">
    {{range .ExtraItems}}<div class="line">{{.Name}} × {{.Quantity}}</div>
    {{end}}
  </div>
  {{end}}
  {{if .Notes}}<div class="notes">{{.Notes}}</div>{{end}}
  {{if .PrintedAt}}<div class="meta">הודפס {{.PrintedAt}}</div>{{end}}
</body>
</html>`

func (h *Handler) ticketOptionsFromQuery(r *http.Request) ticketOptions {
	opts := ticketOptions{
		LinesPerColumn: h.Config.TicketColumnLines,
		Columns:        h.Config.TicketColumns,
		HiddenItemIDs:  make(map[int64]bool),
	}
	if v := r.URL.Query().Get("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			opts.LinesPerColumn = n
		}
	}
	for _, raw := range strings.Split(r.URL.Query().Get("hidden"), ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			opts.HiddenItemIDs[id] = true
		}
	}
	for _, raw := range strings.Split(r.URL.Query().Get("order"), ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			opts.ItemOrder = append(opts.ItemOrder, id)
		}
	}
	return opts
}

// loadTicketSources reads a saved order's rows with every label the ticket
// needs resolved in one query.
func (h *Handler) loadTicketSources(ctx context.Context, orderID int64) ([]ticketItemSource, error) {
	dbRows, err := h.DB.Query(ctx, `
		select fi.id, fi.name, fi.portion_multiplier, fi.portion_unit,
			c.id, c.name_he, c.sort_order,
			coalesce(ls.label, fls.name), oi.size_type, oi.quantity, oi.note,
			p.name, v.name, a.name
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
	defer dbRows.Close()

	sources := make([]ticketItemSource, 0)
	for dbRows.Next() {
		var (
			src        ticketItemSource
			itemName   string
			multiplier pgtype.Int4
			unit       pgtype.Text
			literLabel pgtype.Text
			sizeType   pgtype.Text
			note       pgtype.Text
			prepName   pgtype.Text
			varName    pgtype.Text
			addOnName  pgtype.Text
		)
		if err := dbRows.Scan(&src.FoodItemID, &itemName, &multiplier, &unit,
			&src.CategoryID, &src.CategoryName, &src.CategorySortOrder,
			&literLabel, &sizeType, &src.Quantity, &note,
			&prepName, &varName, &addOnName); err != nil {
			return nil, err
		}
		src.Name = resolvedTicketName(itemName, textPtr(addOnName), textPtr(varName), textPtr(prepName))
		src.PortionMultiplier = int4Ptr(multiplier)
		src.PortionUnit = textPtr(unit)
		src.LiterLabel = textPtr(literLabel)
		src.SizeType = textPtr(sizeType)
		src.Note = textPtr(note)
		sources = append(sources, src)
	}
	return sources, dbRows.Err()
}

// resolvedTicketName applies the same add-on, variation, preparation
// precedence the summary uses.
func resolvedTicketName(itemName string, addOn, variation, preparation *string) string {
	switch {
	case addOn != nil && *addOn != "":
		return addOnDisplay(*addOn, itemName)
	case variation != nil && *variation != "":
		return variationDisplay(itemName, *variation)
	case preparation != nil && *preparation != "":
		return preparationDisplay(itemName, *preparation)
	default:
		return itemName
	}
}

func (h *Handler) buildTicketData(ctx context.Context, orderID int64, opts ticketOptions) (*ticketTemplateData, error) {
	detail, err := h.loadOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sources, err := h.loadTicketSources(ctx, orderID)
	if err != nil {
		return nil, err
	}

	data := &ticketTemplateData{
		CustomerName:  detail.Customer.Name,
		CustomerPhone: detail.Customer.Phone,
		EventDate:     detail.EventDate,
		EventTime:     derefString(detail.EventTime),
		Portions:      detail.Portions,
		Notes:         derefString(detail.Notes),
		PrintedAt:     utils.CurrentDateInTimezone(h.Config.Timezone) + " " + utils.CurrentTimeInTimezone(h.Config.Timezone),
		Layout:        composeTicket(sources, opts),
	}
	for _, extra := range detail.ExtraItems {
		data.ExtraItems = append(data.ExtraItems, ticketExtraLine{Name: extra.Name, Quantity: extra.Quantity})
	}
	return data, nil
}

func (h *Handler) OrderTicketHTML(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	data, err := h.buildTicketData(r.Context(), orderID, h.ticketOptionsFromQuery(r))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("ticket build failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build ticket")
		return
	}
	h.writeTicketHTML(w, data)
}

func (h *Handler) OrderTicketPDF(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	data, err := h.buildTicketData(r.Context(), orderID, h.ticketOptionsFromQuery(r))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("ticket build failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build ticket")
		return
	}
	h.writeTicketPDF(w, data, fmt.Sprintf("ticket_%d.pdf", orderID))
}

type ticketPreviewPayload struct {
	Order          createOrderPayload `json:"order"`
	HiddenItemIDs  []int64            `json:"hiddenItemIds"`
	ItemOrder      []int64            `json:"itemOrder"`
	LinesPerColumn int                `json:"linesPerColumn"`
}

func (h *Handler) ticketPreviewData(ctx context.Context, payload ticketPreviewPayload) (*ticketTemplateData, error) {
	rows, _, err := expandSelections(payload.Order.Selections)
	if err != nil {
		return nil, err
	}
	sources, err := h.resolvePreviewSources(ctx, rows)
	if err != nil {
		return nil, err
	}

	opts := ticketOptions{
		LinesPerColumn: h.Config.TicketColumnLines,
		Columns:        h.Config.TicketColumns,
		HiddenItemIDs:  make(map[int64]bool),
		ItemOrder:      payload.ItemOrder,
	}
	if payload.LinesPerColumn > 1 {
		opts.LinesPerColumn = payload.LinesPerColumn
	}
	for _, id := range payload.HiddenItemIDs {
		opts.HiddenItemIDs[id] = true
	}

	portions := int32(0)
	if payload.Order.Portions != nil {
		portions = *payload.Order.Portions
	}
	data := &ticketTemplateData{
		CustomerName:  payload.Order.Customer.Name,
		CustomerPhone: payload.Order.Customer.Phone,
		EventDate:     payload.Order.EventDate,
		EventTime:     derefString(payload.Order.EventTime),
		Portions:      portions,
		Notes:         derefString(payload.Order.Notes),
		PrintedAt:     utils.CurrentDateInTimezone(h.Config.Timezone) + " " + utils.CurrentTimeInTimezone(h.Config.Timezone),
		Layout:        composeTicket(sources, opts),
	}
	for _, extra := range payload.Order.ExtraItems {
		if strings.TrimSpace(extra.Name) == "" || extra.Quantity <= 0 {
			continue
		}
		data.ExtraItems = append(data.ExtraItems, ticketExtraLine{Name: extra.Name, Quantity: extra.Quantity})
	}
	return data, nil
}

// resolvePreviewSources resolves labels for rows that are not saved yet by
// looking up each referenced id.
func (h *Handler) resolvePreviewSources(ctx context.Context, rows []orderItemRow) ([]ticketItemSource, error) {
	ids := make([]int64, 0, len(rows))
	seen := make(map[int64]bool)
	for _, row := range rows {
		if !seen[row.FoodItemID] {
			seen[row.FoodItemID] = true
			ids = append(ids, row.FoodItemID)
		}
	}
	if len(ids) == 0 {
		return []ticketItemSource{}, nil
	}

	type itemInfo struct {
		name              string
		categoryID        int64
		categoryName      string
		categorySortOrder int32
		portionMultiplier *int32
		portionUnit       *string
	}
	items := make(map[int64]itemInfo)

	itemRows, err := h.DB.Query(ctx, `
		select fi.id, fi.name, fi.portion_multiplier, fi.portion_unit, c.id, c.name_he, c.sort_order
		from food_items fi
		join categories c on c.id = fi.category_id
		where fi.id = any($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			id         int64
			info       itemInfo
			multiplier pgtype.Int4
			unit       pgtype.Text
		)
		if err := itemRows.Scan(&id, &info.name, &multiplier, &unit, &info.categoryID, &info.categoryName, &info.categorySortOrder); err != nil {
			return nil, err
		}
		info.portionMultiplier = int4Ptr(multiplier)
		info.portionUnit = textPtr(unit)
		items[id] = info
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	literLabels, err := h.lookupNames(ctx, `select id, label from liter_sizes where id = any($1)`, collectIDs(rows, func(r orderItemRow) *int64 { return r.LiterSizeID }))
	if err != nil {
		return nil, err
	}
	customLiterLabels, err := h.lookupNames(ctx, `select id, name from food_item_liter_sizes where id = any($1)`, collectIDs(rows, func(r orderItemRow) *int64 { return r.CustomLiterSizeID }))
	if err != nil {
		return nil, err
	}
	prepNames, err := h.lookupNames(ctx, `select id, name from food_item_preparations where id = any($1)`, collectIDs(rows, func(r orderItemRow) *int64 { return r.PreparationID }))
	if err != nil {
		return nil, err
	}
	varNames, err := h.lookupNames(ctx, `select id, name from food_item_variations where id = any($1)`, collectIDs(rows, func(r orderItemRow) *int64 { return r.VariationID }))
	if err != nil {
		return nil, err
	}
	addOnNames, err := h.lookupNames(ctx, `select id, name from food_item_add_ons where id = any($1)`, collectIDs(rows, func(r orderItemRow) *int64 { return r.AddOnID }))
	if err != nil {
		return nil, err
	}

	sources := make([]ticketItemSource, 0, len(rows))
	for _, row := range rows {
		info, ok := items[row.FoodItemID]
		if !ok {
			return nil, errInvalid(fmt.Sprintf("unknown food item %d", row.FoodItemID))
		}
		src := ticketItemSource{
			FoodItemID:        row.FoodItemID,
			CategoryID:        info.categoryID,
			CategoryName:      info.categoryName,
			CategorySortOrder: info.categorySortOrder,
			Quantity:          row.Quantity,
			PortionMultiplier: info.portionMultiplier,
			PortionUnit:       info.portionUnit,
			SizeType:          row.SizeType,
			Note:              row.Note,
		}
		if row.LiterSizeID != nil {
			if label, ok := literLabels[*row.LiterSizeID]; ok {
				src.LiterLabel = &label
			}
		} else if row.CustomLiterSizeID != nil {
			if label, ok := customLiterLabels[*row.CustomLiterSizeID]; ok {
				src.LiterLabel = &label
			}
		}
		src.Name = resolvedTicketName(info.name,
			lookupPtr(addOnNames, row.AddOnID),
			lookupPtr(varNames, row.VariationID),
			lookupPtr(prepNames, row.PreparationID))
		sources = append(sources, src)
	}
	return sources, nil
}

func (h *Handler) lookupNames(ctx context.Context, query string, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string)
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := h.DB.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func collectIDs(rows []orderItemRow, pick func(orderItemRow) *int64) []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, row := range rows {
		if id := pick(row); id != nil && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	return ids
}

func lookupPtr(names map[int64]string, id *int64) *string {
	if id == nil {
		return nil
	}
	if name, ok := names[*id]; ok {
		return &name
	}
	return nil
}

func (h *Handler) TicketPreviewHTML(w http.ResponseWriter, r *http.Request) {
	var payload ticketPreviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	data, err := h.ticketPreviewData(r.Context(), payload)
	if err != nil {
		if isInvalidInput(err) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		h.Logger.Error("ticket preview failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build ticket")
		return
	}
	h.writeTicketHTML(w, data)
}

func (h *Handler) TicketPreviewPDF(w http.ResponseWriter, r *http.Request) {
	var payload ticketPreviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	data, err := h.ticketPreviewData(r.Context(), payload)
	if err != nil {
		if isInvalidInput(err) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		h.Logger.Error("ticket preview failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build ticket")
		return
	}
	h.writeTicketPDF(w, data, "ticket_preview.pdf")
}

func (h *Handler) writeTicketHTML(w http.ResponseWriter, data *ticketTemplateData) {
	tmpl, err := template.New("ticket").Parse(ticketHTMLTemplate)
	if err != nil {
		h.Logger.Error("ticket template parse failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render ticket")
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		h.Logger.Error("ticket template render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render ticket")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) writeTicketPDF(w http.ResponseWriter, data *ticketTemplateData, filename string) {
	buf, err := renderTicketPDF(data)
	if err != nil {
		h.Logger.Error("ticket pdf render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render ticket")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func renderTicketPDF(data *ticketTemplateData) (*bytes.Buffer, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("cp1255")

	write := func(size float64, style, text string) {
		pdf.SetFont("Arial", style, size)
		pdf.CellFormat(0, 6, tr(rtlVisual(text)), "", 1, "R", false, 0, "")
	}

	header := fmt.Sprintf("%s · %s", data.CustomerName, data.CustomerPhone)
	write(14, "B", header)
	meta := data.EventDate
	if data.EventTime != "" {
		meta = fmt.Sprintf("%s · %s", meta, data.EventTime)
	}
	if data.Portions > 0 {
		meta = fmt.Sprintf("%s · %d מנות", meta, data.Portions)
	}
	write(10, "", meta)
	pdf.Ln(2)

	columnCount := len(data.Layout.Columns)
	if columnCount == 0 {
		columnCount = 1
	}
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	columnWidth := (pageWidth - left - right) / float64(columnCount)
	topY := pdf.GetY()

	for i, column := range data.Layout.Columns {
		// Columns run right to left.
		x := pageWidth - right - float64(i+1)*columnWidth
		y := topY
		for _, line := range column.Lines {
			pdf.SetXY(x, y)
			switch line.Kind {
			case lineCategory:
				pdf.SetFont("Arial", "B", 11)
			case lineSignature:
				pdf.SetFont("Arial", "BU", 9)
			default:
				pdf.SetFont("Arial", "", 9)
			}
			pdf.CellFormat(columnWidth-2, 5, tr(rtlVisual(line.Text)), "", 0, "R", false, 0, "")
			y += 5
		}
	}

	bottomY := topY + float64(data.Layout.LinesPerColumn)*5 + 4
	pdf.SetY(bottomY)
	if len(data.ExtraItems) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, tr(rtlVisual("תוספות")), "T", 1, "R", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, extra := range data.ExtraItems {
			pdf.CellFormat(0, 5, tr(rtlVisual(fmt.Sprintf("%s × %d", extra.Name, extra.Quantity))), "", 1, "R", false, 0, "")
		}
	}
	if data.Notes != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(rtlVisual(data.Notes)), "", "R", false)
	}
	if data.PrintedAt != "" {
		pdf.SetFont("Arial", "", 7)
		pdf.CellFormat(0, 5, tr(rtlVisual("הודפס "+data.PrintedAt)), "", 1, "R", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// rtlVisual reorders a logical Hebrew string into visual order for a PDF
// writer with no bidi support: the rune order is reversed, then embedded
// latin/digit runs are flipped back so numbers stay readable.
func rtlVisual(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	isLTR := func(r rune) bool {
		return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '.' || r == ','
	}
	for i := 0; i < len(runes); {
		if !isLTR(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isLTR(runes[j]) {
			j++
		}
		for a, b := i, j-1; a < b; a, b = a+1, b-1 {
			runes[a], runes[b] = runes[b], runes[a]
		}
		i = j
	}
	return string(runes)
}
