package handlers

import (
	"strings"
	"testing"
)

func int32Ref(v int32) *int32 { return &v }

func literSource(foodItemID int64, name, label string, qty int32) ticketItemSource {
	return ticketItemSource{
		FoodItemID:   foodItemID,
		Name:         name,
		CategoryID:   1,
		CategoryName: "סלטים",
		LiterLabel:   &label,
		Quantity:     qty,
	}
}

func TestQuantityLabel(t *testing.T) {
	literLabel := "1.5 ליטר"
	big, small := "big", "small"

	tests := []struct {
		name string
		src  ticketItemSource
		want string
	}{
		{"liter", ticketItemSource{LiterLabel: &literLabel, Quantity: 2}, "1.5 ליטר × 2"},
		{"big", ticketItemSource{SizeType: &big, Quantity: 3}, "גדול × 3"},
		{"small", ticketItemSource{SizeType: &small, Quantity: 1}, "קטן × 1"},
		{"plain", ticketItemSource{Quantity: 4}, "× 4"},
		{"multiplier", ticketItemSource{Quantity: 4, PortionMultiplier: int32Ref(3), PortionUnit: strRef("קציצות")}, "× 4 (×3 קציצות)"},
		{"multiplier of one ignored", ticketItemSource{Quantity: 2, PortionMultiplier: int32Ref(1)}, "× 2"},
	}
	for _, tt := range tests {
		if got := quantityLabel(tt.src); got != tt.want {
			t.Errorf("%s: quantityLabel = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLiterSignatureDeterministic(t *testing.T) {
	a := literSignature(map[string]int64{"2.5 ליטר": 1, "1.5 ליטר": 2})
	b := literSignature(map[string]int64{"1.5 ליטר": 2, "2.5 ליטר": 1})
	if a != b {
		t.Fatalf("same multiset must give same signature: %q vs %q", a, b)
	}
	if !strings.Contains(a, "1.5 ליטר × 2") || !strings.Contains(a, "2.5 ליטר × 1") {
		t.Errorf("signature missing parts: %q", a)
	}
}

func TestFoldCollapsesCommonLiterSignatures(t *testing.T) {
	sources := []ticketItemSource{
		literSource(10, "חומוס", "1.5 ליטר", 2),
		literSource(10, "חומוס", "2.5 ליטר", 1),
		literSource(11, "טחינה", "2.5 ליטר", 1),
		literSource(11, "טחינה", "1.5 ליטר", 2),
		literSource(12, "חציל", "1.5 ליטר", 1),
	}

	lines := buildTicketLines(foldTicketEntries(sources, ticketOptions{}))

	signatureLines := 0
	for _, line := range lines {
		if line.Kind == lineSignature {
			signatureLines++
		}
	}
	// One shared heading for the two items with the same liter multiset; the
	// single odd item stays inline.
	if signatureLines != 1 {
		t.Fatalf("expected 1 signature heading, got %d (%+v)", signatureLines, lines)
	}

	var sawHummus, sawTahini bool
	for _, line := range lines {
		if line.Kind == lineItem && line.Text == "חומוס" {
			sawHummus = true
		}
		if line.Kind == lineItem && line.Text == "טחינה" {
			sawTahini = true
		}
	}
	if !sawHummus || !sawTahini {
		t.Errorf("grouped items should print name-only lines: %+v", lines)
	}
}

func TestFoldHiddenAndReordered(t *testing.T) {
	sources := []ticketItemSource{
		{FoodItemID: 10, Name: "חומוס", CategoryID: 1, CategoryName: "סלטים", Quantity: 1},
		{FoodItemID: 11, Name: "טחינה", CategoryID: 1, CategoryName: "סלטים", Quantity: 1},
		{FoodItemID: 12, Name: "מטבוחה", CategoryID: 1, CategoryName: "סלטים", Quantity: 1},
	}

	opts := ticketOptions{
		HiddenItemIDs: map[int64]bool{11: true},
		ItemOrder:     []int64{12, 10},
	}
	categories := foldTicketEntries(sources, opts)
	if len(categories) != 1 || len(categories[0].Entries) != 2 {
		t.Fatalf("hidden item should be dropped: %+v", categories)
	}
	if categories[0].Entries[0].Name != "מטבוחה" || categories[0].Entries[1].Name != "חומוס" {
		t.Errorf("explicit order not honored: %+v", categories[0].Entries)
	}
}

func TestFoldKeepsSameNamedItemsSeparate(t *testing.T) {
	// Two different catalog items can resolve to the same display name.
	sources := []ticketItemSource{
		{FoodItemID: 10, Name: "סלט חצילים", CategoryID: 1, CategoryName: "סלטים", Quantity: 2},
		{FoodItemID: 11, Name: "סלט חצילים", CategoryID: 1, CategoryName: "סלטים", Quantity: 3},
	}

	categories := foldTicketEntries(sources, ticketOptions{})
	if len(categories) != 1 || len(categories[0].Entries) != 2 {
		t.Fatalf("distinct food items must not fold together: %+v", categories)
	}

	// Hiding one of them must leave the other on the ticket.
	categories = foldTicketEntries(sources, ticketOptions{HiddenItemIDs: map[int64]bool{10: true}})
	if len(categories) != 1 || len(categories[0].Entries) != 1 {
		t.Fatalf("hiding one item hid both: %+v", categories)
	}
	if categories[0].Entries[0].FoodItemID != 11 {
		t.Errorf("wrong item survived the hide: %+v", categories[0].Entries[0])
	}
}

func TestPackColumnsCapacity(t *testing.T) {
	lines := make([]ticketLine, 0)
	lines = append(lines, ticketLine{Kind: lineCategory, Text: "סלטים"})
	for i := 0; i < 9; i++ {
		lines = append(lines, ticketLine{Kind: lineItem, Text: "פריט"})
	}

	columns := packColumns(lines, 4)
	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	for i, column := range columns {
		if len(column.Lines) > 4 {
			t.Errorf("column %d exceeds capacity: %d lines", i, len(column.Lines))
		}
	}
}

func TestPackColumnsNoOrphanCategoryHeader(t *testing.T) {
	lines := []ticketLine{
		{Kind: lineItem, Text: "a"},
		{Kind: lineItem, Text: "b"},
		{Kind: lineItem, Text: "c"},
		{Kind: lineCategory, Text: "עיקריות"},
		{Kind: lineItem, Text: "d"},
	}

	columns := packColumns(lines, 4)
	if len(columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(columns))
	}
	// The header must not sit on the first column's last line; it moves to
	// the top of the second column with its first item.
	if got := columns[1].Lines[0]; got.Kind != lineCategory {
		t.Errorf("header should open the next column, got %+v", got)
	}
	if len(columns[0].Lines) != 3 {
		t.Errorf("first column should hold only the 3 items, got %d", len(columns[0].Lines))
	}
}

func TestPackColumnsHeaderAtVeryEndStays(t *testing.T) {
	lines := []ticketLine{
		{Kind: lineItem, Text: "a"},
		{Kind: lineCategory, Text: "ריקה"},
	}
	columns := packColumns(lines, 2)
	if len(columns) != 1 {
		t.Fatalf("trailing header with nothing after it should not force a new column: %+v", columns)
	}
}

func TestComposeTicketGrowsCapacityToFitPage(t *testing.T) {
	sources := make([]ticketItemSource, 0, 12)
	for i := 0; i < 12; i++ {
		sources = append(sources, ticketItemSource{
			FoodItemID:   int64(i + 1),
			Name:         "פריט",
			CategoryID:   1,
			CategoryName: "סלטים",
			Quantity:     1,
		})
	}

	layout := composeTicket(sources, ticketOptions{LinesPerColumn: 3, Columns: 2})
	if len(layout.Columns) > 2 {
		t.Fatalf("layout should fit 2 columns, got %d", len(layout.Columns))
	}
	if layout.LinesPerColumn <= 3 {
		t.Errorf("capacity should have grown, got %d", layout.LinesPerColumn)
	}
}

func TestRtlVisualKeepsNumbersReadable(t *testing.T) {
	got := rtlVisual("אב 1.5")
	if !strings.Contains(got, "1.5") {
		t.Errorf("digits must stay in order, got %q", got)
	}
}

func TestResolvedTicketNamePrecedence(t *testing.T) {
	addOn, variation, prep := "טחינה", "ירוק", "קלוי"
	if got := resolvedTicketName("חומוס", &addOn, &variation, &prep); got != "טחינה (תוספת לחומוס)" {
		t.Errorf("add-on should win: %q", got)
	}
	if got := resolvedTicketName("חומוס", nil, &variation, &prep); got != "חומוס - ירוק" {
		t.Errorf("variation should win over preparation: %q", got)
	}
	if got := resolvedTicketName("חומוס", nil, nil, &prep); got != "חומוס (קלוי)" {
		t.Errorf("preparation display: %q", got)
	}
	if got := resolvedTicketName("חומוס", nil, nil, nil); got != "חומוס" {
		t.Errorf("plain name: %q", got)
	}
}
