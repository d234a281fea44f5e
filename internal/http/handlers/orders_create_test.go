package handlers

import (
	"testing"

	"github.com/shopspring/decimal"
)

func int64Ref(v int64) *int64 { return &v }

func TestExpandSelectionFansOutLiterQuantities(t *testing.T) {
	sel := orderSelectionPayload{
		FoodItemID: 7,
		LiterQuantities: []literQuantityPayload{
			{LiterSizeID: 1, Quantity: 2},
			{LiterSizeID: 2, Quantity: 0},
			{LiterSizeID: 3, Quantity: 1},
		},
	}

	rows, err := expandSelection(sel)
	if err != nil {
		t.Fatalf("expandSelection: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].LiterSizeID == nil || *rows[0].LiterSizeID != 1 || rows[0].Quantity != 2 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].LiterSizeID == nil || *rows[1].LiterSizeID != 3 || rows[1].Quantity != 1 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestExpandSelectionCustomLiterSizes(t *testing.T) {
	sel := orderSelectionPayload{
		FoodItemID: 7,
		LiterQuantities: []literQuantityPayload{
			{LiterSizeID: 1, Quantity: 2},
			{CustomLiterSizeID: 4, Quantity: 1},
		},
	}

	rows, err := expandSelection(sel)
	if err != nil {
		t.Fatalf("expandSelection: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].LiterSizeID == nil || rows[0].CustomLiterSizeID != nil {
		t.Errorf("first row should carry the global size only: %+v", rows[0])
	}
	if rows[1].CustomLiterSizeID == nil || *rows[1].CustomLiterSizeID != 4 || rows[1].LiterSizeID != nil {
		t.Errorf("second row should carry the custom size only: %+v", rows[1])
	}
}

func TestExpandSelectionRejectsAmbiguousLiterRef(t *testing.T) {
	sel := orderSelectionPayload{
		FoodItemID:      7,
		LiterQuantities: []literQuantityPayload{{LiterSizeID: 1, CustomLiterSizeID: 4, Quantity: 1}},
	}
	if _, err := expandSelection(sel); err == nil {
		t.Fatal("expected error when both liter refs are set")
	}

	sel = orderSelectionPayload{
		FoodItemID:      7,
		LiterQuantities: []literQuantityPayload{{Quantity: 1}},
	}
	if _, err := expandSelection(sel); err == nil {
		t.Fatal("expected error when neither liter ref is set")
	}
}

func TestExpandSelectionSizeQuantities(t *testing.T) {
	sel := orderSelectionPayload{
		FoodItemID: 5,
		SizeQuantities: []sizeQuantityPayload{
			{SizeType: "Big", Quantity: 3},
			{SizeType: "small", Quantity: 1},
		},
	}

	rows, err := expandSelection(sel)
	if err != nil {
		t.Fatalf("expandSelection: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].SizeType == nil || *rows[0].SizeType != "big" {
		t.Errorf("size type not normalized: %+v", rows[0])
	}
}

func TestExpandSelectionRejectsMixedDimensions(t *testing.T) {
	sel := orderSelectionPayload{
		FoodItemID:      5,
		LiterQuantities: []literQuantityPayload{{LiterSizeID: 1, Quantity: 1}},
		SizeQuantities:  []sizeQuantityPayload{{SizeType: "big", Quantity: 1}},
	}
	if _, err := expandSelection(sel); err == nil {
		t.Fatal("expected error for mixed liter and size quantities")
	}

	sel = orderSelectionPayload{
		FoodItemID:      5,
		Quantity:        2,
		LiterQuantities: []literQuantityPayload{{LiterSizeID: 1, Quantity: 1}},
	}
	if _, err := expandSelection(sel); err == nil {
		t.Fatal("expected error for mixed plain and liter quantities")
	}
}

func TestExpandSelectionRejectsUnknownSizeType(t *testing.T) {
	sel := orderSelectionPayload{
		FoodItemID:     5,
		SizeQuantities: []sizeQuantityPayload{{SizeType: "medium", Quantity: 1}},
	}
	if _, err := expandSelection(sel); err == nil {
		t.Fatal("expected error for unknown size type")
	}
}

func TestExpandSelectionsDropsEmptySelections(t *testing.T) {
	selections := []orderSelectionPayload{
		{FoodItemID: 1, Quantity: 2},
		{FoodItemID: 2},
		{FoodItemID: 3, LiterQuantities: []literQuantityPayload{{LiterSizeID: 1, Quantity: 0}}},
	}

	rows, counts, err := expandSelections(selections)
	if err != nil {
		t.Fatalf("expandSelections: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if counts[0] != 1 || counts[1] != 0 || counts[2] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestExpandSelectionCarriesOptionRefs(t *testing.T) {
	sel := orderSelectionPayload{
		FoodItemID:    9,
		PreparationID: int64Ref(4),
		Quantity:      1,
	}
	rows, err := expandSelection(sel)
	if err != nil {
		t.Fatalf("expandSelection: %v", err)
	}
	if len(rows) != 1 || rows[0].PreparationID == nil || *rows[0].PreparationID != 4 {
		t.Fatalf("preparation ref not carried: %+v", rows)
	}
}

func TestCheckCategoryLimits(t *testing.T) {
	categoryOf := map[int64]int64{10: 1, 11: 1, 12: 2}
	limits := map[int64]int32{1: 2}
	names := map[int64]string{1: "סלטים", 2: "עיקריות"}

	selections := []orderSelectionPayload{
		{FoodItemID: 10}, {FoodItemID: 11}, {FoodItemID: 12},
	}
	counts := []int{1, 1, 1}
	if err := checkCategoryLimits(selections, counts, categoryOf, limits, names); err != nil {
		t.Fatalf("limits within bounds should pass: %v", err)
	}

	// A third selection in the capped category exceeds the limit.
	selections = append(selections, orderSelectionPayload{FoodItemID: 10})
	counts = append(counts, 1)
	if err := checkCategoryLimits(selections, counts, categoryOf, limits, names); err == nil {
		t.Fatal("expected limit violation")
	}

	// Dropped (zero-row) selections do not count against the limit.
	counts[3] = 0
	if err := checkCategoryLimits(selections, counts, categoryOf, limits, names); err != nil {
		t.Fatalf("dropped selection should not count: %v", err)
	}
}

func TestCheckCategoryLimitsUnknownItem(t *testing.T) {
	selections := []orderSelectionPayload{{FoodItemID: 99}}
	if err := checkCategoryLimits(selections, []int{1}, map[int64]int64{}, nil, nil); err == nil {
		t.Fatal("expected error for unknown food item")
	}
}

func TestComputeOrderTotal(t *testing.T) {
	price := decimal.RequireFromString("45.50")
	delivery := decimal.RequireFromString("120")
	extras := []extraItemPayload{
		{Name: "שתייה", Price: "12", Quantity: 3},
		{Name: "ריק", Price: "10", Quantity: 0},
	}

	total, err := computeOrderTotal(30, price, delivery, extras)
	if err != nil {
		t.Fatalf("computeOrderTotal: %v", err)
	}
	// 30*45.50 + 120 + 3*12 = 1521
	if want := decimal.RequireFromString("1521"); !total.Equal(want) {
		t.Errorf("total = %s, want %s", total, want)
	}
}

func TestComputeOrderTotalBadExtraPrice(t *testing.T) {
	extras := []extraItemPayload{{Name: "x", Price: "abc", Quantity: 1}}
	if _, err := computeOrderTotal(0, decimal.Zero, decimal.Zero, extras); err == nil {
		t.Fatal("expected error for invalid extra price")
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"", "0", false},
		{"  45.5 ", "45.5", false},
		{"0", "0", false},
		{"-3", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := parseMoney(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMoney(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMoney(%q): %v", tt.input, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("parseMoney(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestValidOrderStatus(t *testing.T) {
	for _, s := range []string{"draft", "active", "completed", "cancelled"} {
		if !validOrderStatus(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "ACTIVE", "done"} {
		if validOrderStatus(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
