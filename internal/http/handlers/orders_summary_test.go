package handlers

import (
	"testing"
)

func strRef(v string) *string { return &v }

func baseRow(categoryID int64, categoryName string, foodItemID int64, foodItemName string, qty int32) summaryOrderItemRow {
	return summaryOrderItemRow{
		CategoryID:   categoryID,
		CategoryName: categoryName,
		FoodItemID:   foodItemID,
		FoodItemName: foodItemName,
		Quantity:     qty,
	}
}

func TestAggregateSummarySumsWithoutDoubleCounting(t *testing.T) {
	rows := []summaryOrderItemRow{
		baseRow(1, "סלטים", 10, "חומוס", 2),
		baseRow(1, "סלטים", 10, "חומוס", 3),
		baseRow(1, "סלטים", 11, "טחינה", 1),
	}

	result := aggregateSummary(rows)
	if len(result) != 1 {
		t.Fatalf("expected 1 category, got %d", len(result))
	}
	if len(result[0].Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result[0].Items))
	}
	for _, item := range result[0].Items {
		switch item.FoodItemID {
		case 10:
			if item.TotalQuantity != 5 {
				t.Errorf("food item 10 total = %d, want 5", item.TotalQuantity)
			}
		case 11:
			if item.TotalQuantity != 1 {
				t.Errorf("food item 11 total = %d, want 1", item.TotalQuantity)
			}
		}
	}
}

func TestAggregateSummaryAddOnNeverMergesWithParent(t *testing.T) {
	addOnID := int64(99)
	plain := baseRow(1, "סלטים", 10, "חומוס", 2)
	withAddOn := baseRow(1, "סלטים", 10, "חומוס", 1)
	withAddOn.AddOnID = &addOnID
	withAddOn.AddOnName = "טחינה"

	result := aggregateSummary([]summaryOrderItemRow{plain, withAddOn})
	if len(result) != 1 || len(result[0].Items) != 2 {
		t.Fatalf("expected 2 distinct groups, got %+v", result)
	}
	if result[0].Items[0].DisplayName != "חומוס" {
		t.Errorf("base group first, got %q", result[0].Items[0].DisplayName)
	}
	if want := "טחינה (תוספת לחומוס)"; result[0].Items[1].DisplayName != want {
		t.Errorf("add-on display name = %q, want %q", result[0].Items[1].DisplayName, want)
	}
}

func TestAggregateSummaryOmitsEmptyCategories(t *testing.T) {
	rows := []summaryOrderItemRow{
		baseRow(2, "עיקריות", 20, "שניצל", 4),
	}
	result := aggregateSummary(rows)
	if len(result) != 1 || result[0].CategoryID != 2 {
		t.Fatalf("only category 2 should appear, got %+v", result)
	}

	if got := aggregateSummary(nil); len(got) != 0 {
		t.Fatalf("empty input should give empty result, got %+v", got)
	}
}

func TestAggregateSummarySortTiersAndHebrewOrder(t *testing.T) {
	variationID := int64(50)
	addOnID := int64(60)

	hummus := baseRow(1, "סלטים", 10, "חומוס", 1)
	hummusGreen := baseRow(1, "סלטים", 10, "חומוס", 1)
	hummusGreen.VariationID = &variationID
	hummusGreen.VariationName = "ירוק"
	tahiniAddOn := baseRow(1, "סלטים", 10, "חומוס", 1)
	tahiniAddOn.AddOnID = &addOnID
	tahiniAddOn.AddOnName = "טחינה"
	watermelon := baseRow(1, "סלטים", 12, "אבטיח", 1)

	result := aggregateSummary([]summaryOrderItemRow{hummus, hummusGreen, tahiniAddOn, watermelon})
	if len(result) != 1 {
		t.Fatalf("expected 1 category, got %d", len(result))
	}
	want := []string{"אבטיח", "חומוס", "חומוס - ירוק", "טחינה (תוספת לחומוס)"}
	if len(result[0].Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(result[0].Items))
	}
	for i, item := range result[0].Items {
		if item.DisplayName != want[i] {
			t.Errorf("position %d: got %q, want %q", i, item.DisplayName, want[i])
		}
	}
}

func TestAggregateSummaryPreparationDisplayAndTier(t *testing.T) {
	prepID := int64(70)
	roasted := baseRow(1, "ירקות", 30, "חציל", 2)
	roasted.PreparationID = &prepID
	roasted.PreparationName = "קלוי"

	result := aggregateSummary([]summaryOrderItemRow{roasted})
	if want := "חציל (קלוי)"; result[0].Items[0].DisplayName != want {
		t.Errorf("display name = %q, want %q", result[0].Items[0].DisplayName, want)
	}
}

func TestAggregateSummaryLiterBucketsKeptSeparate(t *testing.T) {
	small, big := int64(1), int64(2)

	rowA := baseRow(1, "סלטים", 10, "חומוס", 2)
	rowA.LiterSizeID = &small
	rowA.LiterSizeLabel = "1.5 ליטר"
	rowB := baseRow(1, "סלטים", 10, "חומוס", 1)
	rowB.LiterSizeID = &big
	rowB.LiterSizeLabel = "2.5 ליטר"
	rowC := baseRow(1, "סלטים", 10, "חומוס", 3)
	rowC.LiterSizeID = &small
	rowC.LiterSizeLabel = "1.5 ליטר"

	result := aggregateSummary([]summaryOrderItemRow{rowA, rowB, rowC})
	items := result[0].Items
	if len(items) != 1 {
		t.Fatalf("expected a single group, got %d", len(items))
	}
	lq := items[0].LiterQuantities
	if len(lq) != 2 {
		t.Fatalf("expected 2 liter buckets, got %+v", lq)
	}
	if lq[0].LiterSizeID != small || lq[0].Quantity != 5 {
		t.Errorf("small bucket = %+v, want qty 5", lq[0])
	}
	if lq[1].LiterSizeID != big || lq[1].Quantity != 1 {
		t.Errorf("big bucket = %+v, want qty 1", lq[1])
	}
	if items[0].TotalQuantity != 0 || len(items[0].SizeQuantities) != 0 {
		t.Errorf("other buckets should stay empty: %+v", items[0])
	}
}

func TestAggregateSummaryCustomLiterSizesGetOwnBuckets(t *testing.T) {
	// A custom size sharing the numeric id of a global size must not merge
	// with it, and custom buckets list after the global ones.
	globalID, customID := int64(1), int64(1)

	rowA := baseRow(1, "סלטים", 10, "חומוס", 2)
	rowA.LiterSizeID = &globalID
	rowA.LiterSizeLabel = "1.5 ליטר"
	rowB := baseRow(1, "סלטים", 10, "חומוס", 4)
	rowB.CustomLiterSizeID = &customID
	rowB.LiterSizeLabel = "מגש קטן"

	result := aggregateSummary([]summaryOrderItemRow{rowA, rowB})
	items := result[0].Items
	if len(items) != 1 {
		t.Fatalf("expected a single group, got %d", len(items))
	}
	lq := items[0].LiterQuantities
	if len(lq) != 2 {
		t.Fatalf("expected 2 liter buckets, got %+v", lq)
	}
	if lq[0].LiterSizeID != globalID || lq[0].CustomLiterSizeID != 0 || lq[0].Quantity != 2 {
		t.Errorf("global bucket first: %+v", lq[0])
	}
	if lq[1].CustomLiterSizeID != customID || lq[1].LiterSizeID != 0 || lq[1].Quantity != 4 {
		t.Errorf("custom bucket second: %+v", lq[1])
	}
	if lq[1].Label != "מגש קטן" {
		t.Errorf("custom bucket label = %q", lq[1].Label)
	}
}

func TestAggregateSummarySizeBucketsBigFirst(t *testing.T) {
	smallType, bigType := "small", "big"

	rowSmall := baseRow(1, "מאפים", 40, "בורקס", 4)
	rowSmall.SizeType = &smallType
	rowBig := baseRow(1, "מאפים", 40, "בורקס", 2)
	rowBig.SizeType = &bigType

	result := aggregateSummary([]summaryOrderItemRow{rowSmall, rowBig})
	sq := result[0].Items[0].SizeQuantities
	if len(sq) != 2 || sq[0].SizeType != "big" || sq[0].Quantity != 2 || sq[1].SizeType != "small" || sq[1].Quantity != 4 {
		t.Fatalf("unexpected size buckets: %+v", sq)
	}
}

func TestAggregateSummaryMixedBucketsInOneGroup(t *testing.T) {
	literID := int64(1)

	literRow := baseRow(1, "סלטים", 10, "חומוס", 2)
	literRow.LiterSizeID = &literID
	literRow.LiterSizeLabel = "1.5 ליטר"
	plainRow := baseRow(1, "סלטים", 10, "חומוס", 3)

	result := aggregateSummary([]summaryOrderItemRow{literRow, plainRow})
	item := result[0].Items[0]
	if len(item.LiterQuantities) != 1 || item.LiterQuantities[0].Quantity != 2 {
		t.Errorf("liter bucket = %+v", item.LiterQuantities)
	}
	if item.TotalQuantity != 3 {
		t.Errorf("scalar bucket = %d, want 3", item.TotalQuantity)
	}
}

func TestAggregateSummaryCategoryOrder(t *testing.T) {
	first := baseRow(5, "ראשונות", 1, "מרק", 1)
	first.CategorySortOrder = 1
	second := baseRow(3, "עיקריות", 2, "שניצל", 1)
	second.CategorySortOrder = 2

	result := aggregateSummary([]summaryOrderItemRow{second, first})
	if len(result) != 2 || result[0].CategoryID != 5 || result[1].CategoryID != 3 {
		t.Fatalf("categories not in sort order: %+v", result)
	}
}

func TestFilterSummaryOrdersByName(t *testing.T) {
	orders := []summaryOrderHeader{
		{ID: 1, CustomerName: "דנה כהן", CustomerPhone: "0501234567"},
		{ID: 2, CustomerName: "Yossi Levi", CustomerPhone: "0529876543"},
	}

	ids := filterSummaryOrders(orders, "yossi", "")
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("case-insensitive name match failed: %v", ids)
	}
	ids = filterSummaryOrders(orders, "דנה", "")
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("hebrew name match failed: %v", ids)
	}
}

func TestFilterSummaryOrdersPhoneMatchesEitherField(t *testing.T) {
	orders := []summaryOrderHeader{
		{ID: 1, CustomerName: "דנה", CustomerPhone: "0501234567"},
		{ID: 2, CustomerName: "רון", CustomerPhone: "0520000000", AltPhone: strRef("050-123-9999")},
		{ID: 3, CustomerName: "גיל", CustomerPhone: "0537777777"},
	}

	ids := filterSummaryOrders(orders, "", "1239")
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("alt phone should match: %v", ids)
	}
	ids = filterSummaryOrders(orders, "", "050")
	if len(ids) != 2 {
		t.Fatalf("both phone fields should be checked: %v", ids)
	}
}

func TestFilterSummaryOrdersNoFilters(t *testing.T) {
	orders := []summaryOrderHeader{{ID: 1}, {ID: 2}}
	if ids := filterSummaryOrders(orders, "", ""); len(ids) != 2 {
		t.Fatalf("no filters should keep everything: %v", ids)
	}
}
