package handlers

import "testing"

func TestFilterOrdersByQueryNameCaseInsensitive(t *testing.T) {
	orders := []orderListItem{
		{ID: 1, CustomerName: "Dana Levi", CustomerPhone: "0521111111"},
		{ID: 2, CustomerName: "משה כהן", CustomerPhone: "0522222222"},
	}

	got := filterOrdersByQuery(orders, "dana")
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("lowercase query should match mixed-case name: %+v", got)
	}
	got = filterOrdersByQuery(orders, "LEVI")
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("uppercase query should match: %+v", got)
	}
}

func TestFilterOrdersByQueryPhoneMatchesEitherField(t *testing.T) {
	alt := "052-999-8877"
	orders := []orderListItem{
		{ID: 1, CustomerName: "דנה", CustomerPhone: "0521111111", AltPhone: &alt},
		{ID: 2, CustomerName: "משה", CustomerPhone: "0522222222"},
	}

	got := filterOrdersByQuery(orders, "9998877")
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("digits should match the alternate phone: %+v", got)
	}
	got = filterOrdersByQuery(orders, "052-222")
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("formatted query should match by digits: %+v", got)
	}
}
