package ws

import (
	"testing"
	"time"
)

func TestBoardStampChangedSince(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		prev boardStamp
		next boardStamp
		want bool
	}{
		{
			"nothing changed",
			boardStamp{UpdatedAt: base, ActiveCount: 3},
			boardStamp{UpdatedAt: base, ActiveCount: 3},
			false,
		},
		{
			"order edited",
			boardStamp{UpdatedAt: base, ActiveCount: 3},
			boardStamp{UpdatedAt: base.Add(time.Second), ActiveCount: 3},
			true,
		},
		{
			"order completed leaves the board",
			boardStamp{UpdatedAt: base, ActiveCount: 3},
			boardStamp{UpdatedAt: base.Add(time.Second), ActiveCount: 2},
			true,
		},
		{
			"active order deleted, watermark regresses",
			boardStamp{UpdatedAt: base, ActiveCount: 3},
			boardStamp{UpdatedAt: base.Add(-time.Hour), ActiveCount: 2},
			true,
		},
		{
			"first poll against zero stamp",
			boardStamp{},
			boardStamp{UpdatedAt: base, ActiveCount: 1},
			true,
		},
	}
	for _, tt := range tests {
		if got := tt.next.changedSince(tt.prev); got != tt.want {
			t.Errorf("%s: changedSince = %v, want %v", tt.name, got, tt.want)
		}
	}
}
