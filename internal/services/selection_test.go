package services_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/services"
)

func bidsWithAmounts(amounts ...float64) []models.Bid {
	bids := make([]models.Bid, 0, len(amounts))
	for i, amount := range amounts {
		bids = append(bids, models.Bid{
			ID:        fmt.Sprintf("bid-%02d", i),
			Amount:    amount,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return bids
}

func TestSelectTopKByAmountDesc(t *testing.T) {
	bids := bidsWithAmounts(100, 1200, 300, 900, 300)

	top := services.SelectTopKByAmountDesc(bids, 3)
	got := services.BidIDs(top)
	want := []string{"bid-01", "bid-03", "bid-02"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("top 3 = %v, want %v", got, want)
	}
	if bids[0].ID != "bid-00" || bids[1].ID != "bid-01" {
		t.Fatalf("input slice was reordered: %v", services.BidIDs(bids))
	}
}

func TestSelectTopKByAmountDescFewerThanK(t *testing.T) {
	top := services.SelectTopKByAmountDesc(bidsWithAmounts(5, 7), 10)
	if len(top) != 2 || top[0].Amount != 7 {
		t.Fatalf("unexpected selection: %+v", top)
	}
	if got := services.SelectTopKByAmountDesc(nil, 10); got != nil {
		t.Fatalf("expected nil for no bids, got %v", got)
	}
}

func TestSelectWinnerByAmountAsc(t *testing.T) {
	tests := []struct {
		name    string
		amounts []float64
		want    string
		ok      bool
	}{
		{name: "lowest wins", amounts: []float64{1200, 900, 600}, want: "bid-02", ok: true},
		{name: "tie goes to earliest", amounts: []float64{700, 500, 500}, want: "bid-01", ok: true},
		{name: "single bid", amounts: []float64{42}, want: "bid-00", ok: true},
		{name: "no bids", amounts: nil, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, ok := services.SelectWinnerByAmountAsc(bidsWithAmounts(tt.amounts...))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && winner.ID != tt.want {
				t.Fatalf("winner = %s, want %s", winner.ID, tt.want)
			}
		})
	}
}
