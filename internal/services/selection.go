package services

import (
	"sort"

	"github.com/senyabanana/tender-lifecycle/internal/models"
)

// submittedEarlier упорядочивает предложения по времени подачи, затем по ID.
func submittedEarlier(a, b models.Bid) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SelectTopKByAmountDesc возвращает k предложений с наибольшей суммой.
// При равных суммах выше предложение, поданное раньше. Входной срез не меняется.
func SelectTopKByAmountDesc(bids []models.Bid, k int) []models.Bid {
	if k <= 0 || len(bids) == 0 {
		return nil
	}
	ranked := make([]models.Bid, len(bids))
	copy(ranked, bids)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		return submittedEarlier(ranked[i], ranked[j])
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// SelectWinnerByAmountAsc возвращает предложение с наименьшей суммой.
// При равных суммах побеждает предложение, поданное раньше.
func SelectWinnerByAmountAsc(bids []models.Bid) (models.Bid, bool) {
	if len(bids) == 0 {
		return models.Bid{}, false
	}
	winner := bids[0]
	for _, bid := range bids[1:] {
		if bid.Amount < winner.Amount || (bid.Amount == winner.Amount && submittedEarlier(bid, winner)) {
			winner = bid
		}
	}
	return winner, true
}

// BidIDs возвращает идентификаторы предложений в исходном порядке.
func BidIDs(bids []models.Bid) []string {
	ids := make([]string, 0, len(bids))
	for _, bid := range bids {
		ids = append(ids, bid.ID)
	}
	return ids
}
