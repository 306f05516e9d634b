package models

import "time"

type (
	BidStatus       string // Статус предложения
	SelectionStatus string // Статус отбора предложения
)

const (
	SubmittedBid BidStatus = "submitted" // Предложение подано
	SelectedBid  BidStatus = "selected"  // Предложение прошло отбор
	WonBid       BidStatus = "won"       // Предложение победило
	LostBid      BidStatus = "lost"      // Предложение проиграло
	CancelledBid BidStatus = "cancelled" // Предложение отменено
	CompletedBid BidStatus = "completed" // Работы по предложению завершены

	SelectionSubmitted SelectionStatus = "submitted"
	SelectedRound1     SelectionStatus = "selected-round1"
	SelectedRound2     SelectionStatus = "selected-round2"
	SelectionWon       SelectionStatus = "won"
	SelectionLost      SelectionStatus = "lost"
)

// Bid представляет модель предложения.
type Bid struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"projectId"`
	SellerID        string          `json:"sellerId"`
	CustomerID      string          `json:"customerId"`
	Amount          float64         `json:"amount"`
	Proposal        string          `json:"proposal,omitempty"`
	Round           int             `json:"round"`
	SelectionStatus SelectionStatus `json:"selectionStatus"`
	Status          BidStatus       `json:"status"`
	IsActiveInRound bool            `json:"isActiveInRound"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// BidUpdate описывает массовое изменение предложений. Пустые поля не меняются.
type BidUpdate struct {
	Status          BidStatus
	SelectionStatus SelectionStatus
	Round           int
	IsActiveInRound *bool
	UpdatedAt       time.Time
}

// Apply применяет изменение к предложению.
func (u BidUpdate) Apply(b *Bid) {
	if u.Status != "" {
		b.Status = u.Status
	}
	if u.SelectionStatus != "" {
		b.SelectionStatus = u.SelectionStatus
	}
	if u.Round > b.Round {
		b.Round = u.Round
	}
	if u.IsActiveInRound != nil {
		b.IsActiveInRound = *u.IsActiveInRound
	}
	if !u.UpdatedAt.IsZero() {
		b.UpdatedAt = u.UpdatedAt
	}
}

// FinalistsRequest представляет выбор финалистов заказчиком.
type FinalistsRequest struct {
	BidIDs []string `json:"bidIds"`
}
