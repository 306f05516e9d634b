package models

import "time"

type (
	ProjectStatus string // Статус проекта
	AdminStatus   string // Решение администратора по проекту
)

const (
	DraftedProject   ProjectStatus = "drafted"   // Черновик
	PendingProject   ProjectStatus = "pending"   // Ожидает проверки
	ActiveProject    ProjectStatus = "active"    // Идут торги
	FailedProject    ProjectStatus = "failed"    // Торги не состоялись
	AwardedProject   ProjectStatus = "awarded"   // Победитель выбран
	CompletedProject ProjectStatus = "completed" // Работы завершены
	CancelledProject ProjectStatus = "cancelled" // Отменен администратором
	RejectedProject  ProjectStatus = "rejected"  // Отклонен при проверке

	AdminPending  AdminStatus = "pending"
	AdminApproved AdminStatus = "approved"
	AdminRejected AdminStatus = "rejected"
)

// Terminal сообщает, что проект больше не меняет состояние торгов.
func (s ProjectStatus) Terminal() bool {
	switch s {
	case CompletedProject, FailedProject, CancelledProject, RejectedProject:
		return true
	default:
		return false
	}
}

// Location - место выполнения работ.
type Location struct {
	City    string `json:"city"`
	Address string `json:"address"`
	Region  string `json:"region,omitempty"`
}

// Timeline - плановые сроки выполнения работ.
type Timeline struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// BidSettings - параметры приема предложений.
type BidSettings struct {
	StartingBid float64    `json:"startingBid"`
	BidEndDate  *time.Time `json:"bidEndDate,omitempty"`
	IsActive    bool       `json:"isActive"`
}

// Project представляет модель проекта.
type Project struct {
	ID                    string        `json:"id"`
	OwnerID               string        `json:"ownerId"`
	Title                 string        `json:"title"`
	Description           string        `json:"description"`
	Category              string        `json:"category"`
	Location              Location      `json:"location"`
	Budget                float64       `json:"budget"`
	Timeline              Timeline      `json:"timeline"`
	Status                ProjectStatus `json:"status"`
	AdminStatus           AdminStatus   `json:"adminStatus"`
	AdminNote             string        `json:"adminNote,omitempty"`
	Rounds                BiddingRounds `json:"biddingRounds"`
	SelectionDeadline     *time.Time    `json:"selectionDeadline,omitempty"`
	BidSettings           BidSettings   `json:"bidSettings"`
	SelectedBid           string        `json:"selectedBid,omitempty"`
	BiddingCompleted      bool          `json:"biddingCompleted"`
	CompletionCertificate *StoredFile   `json:"completionCertificate,omitempty"`
	IsArchived            bool          `json:"isArchived"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// MissingFields возвращает список обязательных полей, которые не заполнены.
func (p *Project) MissingFields() []string {
	var missing []string
	if p.OwnerID == "" {
		missing = append(missing, "ownerId")
	}
	if p.Title == "" {
		missing = append(missing, "title")
	}
	if p.Description == "" {
		missing = append(missing, "description")
	}
	if p.Category == "" {
		missing = append(missing, "category")
	}
	if p.Location.City == "" {
		missing = append(missing, "location.city")
	}
	if p.Location.Address == "" {
		missing = append(missing, "location.address")
	}
	if p.Budget <= 0 {
		missing = append(missing, "budget")
	}
	if p.Timeline.StartDate == nil {
		missing = append(missing, "timeline.startDate")
	}
	if p.Timeline.EndDate == nil {
		missing = append(missing, "timeline.endDate")
	}
	if p.BidSettings.StartingBid <= 0 {
		missing = append(missing, "bidSettings.startingBid")
	}
	if p.BidSettings.BidEndDate == nil {
		missing = append(missing, "bidSettings.bidEndDate")
	}
	return missing
}

// ProjectReview представляет решение администратора по проекту.
type ProjectReview struct {
	Decision AdminStatus `json:"decision"`
	Reason   string      `json:"reason"`
}
