package repository

import (
	"context"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/models"
)

// ProjectFilter - условия выборки проектов. Пустые поля не участвуют в отборе.
type ProjectFilter struct {
	IDs           []string
	Statuses      []models.ProjectStatus
	AdminStatuses []models.AdminStatus
	Rounds        []models.Round
	CreatedBefore time.Time
	UpdatedBefore time.Time
	Archived      *bool
}

// BidFilter - условия выборки предложений.
type BidFilter struct {
	ProjectID         string
	SellerID          string
	IDs               []string
	ExcludeIDs        []string
	Rounds            []int
	Statuses          []models.BidStatus
	SelectionStatuses []models.SelectionStatus
}

// ContractFilter - условия выборки договоров.
type ContractFilter struct {
	ProjectID string
	BidID     string
	Statuses  []models.ContractStatus
}

// NoticeFilter - условия выборки уведомлений.
type NoticeFilter struct {
	TargetUserID string
	Audience     models.Audience
	Limit        int
}

// ProjectRepository - интерфейс для работы с проектами.
type ProjectRepository interface {
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	FindProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, project *models.Project) error
}

// BidRepository - интерфейс для работы с предложениями.
type BidRepository interface {
	GetBid(ctx context.Context, bidID string) (*models.Bid, error)
	FindBids(ctx context.Context, filter BidFilter) ([]models.Bid, error)
	CreateBid(ctx context.Context, bid *models.Bid) error
	UpdateBid(ctx context.Context, bid *models.Bid) error
	UpdateBids(ctx context.Context, filter BidFilter, update models.BidUpdate) (int64, error)
}

// ContractRepository - интерфейс для работы с договорами.
type ContractRepository interface {
	GetContract(ctx context.Context, contractID string) (*models.Contract, error)
	GetContractByBid(ctx context.Context, bidID string) (*models.Contract, error)
	FindContracts(ctx context.Context, filter ContractFilter) ([]models.Contract, error)
	CreateContract(ctx context.Context, contract *models.Contract) error
	UpdateContract(ctx context.Context, contract *models.Contract) error
}

// NoticeRepository - интерфейс для хранения уведомлений.
type NoticeRepository interface {
	CreateNotice(ctx context.Context, notice *models.Notice) error
	ListNotices(ctx context.Context, filter NoticeFilter) ([]models.Notice, error)
}

// Store объединяет все хранилища сущностей.
type Store struct {
	Projects  ProjectRepository
	Bids      BidRepository
	Contracts ContractRepository
	Notices   NoticeRepository
}
