// Package memory хранит сущности в памяти процесса. Используется в тестах и при STORE_DRIVER=memory.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
)

// Store реализует все интерфейсы хранилищ из пакета repository.
type Store struct {
	mu        sync.Mutex
	projects  map[string]models.Project
	bids      map[string]models.Bid
	contracts map[string]models.Contract
	notices   []models.Notice
}

// New создает пустое хранилище.
func New() *Store {
	return &Store{
		projects:  make(map[string]models.Project),
		bids:      make(map[string]models.Bid),
		contracts: make(map[string]models.Contract),
	}
}

// Repositories возвращает хранилище в виде набора репозиториев.
func (s *Store) Repositories() repository.Store {
	return repository.Store{Projects: s, Bids: s, Contracts: s, Notices: s}
}

// clone копирует сущность целиком, чтобы вызывающий код не менял сохраненное состояние.
func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memory: clone: %v", err))
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("memory: clone: %v", err))
	}
	return out
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// GetProject возвращает проект по ID.
func (s *Store) GetProject(_ context.Context, projectID string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, models.ErrNotFound)
	}
	out := clone(project)
	return &out, nil
}

// FindProjects возвращает проекты по фильтру в порядке создания.
func (s *Store) FindProjects(_ context.Context, filter repository.ProjectFilter) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.projects {
		if len(filter.IDs) > 0 && !contains(filter.IDs, p.ID) {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, p.Status) {
			continue
		}
		if len(filter.AdminStatuses) > 0 && !contains(filter.AdminStatuses, p.AdminStatus) {
			continue
		}
		if len(filter.Rounds) > 0 && !contains(filter.Rounds, p.Rounds.Current) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && p.CreatedAt.After(filter.CreatedBefore) {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && p.UpdatedAt.After(filter.UpdatedBefore) {
			continue
		}
		if filter.Archived != nil && p.IsArchived != *filter.Archived {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateProject сохраняет новый проект.
func (s *Store) CreateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[project.ID]; exists {
		return fmt.Errorf("project %s already exists: %w", project.ID, models.ErrPreconditionNotMet)
	}
	s.projects[project.ID] = clone(*project)
	return nil
}

// UpdateProject сохраняет проект целиком.
func (s *Store) UpdateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[project.ID]; !exists {
		return fmt.Errorf("project %s: %w", project.ID, models.ErrNotFound)
	}
	s.projects[project.ID] = clone(*project)
	return nil
}

// GetBid возвращает предложение по ID.
func (s *Store) GetBid(_ context.Context, bidID string) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bid, ok := s.bids[bidID]
	if !ok {
		return nil, fmt.Errorf("bid %s: %w", bidID, models.ErrNotFound)
	}
	return &bid, nil
}

func matchBid(b models.Bid, filter repository.BidFilter) bool {
	if filter.ProjectID != "" && b.ProjectID != filter.ProjectID {
		return false
	}
	if filter.SellerID != "" && b.SellerID != filter.SellerID {
		return false
	}
	if len(filter.IDs) > 0 && !contains(filter.IDs, b.ID) {
		return false
	}
	if contains(filter.ExcludeIDs, b.ID) {
		return false
	}
	if len(filter.Rounds) > 0 && !contains(filter.Rounds, b.Round) {
		return false
	}
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, b.Status) {
		return false
	}
	if len(filter.SelectionStatuses) > 0 && !contains(filter.SelectionStatuses, b.SelectionStatus) {
		return false
	}
	return true
}

// FindBids возвращает предложения по фильтру в порядке подачи.
func (s *Store) FindBids(_ context.Context, filter repository.BidFilter) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bid
	for _, b := range s.bids {
		if matchBid(b, filter) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateBid сохраняет новое предложение. У продавца может быть только одно неотмененное предложение по проекту.
func (s *Store) CreateBid(_ context.Context, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bids[bid.ID]; exists {
		return fmt.Errorf("bid %s already exists: %w", bid.ID, models.ErrPreconditionNotMet)
	}
	for _, existing := range s.bids {
		if existing.ProjectID == bid.ProjectID && existing.SellerID == bid.SellerID && existing.Status != models.CancelledBid {
			return fmt.Errorf("seller %s already has an active bid on project %s: %w", bid.SellerID, bid.ProjectID, models.ErrPreconditionNotMet)
		}
	}
	s.bids[bid.ID] = *bid
	return nil
}

// UpdateBid сохраняет предложение целиком. Тур предложения не уменьшается.
func (s *Store) UpdateBid(_ context.Context, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.bids[bid.ID]
	if !ok {
		return fmt.Errorf("bid %s: %w", bid.ID, models.ErrNotFound)
	}
	updated := *bid
	if updated.Round < existing.Round {
		updated.Round = existing.Round
	}
	s.bids[bid.ID] = updated
	return nil
}

// UpdateBids меняет все предложения, подходящие под фильтр.
func (s *Store) UpdateBids(_ context.Context, filter repository.BidFilter, update models.BidUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for id, b := range s.bids {
		if !matchBid(b, filter) {
			continue
		}
		update.Apply(&b)
		s.bids[id] = b
		affected++
	}
	return affected, nil
}

// GetContract возвращает договор по ID.
func (s *Store) GetContract(_ context.Context, contractID string) (*models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contract, ok := s.contracts[contractID]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", contractID, models.ErrNotFound)
	}
	out := clone(contract)
	return &out, nil
}

// GetContractByBid возвращает договор по выигравшему предложению.
func (s *Store) GetContractByBid(_ context.Context, bidID string) (*models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contracts {
		if c.BidID == bidID {
			out := clone(c)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("contract for bid %s: %w", bidID, models.ErrNotFound)
}

// FindContracts возвращает договоры по фильтру.
func (s *Store) FindContracts(_ context.Context, filter repository.ContractFilter) ([]models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Contract
	for _, c := range s.contracts {
		if filter.ProjectID != "" && c.ProjectID != filter.ProjectID {
			continue
		}
		if filter.BidID != "" && c.BidID != filter.BidID {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, c.Status) {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateContract сохраняет новый договор. Для одного предложения допускается один договор.
func (s *Store) CreateContract(_ context.Context, contract *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contracts {
		if c.BidID == contract.BidID {
			return fmt.Errorf("contract for bid %s already exists: %w", contract.BidID, models.ErrPreconditionNotMet)
		}
	}
	s.contracts[contract.ID] = clone(*contract)
	return nil
}

// UpdateContract сохраняет договор целиком.
func (s *Store) UpdateContract(_ context.Context, contract *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[contract.ID]; !ok {
		return fmt.Errorf("contract %s: %w", contract.ID, models.ErrNotFound)
	}
	s.contracts[contract.ID] = clone(*contract)
	return nil
}

// CreateNotice сохраняет уведомление.
func (s *Store) CreateNotice(_ context.Context, notice *models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, *notice)
	return nil
}

// ListNotices возвращает последние уведомления по фильтру.
func (s *Store) ListNotices(_ context.Context, filter repository.NoticeFilter) ([]models.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []models.Notice
	for i := len(s.notices) - 1; i >= 0 && len(out) < limit; i-- {
		n := s.notices[i]
		if filter.TargetUserID != "" && n.TargetUserID != filter.TargetUserID {
			continue
		}
		if filter.Audience != "" && n.Audience != filter.Audience {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
