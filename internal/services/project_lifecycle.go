package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/docgen"
	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/notify"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
)

// ProjectLifecycle ведет проект по этапам: проверка, активация, туры, завершение и архивирование.
type ProjectLifecycle struct {
	projects  repository.ProjectRepository
	bids      repository.BidRepository
	contracts repository.ContractRepository
	workflow  *ContractWorkflow
	docs      docgen.Generator
	settings  Settings
}

// NewProjectLifecycle создает новый экземпляр ProjectLifecycle.
func NewProjectLifecycle(store repository.Store, workflow *ContractWorkflow, docs docgen.Generator, settings Settings) *ProjectLifecycle {
	return &ProjectLifecycle{
		projects:  store.Projects,
		bids:      store.Bids,
		contracts: store.Contracts,
		workflow:  workflow,
		docs:      docs,
		settings:  settings,
	}
}

// Settings возвращает текущие настройки окон.
func (s *ProjectLifecycle) Settings() Settings {
	return s.settings
}

func projectData(p *models.Project) map[string]any {
	return map[string]any{"project": p.Title}
}

func boolPtr(v bool) *bool {
	return &v
}

// AutoSubmit отправляет на проверку черновик, созданный раньше окна ожидания.
// Черновик с незаполненными полями остается без изменений.
func (s *ProjectLifecycle) AutoSubmit(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	if p.Status != models.DraftedProject || now.Sub(p.CreatedAt) < s.settings.AutoSubmitGrace {
		return Transition{}, nil
	}
	if missing := p.MissingFields(); len(missing) > 0 {
		return Transition{}, fmt.Errorf("project %s is missing %s: %w", p.ID, strings.Join(missing, ", "), models.ErrValidation)
	}

	p.Status = models.PendingProject
	p.AdminStatus = models.AdminPending
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}
	data := projectData(p)
	return changed(OutcomeSubmitted,
		notify.To(notify.ProjectSubmittedOwner, p.OwnerID, data),
		notify.Broadcast(notify.ProjectSubmittedAdmin, data),
	), nil
}

// Activate открывает первый тур для одобренного проекта.
func (s *ProjectLifecycle) Activate(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	if p.Status != models.PendingProject || p.AdminStatus != models.AdminApproved {
		return Transition{}, nil
	}
	if p.Rounds.Current != models.RoundNone {
		return Transition{}, fmt.Errorf("project %s already reached round %s: %w", p.ID, p.Rounds.Current, models.ErrInvalidTransition)
	}
	if p.BidSettings.BidEndDate == nil {
		return Transition{}, fmt.Errorf("project %s has no bid end date: %w", p.ID, models.ErrValidation)
	}

	end := *p.BidSettings.BidEndDate
	p.Status = models.ActiveProject
	p.BidSettings.IsActive = true
	p.Rounds = models.BiddingRounds{
		Current: models.RoundOne,
		Round1:  models.ActiveRound{Start: now, End: end},
		Round2:  models.PendingRound{},
	}
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}
	data := projectData(p)
	data["deadline"] = formatTime(end)
	return changed(OutcomeActivated,
		notify.To(notify.ProjectActivatedOwner, p.OwnerID, data),
		notify.Broadcast(notify.ProjectActivatedSellers, data),
	), nil
}

// CloseRoundOne закрывает первый тур и отбирает предложения с наибольшей суммой.
func (s *ProjectLifecycle) CloseRoundOne(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	active, ok := p.Rounds.Round1.(models.ActiveRound)
	if p.Status != models.ActiveProject || p.Rounds.Current != models.RoundOne || !ok || active.End.After(now) {
		return Transition{}, nil
	}

	// Уже отобранные на прошлой попытке предложения участвуют снова, чтобы повторный запуск дал тот же результат.
	bids, err := s.bids.FindBids(ctx, repository.BidFilter{
		ProjectID:         p.ID,
		Rounds:            []int{1},
		Statuses:          []models.BidStatus{models.SubmittedBid, models.SelectedBid},
		SelectionStatuses: []models.SelectionStatus{models.SelectionSubmitted, models.SelectedRound1},
	})
	if err != nil {
		return Transition{}, err
	}
	shortlist := SelectTopKByAmountDesc(bids, s.settings.ShortlistSize)
	data := projectData(p)

	if len(shortlist) == 0 {
		p.Status = models.FailedProject
		p.BidSettings.IsActive = false
		p.UpdatedAt = now
		if err := s.projects.UpdateProject(ctx, p); err != nil {
			return Transition{}, err
		}
		return changed(OutcomeRound1NoBids, notify.To(notify.Round1NoBidsOwner, p.OwnerID, data)), nil
	}

	ids := BidIDs(shortlist)
	if _, err := s.bids.UpdateBids(ctx,
		repository.BidFilter{ProjectID: p.ID, IDs: ids},
		models.BidUpdate{
			Status:          models.SelectedBid,
			SelectionStatus: models.SelectedRound1,
			IsActiveInRound: boolPtr(true),
			UpdatedAt:       now,
		}); err != nil {
		return Transition{}, err
	}
	if _, err := s.bids.UpdateBids(ctx,
		repository.BidFilter{
			ProjectID:         p.ID,
			ExcludeIDs:        ids,
			Rounds:            []int{1},
			Statuses:          []models.BidStatus{models.SubmittedBid},
			SelectionStatuses: []models.SelectionStatus{models.SelectionSubmitted},
		},
		models.BidUpdate{
			Status:          models.LostBid,
			SelectionStatus: models.SelectionLost,
			IsActiveInRound: boolPtr(false),
			UpdatedAt:       now,
		}); err != nil {
		return Transition{}, err
	}

	deadline := now.Add(s.settings.SelectionWindow)
	p.Rounds.Round1 = models.CompletedRound{Start: active.Start, End: active.End, CompletedAt: now, Selected: ids}
	p.Rounds.Round2 = models.PendingRound{}
	p.Rounds.Current = models.RoundSelection
	p.SelectionDeadline = &deadline
	p.BidSettings.IsActive = false
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}

	data["count"] = len(shortlist)
	data["finalists"] = s.settings.FinalistCount
	data["deadline"] = formatTime(deadline)
	notices := []notify.Message{notify.To(notify.Round1ClosedOwner, p.OwnerID, data)}
	for _, bid := range shortlist {
		notices = append(notices, notify.To(notify.Round1ShortlistedSeller, bid.SellerID, map[string]any{
			"project": p.Title,
			"amount":  formatAmount(bid.Amount),
		}))
	}
	return changed(OutcomeRound1Completed, notices...), nil
}

// ResolveSelection открывает второй тур, когда заказчик выбрал ровно нужное число финалистов.
// Любое другое количество оставляет проект в фазе выбора.
func (s *ProjectLifecycle) ResolveSelection(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	if p.Status != models.ActiveProject || p.Rounds.Current != models.RoundSelection {
		return Transition{}, nil
	}
	nominated := dedupe(p.Rounds.Nominated())
	if len(nominated) != s.settings.FinalistCount {
		return Transition{}, nil
	}

	finalists, err := s.bids.FindBids(ctx, repository.BidFilter{ProjectID: p.ID, IDs: nominated})
	if err != nil {
		return Transition{}, err
	}
	if len(finalists) != len(nominated) {
		return Transition{}, fmt.Errorf("project %s: nominated bids not found: %w", p.ID, models.ErrPreconditionNotMet)
	}
	for _, bid := range finalists {
		if bid.Status == models.CancelledBid ||
			(bid.SelectionStatus != models.SelectedRound1 && bid.SelectionStatus != models.SelectedRound2) {
			return Transition{}, fmt.Errorf("bid %s is not on the shortlist: %w", bid.ID, models.ErrPreconditionNotMet)
		}
	}

	if _, err := s.bids.UpdateBids(ctx,
		repository.BidFilter{ProjectID: p.ID, IDs: nominated},
		models.BidUpdate{
			Status:          models.SelectedBid,
			SelectionStatus: models.SelectedRound2,
			Round:           2,
			IsActiveInRound: boolPtr(true),
			UpdatedAt:       now,
		}); err != nil {
		return Transition{}, err
	}
	if _, err := s.bids.UpdateBids(ctx,
		repository.BidFilter{
			ProjectID:         p.ID,
			ExcludeIDs:        nominated,
			SelectionStatuses: []models.SelectionStatus{models.SelectedRound1},
		},
		models.BidUpdate{
			Status:          models.LostBid,
			SelectionStatus: models.SelectionLost,
			IsActiveInRound: boolPtr(false),
			UpdatedAt:       now,
		}); err != nil {
		return Transition{}, err
	}

	end := now.Add(s.settings.Round2Window)
	p.Rounds.Round2 = models.ActiveRound{Start: now, End: end, Participants: nominated}
	p.Rounds.Current = models.RoundTwo
	p.BidSettings.IsActive = true
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}

	data := projectData(p)
	data["deadline"] = formatTime(end)
	notices := []notify.Message{notify.To(notify.Round2OpenedOwner, p.OwnerID, data)}
	for _, bid := range finalists {
		notices = append(notices, notify.To(notify.Round2OpenedSeller, bid.SellerID, data))
	}
	return changed(OutcomeRound2Started, notices...), nil
}

// ExpireSelection переводит проект в failed, если заказчик не выбрал финалистов до срока.
func (s *ProjectLifecycle) ExpireSelection(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	if p.Status != models.ActiveProject || p.Rounds.Current != models.RoundSelection ||
		p.SelectionDeadline == nil || p.SelectionDeadline.After(now) {
		return Transition{}, nil
	}
	if _, err := s.bids.UpdateBids(ctx,
		repository.BidFilter{ProjectID: p.ID, SelectionStatuses: []models.SelectionStatus{models.SelectedRound1}},
		models.BidUpdate{
			Status:          models.LostBid,
			SelectionStatus: models.SelectionLost,
			IsActiveInRound: boolPtr(false),
			UpdatedAt:       now,
		}); err != nil {
		return Transition{}, err
	}

	p.Status = models.FailedProject
	p.BidSettings.IsActive = false
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}
	return changed(OutcomeSelectionExpired, notify.To(notify.SelectionExpiredOwner, p.OwnerID, projectData(p))), nil
}

// CloseRoundTwo закрывает второй тур. Побеждает предложение с наименьшей суммой,
// в отличие от первого тура, где в шорт-лист проходят наибольшие суммы.
func (s *ProjectLifecycle) CloseRoundTwo(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	active, ok := p.Rounds.Round2.(models.ActiveRound)
	if p.Status != models.ActiveProject || p.Rounds.Current != models.RoundTwo || !ok || active.End.After(now) {
		return Transition{}, nil
	}

	bids, err := s.bids.FindBids(ctx, repository.BidFilter{
		ProjectID:         p.ID,
		Rounds:            []int{2},
		Statuses:          []models.BidStatus{models.SelectedBid, models.WonBid},
		SelectionStatuses: []models.SelectionStatus{models.SelectedRound2, models.SelectionWon},
	})
	if err != nil {
		return Transition{}, err
	}
	data := projectData(p)

	winner, ok := SelectWinnerByAmountAsc(bids)
	if !ok {
		p.Status = models.FailedProject
		p.BidSettings.IsActive = false
		p.UpdatedAt = now
		if err := s.projects.UpdateProject(ctx, p); err != nil {
			return Transition{}, err
		}
		return changed(OutcomeRound2NoBids, notify.To(notify.Round2NoBidsOwner, p.OwnerID, data)), nil
	}

	// Шаблоны договора готовятся до любых записей: при сбое генерации переход повторится целиком.
	contract, err := s.workflow.prepare(ctx, p, winner, now)
	if err != nil {
		return Transition{}, err
	}
	finalists := active.Participants
	if len(finalists) == 0 {
		finalists = BidIDs(bids)
	}

	winner.Status = models.WonBid
	winner.SelectionStatus = models.SelectionWon
	winner.IsActiveInRound = false
	winner.UpdatedAt = now
	if err := s.bids.UpdateBid(ctx, &winner); err != nil {
		return Transition{}, err
	}
	if _, err := s.bids.UpdateBids(ctx,
		repository.BidFilter{
			ProjectID:         p.ID,
			ExcludeIDs:        []string{winner.ID},
			Rounds:            []int{2},
			SelectionStatuses: []models.SelectionStatus{models.SelectedRound2},
		},
		models.BidUpdate{
			Status:          models.LostBid,
			SelectionStatus: models.SelectionLost,
			IsActiveInRound: boolPtr(false),
			UpdatedAt:       now,
		}); err != nil {
		return Transition{}, err
	}

	// Договор создается до сохранения проекта, чтобы повтор нашел его и не создал второй.
	var created Transition
	if contract != nil {
		if created, err = s.workflow.create(ctx, contract); err != nil {
			return Transition{}, err
		}
	}

	p.Rounds.Round2 = models.CompletedRound{Start: active.Start, End: active.End, CompletedAt: now, Selected: finalists}
	p.Rounds.Award = &models.Award{WinningBid: winner.ID, CompletedAt: now}
	p.Rounds.Current = models.RoundAwarded
	p.SelectedBid = winner.ID
	p.Status = models.AwardedProject
	p.BiddingCompleted = true
	p.BidSettings.IsActive = false
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}

	data["amount"] = formatAmount(winner.Amount)
	t := changed(OutcomeRound2Completed,
		notify.To(notify.Round2AwardedOwner, p.OwnerID, data),
		notify.To(notify.Round2WonSeller, winner.SellerID, data),
	)
	return t.merge(created), nil
}

// Complete завершает проект после утверждения договора и окончания сроков работ.
func (s *ProjectLifecycle) Complete(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	if p.Status != models.AwardedProject || p.SelectedBid == "" ||
		p.Timeline.EndDate == nil || p.Timeline.EndDate.After(now) {
		return Transition{}, nil
	}
	contract, err := s.contracts.GetContractByBid(ctx, p.SelectedBid)
	if errors.Is(err, models.ErrNotFound) {
		return Transition{}, nil
	}
	if err != nil {
		return Transition{}, err
	}
	if contract.Status != models.CompletedContract {
		return Transition{}, nil
	}
	bid, err := s.bids.GetBid(ctx, p.SelectedBid)
	if err != nil {
		return Transition{}, err
	}

	certificate, err := s.docs.Generate(ctx, docgen.Request{
		Kind:       docgen.ProjectCertificate,
		Bid:        *bid,
		Project:    *p,
		CustomerID: contract.CustomerID,
		SellerID:   contract.SellerID,
	})
	if err != nil {
		return Transition{}, fmt.Errorf("generate %s: %w: %w", docgen.ProjectCertificate, models.ErrDependencyFailure, err)
	}

	if bid.Status != models.CompletedBid {
		bid.Status = models.CompletedBid
		bid.UpdatedAt = now
		if err := s.bids.UpdateBid(ctx, bid); err != nil {
			return Transition{}, err
		}
	}
	p.CompletionCertificate = certificate
	p.Status = models.CompletedProject
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}
	data := projectData(p)
	return changed(OutcomeProjectCompleted,
		notify.To(notify.ProjectCompletedOwner, p.OwnerID, data),
		notify.To(notify.ProjectCompletedSeller, bid.SellerID, data),
	), nil
}

// Archive помечает завершенный проект архивным по истечении срока хранения. Данные не удаляются.
func (s *ProjectLifecycle) Archive(ctx context.Context, p *models.Project, now time.Time) (Transition, error) {
	if !p.Status.Terminal() || p.IsArchived || now.Sub(p.UpdatedAt) < s.settings.ArchiveRetention {
		return Transition{}, nil
	}
	p.IsArchived = true
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return Transition{}, err
	}
	return changed(OutcomeProjectArchived), nil
}

// Review применяет решение администратора по проекту на проверке.
func (s *ProjectLifecycle) Review(ctx context.Context, projectID string, review models.ProjectReview, now time.Time) (*models.Project, Transition, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, Transition{}, err
	}
	if p.Status != models.PendingProject {
		return nil, Transition{}, fmt.Errorf("project %s is %s, not pending: %w", p.ID, p.Status, models.ErrInvalidTransition)
	}

	var t Transition
	data := projectData(p)
	switch review.Decision {
	case models.AdminApproved:
		p.AdminStatus = models.AdminApproved
		t = changed(OutcomeProjectApproved, notify.To(notify.ProjectApprovedOwner, p.OwnerID, data))
	case models.AdminRejected:
		if strings.TrimSpace(review.Reason) == "" {
			return nil, Transition{}, fmt.Errorf("rejection reason is required: %w", models.ErrValidation)
		}
		p.Status = models.RejectedProject
		p.AdminStatus = models.AdminRejected
		p.AdminNote = review.Reason
		data["reason"] = review.Reason
		t = changed(OutcomeProjectRejected, notify.To(notify.ProjectRejectedOwner, p.OwnerID, data))
	default:
		return nil, Transition{}, fmt.Errorf("unknown decision %q: %w", review.Decision, models.ErrValidation)
	}
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, Transition{}, err
	}
	return p, t, nil
}

// Cancel отменяет проект вместе с его предложениями и открытым договором.
func (s *ProjectLifecycle) Cancel(ctx context.Context, projectID string, now time.Time) (*models.Project, Transition, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, Transition{}, err
	}
	if p.Status.Terminal() {
		return nil, Transition{}, fmt.Errorf("project %s is already %s: %w", p.ID, p.Status, models.ErrInvalidTransition)
	}

	if _, err := s.bids.UpdateBids(ctx,
		repository.BidFilter{
			ProjectID: p.ID,
			Statuses:  []models.BidStatus{models.SubmittedBid, models.SelectedBid, models.WonBid},
		},
		models.BidUpdate{Status: models.CancelledBid, IsActiveInRound: boolPtr(false), UpdatedAt: now}); err != nil {
		return nil, Transition{}, err
	}
	contracts, err := s.workflow.CancelForProject(ctx, p.ID, now)
	if err != nil {
		return nil, Transition{}, err
	}

	p.Status = models.CancelledProject
	p.BidSettings.IsActive = false
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, Transition{}, err
	}
	t := changed(OutcomeProjectCancelled, notify.To(notify.ProjectCancelledOwner, p.OwnerID, projectData(p)))
	return p, t.merge(contracts), nil
}

// NominateFinalists сохраняет выбор заказчика для второго тура.
// Количество не проверяется: второй тур откроется только при точном числе финалистов.
func (s *ProjectLifecycle) NominateFinalists(ctx context.Context, projectID string, bidIDs []string, now time.Time) (*models.Project, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ActiveProject || p.Rounds.Current != models.RoundSelection {
		return nil, fmt.Errorf("project %s is not in finalist selection: %w", p.ID, models.ErrInvalidTransition)
	}
	ids := dedupe(bidIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one bid id is required: %w", models.ErrValidation)
	}

	bids, err := s.bids.FindBids(ctx, repository.BidFilter{ProjectID: p.ID, IDs: ids})
	if err != nil {
		return nil, err
	}
	if len(bids) != len(ids) {
		return nil, fmt.Errorf("some bids do not belong to project %s: %w", p.ID, models.ErrValidation)
	}
	for _, bid := range bids {
		if bid.SelectionStatus != models.SelectedRound1 {
			return nil, fmt.Errorf("bid %s is not on the round 1 shortlist: %w", bid.ID, models.ErrValidation)
		}
	}

	p.Rounds.Round2 = models.PendingRound{Nominated: ids}
	p.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ExpireDeadlines переносит все сроки проекта в прошлое. Только для тестовых окружений.
func (s *ProjectLifecycle) ExpireDeadlines(ctx context.Context, projectID string, now time.Time) (*models.Project, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	past := now.Add(-time.Second)

	switch p.Status {
	case models.DraftedProject:
		p.CreatedAt = now.Add(-s.settings.AutoSubmitGrace - time.Second)
	case models.AwardedProject:
		p.Timeline.EndDate = &past
	}
	if p.Rounds.Current == models.RoundNone && p.BidSettings.BidEndDate != nil {
		p.BidSettings.BidEndDate = &past
	}
	if round, ok := p.Rounds.Round1.(models.ActiveRound); ok {
		round.End = past
		p.Rounds.Round1 = round
	}
	if round, ok := p.Rounds.Round2.(models.ActiveRound); ok {
		round.End = past
		p.Rounds.Round2 = round
	}
	if p.SelectionDeadline != nil {
		p.SelectionDeadline = &past
	}
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	if p.SelectedBid != "" {
		if err := s.workflow.ForceCorrectionDeadline(ctx, p.SelectedBid, past); err != nil {
			return nil, err
		}
	}
	return p, nil
}
