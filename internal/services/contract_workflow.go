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

	"github.com/google/uuid"
)

// ContractWorkflow ведет договор от подписания сторонами до утверждения администратором.
type ContractWorkflow struct {
	contracts repository.ContractRepository
	bids      repository.BidRepository
	projects  repository.ProjectRepository
	docs      docgen.Generator
	settings  Settings
}

// NewContractWorkflow создает новый экземпляр ContractWorkflow.
func NewContractWorkflow(store repository.Store, docs docgen.Generator, settings Settings) *ContractWorkflow {
	return &ContractWorkflow{
		contracts: store.Contracts,
		bids:      store.Bids,
		projects:  store.Projects,
		docs:      docs,
		settings:  settings,
	}
}

func contractData(c *models.Contract) map[string]any {
	return map[string]any{"project": c.Terms.ProjectTitle}
}

func (s *ContractWorkflow) generate(ctx context.Context, kind docgen.Kind, req docgen.Request) (*models.StoredFile, error) {
	req.Kind = kind
	file, err := s.docs.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w: %w", kind, models.ErrDependencyFailure, err)
	}
	return file, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// snapshotTerms копирует условия проекта и предложения, чтобы договор не зависел от их дальнейших правок.
func snapshotTerms(p *models.Project, bid models.Bid, now time.Time) models.ContractTerms {
	return models.ContractTerms{
		ProjectTitle:       p.Title,
		ProjectDescription: p.Description,
		Category:           p.Category,
		Location:           p.Location,
		Timeline: models.Timeline{
			StartDate: copyTime(p.Timeline.StartDate),
			EndDate:   copyTime(p.Timeline.EndDate),
		},
		Amount:     bid.Amount,
		Proposal:   bid.Proposal,
		CapturedAt: now,
	}
}

// Initialize создает договор по выигравшему предложению. Если договор уже есть, ничего не делает.
func (s *ContractWorkflow) Initialize(ctx context.Context, p *models.Project, winner models.Bid, now time.Time) (Transition, error) {
	contract, err := s.prepare(ctx, p, winner, now)
	if err != nil || contract == nil {
		return Transition{}, err
	}
	return s.create(ctx, contract)
}

// prepare готовит договор и шаблоны для подписи, ничего не сохраняя.
// Если договор по предложению уже есть, возвращает nil.
func (s *ContractWorkflow) prepare(ctx context.Context, p *models.Project, winner models.Bid, now time.Time) (*models.Contract, error) {
	_, err := s.contracts.GetContractByBid(ctx, winner.ID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	customerID := winner.CustomerID
	if customerID == "" {
		customerID = p.OwnerID
	}
	req := docgen.Request{Bid: winner, Project: *p, CustomerID: customerID, SellerID: winner.SellerID}
	customerTemplate, err := s.generate(ctx, docgen.CustomerTemplate, req)
	if err != nil {
		return nil, err
	}
	sellerTemplate, err := s.generate(ctx, docgen.SellerTemplate, req)
	if err != nil {
		return nil, err
	}

	return &models.Contract{
		ID:               uuid.New().String(),
		ProjectID:        p.ID,
		BidID:            winner.ID,
		CustomerID:       customerID,
		SellerID:         winner.SellerID,
		Status:           models.PendingCustomerContract,
		CustomerTemplate: customerTemplate,
		SellerTemplate:   sellerTemplate,
		CustomerSigned:   models.SignedUpload{Party: models.PartyCustomer},
		SellerSigned:     models.SignedUpload{Party: models.PartySeller},
		Terms:            snapshotTerms(p, winner, now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *ContractWorkflow) create(ctx context.Context, contract *models.Contract) (Transition, error) {
	if err := s.contracts.CreateContract(ctx, contract); err != nil {
		if errors.Is(err, models.ErrPreconditionNotMet) {
			return Transition{}, nil
		}
		return Transition{}, err
	}
	data := contractData(contract)
	return changed(OutcomeContractCreated,
		notify.To(notify.ContractCreatedSeller, contract.SellerID, data),
		notify.To(notify.ContractCreatedCustomer, contract.CustomerID, data),
		notify.Broadcast(notify.ContractCreatedAdmin, data),
	), nil
}

// Advance продвигает договор по загруженным документам: заказчик, затем исполнитель,
// затем закрытие замечания после повторной загрузки.
func (s *ContractWorkflow) Advance(ctx context.Context, c *models.Contract, now time.Time) (Transition, error) {
	var t Transition
	data := contractData(c)

	switch c.Status {
	case models.PendingCustomerContract:
		if !c.CustomerSigned.Present() {
			return Transition{}, nil
		}
		c.Status = models.PendingSellerContract
		t = changed(OutcomePendingSeller, notify.To(notify.ContractCustomerSigned, c.SellerID, data))
		if c.SellerSigned.Present() {
			c.Status = models.PendingAdminContract
			t = t.merge(changed(OutcomePendingAdmin, notify.Broadcast(notify.ContractReadyForReview, data)))
		}
	case models.PendingSellerContract:
		if !c.CustomerSigned.Present() {
			return Transition{}, fmt.Errorf("contract %s awaits the seller without a customer upload: %w", c.ID, models.ErrValidation)
		}
		if !c.SellerSigned.Present() {
			return Transition{}, nil
		}
		c.Status = models.PendingAdminContract
		t = changed(OutcomePendingAdmin, notify.Broadcast(notify.ContractReadyForReview, data))
	case models.CorrectingContract:
		rejection := c.CurrentRejection
		if rejection == nil {
			return Transition{}, fmt.Errorf("contract %s is correcting without a rejection: %w", c.ID, models.ErrValidation)
		}
		// После срока договор отклоняется, даже если документы успели загрузить.
		if !rejection.Deadline.After(now) {
			return Transition{}, nil
		}
		// Загрузки требуемых сторон очищаются при возврате, поэтому наличие обеих означает повторную загрузку.
		if !c.CustomerSigned.Present() || !c.SellerSigned.Present() {
			return Transition{}, nil
		}
		for i := range c.RejectionHistory {
			if c.RejectionHistory[i].ID == rejection.ID {
				c.RejectionHistory[i].Resolved = true
				c.RejectionHistory[i].ResolvedAt = &now
			}
		}
		c.CurrentRejection = nil
		c.Status = models.PendingAdminContract
		t = changed(OutcomeCorrectionResolved, notify.Broadcast(notify.ContractCorrectionDone, data))
	default:
		return Transition{}, nil
	}

	c.UpdatedAt = now
	if err := s.contracts.UpdateContract(ctx, c); err != nil {
		return Transition{}, err
	}
	return t, nil
}

// RecordUpload сохраняет подписанный стороной экземпляр договора.
func (s *ContractWorkflow) RecordUpload(ctx context.Context, contractID string, party models.Party, file models.StoredFile, now time.Time) (*models.Contract, error) {
	if party != models.PartyCustomer && party != models.PartySeller {
		return nil, fmt.Errorf("party must be customer or seller, got %q: %w", party, models.ErrValidation)
	}
	if file.ID == "" || file.URL == "" {
		return nil, fmt.Errorf("file id and url are required: %w", models.ErrValidation)
	}
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case models.PendingCustomerContract:
		if party != models.PartyCustomer {
			return nil, fmt.Errorf("contract %s awaits the customer signature first: %w", c.ID, models.ErrPreconditionNotMet)
		}
	case models.PendingSellerContract:
	case models.CorrectingContract:
		if c.CurrentRejection == nil || !c.CurrentRejection.PartyRequired.Requires(party) {
			return nil, fmt.Errorf("contract %s does not require a %s upload: %w", c.ID, party, models.ErrPreconditionNotMet)
		}
		if !c.CurrentRejection.Deadline.After(now) {
			return nil, fmt.Errorf("contract %s correction deadline passed: %w", c.ID, models.ErrPreconditionNotMet)
		}
	default:
		return nil, fmt.Errorf("contract %s is %s: %w", c.ID, c.Status, models.ErrInvalidTransition)
	}

	upload := c.Upload(party)
	upload.Party = party
	upload.File = &file
	upload.UploadedAt = &now
	c.UpdatedAt = now
	if err := s.contracts.UpdateContract(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Approve утверждает договор: выпускает сертификаты сторонам и общий сертификат.
func (s *ContractWorkflow) Approve(ctx context.Context, contractID, approvedBy string, now time.Time) (*models.Contract, Transition, error) {
	if strings.TrimSpace(approvedBy) == "" {
		return nil, Transition{}, fmt.Errorf("approvedBy is required: %w", models.ErrValidation)
	}
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, Transition{}, err
	}
	if c.Status != models.PendingAdminContract {
		return nil, Transition{}, fmt.Errorf("contract %s is %s, not pending-admin: %w", c.ID, c.Status, models.ErrInvalidTransition)
	}
	if !c.CustomerSigned.Present() || !c.SellerSigned.Present() {
		return nil, Transition{}, fmt.Errorf("contract %s lacks signed copies: %w", c.ID, models.ErrValidation)
	}
	bid, err := s.bids.GetBid(ctx, c.BidID)
	if err != nil {
		return nil, Transition{}, err
	}
	project, err := s.projects.GetProject(ctx, c.ProjectID)
	if err != nil {
		return nil, Transition{}, err
	}

	req := docgen.Request{Bid: *bid, Project: *project, CustomerID: c.CustomerID, SellerID: c.SellerID}
	certificates := models.Certificates{}
	for kind, dst := range map[docgen.Kind]**models.StoredFile{
		docgen.CustomerCertificate: &certificates.Customer,
		docgen.SellerCertificate:   &certificates.Seller,
		docgen.CombinedCertificate: &certificates.Combined,
	} {
		file, err := s.generate(ctx, kind, req)
		if err != nil {
			return nil, Transition{}, err
		}
		*dst = file
	}

	c.Certificates = certificates
	c.Status = models.CompletedContract
	c.ApprovedBy = approvedBy
	c.ApprovedAt = &now
	c.UpdatedAt = now
	if err := s.contracts.UpdateContract(ctx, c); err != nil {
		return nil, Transition{}, err
	}
	if bid.Status != models.CompletedBid {
		bid.Status = models.CompletedBid
		bid.UpdatedAt = now
		if err := s.bids.UpdateBid(ctx, bid); err != nil {
			return nil, Transition{}, err
		}
	}
	data := contractData(c)
	return c, changed(OutcomeContractApproved,
		notify.To(notify.ContractApprovedParty, c.CustomerID, data),
		notify.To(notify.ContractApprovedParty, c.SellerID, data),
	), nil
}

// Reject возвращает договор на исправление и очищает загрузки требуемых сторон.
func (s *ContractWorkflow) Reject(ctx context.Context, contractID string, req models.RejectionRequest, now time.Time) (*models.Contract, Transition, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, Transition{}, fmt.Errorf("rejection reason is required: %w", models.ErrValidation)
	}
	if !req.PartyRequired.Valid() {
		return nil, Transition{}, fmt.Errorf("unknown party %q: %w", req.PartyRequired, models.ErrValidation)
	}
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, Transition{}, err
	}
	if c.Status != models.PendingAdminContract {
		return nil, Transition{}, fmt.Errorf("contract %s is %s, not pending-admin: %w", c.ID, c.Status, models.ErrInvalidTransition)
	}

	deadline := now.Add(s.settings.CorrectionWindow)
	if req.Deadline != nil {
		deadline = *req.Deadline
	}
	rejection := models.Rejection{
		ID:            uuid.New().String(),
		Reason:        req.Reason,
		PartyRequired: req.PartyRequired,
		Deadline:      deadline,
		RejectedBy:    req.RejectedBy,
		RejectedAt:    now,
	}

	data := contractData(c)
	data["reason"] = req.Reason
	data["deadline"] = formatTime(deadline)
	var notices []notify.Message
	for _, party := range []models.Party{models.PartyCustomer, models.PartySeller} {
		if req.PartyRequired == models.PartyNone || req.PartyRequired.Requires(party) {
			notices = append(notices, notify.To(notify.ContractCorrectionParty, c.PartyUser(party), data))
		}
		if !req.PartyRequired.Requires(party) {
			continue
		}
		// Слот загрузки сохраняет сторону, чтобы его можно было заполнить повторно.
		upload := c.Upload(party)
		upload.Party = party
		upload.File = nil
		upload.UploadedAt = nil
	}

	c.RejectionHistory = append(c.RejectionHistory, rejection)
	current := rejection
	c.CurrentRejection = &current
	c.Status = models.CorrectingContract
	c.UpdatedAt = now
	if err := s.contracts.UpdateContract(ctx, c); err != nil {
		return nil, Transition{}, err
	}
	return c, changed(OutcomeContractCorrecting, notices...), nil
}

// ExpireCorrection окончательно отклоняет договор, если исправления не загружены до срока.
// Предложение отменяется, проект переходит в failed.
func (s *ContractWorkflow) ExpireCorrection(ctx context.Context, c *models.Contract, now time.Time) (Transition, error) {
	if c.Status != models.CorrectingContract || c.CurrentRejection == nil || c.CurrentRejection.Deadline.After(now) {
		return Transition{}, nil
	}

	bid, err := s.bids.GetBid(ctx, c.BidID)
	if err != nil {
		return Transition{}, err
	}
	if bid.Status != models.CancelledBid {
		bid.Status = models.CancelledBid
		bid.IsActiveInRound = false
		bid.UpdatedAt = now
		if err := s.bids.UpdateBid(ctx, bid); err != nil {
			return Transition{}, err
		}
	}

	project, err := s.projects.GetProject(ctx, c.ProjectID)
	if err != nil {
		return Transition{}, err
	}
	if project.SelectedBid == c.BidID {
		project.SelectedBid = ""
	}
	if !project.Status.Terminal() {
		project.Status = models.FailedProject
	}
	project.BidSettings.IsActive = false
	project.UpdatedAt = now
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return Transition{}, err
	}

	for i := range c.RejectionHistory {
		if c.RejectionHistory[i].ID == c.CurrentRejection.ID {
			c.RejectionHistory[i].Expired = true
		}
	}
	c.CurrentRejection.Expired = true
	c.Status = models.RejectedContract
	c.UpdatedAt = now
	if err := s.contracts.UpdateContract(ctx, c); err != nil {
		return Transition{}, err
	}
	data := contractData(c)
	return changed(OutcomeContractCancelled,
		notify.To(notify.ContractExpiredParty, c.CustomerID, data),
		notify.To(notify.ContractExpiredParty, c.SellerID, data),
	), nil
}

// CancelForProject отменяет незавершенные договоры проекта.
func (s *ContractWorkflow) CancelForProject(ctx context.Context, projectID string, now time.Time) (Transition, error) {
	contracts, err := s.contracts.FindContracts(ctx, repository.ContractFilter{
		ProjectID: projectID,
		Statuses: []models.ContractStatus{
			models.PendingCustomerContract,
			models.PendingSellerContract,
			models.PendingAdminContract,
			models.CorrectingContract,
		},
	})
	if err != nil {
		return Transition{}, err
	}
	var t Transition
	for i := range contracts {
		c := &contracts[i]
		c.Status = models.CancelledContract
		c.UpdatedAt = now
		if err := s.contracts.UpdateContract(ctx, c); err != nil {
			return Transition{}, err
		}
		data := contractData(c)
		t = t.merge(changed(OutcomeContractCancelled,
			notify.To(notify.ContractCancelledParty, c.CustomerID, data),
			notify.To(notify.ContractCancelledParty, c.SellerID, data),
		))
	}
	return t, nil
}

// ForceCorrectionDeadline переносит срок исправления договора по предложению. Только для тестовых окружений.
func (s *ContractWorkflow) ForceCorrectionDeadline(ctx context.Context, bidID string, at time.Time) error {
	c, err := s.contracts.GetContractByBid(ctx, bidID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status != models.CorrectingContract || c.CurrentRejection == nil {
		return nil
	}
	c.CurrentRejection.Deadline = at
	for i := range c.RejectionHistory {
		if c.RejectionHistory[i].ID == c.CurrentRejection.ID {
			c.RejectionHistory[i].Deadline = at
		}
	}
	return s.contracts.UpdateContract(ctx, c)
}
