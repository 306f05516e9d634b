package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/docgen"
	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
	"github.com/senyabanana/tender-lifecycle/internal/repository/memory"
	"github.com/senyabanana/tender-lifecycle/internal/services"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeDocs struct {
	mu    sync.Mutex
	calls []docgen.Kind
	fail  map[docgen.Kind]error
}

func (f *fakeDocs) Generate(_ context.Context, req docgen.Request) (*models.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Kind)
	if err := f.fail[req.Kind]; err != nil {
		return nil, err
	}
	return &models.StoredFile{
		ID:       fmt.Sprintf("%s-%s", req.Kind, req.Bid.ID),
		URL:      fmt.Sprintf("https://docs.test/%s/%s.pdf", req.Kind, req.Bid.ID),
		ByteSize: 2048,
	}, nil
}

func (f *fakeDocs) count(kind docgen.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.calls {
		if k == kind {
			n++
		}
	}
	return n
}

type env struct {
	repos     repository.Store
	docs      *fakeDocs
	workflow  *services.ContractWorkflow
	lifecycle *services.ProjectLifecycle
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repos := memory.New().Repositories()
	docs := &fakeDocs{fail: map[docgen.Kind]error{}}
	settings := services.DefaultSettings()
	workflow := services.NewContractWorkflow(repos, docs, settings)
	return &env{
		repos:     repos,
		docs:      docs,
		workflow:  workflow,
		lifecycle: services.NewProjectLifecycle(repos, workflow, docs, settings),
	}
}

func at(t time.Time) *time.Time {
	return &t
}

func newProject(id string, created time.Time) *models.Project {
	return &models.Project{
		ID:          id,
		OwnerID:     "owner-" + id,
		Title:       "Roof repair " + id,
		Description: "Replace the roof of a two-storey house",
		Category:    "construction",
		Location:    models.Location{City: "Kazan", Address: "Bauman st. 1"},
		Budget:      5000,
		Timeline: models.Timeline{
			StartDate: at(created.Add(10 * 24 * time.Hour)),
			EndDate:   at(created.Add(40 * 24 * time.Hour)),
		},
		Status:      models.DraftedProject,
		AdminStatus: models.AdminPending,
		Rounds:      models.NewBiddingRounds(),
		BidSettings: models.BidSettings{StartingBid: 100, BidEndDate: at(created.Add(72 * time.Hour))},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func (e *env) addProject(t *testing.T, p *models.Project) {
	t.Helper()
	if err := e.repos.Projects.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
}

func (e *env) project(t *testing.T, id string) *models.Project {
	t.Helper()
	p, err := e.repos.Projects.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("get project %s: %v", id, err)
	}
	return p
}

func (e *env) addBid(t *testing.T, projectID, sellerID string, amount float64, created time.Time) models.Bid {
	t.Helper()
	bid := models.Bid{
		ID:              fmt.Sprintf("%s-%s", projectID, sellerID),
		ProjectID:       projectID,
		SellerID:        sellerID,
		Amount:          amount,
		Round:           1,
		SelectionStatus: models.SelectionSubmitted,
		Status:          models.SubmittedBid,
		IsActiveInRound: true,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	if err := e.repos.Bids.CreateBid(context.Background(), &bid); err != nil {
		t.Fatalf("create bid: %v", err)
	}
	return bid
}

func (e *env) bid(t *testing.T, id string) *models.Bid {
	t.Helper()
	bid, err := e.repos.Bids.GetBid(context.Background(), id)
	if err != nil {
		t.Fatalf("get bid %s: %v", id, err)
	}
	return bid
}

// activeProject создает проект в первом туре, который закончился в момент base.
func (e *env) activeProject(t *testing.T, id string) *models.Project {
	t.Helper()
	p := newProject(id, base.Add(-96*time.Hour))
	p.Status = models.ActiveProject
	p.AdminStatus = models.AdminApproved
	p.BidSettings.IsActive = true
	p.Rounds = models.BiddingRounds{
		Current: models.RoundOne,
		Round1:  models.ActiveRound{Start: base.Add(-72 * time.Hour), End: base},
		Round2:  models.PendingRound{},
	}
	e.addProject(t, p)
	return p
}

func hasOutcome(tr services.Transition, outcome services.Outcome) bool {
	for _, o := range tr.Outcomes {
		if o == outcome {
			return true
		}
	}
	return false
}
