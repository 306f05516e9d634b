package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
)

var created = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func TestProjectsAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	end := created.Add(time.Hour)
	p := &models.Project{ID: "p1", Status: models.DraftedProject, Rounds: models.NewBiddingRounds(), Timeline: models.Timeline{EndDate: &end}, CreatedAt: created}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := s.GetProject(ctx, "p1")
	moved := end.Add(time.Hour)
	*got.Timeline.EndDate = moved
	got.Status = models.ActiveProject

	again, _ := s.GetProject(ctx, "p1")
	if again.Status != models.DraftedProject || !again.Timeline.EndDate.Equal(end) {
		t.Fatalf("stored project changed through a returned copy: %+v", again)
	}
	if _, err := s.GetProject(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing project: %v", err)
	}
	if err := s.UpdateProject(ctx, &models.Project{ID: "missing"}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
}

func TestFindProjectsFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	archived := true
	for _, p := range []models.Project{
		{ID: "a", Status: models.ActiveProject, Rounds: models.BiddingRounds{Current: models.RoundOne}, CreatedAt: created},
		{ID: "b", Status: models.ActiveProject, Rounds: models.BiddingRounds{Current: models.RoundTwo}, CreatedAt: created.Add(time.Minute)},
		{ID: "c", Status: models.FailedProject, IsArchived: true, CreatedAt: created.Add(-time.Minute)},
	} {
		p := p
		if err := s.CreateProject(ctx, &p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	got, _ := s.FindProjects(ctx, repository.ProjectFilter{Statuses: []models.ProjectStatus{models.ActiveProject}, Rounds: []models.Round{models.RoundTwo}})
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("round filter = %v", got)
	}
	got, _ = s.FindProjects(ctx, repository.ProjectFilter{Archived: &archived})
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("archived filter = %v", got)
	}
	got, _ = s.FindProjects(ctx, repository.ProjectFilter{})
	if len(got) != 3 || got[0].ID != "c" || got[2].ID != "b" {
		t.Fatalf("order = %v", got)
	}
}

func TestBidRules(t *testing.T) {
	s := New()
	ctx := context.Background()
	bid := &models.Bid{ID: "b1", ProjectID: "p1", SellerID: "s1", Round: 2, Status: models.SelectedBid, CreatedAt: created}
	if err := s.CreateBid(ctx, bid); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &models.Bid{ID: "b2", ProjectID: "p1", SellerID: "s1", Status: models.SubmittedBid}
	if err := s.CreateBid(ctx, dup); !errors.Is(err, models.ErrPreconditionNotMet) {
		t.Fatalf("second active bid from the same seller: %v", err)
	}

	lowered := *bid
	lowered.Round = 1
	if err := s.UpdateBid(ctx, &lowered); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := s.GetBid(ctx, "b1"); got.Round != 2 {
		t.Fatalf("round lowered to %d", got.Round)
	}

	n, err := s.UpdateBids(ctx, repository.BidFilter{ProjectID: "p1", ExcludeIDs: []string{"b1"}}, models.BidUpdate{Status: models.LostBid})
	if err != nil || n != 0 {
		t.Fatalf("excluded bid updated: %d, %v", n, err)
	}
	n, _ = s.UpdateBids(ctx, repository.BidFilter{ProjectID: "p1"}, models.BidUpdate{Status: models.CancelledBid})
	if n != 1 {
		t.Fatalf("updated %d bids", n)
	}
	if err := s.CreateBid(ctx, dup); err != nil {
		t.Fatalf("new bid after cancellation: %v", err)
	}
}

func TestOneContractPerBid(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateContract(ctx, &models.Contract{ID: "c1", BidID: "b1", Status: models.PendingCustomerContract}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateContract(ctx, &models.Contract{ID: "c2", BidID: "b1"}); !errors.Is(err, models.ErrPreconditionNotMet) {
		t.Fatalf("second contract: %v", err)
	}
	got, err := s.GetContractByBid(ctx, "b1")
	if err != nil || got.ID != "c1" {
		t.Fatalf("by bid: %+v, %v", got, err)
	}
}

func TestListNoticesNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, n := range []models.Notice{
		{ID: "n1", TargetUserID: "u1", Audience: models.AudienceUser},
		{ID: "n2", Audience: models.AudienceAdmin},
		{ID: "n3", TargetUserID: "u1", Audience: models.AudienceUser},
	} {
		n := n
		_ = s.CreateNotice(ctx, &n)
	}
	got, _ := s.ListNotices(ctx, repository.NoticeFilter{TargetUserID: "u1"})
	if len(got) != 2 || got[0].ID != "n3" {
		t.Fatalf("notices = %+v", got)
	}
	got, _ = s.ListNotices(ctx, repository.NoticeFilter{Limit: 1})
	if len(got) != 1 || got[0].ID != "n3" {
		t.Fatalf("limited = %+v", got)
	}
}
