package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/docgen"
	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/notify"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
	"github.com/senyabanana/tender-lifecycle/internal/repository/memory"
	"github.com/senyabanana/tender-lifecycle/internal/scheduler"
	"github.com/senyabanana/tender-lifecycle/internal/services"
)

var start = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// switchableDocs подменяет генератор документов ошибкой, пока включен failing.
type switchableDocs struct {
	docgen.Generator
	mu      sync.Mutex
	failing bool
}

func (d *switchableDocs) setFailing(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = v
}

func (d *switchableDocs) Generate(ctx context.Context, req docgen.Request) (*models.StoredFile, error) {
	d.mu.Lock()
	failing := d.failing
	d.mu.Unlock()
	if failing {
		return nil, errors.New("document service unavailable")
	}
	return d.Generator.Generate(ctx, req)
}

type harness struct {
	store     repository.Store
	clock     *fakeClock
	docs      *switchableDocs
	lifecycle *services.ProjectLifecycle
	workflow  *services.ContractWorkflow
	rec       *scheduler.Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New().Repositories()
	return newHarnessWithStore(t, store)
}

func newHarnessWithStore(t *testing.T, store repository.Store) *harness {
	t.Helper()
	catalog, err := notify.DefaultCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	clock := &fakeClock{now: start}
	docs := &switchableDocs{Generator: docgen.NewOffline("https://docs.test")}
	settings := services.DefaultSettings()
	workflow := services.NewContractWorkflow(store, docs, settings)
	lifecycle := services.NewProjectLifecycle(store, workflow, docs, settings)
	emitter := notify.NewEmitter(store.Notices, catalog, nil)
	return &harness{
		store:     store,
		clock:     clock,
		docs:      docs,
		lifecycle: lifecycle,
		workflow:  workflow,
		rec:       scheduler.New(store, lifecycle, workflow, emitter, scheduler.WithClock(clock.Now)),
	}
}

func (h *harness) cycle(t *testing.T, at time.Time) scheduler.Report {
	t.Helper()
	h.clock.Set(at)
	report, err := h.rec.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle at %s: %v", at, err)
	}
	if n := report.Count(scheduler.CounterNoticeErrors); n != 0 {
		t.Fatalf("cycle at %s: %d notice errors", at, n)
	}
	return report
}

func (h *harness) project(t *testing.T, id string) *models.Project {
	t.Helper()
	p, err := h.store.Projects.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("project %s: %v", id, err)
	}
	return p
}

func (h *harness) bid(t *testing.T, id string) *models.Bid {
	t.Helper()
	b, err := h.store.Bids.GetBid(context.Background(), id)
	if err != nil {
		t.Fatalf("bid %s: %v", id, err)
	}
	return b
}

func at(t time.Time) *time.Time {
	return &t
}

func draft(id string, created time.Time) *models.Project {
	return &models.Project{
		ID:          id,
		OwnerID:     "owner-" + id,
		Title:       "Kitchen renovation",
		Description: "Full kitchen renovation with new plumbing",
		Category:    "renovation",
		Location:    models.Location{City: "Samara", Address: "Lenin ave. 5"},
		Budget:      12000,
		Timeline: models.Timeline{
			StartDate: at(created.Add(7 * 24 * time.Hour)),
			EndDate:   at(created.Add(30 * 24 * time.Hour)),
		},
		Status:      models.DraftedProject,
		AdminStatus: models.AdminPending,
		Rounds:      models.NewBiddingRounds(),
		BidSettings: models.BidSettings{StartingBid: 100, BidEndDate: at(created.Add(72 * time.Hour))},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func (h *harness) addProject(t *testing.T, p *models.Project) {
	t.Helper()
	if err := h.store.Projects.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
}

func (h *harness) addBids(t *testing.T, projectID string, submitted time.Time, amounts ...float64) {
	t.Helper()
	for i, amount := range amounts {
		bid := &models.Bid{
			ID:              fmt.Sprintf("%s-s%02d", projectID, i+1),
			ProjectID:       projectID,
			SellerID:        fmt.Sprintf("s%02d", i+1),
			Amount:          amount,
			Round:           1,
			SelectionStatus: models.SelectionSubmitted,
			Status:          models.SubmittedBid,
			IsActiveInRound: true,
			CreatedAt:       submitted.Add(time.Duration(i) * time.Minute),
			UpdatedAt:       submitted.Add(time.Duration(i) * time.Minute),
		}
		if err := h.store.Bids.CreateBid(context.Background(), bid); err != nil {
			t.Fatalf("create bid: %v", err)
		}
	}
}

// toRoundTwo проводит проект p1 от черновика до второго тура с финалистами 1200, 900 и 600.
// Второй тур заканчивается в start+50h.
func (h *harness) toRoundTwo(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	h.addProject(t, draft("p1", start.Add(-48*time.Hour)))

	if r := h.cycle(t, start); r.Count("draftedToPending") != 1 {
		t.Fatalf("auto submit: %s", r)
	}
	if _, _, err := h.lifecycle.Review(ctx, "p1", models.ProjectReview{Decision: models.AdminApproved}, start); err != nil {
		t.Fatalf("review: %v", err)
	}
	if r := h.cycle(t, start.Add(time.Minute)); r.Count("pendingToActive") != 1 {
		t.Fatalf("activation: %s", r)
	}

	h.addBids(t, "p1", start.Add(time.Hour), 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200)
	if r := h.cycle(t, start.Add(25*time.Hour)); r.Count("round1Completed") != 1 {
		t.Fatalf("round 1: %s", r)
	}
	if _, err := h.lifecycle.NominateFinalists(ctx, "p1", []string{"p1-s12", "p1-s09", "p1-s06"}, start.Add(25*time.Hour)); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if r := h.cycle(t, start.Add(26*time.Hour)); r.Count("round2Started") != 1 {
		t.Fatalf("selection: %s", r)
	}
}

func TestCycleRunsBiddingToContract(t *testing.T) {
	h := newHarness(t)
	h.toRoundTwo(t)

	for i := 1; i <= 12; i++ {
		bid := h.bid(t, fmt.Sprintf("p1-s%02d", i))
		switch {
		case i <= 2:
			if bid.Status != models.LostBid {
				t.Fatalf("bid %.0f should lose in round 1, got %s", bid.Amount, bid.Status)
			}
		case i == 6 || i == 9 || i == 12:
			if bid.SelectionStatus != models.SelectedRound2 {
				t.Fatalf("finalist %.0f: %s", bid.Amount, bid.SelectionStatus)
			}
		default:
			if bid.SelectionStatus != models.SelectionLost {
				t.Fatalf("non-finalist %.0f: %s", bid.Amount, bid.SelectionStatus)
			}
		}
	}

	r := h.cycle(t, start.Add(51*time.Hour))
	if r.Count("round2Completed") != 1 || r.Count("contractsCreated") != 1 {
		t.Fatalf("round 2: %s", r)
	}
	p := h.project(t, "p1")
	if p.Status != models.AwardedProject || p.SelectedBid != "p1-s06" {
		t.Fatalf("project = %s, selected %s", p.Status, p.SelectedBid)
	}
	c, err := h.store.Contracts.GetContractByBid(context.Background(), "p1-s06")
	if err != nil || c.Status != models.PendingCustomerContract {
		t.Fatalf("contract = %+v, %v", c, err)
	}

	notices, err := h.store.Notices.ListNotices(context.Background(), repository.NoticeFilter{TargetUserID: "s06"})
	if err != nil || len(notices) == 0 {
		t.Fatalf("winner notices = %d, %v", len(notices), err)
	}
}

func TestCycleExpiresCorrection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toRoundTwo(t)
	h.cycle(t, start.Add(51*time.Hour))
	c, err := h.store.Contracts.GetContractByBid(ctx, "p1-s06")
	if err != nil {
		t.Fatalf("contract: %v", err)
	}

	file := func(id string) models.StoredFile {
		return models.StoredFile{ID: id, URL: "https://files.test/" + id}
	}
	if _, err := h.workflow.RecordUpload(ctx, c.ID, models.PartyCustomer, file("c"), start.Add(52*time.Hour)); err != nil {
		t.Fatalf("customer upload: %v", err)
	}
	if r := h.cycle(t, start.Add(52*time.Hour)); r.Count("contractsToPendingSeller") != 1 {
		t.Fatalf("intake: %s", r)
	}
	if _, err := h.workflow.RecordUpload(ctx, c.ID, models.PartySeller, file("s"), start.Add(53*time.Hour)); err != nil {
		t.Fatalf("seller upload: %v", err)
	}
	if r := h.cycle(t, start.Add(53*time.Hour)); r.Count("contractsToPendingAdmin") != 1 {
		t.Fatalf("intake: %s", r)
	}

	deadline := start.Add(55 * time.Hour)
	if _, _, err := h.workflow.Reject(ctx, c.ID, models.RejectionRequest{
		Reason:        "unreadable scan",
		PartyRequired: models.PartyBoth,
		Deadline:      &deadline,
	}, start.Add(54*time.Hour)); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if r := h.cycle(t, start.Add(54*time.Hour+30*time.Minute)); r.Count("contractsCancelled") != 0 {
		t.Fatalf("cancelled before the deadline: %s", r)
	}

	r := h.cycle(t, start.Add(56*time.Hour))
	if r.Count("contractsCancelled") != 1 {
		t.Fatalf("correction sweep: %s", r)
	}
	c, _ = h.store.Contracts.GetContractByBid(ctx, "p1-s06")
	if c.Status != models.RejectedContract {
		t.Fatalf("contract = %s", c.Status)
	}
	if bid := h.bid(t, "p1-s06"); bid.Status != models.CancelledBid {
		t.Fatalf("bid = %s", bid.Status)
	}
	if p := h.project(t, "p1"); p.Status != models.FailedProject {
		t.Fatalf("project = %s", p.Status)
	}
}

func TestCycleLeavesIncompleteDraft(t *testing.T) {
	h := newHarness(t)
	p := draft("incomplete", start.Add(-48*time.Hour))
	p.Location.City = ""
	h.addProject(t, p)

	r := h.cycle(t, start)
	if r.Count(scheduler.CounterValidationErrors) != 1 || r.Count("draftedToPending") != 0 {
		t.Fatalf("report: %s", r)
	}
	if got := h.project(t, "incomplete"); got.Status != models.DraftedProject {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestCycleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.toRoundTwo(t)
	h.cycle(t, start.Add(51*time.Hour))
	before := h.project(t, "p1")

	r := h.cycle(t, start.Add(51*time.Hour+time.Minute))
	for _, n := range r.Counters {
		if n != 0 {
			t.Fatalf("second cycle changed state: %s", r)
		}
	}
	after := h.project(t, "p1")
	if after.Status != before.Status || after.SelectedBid != before.SelectedBid || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("project changed: %+v -> %+v", before, after)
	}
	contracts, _ := h.store.Contracts.FindContracts(context.Background(), repository.ContractFilter{ProjectID: "p1"})
	if len(contracts) != 1 {
		t.Fatalf("contracts = %d", len(contracts))
	}
}

func TestCurrentRoundNeverDecreases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addProject(t, draft("p1", start.Add(-48*time.Hour)))

	last := 0.0
	check := func(stage string) {
		t.Helper()
		p := h.project(t, "p1")
		if n := p.Rounds.Current.Number(); n < last {
			t.Fatalf("%s: round went from %v to %v", stage, last, n)
		} else {
			last = n
		}
		if err := p.Rounds.Validate(); err != nil {
			t.Fatalf("%s: %v", stage, err)
		}
	}

	h.cycle(t, start)
	check("submitted")
	if _, _, err := h.lifecycle.Review(ctx, "p1", models.ProjectReview{Decision: models.AdminApproved}, start); err != nil {
		t.Fatalf("review: %v", err)
	}
	h.addBids(t, "p1", start.Add(time.Minute), 500, 400, 300, 200)
	for _, offset := range []time.Duration{time.Minute, 25 * time.Hour, 26 * time.Hour} {
		h.cycle(t, start.Add(offset))
		check(offset.String())
	}
	if _, err := h.lifecycle.NominateFinalists(ctx, "p1", []string{"p1-s01", "p1-s02", "p1-s03"}, start.Add(26*time.Hour)); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	for _, offset := range []time.Duration{27 * time.Hour, 52 * time.Hour, 53 * time.Hour} {
		h.cycle(t, start.Add(offset))
		check(offset.String())
	}
	if last != models.RoundAwarded.Number() {
		t.Fatalf("final round = %v", last)
	}
}

func TestCycleCountsDocumentFailuresAndRecovers(t *testing.T) {
	h := newHarness(t)
	h.toRoundTwo(t)

	h.docs.setFailing(true)
	r := h.cycle(t, start.Add(51*time.Hour))
	if r.Count(scheduler.CounterValidationErrors) != 1 || r.Count("round2Completed") != 0 {
		t.Fatalf("failing cycle: %s", r)
	}
	if p := h.project(t, "p1"); p.Rounds.Current != models.RoundTwo {
		t.Fatalf("round = %s", p.Rounds.Current)
	}

	h.docs.setFailing(false)
	r = h.cycle(t, start.Add(52*time.Hour))
	if r.Count("round2Completed") != 1 || r.Count("contractsCreated") != 1 {
		t.Fatalf("recovery cycle: %s", r)
	}
}

type failingProjects struct {
	repository.ProjectRepository
}

func (failingProjects) FindProjects(context.Context, repository.ProjectFilter) ([]models.Project, error) {
	return nil, errors.New("connection reset")
}

func TestCycleAbortsOnListingFailure(t *testing.T) {
	store := memory.New().Repositories()
	store.Projects = failingProjects{store.Projects}
	h := newHarnessWithStore(t, store)

	report, err := h.rec.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected the cycle to fail")
	}
	if report.FinishedAt.IsZero() {
		t.Fatalf("report should be finished: %+v", report)
	}
}

type blockingProjects struct {
	repository.ProjectRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingProjects) FindProjects(ctx context.Context, filter repository.ProjectFilter) ([]models.Project, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.ProjectRepository.FindProjects(ctx, filter)
}

func TestCyclesDoNotOverlap(t *testing.T) {
	store := memory.New().Repositories()
	blocking := &blockingProjects{ProjectRepository: store.Projects, entered: make(chan struct{}), release: make(chan struct{})}
	store.Projects = blocking
	h := newHarnessWithStore(t, store)

	done := make(chan error, 1)
	go func() {
		_, err := h.rec.RunCycle(context.Background())
		done <- err
	}()
	<-blocking.entered

	if _, err := h.rec.RunCycle(context.Background()); !errors.Is(err, scheduler.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}
	close(blocking.release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}
}
