package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/docgen"
	"github.com/senyabanana/tender-lifecycle/internal/handlers"
	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/notify"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
	"github.com/senyabanana/tender-lifecycle/internal/repository/memory"
	"github.com/senyabanana/tender-lifecycle/internal/router"
	"github.com/senyabanana/tender-lifecycle/internal/scheduler"
	"github.com/senyabanana/tender-lifecycle/internal/services"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  repository.Store
	server *httptest.Server
}

func newFixture(t *testing.T, debug bool) *fixture {
	t.Helper()
	store := memory.New().Repositories()
	catalog, err := notify.DefaultCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	docs := docgen.NewOffline("https://docs.test")
	settings := services.DefaultSettings()
	workflow := services.NewContractWorkflow(store, docs, settings)
	lifecycle := services.NewProjectLifecycle(store, workflow, docs, settings)
	emitter := notify.NewEmitter(store.Notices, catalog, logger)
	clock := func() time.Time { return now }
	rec := scheduler.New(store, lifecycle, workflow, emitter, scheduler.WithClock(clock))
	handle := scheduler.NewHandle(rec, time.Minute, logger)

	h := handlers.NewAdminHandler(lifecycle, workflow, handle, emitter, store.Notices, logger, time.Second)
	h.Now = clock
	srv := httptest.NewServer(router.InitRoutes(h, debug))
	t.Cleanup(srv.Close)
	return &fixture{store: store, server: srv}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *fixture) pendingProject(t *testing.T, id string) {
	t.Helper()
	end := now.Add(72 * time.Hour)
	p := &models.Project{
		ID:          id,
		OwnerID:     "owner-1",
		Title:       "Porch",
		Status:      models.PendingProject,
		AdminStatus: models.AdminPending,
		Rounds:      models.NewBiddingRounds(),
		BidSettings: models.BidSettings{StartingBid: 10, BidEndDate: &end},
		CreatedAt:   now.Add(-48 * time.Hour),
		UpdatedAt:   now.Add(-24 * time.Hour),
	}
	if err := f.store.Projects.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
}

func TestPing(t *testing.T) {
	f := newFixture(t, false)
	resp, err := http.Get(f.server.URL + "/api/ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("ping = %d %q", resp.StatusCode, body)
	}
}

func TestReviewThenCycleActivatesProject(t *testing.T) {
	f := newFixture(t, false)
	f.pendingProject(t, "p1")

	resp, body := f.post(t, "/admin/projects/p1/review", `{"decision":"approved"}`)
	if resp.StatusCode != http.StatusOK || body["adminStatus"] != "approved" {
		t.Fatalf("review = %d %v", resp.StatusCode, body)
	}

	resp, body = f.post(t, "/admin/cycles", ``)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cycle = %d %v", resp.StatusCode, body)
	}
	counters, _ := body["counters"].(map[string]any)
	if counters["pendingToActive"] != float64(1) {
		t.Fatalf("counters = %v", counters)
	}

	p, _ := f.store.Projects.GetProject(context.Background(), "p1")
	if p.Status != models.ActiveProject {
		t.Fatalf("status = %s", p.Status)
	}

	list, err := http.Get(f.server.URL + "/admin/notices?userId=owner-1")
	if err != nil {
		t.Fatalf("notices: %v", err)
	}
	defer list.Body.Close()
	var notices []models.Notice
	if err := json.NewDecoder(list.Body).Decode(&notices); err != nil {
		t.Fatalf("decode notices: %v", err)
	}
	if len(notices) != 2 || notices[0].Event != string(notify.ProjectActivatedOwner) {
		t.Fatalf("notices = %+v", notices)
	}
}

func TestErrorStatuses(t *testing.T) {
	f := newFixture(t, false)
	f.pendingProject(t, "p1")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown project", "/admin/projects/nope/review", `{"decision":"approved"}`, http.StatusNotFound},
		{"bad decision", "/admin/projects/p1/review", `{"decision":"maybe"}`, http.StatusBadRequest},
		{"unknown field", "/admin/projects/p1/review", `{"verdict":"approved"}`, http.StatusBadRequest},
		{"finalists outside selection", "/admin/projects/p1/finalists", `{"bidIds":["b1"]}`, http.StatusConflict},
		{"unknown contract", "/admin/contracts/c1/approve", `{"approvedBy":"admin"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.post(t, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tt.status, body)
			}
			if body["reason"] == "" {
				t.Fatalf("error body has no reason: %v", body)
			}
		})
	}
}

func TestDebugRouteIsOptIn(t *testing.T) {
	f := newFixture(t, false)
	f.pendingProject(t, "p1")
	if resp, _ := f.post(t, "/admin/debug/projects/p1/expire", ``); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("debug route without flag = %d", resp.StatusCode)
	}

	debug := newFixture(t, true)
	debug.pendingProject(t, "p1")
	resp, body := debug.post(t, "/admin/debug/projects/p1/expire", ``)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("debug route = %d %v", resp.StatusCode, body)
	}
	p, _ := debug.store.Projects.GetProject(context.Background(), "p1")
	if p.BidSettings.BidEndDate.After(now) {
		t.Fatalf("bid end date not moved: %v", p.BidSettings.BidEndDate)
	}
}
