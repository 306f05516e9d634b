// Package scheduler периодически сверяет состояние проектов и договоров со временем и продвигает их по этапам.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/notify"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
	"github.com/senyabanana/tender-lifecycle/internal/services"
)

// ErrCycleInProgress возвращается, если предыдущий цикл еще не завершен.
var ErrCycleInProgress = errors.New("reconciliation cycle already in progress")

// Ключи счетчиков, не связанные с переходами.
const (
	CounterValidationErrors    = "validationErrors"
	CounterPreconditionsNotMet = "preconditionsNotMet"
	CounterNoticeErrors        = "noticeErrors"
)

// NoticeEmitter доставляет уведомления, собранные за переход.
type NoticeEmitter interface {
	Emit(ctx context.Context, msgs ...notify.Message) error
}

// Report - итог одного цикла сверки.
type Report struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Counters   map[string]int `json:"counters"`
}

// Count возвращает значение счетчика, отсутствующий счетчик равен нулю.
func (r Report) Count(key string) int {
	return r.Counters[key]
}

func (r Report) String() string {
	keys := make([]string, 0, len(r.Counters))
	for k := range r.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, r.Counters[k]))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, " ")
}

type projectStep func(ctx context.Context, p *models.Project, now time.Time) (services.Transition, error)

type contractStep func(ctx context.Context, c *models.Contract, now time.Time) (services.Transition, error)

type phase struct {
	name      string
	projects  func(now time.Time) repository.ProjectFilter
	project   projectStep
	contracts func(now time.Time) repository.ContractFilter
	contract  contractStep
}

// Reconciler выполняет один цикл сверки: фазы идут в фиксированном порядке,
// каждая заново выбирает подходящие сущности.
type Reconciler struct {
	projects  repository.ProjectRepository
	contracts repository.ContractRepository
	notices   NoticeEmitter
	logger    *log.Logger
	clock     func() time.Time
	phases    []phase

	mu sync.Mutex
}

// Option настраивает Reconciler.
type Option func(*Reconciler)

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(r *Reconciler) {
		r.clock = clock
	}
}

// WithLogger задает логгер.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// New создает новый экземпляр Reconciler.
func New(store repository.Store, lifecycle *services.ProjectLifecycle, workflow *services.ContractWorkflow, notices NoticeEmitter, opts ...Option) *Reconciler {
	r := &Reconciler{
		projects:  store.Projects,
		contracts: store.Contracts,
		notices:   notices,
		logger:    log.New(io.Discard, "", 0),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.phases = buildPhases(lifecycle, workflow)
	return r
}

func byStatus(status models.ProjectStatus, round ...models.Round) func(time.Time) repository.ProjectFilter {
	return func(time.Time) repository.ProjectFilter {
		return repository.ProjectFilter{Statuses: []models.ProjectStatus{status}, Rounds: round}
	}
}

func buildPhases(lifecycle *services.ProjectLifecycle, workflow *services.ContractWorkflow) []phase {
	settings := lifecycle.Settings()
	notArchived := false
	return []phase{
		{
			name: "autoSubmit",
			projects: func(now time.Time) repository.ProjectFilter {
				return repository.ProjectFilter{
					Statuses:      []models.ProjectStatus{models.DraftedProject},
					CreatedBefore: now.Add(-settings.AutoSubmitGrace),
				}
			},
			project: lifecycle.AutoSubmit,
		},
		{
			name: "activation",
			projects: func(time.Time) repository.ProjectFilter {
				return repository.ProjectFilter{
					Statuses:      []models.ProjectStatus{models.PendingProject},
					AdminStatuses: []models.AdminStatus{models.AdminApproved},
				}
			},
			project: lifecycle.Activate,
		},
		{name: "round1", projects: byStatus(models.ActiveProject, models.RoundOne), project: lifecycle.CloseRoundOne},
		{name: "selection", projects: byStatus(models.ActiveProject, models.RoundSelection), project: lifecycle.ResolveSelection},
		{name: "round2", projects: byStatus(models.ActiveProject, models.RoundTwo), project: lifecycle.CloseRoundTwo},
		{name: "selectionExpiry", projects: byStatus(models.ActiveProject, models.RoundSelection), project: lifecycle.ExpireSelection},
		{
			name: "contractIntake",
			contracts: func(time.Time) repository.ContractFilter {
				return repository.ContractFilter{Statuses: []models.ContractStatus{
					models.PendingCustomerContract,
					models.PendingSellerContract,
					models.CorrectingContract,
				}}
			},
			contract: workflow.Advance,
		},
		{
			name: "correctionDeadline",
			contracts: func(time.Time) repository.ContractFilter {
				return repository.ContractFilter{Statuses: []models.ContractStatus{models.CorrectingContract}}
			},
			contract: workflow.ExpireCorrection,
		},
		{name: "completion", projects: byStatus(models.AwardedProject), project: lifecycle.Complete},
		{
			name: "archival",
			projects: func(now time.Time) repository.ProjectFilter {
				return repository.ProjectFilter{
					Statuses: []models.ProjectStatus{
						models.CompletedProject,
						models.FailedProject,
						models.CancelledProject,
						models.RejectedProject,
					},
					Archived:      &notArchived,
					UpdatedBefore: now.Add(-settings.ArchiveRetention),
				}
			},
			project: lifecycle.Archive,
		},
	}
}

// RunCycle выполняет все фазы один раз. Ошибки отдельных сущностей учитываются в счетчиках
// и не прерывают цикл. Ошибка выборки прерывает цикл, следующий запуск продолжит с того же места.
func (r *Reconciler) RunCycle(ctx context.Context) (Report, error) {
	if !r.mu.TryLock() {
		return Report{}, ErrCycleInProgress
	}
	defer r.mu.Unlock()

	report := Report{StartedAt: r.clock().UTC(), Counters: map[string]int{}}
	for _, ph := range r.phases {
		if err := ctx.Err(); err != nil {
			return r.finish(report), err
		}
		var err error
		if ph.project != nil {
			err = r.runProjects(ctx, ph, &report)
		} else {
			err = r.runContracts(ctx, ph, &report)
		}
		if err != nil {
			report = r.finish(report)
			r.logger.Printf("cycle aborted in phase %s: %v", ph.name, err)
			return report, fmt.Errorf("phase %s: %w", ph.name, err)
		}
	}
	report = r.finish(report)
	r.logger.Printf("cycle finished in %s: %s", report.FinishedAt.Sub(report.StartedAt), report)
	return report, nil
}

func (r *Reconciler) finish(report Report) Report {
	report.FinishedAt = r.clock().UTC()
	return report
}

func (r *Reconciler) runProjects(ctx context.Context, ph phase, report *Report) error {
	now := r.clock().UTC()
	projects, err := r.projects.FindProjects(ctx, ph.projects(now))
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	for i := range projects {
		t, err := ph.project(ctx, &projects[i], now)
		r.record(ctx, ph.name, projects[i].ID, t, err, report)
	}
	return nil
}

func (r *Reconciler) runContracts(ctx context.Context, ph phase, report *Report) error {
	now := r.clock().UTC()
	contracts, err := r.contracts.FindContracts(ctx, ph.contracts(now))
	if err != nil {
		return fmt.Errorf("list contracts: %w", err)
	}
	for i := range contracts {
		t, err := ph.contract(ctx, &contracts[i], now)
		r.record(ctx, ph.name, contracts[i].ID, t, err, report)
	}
	return nil
}

// record учитывает результат перехода одной сущности и отправляет его уведомления.
func (r *Reconciler) record(ctx context.Context, phaseName, entityID string, t services.Transition, err error, report *Report) {
	if err != nil {
		switch {
		case errors.Is(err, models.ErrPreconditionNotMet):
			report.Counters[CounterPreconditionsNotMet]++
		case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrDependencyFailure):
			report.Counters[CounterValidationErrors]++
		default:
			report.Counters[phaseName+"Errors"]++
		}
		r.logger.Printf("phase=%s entity=%s: %v", phaseName, entityID, err)
		return
	}
	for _, outcome := range t.Outcomes {
		report.Counters[string(outcome)]++
	}
	if len(t.Notices) == 0 || r.notices == nil {
		return
	}
	if err := r.notices.Emit(ctx, t.Notices...); err != nil {
		report.Counters[CounterNoticeErrors]++
		r.logger.Printf("phase=%s entity=%s: notices: %v", phaseName, entityID, err)
	}
}
