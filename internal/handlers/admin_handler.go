package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/models"
	"github.com/senyabanana/tender-lifecycle/internal/notify"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
	"github.com/senyabanana/tender-lifecycle/internal/scheduler"
	"github.com/senyabanana/tender-lifecycle/internal/services"
	"github.com/senyabanana/tender-lifecycle/internal/utils"

	"github.com/go-chi/chi/v5"
)

// AdminHandler - структура для обработки административных HTTP-запросов.
type AdminHandler struct {
	Lifecycle *services.ProjectLifecycle
	Workflow  *services.ContractWorkflow
	Scheduler *scheduler.Handle
	Emitter   scheduler.NoticeEmitter
	Notices   repository.NoticeRepository
	Logger    *log.Logger
	Timeout   time.Duration
	Now       func() time.Time
}

// NewAdminHandler создаёт новый экземпляр AdminHandler.
func NewAdminHandler(lifecycle *services.ProjectLifecycle, workflow *services.ContractWorkflow, handle *scheduler.Handle,
	emitter scheduler.NoticeEmitter, notices repository.NoticeRepository, logger *log.Logger, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		Lifecycle: lifecycle,
		Workflow:  workflow,
		Scheduler: handle,
		Emitter:   emitter,
		Notices:   notices,
		Logger:    logger,
		Timeout:   timeout,
		Now:       time.Now,
	}
}

func (h *AdminHandler) now() time.Time {
	return h.Now().UTC()
}

// sendError переводит ошибку сервиса в HTTP-статус.
func (h *AdminHandler) sendError(w http.ResponseWriter, err error) {
	h.Logger.Println(err)
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.SendErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrValidation):
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrPreconditionNotMet), errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, scheduler.ErrCycleInProgress):
		utils.SendErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrDependencyFailure):
		utils.SendErrorResponse(w, http.StatusBadGateway, err.Error())
	default:
		utils.SendErrorResponse(w, http.StatusInternalServerError, "internal error")
	}
}

// emit отправляет уведомления после административного действия. Сбой доставки не отменяет действие.
func (h *AdminHandler) emit(ctx context.Context, t services.Transition) {
	if h.Emitter == nil || len(t.Notices) == 0 {
		return
	}
	if err := h.Emitter.Emit(ctx, t.Notices...); err != nil {
		h.Logger.Printf("notices: %v", err)
	}
}

// RunCycle обрабатывает запрос на внеочередной цикл сверки.
func (h *AdminHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		h.sendError(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, report)
}

// ReviewProject обрабатывает решение администратора по проекту.
func (h *AdminHandler) ReviewProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var review models.ProjectReview
	if err := utils.DecodeJSON(r, &review); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	project, t, err := h.Lifecycle.Review(ctx, chi.URLParam(r, "projectId"), review, h.now())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.emit(ctx, t)
	utils.SendJSON(w, http.StatusOK, project)
}

// CancelProject обрабатывает отмену проекта.
func (h *AdminHandler) CancelProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	project, t, err := h.Lifecycle.Cancel(ctx, chi.URLParam(r, "projectId"), h.now())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.emit(ctx, t)
	utils.SendJSON(w, http.StatusOK, project)
}

// NominateFinalists обрабатывает выбор финалистов заказчиком.
func (h *AdminHandler) NominateFinalists(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.FinalistsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	project, err := h.Lifecycle.NominateFinalists(ctx, chi.URLParam(r, "projectId"), req.BidIDs, h.now())
	if err != nil {
		h.sendError(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, project)
}

// RecordUpload обрабатывает загрузку подписанного договора.
func (h *AdminHandler) RecordUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.UploadRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	contract, err := h.Workflow.RecordUpload(ctx, chi.URLParam(r, "contractId"), req.Party, req.File, h.now())
	if err != nil {
		h.sendError(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, contract)
}

// ApproveContract обрабатывает утверждение договора.
func (h *AdminHandler) ApproveContract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.ApprovalRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	contract, t, err := h.Workflow.Approve(ctx, chi.URLParam(r, "contractId"), req.ApprovedBy, h.now())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.emit(ctx, t)
	utils.SendJSON(w, http.StatusOK, contract)
}

// RejectContract обрабатывает возврат договора на исправление.
func (h *AdminHandler) RejectContract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.RejectionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	contract, t, err := h.Workflow.Reject(ctx, chi.URLParam(r, "contractId"), req, h.now())
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.emit(ctx, t)
	utils.SendJSON(w, http.StatusOK, contract)
}

// ListNotices обрабатывает запросы для получения списка уведомлений.
func (h *AdminHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limit, err := utils.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	notices, err := h.Notices.ListNotices(ctx, repository.NoticeFilter{
		TargetUserID: r.URL.Query().Get("userId"),
		Audience:     models.Audience(r.URL.Query().Get("audience")),
		Limit:        limit,
	})
	if err != nil {
		h.sendError(w, err)
		return
	}
	if notices == nil {
		notices = []models.Notice{}
	}
	utils.SendJSON(w, http.StatusOK, notices)
}

// ExpireDeadlines переносит сроки проекта в прошлое. Маршрут доступен только при DEBUG_ENDPOINTS.
func (h *AdminHandler) ExpireDeadlines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	project, err := h.Lifecycle.ExpireDeadlines(ctx, chi.URLParam(r, "projectId"), h.now())
	if err != nil {
		h.sendError(w, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, project)
}

// ListEvents возвращает перечень событий, известных каталогу уведомлений.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, notify.Events)
}
