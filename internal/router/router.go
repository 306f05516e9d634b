package router

import (
	"net/http"

	"github.com/senyabanana/tender-lifecycle/internal/handlers"

	"github.com/go-chi/chi/v5"
)

// InitRoutes регистрирует маршруты. Отладочный маршрут подключается только при debug.
func InitRoutes(adminHandler *handlers.AdminHandler, debug bool) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/ping", handlers.PingHandler)

	r.Route("/admin", func(admin chi.Router) {
		admin.Post("/cycles", adminHandler.RunCycle)
		admin.Get("/notices", adminHandler.ListNotices)
		admin.Get("/notices/events", adminHandler.ListEvents)

		admin.Post("/projects/{projectId}/review", adminHandler.ReviewProject)
		admin.Post("/projects/{projectId}/cancel", adminHandler.CancelProject)
		admin.Post("/projects/{projectId}/finalists", adminHandler.NominateFinalists)

		admin.Post("/contracts/{contractId}/uploads", adminHandler.RecordUpload)
		admin.Post("/contracts/{contractId}/approve", adminHandler.ApproveContract)
		admin.Post("/contracts/{contractId}/reject", adminHandler.RejectContract)

		if debug {
			admin.Post("/debug/projects/{projectId}/expire", adminHandler.ExpireDeadlines)
		}
	})

	return r
}
