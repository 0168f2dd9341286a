// internal/app/features/missionstudents/routes.go
package missionstudents

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleEnroll)
	r.Get("/", h.HandleList)
	r.Delete("/{missionID}/{studentID}", h.HandleRemove)
	r.Patch("/{missionID}/{studentID}/status", h.HandleSetStatus)
	return r
}
