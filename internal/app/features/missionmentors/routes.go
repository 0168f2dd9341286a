// internal/app/features/missionmentors/routes.go
package missionmentors

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Post("/assign-students", h.HandleAssign)
	r.Post("/reassign-students", h.HandleReassign)
	r.Patch("/{id}/status", h.HandleSetStatus)
	r.Get("/by-mentor/{missionID}/{mentorID}", h.HandleGetByMentor)
	return r
}
