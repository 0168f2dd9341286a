// internal/app/features/mentorshipgroups/routes.go
package mentorshipgroups

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Get("/{id}", h.HandleGet)
	r.Patch("/{id}/members/{studentID}/status", h.HandleSetMemberStatus)
	r.Delete("/{id}", h.HandleDisband)
	return r
}
