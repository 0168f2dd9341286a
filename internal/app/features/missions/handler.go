// internal/app/features/missions/handler.go

// Package missions exposes the admin surface for missions themselves:
// creating one for a batch, looking it up by ID or join code, listing by
// status, and deleting an empty one. The roster engine hangs off the
// mission documents created here.
package missions

import (
	"context"
	"errors"
	"net/http"

	missionstore "github.com/campusops/missionhub/internal/app/store/missions"
	"github.com/campusops/missionhub/internal/app/system/apijson"
	"github.com/campusops/missionhub/internal/app/system/inputval"
	"github.com/campusops/missionhub/internal/app/system/timeouts"
	"github.com/campusops/missionhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger

	missions *missionstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{DB: db, Log: logger, missions: missionstore.New(db)}
}

type createInput struct {
	Title       string `json:"title" validate:"required,max=300" label:"Title"`
	Code        string `json:"code,omitempty" validate:"omitempty,max=20" label:"Code"`
	Description string `json:"description,omitempty" validate:"omitempty,max=5000" label:"Description"`
	BatchID     string `json:"batchId" validate:"required,len=24" label:"Batch ID"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=draft active paused completed archived" label:"Status"`
	MaxStudents int    `json:"maxStudents,omitempty" validate:"gte=0" label:"Max students"`
}

// HandleCreate handles POST /missions. An omitted code gets a generated
// join code; counters and ID caches start empty.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var in createInput
	if err := apijson.Decode(r, &in); err != nil {
		apijson.Validation(w, "invalid JSON body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apijson.Validation(w, res.First())
		return
	}
	batchID, err := primitive.ObjectIDFromHex(in.BatchID)
	if err != nil {
		apijson.Validation(w, "batchId is not a valid ID")
		return
	}

	m, err := h.missions.Create(ctx, models.Mission{
		Title:       in.Title,
		Code:        in.Code,
		Description: in.Description,
		BatchID:     batchID,
		Status:      in.Status,
		MaxStudents: in.MaxStudents,
	})
	if err != nil {
		if errors.Is(err, missionstore.ErrDuplicateCode) {
			apijson.Error(w, http.StatusConflict, apijson.CodeConflict, err.Error())
			return
		}
		h.Log.Error("missions: create failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.OK(w, http.StatusCreated, m)
}

// HandleGet handles GET /missions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apijson.Validation(w, "mission ID is not valid")
		return
	}

	m, err := h.missions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apijson.NotFound(w, "mission not found")
			return
		}
		h.Log.Error("missions: get failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.OK(w, http.StatusOK, m)
}

// HandleGetByCode handles GET /missions/by-code/{code}. Join codes are
// stored uppercase; lookup folds the same way.
func (h *Handler) HandleGetByCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	code := chi.URLParam(r, "code")
	if code == "" {
		apijson.Validation(w, "mission code is required")
		return
	}

	m, err := h.missions.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apijson.NotFound(w, "mission not found")
			return
		}
		h.Log.Error("missions: get by code failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.OK(w, http.StatusOK, m)
}

type listResponse struct {
	Missions []models.Mission `json:"missions"`
}

// HandleList handles GET /missions?status=. An empty status returns all.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	status := r.URL.Query().Get("status")
	if status != "" && !validMissionStatus(status) {
		apijson.Validation(w, "status must be draft, active, paused, completed or archived")
		return
	}

	missions, err := h.missions.ListByStatus(ctx, status)
	if err != nil {
		h.Log.Error("missions: list failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	if missions == nil {
		missions = []models.Mission{}
	}
	apijson.OK(w, http.StatusOK, listResponse{Missions: missions})
}

// HandleDelete handles DELETE /missions/{id}. Only empty missions may be
// deleted; a mission with roster rows must be drained first so the cached
// counters never go stale against orphaned rows.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apijson.Validation(w, "mission ID is not valid")
		return
	}

	m, err := h.missions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apijson.NotFound(w, "mission not found")
			return
		}
		h.Log.Error("missions: delete lookup failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	if m.TotalStudents > 0 || m.TotalMentors > 0 || m.TotalGroups > 0 {
		apijson.Error(w, http.StatusConflict, apijson.CodeConflict,
			"mission still has students, mentors or groups; remove them first")
		return
	}

	n, err := h.missions.Delete(ctx, id)
	if err != nil {
		h.Log.Error("missions: delete failed", zap.String("mission_id", id.Hex()), zap.Error(err))
		apijson.Internal(w)
		return
	}
	if n == 0 {
		apijson.NotFound(w, "mission not found")
		return
	}
	apijson.NoContent(w)
}

func validMissionStatus(s string) bool {
	switch s {
	case models.MissionDraft, models.MissionActive, models.MissionPaused,
		models.MissionCompleted, models.MissionArchived:
		return true
	}
	return false
}
