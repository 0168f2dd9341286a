// internal/app/features/missionmentors/handler.go

// Package missionmentors exposes the mentor surface: adding mentors to a
// mission, capacity-bounded student assignment, atomic reassignment between
// mentors, and the manual status override.
package missionmentors

import (
	"context"
	"errors"
	"net/http"

	mentorstore "github.com/campusops/missionhub/internal/app/store/missionmentors"
	missionstore "github.com/campusops/missionhub/internal/app/store/missions"
	rosterstore "github.com/campusops/missionhub/internal/app/store/roster"
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

	mentors  *mentorstore.Store
	missions *missionstore.Store
	roster   *rosterstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      logger,
		mentors:  mentorstore.New(db),
		missions: missionstore.New(db),
		roster:   rosterstore.New(db, logger),
	}
}

type createInput struct {
	MissionID   string `json:"missionId" validate:"required,len=24" label:"Mission ID"`
	MentorID    string `json:"mentorId" validate:"required,len=24" label:"Mentor ID"`
	Role        string `json:"role" validate:"required,oneof=mission-lead coordinator advisor supervisor" label:"Role"`
	MaxStudents int    `json:"maxStudents" validate:"gte=0" label:"Max students"`
}

// HandleCreate handles POST /mission-mentors.
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
	missionID, err := primitive.ObjectIDFromHex(in.MissionID)
	if err != nil {
		apijson.Validation(w, "missionId is not a valid ID")
		return
	}
	mentorID, err := primitive.ObjectIDFromHex(in.MentorID)
	if err != nil {
		apijson.Validation(w, "mentorId is not a valid ID")
		return
	}

	if _, err := h.missions.GetByID(ctx, missionID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apijson.NotFound(w, "mission not found")
			return
		}
		h.Log.Error("mission-mentors: mission lookup failed", zap.Error(err))
		apijson.Internal(w)
		return
	}

	mm, err := h.mentors.Create(ctx, models.MissionMentor{
		MissionID:   missionID,
		MentorID:    mentorID,
		Role:        in.Role,
		MaxStudents: in.MaxStudents,
	})
	if err != nil {
		switch {
		case errors.Is(err, mentorstore.ErrDuplicateMentor):
			apijson.Error(w, http.StatusConflict, apijson.CodeConflict, err.Error())
		case errors.Is(err, mentorstore.ErrBadRole):
			apijson.Validation(w, err.Error())
		default:
			h.Log.Error("mission-mentors: create failed", zap.Error(err))
			apijson.Internal(w)
		}
		return
	}
	apijson.OK(w, http.StatusCreated, mm)
}

type assignInput struct {
	MissionID      string   `json:"missionId" validate:"required,len=24" label:"Mission ID"`
	MentorID       string   `json:"mentorId" validate:"required,len=24" label:"Mentor record ID"`
	StudentIDs     []string `json:"studentIds" validate:"required,min=1,dive,len=24" label:"Student IDs"`
	AssignmentType string   `json:"assignmentType,omitempty" validate:"omitempty,oneof=manual automatic" label:"Assignment type"`
}

type assignResponse struct {
	Mentor   models.MissionMentor    `json:"mentor"`
	Students []models.MissionStudent `json:"students"`
}

// HandleAssign handles POST /mission-mentors/assign-students.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	var in assignInput
	if err := apijson.Decode(r, &in); err != nil {
		apijson.Validation(w, "invalid JSON body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apijson.Validation(w, res.First())
		return
	}
	missionID, err := primitive.ObjectIDFromHex(in.MissionID)
	if err != nil {
		apijson.Validation(w, "missionId is not a valid ID")
		return
	}
	mentorRowID, err := primitive.ObjectIDFromHex(in.MentorID)
	if err != nil {
		apijson.Validation(w, "mentorId is not a valid ID")
		return
	}
	studentIDs, ok := parseIDs(w, in.StudentIDs)
	if !ok {
		return
	}

	res, err := h.roster.AssignStudentsToMentor(ctx, missionID, mentorRowID, studentIDs)
	if err != nil {
		h.writeRosterError(w, err)
		return
	}
	apijson.OK(w, http.StatusOK, assignResponse{Mentor: res.Mentor, Students: res.Students})
}

type reassignInput struct {
	MissionID       string   `json:"missionId" validate:"required,len=24" label:"Mission ID"`
	StudentIDs      []string `json:"studentIds" validate:"required,min=1,dive,len=24" label:"Student IDs"`
	FromMentorID    string   `json:"fromMentorId" validate:"required,len=24" label:"Source mentor ID"`
	ToMentorID      string   `json:"toMentorId" validate:"required,len=24" label:"Target mentor ID"`
	IsPrimaryMentor bool     `json:"isPrimaryMentor" label:"Make primary"`
}

type reassignResponse struct {
	FromMentor        models.MissionMentor `json:"fromMentor"`
	ToMentor          models.MissionMentor `json:"toMentor"`
	MovedStudentIDs   []string             `json:"movedStudentIds"`
	SkippedStudentIDs []string             `json:"skippedStudentIds"`
}

// HandleReassign handles POST /mission-mentors/reassign-students.
func (h *Handler) HandleReassign(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	var in reassignInput
	if err := apijson.Decode(r, &in); err != nil {
		apijson.Validation(w, "invalid JSON body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apijson.Validation(w, res.First())
		return
	}
	missionID, err := primitive.ObjectIDFromHex(in.MissionID)
	if err != nil {
		apijson.Validation(w, "missionId is not a valid ID")
		return
	}
	fromID, err := primitive.ObjectIDFromHex(in.FromMentorID)
	if err != nil {
		apijson.Validation(w, "fromMentorId is not a valid ID")
		return
	}
	toID, err := primitive.ObjectIDFromHex(in.ToMentorID)
	if err != nil {
		apijson.Validation(w, "toMentorId is not a valid ID")
		return
	}
	studentIDs, ok := parseIDs(w, in.StudentIDs)
	if !ok {
		return
	}

	res, err := h.roster.ReassignStudents(ctx, missionID, studentIDs, fromID, toID, in.IsPrimaryMentor)
	if err != nil {
		h.writeRosterError(w, err)
		return
	}
	apijson.OK(w, http.StatusOK, reassignResponse{
		FromMentor:        res.From,
		ToMentor:          res.To,
		MovedStudentIDs:   hexAll(res.Moved),
		SkippedStudentIDs: hexAll(res.Skipped),
	})
}

type statusInput struct {
	Status string `json:"status" validate:"required,oneof=inactive unavailable" label:"Status"`
}

// HandleSetStatus handles PATCH /mission-mentors/{id}/status. Only the
// manual override values are accepted; active/overloaded are derived from
// workload and cannot be set by hand.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apijson.Validation(w, "mentor record ID is not valid")
		return
	}
	var in statusInput
	if err := apijson.Decode(r, &in); err != nil {
		apijson.Validation(w, "invalid JSON body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apijson.Validation(w, res.First())
		return
	}

	mm, err := h.mentors.SetManualStatus(ctx, id, in.Status)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			apijson.NotFound(w, "mentor record not found")
		case errors.Is(err, mentorstore.ErrBadStatus):
			apijson.Validation(w, err.Error())
		default:
			h.Log.Error("mission-mentors: set status failed", zap.Error(err))
			apijson.Internal(w)
		}
		return
	}
	apijson.OK(w, http.StatusOK, mm)
}

// HandleGetByMentor handles GET /mission-mentors/by-mentor/{missionID}/{mentorID}:
// pair lookup by the mentor's user ID rather than the row ID, for callers
// that track mentors but not their per-mission capacity rows.
func (h *Handler) HandleGetByMentor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	missionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "missionID"))
	if err != nil {
		apijson.Validation(w, "mission ID is not valid")
		return
	}
	mentorID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "mentorID"))
	if err != nil {
		apijson.Validation(w, "mentor ID is not valid")
		return
	}

	mm, err := h.mentors.GetByMissionAndMentor(ctx, missionID, mentorID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apijson.NotFound(w, "mentor record not found")
			return
		}
		h.Log.Error("mission-mentors: pair lookup failed",
			zap.String("mission_id", missionID.Hex()),
			zap.String("mentor_id", mentorID.Hex()),
			zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.OK(w, http.StatusOK, mm)
}

type listResponse struct {
	Mentors []models.MissionMentor `json:"mentors"`
}

// HandleList handles GET /mission-mentors?missionId=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	missionID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("missionId"))
	if err != nil {
		apijson.Validation(w, "missionId query parameter is required")
		return
	}

	rows, err := h.mentors.ListByMission(ctx, missionID)
	if err != nil {
		h.Log.Error("mission-mentors: list failed",
			zap.String("mission_id", missionID.Hex()), zap.Error(err))
		apijson.Internal(w)
		return
	}
	if rows == nil {
		rows = []models.MissionMentor{}
	}
	apijson.OK(w, http.StatusOK, listResponse{Mentors: rows})
}

func (h *Handler) writeRosterError(w http.ResponseWriter, err error) {
	var (
		capErr *rosterstore.CapacityError
		taken  *rosterstore.AlreadyAssignedError
		ne     *rosterstore.NotEnrolledError
	)
	switch {
	case errors.Is(err, rosterstore.ErrMissionNotFound):
		apijson.NotFound(w, "mission not found")
	case errors.Is(err, rosterstore.ErrMentorNotFound):
		apijson.NotFound(w, "mentor record not found")
	case errors.Is(err, rosterstore.ErrSameMentor),
		errors.Is(err, rosterstore.ErrNoValidStudents):
		apijson.Validation(w, err.Error())
	case errors.As(err, &capErr):
		apijson.ErrorWithIDs(w, http.StatusBadRequest, apijson.CodeCapacityExceeded,
			err.Error(), nil, []primitive.ObjectID{capErr.MentorID})
	case errors.As(err, &taken):
		apijson.ErrorWithIDs(w, http.StatusConflict, apijson.CodeConflict,
			err.Error(), taken.StudentIDs, nil)
	case errors.As(err, &ne):
		apijson.ErrorWithIDs(w, http.StatusBadRequest, apijson.CodeValidation,
			err.Error(), ne.StudentIDs, nil)
	default:
		h.Log.Error("mission-mentors: assignment mutation failed", zap.Error(err))
		apijson.Internal(w)
	}
}

func parseIDs(w http.ResponseWriter, hexIDs []string) ([]primitive.ObjectID, bool) {
	out := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, s := range hexIDs {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			apijson.Validation(w, "studentIds contains an invalid ID: "+s)
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

func hexAll(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
