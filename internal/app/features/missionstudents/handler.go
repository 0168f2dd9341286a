// internal/app/features/missionstudents/handler.go

// Package missionstudents exposes the enrollment surface: single and bulk
// enrollment, removal, listing, and the mission-wide student status machine.
package missionstudents

import (
	"context"
	"errors"
	"net/http"

	studentstore "github.com/campusops/missionhub/internal/app/store/missionstudents"
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

	roster   *rosterstore.Store
	students *studentstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Log:      logger,
		roster:   rosterstore.New(db, logger),
		students: studentstore.New(db),
	}
}

// enrollInput accepts the single and bulk forms of enrollment: studentId or
// studentIds, not both. batchId is advisory; the mission's own batch is the
// authoritative one students are verified against.
type enrollInput struct {
	MissionID  string   `json:"missionId" validate:"required,len=24" label:"Mission ID"`
	StudentID  string   `json:"studentId,omitempty" label:"Student ID"`
	StudentIDs []string `json:"studentIds,omitempty" validate:"omitempty,dive,len=24" label:"Student IDs"`
	BatchID    string   `json:"batchId,omitempty" label:"Batch ID"`
}

type enrollResponse struct {
	Students []models.MissionStudent `json:"students"`
}

// HandleEnroll handles POST /mission-students.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	var in enrollInput
	if err := apijson.Decode(r, &in); err != nil {
		apijson.Validation(w, "invalid JSON body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apijson.Validation(w, res.First())
		return
	}
	if in.StudentID == "" && len(in.StudentIDs) == 0 {
		apijson.Validation(w, "studentId or studentIds is required")
		return
	}
	if in.StudentID != "" && len(in.StudentIDs) > 0 {
		apijson.Validation(w, "provide studentId or studentIds, not both")
		return
	}

	missionID, err := primitive.ObjectIDFromHex(in.MissionID)
	if err != nil {
		apijson.Validation(w, "missionId is not a valid ID")
		return
	}
	hexIDs := in.StudentIDs
	if in.StudentID != "" {
		hexIDs = []string{in.StudentID}
	}
	studentIDs, ok := parseIDs(w, hexIDs, "studentIds")
	if !ok {
		return
	}

	rows, err := h.roster.EnrollStudents(ctx, missionID, studentIDs)
	if err != nil {
		h.writeRosterError(w, err)
		return
	}
	apijson.OK(w, http.StatusCreated, enrollResponse{Students: rows})
}

// HandleRemove handles DELETE /mission-students/{missionID}/{studentID}.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	missionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "missionID"))
	if err != nil {
		apijson.Validation(w, "mission ID is not valid")
		return
	}
	studentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		apijson.Validation(w, "student ID is not valid")
		return
	}

	if err := h.roster.RemoveStudentFromMission(ctx, missionID, studentID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apijson.NotFound(w, "student is not enrolled in this mission")
			return
		}
		h.Log.Error("mission-students: remove failed",
			zap.String("mission_id", missionID.Hex()),
			zap.String("student_id", studentID.Hex()),
			zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.NoContent(w)
}

type listResponse struct {
	Students []models.MissionStudent `json:"students"`
}

// HandleList handles GET /mission-students?missionId=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	missionID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("missionId"))
	if err != nil {
		apijson.Validation(w, "missionId query parameter is required")
		return
	}

	rows, err := h.students.ListByMission(ctx, missionID)
	if err != nil {
		h.Log.Error("mission-students: list failed",
			zap.String("mission_id", missionID.Hex()), zap.Error(err))
		apijson.Internal(w)
		return
	}
	if rows == nil {
		rows = []models.MissionStudent{}
	}
	apijson.OK(w, http.StatusOK, listResponse{Students: rows})
}

type statusInput struct {
	Status string `json:"status" validate:"required,oneof=active inactive completed dropped on-hold" label:"Status"`
}

// HandleSetStatus handles PATCH /mission-students/{missionID}/{studentID}/status.
// This is the mission-wide status machine; group-local statuses live on the
// group document and are changed through the groups feature.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	missionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "missionID"))
	if err != nil {
		apijson.Validation(w, "mission ID is not valid")
		return
	}
	studentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		apijson.Validation(w, "student ID is not valid")
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

	if err := h.students.SetStatus(ctx, missionID, studentID, in.Status); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			apijson.NotFound(w, "student is not enrolled in this mission")
		case errors.Is(err, studentstore.ErrBadStatus):
			apijson.Validation(w, err.Error())
		default:
			h.Log.Error("mission-students: set status failed", zap.Error(err))
			apijson.Internal(w)
		}
		return
	}
	apijson.OK(w, http.StatusOK, map[string]string{"status": in.Status})
}

func (h *Handler) writeRosterError(w http.ResponseWriter, err error) {
	var (
		dup *rosterstore.AlreadyEnrolledError
		nib *rosterstore.NotInBatchError
	)
	switch {
	case errors.Is(err, rosterstore.ErrMissionNotFound):
		apijson.NotFound(w, "mission not found")
	case errors.Is(err, rosterstore.ErrMissionFull):
		apijson.Error(w, http.StatusBadRequest, apijson.CodeCapacityExceeded, err.Error())
	case errors.As(err, &dup):
		apijson.ErrorWithIDs(w, http.StatusBadRequest, apijson.CodeAlreadyEnrolled, err.Error(), dup.StudentIDs, nil)
	case errors.As(err, &nib):
		apijson.ErrorWithIDs(w, http.StatusBadRequest, apijson.CodeValidation, err.Error(), nib.StudentIDs, nil)
	default:
		h.Log.Error("mission-students: enroll failed", zap.Error(err))
		apijson.Internal(w)
	}
}

// parseIDs converts hex IDs, writing a validation error on the first bad one.
func parseIDs(w http.ResponseWriter, hexIDs []string, field string) ([]primitive.ObjectID, bool) {
	out := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, s := range hexIDs {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			apijson.Validation(w, field+" contains an invalid ID: "+s)
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}
