// internal/app/features/mentorshipgroups/handler.go

// Package mentorshipgroups exposes group formation, lookup, the group-local
// member status machine, and disbanding.
package mentorshipgroups

import (
	"context"
	"errors"
	"net/http"

	groupstore "github.com/campusops/missionhub/internal/app/store/mentorshipgroups"
	"github.com/campusops/missionhub/internal/app/system/apijson"
	"github.com/campusops/missionhub/internal/app/system/htmlsanitize"
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

	groups *groupstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{DB: db, Log: logger, groups: groupstore.New(db, logger)}
}

type groupMentorInput struct {
	MentorID string `json:"mentorId" validate:"required,len=24" label:"Mentor ID"`
	Role     string `json:"role" validate:"required,oneof=primary secondary moderator" label:"Mentor role"`
}

type meetingSlotInput struct {
	DayOfWeek       int    `json:"dayOfWeek" label:"Day of week"`
	Time            string `json:"time" label:"Meeting time"`
	DurationMinutes int    `json:"durationMinutes" label:"Meeting duration"`
}

type createInput struct {
	MissionID       string             `json:"missionId" validate:"required,len=24" label:"Mission ID"`
	GroupName       string             `json:"groupName" validate:"required,max=200" label:"Group name"`
	Description     string             `json:"description,omitempty" validate:"omitempty,max=2000" label:"Description"`
	Mentors         []groupMentorInput `json:"mentors" validate:"required,min=1,dive" label:"Mentors"`
	Students        []string           `json:"students,omitempty" validate:"omitempty,dive,len=24" label:"Students"`
	MeetingSchedule []meetingSlotInput `json:"meetingSchedule,omitempty" label:"Meeting schedule"`
	MaxStudents     int                `json:"maxStudents,omitempty" validate:"gte=0" label:"Max students"`
}

// HandleCreate handles POST /mentorship-groups.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
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
	for _, slot := range in.MeetingSchedule {
		if err := inputval.CheckMeetingSlot(slot.DayOfWeek, slot.Time, slot.DurationMinutes); err != nil {
			apijson.Validation(w, err.Error())
			return
		}
	}

	missionID, err := primitive.ObjectIDFromHex(in.MissionID)
	if err != nil {
		apijson.Validation(w, "missionId is not a valid ID")
		return
	}
	mentors := make([]models.GroupMentor, 0, len(in.Mentors))
	for _, gm := range in.Mentors {
		id, err := primitive.ObjectIDFromHex(gm.MentorID)
		if err != nil {
			apijson.Validation(w, "mentors contains an invalid ID: "+gm.MentorID)
			return
		}
		mentors = append(mentors, models.GroupMentor{MentorID: id, Role: gm.Role})
	}
	studentIDs := make([]primitive.ObjectID, 0, len(in.Students))
	for _, s := range in.Students {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			apijson.Validation(w, "students contains an invalid ID: "+s)
			return
		}
		studentIDs = append(studentIDs, id)
	}
	meetings := make([]models.MeetingSlot, 0, len(in.MeetingSchedule))
	for _, slot := range in.MeetingSchedule {
		meetings = append(meetings, models.MeetingSlot{
			DayOfWeek:       slot.DayOfWeek,
			Time:            slot.Time,
			DurationMinutes: slot.DurationMinutes,
		})
	}

	g, err := h.groups.Create(ctx, groupstore.CreateParams{
		MissionID:   missionID,
		Name:        in.GroupName,
		Description: htmlsanitize.PlainText(in.Description),
		Mentors:     mentors,
		StudentIDs:  studentIDs,
		MaxStudents: in.MaxStudents,
		Meetings:    meetings,
	})
	if err != nil {
		h.writeGroupError(w, err)
		return
	}
	apijson.OK(w, http.StatusCreated, g)
}

// HandleGet handles GET /mentorship-groups/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apijson.Validation(w, "group ID is not valid")
		return
	}

	g, err := h.groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, groupstore.ErrGroupNotFound) {
			apijson.NotFound(w, "mentorship group not found")
			return
		}
		h.Log.Error("mentorship-groups: get failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.OK(w, http.StatusOK, g)
}

type listResponse struct {
	Groups []models.MentorshipGroup `json:"groups"`
}

// HandleList handles GET /mentorship-groups?missionId=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	missionID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("missionId"))
	if err != nil {
		apijson.Validation(w, "missionId query parameter is required")
		return
	}

	groups, err := h.groups.ListByMission(ctx, missionID)
	if err != nil {
		h.Log.Error("mentorship-groups: list failed",
			zap.String("mission_id", missionID.Hex()), zap.Error(err))
		apijson.Internal(w)
		return
	}
	if groups == nil {
		groups = []models.MentorshipGroup{}
	}
	apijson.OK(w, http.StatusOK, listResponse{Groups: groups})
}

type memberStatusInput struct {
	Status string `json:"status" validate:"required,oneof=active inactive completed dropped on-hold" label:"Status"`
}

// HandleSetMemberStatus handles
// PATCH /mentorship-groups/{id}/members/{studentID}/status. This is the
// group-local machine; the student's mission-wide status is untouched.
func (h *Handler) HandleSetMemberStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apijson.Validation(w, "group ID is not valid")
		return
	}
	studentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		apijson.Validation(w, "student ID is not valid")
		return
	}
	var in memberStatusInput
	if err := apijson.Decode(r, &in); err != nil {
		apijson.Validation(w, "invalid JSON body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apijson.Validation(w, res.First())
		return
	}

	g, err := h.groups.SetMemberStatus(ctx, groupID, studentID, in.Status)
	if err != nil {
		switch {
		case errors.Is(err, groupstore.ErrGroupNotFound):
			apijson.NotFound(w, "group or member not found")
		case errors.Is(err, groupstore.ErrBadMemberStatus):
			apijson.Validation(w, err.Error())
		default:
			h.Log.Error("mentorship-groups: set member status failed", zap.Error(err))
			apijson.Internal(w)
		}
		return
	}
	apijson.OK(w, http.StatusOK, g)
}

// HandleDisband handles DELETE /mentorship-groups/{id}.
func (h *Handler) HandleDisband(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apijson.Validation(w, "group ID is not valid")
		return
	}

	if err := h.groups.Disband(ctx, id); err != nil {
		if errors.Is(err, groupstore.ErrGroupNotFound) {
			apijson.NotFound(w, "mentorship group not found")
			return
		}
		h.Log.Error("mentorship-groups: disband failed",
			zap.String("group_id", id.Hex()), zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.NoContent(w)
}

func (h *Handler) writeGroupError(w http.ResponseWriter, err error) {
	var (
		im *groupstore.InvalidMentorError
		ne *groupstore.NotEnrolledError
		ag *groupstore.AlreadyGroupedError
	)
	switch {
	case errors.Is(err, groupstore.ErrMissionNotFound):
		apijson.NotFound(w, "mission not found")
	case errors.Is(err, groupstore.ErrDuplicateGroupName):
		apijson.Error(w, http.StatusConflict, apijson.CodeDuplicateGroupName, err.Error())
	case errors.Is(err, groupstore.ErrBadMentorRole),
		errors.Is(err, groupstore.ErrNoPrimaryMentor),
		errors.Is(err, groupstore.ErrGroupFull):
		apijson.Validation(w, err.Error())
	case errors.As(err, &im):
		apijson.ErrorWithIDs(w, http.StatusNotFound, apijson.CodeInvalidMentor,
			err.Error(), nil, im.MentorIDs)
	case errors.As(err, &ne):
		apijson.ErrorWithIDs(w, http.StatusBadRequest, apijson.CodeValidation,
			err.Error(), ne.StudentIDs, nil)
	case errors.As(err, &ag):
		apijson.ErrorWithIDs(w, http.StatusConflict, apijson.CodeStudentAlreadyGrouped,
			err.Error(), ag.StudentIDs, nil)
	default:
		h.Log.Error("mentorship-groups: create failed", zap.Error(err))
		apijson.Internal(w)
	}
}
