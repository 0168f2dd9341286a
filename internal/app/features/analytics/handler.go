// internal/app/features/analytics/handler.go

// Package analytics serves read-only rollups over the roster collections.
// Everything is computed from the consistent denormalized counters and the
// authoritative rows at read time.
package analytics

import (
	"context"
	"errors"
	"net/http"

	"github.com/campusops/missionhub/internal/app/store/queries/analyticsqueries"
	"github.com/campusops/missionhub/internal/app/system/apijson"
	"github.com/campusops/missionhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{DB: db, Log: logger}
}

type missionAnalytics struct {
	Summary        analyticsqueries.MissionSummary   `json:"summary"`
	StatusCounts   map[string]int64                  `json:"statusCounts"`
	MentorWorkload []analyticsqueries.MentorWorkload `json:"mentorWorkloads"`
}

type groupAnalytics struct {
	Groups []analyticsqueries.GroupSummary `json:"groups"`
}

// Serve handles GET /v2/analytics?type=missions|groups&missionId=.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	missionID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("missionId"))
	if err != nil {
		apijson.Validation(w, "missionId query parameter is required")
		return
	}

	switch r.URL.Query().Get("type") {
	case "missions":
		h.serveMission(ctx, w, missionID)
	case "groups":
		h.serveGroups(ctx, w, missionID)
	default:
		apijson.Validation(w, "type must be missions or groups")
	}
}

func (h *Handler) serveMission(ctx context.Context, w http.ResponseWriter, missionID primitive.ObjectID) {
	summary, err := analyticsqueries.SummarizeMission(ctx, h.DB, missionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apijson.NotFound(w, "mission not found")
			return
		}
		h.Log.Error("analytics: mission summary failed",
			zap.String("mission_id", missionID.Hex()), zap.Error(err))
		apijson.Internal(w)
		return
	}

	counts, err := analyticsqueries.StudentStatusCounts(ctx, h.DB, missionID)
	if err != nil {
		h.Log.Error("analytics: status counts failed", zap.Error(err))
		apijson.Internal(w)
		return
	}

	workloads, err := analyticsqueries.MentorWorkloads(ctx, h.DB, missionID)
	if err != nil {
		h.Log.Error("analytics: mentor workloads failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	if workloads == nil {
		workloads = []analyticsqueries.MentorWorkload{}
	}

	apijson.OK(w, http.StatusOK, missionAnalytics{
		Summary:        summary,
		StatusCounts:   counts,
		MentorWorkload: workloads,
	})
}

func (h *Handler) serveGroups(ctx context.Context, w http.ResponseWriter, missionID primitive.ObjectID) {
	groups, err := analyticsqueries.GroupSummaries(ctx, h.DB, missionID)
	if err != nil {
		h.Log.Error("analytics: group summaries failed",
			zap.String("mission_id", missionID.Hex()), zap.Error(err))
		apijson.Internal(w)
		return
	}
	if groups == nil {
		groups = []analyticsqueries.GroupSummary{}
	}
	apijson.OK(w, http.StatusOK, groupAnalytics{Groups: groups})
}
