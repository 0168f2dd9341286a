// internal/app/store/queries/analyticsqueries/analyticsqueries.go

// Package analyticsqueries provides complex read-only aggregations for the
// mission analytics endpoint. Everything here is derived from the roster
// collections at read time; nothing writes.
package analyticsqueries

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MissionSummary is the per-mission analytics rollup.
type MissionSummary struct {
	MissionID       primitive.ObjectID `bson:"_id" json:"mission_id"`
	Title           string             `bson:"title" json:"title"`
	Status          string             `bson:"status" json:"status"`
	TotalStudents   int                `bson:"total_students" json:"total_students"`
	TotalMentors    int                `bson:"total_mentors" json:"total_mentors"`
	TotalGroups     int                `bson:"total_groups" json:"total_groups"`
	AssignedCount   int                `bson:"assigned_count" json:"assigned_count"`
	UnassignedCount int                `bson:"unassigned_count" json:"unassigned_count"`
	AvgProgress     float64            `bson:"avg_progress" json:"avg_progress"`
}

// StudentStatusCounts returns how many students sit in each mission-wide
// status for the mission.
func StudentStatusCounts(ctx context.Context, db *mongo.Database, missionID primitive.ObjectID) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"mission_id": missionID}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	}
	cur, err := db.Collection("mission_students").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.Count
	}
	return out, cur.Err()
}

// MentorWorkload is one mentor's load within a mission.
type MentorWorkload struct {
	MentorID    primitive.ObjectID `bson:"mentor_id" json:"mentor_id"`
	Role        string             `bson:"role" json:"role"`
	Status      string             `bson:"status" json:"status"`
	Workload    int                `bson:"current_workload" json:"current_workload"`
	MaxStudents int                `bson:"max_students" json:"max_students"`
	Utilization float64            `bson:"utilization" json:"utilization"`
}

// MentorWorkloads returns per-mentor load for a mission, with utilization
// computed against max_students (0 cap reports 0 utilization).
func MentorWorkloads(ctx context.Context, db *mongo.Database, missionID primitive.ObjectID) ([]MentorWorkload, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"mission_id": missionID}},
		{"$set": bson.M{
			"utilization": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{"$max_students", 0}},
				bson.M{"$divide": bson.A{"$current_workload", "$max_students"}},
				0,
			}},
		}},
		{"$sort": bson.M{"current_workload": -1}},
	}
	cur, err := db.Collection("mission_mentors").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []MentorWorkload
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SummarizeMission computes the rollup for one mission: the cached counters
// off the mission document, the assigned/unassigned split from the student
// rows, and the mean progress.
func SummarizeMission(ctx context.Context, db *mongo.Database, missionID primitive.ObjectID) (MissionSummary, error) {
	var s MissionSummary
	err := db.Collection("missions").FindOne(ctx, bson.M{"_id": missionID}).Decode(&s)
	if err != nil {
		return MissionSummary{}, err
	}

	pipeline := []bson.M{
		{"$match": bson.M{"mission_id": missionID}},
		{"$group": bson.M{
			"_id": nil,
			"assigned": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{bson.M{"$size": bson.M{"$ifNull": bson.A{"$mentor_ids", bson.A{}}}}, 0}},
				1, 0,
			}}},
			"total":        bson.M{"$sum": 1},
			"avg_progress": bson.M{"$avg": "$progress"},
		}},
	}
	cur, err := db.Collection("mission_students").Aggregate(ctx, pipeline)
	if err != nil {
		return MissionSummary{}, err
	}
	defer cur.Close(ctx)

	if cur.Next(ctx) {
		var row struct {
			Assigned    int     `bson:"assigned"`
			Total       int     `bson:"total"`
			AvgProgress float64 `bson:"avg_progress"`
		}
		if err := cur.Decode(&row); err != nil {
			return MissionSummary{}, err
		}
		s.AssignedCount = row.Assigned
		s.UnassignedCount = row.Total - row.Assigned
		s.AvgProgress = row.AvgProgress
	}
	return s, cur.Err()
}

// GroupSummary is the per-group analytics rollup for a mission.
type GroupSummary struct {
	GroupID       primitive.ObjectID `bson:"_id" json:"group_id"`
	Name          string             `bson:"name" json:"name"`
	Status        string             `bson:"status" json:"status"`
	StudentCount  int                `bson:"current_student_count" json:"student_count"`
	MentorCount   int                `bson:"mentor_count" json:"mentor_count"`
	ActiveMembers int                `bson:"active_members" json:"active_members"`
}

// GroupSummaries returns one row per non-disbanded group in the mission,
// with the active-member count derived from the group-local statuses.
func GroupSummaries(ctx context.Context, db *mongo.Database, missionID primitive.ObjectID) ([]GroupSummary, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"mission_id": missionID, "status": bson.M{"$ne": "disbanded"}}},
		{"$set": bson.M{
			"mentor_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$mentors", bson.A{}}}},
			"active_members": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$students", bson.A{}}},
				"cond":  bson.M{"$eq": bson.A{"$$this.status", "active"}},
			}}},
		}},
		{"$sort": bson.M{"name_ci": 1}},
	}
	cur, err := db.Collection("mentorship_groups").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []GroupSummary
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
