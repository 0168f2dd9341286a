// internal/app/store/missionmentors/mentorstore.go
package mentorstore

import (
	"context"
	"errors"
	"time"

	"github.com/campusops/missionhub/internal/app/system/status"
	"github.com/campusops/missionhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides reads and row-local mutations for mission_mentors.
// assigned_students and current_workload are written only by the roster
// store so the workload invariants hold.
type Store struct {
	c        *mongo.Collection
	missions *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("mission_mentors"),
		missions: db.Collection("missions"),
	}
}

var (
	ErrDuplicateMentor = errors.New("mentor is already assigned to this mission")
	ErrBadRole         = errors.New("invalid mentor role")
	ErrBadStatus       = errors.New("status must be inactive or unavailable (active/overloaded are derived)")
)

func validRole(role string) bool {
	switch role {
	case models.MentorRoleMissionLead, models.MentorRoleCoordinator,
		models.MentorRoleAdvisor, models.MentorRoleSupervisor:
		return true
	}
	return false
}

// Create adds a mentor to a mission: one capacity record plus the cached
// mentor ID on the mission document, with total_mentors recounted from
// the array in the same update.
func (s *Store) Create(ctx context.Context, mm models.MissionMentor) (models.MissionMentor, error) {
	if !validRole(mm.Role) {
		return models.MissionMentor{}, ErrBadRole
	}
	if mm.MaxStudents < 0 {
		return models.MissionMentor{}, errors.New("maxStudents must be >= 0")
	}

	now := time.Now().UTC()
	mm.ID = primitive.NewObjectID()
	mm.AssignedStudents = []primitive.ObjectID{}
	mm.CurrentWorkload = 0
	if mm.Status == "" {
		mm.Status = models.MentorActive
	}
	mm.CreatedAt = now
	mm.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, mm); err != nil {
		if wafflemongo.IsDup(err) {
			return models.MissionMentor{}, ErrDuplicateMentor
		}
		return models.MissionMentor{}, err
	}

	_, err := s.missions.UpdateByID(ctx, mm.MissionID, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"mentor_ids": bson.M{"$setUnion": bson.A{"$mentor_ids", bson.A{mm.MentorID}}},
			"updated_at": now,
		}}},
		{{Key: "$set", Value: bson.M{"total_mentors": bson.M{"$size": "$mentor_ids"}}}},
	})
	if err != nil {
		return models.MissionMentor{}, err
	}
	return mm, nil
}

func (s *Store) GetByMissionAndMentor(ctx context.Context, missionID, mentorID primitive.ObjectID) (models.MissionMentor, error) {
	var mm models.MissionMentor
	err := s.c.FindOne(ctx, bson.M{"mission_id": missionID, "mentor_id": mentorID}).Decode(&mm)
	if err != nil {
		return models.MissionMentor{}, err
	}
	return mm, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.MissionMentor, error) {
	var mm models.MissionMentor
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&mm); err != nil {
		return models.MissionMentor{}, err
	}
	return mm, nil
}

func (s *Store) ListByMission(ctx context.Context, missionID primitive.ObjectID) ([]models.MissionMentor, error) {
	cur, err := s.c.Find(ctx, bson.M{"mission_id": missionID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.MissionMentor
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SetManualStatus applies an administrator override (inactive or
// unavailable). The override holds until the next assignment mutation
// re-derives status from workload.
func (s *Store) SetManualStatus(ctx context.Context, id primitive.ObjectID, stat string) (models.MissionMentor, error) {
	if !status.IsManualMentorStatus(stat) {
		return models.MissionMentor{}, ErrBadStatus
	}
	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": stat, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var mm models.MissionMentor
	if err := res.Decode(&mm); err != nil {
		return models.MissionMentor{}, err
	}
	return mm, nil
}
