// internal/app/store/missionstudents/studentstore.go
package studentstore

import (
	"context"
	"errors"
	"time"

	"github.com/campusops/missionhub/internal/app/system/status"
	"github.com/campusops/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store provides reads and row-local mutations for mission_students.
// Enrollment, removal, mentor routing and grouping go through the roster
// and group stores, which are the only writers of mentor_ids,
// primary_mentor_id and mentorship_group_id.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("mission_students")}
}

var ErrBadStatus = errors.New("invalid mission-level student status")

func (s *Store) GetByMissionAndStudent(ctx context.Context, missionID, studentID primitive.ObjectID) (models.MissionStudent, error) {
	var ms models.MissionStudent
	err := s.c.FindOne(ctx, bson.M{"mission_id": missionID, "student_id": studentID}).Decode(&ms)
	if err != nil {
		return models.MissionStudent{}, err
	}
	return ms, nil
}

func (s *Store) ListByMission(ctx context.Context, missionID primitive.ObjectID) ([]models.MissionStudent, error) {
	cur, err := s.c.Find(ctx, bson.M{"mission_id": missionID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.MissionStudent
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// EnrolledSet returns which of ids currently have a roster row in the
// mission. The assignment engine uses it for fail-fast checks; the
// authoritative re-check happens inside the transaction.
func (s *Store) EnrolledSet(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{
		"mission_id": missionID,
		"student_id": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			StudentID primitive.ObjectID `bson:"student_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.StudentID] = true
	}
	return out, cur.Err()
}

// SetStatus moves the mission-wide status machine for one student. It
// never touches any group-local status.
func (s *Store) SetStatus(ctx context.Context, missionID, studentID primitive.ObjectID, stat string) error {
	if !status.ValidMissionStudent(stat) {
		return ErrBadStatus
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"mission_id": missionID, "student_id": studentID},
		bson.M{"$set": bson.M{"status": stat, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetProgress records progress (0–100) for one student.
func (s *Store) SetProgress(ctx context.Context, missionID, studentID primitive.ObjectID, progress int) error {
	if progress < 0 || progress > 100 {
		return errors.New("progress must be between 0 and 100")
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"mission_id": missionID, "student_id": studentID},
		bson.M{"$set": bson.M{"progress": progress, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
