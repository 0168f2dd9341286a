// internal/app/store/mentorshipgroups/groupstore.go

// Package groupstore forms and manages mentorship groups. Group membership
// is constrained to the mission's own mentors and students, a student sits
// in at most one active group per mission, and the denormalized
// mentorship_group_id stamp on the student rows is written in the same
// transaction as the group itself.
package groupstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusops/missionhub/internal/app/system/status"
	"github.com/campusops/missionhub/internal/app/system/txn"
	"github.com/campusops/missionhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Store struct {
	db       *mongo.Database
	c        *mongo.Collection
	missions *mongo.Collection
	mentors  *mongo.Collection
	students *mongo.Collection
	log      *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		db:       db,
		c:        db.Collection("mentorship_groups"),
		missions: db.Collection("missions"),
		mentors:  db.Collection("mission_mentors"),
		students: db.Collection("mission_students"),
		log:      log,
	}
}

var (
	ErrMissionNotFound    = errors.New("mission not found")
	ErrGroupNotFound      = errors.New("mentorship group not found")
	ErrDuplicateGroupName = errors.New("a group with this name already exists in the mission")
	ErrBadMentorRole      = errors.New("invalid group mentor role")
	ErrNoPrimaryMentor    = errors.New("a group needs exactly one primary mentor")
	ErrBadMemberStatus    = errors.New("invalid group-local member status")
	ErrGroupFull          = errors.New("group student capacity exceeded")
)

// InvalidMentorError reports group mentors that have no mentor record in
// the mission.
type InvalidMentorError struct {
	MentorIDs []primitive.ObjectID
}

func (e *InvalidMentorError) Error() string {
	return fmt.Sprintf("%d mentor(s) are not mentors of this mission", len(e.MentorIDs))
}

// NotEnrolledError reports group students that are not enrolled in the
// mission.
type NotEnrolledError struct {
	StudentIDs []primitive.ObjectID
}

func (e *NotEnrolledError) Error() string {
	return fmt.Sprintf("%d student(s) are not enrolled in this mission", len(e.StudentIDs))
}

// AlreadyGroupedError reports students that already belong to an active or
// paused group in the mission.
type AlreadyGroupedError struct {
	StudentIDs []primitive.ObjectID
}

func (e *AlreadyGroupedError) Error() string {
	return fmt.Sprintf("%d student(s) already belong to a group in this mission", len(e.StudentIDs))
}

// CreateParams describes a group to form. Mentor roles must include
// exactly one primary; students join with the active group-local status.
type CreateParams struct {
	MissionID   primitive.ObjectID
	Name        string
	Description string
	Mentors     []models.GroupMentor
	StudentIDs  []primitive.ObjectID
	MaxStudents int
	Meetings    []models.MeetingSlot
}

func validGroupMentorRole(role string) bool {
	switch role {
	case models.GroupMentorPrimary, models.GroupMentorSecondary, models.GroupMentorModerator:
		return true
	}
	return false
}

// Create forms a group inside one transaction: membership is validated
// against the mission's mentor and student rosters, the one-active-group
// invariant is checked against live groups, the group document is inserted
// (the name_ci unique index rejects duplicate names), every member's
// roster row is stamped with the group ID, and the mission's group cache
// and total_groups are recounted.
func (s *Store) Create(ctx context.Context, p CreateParams) (models.MentorshipGroup, error) {
	if p.MaxStudents < 0 {
		return models.MentorshipGroup{}, errors.New("maxStudents must be >= 0")
	}
	primaries := 0
	for _, gm := range p.Mentors {
		if !validGroupMentorRole(gm.Role) {
			return models.MentorshipGroup{}, ErrBadMentorRole
		}
		if gm.Role == models.GroupMentorPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		return models.MentorshipGroup{}, ErrNoPrimaryMentor
	}
	if p.MaxStudents > 0 && len(p.StudentIDs) > p.MaxStudents {
		return models.MentorshipGroup{}, ErrGroupFull
	}

	now := time.Now().UTC()
	g := models.MentorshipGroup{
		ID:                  primitive.NewObjectID(),
		MissionID:           p.MissionID,
		Name:                p.Name,
		NameCI:              text.Fold(p.Name),
		Description:         p.Description,
		Mentors:             make([]models.GroupMentor, len(p.Mentors)),
		Students:            make([]models.GroupMember, len(p.StudentIDs)),
		MaxStudents:         p.MaxStudents,
		CurrentStudentCount: len(p.StudentIDs),
		Status:              models.GroupActive,
		MeetingSchedule:     p.Meetings,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for i, gm := range p.Mentors {
		if gm.Status == "" {
			gm.Status = models.MentorActive
		}
		g.Mentors[i] = gm
		if gm.Role == models.GroupMentorPrimary {
			g.PrimaryMentorID = gm.MentorID
		}
	}
	for i, sid := range p.StudentIDs {
		g.Students[i] = models.GroupMember{StudentID: sid, Status: models.StudentActive}
	}

	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.missions.FindOne(ctx, bson.M{"_id": p.MissionID}).Err(); err != nil {
			if err == mongo.ErrNoDocuments {
				return ErrMissionNotFound
			}
			return err
		}

		if bad, err := s.missingMentors(ctx, p.MissionID, g.Mentors); err != nil {
			return err
		} else if len(bad) > 0 {
			return &InvalidMentorError{MentorIDs: bad}
		}

		if bad, err := s.missingStudents(ctx, p.MissionID, p.StudentIDs); err != nil {
			return err
		} else if len(bad) > 0 {
			return &NotEnrolledError{StudentIDs: bad}
		}

		// One live group per student: disbanded groups don't count.
		if taken, err := s.groupedStudents(ctx, p.MissionID, p.StudentIDs); err != nil {
			return err
		} else if len(taken) > 0 {
			return &AlreadyGroupedError{StudentIDs: taken}
		}

		if _, err := s.c.InsertOne(ctx, g); err != nil {
			if wafflemongo.IsDup(err) {
				return ErrDuplicateGroupName
			}
			return err
		}

		if len(p.StudentIDs) > 0 {
			_, err := s.students.UpdateMany(ctx,
				bson.M{"mission_id": p.MissionID, "student_id": bson.M{"$in": p.StudentIDs}},
				bson.M{"$set": bson.M{"mentorship_group_id": g.ID, "updated_at": now}})
			if err != nil {
				return err
			}
		}

		_, err := s.missions.UpdateByID(ctx, p.MissionID, mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"group_ids":  bson.M{"$setUnion": bson.A{"$group_ids", bson.A{g.ID}}},
				"updated_at": now,
			}}},
			{{Key: "$set", Value: bson.M{"total_groups": bson.M{"$size": "$group_ids"}}}},
		})
		return err
	})
	if err != nil {
		return models.MentorshipGroup{}, err
	}
	return g, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.MentorshipGroup, error) {
	var g models.MentorshipGroup
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.MentorshipGroup{}, ErrGroupNotFound
		}
		return models.MentorshipGroup{}, err
	}
	return g, nil
}

func (s *Store) ListByMission(ctx context.Context, missionID primitive.ObjectID) ([]models.MentorshipGroup, error) {
	cur, err := s.c.Find(ctx, bson.M{"mission_id": missionID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.MentorshipGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SetMemberStatus moves the group-local status machine for one member.
// The student's mission-wide status is untouched.
func (s *Store) SetMemberStatus(ctx context.Context, groupID, studentID primitive.ObjectID, stat string) (models.MentorshipGroup, error) {
	if !status.ValidGroupMember(stat) {
		return models.MentorshipGroup{}, ErrBadMemberStatus
	}
	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": groupID, "students.student_id": studentID},
		bson.M{"$set": bson.M{
			"students.$.status": stat,
			"updated_at":        time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var g models.MentorshipGroup
	if err := res.Decode(&g); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.MentorshipGroup{}, ErrGroupNotFound
		}
		return models.MentorshipGroup{}, err
	}
	return g, nil
}

// SetStatus sets the group's own status (active/paused). Disbanding goes
// through Disband so the member stamps are cleaned up.
func (s *Store) SetStatus(ctx context.Context, groupID primitive.ObjectID, stat string) (models.MentorshipGroup, error) {
	if stat != models.GroupActive && stat != models.GroupPaused {
		return models.MentorshipGroup{}, errors.New("group status must be active or paused")
	}
	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": groupID, "status": bson.M{"$ne": models.GroupDisbanded}},
		bson.M{"$set": bson.M{"status": stat, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var g models.MentorshipGroup
	if err := res.Decode(&g); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.MentorshipGroup{}, ErrGroupNotFound
		}
		return models.MentorshipGroup{}, err
	}
	return g, nil
}

// Disband retires a group: status goes to disbanded, members lose their
// group stamp (freeing them to join another group), and the mission's
// group cache is recounted. The document is kept for history.
func (s *Store) Disband(ctx context.Context, groupID primitive.ObjectID) error {
	now := time.Now().UTC()
	return txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var g models.MentorshipGroup
		err := s.c.FindOneAndUpdate(ctx,
			bson.M{"_id": groupID, "status": bson.M{"$ne": models.GroupDisbanded}},
			bson.M{"$set": bson.M{"status": models.GroupDisbanded, "updated_at": now}}).Decode(&g)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return ErrGroupNotFound
			}
			return err
		}

		_, err = s.students.UpdateMany(ctx,
			bson.M{"mission_id": g.MissionID, "mentorship_group_id": groupID},
			bson.M{"$unset": bson.M{"mentorship_group_id": ""}, "$set": bson.M{"updated_at": now}})
		if err != nil {
			return err
		}

		_, err = s.missions.UpdateByID(ctx, g.MissionID, mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"group_ids":  bson.M{"$setDifference": bson.A{"$group_ids", bson.A{groupID}}},
				"updated_at": now,
			}}},
			{{Key: "$set", Value: bson.M{"total_groups": bson.M{"$size": "$group_ids"}}}},
		})
		return err
	})
}

// missingMentors returns the group mentor IDs with no mission_mentors row.
func (s *Store) missingMentors(ctx context.Context, missionID primitive.ObjectID, mentors []models.GroupMentor) ([]primitive.ObjectID, error) {
	if len(mentors) == 0 {
		return nil, nil
	}
	ids := make([]primitive.ObjectID, len(mentors))
	for i, gm := range mentors {
		ids[i] = gm.MentorID
	}
	cur, err := s.mentors.Find(ctx, bson.M{
		"mission_id": missionID,
		"mentor_id":  bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	have := make(map[primitive.ObjectID]bool, len(ids))
	for cur.Next(ctx) {
		var row struct {
			MentorID primitive.ObjectID `bson:"mentor_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		have[row.MentorID] = true
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	var missing []primitive.ObjectID
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// missingStudents returns the IDs with no mission_students row.
func (s *Store) missingStudents(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.students.Find(ctx, bson.M{
		"mission_id": missionID,
		"student_id": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	have := make(map[primitive.ObjectID]bool, len(ids))
	for cur.Next(ctx) {
		var row struct {
			StudentID primitive.ObjectID `bson:"student_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		have[row.StudentID] = true
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	var missing []primitive.ObjectID
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// groupedStudents returns which of ids already sit in a non-disbanded
// group of the mission.
func (s *Store) groupedStudents(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{
		"mission_id":          missionID,
		"status":              bson.M{"$ne": models.GroupDisbanded},
		"students.student_id": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	taken := make(map[primitive.ObjectID]bool)
	for cur.Next(ctx) {
		var row struct {
			Students []models.GroupMember `bson:"students"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		for _, m := range row.Students {
			taken[m.StudentID] = true
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	var out []primitive.ObjectID
	for _, id := range ids {
		if taken[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
