// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/campusops/missionhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateMission creates a test mission in the given batch with unlimited
// enrollment. Returns the created mission with its generated ID.
func (f *Fixtures) CreateMission(ctx context.Context, title string, batchID primitive.ObjectID) models.Mission {
	f.t.Helper()
	return f.CreateMissionWithCap(ctx, title, batchID, 0)
}

// CreateMissionWithCap creates a test mission with a max_students cap
// (0 = unlimited).
func (f *Fixtures) CreateMissionWithCap(ctx context.Context, title string, batchID primitive.ObjectID, maxStudents int) models.Mission {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.Mission{
		ID:            primitive.NewObjectID(),
		Code:          "M-" + primitive.NewObjectID().Hex()[:8],
		Title:         title,
		TitleCI:       text.Fold(title),
		Status:        models.MissionActive,
		BatchID:       batchID,
		MaxStudents:   maxStudents,
		StudentIDs:    []primitive.ObjectID{},
		MentorIDs:     []primitive.ObjectID{},
		GroupIDs:      []primitive.ObjectID{},
		TotalStudents: 0,
		TotalMentors:  0,
		TotalGroups:   0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := f.db.Collection("missions").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test mission: %v", err)
	}
	return m
}

// CreateUser creates a test user with the given parameters. Students should
// be created through CreateStudent so they carry a batch.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, batchID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Role:       role,
		Status:     "active",
		BatchID:    batchID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateStudent creates a student user in the given batch.
func (f *Fixtures) CreateStudent(ctx context.Context, fullName, email string, batchID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleStudent, &batchID)
}

// CreateMentorUser creates a mentor user (no batch).
func (f *Fixtures) CreateMentorUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleMentor, nil)
}

// CreateMentorRecord creates a mission_mentors row with the given cap
// (0 = unlimited) and no assigned students.
func (f *Fixtures) CreateMentorRecord(ctx context.Context, missionID, mentorID primitive.ObjectID, maxStudents int) models.MissionMentor {
	f.t.Helper()

	now := time.Now().UTC()
	mm := models.MissionMentor{
		ID:               primitive.NewObjectID(),
		MissionID:        missionID,
		MentorID:         mentorID,
		Role:             models.MentorRoleAdvisor,
		MaxStudents:      maxStudents,
		CurrentWorkload:  0,
		AssignedStudents: []primitive.ObjectID{},
		Status:           models.MentorActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := f.db.Collection("mission_mentors").InsertOne(ctx, mm); err != nil {
		f.t.Fatalf("failed to create test mentor record: %v", err)
	}
	return mm
}

// CreateStudentRecord creates a mission_students roster row directly,
// bypassing the enrollment engine.
func (f *Fixtures) CreateStudentRecord(ctx context.Context, missionID, studentID, batchID primitive.ObjectID) models.MissionStudent {
	f.t.Helper()

	now := time.Now().UTC()
	ms := models.MissionStudent{
		ID:        primitive.NewObjectID(),
		MissionID: missionID,
		StudentID: studentID,
		BatchID:   batchID,
		Status:    models.StudentActive,
		Progress:  0,
		MentorIDs: []primitive.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("mission_students").InsertOne(ctx, ms); err != nil {
		f.t.Fatalf("failed to create test student record: %v", err)
	}
	return ms
}

// CreateGroup creates a mentorship group with the given primary mentor and
// members, all in active status.
func (f *Fixtures) CreateGroup(ctx context.Context, missionID primitive.ObjectID, name string, primaryMentorID primitive.ObjectID, studentIDs []primitive.ObjectID) models.MentorshipGroup {
	f.t.Helper()

	now := time.Now().UTC()
	members := make([]models.GroupMember, len(studentIDs))
	for i, sid := range studentIDs {
		members[i] = models.GroupMember{StudentID: sid, Status: models.StudentActive}
	}
	g := models.MentorshipGroup{
		ID:        primitive.NewObjectID(),
		MissionID: missionID,
		Name:      name,
		NameCI:    text.Fold(name),
		Mentors: []models.GroupMentor{
			{MentorID: primaryMentorID, Role: models.GroupMentorPrimary, Status: models.MentorActive},
		},
		PrimaryMentorID:     primaryMentorID,
		Students:            members,
		CurrentStudentCount: len(members),
		Status:              models.GroupActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if _, err := f.db.Collection("mentorship_groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}
