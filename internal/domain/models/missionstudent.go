// internal/domain/models/missionstudent.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mission-wide student statuses. This is the mission-level state machine;
// a student's standing inside a mentorship group is tracked separately on
// the group document (GroupMember.Status).
const (
	StudentActive    = "active"
	StudentInactive  = "inactive"
	StudentCompleted = "completed"
	StudentDropped   = "dropped"
	StudentOnHold    = "on-hold"
)

// MissionStudent is the per-student enrollment/progress record within one
// mission. Exactly one document per (mission_id, student_id).
type MissionStudent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MissionID primitive.ObjectID `bson:"mission_id" json:"mission_id"`
	StudentID primitive.ObjectID `bson:"student_id" json:"student_id"`
	BatchID   primitive.ObjectID `bson:"batch_id" json:"batch_id"`

	Status   string `bson:"status" json:"status"`
	Progress int    `bson:"progress" json:"progress"` // 0–100

	// Mentors routing the student within this mission. PrimaryMentorID is
	// set by the first assignment and only overwritten by a reassignment
	// with makePrimary.
	MentorIDs       []primitive.ObjectID `bson:"mentor_ids" json:"mentor_ids"`
	PrimaryMentorID *primitive.ObjectID  `bson:"primary_mentor_id,omitempty" json:"primary_mentor_id,omitempty"`

	// MentorshipGroupID is nil while ungrouped. A student belongs to at
	// most one mentorship group per mission.
	MentorshipGroupID *primitive.ObjectID `bson:"mentorship_group_id,omitempty" json:"mentorship_group_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
