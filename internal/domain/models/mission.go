// internal/domain/models/mission.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mission statuses.
const (
	MissionDraft     = "draft"
	MissionActive    = "active"
	MissionPaused    = "paused"
	MissionCompleted = "completed"
	MissionArchived  = "archived"
)

// Mission is a time-boxed cohort/program instance students and mentors
// are enrolled into.
//
// NOTE:
//   - StudentIDs/MentorIDs/GroupIDs are caches of the authoritative
//     mission_students / mission_mentors / mentorship_groups rows.
//   - TotalStudents/TotalMentors/TotalGroups are always written as the
//     $size of the corresponding array in the same update, never
//     incremented on their own.
type Mission struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	Code    string             `bson:"code" json:"code"`
	Title   string             `bson:"title" json:"title"`
	TitleCI string             `bson:"title_ci" json:"title_ci"`

	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Status      string             `bson:"status" json:"status"`
	BatchID     primitive.ObjectID `bson:"batch_id" json:"batch_id"`

	// MaxStudents caps enrollment; 0 means unlimited.
	MaxStudents int `bson:"max_students" json:"max_students"`

	StudentIDs []primitive.ObjectID `bson:"student_ids" json:"student_ids"`
	MentorIDs  []primitive.ObjectID `bson:"mentor_ids" json:"mentor_ids"`
	GroupIDs   []primitive.ObjectID `bson:"group_ids" json:"group_ids"`

	TotalStudents int `bson:"total_students" json:"total_students"`
	TotalMentors  int `bson:"total_mentors" json:"total_mentors"`
	TotalGroups   int `bson:"total_groups" json:"total_groups"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
