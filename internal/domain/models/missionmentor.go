// internal/domain/models/missionmentor.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mentor roles within a mission.
const (
	MentorRoleMissionLead = "mission-lead"
	MentorRoleCoordinator = "coordinator"
	MentorRoleAdvisor     = "advisor"
	MentorRoleSupervisor  = "supervisor"
)

// Mentor statuses. Overloaded and active are derived from workload;
// inactive and unavailable are only ever set by an administrator.
const (
	MentorActive      = "active"
	MentorOverloaded  = "overloaded"
	MentorInactive    = "inactive"
	MentorUnavailable = "unavailable"
)

// MissionMentor is the per-mentor capacity/workload record within one
// mission. Exactly one document per (mission_id, mentor_id).
//
// Invariant: CurrentWorkload == len(AssignedStudents) at all times, and
// CurrentWorkload <= MaxStudents unless MaxStudents == 0 (unlimited).
// CurrentWorkload is only ever written as $size of assigned_students.
type MissionMentor struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MissionID primitive.ObjectID `bson:"mission_id" json:"mission_id"`
	MentorID  primitive.ObjectID `bson:"mentor_id" json:"mentor_id"`

	Role string `bson:"role" json:"role"`

	// MaxStudents caps the workload; 0 means unlimited.
	MaxStudents      int                  `bson:"max_students" json:"max_students"`
	CurrentWorkload  int                  `bson:"current_workload" json:"current_workload"`
	AssignedStudents []primitive.ObjectID `bson:"assigned_students" json:"assigned_students"`

	Status string `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// AvailableCapacity returns how many more students the mentor can take.
// A negative value is never returned; unlimited mentors report -1.
func (m MissionMentor) AvailableCapacity() int {
	if m.MaxStudents == 0 {
		return -1
	}
	if m.CurrentWorkload >= m.MaxStudents {
		return 0
	}
	return m.MaxStudents - m.CurrentWorkload
}
