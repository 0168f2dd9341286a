// internal/domain/models/mentorshipgroup.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group mentor roles.
const (
	GroupMentorPrimary   = "primary"
	GroupMentorSecondary = "secondary"
	GroupMentorModerator = "moderator"
)

// Group statuses.
const (
	GroupActive    = "active"
	GroupPaused    = "paused"
	GroupDisbanded = "disbanded"
)

// GroupMentor is a mentor's membership in a mentorship group. Status is
// the group-local status, independent of the mentor's mission-wide status.
type GroupMentor struct {
	MentorID primitive.ObjectID `bson:"mentor_id" json:"mentor_id"`
	Role     string             `bson:"role" json:"role"`
	Status   string             `bson:"status" json:"status"`
}

// GroupMember is a student's membership in a mentorship group. Status is
// the group-local status: a student can be active at the mission level and
// on-hold within one group.
type GroupMember struct {
	StudentID primitive.ObjectID `bson:"student_id" json:"student_id"`
	Status    string             `bson:"status" json:"status"`
}

// MeetingSlot is one recurring meeting of a group.
type MeetingSlot struct {
	DayOfWeek       int    `bson:"day_of_week" json:"day_of_week"` // 0 = Sunday … 6 = Saturday
	Time            string `bson:"time" json:"time"`               // "HH:MM", 24-hour
	DurationMinutes int    `bson:"duration_minutes" json:"duration_minutes"`
}

// MentorshipGroup is a sub-team of mentors and students within a mission.
// Mentors/students are constrained to be a subset of the mission's own
// membership. Name is unique within the mission (name_ci index).
//
// CurrentStudentCount is a cache of len(Students) and is always recomputed
// in the same update that mutates Students.
type MentorshipGroup struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	MissionID primitive.ObjectID `bson:"mission_id" json:"mission_id"`

	Name        string `bson:"name" json:"name"`
	NameCI      string `bson:"name_ci" json:"name_ci"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	PrimaryMentorID primitive.ObjectID `bson:"primary_mentor_id" json:"primary_mentor_id"`
	Mentors         []GroupMentor      `bson:"mentors" json:"mentors"`
	Students        []GroupMember      `bson:"students" json:"students"`

	// MaxStudents caps group size; 0 means unlimited.
	MaxStudents         int `bson:"max_students" json:"max_students"`
	CurrentStudentCount int `bson:"current_student_count" json:"current_student_count"`

	Status          string        `bson:"status" json:"status"`
	MeetingSchedule []MeetingSlot `bson:"meeting_schedule,omitempty" json:"meeting_schedule,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
