// internal/app/store/roster/errors.go
package rosterstore

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrMissionNotFound = errors.New("mission not found")
	ErrMentorNotFound  = errors.New("mission mentor record not found")
	ErrSameMentor      = errors.New("source and target mentors must differ")
	ErrNoValidStudents = errors.New("no requested student is assigned to the source mentor")
	ErrMissionFull     = errors.New("mission student capacity exceeded")
)

// CapacityError reports a mentor capacity violation: the batch being
// assigned does not fit the mentor's remaining capacity.
type CapacityError struct {
	MentorID  primitive.ObjectID
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("mentor %s capacity exceeded: requested %d, available %d",
		e.MentorID.Hex(), e.Requested, e.Available)
}

// AlreadyEnrolledError reports students that already have a roster row in
// the mission.
type AlreadyEnrolledError struct {
	StudentIDs []primitive.ObjectID
}

func (e *AlreadyEnrolledError) Error() string {
	return fmt.Sprintf("%d student(s) already enrolled in this mission", len(e.StudentIDs))
}

// NotEnrolledError reports students that are not members of the mission.
type NotEnrolledError struct {
	StudentIDs []primitive.ObjectID
}

func (e *NotEnrolledError) Error() string {
	return fmt.Sprintf("%d student(s) are not enrolled in this mission", len(e.StudentIDs))
}

// NotInBatchError reports requested students that are not student users of
// the mission's batch.
type NotInBatchError struct {
	StudentIDs []primitive.ObjectID
}

func (e *NotInBatchError) Error() string {
	return fmt.Sprintf("%d student(s) do not belong to the mission's batch", len(e.StudentIDs))
}

// AlreadyAssignedError reports students that already appear in some
// mentor's assigned set within the mission. A student has exactly one
// mentor roster per mission.
type AlreadyAssignedError struct {
	StudentIDs []primitive.ObjectID
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("%d student(s) are already assigned to a mentor in this mission", len(e.StudentIDs))
}
