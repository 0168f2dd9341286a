// internal/app/system/status/status.go

// Package status derives mentor status from workload. Mentor status is a
// pure function of (currentWorkload, maxStudents, previous): workload-derived
// values (active, overloaded) are recomputed after every assignment mutation,
// while administrator-set values (inactive, unavailable) survive until the
// next mutation recomputes them.
package status

import "github.com/campusops/missionhub/internal/domain/models"

// DeriveMentor returns the mentor status implied by the workload.
//
// Rules:
//   - overloaded when maxStudents > 0 and workload >= maxStudents
//   - active when 0 < workload < maxStudents (or unlimited with workload > 0)
//   - at zero workload a previous overloaded resolves to active; any other
//     previous value (including a manual inactive/unavailable override that
//     predates this mutation) is kept.
func DeriveMentor(workload, maxStudents int, previous string) string {
	if maxStudents > 0 && workload >= maxStudents {
		return models.MentorOverloaded
	}
	if workload > 0 {
		return models.MentorActive
	}
	if previous == models.MentorOverloaded || previous == "" {
		return models.MentorActive
	}
	return previous
}

// IsManualMentorStatus reports whether s is one of the administrator-set
// override values that DeriveMentor never produces on a loaded mentor.
func IsManualMentorStatus(s string) bool {
	return s == models.MentorInactive || s == models.MentorUnavailable
}

// ValidMissionStudent reports whether s is a legal mission-wide student status.
func ValidMissionStudent(s string) bool {
	switch s {
	case models.StudentActive, models.StudentInactive, models.StudentCompleted,
		models.StudentDropped, models.StudentOnHold:
		return true
	}
	return false
}

// ValidGroupMember reports whether s is a legal group-local member status.
// The group-local machine reuses the student status vocabulary but is an
// independent state machine from the mission-wide one.
func ValidGroupMember(s string) bool {
	return ValidMissionStudent(s)
}
