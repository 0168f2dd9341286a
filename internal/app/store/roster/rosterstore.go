// internal/app/store/roster/rosterstore.go

// Package rosterstore is the assignment engine: enrollment, capacity-bounded
// mentor assignment, atomic reassignment between mentors, and removal with
// cache scrubbing. It is the only writer of mentor assigned_students /
// current_workload and of the mission's denormalized ID caches for students,
// so every counter can be recounted from its array in the same update that
// changes the array.
package rosterstore

import (
	"context"
	"time"

	"github.com/campusops/missionhub/internal/app/system/txn"
	"github.com/campusops/missionhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Store struct {
	db       *mongo.Database
	missions *mongo.Collection
	mentors  *mongo.Collection
	students *mongo.Collection
	groups   *mongo.Collection
	users    *mongo.Collection
	log      *zap.Logger

	// called inside the transaction after all writes, before commit;
	// tests use it to force an abort.
	failBeforeCommit func() error
}

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		db:       db,
		missions: db.Collection("missions"),
		mentors:  db.Collection("mission_mentors"),
		students: db.Collection("mission_students"),
		groups:   db.Collection("mentorship_groups"),
		users:    db.Collection("users"),
		log:      log,
	}
}

// AssignResult is what an assignment mutation leaves behind: the mentor row
// after its workload recount, and the student rows that now reference it.
type AssignResult struct {
	Mentor   models.MissionMentor
	Students []models.MissionStudent
}

// ReassignResult reports a reassignment. Skipped holds requested students
// that were not assigned to the source mentor; per the partial-success
// contract they are reported, not fatal.
type ReassignResult struct {
	From    models.MissionMentor
	To      models.MissionMentor
	Moved   []primitive.ObjectID
	Skipped []primitive.ObjectID
}

// mentorStatusStages returns the pipeline stages that recount
// current_workload from assigned_students and re-derive status. The $switch
// mirrors status.DeriveMentor: overloaded when at or over a nonzero cap,
// active when loaded, a previous overloaded resolves to active at zero, and
// any other previous value (manual overrides included) is kept.
func mentorStatusStages() []bson.D {
	return []bson.D{
		{{Key: "$set", Value: bson.M{
			"current_workload": bson.M{"$size": "$assigned_students"},
		}}},
		{{Key: "$set", Value: bson.M{
			"status": bson.M{"$switch": bson.M{
				"branches": bson.A{
					bson.M{
						"case": bson.M{"$and": bson.A{
							bson.M{"$gt": bson.A{"$max_students", 0}},
							bson.M{"$gte": bson.A{"$current_workload", "$max_students"}},
						}},
						"then": models.MentorOverloaded,
					},
					bson.M{
						"case": bson.M{"$gt": bson.A{"$current_workload", 0}},
						"then": models.MentorActive,
					},
					bson.M{
						"case": bson.M{"$eq": bson.A{"$status", models.MentorOverloaded}},
						"then": models.MentorActive,
					},
				},
				"default": "$status",
			}},
		}}},
	}
}

func toBsonA(ids []primitive.ObjectID) bson.A {
	a := make(bson.A, len(ids))
	for i, id := range ids {
		a[i] = id
	}
	return a
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// EnrollStudents adds students to a mission: one roster row per student plus
// the cached student ID on the mission document. All-or-nothing: any student
// already enrolled, or outside the mission's batch, fails the whole batch.
func (s *Store) EnrollStudents(ctx context.Context, missionID primitive.ObjectID, studentIDs []primitive.ObjectID) ([]models.MissionStudent, error) {
	studentIDs = dedupe(studentIDs)

	var mission models.Mission
	if err := s.missions.FindOne(ctx, bson.M{"_id": missionID}).Decode(&mission); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrMissionNotFound
		}
		return nil, err
	}

	inBatch, err := s.studentsInBatch(ctx, mission.BatchID, studentIDs)
	if err != nil {
		return nil, err
	}
	var outsiders []primitive.ObjectID
	for _, id := range studentIDs {
		if !inBatch[id] {
			outsiders = append(outsiders, id)
		}
	}
	if len(outsiders) > 0 {
		return nil, &NotInBatchError{StudentIDs: outsiders}
	}

	now := time.Now().UTC()
	rows := make([]models.MissionStudent, len(studentIDs))
	docs := make([]interface{}, len(studentIDs))
	for i, sid := range studentIDs {
		rows[i] = models.MissionStudent{
			ID:        primitive.NewObjectID(),
			MissionID: missionID,
			StudentID: sid,
			BatchID:   mission.BatchID,
			Status:    models.StudentActive,
			Progress:  0,
			MentorIDs: []primitive.ObjectID{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		docs[i] = rows[i]
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		// Authoritative duplicate check; the unique index backstops races.
		existing, err := s.enrolledOf(ctx, missionID, studentIDs)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &AlreadyEnrolledError{StudentIDs: existing}
		}

		if _, err := s.students.InsertMany(ctx, docs); err != nil {
			if wafflemongo.IsDup(err) {
				return &AlreadyEnrolledError{StudentIDs: studentIDs}
			}
			return err
		}

		// The mission accepts the batch only if it fits max_students
		// (0 = unlimited); the filter and the recount see the same array.
		res, err := s.missions.UpdateOne(ctx,
			bson.M{
				"_id": missionID,
				"$expr": bson.M{"$or": bson.A{
					bson.M{"$eq": bson.A{"$max_students", 0}},
					bson.M{"$lte": bson.A{
						bson.M{"$size": bson.M{"$setUnion": bson.A{"$student_ids", toBsonA(studentIDs)}}},
						"$max_students",
					}},
				}},
			},
			mongo.Pipeline{
				{{Key: "$set", Value: bson.M{
					"student_ids": bson.M{"$setUnion": bson.A{"$student_ids", toBsonA(studentIDs)}},
					"updated_at":  now,
				}}},
				{{Key: "$set", Value: bson.M{"total_students": bson.M{"$size": "$student_ids"}}}},
			})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrMissionFull
		}

		if s.failBeforeCommit != nil {
			return s.failBeforeCommit()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AssignStudentsToMentor routes enrolled students to a mentor. The whole
// batch must fit the mentor's remaining capacity, and no requested student
// may already sit in any mentor's assigned set for this mission; either
// violation rejects the batch atomically.
func (s *Store) AssignStudentsToMentor(ctx context.Context, missionID, mentorRowID primitive.ObjectID, studentIDs []primitive.ObjectID) (AssignResult, error) {
	studentIDs = dedupe(studentIDs)
	now := time.Now().UTC()

	var mm models.MissionMentor
	if err := s.mentors.FindOne(ctx, bson.M{"_id": mentorRowID, "mission_id": missionID}).Decode(&mm); err != nil {
		if err == mongo.ErrNoDocuments {
			return AssignResult{}, ErrMentorNotFound
		}
		return AssignResult{}, err
	}

	// Fail-fast checks outside the transaction; each is re-verified inside.
	missing, err := s.notEnrolledOf(ctx, missionID, studentIDs)
	if err != nil {
		return AssignResult{}, err
	}
	if len(missing) > 0 {
		return AssignResult{}, &NotEnrolledError{StudentIDs: missing}
	}
	if taken, err := s.assignedAnywhere(ctx, missionID, studentIDs); err != nil {
		return AssignResult{}, err
	} else if len(taken) > 0 {
		return AssignResult{}, &AlreadyAssignedError{StudentIDs: taken}
	}
	if avail := mm.AvailableCapacity(); avail >= 0 && len(studentIDs) > avail {
		return AssignResult{}, &CapacityError{MentorID: mm.ID, Requested: len(studentIDs), Available: avail}
	}

	var out AssignResult
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		taken, err := s.assignedAnywhere(ctx, missionID, studentIDs)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return &AlreadyAssignedError{StudentIDs: taken}
		}

		if err := s.guardedAddToMentor(ctx, mentorRowID, studentIDs, now); err != nil {
			return err
		}

		// Write every student row. The row writes double as conflict
		// guards: two transactions assigning the same student collide
		// here and one aborts.
		res, err := s.students.UpdateMany(ctx,
			bson.M{"mission_id": missionID, "student_id": bson.M{"$in": studentIDs}},
			bson.M{
				"$addToSet": bson.M{"mentor_ids": mm.MentorID},
				"$set":      bson.M{"updated_at": now},
			})
		if err != nil {
			return err
		}
		if int(res.MatchedCount) != len(studentIDs) {
			missing, ferr := s.notEnrolledOf(ctx, missionID, studentIDs)
			if ferr != nil {
				return ferr
			}
			return &NotEnrolledError{StudentIDs: missing}
		}

		// First mentor becomes primary; an existing primary is untouched.
		_, err = s.students.UpdateMany(ctx,
			bson.M{
				"mission_id":        missionID,
				"student_id":        bson.M{"$in": studentIDs},
				"primary_mentor_id": nil,
			},
			bson.M{"$set": bson.M{"primary_mentor_id": mm.MentorID, "updated_at": now}})
		if err != nil {
			return err
		}

		if s.failBeforeCommit != nil {
			if err := s.failBeforeCommit(); err != nil {
				return err
			}
		}

		out.Mentor, err = s.mentorByID(ctx, mentorRowID)
		if err != nil {
			return err
		}
		out.Students, err = s.studentRows(ctx, missionID, studentIDs)
		return err
	})
	if err != nil {
		return AssignResult{}, err
	}
	return out, nil
}

// ReassignStudents moves students from one mentor to another in one atomic
// step. Requested students not on the source mentor are skipped and
// reported. The add to the target is capacity-guarded and happens before
// the pull from the source, so even a degraded non-transactional run never
// strands a student with no mentor.
func (s *Store) ReassignStudents(ctx context.Context, missionID primitive.ObjectID, studentIDs []primitive.ObjectID, fromRowID, toRowID primitive.ObjectID, makePrimary bool) (ReassignResult, error) {
	if fromRowID == toRowID {
		return ReassignResult{}, ErrSameMentor
	}
	studentIDs = dedupe(studentIDs)
	now := time.Now().UTC()

	var out ReassignResult
	err := txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var from, to models.MissionMentor
		if err := s.mentors.FindOne(ctx, bson.M{"_id": fromRowID, "mission_id": missionID}).Decode(&from); err != nil {
			if err == mongo.ErrNoDocuments {
				return ErrMentorNotFound
			}
			return err
		}
		if err := s.mentors.FindOne(ctx, bson.M{"_id": toRowID, "mission_id": missionID}).Decode(&to); err != nil {
			if err == mongo.ErrNoDocuments {
				return ErrMentorNotFound
			}
			return err
		}

		onSource := make(map[primitive.ObjectID]bool, len(from.AssignedStudents))
		for _, id := range from.AssignedStudents {
			onSource[id] = true
		}
		var moved, skipped []primitive.ObjectID
		for _, id := range studentIDs {
			if onSource[id] {
				moved = append(moved, id)
			} else {
				skipped = append(skipped, id)
			}
		}
		if len(moved) == 0 {
			return ErrNoValidStudents
		}

		if err := s.guardedAddToMentor(ctx, toRowID, moved, now); err != nil {
			return err
		}

		_, err := s.mentors.UpdateOne(ctx, bson.M{"_id": fromRowID},
			append(mongo.Pipeline{
				{{Key: "$set", Value: bson.M{
					"assigned_students": bson.M{"$setDifference": bson.A{"$assigned_students", toBsonA(moved)}},
					"updated_at":        now,
				}}},
			}, mentorStatusStages()...))
		if err != nil {
			return err
		}

		_, err = s.students.UpdateMany(ctx,
			bson.M{"mission_id": missionID, "student_id": bson.M{"$in": moved}},
			bson.M{
				"$pull": bson.M{"mentor_ids": from.MentorID},
				"$set":  bson.M{"updated_at": now},
			})
		if err != nil {
			return err
		}
		_, err = s.students.UpdateMany(ctx,
			bson.M{"mission_id": missionID, "student_id": bson.M{"$in": moved}},
			bson.M{"$addToSet": bson.M{"mentor_ids": to.MentorID}})
		if err != nil {
			return err
		}

		// Primary follows the move when the source held it; makePrimary
		// forces the target primary for every moved student.
		primaryFilter := bson.M{
			"mission_id":        missionID,
			"student_id":        bson.M{"$in": moved},
			"primary_mentor_id": from.MentorID,
		}
		if makePrimary {
			delete(primaryFilter, "primary_mentor_id")
		}
		_, err = s.students.UpdateMany(ctx, primaryFilter,
			bson.M{"$set": bson.M{"primary_mentor_id": to.MentorID, "updated_at": now}})
		if err != nil {
			return err
		}

		if s.failBeforeCommit != nil {
			if err := s.failBeforeCommit(); err != nil {
				return err
			}
		}

		out.Moved, out.Skipped = moved, skipped
		if out.From, err = s.mentorByID(ctx, fromRowID); err != nil {
			return err
		}
		out.To, err = s.mentorByID(ctx, toRowID)
		return err
	})
	if err != nil {
		return ReassignResult{}, err
	}
	return out, nil
}

// RemoveStudentFromMission deletes the roster row and scrubs every cache
// that references the student: the mission's student ID list, each mentor's
// assigned set (with workload and status re-derived), and any group member
// entries, all with their counters recounted in the same update.
func (s *Store) RemoveStudentFromMission(ctx context.Context, missionID, studentID primitive.ObjectID) error {
	now := time.Now().UTC()
	return txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		res, err := s.students.DeleteOne(ctx, bson.M{"mission_id": missionID, "student_id": studentID})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return mongo.ErrNoDocuments
		}

		_, err = s.missions.UpdateByID(ctx, missionID, mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"student_ids": bson.M{"$setDifference": bson.A{"$student_ids", bson.A{studentID}}},
				"updated_at":  now,
			}}},
			{{Key: "$set", Value: bson.M{"total_students": bson.M{"$size": "$student_ids"}}}},
		})
		if err != nil {
			return err
		}

		_, err = s.mentors.UpdateMany(ctx,
			bson.M{"mission_id": missionID, "assigned_students": studentID},
			append(mongo.Pipeline{
				{{Key: "$set", Value: bson.M{
					"assigned_students": bson.M{"$setDifference": bson.A{"$assigned_students", bson.A{studentID}}},
					"updated_at":        now,
				}}},
			}, mentorStatusStages()...))
		if err != nil {
			return err
		}

		_, err = s.groups.UpdateMany(ctx,
			bson.M{"mission_id": missionID, "students.student_id": studentID},
			mongo.Pipeline{
				{{Key: "$set", Value: bson.M{
					"students": bson.M{"$filter": bson.M{
						"input": "$students",
						"cond":  bson.M{"$ne": bson.A{"$$this.student_id", studentID}},
					}},
					"updated_at": now,
				}}},
				{{Key: "$set", Value: bson.M{"current_student_count": bson.M{"$size": "$students"}}}},
			})
		if err != nil {
			return err
		}

		if s.failBeforeCommit != nil {
			return s.failBeforeCommit()
		}
		return nil
	})
}

// guardedAddToMentor is the capacity-guarded atomic add: the filter admits
// the update only when max_students is 0 (unlimited) or the union of the
// current set and the batch fits, and the pipeline recounts workload and
// re-derives status from the exact array it just wrote. MatchedCount 0
// means the guard rejected the batch.
func (s *Store) guardedAddToMentor(ctx context.Context, mentorRowID primitive.ObjectID, ids []primitive.ObjectID, now time.Time) error {
	res, err := s.mentors.UpdateOne(ctx,
		bson.M{
			"_id": mentorRowID,
			"$expr": bson.M{"$or": bson.A{
				bson.M{"$eq": bson.A{"$max_students", 0}},
				bson.M{"$lte": bson.A{
					bson.M{"$size": bson.M{"$setUnion": bson.A{"$assigned_students", toBsonA(ids)}}},
					"$max_students",
				}},
			}},
		},
		append(mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"assigned_students": bson.M{"$setUnion": bson.A{"$assigned_students", toBsonA(ids)}},
				"updated_at":        now,
			}}},
		}, mentorStatusStages()...))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		mm, gerr := s.mentorByID(ctx, mentorRowID)
		if gerr != nil {
			if gerr == mongo.ErrNoDocuments {
				return ErrMentorNotFound
			}
			return gerr
		}
		return &CapacityError{MentorID: mm.ID, Requested: len(ids), Available: mm.AvailableCapacity()}
	}
	return nil
}

// assignedAnywhere returns which of ids already appear in any mentor's
// assigned set for the mission.
func (s *Store) assignedAnywhere(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.mentors.Find(ctx, bson.M{
		"mission_id":        missionID,
		"assigned_students": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	taken := make(map[primitive.ObjectID]bool)
	for cur.Next(ctx) {
		var row struct {
			AssignedStudents []primitive.ObjectID `bson:"assigned_students"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		for _, id := range row.AssignedStudents {
			taken[id] = true
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

func (s *Store) enrolledOf(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	set, err := s.enrolledSet(ctx, missionID, ids)
	if err != nil {
		return nil, err
	}
	var out []primitive.ObjectID
	for _, id := range ids {
		if set[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) notEnrolledOf(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	set, err := s.enrolledSet(ctx, missionID, ids)
	if err != nil {
		return nil, err
	}
	var out []primitive.ObjectID
	for _, id := range ids {
		if !set[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) enrolledSet(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	cur, err := s.students.Find(ctx, bson.M{
		"mission_id": missionID,
		"student_id": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[primitive.ObjectID]bool, len(ids))
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

func (s *Store) studentsInBatch(ctx context.Context, batchID primitive.ObjectID, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	cur, err := s.users.Find(ctx, bson.M{
		"_id":      bson.M{"$in": ids},
		"role":     models.RoleStudent,
		"batch_id": batchID,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[primitive.ObjectID]bool, len(ids))
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = true
	}
	return out, cur.Err()
}

func (s *Store) mentorByID(ctx context.Context, id primitive.ObjectID) (models.MissionMentor, error) {
	var mm models.MissionMentor
	if err := s.mentors.FindOne(ctx, bson.M{"_id": id}).Decode(&mm); err != nil {
		return models.MissionMentor{}, err
	}
	return mm, nil
}

func (s *Store) studentRows(ctx context.Context, missionID primitive.ObjectID, ids []primitive.ObjectID) ([]models.MissionStudent, error) {
	cur, err := s.students.Find(ctx, bson.M{
		"mission_id": missionID,
		"student_id": bson.M{"$in": ids},
	})
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
