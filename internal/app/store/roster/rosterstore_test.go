// internal/app/store/roster/rosterstore_test.go
package rosterstore

import (
	"context"
	"errors"
	"testing"

	"github.com/campusops/missionhub/internal/domain/models"
	"github.com/campusops/missionhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return New(db, zap.NewNop()), testutil.NewFixtures(t, db)
}

// supportsTransactions probes whether the test server can run
// multi-document transactions (replica set / mongos). Rollback assertions
// are meaningless on a standalone server, where txn.Run degrades to
// non-transactional execution.
func supportsTransactions(ctx context.Context, db *mongo.Database) bool {
	c := db.Collection("txn_probe")
	if _, err := c.InsertOne(ctx, bson.M{"seed": true}); err != nil {
		return false
	}
	sess, err := db.Client().StartSession()
	if err != nil {
		return false
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		_, err := c.InsertOne(sc, bson.M{"probe": true})
		return nil, err
	})
	return err == nil
}

func enrollAndAssign(t *testing.T, ctx context.Context, s *Store, mission models.Mission, mm models.MissionMentor, students ...models.User) {
	t.Helper()
	ids := make([]primitive.ObjectID, len(students))
	for i, u := range students {
		ids[i] = u.ID
	}
	if _, err := s.EnrollStudents(ctx, mission.ID, ids); err != nil {
		t.Fatalf("EnrollStudents() error = %v", err)
	}
	if _, err := s.AssignStudentsToMentor(ctx, mission.ID, mm.ID, ids); err != nil {
		t.Fatalf("AssignStudentsToMentor() error = %v", err)
	}
}

func TestEnrollStudents(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Orbital Mechanics", batchID)
	s1 := f.CreateStudent(ctx, "Student One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Student Two", "s2@test.com", batchID)

	rows, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{s1.ID, s2.ID})
	if err != nil {
		t.Fatalf("EnrollStudents() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("EnrollStudents() returned %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.Status != models.StudentActive || r.Progress != 0 {
			t.Errorf("row %s: status=%q progress=%d, want active/0", r.StudentID.Hex(), r.Status, r.Progress)
		}
		if r.BatchID != batchID {
			t.Errorf("row %s: batch %s, want %s", r.StudentID.Hex(), r.BatchID.Hex(), batchID.Hex())
		}
	}

	var m models.Mission
	if err := f.DB().Collection("missions").FindOne(ctx, bson.M{"_id": mission.ID}).Decode(&m); err != nil {
		t.Fatalf("reload mission: %v", err)
	}
	if m.TotalStudents != 2 || len(m.StudentIDs) != 2 {
		t.Errorf("mission counters: total=%d ids=%d, want 2/2", m.TotalStudents, len(m.StudentIDs))
	}
}

func TestEnrollStudents_MissionNotFound(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	st := f.CreateStudent(ctx, "Student", "s@test.com", primitive.NewObjectID())
	_, err := s.EnrollStudents(ctx, primitive.NewObjectID(), []primitive.ObjectID{st.ID})
	if !errors.Is(err, ErrMissionNotFound) {
		t.Fatalf("EnrollStudents() error = %v, want ErrMissionNotFound", err)
	}
}

func TestEnrollStudents_RejectsDuplicates(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Lunar Survey", batchID)
	s1 := f.CreateStudent(ctx, "Student One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Student Two", "s2@test.com", batchID)

	if _, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{s1.ID}); err != nil {
		t.Fatalf("first enroll: %v", err)
	}

	_, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{s1.ID, s2.ID})
	var dup *AlreadyEnrolledError
	if !errors.As(err, &dup) {
		t.Fatalf("EnrollStudents() error = %v, want AlreadyEnrolledError", err)
	}
	if len(dup.StudentIDs) != 1 || dup.StudentIDs[0] != s1.ID {
		t.Errorf("AlreadyEnrolledError.StudentIDs = %v, want [%s]", dup.StudentIDs, s1.ID.Hex())
	}
}

func TestEnrollStudents_RejectsOutsideBatch(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Deep Field", batchID)
	inside := f.CreateStudent(ctx, "Inside", "in@test.com", batchID)
	outside := f.CreateStudent(ctx, "Outside", "out@test.com", primitive.NewObjectID())

	_, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{inside.ID, outside.ID})
	var nib *NotInBatchError
	if !errors.As(err, &nib) {
		t.Fatalf("EnrollStudents() error = %v, want NotInBatchError", err)
	}
	if len(nib.StudentIDs) != 1 || nib.StudentIDs[0] != outside.ID {
		t.Errorf("NotInBatchError.StudentIDs = %v, want [%s]", nib.StudentIDs, outside.ID.Hex())
	}

	// All-or-nothing: the in-batch student must not have been enrolled.
	n, cerr := f.DB().Collection("mission_students").CountDocuments(ctx, bson.M{"mission_id": mission.ID})
	if cerr != nil {
		t.Fatalf("count rows: %v", cerr)
	}
	if n != 0 {
		t.Errorf("roster rows after failed enroll = %d, want 0", n)
	}
}

func TestAssignStudentsToMentor(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Mars Habitat", batchID)
	mentor := f.CreateMentorUser(ctx, "Mentor", "m@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentor.ID, 5)
	s1 := f.CreateStudent(ctx, "Student One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Student Two", "s2@test.com", batchID)
	ids := []primitive.ObjectID{s1.ID, s2.ID}

	if _, err := s.EnrollStudents(ctx, mission.ID, ids); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	res, err := s.AssignStudentsToMentor(ctx, mission.ID, mm.ID, ids)
	if err != nil {
		t.Fatalf("AssignStudentsToMentor() error = %v", err)
	}
	if res.Mentor.CurrentWorkload != 2 || len(res.Mentor.AssignedStudents) != 2 {
		t.Errorf("mentor workload=%d assigned=%d, want 2/2",
			res.Mentor.CurrentWorkload, len(res.Mentor.AssignedStudents))
	}
	if res.Mentor.Status != models.MentorActive {
		t.Errorf("mentor status = %q, want active", res.Mentor.Status)
	}
	for _, row := range res.Students {
		if row.PrimaryMentorID == nil || *row.PrimaryMentorID != mentor.ID {
			t.Errorf("student %s: primary mentor not set to assigned mentor", row.StudentID.Hex())
		}
		if len(row.MentorIDs) != 1 || row.MentorIDs[0] != mentor.ID {
			t.Errorf("student %s: mentor_ids = %v", row.StudentID.Hex(), row.MentorIDs)
		}
	}
}

func TestAssignStudentsToMentor_AtCapBecomesOverloaded(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Asteroid Belt", batchID)
	mentor := f.CreateMentorUser(ctx, "Mentor", "m@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentor.ID, 2)
	s1 := f.CreateStudent(ctx, "One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Two", "s2@test.com", batchID)

	enrollAndAssign(t, ctx, s, mission, mm, s1, s2)

	var got models.MissionMentor
	if err := f.DB().Collection("mission_mentors").FindOne(ctx, bson.M{"_id": mm.ID}).Decode(&got); err != nil {
		t.Fatalf("reload mentor: %v", err)
	}
	if got.Status != models.MentorOverloaded {
		t.Errorf("mentor status = %q, want overloaded", got.Status)
	}
}

func TestAssignStudentsToMentor_CapacityExceeded(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Europa Lander", batchID)
	mentor := f.CreateMentorUser(ctx, "Mentor", "m@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentor.ID, 1)
	s1 := f.CreateStudent(ctx, "One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Two", "s2@test.com", batchID)
	ids := []primitive.ObjectID{s1.ID, s2.ID}

	if _, err := s.EnrollStudents(ctx, mission.ID, ids); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	_, err := s.AssignStudentsToMentor(ctx, mission.ID, mm.ID, ids)
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("AssignStudentsToMentor() error = %v, want CapacityError", err)
	}
	if capErr.Requested != 2 || capErr.Available != 1 {
		t.Errorf("CapacityError = %+v, want requested 2 available 1", capErr)
	}

	// The whole batch was rejected; nothing was assigned.
	var got models.MissionMentor
	if err := f.DB().Collection("mission_mentors").FindOne(ctx, bson.M{"_id": mm.ID}).Decode(&got); err != nil {
		t.Fatalf("reload mentor: %v", err)
	}
	if got.CurrentWorkload != 0 || len(got.AssignedStudents) != 0 {
		t.Errorf("mentor workload=%d assigned=%d after rejected batch, want 0/0",
			got.CurrentWorkload, len(got.AssignedStudents))
	}
}

func TestAssignStudentsToMentor_UnlimitedCapacity(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Open Cohort", batchID)
	mentor := f.CreateMentorUser(ctx, "Mentor", "m@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentor.ID, 0)

	var ids []primitive.ObjectID
	for i := 0; i < 7; i++ {
		u := f.CreateStudent(ctx, "Student", primitive.NewObjectID().Hex()+"@test.com", batchID)
		ids = append(ids, u.ID)
	}
	if _, err := s.EnrollStudents(ctx, mission.ID, ids); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	res, err := s.AssignStudentsToMentor(ctx, mission.ID, mm.ID, ids)
	if err != nil {
		t.Fatalf("AssignStudentsToMentor() error = %v", err)
	}
	if res.Mentor.CurrentWorkload != 7 || res.Mentor.Status != models.MentorActive {
		t.Errorf("mentor workload=%d status=%q, want 7/active", res.Mentor.CurrentWorkload, res.Mentor.Status)
	}
}

func TestAssignStudentsToMentor_AlreadyAssignedElsewhere(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Dual Assignment", batchID)
	m1 := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	m2 := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	st := f.CreateStudent(ctx, "Student", "s@test.com", batchID)

	enrollAndAssign(t, ctx, s, mission, m1, st)

	_, err := s.AssignStudentsToMentor(ctx, mission.ID, m2.ID, []primitive.ObjectID{st.ID})
	var aa *AlreadyAssignedError
	if !errors.As(err, &aa) {
		t.Fatalf("AssignStudentsToMentor() error = %v, want AlreadyAssignedError", err)
	}
	if len(aa.StudentIDs) != 1 || aa.StudentIDs[0] != st.ID {
		t.Errorf("AlreadyAssignedError.StudentIDs = %v, want [%s]", aa.StudentIDs, st.ID.Hex())
	}
}

func TestAssignStudentsToMentor_NotEnrolled(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Strict Roster", batchID)
	mm := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	stranger := primitive.NewObjectID()

	_, err := s.AssignStudentsToMentor(ctx, mission.ID, mm.ID, []primitive.ObjectID{stranger})
	var ne *NotEnrolledError
	if !errors.As(err, &ne) {
		t.Fatalf("AssignStudentsToMentor() error = %v, want NotEnrolledError", err)
	}
}

func TestReassignStudents(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Transfer Window", batchID)
	fromMentor := f.CreateMentorUser(ctx, "From", "from@test.com")
	toMentor := f.CreateMentorUser(ctx, "To", "to@test.com")
	from := f.CreateMentorRecord(ctx, mission.ID, fromMentor.ID, 5)
	to := f.CreateMentorRecord(ctx, mission.ID, toMentor.ID, 5)
	s1 := f.CreateStudent(ctx, "One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Two", "s2@test.com", batchID)

	enrollAndAssign(t, ctx, s, mission, from, s1, s2)

	res, err := s.ReassignStudents(ctx, mission.ID, []primitive.ObjectID{s1.ID}, from.ID, to.ID, false)
	if err != nil {
		t.Fatalf("ReassignStudents() error = %v", err)
	}
	if len(res.Moved) != 1 || res.Moved[0] != s1.ID {
		t.Errorf("Moved = %v, want [%s]", res.Moved, s1.ID.Hex())
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %v, want empty", res.Skipped)
	}
	if res.From.CurrentWorkload != 1 || res.To.CurrentWorkload != 1 {
		t.Errorf("workloads from=%d to=%d, want 1/1", res.From.CurrentWorkload, res.To.CurrentWorkload)
	}

	var row models.MissionStudent
	err = f.DB().Collection("mission_students").
		FindOne(ctx, bson.M{"mission_id": mission.ID, "student_id": s1.ID}).Decode(&row)
	if err != nil {
		t.Fatalf("reload student row: %v", err)
	}
	if len(row.MentorIDs) != 1 || row.MentorIDs[0] != toMentor.ID {
		t.Errorf("student mentor_ids = %v, want [%s]", row.MentorIDs, toMentor.ID.Hex())
	}
	// The source held primary, so primary follows the move.
	if row.PrimaryMentorID == nil || *row.PrimaryMentorID != toMentor.ID {
		t.Errorf("primary mentor did not follow the reassignment")
	}
}

func TestReassignStudents_SkipsUnassigned(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Partial Move", batchID)
	from := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	to := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	s1 := f.CreateStudent(ctx, "One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Two", "s2@test.com", batchID)

	enrollAndAssign(t, ctx, s, mission, from, s1)
	if _, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{s2.ID}); err != nil {
		t.Fatalf("enroll second: %v", err)
	}

	res, err := s.ReassignStudents(ctx, mission.ID, []primitive.ObjectID{s1.ID, s2.ID}, from.ID, to.ID, false)
	if err != nil {
		t.Fatalf("ReassignStudents() error = %v", err)
	}
	if len(res.Moved) != 1 || res.Moved[0] != s1.ID {
		t.Errorf("Moved = %v, want [%s]", res.Moved, s1.ID.Hex())
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != s2.ID {
		t.Errorf("Skipped = %v, want [%s]", res.Skipped, s2.ID.Hex())
	}
}

func TestReassignStudents_SameMentor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	_, err := s.ReassignStudents(ctx, primitive.NewObjectID(), []primitive.ObjectID{primitive.NewObjectID()}, id, id, false)
	if !errors.Is(err, ErrSameMentor) {
		t.Fatalf("ReassignStudents() error = %v, want ErrSameMentor", err)
	}
}

func TestReassignStudents_NoValidStudents(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Empty Move", batchID)
	from := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	to := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	st := f.CreateStudent(ctx, "Unassigned", "u@test.com", batchID)
	if _, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{st.ID}); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	_, err := s.ReassignStudents(ctx, mission.ID, []primitive.ObjectID{st.ID}, from.ID, to.ID, false)
	if !errors.Is(err, ErrNoValidStudents) {
		t.Fatalf("ReassignStudents() error = %v, want ErrNoValidStudents", err)
	}
}

func TestReassignStudents_TargetCapacity(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Full Target", batchID)
	from := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	to := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 1)
	s1 := f.CreateStudent(ctx, "One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Two", "s2@test.com", batchID)
	s3 := f.CreateStudent(ctx, "Three", "s3@test.com", batchID)

	enrollAndAssign(t, ctx, s, mission, from, s1, s2)
	if _, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{s3.ID}); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := s.AssignStudentsToMentor(ctx, mission.ID, to.ID, []primitive.ObjectID{s3.ID}); err != nil {
		t.Fatalf("fill target: %v", err)
	}

	_, err := s.ReassignStudents(ctx, mission.ID, []primitive.ObjectID{s1.ID, s2.ID}, from.ID, to.ID, false)
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("ReassignStudents() error = %v, want CapacityError", err)
	}
	if capErr.MentorID != to.ID {
		t.Errorf("CapacityError.MentorID = %s, want target %s", capErr.MentorID.Hex(), to.ID.Hex())
	}
}

func TestReassignStudents_RollbackOnForcedFailure(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if !supportsTransactions(ctx, f.DB()) {
		t.Skip("skipping: test server does not support transactions")
	}

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Abort Midway", batchID)
	fromMentor := f.CreateMentorUser(ctx, "From", "from@test.com")
	from := f.CreateMentorRecord(ctx, mission.ID, fromMentor.ID, 5)
	to := f.CreateMentorRecord(ctx, mission.ID, primitive.NewObjectID(), 5)
	st := f.CreateStudent(ctx, "Student", "s@test.com", batchID)

	enrollAndAssign(t, ctx, s, mission, from, st)

	boom := errors.New("forced failure")
	s.failBeforeCommit = func() error { return boom }
	_, err := s.ReassignStudents(ctx, mission.ID, []primitive.ObjectID{st.ID}, from.ID, to.ID, false)
	s.failBeforeCommit = nil
	if !errors.Is(err, boom) {
		t.Fatalf("ReassignStudents() error = %v, want forced failure", err)
	}

	// Every write must have rolled back.
	var gotFrom, gotTo models.MissionMentor
	if err := f.DB().Collection("mission_mentors").FindOne(ctx, bson.M{"_id": from.ID}).Decode(&gotFrom); err != nil {
		t.Fatalf("reload source mentor: %v", err)
	}
	if err := f.DB().Collection("mission_mentors").FindOne(ctx, bson.M{"_id": to.ID}).Decode(&gotTo); err != nil {
		t.Fatalf("reload target mentor: %v", err)
	}
	if gotFrom.CurrentWorkload != 1 || gotTo.CurrentWorkload != 0 {
		t.Errorf("workloads from=%d to=%d after abort, want 1/0",
			gotFrom.CurrentWorkload, gotTo.CurrentWorkload)
	}

	var row models.MissionStudent
	err = f.DB().Collection("mission_students").
		FindOne(ctx, bson.M{"mission_id": mission.ID, "student_id": st.ID}).Decode(&row)
	if err != nil {
		t.Fatalf("reload student row: %v", err)
	}
	if len(row.MentorIDs) != 1 || row.MentorIDs[0] != fromMentor.ID {
		t.Errorf("student mentor_ids = %v after abort, want [%s]", row.MentorIDs, fromMentor.ID.Hex())
	}
}

func TestRemoveStudentFromMission(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Full Cleanup", batchID)
	mentorUser := f.CreateMentorUser(ctx, "Mentor", "m@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentorUser.ID, 1)
	st := f.CreateStudent(ctx, "Student", "s@test.com", batchID)

	enrollAndAssign(t, ctx, s, mission, mm, st)
	group := f.CreateGroup(ctx, mission.ID, "Team Rocket", mentorUser.ID, []primitive.ObjectID{st.ID})

	if err := s.RemoveStudentFromMission(ctx, mission.ID, st.ID); err != nil {
		t.Fatalf("RemoveStudentFromMission() error = %v", err)
	}

	n, err := f.DB().Collection("mission_students").
		CountDocuments(ctx, bson.M{"mission_id": mission.ID, "student_id": st.ID})
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if n != 0 {
		t.Errorf("roster row still present after removal")
	}

	var m models.Mission
	if err := f.DB().Collection("missions").FindOne(ctx, bson.M{"_id": mission.ID}).Decode(&m); err != nil {
		t.Fatalf("reload mission: %v", err)
	}
	if m.TotalStudents != 0 || len(m.StudentIDs) != 0 {
		t.Errorf("mission counters total=%d ids=%d after removal, want 0/0", m.TotalStudents, len(m.StudentIDs))
	}

	// Mentor was at cap (overloaded); removal drops workload to 0 and the
	// derived status resolves back to active.
	var gotMM models.MissionMentor
	if err := f.DB().Collection("mission_mentors").FindOne(ctx, bson.M{"_id": mm.ID}).Decode(&gotMM); err != nil {
		t.Fatalf("reload mentor: %v", err)
	}
	if gotMM.CurrentWorkload != 0 || len(gotMM.AssignedStudents) != 0 {
		t.Errorf("mentor workload=%d assigned=%d after removal, want 0/0",
			gotMM.CurrentWorkload, len(gotMM.AssignedStudents))
	}
	if gotMM.Status != models.MentorActive {
		t.Errorf("mentor status = %q after removal, want active", gotMM.Status)
	}

	var g models.MentorshipGroup
	if err := f.DB().Collection("mentorship_groups").FindOne(ctx, bson.M{"_id": group.ID}).Decode(&g); err != nil {
		t.Fatalf("reload group: %v", err)
	}
	if len(g.Students) != 0 || g.CurrentStudentCount != 0 {
		t.Errorf("group members=%d count=%d after removal, want 0/0", len(g.Students), g.CurrentStudentCount)
	}
}

func TestRemoveStudentFromMission_NotEnrolled(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mission := f.CreateMission(ctx, "Nobody Home", primitive.NewObjectID())
	err := s.RemoveStudentFromMission(ctx, mission.ID, primitive.NewObjectID())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("RemoveStudentFromMission() error = %v, want ErrNoDocuments", err)
	}
}

func TestAssignStudentsToMentor_ConcurrentDualAssignment(t *testing.T) {
	s, f := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if !supportsTransactions(ctx, f.DB()) {
		t.Skip("server does not support transactions; concurrent exclusivity relies on them")
	}

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Contested Student", batchID)
	ua := f.CreateMentorUser(ctx, "Mentor A", "ma@test.com")
	ub := f.CreateMentorUser(ctx, "Mentor B", "mb@test.com")
	mmA := f.CreateMentorRecord(ctx, mission.ID, ua.ID, 0)
	mmB := f.CreateMentorRecord(ctx, mission.ID, ub.ID, 0)
	st := f.CreateStudent(ctx, "Student", "s@test.com", batchID)
	if _, err := s.EnrollStudents(ctx, mission.ID, []primitive.ObjectID{st.ID}); err != nil {
		t.Fatalf("EnrollStudents() error = %v", err)
	}

	// Race the same student to two different mentors. Exactly one call may
	// win; the loser must see the commit-time duplicate check.
	start := make(chan struct{})
	errs := make(chan error, 2)
	for _, rowID := range []primitive.ObjectID{mmA.ID, mmB.ID} {
		rowID := rowID
		go func() {
			<-start
			_, err := s.AssignStudentsToMentor(ctx, mission.ID, rowID, []primitive.ObjectID{st.ID})
			errs <- err
		}()
	}
	close(start)

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			wins++
			continue
		}
		var taken *AlreadyAssignedError
		if !errors.As(err, &taken) {
			t.Fatalf("loser error = %v, want AlreadyAssignedError", err)
		}
		conflicts++
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins=%d conflicts=%d, want exactly one of each", wins, conflicts)
	}

	// The student ended up with exactly one mentor, and exactly one mentor
	// row carries the student.
	var row models.MissionStudent
	err := f.DB().Collection("mission_students").
		FindOne(ctx, bson.M{"mission_id": mission.ID, "student_id": st.ID}).Decode(&row)
	if err != nil {
		t.Fatalf("reload student row: %v", err)
	}
	if len(row.MentorIDs) != 1 {
		t.Errorf("student mentor_ids = %d entries, want 1", len(row.MentorIDs))
	}
	n, err := f.DB().Collection("mission_mentors").CountDocuments(ctx,
		bson.M{"mission_id": mission.ID, "assigned_students": st.ID})
	if err != nil {
		t.Fatalf("count mentor rows: %v", err)
	}
	if n != 1 {
		t.Errorf("%d mentor rows hold the student, want 1", n)
	}
}

func TestDedupe(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	got := dedupe([]primitive.ObjectID{a, b, a, a, b})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("dedupe() = %v, want [%s %s]", got, a.Hex(), b.Hex())
	}
}
