// internal/app/features/missionmentors/handler_test.go
package missionmentors_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusops/missionhub/internal/app/features/missionmentors"
	"github.com/campusops/missionhub/internal/app/system/apijson"
	"github.com/campusops/missionhub/internal/domain/models"
	"github.com/campusops/missionhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type errEnvelope struct {
	Error apijson.ErrorBody `json:"error"`
}

func newTestRouter(t *testing.T) (http.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := missionmentors.NewHandler(db, zap.NewNop())
	return missionmentors.Routes(h), testutil.NewFixtures(t, db)
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apijson.ErrorBody {
	t.Helper()
	var env errEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body %s)", err, rec.Body.String())
	}
	return env.Error
}

func TestHandleCreate(t *testing.T) {
	router, f := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mission := f.CreateMission(ctx, "Mentor API", primitive.NewObjectID())
	mentor := f.CreateMentorUser(ctx, "Mentor", "mentor@test.com")

	body := fmt.Sprintf(`{"missionId":%q,"mentorId":%q,"role":"advisor","maxStudents":3}`,
		mission.ID.Hex(), mentor.ID.Hex())
	rec := doJSON(t, router, http.MethodPost, "/", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var mm models.MissionMentor
	if err := json.Unmarshal(rec.Body.Bytes(), &mm); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if mm.MaxStudents != 3 || mm.CurrentWorkload != 0 {
		t.Errorf("mentor row = cap %d workload %d, want 3/0", mm.MaxStudents, mm.CurrentWorkload)
	}

	// Adding the same mentor to the same mission again conflicts.
	rec = doJSON(t, router, http.MethodPost, "/", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != apijson.CodeConflict {
		t.Errorf("code = %q, want %q", got.Code, apijson.CodeConflict)
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"bad role", fmt.Sprintf(`{"missionId":%q,"mentorId":%q,"role":"overlord"}`,
			primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex())},
		{"negative cap", fmt.Sprintf(`{"missionId":%q,"mentorId":%q,"role":"advisor","maxStudents":-1}`,
			primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleAssign_CapacityExceeded(t *testing.T) {
	router, f := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Capacity API", batchID)
	mentorUser := f.CreateMentorUser(ctx, "Mentor", "mentor@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentorUser.ID, 1)
	s1 := f.CreateStudent(ctx, "One", "s1@test.com", batchID)
	s2 := f.CreateStudent(ctx, "Two", "s2@test.com", batchID)
	f.CreateStudentRecord(ctx, mission.ID, s1.ID, batchID)
	f.CreateStudentRecord(ctx, mission.ID, s2.ID, batchID)

	body := fmt.Sprintf(`{"missionId":%q,"mentorId":%q,"studentIds":[%q,%q]}`,
		mission.ID.Hex(), mm.ID.Hex(), s1.ID.Hex(), s2.ID.Hex())
	rec := doJSON(t, router, http.MethodPost, "/assign-students", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
	got := decodeError(t, rec)
	if got.Code != apijson.CodeCapacityExceeded {
		t.Errorf("code = %q, want %q", got.Code, apijson.CodeCapacityExceeded)
	}
	if len(got.MentorIDs) != 1 || got.MentorIDs[0] != mm.ID.Hex() {
		t.Errorf("mentorIds = %v, want [%s]", got.MentorIDs, mm.ID.Hex())
	}
}

func TestHandleAssign(t *testing.T) {
	router, f := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	batchID := primitive.NewObjectID()
	mission := f.CreateMission(ctx, "Assign API", batchID)
	mentorUser := f.CreateMentorUser(ctx, "Mentor", "mentor@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentorUser.ID, 5)
	s1 := f.CreateStudent(ctx, "One", "s1@test.com", batchID)
	f.CreateStudentRecord(ctx, mission.ID, s1.ID, batchID)

	body := fmt.Sprintf(`{"missionId":%q,"mentorId":%q,"studentIds":[%q],"assignmentType":"manual"}`,
		mission.ID.Hex(), mm.ID.Hex(), s1.ID.Hex())
	rec := doJSON(t, router, http.MethodPost, "/assign-students", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Mentor   models.MissionMentor    `json:"mentor"`
		Students []models.MissionStudent `json:"students"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Mentor.CurrentWorkload != 1 {
		t.Errorf("workload = %d, want 1", resp.Mentor.CurrentWorkload)
	}
	if len(resp.Students) != 1 || resp.Students[0].PrimaryMentorID == nil {
		t.Error("student row missing or primary mentor unset")
	}
}

func TestHandleGetByMentor(t *testing.T) {
	router, f := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mission := f.CreateMission(ctx, "Pair Lookup API", primitive.NewObjectID())
	mentorUser := f.CreateMentorUser(ctx, "Mentor", "mentor@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentorUser.ID, 3)

	target := fmt.Sprintf("/by-mentor/%s/%s", mission.ID.Hex(), mentorUser.ID.Hex())
	req := testutil.NewAuthenticatedRequest(http.MethodGet, target, testutil.AdminUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var got models.MissionMentor
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != mm.ID {
		t.Errorf("pair lookup returned row %s, want %s", got.ID.Hex(), mm.ID.Hex())
	}

	target = fmt.Sprintf("/by-mentor/%s/%s", mission.ID.Hex(), primitive.NewObjectID().Hex())
	req = testutil.NewAuthenticatedRequest(http.MethodGet, target, testutil.AdminUser())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown pair status = %d, want 404", rec.Code)
	}
}

func TestHandleReassign_SameMentor(t *testing.T) {
	router, f := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mission := f.CreateMission(ctx, "Reassign API", primitive.NewObjectID())
	mentorUser := f.CreateMentorUser(ctx, "Mentor", "mentor@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentorUser.ID, 0)

	body := fmt.Sprintf(`{"missionId":%q,"studentIds":[%q],"fromMentorId":%q,"toMentorId":%q}`,
		mission.ID.Hex(), primitive.NewObjectID().Hex(), mm.ID.Hex(), mm.ID.Hex())
	rec := doJSON(t, router, http.MethodPost, "/reassign-students", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec); got.Code != apijson.CodeValidation {
		t.Errorf("code = %q, want %q", got.Code, apijson.CodeValidation)
	}
}

func TestHandleSetStatus(t *testing.T) {
	router, f := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mission := f.CreateMission(ctx, "Mentor Status API", primitive.NewObjectID())
	mentorUser := f.CreateMentorUser(ctx, "Mentor", "mentor@test.com")
	mm := f.CreateMentorRecord(ctx, mission.ID, mentorUser.ID, 0)

	// Derived states cannot be forced by hand.
	rec := doJSON(t, router, http.MethodPatch, "/"+mm.ID.Hex()+"/status", `{"status":"overloaded"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("derived status code = %d, want 400", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPatch, "/"+mm.ID.Hex()+"/status", `{"status":"unavailable"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var got models.MissionMentor
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != models.MentorUnavailable {
		t.Errorf("status = %q, want unavailable", got.Status)
	}

	rec = doJSON(t, router, http.MethodPatch, "/"+primitive.NewObjectID().Hex()+"/status", `{"status":"inactive"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing record status = %d, want 404", rec.Code)
	}
}
