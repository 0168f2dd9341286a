// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

The unique indexes are load-bearing for the assignment engine: they are
the commit-time backstop for every duplicate check done in application
code (one row per mission+mentor, one row per mission+student, one group
name per mission).
*/
func EnsureAll(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	var problems []string

	if err := ensureUsers(ctx, db, log); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureMissions(ctx, db, log); err != nil {
		problems = append(problems, "missions: "+err.Error())
	}
	if err := ensureMissionMentors(ctx, db, log); err != nil {
		problems = append(problems, "mission_mentors: "+err.Error())
	}
	if err := ensureMissionStudents(ctx, db, log); err != nil {
		problems = append(problems, "mission_students: "+err.Error())
	}
	if err := ensureMentorshipGroups(ctx, db, log); err != nil {
		problems = append(problems, "mentorship_groups: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, log *zap.Logger, models []mongo.IndexModel) error {
	var errs []string

	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err == nil {
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			var idx existingIndex
			if err := cur.Decode(&idx); err != nil {
				log.Warn("failed to decode existing index",
					zap.String("collection", coll.Name()),
					zap.Error(err))
				continue
			}
			existing[keySig(idx.Key)] = idx
		}
	}

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) {
				continue // same keys and options: reuse
			}
			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			log.Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		log.Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, log, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Batch membership checks during enrollment
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_users_batch_role"),
		},
	})
}

func ensureMissions(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	c := db.Collection("missions")
	return ensureIndexSet(ctx, c, log, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_missions_code"),
		},
		// List pages: filter by status, prefix on title_ci, stable tiebreak
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "title_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_missions_status_titleci__id"),
		},
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}},
			Options: options.Index().SetName("idx_missions_batch"),
		},
	})
}

func ensureMissionMentors(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	c := db.Collection("mission_mentors")
	return ensureIndexSet(ctx, c, log, []mongo.IndexModel{
		// Uniqueness: exactly one capacity record per (mission, mentor)
		{
			Keys:    bson.D{{Key: "mission_id", Value: 1}, {Key: "mentor_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_mm_mission_mentor"),
		},
		// Cross-mentor duplicate-assignment scans within a mission
		{
			Keys:    bson.D{{Key: "mission_id", Value: 1}, {Key: "assigned_students", Value: 1}},
			Options: options.Index().SetName("idx_mm_mission_assigned"),
		},
		// A mentor's rows across missions
		{
			Keys:    bson.D{{Key: "mentor_id", Value: 1}, {Key: "mission_id", Value: 1}},
			Options: options.Index().SetName("idx_mm_mentor_mission"),
		},
	})
}

func ensureMissionStudents(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	c := db.Collection("mission_students")
	return ensureIndexSet(ctx, c, log, []mongo.IndexModel{
		// Uniqueness: exactly one enrollment per (mission, student)
		{
			Keys:    bson.D{{Key: "mission_id", Value: 1}, {Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_ms_mission_student"),
		},
		// Roster lists segmented by status
		{
			Keys: bson.D{
				{Key: "mission_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "student_id", Value: 1},
			},
			Options: options.Index().SetName("idx_ms_mission_status_student"),
		},
		// A student's enrollments across missions
		{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "mission_id", Value: 1}},
			Options: options.Index().SetName("idx_ms_student_mission"),
		},
		// Group membership lookups (clearing on disband, grouped checks)
		{
			Keys:    bson.D{{Key: "mentorship_group_id", Value: 1}},
			Options: options.Index().SetName("idx_ms_group"),
		},
	})
}

func ensureMentorshipGroups(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	c := db.Collection("mentorship_groups")
	return ensureIndexSet(ctx, c, log, []mongo.IndexModel{
		// Uniqueness: no duplicate group names inside the same mission
		// (case/diacritics-folded via name_ci)
		{
			Keys:    bson.D{{Key: "mission_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_mg_mission_nameci"),
		},
		// Active-group membership scans during group formation
		{
			Keys: bson.D{
				{Key: "mission_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "students.student_id", Value: 1},
			},
			Options: options.Index().SetName("idx_mg_mission_status_student"),
		},
	})
}
