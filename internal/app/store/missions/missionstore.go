// internal/app/store/missions/missionstore.go
package missionstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusops/missionhub/internal/app/system/htmlsanitize"
	"github.com/campusops/missionhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateCode = errors.New("a mission with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("missions")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Mission, error) {
	var m models.Mission
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return models.Mission{}, err
	}
	return m, nil
}

func (s *Store) GetByCode(ctx context.Context, code string) (models.Mission, error) {
	var m models.Mission
	if err := s.c.FindOne(ctx, bson.M{"code": strings.ToUpper(code)}).Decode(&m); err != nil {
		return models.Mission{}, err
	}
	return m, nil
}

// Create inserts a mission. An empty code gets a generated one; counters
// start at zero and the ID caches start empty so the first recount is
// trivially consistent.
func (s *Store) Create(ctx context.Context, m models.Mission) (models.Mission, error) {
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	if m.Code == "" {
		m.Code = generateCode()
	}
	m.Code = strings.ToUpper(m.Code)
	m.TitleCI = text.Fold(m.Title)
	m.Description = htmlsanitize.PlainText(m.Description)
	if m.Status == "" {
		m.Status = models.MissionDraft
	}
	m.StudentIDs = []primitive.ObjectID{}
	m.MentorIDs = []primitive.ObjectID{}
	m.GroupIDs = []primitive.ObjectID{}
	m.TotalStudents = 0
	m.TotalMentors = 0
	m.TotalGroups = 0
	m.CreatedAt = now
	m.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Mission{}, ErrDuplicateCode
		}
		return models.Mission{}, err
	}
	return m, nil
}

// ListByStatus returns missions filtered by status; an empty status
// returns everything.
func (s *Store) ListByStatus(ctx context.Context, status string) ([]models.Mission, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var missions []models.Mission
	if err := cur.All(ctx, &missions); err != nil {
		return nil, err
	}
	return missions, nil
}

// Delete removes a mission by ID. Returns the number of documents deleted
// (0 or 1). Callers are responsible for cascading roster cleanup.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// generateCode derives a short join code from a UUID fragment, e.g. "M-1A2B3C4D".
func generateCode() string {
	u := uuid.New()
	return "M-" + strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")[:8])
}
