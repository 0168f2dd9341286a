// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles.
const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleMentor      = "mentor"
	RoleStudent     = "student"
)

// User is an account that can sign in. Students carry a BatchID; mission
// enrollment checks it against the mission's batch.
type User struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"`
	Email      string             `bson:"email" json:"email"`

	// PasswordHash is a bcrypt hash; never serialized to clients.
	PasswordHash string `bson:"password_hash" json:"-"`

	Role    string              `bson:"role" json:"role"`
	Status  string              `bson:"status" json:"status"`
	BatchID *primitive.ObjectID `bson:"batch_id,omitempty" json:"batch_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
