// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"

	userstore "github.com/campusops/missionhub/internal/app/store/users"
	"github.com/campusops/missionhub/internal/app/system/apijson"
	"github.com/campusops/missionhub/internal/app/system/auth"
	"github.com/campusops/missionhub/internal/app/system/inputval"
	"github.com/campusops/missionhub/internal/app/system/timeouts"
	"github.com/campusops/missionhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	DB    *mongo.Database
	Log   *zap.Logger
	users *userstore.Store
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{DB: db, Log: logger, users: userstore.New(db)}
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type loginResponse struct {
	User models.User `json:"user"`
}

// HandleLogin handles POST /login: verifies the bcrypt password hash and
// records the user in the session cookie.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var in loginInput
	if err := apijson.Decode(r, &in); err != nil {
		apijson.Validation(w, "invalid JSON body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apijson.Validation(w, res.First())
		return
	}

	u, err := h.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			apijson.Error(w, http.StatusUnauthorized, apijson.CodeValidation, "invalid email or password")
			return
		}
		h.Log.Error("login: user lookup failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	if u.Status != "active" {
		apijson.Error(w, http.StatusUnauthorized, apijson.CodeValidation, "account is disabled")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		apijson.Error(w, http.StatusUnauthorized, apijson.CodeValidation, "invalid email or password")
		return
	}

	err = auth.SignIn(w, r, auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
	})
	if err != nil {
		h.Log.Error("login: session save failed", zap.Error(err))
		apijson.Internal(w)
		return
	}

	apijson.OK(w, http.StatusOK, loginResponse{User: u})
}

// HandleLogout handles POST /logout: clears the session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := auth.SignOut(w, r); err != nil {
		h.Log.Error("logout: session clear failed", zap.Error(err))
		apijson.Internal(w)
		return
	}
	apijson.NoContent(w)
}
