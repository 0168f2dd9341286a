// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	analyticsfeature "github.com/campusops/missionhub/internal/app/features/analytics"
	healthfeature "github.com/campusops/missionhub/internal/app/features/health"
	loginfeature "github.com/campusops/missionhub/internal/app/features/login"
	mentorshipgroupsfeature "github.com/campusops/missionhub/internal/app/features/mentorshipgroups"
	missionsfeature "github.com/campusops/missionhub/internal/app/features/missions"
	missionmentorsfeature "github.com/campusops/missionhub/internal/app/features/missionmentors"
	missionstudentsfeature "github.com/campusops/missionhub/internal/app/features/missionstudents"
	"github.com/campusops/missionhub/internal/app/system/auth"
	"github.com/campusops/missionhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. MissionHub initializes the session
// store, applies the session middleware, and mounts feature routers:
// /health and /login are public, everything else requires a signed-in staff
// user (admin, coordinator or mentor).
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication.
	loginHandler := loginfeature.NewHandler(db, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Post("/logout", loginHandler.HandleLogout)
	})

	// The assignment engine surface: staff only.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAdmin, models.RoleCoordinator, models.RoleMentor))

		r.Mount("/missions", missionsfeature.Routes(missionsfeature.NewHandler(db, logger)))
		r.Mount("/mission-students", missionstudentsfeature.Routes(missionstudentsfeature.NewHandler(db, logger)))
		r.Mount("/mission-mentors", missionmentorsfeature.Routes(missionmentorsfeature.NewHandler(db, logger)))
		r.Mount("/mentorship-groups", mentorshipgroupsfeature.Routes(mentorshipgroupsfeature.NewHandler(db, logger)))
		r.Mount("/v2/analytics", analyticsfeature.Routes(analyticsfeature.NewHandler(db, logger)))
	})

	return r, nil
}
