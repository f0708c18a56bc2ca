package server

import (
	"github.com/gin-gonic/gin"

	"github.com/lifei6671/userauth/internal/config"
	"github.com/lifei6671/userauth/internal/metrics"
	"github.com/lifei6671/userauth/internal/server/handler"
	"github.com/lifei6671/userauth/internal/server/middleware"
)

// UserPrefix is where the user auth routes are mounted.
const UserPrefix = "/api/user"

// Mounter is a group of routes that attaches itself under a prefix.
type Mounter interface {
	Mount(r gin.IRouter)
}

type Deps struct {
	Auth    Mounter
	Metrics *metrics.Metrics
	Limiter *middleware.RateLimiter
}

// NewRouter builds the application engine. Every request passes the JSON body
// parser before it reaches a route; paths outside UserPrefix get gin's 404.
func NewRouter(cfg config.Config, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}
	router.Use(middleware.CORS(cfg.WebOrigin))
	router.Use(middleware.JSONBody(cfg.BodyLimit))

	user := router.Group(UserPrefix)
	if deps.Limiter != nil {
		user.Use(deps.Limiter.Handler())
	}
	if deps.Auth != nil {
		deps.Auth.Mount(user)
	}

	return router
}

// NewOpsRouter serves liveness, readiness and metrics on the ops listener.
func NewOpsRouter(db handler.ReadinessChecker, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())

	router.GET("/healthz", handler.Health)
	router.GET("/readyz", handler.Ready(db))
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return router
}
