package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/lifei6671/userauth/internal/database"
	"github.com/lifei6671/userauth/internal/server/middleware"
)

const (
	// TokenHeader carries the access token on login and is accepted in place
	// of an Authorization bearer header.
	TokenHeader = "auth-token"
	claimsKey   = "userauth.claims"

	// bcrypt only hashes the first 72 bytes of a password.
	maxPasswordBytes = 72
)

// EventRecorder counts auth outcomes.
type EventRecorder interface {
	RecordAuthEvent(event, result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthEvent(string, string) {}

// Router serves the user auth endpoints.
type Router struct {
	svc    *Service
	events EventRecorder
}

func NewRouter(svc *Service, events EventRecorder) *Router {
	if events == nil {
		events = noopRecorder{}
	}
	return &Router{svc: svc, events: events}
}

// Mount registers the endpoints on r, typically the /api/user group.
func (rt *Router) Mount(r gin.IRouter) {
	r.POST("/register", rt.register)
	r.POST("/login", rt.login)
	r.POST("/refresh", rt.refresh)
	r.POST("/logout", rt.logout)
	r.GET("/me", RequireToken(rt.svc), rt.me)
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (rt *Router) register(c *gin.Context) {
	var in registerRequest
	if err := middleware.BindJSON(c, &in); err != nil {
		rt.badRequest(c, "register", err)
		return
	}
	if len(in.Password) > maxPasswordBytes {
		rt.badRequest(c, "register", bcrypt.ErrPasswordTooLong)
		return
	}

	u, err := rt.svc.Register(c.Request.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		rt.fail(c, "register", err)
		return
	}

	rt.events.RecordAuthEvent("register", "ok")
	c.JSON(http.StatusCreated, registerResponse{ID: u.ID.Hex(), Name: u.Name, Email: u.Email})
}

func (rt *Router) login(c *gin.Context) {
	var in loginRequest
	if err := middleware.BindJSON(c, &in); err != nil {
		rt.badRequest(c, "login", err)
		return
	}

	pair, err := rt.svc.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		rt.fail(c, "login", err)
		return
	}

	rt.events.RecordAuthEvent("login", "ok")
	c.Header(TokenHeader, pair.AccessToken)
	c.JSON(http.StatusOK, pair)
}

func (rt *Router) refresh(c *gin.Context) {
	var in refreshRequest
	if err := middleware.BindJSON(c, &in); err != nil {
		rt.badRequest(c, "refresh", err)
		return
	}

	pair, err := rt.svc.Refresh(c.Request.Context(), in.RefreshToken)
	if err != nil {
		rt.fail(c, "refresh", err)
		return
	}

	rt.events.RecordAuthEvent("refresh", "ok")
	c.JSON(http.StatusOK, pair)
}

func (rt *Router) logout(c *gin.Context) {
	var in refreshRequest
	if err := middleware.BindJSON(c, &in); err != nil {
		rt.badRequest(c, "logout", err)
		return
	}

	if err := rt.svc.Logout(c.Request.Context(), in.RefreshToken); err != nil {
		rt.fail(c, "logout", err)
		return
	}

	rt.events.RecordAuthEvent("logout", "ok")
	c.JSON(http.StatusOK, gin.H{"message": "logged_out"})
}

func (rt *Router) me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		rt.fail(c, "me", ErrInvalidToken)
		return
	}

	u, err := rt.svc.Profile(c.Request.Context(), claims)
	if err != nil {
		rt.fail(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (rt *Router) badRequest(c *gin.Context, event string, err error) {
	log.Debug().Err(err).Str("event", event).Str("request_id", middleware.RequestID(c)).Msg("invalid auth request")
	rt.events.RecordAuthEvent(event, "invalid_request")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}

func (rt *Router) fail(c *gin.Context, event string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("event", event).Str("request_id", middleware.RequestID(c)).Msg("auth request failed")
	}
	rt.events.RecordAuthEvent(event, code)
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrNotReady):
		return http.StatusServiceUnavailable, "database_unavailable"
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, ErrTokenRevoked):
		return http.StatusUnauthorized, "token_revoked"
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RequireToken rejects requests without a valid access token and stores its
// claims for ClaimsFrom.
func RequireToken(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := svc.Authenticate(raw)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("access token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(c.GetHeader(TokenHeader))
}

func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
