package mockapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/argscan/argscan/internal/auth"
	"github.com/argscan/argscan/internal/config"
	"github.com/argscan/argscan/internal/models"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserNotFound      = errors.New("user not found")
	ErrSessionClosed     = errors.New("session logged out")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

// GetSessionData returns the authenticated session of the request
func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// envelope is the {code, message, data} wrapper of every response
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Code: 0, Message: "success", Data: data})
}

func okMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Code: 0, Message: message, Data: data})
}

// fail reports an application error: HTTP 200 with a non-zero code
func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, envelope{Code: http.StatusInternalServerError, Message: message})
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.AbortWithStatusJSON(statusCode, envelope{Code: statusCode, Message: message})
}

// unauthorized reports an invalid session the way the service is configured
// to: an envelope code 401, or a transport 401 with a bare msg body
func (s *Server) unauthorized(c *gin.Context, err error) {
	s.logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected unauthenticated request")
	if s.config.ExpirySignal == config.ExpiryStatus {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "Unauthorized", "data": nil})
		return
	}
	c.AbortWithStatusJSON(http.StatusOK, envelope{Code: http.StatusUnauthorized, Message: "not logged in or login expired"})
}

// authMiddleware validates bearer tokens and loads the session
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			s.unauthorized(c, err)
			return
		}

		claims, err := s.issuer.ValidateToken(token)
		if err != nil {
			s.unauthorized(c, errors.Join(ErrInvalidToken, err))
			return
		}

		var login models.LoginLog
		if err := s.db.Where("session_id = ?", claims.ID).First(&login).Error; err != nil || login.LogoutTime != nil {
			s.unauthorized(c, ErrSessionClosed)
			return
		}

		var user models.User
		if err := models.FindByID(s.db, claims.UserID, &user); err != nil {
			s.unauthorized(c, ErrUserNotFound)
			return
		}

		if user.Status == models.StatusBanned {
			respondWithError(c, s.logger, http.StatusForbidden, errors.New("banned"), "account is banned")
			return
		}

		setSession(c, &auth.SessionData{
			UserID:    user.ID,
			Email:     user.Email,
			IsAdmin:   user.IsAdmin(),
			SessionID: claims.ID,
		})

		c.Next()
	}
}

// AdminOnlyMiddleware ensures the authenticated user is an admin
func AdminOnlyMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, exists := GetSessionData(c)
		if !exists {
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no session"), "Unauthorized")
			return
		}

		if !sessionData.IsAdmin {
			respondWithError(c, log, http.StatusForbidden, errors.New("not admin"), "admin permission required")
			return
		}

		c.Next()
	}
}

// mustSession returns the session set by authMiddleware
func mustSession(c *gin.Context) *auth.SessionData {
	session, _ := GetSessionData(c)
	return session
}
