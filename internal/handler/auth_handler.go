package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// AuthHandler handles player identity endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// CreateGuest godoc
// POST /api/v1/auth/guest
// Issues a token for a new anonymous player.
func (h *AuthHandler) CreateGuest(c *gin.Context) {
	token, err := h.authService.IssueGuestToken()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, token)
}

// Me godoc
// GET /api/v1/auth/me
// Returns the player id behind the current token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"player_id":  claims.PlayerID,
		"expires_at": claims.ExpiresAt.Time,
	})
}
