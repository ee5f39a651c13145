package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"stock_radar/config"
	"stock_radar/middleware"
)

// AuthController issues API tokens for protected operations
type AuthController struct{}

// NewAuthController creates an auth controller
func NewAuthController() *AuthController {
	return &AuthController{}
}

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// IssueToken exchanges admin credentials for a bearer token
// POST /api/v1/auth/token
func (ac *AuthController) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash := config.AppConfig.AdminPasswordHash
	if hash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access not configured"})
		return
	}
	if req.Username != "admin" ||
		bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.IssueToken(req.Username, "admin")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": 86400,
	})
}
