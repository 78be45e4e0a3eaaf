// Package handlers contains the gin handlers behind the API routes.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/config"
	"github.com/pixelframe/pixelframe/internal/models"
	"github.com/pixelframe/pixelframe/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	db  *gorm.DB
	jwt config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwt config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt}
}

type registerRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

// Register creates an account and returns a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	handle := strings.ToLower(strings.TrimSpace(req.Handle))
	if !validSlug(handle) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "handle must be lowercase letters, digits and hyphens"})
		return
	}
	if len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	hash, errHash := security.HashPassword(req.Password)
	if errHash != nil {
		log.Errorf("hash password failed: %v", errHash)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	user := models.User{
		Handle:   handle,
		Email:    strings.TrimSpace(req.Email),
		Password: hash,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) || strings.Contains(errCreate.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, gin.H{"error": "handle already taken"})
			return
		}
		log.Errorf("create user failed: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	token, errToken := security.GenerateToken(h.jwt.Secret, user.ID, user.Handle, h.jwt.TTL())
	if errToken != nil {
		log.Errorf("generate token failed: %v", errToken)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":  token,
		"handle": user.Handle,
	})
}

type loginRequest struct {
	Handle   string `json:"handle" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	handle := strings.ToLower(strings.TrimSpace(req.Handle))

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("handle = ?", handle).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Errorf("load user failed: %v", errFind)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if !security.CheckPassword(user.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if user.Disabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}

	token, errToken := security.GenerateToken(h.jwt.Secret, user.ID, user.Handle, h.jwt.TTL())
	if errToken != nil {
		log.Errorf("generate token failed: %v", errToken)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"handle": user.Handle,
	})
}
