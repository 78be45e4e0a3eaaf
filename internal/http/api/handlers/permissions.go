package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/models"
	"github.com/pixelframe/pixelframe/internal/permission"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PermissionHandler serves access requests and owner resolutions.
type PermissionHandler struct {
	db          *gorm.DB
	permissions *permission.Store
}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler(db *gorm.DB, permissions *permission.Store) *PermissionHandler {
	return &PermissionHandler{db: db, permissions: permissions}
}

func permissionResponse(record *models.FramePermission) gin.H {
	return gin.H{
		"userHandle": record.UserHandle,
		"type":       record.Type,
		"grantedBy":  record.GrantedBy,
		"createdAt":  record.CreatedAt,
		"updatedAt":  record.UpdatedAt,
	}
}

// RequestAccess files a pending access request on an approval-required frame.
func (h *PermissionHandler) RequestAccess(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}

	record, errRequest := h.permissions.RequestAccess(c.Request.Context(), frame, getUserHandle(c))
	if errRequest != nil {
		switch {
		case errors.Is(errRequest, permission.ErrOwnerRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner cannot request access"})
		case errors.Is(errRequest, permission.ErrNotApprovalRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "frame does not take access requests"})
		case errors.Is(errRequest, permission.ErrAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "a permission record already exists"})
		default:
			log.Errorf("request access failed: %v", errRequest)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "request access failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": permissionResponse(record)})
}

// List returns every permission record on the frame. Owner only.
func (h *PermissionHandler) List(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}
	if frame.OwnerHandle != getUserHandle(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can list permissions"})
		return
	}

	records, errList := h.permissions.ListForFrame(c.Request.Context(), frame.ID)
	if errList != nil {
		log.Errorf("list permissions failed: %v", errList)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list permissions failed"})
		return
	}

	out := make([]gin.H, 0, len(records))
	for i := range records {
		out = append(out, permissionResponse(&records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out})
}

type resolveRequest struct {
	UserHandle string `json:"userHandle" binding:"required"`
	Type       string `json:"type" binding:"required"`
}

// Resolve settles a pending access request to contributor or blocked. Owner
// only.
func (h *PermissionHandler) Resolve(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}
	owner := getUserHandle(c)
	if frame.OwnerHandle != owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can resolve access requests"})
		return
	}

	var req resolveRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Type != models.PermissionTypeContributor && req.Type != models.PermissionTypeBlocked {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be contributor or blocked"})
		return
	}

	record, errResolve := h.permissions.Resolve(c.Request.Context(), frame.ID, req.UserHandle, req.Type, owner)
	if errResolve != nil {
		switch {
		case errors.Is(errResolve, permission.ErrNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": "no pending access request for that user"})
		default:
			log.Errorf("resolve access request failed: %v", errResolve)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve access request failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"permission": permissionResponse(record)})
}
