package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/models"
	"github.com/pixelframe/pixelframe/internal/permission"
	"github.com/pixelframe/pixelframe/internal/realtime"
	"github.com/pixelframe/pixelframe/internal/snapshot"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FrameHandler serves frame CRUD and the state fetch endpoint.
type FrameHandler struct {
	db          *gorm.DB
	permissions *permission.Store
	snapshots   *snapshot.Store
	hub         *realtime.Hub
}

// NewFrameHandler constructs a FrameHandler.
func NewFrameHandler(db *gorm.DB, permissions *permission.Store, snapshots *snapshot.Store, hub *realtime.Hub) *FrameHandler {
	return &FrameHandler{db: db, permissions: permissions, snapshots: snapshots, hub: hub}
}

type createFrameRequest struct {
	Slug        string `json:"slug" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Width       int    `json:"width" binding:"required"`
	Height      int    `json:"height" binding:"required"`
	Permission  string `json:"permission"`
}

// Create makes a new frame owned by the caller.
func (h *FrameHandler) Create(c *gin.Context) {
	var req createFrameRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !validSlug(slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug must be lowercase letters, digits and hyphens"})
		return
	}
	if !models.ValidFrameSize(req.Width, req.Height) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported frame size"})
		return
	}
	perm := req.Permission
	if perm == "" {
		perm = models.PermissionOpen
	}
	if perm != models.PermissionOpen && perm != models.PermissionApprovalRequired && perm != models.PermissionOwnerOnly {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permission mode"})
		return
	}

	frame := models.Frame{
		OwnerHandle: getUserHandle(c),
		Slug:        slug,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Width:       req.Width,
		Height:      req.Height,
		Permission:  perm,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&frame).Error; errCreate != nil {
		if strings.Contains(errCreate.Error(), "UNIQUE") || strings.Contains(errCreate.Error(), "duplicate") {
			c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
			return
		}
		log.Errorf("create frame failed: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create frame failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"frame": toFrameResponse(&frame)})
}

// ListOwn lists the caller's frames.
func (h *FrameHandler) ListOwn(c *gin.Context) {
	var frames []models.Frame
	errFind := h.db.WithContext(c.Request.Context()).
		Where("owner_handle = ?", getUserHandle(c)).
		Order("created_at DESC").
		Find(&frames).Error
	if errFind != nil {
		log.Errorf("list frames failed: %v", errFind)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list frames failed"})
		return
	}

	out := make([]frameResponse, 0, len(frames))
	for i := range frames {
		out = append(out, toFrameResponse(&frames[i]))
	}
	c.JSON(http.StatusOK, gin.H{"frames": out})
}

// viewable runs the view-permission check, answering 403 itself on denial.
func (h *FrameHandler) viewable(c *gin.Context, frame *models.Frame) bool {
	userHandle := getUserHandle(c)
	record, errLookup := h.permissions.Lookup(c.Request.Context(), frame.ID, userHandle)
	if errLookup != nil {
		log.Errorf("lookup permission failed: %v", errLookup)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load frame failed"})
		return false
	}
	if !permission.CanView(frame, userHandle, record) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied", "code": "PERMISSION_DENIED"})
		return false
	}
	return true
}

// Get returns frame metadata.
func (h *FrameHandler) Get(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}
	if !h.viewable(c, frame) {
		return
	}

	resp := gin.H{"frame": toFrameResponse(frame)}
	if len(frame.Stats) > 0 {
		resp["stats"] = frame.Stats
	}
	c.JSON(http.StatusOK, resp)
}

type updateFrameRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Permission  *string `json:"permission"`
	Frozen      *bool   `json:"frozen"`
}

// UpdateSettings changes mutable frame settings. Owner only. Width and height
// are fixed at creation and cannot be changed here.
func (h *FrameHandler) UpdateSettings(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}
	if frame.OwnerHandle != getUserHandle(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can change settings"})
		return
	}

	var req updateFrameRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updates := map[string]interface{}{}
	titleChanged := false
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		updates["title"] = title
		frame.Title = title
		titleChanged = true
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		updates["description"] = desc
		frame.Description = desc
		titleChanged = true
	}
	permissionChanged := false
	if req.Permission != nil {
		perm := *req.Permission
		if perm != models.PermissionOpen && perm != models.PermissionApprovalRequired && perm != models.PermissionOwnerOnly {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permission mode"})
			return
		}
		updates["permission"] = perm
		frame.Permission = perm
		permissionChanged = true
	}
	frozenChanged := false
	if req.Frozen != nil {
		updates["frozen"] = *req.Frozen
		frame.Frozen = *req.Frozen
		frozenChanged = true
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no changes requested"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.Frame{}).
		Where("id = ?", frame.ID).
		Updates(updates).Error
	if errUpdate != nil {
		log.Errorf("update frame failed: %v", errUpdate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update frame failed"})
		return
	}

	now := time.Now().UTC()
	if titleChanged {
		h.hub.Publish(realtime.Event{
			Type:        realtime.EventUpdateTitle,
			FrameID:     frame.ID,
			Title:       frame.Title,
			Description: frame.Description,
			Timestamp:   now,
		})
	}
	if permissionChanged {
		h.hub.Publish(realtime.Event{
			Type:       realtime.EventUpdatePermissions,
			FrameID:    frame.ID,
			Permission: frame.Permission,
			Timestamp:  now,
		})
	}
	if frozenChanged {
		frozen := frame.Frozen
		h.hub.Publish(realtime.Event{
			Type:      realtime.EventFreeze,
			FrameID:   frame.ID,
			Frozen:    &frozen,
			Timestamp: now,
		})
	}

	c.JSON(http.StatusOK, gin.H{"frame": toFrameResponse(frame)})
}

// Delete removes a frame and everything hanging off it. Owner only.
func (h *FrameHandler) Delete(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}
	if frame.OwnerHandle != getUserHandle(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can delete the frame"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("frame_id = ?", frame.ID).Delete(&models.Pixel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("frame_id = ?", frame.ID).Delete(&models.PixelHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("frame_id = ?", frame.ID).Delete(&models.Snapshot{}).Error; err != nil {
			return err
		}
		if err := tx.Where("frame_id = ?", frame.ID).Delete(&models.FramePermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Frame{}, frame.ID).Error
	})
	if errTx != nil {
		log.Errorf("delete frame failed: %v", errTx)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete frame failed"})
		return
	}

	h.hub.Publish(realtime.Event{
		Type:      realtime.EventDelete,
		FrameID:   frame.ID,
		Timestamp: time.Now().UTC(),
	})

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// State returns everything a client needs to render the frame: metadata, the
// latest snapshot blob, the placements after its cutoff, and the caller's
// permission record.
func (h *FrameHandler) State(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}

	userHandle := getUserHandle(c)
	record, errLookup := h.permissions.Lookup(c.Request.Context(), frame.ID, userHandle)
	if errLookup != nil {
		log.Errorf("lookup permission failed: %v", errLookup)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load frame failed"})
		return
	}
	if !permission.CanView(frame, userHandle, record) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied", "code": "PERMISSION_DENIED"})
		return
	}

	recon, errRecon := h.snapshots.Reconstruct(c.Request.Context(), frame.ID)
	if errRecon != nil {
		log.Errorf("reconstruct frame %d failed: %v", frame.ID, errRecon)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load frame state failed"})
		return
	}

	pixels := make([]gin.H, 0, len(recon.Pixels))
	for _, row := range recon.Pixels {
		pixels = append(pixels, gin.H{
			"x":           row.X,
			"y":           row.Y,
			"color":       row.Color,
			"contributor": row.Contributor,
			"placedAt":    row.PlacedAt,
			"seq":         row.ID,
		})
	}

	resp := gin.H{
		"frame":  toFrameResponse(frame),
		"pixels": pixels,
	}
	if recon.SnapshotData != nil {
		resp["snapshot"] = gin.H{
			"data":      base64.StdEncoding.EncodeToString(recon.SnapshotData),
			"cutoffAt":  recon.CutoffAt,
			"cutoffSeq": recon.CutoffSeq,
		}
	}
	if record != nil {
		resp["permission"] = gin.H{
			"type":      record.Type,
			"grantedBy": record.GrantedBy,
		}
	}
	c.JSON(http.StatusOK, resp)
}
