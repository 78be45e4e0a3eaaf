package handlers

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/models"
	"gorm.io/gorm"
)

// getUserHandle extracts the authenticated handle from gin context.
func getUserHandle(c *gin.Context) string {
	val, exists := c.Get("userHandle")
	if !exists {
		return ""
	}
	handle, ok := val.(string)
	if !ok {
		return ""
	}
	return handle
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// validSlug reports whether s is a usable frame or user slug.
func validSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// loadFrameBySlug resolves the :owner/:slug pair, answering 404 itself when
// the frame does not exist. Returns nil after writing the response.
func loadFrameBySlug(c *gin.Context, db *gorm.DB) *models.Frame {
	owner := c.Param("owner")
	slug := c.Param("slug")

	var frame models.Frame
	errFind := db.WithContext(c.Request.Context()).
		Where("owner_handle = ? AND slug = ?", owner, slug).
		First(&frame).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "frame not found", "code": "FRAME_NOT_FOUND"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load frame failed"})
		return nil
	}
	return &frame
}

// frameResponse is the frame metadata payload shared by several endpoints.
type frameResponse struct {
	ID          uint64 `json:"id"`
	Owner       string `json:"owner"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Permission  string `json:"permission"`
	Frozen      bool   `json:"frozen"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toFrameResponse(frame *models.Frame) frameResponse {
	return frameResponse{
		ID:          frame.ID,
		Owner:       frame.OwnerHandle,
		Slug:        frame.Slug,
		Title:       frame.Title,
		Description: frame.Description,
		Width:       frame.Width,
		Height:      frame.Height,
		Permission:  frame.Permission,
		Frozen:      frame.Frozen,
		CreatedAt:   frame.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		UpdatedAt:   frame.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}
