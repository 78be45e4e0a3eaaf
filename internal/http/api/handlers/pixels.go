package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/placement"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PixelHandler serves placements and undo.
type PixelHandler struct {
	db      *gorm.DB
	service *placement.Service
}

// NewPixelHandler constructs a PixelHandler.
func NewPixelHandler(db *gorm.DB, service *placement.Service) *PixelHandler {
	return &PixelHandler{db: db, service: service}
}

type placeRequest struct {
	X     *int    `json:"x" binding:"required"`
	Y     *int    `json:"y" binding:"required"`
	Color *uint32 `json:"color" binding:"required"`
}

// statusForCode maps a rejection code to an HTTP status.
func statusForCode(code placement.Code) int {
	switch code {
	case placement.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case placement.CodeInvalidCoordinates, placement.CodeInvalidColor:
		return http.StatusBadRequest
	case placement.CodeFrameFrozen, placement.CodeNothingToUndo:
		return http.StatusConflict
	case placement.CodePermissionDenied, placement.CodeUserBlocked:
		return http.StatusForbidden
	case placement.CodeFrameNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeRejection renders a typed rejection in the placement response shape.
func writeRejection(c *gin.Context, rejection *placement.Error) {
	body := gin.H{
		"success": false,
		"error":   rejection.Message,
		"code":    rejection.Code,
	}
	if rejection.RetryAfter > 0 {
		body["retryAfterMs"] = rejection.RetryAfter.Milliseconds()
	}
	c.JSON(statusForCode(rejection.Code), body)
}

// Place applies one pixel placement for the caller.
func (h *PixelHandler) Place(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}

	var req placeRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result, errPlace := h.service.Place(
		c.Request.Context(), frame.ID, getUserHandle(c),
		*req.X, *req.Y, *req.Color, time.Now().UTC(),
	)
	if errPlace != nil {
		if rejection := placement.AsError(errPlace); rejection != nil {
			writeRejection(c, rejection)
			return
		}
		log.Errorf("place pixel failed: %v", errPlace)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "place pixel failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"pixel":          result.Pixel,
		"quotaRemaining": result.QuotaRemaining,
	})
}

// Undo reverts the caller's most recent placement on the frame.
func (h *PixelHandler) Undo(c *gin.Context) {
	frame := loadFrameBySlug(c, h.db)
	if frame == nil {
		return
	}

	result, errUndo := h.service.Undo(c.Request.Context(), frame.ID, getUserHandle(c), time.Now().UTC())
	if errUndo != nil {
		if rejection := placement.AsError(errUndo); rejection != nil {
			writeRejection(c, rejection)
			return
		}
		log.Errorf("undo pixel failed: %v", errUndo)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "undo failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"pixel":          result.Pixel,
		"quotaRemaining": result.QuotaRemaining,
	})
}
