package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/permission"
	"github.com/pixelframe/pixelframe/internal/realtime"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LiveHandler upgrades viewers to the frame's realtime event stream.
type LiveHandler struct {
	db          *gorm.DB
	permissions *permission.Store
	hub         *realtime.Hub
}

// NewLiveHandler constructs a LiveHandler.
func NewLiveHandler(db *gorm.DB, permissions *permission.Store, hub *realtime.Hub) *LiveHandler {
	return &LiveHandler{db: db, permissions: permissions, hub: hub}
}

// Subscribe checks view permission, then hands the connection to the
// websocket pump. The handler blocks until the client disconnects.
func (h *LiveHandler) Subscribe(c *gin.Context) {
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

	sub := h.hub.Subscribe(frame.ID)
	realtime.ServeSubscriber(h.hub, c.Writer, c.Request, sub)
}
