package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/quota"
	log "github.com/sirupsen/logrus"
)

// QuotaHandler serves the caller's placement allowance.
type QuotaHandler struct {
	quota *quota.Manager
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(quotaMgr *quota.Manager) *QuotaHandler {
	return &QuotaHandler{quota: quotaMgr}
}

// Get returns the caller's available units and the wait until the next one.
func (h *QuotaHandler) Get(c *gin.Context) {
	available, nextUnit, errLoad := h.quota.Available(c.Request.Context(), getUserHandle(c), time.Now().UTC())
	if errLoad != nil {
		log.Errorf("load quota failed: %v", errLoad)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load quota failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"available":      available,
		"nextUnitInMs":   nextUnit.Milliseconds(),
		"refillInterval": quota.RefillInterval.Milliseconds(),
	})
}
