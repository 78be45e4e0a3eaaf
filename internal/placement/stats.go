package placement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pixelframe/pixelframe/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// updateStats refreshes the frame's activity counters. It is a best-effort
// side-channel: any failure is logged and never fails the placement that
// triggered it.
func (s *Service) updateStats(ctx context.Context, frameID uint64, now time.Time) {
	var pixels int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.PixelHistory{}).
		Where("frame_id = ? AND kind = ?", frameID, models.HistoryKindPlace).
		Count(&pixels).Error; errCount != nil {
		log.Warnf("placement: count pixels for stats: %v", errCount)
		return
	}

	var contributors int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.PixelHistory{}).
		Where("frame_id = ? AND kind = ?", frameID, models.HistoryKindPlace).
		Distinct("contributor").
		Count(&contributors).Error; errCount != nil {
		log.Warnf("placement: count contributors for stats: %v", errCount)
		return
	}

	payload, errMarshal := json.Marshal(models.FrameStats{
		Pixels:       pixels,
		Contributors: contributors,
		LastActivity: now,
	})
	if errMarshal != nil {
		log.Warnf("placement: marshal stats: %v", errMarshal)
		return
	}

	if errUpdate := s.db.WithContext(ctx).
		Model(&models.Frame{}).
		Where("id = ?", frameID).
		Update("stats", datatypes.JSON(payload)).Error; errUpdate != nil {
		log.Warnf("placement: update stats: %v", errUpdate)
	}
}
