package snapshot

import (
	"context"
	"time"

	"github.com/pixelframe/pixelframe/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Compactor periodically snapshots every frame with pixel history. A failed
// cycle is logged and retried on the next tick; compaction never blocks or
// fails live placements.
type Compactor struct {
	db       *gorm.DB
	store    *Store
	interval time.Duration
}

// NewCompactor constructs a Compactor running every interval.
func NewCompactor(db *gorm.DB, store *Store, interval time.Duration) *Compactor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Compactor{db: db, store: store, interval: interval}
}

// Run blocks until ctx is cancelled, compacting on every tick.
func (c *Compactor) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.Infof("snapshot compactor started, interval %s", c.interval)
	for {
		select {
		case <-ctx.Done():
			log.Info("snapshot compactor stopped")
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce compacts every frame with history. Errors are logged per frame so
// one bad frame cannot starve the rest.
func (c *Compactor) RunOnce(ctx context.Context) {
	var frameIDs []uint64
	if errFind := c.db.WithContext(ctx).
		Model(&models.PixelHistory{}).
		Distinct("frame_id").
		Pluck("frame_id", &frameIDs).Error; errFind != nil {
		log.Errorf("snapshot compactor: list frames: %v", errFind)
		return
	}

	for _, frameID := range frameIDs {
		if ctx.Err() != nil {
			return
		}
		if _, errCreate := c.store.Create(ctx, frameID); errCreate != nil {
			if errCreate == ErrFrameNotFound {
				// Frame deleted between listing and compaction.
				continue
			}
			log.Errorf("snapshot compactor: frame %d: %v", frameID, errCreate)
		}
	}
}
