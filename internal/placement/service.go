// Package placement is the authority and sole entry point for pixel mutation.
package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixelframe/pixelframe/internal/models"
	"github.com/pixelframe/pixelframe/internal/palette"
	"github.com/pixelframe/pixelframe/internal/permission"
	"github.com/pixelframe/pixelframe/internal/quota"
	"github.com/pixelframe/pixelframe/internal/realtime"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service accepts or rejects pixel placement and undo requests. All checks
// run before any state change; the write itself is a history insert plus a
// conditional coordinate upsert inside one transaction, so concurrent writers
// to one coordinate resolve to a single deterministic winner.
type Service struct {
	db          *gorm.DB
	quota       *quota.Manager
	permissions *permission.Store
	hub         *realtime.Hub
}

// NewService constructs a Service.
func NewService(db *gorm.DB, quotaMgr *quota.Manager, permissions *permission.Store, hub *realtime.Hub) *Service {
	return &Service{db: db, quota: quotaMgr, permissions: permissions, hub: hub}
}

// Result is the outcome of an accepted place or undo.
type Result struct {
	Pixel          realtime.PixelFact
	QuotaRemaining int
}

// loadFrame fetches a frame or rejects with FRAME_NOT_FOUND.
func (s *Service) loadFrame(ctx context.Context, frameID uint64) (*models.Frame, error) {
	var frame models.Frame
	if errFind := s.db.WithContext(ctx).First(&frame, frameID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, reject(CodeFrameNotFound, "frame not found")
		}
		return nil, fmt.Errorf("placement: load frame: %w", errFind)
	}
	return &frame, nil
}

// authorize runs the frozen and permission checks shared by place and undo.
func (s *Service) authorize(ctx context.Context, frame *models.Frame, userHandle string) error {
	if frame.Frozen {
		return reject(CodeFrameFrozen, "frame is frozen")
	}
	record, errLookup := s.permissions.Lookup(ctx, frame.ID, userHandle)
	if errLookup != nil {
		return errLookup
	}
	if permission.IsBlocked(record) {
		return reject(CodeUserBlocked, "user is blocked on this frame")
	}
	if !permission.CanEdit(frame, userHandle, record) {
		return reject(CodePermissionDenied, "no edit permission on this frame")
	}
	return nil
}

// Place applies one pixel placement. Re-placing the identical color at a
// coordinate succeeds without consuming quota.
func (s *Service) Place(ctx context.Context, frameID uint64, userHandle string, x, y int, color uint32, now time.Time) (*Result, error) {
	frame, errFrame := s.loadFrame(ctx, frameID)
	if errFrame != nil {
		return nil, errFrame
	}
	if errAuth := s.authorize(ctx, frame, userHandle); errAuth != nil {
		return nil, errAuth
	}
	if !palette.ValidCoordinates(x, y, frame.Width, frame.Height) {
		return nil, reject(CodeInvalidCoordinates, fmt.Sprintf("coordinates (%d, %d) outside %dx%d", x, y, frame.Width, frame.Height))
	}
	if !palette.ValidColor(color) {
		return nil, reject(CodeInvalidColor, fmt.Sprintf("color 0x%08X not in palette", color))
	}

	now = now.UTC()

	// Same color already current at the coordinate: idempotent success, no
	// quota spent.
	current, errCurrent := s.currentPixel(ctx, frameID, x, y)
	if errCurrent != nil {
		return nil, errCurrent
	}
	if current != nil && current.Color == color {
		remaining, _, errAvail := s.quota.Available(ctx, userHandle, now)
		if errAvail != nil {
			return nil, errAvail
		}
		return &Result{
			Pixel: realtime.PixelFact{
				X: current.X, Y: current.Y, Color: current.Color,
				Contributor: current.Contributor, PlacedAt: current.PlacedAt, Seq: current.Seq,
			},
			QuotaRemaining: remaining,
		}, nil
	}

	remaining, retryAfter, errConsume := s.quota.TryConsume(ctx, userHandle, now)
	if errConsume != nil {
		if errors.Is(errConsume, quota.ErrExhausted) {
			return nil, &Error{Code: CodeQuotaExceeded, Message: "placement quota exhausted", RetryAfter: retryAfter}
		}
		return nil, errConsume
	}

	history := models.PixelHistory{
		FrameID:     frameID,
		X:           x,
		Y:           y,
		Color:       color,
		Contributor: userHandle,
		Kind:        models.HistoryKindPlace,
		PlacedAt:    now,
	}
	if errWrite := s.writePixel(ctx, &history); errWrite != nil {
		// The unit was consumed but nothing was written; give it back.
		if _, errRefund := s.quota.Refund(ctx, userHandle, now); errRefund != nil {
			log.Errorf("placement: refund after failed write: %v", errRefund)
		}
		return nil, errWrite
	}

	fact := realtime.PixelFact{
		X: x, Y: y, Color: color,
		Contributor: userHandle, PlacedAt: now, Seq: history.ID,
	}
	s.publishPixel(frameID, fact)
	s.updateStats(ctx, frameID, now)

	return &Result{Pixel: fact, QuotaRemaining: remaining}, nil
}

// currentPixel returns the current row at (frameID, x, y), or nil.
func (s *Service) currentPixel(ctx context.Context, frameID uint64, x, y int) (*models.Pixel, error) {
	var pixel models.Pixel
	errFind := s.db.WithContext(ctx).
		Where("frame_id = ? AND x = ? AND y = ?", frameID, x, y).
		First(&pixel).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("placement: load pixel: %w", errFind)
	}
	return &pixel, nil
}

// writePixel appends the history row and conditionally upserts the current
// row in one transaction. The upsert only replaces an existing value when the
// new row wins by (placed_at, seq), so racing writers at one coordinate
// settle on a single deterministic winner: later timestamp, then higher
// storage-assigned sequence.
func (s *Service) writePixel(ctx context.Context, history *models.PixelHistory) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(history).Error; errCreate != nil {
			return fmt.Errorf("placement: append history: %w", errCreate)
		}

		row := models.Pixel{
			FrameID:     history.FrameID,
			X:           history.X,
			Y:           history.Y,
			Color:       history.Color,
			Contributor: history.Contributor,
			PlacedAt:    history.PlacedAt,
			Seq:         history.ID,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "frame_id"}, {Name: "x"}, {Name: "y"}},
			DoUpdates: clause.Assignments(map[string]any{
				"color":       history.Color,
				"contributor": history.Contributor,
				"placed_at":   history.PlacedAt,
				"seq":         history.ID,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "pixels.placed_at < excluded.placed_at OR (pixels.placed_at = excluded.placed_at AND pixels.seq < excluded.seq)"},
			}},
		}).Create(&row).Error
	})
	if errTx != nil {
		return errTx
	}
	return nil
}

// errSuperseded aborts a revert transaction when the caller's placement
// stopped being the current value between candidacy check and write.
var errSuperseded = errors.New("placement: revert superseded")

// writeRevert appends the revert history row and applies it to the current
// row only while replaceSeq is still the winning write at the coordinate.
// The guard lives in the UPDATE itself rather than in a prior read, so a
// placement committing after the candidacy check survives: the update
// matches zero rows and the whole transaction, history row included, rolls
// back.
func (s *Service) writeRevert(ctx context.Context, history *models.PixelHistory, replaceSeq uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(history).Error; errCreate != nil {
			return fmt.Errorf("placement: append history: %w", errCreate)
		}

		res := tx.Model(&models.Pixel{}).
			Where("frame_id = ? AND x = ? AND y = ? AND seq = ?",
				history.FrameID, history.X, history.Y, replaceSeq).
			Updates(map[string]any{
				"color":       history.Color,
				"contributor": history.Contributor,
				"placed_at":   history.PlacedAt,
				"seq":         history.ID,
			})
		if res.Error != nil {
			return fmt.Errorf("placement: apply revert: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errSuperseded
		}
		return nil
	})
}

// Undo reverts the caller's most recent placement in the frame, restores the
// coordinate's prior value, and refunds one quota unit. When the coordinate
// has since been overwritten by someone else the undo is rejected as a no-op
// rather than clobbering the newer pixel.
func (s *Service) Undo(ctx context.Context, frameID uint64, userHandle string, now time.Time) (*Result, error) {
	frame, errFrame := s.loadFrame(ctx, frameID)
	if errFrame != nil {
		return nil, errFrame
	}
	if errAuth := s.authorize(ctx, frame, userHandle); errAuth != nil {
		return nil, errAuth
	}

	now = now.UTC()

	// The caller's most recent placement, tracked as a queryable fact so any
	// instance can serve the undo.
	var candidate models.PixelHistory
	errFind := s.db.WithContext(ctx).
		Where("frame_id = ? AND contributor = ? AND kind = ?", frameID, userHandle, models.HistoryKindPlace).
		Order("placed_at DESC, id DESC").
		First(&candidate).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, reject(CodeNothingToUndo, "no placement to undo")
		}
		return nil, fmt.Errorf("placement: load undo candidate: %w", errFind)
	}

	// Early reject when the coordinate has already moved on. This is only a
	// cheap pre-check; writeRevert re-verifies the seq inside its UPDATE so a
	// placement landing after this read still cannot be clobbered.
	current, errCurrent := s.currentPixel(ctx, frameID, candidate.X, candidate.Y)
	if errCurrent != nil {
		return nil, errCurrent
	}
	if current == nil || current.Seq != candidate.ID {
		return nil, reject(CodeNothingToUndo, "placement already superseded")
	}

	// Prior committed value at the coordinate, or transparent when the
	// candidate painted a blank cell.
	var prior models.PixelHistory
	havePrior := true
	errPrior := s.db.WithContext(ctx).
		Where("frame_id = ? AND x = ? AND y = ? AND (placed_at < ? OR (placed_at = ? AND id < ?))",
			frameID, candidate.X, candidate.Y, candidate.PlacedAt, candidate.PlacedAt, candidate.ID).
		Order("placed_at DESC, id DESC").
		First(&prior).Error
	if errPrior != nil {
		if !errors.Is(errPrior, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("placement: load prior value: %w", errPrior)
		}
		havePrior = false
	}

	restoredColor := palette.Transparent
	restoredContributor := ""
	if havePrior {
		restoredColor = prior.Color
		restoredContributor = prior.Contributor
	}

	revert := models.PixelHistory{
		FrameID:     frameID,
		X:           candidate.X,
		Y:           candidate.Y,
		Color:       restoredColor,
		Contributor: restoredContributor,
		Kind:        models.HistoryKindRevert,
		PlacedAt:    now,
	}
	if errWrite := s.writeRevert(ctx, &revert, candidate.ID); errWrite != nil {
		if errors.Is(errWrite, errSuperseded) {
			return nil, reject(CodeNothingToUndo, "placement already superseded")
		}
		return nil, errWrite
	}

	remaining, errRefund := s.quota.Refund(ctx, userHandle, now)
	if errRefund != nil {
		return nil, errRefund
	}

	fact := realtime.PixelFact{
		X: revert.X, Y: revert.Y, Color: restoredColor,
		Contributor: restoredContributor, PlacedAt: now, Seq: revert.ID,
	}
	s.publishPixel(frameID, fact)

	return &Result{Pixel: fact, QuotaRemaining: remaining}, nil
}

// publishPixel emits a pixel event; fire-and-forget.
func (s *Service) publishPixel(frameID uint64, fact realtime.PixelFact) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(realtime.Event{
		Type:      realtime.EventPixel,
		FrameID:   frameID,
		Pixel:     &fact,
		Timestamp: fact.PlacedAt,
	})
}
