package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pixelframe/pixelframe/internal/models"
	"gorm.io/gorm"
)

// ErrFrameNotFound indicates the frame does not exist.
var ErrFrameNotFound = errors.New("snapshot: frame not found")

// Store creates snapshots and serves snapshot+tail reconstructions.
type Store struct {
	db     *gorm.DB
	retain int
}

// NewStore constructs a Store keeping retain snapshots per frame.
func NewStore(db *gorm.DB, retain int) *Store {
	if retain <= 0 {
		retain = 3
	}
	return &Store{db: db, retain: retain}
}

// Reconstruction is everything a client needs to render current state: the
// latest snapshot (nil when none exists yet) plus every placement strictly
// after its cutoff, in replay order.
type Reconstruction struct {
	SnapshotData []byte
	CutoffAt     time.Time
	CutoffSeq    uint64
	Pixels       []models.PixelHistory
}

// latest returns the newest snapshot row for a frame, or nil.
func (s *Store) latest(ctx context.Context, frameID uint64) (*models.Snapshot, error) {
	var snap models.Snapshot
	errFind := s.db.WithContext(ctx).
		Where("frame_id = ?", frameID).
		Order("cutoff_at DESC, id DESC").
		First(&snap).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: load latest: %w", errFind)
	}
	return &snap, nil
}

// Create materializes the frame's current grid by replaying its full history
// in placement order and stores the compressed result. The cutoff watermark is
// the newest replayed row, so a placement committing during compaction lands
// strictly after it and stays in the reconstruction tail. Creating a snapshot
// when nothing changed since the last one is a no-op.
func (s *Store) Create(ctx context.Context, frameID uint64) (*models.Snapshot, error) {
	var frame models.Frame
	if errFind := s.db.WithContext(ctx).First(&frame, frameID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrFrameNotFound
		}
		return nil, fmt.Errorf("snapshot: load frame: %w", errFind)
	}

	var rows []models.PixelHistory
	if errFind := s.db.WithContext(ctx).
		Where("frame_id = ?", frameID).
		Order("placed_at ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("snapshot: load history: %w", errFind)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	last := rows[len(rows)-1]
	prev, errLatest := s.latest(ctx, frameID)
	if errLatest != nil {
		return nil, errLatest
	}
	if prev != nil && prev.CutoffSeq >= last.ID {
		return prev, nil
	}

	grid := make([]uint32, frame.Width*frame.Height)
	for _, row := range rows {
		if row.X < 0 || row.X >= frame.Width || row.Y < 0 || row.Y >= frame.Height {
			continue
		}
		grid[row.Y*frame.Width+row.X] = row.Color
	}

	snap := models.Snapshot{
		FrameID:    frameID,
		ArtifactID: uuid.NewString(),
		Data:       EncodeGrid(grid),
		CutoffAt:   last.PlacedAt,
		CutoffSeq:  last.ID,
	}
	if errCreate := s.db.WithContext(ctx).Create(&snap).Error; errCreate != nil {
		return nil, fmt.Errorf("snapshot: store: %w", errCreate)
	}

	if errPrune := s.prune(ctx, frameID); errPrune != nil {
		return nil, errPrune
	}
	return &snap, nil
}

// prune deletes all but the newest retain snapshots of a frame.
func (s *Store) prune(ctx context.Context, frameID uint64) error {
	var keep []uint64
	if errFind := s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("frame_id = ?", frameID).
		Order("cutoff_at DESC, id DESC").
		Limit(s.retain).
		Pluck("id", &keep).Error; errFind != nil {
		return fmt.Errorf("snapshot: prune select: %w", errFind)
	}
	if len(keep) < s.retain {
		return nil
	}
	if errDelete := s.db.WithContext(ctx).
		Where("frame_id = ? AND id NOT IN ?", frameID, keep).
		Delete(&models.Snapshot{}).Error; errDelete != nil {
		return fmt.Errorf("snapshot: prune delete: %w", errDelete)
	}
	return nil
}

// Reconstruct returns the latest snapshot plus the ordered tail of placements
// strictly after its cutoff. With no snapshot yet, the tail is the frame's
// whole history and SnapshotData is nil.
func (s *Store) Reconstruct(ctx context.Context, frameID uint64) (*Reconstruction, error) {
	snap, errLatest := s.latest(ctx, frameID)
	if errLatest != nil {
		return nil, errLatest
	}

	out := &Reconstruction{}
	query := s.db.WithContext(ctx).Where("frame_id = ?", frameID)
	if snap != nil {
		out.SnapshotData = snap.Data
		out.CutoffAt = snap.CutoffAt
		out.CutoffSeq = snap.CutoffSeq
		query = query.Where("placed_at > ? OR (placed_at = ? AND id > ?)", snap.CutoffAt, snap.CutoffAt, snap.CutoffSeq)
	}
	if errFind := query.
		Order("placed_at ASC, id ASC").
		Find(&out.Pixels).Error; errFind != nil {
		return nil, fmt.Errorf("snapshot: load tail: %w", errFind)
	}
	return out, nil
}

// Grid replays a reconstruction into a full width×height grid. Clients do the
// same thing locally; the server uses it in tests and for parity checks.
func (r *Reconstruction) Grid(width, height int) ([]uint32, error) {
	var grid []uint32
	if r.SnapshotData != nil {
		decoded, errDecode := DecodeGrid(r.SnapshotData, width, height)
		if errDecode != nil {
			return nil, errDecode
		}
		grid = decoded
	} else {
		grid = make([]uint32, width*height)
	}
	for _, row := range r.Pixels {
		if row.X < 0 || row.X >= width || row.Y < 0 || row.Y >= height {
			continue
		}
		grid[row.Y*width+row.X] = row.Color
	}
	return grid, nil
}
