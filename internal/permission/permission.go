// Package permission implements the three-tier frame access policy and the
// access-request flow feeding it.
package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/pixelframe/pixelframe/internal/models"
	"gorm.io/gorm"
)

// Access-request errors.
var (
	// ErrAlreadyExists indicates a record already exists in some state.
	ErrAlreadyExists = errors.New("permission record already exists")
	// ErrOwnerRequest indicates the frame owner requested access to their own frame.
	ErrOwnerRequest = errors.New("owner cannot request access")
	// ErrNotApprovalRequired indicates the frame does not take access requests.
	ErrNotApprovalRequired = errors.New("frame does not require approval")
	// ErrNotPending indicates a resolution targeted a record that is not pending.
	ErrNotPending = errors.New("permission record is not pending")
)

// CanView reports whether userHandle may view the frame. The record may be
// nil when no per-user row exists.
func CanView(frame *models.Frame, userHandle string, record *models.FramePermission) bool {
	if frame == nil {
		return false
	}
	if frame.OwnerHandle == userHandle {
		return true
	}
	switch frame.Permission {
	case models.PermissionOpen, models.PermissionApprovalRequired:
		return true
	case models.PermissionOwnerOnly:
		return false
	default:
		return false
	}
}

// CanEdit reports whether userHandle may place pixels on the frame. Frozen
// frames reject edits from everyone, the owner included.
func CanEdit(frame *models.Frame, userHandle string, record *models.FramePermission) bool {
	if frame == nil || frame.Frozen {
		return false
	}
	if frame.OwnerHandle == userHandle {
		return true
	}
	switch frame.Permission {
	case models.PermissionOpen:
		return record == nil || record.Type != models.PermissionTypeBlocked
	case models.PermissionApprovalRequired:
		return record != nil && record.Type == models.PermissionTypeContributor
	case models.PermissionOwnerOnly:
		return false
	default:
		return false
	}
}

// IsBlocked reports whether the record explicitly blocks the user.
func IsBlocked(record *models.FramePermission) bool {
	return record != nil && record.Type == models.PermissionTypeBlocked
}

// Store answers permission lookups and mutates records.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store backed by GORM.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Lookup returns the record for (frameID, userHandle), or nil when absent.
func (s *Store) Lookup(ctx context.Context, frameID uint64, userHandle string) (*models.FramePermission, error) {
	var record models.FramePermission
	errFind := s.db.WithContext(ctx).
		Where("frame_id = ? AND user_handle = ?", frameID, userHandle).
		First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("permission: lookup: %w", errFind)
	}
	return &record, nil
}

// RequestAccess creates a pending record for userHandle on an
// approval-required frame. Rejected when any record already exists, when the
// requester owns the frame, or when the frame is not approval-required.
func (s *Store) RequestAccess(ctx context.Context, frame *models.Frame, userHandle string) (*models.FramePermission, error) {
	if frame.OwnerHandle == userHandle {
		return nil, ErrOwnerRequest
	}
	if frame.Permission != models.PermissionApprovalRequired {
		return nil, ErrNotApprovalRequired
	}
	existing, errLookup := s.Lookup(ctx, frame.ID, userHandle)
	if errLookup != nil {
		return nil, errLookup
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	record := models.FramePermission{
		FrameID:    frame.ID,
		UserHandle: userHandle,
		Type:       models.PermissionTypePending,
	}
	if errCreate := s.db.WithContext(ctx).Create(&record).Error; errCreate != nil {
		return nil, fmt.Errorf("permission: create request: %w", errCreate)
	}
	return &record, nil
}

// Resolve moves a pending record to contributor or blocked. The caller is
// responsible for verifying the resolver owns the frame.
func (s *Store) Resolve(ctx context.Context, frameID uint64, userHandle, newType, resolvedBy string) (*models.FramePermission, error) {
	if newType != models.PermissionTypeContributor && newType != models.PermissionTypeBlocked {
		return nil, fmt.Errorf("permission: invalid type %q", newType)
	}
	record, errLookup := s.Lookup(ctx, frameID, userHandle)
	if errLookup != nil {
		return nil, errLookup
	}
	if record == nil || record.Type != models.PermissionTypePending {
		return nil, ErrNotPending
	}

	record.Type = newType
	record.GrantedBy = resolvedBy
	if errSave := s.db.WithContext(ctx).
		Model(&models.FramePermission{}).
		Where("id = ? AND type = ?", record.ID, models.PermissionTypePending).
		Updates(map[string]any{"type": newType, "granted_by": resolvedBy}).Error; errSave != nil {
		return nil, fmt.Errorf("permission: resolve: %w", errSave)
	}
	return record, nil
}

// ListForFrame returns every record attached to a frame.
func (s *Store) ListForFrame(ctx context.Context, frameID uint64) ([]models.FramePermission, error) {
	var records []models.FramePermission
	if errFind := s.db.WithContext(ctx).
		Where("frame_id = ?", frameID).
		Order("created_at ASC").
		Find(&records).Error; errFind != nil {
		return nil, fmt.Errorf("permission: list: %w", errFind)
	}
	return records, nil
}
