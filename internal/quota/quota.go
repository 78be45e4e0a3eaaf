// Package quota tracks each user's replenishing placement allowance.
//
// Replenishment is lazy: a user regains one unit every RefillInterval, capped
// at the allowance cap, computed from (available, lastRefill) whenever the
// state is read. Consumption is a single conditional UPDATE so two concurrent
// placements by the same user can never both spend the last unit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixelframe/pixelframe/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefillInterval is the time to regain one unit. A full refill from zero
// takes exactly one hour at the cap of 100.
const RefillInterval = 36 * time.Second

// ErrExhausted indicates no units are available.
var ErrExhausted = errors.New("quota exhausted")

// refillTicks returns the number of whole refill intervals elapsed.
func refillTicks(lastRefill, now time.Time) int {
	if !now.After(lastRefill) {
		return 0
	}
	return int(now.Sub(lastRefill) / RefillInterval)
}

// ComputeAvailable returns the effective allowance at now, before any
// consumption, as a pure function of the stored state.
func ComputeAvailable(available int, lastRefill, now time.Time) int {
	effective := available + refillTicks(lastRefill, now)
	if effective > models.QuotaCap {
		return models.QuotaCap
	}
	if effective < 0 {
		return 0
	}
	return effective
}

// NextUnitIn returns how long until one more unit becomes available, or zero
// when a unit is already available or the allowance is at the cap.
func NextUnitIn(available int, lastRefill, now time.Time) time.Duration {
	if ComputeAvailable(available, lastRefill, now) >= models.QuotaCap {
		return 0
	}
	elapsed := now.Sub(lastRefill)
	if elapsed < 0 {
		elapsed = 0
	}
	return RefillInterval - elapsed%RefillInterval
}

// Manager provides atomic quota operations over the quota_states table.
type Manager struct {
	db *gorm.DB
}

// NewManager constructs a Manager backed by GORM.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// ensure creates the user's quota row at the full cap when absent.
func (m *Manager) ensure(ctx context.Context, userHandle string, now time.Time) error {
	row := models.QuotaState{
		UserHandle: userHandle,
		Available:  models.QuotaCap,
		LastRefill: now.UTC(),
	}
	return m.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// load reads the user's stored state, creating it when absent.
func (m *Manager) load(ctx context.Context, userHandle string, now time.Time) (models.QuotaState, error) {
	if errEnsure := m.ensure(ctx, userHandle, now); errEnsure != nil {
		return models.QuotaState{}, fmt.Errorf("quota: ensure state: %w", errEnsure)
	}
	var state models.QuotaState
	if errFind := m.db.WithContext(ctx).
		Where("user_handle = ?", userHandle).
		First(&state).Error; errFind != nil {
		return models.QuotaState{}, fmt.Errorf("quota: load state: %w", errFind)
	}
	return state, nil
}

// Available returns the user's effective allowance at now.
func (m *Manager) Available(ctx context.Context, userHandle string, now time.Time) (int, time.Duration, error) {
	state, errLoad := m.load(ctx, userHandle, now)
	if errLoad != nil {
		return 0, 0, errLoad
	}
	available := ComputeAvailable(state.Available, state.LastRefill, now)
	return available, NextUnitIn(state.Available, state.LastRefill, now), nil
}

// applyRefill folds elapsed whole ticks into the stored state. The update is
// guarded by the previously observed last_refill so two racing refills can
// never double-apply the same ticks; losing the race is fine, the winner has
// already applied them.
func (m *Manager) applyRefill(ctx context.Context, userHandle string, state models.QuotaState, now time.Time) error {
	ticks := refillTicks(state.LastRefill, now)
	if ticks == 0 {
		return nil
	}
	newAvailable := state.Available + ticks
	if newAvailable > models.QuotaCap {
		newAvailable = models.QuotaCap
	}
	newRefill := state.LastRefill.Add(time.Duration(ticks) * RefillInterval)
	return m.db.WithContext(ctx).
		Model(&models.QuotaState{}).
		Where("user_handle = ? AND last_refill = ?", userHandle, state.LastRefill).
		Updates(map[string]any{
			"available":   newAvailable,
			"last_refill": newRefill,
		}).Error
}

// TryConsume atomically spends one unit. On success it returns the remaining
// allowance; when exhausted it returns ErrExhausted together with the time
// until the next unit replenishes.
func (m *Manager) TryConsume(ctx context.Context, userHandle string, now time.Time) (int, time.Duration, error) {
	state, errLoad := m.load(ctx, userHandle, now)
	if errLoad != nil {
		return 0, 0, errLoad
	}
	if errRefill := m.applyRefill(ctx, userHandle, state, now); errRefill != nil {
		return 0, 0, fmt.Errorf("quota: apply refill: %w", errRefill)
	}

	res := m.db.WithContext(ctx).
		Model(&models.QuotaState{}).
		Where("user_handle = ? AND available >= 1", userHandle).
		Update("available", gorm.Expr("available - 1"))
	if res.Error != nil {
		return 0, 0, fmt.Errorf("quota: consume: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var fresh models.QuotaState
		if errFind := m.db.WithContext(ctx).
			Where("user_handle = ?", userHandle).
			First(&fresh).Error; errFind == nil {
			state = fresh
		}
		return 0, NextUnitIn(state.Available, state.LastRefill, now), ErrExhausted
	}

	var fresh models.QuotaState
	if errFind := m.db.WithContext(ctx).
		Where("user_handle = ?", userHandle).
		First(&fresh).Error; errFind != nil {
		return 0, 0, fmt.Errorf("quota: reload state: %w", errFind)
	}
	return ComputeAvailable(fresh.Available, fresh.LastRefill, now), NextUnitIn(fresh.Available, fresh.LastRefill, now), nil
}

// Refund returns one unit, capped at the allowance cap. Refunding a user at
// the cap is a no-op.
func (m *Manager) Refund(ctx context.Context, userHandle string, now time.Time) (int, error) {
	if errEnsure := m.ensure(ctx, userHandle, now); errEnsure != nil {
		return 0, fmt.Errorf("quota: ensure state: %w", errEnsure)
	}

	res := m.db.WithContext(ctx).
		Model(&models.QuotaState{}).
		Where("user_handle = ? AND available < ?", userHandle, models.QuotaCap).
		Update("available", gorm.Expr("available + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("quota: refund: %w", res.Error)
	}

	var fresh models.QuotaState
	if errFind := m.db.WithContext(ctx).
		Where("user_handle = ?", userHandle).
		First(&fresh).Error; errFind != nil {
		return 0, fmt.Errorf("quota: reload state: %w", errFind)
	}
	return ComputeAvailable(fresh.Available, fresh.LastRefill, now), nil
}
