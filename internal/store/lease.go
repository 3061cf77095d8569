package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/makeasinger/producer/internal/model"
)

// AcquireLease claims the run lease for a production. Returns true only
// when no live lease exists (absent or expired); a second caller sees
// false and must treat the run as a no-op. The check-and-claim happens
// inside one transaction so two instances cannot both win.
func (s *Store) AcquireLease(productionID, owner string, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var lease model.ProductionLease
		err := tx.Where("production_id = ?", productionID).First(&lease).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			lease = model.ProductionLease{
				ProductionID: productionID,
				Owner:        owner,
				ExpiresAt:    time.Now().Add(ttl),
			}
			if err := tx.Create(&lease).Error; err != nil {
				return err
			}
			acquired = true
			return nil
		case err != nil:
			return err
		}
		if lease.ExpiresAt.After(time.Now()) && lease.Owner != owner {
			return nil // held by a live run elsewhere
		}
		lease.Owner = owner
		lease.ExpiresAt = time.Now().Add(ttl)
		if err := tx.Save(&lease).Error; err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store: acquire lease %s: %w", productionID, err)
	}
	return acquired, nil
}

// RenewLease extends a held lease. The orchestrator renews between units
// of work so long runs outlive the TTL.
func (s *Store) RenewLease(productionID, owner string, ttl time.Duration) error {
	res := s.db.Model(&model.ProductionLease{}).
		Where("production_id = ? AND owner = ?", productionID, owner).
		Update("expires_at", time.Now().Add(ttl))
	if res.Error != nil {
		return fmt.Errorf("store: renew lease %s: %w", productionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: renew lease %s: not held by %s", productionID, owner)
	}
	return nil
}

// ReleaseLease drops the lease at the end of a run.
func (s *Store) ReleaseLease(productionID, owner string) error {
	err := s.db.Where("production_id = ? AND owner = ?", productionID, owner).
		Delete(&model.ProductionLease{}).Error
	if err != nil {
		return fmt.Errorf("store: release lease %s: %w", productionID, err)
	}
	return nil
}

// LeaseHeld reports whether a live (unexpired) lease exists. Recovery
// only resumes a production when this is false.
func (s *Store) LeaseHeld(productionID string) (bool, error) {
	var lease model.ProductionLease
	err := s.db.Where("production_id = ?", productionID).First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: lease held %s: %w", productionID, err)
	}
	return lease.ExpiresAt.After(time.Now()), nil
}
