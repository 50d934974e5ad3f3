package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquirePaymentLock serializes adjustments per payment schedule across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the adjustment transaction.
func AcquirePaymentLock(tx *gorm.DB, scheduleId int) error {
	lockName := fmt.Sprintf("vendor_payment:%d", scheduleId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire payment lock for schedule_id=%d", scheduleId)
	}
	return nil
}

func ReleasePaymentLock(tx *gorm.DB, scheduleId int) {
	lockName := fmt.Sprintf("vendor_payment:%d", scheduleId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
