package models

import (
	"context"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRecord implements a transactional outbox for the fan-out
// boundary: the row is written inside the caller's DB transaction but nothing
// is published until the dispatcher picks it up after commit. A publish
// failure therefore never rolls back a task or payment state change.
type NotificationRecord struct {
	ID               int        `gorm:"primary_key" json:"id"`
	UserId           int        `gorm:"index;not null" json:"user_id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Message          string     `gorm:"type:text" json:"message"`
	ReferenceType    string     `gorm:"size:100;index" json:"reference_type"`
	ReferenceId      int        `gorm:"index" json:"reference_id"`
	Metadata         string     `gorm:"type:text" json:"metadata"`
	PublishStatus    string     `gorm:"size:20;index;default:PENDING" json:"publish_status"`
	PublishAttempts  int        `gorm:"default:0" json:"publish_attempts"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	CorrelationId    string     `gorm:"size:64" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// QueueNotification writes one outbox row inside tx. Publishing happens
// asynchronously in the outbox dispatcher.
func QueueNotification(ctx context.Context, tx *gorm.DB, userId int, title, message, referenceType string, referenceId int, metadata map[string]string) error {
	if userId <= 0 {
		// Unassigned tasks have nobody to notify; the diagnostic note on the
		// task itself is the alert channel.
		return nil
	}

	metaJSON := ""
	if len(metadata) > 0 {
		s, err := utils.MarshalToJSON(metadata)
		if err != nil {
			return err
		}
		metaJSON = s
	}

	record := NotificationRecord{
		UserId:        userId,
		Title:         title,
		Message:       message,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Metadata:      metaJSON,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func GetNotification(ctx context.Context, id int) (*NotificationRecord, error) {
	db := config.GetDB()
	var result NotificationRecord
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
