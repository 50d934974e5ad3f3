package models

import (
	"context"
	"time"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/utils"
)

type Vendor struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	ContactName  *string   `gorm:"size:255" json:"contact_name"`
	ContactPhone *string   `gorm:"size:50" json:"contact_phone"`
	ContactEmail *string   `gorm:"size:255" json:"contact_email"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v Vendor) GetId() int { return v.ID }

type NewVendor struct {
	Name         string  `json:"name" binding:"required"`
	ContactName  *string `json:"contact_name"`
	ContactPhone *string `json:"contact_phone"`
	ContactEmail *string `json:"contact_email" binding:"omitempty,email"`
}

func CreateVendor(ctx context.Context, input NewVendor) (*Vendor, error) {
	db := config.GetDB()

	vendor := Vendor{
		Name:         input.Name,
		ContactName:  input.ContactName,
		ContactPhone: input.ContactPhone,
		ContactEmail: input.ContactEmail,
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	return utils.GetResource[Vendor](ctx, id)
}

func PaginateVendor(ctx context.Context, limit int, after *string) ([]Vendor, *PageInfo, error) {
	return FetchPageIdCursor[Vendor](ctx, limit, after, nil)
}
