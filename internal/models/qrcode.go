package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentQRCode — сгенерированный QR для назначения. Активен максимум один
// на назначение; ImageKey — ключ картинки в хранилище артефактов.
type AssignmentQRCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code         string         `gorm:"uniqueIndex;size:36;not null" json:"code"`
	AssignmentID uint           `gorm:"index;not null" json:"assignment_id"`
	Payload      datatypes.JSON `json:"payload"`
	Size         int            `gorm:"not null" json:"size"`
	Format       string         `gorm:"size:8;not null" json:"format"`
	ImageKey     string         `gorm:"size:255" json:"image_key"`
	IsActive     bool           `gorm:"not null;index" json:"is_active"`
}
