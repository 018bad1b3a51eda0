package models

import (
	"time"

	"gorm.io/gorm"
)

type DeviceStatus string

const (
	DeviceStatusAvailable   DeviceStatus = "AVAILABLE"
	DeviceStatusAssigned    DeviceStatus = "ASSIGNED"
	DeviceStatusMaintenance DeviceStatus = "MAINTENANCE"
	DeviceStatusRetired     DeviceStatus = "RETIRED"
	DeviceStatusLost        DeviceStatus = "LOST"
)

// Device — инвентарная единица. Status синхронизируется движком назначений,
// вручную меняются только MAINTENANCE/RETIRED/LOST.
type Device struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	AssetTag     string       `gorm:"uniqueIndex;size:64;not null" json:"asset_tag"`
	Name         string       `gorm:"size:255" json:"name"`
	Category     string       `gorm:"size:64" json:"category"`
	SerialNumber string       `gorm:"size:128;index" json:"serial_number"`
	Status       DeviceStatus `gorm:"size:32;not null;default:AVAILABLE;index" json:"status"`
}
