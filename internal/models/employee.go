package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Employee — пользователь, синхронизируемый из PRP (односторонне).
// Локальные записи без PRPID синхронизацией не трогаются.
type Employee struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PRPID            *string        `gorm:"uniqueIndex;size:64" json:"prp_id,omitempty"`
	EmployeeNumber   string         `gorm:"size:64;index" json:"employee_number"`
	FullName         string         `gorm:"size:255;not null" json:"full_name"`
	Email            string         `gorm:"size:255" json:"email"`
	Department       string         `gorm:"size:255" json:"department"`
	Designation      string         `gorm:"size:255" json:"designation"`
	IsActive         bool           `gorm:"not null" json:"is_active"`
	IsActiveEmployee bool           `gorm:"not null" json:"is_active_employee"`
	PRPSyncedAt      *time.Time     `json:"prp_synced_at,omitempty"`
	PRPRecord        datatypes.JSON `json:"-"`
}

// CanReceiveAssignments — только активная учётка действующего сотрудника.
func (e *Employee) CanReceiveAssignments() bool {
	return e != nil && e.IsActive && e.IsActiveEmployee
}

type Location struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code     string `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Building string `gorm:"size:128" json:"building"`
	Floor    string `gorm:"size:32" json:"floor"`
	Room     string `gorm:"size:64" json:"room"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}
