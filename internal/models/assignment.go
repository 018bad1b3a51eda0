package models

import "time"

type AssignmentType string

const (
	AssignmentPermanent   AssignmentType = "PERMANENT"
	AssignmentTemporary   AssignmentType = "TEMPORARY"
	AssignmentMaintenance AssignmentType = "MAINTENANCE"
	AssignmentProject     AssignmentType = "PROJECT"
)

func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentPermanent, AssignmentTemporary, AssignmentMaintenance, AssignmentProject:
		return true
	}
	return false
}

type AssignmentStatus string

const (
	StatusAssigned  AssignmentStatus = "ASSIGNED"
	StatusReturned  AssignmentStatus = "RETURNED"
	StatusOverdue   AssignmentStatus = "OVERDUE"
	StatusCancelled AssignmentStatus = "CANCELLED"
)

type Condition string

const (
	ConditionExcellent Condition = "EXCELLENT"
	ConditionGood      Condition = "GOOD"
	ConditionFair      Condition = "FAIR"
	ConditionPoor      Condition = "POOR"
	ConditionDamaged   Condition = "DAMAGED"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

// Assignment — выдача устройства сотруднику на интервал времени.
// Физически не удаляется: завершённые записи получают IsActive=false.
//
// На PostgreSQL уникальность "одно активное назначение на устройство"
// держит частичный индекс uniq_active_assignment_per_device (см. db.Migrate).
type Assignment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssignmentID string `gorm:"uniqueIndex;size:20;not null" json:"assignment_id"` // ASN-2025-0001

	DeviceID     uint  `gorm:"index;not null" json:"device_id"`
	AssigneeID   uint  `gorm:"index;not null" json:"assignee_id"`
	AssignedByID *uint `gorm:"index" json:"assigned_by_id,omitempty"`
	LocationID   *uint `gorm:"index" json:"location_id,omitempty"`

	Type   AssignmentType   `gorm:"column:assignment_type;size:16;not null" json:"assignment_type"`
	Status AssignmentStatus `gorm:"size:16;not null;index" json:"status"`

	AssignedDate       time.Time  `gorm:"type:date;not null" json:"assigned_date"`
	ExpectedReturnDate *time.Time `gorm:"type:date" json:"expected_return_date,omitempty"`
	ActualReturnDate   *time.Time `gorm:"type:date" json:"actual_return_date,omitempty"`

	Purpose     string `gorm:"type:text;not null" json:"purpose"`
	Notes       string `gorm:"type:text" json:"notes"`
	ReturnNotes string `gorm:"type:text" json:"return_notes"`

	ConditionAtAssignment Condition `gorm:"size:16;not null;default:GOOD" json:"condition_at_assignment"`
	ConditionAtReturn     Condition `gorm:"size:16" json:"condition_at_return,omitempty"`

	EmergencyContactName  string `gorm:"size:255" json:"emergency_contact_name"`
	EmergencyContactPhone string `gorm:"size:32" json:"emergency_contact_phone"`

	IsActive  bool `gorm:"not null;index" json:"is_active"`
	IsOverdue bool `gorm:"not null;default:false" json:"is_overdue"`
}

// HoldsDevice — назначение удерживает устройство (ASSIGNED или OVERDUE, активно).
func (a *Assignment) HoldsDevice() bool {
	return a.IsActive && (a.Status == StatusAssigned || a.Status == StatusOverdue)
}

// AssignmentSequence — счётчик номеров ASN-<год>-NNNN, одна строка на год.
type AssignmentSequence struct {
	Year      int `gorm:"primaryKey;autoIncrement:false"`
	LastValue int `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
