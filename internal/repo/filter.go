package repo

import "inventory/internal/models"

// AssignmentFilter — условия выборки назначений для списков и экспорта.
// Нулевые значения полей означают "без фильтра".
type AssignmentFilter struct {
	Status      models.AssignmentStatus
	DeviceID    uint
	AssigneeID  uint
	LocationID  uint
	ActiveOnly  bool
	OverdueOnly bool

	Limit  int
	Offset int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

func (f AssignmentFilter) PageSize() int {
	switch {
	case f.Limit <= 0:
		return DefaultPageSize
	case f.Limit > MaxPageSize:
		return MaxPageSize
	}
	return f.Limit
}

// Matches — та же логика для in-memory хранилища.
func (f AssignmentFilter) Matches(a *models.Assignment) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.DeviceID != 0 && a.DeviceID != f.DeviceID {
		return false
	}
	if f.AssigneeID != 0 && a.AssigneeID != f.AssigneeID {
		return false
	}
	if f.LocationID != 0 && (a.LocationID == nil || *a.LocationID != f.LocationID) {
		return false
	}
	if f.ActiveOnly && !a.IsActive {
		return false
	}
	if f.OverdueOnly && !a.IsOverdue {
		return false
	}
	return true
}
