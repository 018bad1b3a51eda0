package export

import (
	"context"
	"fmt"
	"time"

	"inventory/internal/models"
	"inventory/internal/repo"
)

// Source — только чтение: назначения и справочники для подстановки имён.
type Source interface {
	ListAssignments(ctx context.Context, f repo.AssignmentFilter) ([]models.Assignment, int64, error)
	DevicesByIDs(ctx context.Context, ids []uint) ([]models.Device, error)
	EmployeesByIDs(ctx context.Context, ids []uint) ([]models.Employee, error)
	LocationsByIDs(ctx context.Context, ids []uint) ([]models.Location, error)
}

// Row — плоская проекция назначения для выгрузок.
type Row struct {
	AssignmentID          string     `json:"assignment_id"`
	Status                string     `json:"status"`
	AssignmentType        string     `json:"assignment_type"`
	IsActive              bool       `json:"is_active"`
	IsOverdue             bool       `json:"is_overdue"`
	DeviceID              uint       `json:"device_id"`
	DeviceAssetTag        string     `json:"device_asset_tag"`
	DeviceName            string     `json:"device_name"`
	DeviceSerial          string     `json:"device_serial"`
	AssigneeID            uint       `json:"assignee_id"`
	AssigneeName          string     `json:"assignee_name"`
	AssigneeNumber        string     `json:"assignee_employee_number"`
	AssigneeDepartment    string     `json:"assignee_department"`
	AssignedByName        string     `json:"assigned_by,omitempty"`
	LocationCode          string     `json:"location_code,omitempty"`
	LocationName          string     `json:"location_name,omitempty"`
	AssignedDate          time.Time  `json:"assigned_date"`
	ExpectedReturnDate    *time.Time `json:"expected_return_date,omitempty"`
	ActualReturnDate      *time.Time `json:"actual_return_date,omitempty"`
	Purpose               string     `json:"purpose"`
	Notes                 string     `json:"notes,omitempty"`
	ReturnNotes           string     `json:"return_notes,omitempty"`
	ConditionAtAssignment string     `json:"condition_at_assignment"`
	ConditionAtReturn     string     `json:"condition_at_return,omitempty"`
	EmergencyContactName  string     `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string     `json:"emergency_contact_phone,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// MaxRows ограничивает один снимок.
const MaxRows = 100000

// Snapshot постранично читает назначения по фильтру и подставляет справочные поля.
// Limit/Offset фильтра игнорируются.
func Snapshot(ctx context.Context, src Source, f repo.AssignmentFilter) ([]Row, error) {
	f.Offset = 0
	f.Limit = repo.MaxPageSize
	var all []models.Assignment
	for {
		page, total, err := src.ListAssignments(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("export: list assignments: %w", err)
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			break
		}
		if len(all) >= MaxRows {
			return nil, fmt.Errorf("export: more than %d rows, narrow the filter", MaxRows)
		}
		f.Offset += len(page)
	}

	devIDs, empIDs, locIDs := collectIDs(all)
	devs, err := src.DevicesByIDs(ctx, devIDs)
	if err != nil {
		return nil, fmt.Errorf("export: devices: %w", err)
	}
	emps, err := src.EmployeesByIDs(ctx, empIDs)
	if err != nil {
		return nil, fmt.Errorf("export: employees: %w", err)
	}
	locs, err := src.LocationsByIDs(ctx, locIDs)
	if err != nil {
		return nil, fmt.Errorf("export: locations: %w", err)
	}
	devByID := index(devs, func(d models.Device) uint { return d.ID })
	empByID := index(emps, func(e models.Employee) uint { return e.ID })
	locByID := index(locs, func(l models.Location) uint { return l.ID })

	rows := make([]Row, 0, len(all))
	for i := range all {
		a := &all[i]
		row := Row{
			AssignmentID:          a.AssignmentID,
			Status:                string(a.Status),
			AssignmentType:        string(a.Type),
			IsActive:              a.IsActive,
			IsOverdue:             a.IsOverdue,
			DeviceID:              a.DeviceID,
			AssigneeID:            a.AssigneeID,
			AssignedDate:          a.AssignedDate,
			ExpectedReturnDate:    a.ExpectedReturnDate,
			ActualReturnDate:      a.ActualReturnDate,
			Purpose:               a.Purpose,
			Notes:                 a.Notes,
			ReturnNotes:           a.ReturnNotes,
			ConditionAtAssignment: string(a.ConditionAtAssignment),
			ConditionAtReturn:     string(a.ConditionAtReturn),
			EmergencyContactName:  a.EmergencyContactName,
			EmergencyContactPhone: a.EmergencyContactPhone,
			CreatedAt:             a.CreatedAt,
			UpdatedAt:             a.UpdatedAt,
		}
		if d, ok := devByID[a.DeviceID]; ok {
			row.DeviceAssetTag, row.DeviceName, row.DeviceSerial = d.AssetTag, d.Name, d.SerialNumber
		}
		if e, ok := empByID[a.AssigneeID]; ok {
			row.AssigneeName, row.AssigneeNumber, row.AssigneeDepartment = e.FullName, e.EmployeeNumber, e.Department
		}
		if a.AssignedByID != nil {
			if e, ok := empByID[*a.AssignedByID]; ok {
				row.AssignedByName = e.FullName
			}
		}
		if a.LocationID != nil {
			if l, ok := locByID[*a.LocationID]; ok {
				row.LocationCode, row.LocationName = l.Code, l.Name
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func collectIDs(all []models.Assignment) (devs, emps, locs []uint) {
	seenD, seenE, seenL := map[uint]bool{}, map[uint]bool{}, map[uint]bool{}
	add := func(seen map[uint]bool, out *[]uint, id uint) {
		if id != 0 && !seen[id] {
			seen[id] = true
			*out = append(*out, id)
		}
	}
	for i := range all {
		a := &all[i]
		add(seenD, &devs, a.DeviceID)
		add(seenE, &emps, a.AssigneeID)
		if a.AssignedByID != nil {
			add(seenE, &emps, *a.AssignedByID)
		}
		if a.LocationID != nil {
			add(seenL, &locs, *a.LocationID)
		}
	}
	return devs, emps, locs
}

func index[T any](items []T, key func(T) uint) map[uint]T {
	m := make(map[uint]T, len(items))
	for _, it := range items {
		m[key(it)] = it
	}
	return m
}
