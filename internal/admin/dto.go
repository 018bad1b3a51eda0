package admin

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"inventory/internal/assignment"
	"inventory/internal/models"
	"inventory/internal/repo"
)

const dateLayout = "2006-01-02"

// Даты в запросах — строки YYYY-MM-DD.

type assignmentRequest struct {
	DeviceID              uint   `json:"device_id"`
	AssigneeID            uint   `json:"assignee_id"`
	AssignedByID          *uint  `json:"assigned_by_id"`
	LocationID            *uint  `json:"location_id"`
	AssignmentType        string `json:"assignment_type"`
	AssignedDate          string `json:"assigned_date"`
	ExpectedReturnDate    string `json:"expected_return_date"`
	Purpose               string `json:"purpose"`
	Notes                 string `json:"notes"`
	ConditionAtAssignment string `json:"condition_at_assignment"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
}

type returnRequest struct {
	ActualReturnDate  string `json:"actual_return_date"`
	ConditionAtReturn string `json:"condition_at_return"`
	ReturnNotes       string `json:"return_notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type extendRequest struct {
	NewReturnDate string `json:"new_return_date"`
	Reason        string `json:"reason"`
}

type transferRequest struct {
	AssigneeID    *uint  `json:"assignee_id"`
	LocationID    *uint  `json:"location_id"`
	EffectiveDate string `json:"effective_date"`
	Reason        string `json:"reason"`
}

// dateParser копит ошибки формата в одну ValidationError.
type dateParser struct{ v assignment.ValidationError }

func (p *dateParser) date(field, s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		p.v.Add(field, assignment.CodeInvalidFormat, "expected a date in YYYY-MM-DD format")
		return time.Time{}
	}
	return t
}

func (p *dateParser) datePtr(field, s string) *time.Time {
	t := p.date(field, s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (p *dateParser) err() error { return p.v.OrNil() }

func (req assignmentRequest) input() (assignment.Input, error) {
	var p dateParser
	in := assignment.Input{
		DeviceID:              req.DeviceID,
		AssigneeID:            req.AssigneeID,
		AssignedByID:          req.AssignedByID,
		LocationID:            req.LocationID,
		Type:                  models.AssignmentType(strings.ToUpper(strings.TrimSpace(req.AssignmentType))),
		AssignedDate:          p.date("assigned_date", req.AssignedDate),
		ExpectedReturnDate:    p.datePtr("expected_return_date", req.ExpectedReturnDate),
		Purpose:               req.Purpose,
		Notes:                 req.Notes,
		ConditionAtAssignment: models.Condition(strings.ToUpper(strings.TrimSpace(req.ConditionAtAssignment))),
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
	}
	return in, p.err()
}

func (req returnRequest) input() (assignment.ReturnInput, error) {
	var p dateParser
	in := assignment.ReturnInput{
		ReturnDate: p.datePtr("actual_return_date", req.ActualReturnDate),
		Condition:  models.Condition(strings.ToUpper(strings.TrimSpace(req.ConditionAtReturn))),
		Notes:      req.ReturnNotes,
	}
	return in, p.err()
}

func (req extendRequest) input() (assignment.ExtendInput, error) {
	var p dateParser
	in := assignment.ExtendInput{
		NewReturnDate: p.date("new_return_date", req.NewReturnDate),
		Reason:        req.Reason,
	}
	return in, p.err()
}

func (req transferRequest) input() (assignment.TransferInput, error) {
	var p dateParser
	in := assignment.TransferInput{
		AssigneeID:    req.AssigneeID,
		LocationID:    req.LocationID,
		EffectiveDate: p.date("effective_date", req.EffectiveDate),
		Reason:        req.Reason,
	}
	return in, p.err()
}

// filterFromQuery: status, device_id, assignee_id, location_id, active, overdue, limit, offset.
func filterFromQuery(q url.Values) (repo.AssignmentFilter, error) {
	var (
		f repo.AssignmentFilter
		v assignment.ValidationError
	)
	f.Status = models.AssignmentStatus(strings.ToUpper(q.Get("status")))
	num := func(key string) int {
		s := q.Get(key)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			v.Add(key, assignment.CodeInvalidFormat, "expected a non-negative integer")
			return 0
		}
		return n
	}
	flag := func(key string) bool {
		s := q.Get(key)
		if s == "" {
			return false
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			v.Add(key, assignment.CodeInvalidFormat, "expected true or false")
		}
		return b
	}
	f.DeviceID = uint(num("device_id"))
	f.AssigneeID = uint(num("assignee_id"))
	f.LocationID = uint(num("location_id"))
	f.Limit = num("limit")
	f.Offset = num("offset")
	f.ActiveOnly = flag("active")
	f.OverdueOnly = flag("overdue")
	return f, v.OrNil()
}
