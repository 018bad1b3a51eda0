package assignment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Коды ошибок валидации (стабильны, отдаются клиенту).
const (
	CodeRequired           = "required"
	CodeInvalidChoice      = "invalid_choice"
	CodeInvalidFormat      = "invalid_format"
	CodeNotFound           = "not_found"
	CodeTooShort           = "too_short"
	CodeDeviceUnavailable  = "device_unavailable"
	CodeDeviceAssigned     = "device_already_assigned"
	CodeAssigneeIneligible = "assignee_ineligible"
	CodeLocationInactive   = "location_inactive"
	CodeDateOutOfRange     = "date_out_of_range"
	CodeBeforeAssigned     = "before_assigned_date"
	CodeInFuture           = "in_future"
	CodeInPast             = "in_past"
	CodeSpanTooLong        = "span_too_long"
	CodeRequiresReturn     = "requires_return_date"
	CodeInvalidTransition  = "invalid_transition"
	CodeNotExtendable      = "not_extendable"
	CodeNoChange           = "no_change"
	CodeImmutable          = "immutable"
)

type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError — исправимая пользователем ошибка, по полям.
type ValidationError struct {
	Fields map[string][]FieldError `json:"fields"`
}

func (v *ValidationError) Add(field, code, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]FieldError)
	}
	v.Fields[field] = append(v.Fields[field], FieldError{Code: code, Message: message})
}

func (v *ValidationError) Has(field string) bool {
	return len(v.Fields[field]) > 0
}

func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		codes := make([]string, 0, len(v.Fields[k]))
		for _, fe := range v.Fields[k] {
			codes = append(codes, fe.Code)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(codes, ",")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, code, message string) error {
	v := &ValidationError{}
	v.Add(field, code, message)
	return v
}

func deviceTaken() error {
	return invalid("device", CodeDeviceAssigned, "device already has an active assignment")
}

// AsValidation достаёт *ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// HasCode — есть ли у поля field ошибка с кодом code.
func HasCode(err error, field, code string) bool {
	v, ok := AsValidation(err)
	if !ok {
		return false
	}
	for _, fe := range v.Fields[field] {
		if fe.Code == code {
			return true
		}
	}
	return false
}
