package assignment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inventory/internal/models"
)

func TestEvaluateOverdue(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	cases := []struct {
		name        string
		status      models.AssignmentStatus
		expected    *time.Time
		wantStatus  models.AssignmentStatus
		wantOverdue bool
	}{
		{"assigned past due", models.StatusAssigned, &yesterday, models.StatusOverdue, true},
		{"assigned due today", models.StatusAssigned, &today, models.StatusAssigned, false},
		{"assigned without date", models.StatusAssigned, nil, models.StatusAssigned, false},
		{"overdue stays overdue", models.StatusOverdue, &yesterday, models.StatusOverdue, true},
		{"overdue extended", models.StatusOverdue, &tomorrow, models.StatusAssigned, false},
		{"returned never overdue", models.StatusReturned, &yesterday, models.StatusReturned, false},
		{"cancelled never overdue", models.StatusCancelled, &yesterday, models.StatusCancelled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &models.Assignment{Status: tc.status, ExpectedReturnDate: tc.expected, IsActive: true}
			EvaluateOverdue(a, today.Add(15*time.Hour))
			require.Equal(t, tc.wantStatus, a.Status)
			require.Equal(t, tc.wantOverdue, a.IsOverdue)

			// повторный вызов в тот же день ничего не меняет
			EvaluateOverdue(a, today)
			require.Equal(t, tc.wantStatus, a.Status)
			require.Equal(t, tc.wantOverdue, a.IsOverdue)
		})
	}
}

func TestIDs(t *testing.T) {
	require.Equal(t, "ASN-2026-0007", FormatID(2026, 7))
	require.Equal(t, "ASN-2026-12345", FormatID(2026, 12345))

	year, seq, ok := ParseID("ASN-2026-0042")
	require.True(t, ok)
	require.Equal(t, 2026, year)
	require.Equal(t, 42, seq)

	for _, bad := range []string{"", "ASN-26-0001", "ASN-2026-01", "asn-2026-0001", "ASN-2026-00x1",
		"ASN-2026-" + strings.Repeat("9", 40)} {
		_, _, ok := ParseID(bad)
		require.False(t, ok, bad)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	v := &ValidationError{}
	require.NoError(t, v.OrNil())

	v.Add("purpose", CodeTooShort, "too short")
	v.Add("device", CodeDeviceAssigned, "taken")
	v.Add("device", CodeDeviceUnavailable, "not available")
	require.Equal(t, "validation failed: device: device_already_assigned,device_unavailable; purpose: too_short", v.Error())

	err := error(v)
	require.True(t, HasCode(err, "device", CodeDeviceUnavailable))
	require.False(t, HasCode(err, "device", CodeNotFound))
}
