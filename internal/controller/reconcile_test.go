package controller_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"inventory/internal/controller"
	"inventory/internal/memstore"
	"inventory/internal/models"
)

func TestDesiredStatus(t *testing.T) {
	cases := []struct {
		current models.DeviceStatus
		held    bool
		want    models.DeviceStatus
	}{
		{models.DeviceStatusAvailable, true, models.DeviceStatusAssigned},
		{models.DeviceStatusAssigned, false, models.DeviceStatusAvailable},
		{models.DeviceStatusAssigned, true, models.DeviceStatusAssigned},
		{models.DeviceStatusAvailable, false, models.DeviceStatusAvailable},
		{models.DeviceStatusMaintenance, false, models.DeviceStatusMaintenance},
		{models.DeviceStatusRetired, true, models.DeviceStatusRetired},
		{models.DeviceStatusLost, false, models.DeviceStatusLost},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, controller.DesiredStatus(tc.current, tc.held), "%s held=%v", tc.current, tc.held)
	}
}

func TestReconcileAll(t *testing.T) {
	s := memstore.New()
	drifted := &models.Device{AssetTag: "A", Status: models.DeviceStatusAssigned}
	s.AddDevice(drifted)
	held := &models.Device{AssetTag: "B", Status: models.DeviceStatusAvailable}
	s.AddDevice(held)
	repair := &models.Device{AssetTag: "C", Status: models.DeviceStatusMaintenance}
	s.AddDevice(repair)
	s.AddAssignment(&models.Assignment{AssignmentID: "ASN-2026-0001", DeviceID: held.ID, Status: models.StatusOverdue, IsActive: true})
	s.AddAssignment(&models.Assignment{AssignmentID: "ASN-2026-0002", DeviceID: drifted.ID, Status: models.StatusReturned})

	r := controller.NewReconciler(s, s.Directory())
	sum, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, controller.Summary{Checked: 3, Fixed: 2}, sum)

	d, _ := s.Device(drifted.ID)
	require.Equal(t, models.DeviceStatusAvailable, d.Status)
	d, _ = s.Device(held.ID)
	require.Equal(t, models.DeviceStatusAssigned, d.Status)
	d, _ = s.Device(repair.ID)
	require.Equal(t, models.DeviceStatusMaintenance, d.Status)

	sum, err = r.ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Zero(t, sum.Fixed)
}
