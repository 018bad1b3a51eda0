package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"inventory/internal/models"
)

func setupMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestTranslateWrite(t *testing.T) {
	require.NoError(t, translateWrite(nil))

	pg := &pgconn.PgError{Code: "23505", ConstraintName: ActiveAssignmentIndex}
	require.ErrorIs(t, translateWrite(pg), ErrActiveAssignmentExists)

	other := &pgconn.PgError{Code: "23505", ConstraintName: "idx_assignments_assignment_id"}
	err := translateWrite(other)
	require.ErrorIs(t, err, ErrDuplicate)
	require.NotErrorIs(t, err, ErrActiveAssignmentExists)

	my := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ASN-2026-0001' for key 'assignment_id'"}
	require.ErrorIs(t, translateWrite(my), ErrDuplicate)

	fk := &pgconn.PgError{Code: "23503"}
	require.Equal(t, error(fk), translateWrite(fk))

	plain := errors.New("boom")
	require.Equal(t, plain, translateWrite(plain))
}

func TestDeviceStoreGet(t *testing.T) {
	gdb, mock := setupMock(t)
	ds := NewDeviceStore(gdb)

	mock.ExpectQuery(`SELECT \* FROM "devices" WHERE "devices"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_tag", "status"}).
			AddRow(7, "PC-007", "ASSIGNED"))

	d, err := ds.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "PC-007", d.AssetTag)
	require.Equal(t, models.DeviceStatusAssigned, d.Status)

	mock.ExpectQuery(`SELECT \* FROM "devices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = ds.Get(context.Background(), 8)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceStoreLockForUpdate(t *testing.T) {
	gdb, mock := setupMock(t)
	ds := NewDeviceStore(gdb)

	mock.ExpectQuery(`SELECT \* FROM "devices" WHERE id = \$1 .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_tag", "status"}).
			AddRow(3, "PC-003", "AVAILABLE"))

	d, err := ds.LockForUpdate(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, uint(3), d.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceStoreSetStatus(t *testing.T) {
	gdb, mock := setupMock(t)
	ds := NewDeviceStore(gdb)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "devices" SET .*"status"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, ds.SetStatus(context.Background(), 1, models.DeviceStatusAssigned))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "devices" SET .*"status"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	require.ErrorIs(t, ds.SetStatus(context.Background(), 99, models.DeviceStatusAvailable), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentCreateTranslatesActiveIndex(t *testing.T) {
	gdb, mock := setupMock(t)
	as := NewAssignmentStore(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "assignments"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ActiveAssignmentIndex})
	mock.ExpectRollback()

	err := as.Create(context.Background(), &models.Assignment{AssignmentID: "ASN-2026-0001", DeviceID: 1})
	require.ErrorIs(t, err, ErrActiveAssignmentExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentMaxSequence(t *testing.T) {
	gdb, mock := setupMock(t)
	as := NewAssignmentStore(gdb)

	mock.ExpectQuery(`SELECT "assignment_id" FROM "assignments" WHERE assignment_id LIKE \$1`).
		WithArgs("ASN-2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id"}).
			AddRow("ASN-2026-0007").
			AddRow("ASN-2026-0041").
			AddRow("ASN-2026-legacy"))

	n, err := as.MaxSequence(context.Background(), 2026)
	require.NoError(t, err)
	require.Equal(t, 41, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceStoreNext(t *testing.T) {
	gdb, mock := setupMock(t)
	seq := NewSequenceStore(gdb)

	mock.ExpectQuery(`SELECT \* FROM "assignment_sequences" WHERE year = \$1 .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"year", "last_value"}).AddRow(2026, 41))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "assignment_sequences" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := seq.Next(context.Background(), 2026)
	require.NoError(t, err)
	require.Equal(t, 42, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxSequenceOf(t *testing.T) {
	ids := []string{"ASN-2026-0003", "ASN-2026-0120", "ASN-2025-9999", "garbage"}
	require.Equal(t, 120, MaxSequenceOf("ASN-2026-", ids))
	require.Equal(t, 0, MaxSequenceOf("ASN-2027-", ids))
}
