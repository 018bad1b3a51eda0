package repo

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrActiveAssignmentExists = errors.New("device already has an active assignment")
	ErrDuplicate              = errors.New("duplicate record")
)

// Имя частичного уникального индекса (PostgreSQL), см. db.Migrate.
const ActiveAssignmentIndex = "uniq_active_assignment_per_device"

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// uniqueViolation возвращает имя нарушенного ограничения, если err — нарушение
// уникальности (PostgreSQL 23505 или MySQL 1062).
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return myErr.Message, true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}

// translateWrite переводит ошибки записи назначений в доменные sentinel-ошибки.
func translateWrite(err error) error {
	if err == nil {
		return nil
	}
	if name, ok := uniqueViolation(err); ok {
		if strings.Contains(name, ActiveAssignmentIndex) {
			return ErrActiveAssignmentExists
		}
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
