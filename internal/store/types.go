package store

import (
	"errors"
	"time"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

type DatabaseType string

const (
	DBTypePostgres DatabaseType = "postgres"
	DBTypeSQLite   DatabaseType = "sqlite"
)

type DBConfig struct {
	DSN  string
	Type DatabaseType
}

// ErrDuplicate is wrapped into errors caused by a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

var ErrNotFound = errors.New("record not found")

type StudentFilter struct {
	// ClassIDs limits the result to these classes; nil means every class.
	ClassIDs     []int64
	ClassID      int64
	Query        string
	ShowInactive bool
	// Sort is one of models.StudentSort* values; unknown values fall back to class order.
	Sort string
}

type StudentAbsenceCount struct {
	StudentID    int64  `db:"student_id"`
	FullName     string `db:"full_name"`
	ClassName    string `db:"class_name"`
	AbsenceCount int    `db:"absence_count"`
}

type PrivilegeCount struct {
	ClassRoomID int64                `db:"class_room_id"`
	ClassName   string               `db:"class_name"`
	Code        models.PrivilegeType `db:"code"`
	Count       int                  `db:"cnt"`
}

type privilegeRow struct {
	StudentID int64                `db:"student_id"`
	Code      models.PrivilegeType `db:"code"`
}

// DayRange is a half-open [From, To) interval of civil dates.
type DayRange struct {
	From time.Time
	To   time.Time
}

func MonthRange(year int, month time.Month) DayRange {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DayRange{From: from, To: from.AddDate(0, 1, 0)}
}

// SingleDay is the range holding only the civil date of day.
func SingleDay(day time.Time) DayRange {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return DayRange{From: from, To: from.AddDate(0, 0, 1)}
}
