package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type ClassStore interface {
	CreateClassRoom(ctx context.Context, class *models.ClassRoom) error
	GetClassRoom(ctx context.Context, id int64) (*models.ClassRoom, error)
	GetClassRoomByName(ctx context.Context, name string) (*models.ClassRoom, error)
	ListClassRooms(ctx context.Context) ([]models.ClassRoom, error)
	ListStaffClassRooms(ctx context.Context, userID int64) ([]models.ClassRoom, error)
	AssignStaff(ctx context.Context, classID, userID int64) error
}

type StudentStore interface {
	CreateStudent(ctx context.Context, student *models.Student) error
	ListStudents(ctx context.Context, filter StudentFilter) ([]models.Student, error)
	ListPrivilegedStudents(ctx context.Context, classIDs []int64) ([]models.Student, error)
	CountAllActiveStudents(ctx context.Context) (int, error)
	SetStudentsActive(ctx context.Context, ids, allowedClassIDs []int64, active bool) (int, error)
	MoveStudents(ctx context.Context, ids, allowedClassIDs []int64, targetClassID int64) (int, error)
	SetStudentsPrivileged(ctx context.Context, ids, allowedClassIDs []int64, privileged bool) (int, error)
	AddStudentsPrivilege(ctx context.Context, ids, allowedClassIDs []int64, code models.PrivilegeType) (int, error)
	SetStudentPrivileges(ctx context.Context, id int64, allowedClassIDs []int64, codes []models.PrivilegeType) (int, error)
}

// AttendanceTx is the view of the database inside one class's
// validate-and-write step. Every method runs in the same transaction.
type AttendanceTx interface {
	CountActiveStudents(classID int64) (int, error)
	ClassStudentIDs(classID int64, ids []int64) (map[int64]bool, error)
	GetSummaryForUpdate(classID int64, day time.Time) (*models.AttendanceSummary, error)
	InsertSummary(summary *models.AttendanceSummary) error
	UpdateSummary(summary *models.AttendanceSummary) error
	ReplaceAbsentStudents(summaryID int64, absents []models.AbsentStudent) error
}

type AttendanceStore interface {
	WithinTx(ctx context.Context, fn func(tx AttendanceTx) error) error
	ListSummaries(ctx context.Context, days DayRange, classIDs []int64) ([]models.AttendanceSummary, error)
	ListAbsentStudents(ctx context.Context, summaryIDs []int64) ([]models.AbsentStudent, error)
	CountUnexcusedByStudent(ctx context.Context, days DayRange) ([]StudentAbsenceCount, error)
	CountPrivilegesByClass(ctx context.Context) ([]PrivilegeCount, error)
}

type TokenStore interface {
	CreateToken(ctx context.Context, token *models.SubstituteToken) error
	GetToken(ctx context.Context, id int64) (*models.SubstituteToken, error)
	GetTokenByHash(ctx context.Context, hash string) (*models.SubstituteToken, error)
	UpdateToken(ctx context.Context, token *models.SubstituteToken) error
	TouchToken(ctx context.Context, id int64, at time.Time) error
	DeleteToken(ctx context.Context, id int64) error
	ListTokens(ctx context.Context, limit int) ([]models.SubstituteToken, error)
}

type Store interface {
	Close() error
	ApplyMigrations(dir string) error

	UserStore
	ClassStore
	StudentStore
	AttendanceStore
	TokenStore
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
	// ForUpdate is appended to row reads that must lock the row.
	ForUpdate         string
	IsUniqueViolation func(error) bool
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory in file name order,
// translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Debug.Printf("Applying migration: %s", file.Name())
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

// in expands IN (?) placeholders and converts to the dialect's bindvars.
func (s *BaseStore) in(query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.Converter(q), a, nil
}

func (s *BaseStore) uniqueErr(err error, format string, args ...interface{}) error {
	if s.IsUniqueViolation != nil && s.IsUniqueViolation(err) {
		return fmt.Errorf(format+": %w", append(args, ErrDuplicate)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
