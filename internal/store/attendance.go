package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

const summaryColumns = `
	s.id, s.class_room_id, s.date, s.present_count_auto, s.present_count_reported,
	s.unexcused_absent_count, s.orvi_count, s.other_disease_count, s.family_reason_count,
	s.created_by, s.created_at, s.updated_at
`

func (s *BaseStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithinTx runs fn in one transaction. Any error returned by fn rolls back
// everything fn wrote.
func (s *BaseStore) WithinTx(ctx context.Context, fn func(tx AttendanceTx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&attendanceTx{ctx: ctx, tx: tx, store: s})
	})
}

type attendanceTx struct {
	ctx   context.Context
	tx    *sqlx.Tx
	store *BaseStore
}

func (t *attendanceTx) CountActiveStudents(classID int64) (int, error) {
	var count int
	query := t.store.Converter(`SELECT COUNT(*) FROM students WHERE class_room_id = ? AND is_active = ?`)
	if err := t.tx.GetContext(t.ctx, &count, query, classID, true); err != nil {
		return 0, fmt.Errorf("failed to count students of class %d: %w", classID, err)
	}
	return count, nil
}

func (t *attendanceTx) ClassStudentIDs(classID int64, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query, args, err := t.store.in(`SELECT id FROM students WHERE class_room_id = ? AND id IN (?)`, classID, ids)
	if err != nil {
		return nil, err
	}
	var rows []int64
	if err := t.tx.SelectContext(t.ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to look up students of class %d: %w", classID, err)
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

func (t *attendanceTx) GetSummaryForUpdate(classID int64, day time.Time) (*models.AttendanceSummary, error) {
	var summary models.AttendanceSummary
	query := t.store.Converter(`
		SELECT `+summaryColumns+`
		FROM attendance_summaries s
		WHERE s.class_room_id = ? AND s.date = ?
	`) + t.store.ForUpdate
	err := t.tx.GetContext(t.ctx, &summary, query, classID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary of class %d: %w", classID, err)
	}
	return &summary, nil
}

func (t *attendanceTx) InsertSummary(summary *models.AttendanceSummary) error {
	query := t.store.Converter(`
		INSERT INTO attendance_summaries (
			class_room_id, date, present_count_auto, present_count_reported,
			unexcused_absent_count, orvi_count, other_disease_count, family_reason_count,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := t.tx.QueryRowxContext(t.ctx, query,
		summary.ClassRoomID,
		summary.Date,
		summary.PresentCountAuto,
		summary.PresentCountReported,
		summary.UnexcusedAbsentCount,
		summary.ORVICount,
		summary.OtherDiseaseCount,
		summary.FamilyReasonCount,
		summary.CreatedBy,
		summary.CreatedAt,
		summary.UpdatedAt,
	).Scan(&summary.ID)
	if err != nil {
		return t.store.uniqueErr(err, "failed to insert summary of class %d", summary.ClassRoomID)
	}
	return nil
}

// UpdateSummary rewrites the mutable fields; created_at is never touched.
func (t *attendanceTx) UpdateSummary(summary *models.AttendanceSummary) error {
	query := t.store.Converter(`
		UPDATE attendance_summaries
		SET present_count_auto = ?,
			present_count_reported = ?,
			unexcused_absent_count = ?,
			orvi_count = ?,
			other_disease_count = ?,
			family_reason_count = ?,
			created_by = ?,
			updated_at = ?
		WHERE id = ?
	`)
	_, err := t.tx.ExecContext(t.ctx, query,
		summary.PresentCountAuto,
		summary.PresentCountReported,
		summary.UnexcusedAbsentCount,
		summary.ORVICount,
		summary.OtherDiseaseCount,
		summary.FamilyReasonCount,
		summary.CreatedBy,
		summary.UpdatedAt,
		summary.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update summary %d: %w", summary.ID, err)
	}
	return nil
}

func (t *attendanceTx) ReplaceAbsentStudents(summaryID int64, absents []models.AbsentStudent) error {
	del := t.store.Converter(`DELETE FROM absent_students WHERE attendance_id = ?`)
	if _, err := t.tx.ExecContext(t.ctx, del, summaryID); err != nil {
		return fmt.Errorf("failed to clear absences of summary %d: %w", summaryID, err)
	}

	ins := t.store.Converter(`
		INSERT INTO absent_students (attendance_id, student_id, reason)
		VALUES (?, ?, ?)
		RETURNING id
	`)
	for i := range absents {
		absents[i].AttendanceID = summaryID
		err := t.tx.QueryRowxContext(t.ctx, ins, summaryID, absents[i].StudentID, absents[i].Reason).Scan(&absents[i].ID)
		if err != nil {
			return t.store.uniqueErr(err, "failed to record absence of student %d", absents[i].StudentID)
		}
	}
	return nil
}

// ListSummaries returns summaries in the range, newest day first. A nil
// classIDs means every class.
func (s *BaseStore) ListSummaries(ctx context.Context, days DayRange, classIDs []int64) ([]models.AttendanceSummary, error) {
	if classIDs != nil && len(classIDs) == 0 {
		return []models.AttendanceSummary{}, nil
	}

	query := `SELECT ` + summaryColumns + `, c.name AS class_name
		FROM attendance_summaries s
		JOIN class_rooms c ON c.id = s.class_room_id
		WHERE s.date >= ? AND s.date < ?`
	args := []interface{}{days.From, days.To}
	if classIDs != nil {
		query += ` AND s.class_room_id IN (?)`
		args = append(args, classIDs)
	}
	query += ` ORDER BY s.date DESC, s.class_room_id`

	query, args, err := s.in(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build summary query: %w", err)
	}
	var summaries []models.AttendanceSummary
	if err := s.DB.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return summaries, nil
}

func (s *BaseStore) ListAbsentStudents(ctx context.Context, summaryIDs []int64) ([]models.AbsentStudent, error) {
	if len(summaryIDs) == 0 {
		return []models.AbsentStudent{}, nil
	}
	query, args, err := s.in(`
		SELECT a.id, a.attendance_id, a.student_id, st.full_name AS student_name, a.reason
		FROM absent_students a
		JOIN students st ON st.id = a.student_id
		WHERE a.attendance_id IN (?)
		ORDER BY a.attendance_id, st.full_name
	`, summaryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build absence query: %w", err)
	}
	var absents []models.AbsentStudent
	if err := s.DB.SelectContext(ctx, &absents, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list absences: %w", err)
	}
	return absents, nil
}

func (s *BaseStore) CountUnexcusedByStudent(ctx context.Context, days DayRange) ([]StudentAbsenceCount, error) {
	query := s.Converter(`
		SELECT st.id AS student_id, st.full_name, c.name AS class_name, COUNT(a.id) AS absence_count
		FROM absent_students a
		JOIN attendance_summaries s ON s.id = a.attendance_id
		JOIN students st ON st.id = a.student_id
		JOIN class_rooms c ON c.id = st.class_room_id
		WHERE a.reason = ? AND s.date >= ? AND s.date < ?
		GROUP BY st.id, st.full_name, c.name
	`)
	var counts []StudentAbsenceCount
	if err := s.DB.SelectContext(ctx, &counts, query, models.ReasonUnexcused, days.From, days.To); err != nil {
		return nil, fmt.Errorf("failed to count unexcused absences: %w", err)
	}
	return counts, nil
}

// CountPrivilegesByClass counts active students per class and privilege tag.
func (s *BaseStore) CountPrivilegesByClass(ctx context.Context) ([]PrivilegeCount, error) {
	query := s.Converter(`
		SELECT c.id AS class_room_id, c.name AS class_name, p.code, COUNT(DISTINCT st.id) AS cnt
		FROM student_privileges p
		JOIN students st ON st.id = p.student_id
		JOIN class_rooms c ON c.id = st.class_room_id
		WHERE st.is_active = ?
		GROUP BY c.id, c.name, p.code
	`)
	var counts []PrivilegeCount
	if err := s.DB.SelectContext(ctx, &counts, query, true); err != nil {
		return nil, fmt.Errorf("failed to count privileges: %w", err)
	}
	return counts, nil
}
