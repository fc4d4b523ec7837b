package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

const studentColumns = `
	s.id, s.full_name, s.class_room_id, c.name AS class_name, s.is_active, s.is_privileged
`

func (s *BaseStore) CreateStudent(ctx context.Context, student *models.Student) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := s.Converter(`
			INSERT INTO students (full_name, class_room_id, is_active, is_privileged)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`)
		err := tx.QueryRowxContext(ctx, query,
			student.FullName,
			student.ClassRoomID,
			student.IsActive,
			student.IsPrivileged || len(student.Privileges) > 0,
		).Scan(&student.ID)
		if err != nil {
			return s.uniqueErr(err, "failed to create student %s", student.FullName)
		}
		if len(student.Privileges) > 0 {
			student.IsPrivileged = true
			if err := s.insertPrivileges(ctx, tx, []int64{student.ID}, student.Privileges); err != nil {
				return err
			}
		}
		return s.recountStudents(ctx, tx, []int64{student.ClassRoomID})
	})
}

// ListStudents applies the roster filter. Text search is done here rather
// than with LIKE so that Cyrillic names match case-insensitively on SQLite.
func (s *BaseStore) ListStudents(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	if filter.ClassIDs != nil && len(filter.ClassIDs) == 0 {
		return []models.Student{}, nil
	}

	var (
		conds []string
		args  []interface{}
	)
	if filter.ClassIDs != nil {
		conds = append(conds, "s.class_room_id IN (?)")
		args = append(args, filter.ClassIDs)
	}
	if filter.ClassID > 0 {
		conds = append(conds, "s.class_room_id = ?")
		args = append(args, filter.ClassID)
	}
	if !filter.ShowInactive {
		conds = append(conds, "s.is_active = ?")
		args = append(args, true)
	}

	query := "SELECT " + studentColumns + " FROM students s JOIN class_rooms c ON c.id = s.class_room_id"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query, args, err := s.in(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build student query: %w", err)
	}

	var students []models.Student
	if err := s.DB.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		matched := students[:0]
		for _, st := range students {
			if strings.Contains(strings.ToLower(st.FullName), q) || strings.Contains(strings.ToLower(st.ClassName), q) {
				matched = append(matched, st)
			}
		}
		students = matched
	}

	if err := s.attachPrivileges(ctx, s.DB, students); err != nil {
		return nil, err
	}
	models.SortStudents(students, filter.Sort)
	return students, nil
}

// ListPrivilegedStudents returns active students that are flagged privileged
// or carry at least one privilege tag. A nil classIDs means every class.
func (s *BaseStore) ListPrivilegedStudents(ctx context.Context, classIDs []int64) ([]models.Student, error) {
	if classIDs != nil && len(classIDs) == 0 {
		return []models.Student{}, nil
	}

	query := "SELECT " + studentColumns + `
		FROM students s
		JOIN class_rooms c ON c.id = s.class_room_id
		WHERE s.is_active = ?
		  AND (s.is_privileged = ? OR EXISTS (SELECT 1 FROM student_privileges p WHERE p.student_id = s.id))
	`
	args := []interface{}{true, true}
	if classIDs != nil {
		query += " AND s.class_room_id IN (?)"
		args = append(args, classIDs)
	}
	query, args, err := s.in(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build privileged query: %w", err)
	}

	var students []models.Student
	if err := s.DB.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list privileged students: %w", err)
	}
	if err := s.attachPrivileges(ctx, s.DB, students); err != nil {
		return nil, err
	}
	models.SortStudents(students, models.StudentSortClassAsc)
	return students, nil
}

func (s *BaseStore) CountAllActiveStudents(ctx context.Context) (int, error) {
	var count int
	query := s.Converter(`SELECT COUNT(*) FROM students WHERE is_active = ?`)
	if err := s.DB.GetContext(ctx, &count, query, true); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

func (s *BaseStore) SetStudentsActive(ctx context.Context, ids, allowedClassIDs []int64, active bool) (int, error) {
	var affected int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		matched, classIDs, err := s.scopeStudents(ctx, tx, ids, allowedClassIDs)
		if err != nil || len(matched) == 0 {
			return err
		}
		query, args, err := s.in(`UPDATE students SET is_active = ? WHERE id IN (?)`, active, matched)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update students: %w", err)
		}
		affected = len(matched)
		return s.recountStudents(ctx, tx, classIDs)
	})
	return affected, err
}

func (s *BaseStore) MoveStudents(ctx context.Context, ids, allowedClassIDs []int64, targetClassID int64) (int, error) {
	if allowedClassIDs != nil && !containsID(allowedClassIDs, targetClassID) {
		return 0, fmt.Errorf("class %d: %w", targetClassID, ErrNotFound)
	}

	var affected int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		query := s.Converter(`SELECT COUNT(*) FROM class_rooms WHERE id = ?`)
		if err := tx.GetContext(ctx, &exists, query, targetClassID); err != nil {
			return fmt.Errorf("failed to check class %d: %w", targetClassID, err)
		}
		if exists == 0 {
			return fmt.Errorf("class %d: %w", targetClassID, ErrNotFound)
		}

		matched, classIDs, err := s.scopeStudents(ctx, tx, ids, allowedClassIDs)
		if err != nil || len(matched) == 0 {
			return err
		}
		query, args, err := s.in(`UPDATE students SET class_room_id = ? WHERE id IN (?)`, targetClassID, matched)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return s.uniqueErr(err, "failed to move students to class %d", targetClassID)
		}
		affected = len(matched)
		return s.recountStudents(ctx, tx, append(classIDs, targetClassID))
	})
	return affected, err
}

func (s *BaseStore) SetStudentsPrivileged(ctx context.Context, ids, allowedClassIDs []int64, privileged bool) (int, error) {
	var affected int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		matched, _, err := s.scopeStudents(ctx, tx, ids, allowedClassIDs)
		if err != nil || len(matched) == 0 {
			return err
		}
		if !privileged {
			if err := s.deletePrivileges(ctx, tx, matched); err != nil {
				return err
			}
		}
		if err := s.setPrivilegedFlag(ctx, tx, matched, privileged); err != nil {
			return err
		}
		affected = len(matched)
		return nil
	})
	return affected, err
}

func (s *BaseStore) AddStudentsPrivilege(ctx context.Context, ids, allowedClassIDs []int64, code models.PrivilegeType) (int, error) {
	if !code.Valid() {
		return 0, fmt.Errorf("unknown privilege type %q", code)
	}

	var affected int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		matched, _, err := s.scopeStudents(ctx, tx, ids, allowedClassIDs)
		if err != nil || len(matched) == 0 {
			return err
		}
		if err := s.insertPrivileges(ctx, tx, matched, []models.PrivilegeType{code}); err != nil {
			return err
		}
		if err := s.setPrivilegedFlag(ctx, tx, matched, true); err != nil {
			return err
		}
		affected = len(matched)
		return nil
	})
	return affected, err
}

// SetStudentPrivileges replaces the tag set of one student. An empty set also
// clears the privileged flag.
func (s *BaseStore) SetStudentPrivileges(ctx context.Context, id int64, allowedClassIDs []int64, codes []models.PrivilegeType) (int, error) {
	for _, code := range codes {
		if !code.Valid() {
			return 0, fmt.Errorf("unknown privilege type %q", code)
		}
	}

	var affected int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		matched, _, err := s.scopeStudents(ctx, tx, []int64{id}, allowedClassIDs)
		if err != nil || len(matched) == 0 {
			return err
		}
		if err := s.deletePrivileges(ctx, tx, matched); err != nil {
			return err
		}
		if err := s.insertPrivileges(ctx, tx, matched, codes); err != nil {
			return err
		}
		if err := s.setPrivilegedFlag(ctx, tx, matched, len(codes) > 0); err != nil {
			return err
		}
		affected = len(matched)
		return nil
	})
	return affected, err
}

// scopeStudents keeps the ids that exist and belong to one of the allowed
// classes, and reports which classes they belong to.
func (s *BaseStore) scopeStudents(ctx context.Context, tx *sqlx.Tx, ids, allowedClassIDs []int64) ([]int64, []int64, error) {
	if len(ids) == 0 || (allowedClassIDs != nil && len(allowedClassIDs) == 0) {
		return nil, nil, nil
	}

	query := `SELECT id, class_room_id FROM students WHERE id IN (?)`
	args := []interface{}{ids}
	if allowedClassIDs != nil {
		query += ` AND class_room_id IN (?)`
		args = append(args, allowedClassIDs)
	}
	query, args, err := s.in(query, args...)
	if err != nil {
		return nil, nil, err
	}

	var rows []struct {
		ID          int64 `db:"id"`
		ClassRoomID int64 `db:"class_room_id"`
	}
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to look up students: %w", err)
	}

	matched := make([]int64, 0, len(rows))
	var classIDs []int64
	for _, r := range rows {
		matched = append(matched, r.ID)
		if !containsID(classIDs, r.ClassRoomID) {
			classIDs = append(classIDs, r.ClassRoomID)
		}
	}
	return matched, classIDs, nil
}

// recountStudents refreshes the cached active roster size of the given classes.
func (s *BaseStore) recountStudents(ctx context.Context, tx *sqlx.Tx, classIDs []int64) error {
	if len(classIDs) == 0 {
		return nil
	}
	query, args, err := s.in(`
		UPDATE class_rooms
		SET student_count = (
			SELECT COUNT(*) FROM students s
			WHERE s.class_room_id = class_rooms.id AND s.is_active = ?
		)
		WHERE id IN (?)
	`, true, classIDs)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to recount students: %w", err)
	}
	return nil
}

func (s *BaseStore) setPrivilegedFlag(ctx context.Context, tx *sqlx.Tx, ids []int64, privileged bool) error {
	query, args, err := s.in(`UPDATE students SET is_privileged = ? WHERE id IN (?)`, privileged, ids)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update privileged flag: %w", err)
	}
	return nil
}

func (s *BaseStore) deletePrivileges(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	query, args, err := s.in(`DELETE FROM student_privileges WHERE student_id IN (?)`, ids)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear privileges: %w", err)
	}
	return nil
}

func (s *BaseStore) insertPrivileges(ctx context.Context, tx *sqlx.Tx, ids []int64, codes []models.PrivilegeType) error {
	query := s.Converter(`
		INSERT INTO student_privileges (student_id, code)
		VALUES (?, ?)
		ON CONFLICT (student_id, code) DO NOTHING
	`)
	for _, id := range ids {
		for _, code := range codes {
			if _, err := tx.ExecContext(ctx, query, id, code); err != nil {
				return fmt.Errorf("failed to add privilege %s to student %d: %w", code, id, err)
			}
		}
	}
	return nil
}

func (s *BaseStore) attachPrivileges(ctx context.Context, q sqlx.QueryerContext, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	ids := make([]int64, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}

	query, args, err := s.in(`SELECT student_id, code FROM student_privileges WHERE student_id IN (?)`, ids)
	if err != nil {
		return err
	}
	var rows []privilegeRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return fmt.Errorf("failed to load privileges: %w", err)
	}

	byStudent := make(map[int64][]models.PrivilegeType)
	for _, r := range rows {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r.Code)
	}
	for i := range students {
		codes := byStudent[students[i].ID]
		sort.Slice(codes, func(a, b int) bool { return privilegeRank(codes[a]) < privilegeRank(codes[b]) })
		students[i].Privileges = codes
	}
	return nil
}

func privilegeRank(code models.PrivilegeType) int {
	for i, p := range models.PrivilegeTypes {
		if p == code {
			return i
		}
	}
	return len(models.PrivilegeTypes)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
