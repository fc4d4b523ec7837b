package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

func (s *BaseStore) CreateUser(ctx context.Context, user *models.User) error {
	query := s.Converter(`
		INSERT INTO users (username, full_name, password_hash, is_active, is_deputy, is_teacher)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := s.DB.QueryRowxContext(ctx, query,
		user.Username,
		user.FullName,
		user.PasswordHash,
		user.IsActive,
		user.IsDeputy,
		user.IsTeacher,
	).Scan(&user.ID)
	if err != nil {
		return s.uniqueErr(err, "failed to create user %s", user.Username)
	}
	return nil
}

func (s *BaseStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := s.Converter(`
		SELECT id, username, full_name, password_hash, is_active, is_deputy, is_teacher
		FROM users
		WHERE id = ?
	`)
	err := s.DB.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

func (s *BaseStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := s.Converter(`
		SELECT id, username, full_name, password_hash, is_active, is_deputy, is_teacher
		FROM users
		WHERE username = ?
	`)
	err := s.DB.GetContext(ctx, &user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return &user, nil
}

func (s *BaseStore) CreateClassRoom(ctx context.Context, class *models.ClassRoom) error {
	query := s.Converter(`
		INSERT INTO class_rooms (name, teacher_id, student_count)
		VALUES (?, ?, 0)
		RETURNING id
	`)
	if err := s.DB.QueryRowxContext(ctx, query, class.Name, class.TeacherID).Scan(&class.ID); err != nil {
		return s.uniqueErr(err, "failed to create class %s", class.Name)
	}
	class.StudentCount = 0
	return nil
}

func (s *BaseStore) GetClassRoom(ctx context.Context, id int64) (*models.ClassRoom, error) {
	var class models.ClassRoom
	query := s.Converter(`
		SELECT id, name, teacher_id, student_count
		FROM class_rooms
		WHERE id = ?
	`)
	err := s.DB.GetContext(ctx, &class, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class %d: %w", id, err)
	}
	return &class, nil
}

func (s *BaseStore) GetClassRoomByName(ctx context.Context, name string) (*models.ClassRoom, error) {
	var class models.ClassRoom
	query := s.Converter(`
		SELECT id, name, teacher_id, student_count
		FROM class_rooms
		WHERE name = ?
	`)
	err := s.DB.GetContext(ctx, &class, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class %s: %w", name, err)
	}
	return &class, nil
}

// ListClassRooms returns classes in natural class order.
func (s *BaseStore) ListClassRooms(ctx context.Context) ([]models.ClassRoom, error) {
	var classes []models.ClassRoom
	err := s.DB.SelectContext(ctx, &classes, `
		SELECT id, name, teacher_id, student_count
		FROM class_rooms
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	models.SortClassRooms(classes)
	return classes, nil
}

// ListStaffClassRooms returns classes the user is assigned to, including the
// class they are homeroom teacher of.
func (s *BaseStore) ListStaffClassRooms(ctx context.Context, userID int64) ([]models.ClassRoom, error) {
	var classes []models.ClassRoom
	query := s.Converter(`
		SELECT c.id, c.name, c.teacher_id, c.student_count
		FROM class_rooms c
		WHERE c.teacher_id = ?
		   OR EXISTS (SELECT 1 FROM class_staff cs WHERE cs.class_room_id = c.id AND cs.user_id = ?)
	`)
	if err := s.DB.SelectContext(ctx, &classes, query, userID, userID); err != nil {
		return nil, fmt.Errorf("failed to list classes of user %d: %w", userID, err)
	}
	models.SortClassRooms(classes)
	return classes, nil
}

func (s *BaseStore) AssignStaff(ctx context.Context, classID, userID int64) error {
	query := s.Converter(`
		INSERT INTO class_staff (class_room_id, user_id)
		VALUES (?, ?)
		ON CONFLICT (class_room_id, user_id) DO NOTHING
	`)
	if _, err := s.DB.ExecContext(ctx, query, classID, userID); err != nil {
		return fmt.Errorf("failed to assign user %d to class %d: %w", userID, classID, err)
	}
	return nil
}
