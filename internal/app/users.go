package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/attendance"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrSessionInvalid = errors.New("session is no longer valid")
)

type AccessStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetClassRoom(ctx context.Context, id int64) (*models.ClassRoom, error)
	ListStaffClassRooms(ctx context.Context, userID int64) ([]models.ClassRoom, error)
}

// Access is what the caller of a request may see and change.
type Access struct {
	User    *models.User
	Role    models.Role
	Session *Session
	// Classes the caller records attendance for, in natural order.
	Classes []models.ClassRoom
	// RosterClassIDs limits roster changes; nil means every class.
	RosterClassIDs []int64
}

func (a *Access) ClassIDs() []int64 {
	ids := make([]int64, len(a.Classes))
	for i, c := range a.Classes {
		ids[i] = c.ID
	}
	return ids
}

func (a *Access) IsDeputy() bool {
	return a.Role == models.RoleDeputy
}

func (a *Access) Actor() attendance.Actor {
	id := a.User.ID
	return attendance.Actor{UserID: &id, PermittedClasses: a.ClassIDs()}
}

type Users struct {
	store AccessStore
}

func NewUsers(s AccessStore) *Users {
	return &Users{store: s}
}

func (u *Users) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := u.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || len(user.PasswordHash) == 0 {
		return nil, ErrBadCredentials
	}
	if err := user.CheckPassword(password); err != nil {
		logger.Debug.Printf("Password mismatch for user %s", user.Username)
		return nil, ErrBadCredentials
	}
	return user, nil
}

// Resolve turns a session into the caller's role and class sets. A delegated
// session acts for the class teacher but only inside the token's class.
func (u *Users) Resolve(ctx context.Context, session *Session) (*Access, error) {
	user, err := u.store.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrSessionInvalid
	}

	access := &Access{User: user, Session: session}

	if session.IsSubstitute() {
		class, err := u.store.GetClassRoom(ctx, session.SubstituteClassID)
		if err != nil {
			return nil, err
		}
		if class == nil {
			return nil, fmt.Errorf("class %d: %w", session.SubstituteClassID, ErrSessionInvalid)
		}
		access.Role = models.RoleSubstitute
		access.Classes = []models.ClassRoom{*class}
		access.RosterClassIDs = []int64{}
		return access, nil
	}

	classes, err := u.store.ListStaffClassRooms(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	access.Classes = classes

	switch {
	case user.IsDeputy:
		access.Role = models.RoleDeputy
	case user.IsTeacher || len(classes) > 0:
		access.Role = models.RoleTeacher
		access.RosterClassIDs = access.ClassIDs()
	default:
		access.Role = models.RoleNone
		access.RosterClassIDs = []int64{}
	}
	return access, nil
}
