package models

import (
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleNone       Role = ""
	RoleTeacher    Role = "teacher"
	RoleDeputy     Role = "deputy"
	RoleSubstitute Role = "substitute"
)

type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	FullName     string `db:"full_name" json:"full_name"`
	PasswordHash []byte `db:"password_hash" json:"-"`
	IsActive     bool   `db:"is_active" json:"is_active"`
	IsDeputy     bool   `db:"is_deputy" json:"is_deputy"`
	IsTeacher    bool   `db:"is_teacher" json:"is_teacher"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}
