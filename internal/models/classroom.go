package models

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type ClassRoom struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	TeacherID    *int64 `db:"teacher_id" json:"teacher_id,omitempty"`
	StudentCount int    `db:"student_count" json:"student_count"`
}

type PrivilegeType string

const (
	PrivilegeSVO       PrivilegeType = "svo"
	PrivilegeMulti     PrivilegeType = "multi"
	PrivilegeLowIncome PrivilegeType = "low_income"
	PrivilegeDisabled  PrivilegeType = "disabled"
)

// PrivilegeTypes is the display order used by roster pages and reports.
var PrivilegeTypes = []PrivilegeType{
	PrivilegeSVO,
	PrivilegeMulti,
	PrivilegeLowIncome,
	PrivilegeDisabled,
}

func (p PrivilegeType) Valid() bool {
	switch p {
	case PrivilegeSVO, PrivilegeMulti, PrivilegeLowIncome, PrivilegeDisabled:
		return true
	default:
		return false
	}
}

type Student struct {
	ID           int64           `db:"id" json:"id"`
	FullName     string          `db:"full_name" json:"full_name"`
	ClassRoomID  int64           `db:"class_room_id" json:"class_room_id"`
	ClassName    string          `db:"class_name" json:"class_name"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	IsPrivileged bool            `db:"is_privileged" json:"is_privileged"`
	Privileges   []PrivilegeType `db:"-" json:"privilege_types"`
}

var classNameRe = regexp.MustCompile(`^\s*(\d+)\s*(.*)$`)

// classKey splits "10А" into (10, "а"). Names without a leading number get
// ok=false and sort after every numbered class.
func classKey(name string) (number int, suffix string, ok bool) {
	name = strings.TrimSpace(name)
	m := classNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, strings.ToLower(name), false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, strings.ToLower(name), false
	}
	return n, strings.ToLower(strings.TrimSpace(m[2])), true
}

// ClassNameLess orders class names naturally: "2А" < "2Б" < "10А" < "A1".
func ClassNameLess(a, b string) bool {
	an, as, aok := classKey(a)
	bn, bs, bok := classKey(b)
	if aok != bok {
		return aok
	}
	if an != bn {
		return an < bn
	}
	return as < bs
}

func SortClassRooms(classes []ClassRoom) {
	sort.SliceStable(classes, func(i, j int) bool {
		return ClassNameLess(classes[i].Name, classes[j].Name)
	})
}

const (
	StudentSortClassAsc  = "class_asc"
	StudentSortClassDesc = "class_desc"
	StudentSortNameAsc   = "name_asc"
	StudentSortNameDesc  = "name_desc"
)

func ValidStudentSort(sort string) bool {
	switch sort {
	case StudentSortClassAsc, StudentSortClassDesc, StudentSortNameAsc, StudentSortNameDesc:
		return true
	default:
		return false
	}
}

// SortStudents orders a roster. Class orders break ties by name and name
// orders break ties by class.
func SortStudents(students []Student, order string) {
	byName := func(i, j int) int {
		return strings.Compare(strings.ToLower(students[i].FullName), strings.ToLower(students[j].FullName))
	}
	byClass := func(i, j int) int {
		a, b := students[i].ClassName, students[j].ClassName
		switch {
		case ClassNameLess(a, b):
			return -1
		case ClassNameLess(b, a):
			return 1
		default:
			return 0
		}
	}

	sort.SliceStable(students, func(i, j int) bool {
		switch order {
		case StudentSortClassDesc:
			if c := byClass(i, j); c != 0 {
				return c > 0
			}
			return byName(i, j) < 0
		case StudentSortNameAsc:
			if n := byName(i, j); n != 0 {
				return n < 0
			}
			return byClass(i, j) < 0
		case StudentSortNameDesc:
			if n := byName(i, j); n != 0 {
				return n > 0
			}
			return byClass(i, j) < 0
		default:
			if c := byClass(i, j); c != 0 {
				return c < 0
			}
			return byName(i, j) < 0
		}
	})
}
