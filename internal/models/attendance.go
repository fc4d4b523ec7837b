package models

import "time"

type Reason string

const (
	ReasonUnexcused    Reason = "unexcused"
	ReasonORVI         Reason = "orvi"
	ReasonOtherDisease Reason = "other_disease"
	ReasonFamily       Reason = "family"
)

var Reasons = []Reason{ReasonUnexcused, ReasonORVI, ReasonOtherDisease, ReasonFamily}

func (r Reason) Valid() bool {
	switch r {
	case ReasonUnexcused, ReasonORVI, ReasonOtherDisease, ReasonFamily:
		return true
	default:
		return false
	}
}

// AttendanceSummary is the single committed record for a class on a date.
type AttendanceSummary struct {
	ID                   int64     `db:"id" json:"id"`
	ClassRoomID          int64     `db:"class_room_id" json:"class_room_id"`
	ClassName            string    `db:"class_name" json:"class_name,omitempty"`
	Date                 time.Time `db:"date" json:"date"`
	PresentCountAuto     int       `db:"present_count_auto" json:"present_count_auto"`
	PresentCountReported int       `db:"present_count_reported" json:"present_count_reported"`
	UnexcusedAbsentCount int       `db:"unexcused_absent_count" json:"unexcused_absent_count"`
	ORVICount            int       `db:"orvi_count" json:"orvi_count"`
	OtherDiseaseCount    int       `db:"other_disease_count" json:"other_disease_count"`
	FamilyReasonCount    int       `db:"family_reason_count" json:"family_reason_count"`
	CreatedBy            *int64    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

func (s *AttendanceSummary) TotalAbsent() int {
	return s.UnexcusedAbsentCount + s.ORVICount + s.OtherDiseaseCount + s.FamilyReasonCount
}

// EditDeadline is the last instant at which the summary may still be replaced.
func (s *AttendanceSummary) EditDeadline(window time.Duration) time.Time {
	return s.CreatedAt.Add(window)
}

func (s *AttendanceSummary) Editable(now time.Time, window time.Duration) bool {
	return !now.After(s.EditDeadline(window))
}

type AbsentStudent struct {
	ID           int64  `db:"id" json:"id"`
	AttendanceID int64  `db:"attendance_id" json:"attendance_id"`
	StudentID    int64  `db:"student_id" json:"student_id"`
	StudentName  string `db:"student_name" json:"student_name,omitempty"`
	Reason       Reason `db:"reason" json:"reason"`
}
