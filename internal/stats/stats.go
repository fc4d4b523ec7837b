// Package stats builds the monthly attendance report from committed summaries.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shrimpsizemoose/poseshaemost/internal/calendar"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

const (
	MinYear = 1970
	MaxYear = 2100
)

type Store interface {
	ListClassRooms(ctx context.Context) ([]models.ClassRoom, error)
	CountAllActiveStudents(ctx context.Context) (int, error)
	ListSummaries(ctx context.Context, days store.DayRange, classIDs []int64) ([]models.AttendanceSummary, error)
	CountUnexcusedByStudent(ctx context.Context, days store.DayRange) ([]store.StudentAbsenceCount, error)
	CountPrivilegesByClass(ctx context.Context) ([]store.PrivilegeCount, error)
}

type Totals struct {
	PresentAuto     int `json:"total_present_auto"`
	PresentReported int `json:"total_present_reported"`
	Unexcused       int `json:"total_unexcused"`
	ORVI            int `json:"total_orvi"`
	OtherDisease    int `json:"total_other_disease"`
	Family          int `json:"total_family"`
}

func (t *Totals) Add(s *models.AttendanceSummary) {
	t.PresentAuto += s.PresentCountAuto
	t.PresentReported += s.PresentCountReported
	t.Unexcused += s.UnexcusedAbsentCount
	t.ORVI += s.ORVICount
	t.OtherDisease += s.OtherDiseaseCount
	t.Family += s.FamilyReasonCount
}

type Day struct {
	Date          time.Time                  `json:"date"`
	ReportedCount int                        `json:"reported_classes"`
	Totals        Totals                     `json:"totals"`
	Records       []models.AttendanceSummary `json:"records"`
}

type ClassTotals struct {
	ClassID   int64  `json:"class_id"`
	ClassName string `json:"class_name"`
	Totals
}

type PrivilegeRow struct {
	ClassID   int64  `json:"class_id,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	SVO       int    `json:"svo"`
	Multi     int    `json:"multi"`
	LowIncome int    `json:"low_income"`
	Disabled  int    `json:"disabled"`
	Total     int    `json:"total"`
}

func (p *PrivilegeRow) add(code models.PrivilegeType, n int) {
	switch code {
	case models.PrivilegeSVO:
		p.SVO += n
	case models.PrivilegeMulti:
		p.Multi += n
	case models.PrivilegeLowIncome:
		p.LowIncome += n
	case models.PrivilegeDisabled:
		p.Disabled += n
	default:
		return
	}
	p.Total += n
}

type StudentAbsences struct {
	StudentID    int64  `json:"student_id"`
	FullName     string `json:"full_name"`
	ClassName    string `json:"class_name"`
	AbsenceCount int    `json:"absence_count"`
}

type Report struct {
	Year            int               `json:"year"`
	Month           int               `json:"month"`
	WorkingDays     int               `json:"working_days"`
	TotalClasses    int               `json:"total_classes"`
	TotalStudents   int               `json:"total_students"`
	Days            []Day             `json:"days"`
	ByClass         []ClassTotals     `json:"monthly_by_class"`
	PerStudent      []StudentAbsences `json:"per_student"`
	Privileges      []PrivilegeRow    `json:"privileged_types_by_class"`
	PrivilegeTotals PrivilegeRow      `json:"privileged_types_totals"`
}

type Aggregator struct {
	store    Store
	calendar *calendar.Calendar
}

func NewAggregator(s Store, cal *calendar.Calendar) *Aggregator {
	return &Aggregator{store: s, calendar: cal}
}

// MonthlyReport reads whatever is committed for the month at call time.
func (a *Aggregator) MonthlyReport(ctx context.Context, year int, month time.Month) (*Report, error) {
	period := store.MonthRange(year, month)

	summaries, err := a.store.ListSummaries(ctx, period, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}
	absences, err := a.store.CountUnexcusedByStudent(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load absences: %w", err)
	}
	classes, err := a.store.ListClassRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load classes: %w", err)
	}
	privileges, err := a.store.CountPrivilegesByClass(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load privileges: %w", err)
	}
	students, err := a.store.CountAllActiveStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	report := &Report{
		Year:          year,
		Month:         int(month),
		WorkingDays:   a.calendar.CountWorkingDays(year, month),
		TotalClasses:  len(classes),
		TotalStudents: students,
		Days:          GroupByDay(summaries),
		ByClass:       GroupByClass(summaries),
		PerStudent:    sortStudents(absences),
	}
	report.Privileges, report.PrivilegeTotals = privilegeBreakdown(classes, privileges)
	return report, nil
}

// GroupByDay returns one entry per date, newest first, with records in
// natural class order.
func GroupByDay(summaries []models.AttendanceSummary) []Day {
	byDate := map[time.Time]*Day{}
	for _, s := range summaries {
		key := calendar.Day(s.Date)
		d, ok := byDate[key]
		if !ok {
			d = &Day{Date: key}
			byDate[key] = d
		}
		d.Records = append(d.Records, s)
		d.ReportedCount++
		d.Totals.Add(&s)
	}

	days := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		sort.SliceStable(d.Records, func(i, j int) bool {
			return models.ClassNameLess(d.Records[i].ClassName, d.Records[j].ClassName)
		})
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.After(days[j].Date) })
	return days
}

func GroupByClass(summaries []models.AttendanceSummary) []ClassTotals {
	byClass := map[int64]*ClassTotals{}
	for _, s := range summaries {
		c, ok := byClass[s.ClassRoomID]
		if !ok {
			c = &ClassTotals{ClassID: s.ClassRoomID, ClassName: s.ClassName}
			byClass[s.ClassRoomID] = c
		}
		c.Add(&s)
	}

	out := make([]ClassTotals, 0, len(byClass))
	for _, c := range byClass {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return models.ClassNameLess(out[i].ClassName, out[j].ClassName) })
	return out
}

func sortStudents(counts []store.StudentAbsenceCount) []StudentAbsences {
	out := make([]StudentAbsences, len(counts))
	for i, c := range counts {
		out[i] = StudentAbsences(c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if models.ClassNameLess(a.ClassName, b.ClassName) {
			return true
		}
		if models.ClassNameLess(b.ClassName, a.ClassName) {
			return false
		}
		return strings.ToLower(a.FullName) < strings.ToLower(b.FullName)
	})
	return out
}

// privilegeBreakdown lists every class, including those without privileged
// students, plus a grand total row.
func privilegeBreakdown(classes []models.ClassRoom, counts []store.PrivilegeCount) ([]PrivilegeRow, PrivilegeRow) {
	rows := make([]PrivilegeRow, len(classes))
	index := make(map[int64]int, len(classes))
	for i, c := range classes {
		rows[i] = PrivilegeRow{ClassID: c.ID, ClassName: c.Name}
		index[c.ID] = i
	}

	var totals PrivilegeRow
	for _, c := range counts {
		i, ok := index[c.ClassRoomID]
		if !ok {
			continue
		}
		rows[i].add(c.Code, c.Count)
		totals.add(c.Code, c.Count)
	}
	return rows, totals
}

// ParseIntParam reads an optional integer query parameter. Missing, malformed
// or out of range input yields def.
func ParseIntParam(raw string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}

// Period resolves the month and year query parameters against today.
func Period(monthRaw, yearRaw string, today time.Time) (int, time.Month) {
	year := ParseIntParam(yearRaw, today.Year(), MinYear, MaxYear)
	month := ParseIntParam(monthRaw, int(today.Month()), 1, 12)
	return year, time.Month(month)
}
