// Package export renders one day of attendance for every class as a
// spreadsheet, a Word document or a Google sheet.
package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

const (
	NoData       = "Нет данных"
	missingCount = "-"
)

var Headers = []string{
	"Класс",
	"Пришло",
	"Неув.",
	"Ученики (неув.)",
	"ОРВИ",
	"Ученики (ОРВИ)",
	"Другие",
	"Ученики (другие)",
	"Семейные",
	"Ученики (сем.)",
	"Все отсутствующие",
}

type Store interface {
	ListClassRooms(ctx context.Context) ([]models.ClassRoom, error)
	ListSummaries(ctx context.Context, days store.DayRange, classIDs []int64) ([]models.AttendanceSummary, error)
	ListAbsentStudents(ctx context.Context, summaryIDs []int64) ([]models.AbsentStudent, error)
}

// Row is one class line of the daily table. Cells follow Headers.
type Row struct {
	ClassName string
	HasData   bool
	Cells     []string
}

// BuildDailyRows lists every class in natural order. Classes without a
// summary for the day get placeholder cells and HasData=false.
func BuildDailyRows(ctx context.Context, s Store, day time.Time) ([]Row, error) {
	classes, err := s.ListClassRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load classes: %w", err)
	}
	summaries, err := s.ListSummaries(ctx, store.SingleDay(day), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}

	byClass := make(map[int64]*models.AttendanceSummary, len(summaries))
	ids := make([]int64, 0, len(summaries))
	for i := range summaries {
		byClass[summaries[i].ClassRoomID] = &summaries[i]
		ids = append(ids, summaries[i].ID)
	}

	absents, err := s.ListAbsentStudents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load absent students: %w", err)
	}
	bySummary := make(map[int64][]models.AbsentStudent)
	for _, a := range absents {
		bySummary[a.AttendanceID] = append(bySummary[a.AttendanceID], a)
	}

	rows := make([]Row, 0, len(classes))
	for _, class := range classes {
		summary, ok := byClass[class.ID]
		if !ok {
			rows = append(rows, missingRow(class.Name))
			continue
		}
		rows = append(rows, summaryRow(class.Name, summary, bySummary[summary.ID]))
	}
	return rows, nil
}

func missingRow(className string) Row {
	return Row{
		ClassName: className,
		Cells: []string{
			className,
			missingCount, missingCount, NoData,
			missingCount, NoData,
			missingCount, NoData,
			missingCount, NoData,
			NoData,
		},
	}
}

func summaryRow(className string, s *models.AttendanceSummary, absents []models.AbsentStudent) Row {
	byReason := make(map[models.Reason][]string)
	all := make([]string, 0, len(absents))
	for _, a := range absents {
		byReason[a.Reason] = append(byReason[a.Reason], a.StudentName)
		all = append(all, a.StudentName)
	}

	// a summary without any stored absences has nobody to name
	names := func(list []string) string {
		if len(absents) == 0 {
			return NoData
		}
		return strings.Join(list, ", ")
	}

	return Row{
		ClassName: className,
		HasData:   true,
		Cells: []string{
			className,
			strconv.Itoa(s.PresentCountReported),
			strconv.Itoa(s.UnexcusedAbsentCount),
			names(byReason[models.ReasonUnexcused]),
			strconv.Itoa(s.ORVICount),
			names(byReason[models.ReasonORVI]),
			strconv.Itoa(s.OtherDiseaseCount),
			names(byReason[models.ReasonOtherDisease]),
			strconv.Itoa(s.FamilyReasonCount),
			names(byReason[models.ReasonFamily]),
			names(all),
		},
	}
}

// FileName is the download name for a daily export, ext without the dot.
func FileName(day time.Time, ext string) string {
	return fmt.Sprintf("daily_statistics_%s.%s", day.Format("2006-01-02"), ext)
}
