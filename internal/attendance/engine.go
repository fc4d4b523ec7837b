// Package attendance validates daily attendance submissions and commits them
// as one summary per class and date.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/calendar"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

const DefaultEditWindow = 30 * time.Minute

type Store interface {
	GetClassRoom(ctx context.Context, id int64) (*models.ClassRoom, error)
	WithinTx(ctx context.Context, fn func(tx store.AttendanceTx) error) error
}

// Actor is who submits and which classes they may write to.
type Actor struct {
	UserID           *int64
	PermittedClasses []int64
}

func (a Actor) permits(classID int64) bool {
	for _, id := range a.PermittedClasses {
		if id == classID {
			return true
		}
	}
	return false
}

type Saved struct {
	ClassID   int64                     `json:"class_id"`
	ClassName string                    `json:"class_name"`
	Created   bool                      `json:"created"`
	Summary   *models.AttendanceSummary `json:"summary"`
}

type Engine struct {
	store    Store
	calendar *calendar.Calendar
	window   time.Duration
	now      func() time.Time
}

func NewEngine(s Store, cal *calendar.Calendar, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultEditWindow
	}
	return &Engine{store: s, calendar: cal, window: window, now: time.Now}
}

// WithClock replaces the wall clock used for edit window checks.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) EditWindow() time.Duration {
	return e.window
}

// Submit processes the rows in order, one transaction per class. The first
// failing row stops the batch; rows saved before it stay saved and are
// returned together with the error.
func (e *Engine) Submit(ctx context.Context, day time.Time, sub Submission, actor Actor) ([]Saved, error) {
	day = calendar.Day(day)
	if !e.calendar.IsSchoolDay(day) {
		return nil, &StateError{Kind: StateNonSchoolDay}
	}

	var saved []Saved
	for _, row := range sub.Rows {
		if sub.EditClassID != 0 && row.ClassID != sub.EditClassID {
			continue
		}
		if row.Blank() {
			continue
		}

		result, err := e.submitClass(ctx, day, row, actor)
		if err != nil {
			return saved, err
		}
		saved = append(saved, *result)
	}
	return saved, nil
}

func (e *Engine) submitClass(ctx context.Context, day time.Time, row ClassInput, actor Actor) (*Saved, error) {
	if !actor.permits(row.ClassID) {
		return nil, fmt.Errorf("class %d: %w", row.ClassID, ErrClassNotPermitted)
	}

	class, err := e.store.GetClassRoom(ctx, row.ClassID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, &NotFoundError{Kind: "class", ID: row.ClassID}
	}

	result := &Saved{ClassID: class.ID, ClassName: class.Name}
	err = e.store.WithinTx(ctx, func(tx store.AttendanceTx) error {
		roster, err := tx.CountActiveStudents(class.ID)
		if err != nil {
			return err
		}
		rec, err := Reconcile(row, class.Name, roster)
		if err != nil || rec == nil {
			return err
		}

		now := e.now()
		existing, err := tx.GetSummaryForUpdate(class.ID, day)
		if err != nil {
			return err
		}

		summary := existing
		if summary == nil {
			summary = &models.AttendanceSummary{ClassRoomID: class.ID, Date: day, CreatedAt: now}
			result.Created = true
		} else if !summary.Editable(now, e.window) {
			return &StateError{Class: class.Name, Kind: StateEditWindowClosed}
		}

		summary.ClassName = class.Name
		summary.PresentCountAuto = rec.PresentCountAuto
		summary.PresentCountReported = rec.PresentCountReported
		summary.UnexcusedAbsentCount = rec.UnexcusedAbsentCount
		summary.ORVICount = rec.ORVICount
		summary.OtherDiseaseCount = rec.OtherDiseaseCount
		summary.FamilyReasonCount = rec.FamilyReasonCount
		summary.CreatedBy = actor.UserID
		summary.UpdatedAt = now

		if result.Created {
			err = tx.InsertSummary(summary)
		} else {
			err = tx.UpdateSummary(summary)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return &StateError{Class: class.Name, Kind: StateDuplicate}
		}
		if err != nil {
			return err
		}

		absents, err := e.ownAbsences(tx, class.ID, rec.Absences)
		if err != nil {
			return err
		}
		if err := tx.ReplaceAbsentStudents(summary.ID, absents); err != nil {
			return err
		}

		result.Summary = summary
		return nil
	})
	if err != nil {
		return nil, err
	}

	verb := "updated"
	if result.Created {
		verb = "created"
	}
	logger.Info.Printf("Attendance %s for class %s on %s: %d absent",
		verb, class.Name, day.Format(time.DateOnly), result.Summary.TotalAbsent())
	return result, nil
}

// ownAbsences drops ids that are unknown or belong to another class.
func (e *Engine) ownAbsences(tx store.AttendanceTx, classID int64, absences []models.AbsentStudent) ([]models.AbsentStudent, error) {
	ids := make([]int64, len(absences))
	for i, a := range absences {
		ids[i] = a.StudentID
	}
	own, err := tx.ClassStudentIDs(classID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.AbsentStudent, 0, len(absences))
	for _, a := range absences {
		if own[a.StudentID] {
			out = append(out, a)
		}
	}
	return out, nil
}
