package attendance

import (
	"context"
	"sort"
	"time"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

type summaryKey struct {
	classID int64
	day     time.Time
}

// fakeStore keeps everything in maps and restores a snapshot when a
// transaction function fails.
type fakeStore struct {
	classes   map[int64]*models.ClassRoom
	students  map[int64]*models.Student
	summaries map[summaryKey]models.AttendanceSummary
	absents   map[int64][]models.AbsentStudent
	nextID    int64
	// insertErr is returned by the next InsertSummary call, once.
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		classes:   map[int64]*models.ClassRoom{},
		students:  map[int64]*models.Student{},
		summaries: map[summaryKey]models.AttendanceSummary{},
		absents:   map[int64][]models.AbsentStudent{},
	}
}

func (f *fakeStore) addClass(id int64, name string) {
	f.classes[id] = &models.ClassRoom{ID: id, Name: name}
}

// addStudents puts active students with ids from..to into the class.
func (f *fakeStore) addStudents(classID, from, to int64) {
	for id := from; id <= to; id++ {
		f.students[id] = &models.Student{ID: id, ClassRoomID: classID, IsActive: true}
	}
}

func (f *fakeStore) GetClassRoom(_ context.Context, id int64) (*models.ClassRoom, error) {
	c, ok := f.classes[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(tx store.AttendanceTx) error) error {
	summaries := make(map[summaryKey]models.AttendanceSummary, len(f.summaries))
	for k, v := range f.summaries {
		summaries[k] = v
	}
	absents := make(map[int64][]models.AbsentStudent, len(f.absents))
	for k, v := range f.absents {
		absents[k] = append([]models.AbsentStudent(nil), v...)
	}

	if err := fn(f); err != nil {
		f.summaries = summaries
		f.absents = absents
		return err
	}
	return nil
}

func (f *fakeStore) CountActiveStudents(classID int64) (int, error) {
	n := 0
	for _, s := range f.students {
		if s.ClassRoomID == classID && s.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ClassStudentIDs(classID int64, ids []int64) (map[int64]bool, error) {
	out := map[int64]bool{}
	for _, id := range ids {
		if s, ok := f.students[id]; ok && s.ClassRoomID == classID {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) GetSummaryForUpdate(classID int64, day time.Time) (*models.AttendanceSummary, error) {
	s, ok := f.summaries[summaryKey{classID, day}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) InsertSummary(summary *models.AttendanceSummary) error {
	if f.insertErr != nil {
		err := f.insertErr
		f.insertErr = nil
		return err
	}
	key := summaryKey{summary.ClassRoomID, summary.Date}
	if _, ok := f.summaries[key]; ok {
		return store.ErrDuplicate
	}
	f.nextID++
	summary.ID = f.nextID
	f.summaries[key] = *summary
	return nil
}

func (f *fakeStore) UpdateSummary(summary *models.AttendanceSummary) error {
	key := summaryKey{summary.ClassRoomID, summary.Date}
	old := f.summaries[key]
	updated := *summary
	updated.CreatedAt = old.CreatedAt
	f.summaries[key] = updated
	return nil
}

func (f *fakeStore) ReplaceAbsentStudents(summaryID int64, absents []models.AbsentStudent) error {
	rows := make([]models.AbsentStudent, len(absents))
	for i, a := range absents {
		a.AttendanceID = summaryID
		rows[i] = a
	}
	f.absents[summaryID] = rows
	return nil
}

func (f *fakeStore) summary(classID int64, day time.Time) *models.AttendanceSummary {
	s, ok := f.summaries[summaryKey{classID, day}]
	if !ok {
		return nil
	}
	return &s
}

func (f *fakeStore) reasons(summaryID int64) map[int64]models.Reason {
	out := map[int64]models.Reason{}
	rows := f.absents[summaryID]
	sort.Slice(rows, func(i, j int) bool { return rows[i].StudentID < rows[j].StudentID })
	for _, a := range rows {
		out[a.StudentID] = a.Reason
	}
	return out
}
