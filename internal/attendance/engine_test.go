package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/poseshaemost/internal/calendar"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

var (
	monday   = time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	morning  = time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
)

type engineFixture struct {
	store  *fakeStore
	engine *Engine
	clock  time.Time
	actor  Actor
}

func newEngineFixture() *engineFixture {
	fs := newFakeStore()
	fs.addClass(1, "5А")
	fs.addStudents(1, 1, 30)
	fs.addClass(2, "6Б")
	fs.addStudents(2, 31, 40)
	fs.addClass(3, "7В")
	fs.addStudents(3, 41, 45)

	teacher := int64(77)
	f := &engineFixture{
		store: fs,
		clock: morning,
		actor: Actor{UserID: &teacher, PermittedClasses: []int64{1, 2, 3}},
	}
	cal := calendar.New([][]int{{1, 1}}, time.UTC)
	f.engine = NewEngine(fs, cal, 30*time.Minute).WithClock(func() time.Time { return f.clock })
	return f
}

func (f *engineFixture) submit(rows ...ClassInput) ([]Saved, error) {
	return f.engine.Submit(context.Background(), monday, Submission{Rows: rows}, f.actor)
}

func TestSubmitCreatesSummary(t *testing.T) {
	f := newEngineFixture()

	saved, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{Count: "2", List: "5,6"}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Created)
	assert.Equal(t, "5А", saved[0].ClassName)

	got := f.store.summary(1, monday)
	require.NotNil(t, got)
	assert.Equal(t, 30, got.PresentCountAuto)
	assert.Equal(t, 28, got.PresentCountReported)
	assert.Equal(t, 2, got.ORVICount)
	assert.Zero(t, got.UnexcusedAbsentCount)
	assert.Equal(t, morning, got.CreatedAt)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, int64(77), *got.CreatedBy)
	assert.Equal(t, map[int64]models.Reason{5: models.ReasonORVI, 6: models.ReasonORVI}, f.store.reasons(got.ID))
}

func TestSubmitReplacesWithinWindow(t *testing.T) {
	f := newEngineFixture()
	_, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{Count: "2", List: "5,6"}})
	require.NoError(t, err)
	first := f.store.summary(1, monday)

	f.clock = morning.Add(10 * time.Minute)
	saved, err := f.submit(ClassInput{ClassID: 1, Unexcused: ReasonInput{List: "5"}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.False(t, saved[0].Created)

	got := f.store.summary(1, monday)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, 1, got.UnexcusedAbsentCount)
	assert.Zero(t, got.ORVICount)
	assert.Equal(t, 29, got.PresentCountReported)
	assert.Equal(t, morning, got.CreatedAt, "edits never move created_at")
	assert.Equal(t, f.clock, got.UpdatedAt)
	assert.Equal(t, map[int64]models.Reason{5: models.ReasonUnexcused}, f.store.reasons(got.ID))
}

func TestSubmitRejectsOverlapOnEdit(t *testing.T) {
	f := newEngineFixture()
	_, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{Count: "2", List: "5,6"}})
	require.NoError(t, err)
	before := *f.store.summary(1, monday)

	f.clock = morning.Add(5 * time.Minute)
	_, err = f.submit(ClassInput{
		ClassID:   1,
		Unexcused: ReasonInput{List: "5"},
		ORVI:      ReasonInput{List: "5,6"},
	})
	assert.True(t, IsValidation(err))

	assert.Equal(t, before, *f.store.summary(1, monday))
	assert.Len(t, f.store.reasons(before.ID), 2)
}

func TestSubmitOnWeekendRejectsWholeBatch(t *testing.T) {
	f := newEngineFixture()

	for _, day := range []time.Time{saturday, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)} {
		saved, err := f.engine.Submit(context.Background(), day, Submission{Rows: []ClassInput{
			{ClassID: 1, ORVI: ReasonInput{List: "5"}},
			{ClassID: 2, Family: ReasonInput{List: "31"}},
		}}, f.actor)
		assert.Nil(t, saved)
		assert.True(t, IsState(err, StateNonSchoolDay))
	}
	assert.Empty(t, f.store.summaries)
}

func TestSubmitLockedSummaryIsNeverChanged(t *testing.T) {
	f := newEngineFixture()
	_, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{List: "5,6"}})
	require.NoError(t, err)
	before := *f.store.summary(1, monday)
	beforeReasons := f.store.reasons(before.ID)

	t.Run("deadline itself is still editable", func(t *testing.T) {
		f.clock = morning.Add(30 * time.Minute)
		_, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{List: "5,6"}})
		require.NoError(t, err)
	})

	payloads := []ClassInput{
		{ClassID: 1, Unexcused: ReasonInput{List: "1"}},
		{ClassID: 1, ReportedPresent: "30"},
		{ClassID: 1, Family: ReasonInput{List: "1,2,3"}, AllAbsent: "1,2,3"},
	}
	for _, p := range payloads {
		f.clock = morning.Add(31 * time.Minute)
		_, err := f.submit(p)
		assert.True(t, IsState(err, StateEditWindowClosed), "got %v", err)

		got := f.store.summary(1, monday)
		assert.Equal(t, before.ORVICount, got.ORVICount)
		assert.Equal(t, before.CreatedAt, got.CreatedAt)
		assert.Equal(t, beforeReasons, f.store.reasons(before.ID))
	}
}

func TestSubmitBatchStopsAtFirstFailure(t *testing.T) {
	f := newEngineFixture()

	saved, err := f.submit(
		ClassInput{ClassID: 1, ORVI: ReasonInput{List: "5"}},
		ClassInput{ClassID: 2, ORVI: ReasonInput{Count: "3", List: "31"}},
		ClassInput{ClassID: 3, Family: ReasonInput{List: "41"}},
	)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "6Б", verr.Class)
	assert.Equal(t, RuleCountMismatch, verr.Rule)

	require.Len(t, saved, 1)
	assert.Equal(t, int64(1), saved[0].ClassID)
	assert.NotNil(t, f.store.summary(1, monday), "earlier class stays committed")
	assert.Nil(t, f.store.summary(2, monday))
	assert.Nil(t, f.store.summary(3, monday), "later classes are not processed")
}

func TestSubmitSkipsBlankRows(t *testing.T) {
	f := newEngineFixture()

	saved, err := f.submit(
		ClassInput{ClassID: 1},
		ClassInput{ClassID: 2, Family: ReasonInput{List: "31"}},
	)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Nil(t, f.store.summary(1, monday))
	assert.NotNil(t, f.store.summary(2, monday))
}

func TestSubmitEditClassRestrictsRows(t *testing.T) {
	f := newEngineFixture()

	saved, err := f.engine.Submit(context.Background(), monday, Submission{
		EditClassID: 2,
		Rows: []ClassInput{
			{ClassID: 1, ORVI: ReasonInput{List: "5"}},
			{ClassID: 2, ORVI: ReasonInput{List: "31"}},
		},
	}, f.actor)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, int64(2), saved[0].ClassID)
	assert.Nil(t, f.store.summary(1, monday))
}

func TestSubmitClassChecks(t *testing.T) {
	t.Run("class outside the permitted set", func(t *testing.T) {
		f := newEngineFixture()
		f.actor.PermittedClasses = []int64{1}

		_, err := f.submit(ClassInput{ClassID: 2, ORVI: ReasonInput{List: "31"}})
		assert.ErrorIs(t, err, ErrClassNotPermitted)
		assert.Empty(t, f.store.summaries)
	})

	t.Run("unknown class", func(t *testing.T) {
		f := newEngineFixture()
		f.actor.PermittedClasses = []int64{1, 99}

		_, err := f.submit(ClassInput{ClassID: 99, ORVI: ReasonInput{List: "1"}})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, int64(99), nf.ID)
	})

	t.Run("foreign and unknown student ids are dropped", func(t *testing.T) {
		f := newEngineFixture()

		_, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{List: "5,31,999"}})
		require.NoError(t, err)

		got := f.store.summary(1, monday)
		assert.Equal(t, 3, got.ORVICount)
		assert.Equal(t, map[int64]models.Reason{5: models.ReasonORVI}, f.store.reasons(got.ID))
	})

	t.Run("concurrent duplicate insert", func(t *testing.T) {
		f := newEngineFixture()
		f.store.insertErr = store.ErrDuplicate

		_, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{List: "5"}})
		assert.True(t, IsState(err, StateDuplicate))
		assert.Empty(t, f.store.summaries)
	})

	t.Run("store failure is passed through", func(t *testing.T) {
		f := newEngineFixture()
		boom := errors.New("disk full")
		f.store.insertErr = boom

		_, err := f.submit(ClassInput{ClassID: 1, ORVI: ReasonInput{List: "5"}})
		assert.ErrorIs(t, err, boom)
	})
}

func TestSubmitTruncatesTimeOfDay(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.Submit(context.Background(), morning.Add(3*time.Hour), Submission{Rows: []ClassInput{
		{ClassID: 1, Unexcused: ReasonInput{List: "1"}},
	}}, f.actor)
	require.NoError(t, err)
	assert.NotNil(t, f.store.summary(1, monday))
}
