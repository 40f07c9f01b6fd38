package service

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/pkg/config"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

var testWeeks = models.WeekNames{Upper: "upper", Lower: "lower"}

func week(name string) *string { return &name }

func lesson(day, hour, discipline, teacher string, weekType *string) models.Lesson {
	return models.Lesson{
		ScheduleID:     "1",
		DayName:        day,
		HourName:       hour,
		DisciplineName: discipline,
		UserName:       teacher,
		CorpName:       "Main",
		RoomName:       "101",
		LessonTypeName: "Lecture",
		WeekTypeName:   weekType,
	}
}

var superAdmin = models.Viewer{Name: "root", IsSuperAdmin: true}

func TestGridCellConcreteScenario(t *testing.T) {
	renderer := NewGridRenderer([]config.Shift{{Name: "morning", Hours: []string{"09:00-10:20"}}}, testWeeks)
	days := []models.Reference{{ID: "1", Name: "Mon"}}
	schedules := []models.Schedule{{
		ID: "1", GroupName: "G1", FacultyName: "Engineering",
		Lessons: []models.Lesson{lesson("Mon", "09:00-10:20", "Math", "Ali", nil)},
	}}

	grid := renderer.Render(days, schedules, superAdmin)
	require.Len(t, grid.Sections, 1)
	table := grid.Sections[0].Tables[0]
	require.Equal(t, []dto.GridColumn{{DayName: "Mon", HourName: "09:00-10:20"}}, table.Columns)
	cell := table.Rows[0].Cells[0]
	require.Equal(t, dto.CellSingle, cell.Kind)
	assert.Equal(t, "Math", cell.Single.Discipline)
	assert.Equal(t, "Ali", cell.Single.Teacher)
	assert.True(t, cell.Actionable())

	grid = renderer.Render(days, schedules, models.Viewer{Name: "Vali"})
	cell = grid.Sections[0].Tables[0].Rows[0].Cells[0]
	assert.Equal(t, dto.CellFree, cell.Kind)
	assert.Empty(t, cell.Lessons())
	assert.False(t, cell.Actionable())
}

func TestGridCellEveryWeekLessonWins(t *testing.T) {
	renderer := NewGridRenderer(nil, testWeeks)
	s := models.Schedule{ID: "1", Lessons: []models.Lesson{
		lesson("Mon", "1", "Upper", "A", week("upper")),
		lesson("Mon", "1", "Every", "A", nil),
		lesson("Mon", "1", "Lower", "A", week("Lower")),
	}}

	cell := renderer.Cell(s, "Mon", "1", superAdmin)
	require.Equal(t, dto.CellSingle, cell.Kind)
	assert.Equal(t, "Every", cell.Single.Discipline)
	assert.Nil(t, cell.Upper)
	assert.Nil(t, cell.Lower)
	assert.Len(t, cell.Lessons(), 1)
}

func TestGridCellSplitWeeks(t *testing.T) {
	renderer := NewGridRenderer(nil, testWeeks)

	upperOnly := models.Schedule{ID: "1", Lessons: []models.Lesson{lesson("Mon", "1", "Physics", "A", week("upper"))}}
	cell := renderer.Cell(upperOnly, "Mon", "1", superAdmin)
	require.Equal(t, dto.CellSplit, cell.Kind)
	require.NotNil(t, cell.Upper)
	assert.Equal(t, "Physics", cell.Upper.Discipline)
	assert.Nil(t, cell.Lower)

	lowerOnly := models.Schedule{ID: "1", Lessons: []models.Lesson{lesson("Mon", "1", "Chemistry", "A", week("LOWER"))}}
	cell = renderer.Cell(lowerOnly, "Mon", "1", superAdmin)
	require.Equal(t, dto.CellSplit, cell.Kind)
	assert.Nil(t, cell.Upper)
	require.NotNil(t, cell.Lower)
	assert.Equal(t, "Chemistry", cell.Lower.Discipline)

	both := models.Schedule{ID: "1", Lessons: append(upperOnly.Lessons, lowerOnly.Lessons...)}
	cell = renderer.Cell(both, "Mon", "1", superAdmin)
	assert.Len(t, cell.Lessons(), 2)
}

func TestGridCellEmptyWeekTypeMeansEveryWeek(t *testing.T) {
	renderer := NewGridRenderer(nil, testWeeks)
	s := models.Schedule{ID: "1", Lessons: []models.Lesson{lesson("Mon", "1", "Math", "A", week(" "))}}
	assert.Equal(t, dto.CellSingle, renderer.Cell(s, "Mon", "1", superAdmin).Kind)
}

func TestGridCellUnknownWeekTypeIgnored(t *testing.T) {
	renderer := NewGridRenderer(nil, testWeeks)
	s := models.Schedule{ID: "1", Lessons: []models.Lesson{lesson("Mon", "1", "Math", "A", week("odd"))}}
	assert.Equal(t, dto.CellFree, renderer.Cell(s, "Mon", "1", superAdmin).Kind)
}

func TestGridVisibilityScoping(t *testing.T) {
	shifts := config.ParseShifts("")
	renderer := NewGridRenderer(shifts, testWeeks)
	days := []models.Reference{{Name: "Mon"}, {Name: "Tue"}}
	var lessons []models.Lesson
	teachers := []string{"T", "U", "V"}
	i := 0
	for _, day := range days {
		for _, shift := range shifts {
			for _, hour := range shift.Hours {
				lessons = append(lessons, lesson(day.Name, hour, "D", teachers[i%len(teachers)], nil))
				lessons = append(lessons, lesson(day.Name, hour, "D", teachers[(i+1)%len(teachers)], week("upper")))
				i++
			}
		}
	}
	schedules := []models.Schedule{{ID: "1", FacultyName: "F", Lessons: lessons}}

	var scoped, all int
	for _, table := range renderer.Render(days, schedules, models.Viewer{Name: "T"}).Sections[0].Tables {
		for _, cell := range table.Rows[0].Cells {
			for _, l := range cell.Lessons() {
				assert.Equal(t, "T", l.Teacher)
				scoped++
			}
		}
	}
	for _, table := range renderer.Render(days, schedules, superAdmin).Sections[0].Tables {
		for _, cell := range table.Rows[0].Cells {
			all += len(cell.Lessons())
		}
	}
	assert.Greater(t, scoped, 0)
	assert.Equal(t, i, all, "super-admin sees one lesson per occupied slot")
}

func TestGridViewerWithoutNameSeesNothing(t *testing.T) {
	renderer := NewGridRenderer(nil, testWeeks)
	s := models.Schedule{ID: "1", Lessons: []models.Lesson{lesson("Mon", "1", "Math", "", nil)}}
	assert.Equal(t, dto.CellFree, renderer.Cell(s, "Mon", "1", models.Viewer{}).Kind)
}

func TestGridRenderSectionsAndPlaceholders(t *testing.T) {
	renderer := NewGridRenderer(config.ParseShifts(""), testWeeks)
	days := []models.Reference{{Name: "Mon"}}
	bare := lesson("Mon", "08:30-09:50", "", "Ali", nil)
	bare.CorpName, bare.RoomName, bare.LessonTypeName, bare.ScheduleID = "", "", "", ""
	schedules := []models.Schedule{
		{ID: "2", GroupName: "B", FacultyName: "Humanities"},
		{ID: "1", GroupName: "A", FacultyName: "Engineering", Lessons: []models.Lesson{bare}},
		{ID: "3", GroupName: "C", FacultyName: "Humanities"},
		{ID: "4", GroupName: "D"},
	}

	grid := renderer.Render(days, schedules, superAdmin)
	require.Len(t, grid.Sections, 3)
	assert.Equal(t, "Humanities", grid.Sections[0].Faculty)
	assert.Equal(t, "Engineering", grid.Sections[1].Faculty)
	assert.Equal(t, "-", grid.Sections[2].Faculty)
	require.Len(t, grid.Sections[0].Tables, 3)
	assert.Len(t, grid.Sections[0].Tables[0].Rows, 2)
	assert.Len(t, grid.Sections[0].Tables[0].Columns, 3)
	assert.Len(t, grid.Sections[0].Tables[2].Columns, 2)

	cell := grid.Sections[1].Tables[0].Rows[0].Cells[0]
	require.Equal(t, dto.CellSingle, cell.Kind)
	assert.Equal(t, "-", cell.Single.Discipline)
	assert.Equal(t, "- - -", cell.Single.Location)
	assert.Equal(t, "", cell.Single.TypeGlyph)
	assert.Equal(t, "1", cell.Single.ScheduleID)
}

func TestTypeGlyphIsFirstRune(t *testing.T) {
	assert.Equal(t, "Л", typeGlyph("Лекция"))
	assert.Equal(t, "L", typeGlyph(" Lab"))
	assert.Equal(t, "", typeGlyph(""))
}

func TestGridRenderWithoutDaysHasNoColumns(t *testing.T) {
	renderer := NewGridRenderer(config.ParseShifts(""), testWeeks)
	grid := renderer.Render(nil, []models.Schedule{{ID: "1", FacultyName: "F"}}, superAdmin)
	for _, table := range grid.Sections[0].Tables {
		assert.Empty(t, table.Columns)
		assert.Empty(t, table.Rows[0].Cells)
	}
}

type scheduleListerStub struct {
	schedules []models.Schedule
	err       error
	calls     atomic.Int32
	filter    url.Values
}

func (s *scheduleListerStub) List(ctx context.Context, filter url.Values) ([]models.Schedule, error) {
	s.calls.Add(1)
	s.filter = filter
	return s.schedules, s.err
}

func newGridServiceFixture(lister *scheduleListerStub, cache *CacheService) *GridService {
	refs := &referenceSourceStub{records: map[models.Collection][]models.Reference{
		models.CollectionDays: {{ID: "1", Name: "Mon"}},
	}}
	refSvc := NewReferenceService(refs, nil, nil, 0, 0, zap.NewNop())
	renderer := NewGridRenderer([]config.Shift{{Name: "morning", Hours: []string{"09:00-10:20"}}}, testWeeks)
	return NewGridService(lister, refSvc, renderer, cache, time.Minute, zap.NewNop())
}

func TestGridServiceForwardsFilterAndCachesPerViewer(t *testing.T) {
	lister := &scheduleListerStub{schedules: []models.Schedule{{
		ID: "1", GroupName: "G1", FacultyName: "F",
		Lessons: []models.Lesson{lesson("Mon", "09:00-10:20", "Math", "Ali", nil)},
	}}}
	store := newMemoryCache()
	svc := newGridServiceFixture(lister, NewCacheService(store, nil, time.Minute, nil, true))
	filter := dto.ScheduleFilterQuery{FacultyID: "1", UserID: "5"}

	grid, failures, err := svc.Grid(context.Background(), models.Viewer{ID: "5", Name: "Ali"}, filter)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, "1", lister.filter.Get("faculty_id"))
	assert.Equal(t, "5", lister.filter.Get("user_id"))
	assert.Equal(t, dto.CellSingle, grid.Sections[0].Tables[0].Rows[0].Cells[0].Kind)

	_, _, err = svc.Grid(context.Background(), models.Viewer{ID: "5", Name: "Ali"}, filter)
	require.NoError(t, err)
	assert.Equal(t, int32(1), lister.calls.Load())
	assert.Contains(t, store.entries, scheduleCacheKey(0, models.Viewer{ID: "5"}, filter))

	_, _, err = svc.Grid(context.Background(), models.Viewer{ID: "6", Name: "Vali"}, filter)
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestGridServiceDegradesOnScheduleFailure(t *testing.T) {
	lister := &scheduleListerStub{err: appErrors.Clone(appErrors.ErrUpstreamUnavailable, "backend down")}
	svc := newGridServiceFixture(lister, nil)

	grid, failures, err := svc.Grid(context.Background(), superAdmin, dto.ScheduleFilterQuery{})
	require.NoError(t, err)
	assert.Empty(t, grid.Sections)
	require.Len(t, failures, 1)
	assert.Equal(t, models.CollectionSchedules, failures[0].Collection)
}

func TestGridServiceAbortsOnAuthFailure(t *testing.T) {
	lister := &scheduleListerStub{err: appErrors.ErrUnauthorized}
	svc := newGridServiceFixture(lister, nil)

	_, _, err := svc.Grid(context.Background(), superAdmin, dto.ScheduleFilterQuery{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

// gatedScheduleLister serves "old" from a first call held open until
// release is closed, and "new" afterwards.
type gatedScheduleLister struct {
	calls    atomic.Int32
	entered  chan struct{}
	release  chan struct{}
	snapshot atomic.Value
}

func (s *gatedScheduleLister) List(ctx context.Context, filter url.Values) ([]models.Schedule, error) {
	if s.calls.Add(1) == 1 {
		stale := s.snapshot.Load().([]models.Schedule)
		close(s.entered)
		<-s.release
		return stale, nil
	}
	return s.snapshot.Load().([]models.Schedule), nil
}

func TestGridSchedulesNotPoisonedByMutationDuringFetch(t *testing.T) {
	lister := &gatedScheduleLister{entered: make(chan struct{}), release: make(chan struct{})}
	lister.snapshot.Store([]models.Schedule{{ID: "1", GroupName: "old"}})
	store := newMemoryCache()
	cache := NewCacheService(store, nil, time.Minute, nil, true)
	grid := newGridServiceFixture(&scheduleListerStub{}, cache)
	grid.repo = lister
	entries := NewScheduleEntryService(&entryRepoStub{}, cache, nil, nil, nil)
	viewer := models.Viewer{ID: "5", Name: "Ivanov"}
	filter := dto.ScheduleFilterQuery{FacultyID: "1"}

	done := make(chan []models.Schedule, 1)
	go func() {
		schedules, err := grid.Schedules(context.Background(), viewer, filter)
		assert.NoError(t, err)
		done <- schedules
	}()

	<-lister.entered
	lister.snapshot.Store([]models.Schedule{{ID: "1", GroupName: "new"}})
	_, err := entries.Submit(context.Background(), viewer, entryForm())
	require.NoError(t, err)
	close(lister.release)

	late := <-done
	require.Len(t, late, 1)
	assert.Equal(t, "old", late[0].GroupName)

	fresh, err := grid.Schedules(context.Background(), viewer, filter)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "new", fresh[0].GroupName)
	assert.Equal(t, int32(2), lister.calls.Load())
}
