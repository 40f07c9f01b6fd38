package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

type gridSourceStub struct {
	grid     dto.Grid
	failures []dto.LoadFailure
	err      error
}

func (s gridSourceStub) Grid(ctx context.Context, viewer models.Viewer, filter dto.ScheduleFilterQuery) (*dto.Grid, []dto.LoadFailure, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	grid := s.grid
	return &grid, s.failures, nil
}

func exportFixture() dto.Grid {
	math := &dto.RenderedLesson{Discipline: "Math", Teacher: "Ali", Location: "Main - 101", LessonType: "Lecture"}
	lab := &dto.RenderedLesson{Discipline: "Physics", Teacher: "Vali", Location: "Annex - 2", LessonType: "Lab"}
	return dto.Grid{Sections: []dto.GridSection{{
		Faculty: "Engineering",
		Tables: []dto.ShiftTable{{
			Shift: "morning",
			Rows: []dto.GridRow{{
				GroupName: "G1",
				Cells: []dto.GridCell{
					{DayName: "Mon", HourName: "1", Kind: dto.CellSingle, Single: math},
					{DayName: "Mon", HourName: "2", Kind: dto.CellFree},
					{DayName: "Tue", HourName: "1", Kind: dto.CellSplit, Lower: lab},
				},
			}},
		}},
	}}}
}

func TestGridDatasetListsOccupiedHalves(t *testing.T) {
	data := GridDataset(exportFixture())
	assert.Equal(t, exportHeaders, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"Engineering", "morning", "G1", "Mon", "1", "every", "Math", "Ali", "Main - 101", "Lecture"}, data.Record(0))
	assert.Equal(t, "lower", data.Rows[1]["Week"])
	assert.Equal(t, "Physics", data.Rows[1]["Discipline"])
}

func TestExportFormats(t *testing.T) {
	failures := []dto.LoadFailure{{Collection: models.CollectionSchedules, Message: "down"}}
	svc := NewExportService(gridSourceStub{grid: exportFixture(), failures: failures}, nil, nil, nil)

	file, err := svc.Export(context.Background(), superAdmin, dto.ScheduleFilterQuery{}, "")
	require.NoError(t, err)
	assert.Equal(t, "timetable.csv", file.Filename)
	assert.Contains(t, file.ContentType, "text/csv")
	assert.True(t, bytes.HasPrefix(file.Content, []byte("\xEF\xBB\xBF")))
	assert.Contains(t, string(file.Content), "Physics")
	assert.Equal(t, failures, file.Failures)

	file, err = svc.Export(context.Background(), superAdmin, dto.ScheduleFilterQuery{}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "timetable.pdf", file.Filename)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(gridSourceStub{}, nil, nil, nil)
	_, err := svc.Export(context.Background(), superAdmin, dto.ScheduleFilterQuery{}, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportPropagatesGridErrors(t *testing.T) {
	svc := NewExportService(gridSourceStub{err: appErrors.ErrUnauthorized}, nil, nil, nil)
	_, err := svc.Export(context.Background(), superAdmin, dto.ScheduleFilterQuery{}, "csv")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestCacheServiceDisabledAlwaysMisses(t *testing.T) {
	store := newMemoryCache()
	store.entries["k"] = []byte(`1`)
	var dest int

	for _, svc := range []*CacheService{nil, NewCacheService(store, nil, 0, nil, false), NewCacheService(nil, nil, 0, nil, true)} {
		hit, err := svc.Get(context.Background(), "k", &dest)
		assert.False(t, hit)
		assert.NoError(t, err)
		assert.NoError(t, svc.Set(context.Background(), "k", 2, 0))
		assert.NoError(t, svc.Invalidate(context.Background(), "*"))
		assert.NoError(t, svc.Bump(context.Background(), "k"))
		assert.Zero(t, svc.Generation(context.Background(), "k"))
		assert.False(t, svc.Enabled())
	}
	assert.Empty(t, store.deleted)
	assert.Equal(t, []byte(`1`), store.entries["k"])
}

func TestCacheServiceGenerationCounts(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, nil, 0, nil, true)

	assert.Zero(t, svc.Generation(context.Background(), "gen"))
	require.NoError(t, svc.Bump(context.Background(), "gen"))
	require.NoError(t, svc.Bump(context.Background(), "gen"))
	assert.Equal(t, int64(2), svc.Generation(context.Background(), "gen"))
}
