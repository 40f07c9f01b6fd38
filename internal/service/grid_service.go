package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/pkg/config"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

const placeholder = "-"

// GridRenderer lays lessons onto day × hour tables.
type GridRenderer struct {
	shifts []config.Shift
	weeks  models.WeekNames
}

// NewGridRenderer builds a renderer for the given hour bands and week type names.
func NewGridRenderer(shifts []config.Shift, weeks models.WeekNames) GridRenderer {
	return GridRenderer{shifts: shifts, weeks: weeks}
}

// Render builds one section per faculty (in first-seen order), each with a
// table per shift. Rows are schedules, columns are day × hour pairs.
func (r GridRenderer) Render(days []models.Reference, schedules []models.Schedule, viewer models.Viewer) dto.Grid {
	grid := dto.Grid{Sections: []dto.GridSection{}}
	index := map[string]int{}
	byFaculty := [][]models.Schedule{}
	for _, s := range schedules {
		faculty := s.FacultyName
		if faculty == "" {
			faculty = placeholder
		}
		i, ok := index[faculty]
		if !ok {
			i = len(byFaculty)
			index[faculty] = i
			byFaculty = append(byFaculty, nil)
			grid.Sections = append(grid.Sections, dto.GridSection{Faculty: faculty})
		}
		byFaculty[i] = append(byFaculty[i], s)
	}

	for i := range grid.Sections {
		for _, shift := range r.shifts {
			grid.Sections[i].Tables = append(grid.Sections[i].Tables, r.table(shift, days, byFaculty[i], viewer))
		}
	}
	return grid
}

func (r GridRenderer) table(shift config.Shift, days []models.Reference, schedules []models.Schedule, viewer models.Viewer) dto.ShiftTable {
	table := dto.ShiftTable{Shift: shift.Name, Columns: []dto.GridColumn{}, Rows: []dto.GridRow{}}
	for _, day := range days {
		for _, hour := range shift.Hours {
			table.Columns = append(table.Columns, dto.GridColumn{DayName: day.Name, HourName: hour})
		}
	}
	for _, s := range schedules {
		row := dto.GridRow{
			ScheduleID:     s.ID.String(),
			GroupName:      s.GroupName,
			DepartmentName: s.DepartmentName,
			Cells:          make([]dto.GridCell, 0, len(table.Columns)),
		}
		for _, col := range table.Columns {
			row.Cells = append(row.Cells, r.Cell(s, col.DayName, col.HourName, viewer))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// Cell resolves the (day, hour) slot of a schedule for the viewer. A visible
// every-week lesson wins outright, even if week-typed lessons share the
// slot. Otherwise visible upper/lower lessons split the cell, and with
// neither the cell is free.
func (r GridRenderer) Cell(s models.Schedule, day, hour string, viewer models.Viewer) dto.GridCell {
	cell := dto.GridCell{DayName: day, HourName: hour, Kind: dto.CellFree}

	find := func(kind models.WeekKind) *models.Lesson {
		for i := range s.Lessons {
			l := s.Lessons[i]
			if l.DayName == day && l.HourName == hour && r.weeks.Kind(l) == kind && viewer.Sees(l) {
				return &s.Lessons[i]
			}
		}
		return nil
	}

	if single := find(models.WeekEvery); single != nil {
		cell.Kind = dto.CellSingle
		cell.Single = renderLesson(s, *single)
		return cell
	}

	upper := find(models.WeekUpper)
	lower := find(models.WeekLower)
	if upper == nil && lower == nil {
		return cell
	}
	cell.Kind = dto.CellSplit
	if upper != nil {
		cell.Upper = renderLesson(s, *upper)
	}
	if lower != nil {
		cell.Lower = renderLesson(s, *lower)
	}
	return cell
}

func renderLesson(s models.Schedule, l models.Lesson) *dto.RenderedLesson {
	scheduleID := l.ScheduleID
	if scheduleID.IsZero() {
		scheduleID = s.ID
	}
	return &dto.RenderedLesson{
		ScheduleID: scheduleID.String(),
		Discipline: orPlaceholder(l.DisciplineName),
		Teacher:    orPlaceholder(l.UserName),
		Location:   orPlaceholder(l.CorpName) + " - " + orPlaceholder(l.RoomName),
		TypeGlyph:  typeGlyph(l.LessonTypeName),
		LessonType: l.LessonTypeName,
	}
}

func orPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}

// typeGlyph is the first character of the lesson type name.
func typeGlyph(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(r)
}

type scheduleLister interface {
	List(ctx context.Context, filter url.Values) ([]models.Schedule, error)
}

// GridService fetches schedules and days and renders the grid for a viewer.
type GridService struct {
	repo       scheduleLister
	references *ReferenceService
	renderer   GridRenderer
	cache      *CacheService
	ttl        time.Duration
	logger     *zap.Logger
}

// NewGridService constructs the service.
func NewGridService(repo scheduleLister, references *ReferenceService, renderer GridRenderer, cache *CacheService, ttl time.Duration, logger *zap.Logger) *GridService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridService{repo: repo, references: references, renderer: renderer, cache: cache, ttl: ttl, logger: logger}
}

// scheduleGenerationKey counts schedule mutations. It sits outside the
// "schedules:" namespace so invalidating the lists never resets it.
const scheduleGenerationKey = "schedule-generation"

// scheduleCacheKey namespaces cached lists by mutation generation, viewer and filter.
func scheduleCacheKey(gen int64, viewer models.Viewer, filter dto.ScheduleFilterQuery) string {
	return "schedules:" + strconv.FormatInt(gen, 10) + ":" + viewerKey(viewer) + ":" + filter.CacheKey()
}

// Schedules returns the filtered schedule list, cached per viewer and filter.
// The generation is read before fetching, so a list fetched across a
// mutation lands under a key no later read uses.
func (s *GridService) Schedules(ctx context.Context, viewer models.Viewer, filter dto.ScheduleFilterQuery) ([]models.Schedule, error) {
	key := scheduleCacheKey(s.cache.Generation(ctx, scheduleGenerationKey), viewer, filter)
	var cached []models.Schedule
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	schedules, err := s.repo.List(ctx, filter.Values())
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, schedules, s.ttl)
	return schedules, nil
}

// Grid loads days and schedules concurrently and renders them. A failed
// fetch degrades to an empty list and is reported in the failures; only
// authentication failures abort.
func (s *GridService) Grid(ctx context.Context, viewer models.Viewer, filter dto.ScheduleFilterQuery) (*dto.Grid, []dto.LoadFailure, error) {
	refs := s.references.NewSession()
	defer refs.Dismiss()

	var (
		schedules   []models.Schedule
		scheduleErr error
		refsErr     error
	)
	var g errgroup.Group
	g.Go(func() error {
		refsErr = refs.Load(ctx, models.CollectionDays)
		return nil
	})
	g.Go(func() error {
		schedules, scheduleErr = s.Schedules(ctx, viewer, filter)
		return nil
	})
	_ = g.Wait()

	if refsErr != nil {
		return nil, nil, refsErr
	}
	failures := refs.Failures()
	if scheduleErr != nil {
		if isAuthError(scheduleErr) {
			return nil, nil, scheduleErr
		}
		s.logger.Warn("schedule list fetch failed", zap.Error(scheduleErr))
		failures = append(failures, dto.LoadFailure{Collection: models.CollectionSchedules, Message: scheduleErr.Error()})
		schedules = nil
	}

	grid := s.renderer.Render(refs.List(models.CollectionDays), schedules, viewer)
	return &grid, failures, nil
}

func isAuthError(err error) bool {
	return errors.Is(err, appErrors.ErrUnauthorized) || errors.Is(err, appErrors.ErrForbidden)
}

func viewerKey(v models.Viewer) string {
	if !v.ID.IsZero() {
		return v.ID.String()
	}
	return v.Name
}
