package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
	"github.com/noah-isme/timetable-console/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var exportHeaders = []string{"Faculty", "Shift", "Group", "Day", "Hour", "Week", "Discipline", "Teacher", "Location", "Type"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type gridSource interface {
	Grid(ctx context.Context, viewer models.Viewer, filter dto.ScheduleFilterQuery) (*dto.Grid, []dto.LoadFailure, error)
}

// ExportFile is a rendered grid download.
type ExportFile struct {
	Content     []byte
	ContentType string
	Filename    string
	Failures    []dto.LoadFailure
}

// ExportService flattens a rendered grid into a downloadable table.
type ExportService struct {
	grids  gridSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(grids gridSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(export.WithBOM())
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{grids: grids, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the grid visible to viewer in the requested format.
func (s *ExportService) Export(ctx context.Context, viewer models.Viewer, filter dto.ScheduleFilterQuery, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	grid, failures, err := s.grids.Grid(ctx, viewer, filter)
	if err != nil {
		return nil, err
	}
	data := GridDataset(*grid)

	file := &ExportFile{Failures: failures, Filename: "timetable." + format}
	switch format {
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Content, err = s.pdf.Render(data, "Timetable")
	default:
		file.ContentType = "text/csv; charset=utf-8"
		file.Content, err = s.csv.Render(data)
	}
	if err != nil {
		s.logger.Error("grid export failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return file, nil
}

// GridDataset lists every occupied half-cell of the grid as one row. Free
// cells are omitted.
func GridDataset(grid dto.Grid) export.Dataset {
	data := export.Dataset{Headers: exportHeaders}
	for _, section := range grid.Sections {
		for _, table := range section.Tables {
			for _, row := range table.Rows {
				for _, cell := range row.Cells {
					add := func(week string, l *dto.RenderedLesson) {
						if l == nil {
							return
						}
						data.Append(section.Faculty, table.Shift, row.GroupName, cell.DayName, cell.HourName, week,
							l.Discipline, l.Teacher, l.Location, l.LessonType)
					}
					add(string(models.WeekEvery), cell.Single)
					add(string(models.WeekUpper), cell.Upper)
					add(string(models.WeekLower), cell.Lower)
				}
			}
		}
	}
	return data
}
