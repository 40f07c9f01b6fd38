package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/repository"
	"github.com/noah-isme/timetable-console/internal/service"
	"github.com/noah-isme/timetable-console/pkg/config"
	"github.com/noah-isme/timetable-console/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		token   string
		format  string
		output  string
		timeout time.Duration
		filter  dto.ScheduleFilterQuery
	)
	flag.StringVar(&token, "token", os.Getenv("CONSOLE_TOKEN"), "Backend bearer token (defaults to $CONSOLE_TOKEN)")
	flag.StringVar(&cfg.Backend.BaseURL, "backend", cfg.Backend.BaseURL, "Backend base URL")
	flag.StringVar(&format, "format", service.ExportFormatCSV, "Export format: csv or pdf")
	flag.StringVar(&output, "out", "", "Output file (defaults to timetable.<format>)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.StringVar(&filter.FacultyID, "faculty", "", "Faculty id")
	flag.StringVar(&filter.DepartmentID, "department", "", "Department id")
	flag.StringVar(&filter.GroupID, "group", "", "Group id")
	flag.StringVar(&filter.UserID, "teacher", "", "Teacher (user) id")
	flag.StringVar(&filter.SemesterID, "semester", "", "Semester id")
	flag.Parse()

	if token == "" {
		log.Fatal("a backend token is required (-token or $CONSOLE_TOKEN)")
	}

	cfg.Log.Format = "console"
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = repository.WithAuthToken(ctx, token)

	backend := repository.NewBackendClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, nil, logr)
	sessions := service.NewSessionService(repository.NewProfileRepository(backend), nil, 0, cfg.Session.SuperAdminRole, logr)
	references := service.NewReferenceService(repository.NewReferenceRepository(backend), nil, nil, 0, cfg.Backend.MaxParallel, logr)
	renderer := service.NewGridRenderer(cfg.Grid.Shifts, models.WeekNames{Upper: cfg.Grid.UpperWeekName, Lower: cfg.Grid.LowerWeekName})
	grids := service.NewGridService(repository.NewScheduleRepository(backend), references, renderer, nil, 0, logr)
	exports := service.NewExportService(grids, nil, nil, logr)

	viewer, err := sessions.Resolve(ctx, token)
	if err != nil {
		logr.Fatal("failed to resolve viewer", zap.Error(err))
	}

	file, err := exports.Export(ctx, *viewer, filter, format)
	if err != nil {
		logr.Fatal("export failed", zap.Error(err))
	}
	for _, f := range file.Failures {
		logr.Warn("partial export", zap.String("collection", string(f.Collection)), zap.String("reason", f.Message))
	}

	if output == "" {
		output = file.Filename
	}
	if err := os.WriteFile(output, file.Content, 0o644); err != nil {
		logr.Fatal("failed to write export", zap.String("path", output), zap.Error(err))
	}
	fmt.Printf("Wrote %s (%d bytes) for %s\n", output, len(file.Content), viewer.Name)
}
