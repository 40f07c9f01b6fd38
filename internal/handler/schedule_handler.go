package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/service"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
	"github.com/noah-isme/timetable-console/pkg/response"
)

// optionCollections are the lists the cascade filters.
var optionCollections = []models.Collection{
	models.CollectionDepartments,
	models.CollectionGroups,
	models.CollectionDisciplines,
	models.CollectionUsers,
	models.CollectionRooms,
}

// ScheduleHandler serves the grid and the schedule entry form.
type ScheduleHandler struct {
	grids      *service.GridService
	entries    *service.ScheduleEntryService
	references *service.ReferenceService
	exports    *service.ExportService
	audit      *service.AuditService
}

// NewScheduleHandler constructs handler. audit may be nil.
func NewScheduleHandler(grids *service.GridService, entries *service.ScheduleEntryService, references *service.ReferenceService, exports *service.ExportService, audit *service.AuditService) *ScheduleHandler {
	return &ScheduleHandler{grids: grids, entries: entries, references: references, exports: exports, audit: audit}
}

// Grid godoc
// @Summary Render the weekly grid
// @Description Schedules are grouped by faculty and laid out per shift. Non super-admins only see their own lessons.
// @Tags Schedules
// @Produce json
// @Param faculty_id query string false "Faculty"
// @Param department_id query string false "Department"
// @Param group_id query string false "Group"
// @Param user_id query string false "Teacher"
// @Param semester_id query string false "Semester"
// @Success 200 {object} response.Envelope
// @Router /schedules/grid [get]
func (h *ScheduleHandler) Grid(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return
	}
	var filter dto.ScheduleFilterQuery
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter"))
		return
	}
	grid, failures, err := h.grids.Grid(c.Request.Context(), viewer, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, failureMeta(failures))
}

// Export godoc
// @Summary Download the weekly grid
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /schedules/grid/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return
	}
	var filter dto.ScheduleFilterQuery
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter"))
		return
	}
	file, err := h.exports.Export(c.Request.Context(), viewer, filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(file.Failures) > 0 {
		c.Header("X-Partial-Content", strconv.Itoa(len(file.Failures)))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// Options godoc
// @Summary Resolve dependent form options
// @Description Given the selected faculty, department and corp, returns the departments, groups, disciplines, teachers and rooms to offer.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.CascadeRequest true "Parent selections"
// @Success 200 {object} response.Envelope
// @Router /schedules/options [post]
func (h *ScheduleHandler) Options(c *gin.Context) {
	var req dto.CascadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	refs, err := h.references.Session(c.Request.Context(), optionCollections...)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer refs.Dismiss()
	response.JSON(c, http.StatusOK, h.entries.Options(refs, req), failureMeta(refs.Failures()))
}

// Form godoc
// @Summary Prefill the edit form of a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/form [get]
func (h *ScheduleHandler) Form(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	refs, err := h.references.Session(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	defer refs.Dismiss()
	prefill, err := h.entries.Prefill(c.Request.Context(), refs, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefill, failureMeta(refs.Failures()))
}

// Create godoc
// @Summary Create schedule entries
// @Description One entry is created per selected group.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleEntryForm true "Entry form"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var form dto.ScheduleEntryForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	form.ID = ""
	if result, ok := h.submit(c, form); ok {
		response.Created(c, result)
	}
}

// Update godoc
// @Summary Update a schedule entry
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.ScheduleEntryForm true "Entry form"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var form dto.ScheduleEntryForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	form.ID = id
	if result, ok := h.submit(c, form); ok {
		response.JSON(c, http.StatusOK, result)
	}
}

// submit echoes the form back on failure so the client keeps its input.
func (h *ScheduleHandler) submit(c *gin.Context, form dto.ScheduleEntryForm) (*dto.ScheduleEntryResult, bool) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return nil, false
	}
	result, err := h.entries.Submit(c.Request.Context(), viewer, form)
	if err != nil {
		response.ErrorWithData(c, err, form)
		return nil, false
	}
	return result, true
}

// Delete godoc
// @Summary Delete a schedule entry
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.entries.Delete(c.Request.Context(), viewer, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Mutation history of a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Param limit query int false "Maximum entries" default(50)
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/history [get]
func (h *ScheduleHandler) History(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.audit.History(c.Request.Context(), id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs)
}
