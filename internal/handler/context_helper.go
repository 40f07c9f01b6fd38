package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/middleware"
	"github.com/noah-isme/timetable-console/internal/models"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
	"github.com/noah-isme/timetable-console/pkg/response"
)

// viewerFromContext returns the session viewer or writes a 401 and returns false.
func viewerFromContext(c *gin.Context) (models.Viewer, bool) {
	viewer, ok := middleware.ViewerFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Viewer{}, false
	}
	return *viewer, true
}

func pathID(c *gin.Context) (models.ID, bool) {
	id := models.ID(strings.TrimSpace(c.Param("id")))
	if id.IsZero() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "schedule id is required"))
		return "", false
	}
	return id, true
}

// failureMeta reports partial load failures alongside a successful payload.
func failureMeta(failures []dto.LoadFailure) map[string]interface{} {
	if len(failures) == 0 {
		return nil
	}
	return map[string]interface{}{"failures": failures}
}
