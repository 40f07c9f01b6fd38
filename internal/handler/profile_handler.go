package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-console/pkg/response"
)

// ProfileHandler exposes the resolved session viewer.
type ProfileHandler struct{}

// NewProfileHandler constructs the handler.
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Me godoc
// @Summary Current viewer
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	viewer, ok := viewerFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, viewer)
}
