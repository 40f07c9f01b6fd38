package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/service"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
	"github.com/noah-isme/timetable-console/pkg/response"
)

// ReferenceHandler exposes the reference collections used by the console forms.
type ReferenceHandler struct {
	references *service.ReferenceService
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(references *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{references: references}
}

// Snapshot godoc
// @Summary Load reference collections
// @Description Loads the requested collections in parallel. A collection that fails is returned empty and listed under failures.
// @Tags References
// @Produce json
// @Param collections query string false "Comma separated collection names, all when omitted"
// @Success 200 {object} response.Envelope
// @Router /references [get]
func (h *ReferenceHandler) Snapshot(c *gin.Context) {
	var collections []models.Collection
	for _, raw := range strings.Split(c.Query("collections"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		collection, err := models.ParseCollection(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
		collections = append(collections, collection)
	}

	refs, err := h.references.Session(c.Request.Context(), collections...)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer refs.Dismiss()
	response.JSON(c, http.StatusOK, refs.Snapshot())
}

// Get godoc
// @Summary Get one reference collection
// @Tags References
// @Produce json
// @Param collection path string true "Collection name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /references/{collection} [get]
func (h *ReferenceHandler) Get(c *gin.Context) {
	collection, err := models.ParseCollection(c.Param("collection"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, err.Error()))
		return
	}
	records, err := h.references.List(c.Request.Context(), collection)
	if err != nil {
		response.Error(c, err)
		return
	}
	if records == nil {
		records = []models.Reference{}
	}
	response.JSON(c, http.StatusOK, records)
}
