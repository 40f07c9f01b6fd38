package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/repository"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
	"github.com/noah-isme/timetable-console/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-console/pkg/response"
)

// ContextViewerKey is the gin context key storing the resolved viewer.
const ContextViewerKey = "viewer"

// ViewerResolver maps a bearer token to the viewer it belongs to.
type ViewerResolver interface {
	Resolve(ctx context.Context, token string) (*models.Viewer, error)
}

// Session requires a bearer token, resolves the viewer and makes the token
// and request id available to backend calls made with the request context.
func Session(resolver ViewerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}
		token := strings.TrimSpace(parts[1])

		ctx := repository.WithAuthToken(c.Request.Context(), token)
		if id := requestid.Value(c); id != "" {
			ctx = repository.WithRequestID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		viewer, err := resolver.Resolve(ctx, token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextViewerKey, viewer)
		c.Next()
	}
}

// ViewerFrom returns the viewer stored by Session.
func ViewerFrom(c *gin.Context) (*models.Viewer, bool) {
	value, exists := c.Get(ContextViewerKey)
	if !exists {
		return nil, false
	}
	viewer, ok := value.(*models.Viewer)
	return viewer, ok && viewer != nil
}
