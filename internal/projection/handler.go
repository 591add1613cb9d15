package projection

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/aevon-lab/telemetryd/internal/core/errors"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/metrics/:name/buckets", s.HandleQueryBuckets)
}

// HandleQueryBuckets handles GET /v1/metrics/:name/buckets
// Query parameters: start, end, dimension, granularity
func (s *Service) HandleQueryBuckets(c *gin.Context) {
	var query struct {
		Start       time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		End         time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		Dimension   string    `form:"dimension"`
		Granularity string    `form:"granularity"`
	}

	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.QueryBuckets(c.Request.Context(), BucketQueryRequest{
		Metric:      c.Param("name"),
		Dimension:   query.Dimension,
		Start:       query.Start,
		End:         query.End,
		Granularity: query.Granularity,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidQuery):
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidQueryError,
				Message:   "Invalid bucket query",
				Details:   err.Error(),
			})
		case errors.Is(err, ErrUnknownMetric):
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpUnknownMetricError,
				Message:   err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Failed to query buckets",
				Details:   err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
