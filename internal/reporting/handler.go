package reporting

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/aevon-lab/telemetryd/internal/core/errors"
	"github.com/aevon-lab/telemetryd/internal/reportpb"
)

// RegisterRoutes registers the metric listing and dump routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/metrics", s.ListHandler)
	r.POST("/v1/metrics/:name/dump", s.DumpHandler)
}

// ListHandler returns every registered metric definition.
func (s *Service) ListHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"metrics": s.Definitions()})
}

// DumpHandler drains one metric. ?format=proto returns the wire encoding.
func (s *Service) DumpHandler(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "proto" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "format must be json or proto",
		})
		return
	}

	report, err := s.Dump(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, ErrUnknownMetric) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpUnknownMetricError,
				Message:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to dump report",
		})
		return
	}

	if format == "proto" {
		c.Data(http.StatusOK, reportpb.ContentType, reportpb.Marshal(report))
		return
	}
	c.JSON(http.StatusOK, report)
}
