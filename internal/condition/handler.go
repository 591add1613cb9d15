package condition

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	httperr "github.com/aevon-lab/telemetryd/internal/core/errors"
	"github.com/aevon-lab/telemetryd/internal/core/metric"
)

// setRequest is the body of POST /v1/conditions/:name.
// Dimension, when present, addresses one slice of a sliced condition.
type setRequest struct {
	Value       *bool             `json:"value"`
	TimestampNs int64             `json:"timestamp_ns"`
	Dimension   map[string]string `json:"dimension,omitempty"`
	// DimensionOrder fixes the field order of Dimension; defaults to sorted names.
	DimensionOrder []string `json:"dimension_order,omitempty"`
}

// RegisterRoutes mounts the condition API.
func (t *Tracker) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/v1/conditions")
	g.GET("", t.listHandler)
	g.GET("/:name", t.getHandler)
	g.POST("/:name", t.setHandler)
}

func (t *Tracker) listHandler(c *gin.Context) {
	names := t.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		snap, err := t.Snapshot(name)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	c.JSON(http.StatusOK, gin.H{"conditions": out})
}

func (t *Tracker) getHandler(c *gin.Context) {
	snap, err := t.Snapshot(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownConditionError,
			Message:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (t *Tracker) setHandler(c *gin.Context) {
	name := c.Param("name")

	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil || req.TimestampNs <= 0 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "body must carry a boolean value and a positive timestamp_ns",
		})
		return
	}

	var err error
	if len(req.Dimension) > 0 {
		err = t.SetSliced(name, dimensionKeyOf(req.Dimension, req.DimensionOrder), *req.Value, req.TimestampNs)
	} else {
		err = t.Set(name, *req.Value, req.TimestampNs)
	}
	if errors.Is(err, ErrUnknownCondition) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownConditionError,
			Message:   err.Error(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   err.Error(),
		})
		return
	}

	snap, _ := t.Snapshot(name)
	c.JSON(http.StatusOK, snap)
}

func dimensionKeyOf(dim map[string]string, order []string) metric.DimensionKey {
	if len(order) == 0 {
		order = make([]string, 0, len(dim))
		for k := range dim {
			order = append(order, k)
		}
		sort.Strings(order)
	}
	fields := make([]metric.DimensionField, 0, len(order))
	for _, name := range order {
		v, ok := dim[name]
		if !ok {
			continue
		}
		fields = append(fields, metric.DimensionField{Name: name, Value: v})
	}
	return metric.NewDimensionKey(fields...)
}
