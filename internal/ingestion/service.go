// Package ingestion accepts pushed log events over HTTP and routes them to
// the metrics that consume them.
package ingestion

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
)

const maxBatchSize = 1000

// Dispatcher routes one event to its matching metrics.
type Dispatcher interface {
	Dispatch(event *v1.LogEvent) int
}

type Service struct {
	dispatcher       Dispatcher
	maxBodySizeBytes int
	logger           *slog.Logger
	nowFn            func() time.Time
}

func NewService(dispatcher Dispatcher, maxBodySizeMB int, logger *slog.Logger) *Service {
	if dispatcher == nil {
		panic("ingestion: dispatcher must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dispatcher:       dispatcher,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		logger:           logger,
		nowFn:            time.Now,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.IngestHandler)
	r.POST("/v1/events/batch", s.IngestBatchHandler)
}
