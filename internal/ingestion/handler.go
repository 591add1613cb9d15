package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
	httperr "github.com/aevon-lab/telemetryd/internal/core/errors"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler handles POST /v1/events with a single event body.
func (s *Service) IngestHandler(c *gin.Context) {
	body, err := s.readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var evt v1.LogEvent
	if err := decodeJSON(body, &evt); err != nil {
		writeError(c, err)
		return
	}
	if err := s.validateEvent(&evt, 0); err != nil {
		writeError(c, err)
		return
	}

	matched := s.dispatcher.Dispatch(&evt)
	s.logger.Debug("[Ingestion] Received event",
		"event_id", evt.ID,
		"tag", evt.Tag,
		"timestamp_ns", evt.TimestampNs,
		"payload_size", len(body),
		"matched", matched)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "matched": matched})
}

// IngestBatchHandler handles POST /v1/events/batch with {"events": [...]}.
// The batch is validated as a whole before any event is dispatched.
func (s *Service) IngestBatchHandler(c *gin.Context) {
	body, err := s.readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var batch struct {
		Events []*v1.LogEvent `json:"events"`
	}
	if err := decodeJSON(body, &batch); err != nil {
		writeError(c, err)
		return
	}
	if len(batch.Events) == 0 || len(batch.Events) > maxBatchSize {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidEventError,
			message:    fmt.Sprintf("batch must hold between 1 and %d events", maxBatchSize),
		})
		return
	}
	for i, evt := range batch.Events {
		if evt == nil {
			writeError(c, &ingestionError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidEventError,
				message:    "event must not be null",
				details:    map[string]interface{}{"index": i},
			})
			return
		}
		if err := s.validateEvent(evt, i); err != nil {
			writeError(c, err)
			return
		}
	}

	matched := 0
	for _, evt := range batch.Events {
		matched += s.dispatcher.Dispatch(evt)
	}
	s.logger.Debug("[Ingestion] Received batch",
		"events", len(batch.Events),
		"payload_size", len(body),
		"matched", matched)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "events": len(batch.Events), "matched": matched})
}

// readBody reads the request body up to the configured limit.
func (s *Service) readBody(c *gin.Context) ([]byte, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		s.logger.Error("[Ingestion] Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		s.logger.Warn("[Ingestion] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}
	return bodyBytes, nil
}

// decodeJSON keeps numbers as json.Number so large integer values stay exact.
func decodeJSON(body []byte, dst interface{}) *ingestionError {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
			details:    err.Error(),
		}
	}
	return nil
}

// validateEvent stamps events without a timestamp with the receive time,
// then runs envelope validation.
func (s *Service) validateEvent(evt *v1.LogEvent, index int) *ingestionError {
	if evt.TimestampNs == 0 {
		evt.TimestampNs = s.nowFn().UnixNano()
	}
	if err := evt.Validate(); err != nil {
		s.logger.Warn("[Ingestion] Event validation failed", "error", err, "event_id", evt.ID, "index", index)
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidEventError,
			message:    err.Error(),
			details:    map[string]interface{}{"index": index},
		}
	}
	return nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
