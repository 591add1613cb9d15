package ingestion

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/telemetryd/internal/api/v1"
	httperr "github.com/aevon-lab/telemetryd/internal/core/errors"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(event *v1.LogEvent) int {
	return m.Called(event).Int(0)
}

func newTestRouter(d Dispatcher, maxMB int) (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)
	svc := NewService(d, maxMB, nil)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r, svc
}

func post(r *gin.Engine, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestIngestHandler_Success(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.MatchedBy(func(e *v1.LogEvent) bool {
		return e.Tag == "net" && e.TimestampNs == 42
	})).Return(2).Once()

	r, _ := newTestRouter(d, 1)
	resp := post(r, "/v1/events", []byte(`{"tag":"net","timestamp_ns":42,"fields":{"bytes":9007199254740993}}`))

	require.Equal(t, http.StatusAccepted, resp.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, "accepted", result["status"])
	require.Equal(t, float64(2), result["matched"])
	d.AssertExpectations(t)
}

func TestIngestHandler_KeepsLargeIntegersExact(t *testing.T) {
	var got *v1.LogEvent
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(0).(*v1.LogEvent)
	}).Return(1).Once()

	r, _ := newTestRouter(d, 1)
	resp := post(r, "/v1/events", []byte(`{"tag":"net","timestamp_ns":42,"fields":{"bytes":9007199254740993}}`))

	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Equal(t, json.Number("9007199254740993"), got.Fields["bytes"])
}

func TestIngestHandler_StampsMissingTimestamp(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.MatchedBy(func(e *v1.LogEvent) bool {
		return e.TimestampNs == now.UnixNano()
	})).Return(0).Once()

	r, svc := newTestRouter(d, 1)
	svc.nowFn = func() time.Time { return now }

	resp := post(r, "/v1/events", []byte(`{"tag":"net","fields":{}}`))
	require.Equal(t, http.StatusAccepted, resp.Code)
	d.AssertExpectations(t)
}

func TestIngestHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		wantStatus int
		wantType   string
	}{
		{
			name:       "malformed json",
			body:       []byte(`{"tag":`),
			wantStatus: http.StatusBadRequest,
			wantType:   httperr.HttpInvalidJsonError,
		},
		{
			name:       "missing tag",
			body:       []byte(`{"timestamp_ns":5,"fields":{}}`),
			wantStatus: http.StatusBadRequest,
			wantType:   httperr.HttpInvalidEventError,
		},
		{
			name:       "negative timestamp",
			body:       []byte(`{"tag":"net","timestamp_ns":-5}`),
			wantStatus: http.StatusBadRequest,
			wantType:   httperr.HttpInvalidEventError,
		},
		{
			name:       "oversized body",
			body:       []byte(`{"tag":"net","fields":{"blob":"` + strings.Repeat("x", 1024*1024) + `"}}`),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   httperr.HttpInvalidJsonError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &mockDispatcher{}
			r, _ := newTestRouter(d, 1)

			resp := post(r, "/v1/events", tc.body)

			require.Equal(t, tc.wantStatus, resp.Code)
			var e httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &e))
			require.Equal(t, tc.wantType, e.ErrorType)
			d.AssertNotCalled(t, "Dispatch", mock.Anything)
		})
	}
}

func TestIngestBatchHandler(t *testing.T) {
	t.Run("dispatches every event", func(t *testing.T) {
		d := &mockDispatcher{}
		d.On("Dispatch", mock.Anything).Return(1).Twice()

		r, _ := newTestRouter(d, 1)
		resp := post(r, "/v1/events/batch", []byte(`{"events":[
			{"tag":"net","timestamp_ns":1,"fields":{"bytes":1}},
			{"tag":"net","timestamp_ns":2,"fields":{"bytes":2}}
		]}`))

		require.Equal(t, http.StatusAccepted, resp.Code)
		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
		require.Equal(t, float64(2), result["events"])
		require.Equal(t, float64(2), result["matched"])
		d.AssertExpectations(t)
	})

	t.Run("one invalid event rejects the batch", func(t *testing.T) {
		d := &mockDispatcher{}
		r, _ := newTestRouter(d, 1)
		resp := post(r, "/v1/events/batch", []byte(`{"events":[
			{"tag":"net","timestamp_ns":1},
			{"timestamp_ns":2}
		]}`))

		require.Equal(t, http.StatusBadRequest, resp.Code)
		d.AssertNotCalled(t, "Dispatch", mock.Anything)
	})

	t.Run("empty batch", func(t *testing.T) {
		d := &mockDispatcher{}
		r, _ := newTestRouter(d, 1)
		resp := post(r, "/v1/events/batch", []byte(`{"events":[]}`))
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})
}
