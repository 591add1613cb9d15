package reporting

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	httperr "github.com/aevon-lab/telemetryd/internal/core/errors"
	"github.com/aevon-lab/telemetryd/internal/core/metric"
	"github.com/aevon-lab/telemetryd/internal/reportpb"
)

func newTestRouter(t *testing.T, producers ...*stubProducer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := NewService(nil, nil, nil)
	for _, p := range producers {
		require.NoError(t, s.Register(p))
	}
	r := gin.New()
	s.RegisterRoutes(r)
	return r
}

func TestListHandler(t *testing.T) {
	r := newTestRouter(t, &stubProducer{name: "bytes"}, &stubProducer{name: "app_ms"})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Metrics []metric.Definition `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Metrics, 2)
	require.Equal(t, "app_ms", body.Metrics[0].Name)
}

func TestDumpHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, resp *httptest.ResponseRecorder)
	}{
		{
			name:       "json report",
			path:       "/v1/metrics/bytes/dump",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp *httptest.ResponseRecorder) {
				var report struct {
					MetricName string `json:"metric_name"`
					ReportID   string `json:"report_id"`
				}
				require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &report))
				require.Equal(t, "bytes", report.MetricName)
				require.Equal(t, "r1", report.ReportID)
			},
		},
		{
			name:       "proto report",
			path:       "/v1/metrics/bytes/dump?format=proto",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp *httptest.ResponseRecorder) {
				require.Equal(t, reportpb.ContentType, resp.Header().Get("Content-Type"))
				raw, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				report, err := reportpb.Unmarshal(raw)
				require.NoError(t, err)
				require.Equal(t, "r1", report.ReportID)
				require.Equal(t, 1, report.BucketCount())
			},
		},
		{
			name:       "unknown metric",
			path:       "/v1/metrics/nope/dump",
			wantStatus: http.StatusNotFound,
			check: func(t *testing.T, resp *httptest.ResponseRecorder) {
				var e httperr.ErrorResponse
				require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &e))
				require.Equal(t, httperr.HttpUnknownMetricError, e.ErrorType)
			},
		},
		{
			name:       "bad format",
			path:       "/v1/metrics/bytes/dump?format=xml",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProducer{name: "bytes", reports: []metric.Report{reportWith("bytes", "r1", 0, 5)}}
			r := newTestRouter(t, p)

			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, tt.path, nil))

			require.Equal(t, tt.wantStatus, resp.Code)
			if tt.check != nil {
				tt.check(t, resp)
			}
		})
	}
}
