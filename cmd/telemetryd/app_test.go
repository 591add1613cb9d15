package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	corecfg "github.com/aevon-lab/telemetryd/internal/core/config"
	"github.com/aevon-lab/telemetryd/internal/core/metric"
	"github.com/aevon-lab/telemetryd/internal/core/storage"
	"github.com/aevon-lab/telemetryd/internal/projection"
)

func testConfig() *corecfg.Config {
	return &corecfg.Config{
		Server: corecfg.ServerConfig{Host: "127.0.0.1", Port: 0, MaxBodySizeMB: 1, Mode: "release"},
		Log:    corecfg.LogConfig{Level: "info", Format: "text"},
		Pull:   corecfg.PullConfig{Enabled: false, Interval: time.Minute},
		Report: corecfg.ReportConfig{Interval: 15 * time.Minute},
		Definitions: []metric.Definition{{
			Name:        "brightness_while_on",
			What:        "screen_brightness",
			ValueField:  "level",
			Aggregation: metric.AggSum,
			BucketSize:  time.Minute,
			Condition:   "screen_on",
		}},
	}
}

func do(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	return resp
}

func TestApp_PushConditionDumpQuery(t *testing.T) {
	clock := quartz.NewMock(t)
	base := clock.Now()
	store := storage.NewMemoryStore()

	a, err := newApp(testConfig(), clock, nil, store)
	require.NoError(t, err)
	engine := a.server.Engine

	event := func(offset time.Duration, level int) map[string]interface{} {
		return map[string]interface{}{
			"tag":          "screen_brightness",
			"timestamp_ns": base.Add(offset).UnixNano(),
			"fields":       map[string]interface{}{"level": level},
		}
	}

	// Screen off: the observation is discarded.
	resp := do(t, engine, http.MethodPost, "/v1/conditions/screen_on",
		map[string]interface{}{"value": false, "timestamp_ns": base.UnixNano()})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	resp = do(t, engine, http.MethodPost, "/v1/events", event(time.Second, 100))
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())

	// Screen on: observations accumulate.
	resp = do(t, engine, http.MethodPost, "/v1/conditions/screen_on",
		map[string]interface{}{"value": true, "timestamp_ns": base.Add(2 * time.Second).UnixNano()})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	for _, e := range []map[string]interface{}{event(3*time.Second, 5), event(4*time.Second, 7)} {
		resp = do(t, engine, http.MethodPost, "/v1/events", e)
		require.Equal(t, http.StatusAccepted, resp.Code)
	}

	clock.Advance(61 * time.Second)

	resp = do(t, engine, http.MethodPost, "/v1/metrics/brightness_while_on/dump", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var report metric.Report
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &report))
	require.Len(t, report.Data, 1)
	require.Equal(t, []metric.BucketInfo{{
		StartBucketNs: base.UnixNano(),
		EndBucketNs:   base.Add(time.Minute).UnixNano(),
		Value:         12,
		SampleCount:   2,
	}}, report.Data[0].Buckets)

	// The dump is destructive; the archive keeps the bucket.
	resp = do(t, engine, http.MethodPost, "/v1/metrics/brightness_while_on/dump", nil)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &report))
	require.Empty(t, report.Data)

	path := fmt.Sprintf("/v1/metrics/brightness_while_on/buckets?start=%s&end=%s&granularity=total",
		base.UTC().Format(time.RFC3339), base.Add(time.Hour).UTC().Format(time.RFC3339))
	resp = do(t, engine, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var query projection.BucketQueryResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &query))
	require.Len(t, query.Series, 1)
	require.Equal(t, int64(12), query.Series[0].Values[0].Value)
}

func TestApp_UnknownSystemPullerFails(t *testing.T) {
	cfg := testConfig()
	cfg.Pull = corecfg.PullConfig{Enabled: true, Interval: time.Minute, SystemPullers: []string{"gpu"}}

	_, err := newApp(cfg, quartz.NewMock(t), nil, storage.NewMemoryStore())
	require.Error(t, err)
}

func TestApp_PulledMetricNeedsPuller(t *testing.T) {
	cfg := testConfig()
	cfg.Definitions = append(cfg.Definitions, metric.Definition{
		Name:        "battery_level",
		What:        "battery",
		ValueField:  "level",
		Aggregation: metric.AggLast,
		BucketSize:  time.Minute,
		Pulled:      true,
	})

	_, err := newApp(cfg, quartz.NewMock(t), nil, storage.NewMemoryStore())
	require.ErrorContains(t, err, "battery_level")
}
