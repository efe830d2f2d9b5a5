package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/pkg/config"
	"github.com/wonny/stratplan/pkg/httputil"
	"github.com/wonny/stratplan/pkg/logger"
	"github.com/wonny/stratplan/pkg/redis"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{ReportAPI: config.ReportAPIConfig{
		BaseURL:          server.URL + "/",
		Token:            "secret",
		Timeout:          2 * time.Second,
		InsightPerMinute: 30,
	}}
	return NewClient(cfg, redis.Disabled(), logger.Nop())
}

func TestGetAnalysis_FlatShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyses/an%201", r.URL.EscapedPath())
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"id": "an 1", "year": 2025, "quarter": 2, "status": "draft",
			"activities": [
				{"name": "Survey", "kraId": "KRA 1", "initiativeId": "KRA1-KPI1", "reported": "1,200", "target": 1500, "status": "missed", "confidence": 0.8},
				{"name": "Seminar", "kraId": "KRA 2", "initiativeId": "KRA2-KPI1", "reported": 3, "target": 2, "status": "MET"}
			]
		}`))
	})

	a, err := c.GetAnalysis(context.Background(), "an 1")
	require.NoError(t, err)

	assert.Equal(t, contracts.AnalysisDraft, a.Status)
	assert.Equal(t, 2025, a.Year)
	require.Len(t, a.Activities, 2)
	assert.Equal(t, 1200.0, a.Activities[0].Reported)
	assert.Equal(t, contracts.StatusMissed, a.Activities[0].Status)
	assert.Equal(t, 0.8, a.Activities[0].Confidence)
	assert.Equal(t, contracts.StatusMet, a.Activities[1].Status)
}

func TestGetAnalysis_OrganizedShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "an-2", "year": 2025,
			"organizedActivities": [
				{"kraId": "KRA 3", "kraTitle": "Extension", "activities": [
					{"name": "Outreach", "initiativeId": "KRA3-KPI1", "reported": 4},
					{"name": "Training", "kraId": "KRA 4", "initiativeId": "KRA4-KPI2", "reported": 1}
				]},
				{"kraId": "KRA 5", "activities": [{"name": "Income", "initiativeId": "KRA5-KPI1", "reported": "250,000"}]}
			]
		}`))
	})

	a, err := c.GetAnalysis(context.Background(), "an-2")
	require.NoError(t, err)

	require.Len(t, a.Activities, 3)
	assert.Equal(t, "KRA 3", a.Activities[0].KRAID)
	assert.Equal(t, "KRA 4", a.Activities[1].KRAID, "explicit activity KRA wins")
	assert.Equal(t, "KRA 5", a.Activities[2].KRAID)
	assert.Equal(t, 250000.0, a.Activities[2].Reported)
	assert.Equal(t, contracts.AnalysisDraft, a.Status)
}

func TestGetAnalysis_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := c.GetAnalysis(context.Background(), "missing")
	var statusErr *httputil.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestSaveApproveReject(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()

		switch r.Method {
		case http.MethodPatch:
			var body struct {
				Activities []contracts.Activity `json:"activities"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Len(t, body.Activities, 1)
		case http.MethodDelete:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "duplicate upload", body["reason"])
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.SaveActivities(ctx, "an-1", []contracts.Activity{{Name: "x"}}))
	require.NoError(t, c.Approve(ctx, "an-1"))
	require.NoError(t, c.Reject(ctx, "an-1", "duplicate upload"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"PATCH /analyses/an-1",
		"POST /analyses/an-1/approval",
		"DELETE /analyses/an-1/approval",
	}, seen)
}

func TestRegenerate_FlagsUserSelectedKPI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyses/an-1/insights", r.URL.Path)

		var body struct {
			Activities []map[string]interface{} `json:"activities"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Activities, 1)
		assert.Equal(t, true, body.Activities[0]["userSelectedKPI"])
		assert.Equal(t, float64(2), body.Activities[0]["index"])

		w.Write([]byte(`{"activities": [{"index": 2, "aiInsight": "new"}], "documentInsight": "doc"}`))
	})

	res, err := c.Regenerate(context.Background(), "an-1", []contracts.RegenerationItem{
		{Index: 2, Activity: contracts.Activity{Name: "Outreach", KRAID: "KRA 3", InitiativeID: "KRA3-KPI1"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, "new", res.Activities[0].Insight)
	assert.Equal(t, "doc", res.DocumentInsight)
}

func TestFetch_SumsQuartersOfYear(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/progress", r.URL.Path)
		assert.Equal(t, "KRA 2", r.URL.Query().Get("kraId"))
		assert.Equal(t, "2025", r.URL.Query().Get("year"))

		w.Write([]byte(`{
			"kraId": "KRA 2",
			"initiatives": [
				{"id": "KRA2-KPI1", "target": "25", "version": 4, "progress": [
					{"year": 2025, "quarter": 1, "value": 3},
					{"year": 2025, "quarter": 2, "value": "4"},
					{"year": 2024, "quarter": 4, "value": 100}
				]},
				{"id": "KRA2-KPI2", "target": 10}
			]
		}`))
	})

	records, err := c.Fetch(context.Background(), "KRA 2", 2025)
	require.NoError(t, err)

	assert.Equal(t, []contracts.ProgressRecord{
		{KRAID: "KRA 2", KPIID: "KRA2-KPI1", Year: 2025, Current: 7, Target: 25, Version: 4},
		{KRAID: "KRA 2", KPIID: "KRA2-KPI2", Year: 2025, Current: 0, Target: 10},
	}, records)
}

func TestFetch_TimeoutIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := &config.Config{ReportAPI: config.ReportAPIConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond}}
	c := NewClient(cfg, redis.Disabled(), logger.Nop())

	_, err := c.Fetch(context.Background(), "KRA 1", 2025)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
