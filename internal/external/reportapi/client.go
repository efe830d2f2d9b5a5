package reportapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/pkg/config"
	"github.com/wonny/stratplan/pkg/httputil"
	"github.com/wonny/stratplan/pkg/logger"
	"github.com/wonny/stratplan/pkg/redis"
)

// Client talks to the upstream report service that owns analyses,
// approvals, quarterly progress and insight generation.
// ⭐ SSOT: report service calls go through this client only
type Client struct {
	api      *httputil.Client
	insights *httputil.Client
	logger   *logger.Logger
	baseURL  string
}

// NewClient builds a client from config. Requests are not retried: a
// timeout surfaces as an error. Insight calls share a per-minute quota
// across replicas through Redis.
func NewClient(cfg *config.Config, rdb *redis.Client, log *logger.Logger) *Client {
	api := httputil.New(cfg, log).DisableRetry()
	insights := httputil.New(cfg, log).DisableRetry()

	if cfg.ReportAPI.Token != "" {
		bearer := "Bearer " + cfg.ReportAPI.Token
		api.WithHeader("Authorization", bearer)
		insights.WithHeader("Authorization", bearer)
	}
	if cfg.ReportAPI.InsightPerMinute > 0 {
		insights.WithRateLimiter(
			redis.NewRateLimiter(rdb, "stratplan"),
			redis.InsightRateLimit(cfg.ReportAPI.InsightPerMinute),
		)
	}

	return New(api, insights, cfg.ReportAPI.BaseURL, log)
}

// New creates a client over preconfigured HTTP clients
func New(api, insights *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		api:      api,
		insights: insights,
		logger:   log.Component("reportapi"),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) analysisURL(analysisID string, suffix ...string) string {
	parts := append([]string{c.baseURL, "analyses", url.PathEscape(analysisID)}, suffix...)
	return strings.Join(parts, "/")
}

// GetAnalysis fetches an analysis in either the flat or the per-KRA shape
// and returns it flattened
func (c *Client) GetAnalysis(ctx context.Context, analysisID string) (contracts.Analysis, error) {
	var payload analysisPayload
	if err := c.api.DoJSON(ctx, http.MethodGet, c.analysisURL(analysisID), nil, &payload); err != nil {
		return contracts.Analysis{}, err
	}

	a := payload.normalize()
	if a.ID == "" {
		a.ID = analysisID
	}
	return a, nil
}

// SaveActivities replaces the activities of an analysis
func (c *Client) SaveActivities(ctx context.Context, analysisID string, activities []contracts.Activity) error {
	body := map[string]interface{}{"activities": activities}
	return c.api.DoJSON(ctx, http.MethodPatch, c.analysisURL(analysisID), body, nil)
}

// Approve moves the analysis to APPROVED
func (c *Client) Approve(ctx context.Context, analysisID string) error {
	return c.api.DoJSON(ctx, http.MethodPost, c.analysisURL(analysisID, "approval"), nil, nil)
}

// Reject moves the analysis to REJECTED with a reason
func (c *Client) Reject(ctx context.Context, analysisID, reason string) error {
	body := map[string]string{"reason": reason}
	return c.api.DoJSON(ctx, http.MethodDelete, c.analysisURL(analysisID, "approval"), body, nil)
}

// Regenerate asks for new narratives for reviewer-reclassified activities.
// Every item is flagged userSelectedKPI so the generator keeps the KPI.
func (c *Client) Regenerate(ctx context.Context, analysisID string, items []contracts.RegenerationItem) (contracts.RegenerationResult, error) {
	sent := make([]contracts.RegenerationItem, len(items))
	for i, item := range items {
		item.UserSelectedKPI = true
		sent[i] = item
	}

	var result contracts.RegenerationResult
	body := map[string]interface{}{"activities": sent}
	if err := c.insights.DoJSON(ctx, http.MethodPost, c.analysisURL(analysisID, "insights"), body, &result); err != nil {
		return contracts.RegenerationResult{}, err
	}

	c.logger.WithFields(map[string]interface{}{
		"analysis_id": analysisID,
		"sent":        len(sent),
		"returned":    len(result.Activities),
	}).Debug("Insights regenerated")

	return result, nil
}

// Fetch returns the progress of every initiative of a KRA for a year, with
// the quarters of that year summed into Current
func (c *Client) Fetch(ctx context.Context, kraID string, year int) ([]contracts.ProgressRecord, error) {
	params := url.Values{}
	params.Set("kraId", kraID)
	params.Set("year", strconv.Itoa(year))

	var payload progressPayload
	if err := c.api.DoJSON(ctx, http.MethodGet, c.baseURL+"/progress?"+params.Encode(), nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}

	return payload.records(kraID, year), nil
}
