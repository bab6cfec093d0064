package api

import (
	"context"
	"net/http"

	"github.com/energynexus/nexus-cli/internal/models"
)

// FullReport fetches the stats, recent readings and insight snapshot
func (c *Client) FullReport(ctx context.Context) (*models.SystemReport, error) {
	data, err := c.authed(ctx, http.MethodGet, "/full-report", "", nil)
	if err != nil {
		return nil, err
	}
	report, err := DecodeReport(data)
	if err != nil {
		return nil, malformed("report", err)
	}
	return report, nil
}

// WeeklyStats fetches per-weekday aggregates, sorted Monday first
func (c *Client) WeeklyStats(ctx context.Context) ([]models.WeeklyStat, error) {
	data, err := c.authed(ctx, http.MethodGet, "/stats/weekly", "", nil)
	if err != nil {
		return nil, err
	}
	stats, err := DecodeWeekly(data)
	if err != nil {
		return nil, malformed("weekly stats", err)
	}
	return stats, nil
}

// SimulationState fetches the backend's current status
func (c *Client) SimulationState(ctx context.Context) (models.SystemStatus, error) {
	data, err := c.authed(ctx, http.MethodGet, "/simulation/state", "", nil)
	if err != nil {
		return "", err
	}
	status, err := DecodeStatus(data)
	if err != nil {
		return "", malformed("status", err)
	}
	return status, nil
}
