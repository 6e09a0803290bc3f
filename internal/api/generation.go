package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"veo-wizard/internal/model"
)

func startPath(projectID string) string {
	return "/api/veo/start/" + url.PathEscape(projectID) + "/"
}

func statusPath(itemID string) string {
	return "/api/veo/status/" + url.PathEscape(itemID) + "/"
}

// StartResult is what the backend says after queueing a generation job.
type StartResult struct {
	Message string `json:"message,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

type startResponse struct {
	Message string `json:"message"`
	TaskID  any    `json:"task_id"`
}

// StartGeneration queues video generation for every row of the project.
func (c *Client) StartGeneration(ctx context.Context, projectID string) (StartResult, error) {
	if strings.TrimSpace(projectID) == "" {
		return StartResult{}, validationError(OpStart, "Missing project id.", nil)
	}
	var resp startResponse
	if err := c.postJSON(ctx, OpStart, startPath(projectID), nil, &resp); err != nil {
		return StartResult{}, err
	}
	out := StartResult{Message: resp.Message}
	if resp.TaskID != nil {
		out.TaskID = fmt.Sprint(resp.TaskID)
	}
	return out, nil
}

// ItemStatus fetches one item's status. On a 2xx response an error field is
// part of the report, not a failure.
func (c *Client) ItemStatus(ctx context.Context, itemID string) (model.StatusReport, error) {
	if strings.TrimSpace(itemID) == "" {
		return model.StatusReport{}, validationError(OpStatus, "Missing item id.", nil)
	}
	req, err := c.newRequest(ctx, http.MethodGet, statusPath(itemID), nil, "")
	if err != nil {
		return model.StatusReport{}, transportError(OpStatus, err)
	}
	req.Header.Set("Accept", "application/json")

	status, header, body, err := c.send(req, OpStatus)
	if err != nil {
		return model.StatusReport{}, err
	}
	if !isJSON(header.Get("Content-Type")) {
		return model.StatusReport{}, protocolError(OpStatus, status, "")
	}

	var report model.StatusReport
	if err := decodeJSON(body, &report); err != nil {
		return model.StatusReport{}, protocolError(OpStatus, status, "")
	}
	if status < 200 || status >= 300 {
		return model.StatusReport{}, applicationError(OpStatus, status, report.Error)
	}
	report.Status = model.NormalizeStatus(report.Status)
	if !model.IsKnownStatus(report.Status) {
		return model.StatusReport{}, protocolError(OpStatus, status, fmt.Sprintf("unknown status %q for item %s", report.Status, itemID))
	}
	return report, nil
}
