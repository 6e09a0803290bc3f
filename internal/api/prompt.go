package api

import (
	"context"
	"net/url"
	"strings"

	"veo-wizard/internal/prompt"
)

const suggestPath = "/api/gemini/suggest-prompt/"

func savePath(projectID string) string {
	return "/api/prompt/save/" + url.PathEscape(projectID) + "/"
}

// SavePrompt persists the template for a project.
func (c *Client) SavePrompt(ctx context.Context, projectID, template string) error {
	if strings.TrimSpace(projectID) == "" {
		return validationError(OpSave, "Missing project id.", nil)
	}
	payload := map[string]string{"template": template}
	return c.postJSON(ctx, OpSave, savePath(projectID), payload, nil)
}

type suggestResponse struct {
	SuggestedPrompt string `json:"suggested_prompt"`
}

// SuggestPrompt asks the backend to rewrite template. The template is sent
// exactly as given; only the emptiness check trims it.
func (c *Client) SuggestPrompt(ctx context.Context, template string, fields []string) (string, error) {
	if err := prompt.ValidateSuggestion(template, fields); err != nil {
		return "", validationError(OpSuggest, err.Error(), err)
	}
	payload := struct {
		Template string   `json:"template"`
		Fields   []string `json:"fields"`
	}{Template: template, Fields: fields}

	var resp suggestResponse
	if err := c.postJSON(ctx, OpSuggest, suggestPath, payload, &resp); err != nil {
		return "", err
	}
	if resp.SuggestedPrompt == "" {
		return "", applicationError(OpSuggest, 200, "No suggestion received")
	}
	return resp.SuggestedPrompt, nil
}
