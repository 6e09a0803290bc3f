package model

// Item is the client's read-only copy of one generation job card.
type Item struct {
	ID       string `json:"id"`
	RowIndex int    `json:"row_index"`
	Prompt   string `json:"prompt,omitempty"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// StatusReport is the body of GET /api/veo/status/{item_id}/.
type StatusReport struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// UploadResult is the success body of the data-file upload.
type UploadResult struct {
	Success   bool             `json:"success"`
	ProjectID string           `json:"project_id"`
	Columns   []string         `json:"columns"`
	TotalRows int              `json:"total_rows,omitempty"`
	Preview   []map[string]any `json:"preview"`
}

// PromptPage is the editor state rebuilt from the step 2 page.
type PromptPage struct {
	ProjectID string   `json:"project_id"`
	Template  string   `json:"template"`
	Fields    []string `json:"fields"`
}

// GenerationPage is the card grid rebuilt from the step 3 page.
type GenerationPage struct {
	ProjectID string `json:"project_id"`
	TotalRows int    `json:"total_rows"`
	Items     []Item `json:"items"`
}
