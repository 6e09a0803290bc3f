package mockbackend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"veo-wizard/internal/model"
	"veo-wizard/internal/prompt"
)

func (s *Server) handleUploadPage(c *gin.Context) {
	s.issueCSRFCookie(c)
	c.HTML(http.StatusOK, "step1", gin.H{"UploadPath": uploadPath})
}

func (s *Server) handleUpload(c *gin.Context) {
	s.mu.Lock()
	s.count(RouteUpload)
	msg, fail := s.takeFailure(RouteUpload)
	s.mu.Unlock()
	if fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}

	fh, err := c.FormFile("data_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	switch ext {
	case ".csv":
	case ".xls", ".xlsx":
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing file: Excel files are not supported by the mock backend"})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type. Please upload CSV or Excel file."})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error parsing file: %v", err)})
		return
	}
	defer f.Close()
	columns, rows, err := parseCSV(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error parsing file: %v", err)})
		return
	}

	s.mu.Lock()
	id := s.addProjectLocked(c.PostForm("project_name"), columns, rows)
	s.mu.Unlock()

	preview := rows
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"project_id": id,
		"columns":    columns,
		"total_rows": len(rows),
		"preview":    preview,
	})
}

func parseCSV(r io.Reader) ([]string, []map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("file is empty")
		}
		return nil, nil, err
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []map[string]any
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return columns, rows, nil
}

func (s *Server) handlePromptPage(c *gin.Context) {
	s.mu.Lock()
	p, ok := s.projects[c.Param("project_id")]
	var view project
	if ok {
		if p.Template == "" {
			p.Template = prompt.DefaultTemplate(p.Columns)
		}
		view = *p
	}
	s.mu.Unlock()
	if !ok {
		c.String(http.StatusNotFound, "Project not found")
		return
	}
	s.issueCSRFCookie(c)
	c.HTML(http.StatusOK, "step2", gin.H{"Project": view})
}

func (s *Server) handleGenerationPage(c *gin.Context) {
	s.mu.Lock()
	p, ok := s.projects[c.Param("project_id")]
	var (
		view  project
		items []model.Item
	)
	if ok {
		view = *p
		items = s.itemsLocked(p)
	}
	s.mu.Unlock()
	if !ok {
		c.String(http.StatusNotFound, "Project not found")
		return
	}
	s.issueCSRFCookie(c)
	c.HTML(http.StatusOK, "step3", gin.H{"Project": view, "Items": items})
}

type saveRequest struct {
	Template string `json:"template"`
}

func (s *Server) handleSavePrompt(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count(RouteSave)
	if msg, fail := s.takeFailure(RouteSave); fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}
	p, ok := s.projects[c.Param("project_id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}
	p.Template = req.Template
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleSuggest(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count(RouteSuggest)
	if msg, fail := s.takeFailure(RouteSuggest); fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}
	var req SuggestCall
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}
	s.lastSuggest = &req
	if strings.TrimSpace(req.Template) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template is required"})
		return
	}
	if len(req.Fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fields are required"})
		return
	}
	suggestion := "Cinematic short video: " + strings.TrimSpace(req.Template) + ". Smooth camera motion, natural light."
	c.JSON(http.StatusOK, gin.H{"success": true, "suggested_prompt": suggestion})
}

func (s *Server) handleStart(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count(RouteStart)
	if msg, fail := s.takeFailure(RouteStart); fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}
	projectID := c.Param("project_id")
	p, ok := s.projects[projectID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if strings.TrimSpace(p.Template) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt template is empty. Please save a prompt template first."})
		return
	}
	if !p.Started {
		for i, row := range p.Rows {
			it := &item{
				Item: model.Item{
					ID:       uuid.NewString(),
					RowIndex: i,
					Prompt:   prompt.Fill(p.Template, row),
					Status:   model.StatusPending,
				},
				ProjectID: p.ID,
			}
			s.items[it.ID] = it
			p.ItemIDs = append(p.ItemIDs, it.ID)
		}
		p.Started = true
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Video generation started. Videos will be processed asynchronously.",
		"task_id":    uuid.NewString(),
		"project_id": projectID,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("video_id")
	s.count(RouteStatus)
	s.count(RouteStatus + ":" + id)
	if msg, fail := s.takeFailure(RouteStatus); fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "video_id": id})
		return
	}
	it, ok := s.items[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video generation not found"})
		return
	}

	it.calls++
	next := s.nextReport(it)
	if model.CanTransition(it.Status, model.NormalizeStatus(next.Status)) {
		it.Status = model.NormalizeStatus(next.Status)
	}
	if next.VideoURL != "" {
		it.VideoURL = next.VideoURL
	}
	if next.Error != "" {
		it.Error = next.Error
	}

	resp := gin.H{"status": it.Status, "video_id": it.ID}
	if it.Status == model.StatusCompleted && it.VideoURL != "" {
		resp["video_url"] = it.VideoURL
	}
	if it.Error != "" {
		resp["error"] = it.Error
	}
	c.JSON(http.StatusOK, resp)
}

// nextReport is the scripted report for this call, or the default
// pending -> processing -> completed progression.
func (s *Server) nextReport(it *item) model.StatusReport {
	if script, ok := s.scripts[it.RowIndex]; ok && len(script) > 0 {
		idx := it.calls - 1
		if idx >= len(script) {
			idx = len(script) - 1
		}
		return script[idx]
	}
	switch {
	case it.calls <= 1:
		return model.StatusReport{Status: model.StatusProcessing}
	default:
		return model.StatusReport{
			Status:   model.StatusCompleted,
			VideoURL: fmt.Sprintf("/media/videos/%s.mp4", it.ID),
		}
	}
}
