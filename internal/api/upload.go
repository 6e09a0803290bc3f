package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"veo-wizard/internal/model"
)

const (
	uploadFileField = "data_file"
	uploadNameField = "project_name"
)

// AllowedExtensions are the data file types the backend can parse.
var AllowedExtensions = []string{".csv", ".xls", ".xlsx"}

const unsupportedFileMessage = "Please upload a CSV or Excel file."

// ValidateFileName checks the extension against AllowedExtensions, ignoring case.
func ValidateFileName(name string) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return validationError(OpUpload, unsupportedFileMessage, nil)
}

type uploadResponse struct {
	Success   bool             `json:"success"`
	ProjectID any              `json:"project_id"`
	Columns   []string         `json:"columns"`
	TotalRows int              `json:"total_rows"`
	Preview   []map[string]any `json:"preview"`
}

// Upload sends the data file to the upload page. Nothing is sent when the
// extension is not allowed.
func (c *Client) Upload(ctx context.Context, path, projectName string) (model.UploadResult, error) {
	if err := ValidateFileName(path); err != nil {
		return model.UploadResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return model.UploadResult{}, validationError(OpUpload, fmt.Sprintf("Error uploading file: %v", err), err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(uploadFileField, filepath.Base(path))
	if err != nil {
		return model.UploadResult{}, transportError(OpUpload, fmt.Errorf("create multipart file: %w", err))
	}
	if _, err := io.Copy(part, f); err != nil {
		return model.UploadResult{}, transportError(OpUpload, fmt.Errorf("copy data file: %w", err))
	}
	if name := strings.TrimSpace(projectName); name != "" {
		if err := writer.WriteField(uploadNameField, name); err != nil {
			return model.UploadResult{}, transportError(OpUpload, fmt.Errorf("write project name: %w", err))
		}
	}
	if err := writer.Close(); err != nil {
		return model.UploadResult{}, transportError(OpUpload, fmt.Errorf("close multipart writer: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.uploadPath, body, writer.FormDataContentType())
	if err != nil {
		return model.UploadResult{}, transportError(OpUpload, err)
	}

	var resp uploadResponse
	status, err := c.doJSON(req, OpUpload, &resp)
	if err != nil {
		return model.UploadResult{}, err
	}
	if !resp.Success {
		return model.UploadResult{}, protocolError(OpUpload, status, "")
	}

	projectID := ""
	if resp.ProjectID != nil {
		projectID = strings.TrimSpace(fmt.Sprint(resp.ProjectID))
	}
	if projectID == "" {
		return model.UploadResult{}, protocolError(OpUpload, status, "Server did not return a project id. Check server logs.")
	}
	return model.UploadResult{
		Success:   true,
		ProjectID: projectID,
		Columns:   resp.Columns,
		TotalRows: resp.TotalRows,
		Preview:   resp.Preview,
	}, nil
}
