package cli

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"veo-wizard/internal/mockbackend"
	"veo-wizard/internal/model"
)

type harness struct {
	backend *mockbackend.Server
	baseURL string
	flags   []string
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := mockbackend.New(mockbackend.Options{})
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("VEO_WIZARD_RELOAD_DELAY_MS", "1")
	return &harness{
		backend: backend,
		baseURL: srv.URL,
		dir:     dir,
		flags: []string{
			"--config", filepath.Join(dir, "veo-wizard.json"),
			"--cookie-file", filepath.Join(dir, "cookies.json"),
			"--base-url", srv.URL,
		},
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return captureStdout(t, func() error {
		return Run(append(args, h.flags...))
	})
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	done := make(chan string)
	go func() {
		b, _ := io.ReadAll(r)
		done <- string(b)
	}()
	runErr := fn()
	_ = w.Close()
	os.Stdout = orig
	return <-done, runErr
}

func TestHarnessWizardFlowEndToEnd(t *testing.T) {
	h := newHarness(t)

	csvPath := filepath.Join(h.dir, "rows.csv")
	if err := os.WriteFile(csvPath, []byte("topic,mood\ncity,calm\nforest,epic\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := h.run(t, "upload", "--file", csvPath, "--name", "demo", "--json")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	var uploaded struct {
		ProjectID string   `json:"project_id"`
		Columns   []string `json:"columns"`
		Next      string   `json:"next"`
	}
	if err := json.Unmarshal([]byte(out), &uploaded); err != nil {
		t.Fatalf("decode upload output %q: %v", out, err)
	}
	if uploaded.ProjectID == "" {
		t.Fatal("expected project id")
	}
	if strings.Join(uploaded.Columns, ",") != "topic,mood" {
		t.Fatalf("unexpected columns: %v", uploaded.Columns)
	}
	if want := "/step2/" + uploaded.ProjectID + "/"; uploaded.Next != want {
		t.Fatalf("next = %q, want %q", uploaded.Next, want)
	}

	if _, err := h.run(t, "prompt", "save", "--project", uploaded.ProjectID, "--template", "A {{topic}} scene, {{mood}}"); err != nil {
		t.Fatalf("prompt save failed: %v", err)
	}
	if got, _ := h.backend.Template(uploaded.ProjectID); got != "A {{topic}} scene, {{mood}}" {
		t.Fatalf("saved template = %q", got)
	}

	out, err = h.run(t, "generate", "--project", uploaded.ProjectID, "--interval", "5ms", "--json")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	var generated struct {
		Progress string       `json:"progress"`
		Items    []model.Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &generated); err != nil {
		t.Fatalf("decode generate output %q: %v", out, err)
	}
	if generated.Progress != "2 / 2" {
		t.Fatalf("progress = %q, want 2 / 2", generated.Progress)
	}
	for _, it := range generated.Items {
		if it.Status != model.StatusCompleted || it.VideoURL == "" {
			t.Fatalf("expected completed item with url, got %+v", it)
		}
	}
	if got := generated.Items[0].Prompt; got != "A city scene, calm" {
		t.Fatalf("item prompt = %q", got)
	}
	if n := h.backend.Requests(mockbackend.RouteStart); n != 1 {
		t.Fatalf("start requests = %d, want 1", n)
	}
}

func TestHarnessPromptNextStaysOnSaveError(t *testing.T) {
	h := newHarness(t)
	id := h.backend.AddProject("demo", []string{"a"}, []map[string]any{{"a": "1"}})

	h.backend.FailNext(mockbackend.RouteSave, "database is locked")
	out, err := h.run(t, "prompt", "next", "--project", id, "--template", "{{a}}")
	if err == nil {
		t.Fatal("expected save error")
	}
	if err.Error() != "database is locked" {
		t.Fatalf("error = %q", err.Error())
	}
	if strings.Contains(out, "/step3/") {
		t.Fatalf("must not offer step 3 after a failed save, got %q", out)
	}

	out, err = h.run(t, "prompt", "next", "--project", id, "--template", "{{a}}", "--json")
	if err != nil {
		t.Fatalf("prompt next failed: %v", err)
	}
	if !strings.Contains(out, "/step3/"+id+"/") {
		t.Fatalf("expected step 3 path, got %q", out)
	}
}

func TestHarnessUploadRejectsExtensionBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "notes.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := h.run(t, "upload", "--file", path)
	if err == nil || err.Error() != "Please upload a CSV or Excel file." {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := h.backend.Requests(mockbackend.RouteUpload); n != 0 {
		t.Fatalf("upload requests = %d, want 0", n)
	}
}

func TestHarnessGenerateAutoStartsPollingExistingCards(t *testing.T) {
	h := newHarness(t)
	id := h.backend.AddProject("demo", []string{"a"}, []map[string]any{{"a": "1"}, {"a": "2"}})
	h.backend.Script(1, model.StatusReport{Status: model.StatusFailed, Error: "quota exceeded"})

	if _, err := h.run(t, "prompt", "save", "--project", id, "--template", "{{a}}"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.run(t, "generate", "--project", id, "--interval", "5ms", "--json"); err != nil {
		t.Fatalf("first generate failed: %v", err)
	}

	out, err := h.run(t, "generate", "--project", id, "--no-start", "--interval", "5ms", "--json")
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if n := h.backend.Requests(mockbackend.RouteStart); n != 1 {
		t.Fatalf("start requests = %d, want 1", n)
	}
	var generated struct {
		Progress string       `json:"progress"`
		Items    []model.Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &generated); err != nil {
		t.Fatal(err)
	}
	if generated.Progress != "1 / 2" {
		t.Fatalf("progress = %q, want 1 / 2", generated.Progress)
	}
	if generated.Items[1].Status != model.StatusFailed || generated.Items[1].Error != "quota exceeded" {
		t.Fatalf("unexpected failed card: %+v", generated.Items[1])
	}
}

func TestHarnessStatusItem(t *testing.T) {
	h := newHarness(t)
	id := h.backend.AddProject("demo", []string{"a"}, []map[string]any{{"a": "1"}})
	if _, err := h.run(t, "prompt", "save", "--project", id, "--template", "{{a}}"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.run(t, "generate", "--project", id, "--interval", "5ms", "--json"); err != nil {
		t.Fatal(err)
	}
	items := h.backend.Items(id)
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}

	out, err := h.run(t, "status", "--item", items[0].ID, "--json")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var report model.StatusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != model.StatusCompleted || report.VideoURL == "" {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := h.run(t, "status", "--project", id, "--item", items[0].ID); err == nil {
		t.Fatal("expected error when both --project and --item are set")
	}
}

func TestHarnessGenerateFailsWhenStartCreatesNoCards(t *testing.T) {
	h := newHarness(t)
	id := h.backend.AddProject("empty", []string{"a"}, nil)
	if _, err := h.run(t, "prompt", "save", "--project", id, "--template", "{{a}}"); err != nil {
		t.Fatal(err)
	}

	out, err := h.run(t, "generate", "--project", id, "--interval", "5ms")
	if err == nil || !strings.Contains(err.Error(), noCardsAfterStart) {
		t.Fatalf("expected no-cards error, got %v", err)
	}
	if strings.Contains(out, "done:") {
		t.Fatalf("must not report a finished run, got %q", out)
	}
}
