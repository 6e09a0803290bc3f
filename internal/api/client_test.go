package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"veo-wizard/internal/mockbackend"
	"veo-wizard/internal/model"
)

func newTestClient(t *testing.T) (*Client, *mockbackend.Server) {
	t.Helper()
	backend := mockbackend.New(mockbackend.Options{})
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Prime(context.Background()); err != nil {
		t.Fatalf("prime: %v", err)
	}
	return client, backend
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestPrimeIssuesCSRFCookie(t *testing.T) {
	client, _ := newTestClient(t)
	token, ok := client.CSRFToken()
	if !ok || token == "" {
		t.Fatal("expected csrf token after prime")
	}
}

func TestUploadRejectsExtensionWithoutRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	for _, name := range []string{"data.txt", "data.json", "data", "data.csv.bak"} {
		_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), name), "")
		if KindOf(err) != KindValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
}

func TestValidateFileNameAllowList(t *testing.T) {
	for _, name := range []string{"a.csv", "b.XLS", "c.Xlsx", "/tmp/d.CSV"} {
		if err := ValidateFileName(name); err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
	if err := ValidateFileName("e.ods"); err == nil || err.Error() != unsupportedFileMessage {
		t.Fatalf("unexpected error for e.ods: %v", err)
	}
}

func TestUploadReturnsColumnsAndPreview(t *testing.T) {
	client, backend := newTestClient(t)
	path := writeCSV(t, "products.csv", "product,price\nTea,3\nCoffee,4\n")

	res, err := client.Upload(context.Background(), path, "Spring launch")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ProjectID == "" {
		t.Fatal("expected project id")
	}
	if strings.Join(res.Columns, ",") != "product,price" {
		t.Fatalf("columns mismatch: %v", res.Columns)
	}
	if res.TotalRows != 2 || len(res.Preview) != 2 {
		t.Fatalf("rows mismatch: total=%d preview=%d", res.TotalRows, len(res.Preview))
	}
	if res.Preview[1]["product"] != "Coffee" {
		t.Fatalf("preview mismatch: %v", res.Preview[1])
	}
	if backend.Requests(mockbackend.RouteUpload) != 1 {
		t.Fatalf("expected one upload request, got %d", backend.Requests(mockbackend.RouteUpload))
	}
}

func TestUploadNonJSONIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<h1>Server Error (500)</h1>"))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Upload(context.Background(), writeCSV(t, "a.csv", "x\n1\n"), "")
	if KindOf(err) != KindProtocol {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if err.Error() != nonJSONMessage {
		t.Fatalf("message mismatch: got %q want %q", err.Error(), nonJSONMessage)
	}
}

func TestUploadServerErrorIsVerbatim(t *testing.T) {
	client, backend := newTestClient(t)
	backend.FailNext(mockbackend.RouteUpload, "Error parsing file: bad header")

	_, err := client.Upload(context.Background(), writeCSV(t, "a.csv", "x\n1\n"), "")
	if KindOf(err) != KindApplication {
		t.Fatalf("expected application error, got %v", err)
	}
	if err.Error() != "Error parsing file: bad header" {
		t.Fatalf("message mismatch: %q", err.Error())
	}
}

func TestTransportErrorCarriesCause(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := New(Options{BaseURL: base})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Upload(context.Background(), writeCSV(t, "a.csv", "x\n1\n"), "")
	if KindOf(err) != KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Error uploading file: ") {
		t.Fatalf("message mismatch: %q", err.Error())
	}
}

func TestMutatingRequestWithoutCSRFCookieIsRejected(t *testing.T) {
	backend := mockbackend.New(mockbackend.Options{})
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	id := backend.AddProject("p", []string{"a"}, []map[string]any{{"a": "1"}})
	err = client.SavePrompt(context.Background(), id, "x {{a}}")
	if KindOf(err) != KindProtocol {
		t.Fatalf("expected protocol error for csrf rejection, got %v", err)
	}
}

func TestSavePrompt(t *testing.T) {
	client, backend := newTestClient(t)
	id := backend.AddProject("p", []string{"a"}, []map[string]any{{"a": "1"}})

	if err := client.SavePrompt(context.Background(), id, "Show {{a}}"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := backend.Template(id); got != "Show {{a}}" {
		t.Fatalf("saved template mismatch: %q", got)
	}

	backend.FailNext(mockbackend.RouteSave, "X")
	err := client.SavePrompt(context.Background(), id, "other")
	if KindOf(err) != KindApplication || err.Error() != "X" {
		t.Fatalf("expected application error X, got %v", err)
	}
}

func TestSuggestEmptyTemplateSendsNothing(t *testing.T) {
	client, backend := newTestClient(t)
	_, err := client.SuggestPrompt(context.Background(), "   ", []string{"a"})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = client.SuggestPrompt(context.Background(), "x", nil)
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.Requests(mockbackend.RouteSuggest) != 0 {
		t.Fatalf("expected no suggest requests, got %d", backend.Requests(mockbackend.RouteSuggest))
	}
}

func TestSaveThenSuggestSendsTemplateUnmodified(t *testing.T) {
	client, backend := newTestClient(t)
	id := backend.AddProject("p", []string{"city"}, []map[string]any{{"city": "Hue"}})
	tpl := "  Drone shot over {{city}} at dawn \n"

	if err := client.SavePrompt(context.Background(), id, tpl); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := client.SuggestPrompt(context.Background(), tpl, []string{"city"})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if got == "" {
		t.Fatal("expected a suggestion")
	}
	call, ok := backend.LastSuggestion()
	if !ok {
		t.Fatal("expected suggest call to be recorded")
	}
	if call.Template != tpl {
		t.Fatalf("template modified in transit: got %q want %q", call.Template, tpl)
	}
	if saved, _ := backend.Template(id); saved != tpl {
		t.Fatalf("saved template mismatch: got %q want %q", saved, tpl)
	}
}

func TestSuggestNon2xxFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.SuggestPrompt(context.Background(), "x", []string{"a"})
	if err == nil || err.Error() != "HTTP 502" {
		t.Fatalf("expected HTTP 502, got %v", err)
	}
}

func TestStartAndStatusFlow(t *testing.T) {
	client, backend := newTestClient(t)
	id := backend.AddProject("p", []string{"a"}, []map[string]any{{"a": "1"}, {"a": "2"}})
	if err := client.SavePrompt(context.Background(), id, "Show {{a}}"); err != nil {
		t.Fatalf("save: %v", err)
	}

	before, err := client.GenerationPage(context.Background(), id)
	if err != nil {
		t.Fatalf("page before start: %v", err)
	}
	if len(before.Items) != 0 || before.TotalRows != 2 {
		t.Fatalf("unexpected page before start: %+v", before)
	}

	if _, err := client.StartGeneration(context.Background(), id); err != nil {
		t.Fatalf("start: %v", err)
	}
	page, err := client.GenerationPage(context.Background(), id)
	if err != nil {
		t.Fatalf("page after start: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(page.Items))
	}
	if page.Items[1].Prompt != "Show 2" || page.Items[1].Status != model.StatusPending {
		t.Fatalf("card mismatch: %+v", page.Items[1])
	}

	backend.Script(0, model.StatusReport{Status: "failed", Error: "quota exceeded"})
	report, err := client.ItemStatus(context.Background(), page.Items[0].ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if report.Status != model.StatusFailed || report.Error != "quota exceeded" {
		t.Fatalf("report mismatch: %+v", report)
	}

	first, err := client.ItemStatus(context.Background(), page.Items[1].ID)
	if err != nil || first.Status != model.StatusProcessing {
		t.Fatalf("expected processing, got %+v err=%v", first, err)
	}
	second, err := client.ItemStatus(context.Background(), page.Items[1].ID)
	if err != nil || second.Status != model.StatusCompleted || second.VideoURL == "" {
		t.Fatalf("expected completed with url, got %+v err=%v", second, err)
	}

	reloaded, err := client.GenerationPage(context.Background(), id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Items[0].Error != "quota exceeded" || reloaded.Items[1].VideoURL != second.VideoURL {
		t.Fatalf("reloaded cards mismatch: %+v", reloaded.Items)
	}
}

func TestStartErrorIsApplicationError(t *testing.T) {
	client, backend := newTestClient(t)
	id := backend.AddProject("p", []string{"a"}, []map[string]any{{"a": "1"}})
	_, err := client.StartGeneration(context.Background(), id)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindApplication || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 application error, got %v", err)
	}
}

func TestStatusNon2xxIsFailure(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.ItemStatus(context.Background(), "missing")
	if KindOf(err) != KindApplication {
		t.Fatalf("expected application error, got %v", err)
	}
}

func TestPromptPageReadsTemplateAndFields(t *testing.T) {
	client, backend := newTestClient(t)
	id := backend.AddProject("p", []string{"tên món", "giá <vnd>"}, []map[string]any{{"tên món": "Phở", "giá <vnd>": "40000"}})

	page, err := client.PromptPage(context.Background(), id)
	if err != nil {
		t.Fatalf("prompt page: %v", err)
	}
	if len(page.Fields) != 2 || page.Fields[0] != "tên món" || page.Fields[1] != "giá <vnd>" {
		t.Fatalf("fields mismatch: %v", page.Fields)
	}
	want := "Create a video about {{tên món}}, {{giá <vnd>}}"
	if page.Template != want {
		t.Fatalf("template mismatch: got %q want %q", page.Template, want)
	}

	if _, err := client.PromptPage(context.Background(), "nope"); KindOf(err) != KindApplication {
		t.Fatalf("expected application error for unknown project, got %v", err)
	}
}

func TestIDsAreEscapedOnce(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.RequestURI)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "status": "pending"}`))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL + "/base/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_ = client.SavePrompt(context.Background(), "a b", "t")
	_, _ = client.ItemStatus(context.Background(), "x/y")

	want := []string{"/base/api/prompt/save/a%20b/", "/base/api/veo/status/x%2Fy/"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("request URIs = %q, want %q", got, want)
	}
	if u := client.URL("/step2/a%20b/").String(); u != srv.URL+"/base/step2/a%20b/" {
		t.Fatalf("URL = %q", u)
	}
}
