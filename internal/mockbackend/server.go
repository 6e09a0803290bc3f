// Package mockbackend is an in-process stand-in for the wizard backend. It
// serves the three step pages and the JSON API, enforces the anti-forgery
// header, and lets tests script item status sequences.
package mockbackend

import (
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"veo-wizard/internal/model"
)

const (
	defaultCSRFCookie = "csrftoken"
	defaultCSRFHeader = "X-CSRFToken"
	uploadPath        = "/step1/"
	previewRows       = 5
)

// Route keys for Requests and FailNext.
const (
	RouteUpload  = "upload"
	RouteSave    = "save"
	RouteSuggest = "suggest"
	RouteStart   = "start"
	RouteStatus  = "status"
)

type Options struct {
	CSRFCookie string
	CSRFHeader string
	// Logger receives one line per request when set.
	Logger *log.Logger
}

type project struct {
	ID        string
	Name      string
	Columns   []string
	Rows      []map[string]any
	TotalRows int
	Template  string
	Started   bool
	ItemIDs   []string
}

type item struct {
	model.Item
	ProjectID string
	calls     int
}

// SuggestCall is what the suggestion endpoint last received.
type SuggestCall struct {
	Template string   `json:"template"`
	Fields   []string `json:"fields"`
}

type Server struct {
	opts   Options
	engine *gin.Engine

	mu          sync.Mutex
	projects    map[string]*project
	items       map[string]*item
	scripts     map[int][]model.StatusReport
	failNext    map[string]string
	requests    map[string]int
	lastSuggest *SuggestCall
}

func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	if strings.TrimSpace(opts.CSRFCookie) == "" {
		opts.CSRFCookie = defaultCSRFCookie
	}
	if strings.TrimSpace(opts.CSRFHeader) == "" {
		opts.CSRFHeader = defaultCSRFHeader
	}

	s := &Server{
		opts:     opts,
		projects: make(map[string]*project),
		items:    make(map[string]*item),
		scripts:  make(map[int][]model.StatusReport),
		failNext: make(map[string]string),
		requests: make(map[string]int),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if opts.Logger != nil {
		engine.Use(requestLogger(opts.Logger))
	}
	engine.Use(s.csrfGuard())
	engine.SetHTMLTemplate(pageTemplates)
	s.registerRoutes(engine)
	s.engine = engine
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, uploadPath) })
	r.GET(uploadPath, s.handleUploadPage)
	r.POST(uploadPath, s.handleUpload)
	r.GET("/step2/:project_id/", s.handlePromptPage)
	r.GET("/step3/:project_id/", s.handleGenerationPage)

	api := r.Group("/api")
	{
		api.POST("/prompt/save/:project_id/", s.handleSavePrompt)
		api.POST("/gemini/suggest-prompt/", s.handleSuggest)
		api.POST("/veo/start/:project_id/", s.handleStart)
		api.GET("/veo/status/:video_id/", s.handleStatus)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Script fixes the status sequence returned for the item at rowIndex, one
// report per status call. The last report repeats.
func (s *Server) Script(rowIndex int, reports ...model.StatusReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[rowIndex] = append([]model.StatusReport(nil), reports...)
}

// FailNext makes the next request on route answer 500 with message.
func (s *Server) FailNext(route, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[route] = message
}

// Requests counts requests by route key. Status calls are also counted per
// item under "status:<item id>".
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

func (s *Server) LastSuggestion() (SuggestCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSuggest == nil {
		return SuggestCall{}, false
	}
	return *s.lastSuggest, true
}

// Template returns the saved template of a project.
func (s *Server) Template(projectID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return "", false
	}
	return p.Template, true
}

// Items lists a project's items in row order.
func (s *Server) Items(projectID string) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil
	}
	return s.itemsLocked(p)
}

// AddProject seeds a project directly, skipping the upload.
func (s *Server) AddProject(name string, columns []string, rows []map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addProjectLocked(name, columns, rows)
}

func (s *Server) addProjectLocked(name string, columns []string, rows []map[string]any) string {
	if strings.TrimSpace(name) == "" {
		name = "Untitled Project"
	}
	p := &project{
		ID:        uuid.NewString(),
		Name:      name,
		Columns:   columns,
		Rows:      rows,
		TotalRows: len(rows),
	}
	s.projects[p.ID] = p
	return p.ID
}

func (s *Server) itemsLocked(p *project) []model.Item {
	out := make([]model.Item, 0, len(p.ItemIDs))
	for _, id := range p.ItemIDs {
		if it, ok := s.items[id]; ok {
			out = append(out, it.Item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

func (s *Server) count(key string) {
	s.requests[key]++
}

// takeFailure consumes an injected failure for route.
func (s *Server) takeFailure(route string) (string, bool) {
	msg, ok := s.failNext[route]
	if ok {
		delete(s.failNext, route)
	}
	return msg, ok
}

func (s *Server) csrfGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		cookie, err := c.Cookie(s.opts.CSRFCookie)
		header := c.GetHeader(s.opts.CSRFHeader)
		if err != nil || cookie == "" || header != cookie {
			c.Data(http.StatusForbidden, "text/html; charset=utf-8", []byte("<h1>Forbidden (403)</h1><p>CSRF verification failed. Request aborted.</p>"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) issueCSRFCookie(c *gin.Context) {
	if v, err := c.Cookie(s.opts.CSRFCookie); err == nil && v != "" {
		return
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.opts.CSRFCookie, token, int((365 * 24 * time.Hour).Seconds()), "/", "", false, false)
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
