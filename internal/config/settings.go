package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"veo-wizard/internal/cookies"
	"veo-wizard/internal/filestore"
)

const (
	DefaultConfigPath     = "veo-wizard.json"
	DefaultBaseURL        = "http://127.0.0.1:8000"
	DefaultCSRFCookie     = "csrftoken"
	DefaultCSRFHeader     = "X-CSRFToken"
	DefaultUploadPath     = "/step1/"
	DefaultPollSeconds    = 5
	DefaultReloadMS       = 2000
	DefaultNoticeMS       = 5000
	DefaultSavedMS        = 2000
	DefaultTimeoutSeconds = 30
	DefaultLogFile        = "veo-wizard.log"

	settingsSchemaVersion = 1
)

// Settings are the client's runtime knobs. Zero values fall back to defaults.
type Settings struct {
	BaseURL               string `json:"base_url,omitempty"`
	CSRFCookie            string `json:"csrf_cookie,omitempty"`
	CSRFHeader            string `json:"csrf_header,omitempty"`
	UploadPath            string `json:"upload_path,omitempty"`
	PollIntervalSeconds   int    `json:"poll_interval_seconds,omitempty"`
	ReloadDelayMS         int    `json:"reload_delay_ms,omitempty"`
	NoticeDelayMS         int    `json:"notice_delay_ms,omitempty"`
	SavedIndicatorMS      int    `json:"saved_indicator_ms,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty"`
	CookieFile            string `json:"cookie_file,omitempty"`
	LogFile               string `json:"log_file,omitempty"`
}

type settingsFile struct {
	SchemaVersion int      `json:"schema_version"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
	Settings      Settings `json:"settings"`
}

func Defaults() Settings {
	return Settings{
		BaseURL:               DefaultBaseURL,
		CSRFCookie:            DefaultCSRFCookie,
		CSRFHeader:            DefaultCSRFHeader,
		UploadPath:            DefaultUploadPath,
		PollIntervalSeconds:   DefaultPollSeconds,
		ReloadDelayMS:         DefaultReloadMS,
		NoticeDelayMS:         DefaultNoticeMS,
		SavedIndicatorMS:      DefaultSavedMS,
		RequestTimeoutSeconds: DefaultTimeoutSeconds,
		LogFile:               DefaultLogFile,
	}
}

func Normalize(raw Settings) Settings {
	def := Defaults()
	norm := raw
	norm.BaseURL = strings.TrimSuffix(firstNonEmpty(raw.BaseURL, def.BaseURL), "/")
	norm.CSRFCookie = firstNonEmpty(raw.CSRFCookie, def.CSRFCookie)
	norm.CSRFHeader = firstNonEmpty(raw.CSRFHeader, def.CSRFHeader)
	norm.UploadPath = normalizePath(firstNonEmpty(raw.UploadPath, def.UploadPath))
	norm.PollIntervalSeconds = firstPositive(raw.PollIntervalSeconds, def.PollIntervalSeconds)
	norm.ReloadDelayMS = firstPositive(raw.ReloadDelayMS, def.ReloadDelayMS)
	norm.NoticeDelayMS = firstPositive(raw.NoticeDelayMS, def.NoticeDelayMS)
	norm.SavedIndicatorMS = firstPositive(raw.SavedIndicatorMS, def.SavedIndicatorMS)
	norm.RequestTimeoutSeconds = firstPositive(raw.RequestTimeoutSeconds, def.RequestTimeoutSeconds)
	norm.CookieFile = strings.TrimSpace(raw.CookieFile)
	norm.LogFile = firstNonEmpty(raw.LogFile, def.LogFile)
	return norm
}

// Validate checks what Normalize cannot repair.
func Validate(s Settings) error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", s.BaseURL)
	}
	return nil
}

// Load reads the settings file (missing is fine), then lets .env and
// VEO_WIZARD_* environment variables override it.
func Load(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("load .env: %w", err)
	}

	settings := Settings{}
	var file settingsFile
	if err := filestore.ReadJSON(normalizeConfigPath(path), &file); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Settings{}, err
		}
	} else {
		settings = file.Settings
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}
	settings = Normalize(settings)
	if err := Validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// ReadFile returns only what the settings file holds, without env overrides.
func ReadFile(path string) (Settings, error) {
	var file settingsFile
	if err := filestore.ReadJSON(normalizeConfigPath(path), &file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Normalize(Settings{}), nil
		}
		return Settings{}, err
	}
	return Normalize(file.Settings), nil
}

func Save(path string, s Settings) (Settings, error) {
	norm := Normalize(s)
	if err := Validate(norm); err != nil {
		return Settings{}, err
	}
	file := settingsFile{
		SchemaVersion: settingsSchemaVersion,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		Settings:      norm,
	}
	if err := filestore.WriteJSON(normalizeConfigPath(path), file); err != nil {
		return Settings{}, err
	}
	return norm, nil
}

func applyEnv(s *Settings) error {
	strVars := map[string]*string{
		"VEO_WIZARD_BASE_URL":    &s.BaseURL,
		"VEO_WIZARD_CSRF_COOKIE": &s.CSRFCookie,
		"VEO_WIZARD_CSRF_HEADER": &s.CSRFHeader,
		"VEO_WIZARD_UPLOAD_PATH": &s.UploadPath,
		"VEO_WIZARD_COOKIE_FILE": &s.CookieFile,
		"VEO_WIZARD_LOG_FILE":    &s.LogFile,
	}
	for key, dst := range strVars {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	intVars := map[string]*int{
		"VEO_WIZARD_POLL_INTERVAL_SECONDS":   &s.PollIntervalSeconds,
		"VEO_WIZARD_RELOAD_DELAY_MS":         &s.ReloadDelayMS,
		"VEO_WIZARD_NOTICE_DELAY_MS":         &s.NoticeDelayMS,
		"VEO_WIZARD_SAVED_INDICATOR_MS":      &s.SavedIndicatorMS,
		"VEO_WIZARD_REQUEST_TIMEOUT_SECONDS": &s.RequestTimeoutSeconds,
	}
	for key, dst := range intVars {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

func (s Settings) ReloadDelay() time.Duration {
	return time.Duration(s.ReloadDelayMS) * time.Millisecond
}

func (s Settings) NoticeDelay() time.Duration {
	return time.Duration(s.NoticeDelayMS) * time.Millisecond
}

func (s Settings) SavedIndicatorDelay() time.Duration {
	return time.Duration(s.SavedIndicatorMS) * time.Millisecond
}

func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// ResolveCookieFile returns the configured cookie file or the cache default.
func (s Settings) ResolveCookieFile() (string, error) {
	if strings.TrimSpace(s.CookieFile) != "" {
		return s.CookieFile, nil
	}
	return cookies.DefaultStorePath()
}

func normalizeConfigPath(path string) string {
	if strings.TrimSpace(path) == "" {
		return DefaultConfigPath
	}
	return strings.TrimSpace(path)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
