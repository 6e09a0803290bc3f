package cookies

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"veo-wizard/internal/filestore"
)

const storeSchemaVersion = 1

// Store is an http.CookieJar for a single backend origin whose cookies can be
// saved to disk between invocations.
type Store struct {
	path   string
	origin *url.URL
	jar    *cookiejar.Jar

	mu   sync.Mutex
	seen map[string]*http.Cookie
}

type storeFile struct {
	SchemaVersion int            `json:"schema_version"`
	Origin        string         `json:"origin"`
	SavedAt       string         `json:"saved_at"`
	Cookies       []storedCookie `json:"cookies"`
}

type storedCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  string `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"http_only,omitempty"`
}

// OpenStore builds a jar for baseURL and loads path when it exists. An empty
// path yields a memory-only jar.
func OpenStore(path, baseURL string) (*Store, error) {
	origin, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	s := &Store{
		path:   strings.TrimSpace(path),
		origin: &url.URL{Scheme: origin.Scheme, Host: origin.Host, Path: "/"},
		jar:    jar,
		seen:   make(map[string]*http.Cookie),
	}
	if s.path == "" {
		return s, nil
	}

	var file storeFile
	if err := filestore.ReadJSON(s.path, &file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if file.Origin != s.origin.String() {
		// Cookies saved for another backend are not replayed.
		return s, nil
	}
	now := time.Now()
	restored := make([]*http.Cookie, 0, len(file.Cookies))
	for _, sc := range file.Cookies {
		c := &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Domain:   sc.Domain,
			Secure:   sc.Secure,
			HttpOnly: sc.HTTPOnly,
		}
		if sc.Expires != "" {
			exp, err := time.Parse(time.RFC3339, sc.Expires)
			if err == nil {
				if exp.Before(now) {
					continue
				}
				c.Expires = exp
			}
		}
		restored = append(restored, c)
	}
	s.SetCookies(s.origin, restored)
	return s, nil
}

func (s *Store) SetCookies(u *url.URL, list []*http.Cookie) {
	s.jar.SetCookies(u, list)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range list {
		if c == nil || c.Name == "" {
			continue
		}
		if c.MaxAge < 0 {
			delete(s.seen, c.Name)
			continue
		}
		cp := *c
		s.seen[c.Name] = &cp
	}
}

func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	return s.jar.Cookies(u)
}

// Origin is the URL cookies are scoped to.
func (s *Store) Origin() *url.URL {
	return s.origin
}

func (s *Store) Path() string {
	return s.path
}

// Save writes the cookies the jar still holds for the origin.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	live := make(map[string]bool)
	for _, c := range s.jar.Cookies(s.origin) {
		live[c.Name] = true
	}

	s.mu.Lock()
	names := make([]string, 0, len(s.seen))
	for name := range s.seen {
		if live[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := storeFile{
		SchemaVersion: storeSchemaVersion,
		Origin:        s.origin.String(),
		SavedAt:       time.Now().UTC().Format(time.RFC3339),
		Cookies:       make([]storedCookie, 0, len(names)),
	}
	for _, name := range names {
		c := s.seen[name]
		sc := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			sc.Expires = c.Expires.UTC().Format(time.RFC3339)
		}
		out.Cookies = append(out.Cookies, sc)
	}
	s.mu.Unlock()

	return filestore.WriteJSON(s.path, out)
}

// DefaultStorePath puts the cookie file under the user cache directory.
func DefaultStorePath() (string, error) {
	cacheRoot, err := os.UserCacheDir()
	if err != nil || strings.TrimSpace(cacheRoot) == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", homeErr
		}
		cacheRoot = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheRoot, "veo-wizard", "cookies.json"), nil
}
