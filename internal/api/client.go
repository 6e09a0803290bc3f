// Package api is the HTTP/JSON client for the wizard backend. Every method
// returns a value or an *Error; presenting the error is left to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"veo-wizard/internal/cookies"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultCSRFCookie = "csrftoken"
	defaultCSRFHeader = "X-CSRFToken"
	defaultUploadPath = "/step1/"
	maxResponseBytes  = 8 << 20
	userAgent         = "veo-wizard"
)

type Options struct {
	BaseURL    string
	CSRFCookie string
	CSRFHeader string
	// UploadPath is the upload page; the file form posts back to it.
	UploadPath string
	Jar        http.CookieJar
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Client struct {
	base       *url.URL
	csrfCookie string
	csrfHeader string
	uploadPath string
	jar        http.CookieJar
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", opts.BaseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	hc.Jar = jar
	if hc.Timeout == 0 {
		hc.Timeout = timeout
	}

	return &Client{
		base:       base,
		csrfCookie: firstNonEmpty(opts.CSRFCookie, defaultCSRFCookie),
		csrfHeader: firstNonEmpty(opts.CSRFHeader, defaultCSRFHeader),
		uploadPath: firstNonEmpty(opts.UploadPath, defaultUploadPath),
		jar:        jar,
		httpClient: &hc,
	}, nil
}

// Jar is the cookie jar requests read from and write to.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// URL resolves an already escaped site path against the base URL. The
// escaped form is kept, so an escaped id is not escaped a second time.
func (c *Client) URL(path string) *url.URL {
	u := *c.base
	escaped := strings.TrimSuffix(c.base.EscapedPath(), "/") + "/" + strings.TrimPrefix(path, "/")
	if plain, err := url.PathUnescape(escaped); err == nil {
		u.Path = plain
		u.RawPath = escaped
	} else {
		u.Path = escaped
		u.RawPath = ""
	}
	return &u
}

// CSRFToken reads the anti-forgery token from the jar. It is never cached.
func (c *Client) CSRFToken() (string, bool) {
	return cookies.Token(c.jar, c.URL("/"), c.csrfCookie)
}

// Prime loads the upload page so the server can issue the anti-forgery cookie.
func (c *Client) Prime(ctx context.Context) error {
	status, _, err := c.fetchPage(ctx, OpPrime, c.uploadPath)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return applicationError(OpPrime, status, "")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	target := c.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token, ok := c.CSRFToken(); ok {
			req.Header.Set(c.csrfHeader, token)
		}
		req.Header.Set("Referer", c.URL(c.uploadPath).String())
	}
	return req, nil
}

// send performs req and returns the status and body, failing with a
// transport error when no response arrives.
func (c *Client) send(req *http.Request, op string) (int, http.Header, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, transportError(op, err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

type envelope struct {
	Error string `json:"error"`
}

// doJSON sends req and decodes a JSON body into out. A body carrying an
// error field, or a non-2xx status, becomes an application error.
func (c *Client) doJSON(req *http.Request, op string, out any) (int, error) {
	status, header, body, err := c.send(req, op)
	if err != nil {
		return status, err
	}
	if !isJSON(header.Get("Content-Type")) {
		return status, protocolError(op, status, "")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return status, protocolError(op, status, "")
	}
	if env.Error != "" {
		return status, applicationError(op, status, env.Error)
	}
	if status < 200 || status >= 300 {
		return status, applicationError(op, status, "")
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return status, nil
	}
	if err := decodeJSON(body, out); err != nil {
		return status, protocolError(op, status, "")
	}
	return status, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	var body io.Reader
	contentType := "application/json"
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return validationError(op, "encode request", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return transportError(op, err)
	}
	_, err = c.doJSON(req, op, out)
	return err
}

func decodeJSON(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}

func isJSON(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
