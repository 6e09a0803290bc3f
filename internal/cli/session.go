package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"veo-wizard/internal/api"
	"veo-wizard/internal/config"
	"veo-wizard/internal/cookies"
)

// backendFlags are shared by every command that talks to the backend.
type backendFlags struct {
	config  *string
	baseURL *string
	cookies *string
}

func addBackendFlags(fs *flag.FlagSet) backendFlags {
	return backendFlags{
		config:  fs.String("config", config.DefaultConfigPath, "settings file path"),
		baseURL: fs.String("base-url", "", "backend base URL (overrides settings)"),
		cookies: fs.String("cookie-file", "", "cookie file path (overrides settings)"),
	}
}

// session is one command's view of the backend: settings, the persisted
// cookie jar and a client that reads the anti-forgery token from it.
type session struct {
	settings config.Settings
	store    *cookies.Store
	client   *api.Client
}

func openSession(ctx context.Context, f backendFlags) (*session, error) {
	settings, err := config.Load(strings.TrimSpace(*f.config))
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(*f.baseURL); v != "" {
		settings.BaseURL = strings.TrimSuffix(v, "/")
		if err := config.Validate(settings); err != nil {
			return nil, err
		}
	}
	if v := strings.TrimSpace(*f.cookies); v != "" {
		settings.CookieFile = v
	}
	return newSession(ctx, settings)
}

func newSession(ctx context.Context, settings config.Settings) (*session, error) {
	cookiePath, err := settings.ResolveCookieFile()
	if err != nil {
		return nil, fmt.Errorf("resolve cookie file: %w", err)
	}
	store, err := cookies.OpenStore(cookiePath, settings.BaseURL)
	if err != nil {
		return nil, err
	}
	client, err := api.New(api.Options{
		BaseURL:    settings.BaseURL,
		CSRFCookie: settings.CSRFCookie,
		CSRFHeader: settings.CSRFHeader,
		UploadPath: settings.UploadPath,
		Jar:        store,
		Timeout:    settings.RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}
	s := &session{settings: settings, store: store, client: client}
	if _, ok := client.CSRFToken(); !ok {
		if err := client.Prime(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// close persists cookies the server issued during the command.
func (s *session) close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Save()
}
