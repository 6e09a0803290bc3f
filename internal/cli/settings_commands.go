package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"veo-wizard/internal/config"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "settings file path")
	effective := fs.Bool("effective", false, "include .env and VEO_WIZARD_* overrides")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*configPath)
	var (
		s   config.Settings
		err error
	)
	if *effective {
		s, err = config.Load(path)
	} else {
		s, err = config.ReadFile(path)
	}
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"effective":   *effective,
			"settings":    s,
		})
	}

	fmt.Printf("config: %s\n", path)
	printSettings(s)
	return nil
}

func printSettings(s config.Settings) {
	fmt.Printf("base_url: %s\n", s.BaseURL)
	fmt.Printf("csrf_cookie: %s\n", s.CSRFCookie)
	fmt.Printf("csrf_header: %s\n", s.CSRFHeader)
	fmt.Printf("upload_path: %s\n", s.UploadPath)
	fmt.Printf("poll_interval_seconds: %d\n", s.PollIntervalSeconds)
	fmt.Printf("reload_delay_ms: %d\n", s.ReloadDelayMS)
	fmt.Printf("notice_delay_ms: %d\n", s.NoticeDelayMS)
	fmt.Printf("saved_indicator_ms: %d\n", s.SavedIndicatorMS)
	fmt.Printf("request_timeout_seconds: %d\n", s.RequestTimeoutSeconds)
	fmt.Printf("cookie_file: %s\n", defaultIfEmpty(s.CookieFile, "(default cache path)"))
	fmt.Printf("log_file: %s\n", s.LogFile)
}

// settingsFlags mirror the settings file. Empty strings and -1 keep the
// current value.
type settingsFlags struct {
	baseURL    *string
	csrfCookie *string
	csrfHeader *string
	uploadPath *string
	poll       *int
	reload     *int
	notice     *int
	saved      *int
	timeout    *int
	cookieFile *string
	logFile    *string
}

func addSettingsFlags(fs *flag.FlagSet) settingsFlags {
	return settingsFlags{
		baseURL:    fs.String("base-url", "", "backend base URL"),
		csrfCookie: fs.String("csrf-cookie", "", "anti-forgery cookie name"),
		csrfHeader: fs.String("csrf-header", "", "anti-forgery request header"),
		uploadPath: fs.String("upload-path", "", "upload endpoint path"),
		poll:       fs.Int("poll-interval-seconds", -1, "status poll interval (>=1)"),
		reload:     fs.Int("reload-delay-ms", -1, "delay before reloading after start (>=1)"),
		notice:     fs.Int("notice-delay-ms", -1, "notice auto-hide delay (>=1)"),
		saved:      fs.Int("saved-indicator-ms", -1, "saved indicator duration (>=1)"),
		timeout:    fs.Int("request-timeout-seconds", -1, "per-request timeout (>=1)"),
		cookieFile: fs.String("cookie-file", "", "cookie file path"),
		logFile:    fs.String("log-file", "", "wizard log file"),
	}
}

func (f settingsFlags) apply(s *config.Settings) error {
	strs := []struct {
		v   *string
		dst *string
	}{
		{f.baseURL, &s.BaseURL},
		{f.csrfCookie, &s.CSRFCookie},
		{f.csrfHeader, &s.CSRFHeader},
		{f.uploadPath, &s.UploadPath},
		{f.cookieFile, &s.CookieFile},
		{f.logFile, &s.LogFile},
	}
	for _, p := range strs {
		if v := strings.TrimSpace(*p.v); v != "" {
			*p.dst = v
		}
	}

	ints := []struct {
		name string
		v    *int
		dst  *int
	}{
		{"--poll-interval-seconds", f.poll, &s.PollIntervalSeconds},
		{"--reload-delay-ms", f.reload, &s.ReloadDelayMS},
		{"--notice-delay-ms", f.notice, &s.NoticeDelayMS},
		{"--saved-indicator-ms", f.saved, &s.SavedIndicatorMS},
		{"--request-timeout-seconds", f.timeout, &s.RequestTimeoutSeconds},
	}
	for _, p := range ints {
		if *p.v == -1 {
			continue
		}
		if *p.v <= 0 {
			return fmt.Errorf("%s must be >= 1", p.name)
		}
		*p.dst = *p.v
	}
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "settings file path")
	updates := addSettingsFlags(fs)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	changed := 0
	fs.Visit(func(f *flag.Flag) {
		if f.Name != "config" && f.Name != "json" {
			changed++
		}
	})
	if changed == 0 {
		return errors.New("nothing to set; see veo-wizard settings set -h")
	}

	path := strings.TrimSpace(*configPath)
	current, err := config.ReadFile(path)
	if err != nil {
		return err
	}
	if err := updates.apply(&current); err != nil {
		return err
	}
	saved, err := config.Save(path, current)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    saved,
		})
	}

	fmt.Printf("updated settings in %s\n", path)
	printSettings(saved)
	return nil
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show [--effective]")
	fmt.Println("  settings set [--base-url URL] [--poll-interval-seconds N] [--reload-delay-ms N]")
	fmt.Println("               [--notice-delay-ms N] [--saved-indicator-ms N] [--request-timeout-seconds N]")
	fmt.Println("               [--csrf-cookie NAME] [--csrf-header NAME] [--upload-path PATH]")
	fmt.Println("               [--cookie-file PATH] [--log-file PATH]")
}
