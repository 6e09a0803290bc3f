package cli

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdinIsTTY() bool {
	return isCharDevice(os.Stdin)
}

func stdoutIsTTY() bool {
	return isCharDevice(os.Stdout)
}

func isCharDevice(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// readTemplateArg resolves --template / --template-file. "-" reads stdin.
func readTemplateArg(inline, file string) (string, bool, error) {
	if strings.TrimSpace(file) != "" {
		var (
			data []byte
			err  error
		)
		if strings.TrimSpace(file) == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return "", false, err
		}
		return strings.TrimRight(string(data), "\r\n"), true, nil
	}
	if inline != "" {
		return inline, true, nil
	}
	return "", false, nil
}

func requireProject(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("--project is required")
	}
	return id, nil
}
