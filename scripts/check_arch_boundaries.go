package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// allowed lists, per package, the internal packages it may import. Binaries
// under cmd/ only reach the cli package.
var allowed = map[string]map[string]bool{
	"cmd": {
		"cli": true,
	},
	"cli": {
		"api":         true,
		"config":      true,
		"cookies":     true,
		"mockbackend": true,
		"model":       true,
		"poller":      true,
		"prompt":      true,
		"wizard":      true,
	},
	"api": {
		"cookies": true,
		"model":   true,
		"prompt":  true,
		"wizard":  true,
	},
	"poller": {
		"model": true,
	},
	"mockbackend": {
		"model":  true,
		"prompt": true,
	},
	"config": {
		"cookies":   true,
		"filestore": true,
	},
	"cookies": {
		"filestore": true,
	},
	"filestore": {},
	"model":     {},
	"prompt":    {},
	"wizard":    {},
}

func main() {
	violations := []string{}
	for _, root := range []string{"cmd", "internal"} {
		found, err := checkTree(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "boundary walk of %s failed: %v\n", root, err)
			os.Exit(1)
		}
		violations = append(violations, found...)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "architecture boundary violations detected:")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "- %s\n", v)
		}
		os.Exit(1)
	}

	fmt.Println("architecture boundary check: OK")
}

func checkTree(root string) ([]string, error) {
	violations := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		srcPkg := sourcePackage(path)
		if srcPkg == "" {
			return nil
		}
		allowMap, ok := allowed[srcPkg]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: unknown source package %q", path, srcPkg))
			return nil
		}

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}

		for _, imp := range file.Imports {
			impPath := strings.Trim(imp.Path.Value, "\"")
			tgtPkg, ok := targetPackage(impPath)
			if !ok {
				continue
			}
			if tgtPkg == srcPkg {
				continue
			}
			if !allowMap[tgtPkg] {
				pos := fset.Position(imp.Pos())
				violations = append(violations, fmt.Sprintf("%s:%d: %s -> %s is forbidden", path, pos.Line, srcPkg, tgtPkg))
			}
		}
		return nil
	})
	return violations, err
}

func sourcePackage(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 2 {
		return ""
	}
	switch parts[0] {
	case "cmd":
		return "cmd"
	case "internal":
		return parts[1]
	}
	return ""
}

func targetPackage(importPath string) (string, bool) {
	const prefix = "veo-wizard/internal/"
	if !strings.HasPrefix(importPath, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(importPath, prefix)
	if rest == "" {
		return "", false
	}
	parts := strings.Split(rest, "/")
	return parts[0], true
}
