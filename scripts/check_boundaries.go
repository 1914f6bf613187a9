package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// layerRule lists what one service layer may import besides the stdlib.
// Prefixes starting with "/" are relative to the service module.
type layerRule struct {
	allowed   []string
	forbidden []string
}

var layerRules = map[string]layerRule{
	"domain": {
		allowed:   []string{"/domain", "golang.org/x/text"},
		forbidden: []string{"/adapters/", "/application", "/transport/"},
	},
	"ports": {
		allowed:   []string{"/domain", "gathering/contracts"},
		forbidden: []string{"/adapters/", "/application"},
	},
	"application": {
		allowed:   []string{"/application", "/domain", "/ports", "gathering/contracts"},
		forbidden: []string{"/adapters/", "/transport/"},
	},
	"transport": {
		allowed: []string{"/transport"},
	},
}

type finding struct {
	file   string
	line   int
	input  string
	reason string
}

func main() {
	root := "contexts"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	findings, err := scan(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan %s: %v\n", root, err)
		os.Exit(2)
	}
	if len(findings) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].file != findings[j].file {
			return findings[i].file < findings[j].file
		}
		return findings[i].line < findings[j].line
	})
	fmt.Println("boundary violations found:")
	for _, f := range findings {
		fmt.Printf("- %s:%d imports %q (%s)\n", f.file, f.line, f.input, f.reason)
	}
	os.Exit(1)
}

func scan(root string) ([]finding, error) {
	var findings []finding
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		slashed := filepath.ToSlash(path)
		parts := strings.Split(slashed, "/")
		// contexts/<bounded-context>/<service>/<layer>/...
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}
		service := "gathering/" + strings.Join(parts[:3], "/")
		found, err := checkFile(path, slashed, service, parts[3])
		if err != nil {
			return err
		}
		findings = append(findings, found...)
		return nil
	})
	return findings, err
}

func checkFile(path string, display string, service string, layer string) ([]finding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", display, err)
	}

	var findings []finding
	rule, layered := layerRules[layer]
	for _, spec := range file.Imports {
		importPath := strings.Trim(spec.Path.Value, `"`)
		report := func(reason string) {
			findings = append(findings, finding{
				file:   display,
				line:   fset.Position(spec.Pos()).Line,
				input:  importPath,
				reason: reason,
			})
		}

		if strings.HasPrefix(importPath, "gathering/contexts/") && !underPrefix(importPath, service) {
			report("cross-service imports are forbidden")
		}
		if !layered {
			continue
		}
		if strings.HasPrefix(importPath, "gathering/internal/") {
			report(layer + " must not import runtime infrastructure")
		}
		for _, fragment := range rule.forbidden {
			if strings.HasPrefix(importPath, service) && strings.Contains(strings.TrimPrefix(importPath, service), fragment) {
				report(layer + " must not import " + strings.Trim(fragment, "/"))
			}
		}
		if !isStdlib(importPath) && !allowedBy(importPath, service, rule.allowed) {
			report(layer + " import is outside explicit allowlist")
		}
	}
	return findings, nil
}

func allowedBy(importPath string, service string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(prefix, "/") {
			prefix = service + prefix
		}
		if underPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func underPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, "gathering/") {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
