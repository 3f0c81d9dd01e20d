package main

import (
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "holderdrop"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what one layer of a context may import besides the
// standard library.
type layerRule struct {
	name       string
	local      []string
	thirdParty []string
}

var layerRules = map[string]layerRule{
	"domain": {
		name:       "domain",
		local:      []string{"/domain"},
		thirdParty: []string{"github.com/shopspring/decimal"},
	},
	"application": {
		name:  "application",
		local: []string{"/application", "/domain", "/ports"},
		thirdParty: []string{
			modulePath + "/contracts",
			"go.opentelemetry.io/otel",
		},
	},
	"ports": {
		name:       "ports",
		local:      []string{"/domain"},
		thirdParty: []string{modulePath + "/contracts"},
	},
}

func main() {
	root := flag.String("root", "contexts", "directory holding bounded contexts")
	flag.Parse()

	violations := collectViolations(*root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	base := filepath.Base(filepath.Clean(root))

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}

		modulePrefix := fmt.Sprintf("%s/%s/%s/%s", modulePath, base, parts[0], parts[1])
		layer := parts[2]
		if len(parts) == 3 {
			layer = ""
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		violations = append(violations, validateSource(filepath.ToSlash(path), source, layer, modulePrefix)...)
		return nil
	})

	return violations
}

func validateSource(name string, source []byte, layer string, modulePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name, source, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: name, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line
		report := func(rule string) {
			violations = append(violations, violation{File: name, Line: line, Import: importPath, Rule: rule})
		}

		if strings.HasPrefix(importPath, modulePath+"/contexts/") && !hasPrefix(importPath, modulePrefix) {
			report("cross-module imports are forbidden")
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		if strings.Contains(importPath, "/adapters/") {
			report(rule.name + " must not import adapters")
		}
		if hasPrefix(importPath, modulePath+"/internal") {
			report(rule.name + " must not import runtime infrastructure")
		}
		if !isStdlib(importPath) && !rule.allows(importPath, modulePrefix) {
			report(rule.name + " import is outside explicit allowlist")
		}
	}
	return violations
}

func (r layerRule) allows(importPath string, modulePrefix string) bool {
	for _, suffix := range r.local {
		if hasPrefix(importPath, modulePrefix+suffix) {
			return true
		}
	}
	for _, prefix := range r.thirdParty {
		if hasPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
