// Package analysis derives a RepositorySummary from a snapshot of a
// repository checkout.
// This is part of the Functional Core - the shell reads files, this package
// only inspects their contents.
package analysis

import (
	"path"
	"sort"
	"strings"
)

// MaxDepth is how many directory levels below the root are collected.
const MaxDepth = 3

// MaxFileSize is the largest file, in bytes, whose content is collected.
const MaxFileSize = 256 * 1024

// Snapshot is the part of a checkout the analyzer looks at.
type Snapshot struct {
	RepositoryURL string
	// Files maps slash-separated paths relative to the checkout root to
	// their contents.
	Files map[string]string
	// Dirs lists directories relative to the checkout root.
	Dirs []string
}

// manifestNames are collected wherever they appear.
var manifestNames = map[string]bool{
	"requirements.txt":    true,
	"Pipfile":             true,
	"pyproject.toml":      true,
	"package.json":        true,
	"tsconfig.json":       true,
	"yarn.lock":           true,
	"pnpm-lock.yaml":      true,
	"package-lock.json":   true,
	"Gemfile":             true,
	"pom.xml":             true,
	"build.gradle":        true,
	"build.gradle.kts":    true,
	"go.mod":              true,
	"composer.json":       true,
	"index.html":          true,
	"Dockerfile":          true,
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
	"compose.yml":         true,
	"compose.yaml":        true,
	"manage.py":           true,
	".env":                true,
	".env.example":        true,
	".env.sample":         true,
	".env.template":       true,
}

// sourceExts are scanned for listen ports and framework imports.
var sourceExts = map[string]bool{
	".py":   true,
	".js":   true,
	".mjs":  true,
	".ts":   true,
	".go":   true,
	".rb":   true,
	".java": true,
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"target":       true,
	".next":        true,
}

// WantFile reports whether the content of a file should be collected.
func WantFile(rel string) bool {
	base := path.Base(rel)
	return manifestNames[base] || sourceExts[path.Ext(base)]
}

// SkipDir reports whether a directory should not be walked.
func SkipDir(name string) bool {
	return skipDirs[name]
}

// has reports whether a root-level file exists.
func (s Snapshot) has(name string) bool {
	_, ok := s.Files[name]
	return ok
}

// hasDir reports whether a directory exists.
func (s Snapshot) hasDir(name string) bool {
	for _, d := range s.Dirs {
		if d == name {
			return true
		}
	}
	return false
}

// sources returns the collected source files in path order.
func (s Snapshot) sources(exts ...string) []string {
	var out []string
	for p := range s.Files {
		ext := path.Ext(p)
		for _, e := range exts {
			if ext == e {
				out = append(out, p)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// anySourceContains reports whether a source file with one of exts
// contains needle.
func (s Snapshot) anySourceContains(needle string, exts ...string) bool {
	for _, p := range s.sources(exts...) {
		if strings.Contains(s.Files[p], needle) {
			return true
		}
	}
	return false
}
