package analysis

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// =============================================================================
// Dependency Manifests
// =============================================================================

// requirementName returns the package name of one requirements.txt line,
// or "" for comments, options and blank lines.
func requirementName(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, "#"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" || strings.HasPrefix(line, "-") {
		return ""
	}
	if i := strings.Index(line, ";"); i >= 0 {
		line = line[:i]
	}
	for _, sep := range []string{">=", "<=", "~=", "==", "!=", ">", "<", "[", " "} {
		if i := strings.Index(line, sep); i >= 0 {
			line = line[:i]
		}
	}
	return strings.ToLower(strings.TrimSpace(line))
}

func parseRequirements(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if name := requirementName(line); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// parsePipfile reads the names in the [packages] and [dev-packages] tables.
func parsePipfile(content string) []string {
	var doc struct {
		Packages    map[string]any `toml:"packages"`
		DevPackages map[string]any `toml:"dev-packages"`
	}
	if err := toml.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	var out []string
	for name := range doc.Packages {
		out = append(out, strings.ToLower(name))
	}
	for name := range doc.DevPackages {
		out = append(out, strings.ToLower(name))
	}
	return out
}

// pyproject is the subset of pyproject.toml the analyzer reads.
type pyproject struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry *struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyproject(content string) (pyproject, bool) {
	var doc pyproject
	if err := toml.Unmarshal([]byte(content), &doc); err != nil {
		return pyproject{}, false
	}
	return doc, true
}

// names returns PEP 621 requirements and Poetry dependency keys.
func (p pyproject) names() []string {
	var out []string
	for _, req := range p.Project.Dependencies {
		if name := requirementName(req); name != "" {
			out = append(out, name)
		}
	}
	if p.Tool.Poetry != nil {
		for name := range p.Tool.Poetry.Dependencies {
			if name != "python" {
				out = append(out, strings.ToLower(name))
			}
		}
		for name := range p.Tool.Poetry.DevDependencies {
			out = append(out, strings.ToLower(name))
		}
	}
	return out
}

// packageJSON is the subset of package.json the analyzer reads.
type packageJSON struct {
	Main            string            `json:"main"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(content string) (packageJSON, bool) {
	var pkg packageJSON
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return packageJSON{}, false
	}
	return pkg, true
}

func (p packageJSON) names() []string {
	var out []string
	for name := range p.Dependencies {
		out = append(out, strings.ToLower(name))
	}
	for name := range p.DevDependencies {
		out = append(out, strings.ToLower(name))
	}
	return out
}

var gemPattern = regexp.MustCompile(`^\s*gem\s+['"]([^'"]+)['"]`)

func parseGemfile(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if m := gemPattern.FindStringSubmatch(line); m != nil {
			out = append(out, strings.ToLower(m[1]))
		}
	}
	return out
}

var artifactPattern = regexp.MustCompile(`<artifactId>([^<]+)</artifactId>`)

func parsePom(content string) []string {
	var out []string
	for _, m := range artifactPattern.FindAllStringSubmatch(content, -1) {
		out = append(out, strings.ToLower(strings.TrimSpace(m[1])))
	}
	return out
}

var gradlePattern = regexp.MustCompile(`(?:implementation|api|runtimeOnly|compileOnly)\s*\(?\s*['"]([^:'"]+):([^:'"]+)`)

func parseGradle(content string) []string {
	var out []string
	for _, m := range gradlePattern.FindAllStringSubmatch(content, -1) {
		out = append(out, strings.ToLower(m[2]))
	}
	return out
}

// parseGoMod reads module paths from require directives, single-line and
// block form.
func parseGoMod(content string) []string {
	var out []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "require ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		case strings.HasPrefix(trimmed, "require "):
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "require "))
		case !inBlock:
			continue
		}
		if fields := strings.Fields(trimmed); len(fields) >= 2 && !strings.HasPrefix(fields[0], "//") {
			out = append(out, strings.ToLower(fields[0]))
		}
	}
	return out
}

// uniqueSorted lowercases, deduplicates and sorts names.
func uniqueSorted(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
