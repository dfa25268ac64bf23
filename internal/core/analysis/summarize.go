package analysis

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/artpar/autodeploy/internal/core/compose"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/docker/go-connections/nat"
	"github.com/joho/godotenv"
)

// =============================================================================
// Summarize
// =============================================================================

// Summarize inspects a snapshot and returns what it learned, plus warnings
// for manifests it could not read. It never fails: unreadable manifests
// degrade the summary instead.
func Summarize(s Snapshot) (domain.RepositorySummary, []string) {
	a := &analyzer{snap: s}
	a.detectStack()
	a.detectCompose()

	sum := domain.RepositorySummary{
		RepositoryURL:   s.RepositoryURL,
		PrimaryLanguage: a.language,
		Framework:       a.framework,
		Dependencies:    a.deps,
		HasDockerfile:   s.has("Dockerfile"),
		HasMigrations:   a.hasMigrations(),
		PackageManager:  a.packageManager,
		StaticDir:       a.staticDir(),
		EnvVars:         a.envVars(),
	}
	sum.HasStaticAssets = sum.StaticDir != "" || s.has("index.html")
	sum.NeedsDatabase = a.needsDatabase(sum.Dependencies, sum.HasMigrations)
	sum.EntryPort = a.entryPort()
	sum.BuildCommand, sum.StartCommand = a.commands(sum.EntryPort)
	return sum, a.warnings
}

// analyzer accumulates detection state for one Summarize call.
type analyzer struct {
	snap           Snapshot
	language       string
	framework      domain.Framework
	packageManager string
	deps           []string
	pkg            packageJSON
	project        *compose.Project
	warnings       []string
}

func (a *analyzer) warn(format string, args ...any) {
	a.warnings = append(a.warnings, fmt.Sprintf(format, args...))
}

// =============================================================================
// Language and Framework
// =============================================================================

func (a *analyzer) detectStack() {
	s := a.snap
	a.framework = domain.FrameworkUnknown

	switch {
	case s.has("requirements.txt") || s.has("Pipfile") || s.has("pyproject.toml"):
		a.detectPython()
	case s.has("package.json"):
		a.detectNode()
	case s.has("Gemfile"):
		a.language = "ruby"
		a.packageManager = "bundler"
		a.deps = parseGemfile(s.Files["Gemfile"])
		if hasAny(a.deps, "rails", "railties") {
			a.framework = domain.FrameworkRails
		}
	case s.has("pom.xml") || s.has("build.gradle") || s.has("build.gradle.kts"):
		a.detectJVM()
	case s.has("go.mod"):
		a.language = "go"
		a.packageManager = "go"
		a.framework = domain.FrameworkGo
		a.deps = parseGoMod(s.Files["go.mod"])
	case s.has("index.html"):
		a.language = "html"
		a.framework = domain.FrameworkStatic
	case len(s.sources(".py")) > 0:
		a.detectPython()
	}
	a.deps = uniqueSorted(a.deps)
}

func (a *analyzer) detectPython() {
	s := a.snap
	a.language = "python"
	a.packageManager = "pip"

	if content, ok := s.Files["requirements.txt"]; ok {
		a.deps = append(a.deps, parseRequirements(content)...)
	}
	if content, ok := s.Files["Pipfile"]; ok {
		a.packageManager = "pipenv"
		a.deps = append(a.deps, parsePipfile(content)...)
	}
	if content, ok := s.Files["pyproject.toml"]; ok {
		doc, ok := parsePyproject(content)
		if !ok {
			a.warn("pyproject.toml: invalid TOML")
		} else {
			if doc.Tool.Poetry != nil {
				a.packageManager = "poetry"
			}
			a.deps = append(a.deps, doc.names()...)
		}
	}

	switch {
	case hasAny(a.deps, "flask"):
		a.framework = domain.FrameworkFlask
	case hasAny(a.deps, "django"):
		a.framework = domain.FrameworkDjango
	case hasAny(a.deps, "fastapi"):
		a.framework = domain.FrameworkFastAPI
	case s.anySourceContains("from flask", ".py") || s.anySourceContains("import flask", ".py"):
		a.framework = domain.FrameworkFlask
	case s.has("manage.py") || s.anySourceContains("from django", ".py"):
		a.framework = domain.FrameworkDjango
	case s.anySourceContains("from fastapi", ".py"):
		a.framework = domain.FrameworkFastAPI
	}
}

func (a *analyzer) detectNode() {
	s := a.snap
	a.language = "javascript"
	pkg, ok := parsePackageJSON(s.Files["package.json"])
	if !ok {
		a.warn("package.json: invalid JSON")
	}
	a.pkg = pkg
	a.deps = pkg.names()
	if s.has("tsconfig.json") || hasAny(a.deps, "typescript") {
		a.language = "typescript"
	}

	switch {
	case s.has("yarn.lock"):
		a.packageManager = "yarn"
	case s.has("pnpm-lock.yaml"):
		a.packageManager = "pnpm"
	default:
		a.packageManager = "npm"
	}

	// next depends on react, so it is checked first.
	switch {
	case hasAny(a.deps, "next"):
		a.framework = domain.FrameworkNextJS
	case hasAny(a.deps, "express"):
		a.framework = domain.FrameworkExpress
	case hasAny(a.deps, "react"):
		a.framework = domain.FrameworkReact
	default:
		a.framework = domain.FrameworkNodeJS
	}
}

func (a *analyzer) detectJVM() {
	s := a.snap
	a.language = "java"
	if content, ok := s.Files["pom.xml"]; ok {
		a.packageManager = "maven"
		a.deps = parsePom(content)
	} else {
		a.packageManager = "gradle"
		a.deps = parseGradle(s.Files["build.gradle"] + "\n" + s.Files["build.gradle.kts"])
		if s.has("build.gradle.kts") {
			a.language = "kotlin"
		}
	}
	for _, dep := range a.deps {
		if strings.HasPrefix(dep, "spring-boot") {
			a.framework = domain.FrameworkSpring
			return
		}
	}
}

// =============================================================================
// Compose
// =============================================================================

var composeFiles = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

func (a *analyzer) detectCompose() {
	for _, name := range composeFiles {
		content, ok := a.snap.Files[name]
		if !ok {
			continue
		}
		project, err := compose.Parse(content)
		if err != nil {
			a.warn("%s: %v", name, err)
			return
		}
		a.project = project
		return
	}
}

// =============================================================================
// Database, Migrations and Static Assets
// =============================================================================

// databaseDrivers are dependencies that imply a relational or document
// database server.
var databaseDrivers = map[string]bool{
	// python
	"psycopg2":               true,
	"psycopg2-binary":        true,
	"psycopg":                true,
	"asyncpg":                true,
	"sqlalchemy":             true,
	"flask-sqlalchemy":       true,
	"pymysql":                true,
	"mysqlclient":            true,
	"mysql-connector-python": true,
	"pymongo":                true,
	"dj-database-url":        true,
	// node
	"pg":             true,
	"mysql":          true,
	"mysql2":         true,
	"mongoose":       true,
	"mongodb":        true,
	"sequelize":      true,
	"typeorm":        true,
	"knex":           true,
	"prisma":         true,
	"@prisma/client": true,
	// ruby
	"activerecord": true,
	// jvm
	"postgresql":                   true,
	"mysql-connector-j":            true,
	"spring-boot-starter-data-jpa": true,
	// go
	"github.com/lib/pq":              true,
	"github.com/go-sql-driver/mysql": true,
	"gorm.io/gorm":                   true,
	"go.mongodb.org/mongo-driver":    true,
}

func (a *analyzer) needsDatabase(deps []string, hasMigrations bool) bool {
	for _, dep := range deps {
		if databaseDrivers[dep] || strings.HasPrefix(dep, "github.com/jackc/pgx") {
			return true
		}
	}
	if a.project != nil {
		for _, svc := range a.project.DatabaseServices() {
			if svc.DatabaseEngine() != "redis" {
				return true
			}
		}
	}
	return hasMigrations && (a.framework == domain.FrameworkDjango || a.framework == domain.FrameworkRails)
}

func (a *analyzer) hasMigrations() bool {
	for _, d := range a.snap.Dirs {
		switch {
		case d == "migrate", d == "db/migrate", d == "prisma/migrations":
			return true
		case path.Base(d) == "migrations", path.Base(d) == "alembic":
			return true
		}
	}
	return false
}

var staticDirs = []string{"static", "public", "assets", "dist", "build", "www"}

func (a *analyzer) staticDir() string {
	if a.framework == domain.FrameworkReact {
		if hasAny(a.deps, "vite") {
			return "dist"
		}
		return "build"
	}
	for _, d := range staticDirs {
		if a.snap.hasDir(d) {
			return d
		}
	}
	return ""
}

// =============================================================================
// Environment
// =============================================================================

var envFiles = []string{".env", ".env.example", ".env.sample", ".env.template"}

func (a *analyzer) envVars() []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range envFiles {
		content, ok := a.snap.Files[name]
		if !ok {
			continue
		}
		vars, err := godotenv.Unmarshal(content)
		if err != nil {
			a.warn("%s: %v", name, err)
			continue
		}
		for k := range vars {
			add(k)
		}
	}
	if a.project != nil {
		for _, svc := range a.project.Services {
			if svc.DatabaseEngine() == "" {
				for _, k := range svc.EnvKeys {
					add(k)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Ports
// =============================================================================

var (
	exposePattern = regexp.MustCompile(`(?im)^\s*EXPOSE\s+(.+)$`)
	listenPattern = regexp.MustCompile(`(?i)(?:port["']?\s*(?:[:=(,]|\|\|)?\s*|listen\(\s*)(\d{4,5})\b`)
)

// frameworkPorts are the ports each framework listens on by default.
var frameworkPorts = map[domain.Framework]int{
	domain.FrameworkFlask:   5000,
	domain.FrameworkDjango:  8000,
	domain.FrameworkFastAPI: 8000,
	domain.FrameworkExpress: 3000,
	domain.FrameworkNodeJS:  3000,
	domain.FrameworkNextJS:  3000,
	domain.FrameworkRails:   3000,
	domain.FrameworkSpring:  8080,
	domain.FrameworkGo:      8080,
}

// entryPort prefers the Dockerfile, then compose, then source code, then
// the framework default.
func (a *analyzer) entryPort() int {
	if ports := exposedPorts(a.snap.Files["Dockerfile"]); len(ports) > 0 {
		return ports[0]
	}
	if a.project != nil {
		if ports := a.project.AppPorts(); len(ports) > 0 {
			return ports[0]
		}
	}
	if port := a.sourcePort(); port > 0 {
		return port
	}
	return frameworkPorts[a.framework]
}

// exposedPorts returns the container ports of every EXPOSE instruction, in
// order. Ranges contribute their lowest port; tokens that are not port
// specs, such as build arguments, are skipped.
func exposedPorts(dockerfile string) []int {
	var out []int
	for _, m := range exposePattern.FindAllStringSubmatch(dockerfile, -1) {
		for _, tok := range strings.Fields(m[1]) {
			exposed, _, err := nat.ParsePortSpecs([]string{tok})
			if err != nil || len(exposed) == 0 {
				continue
			}
			lowest := 0
			for p := range exposed {
				if n := p.Int(); lowest == 0 || n < lowest {
					lowest = n
				}
			}
			out = append(out, lowest)
		}
	}
	return out
}

func (a *analyzer) sourcePort() int {
	for _, p := range a.snap.sources(".py", ".js", ".mjs", ".ts", ".go", ".rb") {
		for _, m := range listenPattern.FindAllStringSubmatch(a.snap.Files[p], -1) {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= 1024 && n <= 65535 {
				return n
			}
		}
	}
	return 0
}

// =============================================================================
// Build and Start Commands
// =============================================================================

var pythonEntries = []string{"app.py", "main.py", "wsgi.py", "run.py", "server.py"}

func (a *analyzer) pythonEntry() string {
	for _, name := range pythonEntries {
		if a.snap.has(name) {
			return name
		}
	}
	return "app.py"
}

func (a *analyzer) pythonInstall() string {
	switch a.packageManager {
	case "poetry":
		return "poetry install --no-root"
	case "pipenv":
		return "pipenv install --deploy"
	}
	if a.snap.has("requirements.txt") {
		return "pip install -r requirements.txt"
	}
	return "pip install ."
}

func (a *analyzer) nodeInstall() string {
	switch a.packageManager {
	case "yarn":
		return "yarn install --frozen-lockfile"
	case "pnpm":
		return "pnpm install --frozen-lockfile"
	}
	if a.snap.has("package-lock.json") {
		return "npm ci"
	}
	return "npm install"
}

func (a *analyzer) nodeStart() string {
	if _, ok := a.pkg.Scripts["start"]; ok {
		return a.packageManager + " start"
	}
	if a.pkg.Main != "" {
		return "node " + a.pkg.Main
	}
	for _, name := range []string{"server.js", "index.js", "app.js"} {
		if a.snap.has(name) {
			return "node " + name
		}
	}
	return ""
}

func (a *analyzer) commands(port int) (build, start string) {
	switch a.framework {
	case domain.FrameworkFlask:
		build = a.pythonInstall()
		start = "python3 " + a.pythonEntry()
		if hasAny(a.deps, "gunicorn") {
			start = fmt.Sprintf("gunicorn --bind 0.0.0.0:%d %s:app", port, strings.TrimSuffix(a.pythonEntry(), ".py"))
		}
	case domain.FrameworkDjango:
		build = a.pythonInstall()
		start = fmt.Sprintf("python3 manage.py runserver 0.0.0.0:%d", port)
	case domain.FrameworkFastAPI:
		build = a.pythonInstall()
		start = fmt.Sprintf("uvicorn %s:app --host 0.0.0.0 --port %d", strings.TrimSuffix(a.pythonEntry(), ".py"), port)
	case domain.FrameworkExpress, domain.FrameworkNodeJS, domain.FrameworkNextJS, domain.FrameworkReact:
		build = a.nodeInstall()
		if _, ok := a.pkg.Scripts["build"]; ok {
			build += " && " + a.packageManager + " run build"
		}
		if a.framework != domain.FrameworkReact {
			start = a.nodeStart()
		}
	case domain.FrameworkRails:
		build = "bundle install"
		start = fmt.Sprintf("bundle exec rails server -b 0.0.0.0 -p %d", port)
	case domain.FrameworkSpring:
		if a.packageManager == "maven" {
			build, start = "mvn -B package -DskipTests", "java -jar target/*.jar"
		} else {
			build, start = "./gradlew build -x test", "java -jar build/libs/*.jar"
		}
	case domain.FrameworkGo:
		build, start = "go build -o app .", "./app"
	}
	return build, start
}

// hasAny reports whether deps contains one of names.
func hasAny(deps []string, names ...string) bool {
	for _, d := range deps {
		for _, n := range names {
			if d == n {
				return true
			}
		}
	}
	return false
}
