package analysis

import (
	"testing"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Python Tests
// =============================================================================

func TestSummarize_FlaskWithPostgres(t *testing.T) {
	snap := Snapshot{
		RepositoryURL: "https://github.com/acme/shop",
		Files: map[string]string{
			"requirements.txt": "Flask==3.0.0\npsycopg2-binary>=2.9  # driver\n-r extra.txt\n\nrequests[security]~=2.31\n",
			"app.py":           "from flask import Flask\napp = Flask(__name__)\n\nif __name__ == '__main__':\n    app.run(host='0.0.0.0', port=5000)\n",
			".env.example":     "DATABASE_URL=postgres://localhost/shop\n# comment\nSECRET_KEY=changeme\n",
		},
		Dirs: []string{"static", "migrations"},
	}

	sum, warnings := Summarize(snap)
	assert.Empty(t, warnings)
	assert.Equal(t, "https://github.com/acme/shop", sum.RepositoryURL)
	assert.Equal(t, "python", sum.PrimaryLanguage)
	assert.Equal(t, domain.FrameworkFlask, sum.Framework)
	assert.Equal(t, "pip", sum.PackageManager)
	assert.Equal(t, []string{"flask", "psycopg2-binary", "requests"}, sum.Dependencies)
	assert.True(t, sum.NeedsDatabase)
	assert.True(t, sum.HasMigrations)
	assert.True(t, sum.HasStaticAssets)
	assert.Equal(t, "static", sum.StaticDir)
	assert.Equal(t, 5000, sum.EntryPort)
	assert.Equal(t, "pip install -r requirements.txt", sum.BuildCommand)
	assert.Equal(t, "python3 app.py", sum.StartCommand)
	assert.Equal(t, []string{"DATABASE_URL", "SECRET_KEY"}, sum.EnvVars)
	assert.True(t, sum.HasBackend())
}

func TestSummarize_FastAPIWithPoetry(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"pyproject.toml": `[tool.poetry]
name = "api"

[tool.poetry.dependencies]
python = "^3.11"
FastAPI = "^0.110"
uvicorn = "^0.29"
`,
		"main.py": "from fastapi import FastAPI\napp = FastAPI()\n",
	}}

	sum, warnings := Summarize(snap)
	assert.Empty(t, warnings)
	assert.Equal(t, domain.FrameworkFastAPI, sum.Framework)
	assert.Equal(t, "poetry", sum.PackageManager)
	assert.Equal(t, []string{"fastapi", "uvicorn"}, sum.Dependencies)
	assert.Equal(t, 8000, sum.EntryPort)
	assert.Equal(t, "poetry install --no-root", sum.BuildCommand)
	assert.Equal(t, "uvicorn main:app --host 0.0.0.0 --port 8000", sum.StartCommand)
	assert.False(t, sum.NeedsDatabase)
}

func TestSummarize_DjangoMigrationsImplyDatabase(t *testing.T) {
	snap := Snapshot{
		Files: map[string]string{
			"requirements.txt": "django>=4.2\n",
			"manage.py":        "import django\n",
		},
		Dirs: []string{"shop", "shop/migrations"},
	}

	sum, _ := Summarize(snap)
	assert.Equal(t, domain.FrameworkDjango, sum.Framework)
	assert.True(t, sum.HasMigrations)
	assert.True(t, sum.NeedsDatabase)
	assert.Equal(t, "python3 manage.py runserver 0.0.0.0:8000", sum.StartCommand)
}

func TestSummarize_PEP621Pyproject(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"pyproject.toml": `[project]
name = "svc"
dependencies = [
  "flask>=3",
  "SQLAlchemy==2.0.29",
]
`,
	}}

	sum, _ := Summarize(snap)
	assert.Equal(t, domain.FrameworkFlask, sum.Framework)
	assert.Equal(t, []string{"flask", "sqlalchemy"}, sum.Dependencies)
	assert.True(t, sum.NeedsDatabase)
	assert.Equal(t, "pip install .", sum.BuildCommand)
}

// =============================================================================
// Node Tests
// =============================================================================

func TestSummarize_ExpressWithDockerfile(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"package.json": `{"main": "server.js", "scripts": {"start": "node server.js"}, "dependencies": {"express": "^4.19.0", "pg": "^8.11.0"}}`,
		"yarn.lock":    "",
		"server.js":    "app.listen(process.env.PORT || 3000)\n",
		"Dockerfile":   "FROM node:20\nEXPOSE 8080\nCMD [\"yarn\", \"start\"]\n",
	}}

	sum, _ := Summarize(snap)
	assert.Equal(t, "javascript", sum.PrimaryLanguage)
	assert.Equal(t, domain.FrameworkExpress, sum.Framework)
	assert.Equal(t, "yarn", sum.PackageManager)
	assert.True(t, sum.HasDockerfile)
	assert.Equal(t, 8080, sum.EntryPort)
	assert.Equal(t, "yarn install --frozen-lockfile", sum.BuildCommand)
	assert.Equal(t, "yarn start", sum.StartCommand)
	assert.True(t, sum.NeedsDatabase)
}

func TestSummarize_NextOutranksReact(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"package.json":  `{"scripts": {"build": "next build", "start": "next start"}, "dependencies": {"next": "14.1.0", "react": "18.2.0"}}`,
		"tsconfig.json": "{}",
	}}

	sum, _ := Summarize(snap)
	assert.Equal(t, domain.FrameworkNextJS, sum.Framework)
	assert.Equal(t, "typescript", sum.PrimaryLanguage)
	assert.Equal(t, "npm install && npm run build", sum.BuildCommand)
	assert.Equal(t, "npm start", sum.StartCommand)
	assert.Equal(t, 3000, sum.EntryPort)
}

func TestSummarize_ReactIsStatic(t *testing.T) {
	snap := Snapshot{
		Files: map[string]string{
			"package.json":      `{"scripts": {"start": "react-scripts start", "build": "react-scripts build"}, "dependencies": {"react": "18.2.0", "react-scripts": "5.0.1"}}`,
			"package-lock.json": "{}",
		},
		Dirs: []string{"public", "src"},
	}

	sum, _ := Summarize(snap)
	assert.Equal(t, domain.FrameworkReact, sum.Framework)
	assert.Equal(t, "build", sum.StaticDir)
	assert.True(t, sum.HasStaticAssets)
	assert.Empty(t, sum.StartCommand)
	assert.Equal(t, "npm ci && npm run build", sum.BuildCommand)
	assert.False(t, sum.HasBackend())
	assert.Zero(t, sum.EntryPort)
}

func TestSummarize_InvalidPackageJSON(t *testing.T) {
	sum, warnings := Summarize(Snapshot{Files: map[string]string{"package.json": "{not json"}})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "package.json")
	assert.Equal(t, domain.FrameworkNodeJS, sum.Framework)
}

// =============================================================================
// Other Ecosystems
// =============================================================================

func TestSummarize_GoModule(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"go.mod": "module example.com/api\n\ngo 1.22\n\nrequire github.com/go-chi/chi/v5 v5.0.12\n\nrequire (\n\tgithub.com/jackc/pgx/v5 v5.5.5\n\t// comment\n)\n",
	}}

	sum, _ := Summarize(snap)
	assert.Equal(t, domain.FrameworkGo, sum.Framework)
	assert.Equal(t, []string{"github.com/go-chi/chi/v5", "github.com/jackc/pgx/v5"}, sum.Dependencies)
	assert.True(t, sum.NeedsDatabase)
	assert.Equal(t, 8080, sum.EntryPort)
	assert.Equal(t, "./app", sum.StartCommand)
}

func TestSummarize_Rails(t *testing.T) {
	snap := Snapshot{
		Files: map[string]string{"Gemfile": "source 'https://rubygems.org'\ngem 'rails', '~> 7.1'\ngem \"pg\"\n"},
		Dirs:  []string{"db", "db/migrate"},
	}

	sum, _ := Summarize(snap)
	assert.Equal(t, domain.FrameworkRails, sum.Framework)
	assert.Equal(t, "bundler", sum.PackageManager)
	assert.True(t, sum.HasMigrations)
	assert.True(t, sum.NeedsDatabase)
	assert.Equal(t, "bundle exec rails server -b 0.0.0.0 -p 3000", sum.StartCommand)
}

func TestSummarize_SpringMaven(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"pom.xml": "<project><dependencies><dependency><artifactId>spring-boot-starter-web</artifactId></dependency></dependencies></project>",
	}}

	sum, _ := Summarize(snap)
	assert.Equal(t, domain.FrameworkSpring, sum.Framework)
	assert.Equal(t, "maven", sum.PackageManager)
	assert.Equal(t, 8080, sum.EntryPort)
	assert.Equal(t, "java -jar target/*.jar", sum.StartCommand)
}

func TestSummarize_StaticSite(t *testing.T) {
	sum, warnings := Summarize(Snapshot{Files: map[string]string{"index.html": "<html></html>"}})
	assert.Empty(t, warnings)
	assert.Equal(t, domain.FrameworkStatic, sum.Framework)
	assert.Equal(t, "html", sum.PrimaryLanguage)
	assert.True(t, sum.HasStaticAssets)
	assert.Empty(t, sum.StartCommand)
	assert.False(t, sum.HasBackend())
	assert.False(t, sum.NeedsDatabase)
}

func TestSummarize_EmptySnapshot(t *testing.T) {
	sum, warnings := Summarize(Snapshot{})
	assert.Empty(t, warnings)
	assert.Equal(t, domain.FrameworkUnknown, sum.Framework)
	assert.Empty(t, sum.Dependencies)
	assert.Zero(t, sum.EntryPort)
}

// =============================================================================
// Compose Tests
// =============================================================================

func TestSummarize_ComposeDatabase(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"go.mod":             "module example.com/api\n",
		"docker-compose.yml": `
services:
  api:
    build: .
    ports:
      - "9000:9090"
    environment:
      API_TOKEN: x
  db:
    image: postgres:16
  cache:
    image: redis:7
`,
	}}

	sum, warnings := Summarize(snap)
	assert.Empty(t, warnings)
	assert.True(t, sum.NeedsDatabase)
	assert.Equal(t, 9090, sum.EntryPort)
	assert.Equal(t, []string{"API_TOKEN"}, sum.EnvVars)
}

func TestSummarize_ComposeCacheOnly(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"go.mod":      "module example.com/api\n",
		"compose.yml": "services:\n  cache:\n    image: redis:7\n",
	}}

	sum, _ := Summarize(snap)
	assert.False(t, sum.NeedsDatabase)
}

func TestSummarize_BrokenCompose(t *testing.T) {
	snap := Snapshot{Files: map[string]string{
		"go.mod":             "module example.com/api\n",
		"docker-compose.yml": "services: [unclosed",
	}}

	_, warnings := Summarize(snap)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "docker-compose.yml")
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestRequirementName(t *testing.T) {
	tests := map[string]string{
		"Flask==3.0.0":                     "flask",
		"gunicorn>=21":                     "gunicorn",
		"psycopg2-binary ~= 2.9":           "psycopg2-binary",
		"requests[socks]<3":                "requests",
		"uvicorn; python_version >= '3.8'": "uvicorn",
		"# just a comment":                 "",
		"-e git+https://example.com/x.git": "",
		"":                                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, requirementName(in), in)
	}
}

func TestExposedPorts(t *testing.T) {
	dockerfile := "FROM scratch\nexpose 8080/tcp 9000-9002 $PORT\nEXPOSE 53/udp\n"
	assert.Equal(t, []int{8080, 9000, 53}, exposedPorts(dockerfile))
	assert.Empty(t, exposedPorts(""))
}

func TestWantFile(t *testing.T) {
	assert.True(t, WantFile("requirements.txt"))
	assert.True(t, WantFile("api/server.py"))
	assert.True(t, WantFile("Dockerfile"))
	assert.False(t, WantFile("logo.png"))
	assert.True(t, SkipDir("node_modules"))
	assert.False(t, SkipDir("src"))
}
