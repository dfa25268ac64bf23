package decision

import (
	"strconv"
	"strings"

	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/provider"
)

// Logical resource names. They are stable so that regenerated
// configurations address the same Terraform resources.
const (
	nameApp      = "app"
	nameFirewall = "app_firewall"
	nameDatabase = "db"
	nameAssets   = "assets"
	nameCDN      = "cdn"
	nameRegistry = "registry"
)

const defaultAppPort = 8080

// templates renders the resource shapes of one provider.
type templates interface {
	compute(b builder) domain.ResourceSpec
	firewall(b builder, root domain.ResourceSpec, db *domain.ResourceSpec) domain.ResourceSpec
	database(b builder) domain.ResourceSpec
	storage(b builder) domain.ResourceSpec
	cdn(b builder, storage domain.ResourceSpec) domain.ResourceSpec
	registry(b builder) domain.ResourceSpec
	outputs(b builder, resources []domain.ResourceSpec) map[string]domain.Output
	providerConfig() map[string]domain.Value
}

// builder carries the resolved decision inputs through resource derivation.
type builder struct {
	summary      domain.RepositorySummary
	intent       domain.DeploymentIntent
	provider     domain.Provider
	topology     domain.Topology
	region       string
	instanceType string
	port         int
	database     bool
	storage      bool
	cdn          bool
	templates    templates
}

func newBuilder(summary domain.RepositorySummary, intent domain.DeploymentIntent, p domain.Provider, topology domain.Topology, region string) builder {
	port := summary.EntryPort
	if port <= 0 {
		port = defaultAppPort
	}
	b := builder{
		summary:      summary,
		intent:       intent,
		provider:     p,
		topology:     topology,
		region:       region,
		instanceType: provider.InstanceTypeFor(p, topology),
		port:         port,
		database:     summary.NeedsDatabase || intent.DatabaseRequested,
		storage:      summary.HasStaticAssets || intent.CDNRequested,
		cdn:          intent.CDNRequested,
	}
	if p == domain.ProviderGCP {
		b.templates = gcpTemplates{}
	} else {
		b.templates = awsTemplates{}
	}
	return b
}

// resources derives the ordered resource list and one rationale note per
// cross-cutting branch taken.
func (b builder) resources() ([]domain.ResourceSpec, []string) {
	var out []domain.ResourceSpec
	var notes []string

	var db *domain.ResourceSpec
	if b.database {
		spec := b.templates.database(b)
		db = &spec
	}

	if b.topology != domain.TopologyStaticSite {
		root := b.templates.compute(b)
		out = append(out, root, b.templates.firewall(b, root, db))
		notes = append(notes, "Network security group opens HTTP, HTTPS and the application port on "+root.Type+"."+root.Name)
	}

	if db != nil {
		out = append(out, *db)
		notes = append(notes, databaseNote(b.summary, b.intent)+"; the security group admits its port")
	}

	if b.storage {
		assets := b.templates.storage(b)
		out = append(out, assets)
		if b.summary.HasStaticAssets {
			notes = append(notes, "Object storage added for the repository's static assets")
		} else {
			notes = append(notes, "Object storage added as the CDN origin")
		}
		if b.cdn {
			out = append(out, b.templates.cdn(b, assets))
			notes = append(notes, "CDN distribution added in front of object storage as requested")
		}
	}

	if b.topology == domain.TopologyContainerService {
		out = append(out, b.templates.registry(b))
		notes = append(notes, "Container registry added to hold the application image")
	}
	return out, notes
}

func databaseNote(s domain.RepositorySummary, i domain.DeploymentIntent) string {
	switch {
	case s.NeedsDatabase && i.DatabaseRequested:
		return "Managed database added: the repository uses a database driver and the request asks for one"
	case s.NeedsDatabase:
		return "Managed database added: the repository uses a database driver"
	default:
		return "Managed database added as requested"
	}
}

// =============================================================================
// Application Signals
// =============================================================================

// engine returns the database engine implied by the dependencies.
func (b builder) engine() string {
	for _, dep := range b.summary.Dependencies {
		if strings.Contains(dep, "mysql") || strings.Contains(dep, "mariadb") {
			return "mysql"
		}
	}
	return "postgres"
}

func (b builder) databasePort() int {
	if b.engine() == "mysql" {
		return 3306
	}
	return 5432
}

func (b builder) language() string {
	lang := strings.ToLower(b.summary.PrimaryLanguage)
	switch {
	case lang == "" && b.summary.Framework != "":
		switch b.summary.Framework {
		case domain.FrameworkFlask, domain.FrameworkDjango, domain.FrameworkFastAPI:
			return "python"
		case domain.FrameworkExpress, domain.FrameworkNextJS, domain.FrameworkReact, domain.FrameworkNodeJS:
			return "javascript"
		case domain.FrameworkRails:
			return "ruby"
		case domain.FrameworkSpring:
			return "java"
		case domain.FrameworkGo:
			return "go"
		}
	case lang == "typescript":
		return "javascript"
	}
	return lang
}

// startupScript returns the boot script for virtual machines. It clones the
// repository, runs the build command and starts the application.
func (b builder) startupScript(dbHost domain.Value) domain.Template {
	packages := "git"
	switch b.language() {
	case "python":
		packages += " python3 python3-pip python3-venv"
	case "javascript":
		packages += " nodejs npm"
	case "ruby":
		packages += " ruby-full build-essential"
	case "java":
		packages += " default-jdk maven"
	case "go":
		packages += " golang-go"
	}

	parts := []domain.Value{
		domain.String("#!/bin/bash\nset -e\napt-get update -y\napt-get install -y " + packages + "\n"),
		domain.String("git clone "), domain.VarRef{Name: "repository_url"}, domain.String(" /opt/app\ncd /opt/app\n"),
		domain.String("export PORT="), domain.VarRef{Name: "app_port"}, domain.String("\n"),
	}
	if dbHost != nil {
		parts = append(parts, domain.String("export DATABASE_HOST="), dbHost, domain.String("\n"))
	}
	if cmd := strings.TrimSpace(b.summary.BuildCommand); cmd != "" {
		parts = append(parts, domain.String(cmd+"\n"))
	}
	start := strings.TrimSpace(b.summary.StartCommand)
	if start == "" {
		start = "python3 -m http.server $PORT"
	}
	parts = append(parts, domain.String("nohup "+start+" > /var/log/app.log 2>&1 &\n"))
	return template(parts...)
}

// template merges adjacent string literals.
func template(parts ...domain.Value) domain.Template {
	var out domain.Template
	for _, p := range parts {
		if lit, ok := p.(domain.Literal); ok {
			if s, ok := lit.V.(string); ok && len(out) > 0 {
				if prev, ok := out[len(out)-1].(domain.Literal); ok {
					if ps, ok := prev.V.(string); ok {
						out[len(out)-1] = domain.String(ps + s)
						continue
					}
				}
			}
		}
		out = append(out, p)
	}
	return out
}

func ref(resource, attribute string) domain.Ref {
	return domain.Ref{Resource: resource, Attribute: attribute}
}

func varRef(name string) domain.VarRef {
	return domain.VarRef{Name: name}
}

func tags(name string) domain.Map {
	return domain.Map{
		"Name":      domain.String(name),
		"ManagedBy": domain.String("autodeploy"),
	}
}

func portString(port int) domain.Literal {
	return domain.String(strconv.Itoa(port))
}
