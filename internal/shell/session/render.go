package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
)

// =============================================================================
// Renderer
// =============================================================================

// Renderer formats session output for a terminal.
type Renderer struct {
	color   bool
	printer *message.Printer

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	box     lipgloss.Style
}

// NewRenderer creates a renderer. Without color, output is plain text and
// HCL is not highlighted.
func NewRenderer(color bool) *Renderer {
	r := &Renderer{
		color:   color,
		printer: message.NewPrinter(language.English),
		title:   lipgloss.NewStyle().Bold(true),
		label:   lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle(),
		success: lipgloss.NewStyle(),
		failure: lipgloss.NewStyle(),
		box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
	if color {
		r.title = r.title.Foreground(lipgloss.Color("86"))
		r.muted = r.muted.Foreground(lipgloss.Color("241"))
		r.success = r.success.Foreground(lipgloss.Color("42"))
		r.failure = r.failure.Foreground(lipgloss.Color("196"))
		r.box = r.box.BorderForeground(lipgloss.Color("63"))
	}
	return r
}

// Cost formats an amount with thousands separators and its ISO code, e.g.
// "USD 1,234.50".
func (r *Renderer) Cost(c domain.Cost) string {
	code := strings.ToUpper(strings.TrimSpace(c.Currency))
	if unit, err := currency.ParseISO(code); err == nil {
		code = unit.String()
	} else if code == "" {
		code = "USD"
	}
	return r.printer.Sprintf("%s %.2f", code, c.Amount)
}

// Success renders a confirmation line.
func (r *Renderer) Success(msg string) string {
	return r.success.Render("✓ " + msg)
}

// Failure renders an error line.
func (r *Renderer) Failure(msg string) string {
	return r.failure.Render("✗ " + msg)
}

// Muted renders secondary text.
func (r *Renderer) Muted(msg string) string {
	return r.muted.Render(msg)
}

// Summary renders an analyzed repository.
func (r *Renderer) Summary(ref string, s domain.RepositorySummary, warnings []string) string {
	var b strings.Builder
	b.WriteString(r.title.Render("Repository "+ref) + "\n")
	r.field(&b, "Language", orDash(s.PrimaryLanguage))
	r.field(&b, "Framework", orDash(string(s.Framework)))
	r.field(&b, "Package manager", orDash(s.PackageManager))
	r.field(&b, "Build", orDash(s.BuildCommand))
	r.field(&b, "Start", orDash(s.StartCommand))
	if s.EntryPort > 0 {
		r.field(&b, "Port", fmt.Sprint(s.EntryPort))
	}
	r.field(&b, "Database", yesNo(s.NeedsDatabase))
	r.field(&b, "Static assets", yesNo(s.HasStaticAssets))
	r.field(&b, "Dockerfile", yesNo(s.HasDockerfile))
	r.field(&b, "Dependencies", fmt.Sprint(len(s.Dependencies)))
	for _, w := range warnings {
		b.WriteString(r.muted.Render("  warning: "+w) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Plan renders a decided plan with its rationale.
func (r *Renderer) Plan(p domain.Plan) string {
	var b strings.Builder
	b.WriteString(r.title.Render("Deployment plan") + "\n")
	r.field(&b, "Provider", p.Provider.DisplayName())
	r.field(&b, "Topology", p.Topology.DisplayName())
	if p.Region != "" {
		r.field(&b, "Region", p.Region)
	}
	if p.InstanceType != "" {
		r.field(&b, "Instance type", p.InstanceType)
	}
	if !p.IsUnsupported() {
		r.field(&b, "Estimated cost", r.Cost(p.EstimatedMonthlyCost)+" / month")
	}

	if resources := p.AllResources(); len(resources) > 0 {
		b.WriteString(r.label.Render("Resources") + "\n")
		for _, res := range resources {
			fmt.Fprintf(&b, "  %s.%s %s\n", res.Type, res.Name, r.muted.Render("("+string(res.Kind)+")"))
		}
	}
	if len(p.Rationale) > 0 {
		b.WriteString(r.label.Render("Why") + "\n")
		for i, reason := range p.Rationale {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, reason)
		}
	}
	return r.box.Render(strings.TrimRight(b.String(), "\n"))
}

// HCL renders configuration source, highlighted when color is on.
func (r *Renderer) HCL(src []byte) string {
	code := strings.TrimRight(string(src), "\n")
	if !r.color {
		return code
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, "terraform", "terminal256", "monokai"); err != nil {
		return code
	}
	return buffer.String()
}

// History renders deployments as a table, newest first.
func (r *Renderer) History(deployments []deployment.Deployment) string {
	if len(deployments) == 0 {
		return r.muted.Render("No deployments yet.")
	}
	rows := make([][]string, 0, len(deployments))
	for _, d := range deployments {
		where := d.AppURL
		if where == "" {
			where = d.ErrorMessage
		}
		rows = append(rows, []string{
			d.ID,
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(d.Status),
			orDash(string(d.Provider)),
			orDash(string(d.Topology)),
			r.Cost(domain.Cost{Amount: d.EstimatedCost, Currency: "USD"}),
			truncate(where, 48),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "CREATED", "STATUS", "PROVIDER", "TOPOLOGY", "COST/MO", "URL / ERROR").
		Rows(rows...)
	return t.Render()
}

// Deployment renders one recorded deployment.
func (r *Renderer) Deployment(d deployment.Deployment) string {
	var b strings.Builder
	b.WriteString(r.title.Render("Deployment "+d.ID) + "\n")
	r.field(&b, "Request", d.Description)
	r.field(&b, "Status", string(d.Status))
	r.field(&b, "Created", d.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	r.field(&b, "Repository", orDash(d.RepositoryURL))
	r.field(&b, "Provider", orDash(string(d.Provider)))
	r.field(&b, "Topology", orDash(string(d.Topology)))
	if d.Region != "" {
		r.field(&b, "Region", d.Region)
	}
	if d.InstanceType != "" {
		r.field(&b, "Instance type", d.InstanceType)
	}
	r.field(&b, "Estimated cost", r.Cost(domain.Cost{Amount: d.EstimatedCost, Currency: "USD"})+" / month")
	if d.DryRun {
		r.field(&b, "Dry run", "yes")
	}
	if d.Dir != "" {
		r.field(&b, "Configuration", d.Dir)
	}
	if d.ArchiveURL != "" {
		r.field(&b, "Archive", d.ArchiveURL)
	}
	if d.AppURL != "" {
		r.field(&b, "URL", d.AppURL)
	}
	if d.ErrorMessage != "" {
		r.field(&b, "Error", r.failure.Render(d.ErrorMessage))
	}
	if len(d.Outputs) > 0 {
		b.WriteString(r.label.Render("Outputs") + "\n")
		b.WriteString(r.Outputs(d.Outputs) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Outputs renders Terraform outputs sorted by name.
func (r *Renderer) Outputs(outputs map[string]string) string {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		r.field(&b, name, outputs[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) field(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "  %s %s\n", r.label.Render(name+":"), value)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
