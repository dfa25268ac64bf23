package compose

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Types
// =============================================================================

// Project is the subset of a compose file the analyzer cares about,
// decoupled from compose-go types. Services are sorted by name.
type Project struct {
	Services []Service `json:"services"`
}

// Service is one compose service.
type Service struct {
	Name      string   `json:"name"`
	Image     string   `json:"image,omitempty"`
	Build     bool     `json:"build"`
	Ports     []Port   `json:"ports,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`
	// EnvKeys are the environment variable names, sorted.
	EnvKeys []string `json:"env_keys,omitempty"`
}

// Port is a container port and its optional host binding.
type Port struct {
	Target    uint32 `json:"target"`
	Published uint32 `json:"published,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
}

// =============================================================================
// Parser Functions
// =============================================================================

// Parse parses Docker Compose YAML into a Project.
// This is a pure function - no I/O, no side effects.
func Parse(yamlContent string) (*Project, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadProject(yamlContent)
	if err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	out := &Project{Services: make([]Service, 0, len(project.Services))}
	for _, svc := range project.Services {
		out.Services = append(out.Services, convertService(svc))
	}
	sort.Slice(out.Services, func(i, j int) bool { return out.Services[i].Name < out.Services[j].Name })
	return out, nil
}

// loadProject loads a compose file using compose-go
func loadProject(yamlContent string) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, &ParseError{Stage: "yaml", Err: fmt.Errorf("%w: %w", ErrInvalidYAML, err)}
	}
	if dict == nil {
		return nil, &ParseError{Stage: "yaml", Err: fmt.Errorf("%w: not a mapping", ErrInvalidYAML)}
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("autodeploy-scan", false)
		// Repository paths are not resolved: the file is read in memory.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, &ParseError{Stage: "load", Err: fmt.Errorf("%w: %w", ErrInvalidYAML, err)}
	}
	return project, nil
}

func convertService(svc types.ServiceConfig) Service {
	service := Service{
		Name:  svc.Name,
		Image: svc.Image,
		Build: svc.Build != nil,
	}

	for _, p := range svc.Ports {
		port := Port{Target: p.Target, Protocol: p.Protocol}
		if p.Published != "" {
			if pub, err := strconv.ParseUint(p.Published, 10, 32); err == nil {
				port.Published = uint32(pub)
			}
		}
		service.Ports = append(service.Ports, port)
	}

	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}
	sort.Strings(service.DependsOn)

	for k := range svc.Environment {
		service.EnvKeys = append(service.EnvKeys, k)
	}
	sort.Strings(service.EnvKeys)
	return service
}

// =============================================================================
// Queries
// =============================================================================

// databaseImages maps image base names to the engine they run.
var databaseImages = map[string]string{
	"postgres":    "postgres",
	"postgis":     "postgres",
	"mysql":       "mysql",
	"mariadb":     "mysql",
	"mongo":       "mongodb",
	"mongodb":     "mongodb",
	"redis":       "redis",
	"valkey":      "redis",
	"cockroach":   "postgres",
	"timescaledb": "postgres",
}

// ImageBase strips the registry, namespace, tag and digest from an image
// reference: "docker.io/library/postgres:15-alpine" becomes "postgres".
func ImageBase(image string) string {
	ref := image
	if i := strings.Index(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, ":"); i >= 0 {
		ref = ref[:i]
	}
	return strings.ToLower(ref)
}

// DatabaseEngine returns the database engine a service runs, or "".
func (s Service) DatabaseEngine() string {
	return databaseImages[ImageBase(s.Image)]
}

// DatabaseServices returns the services that run a database image.
func (p *Project) DatabaseServices() []Service {
	var out []Service
	for _, s := range p.Services {
		if s.DatabaseEngine() != "" {
			out = append(out, s)
		}
	}
	return out
}

// AppPorts returns the container ports of non-database services, in
// service order, without duplicates.
func (p *Project) AppPorts() []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range p.Services {
		if s.DatabaseEngine() != "" {
			continue
		}
		for _, port := range s.Ports {
			n := int(port.Target)
			if n > 0 && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
