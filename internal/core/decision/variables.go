package decision

import (
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/artpar/autodeploy/internal/core/provider"
)

// variableCatalog lists every input variable the templates may reference.
// Only the ones a plan actually references are declared.
func (b builder) variableCatalog() map[string]domain.Variable {
	repo := domain.Variable{Description: "Git URL of the application repository", Type: "string"}
	if b.summary.RepositoryURL != "" {
		repo.Default = domain.String(b.summary.RepositoryURL)
	}

	return map[string]domain.Variable{
		"region": {
			Description: "Region to deploy into",
			Type:        "string",
			Default:     domain.String(b.region),
		},
		"zone": {
			Description: "Zone for zonal resources",
			Type:        "string",
			Default:     domain.String(provider.DefaultZone(b.region)),
		},
		"project_id": {
			Description: "GCP project to deploy into",
			Type:        "string",
		},
		"instance_type": {
			Description: "Machine size for the application",
			Type:        "string",
			Default:     domain.String(b.instanceType),
		},
		"ami_id": {
			Description: "Machine image for the application instance",
			Type:        "string",
			Default:     domain.String(provider.DefaultAMI),
		},
		"key_name": {
			Description: "Name of an existing key pair for SSH access",
			Type:        "string",
			Default:     domain.Null{},
		},
		"repository_url": repo,
		"app_port": {
			Description: "Port the application listens on",
			Type:        "number",
			Default:     domain.Int(b.port),
		},
		"db_username": {
			Description: "Database administrator user name",
			Type:        "string",
			Default:     domain.String("app"),
		},
		"db_password": {
			Description: "Database administrator password",
			Type:        "string",
			Sensitive:   true,
		},
		"db_instance_class": {
			Description: "Instance class of the managed database",
			Type:        "string",
			Default:     domain.String("db.t3.micro"),
		},
		"apprunner_access_role_arn": {
			Description: "IAM role that lets App Runner pull from the registry",
			Type:        "string",
		},
		"lambda_role_arn": {
			Description: "IAM execution role of the function",
			Type:        "string",
		},
		"lambda_package": {
			Description: "Path to the function deployment package",
			Type:        "string",
			Default:     domain.String("function.zip"),
		},
		"cluster_role_arn": {
			Description: "IAM role of the Kubernetes control plane",
			Type:        "string",
		},
		"node_role_arn": {
			Description: "IAM role of the Kubernetes worker nodes",
			Type:        "string",
		},
		"subnet_ids": {
			Description: "Subnets for the Kubernetes cluster",
			Type:        "list(string)",
		},
		"source_archive_bucket": {
			Description: "Bucket holding the function source archive",
			Type:        "string",
		},
		"source_archive_object": {
			Description: "Object name of the function source archive",
			Type:        "string",
			Default:     domain.String("function.zip"),
		},
	}
}

// deriveVariables declares exactly the catalog variables the plan references.
// A reference missing from the catalog is declared as a required string so
// the configuration stays self-consistent.
func deriveVariables(plan domain.Plan, catalog map[string]domain.Variable) map[string]domain.Variable {
	out := map[string]domain.Variable{}
	add := func(v domain.Value) {
		for _, r := range domain.VarRefsIn(v) {
			if _, ok := out[r.Name]; ok {
				continue
			}
			decl, ok := catalog[r.Name]
			if !ok {
				decl = domain.Variable{Description: r.Name, Type: "string"}
			}
			out[r.Name] = decl
		}
	}

	for _, k := range domain.SortedKeys(plan.ProviderConfig) {
		add(plan.ProviderConfig[k])
	}
	for _, r := range plan.AllResources() {
		r.WalkAttributes(func(_ string, v domain.Value) { add(v) })
	}
	for _, name := range plan.OutputNames() {
		add(plan.Outputs[name].Value)
	}
	return out
}
