package decision

import "github.com/artpar/autodeploy/internal/core/domain"

// =============================================================================
// GCP Templates
// =============================================================================

type gcpTemplates struct{}

const gcpNetworkTag = "autodeploy-app"

func (gcpTemplates) providerConfig() map[string]domain.Value {
	return map[string]domain.Value{
		"project": varRef("project_id"),
		"region":  varRef("region"),
	}
}

func labels() domain.Map {
	return domain.Map{"managed-by": domain.String("autodeploy")}
}

func (gcpTemplates) compute(b builder) domain.ResourceSpec {
	var dbHost domain.Value
	if b.database {
		dbHost = ref(nameDatabase, "public_ip_address")
	}

	switch b.topology {
	case domain.TopologyContainerService:
		container := domain.Block{
			Type: "containers",
			Attributes: map[string]domain.Value{
				"image": template(varRef("region"), domain.String("-docker.pkg.dev/"), varRef("project_id"),
					domain.String("/"), ref(nameRegistry, "repository_id"), domain.String("/app:latest")),
			},
			Blocks: []domain.Block{{
				Type:       "ports",
				Attributes: map[string]domain.Value{"container_port": varRef("app_port")},
			}},
		}
		if dbHost != nil {
			container.Blocks = append(container.Blocks, domain.Block{
				Type: "env",
				Attributes: map[string]domain.Value{
					"name":  domain.String("DATABASE_HOST"),
					"value": dbHost,
				},
			})
		}
		return domain.ResourceSpec{
			Kind: domain.KindCompute,
			Type: "google_cloud_run_v2_service",
			Name: nameApp,
			Attributes: map[string]domain.Value{
				"name":                domain.String("autodeploy-app"),
				"location":            varRef("region"),
				"ingress":             domain.String("INGRESS_TRAFFIC_ALL"),
				"deletion_protection": domain.Bool(false),
				"labels":              labels(),
			},
			Blocks: []domain.Block{{
				Type:   "template",
				Blocks: []domain.Block{container},
			}},
		}

	case domain.TopologyServerless:
		attrs := map[string]domain.Value{
			"name":                  domain.String("autodeploy-app"),
			"runtime":               domain.String(cloudFunctionRuntime(b.language())),
			"entry_point":           domain.String("handler"),
			"available_memory_mb":   domain.Int(256),
			"trigger_http":          domain.Bool(true),
			"region":                varRef("region"),
			"source_archive_bucket": varRef("source_archive_bucket"),
			"source_archive_object": varRef("source_archive_object"),
			"labels":                labels(),
		}
		if dbHost != nil {
			attrs["environment_variables"] = domain.Map{"DATABASE_HOST": dbHost}
		}
		return domain.ResourceSpec{
			Kind:       domain.KindFunctionApp,
			Type:       "google_cloudfunctions_function",
			Name:       nameApp,
			Attributes: attrs,
		}

	case domain.TopologyKubernetesCluster:
		return domain.ResourceSpec{
			Kind: domain.KindClusterControlPlane,
			Type: "google_container_cluster",
			Name: nameApp,
			Attributes: map[string]domain.Value{
				"name":                domain.String("autodeploy-cluster"),
				"location":            varRef("zone"),
				"initial_node_count":  domain.Int(2),
				"deletion_protection": domain.Bool(false),
				"resource_labels":     labels(),
			},
			Blocks: []domain.Block{{
				Type: "node_config",
				Attributes: map[string]domain.Value{
					"machine_type": varRef("instance_type"),
					"oauth_scopes": domain.Strings("https://www.googleapis.com/auth/cloud-platform"),
					"tags":         domain.Strings(gcpNetworkTag),
				},
			}},
		}

	default:
		return domain.ResourceSpec{
			Kind: domain.KindCompute,
			Type: "google_compute_instance",
			Name: nameApp,
			Attributes: map[string]domain.Value{
				"name":                    domain.String("autodeploy-app"),
				"machine_type":            varRef("instance_type"),
				"zone":                    varRef("zone"),
				"tags":                    domain.Strings(gcpNetworkTag),
				"metadata_startup_script": b.startupScript(dbHost),
				"labels":                  labels(),
			},
			Blocks: []domain.Block{
				{
					Type: "boot_disk",
					Blocks: []domain.Block{{
						Type:       "initialize_params",
						Attributes: map[string]domain.Value{"image": domain.String("ubuntu-os-cloud/ubuntu-2204-lts")},
					}},
				},
				{
					Type:       "network_interface",
					Attributes: map[string]domain.Value{"network": domain.String("default")},
					Blocks:     []domain.Block{{Type: "access_config"}},
				},
			},
		}
	}
}

func cloudFunctionRuntime(language string) string {
	switch language {
	case "python":
		return "python312"
	case "javascript":
		return "nodejs20"
	case "ruby":
		return "ruby32"
	case "java":
		return "java17"
	default:
		return "go122"
	}
}

func (gcpTemplates) firewall(b builder, root domain.ResourceSpec, db *domain.ResourceSpec) domain.ResourceSpec {
	ports := domain.List{domain.String("80"), domain.String("443"), template(varRef("app_port"))}
	attrs := map[string]domain.Value{
		"name":          domain.String("autodeploy-app-firewall"),
		"network":       domain.String("default"),
		"direction":     domain.String("INGRESS"),
		"source_ranges": domain.Strings("0.0.0.0/0"),
	}

	var description []domain.Value
	switch root.Type {
	case "google_compute_instance":
		ports = append(domain.List{domain.String("22")}, ports...)
		attrs["target_tags"] = ref(root.Name, "tags")
		description = []domain.Value{domain.String("Ingress for instance "), ref(root.Name, "name")}
	default:
		attrs["target_tags"] = domain.Strings(gcpNetworkTag)
		description = []domain.Value{domain.String("Ingress for "), ref(root.Name, "name")}
	}

	blocks := []domain.Block{{
		Type: "allow",
		Attributes: map[string]domain.Value{
			"protocol": domain.String("tcp"),
			"ports":    ports,
		},
	}}
	if db != nil {
		blocks = append(blocks, domain.Block{
			Type: "allow",
			Attributes: map[string]domain.Value{
				"protocol": domain.String("tcp"),
				"ports":    domain.List{portString(b.databasePort())},
			},
		})
		description = append(description, domain.String(" and database "), ref(db.Name, "connection_name"))
	}
	attrs["description"] = template(description...)

	return domain.ResourceSpec{
		Kind:       domain.KindNetworkSecurityGroup,
		Type:       "google_compute_firewall",
		Name:       nameFirewall,
		Attributes: attrs,
		Blocks:     blocks,
	}
}

func (gcpTemplates) database(b builder) domain.ResourceSpec {
	version := "POSTGRES_15"
	if b.engine() == "mysql" {
		version = "MYSQL_8_0"
	}
	return domain.ResourceSpec{
		Kind: domain.KindManagedDatabase,
		Type: "google_sql_database_instance",
		Name: nameDatabase,
		Attributes: map[string]domain.Value{
			"name":                domain.String("autodeploy-db"),
			"database_version":    domain.String(version),
			"region":              varRef("region"),
			"deletion_protection": domain.Bool(false),
		},
		Blocks: []domain.Block{{
			Type:       "settings",
			Attributes: map[string]domain.Value{"tier": domain.String("db-f1-micro")},
			Blocks: []domain.Block{{
				Type:       "ip_configuration",
				Attributes: map[string]domain.Value{"ipv4_enabled": domain.Bool(true)},
			}},
		}},
		Companions: []domain.ResourceSpec{
			{
				Kind: domain.KindManagedDatabase,
				Type: "google_sql_database",
				Name: nameDatabase + "_schema",
				Attributes: map[string]domain.Value{
					"name":     domain.String("app"),
					"instance": ref(nameDatabase, "name"),
				},
			},
			{
				Kind: domain.KindManagedDatabase,
				Type: "google_sql_user",
				Name: nameDatabase + "_user",
				Attributes: map[string]domain.Value{
					"name":     varRef("db_username"),
					"instance": ref(nameDatabase, "name"),
					"password": varRef("db_password"),
				},
			},
		},
	}
}

func (gcpTemplates) storage(b builder) domain.ResourceSpec {
	spec := domain.ResourceSpec{
		Kind: domain.KindObjectStorage,
		Type: "google_storage_bucket",
		Name: nameAssets,
		Attributes: map[string]domain.Value{
			"name":                        template(varRef("project_id"), domain.String("-autodeploy-assets")),
			"location":                    domain.String("US"),
			"force_destroy":               domain.Bool(true),
			"uniform_bucket_level_access": domain.Bool(true),
			"labels":                      labels(),
		},
	}
	if b.topology == domain.TopologyStaticSite {
		spec.Blocks = []domain.Block{{
			Type: "website",
			Attributes: map[string]domain.Value{
				"main_page_suffix": domain.String("index.html"),
				"not_found_page":   domain.String("404.html"),
			},
		}}
	}
	return spec
}

func (gcpTemplates) cdn(_ builder, storage domain.ResourceSpec) domain.ResourceSpec {
	return domain.ResourceSpec{
		Kind: domain.KindCdnDistribution,
		Type: "google_compute_backend_bucket",
		Name: nameCDN,
		Attributes: map[string]domain.Value{
			"name":        domain.String("autodeploy-cdn"),
			"bucket_name": ref(storage.Name, "name"),
			"enable_cdn":  domain.Bool(true),
		},
	}
}

func (gcpTemplates) registry(_ builder) domain.ResourceSpec {
	return domain.ResourceSpec{
		Kind: domain.KindContainerRegistry,
		Type: "google_artifact_registry_repository",
		Name: nameRegistry,
		Attributes: map[string]domain.Value{
			"location":      varRef("region"),
			"repository_id": domain.String("autodeploy-app"),
			"format":        domain.String("DOCKER"),
			"labels":        labels(),
		},
	}
}

func (gcpTemplates) outputs(b builder, resources []domain.ResourceSpec) map[string]domain.Output {
	out := map[string]domain.Output{}
	for _, r := range resources {
		switch r.Type {
		case "google_compute_instance":
			ip := ref(r.Name, "network_interface.0.access_config.0.nat_ip")
			out["instance_ip"] = domain.Output{Value: ip, Description: "Public IP address of the application instance"}
			out["app_url"] = domain.Output{
				Value:       template(domain.String("http://"), ip, domain.String(":"), varRef("app_port")),
				Description: "URL of the application",
			}
		case "google_cloud_run_v2_service":
			out["service_url"] = domain.Output{Value: ref(r.Name, "uri"), Description: "Public URL of the container service"}
		case "google_cloudfunctions_function":
			out["function_name"] = domain.Output{Value: ref(r.Name, "name"), Description: "Name of the deployed function"}
			out["function_url"] = domain.Output{Value: ref(r.Name, "https_trigger_url"), Description: "HTTPS trigger URL of the function"}
		case "google_container_cluster":
			out["cluster_name"] = domain.Output{Value: ref(r.Name, "name"), Description: "Name of the Kubernetes cluster"}
			out["cluster_endpoint"] = domain.Output{Value: ref(r.Name, "endpoint"), Description: "API endpoint of the Kubernetes cluster"}
		case "google_sql_database_instance":
			out["database_connection_name"] = domain.Output{Value: ref(r.Name, "connection_name"), Description: "Cloud SQL connection name"}
			out["database_endpoint"] = domain.Output{Value: ref(r.Name, "public_ip_address"), Description: "Public IP address of the database"}
			out["database_url"] = domain.Output{
				Value: template(domain.String(b.engine()+"://"), varRef("db_username"), domain.String("@"),
					ref(r.Name, "public_ip_address"), domain.String("/app")),
				Description: "Connection string without the password",
			}
		case "google_storage_bucket":
			out["bucket_name"] = domain.Output{Value: ref(r.Name, "name"), Description: "Name of the asset bucket"}
			if b.topology == domain.TopologyStaticSite {
				out["website_url"] = domain.Output{
					Value:       template(domain.String("https://storage.googleapis.com/"), ref(r.Name, "name"), domain.String("/index.html")),
					Description: "URL of the static website",
				}
			}
		case "google_compute_backend_bucket":
			out["cdn_backend"] = domain.Output{Value: ref(r.Name, "self_link"), Description: "Self link of the CDN backend bucket"}
		case "google_artifact_registry_repository":
			out["registry_url"] = domain.Output{
				Value: template(varRef("region"), domain.String("-docker.pkg.dev/"), varRef("project_id"),
					domain.String("/"), ref(r.Name, "repository_id")),
				Description: "Repository URL to push the application image to",
			}
		}
	}
	return out
}
