package decision

import "github.com/artpar/autodeploy/internal/core/domain"

// =============================================================================
// AWS Templates
// =============================================================================

type awsTemplates struct{}

func (awsTemplates) providerConfig() map[string]domain.Value {
	return map[string]domain.Value{"region": varRef("region")}
}

func (awsTemplates) compute(b builder) domain.ResourceSpec {
	var dbHost domain.Value
	if b.database {
		dbHost = ref(nameDatabase, "address")
	}

	switch b.topology {
	case domain.TopologyContainerService:
		return domain.ResourceSpec{
			Kind: domain.KindCompute,
			Type: "aws_apprunner_service",
			Name: nameApp,
			Attributes: map[string]domain.Value{
				"service_name": domain.String("autodeploy-app"),
				"tags":         tags("autodeploy-app"),
			},
			Blocks: []domain.Block{
				{
					Type:       "source_configuration",
					Attributes: map[string]domain.Value{"auto_deployments_enabled": domain.Bool(false)},
					Blocks: []domain.Block{
						{
							Type:       "authentication_configuration",
							Attributes: map[string]domain.Value{"access_role_arn": varRef("apprunner_access_role_arn")},
						},
						{
							Type: "image_repository",
							Attributes: map[string]domain.Value{
								"image_identifier":      template(ref(nameRegistry, "repository_url"), domain.String(":latest")),
								"image_repository_type": domain.String("ECR"),
							},
							Blocks: []domain.Block{{
								Type:       "image_configuration",
								Attributes: appRunnerImageConfig(b, dbHost),
							}},
						},
					},
				},
				{
					Type: "instance_configuration",
					Attributes: map[string]domain.Value{
						"cpu":    domain.String("1024"),
						"memory": domain.String("2048"),
					},
				},
			},
		}

	case domain.TopologyServerless:
		runtime, handler := lambdaRuntime(b.language())
		spec := domain.ResourceSpec{
			Kind: domain.KindFunctionApp,
			Type: "aws_lambda_function",
			Name: nameApp,
			Attributes: map[string]domain.Value{
				"function_name": domain.String("autodeploy-app"),
				"role":          varRef("lambda_role_arn"),
				"runtime":       domain.String(runtime),
				"handler":       domain.String(handler),
				"filename":      varRef("lambda_package"),
				"memory_size":   domain.Int(256),
				"timeout":       domain.Int(30),
				"tags":          tags("autodeploy-app"),
			},
		}
		if dbHost != nil {
			spec.Blocks = []domain.Block{{
				Type:       "environment",
				Attributes: map[string]domain.Value{"variables": domain.Map{"DATABASE_HOST": dbHost}},
			}}
		}
		return spec

	case domain.TopologyKubernetesCluster:
		return domain.ResourceSpec{
			Kind: domain.KindClusterControlPlane,
			Type: "aws_eks_cluster",
			Name: nameApp,
			Attributes: map[string]domain.Value{
				"name":     domain.String("autodeploy-cluster"),
				"role_arn": varRef("cluster_role_arn"),
				"tags":     tags("autodeploy-cluster"),
			},
			Blocks: []domain.Block{{
				Type:       "vpc_config",
				Attributes: map[string]domain.Value{"subnet_ids": varRef("subnet_ids")},
			}},
			Companions: []domain.ResourceSpec{{
				Kind: domain.KindClusterControlPlane,
				Type: "aws_eks_node_group",
				Name: nameApp + "_nodes",
				Attributes: map[string]domain.Value{
					"cluster_name":    ref(nameApp, "name"),
					"node_group_name": domain.String("autodeploy-nodes"),
					"node_role_arn":   varRef("node_role_arn"),
					"subnet_ids":      varRef("subnet_ids"),
					"instance_types":  domain.List{varRef("instance_type")},
				},
				Blocks: []domain.Block{{
					Type: "scaling_config",
					Attributes: map[string]domain.Value{
						"desired_size": domain.Int(2),
						"max_size":     domain.Int(3),
						"min_size":     domain.Int(1),
					},
				}},
			}},
		}

	default:
		return domain.ResourceSpec{
			Kind: domain.KindCompute,
			Type: "aws_instance",
			Name: nameApp,
			Attributes: map[string]domain.Value{
				"ami":           varRef("ami_id"),
				"instance_type": varRef("instance_type"),
				"key_name":      varRef("key_name"),
				"user_data":     b.startupScript(dbHost),
				"tags":          tags("autodeploy-app"),
			},
		}
	}
}

// appRunnerImageConfig returns the App Runner image configuration.
func appRunnerImageConfig(b builder, dbHost domain.Value) map[string]domain.Value {
	attrs := map[string]domain.Value{"port": template(varRef("app_port"))}
	if dbHost != nil {
		attrs["runtime_environment_variables"] = domain.Map{"DATABASE_HOST": dbHost}
	}
	if cmd := b.summary.StartCommand; cmd != "" {
		attrs["start_command"] = domain.String(cmd)
	}
	return attrs
}

func lambdaRuntime(language string) (runtime, handler string) {
	switch language {
	case "python":
		return "python3.12", "app.handler"
	case "javascript":
		return "nodejs20.x", "index.handler"
	case "ruby":
		return "ruby3.3", "app.handler"
	case "java":
		return "java21", "example.Handler::handleRequest"
	default:
		return "provided.al2023", "bootstrap"
	}
}

func (awsTemplates) firewall(b builder, root domain.ResourceSpec, db *domain.ResourceSpec) domain.ResourceSpec {
	ingress := func(description string, from, to domain.Value) domain.Block {
		return domain.Block{
			Type: "ingress",
			Attributes: map[string]domain.Value{
				"description": domain.String(description),
				"from_port":   from,
				"to_port":     to,
				"protocol":    domain.String("tcp"),
				"cidr_blocks": domain.Strings("0.0.0.0/0"),
			},
		}
	}

	attachedTo := "arn"
	var blocks []domain.Block
	if root.Type == "aws_instance" {
		attachedTo = "id"
		blocks = append(blocks, ingress("SSH", domain.Int(22), domain.Int(22)))
	}
	blocks = append(blocks,
		ingress("HTTP", domain.Int(80), domain.Int(80)),
		ingress("HTTPS", domain.Int(443), domain.Int(443)),
		ingress("Application", varRef("app_port"), varRef("app_port")),
	)
	if db != nil {
		blocks = append(blocks, domain.Block{
			Type: "ingress",
			Attributes: map[string]domain.Value{
				"description": domain.String("Database"),
				"from_port":   ref(db.Name, "port"),
				"to_port":     ref(db.Name, "port"),
				"protocol":    domain.String("tcp"),
				"self":        domain.Bool(true),
			},
		})
	}
	blocks = append(blocks, domain.Block{
		Type: "egress",
		Attributes: map[string]domain.Value{
			"from_port":   domain.Int(0),
			"to_port":     domain.Int(0),
			"protocol":    domain.String("-1"),
			"cidr_blocks": domain.Strings("0.0.0.0/0"),
		},
	})

	tagMap := tags("autodeploy-app-firewall")
	tagMap["AttachedTo"] = ref(root.Name, attachedTo)

	spec := domain.ResourceSpec{
		Kind: domain.KindNetworkSecurityGroup,
		Type: "aws_security_group",
		Name: nameFirewall,
		Attributes: map[string]domain.Value{
			"name_prefix": domain.String("autodeploy-"),
			"description": domain.String("Managed by autodeploy"),
			"tags":        tagMap,
		},
		Blocks: blocks,
	}
	if root.Type == "aws_instance" {
		spec.Companions = []domain.ResourceSpec{{
			Kind: domain.KindNetworkSecurityGroup,
			Type: "aws_network_interface_sg_attachment",
			Name: nameFirewall + "_attachment",
			Attributes: map[string]domain.Value{
				"security_group_id":    ref(nameFirewall, "id"),
				"network_interface_id": ref(root.Name, "primary_network_interface_id"),
			},
		}}
	}
	return spec
}

func (awsTemplates) database(b builder) domain.ResourceSpec {
	engine, version := "postgres", "15"
	if b.engine() == "mysql" {
		engine, version = "mysql", "8.0"
	}
	return domain.ResourceSpec{
		Kind: domain.KindManagedDatabase,
		Type: "aws_db_instance",
		Name: nameDatabase,
		Attributes: map[string]domain.Value{
			"identifier_prefix":   domain.String("autodeploy-"),
			"engine":              domain.String(engine),
			"engine_version":      domain.String(version),
			"instance_class":      varRef("db_instance_class"),
			"allocated_storage":   domain.Int(20),
			"db_name":             domain.String("app"),
			"username":            varRef("db_username"),
			"password":            varRef("db_password"),
			"port":                domain.Int(b.databasePort()),
			"skip_final_snapshot": domain.Bool(true),
			"publicly_accessible": domain.Bool(false),
			"tags":                tags("autodeploy-db"),
		},
	}
}

func (awsTemplates) storage(b builder) domain.ResourceSpec {
	spec := domain.ResourceSpec{
		Kind: domain.KindObjectStorage,
		Type: "aws_s3_bucket",
		Name: nameAssets,
		Attributes: map[string]domain.Value{
			"bucket_prefix": domain.String("autodeploy-assets-"),
			"force_destroy": domain.Bool(true),
			"tags":          tags("autodeploy-assets"),
		},
	}
	if b.topology == domain.TopologyStaticSite {
		spec.Companions = []domain.ResourceSpec{{
			Kind:       domain.KindObjectStorage,
			Type:       "aws_s3_bucket_website_configuration",
			Name:       nameAssets + "_website",
			Attributes: map[string]domain.Value{"bucket": ref(nameAssets, "id")},
			Blocks: []domain.Block{
				{Type: "index_document", Attributes: map[string]domain.Value{"suffix": domain.String("index.html")}},
				{Type: "error_document", Attributes: map[string]domain.Value{"key": domain.String("404.html")}},
			},
		}}
	}
	return spec
}

func (awsTemplates) cdn(_ builder, storage domain.ResourceSpec) domain.ResourceSpec {
	methods := domain.Strings("GET", "HEAD")
	return domain.ResourceSpec{
		Kind: domain.KindCdnDistribution,
		Type: "aws_cloudfront_distribution",
		Name: nameCDN,
		Attributes: map[string]domain.Value{
			"enabled":             domain.Bool(true),
			"default_root_object": domain.String("index.html"),
			"tags":                tags("autodeploy-cdn"),
		},
		Blocks: []domain.Block{
			{
				Type: "origin",
				Attributes: map[string]domain.Value{
					"domain_name": ref(storage.Name, "bucket_regional_domain_name"),
					"origin_id":   domain.String(storage.Name),
				},
			},
			{
				Type: "default_cache_behavior",
				Attributes: map[string]domain.Value{
					"allowed_methods":        methods,
					"cached_methods":         methods,
					"target_origin_id":       domain.String(storage.Name),
					"viewer_protocol_policy": domain.String("redirect-to-https"),
				},
				Blocks: []domain.Block{{
					Type:       "forwarded_values",
					Attributes: map[string]domain.Value{"query_string": domain.Bool(false)},
					Blocks: []domain.Block{{
						Type:       "cookies",
						Attributes: map[string]domain.Value{"forward": domain.String("none")},
					}},
				}},
			},
			{
				Type: "restrictions",
				Blocks: []domain.Block{{
					Type:       "geo_restriction",
					Attributes: map[string]domain.Value{"restriction_type": domain.String("none")},
				}},
			},
			{
				Type:       "viewer_certificate",
				Attributes: map[string]domain.Value{"cloudfront_default_certificate": domain.Bool(true)},
			},
		},
	}
}

func (awsTemplates) registry(_ builder) domain.ResourceSpec {
	return domain.ResourceSpec{
		Kind: domain.KindContainerRegistry,
		Type: "aws_ecr_repository",
		Name: nameRegistry,
		Attributes: map[string]domain.Value{
			"name":                 domain.String("autodeploy-app"),
			"image_tag_mutability": domain.String("MUTABLE"),
			"force_delete":         domain.Bool(true),
			"tags":                 tags("autodeploy-registry"),
		},
	}
}

func (awsTemplates) outputs(b builder, resources []domain.ResourceSpec) map[string]domain.Output {
	out := map[string]domain.Output{}
	for _, r := range resources {
		switch r.Type {
		case "aws_instance":
			out["instance_ip"] = domain.Output{Value: ref(r.Name, "public_ip"), Description: "Public IP address of the application instance"}
			out["public_dns"] = domain.Output{Value: ref(r.Name, "public_dns"), Description: "Public DNS name of the application instance"}
			out["app_url"] = domain.Output{
				Value:       template(domain.String("http://"), ref(r.Name, "public_ip"), domain.String(":"), varRef("app_port")),
				Description: "URL of the application",
			}
		case "aws_apprunner_service":
			out["service_url"] = domain.Output{
				Value:       template(domain.String("https://"), ref(r.Name, "service_url")),
				Description: "Public URL of the container service",
			}
		case "aws_lambda_function":
			out["function_name"] = domain.Output{Value: ref(r.Name, "function_name"), Description: "Name of the deployed function"}
			out["function_arn"] = domain.Output{Value: ref(r.Name, "arn"), Description: "ARN of the deployed function"}
		case "aws_eks_cluster":
			out["cluster_name"] = domain.Output{Value: ref(r.Name, "name"), Description: "Name of the Kubernetes cluster"}
			out["cluster_endpoint"] = domain.Output{Value: ref(r.Name, "endpoint"), Description: "API endpoint of the Kubernetes cluster"}
		case "aws_db_instance":
			out["database_endpoint"] = domain.Output{Value: ref(r.Name, "endpoint"), Description: "Connection endpoint of the database"}
			out["database_url"] = domain.Output{
				Value: template(domain.String(b.engine()+"://"), varRef("db_username"), domain.String("@"),
					ref(r.Name, "endpoint"), domain.String("/app")),
				Description: "Connection string without the password",
			}
		case "aws_s3_bucket":
			out["bucket_name"] = domain.Output{Value: ref(r.Name, "bucket"), Description: "Name of the asset bucket"}
			for _, c := range r.Companions {
				if c.Type == "aws_s3_bucket_website_configuration" {
					out["website_url"] = domain.Output{
						Value:       template(domain.String("http://"), ref(c.Name, "website_endpoint")),
						Description: "URL of the static website",
					}
				}
			}
		case "aws_cloudfront_distribution":
			out["cdn_domain"] = domain.Output{Value: ref(r.Name, "domain_name"), Description: "Domain name of the CDN distribution"}
		case "aws_ecr_repository":
			out["registry_url"] = domain.Output{Value: ref(r.Name, "repository_url"), Description: "Repository URL to push the application image to"}
		}
	}
	return out
}
