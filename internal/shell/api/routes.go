package api

import (
	"net/http"

	"github.com/artpar/autodeploy/internal/shell/api/openapi"
)

var pageParams = []openapi.QueryParam{
	{Name: "limit", Integer: true, Description: "Page size, at most 1000"},
	{Name: "offset", Integer: true},
}

// newGenerator describes every JSON endpoint of the API.
func newGenerator(version string) *openapi.Generator {
	g := openapi.NewGenerator(version)

	g.Register(openapi.Endpoint{
		Method:      http.MethodPost,
		Path:        "/api/v1/plans",
		OperationID: "createPlan",
		Summary:     "Analyze, decide and write the Terraform bundle for a request",
		Tag:         "Plans",
		Request:     DeploymentRequest{},
		Response:    PlanResponse{},
		Status:      http.StatusCreated,
	})
	g.Register(openapi.Endpoint{
		Method:      http.MethodPost,
		Path:        "/api/v1/deployments",
		OperationID: "createDeployment",
		Summary:     "Queue a request for planning and apply by the workers",
		Tag:         "Deployments",
		Request:     DeploymentRequest{},
		Response:    DeploymentResponse{},
		Status:      http.StatusAccepted,
	})
	g.Register(openapi.Endpoint{
		Method:      http.MethodGet,
		Path:        "/api/v1/deployments",
		OperationID: "listDeployments",
		Summary:     "List deployments, newest first",
		Tag:         "Deployments",
		Response:    ListDeploymentsResponse{},
		Query:       append([]openapi.QueryParam{{Name: "status"}}, pageParams...),
	})
	g.Register(openapi.Endpoint{
		Method:      http.MethodGet,
		Path:        "/api/v1/deployments/{id}",
		OperationID: "getDeployment",
		Summary:     "Get a deployment",
		Tag:         "Deployments",
		Response:    DeploymentResponse{},
	})
	g.Register(openapi.Endpoint{
		Method:      http.MethodGet,
		Path:        "/api/v1/deployments/{id}/plan",
		OperationID: "getDeploymentPlan",
		Summary:     "Get the stored plan of a deployment",
		Tag:         "Deployments",
	})
	g.Register(openapi.Endpoint{
		Method:      http.MethodGet,
		Path:        "/api/v1/deployments/{id}/logs",
		OperationID: "listDeploymentLogs",
		Summary:     "Read captured Terraform output",
		Tag:         "Deployments",
		Response:    LogsResponse{},
		Query:       append([]openapi.QueryParam{{Name: "after", Integer: true, Description: "Return lines after this sequence"}}, pageParams...),
	})
	g.Register(openapi.Endpoint{
		Method:      http.MethodGet,
		Path:        "/api/v1/credentials",
		OperationID: "listCredentials",
		Summary:     "List configured providers",
		Tag:         "Credentials",
		Response:    ListCredentialsResponse{},
	})
	return g
}
