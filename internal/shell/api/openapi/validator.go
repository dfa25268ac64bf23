package openapi

import (
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// =============================================================================
// Request Validation
// =============================================================================

// ErrorFunc writes the response for a request that failed validation.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, status int, err error)

// Validator returns middleware that validates requests against the
// generated document: path and query parameters and JSON bodies. Requests
// for paths the document does not describe pass through unchanged.
func (g *Generator) Validator(onError ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			router, err := g.routes()
			if err != nil {
				onError(w, r, http.StatusInternalServerError, err)
				return
			}

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
					next.ServeHTTP(w, r)
					return
				}
				onError(w, r, http.StatusBadRequest, err)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			// The body is restored after validation.
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				onError(w, r, http.StatusBadRequest, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// routes builds the route matcher once per document. Servers are dropped
// so requests match on path alone, whatever host they arrive on.
func (g *Generator) routes() (routers.Router, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.router != nil || g.routerErr != nil {
		return g.router, g.routerErr
	}
	doc := *g.document()
	doc.Servers = nil
	g.router, g.routerErr = gorillamux.NewRouter(&doc)
	return g.router, g.routerErr
}
