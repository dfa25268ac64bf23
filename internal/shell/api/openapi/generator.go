// Package openapi builds the OpenAPI 3.0 document of the HTTP API from the
// Go request and response models, and validates requests against it.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
)

// =============================================================================
// Generator
// =============================================================================

// Endpoint describes one operation.
type Endpoint struct {
	Method      string
	Path        string // e.g. /api/v1/deployments/{id}
	OperationID string
	Summary     string
	Tag         string
	Request     any // body model, nil for none
	Response    any // body model, nil for none
	Status      int // success status, default 200
	Query       []QueryParam
}

// QueryParam is an optional query string parameter.
type QueryParam struct {
	Name        string
	Integer     bool
	Description string
}

// Generator collects endpoints and builds the document on first use.
// Register every endpoint before serving.
type Generator struct {
	info      openapi3.Info
	endpoints []Endpoint

	mu        sync.Mutex
	doc       *openapi3.T
	router    routers.Router
	routerErr error
}

// NewGenerator creates a generator for the given API version.
func NewGenerator(version string) *Generator {
	return &Generator{
		info: openapi3.Info{
			Title:       "autodeploy API",
			Version:     version,
			Description: "Plan and run infrastructure deployments from natural-language requests",
		},
	}
}

// Register adds an endpoint.
func (g *Generator) Register(e Endpoint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e.Status == 0 {
		e.Status = http.StatusOK
	}
	g.endpoints = append(g.endpoints, e)
	g.doc, g.router, g.routerErr = nil, nil, nil
}

// Document returns the OpenAPI document.
func (g *Generator) Document() *openapi3.T {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.document()
}

func (g *Generator) document() *openapi3.T {
	if g.doc != nil {
		return g.doc
	}
	info := g.info
	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &info,
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}
	doc.Components.Schemas["Error"] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithRequired([]string{"error", "code"}))

	for _, e := range g.endpoints {
		doc.AddOperation(e.Path, e.Method, operation(doc, e))
	}
	g.doc = doc
	return doc
}

// Handler serves the document as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := json.NewEncoder(w).Encode(g.Document()); err != nil {
			http.Error(w, "failed to encode OpenAPI document", http.StatusInternalServerError)
		}
	}
}

func operation(doc *openapi3.T, e Endpoint) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = e.OperationID
	op.Summary = e.Summary
	if e.Tag != "" {
		op.Tags = []string{e.Tag}
	}

	for _, name := range pathParams(e.Path) {
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}
	for _, q := range e.Query {
		schema := openapi3.NewStringSchema()
		if q.Integer {
			schema = openapi3.NewIntegerSchema()
		}
		p := openapi3.NewQueryParameter(q.Name).WithSchema(schema)
		p.Description = q.Description
		op.AddParameter(p)
	}

	if e.Request != nil {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(component(doc, e.Request)),
		}
	}

	ok := openapi3.NewResponse().WithDescription(http.StatusText(e.Status))
	if e.Response != nil {
		ok = ok.WithJSONSchemaRef(component(doc, e.Response))
	}
	op.AddResponse(e.Status, ok)
	op.Responses.Set("default", &openapi3.ResponseRef{Value: openapi3.NewResponse().
		WithDescription("Error").
		WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/Error", doc.Components.Schemas["Error"].Value))})
	return op
}

// component registers model under its type name and returns a reference
// that also carries the resolved schema, so the document validates without
// a loader pass.
func component(doc *openapi3.T, model any) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ref := "#/components/schemas/" + t.Name()
	if existing, ok := doc.Components.Schemas[t.Name()]; ok {
		return openapi3.NewSchemaRef(ref, existing.Value)
	}
	schema := schemaOf(t)
	doc.Components.Schemas[t.Name()] = openapi3.NewSchemaRef("", schema)
	return openapi3.NewSchemaRef(ref, schema)
}

// =============================================================================
// Reflection
// =============================================================================

var (
	timeType = reflect.TypeOf(time.Time{})
	rawType  = reflect.TypeOf(json.RawMessage(nil))
)

// schemaOf maps a Go type onto a schema the way encoding/json encodes it.
// Struct fields without omitempty are required.
func schemaOf(t reflect.Type) *openapi3.Schema {
	switch t {
	case timeType:
		return openapi3.NewDateTimeSchema()
	case rawType:
		return openapi3.NewSchema()
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema()
	case reflect.Bool:
		return openapi3.NewBoolSchema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return openapi3.NewInt32Schema()
	case reflect.Int64:
		return openapi3.NewInt64Schema()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().WithMin(0)
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema()
	case reflect.Pointer:
		return schemaOf(t.Elem()).WithNullable()
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return openapi3.NewBytesSchema()
		}
		return openapi3.NewArraySchema().WithItems(schemaOf(t.Elem())).WithNullable()
	case reflect.Array:
		return openapi3.NewArraySchema().WithItems(schemaOf(t.Elem()))
	case reflect.Map:
		return openapi3.NewObjectSchema().WithAdditionalProperties(schemaOf(t.Elem()))
	case reflect.Struct:
		return structSchema(t)
	}
	return openapi3.NewSchema()
}

func structSchema(t reflect.Type) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	var required []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitempty, skip := jsonName(f)
		if skip {
			continue
		}
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			embedded := structSchema(f.Type)
			for k, v := range embedded.Properties {
				s.Properties[k] = v
			}
			required = append(required, embedded.Required...)
			continue
		}
		if name == "" {
			name = f.Name
		}
		s.WithProperty(name, schemaOf(f.Type))
		if !omitempty {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		s.WithRequired(required)
	}
	return s
}

func jsonName(f reflect.StructField) (name string, omitempty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for _, o := range strings.Split(opts, ",") {
		if o == "omitempty" || o == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

// pathParams returns the {name} segments of a path template in order.
func pathParams(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if name, ok := strings.CutPrefix(seg, "{"); ok {
			out = append(out, strings.TrimSuffix(name, "}"))
		}
	}
	return out
}
