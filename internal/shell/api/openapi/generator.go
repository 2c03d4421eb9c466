// Package openapi provides reflective OpenAPI 3.0 specification generation.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces an OpenAPI 3.0 document from registered routes,
// reflecting request and response schemas from Go types.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	routes      []Route
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// Route describes one operation.
type Route struct {
	Method  string // HTTP method
	Path    string // chi pattern, e.g. /api/v1/projects/{id}
	Summary string
	Tag     string
	Request any // request body model, nil for none
	// Response is the success body model. nil documents an empty body.
	Response any
	// List wraps Response in {data, limit, offset}.
	List bool
	// Status is the success status code, default 200.
	Status int
	// Query lists the accepted query parameters.
	Query []string
	// Public marks operations that need no credentials.
	Public bool
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "keyhours API",
		version:     "1.0.0",
		description: "Community service hour tracking",
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.servers) == 0 {
		g.servers = []string{"http://localhost:8080"}
	}
	return g
}

// Register adds routes to the document.
func (g *Generator) Register(routes ...Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, routes...)
	g.cachedSpec = nil
}

// Generate produces the complete OpenAPI 3.0 specification.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
			SecuritySchemes: openapi3.SecuritySchemes{
				"bearerAuth": &openapi3.SecuritySchemeRef{
					Value: openapi3.NewJWTSecurityScheme(),
				},
			},
		},
	}
	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	b := &builder{schemas: spec.Components.Schemas}
	b.addErrorSchema()

	routes := append([]Route(nil), g.routes...)
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	for _, rt := range routes {
		item := spec.Paths.Value(rt.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			spec.Paths.Set(rt.Path, item)
		}
		item.SetOperation(strings.ToUpper(rt.Method), b.operation(rt))
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the OpenAPI specification.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Operation Generation
// =============================================================================

type builder struct {
	schemas openapi3.Schemas
}

var pathParam = regexp.MustCompile(`\{([^}]+)\}`)

func (b *builder) operation(rt Route) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: operationID(rt.Method, rt.Path),
		Summary:     rt.Summary,
		Tags:        []string{rt.Tag},
		Responses:   &openapi3.Responses{},
	}
	if rt.Public {
		op.Security = &openapi3.SecurityRequirements{}
	} else {
		op.Security = openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate("bearerAuth"))
	}

	for _, m := range pathParam.FindAllStringSubmatch(rt.Path, -1) {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(m[1]).WithSchema(openapi3.NewInt64Schema()),
		})
	}
	for _, q := range rt.Query {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(q).WithSchema(openapi3.NewStringSchema()),
		})
	}
	if rt.List {
		for _, q := range []string{"limit", "offset"} {
			op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
				Value: openapi3.NewQueryParameter(q).WithSchema(openapi3.NewIntegerSchema()),
			})
		}
	}

	if rt.Request != nil {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(b.schemaFor(reflect.TypeOf(rt.Request))),
		}
	}

	status := rt.Status
	if status == 0 {
		status = http.StatusOK
	}
	success := openapi3.NewResponse().WithDescription(http.StatusText(status))
	if rt.Response != nil {
		ref := b.schemaFor(reflect.TypeOf(rt.Response))
		if rt.List {
			page := openapi3.NewObjectSchema()
			page.Properties = openapi3.Schemas{
				"data":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref}},
				"limit":  openapi3.NewIntegerSchema().NewRef(),
				"offset": openapi3.NewIntegerSchema().NewRef(),
			}
			ref = page.NewRef()
		}
		success.WithJSONSchemaRef(ref)
	}
	op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: success})

	errRef := &openapi3.SchemaRef{Ref: "#/components/schemas/Error"}
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		op.Responses.Set(strconv.Itoa(code), &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription(http.StatusText(code)).WithJSONSchemaRef(errRef),
		})
	}
	return op
}

// =============================================================================
// Schema Generation
// =============================================================================

func (b *builder) addErrorSchema() {
	b.schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": openapi3.NewStringSchema().NewRef(),
				"code":  openapi3.NewStringSchema().NewRef(),
				"field": openapi3.NewStringSchema().NewRef(),
			},
			Required: []string{"error", "code"},
		},
	}
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	jsonMarshalType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// schemaFor returns a schema for t. Named structs become components and
// are referenced.
func (b *builder) schemaFor(t reflect.Type) *openapi3.SchemaRef {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return openapi3.NewDateTimeSchema().NewRef()
	}
	// Types with their own JSON encoding (hours, clock times) are strings
	// on the wire.
	if t.Kind() != reflect.Struct && t.Implements(jsonMarshalType) {
		return openapi3.NewStringSchema().NewRef()
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return openapi3.NewInt32Schema().NewRef()
	case reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewInt64Schema().NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Slice, reflect.Array:
		arr := openapi3.NewArraySchema()
		arr.Items = b.schemaFor(t.Elem())
		return arr.NewRef()
	case reflect.Map:
		obj := openapi3.NewObjectSchema()
		obj.AdditionalProperties = openapi3.AdditionalProperties{Schema: b.schemaFor(t.Elem())}
		return obj.NewRef()
	case reflect.Struct:
		name := t.Name()
		if name == "" || strings.Contains(name, "[") {
			return &openapi3.SchemaRef{Value: b.structSchema(t)}
		}
		if _, ok := b.schemas[name]; !ok {
			// Reserve the name before recursing so self-references terminate.
			b.schemas[name] = &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
			b.schemas[name] = &openapi3.SchemaRef{Value: b.structSchema(t)}
		}
		return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

// structSchema builds an object schema from exported fields, flattening
// embedded structs the way encoding/json does.
func (b *builder) structSchema(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Properties = make(openapi3.Schemas)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		parts := strings.Split(jsonTag, ",")

		ft := field.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if field.Anonymous && parts[0] == "" && ft.Kind() == reflect.Struct {
			for name, prop := range b.structSchema(ft).Properties {
				if _, exists := schema.Properties[name]; !exists {
					schema.Properties[name] = prop
				}
			}
			continue
		}

		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}
		prop := b.schemaFor(field.Type)
		if field.Type.Kind() == reflect.Ptr && prop.Ref == "" {
			prop.Value.Nullable = true
		}
		schema.Properties[name] = prop

		if strings.Contains(field.Tag.Get("validate"), "required") {
			schema.Required = append(schema.Required, name)
		}
	}
	sort.Strings(schema.Required)
	return schema
}

// =============================================================================
// Helpers
// =============================================================================

// operationID derives an id such as "postProjectsIdJoin".
func operationID(method, path string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/api/v1"), "/") {
		seg = strings.Trim(seg, "{}")
		for _, word := range strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' }) {
			sb.WriteString(capitalize(word))
		}
	}
	return sb.String()
}

// capitalize returns the string with the first letter capitalized.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
