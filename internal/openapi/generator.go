// Package openapi builds the OpenAPI 3 document describing the blog API.
package openapi

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

// Version is the document version reported in info.version.
const Version = "1.0.0"

// Security scheme names.
const (
	bearerScheme = "bearerAuth"
	csrfScheme   = "csrfToken"
)

type generator struct {
	doc     *openapi3.T
	schemas openapi3.Schemas
}

// Generate returns the OpenAPI document of the HTTP API served under
// baseURL (for example "http://localhost:3001"). An empty baseURL omits the
// servers list.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Cabinet API",
			Description: "Blog and administration API of the practice website.",
			Version:     Version,
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		bearerScheme: &openapi3.SecuritySchemeRef{
			Value: openapi3.NewJWTSecurityScheme(),
		},
		csrfScheme: &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:        "apiKey",
				In:          "header",
				Name:        "X-CSRF-Token",
				Description: "Token from GET /api/csrf-token, paired with the csrf-secret cookie.",
			},
		},
	}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	g := &generator{doc: doc, schemas: components.Schemas}
	g.addSystemPaths()
	g.addAuthPaths()
	g.addPostPaths()
	return doc
}

func (g *generator) addSystemPaths() {
	g.doc.Paths.Set("/api/health", &openapi3.PathItem{
		Get: g.operation("system", "getHealth", "Liveness probe", g.responses(200, "Service is up", schemaHealth)),
	})
	g.doc.Paths.Set("/api/csrf-token", &openapi3.PathItem{
		Get: g.operation("system", "getCsrfToken", "Issue a CSRF token and set the csrf-secret cookie",
			g.responses(200, "CSRF token", schemaCSRFToken, 500)),
	})
	g.doc.Paths.Set("/api/openapi.json", &openapi3.PathItem{
		Get: g.operation("system", "getOpenAPI", "This document", g.responses(200, "OpenAPI document", "")),
	})
}

func (g *generator) addAuthPaths() {
	login := g.operation("auth", "login", "Exchange credentials for a bearer token",
		g.responses(200, "Logged in", schemaLoginResponse, 400, 401, 429))
	login.RequestBody = g.body(schemaLoginRequest)
	g.doc.Paths.Set("/api/auth/login", &openapi3.PathItem{Post: login})

	verify := g.operation("auth", "verifyToken", "Check a bearer token",
		g.responses(200, "Token is valid", schemaVerifyResponse, 401, 403))
	bearer(verify)
	g.doc.Paths.Set("/api/auth/verify", &openapi3.PathItem{Post: verify})

	change := g.operation("auth", "changePassword", "Change the admin password",
		g.responses(200, "Password changed", schemaMessage, 400, 401, 403))
	change.RequestBody = g.body(schemaPasswordChange)
	mutating(change)
	g.doc.Paths.Set("/api/auth/change-password", &openapi3.PathItem{Post: change})
}

func (g *generator) addPostPaths() {
	list := g.operation("posts", "listPosts", "List posts, newest first",
		g.responses(200, "Posts", "", 500))
	list.Responses.Value("200").Value.Content = openapi3.NewContentWithJSONSchemaRef(
		openapi3.NewArraySchema().WithItems(g.schemas[schemaPost].Value).NewRef())
	list.Parameters = openapi3.Parameters{
		query("category", "Category slug; \"all\" matches every post.", openapi3.NewStringSchema()),
		query("featured", "Only featured posts when true.", openapi3.NewBoolSchema()),
		query("limit", "Maximum number of posts.", openapi3.NewIntegerSchema().WithMin(1)),
	}

	create := g.operation("posts", "createPost", "Create a post",
		g.responses(201, "Created post", schemaPost, 400, 401, 403, 409))
	create.RequestBody = g.body(schemaPostInput)
	mutating(create)
	g.doc.Paths.Set("/api/posts", &openapi3.PathItem{Get: list, Post: create})

	cats := g.operation("posts", "listCategories", "List blog categories",
		g.responses(200, "Categories", "", 500))
	cats.Responses.Value("200").Value.Content = openapi3.NewContentWithJSONSchemaRef(
		openapi3.NewArraySchema().WithItems(g.schemas[schemaCategory].Value).NewRef())
	g.doc.Paths.Set("/api/posts/categories", &openapi3.PathItem{Get: cats})

	bySlug := g.operation("posts", "getPostBySlug", "Get a post by slug",
		g.responses(200, "Post", schemaPost, 404))
	bySlug.Parameters = openapi3.Parameters{path("slug", openapi3.NewStringSchema())}
	g.doc.Paths.Set("/api/posts/slug/{slug}", &openapi3.PathItem{Get: bySlug})

	reset := g.operation("posts", "resetPosts", "Replace every post with the default set",
		g.responses(200, "Default posts", schemaReset, 401, 403))
	mutating(reset)
	g.doc.Paths.Set("/api/posts/reset", &openapi3.PathItem{Post: reset})

	idParam := openapi3.Parameters{path("id", openapi3.NewInt64Schema().WithMin(1))}

	get := g.operation("posts", "getPost", "Get a post by id",
		g.responses(200, "Post", schemaPost, 401, 403, 404))
	bearer(get)

	update := g.operation("posts", "updatePost", "Update a post",
		g.responses(200, "Updated post", schemaPost, 400, 401, 403, 404, 409))
	update.RequestBody = g.body(schemaPostInput)
	mutating(update)

	del := g.operation("posts", "deletePost", "Delete a post",
		g.responses(200, "Deleted", schemaMessage, 401, 403, 404))
	mutating(del)

	g.doc.Paths.Set("/api/posts/{id}", &openapi3.PathItem{
		Parameters: idParam,
		Get:        get,
		Put:        update,
		Delete:     del,
	})
}

func (g *generator) operation(tag, id, summary string, responses *openapi3.Responses) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		OperationID: id,
		Summary:     summary,
		Responses:   responses,
	}
}

func (g *generator) body(schema string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchemaRef(g.ref(schema)),
	}
}

// responses builds the success response and one ErrorResponse entry per
// error status. An empty schema yields a generic object body.
func (g *generator) responses(status int, description, schema string, errorStatuses ...int) *openapi3.Responses {
	responses := openapi3.NewResponsesWithCapacity(1 + len(errorStatuses))

	ok := openapi3.NewResponse().WithDescription(description)
	if schema != "" {
		ok.Content = openapi3.NewContentWithJSONSchemaRef(g.ref(schema))
	} else {
		ok.Content = openapi3.NewContentWithJSONSchema(openapi3.NewObjectSchema())
	}
	responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: ok})

	for _, code := range errorStatuses {
		resp := openapi3.NewResponse().
			WithDescription(errorDescription(code)).
			WithJSONSchemaRef(g.ref(schemaError))
		responses.Set(strconv.Itoa(code), &openapi3.ResponseRef{Value: resp})
	}
	return responses
}

func (g *generator) ref(name string) *openapi3.SchemaRef {
	return ref(name, g.schemas[name].Value)
}

func errorDescription(code int) string {
	switch code {
	case 400:
		return "Invalid or missing fields"
	case 401:
		return "Missing, expired or rejected credentials"
	case 403:
		return "Invalid token or CSRF check failed"
	case 404:
		return "Not found"
	case 409:
		return "Slug already used"
	case 429:
		return "Too many requests"
	default:
		return "Internal error"
	}
}

func bearer(op *openapi3.Operation) {
	op.Security = &openapi3.SecurityRequirements{{bearerScheme: {}}}
}

// mutating marks an operation as requiring both the bearer token and the
// CSRF header.
func mutating(op *openapi3.Operation) {
	op.Security = &openapi3.SecurityRequirements{{bearerScheme: {}, csrfScheme: {}}}
}

func query(name, description string, schema *openapi3.Schema) *openapi3.ParameterRef {
	p := openapi3.NewQueryParameter(name).WithSchema(schema)
	p.Description = description
	return &openapi3.ParameterRef{Value: p}
}

func path(name string, schema *openapi3.Schema) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{Value: openapi3.NewPathParameter(name).WithSchema(schema)}
}
