package openapi

import "github.com/getkin/kin-openapi/openapi3"

// Component schema names.
const (
	schemaError          = "ErrorResponse"
	schemaMessage        = "MessageResponse"
	schemaPost           = "Post"
	schemaPostInput      = "PostInput"
	schemaCategory       = "Category"
	schemaUser           = "User"
	schemaLoginRequest   = "LoginRequest"
	schemaLoginResponse  = "LoginResponse"
	schemaVerifyResponse = "VerifyResponse"
	schemaPasswordChange = "ChangePasswordRequest"
	schemaCSRFToken      = "CSRFTokenResponse"
	schemaReset          = "ResetResponse"
	schemaHealth         = "HealthResponse"
)

func str(description string) *openapi3.SchemaRef {
	s := openapi3.NewStringSchema()
	s.Description = description
	return s.NewRef()
}

func date(description string) *openapi3.SchemaRef {
	s := openapi3.NewStringSchema().WithFormat("date")
	s.Description = description
	return s.NewRef()
}

func int64Field(description string) *openapi3.SchemaRef {
	s := openapi3.NewInt64Schema()
	s.Description = description
	return s.NewRef()
}

func boolField(description string) *openapi3.SchemaRef {
	s := openapi3.NewBoolSchema()
	s.Description = description
	return s.NewRef()
}

func object(props openapi3.Schemas, required ...string) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Properties = props
	s.Required = required
	return s
}

// componentSchemas returns every schema referenced by the paths, keyed by
// component name. The fields follow the JSON tags of the model package.
func componentSchemas() openapi3.Schemas {
	user := object(openapi3.Schemas{
		"id":       int64Field("Identity id."),
		"username": str(""),
		"role":     str("Always \"admin\"."),
	}, "id", "username", "role")

	post := object(openapi3.Schemas{
		"id":              int64Field("Post id, assigned on create."),
		"title":           str("Sanitized HTML title."),
		"slug":            str("URL slug, unique among posts."),
		"excerpt":         str("Sanitized HTML summary."),
		"content":         str("Sanitized HTML body."),
		"coverImage":      str("Cover image URL."),
		"category":        str("Category display name."),
		"categorySlug":    str("Derived from category."),
		"author":          str(""),
		"publishedAt":     date("Publication date."),
		"metaTitle":       str(""),
		"metaDescription": str(""),
		"featured":        boolField("Shown on the home page."),
		"readingTime":     int64Field("Minutes, derived from content."),
	}, "id", "title", "slug", "excerpt", "content", "category", "categorySlug", "publishedAt", "readingTime")

	input := object(openapi3.Schemas{
		"title":           str("Required on create and update."),
		"slug":            str("Generated from the title when absent."),
		"excerpt":         str("Required on create."),
		"content":         str("Required on create."),
		"coverImage":      str(""),
		"category":        str("Required on create."),
		"author":          str(""),
		"publishedAt":     date("Defaults to today."),
		"metaTitle":       str(""),
		"metaDescription": str(""),
		"featured":        boolField(""),
	})

	return openapi3.Schemas{
		schemaError:     object(openapi3.Schemas{"error": str("User facing message.")}, "error").NewRef(),
		schemaMessage:   object(openapi3.Schemas{"message": str("")}, "message").NewRef(),
		schemaUser:      user.NewRef(),
		schemaPost:      post.NewRef(),
		schemaPostInput: input.NewRef(),
		schemaCategory: object(openapi3.Schemas{
			"id":    str("Category slug."),
			"name":  str(""),
			"color": str("CSS color."),
		}, "id", "name", "color").NewRef(),
		schemaLoginRequest: object(openapi3.Schemas{
			"username": str(""),
			"password": str(""),
		}, "username", "password").NewRef(),
		schemaLoginResponse: object(openapi3.Schemas{
			"message": str(""),
			"token":   str("Bearer token."),
			"user":    ref(schemaUser, user),
		}, "message", "token", "user").NewRef(),
		schemaVerifyResponse: object(openapi3.Schemas{
			"valid": boolField(""),
			"user":  ref(schemaUser, user),
		}, "valid", "user").NewRef(),
		schemaPasswordChange: object(openapi3.Schemas{
			"currentPassword": str(""),
			"newPassword":     str("At least 8 characters."),
		}, "currentPassword", "newPassword").NewRef(),
		schemaCSRFToken: object(openapi3.Schemas{
			"csrfToken": str("Send back in the X-CSRF-Token header."),
		}, "csrfToken").NewRef(),
		schemaReset: object(openapi3.Schemas{
			"message": str(""),
			"posts":   openapi3.NewArraySchema().WithItems(post).NewRef(),
		}, "message", "posts").NewRef(),
		schemaHealth: object(openapi3.Schemas{
			"status":    str(""),
			"timestamp": str("RFC 3339, UTC."),
		}, "status", "timestamp").NewRef(),
	}
}

// ref points at a component schema. The value is kept alongside the
// reference so the document validates without a loader pass.
func ref(name string, value *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, value)
}
