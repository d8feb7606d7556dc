// Package openapi builds the OpenAPI 3.1 document describing the gateway's
// HTTP surface.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Build assembles the spec. The surface is small and fixed, so the document
// is constructed once at startup rather than generated per request.
func Build() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "ForumGate API",
			Description: "API-key gated registration and login for a forum, plus the admin surface that manages the keys.",
			Version:     "1.0.0",
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "http",
			Scheme:      "bearer",
			Description: "An API key value for the gated endpoints, or an admin session JWT for the system endpoints.",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Components.Schemas["ErrorResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"error": objectSchema(map[string]*openapi3.SchemaRef{
			"code":    intSchema(),
			"message": stringSchema(),
			"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		}),
	})
	doc.Components.Schemas["UserErrors"] = objectSchema(map[string]*openapi3.SchemaRef{
		"errors": &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:        &openapi3.Types{"object"},
				Description: "Error codes mapped to localized messages.",
				AdditionalProperties: openapi3.AdditionalProperties{
					Schema: stringSchema(),
				},
			},
		},
	})
	doc.Components.Schemas["APIKey"] = objectSchema(map[string]*openapi3.SchemaRef{
		"id":            intSchema(),
		"name":          stringSchema(),
		"value":         stringSchema(),
		"allowed_ips":   stringSchema(),
		"perm_register": boolSchema(),
		"perm_login":    boolSchema(),
		"perm_manage":   boolSchema(),
	})

	doc.Paths = openapi3.NewPaths()

	doc.Paths.Set("/api/users/register", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "registerUser",
			Summary:     "Register a forum account",
			Description: "Requires a key with the register permission; without it the route answers 404.",
			RequestBody: jsonBody(objectSchema(map[string]*openapi3.SchemaRef{
				"username":   stringSchema(),
				"password":   stringSchema(),
				"email":      stringSchema(),
				"ip_address": stringSchema(),
				"is_coppa":   boolSchema(),
			})),
			Responses: responses(map[string]*openapi3.Response{
				"200": jsonResponse("Created account, or an errors map on validation failure",
					objectSchema(map[string]*openapi3.SchemaRef{
						"user_id":  intSchema(),
						"username": stringSchema(),
						"email":    stringSchema(),
					})),
				"404": plainResponse("Key missing or lacking the register permission"),
			}),
		},
	})

	doc.Paths.Set("/api/users/login", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "loginUser",
			Summary:     "Authenticate a forum account",
			Description: "Requires a key with the login permission; without it the route answers 404.",
			RequestBody: jsonBody(objectSchema(map[string]*openapi3.SchemaRef{
				"username": stringSchema(),
				"password": stringSchema(),
			})),
			Responses: responses(map[string]*openapi3.Response{
				"200": jsonResponse("The account id, or an errors map on failure",
					objectSchema(map[string]*openapi3.SchemaRef{
						"user_id": intSchema(),
					})),
				"404": plainResponse("Key missing or lacking the login permission"),
			}),
		},
	})

	doc.Paths.Set("/api/v1/system/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "adminLogin",
			Summary:     "Open an admin session",
			RequestBody: jsonBody(objectSchema(map[string]*openapi3.SchemaRef{
				"email":    stringSchema(),
				"password": stringSchema(),
			})),
			Responses: responses(map[string]*openapi3.Response{
				"200": jsonResponse("Session token", objectSchema(map[string]*openapi3.SchemaRef{
					"session_token": stringSchema(),
					"token_type":    stringSchema(),
					"expires_in":    intSchema(),
					"admin_id":      intSchema(),
					"email":         stringSchema(),
					"name":          stringSchema(),
				})),
				"401": refResponse("Invalid credentials"),
			}),
		},
		Delete: &openapi3.Operation{
			OperationID: "adminLogout",
			Summary:     "Close the admin session",
			Responses: responses(map[string]*openapi3.Response{
				"200": plainResponse("Session invalidated"),
			}),
		},
	})

	doc.Paths.Set("/api/v1/system/keys", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listKeys",
			Summary:     "List API keys, values included",
			Responses: responses(map[string]*openapi3.Response{
				"200": jsonResponse("Key list", objectSchema(map[string]*openapi3.SchemaRef{
					"resource": arraySchema(refSchema("APIKey")),
				})),
				"401": refResponse("Authentication required"),
			}),
		},
		Post: &openapi3.Operation{
			OperationID: "createKey",
			Summary:     "Create an API key",
			Description: "The key value is generated server-side and returned once stored.",
			RequestBody: jsonBody(objectSchema(map[string]*openapi3.SchemaRef{
				"name":          stringSchema(),
				"allowed_ips":   stringSchema(),
				"perm_register": boolSchema(),
				"perm_login":    boolSchema(),
				"perm_manage":   boolSchema(),
			})),
			Responses: responses(map[string]*openapi3.Response{
				"201": jsonResponse("The stored key", refSchema("APIKey")),
				"400": refResponse("Validation failed"),
				"401": refResponse("Authentication required"),
			}),
		},
	})

	doc.Paths.Set("/api/v1/system/keys/{keyID}", &openapi3.PathItem{
		Delete: &openapi3.Operation{
			OperationID: "deleteKey",
			Summary:     "Delete an API key",
			Description: "Without ?confirm=true the call only echoes what would be deleted.",
			Parameters: openapi3.Parameters{
				{Value: &openapi3.Parameter{
					Name: "keyID", In: "path", Required: true,
					Schema: intSchema(),
				}},
				{Value: &openapi3.Parameter{
					Name: "confirm", In: "query",
					Schema: boolSchema(),
				}},
			},
			Responses: responses(map[string]*openapi3.Response{
				"200": plainResponse("Deleted, or the confirmation prompt"),
				"404": refResponse("Key not found"),
				"401": refResponse("Authentication required"),
			}),
		},
	})

	doc.Paths.Set("/api/v1/system/admins", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listAdmins",
			Summary:     "List admin accounts",
			Responses: responses(map[string]*openapi3.Response{
				"200": plainResponse("Admin list"),
				"401": refResponse("Admin session required"),
			}),
		},
		Post: &openapi3.Operation{
			OperationID: "createAdmin",
			Summary:     "Create an admin account",
			RequestBody: jsonBody(objectSchema(map[string]*openapi3.SchemaRef{
				"email":    stringSchema(),
				"password": stringSchema(),
				"name":     stringSchema(),
			})),
			Responses: responses(map[string]*openapi3.Response{
				"201": plainResponse("Created admin"),
				"401": refResponse("Admin session required"),
			}),
		},
	})

	doc.Paths.Set("/api/v1/system/audit", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listAudit",
			Summary:     "List recent audit entries",
			Parameters: openapi3.Parameters{
				{Value: &openapi3.Parameter{
					Name: "limit", In: "query",
					Schema: intSchema(),
				}},
			},
			Responses: responses(map[string]*openapi3.Response{
				"200": plainResponse("Audit entries, newest first"),
				"401": refResponse("Admin session required"),
			}),
		},
	})

	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "healthz",
			Summary:     "Liveness probe",
			Security:    &openapi3.SecurityRequirements{},
			Responses: responses(map[string]*openapi3.Response{
				"200": plainResponse("Process is running"),
			}),
		},
	})

	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "readyz",
			Summary:     "Readiness probe",
			Security:    &openapi3.SecurityRequirements{},
			Responses: responses(map[string]*openapi3.Response{
				"200": plainResponse("Store and board database reachable"),
				"503": plainResponse("A dependency is unreachable"),
			}),
		},
	})

	return doc
}

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func intSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

func objectSchema(props map[string]*openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
	}}
}

func arraySchema(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: items,
	}}
}

func refSchema(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
}

func jsonBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func jsonResponse(description string, schema *openapi3.SchemaRef) *openapi3.Response {
	return &openapi3.Response{
		Description: &description,
		Content:     openapi3.NewContentWithJSONSchemaRef(schema),
	}
}

func plainResponse(description string) *openapi3.Response {
	return &openapi3.Response{Description: &description}
}

func refResponse(description string) *openapi3.Response {
	return &openapi3.Response{
		Description: &description,
		Content:     openapi3.NewContentWithJSONSchemaRef(refSchema("ErrorResponse")),
	}
}

func responses(byStatus map[string]*openapi3.Response) *openapi3.Responses {
	out := openapi3.NewResponses()
	for status, resp := range byStatus {
		out.Set(status, &openapi3.ResponseRef{Value: resp})
	}
	return out
}
