// Package docs registers the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "email": "support@bizmatters.dev"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/intentions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["intentions"],
                "summary": "List intentions",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Get workspace",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/session/source": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Replace source code",
                "parameters": [
                    {"description": "Source code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/gateway.SetSourceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/session/intentions": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Replace selected intentions",
                "parameters": [
                    {"description": "Intention ids", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/gateway.SetIntentionsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Clear the selection",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/session/intentions/all": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Select every intention",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/session/intentions/{id}/toggle": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Toggle one intention",
                "parameters": [
                    {"type": "string", "description": "Intention ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/session/sample": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Load the sample source code",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/session/reset": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Reset the workspace",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/session/reload": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Reload the workspace from storage",
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/harmonize/readiness": {
            "get": {
                "produces": ["application/json"],
                "tags": ["harmonize"],
                "summary": "Check whether a run can start",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/harmonize": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["harmonize"],
                "summary": "Run a harmonization",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/ws/harmonize": {
            "get": {
                "tags": ["harmonize"],
                "summary": "Run a harmonization and stream its progress",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/audit": {
            "get": {
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Get the current audit record",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/audit/export": {
            "get": {
                "produces": ["application/json", "application/yaml"],
                "tags": ["audit"],
                "summary": "Download the audit record",
                "parameters": [
                    {"type": "string", "default": "json", "description": "json or yaml", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/audit/rollback": {
            "post": {
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Discard the last result",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "gateway.SetSourceRequest": {
            "type": "object",
            "required": ["sourceCode"],
            "properties": {"sourceCode": {"type": "string"}}
        },
        "gateway.SetIntentionsRequest": {
            "type": "object",
            "properties": {"intentions": {"type": "array", "items": {"type": "string"}}}
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}},
                "error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Code Harmonizer API",
	Description:      "Applies selected improvement intentions to source code and keeps an audit trail of each run.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
