// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package docs holds the OpenAPI document for the internal API, generated by
// swag from the handler annotations in internal/api and the general info in
// cmd/server/docs.go. Importing it registers the document with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/emit/room/{room}": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "description": "Broadcasts to every connection joined to the room. Rooms are user:<id> or conversation:<id>.",
                "parameters": [
                    {
                        "description": "Room ID, e.g. conversation:42",
                        "in": "path",
                        "name": "room",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "description": "Event name and payload",
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/realtime.EmitRequest"
                        }
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Connections reached",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.APIResponse"
                                },
                                {
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.emitResult"
                                        }
                                    },
                                    "type": "object"
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Malformed room or event",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or wrong internal token",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "summary": "Push an event to a room",
                "tags": [
                    "Internal"
                ]
            }
        },
        "/emit/user/{userID}": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "description": "Queues the event on each live connection of the user. An offline user is not an error; delivered is 0.",
                "parameters": [
                    {
                        "description": "Recipient user ID",
                        "in": "path",
                        "name": "userID",
                        "required": true,
                        "type": "integer"
                    },
                    {
                        "description": "Event name and payload",
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/realtime.EmitRequest"
                        }
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Connections reached",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.APIResponse"
                                },
                                {
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.emitResult"
                                        }
                                    },
                                    "type": "object"
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Invalid user ID or event",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or wrong internal token",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "summary": "Push an event to every connection of a user",
                "tags": [
                    "Internal"
                ]
            }
        },
        "/notifications": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "description": "Persists the notification, then pushes new_notification to the recipient if online.",
                "parameters": [
                    {
                        "description": "Notification",
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/models.NewNotification"
                        }
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "Notification created",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.APIResponse"
                                },
                                {
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.Notification"
                                        }
                                    },
                                    "type": "object"
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or wrong internal token",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    },
                    "503": {
                        "description": "Store unavailable",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "summary": "Store and deliver a notification",
                "tags": [
                    "Internal"
                ]
            }
        },
        "/notifications/kinds": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Kind names, sorted",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.APIResponse"
                                },
                                {
                                    "properties": {
                                        "data": {
                                            "items": {
                                                "type": "string"
                                            },
                                            "type": "array"
                                        }
                                    },
                                    "type": "object"
                                }
                            ]
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "summary": "List notification kinds",
                "tags": [
                    "Internal"
                ]
            }
        },
        "/notifications/{kind}": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "description": "Builds recipients and messages for the kind (follow, reaction, comment, mention, new_story, friend requests). The body shape depends on the kind; see GET /notifications/kinds.",
                "parameters": [
                    {
                        "description": "Notification kind",
                        "in": "path",
                        "name": "kind",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "description": "Kind-specific request",
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Notifications created",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.APIResponse"
                                },
                                {
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/realtime.KindResult"
                                        }
                                    },
                                    "type": "object"
                                }
                            ]
                        }
                    },
                    "207": {
                        "description": "Some recipients failed",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.APIResponse"
                                },
                                {
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/realtime.KindResult"
                                        }
                                    },
                                    "type": "object"
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    },
                    "404": {
                        "description": "Unknown kind",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    },
                    "503": {
                        "description": "Store unavailable",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "summary": "Produce notifications of a known kind",
                "tags": [
                    "Internal"
                ]
            }
        },
        "/presence/{userID}": {
            "get": {
                "parameters": [
                    {
                        "description": "User ID",
                        "in": "path",
                        "name": "userID",
                        "required": true,
                        "type": "integer"
                    }
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Presence",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.APIResponse"
                                },
                                {
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/realtime.Presence"
                                        }
                                    },
                                    "type": "object"
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Invalid user ID",
                        "schema": {
                            "$ref": "#/definitions/api.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "summary": "Report whether a user is connected",
                "tags": [
                    "Internal"
                ]
            }
        }
    },
    "definitions": {
        "api.APIError": {
            "properties": {
                "code": {
                    "description": "Code is a machine-readable error code",
                    "type": "string"
                },
                "details": {
                    "description": "Details contains additional error details (optional)"
                },
                "message": {
                    "description": "Message is a human-readable error message",
                    "type": "string"
                },
                "request_id": {
                    "type": "string"
                }
            },
            "type": "object"
        },
        "api.APIMeta": {
            "properties": {
                "duration_ms": {
                    "type": "integer"
                },
                "request_id": {
                    "type": "string"
                },
                "timestamp": {
                    "type": "string"
                }
            },
            "type": "object"
        },
        "api.APIResponse": {
            "properties": {
                "data": {},
                "error": {
                    "$ref": "#/definitions/api.APIError"
                },
                "meta": {
                    "$ref": "#/definitions/api.APIMeta"
                },
                "success": {
                    "type": "boolean"
                }
            },
            "type": "object"
        },
        "api.emitResult": {
            "properties": {
                "delivered": {
                    "type": "integer"
                }
            },
            "type": "object"
        },
        "models.NewNotification": {
            "properties": {
                "actorId": {
                    "type": "integer"
                },
                "message": {
                    "maxLength": 500,
                    "type": "string"
                },
                "metadata": {
                    "type": "object"
                },
                "targetId": {
                    "type": "integer"
                },
                "targetType": {
                    "maxLength": 64,
                    "type": "string"
                },
                "type": {
                    "maxLength": 64,
                    "type": "string"
                },
                "userId": {
                    "type": "integer"
                }
            },
            "required": [
                "message",
                "type",
                "userId"
            ],
            "type": "object"
        },
        "models.Notification": {
            "properties": {
                "actor_id": {
                    "type": "integer"
                },
                "created_at": {
                    "type": "string"
                },
                "id": {
                    "type": "integer"
                },
                "is_read": {
                    "type": "boolean"
                },
                "message": {
                    "type": "string"
                },
                "metadata": {
                    "type": "object"
                },
                "read_at": {
                    "type": "string"
                },
                "target_id": {
                    "type": "integer"
                },
                "target_type": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                },
                "user_id": {
                    "type": "integer"
                }
            },
            "type": "object"
        },
        "realtime.EmitRequest": {
            "properties": {
                "data": {
                    "type": "object"
                },
                "event": {
                    "type": "string"
                }
            },
            "required": [
                "event"
            ],
            "type": "object"
        },
        "realtime.KindResult": {
            "properties": {
                "delivered": {
                    "type": "integer"
                },
                "notifications": {
                    "items": {
                        "$ref": "#/definitions/models.Notification"
                    },
                    "type": "array"
                }
            },
            "type": "object"
        },
        "realtime.Presence": {
            "properties": {
                "connections": {
                    "type": "integer"
                },
                "online": {
                    "type": "boolean"
                },
                "userId": {
                    "type": "integer"
                }
            },
            "type": "object"
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Shared internal token, sent as \"Bearer \u003ctoken\u003e\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "description": "Collaborator commands and presence lookups",
            "name": "Internal"
        }
    ]
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1/internal",
	Schemes:          []string{"http", "https"},
	Title:            "Townsquare Internal API",
	Description:      "Emit and notify commands for write-path services, plus presence lookups.\n\n## Authentication\n\nEvery route requires `Authorization: Bearer <INTERNAL_API_TOKEN>`.\nWhen no token is configured the routes answer 503.\n\n## Error Responses\n\n```json\n{\n  \"success\": false,\n  \"error\": {\"code\": \"VALIDATION_FAILED\", \"message\": \"userId must be greater than 0\"},\n  \"meta\": {\"request_id\": \"...\", \"timestamp\": \"2026-01-01T00:00:00Z\"}\n}\n```",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
