package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Portal API",
        "description": "Student dashboard views, live change streams and AI tutoring relay",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and token introspection"},
        {"name": "Students", "description": "Signed-in student's dashboard view"},
        {"name": "Tutor", "description": "AI tutoring relay"},
        {"name": "Bootstrap", "description": "One-time administrator provisioning"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/me/view": {
            "get": {
                "tags": ["Students"],
                "summary": "Current student view",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ViewStateEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student record not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/me/view/stream": {
            "get": {
                "tags": ["Students"],
                "summary": "Live student view",
                "description": "Server-Sent Events. Each transition is sent as event 'state' carrying a ViewState; idle streams receive ': ping' comments.",
                "produces": ["text/event-stream"],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Event stream", "schema": {"$ref": "#/definitions/ViewState"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/students/me/report": {
            "get": {
                "tags": ["Students"],
                "summary": "Progress report",
                "produces": ["application/pdf", "text/csv"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["pdf", "csv"], "default": "pdf"}
                ],
                "responses": {
                    "200": {"description": "Report file", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student record not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student-ai-chat": {
            "post": {
                "tags": ["Tutor"],
                "summary": "AI tutor chat",
                "description": "Relays the conversation to the model provider and streams its events back unmodified.",
                "produces": ["text/event-stream", "application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TutorChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "Provider event stream"},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/EdgeError"}},
                    "402": {"description": "Provider unavailable", "schema": {"$ref": "#/definitions/EdgeError"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/EdgeError"}},
                    "500": {"description": "Provider error or missing credential", "schema": {"$ref": "#/definitions/EdgeError"}}
                }
            }
        },
        "/bootstrap-admin": {
            "post": {
                "tags": ["Bootstrap"],
                "summary": "Create the first admin",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BootstrapAdminRequest"}}
                ],
                "responses": {
                    "200": {"description": "Created", "schema": {"$ref": "#/definitions/EdgeSuccess"}},
                    "400": {"description": "Admin exists, invalid input or create failure", "schema": {"$ref": "#/definitions/EdgeError"}},
                    "500": {"description": "Not configured or role grant failed", "schema": {"$ref": "#/definitions/EdgeError"}}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        },
        "ViewStateEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ViewState"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "StudentView": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "roll_number": {"type": "string"},
                "status": {"type": "string"},
                "residence_type": {"type": "string"},
                "village_address": {"type": "string"},
                "parent_phone": {"type": "string"},
                "full_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "class": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "section": {"type": "string"}}},
                "academic_year": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}}},
                "current_streak_days": {"type": "integer"},
                "longest_streak_days": {"type": "integer"},
                "total_tasks_completed": {"type": "integer"},
                "confidence_score": {"type": "number"},
                "last_activity_date": {"type": "string", "format": "date-time"},
                "father_name": {"type": "string"},
                "mother_name": {"type": "string"},
                "father_occupation": {"type": "string"},
                "mother_occupation": {"type": "string"}
            }
        },
        "SubjectView": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string"},
                "name": {"type": "string"},
                "code": {"type": "string"},
                "proficiency_level": {"type": "string"},
                "score": {"type": "number"}
            }
        },
        "ViewState": {
            "type": "object",
            "properties": {
                "student": {"$ref": "#/definitions/StudentView"},
                "subjects": {"type": "array", "items": {"$ref": "#/definitions/SubjectView"}},
                "loading": {"type": "boolean"},
                "error": {"$ref": "#/definitions/APIError"}
            }
        },
        "TutorChatMessage": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "role": {"type": "string", "enum": ["user", "assistant", "system"]},
                "content": {"type": "string"},
                "imageUrl": {"type": "string"}
            }
        },
        "TutorChatRequest": {
            "type": "object",
            "required": ["messages"],
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/TutorChatMessage"}},
                "imageUrl": {"type": "string"}
            }
        },
        "BootstrapAdminRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "fullName": {"type": "string"}
            }
        },
        "EdgeError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "EdgeSuccess": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
