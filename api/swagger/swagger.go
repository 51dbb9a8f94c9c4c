package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Escola API",
        "description": "School management service: classes, enrollment, tuition ledger, mock exams and study materials",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and password rotation"},
        {"name": "Bootstrap", "description": "Schema creation and admin seeding"},
        {"name": "Classes", "description": "Class management"},
        {"name": "Students", "description": "Enrollment and student administration"},
        {"name": "Billing", "description": "Tuition installments and payment standing"},
        {"name": "Exams", "description": "Mock exams, questions and scoring"},
        {"name": "Materials", "description": "Study material uploads and downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/init": {
            "post": {
                "tags": ["Bootstrap"],
                "summary": "Create missing tables and seed the administrator account",
                "responses": {"200": {"description": "Initialization result"}}
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate by login and password",
                "responses": {
                    "200": {"description": "Tokens and user info"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Exchange a refresh token",
                "responses": {"200": {"description": "New token pair"}}
            }
        },
        "/api/v1/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password and clear forced rotation",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Password changed"}}
            }
        },
        "/api/v1/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Class page"}}
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create class",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created class"},
                    "409": {"description": "Duplicate class name"}
                }
            }
        },
        "/api/v1/classes/{id}": {
            "delete": {
                "tags": ["Classes"],
                "summary": "Delete class without dependents",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "412": {"description": "Class still has students, exams or materials"}
                }
            }
        },
        "/api/v1/students": {
            "post": {
                "tags": ["Students"],
                "summary": "Enroll student and generate tuition schedule",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Student with installments"},
                    "409": {"description": "Login already taken"}
                }
            }
        },
        "/api/v1/students/{id}/installments": {
            "get": {
                "tags": ["Billing"],
                "summary": "Student installment ledger",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Installment list"}}
            }
        },
        "/api/v1/students/{id}/installments/export": {
            "get": {
                "tags": ["Billing"],
                "summary": "Export ledger as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "File download"}}
            }
        },
        "/api/v1/installments/{id}/pay": {
            "patch": {
                "tags": ["Billing"],
                "summary": "Mark installment as paid (idempotent)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Installment record"},
                    "404": {"description": "Unknown installment"}
                }
            }
        },
        "/api/v1/me/status": {
            "get": {
                "tags": ["Billing"],
                "summary": "Payment standing of the authenticated student",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Standing with days late"}}
            }
        },
        "/api/v1/me/exams/{id}/attempts": {
            "post": {
                "tags": ["Exams"],
                "summary": "Submit answers and receive the score",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Scored result"},
                    "403": {"description": "Blocked by the payment gate"}
                }
            }
        },
        "/api/v1/materials": {
            "post": {
                "tags": ["Materials"],
                "summary": "Upload a study material",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "responses": {
                    "201": {"description": "Stored material"},
                    "400": {"description": "Disallowed file type or size"}
                }
            }
        },
        "/api/v1/materials/{id}/download": {
            "get": {
                "tags": ["Materials"],
                "summary": "Download a stored file",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "File stream"}}
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
                "meta": {"type": "object"}
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
