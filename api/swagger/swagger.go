package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Report Card API",
        "description": "Assessment aggregation and report card engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "ReportCards", "description": "Aggregation, lifecycle and rendering"},
        {"name": "Policies", "description": "Grading policy registry"},
        {"name": "Templates", "description": "Board template management"},
        {"name": "CoScholastic", "description": "Co-scholastic trait grading"},
        {"name": "Exports", "description": "Bulk generation artifacts"}
    ],
    "paths": {
        "/report-cards/generate": {
            "post": {
                "tags": ["ReportCards"],
                "summary": "Generate one student's report card",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy mismatch or out of range mark"}
                }
            }
        },
        "/report-cards/generate-batch": {
            "post": {
                "tags": ["ReportCards"],
                "summary": "Queue bulk generation for an exam group",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateBatchRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/report-cards/jobs/{id}": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Bulk generation job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/report-cards/{id}": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Fetch a report card",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/report-cards/{id}/render": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Render a report card through a board template",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "templateId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Template failed sanitization"}
                }
            }
        },
        "/report-cards/{id}/publish": {
            "post": {
                "tags": ["ReportCards"],
                "summary": "Publish a generated report card",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal lifecycle transition"}
                }
            }
        },
        "/report-cards/{id}/distribute": {
            "post": {
                "tags": ["ReportCards"],
                "summary": "Mark a published card as distributed",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal lifecycle transition"}
                }
            }
        },
        "/report-cards/{id}/regenerate": {
            "post": {
                "tags": ["ReportCards"],
                "summary": "Re-aggregate a report card",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RegenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Published cards require an admin role"}
                }
            }
        },
        "/report-cards/{id}/history": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Audit trail of a report card",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-groups": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "List the school's exam groups",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-groups/{id}/report-cards": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "List an exam group's cards ordered by rank",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-groups/{id}/students/{studentId}/report-card": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Fetch a student's card in an exam group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-groups/{id}/publish": {
            "post": {
                "tags": ["ReportCards"],
                "summary": "Publish every generated card of an exam group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/report-cards": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "List one student's report cards",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/policies": {
            "get": {
                "tags": ["Policies"],
                "summary": "List registered grading policies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Policies"],
                "summary": "Register a custom grading policy",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePolicyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Policy code already registered"}
                }
            }
        },
        "/policies/resolve": {
            "get": {
                "tags": ["Policies"],
                "summary": "Resolve the policy for a board and assessment type",
                "parameters": [
                    {"name": "board", "in": "query", "required": true, "type": "string"},
                    {"name": "assessmentType", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/policies/{code}": {
            "get": {
                "tags": ["Policies"],
                "summary": "Fetch a grading policy by code",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/policies/{id}": {
            "delete": {
                "tags": ["Policies"],
                "summary": "Deactivate a grading policy",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/templates": {
            "get": {
                "tags": ["Templates"],
                "summary": "List board templates",
                "parameters": [
                    {"name": "board", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Templates"],
                "summary": "Register a board template",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Body failed placeholder validation"}
                }
            }
        },
        "/templates/{id}": {
            "get": {
                "tags": ["Templates"],
                "summary": "Fetch a board template",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Templates"],
                "summary": "Update a board template",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTemplateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/co-scholastic": {
            "put": {
                "tags": ["CoScholastic"],
                "summary": "Record trait grades for a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertCoScholasticRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/co-scholastic/complete": {
            "post": {
                "tags": ["CoScholastic"],
                "summary": "Mark a trait record as complete",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteCoScholasticRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Traits still missing"}
                }
            }
        },
        "/students/{id}/co-scholastic": {
            "get": {
                "tags": ["CoScholastic"],
                "summary": "Fetch a student's trait record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/{id}/co-scholastic": {
            "get": {
                "tags": ["CoScholastic"],
                "summary": "List a section's trait records",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export artifact via its signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Token invalid or expired"}
                }
            }
        }
    },
    "definitions": {
        "GenerateRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "examGroupId": {"type": "string"}
            },
            "required": ["studentId", "examGroupId"]
        },
        "GenerateBatchRequest": {
            "type": "object",
            "properties": {
                "examGroupId": {"type": "string"},
                "sectionId": {"type": "string"},
                "templateId": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["examGroupId"]
        },
        "RegenerateRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "CreatePolicyRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "boardType": {"type": "string", "enum": ["CBSE", "STATE", "ICSE"]},
                "domain": {"type": "string", "enum": ["marks", "percentage"]},
                "domainMax": {"type": "number"},
                "bands": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/GradeBandRequest"}
                }
            },
            "required": ["code", "boardType", "domain", "domainMax", "bands"]
        },
        "GradeBandRequest": {
            "type": "object",
            "properties": {
                "min": {"type": "number"},
                "max": {"type": "number"},
                "grade": {"type": "string"},
                "remark": {"type": "string"}
            },
            "required": ["grade"]
        },
        "CreateTemplateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "boardType": {"type": "string", "enum": ["CBSE", "STATE", "ICSE"]},
                "policyCode": {"type": "string"},
                "body": {"type": "string"},
                "css": {"type": "string"},
                "fields": {"type": "object"},
                "isDefault": {"type": "boolean"}
            },
            "required": ["name", "boardType", "policyCode", "body"]
        },
        "UpdateTemplateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "policyCode": {"type": "string"},
                "body": {"type": "string"},
                "css": {"type": "string"},
                "fields": {"type": "object"},
                "isDefault": {"type": "boolean"},
                "isActive": {"type": "boolean"}
            },
            "required": ["name", "policyCode", "body"]
        },
        "UpsertCoScholasticRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "term": {"type": "string"},
                "academicYear": {"type": "string"},
                "traits": {
                    "type": "object",
                    "additionalProperties": {"type": "string"}
                }
            },
            "required": ["studentId", "term", "academicYear", "traits"]
        },
        "CompleteCoScholasticRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "term": {"type": "string"},
                "academicYear": {"type": "string"}
            },
            "required": ["studentId", "term", "academicYear"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
