package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Substitute Teacher API",
        "description": "Substitute assignment, report reconciliation and finalization pipeline",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Absences", "description": "Teacher leave requests"},
        {"name": "Substitutions", "description": "Scoring, reconciliation and the assignment lifecycle"},
        {"name": "Workload", "description": "Finalized substitution counters"}
    ],
    "paths": {
        "/absences": {
            "post": {
                "tags": ["Absences"],
                "summary": "Record a teacher absence",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateAbsenceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Absences"],
                "summary": "List absences of a date",
                "parameters": [
                    {"in": "query", "name": "date", "type": "string", "description": "YYYY-MM-DD, defaults to today"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/process": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Score a date's absences and publish the draft report",
                "parameters": [
                    {"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/ProcessDateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Date already processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/pending": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List pending assignments of a date",
                "parameters": [
                    {"in": "query", "name": "date", "type": "string", "description": "YYYY-MM-DD, defaults to today"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/expired": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List assignments expired without confirmation",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/reconcile": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Diff an edited report against the pending rows",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ReconcileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed report header", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Future or stale report date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/confirm": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Apply an edited report and finalize its date",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ConfirmReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed report header", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Future or stale report date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/finalize": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Move a date's pending rows to the ledger",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/FinalizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/expire": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Expire pending rows older than the window",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/workload": {
            "get": {
                "tags": ["Workload"],
                "summary": "Substitution workload per teacher",
                "produces": [
                    "application/json",
                    "text/csv",
                    "application/pdf",
                    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
                ],
                "parameters": [
                    {"in": "query", "name": "from", "type": "string", "required": true},
                    {"in": "query", "name": "to", "type": "string", "required": true},
                    {"in": "query", "name": "format", "type": "string", "enum": ["json", "csv", "xlsx", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateAbsenceRequest": {
            "type": "object",
            "required": ["teacher_id", "date", "periods"],
            "properties": {
                "teacher_id": {"type": "string"},
                "date": {"type": "string", "example": "2025-08-04"},
                "periods": {"type": "array", "items": {"type": "integer"}},
                "reason": {"type": "string"}
            }
        },
        "ProcessDateRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "example": "2025-08-04"}
            }
        },
        "ReconcileRequest": {
            "type": "object",
            "required": ["report"],
            "properties": {
                "report": {"type": "string"},
                "dry_run": {"type": "boolean"}
            }
        },
        "ConfirmReportRequest": {
            "type": "object",
            "required": ["report", "verified_by"],
            "properties": {
                "report": {"type": "string"},
                "verified_by": {"type": "string"}
            }
        },
        "FinalizeRequest": {
            "type": "object",
            "required": ["date", "verified_by"],
            "properties": {
                "date": {"type": "string"},
                "verified_by": {"type": "string"}
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
