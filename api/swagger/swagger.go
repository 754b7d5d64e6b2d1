package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Billing API",
        "description": "Installment terms, payment allocation and overdue tracking for student accounts",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Terms", "description": "Installment schedule generation"},
        {"name": "Payments", "description": "Payment allocation against terms"},
        {"name": "Accounts", "description": "Account balance summaries"},
        {"name": "Billing Jobs", "description": "Overdue sweep"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/accounts/{accountId}/terms": {
            "get": {
                "tags": ["Terms"],
                "summary": "List installment terms",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "accountId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Account not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Terms"],
                "summary": "Generate or restructure installment terms",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "accountId", "in": "path", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTermsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid assessment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent modification", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/accounts/{accountId}/payments": {
            "post": {
                "tags": ["Payments"],
                "summary": "Allocate a payment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "accountId", "in": "path", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocatePaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Term not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Payment already allocated or concurrent modification", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/accounts/{accountId}/summary": {
            "get": {
                "tags": ["Accounts"],
                "summary": "Account balance summary",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "accountId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Account not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/overdue-sweep": {
            "post": {
                "tags": ["Billing Jobs"],
                "summary": "Run the overdue sweep",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "body", "in": "body", "required": false, "schema": {"$ref": "#/definitions/SweepOverdueRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateTermsRequest": {
            "type": "object",
            "required": ["total_amount", "schedule_start"],
            "properties": {
                "total_amount": {"type": "string", "example": "10000.00"},
                "schedule_start": {"type": "string", "example": "2024-06-01"},
                "policy": {"type": "string", "enum": ["PERCENTAGE", "UNIFORM"]}
            }
        },
        "AllocatePaymentRequest": {
            "type": "object",
            "required": ["amount"],
            "properties": {
                "amount": {"type": "string", "example": "2500.00"},
                "term_id": {"type": "string"},
                "payment_id": {"type": "string"}
            }
        },
        "SweepOverdueRequest": {
            "type": "object",
            "properties": {
                "now": {"type": "string", "format": "date-time"}
            }
        },
        "InstallmentTerm": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "account_id": {"type": "string"},
                "assessment_id": {"type": "string"},
                "name": {"type": "string"},
                "order": {"type": "integer"},
                "due_date": {"type": "string"},
                "amount": {"type": "string"},
                "paid_amount": {"type": "string"},
                "balance": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "partial", "paid", "overdue"]},
                "remarks": {"type": "string"}
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
