// Package docs is generated by swaggo/swag from the handler annotations in
// internal/transport/http/gin. Regenerate with `swag init -g cmd/amparena/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/stripe/config": {
            "get": {"summary": "Publishable payment key", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.StripeConfigResponse"}}}}
        },
        "/api/stripe/webhook": {
            "post": {
                "summary": "Payment processor webhook",
                "parameters": [{"type": "string", "description": "signature", "name": "Stripe-Signature", "in": "header", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}}
            }
        },
        "/api/tickets/purchase": {
            "post": {
                "summary": "Start a ticket purchase",
                "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.EmailRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.CreateIntentResponse"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}}
            }
        },
        "/api/tickets/confirm": {
            "post": {
                "summary": "Confirm a purchase and issue the ticket (idempotent)",
                "parameters": [
                    {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.ConfirmPurchaseRequest"}},
                    {"type": "string", "description": "client retry key", "name": "Idempotency-Key", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.ConfirmPurchaseResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpgin.ConfirmPurchaseResponse"}},
                    "402": {"description": "payment not confirmed", "schema": {"$ref": "#/definitions/httpgin.ConfirmPurchaseResponse"}},
                    "409": {"description": "cancelled / idempotency key in progress", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "422": {"description": "idempotency key reused with a different request", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/api/tickets/retrieve": {
            "post": {
                "summary": "Email all confirmed tickets of an address",
                "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.EmailRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.RetrieveResponse"}},
                    "404": {"description": "no confirmed tickets", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "429": {"description": "rate limited", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/api/tickets/count": {
            "get": {"summary": "Confirmed ticket count", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.CountResponse"}}}}
        },
        "/api/signup": {
            "post": {
                "summary": "Sign up for event updates",
                "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.EmailRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/httpgin.SignupResponse"}}, "409": {"description": "already registered", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}}
            }
        },
        "/api/count": {
            "get": {"summary": "Signup count", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.CountResponse"}}}}
        },
        "/api/admin/auth": {
            "post": {
                "summary": "Exchange a dashboard passcode for a session token",
                "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.PasscodeRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}}
            }
        },
        "/api/admin/tickets": {
            "get": {
                "security": [{"BearerAuth": []}],
                "summary": "List tickets",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "email", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/admin/tickets/{code}/cancel": {
            "post": {"security": [{"BearerAuth": []}], "summary": "Cancel a ticket", "parameters": [{"type": "string", "name": "code", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}
        },
        "/api/admin/tickets/{code}/resend": {
            "post": {"security": [{"BearerAuth": []}], "summary": "Resend a ticket confirmation", "parameters": [{"type": "string", "name": "code", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.ResendResponse"}}}}
        },
        "/api/admin/signups": {
            "get": {"security": [{"BearerAuth": []}], "summary": "List signups", "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/signups/notify": {
            "post": {"security": [{"BearerAuth": []}], "summary": "Mail a campaign template to signups", "parameters": [{"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"$ref": "#/definitions/httpgin.NotifyRequest"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/stream": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["text/event-stream"], "summary": "Live feed of ticket and signup activity (SSE)", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/api/competitors": {
            "get": {"security": [{"BearerAuth": []}], "summary": "List competitors", "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Register as a competitor", "responses": {"201": {"description": "Created"}, "409": {"description": "already registered"}}}
        },
        "/api/competitors/{id}": {
            "get": {"summary": "Get a competitor profile", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"security": [{"BearerAuth": []}], "summary": "Replace a competitor profile", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"security": [{"BearerAuth": []}], "summary": "Remove a competitor and their files", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/api/competitors/{id}/upload": {
            "post": {
                "consumes": ["multipart/form-data"],
                "summary": "Upload submission files",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "file", "description": "up to 5 files, 10MB each", "name": "files", "in": "formData", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/httpgin.UploadResponse"}}, "413": {"description": "Request Entity Too Large"}}
            }
        }
    },
    "definitions": {
        "httpgin.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}}},
        "httpgin.EmailRequest": {"type": "object", "required": ["email"], "properties": {"email": {"type": "string"}}},
        "httpgin.PasscodeRequest": {"type": "object", "required": ["passcode"], "properties": {"passcode": {"type": "string"}}},
        "httpgin.NotifyRequest": {"type": "object", "required": ["template"], "properties": {"template": {"type": "string"}, "all": {"type": "boolean"}}},
        "httpgin.StripeConfigResponse": {"type": "object", "properties": {"publishableKey": {"type": "string"}}},
        "httpgin.CreateIntentResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "client_secret": {"type": "string"}, "payment_intent_id": {"type": "string"}}},
        "httpgin.ConfirmPurchaseRequest": {"type": "object", "required": ["email"], "properties": {"email": {"type": "string"}, "paymentReference": {"type": "string"}, "stripe_payment_intent_id": {"type": "string"}, "kind": {"type": "string"}, "priceMinorUnits": {"type": "integer"}}},
        "httpgin.ConfirmPurchaseResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "ticketCode": {"type": "string"}, "emailSent": {"type": "boolean"}, "duplicate": {"type": "boolean"}, "state": {"type": "string"}, "reason": {"type": "string"}, "error": {"type": "string"}}},
        "httpgin.RetrieveResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "ticketCount": {"type": "integer"}, "message": {"type": "string"}}},
        "httpgin.CountResponse": {"type": "object", "properties": {"count": {"type": "integer"}}},
        "httpgin.SignupResponse": {"type": "object", "properties": {"message": {"type": "string"}, "id": {"type": "integer"}}},
        "httpgin.ResendResponse": {"type": "object", "properties": {"emailSent": {"type": "boolean"}}},
        "httpgin.UploadResponse": {"type": "object", "properties": {"message": {"type": "string"}, "files": {"type": "array", "items": {"type": "object"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:3000",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Amp Arena API",
	Description:      "Ticket sales, signups and competitor registration for Amp Arena.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
