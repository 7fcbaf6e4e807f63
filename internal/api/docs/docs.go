// Package docs holds the OpenAPI document served by the Swagger UI.
// Regenerate with: swag init -g internal/api/router.go -o internal/api/docs
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
    "securityDefinitions": {
        "UIToken": {"type": "apiKey", "in": "header", "name": "X-Ui-Token"}
    },
    "security": [{"UIToken": []}],
    "paths": {
        "/router/ui": {
            "post": {
                "tags": ["router"],
                "summary": "Send a message from the wallet UI",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/router/dapp": {
            "post": {
                "tags": ["router"],
                "summary": "Send a message from a dApp connection",
                "security": [],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "X-Dapp-Origin", "in": "header", "required": true},
                    {"type": "string", "name": "X-Dapp-Favicon", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/surfaces": {
            "get": {
                "tags": ["approvals"],
                "summary": "List open approval surfaces",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/surface.Window"}}}
                }
            }
        },
        "/surfaces/{id}/close": {
            "post": {
                "tags": ["approvals"],
                "summary": "Close an approval surface",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/approvals/transactions/{id}": {
            "post": {
                "tags": ["approvals"],
                "summary": "Decide a transaction or sign-message request",
                "consumes": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.DecisionRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/approvals/inscriptions/{id}": {
            "post": {
                "tags": ["approvals"],
                "summary": "Decide an inscription request",
                "consumes": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.DecisionRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/wallet/balance": {
            "get": {
                "tags": ["wallet"],
                "summary": "Get balance",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "address", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.BalanceResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/wallet/qr": {
            "get": {
                "tags": ["wallet"],
                "summary": "Address QR code",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "address", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.AccountQRResponse"}}
                }
            }
        },
        "/wallet/transfer": {
            "post": {
                "tags": ["wallet"],
                "summary": "Transfer XDAG",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.PayRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PayResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/model.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/model.ErrorResponse"}}
                }
            }
        },
        "/wallet/inscribe": {
            "post": {
                "tags": ["wallet"],
                "summary": "Write an inscription",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "from", "in": "query"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.Inscription"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.InscribeResponse"}}
                }
            }
        },
        "/wallet/transactions": {
            "get": {
                "tags": ["wallet"],
                "summary": "Transaction history",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "address", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.AddressBlockResponse"}}
                }
            }
        },
        "/wallet/inscriptions": {
            "get": {
                "tags": ["wallet"],
                "summary": "Restore inscriptions",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "address", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.RestoredInscription"}}}
                }
            }
        },
        "/events": {
            "get": {
                "tags": ["events"],
                "summary": "Keyring events",
                "produces": ["text/event-stream"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "model.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "model.DecisionRequest": {
            "type": "object",
            "properties": {
                "approved": {"type": "boolean"}
            }
        },
        "model.BalanceResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "balance": {"type": "string"}
            }
        },
        "model.AccountQRResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "QR": {"type": "string"}
            }
        },
        "model.PayRequest": {
            "type": "object",
            "properties": {
                "fromAddress": {"type": "string"},
                "toAddress": {"type": "string"},
                "amount": {"type": "string"},
                "remark": {"type": "string"}
            }
        },
        "model.PayResponse": {
            "type": "object",
            "properties": {
                "block": {"$ref": "#/definitions/model.TransactionBlockResponse"}
            }
        },
        "model.TransactionBlockResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "hash": {"type": "string"},
                "state": {"type": "string"},
                "remark": {"type": "string"},
                "errorInfo": {"type": "string"}
            }
        },
        "model.InscriptionContent": {
            "type": "object",
            "properties": {
                "objId": {"type": "string"},
                "imgStr": {"type": "string"},
                "txt": {"type": "string"}
            }
        },
        "model.Inscription": {
            "type": "object",
            "properties": {
                "inscriptionContent": {"$ref": "#/definitions/model.InscriptionContent"},
                "inscriptionString": {"type": "string"},
                "awardRatio": {"type": "number"},
                "toAddress": {"type": "string"}
            }
        },
        "model.InscribeResponse": {
            "type": "object",
            "properties": {
                "blocks": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.HistoryEntry": {
            "type": "object",
            "properties": {
                "direction": {"type": "integer"},
                "address": {"type": "string"},
                "amount": {"type": "string"},
                "time": {"type": "integer"},
                "remark": {"type": "string"}
            }
        },
        "model.AddressBlockResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "balance": {"type": "string"},
                "totalPage": {"type": "integer"},
                "transactions": {"type": "array", "items": {"$ref": "#/definitions/model.HistoryEntry"}}
            }
        },
        "model.RestoredInscription": {
            "type": "object",
            "properties": {
                "groupKey": {"type": "string"},
                "inscContent": {"$ref": "#/definitions/model.InscriptionContent"},
                "awardCost": {"type": "string"},
                "inscTime": {"type": "integer"}
            }
        },
        "surface.Window": {
            "type": "object",
            "properties": {
                "requestId": {"type": "string"},
                "route": {"type": "string"},
                "openedAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "xdaghub signer API",
	Description:      "Local XDAG wallet: key custody, dApp approvals and inscriptions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
