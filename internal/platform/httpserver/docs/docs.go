// Package docs registers the OpenAPI document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/socializing/cohorts/{cohort_id}": {
            "get": {"summary": "Event state with the caller's own vote", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/user"}], "responses": {"200": {"description": "event state"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/option-vote": {
            "post": {"summary": "Start option voting", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/admin"}, {"$ref": "#/parameters/idempotency"}], "responses": {"200": {"description": "event"}, "400": {"description": "invalid catalog input"}, "409": {"description": "illegal transition"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/pin": {
            "post": {"summary": "Pin or clear the winning option", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/admin"}, {"$ref": "#/parameters/idempotency"}], "responses": {"200": {"description": "event"}, "422": {"description": "unknown option"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/attendance-check": {
            "post": {"summary": "Close option voting and start the attendance check", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/admin"}, {"$ref": "#/parameters/idempotency"}], "responses": {"200": {"description": "event"}, "422": {"description": "no winner"}, "409": {"description": "illegal transition"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/confirm": {
            "post": {"summary": "Confirm the gathering and snapshot attendance", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/admin"}, {"$ref": "#/parameters/idempotency"}], "responses": {"200": {"description": "event with result"}, "409": {"description": "illegal transition"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/reset": {
            "post": {"summary": "Reset to idle", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/admin"}, {"$ref": "#/parameters/idempotency"}], "responses": {"200": {"description": "event"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/open-chat-url": {
            "put": {"summary": "Set or clear the open chat url", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/admin"}, {"$ref": "#/parameters/idempotency"}], "responses": {"200": {"description": "event"}, "400": {"description": "invalid url"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/tally": {
            "get": {"summary": "Current tally", "parameters": [{"$ref": "#/parameters/cohort"}], "responses": {"200": {"description": "tally"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/stream": {
            "get": {"summary": "Live tally as server-sent events", "produces": ["text/event-stream"], "parameters": [{"$ref": "#/parameters/cohort"}], "responses": {"200": {"description": "event stream"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/event.ics": {
            "get": {"summary": "Calendar export of the confirmed gathering", "produces": ["text/calendar"], "parameters": [{"$ref": "#/parameters/cohort"}], "responses": {"200": {"description": "iCalendar"}, "404": {"description": "not confirmed"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/votes/options": {
            "put": {"summary": "Replace the caller's option votes", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/user"}], "responses": {"200": {"description": "vote"}, "422": {"description": "voting closed or unknown option"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/votes/cant-attend": {
            "put": {"summary": "Mark the caller as unable to attend any option", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/user"}], "responses": {"200": {"description": "vote"}}}
        },
        "/api/v1/socializing/cohorts/{cohort_id}/votes/attendance": {
            "put": {"summary": "Set the caller's attendance vote", "parameters": [{"$ref": "#/parameters/cohort"}, {"$ref": "#/parameters/user"}], "responses": {"200": {"description": "vote"}, "422": {"description": "attendance closed"}}}
        }
    },
    "parameters": {
        "cohort": {"name": "cohort_id", "in": "path", "required": true, "type": "string"},
        "admin": {"name": "X-Admin-Id", "in": "header", "required": true, "type": "string"},
        "user": {"name": "X-User-Id", "in": "header", "type": "string"},
        "idempotency": {"name": "Idempotency-Key", "in": "header", "type": "string"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "gathering API",
	Description:      "Cohort gathering scheduling: option voting, attendance check and confirmation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
