// Package api exposes the agency hub services over HTTP.
//
// Every response body is a JSON envelope {"status", "message", "data"}.
// Requests other than /healthz carry a bearer token that maps to a user.
package api
