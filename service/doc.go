// Package service implements the operations behind the HTTP API: turn
// execution against cached agencies, plus agency, session, tool and skill
// management with ownership checks.
//
// Services accept the authenticated core.User and return errors wrapping the
// core sentinels so transports can map them to status codes.
package service
