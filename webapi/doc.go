// Package webapi exposes the admin HTTP API: password login, connection
// management, bot auth key administration, message and statistics queries,
// and a live event stream. All routes except login require a session token.
package webapi
