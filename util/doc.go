// Package util provides small shared helpers: size parsing for log and
// body limits, secret masking for safe log output, and input sanitizing
// for chat commands.
package util
