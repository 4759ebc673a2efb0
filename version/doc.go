// Package version provides build version information for the bs binary.
//
// Version, git commit, and build time are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/Anyuluo996/BotShepherd/version.Version=1.0.0"
//
// When ldflags are absent, values are recovered from debug.ReadBuildInfo.
package version
