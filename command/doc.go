// Package command implements the in-chat management commands.
//
// Commands are plain message events whose text starts with the configured
// prefix, written directly after it: with prefix "bs" the text "bsauth"
// runs the auth command and "bsauth ABC123" passes it one argument. The
// Handler inspects every client frame, executes matches and turns the
// reply into a send API call addressed back at the originating chat; a
// frame that triggered a command is not forwarded to the targets.
//
// When key auth is enabled, only commands marked AlwaysAllow run for bots
// that have not verified yet. Replies are user-facing chat text and stay
// in Chinese like the rest of the bot surface.
package command
