// Package sakoya bridges a OneBot v11 session to a gsuid-core backend,
// which speaks the "sakoya" WebSocket protocol instead.
//
// A target endpoint marked sakoya_protocol gets its socket wrapped in a
// Conn. Writes translate OneBot frames into sakoya ones: message events
// become MessageReceive payloads, send_*_msg API calls become MessageSend
// payloads, meta events are dropped, and API responses plus a small set of
// passthrough actions cross unconverted. Reads translate the other way:
// a MessageSend from the backend becomes a send_group_msg or
// send_private_msg API call carrying a fresh uuid echo, so the proxy's
// ordinary echo correlation routes the bot's response back here.
//
// The backend cannot resolve quoted messages itself, so the adapter keeps
// the last 100 messages it forwarded and, when a reply segment arrives,
// splices the quoted images into the front of the message.
package sakoya
