// Package proxy implements the OneBot v11 WebSocket fan-out: one bot
// client connects in, its events are forwarded to every configured
// target backend, and API calls from the targets are relayed back with
// their responses routed to whichever backend issued them.
//
// Routing is path-based. The route table maps a listening port and URL
// path to a connection ID; the main server port shares the admin API's
// listener while extra ports get dedicated ones. Each accepted client
// produces one session that lives until the client disconnects or the
// route is removed.
//
// Response correlation uses rewritten echo values: an API call from
// target N reaches the client with echo "N_{original}", so the reply
// identifies its origin even after the in-memory cache was swept. Index
// 0 is the proxy itself, used for command replies.
package proxy
