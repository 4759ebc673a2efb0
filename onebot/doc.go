// Package onebot implements the slice of the OneBot v11 wire format the
// proxy needs: payload classification, typed field access, CQ-style raw
// message rendering, and the correlation keys used to route API responses
// back to the target that issued the request.
//
// # Payloads
//
// Every frame on a OneBot socket is a JSON object. Parse decodes one into
// an Event, which keeps the original bytes alongside the decoded fields so
// untouched frames can be forwarded without re-encoding:
//
//	ev, err := onebot.Parse(frame)
//	if err != nil {
//	    return err
//	}
//	switch ev.Kind() {
//	case onebot.KindEvent:
//	    // push event (message, notice, meta_event, ...)
//	case onebot.KindAPIRequest:
//	    // action call issued by a backend
//	case onebot.KindAPIResponse:
//	    // reply to an action call
//	}
//
// Numbers are decoded with json.Number, so account IDs survive a
// parse/marshal round trip exactly.
//
// # Echo correlation
//
// The proxy fans one bot out to several backends. Backends pick their own
// echo values, so before an API request reaches the bot its echo is
// replaced with ComposeEcho(targetIndex, echo); when the response comes
// back, ParseEcho recovers the issuing target and the original echo.
// Target indexes are 1-based; index 0 is reserved for the proxy itself.
package onebot
