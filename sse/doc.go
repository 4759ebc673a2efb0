// Package sse streams live proxy state to admin dashboard clients over
// Server-Sent Events.
//
// The Hub fans events out to subscribed clients by glob pattern on the
// client ID; dashboard subscribers register under "dashboard:{uuid}" and
// the Feed publishes session, target and counter changes to
// "dashboard:*". The Component wraps the hub's run loop in the standard
// lifecycle so bootstrap starts and stops it with everything else.
//
//	comp := sse.NewComponent("/api/events")
//	feed := sse.NewFeed(comp.Hub())
//	feed.SessionUp("main", "3219057931")
package sse
