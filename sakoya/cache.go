package sakoya

import (
	"github.com/Anyuluo996/BotShepherd/onebot"
)

// replyCache remembers the segment arrays of recently forwarded messages
// so a reply segment can be resolved without calling back into the bot.
// Oldest entries fall out first.
type replyCache struct {
	max   int
	order []string
	byID  map[string][]any
}

func newReplyCache(max int) *replyCache {
	return &replyCache{max: max, byID: make(map[string][]any)}
}

func (rc *replyCache) put(id string, segments []any) {
	if id == "" {
		return
	}
	if _, exists := rc.byID[id]; !exists {
		rc.order = append(rc.order, id)
		if len(rc.order) > rc.max {
			oldest := rc.order[0]
			rc.order = rc.order[1:]
			delete(rc.byID, oldest)
		}
	}
	rc.byID[id] = segments
}

func (rc *replyCache) get(id string) ([]any, bool) {
	segs, ok := rc.byID[id]
	return segs, ok
}

// complete records the event's message and, when it quotes an earlier
// one, replaces the reply segment with the quoted images so the backend
// receives the full context. Plain-string messages are left alone.
func (rc *replyCache) complete(ev *onebot.Event) {
	segments, ok := ev.Message().([]any)
	if !ok {
		return
	}
	rc.put(ev.MessageID(), segments)

	replyID := ""
	for _, seg := range onebot.Segments(segments) {
		if seg.Type == "reply" {
			replyID = str(seg.Data["id"])
			break
		}
	}
	if replyID == "" {
		return
	}

	quoted, ok := rc.get(replyID)
	if !ok {
		return
	}

	var images []any
	for _, seg := range onebot.Segments(quoted) {
		if seg.Type != "image" {
			continue
		}
		if url := str(seg.Data["url"]); url != "" {
			images = append(images, segMap("image", map[string]any{"url": url}))
		} else {
			images = append(images, map[string]any{"type": "image", "data": seg.Data})
		}
	}
	if len(images) == 0 {
		return
	}

	rebuilt := images
	for _, el := range segments {
		if obj, ok := el.(map[string]any); ok && onebot.Stringify(obj["type"]) == "reply" {
			continue
		}
		rebuilt = append(rebuilt, el)
	}
	ev.Set("message", rebuilt)
}
