package onebot

import (
	"sort"
	"strings"
)

// Segment is one element of an array-format message.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Text builds a plain text segment.
func Text(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

// Segments normalizes a message payload into typed segments. A plain
// string becomes a single text segment; array elements that are not
// segment objects are dropped.
func Segments(message any) []Segment {
	switch m := message.(type) {
	case string:
		return []Segment{Text(m)}
	case []Segment:
		return m
	case []any:
		segs := make([]Segment, 0, len(m))
		for _, el := range m {
			obj, ok := el.(map[string]any)
			if !ok {
				continue
			}
			seg := Segment{Type: Stringify(obj["type"])}
			if data, ok := obj["data"].(map[string]any); ok {
				seg.Data = data
			}
			segs = append(segs, seg)
		}
		return segs
	default:
		return nil
	}
}

// RawMessage rebuilds the raw_message text of a message payload: text
// segments render verbatim, every other type as a CQ tag. A plain string
// message is already its own raw form and is returned unchanged.
func RawMessage(message any) string {
	if s, ok := message.(string); ok {
		return s
	}
	var b strings.Builder
	for _, seg := range Segments(message) {
		renderSegment(&b, seg)
	}
	return b.String()
}

// cqEscape escapes the characters that delimit CQ tags inside a value.
var cqEscape = strings.NewReplacer(
	"&", "&amp;",
	"[", "&#91;",
	"]", "&#93;",
	",", "&#44;",
)

func renderSegment(b *strings.Builder, seg Segment) {
	if seg.Type == "text" {
		b.WriteString(Stringify(seg.Data["text"]))
		return
	}
	b.WriteString("[CQ:")
	b.WriteString(seg.Type)
	for _, k := range sortedKeys(seg.Data) {
		b.WriteString(",")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(cqEscape.Replace(Stringify(seg.Data[k])))
	}
	b.WriteString("]")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
