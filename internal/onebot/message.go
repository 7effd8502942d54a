package onebot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Segment is one element of an array-form OneBot message.
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// Message is an array-form message. It also decodes the string form by
// parsing CQ codes.
type Message []Segment

var cqCode = regexp.MustCompile(`\[CQ:([a-zA-Z_]+)((?:,[^\]]*)?)\]`)

// UnmarshalJSON accepts both the array form and the CQ-code string form.
func (m *Message) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = ParseCQ(s)
		return nil
	}
	var segs []rawSegment
	if err := json.Unmarshal(b, &segs); err != nil {
		return fmt.Errorf("decode message segments: %w", err)
	}
	out := make(Message, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.segment())
	}
	*m = out
	return nil
}

// rawSegment tolerates non-string data values (some implementations send
// numeric qq fields).
type rawSegment struct {
	Type string                     `json:"type"`
	Data map[string]json.RawMessage `json:"data"`
}

func (r rawSegment) segment() Segment {
	seg := Segment{Type: r.Type, Data: make(map[string]string, len(r.Data))}
	for k, v := range r.Data {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			seg.Data[k] = s
			continue
		}
		seg.Data[k] = string(v)
	}
	return seg
}

// ParseCQ splits a CQ-code string into segments.
func ParseCQ(s string) Message {
	var out Message
	last := 0
	for _, loc := range cqCode.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > last {
			out = append(out, Text(unescapeCQ(s[last:loc[0]])))
		}
		seg := Segment{Type: s[loc[2]:loc[3]], Data: map[string]string{}}
		if loc[4] < loc[5] {
			for _, kv := range strings.Split(s[loc[4]+1:loc[5]], ",") {
				k, v, ok := strings.Cut(kv, "=")
				if ok {
					seg.Data[k] = unescapeCQ(v)
				}
			}
		}
		out = append(out, seg)
		last = loc[1]
	}
	if last < len(s) {
		out = append(out, Text(unescapeCQ(s[last:])))
	}
	return out
}

var cqUnescaper = strings.NewReplacer("&#91;", "[", "&#93;", "]", "&#44;", ",", "&amp;", "&")

func unescapeCQ(s string) string {
	return cqUnescaper.Replace(s)
}

// Text builds a text segment.
func Text(s string) Segment {
	return Segment{Type: "text", Data: map[string]string{"text": s}}
}

// At builds a mention segment.
func At(userID string) Segment {
	return Segment{Type: "at", Data: map[string]string{"qq": userID}}
}

// ImagePNG builds an image segment carrying the image inline as base64.
func ImagePNG(png []byte) Segment {
	return Segment{Type: "image", Data: map[string]string{
		"file": "base64://" + base64.StdEncoding.EncodeToString(png),
	}}
}

// PlainText concatenates the text segments.
func (m Message) PlainText() string {
	var b strings.Builder
	for _, seg := range m {
		if seg.Type == "text" {
			b.WriteString(seg.Data["text"])
		}
	}
	return b.String()
}

// Mentions reports whether the message contains an @ of userID.
func (m Message) Mentions(userID string) bool {
	for _, seg := range m {
		if seg.Type == "at" && seg.Data["qq"] == userID {
			return true
		}
	}
	return false
}
