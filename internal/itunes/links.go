package itunes

import (
	"bytes"
	"encoding/json"
	"strings"
)

// links decodes the feed "link" field, which is either one object or an
// array of objects.
type links []feedLink

func (l *links) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []feedLink
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one feedLink
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = links{one}
	return nil
}

// previewURL returns the audio enclosure href, falling back to im:preview.
func (e *feedEntry) previewURL() string {
	for _, link := range e.Link {
		a := link.Attributes
		if a.Rel == "enclosure" && strings.HasPrefix(a.Type, "audio") {
			return a.Href
		}
	}
	return e.Preview.Link.Attributes.Href
}
