// Package linker finds unlinked mentions of notes inside other notes and
// rewrites them into wikilinks.
package linker

import (
	"encoding/json"
	"fmt"
)

// Link is a mention in Source of one of Target's names. ByteStart and
// ByteEnd are absolute offsets into the source's normalized text.
type Link struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	ByteStart int    `json:"byte_start"`
	ByteEnd   int    `json:"byte_end"`
}

// Marshal returns the JSON form of the link.
func (l Link) Marshal() (string, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("linker: marshal link: %w", err)
	}
	return string(b), nil
}

// UnmarshalLink parses the JSON produced by Link.Marshal.
func UnmarshalLink(s string) (Link, error) {
	var l Link
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		return Link{}, fmt.Errorf("linker: unmarshal link: %w", err)
	}
	return l, nil
}

// Mention returns the matched text of l within text, or "" when the offsets
// do not fit.
func (l Link) Mention(text string) string {
	if l.ByteStart < 0 || l.ByteStart > l.ByteEnd || l.ByteEnd > len(text) {
		return ""
	}
	return text[l.ByteStart:l.ByteEnd]
}
