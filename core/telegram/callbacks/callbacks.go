package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseData parses Telebot's \f<unique>|<payload> callback encoding.
// Returns unique and payload (may be empty).
func ParseData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// Key returns cb.Unique if present; otherwise parses it from Data. The
// generic OnCallback endpoint leaves Unique empty.
func Key(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseData(cb)
	return k
}

// Payload returns the part after the first '|' parsed from Data.
func Payload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	_, payload := ParseData(cb)
	return payload
}
