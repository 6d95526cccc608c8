package logger

import (
	"net/url"
	"strings"
)

// sensitiveParams are query keys whose values are masked before a URL is
// logged. Landing URLs routinely embed click IDs and affiliate tokens.
var sensitiveParams = map[string]bool{
	"token":   true,
	"key":     true,
	"api_key": true,
	"apikey":  true,
	"secret":  true,
	"auth":    true,
	"sig":     true,
	"clickid": true,
	"click_id": true,
	"fbclid":  true,
	"gclid":   true,
}

// RedactURL masks userinfo and sensitive query parameters in a URL for safe
// logging. "https://u:p@x.com/a?token=abc&q=1" → "https://***@x.com/a?token=***&q=1".
// Unparseable input is returned unchanged — redaction must never destroy
// the only copy of a diagnostic.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	q := u.Query()
	changed := false
	for k := range q {
		if sensitiveParams[strings.ToLower(k)] {
			q.Set(k, "***")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
