package audit

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/mssola/useragent"
)

// Redacted replaces every value of a sensitive header.
const Redacted = "[REDACTED]"

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"api-key":             {},
	"x-api-key":           {},
}

// IsSensitiveHeader matches case-insensitively.
func IsSensitiveHeader(name string) bool {
	_, ok := sensitiveHeaders[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// RedactHeaders copies h with lower-cased names and sensitive values replaced.
func RedactHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if IsSensitiveHeader(key) {
			out[key] = []string{Redacted}
			continue
		}
		for _, v := range values {
			out[key] = append(out[key], storableText(v))
		}
	}
	return out
}

func copyQuery(q url.Values) map[string][]string {
	out := make(map[string][]string, len(q))
	for k, values := range q {
		cp := make([]string, len(values))
		for i, v := range values {
			cp[i] = storableText(v)
		}
		k = storableText(k)
		out[k] = append(out[k], cp...)
	}
	return out
}

// storableText replaces what Postgres text and jsonb reject: invalid UTF-8
// and NUL characters both become U+FFFD.
func storableText(s string) string {
	if utf8.ValidString(s) && !strings.Contains(s, "\x00") {
		return s
	}
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "\uFFFD")
}

// bodyJSON stores JSON bodies as-is and anything else as a JSON string.
// Bodies carrying \u escapes are decoded and re-encoded so NUL and unpaired
// surrogates never reach jsonb.
func bodyJSON(b []byte) json.RawMessage {
	trimmed := strings.TrimSpace(strings.ToValidUTF8(string(b), "\uFFFD"))
	if trimmed == "" {
		return json.RawMessage("null")
	}
	if json.Valid([]byte(trimmed)) {
		if !strings.Contains(trimmed, `\u`) {
			return json.RawMessage(trimmed)
		}
		if out, ok := reencode(trimmed); ok {
			return out
		}
	}
	s, err := json.Marshal(storableText(trimmed))
	if err != nil {
		return json.RawMessage("null")
	}
	return s
}

func reencode(raw string) (json.RawMessage, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	out, err := json.Marshal(scrub(v))
	if err != nil {
		return nil, false
	}
	return out, true
}

func scrub(v any) any {
	switch t := v.(type) {
	case string:
		return storableText(t)
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[storableText(k)] = scrub(e)
		}
		return out
	default:
		return v
	}
}

func clientInfo(ua string) *ClientInfo {
	if strings.TrimSpace(ua) == "" {
		return nil
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	return &ClientInfo{
		Browser:        name,
		BrowserVersion: version,
		OS:             parsed.OS(),
		Platform:       parsed.Platform(),
		Mobile:         parsed.Mobile(),
		Bot:            parsed.Bot(),
	}
}
