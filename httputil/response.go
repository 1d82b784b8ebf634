package httputil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ytmp3d/errutil"
)

const maxRequestBodyBytes = 64 << 10

type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as the JSON body of a response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	b, err := json.Marshal(v)
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP(), "value_type": fmt.Sprintf("%T", v)}
		return flaw.From(fmt.Errorf("failed to marshal response body: %v", err)).Append(flawP)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(b); nil != err {
		return err
	}
	return nil
}

// DecodeJSON decodes a request body capped at 64 KiB into v.
func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, maxRequestBodyBytes))
	if err := dec.Decode(v); nil != err {
		return err
	}
	return nil
}

// ContentDisposition returns an attachment disposition for name. The quoted
// filename parameter keeps the name as is with quotes and backslashes escaped;
// filename* carries the RFC 5987 encoded form.
func ContentDisposition(name string) string {
	var quoted strings.Builder
	quoted.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			quoted.WriteByte('\\')
			quoted.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			quoted.WriteRune('_')
		default:
			quoted.WriteRune(r)
		}
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, quoted.String(), url.PathEscape(name))
}

// NoCache sets headers that prevent intermediaries from caching a response.
func NoCache(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}
