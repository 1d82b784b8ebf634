package ytdlp

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/xeptore/ytmp3d/media"
)

var (
	ErrEmptyOutput = errors.New("yt-dlp output is empty")
	ErrNoJSON      = errors.New("no valid JSON found in yt-dlp output")
)

type rawEntry struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ParsePlaylist accepts a single document with an entries list, a top-level
// array of entries, a single entry, or a concatenation of entry documents.
// Noise before the first document is skipped. Concatenated documents are
// split by brace depth, which does not account for braces inside strings.
func ParsePlaylist(raw []byte) ([]media.Entry, error) {
	out := bytes.TrimSpace(raw)
	if len(out) == 0 {
		return nil, ErrEmptyOutput
	}
	if out[0] != '[' {
		if i := bytes.IndexByte(out, '{'); i > 0 {
			out = out[i:]
		}
	}

	if gjson.ValidBytes(out) {
		return entriesOf(gjson.ParseBytes(out))
	}

	docs := splitObjects(out)
	switch len(docs) {
	case 0:
		return nil, ErrNoJSON
	case 1:
		return entriesOf(docs[0])
	}

	entries := make([]media.Entry, 0, len(docs))
	for _, doc := range docs {
		if e, ok := toEntry(doc); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func entriesOf(doc gjson.Result) ([]media.Entry, error) {
	var list gjson.Result
	switch {
	case doc.IsArray():
		list = doc
	case doc.IsObject() && doc.Get("entries").IsArray():
		list = doc.Get("entries")
	case doc.IsObject():
		e, ok := toEntry(doc)
		if !ok {
			return []media.Entry{}, nil
		}
		return []media.Entry{e}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected document of type %s", ErrNoJSON, doc.Type)
	}

	items := list.Array()
	entries := make([]media.Entry, 0, len(items))
	for _, item := range items {
		if e, ok := toEntry(item); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func toEntry(doc gjson.Result) (media.Entry, bool) {
	if !doc.IsObject() {
		return media.Entry{}, false
	}
	var e rawEntry
	if err := json.Unmarshal([]byte(doc.Raw), &e); nil != err {
		return media.Entry{}, false
	}
	id := e.ID
	if id == "" {
		id = e.URL
	}
	if id == "" {
		return media.Entry{}, false
	}
	return media.Entry{ID: id, Title: e.Title}, true
}

// splitObjects returns every balanced top-level {...} chunk that is valid JSON.
func splitObjects(b []byte) []gjson.Result {
	var (
		docs  []gjson.Result
		depth int
		start = -1
	)
	for i, c := range b {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				if chunk := b[start : i+1]; gjson.ValidBytes(chunk) {
					docs = append(docs, gjson.ParseBytes(chunk))
				}
				start = -1
			}
		}
	}
	return docs
}
