package post

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// DefaultAuthor is stored when a post is created without an author.
const DefaultAuthor = "anonymous"

// TimeLayout renders timestamps as ISO-8601 UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

const (
	keyPostID    = "post_id"
	keyTitle     = "title"
	keyAuthor    = "author"
	keyBody      = "body"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
)

// Post is a single record of the persisted collection.
//
// Records come from a hand-editable file, so decoding never fails on an
// element: unknown keys and values of the wrong type are kept aside and
// written back unchanged.
type Post struct {
	PostID    ID
	Title     string
	Author    string
	Body      string
	CreatedAt string
	UpdatedAt string

	extra  map[string]json.RawMessage
	opaque json.RawMessage
}

// Fields holds request values keyed by field name, exactly as sent.
type Fields map[string]json.RawMessage

// writableKeys are the only fields a caller may set, in merge order.
var writableKeys = []string{keyTitle, keyBody, keyAuthor}

// Writable returns the title, body and author entries of f. Every other key
// is dropped.
func (f Fields) Writable() Fields {
	out := make(Fields, len(writableKeys))
	for _, key := range writableKeys {
		if raw, ok := f[key]; ok {
			out[key] = raw
		}
	}
	return out
}

// Filled reports whether key is present with a value other than null,
// false, 0 or "".
func (f Fields) Filled(key string) bool {
	return truthy(f[key])
}

func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch c := raw[0]; {
	case c == 'n' || c == 'f':
		return false
	case c == '"':
		var s string
		return json.Unmarshal(raw, &s) == nil && s != ""
	case c == '-' || (c >= '0' && c <= '9'):
		// Out of range values come back as ±Inf or 0 alongside the error.
		n, _ := strconv.ParseFloat(string(raw), 64)
		return n != 0
	default:
		return true
	}
}

// New builds a freshly created post from the writable entries of fields.
// A missing or falsy author becomes DefaultAuthor.
func New(id float64, fields Fields, createdAt time.Time) Post {
	p := Post{
		PostID:    NewID(id),
		CreatedAt: Timestamp(createdAt),
	}
	p.set(keyTitle, fields[keyTitle])
	p.set(keyBody, fields[keyBody])
	if fields.Filled(keyAuthor) {
		p.set(keyAuthor, fields[keyAuthor])
	} else {
		p.Author = DefaultAuthor
	}
	return p
}

// Timestamp formats t the way created_at and updated_at are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Merge overlays the writable entries of u on a copy of p and stamps
// updated_at last, so the timestamp always reflects this merge.
func (p Post) Merge(u Fields, updatedAt time.Time) Post {
	merged := p.clone()
	for _, key := range writableKeys {
		if raw, ok := u[key]; ok {
			merged.set(key, raw)
		}
	}
	merged.UpdatedAt = Timestamp(updatedAt)
	delete(merged.extra, keyUpdatedAt)
	return merged
}

// set stores raw under a writable key. Strings go to the typed field, any
// other value is kept as sent. The caller owns p.extra.
func (p *Post) set(key string, raw json.RawMessage) {
	dst := p.textField(key)
	if dst == nil || raw == nil {
		return
	}
	delete(p.extra, key)
	if decodeText(raw, dst) {
		return
	}
	*dst = ""
	if p.extra == nil {
		p.extra = make(map[string]json.RawMessage)
	}
	p.extra[key] = append(json.RawMessage(nil), bytes.TrimSpace(raw)...)
}

func (p *Post) textField(key string) *string {
	switch key {
	case keyTitle:
		return &p.Title
	case keyAuthor:
		return &p.Author
	case keyBody:
		return &p.Body
	}
	return nil
}

func (p Post) clone() Post {
	if p.extra != nil {
		extra := make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			extra[k] = v
		}
		p.extra = extra
	}
	return p
}

// UnmarshalJSON decodes a stored record without rejecting malformed fields.
func (p *Post) UnmarshalJSON(data []byte) error {
	*p = Post{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		p.opaque = append(json.RawMessage(nil), data...)
		return nil
	}

	for key, raw := range fields {
		switch key {
		case keyPostID:
			p.PostID = decodeID(raw)
			continue
		case keyTitle:
			if decodeText(raw, &p.Title) {
				continue
			}
		case keyAuthor:
			if decodeText(raw, &p.Author) {
				continue
			}
		case keyBody:
			if decodeText(raw, &p.Body) {
				continue
			}
		case keyCreatedAt:
			if decodeText(raw, &p.CreatedAt) {
				continue
			}
		case keyUpdatedAt:
			if decodeText(raw, &p.UpdatedAt) {
				continue
			}
		}
		if p.extra == nil {
			p.extra = make(map[string]json.RawMessage)
		}
		p.extra[key] = append(json.RawMessage(nil), raw...)
	}
	return nil
}

// decodeText accepts JSON strings only; null is kept aside like any other
// non-string value.
func decodeText(raw json.RawMessage, dst *string) bool {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	*dst = s
	return true
}

// MarshalJSON writes keys in a fixed order: the known fields first, then
// any preserved keys sorted by name.
func (p Post) MarshalJSON() ([]byte, error) {
	if p.opaque != nil {
		return p.opaque, nil
	}

	w := objectWriter{}
	w.buf.WriteByte('{')

	if p.PostID.present() {
		if err := w.field(keyPostID, p.PostID); err != nil {
			return nil, err
		}
	}

	known := []struct {
		key      string
		value    string
		optional bool
	}{
		{keyTitle, p.Title, false},
		{keyAuthor, p.Author, false},
		{keyBody, p.Body, false},
		{keyCreatedAt, p.CreatedAt, false},
		{keyUpdatedAt, p.UpdatedAt, true},
	}
	for _, f := range known {
		if raw, ok := p.extra[f.key]; ok {
			if err := w.raw(f.key, raw); err != nil {
				return nil, err
			}
			continue
		}
		if f.optional && f.value == "" {
			continue
		}
		if err := w.field(f.key, f.value); err != nil {
			return nil, err
		}
	}

	rest := make([]string, 0, len(p.extra))
	for key := range p.extra {
		if isKnownKey(key) {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := w.raw(key, p.extra[key]); err != nil {
			return nil, err
		}
	}

	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

func isKnownKey(key string) bool {
	switch key {
	case keyPostID, keyTitle, keyAuthor, keyBody, keyCreatedAt, keyUpdatedAt:
		return true
	}
	return false
}

type objectWriter struct {
	buf    bytes.Buffer
	fields int
}

func (w *objectWriter) field(key string, value any) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}
	return w.raw(key, encoded)
}

func (w *objectWriter) raw(key string, value []byte) error {
	encodedKey, err := encodeValue(key)
	if err != nil {
		return err
	}
	if w.fields > 0 {
		w.buf.WriteByte(',')
	}
	w.buf.Write(encodedKey)
	w.buf.WriteByte(':')
	w.buf.Write(value)
	w.fields++
	return nil
}

// encodeValue marshals without HTML escaping so stored text stays readable.
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
